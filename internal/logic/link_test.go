package logic

import (
	"testing"
	"time"
)

func TestLinkMonitorFirstObservationPublishes(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewLinkMonitor(time.Second)

	if m.State() != "" {
		t.Errorf("initial state = %q, want empty", m.State())
	}

	u := m.Observe(false, now)
	if u.State != LinkOffline {
		t.Errorf("state = %s, want OFFLINE", u.State)
	}
	if !u.Changed || !u.Publish {
		t.Errorf("first observation: Changed=%v Publish=%v, want both true", u.Changed, u.Publish)
	}
	if u.Prev != "" {
		t.Errorf("Prev = %q, want empty", u.Prev)
	}
}

func TestLinkMonitorRateLimitsPublishes(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewLinkMonitor(time.Second)
	m.Observe(true, now)

	// Polling at 100ms: nothing due until a full second has passed.
	for i := 1; i < 10; i++ {
		u := m.Observe(true, now.Add(time.Duration(i)*100*time.Millisecond))
		if u.Publish || u.Changed {
			t.Fatalf("tick %d: unexpected Publish=%v Changed=%v", i, u.Publish, u.Changed)
		}
	}

	u := m.Observe(true, now.Add(time.Second))
	if !u.Publish {
		t.Error("expected publish after interval")
	}
	if u.Changed {
		t.Error("unexpected change")
	}
}

func TestLinkMonitorTransitionsPublishImmediately(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewLinkMonitor(time.Minute)
	m.Observe(true, now)

	u := m.Observe(false, now.Add(100*time.Millisecond))
	if !u.Changed || !u.Publish {
		t.Fatalf("drop: Changed=%v Publish=%v, want both true", u.Changed, u.Publish)
	}
	if u.Prev != LinkOnline || u.State != LinkOffline {
		t.Errorf("transition %s -> %s, want ONLINE -> OFFLINE", u.Prev, u.State)
	}

	u = m.Observe(true, now.Add(200*time.Millisecond))
	if !u.Changed || u.State != LinkOnline {
		t.Errorf("recovery: Changed=%v State=%s", u.Changed, u.State)
	}

	counts := m.Counts()
	if counts.Online != 2 || counts.Offline != 1 {
		t.Errorf("counts = %+v, want Online=2 Offline=1", counts)
	}
}

func TestLinkMonitorZeroIntervalPublishesOnChangeOnly(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewLinkMonitor(0)
	m.Observe(true, now)

	u := m.Observe(true, now.Add(time.Hour))
	if u.Publish {
		t.Error("zero interval should not republish a stable state")
	}
}
