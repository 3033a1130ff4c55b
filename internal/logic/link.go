package logic

import "time"

// LinkState is the published availability of the sensor link.
type LinkState string

const (
	LinkOnline  LinkState = "ONLINE"
	LinkOffline LinkState = "OFFLINE"
)

// LinkCounts tracks link transitions since startup.
type LinkCounts struct {
	Online  int
	Offline int
}

// LinkUpdate is what the control loop should do after one observation.
type LinkUpdate struct {
	State   LinkState
	Changed bool // state differs from the previous observation
	Publish bool // status is due for (re)publishing
	Prev    LinkState
}

// LinkMonitor turns raw connected/disconnected samples into status
// transitions and rate-limited status publishes.
type LinkMonitor struct {
	interval    time.Duration
	state       LinkState
	lastPublish time.Time
	published   bool
	counts      LinkCounts
}

// NewLinkMonitor creates a monitor that republishes status every interval.
// An interval <= 0 publishes on transitions only.
func NewLinkMonitor(interval time.Duration) *LinkMonitor {
	return &LinkMonitor{interval: interval}
}

// Observe records the link state at time now.
// The first observation always counts as a change and is always published.
func (m *LinkMonitor) Observe(connected bool, now time.Time) LinkUpdate {
	state := LinkOffline
	if connected {
		state = LinkOnline
	}

	u := LinkUpdate{State: state, Prev: m.state}
	if state != m.state {
		u.Changed = true
		m.state = state
		switch state {
		case LinkOnline:
			m.counts.Online++
		case LinkOffline:
			m.counts.Offline++
		}
	}

	switch {
	case !m.published || u.Changed:
		u.Publish = true
	case m.interval > 0 && now.Sub(m.lastPublish) >= m.interval:
		u.Publish = true
	}
	if u.Publish {
		m.published = true
		m.lastPublish = now
	}
	return u
}

// State returns the last observed state, or "" before the first observation.
func (m *LinkMonitor) State() LinkState {
	return m.state
}

// Counts returns a copy of the transition counters.
func (m *LinkMonitor) Counts() LinkCounts {
	return m.counts
}
