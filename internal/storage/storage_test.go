package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

func testCycle(withControl bool) Cycle {
	rec := logic.Record{
		Timestamp:  time.Date(2026, 3, 1, 12, 30, 45, 123_000_000, time.UTC),
		Controlled: logic.Readings{Temperature: 25.5, Humidity: 80, CO2: 850, Light: 120, Moisture: 60},
	}
	if withControl {
		rec.Control = &logic.Readings{Temperature: 28, Humidity: 60, CO2: 1200, Light: 90, Moisture: 40}
	}
	return Cycle{
		Record:  rec,
		Outputs: logic.Outputs{HumidifierPWM: 102, FanPWM: 110, LEDPWM: 89, PumpPWM: 17},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestCSVStoreWritesRows(t *testing.T) {
	opts := CSVOptions{Dir: filepath.Join(t.TempDir(), "data"), Prefix: "run1", Training: true}
	s, err := NewCSVStore(opts)
	if err != nil {
		t.Fatalf("NewCSVStore: %v", err)
	}
	if err := s.Store(testCycle(true)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	controlled := readLines(t, opts.ControlledPath())
	want := []string{
		"timestamp,temperature,humidity,co2,light,moisture",
		"2026-03-01 12:30:45.123,25.5,80,850,120,60",
	}
	if strings.Join(controlled, "|") != strings.Join(want, "|") {
		t.Errorf("controlled file = %q, want %q", controlled, want)
	}

	control := readLines(t, opts.ControlPath())
	if len(control) != 2 || control[1] != "2026-03-01 12:30:45.123,28,60,1200,90,40" {
		t.Errorf("control file = %q", control)
	}

	training := readLines(t, opts.TrainingPath())
	if training[0] != "timestamp,temperature,humidity,co2,light,moisture,humidifier_pwm,fan_pwm,led_pwm,pump_pwm" {
		t.Errorf("training header = %q", training[0])
	}
	if training[1] != "2026-03-01 12:30:45.123,25.5,80,850,120,60,102,110,89,17" {
		t.Errorf("training row = %q", training[1])
	}
}

func TestCSVStoreHeaderOnlyOnNewFile(t *testing.T) {
	opts := CSVOptions{Dir: t.TempDir()}
	for i := 0; i < 2; i++ {
		s, err := NewCSVStore(opts)
		if err != nil {
			t.Fatalf("NewCSVStore: %v", err)
		}
		if err := s.Store(testCycle(false)); err != nil {
			t.Fatalf("Store: %v", err)
		}
		s.Close()
	}

	lines := readLines(t, filepath.Join(opts.Dir, "greenhouse_controlled.csv"))
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows: %q", len(lines), lines)
	}
	if strings.HasPrefix(lines[2], "timestamp") {
		t.Error("header repeated on reopen")
	}
}

func TestCSVStoreSkipsMissingControlSection(t *testing.T) {
	opts := CSVOptions{Dir: t.TempDir()}
	s, err := NewCSVStore(opts)
	if err != nil {
		t.Fatalf("NewCSVStore: %v", err)
	}
	defer s.Close()
	s.Store(testCycle(false))

	if lines := readLines(t, filepath.Join(opts.Dir, "greenhouse_control.csv")); len(lines) != 1 {
		t.Errorf("control file has %d lines, want header only", len(lines))
	}
	if _, err := os.Stat(filepath.Join(opts.Dir, "training_data.csv")); !os.IsNotExist(err) {
		t.Error("training file created although disabled")
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &FakeSink{}
	bad := &FakeSink{StoreError: errors.New("disk full")}
	m := Multi{bad, ok}

	err := m.Store(testCycle(false))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected joined error, got %v", err)
	}
	if len(ok.Cycles) != 1 {
		t.Error("later sinks must still be written after a failure")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !ok.Closed || !bad.Closed {
		t.Error("expected all sinks closed")
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "greenhouse.db"), 0)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	if err := s.Store(testCycle(true)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	c := testCycle(false)
	c.Outputs.PumpPWM = 191
	if err := s.Store(c); err != nil {
		t.Fatalf("Store: %v", err)
	}

	n, err := s.CycleCount()
	if err != nil || n != 2 {
		t.Errorf("CycleCount = %d, %v; want 2", n, err)
	}
	var readings int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM readings").Scan(&readings); err != nil {
		t.Fatalf("count readings: %v", err)
	}
	if readings != 3 {
		t.Errorf("readings rows = %d, want 3 (two controlled, one control)", readings)
	}
	out, err := s.LastOutputs()
	if err != nil {
		t.Fatalf("LastOutputs: %v", err)
	}
	if out.PumpPWM != 191 || out.HumidifierPWM != 102 {
		t.Errorf("LastOutputs = %+v", out)
	}
}

func TestSQLiteStorePrunes(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "greenhouse.db"), 3)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	for i := 0; i < 5; i++ {
		c := testCycle(false)
		c.Record.Timestamp = c.Record.Timestamp.Add(time.Duration(i) * time.Second)
		if err := s.Store(c); err != nil {
			t.Fatalf("Store %d: %v", i, err)
		}
	}
	if n, _ := s.CycleCount(); n != 3 {
		t.Errorf("CycleCount = %d, want 3", n)
	}
	var readings int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM readings").Scan(&readings); err != nil {
		t.Fatalf("count readings: %v", err)
	}
	if readings != 3 {
		t.Errorf("readings rows = %d, want 3 after pruning", readings)
	}
}

var (
	_ Sink = (*CSVStore)(nil)
	_ Sink = (*SQLiteStore)(nil)
	_ Sink = Multi(nil)
)
