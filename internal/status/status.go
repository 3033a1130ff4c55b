// Package status provides a thread-safe status tracker for the greenhouse
// controller daemon. It is read by the HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs           int64
	StatusIntervalMs int64
	SerialPort       string // empty = auto-detect
	BaudRate         int
	Broker           string
	HTTPAddr         string
	Setpoints        logic.Setpoints
	ActuatorsEnabled bool
}

// Counter names a per-cycle event that is counted.
type Counter int

const (
	CounterParseErrors Counter = iota
	CounterInvalidInputs
	CounterPublishErrors
	CounterStorageErrors
	CounterActuatorErrors
	CounterSerialErrors
)

// Counters are event totals since startup.
type Counters struct {
	Cycles         int
	Fallbacks      int
	ParseErrors    int
	InvalidInputs  int
	PublishErrors  int
	StorageErrors  int
	ActuatorErrors int
	SerialErrors   int
}

// Latency summarizes controller compute times.
type Latency struct {
	Count int64
	P50   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Link            logic.LinkState
	LinkCounts      logic.LinkCounts
	SerialConnected bool
	SerialPort      string
	MQTTConnected   bool

	LastCycle   time.Time
	LastRecord  *logic.Record
	LastOutputs *logic.Outputs
	Activations map[string]map[string]float64 // engine -> consequent label -> degree

	Counters  Counters
	Latency   Latency
	StartTime time.Time
	Now       time.Time
	Config    Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Latency histogram range in microseconds: 1µs to 10s.
const (
	histMin     = 1
	histMax     = 10_000_000
	histSigFigs = 3
)

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	hist *hdrhistogram.Histogram
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		hist: hdrhistogram.New(histMin, histMax, histSigFigs),
	}
}

// SetSerial records the sensor link state. Called from runLoop on every tick.
func (t *Tracker) SetSerial(connected bool, port string, link logic.LinkState, counts logic.LinkCounts) {
	t.mu.Lock()
	t.snap.SerialConnected = connected
	t.snap.SerialPort = port
	t.snap.Link = link
	t.snap.LinkCounts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// RecordCycle stores the result of one completed control step.
func (t *Tracker) RecordCycle(rec logic.Record, d logic.Diagnosis, elapsed time.Duration) {
	act := make(map[string]map[string]float64, len(d.Results))
	for name, res := range d.Results {
		act[name] = res.Activations
	}
	out := d.Outputs

	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.LastCycle = rec.Timestamp
	t.snap.LastRecord = &rec
	t.snap.LastOutputs = &out
	t.snap.Activations = act
	t.snap.Counters.Cycles++
	t.snap.Counters.Fallbacks += len(d.Fallbacks())

	us := elapsed.Microseconds()
	if us < histMin {
		us = histMin
	}
	if us > histMax {
		us = histMax
	}
	t.hist.RecordValue(us)
}

// Inc increments an event counter.
func (t *Tracker) Inc(c Counter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch c {
	case CounterParseErrors:
		t.snap.Counters.ParseErrors++
	case CounterInvalidInputs:
		t.snap.Counters.InvalidInputs++
	case CounterPublishErrors:
		t.snap.Counters.PublishErrors++
	case CounterStorageErrors:
		t.snap.Counters.StorageErrors++
	case CounterActuatorErrors:
		t.snap.Counters.ActuatorErrors++
	case CounterSerialErrors:
		t.snap.Counters.SerialErrors++
	}
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastRecord != nil {
		rec := *s.LastRecord
		if rec.Control != nil {
			ctl := *rec.Control
			rec.Control = &ctl
		}
		s.LastRecord = &rec
	}
	if s.LastOutputs != nil {
		out := *s.LastOutputs
		s.LastOutputs = &out
	}
	if s.Activations != nil {
		act := make(map[string]map[string]float64, len(s.Activations))
		for name, m := range s.Activations {
			cp := make(map[string]float64, len(m))
			for k, v := range m {
				cp[k] = v
			}
			act[name] = cp
		}
		s.Activations = act
	}
	s.Latency = Latency{
		Count: t.hist.TotalCount(),
		P50:   time.Duration(t.hist.ValueAtQuantile(50)) * time.Microsecond,
		P99:   time.Duration(t.hist.ValueAtQuantile(99)) * time.Microsecond,
		Max:   time.Duration(t.hist.Max()) * time.Microsecond,
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
