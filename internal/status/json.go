package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Link          string                        `json:"link"`
	UptimeSeconds int64                         `json:"uptime_seconds"`
	StartTime     string                        `json:"start_time"`
	Timestamp     string                        `json:"timestamp"`
	LastCycle     string                        `json:"last_cycle,omitempty"`
	Serial        SerialStatus                  `json:"serial"`
	MQTT          MQTTStatus                    `json:"mqtt"`
	Sensors       map[string]float64            `json:"sensors,omitempty"`
	Control       map[string]float64            `json:"control,omitempty"`
	Outputs       map[string]int                `json:"outputs,omitempty"`
	Activations   map[string]map[string]float64 `json:"activations,omitempty"`
	Counts        CountsJSON                    `json:"counts"`
	Latency       LatencyJSON                   `json:"compute_latency_us"`
	Config        ConfigJSON                    `json:"config"`
}

// SerialStatus reports the sensor link.
type SerialStatus struct {
	Connected bool   `json:"connected"`
	Port      string `json:"port"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of the event counters.
type CountsJSON struct {
	Cycles         int `json:"cycles"`
	Fallbacks      int `json:"fallbacks"`
	ParseErrors    int `json:"parse_errors"`
	InvalidInputs  int `json:"invalid_inputs"`
	PublishErrors  int `json:"publish_errors"`
	StorageErrors  int `json:"storage_errors"`
	ActuatorErrors int `json:"actuator_errors"`
	SerialErrors   int `json:"serial_errors"`
	LinkOnline     int `json:"link_online"`
	LinkOffline    int `json:"link_offline"`
}

// LatencyJSON is the compute latency summary in microseconds.
type LatencyJSON struct {
	Count int64 `json:"count"`
	P50   int64 `json:"p50"`
	P99   int64 `json:"p99"`
	Max   int64 `json:"max"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs           int64              `json:"poll_ms"`
	StatusIntervalMs int64              `json:"status_interval_ms"`
	SerialPort       string             `json:"serial_port"`
	BaudRate         int                `json:"baud_rate"`
	Broker           string             `json:"broker"`
	HTTPAddr         string             `json:"http_addr"`
	Setpoints        map[string]float64 `json:"setpoints"`
	ActuatorsEnabled bool               `json:"actuators_enabled"`
}

func buildInner(snap Snapshot) StatusInner {
	link := string(snap.Link)
	if link == "" {
		link = "UNKNOWN"
	}
	port := snap.SerialPort
	if port == "" {
		port = "auto"
	}
	c := snap.Counters
	cfg := snap.Config

	inner := StatusInner{
		Link:          link,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Serial:        SerialStatus{Connected: snap.SerialConnected, Port: port},
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: cfg.Broker},
		Activations:   snap.Activations,
		Counts: CountsJSON{
			Cycles:         c.Cycles,
			Fallbacks:      c.Fallbacks,
			ParseErrors:    c.ParseErrors,
			InvalidInputs:  c.InvalidInputs,
			PublishErrors:  c.PublishErrors,
			StorageErrors:  c.StorageErrors,
			ActuatorErrors: c.ActuatorErrors,
			SerialErrors:   c.SerialErrors,
			LinkOnline:     snap.LinkCounts.Online,
			LinkOffline:    snap.LinkCounts.Offline,
		},
		Latency: LatencyJSON{
			Count: snap.Latency.Count,
			P50:   snap.Latency.P50.Microseconds(),
			P99:   snap.Latency.P99.Microseconds(),
			Max:   snap.Latency.Max.Microseconds(),
		},
		Config: ConfigJSON{
			PollMs:           cfg.PollMs,
			StatusIntervalMs: cfg.StatusIntervalMs,
			SerialPort:       cfg.SerialPort,
			BaudRate:         cfg.BaudRate,
			Broker:           cfg.Broker,
			HTTPAddr:         cfg.HTTPAddr,
			Setpoints:        cfg.Setpoints.Map(),
			ActuatorsEnabled: cfg.ActuatorsEnabled,
		},
	}
	if !snap.LastCycle.IsZero() {
		inner.LastCycle = snap.LastCycle.UTC().Format(time.RFC3339Nano)
	}
	if snap.LastRecord != nil {
		inner.Sensors = snap.LastRecord.Controlled.Map()
		if snap.LastRecord.Control != nil {
			inner.Control = snap.LastRecord.Control.Map()
		}
	}
	if snap.LastOutputs != nil {
		inner.Outputs = snap.LastOutputs.Map()
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
