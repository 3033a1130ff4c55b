// Package metrics defines the Prometheus collectors of the greenhouse controller.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

const (
	CyclesH         = "The total number of completed control cycles"
	CyclesN         = "greenhouse_cycles_total"
	FallbacksH      = "The total number of inferences in which no rule fired, by engine"
	FallbacksN      = "greenhouse_fallbacks_total"
	ParseErrorsH    = "The total number of sensor lines that could not be parsed"
	ParseErrorsN    = "greenhouse_parse_errors_total"
	InvalidInputsH  = "The total number of sensor snapshots rejected as non-finite"
	InvalidInputsN  = "greenhouse_invalid_inputs_total"
	PublishErrorsH  = "The total number of failed MQTT publishes"
	PublishErrorsN  = "greenhouse_publish_errors_total"
	StorageErrorsH  = "The total number of failed storage writes"
	StorageErrorsN  = "greenhouse_storage_errors_total"
	ActuatorErrorsH = "The total number of failed actuator updates"
	ActuatorErrorsN = "greenhouse_actuator_errors_total"
	SerialErrorsH   = "The total number of serial read failures"
	SerialErrorsN   = "greenhouse_serial_errors_total"

	SensorReadingH = "The last sensor reading, by section and sensor"
	SensorReadingN = "greenhouse_sensor_reading"
	ActuatorPWMH   = "The last actuator duty value (0-255)"
	ActuatorPWMN   = "greenhouse_actuator_pwm"
	LinkOnlineH    = "Whether the sensor serial link is online (1) or offline (0)"
	LinkOnlineN    = "greenhouse_link_online"
	MQTTConnectedH = "Whether the MQTT broker connection is up (1) or down (0)"
	MQTTConnectedN = "greenhouse_mqtt_connected"

	ComputeDurationH = "Time spent computing actuator outputs for one snapshot"
	ComputeDurationN = "greenhouse_compute_duration_seconds"
)

// Metrics holds every collector. Create one per registry.
type Metrics struct {
	Cycles         prometheus.Counter
	Fallbacks      *prometheus.CounterVec
	ParseErrors    prometheus.Counter
	InvalidInputs  prometheus.Counter
	PublishErrors  prometheus.Counter
	StorageErrors  prometheus.Counter
	ActuatorErrors prometheus.Counter
	SerialErrors   prometheus.Counter

	SensorReading   *prometheus.GaugeVec
	ActuatorPWM     *prometheus.GaugeVec
	LinkOnline      prometheus.Gauge
	MQTTConnected   prometheus.Gauge
	ComputeDuration prometheus.Histogram
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}
	return &Metrics{
		Cycles:         counter(CyclesN, CyclesH),
		Fallbacks:      f.NewCounterVec(prometheus.CounterOpts{Name: FallbacksN, Help: FallbacksH}, []string{"engine"}),
		ParseErrors:    counter(ParseErrorsN, ParseErrorsH),
		InvalidInputs:  counter(InvalidInputsN, InvalidInputsH),
		PublishErrors:  counter(PublishErrorsN, PublishErrorsH),
		StorageErrors:  counter(StorageErrorsN, StorageErrorsH),
		ActuatorErrors: counter(ActuatorErrorsN, ActuatorErrorsH),
		SerialErrors:   counter(SerialErrorsN, SerialErrorsH),

		SensorReading: f.NewGaugeVec(prometheus.GaugeOpts{Name: SensorReadingN, Help: SensorReadingH}, []string{"section", "sensor"}),
		ActuatorPWM:   f.NewGaugeVec(prometheus.GaugeOpts{Name: ActuatorPWMN, Help: ActuatorPWMH}, []string{"actuator"}),
		LinkOnline:    gauge(LinkOnlineN, LinkOnlineH),
		MQTTConnected: gauge(MQTTConnectedN, MQTTConnectedH),
		ComputeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    ComputeDurationN,
			Help:    ComputeDurationH,
			Buckets: prometheus.ExponentialBuckets(10e-6, 4, 8), // 10µs .. ~160ms
		}),
	}
}

// ObserveCycle records one completed control step.
func (m *Metrics) ObserveCycle(rec logic.Record, d logic.Diagnosis, elapsed time.Duration) {
	m.Cycles.Inc()
	m.ComputeDuration.Observe(elapsed.Seconds())
	for _, name := range d.Fallbacks() {
		m.Fallbacks.WithLabelValues(name).Inc()
	}
	setReadings(m.SensorReading, "controlled", rec.Controlled)
	if rec.Control != nil {
		setReadings(m.SensorReading, "control", *rec.Control)
	}
	for i, v := range d.Outputs.Values() {
		m.ActuatorPWM.WithLabelValues(logic.OutputFields[i]).Set(float64(v))
	}
}

func setReadings(g *prometheus.GaugeVec, section string, r logic.Readings) {
	for i, v := range r.Values() {
		g.WithLabelValues(section, logic.SensorFields[i]).Set(v)
	}
}

// SetLink records the sensor link state.
func (m *Metrics) SetLink(state logic.LinkState) {
	m.LinkOnline.Set(boolFloat(state == logic.LinkOnline))
}

// SetMQTTConnected records the broker connection state.
func (m *Metrics) SetMQTTConnected(connected bool) {
	m.MQTTConnected.Set(boolFloat(connected))
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
