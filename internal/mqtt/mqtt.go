// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"strconv"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

// Topic roots.
const (
	TopicSensors   = "greenhouse/sensors"
	TopicControl   = "greenhouse/sensors/control"
	TopicActuators = "greenhouse/actuators"
	TopicStatus    = "greenhouse/system/status"
)

// Publisher publishes greenhouse data to MQTT.
// Errors should be logged by the caller, never crash the process.
type Publisher interface {
	// PublishSensors sends one message per sensor value.
	PublishSensors(rec logic.Record) error

	// PublishOutputs sends one message per actuator duty value.
	PublishOutputs(out logic.Outputs) error

	// PublishStatus sends the retained sensor link status.
	PublishStatus(state logic.LinkState) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Message is a single MQTT publish.
type Message struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

// SensorMessages returns the sensor publishes for a record in wire order.
func SensorMessages(rec logic.Record) []Message {
	msgs := readingMessages(TopicSensors, rec.Controlled)
	if rec.Control != nil {
		msgs = append(msgs, readingMessages(TopicControl, *rec.Control)...)
	}
	return msgs
}

func readingMessages(root string, r logic.Readings) []Message {
	vals := r.Values()
	msgs := make([]Message, len(vals))
	for i, v := range vals {
		msgs[i] = Message{
			Topic:   root + "/" + logic.SensorFields[i],
			Payload: FormatValue(v),
		}
	}
	return msgs
}

// OutputMessages returns the actuator publishes in wire order.
func OutputMessages(out logic.Outputs) []Message {
	vals := out.Values()
	msgs := make([]Message, len(vals))
	for i, v := range vals {
		msgs[i] = Message{
			Topic:   TopicActuators + "/" + logic.OutputFields[i],
			Payload: strconv.Itoa(v),
		}
	}
	return msgs
}

// StatusMessage returns the retained, at-least-once status publish.
func StatusMessage(state logic.LinkState) Message {
	return Message{Topic: TopicStatus, Payload: string(state), QoS: 1, Retained: true}
}

// FormatValue renders a reading with the shortest exact decimal form.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
