package mqtt

import (
	"github.com/sweeney/greenhouse-controller/internal/logic"
)

// FakePublisher records published data for test assertions.
type FakePublisher struct {
	// Records contains all sensor records that were published.
	Records []logic.Record

	// Outputs contains all actuator outputs that were published.
	Outputs []logic.Outputs

	// Statuses contains all link states that were published.
	Statuses []logic.LinkState

	// Messages contains every message in publish order.
	Messages []Message

	// PublishError, if set, will be returned by PublishSensors and PublishOutputs.
	PublishError error

	// StatusError, if set, will be returned by PublishStatus.
	StatusError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Connected: true}
}

// PublishSensors records the sensor record.
func (f *FakePublisher) PublishSensors(rec logic.Record) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Records = append(f.Records, rec)
	f.Messages = append(f.Messages, SensorMessages(rec)...)
	return nil
}

// PublishOutputs records the actuator outputs.
func (f *FakePublisher) PublishOutputs(out logic.Outputs) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Outputs = append(f.Outputs, out)
	f.Messages = append(f.Messages, OutputMessages(out)...)
	return nil
}

// PublishStatus records the link state.
func (f *FakePublisher) PublishStatus(state logic.LinkState) error {
	if f.StatusError != nil {
		return f.StatusError
	}
	f.Statuses = append(f.Statuses, state)
	f.Messages = append(f.Messages, StatusMessage(state))
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// LastStatus returns the most recent published state, or "".
func (f *FakePublisher) LastStatus() logic.LinkState {
	if len(f.Statuses) == 0 {
		return ""
	}
	return f.Statuses[len(f.Statuses)-1]
}

// Reset clears recorded data.
func (f *FakePublisher) Reset() {
	f.Records = nil
	f.Outputs = nil
	f.Statuses = nil
	f.Messages = nil
	f.Closed = false
	f.PublishError = nil
	f.StatusError = nil
}
