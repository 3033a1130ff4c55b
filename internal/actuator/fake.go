package actuator

import "github.com/sweeney/greenhouse-controller/internal/logic"

// FakeWriter is a test double that records applied outputs.
type FakeWriter struct {
	// Applied contains every Apply argument in order.
	Applied []logic.Outputs

	// ApplyError, if set, will be returned by Apply.
	ApplyError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeWriter creates a FakeWriter.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{}
}

// Apply records the outputs.
func (f *FakeWriter) Apply(out logic.Outputs) error {
	if f.ApplyError != nil {
		return f.ApplyError
	}
	f.Applied = append(f.Applied, out)
	return nil
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.Closed = true
	return nil
}

// Last returns the most recently applied outputs.
func (f *FakeWriter) Last() (logic.Outputs, bool) {
	if len(f.Applied) == 0 {
		return logic.Outputs{}, false
	}
	return f.Applied[len(f.Applied)-1], true
}
