package serial

import "time"

// FakeReader replays queued lines for tests.
type FakeReader struct {
	// Lines are returned by ReadLine in order; "" simulates an idle poll.
	Lines []string

	// ReadError, if set, is returned once by ReadLine and disconnects.
	ReadError error

	// Connected controls IsConnected.
	Connected bool

	// Reconnect controls whether EnsureConnected succeeds.
	Reconnect bool

	// Name is returned by Port.
	Name string

	// Attempts counts EnsureConnected calls made while disconnected.
	Attempts int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeReader creates a connected FakeReader with the given lines queued.
func NewFakeReader(lines ...string) *FakeReader {
	return &FakeReader{
		Lines:     lines,
		Connected: true,
		Reconnect: true,
		Name:      "/dev/fake0",
	}
}

// ReadLine pops the next queued line.
func (f *FakeReader) ReadLine() (string, error) {
	if !f.Connected {
		return "", ErrNotConnected
	}
	if f.ReadError != nil {
		err := f.ReadError
		f.ReadError = nil
		f.Connected = false
		return "", err
	}
	if len(f.Lines) == 0 {
		return "", nil
	}
	line := f.Lines[0]
	f.Lines = f.Lines[1:]
	return line, nil
}

// EnsureConnected reconnects when Reconnect is set.
func (f *FakeReader) EnsureConnected(now time.Time) bool {
	if f.Connected {
		return true
	}
	f.Attempts++
	f.Connected = f.Reconnect
	return f.Connected
}

// IsConnected reports the Connected field.
func (f *FakeReader) IsConnected() bool { return f.Connected }

// Port returns Name.
func (f *FakeReader) Port() string { return f.Name }

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	f.Connected = false
	return nil
}
