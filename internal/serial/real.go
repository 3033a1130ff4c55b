package serial

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Options configures a RealReader.
type Options struct {
	Port              string        // device path; empty means auto-detect
	BaudRate          int           // default 115200
	ReadTimeout       time.Duration // per-read timeout; default 100ms
	Settle            time.Duration // wait after opening while the board resets; default 2s
	ReconnectInterval time.Duration // minimum spacing between open attempts; default 500ms
}

func (o *Options) setDefaults() {
	if o.BaudRate == 0 {
		o.BaudRate = 115200
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 100 * time.Millisecond
	}
	if o.Settle == 0 {
		o.Settle = 2 * time.Second
	}
	if o.ReconnectInterval == 0 {
		o.ReconnectInterval = 500 * time.Millisecond
	}
}

// RealReader reads lines from a USB serial port.
// Not safe for concurrent use; the control loop owns it.
type RealReader struct {
	opts Options
	log  *zap.Logger

	port        io.ReadCloser
	current     string
	lastAttempt time.Time
	lines       lineBuffer
	chunk       []byte

	// Swappable for tests.
	open  func(name string) (io.ReadCloser, error)
	list  func() ([]string, error)
	sleep func(time.Duration)
}

// NewRealReader creates a reader. No port is opened until Connect or
// EnsureConnected is called.
func NewRealReader(opts Options, log *zap.Logger) *RealReader {
	opts.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	r := &RealReader{
		opts:  opts,
		log:   log.Named("serial"),
		chunk: make([]byte, 256),
		list:  serial.GetPortsList,
		sleep: time.Sleep,
	}
	r.open = r.openPort
	return r
}

func (r *RealReader) openPort(name string) (io.ReadCloser, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: r.opts.BaudRate})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(r.opts.ReadTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		r.log.Debug("reset input buffer", zap.String("port", name), zap.Error(err))
	}
	return p, nil
}

// candidates returns the configured port, or the detected USB serial ports.
func (r *RealReader) candidates() ([]string, error) {
	if r.opts.Port != "" {
		return []string{r.opts.Port}, nil
	}
	all, err := r.list()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	var usb []string
	for _, name := range all {
		if isUSBSerial(name) {
			usb = append(usb, name)
		}
	}
	return usb, nil
}

// isUSBSerial matches the device names USB-to-serial adapters get on Linux,
// macOS and Windows.
func isUSBSerial(name string) bool {
	for _, marker := range []string{"ttyUSB", "ttyACM", "usbserial", "usbmodem", "COM"} {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// Connect opens the first usable candidate port and waits for the board to
// settle. Any previously open port is closed first.
func (r *RealReader) Connect() error {
	r.drop()
	names, err := r.candidates()
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		p, err := r.open(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		r.sleep(r.opts.Settle)
		r.port = p
		r.current = name
		r.lines.reset()
		r.log.Info("connected", zap.String("port", name), zap.Int("baud", r.opts.BaudRate))
		return nil
	}
	if len(errs) == 0 {
		return ErrNoPort
	}
	return fmt.Errorf("%w: %w", ErrNoPort, errors.Join(errs...))
}

// EnsureConnected reconnects if the port is closed and the reconnect
// interval has elapsed since the last attempt.
func (r *RealReader) EnsureConnected(now time.Time) bool {
	if r.port != nil {
		return true
	}
	if !r.lastAttempt.IsZero() && now.Sub(r.lastAttempt) < r.opts.ReconnectInterval {
		return false
	}
	r.lastAttempt = now
	if err := r.Connect(); err != nil {
		r.log.Debug("connect failed", zap.Error(err))
		return false
	}
	return true
}

// ReadLine returns the next buffered line, reading from the port once if
// none is buffered. A read error closes the port; the next EnsureConnected
// will reopen it.
func (r *RealReader) ReadLine() (string, error) {
	if line, ok := r.lines.next(); ok {
		return line, nil
	}
	if r.port == nil {
		return "", ErrNotConnected
	}
	n, err := r.port.Read(r.chunk)
	if n > 0 {
		r.lines.write(r.chunk[:n])
	}
	if err != nil && !errors.Is(err, io.EOF) {
		r.log.Warn("read failed, closing port", zap.String("port", r.current), zap.Error(err))
		r.drop()
		return "", fmt.Errorf("read %s: %w", r.current, err)
	}
	line, _ := r.lines.next()
	return line, nil
}

// IsConnected reports whether a port is open.
func (r *RealReader) IsConnected() bool {
	return r.port != nil
}

// Port returns the open port, or the configured one when disconnected.
func (r *RealReader) Port() string {
	if r.current != "" {
		return r.current
	}
	return r.opts.Port
}

// Close closes the port.
func (r *RealReader) Close() error {
	if r.port == nil {
		return nil
	}
	err := r.port.Close()
	r.port = nil
	return err
}

func (r *RealReader) drop() {
	if r.port != nil {
		r.port.Close()
		r.port = nil
	}
}
