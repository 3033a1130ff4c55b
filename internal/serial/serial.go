// Package serial reads sensor lines from the greenhouse microcontroller.
// The real implementation uses a USB serial port.
// The fake implementation allows testing without hardware.
package serial

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

var (
	// ErrNotConnected is returned by ReadLine while no port is open.
	ErrNotConnected = errors.New("serial: not connected")
	// ErrNoPort is returned when no candidate port could be opened.
	ErrNoPort = errors.New("serial: no usable port")
	// ErrFieldCount is returned for lines that are not 5 or 10 values long.
	ErrFieldCount = errors.New("serial: wrong number of fields")
	// ErrBadValue is returned when a field is not a number.
	ErrBadValue = errors.New("serial: bad value")
)

// Reader yields raw text lines from the sensor board.
type Reader interface {
	// ReadLine returns the next complete line, trimmed. It returns "" and a
	// nil error when no full line is available yet.
	ReadLine() (string, error)

	// EnsureConnected reopens the port if needed, at most once per
	// reconnect interval. Returns whether a port is open afterwards.
	EnsureConnected(now time.Time) bool

	// IsConnected reports whether a port is open.
	IsConnected() bool

	// Port returns the name of the open (or last configured) port.
	Port() string

	// Close releases the port.
	Close() error
}

// ParseLine parses "temperature,humidity,co2,light,moisture", optionally
// followed by the same five values for the untreated control section.
func ParseLine(line string, now time.Time) (logic.Record, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	n := len(logic.SensorFields)
	if len(parts) != n && len(parts) != 2*n {
		return logic.Record{}, fmt.Errorf("%w: got %d, want %d or %d", ErrFieldCount, len(parts), n, 2*n)
	}

	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return logic.Record{}, fmt.Errorf("%w: %s %q", ErrBadValue, logic.SensorFields[i%n], p)
		}
		vals[i] = v
	}

	rec := logic.Record{
		Timestamp:  now,
		Controlled: readings(vals[:n]),
	}
	if len(vals) == 2*n {
		ctl := readings(vals[n:])
		rec.Control = &ctl
	}
	return rec, nil
}

func readings(v []float64) logic.Readings {
	return logic.Readings{
		Temperature: v[0],
		Humidity:    v[1],
		CO2:         v[2],
		Light:       v[3],
		Moisture:    v[4],
	}
}
