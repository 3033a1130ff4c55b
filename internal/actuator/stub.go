//go:build !linux

package actuator

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

// RealWriter is not available on non-Linux platforms.
type RealWriter struct{}

// NewRealWriter returns an error on non-Linux platforms.
func NewRealWriter(chipName string, pins Pins, window time.Duration, log *zap.Logger) (*RealWriter, error) {
	return nil, errors.New("actuator: not supported on this platform (requires Linux)")
}

// Apply is not implemented on non-Linux platforms.
func (w *RealWriter) Apply(out logic.Outputs) error {
	return errors.New("actuator: not supported")
}

// Close is not implemented on non-Linux platforms.
func (w *RealWriter) Close() error {
	return nil
}
