//go:build linux

package actuator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

// RealWriter drives relay outputs using the Linux GPIO character device.
type RealWriter struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
	loop  *pwmLoop

	cancel context.CancelFunc
	done   sync.WaitGroup
}

// NewRealWriter requests one output line per actuator, initially low, and
// starts the PWM loop.
func NewRealWriter(chipName string, pins Pins, window time.Duration, log *zap.Logger) (*RealWriter, error) {
	if chipName == "" {
		chipName = "gpiochip0"
	}
	if log == nil {
		log = zap.NewNop()
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	w := &RealWriter{chip: chip}
	outs := make([]outputLine, 0, 4)
	for i, pin := range pins.Offsets() {
		l, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			w.release()
			return nil, fmt.Errorf("request %s pin %d: %w", logic.OutputFields[i], pin, err)
		}
		w.lines = append(w.lines, l)
		outs = append(outs, l)
	}

	w.loop = newPWMLoop(outs, window, log.Named("actuator"))
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done.Add(1)
	go func() {
		defer w.done.Done()
		w.loop.run(ctx)
	}()
	return w, nil
}

// Apply sets the duty values for the next window.
func (w *RealWriter) Apply(out logic.Outputs) error {
	w.loop.set(out)
	return nil
}

// Close stops the PWM loop, drives all outputs low and releases the lines.
// Lines are returned to inputs with pull-down so relays stay off across reboots.
func (w *RealWriter) Close() error {
	if w.cancel != nil {
		w.cancel()
		w.done.Wait()
	}
	return w.release()
}

func (w *RealWriter) release() error {
	var errs []error
	for i, l := range w.lines {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", logic.OutputFields[i], err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", logic.OutputFields[i], err))
		}
	}
	w.lines = nil
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		w.chip = nil
	}
	return errors.Join(errs...)
}
