// Package actuator drives the greenhouse actuators from computed duty values.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package actuator

import (
	"time"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

// Writer applies actuator outputs.
type Writer interface {
	// Apply sets the duty values used from the next PWM window on.
	Apply(out logic.Outputs) error

	// Close drives all outputs low and releases resources.
	Close() error
}

// Pins maps each actuator to a GPIO line offset (BCM numbering).
type Pins struct {
	Humidifier int
	Fan        int
	LED        int
	Pump       int
}

// DefaultPins are the relay board wiring.
var DefaultPins = Pins{
	Humidifier: 17,
	Fan:        27,
	LED:        22,
	Pump:       23,
}

// Offsets returns the pins in logic.OutputFields order.
func (p Pins) Offsets() []int {
	return []int{p.Humidifier, p.Fan, p.LED, p.Pump}
}

// DefaultWindow is the time-proportioning period.
const DefaultWindow = 2 * time.Second

// OnTime returns how long an output with the given duty stays on per window.
func OnTime(pwm int, window time.Duration) time.Duration {
	if pwm <= 0 {
		return 0
	}
	if pwm >= logic.MaxPWM {
		return window
	}
	return window * time.Duration(pwm) / logic.MaxPWM
}
