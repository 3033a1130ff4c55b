// Package fuzzy implements a small Mamdani inference engine over triangular
// membership functions. Everything in this package is pure: no I/O, no clocks,
// no mutable state after construction.
package fuzzy

import (
	"errors"
	"fmt"
	"math"
)

// ErrConfiguration is returned when a universe, term, variable, rule or engine
// is malformed. It is only ever returned at construction time.
var ErrConfiguration = errors.New("fuzzy: invalid configuration")

// ErrInvalidInput is returned by Evaluate when an antecedent input is missing
// or not a finite number.
var ErrInvalidInput = errors.New("fuzzy: invalid input")

// Universe is the closed interval a variable is defined over.
type Universe struct {
	Min float64
	Max float64
}

// NewUniverse returns the universe [min, max]. min must be strictly below max.
func NewUniverse(min, max float64) (Universe, error) {
	if !finite(min) || !finite(max) || min >= max {
		return Universe{}, fmt.Errorf("%w: universe [%g, %g]", ErrConfiguration, min, max)
	}
	return Universe{Min: min, Max: max}, nil
}

// Clamp saturates x to the universe bounds.
func (u Universe) Clamp(x float64) float64 {
	if x < u.Min {
		return u.Min
	}
	if x > u.Max {
		return u.Max
	}
	return x
}

// Contains reports whether x lies inside the universe.
func (u Universe) Contains(x float64) bool {
	return x >= u.Min && x <= u.Max
}

// Triangle is a labelled triangular membership function.
// Left == Peak gives a left shoulder (1 for every x <= Peak),
// Peak == Right gives a right shoulder (1 for every x >= Peak).
// Left == Right is a single point and is rejected by NewVariable.
type Triangle struct {
	Label string
	Left  float64
	Peak  float64
	Right float64
}

// Tri is shorthand for a Triangle literal.
func Tri(label string, left, peak, right float64) Triangle {
	return Triangle{Label: label, Left: left, Peak: peak, Right: right}
}

// LeftShoulder reports whether the rising edge is degenerate.
func (t Triangle) LeftShoulder() bool { return t.Left == t.Peak }

// RightShoulder reports whether the falling edge is degenerate.
func (t Triangle) RightShoulder() bool { return t.Peak == t.Right }

// Degree returns the membership of x, in [0, 1]. x is not clamped here;
// Variable.Degree clamps to the owning universe first.
func (t Triangle) Degree(x float64) float64 {
	switch {
	case x == t.Peak:
		return 1
	case t.Left == t.Right:
		return 0
	case x < t.Peak:
		if t.LeftShoulder() {
			return 1
		}
		if x <= t.Left {
			return 0
		}
		return (x - t.Left) / (t.Peak - t.Left)
	default:
		if t.RightShoulder() {
			return 1
		}
		if x >= t.Right {
			return 0
		}
		return (t.Right - x) / (t.Right - t.Peak)
	}
}

func (t Triangle) validate(u Universe) error {
	if t.Label == "" {
		return fmt.Errorf("%w: empty term label", ErrConfiguration)
	}
	if !finite(t.Left) || !finite(t.Peak) || !finite(t.Right) {
		return fmt.Errorf("%w: term %q has non-finite vertex", ErrConfiguration, t.Label)
	}
	if t.Left > t.Peak || t.Peak > t.Right {
		return fmt.Errorf("%w: term %q needs left <= peak <= right, got [%g, %g, %g]",
			ErrConfiguration, t.Label, t.Left, t.Peak, t.Right)
	}
	if t.Left == t.Right {
		return fmt.Errorf("%w: term %q has zero width at %g", ErrConfiguration, t.Label, t.Peak)
	}
	if !u.Contains(t.Left) || !u.Contains(t.Right) {
		return fmt.Errorf("%w: term %q [%g, %g, %g] outside universe [%g, %g]",
			ErrConfiguration, t.Label, t.Left, t.Peak, t.Right, u.Min, u.Max)
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
