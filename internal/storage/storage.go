// Package storage persists control cycles to append-only sinks.
package storage

import (
	"errors"
	"strconv"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

// TimestampFormat is the millisecond-precision local timestamp used in files.
const TimestampFormat = "2006-01-02 15:04:05.000"

// Cycle is one completed control step: the parsed record and the outputs
// computed from its controlled section.
type Cycle struct {
	Record  logic.Record
	Outputs logic.Outputs
}

// Sink stores control cycles.
type Sink interface {
	Store(c Cycle) error
	Close() error
}

// Multi fans each cycle out to several sinks. Every sink is attempted;
// failures are joined.
type Multi []Sink

// Store writes the cycle to every sink.
func (m Multi) Store(c Cycle) error {
	var errs []error
	for _, s := range m {
		if err := s.Store(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FakeSink records cycles for tests.
type FakeSink struct {
	Cycles     []Cycle
	StoreError error
	Closed     bool
}

// Store records the cycle unless StoreError is set.
func (f *FakeSink) Store(c Cycle) error {
	if f.StoreError != nil {
		return f.StoreError
	}
	f.Cycles = append(f.Cycles, c)
	return nil
}

// Close marks the sink as closed.
func (f *FakeSink) Close() error {
	f.Closed = true
	return nil
}

func readingsHeader() []string {
	return append([]string{"timestamp"}, logic.SensorFields...)
}

func trainingHeader() []string {
	return append(readingsHeader(), logic.OutputFields...)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
