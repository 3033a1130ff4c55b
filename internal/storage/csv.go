package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// CSVOptions configures a CSVStore.
type CSVOptions struct {
	Dir      string // created if missing
	Prefix   string // default "greenhouse"
	Training bool   // also write training_data.csv
}

// File names derived from the prefix.
func (o CSVOptions) ControlledPath() string { return filepath.Join(o.Dir, o.Prefix+"_controlled.csv") }
func (o CSVOptions) ControlPath() string    { return filepath.Join(o.Dir, o.Prefix+"_control.csv") }
func (o CSVOptions) TrainingPath() string   { return filepath.Join(o.Dir, "training_data.csv") }

// CSVStore appends cycles to CSV files. The control file is only written
// for records that carry a control section.
type CSVStore struct {
	controlled *csvFile
	control    *csvFile
	training   *csvFile
}

type csvFile struct {
	f *os.File
	w *csv.Writer
}

// NewCSVStore opens (or creates) the CSV files. Headers are written only to
// new, empty files.
func NewCSVStore(opts CSVOptions) (*CSVStore, error) {
	if opts.Prefix == "" {
		opts.Prefix = "greenhouse"
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	s := &CSVStore{}
	var err error
	if s.controlled, err = openCSV(opts.ControlledPath(), readingsHeader()); err != nil {
		return nil, err
	}
	if s.control, err = openCSV(opts.ControlPath(), readingsHeader()); err != nil {
		s.Close()
		return nil, err
	}
	if opts.Training {
		if s.training, err = openCSV(opts.TrainingPath(), trainingHeader()); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func openCSV(path string, header []string) (*csvFile, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	cf := &csvFile{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := cf.write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header %s: %w", path, err)
		}
	}
	return cf, nil
}

func (c *csvFile) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvFile) close() error {
	if c == nil {
		return nil
	}
	c.w.Flush()
	return c.f.Close()
}

// Store appends one row per file.
func (s *CSVStore) Store(c Cycle) error {
	ts := c.Record.Timestamp.Format(TimestampFormat)

	row := readingsRow(ts, c.Record.Controlled.Values())
	if err := s.controlled.write(row); err != nil {
		return fmt.Errorf("write controlled: %w", err)
	}
	if c.Record.Control != nil {
		if err := s.control.write(readingsRow(ts, c.Record.Control.Values())); err != nil {
			return fmt.Errorf("write control: %w", err)
		}
	}
	if s.training != nil {
		for _, v := range c.Outputs.Values() {
			row = append(row, strconv.Itoa(v))
		}
		if err := s.training.write(row); err != nil {
			return fmt.Errorf("write training: %w", err)
		}
	}
	return nil
}

func readingsRow(ts string, vals []float64) []string {
	row := make([]string, 0, 1+len(vals)+4)
	row = append(row, ts)
	for _, v := range vals {
		row = append(row, formatFloat(v))
	}
	return row
}

// Close flushes and closes all files.
func (s *CSVStore) Close() error {
	var first error
	for _, c := range []*csvFile{s.controlled, s.control, s.training} {
		if err := c.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
