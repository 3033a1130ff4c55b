package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

// Section names stored in the readings table.
const (
	SectionControlled = "controlled"
	SectionControl    = "control"
)

// SQLiteStore writes cycles to a local SQLite database.
type SQLiteStore struct {
	db        *sql.DB
	maxCycles int
}

// NewSQLiteStore opens the database and creates the tables if missing.
// maxCycles > 0 prunes the oldest cycles beyond that count.
func NewSQLiteStore(path string, maxCycles int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			section TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			temperature REAL,
			humidity REAL,
			co2 REAL,
			light REAL,
			moisture REAL
		);
		CREATE TABLE IF NOT EXISTS control_cycles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			temperature REAL,
			humidity REAL,
			co2 REAL,
			light REAL,
			moisture REAL,
			humidifier_pwm INTEGER NOT NULL,
			fan_pwm INTEGER NOT NULL,
			led_pwm INTEGER NOT NULL,
			pump_pwm INTEGER NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLiteStore{db: db, maxCycles: maxCycles}, nil
}

// Store inserts the cycle in a single transaction.
func (s *SQLiteStore) Store(c Cycle) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	ts := c.Record.Timestamp.UTC().Format(TimestampFormat)
	r := c.Record.Controlled
	if err := insertReadings(tx, SectionControlled, ts, r.Values()); err != nil {
		return err
	}
	if c.Record.Control != nil {
		if err := insertReadings(tx, SectionControl, ts, c.Record.Control.Values()); err != nil {
			return err
		}
	}

	o := c.Outputs
	_, err = tx.Exec(`
		INSERT INTO control_cycles (timestamp, temperature, humidity, co2, light, moisture,
			humidifier_pwm, fan_pwm, led_pwm, pump_pwm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts, r.Temperature, r.Humidity, r.CO2, r.Light, r.Moisture,
		o.HumidifierPWM, o.FanPWM, o.LEDPWM, o.PumpPWM,
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	if s.maxCycles > 0 {
		_, err = tx.Exec(`DELETE FROM control_cycles WHERE id <= (SELECT MAX(id) FROM control_cycles) - ?`, s.maxCycles)
		if err != nil {
			return fmt.Errorf("prune cycles: %w", err)
		}
		_, err = tx.Exec(`DELETE FROM readings WHERE timestamp < (SELECT MIN(timestamp) FROM control_cycles)`)
		if err != nil {
			return fmt.Errorf("prune readings: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertReadings(tx *sql.Tx, section, ts string, v []float64) error {
	_, err := tx.Exec(`
		INSERT INTO readings (section, timestamp, temperature, humidity, co2, light, moisture)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		section, ts, v[0], v[1], v[2], v[3], v[4],
	)
	if err != nil {
		return fmt.Errorf("insert %s readings: %w", section, err)
	}
	return nil
}

// CycleCount returns the number of stored cycles.
func (s *SQLiteStore) CycleCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM control_cycles").Scan(&n)
	return n, err
}

// LastOutputs returns the outputs of the most recent cycle.
func (s *SQLiteStore) LastOutputs() (logic.Outputs, error) {
	var o logic.Outputs
	err := s.db.QueryRow(`
		SELECT humidifier_pwm, fan_pwm, led_pwm, pump_pwm
		FROM control_cycles ORDER BY id DESC LIMIT 1`).Scan(&o.HumidifierPWM, &o.FanPWM, &o.LEDPWM, &o.PumpPWM)
	return o, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
