// Package logic contains pure business logic for greenhouse actuator control.
// This package has NO external dependencies (no serial, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidInput is returned when a sensor snapshot is missing a field or
// carries a non-numeric value.
var ErrInvalidInput = errors.New("invalid sensor input")

// InputError identifies the offending sensor field.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput, e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// Sensor field names, shared by the serial parser, MQTT topics and storage columns.
const (
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldCO2         = "co2"
	FieldLight       = "light"
	FieldMoisture    = "moisture"
)

// SensorFields lists the sensor fields in wire order.
var SensorFields = []string{FieldTemperature, FieldHumidity, FieldCO2, FieldLight, FieldMoisture}

// Output field names.
const (
	FieldHumidifierPWM = "humidifier_pwm"
	FieldFanPWM        = "fan_pwm"
	FieldLEDPWM        = "led_pwm"
	FieldPumpPWM       = "pump_pwm"
)

// OutputFields lists the actuator outputs in wire order.
var OutputFields = []string{FieldHumidifierPWM, FieldFanPWM, FieldLEDPWM, FieldPumpPWM}

// Readings is one snapshot of the five greenhouse sensors.
type Readings struct {
	Temperature float64 // °C
	Humidity    float64 // %RH
	CO2         float64 // ppm
	Light       float64 // lux
	Moisture    float64 // % soil moisture
}

// Values returns the readings in SensorFields order.
func (r Readings) Values() []float64 {
	return []float64{r.Temperature, r.Humidity, r.CO2, r.Light, r.Moisture}
}

// Map returns the readings keyed by field name.
func (r Readings) Map() map[string]float64 {
	return map[string]float64{
		FieldTemperature: r.Temperature,
		FieldHumidity:    r.Humidity,
		FieldCO2:         r.CO2,
		FieldLight:       r.Light,
		FieldMoisture:    r.Moisture,
	}
}

// Validate rejects NaN and infinite values. Out-of-range values are not an
// error; the controller saturates them.
func (r Readings) Validate() error {
	for i, v := range r.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InputError{Field: SensorFields[i], Reason: "is not a finite number"}
		}
	}
	return nil
}

// ReadingsFromMap converts a loosely typed snapshot (e.g. decoded JSON) into
// Readings. Every field is required; no defaults are substituted.
func ReadingsFromMap(m map[string]any) (Readings, error) {
	var vals [5]float64
	for i, field := range SensorFields {
		raw, ok := m[field]
		if !ok {
			return Readings{}, &InputError{Field: field, Reason: "is missing"}
		}
		v, ok := toFloat(raw)
		if !ok {
			return Readings{}, &InputError{Field: field, Reason: fmt.Sprintf("is not numeric (%T)", raw)}
		}
		vals[i] = v
	}
	r := Readings{
		Temperature: vals[0],
		Humidity:    vals[1],
		CO2:         vals[2],
		Light:       vals[3],
		Moisture:    vals[4],
	}
	return r, r.Validate()
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Record is one parsed sensor line. Controlled drives the controller;
// Control is the optional untreated reference section, only published and stored.
type Record struct {
	Timestamp  time.Time
	Controlled Readings
	Control    *Readings
}

// Outputs are the four actuator duty values, each in [0, 255].
type Outputs struct {
	HumidifierPWM int
	FanPWM        int
	LEDPWM        int
	PumpPWM       int
}

// Values returns the outputs in OutputFields order.
func (o Outputs) Values() []int {
	return []int{o.HumidifierPWM, o.FanPWM, o.LEDPWM, o.PumpPWM}
}

// Map returns the outputs keyed by field name.
func (o Outputs) Map() map[string]int {
	return map[string]int{
		FieldHumidifierPWM: o.HumidifierPWM,
		FieldFanPWM:        o.FanPWM,
		FieldLEDPWM:        o.LEDPWM,
		FieldPumpPWM:       o.PumpPWM,
	}
}

// Setpoints are the control targets. Errors are computed as actual - setpoint.
type Setpoints struct {
	Temperature float64
	Humidity    float64
	CO2         float64
	Light       float64
	Moisture    float64
}

// DefaultSetpoints returns the greenhouse targets: 25 °C, 85 %RH, 800 ppm,
// 150 lux, 65 % soil moisture.
func DefaultSetpoints() Setpoints {
	return Setpoints{
		Temperature: 25,
		Humidity:    85,
		CO2:         800,
		Light:       150,
		Moisture:    65,
	}
}

// Map returns the setpoints keyed by sensor field name.
func (s Setpoints) Map() map[string]float64 {
	return Readings(s).Map()
}

// ErrorSignals are the controller inputs derived from a snapshot.
type ErrorSignals struct {
	Temp     float64
	Hum      float64
	CO2      float64
	Light    float64
	Moisture float64
}

// Errors returns actual - setpoint for each sensor.
func (s Setpoints) Errors(r Readings) ErrorSignals {
	return ErrorSignals{
		Temp:     r.Temperature - s.Temperature,
		Hum:      r.Humidity - s.Humidity,
		CO2:      r.CO2 - s.CO2,
		Light:    r.Light - s.Light,
		Moisture: r.Moisture - s.Moisture,
	}
}
