package logic

import (
	"fmt"
	"math"

	"github.com/sweeney/greenhouse-controller/internal/fuzzy"
)

// MaxPWM is the full-scale actuator duty value.
const MaxPWM = 255

// Controller turns a sensor snapshot into four actuator duty values.
// It holds only immutable configuration and is safe for concurrent use.
type Controller struct {
	setpoints Setpoints
	engines   Engines
}

// NewController builds a controller from explicit setpoints and engines.
// Engines may only depend on the five error signals the controller derives.
func NewController(setpoints Setpoints, engines Engines) (*Controller, error) {
	sp := setpoints.values()
	for i, v := range sp {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s setpoint is %g", fuzzy.ErrConfiguration, SensorFields[i], v)
		}
	}
	if err := engines.validate(); err != nil {
		return nil, err
	}
	return &Controller{setpoints: setpoints, engines: engines}, nil
}

// NewDefaultController uses DefaultEngines with the given setpoints.
func NewDefaultController(setpoints Setpoints) (*Controller, error) {
	engines, err := DefaultEngines()
	if err != nil {
		return nil, err
	}
	return NewController(setpoints, engines)
}

// Setpoints returns the configured targets.
func (c *Controller) Setpoints() Setpoints { return c.setpoints }

// Engines returns the configured inference systems.
func (c *Controller) Engines() Engines { return c.engines }

// Compute returns the actuator outputs for one snapshot. The only failure is
// a non-finite reading, reported as an *InputError.
func (c *Controller) Compute(r Readings) (Outputs, error) {
	d, err := c.Diagnose(r)
	if err != nil {
		return Outputs{}, err
	}
	return d.Outputs, nil
}

// ComputeMap is Compute for a loosely typed snapshot; see ReadingsFromMap.
func (c *Controller) ComputeMap(m map[string]any) (Outputs, error) {
	r, err := ReadingsFromMap(m)
	if err != nil {
		return Outputs{}, err
	}
	return c.Compute(r)
}

// Diagnosis is a Compute result with the intermediate values kept.
type Diagnosis struct {
	Errors  ErrorSignals
	Crisp   [4]float64 // humidifier, fan, led, pump on the 0-100 scale
	Results map[string]fuzzy.Result
	Outputs Outputs
}

// Fallbacks lists the engines for which no rule fired.
func (d Diagnosis) Fallbacks() []string {
	var out []string
	for _, name := range []string{VarHumidifier, VarFan, VarLED, VarPump} {
		if d.Results[name].Fallback {
			out = append(out, name)
		}
	}
	return out
}

// Diagnose runs all four engines and keeps their intermediate results.
func (c *Controller) Diagnose(r Readings) (Diagnosis, error) {
	if err := r.Validate(); err != nil {
		return Diagnosis{}, err
	}
	e := c.setpoints.Errors(r)

	runs := []struct {
		name   string
		engine *fuzzy.Engine
	}{
		{VarHumidifier, c.engines.Humidifier},
		{VarFan, c.engines.Fan},
		{VarLED, c.engines.LED},
		{VarPump, c.engines.Pump},
	}
	inputs := map[string]float64{
		VarTempError:     e.Temp,
		VarHumError:      e.Hum,
		VarCO2Error:      e.CO2,
		VarLightError:    e.Light,
		VarMoistureError: e.Moisture,
	}

	d := Diagnosis{Errors: e, Results: make(map[string]fuzzy.Result, len(runs))}
	for i, run := range runs {
		res, err := run.engine.Infer(inputs)
		if err != nil {
			// Unreachable once NewController has validated the engine inputs.
			return Diagnosis{}, fmt.Errorf("%s engine: %w", run.name, err)
		}
		d.Results[run.name] = res
		d.Crisp[i] = res.Output
	}
	d.Outputs = Outputs{
		HumidifierPWM: ScalePWM(d.Crisp[0]),
		FanPWM:        ScalePWM(d.Crisp[1]),
		LEDPWM:        ScalePWM(d.Crisp[2]),
		PumpPWM:       ScalePWM(d.Crisp[3]),
	}
	return d, nil
}

// ScalePWM maps a 0-100 crisp output to an integer duty value in [0, 255],
// truncating toward zero.
func ScalePWM(x float64) int {
	pwm := int(math.Floor(x * MaxPWM / 100))
	if pwm < 0 {
		return 0
	}
	if pwm > MaxPWM {
		return MaxPWM
	}
	return pwm
}

func (s Setpoints) values() []float64 {
	return []float64{s.Temperature, s.Humidity, s.CO2, s.Light, s.Moisture}
}
