package logic

import (
	"fmt"

	"github.com/sweeney/greenhouse-controller/internal/fuzzy"
)

// Antecedent and consequent variable names.
const (
	VarTempError     = "temp_error"
	VarHumError      = "hum_error"
	VarCO2Error      = "co2_error"
	VarLightError    = "light_error"
	VarMoistureError = "moisture_error"

	VarHumidifier = "humidifier"
	VarFan        = "fan"
	VarLED        = "led"
	VarPump       = "pump"
)

// Engines holds the four independent inference systems.
type Engines struct {
	Humidifier *fuzzy.Engine
	Fan        *fuzzy.Engine
	LED        *fuzzy.Engine
	Pump       *fuzzy.Engine
}

func (e Engines) validate() error {
	checks := []struct {
		name   string
		engine *fuzzy.Engine
		inputs []string
	}{
		{VarHumidifier, e.Humidifier, []string{VarTempError, VarHumError}},
		{VarFan, e.Fan, []string{VarTempError, VarCO2Error}},
		{VarLED, e.LED, []string{VarLightError}},
		{VarPump, e.Pump, []string{VarMoistureError}},
	}
	for _, c := range checks {
		if c.engine == nil {
			return fmt.Errorf("%w: %s engine is nil", fuzzy.ErrConfiguration, c.name)
		}
		allowed := make(map[string]bool, len(c.inputs))
		for _, in := range c.inputs {
			allowed[in] = true
		}
		for _, in := range c.engine.Inputs() {
			if !allowed[in] {
				return fmt.Errorf("%w: %s engine uses unsupported input %q", fuzzy.ErrConfiguration, c.name, in)
			}
		}
	}
	return nil
}

var (
	errorUniverse  = fuzzy.Universe{Min: -5, Max: 5}
	outputUniverse = fuzzy.Universe{Min: 0, Max: 100}
)

func tempErrorVar() *fuzzy.Variable {
	return fuzzy.MustVariable(VarTempError, errorUniverse,
		fuzzy.Tri("Cold", -5, -5, 0),
		fuzzy.Tri("Normal", -1, 0, 1),
		fuzzy.Tri("Hot", 0, 5, 5),
	)
}

// fourLevelOutput is shared by the humidifier and fan consequents.
func fourLevelOutput(name string) *fuzzy.Variable {
	return fuzzy.MustVariable(name, outputUniverse,
		fuzzy.Tri("OFF", 0, 0, 25),
		fuzzy.Tri("LOW", 20, 40, 60),
		fuzzy.Tri("MED", 50, 70, 90),
		fuzzy.Tri("HIGH", 80, 100, 100),
	)
}

// NewHumidifierEngine builds the humidifier system from temperature and humidity errors.
func NewHumidifierEngine() (*fuzzy.Engine, error) {
	hum := fuzzy.MustVariable(VarHumError, fuzzy.Universe{Min: -30, Max: 30},
		fuzzy.Tri("Low", -30, -30, 0),
		fuzzy.Tri("OK", -10, 0, 10),
		fuzzy.Tri("High", 0, 30, 30),
	)
	return fuzzy.NewEngine(VarHumidifier, []*fuzzy.Variable{tempErrorVar(), hum}, fourLevelOutput(VarHumidifier), []fuzzy.Rule{
		fuzzy.If(fuzzy.Is(VarHumError, "High")).Then("OFF"),
		fuzzy.If(fuzzy.Is(VarHumError, "OK")).Then("LOW"),
		fuzzy.If(fuzzy.Is(VarHumError, "Low")).Then("HIGH"),
		fuzzy.If(fuzzy.Is(VarTempError, "Hot"), fuzzy.Is(VarHumError, "Low")).Then("HIGH"),
		fuzzy.If(fuzzy.Is(VarTempError, "Cold"), fuzzy.Is(VarHumError, "High")).Then("OFF"),
		fuzzy.If(fuzzy.Is(VarTempError, "Normal"), fuzzy.Is(VarHumError, "Low")).Then("MED"),
	})
}

// NewFanEngine builds the fan system: one rule per temperature x CO2 combination.
func NewFanEngine() (*fuzzy.Engine, error) {
	co2 := fuzzy.MustVariable(VarCO2Error, fuzzy.Universe{Min: -1000, Max: 1000},
		fuzzy.Tri("Low", -1000, -1000, 0),
		fuzzy.Tri("OK", -300, 0, 300),
		fuzzy.Tri("High", 0, 1000, 1000),
	)
	table := []struct{ temp, co2, out string }{
		{"Cold", "Low", "OFF"},
		{"Cold", "OK", "LOW"},
		{"Cold", "High", "MED"},

		{"Normal", "Low", "LOW"},
		{"Normal", "OK", "LOW"},
		{"Normal", "High", "HIGH"},

		{"Hot", "Low", "MED"},
		{"Hot", "OK", "HIGH"},
		{"Hot", "High", "HIGH"},
	}
	rules := make([]fuzzy.Rule, 0, len(table))
	for _, r := range table {
		rules = append(rules, fuzzy.If(fuzzy.Is(VarTempError, r.temp), fuzzy.Is(VarCO2Error, r.co2)).Then(r.out))
	}
	return fuzzy.NewEngine(VarFan, []*fuzzy.Variable{tempErrorVar(), co2}, fourLevelOutput(VarFan), rules)
}

// NewLEDEngine builds the grow-light system from the light error.
func NewLEDEngine() (*fuzzy.Engine, error) {
	light := fuzzy.MustVariable(VarLightError, fuzzy.Universe{Min: -200, Max: 200},
		fuzzy.Tri("Bright", -200, -200, 0),
		fuzzy.Tri("OK", -50, 0, 50),
		fuzzy.Tri("Dark", 0, 200, 200),
	)
	led := fuzzy.MustVariable(VarLED, outputUniverse,
		fuzzy.Tri("OFF", 0, 0, 20),
		fuzzy.Tri("LOW", 15, 35, 55),
		fuzzy.Tri("MEDIUM", 50, 70, 90),
		fuzzy.Tri("HIGH", 80, 100, 100),
	)
	return fuzzy.NewEngine(VarLED, []*fuzzy.Variable{light}, led, []fuzzy.Rule{
		fuzzy.If(fuzzy.Is(VarLightError, "Bright")).Then("OFF"),
		fuzzy.If(fuzzy.Is(VarLightError, "OK")).Then("LOW"),
		fuzzy.If(fuzzy.Is(VarLightError, "Dark")).Then("HIGH"),
	})
}

// NewPumpEngine builds the irrigation system from the soil moisture error.
func NewPumpEngine() (*fuzzy.Engine, error) {
	moisture := fuzzy.MustVariable(VarMoistureError, fuzzy.Universe{Min: -40, Max: 40},
		fuzzy.Tri("Wet", -40, -40, 0),
		fuzzy.Tri("OK", -10, 0, 10),
		fuzzy.Tri("Dry", 0, 40, 40),
	)
	pump := fuzzy.MustVariable(VarPump, outputUniverse,
		fuzzy.Tri("OFF", 0, 0, 20),
		fuzzy.Tri("LOW", 15, 35, 55),
		fuzzy.Tri("HIGH", 50, 75, 100),
	)
	return fuzzy.NewEngine(VarPump, []*fuzzy.Variable{moisture}, pump, []fuzzy.Rule{
		fuzzy.If(fuzzy.Is(VarMoistureError, "Wet")).Then("OFF"),
		fuzzy.If(fuzzy.Is(VarMoistureError, "OK")).Then("OFF"),
		fuzzy.If(fuzzy.Is(VarMoistureError, "Dry")).Then("HIGH"),
	})
}

// DefaultEngines builds the four stock rule tables.
func DefaultEngines() (Engines, error) {
	var (
		e   Engines
		err error
	)
	if e.Humidifier, err = NewHumidifierEngine(); err != nil {
		return Engines{}, fmt.Errorf("humidifier: %w", err)
	}
	if e.Fan, err = NewFanEngine(); err != nil {
		return Engines{}, fmt.Errorf("fan: %w", err)
	}
	if e.LED, err = NewLEDEngine(); err != nil {
		return Engines{}, fmt.Errorf("led: %w", err)
	}
	if e.Pump, err = NewPumpEngine(); err != nil {
		return Engines{}, fmt.Errorf("pump: %w", err)
	}
	return e, nil
}
