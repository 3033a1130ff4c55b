// Package config loads the daemon configuration from a TOML file, an
// optional .env file and GREENHOUSE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/sweeney/greenhouse-controller/internal/actuator"
	"github.com/sweeney/greenhouse-controller/internal/logic"
)

// Config is the complete daemon configuration.
type Config struct {
	Serial    Serial    `toml:"serial"`
	MQTT      MQTT      `toml:"mqtt"`
	Setpoints Setpoints `toml:"setpoints"`
	Loop      Loop      `toml:"loop"`
	Storage   Storage   `toml:"storage"`
	Actuators Actuators `toml:"actuators"`
	HTTP      HTTP      `toml:"http"`
	Log       Log       `toml:"log"`
}

// Serial configures the sensor board link. An empty port auto-detects.
type Serial struct {
	Port          string `toml:"port"`
	BaudRate      int    `toml:"baud_rate"`
	ReadTimeoutMs int64  `toml:"read_timeout_ms"`
	SettleMs      int64  `toml:"settle_ms"`
	ReconnectMs   int64  `toml:"reconnect_ms"`
}

// MQTT configures the broker connection.
type MQTT struct {
	Enabled    bool   `toml:"enabled"`
	Broker     string `toml:"broker"`
	ClientID   string `toml:"client_id"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
	BufferSize int    `toml:"buffer_size"`
}

// Setpoints are the control targets.
type Setpoints struct {
	Temperature float64 `toml:"temperature"`
	Humidity    float64 `toml:"humidity"`
	CO2         float64 `toml:"co2"`
	Light       float64 `toml:"light"`
	Moisture    float64 `toml:"moisture"`
}

// Loop configures the control loop timing.
type Loop struct {
	PollMs           int64 `toml:"poll_ms"`
	StatusIntervalMs int64 `toml:"status_interval_ms"`
}

// Storage configures the persistence sinks. An empty SQLitePath disables SQLite.
type Storage struct {
	CSV             bool   `toml:"csv"`
	Dir             string `toml:"dir"`
	Prefix          string `toml:"prefix"`
	Training        bool   `toml:"training"`
	SQLitePath      string `toml:"sqlite_path"`
	SQLiteMaxCycles int    `toml:"sqlite_max_cycles"`
}

// Actuators configures the GPIO outputs.
type Actuators struct {
	Enabled    bool   `toml:"enabled"`
	Chip       string `toml:"chip"`
	WindowMs   int64  `toml:"window_ms"`
	Humidifier int    `toml:"humidifier_pin"`
	Fan        int    `toml:"fan_pin"`
	LED        int    `toml:"led_pin"`
	Pump       int    `toml:"pump_pin"`
}

// HTTP configures the status server. An empty address disables it.
type HTTP struct {
	Addr string `toml:"addr"`
}

// Log configures logging. An empty file logs to stderr only.
type Log struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Default returns the built-in configuration.
func Default() Config {
	sp := logic.DefaultSetpoints()
	return Config{
		Serial: Serial{
			BaudRate:      115200,
			ReadTimeoutMs: 100,
			SettleMs:      2000,
			ReconnectMs:   500,
		},
		MQTT: MQTT{
			Enabled:    true,
			Broker:     "tcp://localhost:1883",
			ClientID:   "greenhouse-controller",
			BufferSize: 1000,
		},
		Setpoints: Setpoints(sp),
		Loop: Loop{
			PollMs:           100,
			StatusIntervalMs: 1000,
		},
		Storage: Storage{
			CSV:      true,
			Dir:      "data",
			Prefix:   "greenhouse",
			Training: true,
		},
		Actuators: Actuators{
			Chip:       "gpiochip0",
			WindowMs:   actuator.DefaultWindow.Milliseconds(),
			Humidifier: actuator.DefaultPins.Humidifier,
			Fan:        actuator.DefaultPins.Fan,
			LED:        actuator.DefaultPins.LED,
			Pump:       actuator.DefaultPins.Pump,
		},
		HTTP: HTTP{Addr: ":8080"},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the TOML file at path over the defaults (an empty path uses the
// defaults only), applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := Decode(raw, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode decodes TOML into cfg, rejecting unknown keys.
func Decode(raw []byte, cfg *Config) error {
	err := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(cfg)
	if err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("decode config: %s", strict.String())
		}
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from GREENHOUSE_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"GREENHOUSE_SERIAL_PORT", &c.Serial.Port},
		{"GREENHOUSE_MQTT_BROKER", &c.MQTT.Broker},
		{"GREENHOUSE_MQTT_CLIENT_ID", &c.MQTT.ClientID},
		{"GREENHOUSE_MQTT_USERNAME", &c.MQTT.Username},
		{"GREENHOUSE_MQTT_PASSWORD", &c.MQTT.Password},
		{"GREENHOUSE_DATA_DIR", &c.Storage.Dir},
		{"GREENHOUSE_SQLITE_PATH", &c.Storage.SQLitePath},
		{"GREENHOUSE_HTTP_ADDR", &c.HTTP.Addr},
		{"GREENHOUSE_LOG_LEVEL", &c.Log.Level},
		{"GREENHOUSE_LOG_FILE", &c.Log.File},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"GREENHOUSE_BAUD_RATE", &c.Serial.BaudRate},
	}
	for _, i := range ints {
		if v, ok := lookup(i.key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", i.key, err)
			}
			*i.dst = n
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"GREENHOUSE_MQTT_ENABLED", &c.MQTT.Enabled},
		{"GREENHOUSE_ACTUATORS_ENABLED", &c.Actuators.Enabled},
	}
	for _, b := range bools {
		if v, ok := lookup(b.key); ok {
			x, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", b.key, err)
			}
			*b.dst = x
		}
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"GREENHOUSE_SETPOINT_TEMPERATURE", &c.Setpoints.Temperature},
		{"GREENHOUSE_SETPOINT_HUMIDITY", &c.Setpoints.Humidity},
		{"GREENHOUSE_SETPOINT_CO2", &c.Setpoints.CO2},
		{"GREENHOUSE_SETPOINT_LIGHT", &c.Setpoints.Light},
		{"GREENHOUSE_SETPOINT_MOISTURE", &c.Setpoints.Moisture},
	}
	for _, f := range floats {
		if v, ok := lookup(f.key); ok {
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = x
		}
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Serial.BaudRate > 0, "serial.baud_rate must be positive, got %d", c.Serial.BaudRate)
	check(c.Serial.ReadTimeoutMs > 0, "serial.read_timeout_ms must be positive, got %d", c.Serial.ReadTimeoutMs)
	check(c.Serial.SettleMs > 0, "serial.settle_ms must be positive, got %d", c.Serial.SettleMs)
	check(c.Serial.ReconnectMs > 0, "serial.reconnect_ms must be positive, got %d", c.Serial.ReconnectMs)

	if c.MQTT.Enabled {
		check(c.MQTT.Broker != "", "mqtt.broker is required when mqtt is enabled")
		check(c.MQTT.BufferSize > 0, "mqtt.buffer_size must be positive, got %d", c.MQTT.BufferSize)
	}

	sp := logic.Setpoints(c.Setpoints)
	for field, v := range sp.Map() {
		check(!math.IsNaN(v) && !math.IsInf(v, 0), "setpoints.%s must be finite", field)
	}

	check(c.Loop.PollMs > 0, "loop.poll_ms must be positive, got %d", c.Loop.PollMs)
	check(c.Loop.StatusIntervalMs >= 0, "loop.status_interval_ms must not be negative, got %d", c.Loop.StatusIntervalMs)
	check(c.Storage.SQLiteMaxCycles >= 0, "storage.sqlite_max_cycles must not be negative")

	if c.Actuators.Enabled {
		check(c.Actuators.WindowMs > 0, "actuators.window_ms must be positive, got %d", c.Actuators.WindowMs)
		seen := make(map[int]bool)
		for i, pin := range c.Pins().Offsets() {
			check(pin >= 0, "actuators.%s pin must not be negative", logic.OutputFields[i])
			check(!seen[pin], "actuators: pin %d used twice", pin)
			seen[pin] = true
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ControllerSetpoints converts the [setpoints] table.
func (c Config) ControllerSetpoints() logic.Setpoints {
	return logic.Setpoints(c.Setpoints)
}

// Pins returns the actuator pin assignment.
func (c Config) Pins() actuator.Pins {
	return actuator.Pins{
		Humidifier: c.Actuators.Humidifier,
		Fan:        c.Actuators.Fan,
		LED:        c.Actuators.LED,
		Pump:       c.Actuators.Pump,
	}
}

// Poll returns the loop period.
func (c Config) Poll() time.Duration { return ms(c.Loop.PollMs) }

// StatusInterval returns the status republish period.
func (c Config) StatusInterval() time.Duration { return ms(c.Loop.StatusIntervalMs) }

// ActuatorWindow returns the PWM window.
func (c Config) ActuatorWindow() time.Duration { return ms(c.Actuators.WindowMs) }

// SerialReadTimeout, SerialSettle and SerialReconnect return the serial timings.
func (c Config) SerialReadTimeout() time.Duration { return ms(c.Serial.ReadTimeoutMs) }
func (c Config) SerialSettle() time.Duration      { return ms(c.Serial.SettleMs) }
func (c Config) SerialReconnect() time.Duration   { return ms(c.Serial.ReconnectMs) }

func ms(n int64) time.Duration { return time.Duration(n) * time.Millisecond }
