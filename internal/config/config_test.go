package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.ControllerSetpoints() != logic.DefaultSetpoints() {
		t.Errorf("default setpoints = %+v", cfg.ControllerSetpoints())
	}
	if cfg.Poll() != 100*time.Millisecond || cfg.StatusInterval() != time.Second {
		t.Errorf("loop timing = %v / %v", cfg.Poll(), cfg.StatusInterval())
	}
	if cfg.SerialReconnect() != 500*time.Millisecond || cfg.SerialSettle() != 2*time.Second {
		t.Errorf("serial timing = %v / %v", cfg.SerialReconnect(), cfg.SerialSettle())
	}
	if cfg.Actuators.Enabled {
		t.Error("actuators must be disabled by default")
	}
}

func TestDecodeOverridesDefaults(t *testing.T) {
	raw := []byte(`
[serial]
port = "/dev/ttyACM0"
baud_rate = 9600

[mqtt]
broker = "tcp://broker.local:1883"

[setpoints]
temperature = 22.5
moisture = 45

[storage]
sqlite_path = "/var/lib/greenhouse/cycles.db"

[actuators]
enabled = true
pump_pin = 5
`)
	cfg := Default()
	if err := Decode(raw, &cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyACM0" || cfg.Serial.BaudRate != 9600 {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.Serial.ReconnectMs != 500 {
		t.Errorf("unset keys must keep defaults, reconnect_ms = %d", cfg.Serial.ReconnectMs)
	}
	if cfg.MQTT.Broker != "tcp://broker.local:1883" || !cfg.MQTT.Enabled {
		t.Errorf("mqtt = %+v", cfg.MQTT)
	}
	sp := cfg.ControllerSetpoints()
	if sp.Temperature != 22.5 || sp.Moisture != 45 || sp.CO2 != 800 {
		t.Errorf("setpoints = %+v", sp)
	}
	if cfg.Pins().Pump != 5 || cfg.Pins().Fan != 27 {
		t.Errorf("pins = %+v", cfg.Pins())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	err := Decode([]byte("[setpoints]\ntemprature = 20\n"), &cfg)
	if err == nil {
		t.Fatal("expected error for misspelled key")
	}
	if !strings.Contains(err.Error(), "temprature") {
		t.Errorf("error should name the key: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"GREENHOUSE_SERIAL_PORT":       "COM3",
		"GREENHOUSE_BAUD_RATE":         "57600",
		"GREENHOUSE_MQTT_ENABLED":      "false",
		"GREENHOUSE_SETPOINT_HUMIDITY": "70.5",
		"GREENHOUSE_HTTP_ADDR":         "",
		"GREENHOUSE_ACTUATORS_ENABLED": "1",
		"GREENHOUSE_MQTT_PASSWORD":     "s3cret",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Serial.Port != "COM3" || cfg.Serial.BaudRate != 57600 {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.MQTT.Enabled || cfg.MQTT.Password != "s3cret" {
		t.Errorf("mqtt = %+v", cfg.MQTT)
	}
	if cfg.Setpoints.Humidity != 70.5 {
		t.Errorf("humidity setpoint = %g", cfg.Setpoints.Humidity)
	}
	if cfg.HTTP.Addr != "" {
		t.Errorf("an empty variable must still override, http addr = %q", cfg.HTTP.Addr)
	}
	if !cfg.Actuators.Enabled {
		t.Error("actuators should be enabled")
	}
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"GREENHOUSE_BAUD_RATE":    "fast",
		"GREENHOUSE_MQTT_ENABLED": "maybe",
		"GREENHOUSE_SETPOINT_CO2": "lots",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			cfg := Default()
			err := cfg.ApplyEnv(func(k string) (string, bool) {
				if k == key {
					return val, true
				}
				return "", false
			})
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Errorf("expected error naming %s, got %v", key, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero baud", func(c *Config) { c.Serial.BaudRate = 0 }, "baud_rate"},
		{"zero poll", func(c *Config) { c.Loop.PollMs = 0 }, "poll_ms"},
		{"negative status interval", func(c *Config) { c.Loop.StatusIntervalMs = -1 }, "status_interval_ms"},
		{"missing broker", func(c *Config) { c.MQTT.Broker = "" }, "mqtt.broker"},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"duplicate pin", func(c *Config) {
			c.Actuators.Enabled = true
			c.Actuators.LED = c.Actuators.Fan
		}, "used twice"},
		{"zero window", func(c *Config) {
			c.Actuators.Enabled = true
			c.Actuators.WindowMs = 0
		}, "window_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateIgnoresDisabledSections(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Enabled = false
	cfg.MQTT.Broker = ""
	cfg.Actuators.Fan = cfg.Actuators.LED
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled sections should not be validated: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greenhouse.toml")
	if err := os.WriteFile(path, []byte("[loop]\npoll_ms = 250\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll() != 250*time.Millisecond {
		t.Errorf("poll = %v, want 250ms", cfg.Poll())
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.toml")
	os.WriteFile(bad, []byte("[loop]\npoll_ms = 0\n"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Prefix != "greenhouse" {
		t.Errorf("prefix = %q", cfg.Storage.Prefix)
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "GREENHOUSE_DOTENV_TEST_KEY"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	os.WriteFile(path, []byte(key+"=from-file\n"), 0o644)

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Errorf("%s = %q, want from-file", key, got)
	}
}

func TestExampleFileMatchesDefaults(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "greenhouse.example.toml"))
	if err != nil {
		t.Fatalf("read example: %v", err)
	}
	var cfg Config
	if err := Decode(raw, &cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg != Default() {
		t.Errorf("example config drifted from defaults:\n got %+v\nwant %+v", cfg, Default())
	}
}
