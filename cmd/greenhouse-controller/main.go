// Command greenhouse-controller reads sensor lines from the greenhouse board,
// computes actuator duty values with the fuzzy controller, and publishes,
// stores and applies them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/sweeney/greenhouse-controller/internal/actuator"
	"github.com/sweeney/greenhouse-controller/internal/config"
	"github.com/sweeney/greenhouse-controller/internal/logging"
	"github.com/sweeney/greenhouse-controller/internal/logic"
	"github.com/sweeney/greenhouse-controller/internal/metrics"
	"github.com/sweeney/greenhouse-controller/internal/mqtt"
	"github.com/sweeney/greenhouse-controller/internal/serial"
	"github.com/sweeney/greenhouse-controller/internal/status"
	"github.com/sweeney/greenhouse-controller/internal/storage"
	"github.com/sweeney/greenhouse-controller/internal/web"
)

func main() {
	configPath := flag.String("config", "", "TOML config file (empty for built-in defaults)")
	envFile := flag.String("env", ".env", "dotenv file loaded before GREENHOUSE_* overrides")
	once := flag.String("once", "", `compute outputs for one sensor line (e.g. "27,70,1100,90,50"), print them and exit`)
	verbose := flag.Bool("verbose", false, "Log at debug level")

	flag.Parse()

	if err := run(*configPath, *envFile, *once, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile, once string, verbose bool) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	controller, err := logic.NewDefaultController(cfg.ControllerSetpoints())
	if err != nil {
		return fmt.Errorf("init controller: %w", err)
	}

	// One-shot mode
	if once != "" {
		out, err := computeLine(controller, once, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(formatOutputs(out))
		return nil
	}

	log, closeLog, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Verbose:    verbose,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closeLog()

	// Initialize serial
	reader := serial.NewRealReader(serial.Options{
		Port:              cfg.Serial.Port,
		BaudRate:          cfg.Serial.BaudRate,
		ReadTimeout:       cfg.SerialReadTimeout(),
		Settle:            cfg.SerialSettle(),
		ReconnectInterval: cfg.SerialReconnect(),
	}, log)
	defer reader.Close()

	d := &daemon{
		log:        log,
		reader:     reader,
		controller: controller,
		link:       logic.NewLinkMonitor(cfg.StatusInterval()),
		now:        time.Now,
	}

	// Initialize MQTT
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Username:   cfg.MQTT.Username,
			Password:   cfg.MQTT.Password,
			BufferSize: cfg.MQTT.BufferSize,
		}, log)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer pub.Close()
		d.publisher = pub
		d.mqttStatus = pub
	} else {
		log.Info("mqtt disabled")
	}

	// Initialize storage
	sinks, err := openSinks(cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer sinks.Close()
	if len(sinks) > 0 {
		d.sink = sinks
	}

	// Initialize actuators
	if cfg.Actuators.Enabled {
		w, err := actuator.NewRealWriter(cfg.Actuators.Chip, cfg.Pins(), cfg.ActuatorWindow(), log)
		if err != nil {
			return fmt.Errorf("init actuators: %w", err)
		}
		defer w.Close()
		d.writer = w
	} else {
		log.Info("actuators disabled, outputs are published and stored only")
	}

	d.tracker = status.NewTracker(time.Now(), status.Config{
		PollMs:           cfg.Loop.PollMs,
		StatusIntervalMs: cfg.Loop.StatusIntervalMs,
		SerialPort:       cfg.Serial.Port,
		BaudRate:         cfg.Serial.BaudRate,
		Broker:           brokerOrDisabled(cfg.MQTT),
		HTTPAddr:         cfg.HTTP.Addr,
		Setpoints:        cfg.ControllerSetpoints(),
		ActuatorsEnabled: cfg.Actuators.Enabled,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.metrics = metrics.New(reg)

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, d.tracker, controller, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	log.Info("started",
		zap.Duration("poll", cfg.Poll()),
		zap.Duration("status_interval", cfg.StatusInterval()),
		zap.String("port", portOrAuto(cfg.Serial.Port)),
		zap.Int("baud", cfg.Serial.BaudRate),
		zap.String("broker", brokerOrDisabled(cfg.MQTT)),
		zap.Any("setpoints", cfg.ControllerSetpoints().Map()),
	)

	ticker := time.NewTicker(cfg.Poll())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return d.runLoop(ticker.C, sigCh)
}

// daemon holds the control loop's collaborators. Optional sinks are nil
// when disabled.
type daemon struct {
	log        *zap.Logger
	reader     serial.Reader
	controller *logic.Controller
	link       *logic.LinkMonitor
	now        func() time.Time

	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	sink       storage.Sink
	writer     actuator.Writer
	tracker    *status.Tracker
	metrics    *metrics.Metrics
}

func (d *daemon) runLoop(tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			d.log.Info("shutting down", zap.Stringer("signal", s))
			if d.publisher != nil {
				if err := d.publisher.PublishStatus(logic.LinkOffline); err != nil {
					d.log.Warn("failed to publish offline status", zap.Error(err))
				}
			}
			return nil

		case <-tick:
			d.step(d.now())
		}
	}
}

// step runs one poll: link bookkeeping, then at most one sensor line.
func (d *daemon) step(t time.Time) {
	connected := d.reader.EnsureConnected(t)
	u := d.link.Observe(connected, t)
	if u.Changed {
		if u.State == logic.LinkOnline {
			d.log.Info("sensor link online", zap.String("port", d.reader.Port()))
		} else {
			d.log.Warn("sensor link offline", zap.String("previous", string(u.Prev)))
		}
	}
	if d.tracker != nil {
		d.tracker.SetSerial(connected, d.reader.Port(), u.State, d.link.Counts())
	}
	if d.metrics != nil {
		d.metrics.SetLink(u.State)
	}
	if d.mqttStatus != nil {
		up := d.mqttStatus.IsConnected()
		if d.tracker != nil {
			d.tracker.SetMQTTConnected(up)
		}
		if d.metrics != nil {
			d.metrics.SetMQTTConnected(up)
		}
	}

	if u.Publish && d.publisher != nil {
		if err := d.publisher.PublishStatus(u.State); err != nil {
			d.fail(status.CounterPublishErrors, "status publish error", err)
		}
	}

	if !connected {
		return
	}
	line, err := d.reader.ReadLine()
	if err != nil {
		d.fail(status.CounterSerialErrors, "serial read error", err)
		return
	}
	if line == "" {
		return
	}
	d.handleLine(line, t)
}

// handleLine runs one control cycle. Failures past the controller are
// logged and counted but do not stop the remaining sinks.
func (d *daemon) handleLine(line string, t time.Time) {
	rec, err := serial.ParseLine(line, t)
	if err != nil {
		d.fail(status.CounterParseErrors, "discarding sensor line", err, zap.String("line", line))
		return
	}

	if d.publisher != nil {
		if err := d.publisher.PublishSensors(rec); err != nil {
			d.fail(status.CounterPublishErrors, "sensor publish error", err)
		}
	}

	start := time.Now()
	diag, err := d.controller.Diagnose(rec.Controlled)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, logic.ErrInvalidInput) {
			d.fail(status.CounterInvalidInputs, "skipping cycle", err, zap.String("line", line))
			return
		}
		d.log.Error("controller error", zap.Error(err))
		return
	}

	out := diag.Outputs
	d.log.Info("cycle",
		zap.Float64("temperature", rec.Controlled.Temperature),
		zap.Float64("humidity", rec.Controlled.Humidity),
		zap.Float64("co2", rec.Controlled.CO2),
		zap.Float64("light", rec.Controlled.Light),
		zap.Float64("moisture", rec.Controlled.Moisture),
		zap.Int(logic.FieldHumidifierPWM, out.HumidifierPWM),
		zap.Int(logic.FieldFanPWM, out.FanPWM),
		zap.Int(logic.FieldLEDPWM, out.LEDPWM),
		zap.Int(logic.FieldPumpPWM, out.PumpPWM),
	)
	if fb := diag.Fallbacks(); len(fb) > 0 {
		d.log.Debug("no rule fired, output off", zap.Strings("engines", fb))
	}

	if d.publisher != nil {
		if err := d.publisher.PublishOutputs(out); err != nil {
			d.fail(status.CounterPublishErrors, "output publish error", err)
		}
	}
	if d.sink != nil {
		if err := d.sink.Store(storage.Cycle{Record: rec, Outputs: out}); err != nil {
			d.fail(status.CounterStorageErrors, "storage error", err)
		}
	}
	if d.writer != nil {
		if err := d.writer.Apply(out); err != nil {
			d.fail(status.CounterActuatorErrors, "actuator error", err)
		}
	}

	if d.tracker != nil {
		d.tracker.RecordCycle(rec, diag, elapsed)
	}
	if d.metrics != nil {
		d.metrics.ObserveCycle(rec, diag, elapsed)
	}
}

// fail logs a per-cycle error and counts it in the tracker and metrics.
func (d *daemon) fail(c status.Counter, msg string, err error, fields ...zap.Field) {
	d.log.Warn(msg, append(fields, zap.Error(err))...)
	if d.tracker != nil {
		d.tracker.Inc(c)
	}
	if d.metrics != nil {
		if counter := errorCounter(d.metrics, c); counter != nil {
			counter.Inc()
		}
	}
}

func errorCounter(m *metrics.Metrics, c status.Counter) prometheus.Counter {
	switch c {
	case status.CounterParseErrors:
		return m.ParseErrors
	case status.CounterInvalidInputs:
		return m.InvalidInputs
	case status.CounterPublishErrors:
		return m.PublishErrors
	case status.CounterStorageErrors:
		return m.StorageErrors
	case status.CounterActuatorErrors:
		return m.ActuatorErrors
	case status.CounterSerialErrors:
		return m.SerialErrors
	}
	return nil
}

// openSinks opens the enabled persistence sinks. The result may be empty.
func openSinks(cfg config.Storage) (storage.Multi, error) {
	var sinks storage.Multi
	if cfg.CSV {
		s, err := storage.NewCSVStore(storage.CSVOptions{
			Dir:      cfg.Dir,
			Prefix:   cfg.Prefix,
			Training: cfg.Training,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.SQLitePath != "" {
		s, err := storage.NewSQLiteStore(cfg.SQLitePath, cfg.SQLiteMaxCycles)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// computeLine runs the controller on one sensor line.
func computeLine(c *logic.Controller, line string, now time.Time) (logic.Outputs, error) {
	rec, err := serial.ParseLine(line, now)
	if err != nil {
		return logic.Outputs{}, err
	}
	return c.Compute(rec.Controlled)
}

func formatOutputs(out logic.Outputs) string {
	return fmt.Sprintf("%s=%d %s=%d %s=%d %s=%d",
		logic.FieldHumidifierPWM, out.HumidifierPWM,
		logic.FieldFanPWM, out.FanPWM,
		logic.FieldLEDPWM, out.LEDPWM,
		logic.FieldPumpPWM, out.PumpPWM,
	)
}

func portOrAuto(port string) string {
	if port == "" {
		return "auto"
	}
	return port
}

func brokerOrDisabled(cfg config.MQTT) string {
	if !cfg.Enabled {
		return "disabled"
	}
	return cfg.Broker
}
