// rover: waypoint-following server for differential-drive vehicles.
// Vehicles stream poses over WebSocket and receive motor commands back.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/journal"
	"github.com/teslashibe/go-rover/pkg/link"
	"github.com/teslashibe/go-rover/pkg/robot"
	"github.com/teslashibe/go-rover/pkg/web"
)

var (
	version    = "0.1.0"
	configPath = flag.String("config", "", "Path to JSON config file")
	addr       = flag.String("addr", "", "Listen address (overrides config)")
	dbPath     = flag.String("db", "", "Journal database path (overrides config)")
	serialPort = flag.String("serial", "", "Local motor board serial port (overrides config)")
	motorURL   = flag.String("motor-url", "", "Local motor daemon HTTP URL (overrides config)")
	preset     = flag.String("preset", "", "Tracker preset: default, slow, aggressive")
	debug      = flag.Bool("debug", false, "Enable debug logging and request logs")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rover: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(&cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Init(cfg.Log.Level)
	log.Info("go-rover starting", "version", version, "addr", cfg.Server.Addr, "preset", cfg.Tracker.Preset)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []link.Option

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, link.WithJournal(j))
		log.Info("journal open", "path", cfg.Journal.Path)
	}

	driver, err := openDriver(cfg)
	if err != nil {
		return err
	}
	if driver != nil {
		defer driver.Close()
		opts = append(opts, link.WithMotorSink(driver))

		if cfg.Watchdog.TimeoutMs > 0 {
			wd := robot.NewWatchdog(driver, cfg.Watchdog.Timeout(), cfg.Watchdog.Rate())
			go wd.Run(ctx)
			defer wd.Stop()
			opts = append(opts, link.WithWatchdog(wd))
		}
	}

	telemetry := hub.New("telemetry")
	opts = append(opts, link.WithTelemetry(telemetry))

	vehicles, err := link.NewHub(cfg.Tracker.Config, opts...)
	if err != nil {
		return err
	}

	server := web.NewServer(web.Options{
		Addr:      cfg.Server.Addr,
		Version:   version,
		Vehicles:  vehicles,
		Telemetry: telemetry,
		Tracker:   cfg.Tracker.Config,
		Debug:     *debug,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	log.Info("endpoints",
		"vehicle_ws", "/ws/vehicle/:id",
		"telemetry_ws", "/ws/telemetry",
		"api", "/api/vehicles")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	done := make(chan error, 1)
	go func() { done <- server.Shutdown() }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("shutdown timed out")
	}
}

// applyFlags lets command-line flags override file and environment values.
func applyFlags(cfg *config.App) error {
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Journal.Path = *dbPath
	}
	if *serialPort != "" {
		cfg.Serial.Port = *serialPort
	}
	if *motorURL != "" {
		cfg.Motor.URL = *motorURL
	}
	if *preset != "" {
		tc, err := config.PresetConfig(*preset)
		if err != nil {
			return err
		}
		cfg.Tracker.Preset = *preset
		cfg.Tracker.Config = tc
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	return nil
}

// openDriver returns the local motor driver, or nil when none is configured.
func openDriver(cfg config.App) (robot.Driver, error) {
	switch {
	case cfg.Serial.Port != "":
		d, err := robot.NewSerialDriver(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return nil, err
		}
		return d, nil
	case cfg.Motor.URL != "":
		log.Info("motor daemon", "url", cfg.Motor.URL)
		return robot.NewHTTPDriver(cfg.Motor.URL), nil
	}
	return nil, nil
}
