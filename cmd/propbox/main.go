// Command propbox runs an escape-room prop: GPIO driven game modules whose
// state is served on an HTTP dashboard and published to MQTT.
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

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/propbox/internal/config"
	"github.com/sweeney/propbox/internal/gpio"
	"github.com/sweeney/propbox/internal/logging"
	"github.com/sweeney/propbox/internal/metrics"
	"github.com/sweeney/propbox/internal/module"
	"github.com/sweeney/propbox/internal/mqtt"
	"github.com/sweeney/propbox/internal/status"
	"github.com/sweeney/propbox/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	cfg, printState, err := parseFlags(cfg, os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.DevLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg, logger, printState); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

// parseFlags applies command-line overrides to cfg and validates the result.
func parseFlags(cfg config.Config, args []string) (config.Config, bool, error) {
	fs := flag.NewFlagSet("propbox", flag.ContinueOnError)
	fs.StringVar(&cfg.Game, "game", cfg.Game, `Game to run ("bomb" or "wires")`)
	fs.StringVar(&cfg.Chip, "chip", cfg.Chip, "GPIO chip name")
	fs.StringVar(&cfg.Pull, "pull", cfg.Pull, `Input bias ("down", "up" or "none")`)
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP dashboard address (empty to disable)")
	fs.StringVar(&cfg.Broker, "broker", cfg.Broker, "MQTT broker address (empty to disable)")
	fs.DurationVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.DurationVar(&cfg.Debounce, "debounce", cfg.Debounce, "Input debounce duration")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	fs.BoolVar(&cfg.DevLog, "dev", cfg.DevLog, "Human readable development logging")
	printState := fs.Bool("print-state", false, "Print the wire inputs and exit")
	if err := fs.Parse(args); err != nil {
		return cfg, false, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, false, fmt.Errorf("validate: %w", err)
	}
	return cfg, *printState, nil
}

func run(cfg config.Config, logger *zap.Logger, printState bool) (err error) {
	chip, err := gpio.NewChip(cfg.Chip, gpio.ParsePull(cfg.Pull))
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() { err = multierr.Append(err, chip.Close()) }()

	if printState {
		return printWires(os.Stdout, chip, cfg.Pins.Wires)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	session := uuid.NewString()
	board := status.NewBoard(nil, status.Config{
		Game:        cfg.Game,
		FrequencyHz: cfg.Frequency,
		DebounceMs:  cfg.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTPAddr,
		SessionID:   session,
	})

	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = mqtt.NopPublisher{}
	if cfg.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:             cfg.Broker,
			Logger:             logger,
			Metrics:            m,
			OnConnectionChange: board.SetMQTTConnected,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = p
	}
	defer publisher.Close()

	opts := []module.Option{
		module.WithFrequency(cfg.Frequency),
		module.WithLogger(logger),
		module.WithMetrics(m),
	}
	g, err := newGame(cfg, chip, publisher, session, opts...)
	if err != nil {
		return fmt.Errorf("build game: %w", err)
	}
	if err := g.root.Begin(); err != nil {
		return fmt.Errorf("begin %s: %w", g.root.Name(), err)
	}
	g.root.Start()

	l := &loop{
		game:       g,
		publisher:  publisher,
		mqttStatus: publisher,
		board:      board,
		logger:     logger,
		heartbeat:  cfg.Heartbeat,
		session:    session,
		now:        time.Now,
	}
	l.baseline()

	snap := board.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		logger.Warn("failed to publish startup event", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, board, reg, logger)
		eg.Go(func() error {
			logger.Info("http dashboard listening", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("started",
		zap.String("game", cfg.Game),
		zap.String("session", session),
		zap.Int("frequency_hz", cfg.Frequency),
		zap.Duration("debounce", cfg.Debounce),
		zap.String("broker", cfg.Broker),
		zap.Duration("heartbeat", cfg.Heartbeat),
	)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	eg.Go(func() error {
		defer cancel()
		return l.run(ctx, ticker.C, sigCh)
	})
	return eg.Wait()
}
