package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"adserver/config"
	"adserver/core/events"
	"adserver/native/adserver"
	"adserver/observability/logging"
	"adserver/observability/metrics"
	telemetry "adserver/observability/otel"
	"adserver/rpc"
	"adserver/storage"
)

const serviceName = "adserverd"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./adserver.toml", "path to adserverd configuration")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "adserverd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv("ADSERVER_ENV")); override != "" {
		env = override
	}
	logger := logging.Setup(serviceName, env, logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	opts := cfg.StorageOptions()
	opts.Logger = logger
	db, err := storage.Open(opts)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", opts.Backend, err)
	}
	defer db.Close()
	logger.Info("storage opened", slog.String("backend", opts.Backend), slog.String("path", opts.Path))

	m := metrics.AdServer()
	engine := newEngine(db, m, logger)
	if cfg.AutoInstantiate {
		if err := ensureInstantiated(engine, logger); err != nil {
			return err
		}
	}

	srv, err := rpc.New(rpc.Config{
		ListenAddress: cfg.ListenAddress,
		ReadTimeout:   time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout:  time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
		IdleTimeout:   time.Duration(cfg.HTTP.IdleTimeout) * time.Second,
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
	}, engine, logger, m, nil)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("adserverd stopped")
	return nil
}

func newEngine(db storage.Database, m *metrics.AdServerMetrics, logger *slog.Logger) *adserver.Engine {
	engine := adserver.NewEngine()
	engine.SetState(adserver.NewKVStore(db))
	engine.SetEmitter(events.Fanout{m, eventLogger{logger: logger}})
	engine.SetLogger(logger)
	return engine
}

// ensureInstantiated writes an empty registry when the store holds none. An
// existing blob is never overwritten, even if it fails to decode.
func ensureInstantiated(engine *adserver.Engine, logger *slog.Logger) error {
	ok, err := engine.Instantiated()
	if err != nil {
		return fmt.Errorf("inspect registry: %w", err)
	}
	if ok {
		return nil
	}
	if _, err := engine.Instantiate(); err != nil {
		return fmt.Errorf("instantiate registry: %w", err)
	}
	logger.Info("empty registry instantiated")
	return nil
}

type eventLogger struct {
	logger *slog.Logger
}

func (l eventLogger) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	l.logger.Debug("event emitted", slog.String("type", evt.EventType()))
}
