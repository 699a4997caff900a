// Command dbtrack serves leak reports and metrics for tracked database
// handles: a pgx-backed database/sql driver and, optionally, a pebble store.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/guileen/dbtrack/api"
	"github.com/guileen/dbtrack/config"
	"github.com/guileen/dbtrack/leak"
	"github.com/guileen/dbtrack/logger"
	"github.com/guileen/dbtrack/pebbletrack"
	"github.com/guileen/dbtrack/sqltrack"
	"github.com/guileen/dbtrack/tracker"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", logger.ErrorField(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("dbtrack exited with error", logger.ErrorField(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	startTime := time.Now()
	l := logger.NewLogger(cfg.Log.LoggerConfig(os.Stdout))
	logger.SetDefault(l)

	metrics := leak.NewMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := &tracker.Options{Logger: l, Observer: metrics}
	registrar := tracker.NewRegistrar(opts)
	defer registrar.Close()

	drv, err := sqltrack.Register(registrar, cfg.Postgres.DriverName, stdlib.GetDefaultDriver(), opts)
	if err != nil {
		return err
	}
	l.Info("Tracked SQL driver registered", logger.String("driver", cfg.Postgres.DriverName))

	if cfg.Postgres.DSN != "" {
		db, err := openPostgres(ctx, drv, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	if cfg.Pebble.Enabled {
		engine, err := pebbletrack.Register(registrar, "pebble", opts)
		if err != nil {
			return err
		}
		pdb, err := engine.Open(&cfg.Pebble.Config)
		if err != nil {
			return err
		}
		defer pdb.Close()
		l.Info("Tracked pebble store opened", logger.String("path", cfg.Pebble.Path), logger.Bool("in_memory", cfg.Pebble.InMemory))
	}

	detector := leak.NewDetector(registrar, l, metrics)
	detector.SetLeakThreshold(cfg.Leak.Threshold)
	detector.StartMonitoring(ctx, cfg.Leak.Interval)
	defer detector.StopMonitoring()

	r := api.NewRouter(api.NewDebugHandler(registrar, detector, registry))
	api.RegisterPprof(r)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		l.Info("HTTP server listening", logger.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	l.Info("dbtrack initialized", logger.Duration("init_duration", time.Since(startTime)))

	select {
	case err := <-serveErr:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdownStart := time.Now()
	l.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http server shutdown")
	}
	l.Info("HTTP server shutdown complete", logger.Duration("shutdown_duration", time.Since(shutdownStart)))
	return nil
}

func openPostgres(ctx context.Context, drv *sqltrack.Driver, dsn string) (*sql.DB, error) {
	db, err := sqltrack.OpenPgx(drv, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Warn("Postgres not reachable yet", logger.ErrorField(err))
	}
	return db, nil
}
