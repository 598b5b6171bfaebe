// Command events consumes calculation events from Kafka, logs them and
// exposes per-operation counters on /metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"calculator-api/internal/config"
	"calculator-api/internal/events"
	"calculator-api/internal/handlers"
	"calculator-api/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return errors.New("kafka is disabled, set CALCULATOR_KAFKA_ENABLED=true")
	}

	if err := observability.InitLogger(cfg.LogLevel, cfg.Env); err != nil {
		return err
	}
	defer observability.SyncLogger()
	log := observability.Logger.With(zap.String("component", "events"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tally, err := events.NewTally(prometheus.DefaultRegisterer, log)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(observability.RecoverMiddleware)
	r.Get("/health", handlers.Health(cfg.Version, nil))
	r.Handle("/metrics", observability.PrometheusHandler())
	r.NotFound(handlers.NotFound)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
	go func() {
		log.Info("metrics server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
			stop()
		}
	}()

	consumer := events.NewConsumer(cfg.Kafka, log)
	defer func() {
		if err := consumer.Close(); err != nil {
			log.Warn("close consumer", zap.Error(err))
		}
	}()

	log.Info("consuming calculation events",
		zap.Strings("brokers", cfg.Kafka.BrokerList()),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.GroupID),
	)
	runErr := consumer.Run(ctx, tally.Handle)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(runErr, srv.Shutdown(shutdownCtx))
}
