package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"calculator-api/internal/cache"
	"calculator-api/internal/config"
	"calculator-api/internal/events"
	"calculator-api/internal/observability"
	"calculator-api/internal/service"
)

type shutdownFunc func(context.Context) error

// initTelemetry starts OTLP tracing, metrics and log export when enabled and
// registers the calculation instruments either way.
func initTelemetry(ctx context.Context, cfg config.Config) (shutdownFunc, error) {
	var shutdowns []shutdownFunc
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		return errors.Join(errs...)
	}

	if cfg.Telemetry.Enabled {
		traceShutdown, err := observability.InitTracing(ctx, cfg.Version)
		if err != nil {
			return nil, err
		}
		shutdowns = append(shutdowns, traceShutdown)

		metricShutdown, err := observability.InitMetrics(ctx, cfg.Version)
		if err != nil {
			_ = shutdown(ctx)
			return nil, err
		}
		shutdowns = append(shutdowns, metricShutdown)

		logShutdown, err := observability.InitLogging(ctx, cfg.Version)
		if err != nil {
			_ = shutdown(ctx)
			return nil, err
		}
		shutdowns = append(shutdowns, logShutdown)
	}

	if err := service.InitMetrics(); err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	return shutdown, nil
}

// initServiceOptions connects the optional Redis cache and Kafka producer.
// A backend that cannot be reached is logged and skipped: the calculator
// works without either.
func initServiceOptions(ctx context.Context, cfg config.Config) ([]service.Option, func()) {
	var (
		opts    []service.Option
		closers []func() error
	)
	log := observability.Logger

	if cfg.Redis.Enabled {
		cli, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, result cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			opts = append(opts, service.WithCache(cache.NewResultCache(cli, cfg.Redis, log)))
			closers = append(closers, cli.Close)
			log.Info("result cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
		}
	}

	if cfg.Kafka.Enabled {
		producer := events.NewProducer(cfg.Kafka, log)
		opts = append(opts, service.WithPublisher(producer))
		closers = append(closers, producer.Close)
		log.Info("calculation events enabled", zap.Strings("brokers", cfg.Kafka.BrokerList()), zap.String("topic", cfg.Kafka.Topic))
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn("close backend", zap.Error(err))
			}
		}
	}
	return opts, closeAll
}
