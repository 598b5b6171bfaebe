package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"calculator-api/internal/calculator"
	"calculator-api/internal/config"
	"calculator-api/internal/grpcapi"
	"calculator-api/internal/observability"
	"calculator-api/internal/ratelimit"
	"calculator-api/internal/server"
	"calculator-api/internal/service"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Logger
	if err := observability.InitLogger(cfg.LogLevel, cfg.Env); err != nil {
		return err
	}
	defer observability.SyncLogger()

	// Tracing, metrics, log export
	telemetryShutdown, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := telemetryShutdown(context.WithoutCancel(ctx)); err != nil {
			observability.Logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	// Service
	opts, closeBackends := initServiceOptions(ctx, cfg)
	defer closeBackends()

	calc := calculator.New(
		calculator.WithCaseInsensitive(cfg.Calculator.CaseInsensitive),
		calculator.WithSymbols(cfg.Calculator.Symbols),
	)
	svc := service.New(calc, opts...)

	// HTTP
	var limiter *ratelimit.MapLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: server.NewRouter(server.Deps{
			Service:        svc,
			Version:        cfg.Version,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			Limiter:        limiter,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		observability.Logger.Info("http server started", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// gRPC
	var grpcSrv *grpcapi.Server
	if cfg.Grpc.Enabled {
		grpcSrv = grpcapi.NewServer(cfg.Grpc.Addr(), svc, observability.Logger)
		go func() {
			observability.Logger.Info("grpc server started", zap.String("addr", cfg.Grpc.Addr()))
			if err := grpcSrv.Start(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		observability.Logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		observability.Logger.Error("server failed", zap.Error(serveErr))
	}

	return errors.Join(serveErr, waitForShutdown(cfg, srv, grpcSrv))
}

func waitForShutdown(cfg config.Config, srv *http.Server, grpcSrv *grpcapi.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if grpcSrv != nil {
		if err := grpcSrv.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("grpc shutdown: %w", err))
		}
	}

	observability.Logger.Info("server stopped")
	return errors.Join(errs...)
}
