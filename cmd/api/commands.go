package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Modett/modett-ecommerce-platform-sub000/internal/config"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/awsconf"
	"github.com/Modett/modett-ecommerce-platform-sub000/internal/infrastructure/dynamo"
	transporthttp "github.com/Modett/modett-ecommerce-platform-sub000/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AppEnv == "development" && cfg.StorageDriver == "dynamo" {
		if err := bootstrap(ctx, cfg); err != nil {
			return err
		}
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	a.cleaner.Start(ctx)
	defer a.cleaner.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, a.deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func bootstrap(ctx context.Context, cfg *config.Config) error {
	awsCfg, err := awsconf.Load(ctx, cfg, "")
	if err != nil {
		return err
	}
	dynamo.Bootstrap(ctx, dynamo.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.DynamoTables)
	return nil
}

func cleanupOnce(ctx context.Context, cfg *config.Config) error {
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.cleaner.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	slog.Info("cleanup finished", "tokens", report.Tokens, "rate_limits", report.RateLimits, "audit_logs", report.AuditLogs)
	return nil
}
