// Package main is the entry point for the millstock API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"millstock/internal/app"
	"millstock/internal/config"
	v1 "millstock/internal/infrastructure/http/v1"
	"millstock/internal/infrastructure/http/v1/handlers"
	"millstock/internal/infrastructure/telemetry"
	"millstock/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting millstock server", "version", version, "storage", cfg.Storage)

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:      cfg.Telemetry.Endpoint,
		SamplingRatio: cfg.Telemetry.Sampling,
		Insecure:      cfg.Telemetry.Insecure,
		Version:       version,
	})
	if err != nil {
		log.Fatalw("failed to set up telemetry", "error", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warnw("telemetry shutdown", "error", err)
		}
	}()

	rt, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer rt.Close()

	checks := map[string]handlers.HealthChecker{}
	if rt.Pool != nil {
		checks["database"] = rt.Pool
	}
	if rt.Locker != nil {
		checks["redis"] = rt.Locker
	}

	serviceName := ""
	if cfg.Telemetry.Endpoint != "" {
		serviceName = telemetry.ServiceName
	}

	router := v1.NewRouter(v1.RouterConfig{
		App:          rt.App,
		Logger:       log,
		ServiceName:  serviceName,
		HealthChecks: checks,
		Idempotency:  rt.Idempotency,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
