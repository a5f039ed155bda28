package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentsight/agentsight/internal/agent"
	"github.com/agentsight/agentsight/internal/config"
	"github.com/agentsight/agentsight/internal/export"
	"github.com/agentsight/agentsight/internal/langfuse"
	"github.com/agentsight/agentsight/internal/server"
	"github.com/agentsight/agentsight/internal/session"
	"github.com/agentsight/agentsight/internal/sink"
	"github.com/agentsight/agentsight/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("AGENTSIGHT_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("agentsight", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	lf := langfuse.NewClient(langfuse.Config{
		Host:          cfg.Langfuse.Host,
		PublicKey:     cfg.Langfuse.PublicKey,
		SecretKey:     cfg.Langfuse.SecretKey,
		FlushInterval: cfg.Langfuse.FlushInterval,
		BatchSize:     cfg.Langfuse.BatchSize,
	}, logger)
	if lf.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := lf.HealthCheck(ctx); err != nil {
			logger.Warn("langfuse health check failed", slog.String("error", err.Error()))
		} else {
			logger.Info("langfuse connected", slog.String("host", cfg.Langfuse.Host))
		}
		cancel()
	}

	registry := agent.DefaultRegistry()

	sessions := session.NewManager(lf, logger,
		cfg.Session.Timeout, cfg.Session.CleanupInterval,
		session.Defaults{
			TraceName:   cfg.Langfuse.TraceName,
			Tags:        cfg.Langfuse.Tags,
			Environment: cfg.Langfuse.Environment,
		})
	sessions.Start()

	exporter := export.New(export.Config{
		Enabled:         cfg.Export.Enabled,
		Protocol:        cfg.Export.Protocol,
		Endpoint:        cfg.Export.Endpoint,
		LogsEndpoint:    cfg.Export.LogsEndpoint,
		MetricsEndpoint: cfg.Export.MetricsEndpoint,
		Timeout:         cfg.Export.Timeout,
		Retries:         cfg.Export.Retries,
		Headers:         cfg.Export.Headers(),
	}, logger)
	defer exporter.Close()

	handlers := server.NewHandlers(registry, sessions, sink.New(lf, logger),
		exporter, logger, cfg.Server.MaxBodyBytes, lf.Enabled())

	srv := server.New(cfg.Server.Port, cfg.Server.Timeout, logger, handlers)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		logger.Error("session shutdown error", slog.String("error", err.Error()))
	}
	if err := lf.Shutdown(shutdownCtx); err != nil {
		logger.Error("langfuse shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("receiver shutdown complete")
}
