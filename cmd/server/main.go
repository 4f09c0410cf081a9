package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-media/internal/logging"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
)

// Settings are the process-level options that sit outside the library config.
type Settings struct {
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	LogFormat       string        `env:"LOG_FORMAT" env-default:"json"`
	JWTSecret       string        `env:"JWT_SECRET"`
	APIPrefix       string        `env:"API_PREFIX" env-default:"/api/v1"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	var settings Settings
	if err := cleanenv.ReadEnv(&settings); err != nil {
		slog.Error("Failed to read settings", "err", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat})

	serverConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	if err := run(settings, serverConfig); err != nil {
		slog.Error("Server error", "err", err)
		os.Exit(1)
	}
}

func run(settings Settings, serverConfig *config.ServerConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	if err := serverConfig.Preflight(ctx); err != nil {
		return err
	}
	rt, err := serverConfig.Build(ctx, registry)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}

	server := NewHTTPServer(rt, serverConfig, settings)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Simple Media Server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"catalog", serverConfig.DatabaseType,
			"storage", serverConfig.Storage.Type,
			"media_root", serverConfig.MediaRoot,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
	}
	// In-flight ingests finish their commit or purge before exit.
	if err := rt.Close(shutdownCtx); err != nil {
		slog.Warn("Ingests still running at exit", "err", err)
	}

	slog.Info("Server exiting")
	return nil
}
