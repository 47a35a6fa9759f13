package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/apiprobe/apiprobe/internal/config"
	"github.com/apiprobe/apiprobe/internal/sandbox"
	"github.com/apiprobe/apiprobe/shared/clock"
	"github.com/apiprobe/apiprobe/shared/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("SANDBOX_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/sandbox/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateSandboxConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting sandbox service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize router
	r := initRouter(cfg.App.Environment, appLogger.Logger, &cfg.Sandbox)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Sandbox.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Sandbox.ReadTimeout,
		WriteTimeout: cfg.Sandbox.WriteTimeout,
		IdleTimeout:  cfg.Sandbox.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Float64("rate_rps", cfg.Sandbox.Rate.RPS),
		slog.Duration("retry_after", cfg.Sandbox.RetryAfter),
	)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Sandbox service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Sandbox.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableSource,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, logger *slog.Logger, cfg *config.SandboxConfig) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	deps := &sandbox.Dependencies{
		Logger:     logger,
		Clock:      clock.System(),
		Limiter:    rate.NewLimiter(rate.Limit(cfg.Rate.RPS), cfg.Rate.Burst),
		RetryAfter: cfg.RetryAfter,
		WorkDelay:  cfg.WorkDelay,
	}

	return sandbox.SetupRouter(deps)
}
