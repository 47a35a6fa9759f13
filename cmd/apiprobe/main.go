package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/apiprobe/apiprobe/internal/config"
	"github.com/apiprobe/apiprobe/internal/console"
	"github.com/apiprobe/apiprobe/internal/history"
	"github.com/apiprobe/apiprobe/internal/probe"
	"github.com/apiprobe/apiprobe/internal/report"
	"github.com/apiprobe/apiprobe/internal/runner"
	"github.com/apiprobe/apiprobe/shared/backoff"
	"github.com/apiprobe/apiprobe/shared/clock"
	"github.com/apiprobe/apiprobe/shared/httpclient"
	"github.com/apiprobe/apiprobe/shared/logger"
	"github.com/apiprobe/apiprobe/shared/postgresql"
	"github.com/apiprobe/apiprobe/shared/rabbitmq"
)

const (
	// exitFailed follows shell convention for a failed command.
	exitFailed = 1
	// exitCanceled is 128+SIGINT, what a shell reports for an interrupted run.
	exitCanceled = 130

	sidecarTimeout = 10 * time.Second
)

func main() {
	code, err := run()
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("APIPROBE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/apiprobe/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	checks := flag.String("checks", "", "Comma-separated checks to run (default: all registered)")
	concurrency := flag.Int("concurrency", 0, "Worker count override (default: from config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return exitFailed, fmt.Errorf("failed to load config: %w", err)
	}

	// Flag overrides are applied before validation so bad values are caught
	// the same way bad file values are
	if *concurrency != 0 {
		cfg.Runner.Concurrency = *concurrency
	}
	if *checks != "" {
		cfg.Runner.Checks = splitChecks(*checks)
	}

	if err := cfg.ValidateProbeConfig(); err != nil {
		return exitFailed, fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return exitFailed, fmt.Errorf("failed to initialize logger: %w", err)
	}

	runID := uuid.NewString()
	appLogger.Info("Starting apiprobe",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("run_id", runID),
	)

	// Build the probe environment
	clk := clock.System()
	policy := backoff.NewPolicy(&backoff.Config{
		MaxRetries:   cfg.Retry.MaxRetries,
		DefaultDelay: cfg.Retry.DefaultDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
	}, clk)

	client := httpclient.New(
		httpclient.WithBaseURL(cfg.Target.BaseURL),
		httpclient.WithAuthToken(cfg.Target.AuthToken),
		httpclient.WithUserAgent(cfg.Target.UserAgent),
		httpclient.WithTimeout(cfg.Target.Timeout),
		httpclient.WithMaxResponseSize(cfg.Target.MaxResponseSize),
		httpclient.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		httpclient.WithRetryPolicy(policy),
		httpclient.WithLogger(appLogger.Logger),
	)

	sink := console.NewSink(os.Stdout)
	env := probe.Env{
		Client: client,
		Sink:   sink,
		Logger: appLogger.Logger,
	}

	jobs, err := probe.Defaults().BuildAll(cfg.Runner.Checks, env)
	if err != nil {
		return exitFailed, fmt.Errorf("failed to build checks: %w", err)
	}
	if cfg.Runner.CheckTimeout > 0 {
		for i := range jobs {
			jobs[i] = runner.WithTimeout(jobs[i], cfg.Runner.CheckTimeout)
		}
	}

	// First signal cancels the run; handling then reverts to the default so
	// a second signal terminates the process outright
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		appLogger.Info("Received signal, cancelling run",
			slog.String("signal", sig.String()),
		)
		cancel()
		signal.Stop(quit)
	}()

	// Run the checks
	startedAt := clk.Now()
	outcomes, err := runner.New(appLogger.Logger).Run(ctx, jobs, cfg.Runner.Concurrency)
	if err != nil {
		return exitFailed, fmt.Errorf("run failed: %w", err)
	}
	finishedAt := clk.Now()

	rep := report.Build(report.Meta{
		RunID:       runID,
		App:         cfg.App.Name,
		Environment: cfg.App.Environment,
		Target:      cfg.Target.BaseURL,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
	}, outcomes)

	if _, err := sink.Write([]byte(rep.Summary())); err != nil {
		appLogger.Error("Failed to write summary", slog.Any("error", err))
	}

	// Persistence and publishing are best-effort side channels; their
	// failures are logged but never change the run's exit status
	if cfg.History.Enabled {
		recordHistory(cfg, appLogger.Logger, rep, outcomes)
	}
	if cfg.Report.Enabled {
		publishReport(cfg, appLogger.Logger, rep)
	}

	summary := runner.Summarize(outcomes)
	appLogger.Info("Run complete",
		slog.String("run_id", runID),
		slog.String("overall", string(summary)),
		slog.Int("succeeded", rep.Succeeded),
		slog.Int("failed", rep.Failed),
		slog.Int("canceled", rep.Canceled),
	)

	switch summary {
	case runner.StatusFailed:
		return exitFailed, nil
	case runner.StatusCanceled:
		return exitCanceled, nil
	default:
		return 0, nil
	}
}

// recordHistory persists the run to PostgreSQL. It uses its own timeout
// context so a cancelled run still gets recorded during shutdown.
func recordHistory(cfg *config.Config, logger *slog.Logger, rep report.Report, outcomes []runner.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), sidecarTimeout)
	defer cancel()

	dbClient, err := initPostgreSQL(&cfg.History.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database, skipping history",
			slog.Any("error", err),
		)
		return
	}
	defer dbClient.Close()

	store := history.NewStore(dbClient, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("Failed to ensure history schema",
			slog.Any("error", err),
		)
		return
	}

	run := history.Run{
		RunID:       rep.RunID,
		App:         rep.App,
		Environment: rep.Environment,
		Target:      rep.Target,
		Overall:     rep.Overall,
		Succeeded:   rep.Succeeded,
		Canceled:    rep.Canceled,
		Failed:      rep.Failed,
		StartedAt:   rep.StartedAt,
		FinishedAt:  rep.FinishedAt,
	}
	if err := store.Record(ctx, run, outcomes); err != nil {
		logger.Error("Failed to record run history",
			slog.Any("error", err),
		)
		return
	}

	recent, err := store.RecentRuns(ctx, 5)
	if err != nil {
		logger.Warn("Failed to load recent runs",
			slog.Any("error", err),
		)
		return
	}
	logger.Info("Recent run history", slog.Int("count", len(recent)))
	for _, r := range recent {
		logger.Debug("Past run",
			slog.String("run_id", r.RunID),
			slog.String("overall", r.Overall),
			slog.Time("finished_at", r.FinishedAt),
		)
	}
}

// publishReport ships the run report to RabbitMQ. Like recordHistory it is
// bounded by its own timeout context.
func publishReport(cfg *config.Config, logger *slog.Logger, rep report.Report) {
	ctx, cancel := context.WithTimeout(context.Background(), sidecarTimeout)
	defer cancel()

	rabbitClient, err := initRabbitMQ(ctx, &cfg.Report.RabbitMQ, logger)
	if err != nil {
		logger.Error("Failed to initialize RabbitMQ, skipping report",
			slog.Any("error", err),
		)
		return
	}
	defer rabbitClient.Close()

	if err := report.NewPublisher(rabbitClient, logger).Publish(ctx, rep); err != nil {
		logger.Error("Failed to publish report",
			slog.Any("error", err),
		)
	}
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

// initPostgreSQL initializes the PostgreSQL history client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the report publisher client
func initRabbitMQ(ctx context.Context, cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		ConnectAttempts:    cfg.Connection.RetryAttempts,
		ConnectInterval:    cfg.Connection.RetryInterval,
		ConnectTimeout:     cfg.Connection.ConnectionTimeout,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(ctx, rabbitConfig, logger)
}

// splitChecks parses the -checks flag value
func splitChecks(s string) []string {
	parts := strings.Split(s, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}
