// Taskflowd turns meeting transcripts into reviewed task records.
//
// The daemon accepts end-of-meeting webhooks (and optionally a local drop
// directory), extracts task candidates with an LLM, reconciles them against
// the destination task database, and walks a human through the resulting
// proposals one interactive card at a time.
//
// Configuration comes from an optional YAML file plus environment
// overrides. See internal/config for the full surface.
//
// Usage:
//
//	# Start with defaults plus environment
//	LLM_API_KEY=... RECORDS_API_KEY=... SLACK_BOT_TOKEN=... taskflowd
//
//	# Start from a config file
//	taskflowd -config /etc/taskflowd/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sajaddeen/readai-task-automation/internal/config"
	"github.com/sajaddeen/readai-task-automation/internal/httpapi"
	"github.com/sajaddeen/readai-task-automation/internal/ingest"
	"github.com/sajaddeen/readai-task-automation/internal/llm"
	"github.com/sajaddeen/readai-task-automation/internal/logging"
	"github.com/sajaddeen/readai-task-automation/internal/pipeline"
	"github.com/sajaddeen/readai-task-automation/internal/queue"
	"github.com/sajaddeen/readai-task-automation/internal/reconcile"
	"github.com/sajaddeen/readai-task-automation/internal/records"
	"github.com/sajaddeen/readai-task-automation/internal/review"
	"github.com/sajaddeen/readai-task-automation/internal/slack"
	"github.com/sajaddeen/readai-task-automation/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// janitorInterval is how often idle sessions and abandoned feedback forms
// are swept.
const janitorInterval = 10 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("taskflowd\nVersion:    %s\nCommit:     %s\nBuild Date: %s\n", version, gitCommit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("taskflowd: %v", err)
	}
}

// run wires the daemon and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting taskflowd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Int("review.workers", cfg.Review.Workers))

	metrics, err := telemetry.Setup("taskflowd", version, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
	}()

	// Outbound clients.
	llmClient, err := llm.NewClient(cfg.LLM, logger.Underlying())
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}
	recordsClient, err := records.NewClient(cfg.Records, logger.Underlying())
	if err != nil {
		return fmt.Errorf("creating records client: %w", err)
	}
	slackClient, err := slack.NewClient(cfg.Slack, logger.Underlying())
	if err != nil {
		return fmt.Errorf("creating slack client: %w", err)
	}

	reconciler, err := reconcile.New(llm.NewComparator(llmClient), logger.Underlying())
	if err != nil {
		return fmt.Errorf("creating reconciler: %w", err)
	}

	// Session state and the review engine.
	registry := queue.NewRegistry()
	feedback := queue.NewFeedbackStore()
	pool := review.NewPool(cfg.Review.Workers)
	engine := review.NewEngine(registry, feedback, recordsClient, slackClient, pool, logger)

	pipe, err := pipeline.New(llm.NewExtractor(llmClient), recordsClient, reconciler, slackClient, registry, logger)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	srv, err := httpapi.NewServer(cfg.Server, cfg.Ingest.WebhookSecret, cfg.Slack.SigningSecret, pipe, engine, logger)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	// Optional local drop directory, alongside the webhook.
	if cfg.Ingest.WatchDir != "" {
		watcher, err := ingest.NewWatcher(cfg.Ingest.WatchDir, pipe, logger)
		if err != nil {
			return fmt.Errorf("creating drop watcher: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(ctx, "drop watcher stopped", zap.Error(err))
			}
		}()
		logger.Info(ctx, "watching drop directory", zap.String("dir", cfg.Ingest.WatchDir))
	}

	go runJanitor(ctx, cfg.Review, registry, feedback, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutting down")

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "http shutdown incomplete", zap.Error(err))
	}
	// Drain in-flight commits before the process exits so an accepted
	// proposal is never silently lost.
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "worker pool shutdown incomplete", zap.Error(err))
	}

	logger.Info(shutdownCtx, "shutdown complete")
	return nil
}

// runJanitor periodically evicts idle review sessions and abandoned
// feedback forms. Both TTLs default to zero, which disables eviction.
func runJanitor(ctx context.Context, cfg config.ReviewConfig, registry *queue.Registry, feedback *queue.FeedbackStore, logger *logging.Logger) {
	if cfg.SessionTTL <= 0 && cfg.FeedbackTTL <= 0 {
		return
	}
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := registry.EvictIdle(cfg.SessionTTL); len(evicted) > 0 {
				logger.Info(ctx, "evicted idle review sessions",
					zap.Int("count", len(evicted)),
					zap.Strings("session.ids", evicted))
			}
			if n := feedback.EvictIdle(cfg.FeedbackTTL); n > 0 {
				logger.Info(ctx, "evicted abandoned feedback forms", zap.Int("count", n))
			}
		}
	}
}
