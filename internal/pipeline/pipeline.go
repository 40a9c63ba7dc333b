// Package pipeline turns one meeting transcript into a live review session:
// extraction, destination resolution, reconciliation, and the first card.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/sajaddeen/readai-task-automation/internal/card"
	"github.com/sajaddeen/readai-task-automation/internal/logging"
	"github.com/sajaddeen/readai-task-automation/internal/proposal"
	"github.com/sajaddeen/readai-task-automation/internal/queue"
	"github.com/sajaddeen/readai-task-automation/internal/reconcile"
	"github.com/sajaddeen/readai-task-automation/internal/records"
)

// Extractor pulls task candidates out of a raw transcript.
type Extractor interface {
	ExtractTasks(ctx context.Context, transcript string) ([]proposal.Candidate, error)
}

// RecordStore resolves the destination database and lists its current tasks.
type RecordStore interface {
	ResolveDestination(ctx context.Context, meetingTitle string) (string, error)
	ListRecords(ctx context.Context, databaseID string) ([]proposal.ExistingRecord, error)
}

// Reconciler classifies candidates against existing records.
type Reconciler interface {
	ReconcileAll(ctx context.Context, candidates []proposal.Candidate, existing []proposal.ExistingRecord) ([]proposal.Proposal, []reconcile.CandidateError)
}

// Notifier posts cards to the review channel.
type Notifier interface {
	PostCard(ctx context.Context, msg card.Message) error
}

// Meeting is one ingested meeting ready for processing.
type Meeting struct {
	Title      string
	Transcript string
}

// Pipeline owns the ingest-to-first-card flow. Each call to Ingest is one
// session; sessions are independent and may run concurrently.
type Pipeline struct {
	extractor  Extractor
	store      RecordStore
	reconciler Reconciler
	notifier   Notifier
	registry   *queue.Registry
	logger     *logging.Logger

	sessions  metric.Int64Counter
	proposals metric.Int64Counter
	duration  metric.Float64Histogram
}

// New wires the ingest pipeline.
func New(extractor Extractor, store RecordStore, reconciler Reconciler, notifier Notifier, registry *queue.Registry, logger *logging.Logger) (*Pipeline, error) {
	meter := otel.Meter("readai-task-automation/pipeline")

	sessions, err := meter.Int64Counter("ingest.sessions",
		metric.WithDescription("Meetings ingested, by outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating sessions counter: %w", err)
	}
	proposals, err := meter.Int64Counter("ingest.proposals",
		metric.WithDescription("Proposals queued for review, by action"))
	if err != nil {
		return nil, fmt.Errorf("creating proposals counter: %w", err)
	}
	duration, err := meter.Float64Histogram("ingest.duration",
		metric.WithDescription("End-to-end ingest latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &Pipeline{
		extractor:  extractor,
		store:      store,
		reconciler: reconciler,
		notifier:   notifier,
		registry:   registry,
		logger:     logger.Named("pipeline"),
		sessions:   sessions,
		proposals:  proposals,
		duration:   duration,
	}, nil
}

// Ingest processes one meeting end to end and returns the session id it
// minted. A meeting with no actionable tasks still succeeds: the channel
// gets a "nothing to review" note and no session is stored.
//
// An unresolvable destination is fatal for the meeting. Nothing was queued,
// so the failure surfaces to the caller instead of the review channel.
func (pl *Pipeline) Ingest(ctx context.Context, m Meeting) (string, error) {
	sessionID := uuid.NewString()
	ctx = logging.WithSessionID(ctx, sessionID)
	start := time.Now()

	pl.logger.Info(ctx, "ingesting meeting",
		zap.String("meeting.title", m.Title),
		zap.Int("transcript.bytes", len(m.Transcript)))

	candidates, err := pl.extractor.ExtractTasks(ctx, m.Transcript)
	if err != nil {
		pl.finish(ctx, start, "extract_error")
		return "", fmt.Errorf("extracting tasks: %w", err)
	}
	if len(candidates) == 0 {
		pl.logger.Info(ctx, "no task candidates extracted")
		if err := pl.notifier.PostCard(ctx, card.NothingToReview()); err != nil {
			pl.logger.Warn(ctx, "failed to post empty-review note", zap.Error(err))
		}
		pl.finish(ctx, start, "empty")
		return sessionID, nil
	}

	destination, err := pl.store.ResolveDestination(ctx, m.Title)
	if err != nil {
		pl.finish(ctx, start, "no_destination")
		if errors.Is(err, records.ErrNoDestination) {
			return "", fmt.Errorf("meeting %q: %w", m.Title, err)
		}
		return "", fmt.Errorf("resolving destination: %w", err)
	}

	existing, err := pl.store.ListRecords(ctx, destination)
	if err != nil {
		pl.finish(ctx, start, "list_error")
		return "", fmt.Errorf("listing existing records: %w", err)
	}

	proposals, candErrs := pl.reconciler.ReconcileAll(ctx, candidates, existing)
	if len(candErrs) > 0 {
		pl.logger.Warn(ctx, "some candidates dropped during reconciliation",
			zap.Int("dropped", len(candErrs)),
			zap.Int("total", len(candidates)))
	}
	if len(proposals) == 0 {
		pl.logger.Info(ctx, "reconciliation produced no reviewable proposals")
		if err := pl.notifier.PostCard(ctx, card.NothingToReview()); err != nil {
			pl.logger.Warn(ctx, "failed to post empty-review note", zap.Error(err))
		}
		pl.finish(ctx, start, "empty")
		return sessionID, nil
	}

	if err := pl.registry.Create(sessionID, proposals, destination); err != nil {
		pl.finish(ctx, start, "queue_error")
		return "", fmt.Errorf("creating review session: %w", err)
	}

	for _, p := range proposals {
		pl.proposals.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", string(p.Action))))
	}

	first, err := card.Proposal(proposals[0], sessionID, 0, len(proposals))
	if err != nil {
		pl.finish(ctx, start, "render_error")
		return "", fmt.Errorf("rendering first card: %w", err)
	}
	if err := pl.notifier.PostCard(ctx, first); err != nil {
		pl.finish(ctx, start, "post_error")
		return "", fmt.Errorf("posting first card: %w", err)
	}

	pl.logger.Info(ctx, "review session started",
		zap.String("destination.id", destination),
		zap.Int("queue.total", len(proposals)),
		zap.Int("existing.records", len(existing)))
	pl.finish(ctx, start, "started")
	return sessionID, nil
}

func (pl *Pipeline) finish(ctx context.Context, start time.Time, outcome string) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	pl.sessions.Add(ctx, 1, attrs)
	pl.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}
