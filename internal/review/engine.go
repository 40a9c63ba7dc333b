package review

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sajaddeen/readai-task-automation/internal/card"
	"github.com/sajaddeen/readai-task-automation/internal/logging"
	"github.com/sajaddeen/readai-task-automation/internal/proposal"
	"github.com/sajaddeen/readai-task-automation/internal/queue"
)

// Committer writes accepted proposals to the destination record store.
type Committer interface {
	CreateTask(ctx context.Context, databaseID string, p proposal.Proposal) error
	UpdateTask(ctx context.Context, p proposal.Proposal) error
}

// Messenger delivers cards and modals to the chat surface.
type Messenger interface {
	PostCard(ctx context.Context, msg card.Message) error
	ReplaceCard(ctx context.Context, responseURL string, msg card.Message) error
	OpenModal(ctx context.Context, triggerID string, modal card.Modal) error
}

// Click carries one button interaction: the decoded payload plus the
// transport handles needed to answer it.
type Click struct {
	Payload     card.ActionPayload
	ResponseURL string
	TriggerID   string
}

// Engine drives the accept / skip / feedback state machine. Handlers
// return quickly so the interaction ack stays inside the chat platform's
// deadline; the commit and the next card render run on the worker pool.
type Engine struct {
	registry  *queue.Registry
	feedback  *queue.FeedbackStore
	committer Committer
	messenger Messenger
	pool      *Pool
	logger    *logging.Logger

	// One in-flight commit per session. The queue index check alone is
	// not enough: two duplicate clicks can both pass it before either
	// commit lands.
	locks sync.Map // sessionID -> *sync.Mutex
}

// NewEngine wires the review engine.
func NewEngine(registry *queue.Registry, feedback *queue.FeedbackStore, committer Committer, messenger Messenger, pool *Pool, logger *logging.Logger) *Engine {
	return &Engine{
		registry:  registry,
		feedback:  feedback,
		committer: committer,
		messenger: messenger,
		pool:      pool,
		logger:    logger.Named("review"),
	}
}

func (e *Engine) sessionLock(sessionID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// checkClick validates a click against the live queue head. A vanished
// session gets the terminal replacement card; a stale index or proposal id
// is silently dropped, because the card that raced it has already been
// replaced by the action that won.
func (e *Engine) checkClick(ctx context.Context, click Click) (proposal.Proposal, bool) {
	ctx = logging.WithSessionID(ctx, click.Payload.SessionID)
	current, index, err := e.registry.Current(click.Payload.SessionID)
	if err != nil {
		if errors.Is(err, queue.ErrSessionNotFound) {
			e.logger.Info(ctx, "click on inactive session")
			if rerr := e.messenger.ReplaceCard(ctx, click.ResponseURL, card.NothingToActOn()); rerr != nil {
				e.logger.Warn(ctx, "failed to replace inactive card", zap.Error(rerr))
			}
		} else {
			e.logger.Error(ctx, "queue lookup failed", zap.Error(err))
		}
		return proposal.Proposal{}, false
	}
	if index != click.Payload.QueueIndex || current.ID != click.Payload.ProposalID {
		e.logger.Info(ctx, "stale click ignored",
			zap.Int("click.index", click.Payload.QueueIndex),
			zap.Int("queue.index", index))
		return proposal.Proposal{}, false
	}
	return current, true
}

// HandleAccept acknowledges an accept click and schedules the record write.
// The cursor does not move until the write succeeds.
func (e *Engine) HandleAccept(ctx context.Context, click Click) error {
	if _, ok := e.checkClick(ctx, click); !ok {
		return nil
	}
	// The request context dies with the ack; the commit must not.
	bg := context.WithoutCancel(ctx)
	return e.pool.Submit(func() {
		e.commitAndAdvance(bg, click)
	})
}

// HandleSkip acknowledges a skip click and schedules the advance. Nothing
// is written to the record store.
func (e *Engine) HandleSkip(ctx context.Context, click Click) error {
	if _, ok := e.checkClick(ctx, click); !ok {
		return nil
	}
	bg := context.WithoutCancel(ctx)
	return e.pool.Submit(func() {
		e.skipAndAdvance(bg, click)
	})
}

func (e *Engine) commitAndAdvance(ctx context.Context, click Click) {
	sessionID := click.Payload.SessionID
	ctx = logging.WithSessionID(ctx, sessionID)

	mu := e.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	// Re-check under the session lock: a duplicate click may have already
	// committed this proposal and advanced the cursor.
	p, ok := e.checkClick(ctx, click)
	if !ok {
		return
	}
	snap, err := e.registry.Snapshot(sessionID)
	if err != nil {
		e.logger.Error(ctx, "snapshot failed", zap.Error(err))
		return
	}

	if err := e.commit(ctx, snap.Destination, p); err != nil {
		e.logger.Warn(ctx, "commit failed, holding cursor",
			zap.String("proposal.id", p.ID),
			zap.String("proposal.action", string(p.Action)),
			zap.Error(err))
		failed, rerr := card.CommitFailed(p, sessionID, snap.Cursor, snap.Total, err.Error())
		if rerr != nil {
			e.logger.Error(ctx, "failed to render failure card", zap.Error(rerr))
			return
		}
		if rerr := e.messenger.ReplaceCard(ctx, click.ResponseURL, failed); rerr != nil {
			e.logger.Error(ctx, "failed to deliver failure card", zap.Error(rerr))
		}
		return
	}

	e.logger.Info(ctx, "proposal committed",
		zap.String("proposal.id", p.ID),
		zap.String("proposal.action", string(p.Action)),
		zap.Int("queue.index", snap.Cursor))

	if err := e.messenger.ReplaceCard(ctx, click.ResponseURL, card.Committed(p)); err != nil {
		e.logger.Warn(ctx, "failed to replace committed card", zap.Error(err))
	}
	e.advance(ctx, sessionID, snap.Total)
}

func (e *Engine) skipAndAdvance(ctx context.Context, click Click) {
	sessionID := click.Payload.SessionID
	ctx = logging.WithSessionID(ctx, sessionID)

	mu := e.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	p, ok := e.checkClick(ctx, click)
	if !ok {
		return
	}
	snap, err := e.registry.Snapshot(sessionID)
	if err != nil {
		e.logger.Error(ctx, "snapshot failed", zap.Error(err))
		return
	}

	e.logger.Info(ctx, "proposal skipped",
		zap.String("proposal.id", p.ID),
		zap.Int("queue.index", snap.Cursor))

	if err := e.messenger.ReplaceCard(ctx, click.ResponseURL, card.Skipped(p)); err != nil {
		e.logger.Warn(ctx, "failed to replace skipped card", zap.Error(err))
	}
	e.advance(ctx, sessionID, snap.Total)
}

func (e *Engine) commit(ctx context.Context, destination string, p proposal.Proposal) error {
	switch p.Action {
	case proposal.ActionCreate:
		return e.committer.CreateTask(ctx, destination, p)
	case proposal.ActionUpdate:
		return e.committer.UpdateTask(ctx, p)
	default:
		return fmt.Errorf("unknown action %q", p.Action)
	}
}

// advance moves the cursor and posts the next card, or the terminal
// notification when the queue is exhausted.
func (e *Engine) advance(ctx context.Context, sessionID string, total int) {
	next, index, done, err := e.registry.Advance(sessionID)
	if err != nil {
		e.logger.Error(ctx, "advance failed", zap.Error(err))
		return
	}
	if done {
		e.locks.Delete(sessionID)
		e.logger.Info(ctx, "review session completed", zap.Int("queue.total", total))
		if err := e.messenger.PostCard(ctx, card.AllDone(total)); err != nil {
			e.logger.Warn(ctx, "failed to post completion card", zap.Error(err))
		}
		return
	}

	msg, err := card.Proposal(next, sessionID, index, total)
	if err != nil {
		e.logger.Error(ctx, "failed to render next card", zap.Error(err))
		return
	}
	if err := e.messenger.PostCard(ctx, msg); err != nil {
		e.logger.Error(ctx, "failed to post next card", zap.Error(err))
	}
}

// HandleFeedbackOpen opens the edit form for the current proposal. It runs
// synchronously: the modal trigger expires seconds after the click.
func (e *Engine) HandleFeedbackOpen(ctx context.Context, click Click) error {
	p, ok := e.checkClick(ctx, click)
	if !ok {
		return nil
	}
	ctx = logging.WithSessionID(ctx, click.Payload.SessionID)

	fs := e.feedback.Open(click.Payload.SessionID, p, click.ResponseURL)
	modal := card.FeedbackModal(p, fs.ID)
	if err := e.messenger.OpenModal(ctx, click.TriggerID, modal); err != nil {
		// The form never opened, so the id can never come back.
		if _, terr := e.feedback.Take(fs.ID); terr != nil {
			e.logger.Warn(ctx, "failed to discard orphaned feedback session", zap.Error(terr))
		}
		return fmt.Errorf("opening feedback form: %w", err)
	}
	e.logger.Info(ctx, "feedback form opened",
		zap.String("proposal.id", p.ID),
		zap.String("form.id", fs.ID))
	return nil
}

// HandleFeedbackSubmit consumes a submitted feedback form, merges the edits
// into the queued proposal, and re-renders the head card in place. The
// cursor never moves on feedback.
func (e *Engine) HandleFeedbackSubmit(ctx context.Context, formID string, state card.ViewState) error {
	fs, err := e.feedback.Take(formID)
	if err != nil {
		return err
	}
	sessionID := fs.SessionID
	ctx = logging.WithSessionID(ctx, sessionID)

	mu := e.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	current, _, err := e.registry.Current(sessionID)
	if err != nil {
		if errors.Is(err, queue.ErrSessionNotFound) {
			e.logger.Info(ctx, "feedback for inactive session discarded")
			if rerr := e.messenger.ReplaceCard(ctx, fs.ResponseURL, card.NothingToActOn()); rerr != nil {
				e.logger.Warn(ctx, "failed to replace inactive card", zap.Error(rerr))
			}
			return nil
		}
		return fmt.Errorf("feedback submit: %w", err)
	}
	// The queue moved on while the form was open. The edit targets a
	// proposal that is no longer at the head, so it is dropped.
	if current.ID != fs.Proposal.ID {
		e.logger.Info(ctx, "feedback for superseded proposal discarded",
			zap.String("form.proposal.id", fs.Proposal.ID),
			zap.String("queue.proposal.id", current.ID))
		return nil
	}

	refined := fs.Proposal.ApplyFeedback(card.EditFromViewState(state))
	stored, err := e.registry.Replace(sessionID, refined)
	if err != nil {
		return fmt.Errorf("feedback submit: %w", err)
	}
	snap, err := e.registry.Snapshot(sessionID)
	if err != nil {
		return fmt.Errorf("feedback submit: %w", err)
	}

	e.logger.Info(ctx, "proposal refined",
		zap.String("proposal.id", stored.ID),
		zap.Int("proposal.iteration", stored.Iteration))

	msg, err := card.Proposal(stored, sessionID, snap.Cursor, snap.Total)
	if err != nil {
		return fmt.Errorf("feedback submit: %w", err)
	}
	msg.ReplaceOriginal = true
	if err := e.messenger.ReplaceCard(ctx, fs.ResponseURL, msg); err != nil {
		return fmt.Errorf("feedback submit: %w", err)
	}
	return nil
}
