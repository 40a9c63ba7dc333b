package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sajaddeen/readai-task-automation/internal/proposal"
)

// ErrFeedbackNotFound is returned when a form submission references a
// feedback session that was already consumed or never existed.
var ErrFeedbackNotFound = errors.New("feedback session not found")

// FeedbackSession holds the proposal being edited while a feedback form is
// open. It is keyed by a one-time id embedded in the form's hidden metadata
// and destroyed on submit.
type FeedbackSession struct {
	ID          string
	SessionID   string
	Proposal    proposal.Proposal
	ResponseURL string
	OpenedAt    time.Time
}

// FeedbackStore is the process-wide map of open feedback forms. Each entry
// is independent; there is no cross-session coordination.
type FeedbackStore struct {
	mu   sync.Mutex
	open map[string]FeedbackSession
}

// NewFeedbackStore creates an empty feedback store.
func NewFeedbackStore() *FeedbackStore {
	return &FeedbackStore{
		open: make(map[string]FeedbackSession),
	}
}

// Open registers a new feedback session for the given proposal and returns
// its one-time id. responseURL is the message response URL captured from the
// button click so the submit handler can replace the originating card.
func (f *FeedbackStore) Open(sessionID string, p proposal.Proposal, responseURL string) FeedbackSession {
	fs := FeedbackSession{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Proposal:    p,
		ResponseURL: responseURL,
		OpenedAt:    time.Now(),
	}
	f.mu.Lock()
	f.open[fs.ID] = fs
	f.mu.Unlock()
	return fs
}

// Take removes and returns the feedback session for a form id. The id is
// one-time: a second Take for the same id reports not found.
func (f *FeedbackStore) Take(formID string) (FeedbackSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs, ok := f.open[formID]
	if !ok {
		return FeedbackSession{}, fmt.Errorf("%w: %s", ErrFeedbackNotFound, formID)
	}
	delete(f.open, formID)
	return fs, nil
}

// Len returns the number of open feedback forms.
func (f *FeedbackStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.open)
}

// EvictIdle drops feedback sessions opened before now-ttl. The external
// form surface enforces its own timeout; this is local hygiene so abandoned
// forms do not accumulate. A ttl of zero disables eviction.
func (f *FeedbackStore) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-ttl)

	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, fs := range f.open {
		if fs.OpenedAt.Before(cutoff) {
			delete(f.open, id)
			n++
		}
	}
	return n
}
