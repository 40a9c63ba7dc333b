package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sajaddeen/readai-task-automation/internal/proposal"
)

var (
	// ErrSessionExists is returned by Create when the session id is already
	// registered. Sessions are never implicitly overwritten.
	ErrSessionExists = errors.New("session already exists")

	// ErrSessionNotFound is returned when a session is absent from the
	// registry, either never created or already completed.
	ErrSessionNotFound = errors.New("session not found")
)

// session holds one proposal queue. The mutex serializes every mutating
// operation for this session; the registry lock is never held across a
// session operation.
type session struct {
	mu          sync.Mutex
	id          string
	destination string
	proposals   []proposal.Proposal
	cursor      int
	completed   bool
	lastActive  time.Time
}

// Snapshot is a read-only view of a session's queue state.
type Snapshot struct {
	SessionID   string
	Destination string
	Cursor      int
	Total       int
}

// Registry is the process-wide map from session id to proposal queue.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*session),
	}
}

// Create registers a new session with its reconciled proposals and the
// destination store resolved for it. Every proposal must already satisfy
// the create/update invariant.
//
// An empty proposal list completes immediately: no session is stored and
// the caller owes the human a "nothing to review" notification.
func (r *Registry) Create(sessionID string, proposals []proposal.Proposal, destination string) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	for i, p := range proposals {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("proposal %d: %w", i, err)
		}
	}
	if len(proposals) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}

	// Copy so later caller mutations cannot reach into the queue.
	owned := make([]proposal.Proposal, len(proposals))
	copy(owned, proposals)

	r.sessions[sessionID] = &session{
		id:          sessionID,
		destination: destination,
		proposals:   owned,
		lastActive:  time.Now(),
	}
	return nil
}

// lookup fetches the live session pointer. Completed sessions count as
// not found even if a reader raced the removal.
func (r *Registry) lookup(sessionID string) (*session, error) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

// Current returns the proposal awaiting human action and its queue index.
func (r *Registry) Current(sessionID string) (proposal.Proposal, int, error) {
	s, err := r.lookup(sessionID)
	if err != nil {
		return proposal.Proposal{}, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || s.cursor >= len(s.proposals) {
		return proposal.Proposal{}, 0, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s.proposals[s.cursor], s.cursor, nil
}

// Destination returns the destination store resolved for the session.
func (r *Registry) Destination(sessionID string) (string, error) {
	s, err := r.lookup(sessionID)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s.destination, nil
}

// Advance moves the cursor forward by exactly one. When the cursor reaches
// the end of the queue the session is removed from the registry and done is
// true; the terminal notification is the caller's responsibility.
//
// Otherwise the new head proposal and its index are returned.
func (r *Registry) Advance(sessionID string) (next proposal.Proposal, index int, done bool, err error) {
	s, lookupErr := r.lookup(sessionID)
	if lookupErr != nil {
		return proposal.Proposal{}, 0, false, lookupErr
	}

	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return proposal.Proposal{}, 0, false, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.cursor++
	s.lastActive = time.Now()
	if s.cursor >= len(s.proposals) {
		s.completed = true
		s.mu.Unlock()

		r.mu.Lock()
		delete(r.sessions, sessionID)
		r.mu.Unlock()
		return proposal.Proposal{}, 0, true, nil
	}
	next = s.proposals[s.cursor]
	index = s.cursor
	s.mu.Unlock()
	return next, index, false, nil
}

// Replace overwrites the proposal at the current cursor with the refined
// value. The cursor does not move and the queue length never changes. The
// refined proposal's iteration is set from the replaced value's iteration,
// regardless of what the caller carried in.
func (r *Registry) Replace(sessionID string, refined proposal.Proposal) (proposal.Proposal, error) {
	s, err := r.lookup(sessionID)
	if err != nil {
		return proposal.Proposal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || s.cursor >= len(s.proposals) {
		return proposal.Proposal{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	refined.Iteration = s.proposals[s.cursor].Iteration + 1
	if err := refined.Validate(); err != nil {
		return proposal.Proposal{}, fmt.Errorf("refined proposal: %w", err)
	}
	s.proposals[s.cursor] = refined
	s.lastActive = time.Now()
	return refined, nil
}

// Snapshot returns the queue position for a session, for logging and the
// inspection API.
func (r *Registry) Snapshot(sessionID string) (Snapshot, error) {
	s, err := r.lookup(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return Snapshot{
		SessionID:   s.id,
		Destination: s.destination,
		Cursor:      s.cursor,
		Total:       len(s.proposals),
	}, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// EvictIdle removes sessions whose last activity is older than ttl and
// returns the evicted session ids. A ttl of zero disables eviction; the
// observed product behavior keeps abandoned sessions forever, so eviction
// is opt-in.
func (r *Registry) EvictIdle(ttl time.Duration) []string {
	if ttl <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for id, s := range r.sessions {
		s.mu.Lock()
		idle := s.lastActive.Before(cutoff)
		if idle {
			s.completed = true
		}
		s.mu.Unlock()
		if idle {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}
