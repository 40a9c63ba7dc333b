package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sajaddeen/readai-task-automation/internal/proposal"
)

// ErrContractViolation marks a comparator response that broke the output
// contract. The offending candidate is dropped; reconciliation of the
// remaining candidates continues.
var ErrContractViolation = errors.New("comparator contract violation")

// MatchResult is the comparator's answer for one candidate. For an update
// it carries the matched record's canonical url and current status; for a
// create it carries the new-task sentinel. All other fields must echo the
// candidate verbatim.
type MatchResult struct {
	Action          proposal.Action   `json:"action"`
	ExternalURL     string            `json:"external_url"`
	Status          string            `json:"status"`
	Title           string            `json:"title"`
	Notes           string            `json:"notes"`
	Owner           string            `json:"owner"`
	Priority        proposal.Priority `json:"priority"`
	Project         string            `json:"project"`
	LinkedReference string            `json:"linked_reference"`
	StartDate       string            `json:"start_date,omitempty"`
	DueDate         string            `json:"due_date,omitempty"`
	FocusThisWeek   proposal.Focus    `json:"focus_this_week"`
}

// Comparator decides whether a candidate describes the same outcome as one
// of the existing records. When several records could plausibly match it
// must select exactly one; ambiguity resolution is entirely its
// responsibility.
type Comparator interface {
	Compare(ctx context.Context, candidate proposal.Candidate, existing []proposal.ExistingRecord) (MatchResult, error)
}

// CandidateError records a candidate dropped during reconciliation.
type CandidateError struct {
	Index int
	Title string
	Err   error
}

func (e CandidateError) Error() string {
	return fmt.Sprintf("candidate %d (%q): %v", e.Index, e.Title, e.Err)
}

func (e CandidateError) Unwrap() error { return e.Err }

// Reconciler validates comparator output and produces queue-ready proposals.
type Reconciler struct {
	comparator Comparator
	logger     *zap.Logger
}

// New creates a reconciler.
func New(comparator Comparator, logger *zap.Logger) (*Reconciler, error) {
	if comparator == nil {
		return nil, fmt.Errorf("comparator cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{comparator: comparator, logger: logger}, nil
}

// Reconcile classifies one candidate against the existing records and
// returns a proposal satisfying the create/update invariant, or an error
// wrapping ErrContractViolation when the comparator's answer cannot be
// validated.
func (r *Reconciler) Reconcile(ctx context.Context, candidate proposal.Candidate, existing []proposal.ExistingRecord) (proposal.Proposal, error) {
	if err := candidate.Validate(); err != nil {
		return proposal.Proposal{}, fmt.Errorf("%w: %v", ErrContractViolation, err)
	}

	res, err := r.comparator.Compare(ctx, candidate, existing)
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("comparing candidate: %w", err)
	}

	if err := validateResult(res, candidate); err != nil {
		return proposal.Proposal{}, err
	}

	p := proposal.Proposal{
		Action: res.Action,
		// Title and notes come from the candidate; the comparator only
		// echoes them and is never allowed to rewrite either.
		Title:           candidate.Title,
		Notes:           candidate.Notes,
		Owner:           candidate.Owner,
		Priority:        candidate.Priority,
		Status:          res.Status,
		Project:         res.Project,
		LinkedReference: candidate.LinkedReference,
		StartDate:       candidate.StartDate,
		DueDate:         candidate.DueDate,
		FocusThisWeek:   candidate.FocusThisWeek,
		ExternalURL:     res.ExternalURL,
		Iteration:       1,
	}

	switch res.Action {
	case proposal.ActionCreate:
		p.ID = "tmp-" + uuid.NewString()
	case proposal.ActionUpdate:
		rec, ok := recordByURL(existing, res.ExternalURL)
		if !ok {
			return proposal.Proposal{}, fmt.Errorf("%w: matched url %q not among existing records", ErrContractViolation, res.ExternalURL)
		}
		p.ID = rec.ID
	}

	if err := p.Validate(); err != nil {
		return proposal.Proposal{}, fmt.Errorf("%w: %v", ErrContractViolation, err)
	}
	return p, nil
}

// ReconcileAll reconciles every candidate, dropping the ones whose
// comparator answer fails validation. A per-candidate failure never aborts
// the rest of the batch.
func (r *Reconciler) ReconcileAll(ctx context.Context, candidates []proposal.Candidate, existing []proposal.ExistingRecord) ([]proposal.Proposal, []CandidateError) {
	proposals := make([]proposal.Proposal, 0, len(candidates))
	var dropped []CandidateError

	for i, c := range candidates {
		p, err := r.Reconcile(ctx, c, existing)
		if err != nil {
			r.logger.Warn("dropping candidate",
				zap.Int("index", i),
				zap.String("title", c.Title),
				zap.Error(err),
			)
			dropped = append(dropped, CandidateError{Index: i, Title: c.Title, Err: err})
			continue
		}
		proposals = append(proposals, p)
	}
	return proposals, dropped
}

// validateResult enforces the comparator output contract against the
// original candidate.
func validateResult(res MatchResult, candidate proposal.Candidate) error {
	if !res.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrContractViolation, res.Action)
	}

	switch res.Action {
	case proposal.ActionCreate:
		if res.ExternalURL != proposal.NewTaskSentinel {
			return fmt.Errorf("%w: create must carry %q, got %q", ErrContractViolation, proposal.NewTaskSentinel, res.ExternalURL)
		}
	case proposal.ActionUpdate:
		if res.ExternalURL == "" || res.ExternalURL == proposal.NewTaskSentinel {
			return fmt.Errorf("%w: update without a matched record url", ErrContractViolation)
		}
	}

	// The comparator decides create-vs-update and supplies status and url.
	// Every other field must come back verbatim.
	if res.Title != candidate.Title {
		return fmt.Errorf("%w: title altered from %q to %q", ErrContractViolation, candidate.Title, res.Title)
	}
	if res.Owner != candidate.Owner {
		return fmt.Errorf("%w: owner altered from %q to %q", ErrContractViolation, candidate.Owner, res.Owner)
	}
	if res.Priority != candidate.Priority {
		return fmt.Errorf("%w: priority altered from %q to %q", ErrContractViolation, candidate.Priority, res.Priority)
	}
	if res.LinkedReference != candidate.LinkedReference {
		return fmt.Errorf("%w: linked reference altered from %q to %q", ErrContractViolation, candidate.LinkedReference, res.LinkedReference)
	}
	if res.StartDate != candidate.StartDate {
		return fmt.Errorf("%w: start date altered from %q to %q", ErrContractViolation, candidate.StartDate, res.StartDate)
	}
	if res.DueDate != candidate.DueDate {
		return fmt.Errorf("%w: due date altered from %q to %q", ErrContractViolation, candidate.DueDate, res.DueDate)
	}
	if res.FocusThisWeek != candidate.FocusThisWeek {
		return fmt.Errorf("%w: focus flag altered from %q to %q", ErrContractViolation, candidate.FocusThisWeek, res.FocusThisWeek)
	}
	return nil
}

// recordByURL performs membership lookup of the matched url among the
// fetched records.
func recordByURL(existing []proposal.ExistingRecord, url string) (proposal.ExistingRecord, bool) {
	for _, rec := range existing {
		if rec.CanonicalURL == url {
			return rec, true
		}
	}
	return proposal.ExistingRecord{}, false
}
