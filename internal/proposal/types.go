package proposal

import (
	"fmt"
	"time"
)

// NewTaskSentinel is the externalUrl value that marks a proposal as a brand
// new record. Any other value must be the canonical url of the matched
// existing record.
const NewTaskSentinel = "New Task"

// LinkedReferenceUnknown is used when the extractor could not tie a task to
// a named reference.
const LinkedReferenceUnknown = "TBD"

// Action classifies a proposal against the destination store.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Valid reports whether the action is one of the two known values.
func (a Action) Valid() bool {
	return a == ActionCreate || a == ActionUpdate
}

// Priority is the three-level task priority used by the destination store.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Valid reports whether the priority is one of the known levels.
// An empty priority is allowed; the destination store applies its own default.
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Focus is the yes/no "focus this week" flag.
type Focus string

const (
	FocusYes Focus = "Yes"
	FocusNo  Focus = "No"
)

// Valid reports whether the focus flag is one of the known values.
func (f Focus) Valid() bool {
	switch f {
	case "", FocusYes, FocusNo:
		return true
	}
	return false
}

// dateLayout is the ISO calendar date format used on the wire.
const dateLayout = "2006-01-02"

// ValidDate reports whether s is empty or an ISO calendar date (2006-01-02).
func ValidDate(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// Candidate is one task extracted from a transcript, before reconciliation.
// All fields are already normalized by the extraction collaborator.
type Candidate struct {
	Title           string   `json:"title"`
	Notes           string   `json:"notes"`
	Owner           string   `json:"owner"`
	Priority        Priority `json:"priority"`
	Status          string   `json:"status"`
	LinkedReference string   `json:"linked_reference"`
	StartDate       string   `json:"start_date,omitempty"`
	DueDate         string   `json:"due_date,omitempty"`
	FocusThisWeek   Focus    `json:"focus_this_week"`
}

// Validate checks the enum and date fields of a candidate.
func (c Candidate) Validate() error {
	if c.Title == "" {
		return fmt.Errorf("candidate title cannot be empty")
	}
	if !c.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", c.Priority)
	}
	if !c.FocusThisWeek.Valid() {
		return fmt.Errorf("invalid focus flag %q", c.FocusThisWeek)
	}
	if !ValidDate(c.StartDate) {
		return fmt.Errorf("invalid start date %q", c.StartDate)
	}
	if !ValidDate(c.DueDate) {
		return fmt.Errorf("invalid due date %q", c.DueDate)
	}
	return nil
}

// ExistingRecord is a previously persisted task fetched from the destination
// store. Read-only within this process; only referenced for matching.
type ExistingRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	Notes        string `json:"notes"`
	CanonicalURL string `json:"canonical_url"`
}

// Proposal is one candidate change pending human approval.
//
// For ActionUpdate, ID is the matched record's id and ExternalURL its
// canonical url. For ActionCreate, ID is a temporary id stable within the
// session and ExternalURL is NewTaskSentinel.
type Proposal struct {
	ID              string   `json:"id"`
	Action          Action   `json:"action"`
	Title           string   `json:"title"`
	Notes           string   `json:"notes"`
	Owner           string   `json:"owner"`
	Priority        Priority `json:"priority"`
	Status          string   `json:"status"`
	Project         string   `json:"project"`
	LinkedReference string   `json:"linked_reference"`
	StartDate       string   `json:"start_date,omitempty"`
	DueDate         string   `json:"due_date,omitempty"`
	FocusThisWeek   Focus    `json:"focus_this_week"`
	ExternalURL     string   `json:"external_url"`
	Iteration       int      `json:"iteration"`
}

// Validate enforces the create/update invariant. A violation is a
// reconciliation defect, not a user error, and must be caught before the
// proposal enters a queue.
func (p Proposal) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("proposal id cannot be empty")
	}
	if !p.Action.Valid() {
		return fmt.Errorf("invalid action %q", p.Action)
	}
	if p.Title == "" {
		return fmt.Errorf("proposal title cannot be empty")
	}
	if !p.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", p.Priority)
	}
	if !p.FocusThisWeek.Valid() {
		return fmt.Errorf("invalid focus flag %q", p.FocusThisWeek)
	}
	if !ValidDate(p.StartDate) {
		return fmt.Errorf("invalid start date %q", p.StartDate)
	}
	if !ValidDate(p.DueDate) {
		return fmt.Errorf("invalid due date %q", p.DueDate)
	}
	if p.Iteration < 1 {
		return fmt.Errorf("iteration must be >= 1, got %d", p.Iteration)
	}
	switch p.Action {
	case ActionCreate:
		if p.ExternalURL != NewTaskSentinel {
			return fmt.Errorf("create proposal must carry external url %q, got %q", NewTaskSentinel, p.ExternalURL)
		}
	case ActionUpdate:
		if p.ExternalURL == "" || p.ExternalURL == NewTaskSentinel {
			return fmt.Errorf("update proposal must carry the matched record url, got %q", p.ExternalURL)
		}
	}
	return nil
}

// Edit carries the field values submitted through the feedback form.
// Every field is replaceable; nil pointers mean "leave unchanged".
type Edit struct {
	Title           *string   `json:"title,omitempty"`
	Notes           *string   `json:"notes,omitempty"`
	Owner           *string   `json:"owner,omitempty"`
	Priority        *Priority `json:"priority,omitempty"`
	Status          *string   `json:"status,omitempty"`
	Project         *string   `json:"project,omitempty"`
	LinkedReference *string   `json:"linked_reference,omitempty"`
	StartDate       *string   `json:"start_date,omitempty"`
	DueDate         *string   `json:"due_date,omitempty"`
	FocusThisWeek   *Focus    `json:"focus_this_week,omitempty"`
}

// ApplyFeedback merges an edit over the proposal and bumps the iteration.
// Identity fields (id, action, external url) are never editable; a feedback
// refinement can change what the task says, not what record it targets.
// An edit with no set fields yields the same proposal with iteration+1.
func (p Proposal) ApplyFeedback(e Edit) Proposal {
	out := p
	if e.Title != nil {
		out.Title = *e.Title
	}
	if e.Notes != nil {
		out.Notes = *e.Notes
	}
	if e.Owner != nil {
		out.Owner = *e.Owner
	}
	if e.Priority != nil {
		out.Priority = *e.Priority
	}
	if e.Status != nil {
		out.Status = *e.Status
	}
	if e.Project != nil {
		out.Project = *e.Project
	}
	if e.LinkedReference != nil {
		out.LinkedReference = *e.LinkedReference
	}
	if e.StartDate != nil {
		out.StartDate = *e.StartDate
	}
	if e.DueDate != nil {
		out.DueDate = *e.DueDate
	}
	if e.FocusThisWeek != nil {
		out.FocusThisWeek = *e.FocusThisWeek
	}
	out.Iteration = p.Iteration + 1
	return out
}
