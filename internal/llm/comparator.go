package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sajaddeen/readai-task-automation/internal/proposal"
	"github.com/sajaddeen/readai-task-automation/internal/reconcile"
)

// comparePrompt instructs the model to decide create-vs-update and echo
// everything else verbatim. The reconciler re-validates the whole answer;
// a response that alters candidate fields is dropped there.
const comparePrompt = `You decide whether a candidate task describes the same outcome as one of
the existing records in a task database.

You receive a JSON object with "candidate" and "existing_records". Compare
the candidate against each record by intended outcome, not by exact
wording.

Rules:
- If the candidate matches an existing record, respond with "action":
  "update", "external_url" set to that record's canonical_url EXACTLY, and
  "status" set to that record's current status. If several records could
  match, choose the single best one.
- If no record matches, respond with "action": "create", "external_url"
  set to exactly "New Task", and "status" set to the candidate's status.
- Copy title, notes, owner, priority, linked_reference, start_date,
  due_date and focus_this_week from the candidate VERBATIM. Never invent,
  reformat or drop them.
- "project" may be copied from the matched record, or left "".

Respond ONLY with the JSON object, no additional text.`

// compareInput is the request document sent to the model.
type compareInput struct {
	Candidate       proposal.Candidate        `json:"candidate"`
	ExistingRecords []proposal.ExistingRecord `json:"existing_records"`
}

// Comparator is the LLM-backed implementation of reconcile.Comparator.
type Comparator struct {
	client *Client
}

// NewComparator creates a comparator on the shared client.
func NewComparator(client *Client) *Comparator {
	return &Comparator{client: client}
}

var _ reconcile.Comparator = (*Comparator)(nil)

// Compare classifies one candidate against the fetched records.
func (c *Comparator) Compare(ctx context.Context, candidate proposal.Candidate, existing []proposal.ExistingRecord) (reconcile.MatchResult, error) {
	input, err := json.Marshal(compareInput{
		Candidate:       candidate,
		ExistingRecords: existing,
	})
	if err != nil {
		return reconcile.MatchResult{}, fmt.Errorf("marshaling compare input: %w", err)
	}

	text, err := c.client.complete(ctx, comparePrompt, string(input))
	if err != nil {
		return reconcile.MatchResult{}, fmt.Errorf("comparing candidate: %w", err)
	}

	var res reconcile.MatchResult
	if err := json.Unmarshal([]byte(stripFences(text)), &res); err != nil {
		return reconcile.MatchResult{}, fmt.Errorf("malformed comparator output: %w", err)
	}
	return res, nil
}
