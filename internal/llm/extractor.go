package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sajaddeen/readai-task-automation/internal/proposal"
)

// extractPrompt asks for the candidate-task contract the reconciler
// consumes: normalized fields, ISO dates or null, "TBD" for an unknown
// linked reference.
const extractPrompt = `You extract actionable tasks from meeting transcripts.

Read the transcript and return every concrete task that was agreed on or
assigned. For each task produce:
- "title": short imperative title
- "notes": relevant context from the discussion, free text
- "owner": the person responsible, as named in the transcript ("" if nobody)
- "priority": "High", "Medium" or "Low"
- "status": initial status, usually "Not Started"
- "linked_reference": the project/initiative name mentioned, or "TBD" if unknown
- "start_date": ISO date (YYYY-MM-DD) or omit
- "due_date": ISO date (YYYY-MM-DD) or omit
- "focus_this_week": "Yes" or "No"

Respond ONLY with a JSON array of task objects, no additional text.
Return [] if the transcript contains no actionable tasks.`

// Extractor turns transcript text into candidate tasks.
type Extractor struct {
	client *Client
}

// NewExtractor creates an extractor on the shared client.
func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

// ExtractTasks extracts candidate tasks from a transcript. A transcript
// with no actionable content yields an empty slice, not an error.
func (e *Extractor) ExtractTasks(ctx context.Context, transcript string) ([]proposal.Candidate, error) {
	if transcript == "" {
		return nil, fmt.Errorf("transcript cannot be empty")
	}

	text, err := e.client.complete(ctx, extractPrompt, transcript)
	if err != nil {
		return nil, fmt.Errorf("extracting tasks: %w", err)
	}

	var candidates []proposal.Candidate
	if err := json.Unmarshal([]byte(stripFences(text)), &candidates); err != nil {
		return nil, fmt.Errorf("malformed extraction output: %w", err)
	}
	return candidates, nil
}
