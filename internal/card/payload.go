package card

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Slack caps a button value at 2000 characters; anything larger never made
// it through the round trip and is rejected on decode too.
const maxPayloadLen = 2000

// Interactive action ids carried on the three proposal buttons.
const (
	ActionIDAccept   = "proposal_accept"
	ActionIDSkip     = "proposal_skip"
	ActionIDFeedback = "proposal_feedback"
)

// FeedbackCallbackID identifies the feedback modal's view submission.
const FeedbackCallbackID = "proposal_feedback_submit"

// ErrBadPayload marks an inbound button value that does not decode to a
// valid action payload. The event is rejected, never crashed on.
var ErrBadPayload = errors.New("malformed action payload")

// ActionPayload is the opaque value carried by every proposal button. The
// session id and queue index are the sole correlation between a click and
// the queue state; the proposal id is carried for logging only.
type ActionPayload struct {
	SessionID  string `json:"session_id"`
	QueueIndex int    `json:"queue_index"`
	ProposalID string `json:"proposal_id"`
}

// Encode serializes the payload for embedding in a button value.
func (p ActionPayload) Encode() (string, error) {
	if p.SessionID == "" {
		return "", fmt.Errorf("session id cannot be empty")
	}
	if p.QueueIndex < 0 {
		return "", fmt.Errorf("queue index cannot be negative")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding action payload: %w", err)
	}
	if len(b) > maxPayloadLen {
		return "", fmt.Errorf("action payload exceeds %d bytes", maxPayloadLen)
	}
	return string(b), nil
}

// DecodeActionPayload parses and validates a button value coming back from
// the messaging surface. Unknown fields and schema mismatches are rejected.
func DecodeActionPayload(value string) (ActionPayload, error) {
	if value == "" {
		return ActionPayload{}, fmt.Errorf("%w: empty value", ErrBadPayload)
	}
	if len(value) > maxPayloadLen {
		return ActionPayload{}, fmt.Errorf("%w: value exceeds %d bytes", ErrBadPayload, maxPayloadLen)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(value)))
	dec.DisallowUnknownFields()

	var p ActionPayload
	if err := dec.Decode(&p); err != nil {
		return ActionPayload{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if p.SessionID == "" {
		return ActionPayload{}, fmt.Errorf("%w: missing session id", ErrBadPayload)
	}
	if p.QueueIndex < 0 {
		return ActionPayload{}, fmt.Errorf("%w: negative queue index", ErrBadPayload)
	}
	return p, nil
}
