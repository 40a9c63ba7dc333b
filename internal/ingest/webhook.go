// Package ingest accepts meeting transcripts from the outside world: the
// notetaker's end-of-meeting webhook and a local drop directory.
package ingest

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sajaddeen/readai-task-automation/internal/config"
	"github.com/sajaddeen/readai-task-automation/internal/pipeline"
)

// maxWebhookBytes caps the webhook body. Multi-hour meetings stay well
// under this.
const maxWebhookBytes = 10 << 20

// ErrBadWebhook is returned for webhook bodies that cannot be decoded.
var ErrBadWebhook = errors.New("malformed webhook payload")

// WebhookPayload is the notetaker's end-of-meeting delivery. Only the
// fields this service reads are declared; the provider sends more.
type WebhookPayload struct {
	SessionID  string     `json:"session_id"`
	Trigger    string     `json:"trigger"`
	Title      string     `json:"title"`
	Transcript Transcript `json:"transcript"`
}

// Transcript is the speaker-attributed transcript body.
type Transcript struct {
	SpeakerBlocks []SpeakerBlock `json:"speaker_blocks"`
}

// SpeakerBlock is one contiguous stretch of speech by a single speaker.
type SpeakerBlock struct {
	StartTime int64   `json:"start_time"`
	EndTime   int64   `json:"end_time"`
	Speaker   Speaker `json:"speaker"`
	Words     string  `json:"words"`
}

// Speaker identifies who spoke a block.
type Speaker struct {
	Name string `json:"name"`
}

// ParseWebhook decodes a webhook body into a meeting ready for the
// pipeline. The speaker blocks are flattened into "Name: words" lines so
// the extraction prompt sees who committed to what.
func ParseWebhook(r io.Reader) (pipeline.Meeting, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxWebhookBytes+1))
	if err != nil {
		return pipeline.Meeting{}, fmt.Errorf("reading webhook body: %w", err)
	}
	if len(body) > maxWebhookBytes {
		return pipeline.Meeting{}, fmt.Errorf("%w: body exceeds %d bytes", ErrBadWebhook, maxWebhookBytes)
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return pipeline.Meeting{}, fmt.Errorf("%w: %v", ErrBadWebhook, err)
	}

	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = "Untitled meeting"
	}
	return pipeline.Meeting{
		Title:      title,
		Transcript: FlattenTranscript(payload.Transcript),
	}, nil
}

// FlattenTranscript renders speaker blocks as plain "Name: words" lines.
// Blocks with no words are dropped; a missing speaker name becomes
// "Unknown" rather than losing the words.
func FlattenTranscript(t Transcript) string {
	var b strings.Builder
	for _, block := range t.SpeakerBlocks {
		words := strings.TrimSpace(block.Words)
		if words == "" {
			continue
		}
		name := strings.TrimSpace(block.Speaker.Name)
		if name == "" {
			name = "Unknown"
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(words)
		b.WriteString("\n")
	}
	return b.String()
}

// VerifySecret compares a presented webhook secret against the configured
// one in constant time. An unset configured secret never verifies.
func VerifySecret(configured config.Secret, presented string) bool {
	if !configured.IsSet() || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured.Value()), []byte(presented)) == 1
}
