package card

import (
	"fmt"

	"github.com/sajaddeen/readai-task-automation/internal/proposal"
)

// Block kit shapes, narrowed to what the proposal cards use.

// TextObject is a Block Kit text object.
type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`

	// Emoji only applies to plain_text objects.
	Emoji bool `json:"emoji,omitempty"`
}

// Button is an interactive button element.
type Button struct {
	Type     string     `json:"type"`
	Text     TextObject `json:"text"`
	ActionID string     `json:"action_id"`
	Value    string     `json:"value"`
	Style    string     `json:"style,omitempty"`
}

// Block is one layout block of a message.
type Block struct {
	Type     string       `json:"type"`
	Text     *TextObject  `json:"text,omitempty"`
	Fields   []TextObject `json:"fields,omitempty"`
	Elements []Button     `json:"elements,omitempty"`
}

// Message is a renderable card. ReplaceOriginal is set on every
// acknowledgment card so the human sees exactly one surface per proposal.
type Message struct {
	Text            string  `json:"text"`
	Blocks          []Block `json:"blocks,omitempty"`
	ReplaceOriginal bool    `json:"replace_original,omitempty"`
}

func plain(s string) TextObject    { return TextObject{Type: "plain_text", Text: s, Emoji: true} }
func markdown(s string) TextObject { return TextObject{Type: "mrkdwn", Text: s} }

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// Proposal renders the interactive review card for one proposal: the
// human-readable fields plus the Accept, Skip, and Feedback buttons, each
// carrying the encoded action payload.
func Proposal(p proposal.Proposal, sessionID string, queueIndex, total int) (Message, error) {
	payload, err := ActionPayload{
		SessionID:  sessionID,
		QueueIndex: queueIndex,
		ProposalID: p.ID,
	}.Encode()
	if err != nil {
		return Message{}, fmt.Errorf("rendering proposal card: %w", err)
	}

	verb := "New task"
	if p.Action == proposal.ActionUpdate {
		verb = "Update"
	}
	header := fmt.Sprintf("%s %d of %d: %s", verb, queueIndex+1, total, p.Title)

	fields := []TextObject{
		markdown("*Owner*\n" + orDash(p.Owner)),
		markdown("*Priority*\n" + orDash(string(p.Priority))),
		markdown("*Status*\n" + orDash(p.Status)),
		markdown("*Project*\n" + orDash(p.Project)),
		markdown("*Start*\n" + orDash(p.StartDate)),
		markdown("*Due*\n" + orDash(p.DueDate)),
		markdown("*Focus this week*\n" + orDash(string(p.FocusThisWeek))),
		markdown("*Linked reference*\n" + orDash(p.LinkedReference)),
	}

	blocks := []Block{
		{Type: "header", Text: ptr(plain(header))},
		{Type: "section", Fields: fields},
	}
	if p.Notes != "" {
		blocks = append(blocks, Block{Type: "section", Text: ptr(markdown("*Notes*\n" + p.Notes))})
	}
	if p.Action == proposal.ActionUpdate {
		blocks = append(blocks, Block{Type: "section", Text: ptr(markdown("Matches existing record: " + p.ExternalURL))})
	}
	if p.Iteration > 1 {
		blocks = append(blocks, Block{Type: "section", Text: ptr(markdown(fmt.Sprintf("_Refined %d time(s)_", p.Iteration-1)))})
	}
	blocks = append(blocks, Block{
		Type: "actions",
		Elements: []Button{
			{Type: "button", Text: plain("Accept"), ActionID: ActionIDAccept, Value: payload, Style: "primary"},
			{Type: "button", Text: plain("Skip"), ActionID: ActionIDSkip, Value: payload},
			{Type: "button", Text: plain("Feedback"), ActionID: ActionIDFeedback, Value: payload},
		},
	})

	return Message{Text: header, Blocks: blocks}, nil
}

// Committed is the replacement card after a successful record write.
func Committed(p proposal.Proposal) Message {
	verb := "created"
	if p.Action == proposal.ActionUpdate {
		verb = "updated"
	}
	text := fmt.Sprintf(":white_check_mark: %q %s", p.Title, verb)
	return Message{
		Text:            text,
		Blocks:          []Block{{Type: "section", Text: ptr(markdown(text))}},
		ReplaceOriginal: true,
	}
}

// Skipped is the replacement card after a skip.
func Skipped(p proposal.Proposal) Message {
	text := fmt.Sprintf(":fast_forward: Skipped %q", p.Title)
	return Message{
		Text:            text,
		Blocks:          []Block{{Type: "section", Text: ptr(markdown(text))}},
		ReplaceOriginal: true,
	}
}

// CommitFailed is the replacement card after a failed record write. The
// proposal stays at the same cursor, so the full interactive card is
// re-rendered under the warning and retry stays one click away.
func CommitFailed(p proposal.Proposal, sessionID string, queueIndex, total int, reason string) (Message, error) {
	msg, err := Proposal(p, sessionID, queueIndex, total)
	if err != nil {
		return Message{}, err
	}
	warning := fmt.Sprintf(":warning: Saving %q failed: %s. Accept again to retry, or skip.", p.Title, reason)
	msg.Text = warning
	msg.Blocks = append([]Block{{Type: "section", Text: ptr(markdown(warning))}}, msg.Blocks...)
	msg.ReplaceOriginal = true
	return msg, nil
}

// AllDone is the terminal notification once the cursor reaches the end.
func AllDone(total int) Message {
	text := fmt.Sprintf(":tada: All %d proposals reviewed.", total)
	return Message{Text: text, Blocks: []Block{{Type: "section", Text: ptr(markdown(text))}}}
}

// NothingToReview is sent when reconciliation produced an empty queue.
func NothingToReview() Message {
	text := "No task proposals came out of this meeting — nothing to review."
	return Message{Text: text, Blocks: []Block{{Type: "section", Text: ptr(markdown(text))}}}
}

// NothingToActOn replaces a card whose session is gone (already completed,
// or the process restarted).
func NothingToActOn() Message {
	text := "This review is no longer active — nothing to act on."
	return Message{
		Text:            text,
		Blocks:          []Block{{Type: "section", Text: ptr(markdown(text))}},
		ReplaceOriginal: true,
	}
}

func ptr(t TextObject) *TextObject { return &t }
