package card

import (
	"github.com/sajaddeen/readai-task-automation/internal/proposal"
)

// Block ids for the feedback form inputs. The view-submission state comes
// back keyed by these ids.
const (
	BlockTitle           = "fb_title"
	BlockNotes           = "fb_notes"
	BlockOwner           = "fb_owner"
	BlockProject         = "fb_project"
	BlockPriority        = "fb_priority"
	BlockStatus          = "fb_status"
	BlockStartDate       = "fb_start_date"
	BlockDueDate         = "fb_due_date"
	BlockFocus           = "fb_focus"
	BlockLinkedReference = "fb_linked_reference"
)

// inputActionID is the single action id used inside every input block.
const inputActionID = "value"

// Option is a static-select option.
type Option struct {
	Text  TextObject `json:"text"`
	Value string     `json:"value"`
}

// InputElement is the element inside an input block: a plain-text input, a
// date picker, or a static select, depending on which fields are set.
type InputElement struct {
	Type          string     `json:"type"`
	ActionID      string     `json:"action_id"`
	InitialValue  string     `json:"initial_value,omitempty"`
	InitialDate   string     `json:"initial_date,omitempty"`
	InitialOption *Option    `json:"initial_option,omitempty"`
	Options       []Option   `json:"options,omitempty"`
	Multiline     bool       `json:"multiline,omitempty"`
	Placeholder   *TextObject `json:"placeholder,omitempty"`
}

// InputBlock is one editable field of the feedback form.
type InputBlock struct {
	Type     string       `json:"type"`
	BlockID  string       `json:"block_id"`
	Label    TextObject   `json:"label"`
	Element  InputElement `json:"element"`
	Optional bool         `json:"optional,omitempty"`
}

// Modal is the feedback form view. PrivateMetadata carries the one-time
// feedback-session id; nothing else correlates the submission back to the
// queue.
type Modal struct {
	Type            string       `json:"type"`
	CallbackID      string       `json:"callback_id"`
	PrivateMetadata string       `json:"private_metadata"`
	Title           TextObject   `json:"title"`
	Submit          TextObject   `json:"submit"`
	Close           TextObject   `json:"close"`
	Blocks          []InputBlock `json:"blocks"`
}

func textInput(blockID, label, initial string, multiline bool) InputBlock {
	return InputBlock{
		Type:    "input",
		BlockID: blockID,
		Label:   plain(label),
		Element: InputElement{
			Type:         "plain_text_input",
			ActionID:     inputActionID,
			InitialValue: initial,
			Multiline:    multiline,
		},
		Optional: true,
	}
}

func dateInput(blockID, label, initial string) InputBlock {
	return InputBlock{
		Type:    "input",
		BlockID: blockID,
		Label:   plain(label),
		Element: InputElement{
			Type:        "datepicker",
			ActionID:    inputActionID,
			InitialDate: initial,
		},
		Optional: true,
	}
}

func selectInput(blockID, label, initial string, values []string) InputBlock {
	opts := make([]Option, len(values))
	var initialOpt *Option
	for i, v := range values {
		opts[i] = Option{Text: plain(v), Value: v}
		if v == initial {
			o := opts[i]
			initialOpt = &o
		}
	}
	return InputBlock{
		Type:    "input",
		BlockID: blockID,
		Label:   plain(label),
		Element: InputElement{
			Type:          "static_select",
			ActionID:      inputActionID,
			Options:       opts,
			InitialOption: initialOpt,
		},
		Optional: true,
	}
}

// FeedbackModal renders the editable form seeded with every field of the
// proposal under refinement.
func FeedbackModal(p proposal.Proposal, formID string) Modal {
	return Modal{
		Type:            "modal",
		CallbackID:      FeedbackCallbackID,
		PrivateMetadata: formID,
		Title:           plain("Refine proposal"),
		Submit:          plain("Resubmit"),
		Close:           plain("Cancel"),
		Blocks: []InputBlock{
			textInput(BlockTitle, "Title", p.Title, false),
			textInput(BlockNotes, "Notes", p.Notes, true),
			textInput(BlockOwner, "Owner", p.Owner, false),
			textInput(BlockProject, "Project", p.Project, false),
			selectInput(BlockPriority, "Priority", string(p.Priority), []string{
				string(proposal.PriorityHigh), string(proposal.PriorityMedium), string(proposal.PriorityLow),
			}),
			textInput(BlockStatus, "Status", p.Status, false),
			dateInput(BlockStartDate, "Start date", p.StartDate),
			dateInput(BlockDueDate, "Due date", p.DueDate),
			selectInput(BlockFocus, "Focus this week", string(p.FocusThisWeek), []string{
				string(proposal.FocusYes), string(proposal.FocusNo),
			}),
			textInput(BlockLinkedReference, "Linked reference", p.LinkedReference, false),
		},
	}
}

// ViewStateValue is one submitted input value.
type ViewStateValue struct {
	Type           string  `json:"type"`
	Value          *string `json:"value,omitempty"`
	SelectedDate   *string `json:"selected_date,omitempty"`
	SelectedOption *Option `json:"selected_option,omitempty"`
}

// ViewState is the submitted state of the feedback form.
type ViewState struct {
	Values map[string]map[string]ViewStateValue `json:"values"`
}

// extract returns the submitted value for a block, if any.
func (s ViewState) extract(blockID string) (string, bool) {
	actions, ok := s.Values[blockID]
	if !ok {
		return "", false
	}
	v, ok := actions[inputActionID]
	if !ok {
		return "", false
	}
	switch {
	case v.SelectedOption != nil:
		return v.SelectedOption.Value, true
	case v.SelectedDate != nil:
		return *v.SelectedDate, true
	case v.Value != nil:
		return *v.Value, true
	}
	return "", false
}

// EditFromViewState maps submitted form state onto a field edit. Blocks
// absent from the state are left unchanged; present blocks replace the
// field even when the value is empty, so a human can clear a field.
func EditFromViewState(s ViewState) proposal.Edit {
	var e proposal.Edit
	if v, ok := s.extract(BlockTitle); ok {
		e.Title = &v
	}
	if v, ok := s.extract(BlockNotes); ok {
		e.Notes = &v
	}
	if v, ok := s.extract(BlockOwner); ok {
		e.Owner = &v
	}
	if v, ok := s.extract(BlockProject); ok {
		e.Project = &v
	}
	if v, ok := s.extract(BlockPriority); ok {
		p := proposal.Priority(v)
		e.Priority = &p
	}
	if v, ok := s.extract(BlockStatus); ok {
		e.Status = &v
	}
	if v, ok := s.extract(BlockStartDate); ok {
		e.StartDate = &v
	}
	if v, ok := s.extract(BlockDueDate); ok {
		e.DueDate = &v
	}
	if v, ok := s.extract(BlockFocus); ok {
		f := proposal.Focus(v)
		e.FocusThisWeek = &f
	}
	if v, ok := s.extract(BlockLinkedReference); ok {
		e.LinkedReference = &v
	}
	return e
}
