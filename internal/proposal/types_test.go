package proposal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreate() Proposal {
	return Proposal{
		ID:              "tmp-1",
		Action:          ActionCreate,
		Title:           "Ship onboarding doc",
		Notes:           "Draft by Friday",
		Owner:           "Dana",
		Priority:        PriorityHigh,
		Status:          "Not Started",
		Project:         "Growth",
		LinkedReference: LinkedReferenceUnknown,
		DueDate:         "2026-09-04",
		FocusThisWeek:   FocusYes,
		ExternalURL:     NewTaskSentinel,
		Iteration:       1,
	}
}

func validUpdate() Proposal {
	p := validCreate()
	p.ID = "rec-42"
	p.Action = ActionUpdate
	p.ExternalURL = "https://tasks.example.com/rec-42"
	return p
}

func TestProposalValidate(t *testing.T) {
	t.Run("valid create", func(t *testing.T) {
		require.NoError(t, validCreate().Validate())
	})

	t.Run("valid update", func(t *testing.T) {
		require.NoError(t, validUpdate().Validate())
	})

	t.Run("update with sentinel url is a reconciliation defect", func(t *testing.T) {
		p := validUpdate()
		p.ExternalURL = NewTaskSentinel
		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "matched record url")
	})

	t.Run("create with record url is a reconciliation defect", func(t *testing.T) {
		p := validCreate()
		p.ExternalURL = "https://tasks.example.com/rec-42"
		assert.Error(t, p.Validate())
	})

	t.Run("update with empty url", func(t *testing.T) {
		p := validUpdate()
		p.ExternalURL = ""
		assert.Error(t, p.Validate())
	})

	t.Run("unknown action", func(t *testing.T) {
		p := validCreate()
		p.Action = "merge"
		assert.Error(t, p.Validate())
	})

	t.Run("unknown priority", func(t *testing.T) {
		p := validCreate()
		p.Priority = "Urgent"
		assert.Error(t, p.Validate())
	})

	t.Run("bad date", func(t *testing.T) {
		p := validCreate()
		p.DueDate = "next tuesday"
		assert.Error(t, p.Validate())
	})

	t.Run("zero iteration", func(t *testing.T) {
		p := validCreate()
		p.Iteration = 0
		assert.Error(t, p.Validate())
	})
}

func TestCandidateValidate(t *testing.T) {
	c := Candidate{
		Title:           "Review Q3 numbers",
		Owner:           "Sam",
		Priority:        PriorityMedium,
		LinkedReference: "TBD",
		FocusThisWeek:   FocusNo,
	}
	require.NoError(t, c.Validate())

	c.Priority = "Critical"
	assert.Error(t, c.Validate())

	c.Priority = ""
	c.Title = ""
	assert.Error(t, c.Validate())
}

func TestApplyFeedback(t *testing.T) {
	t.Run("empty edit only bumps iteration", func(t *testing.T) {
		orig := validUpdate()
		got := orig.ApplyFeedback(Edit{})

		want := orig
		want.Iteration = orig.Iteration + 1
		assert.Equal(t, want, got)
	})

	t.Run("every field is replaceable", func(t *testing.T) {
		title := "Ship onboarding doc v2"
		notes := "Scope cut to two pages"
		owner := "Priya"
		prio := PriorityLow
		status := "In Progress"
		project := "Activation"
		ref := "ONB-112"
		start := "2026-09-01"
		due := "2026-09-10"
		focus := FocusNo

		got := validCreate().ApplyFeedback(Edit{
			Title:           &title,
			Notes:           &notes,
			Owner:           &owner,
			Priority:        &prio,
			Status:          &status,
			Project:         &project,
			LinkedReference: &ref,
			StartDate:       &start,
			DueDate:         &due,
			FocusThisWeek:   &focus,
		})

		assert.Equal(t, title, got.Title)
		assert.Equal(t, notes, got.Notes)
		assert.Equal(t, owner, got.Owner)
		assert.Equal(t, prio, got.Priority)
		assert.Equal(t, status, got.Status)
		assert.Equal(t, project, got.Project)
		assert.Equal(t, ref, got.LinkedReference)
		assert.Equal(t, start, got.StartDate)
		assert.Equal(t, due, got.DueDate)
		assert.Equal(t, focus, got.FocusThisWeek)
		assert.Equal(t, 2, got.Iteration)
	})

	t.Run("identity fields are preserved", func(t *testing.T) {
		title := "Renamed"
		orig := validUpdate()
		got := orig.ApplyFeedback(Edit{Title: &title})
		assert.Equal(t, orig.ID, got.ID)
		assert.Equal(t, orig.Action, got.Action)
		assert.Equal(t, orig.ExternalURL, got.ExternalURL)
	})
}
