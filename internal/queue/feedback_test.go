package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackStoreOpenTake(t *testing.T) {
	fs := NewFeedbackStore()
	p := makeProposals(1)[0]

	opened := fs.Open("s1", p, "https://hooks.example.com/r1")
	require.NotEmpty(t, opened.ID)
	assert.Equal(t, 1, fs.Len())

	got, err := fs.Take(opened.ID)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, p, got.Proposal)
	assert.Equal(t, "https://hooks.example.com/r1", got.ResponseURL)
	assert.Equal(t, 0, fs.Len())

	// The form id is one-time.
	_, err = fs.Take(opened.ID)
	assert.ErrorIs(t, err, ErrFeedbackNotFound)
}

func TestFeedbackStoreDistinctIDs(t *testing.T) {
	fs := NewFeedbackStore()
	p := makeProposals(1)[0]
	a := fs.Open("s1", p, "")
	b := fs.Open("s1", p, "")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestFeedbackStoreEvictIdle(t *testing.T) {
	fs := NewFeedbackStore()
	fs.Open("s1", makeProposals(1)[0], "")

	assert.Zero(t, fs.EvictIdle(0))
	assert.Zero(t, fs.EvictIdle(time.Hour))
	assert.Equal(t, 1, fs.EvictIdle(time.Nanosecond))
	assert.Equal(t, 0, fs.Len())
}
