package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajaddeen/readai-task-automation/internal/proposal"
)

func makeProposals(n int) []proposal.Proposal {
	out := make([]proposal.Proposal, n)
	for i := range out {
		out[i] = proposal.Proposal{
			ID:            fmt.Sprintf("tmp-%d", i),
			Action:        proposal.ActionCreate,
			Title:         fmt.Sprintf("Task %d", i),
			Priority:      proposal.PriorityMedium,
			FocusThisWeek: proposal.FocusNo,
			ExternalURL:   proposal.NewTaskSentinel,
			Iteration:     1,
		}
	}
	return out
}

func TestRegistryCreate(t *testing.T) {
	t.Run("duplicate session id is rejected", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Create("s1", makeProposals(2), "db-1"))
		err := r.Create("s1", makeProposals(1), "db-2")
		require.ErrorIs(t, err, ErrSessionExists)
	})

	t.Run("empty proposal list completes immediately", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Create("s1", nil, "db-1"))
		assert.Equal(t, 0, r.Len())
		_, _, err := r.Current("s1")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("invariant violation never enters a queue", func(t *testing.T) {
		r := NewRegistry()
		bad := makeProposals(1)
		bad[0].Action = proposal.ActionUpdate // still carries the sentinel url
		err := r.Create("s1", bad, "db-1")
		require.Error(t, err)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("queue owns a copy of the proposals", func(t *testing.T) {
		r := NewRegistry()
		ps := makeProposals(1)
		require.NoError(t, r.Create("s1", ps, "db-1"))
		ps[0].Title = "mutated by caller"

		got, _, err := r.Current("s1")
		require.NoError(t, err)
		assert.Equal(t, "Task 0", got.Title)
	})
}

func TestRegistryAdvance(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create("s1", makeProposals(3), "db-1"))

	cur, idx, err := r.Current("s1")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "Task 0", cur.Title)

	next, idx, done, err := r.Advance("s1")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "Task 1", next.Title)

	_, _, done, err = r.Advance("s1")
	require.NoError(t, err)
	assert.False(t, done)

	_, _, done, err = r.Advance("s1")
	require.NoError(t, err)
	assert.True(t, done)

	// Session is gone the instant the cursor reaches the end.
	assert.Equal(t, 0, r.Len())
	_, _, _, err = r.Advance("s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryReplace(t *testing.T) {
	t.Run("replaces in place without moving the cursor", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Create("s1", makeProposals(2), "db-1"))

		refined := makeProposals(1)[0]
		refined.Title = "Task 0 refined"
		got, err := r.Replace("s1", refined)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Iteration)

		cur, idx, err := r.Current("s1")
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
		assert.Equal(t, "Task 0 refined", cur.Title)

		snap, err := r.Snapshot("s1")
		require.NoError(t, err)
		assert.Equal(t, 2, snap.Total)
	})

	t.Run("iteration comes from the replaced value", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Create("s1", makeProposals(1), "db-1"))

		refined := makeProposals(1)[0]
		refined.Iteration = 99
		got, err := r.Replace("s1", refined)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Iteration)

		got, err = r.Replace("s1", refined)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Iteration)
	})

	t.Run("missing session", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Replace("nope", makeProposals(1)[0])
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestRegistryDestination(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create("s1", makeProposals(1), "db-9"))
	dest, err := r.Destination("s1")
	require.NoError(t, err)
	assert.Equal(t, "db-9", dest)
}

func TestRegistryConcurrentSessions(t *testing.T) {
	r := NewRegistry()
	const sessions = 16
	const perSession = 20

	for i := 0; i < sessions; i++ {
		require.NoError(t, r.Create(fmt.Sprintf("s%d", i), makeProposals(perSession), "db"))
	}

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for {
				_, _, done, err := r.Advance(id)
				if err != nil || done {
					return
				}
			}
		}(fmt.Sprintf("s%d", i))
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}

func TestRegistryEvictIdle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create("s1", makeProposals(1), "db"))

	assert.Empty(t, r.EvictIdle(0), "zero ttl disables eviction")
	assert.Empty(t, r.EvictIdle(time.Hour))

	evicted := r.EvictIdle(time.Nanosecond)
	assert.Equal(t, []string{"s1"}, evicted)
	assert.Equal(t, 0, r.Len())
}
