package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajaddeen/readai-task-automation/internal/config"
	"github.com/sajaddeen/readai-task-automation/internal/logging"
	"github.com/sajaddeen/readai-task-automation/internal/pipeline"
)

const sampleWebhook = `{
	"session_id": "ext-123",
	"trigger": "meeting_end",
	"title": "Q3 planning",
	"transcript": {
		"speaker_blocks": [
			{"start_time": 0, "end_time": 4, "speaker": {"name": "Alice"}, "words": "Bob will draft the rollout plan."},
			{"start_time": 4, "end_time": 6, "speaker": {"name": "Bob"}, "words": "On it, by Friday."},
			{"start_time": 6, "end_time": 7, "speaker": {"name": ""}, "words": "noted"},
			{"start_time": 7, "end_time": 8, "speaker": {"name": "Alice"}, "words": "   "}
		]
	}
}`

func TestParseWebhook(t *testing.T) {
	m, err := ParseWebhook(strings.NewReader(sampleWebhook))
	require.NoError(t, err)

	assert.Equal(t, "Q3 planning", m.Title)
	assert.Equal(t,
		"Alice: Bob will draft the rollout plan.\nBob: On it, by Friday.\nUnknown: noted\n",
		m.Transcript)
}

func TestParseWebhookDefaultsTitle(t *testing.T) {
	m, err := ParseWebhook(strings.NewReader(`{"title": "  ", "transcript": {"speaker_blocks": []}}`))
	require.NoError(t, err)
	assert.Equal(t, "Untitled meeting", m.Title)
	assert.Empty(t, m.Transcript)
}

func TestParseWebhookRejectsGarbage(t *testing.T) {
	_, err := ParseWebhook(strings.NewReader("not json"))
	assert.ErrorIs(t, err, ErrBadWebhook)
}

func TestParseWebhookRejectsOversizedBody(t *testing.T) {
	huge := strings.NewReader(`{"title":"` + strings.Repeat("x", maxWebhookBytes) + `"}`)
	_, err := ParseWebhook(huge)
	assert.ErrorIs(t, err, ErrBadWebhook)
}

func TestVerifySecret(t *testing.T) {
	secret := config.Secret("hunter2")
	assert.True(t, VerifySecret(secret, "hunter2"))
	assert.False(t, VerifySecret(secret, "hunter3"))
	assert.False(t, VerifySecret(secret, ""))
	assert.False(t, VerifySecret(config.Secret(""), ""))
}

type recordingSink struct {
	mu       sync.Mutex
	meetings []pipeline.Meeting
}

func (s *recordingSink) Ingest(_ context.Context, m pipeline.Meeting) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings = append(s.meetings, m)
	return "session-1", nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.meetings)
}

func TestWatcherProcessesDroppedFiles(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}

	// One file present before the watcher starts.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "standup.txt"), []byte("Alice: review the deck"), 0o644))

	w, err := NewWatcher(dir, sink, logging.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Dropped after startup: a webhook-shaped json file.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planning.json"), []byte(sampleWebhook), 0o644))
	require.Eventually(t, func() bool { return sink.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	titles := []string{sink.meetings[0].Title, sink.meetings[1].Title}
	sink.mu.Unlock()
	assert.Equal(t, []string{"standup", "Q3 planning"}, titles)

	// Processed files are renamed and never replayed.
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "standup.txt.done"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherIgnoresUnknownExtensions(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0o644))

	w, err := NewWatcher(dir, sink, logging.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx)
	assert.Zero(t, sink.count())
}

func TestNewWatcherRejectsMissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "absent"), &recordingSink{}, logging.NewNop())
	assert.Error(t, err)
}
