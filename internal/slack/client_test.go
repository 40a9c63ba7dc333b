package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sajaddeen/readai-task-automation/internal/card"
	"github.com/sajaddeen/readai-task-automation/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.SlackConfig{
		BaseURL:  srv.URL,
		BotToken: "xoxb-test",
		Channel:  "#meeting-tasks",
		Timeout:  5,
	}, zap.NewNop())
	require.NoError(t, err)
	return c, srv
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(config.SlackConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestPostCard(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))

		var payload postMessagePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "#meeting-tasks", payload.Channel)
		assert.Equal(t, "hello", payload.Text)

		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	err := c.PostCard(context.Background(), card.Message{Text: "hello"})
	require.NoError(t, err)
}

func TestPostCardAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	})

	err := c.PostCard(context.Background(), card.Message{Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestReplaceCard(t *testing.T) {
	var gotReplace bool
	var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/response/abc", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"), "response urls are pre-authorized")

		var msg card.Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		gotReplace = msg.ReplaceOriginal
		_, _ = w.Write([]byte("ok"))
	}
	c, srv := newTestClient(t, handler)

	err := c.ReplaceCard(context.Background(), srv.URL+"/response/abc", card.Message{Text: "done"})
	require.NoError(t, err)
	assert.True(t, gotReplace, "replacement is always flagged")
}

func TestReplaceCardRequiresURL(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	assert.Error(t, c.ReplaceCard(context.Background(), "", card.Message{}))
}

func TestOpenModal(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/views.open", r.URL.Path)

		var payload openViewPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "trig-1", payload.TriggerID)
		assert.Equal(t, "modal", payload.View.Type)

		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	err := c.OpenModal(context.Background(), "trig-1", card.Modal{Type: "modal"})
	require.NoError(t, err)

	assert.Error(t, c.OpenModal(context.Background(), "", card.Modal{}))
}
