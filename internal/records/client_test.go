package records

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sajaddeen/readai-task-automation/internal/config"
	"github.com/sajaddeen/readai-task-automation/internal/proposal"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.RecordsConfig{
		BaseURL: srv.URL,
		APIKey:  "secret-test",
		Timeout: 5,
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(config.RecordsConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestResolveDestination(t *testing.T) {
	t.Run("first hit wins", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/search", r.URL.Path)
			assert.Equal(t, "Bearer secret-test", r.Header.Get("Authorization"))

			var req searchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Growth sync", req.Query)
			assert.Equal(t, "database", req.Filter.Value)

			_, _ = w.Write([]byte(`{"results":[{"id":"db-1"},{"id":"db-2"}]}`))
		})

		id, err := c.ResolveDestination(context.Background(), "Growth sync")
		require.NoError(t, err)
		assert.Equal(t, "db-1", id)
	})

	t.Run("no hit is fatal for the session", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results":[]}`))
		})

		_, err := c.ResolveDestination(context.Background(), "Unknown meeting")
		assert.ErrorIs(t, err, ErrNoDestination)
	})
}

func TestListRecords(t *testing.T) {
	page1 := `{
		"results":[{
			"id":"rec-1",
			"url":"https://tasks.example.com/Ship-doc-rec1",
			"properties":{
				"Name":{"title":[{"plain_text":"Ship doc"}]},
				"Status":{"select":{"name":"In Progress"}},
				"Notes":{"rich_text":[{"plain_text":"half "},{"plain_text":"done"}]}
			}
		}],
		"has_more":true,"next_cursor":"cur-2"
	}`
	page2 := `{
		"results":[{"id":"rec-2","url":"https://tasks.example.com/rec2","properties":{}}],
		"has_more":false
	}`

	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/databases/db-1/query", r.URL.Path)
		calls++
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if calls == 1 {
			assert.NotContains(t, body, "start_cursor")
			_, _ = w.Write([]byte(page1))
			return
		}
		assert.Equal(t, "cur-2", body["start_cursor"])
		_, _ = w.Write([]byte(page2))
	})

	got, err := c.ListRecords(context.Background(), "db-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, proposal.ExistingRecord{
		ID:           "rec-1",
		Title:        "Ship doc",
		Status:       "In Progress",
		Notes:        "half done",
		CanonicalURL: "https://tasks.example.com/Ship-doc-rec1",
	}, got[0])
	assert.Equal(t, "rec-2", got[1].ID)
	assert.Equal(t, 2, calls)
}

func acceptedCreate() proposal.Proposal {
	return proposal.Proposal{
		ID:              "tmp-1",
		Action:          proposal.ActionCreate,
		Title:           "Ship doc",
		Notes:           "Draft by Friday",
		Owner:           "Dana",
		Priority:        proposal.PriorityHigh,
		Status:          "Not Started",
		LinkedReference: "TBD",
		StartDate:       "2026-09-01",
		DueDate:         "2026-09-04",
		FocusThisWeek:   proposal.FocusYes,
		ExternalURL:     proposal.NewTaskSentinel,
		Iteration:       1,
	}
}

func TestCreateTask(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/pages", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		parent := body["parent"].(map[string]any)
		assert.Equal(t, "db-1", parent["database_id"])

		props := body["properties"].(map[string]any)
		assert.Contains(t, props, "Name")
		assert.Contains(t, props, "Priority")
		assert.Contains(t, props, "Dates")
		// The sentinel never reaches the record service.
		raw, _ := json.Marshal(body)
		assert.NotContains(t, string(raw), proposal.NewTaskSentinel)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, c.CreateTask(context.Background(), "db-1", acceptedCreate()))
}

func TestCreateTaskRejectsUpdateProposal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	p := acceptedCreate()
	p.Action = proposal.ActionUpdate
	p.ExternalURL = "https://tasks.example.com/rec-1"
	assert.Error(t, c.CreateTask(context.Background(), "db-1", p))
}

func TestUpdateTask(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/pages/rec1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	p := acceptedCreate()
	p.ID = "rec1"
	p.Action = proposal.ActionUpdate
	p.ExternalURL = "https://tasks.example.com/Ship-doc-rec1"
	require.NoError(t, c.UpdateTask(context.Background(), p))
}

func TestUpdateTaskSurfacesServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	p := acceptedCreate()
	p.ID = "rec1"
	p.Action = proposal.ActionUpdate
	p.ExternalURL = "https://tasks.example.com/rec1"
	err := c.UpdateTask(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestRecordIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://tasks.example.com/Ship-doc-abc123", "abc123"},
		{"https://tasks.example.com/abc123", "abc123"},
		{"https://tasks.example.com/abc123/", "abc123"},
		{"", ""},
		{"no-slashes", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RecordIDFromURL(tt.url), tt.url)
	}
}
