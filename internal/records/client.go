// Package records implements the record-keeping collaborators: resolving
// the destination database for a meeting, fetching its existing records,
// and persisting accepted proposals. The proposal lifecycle engine only
// sees the contract shapes; everything Notion-specific stays here.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sajaddeen/readai-task-automation/internal/config"
	"github.com/sajaddeen/readai-task-automation/internal/proposal"
)

const notionVersion = "2022-06-28"

// ErrNoDestination means no destination database could be resolved for a
// meeting. Fatal for the whole session; nothing gets queued.
var ErrNoDestination = errors.New("no destination database resolvable")

// Client talks to the record-keeping service.
type Client struct {
	baseURL    string
	apiKey     config.Secret
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a record-keeping client from config.
func NewClient(cfg config.RecordsConfig, logger *zap.Logger) (*Client, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("records api key required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Value())
	req.Header.Set("Notion-Version", notionVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("record service error (%d): %s", resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}

// searchRequest and searchResponse cover the database search endpoint.
type searchRequest struct {
	Query  string `json:"query"`
	Filter struct {
		Value    string `json:"value"`
		Property string `json:"property"`
	} `json:"filter"`
}

type searchResponse struct {
	Results []struct {
		ID    string `json:"id"`
		Title []struct {
			PlainText string `json:"plain_text"`
		} `json:"title"`
	} `json:"results"`
}

// ResolveDestination finds the task database for a meeting. The first
// search hit wins; an empty result is ErrNoDestination, which is fatal for
// the session.
func (c *Client) ResolveDestination(ctx context.Context, meetingTitle string) (string, error) {
	req := searchRequest{Query: meetingTitle}
	req.Filter.Value = "database"
	req.Filter.Property = "object"

	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, "/v1/search", req, &resp); err != nil {
		return "", fmt.Errorf("resolving destination: %w", err)
	}
	if len(resp.Results) == 0 {
		return "", fmt.Errorf("%w for meeting %q", ErrNoDestination, meetingTitle)
	}
	return resp.Results[0].ID, nil
}

// Wire shapes for database pages, narrowed to the properties this service
// reads and writes.

type richText struct {
	PlainText string `json:"plain_text,omitempty"`
	Text      *struct {
		Content string `json:"content"`
	} `json:"text,omitempty"`
}

type selectValue struct {
	Name string `json:"name"`
}

type dateValue struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

type pageProperties struct {
	Name *struct {
		Title []richText `json:"title"`
	} `json:"Name,omitempty"`
	Notes *struct {
		RichText []richText `json:"rich_text"`
	} `json:"Notes,omitempty"`
	Owner *struct {
		RichText []richText `json:"rich_text"`
	} `json:"Owner,omitempty"`
	Status *struct {
		Select *selectValue `json:"select"`
	} `json:"Status,omitempty"`
	Priority *struct {
		Select *selectValue `json:"select"`
	} `json:"Priority,omitempty"`
	Project *struct {
		RichText []richText `json:"rich_text"`
	} `json:"Project,omitempty"`
	LinkedReference *struct {
		RichText []richText `json:"rich_text"`
	} `json:"Linked Reference,omitempty"`
	Dates *struct {
		Date *dateValue `json:"date"`
	} `json:"Dates,omitempty"`
	Focus *struct {
		Select *selectValue `json:"select"`
	} `json:"Focus This Week,omitempty"`
}

type queryResponse struct {
	Results []struct {
		ID         string         `json:"id"`
		URL        string         `json:"url"`
		Properties pageProperties `json:"properties"`
	} `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

func plainText(rt []richText) string {
	var b strings.Builder
	for _, t := range rt {
		b.WriteString(t.PlainText)
	}
	return b.String()
}

// ListRecords fetches every record of the destination database, following
// pagination to the end.
func (c *Client) ListRecords(ctx context.Context, databaseID string) ([]proposal.ExistingRecord, error) {
	var out []proposal.ExistingRecord
	cursor := ""
	for {
		body := map[string]any{"page_size": 100}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var resp queryResponse
		if err := c.do(ctx, http.MethodPost, "/v1/databases/"+databaseID+"/query", body, &resp); err != nil {
			return nil, fmt.Errorf("listing records: %w", err)
		}

		for _, page := range resp.Results {
			rec := proposal.ExistingRecord{
				ID:           page.ID,
				CanonicalURL: page.URL,
			}
			if page.Properties.Name != nil {
				rec.Title = plainText(page.Properties.Name.Title)
			}
			if page.Properties.Notes != nil {
				rec.Notes = plainText(page.Properties.Notes.RichText)
			}
			if page.Properties.Status != nil && page.Properties.Status.Select != nil {
				rec.Status = page.Properties.Status.Select.Name
			}
			out = append(out, rec)
		}

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}
	return out, nil
}

// buildProperties maps a proposal onto page properties.
func buildProperties(p proposal.Proposal) map[string]any {
	text := func(s string) []map[string]any {
		return []map[string]any{{"text": map[string]string{"content": s}}}
	}

	props := map[string]any{
		"Name":  map[string]any{"title": text(p.Title)},
		"Notes": map[string]any{"rich_text": text(p.Notes)},
		"Owner": map[string]any{"rich_text": text(p.Owner)},
	}
	if p.Status != "" {
		props["Status"] = map[string]any{"select": map[string]string{"name": p.Status}}
	}
	if p.Priority != "" {
		props["Priority"] = map[string]any{"select": map[string]string{"name": string(p.Priority)}}
	}
	if p.Project != "" {
		props["Project"] = map[string]any{"rich_text": text(p.Project)}
	}
	if p.LinkedReference != "" {
		props["Linked Reference"] = map[string]any{"rich_text": text(p.LinkedReference)}
	}
	if p.FocusThisWeek != "" {
		props["Focus This Week"] = map[string]any{"select": map[string]string{"name": string(p.FocusThisWeek)}}
	}
	if p.StartDate != "" || p.DueDate != "" {
		date := map[string]string{}
		switch {
		case p.StartDate != "" && p.DueDate != "":
			date["start"] = p.StartDate
			date["end"] = p.DueDate
		case p.StartDate != "":
			date["start"] = p.StartDate
		default:
			date["start"] = p.DueDate
		}
		props["Dates"] = map[string]any{"date": date}
	}
	return props
}

// CreateTask persists an accepted create-proposal as a new record in the
// destination database. The external url sentinel never leaves this
// process; only the real fields are written.
func (c *Client) CreateTask(ctx context.Context, databaseID string, p proposal.Proposal) error {
	if p.Action != proposal.ActionCreate {
		return fmt.Errorf("create called with %s proposal %s", p.Action, p.ID)
	}
	body := map[string]any{
		"parent":     map[string]string{"database_id": databaseID},
		"properties": buildProperties(p),
	}
	if err := c.do(ctx, http.MethodPost, "/v1/pages", body, nil); err != nil {
		return fmt.Errorf("creating task %q: %w", p.Title, err)
	}
	return nil
}

// UpdateTask writes an accepted update-proposal over the matched record.
// The record id is derived from the proposal's canonical url.
func (c *Client) UpdateTask(ctx context.Context, p proposal.Proposal) error {
	if p.Action != proposal.ActionUpdate {
		return fmt.Errorf("update called with %s proposal %s", p.Action, p.ID)
	}
	recordID := RecordIDFromURL(p.ExternalURL)
	if recordID == "" {
		return fmt.Errorf("cannot derive record id from url %q", p.ExternalURL)
	}
	body := map[string]any{
		"properties": buildProperties(p),
	}
	if err := c.do(ctx, http.MethodPatch, "/v1/pages/"+recordID, body, nil); err != nil {
		return fmt.Errorf("updating task %q: %w", p.Title, err)
	}
	return nil
}

// RecordIDFromURL derives the record id from a canonical page url: the
// last path segment, minus any slug prefix before the final hyphen.
func RecordIDFromURL(url string) string {
	url = strings.TrimSuffix(url, "/")
	slash := strings.LastIndex(url, "/")
	if slash < 0 || slash == len(url)-1 {
		return ""
	}
	segment := url[slash+1:]
	if dash := strings.LastIndex(segment, "-"); dash >= 0 && dash < len(segment)-1 {
		return segment[dash+1:]
	}
	return segment
}
