package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pulsekit/healthmem/pkg/domain/interfaces"
	"github.com/pulsekit/healthmem/pkg/domain/model"
	"github.com/pulsekit/healthmem/pkg/utils/logging"
	"github.com/pulsekit/healthmem/pkg/utils/safe"
)

const maxErrorBody = 4096

// Client talks to a mem0 compatible REST service
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
}

var _ interfaces.MemoryBackend = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a backend client for baseURL authenticated with apiKey
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("memory API key is required")
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse memory base URL", goerr.V("base_url", baseURL))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, goerr.New("memory base URL must be http or https", goerr.V("base_url", baseURL))
	}

	c := &Client{
		baseURL: u,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type createRequest struct {
	Messages []message      `json:"messages"`
	UserID   string         `json:"user_id"`
	AgentID  string         `json:"agent_id,omitempty"`
	RunID    string         `json:"run_id,omitempty"`
	Metadata model.Metadata `json:"metadata"`
	Infer    bool           `json:"infer"`
}

type searchRequest struct {
	Query   string         `json:"query"`
	UserID  string         `json:"user_id"`
	AgentID string         `json:"agent_id,omitempty"`
	Filters map[string]any `json:"filters,omitempty"`
	Limit   int            `json:"limit"`
}

type updateRequest struct {
	Text     string         `json:"text"`
	Metadata model.Metadata `json:"metadata"`
}

// record is the backend representation of a memory
type record struct {
	ID        string          `json:"id"`
	Memory    string          `json:"memory"`
	UserID    string          `json:"user_id"`
	Metadata  json.RawMessage `json:"metadata"`
	Score     float64         `json:"score"`
	CreatedAt string          `json:"created_at"`
}

func (r record) toModel() (model.MemoryRecord, error) {
	out := model.MemoryRecord{
		ID:      model.MemoryID(r.ID),
		OwnerID: r.UserID,
		Text:    r.Memory,
		Score:   r.Score,
	}
	if len(r.Metadata) > 0 && string(r.Metadata) != "null" {
		md, err := model.ParseMetadata(r.Metadata)
		if err != nil {
			return out, goerr.Wrap(err, "backend returned malformed metadata", goerr.V("memory_id", r.ID))
		}
		out.Metadata = *md
	}
	if r.CreatedAt != "" {
		if ts, err := model.ParseTimestamp(r.CreatedAt); err == nil {
			out.CreatedAt = ts
		}
	}
	return out, nil
}

// Create stores text verbatim. Inference is disabled so the backend keeps
// the ingestor's wording.
func (c *Client) Create(ctx context.Context, req model.CreateRequest) (model.MemoryID, error) {
	body := createRequest{
		Messages: []message{{Role: "user", Content: req.Text}},
		UserID:   req.OwnerID,
		AgentID:  req.AgentID,
		RunID:    req.RunID,
		Metadata: req.Metadata,
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/v1/memories/", nil, body, &raw); err != nil {
		return "", err
	}

	records, err := decodeRecords(raw)
	if err != nil {
		return "", err
	}
	if len(records) == 0 || records[0].ID == "" {
		return "", goerr.New("backend returned no memory ID")
	}
	return model.MemoryID(records[0].ID), nil
}

// Search runs a semantic query scoped to the owner
func (c *Client) Search(ctx context.Context, ownerID, agentID, query string, filters model.SearchFilters, limit int) ([]model.MemoryRecord, error) {
	body := searchRequest{
		Query:   query,
		UserID:  ownerID,
		AgentID: agentID,
		Limit:   limit,
	}
	if filters.Category != "" {
		body.Filters = map[string]any{"category": filters.Category}
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/v1/memories/search/", nil, body, &raw); err != nil {
		return nil, err
	}
	return toModels(ctx, raw, filters)
}

// ListAll returns every record of the owner
func (c *Client) ListAll(ctx context.Context, ownerID, agentID string, filters model.SearchFilters) ([]model.MemoryRecord, error) {
	q := url.Values{}
	q.Set("user_id", ownerID)
	if agentID != "" {
		q.Set("agent_id", agentID)
	}
	if filters.Category != "" {
		q.Set("category", filters.Category.String())
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/v1/memories/", q, nil, &raw); err != nil {
		return nil, err
	}
	return toModels(ctx, raw, filters)
}

// GetByID fetches one record
func (c *Client) GetByID(ctx context.Context, id model.MemoryID) (*model.MemoryRecord, error) {
	var r record
	if err := c.do(ctx, http.MethodGet, memoryPath(id), nil, nil, &r); err != nil {
		return nil, err
	}
	rec, err := r.toModel()
	if err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return &rec, nil
}

// Update replaces text and metadata
func (c *Client) Update(ctx context.Context, id model.MemoryID, text string, metadata model.Metadata) (model.MemoryID, error) {
	var r record
	if err := c.do(ctx, http.MethodPut, memoryPath(id), nil, updateRequest{Text: text, Metadata: metadata}, &r); err != nil {
		return "", err
	}
	if r.ID == "" {
		return id, nil
	}
	return model.MemoryID(r.ID), nil
}

// Delete removes one record
func (c *Client) Delete(ctx context.Context, id model.MemoryID) error {
	return c.do(ctx, http.MethodDelete, memoryPath(id), nil, nil, nil)
}

func memoryPath(id model.MemoryID) string {
	return "/v1/memories/" + url.PathEscape(id.String()) + "/"
}

// do sends one request. Non-2xx answers become *model.BackendStatusError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL.JoinPath(path)
	// JoinPath drops the trailing slash the API expects
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return goerr.Wrap(err, "failed to encode request", goerr.V("path", path))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return goerr.Wrap(err, "failed to build request", goerr.V("path", path))
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return goerr.Wrap(err, "memory backend request failed", goerr.V("method", method), goerr.V("path", path))
	}
	defer safe.DrainClose(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "failed to decode response", goerr.V("method", method), goerr.V("path", path))
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, m := range []string{payload.Detail, payload.Error, payload.Message} {
			if m != "" {
				msg = m
				break
			}
		}
	}
	return model.NewBackendStatusError(resp.StatusCode, msg)
}

// decodeRecords accepts both a bare list and a {"results": [...]} envelope
func decodeRecords(raw json.RawMessage) ([]record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []record
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory list")
		}
		return list, nil
	}

	var envelope struct {
		Results []record `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, goerr.Wrap(err, "failed to decode memory envelope")
	}
	return envelope.Results, nil
}

// toModels converts backend records, dropping those outside the category
// filter in case the backend ignored it. Records with undecodable metadata,
// e.g. written by another client, are skipped.
func toModels(ctx context.Context, raw json.RawMessage, filters model.SearchFilters) ([]model.MemoryRecord, error) {
	records, err := decodeRecords(raw)
	if err != nil {
		return nil, err
	}

	out := make([]model.MemoryRecord, 0, len(records))
	for _, r := range records {
		rec, err := r.toModel()
		if err != nil {
			logging.From(ctx).Warn("Skipping memory with malformed metadata",
				"memory_id", r.ID,
				"error", err,
			)
			continue
		}
		if filters.Category != "" && rec.Metadata.Category != filters.Category {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
