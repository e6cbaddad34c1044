package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/storage"
)

// HTTPClient implements DataSource by calling the RepQuest REST API.
// Used for stdio MCP mode where the binary runs next to the assistant but
// data lives on the remote server. The bearer token decides whose progress
// is read, so user id arguments are ignored.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("httpclient: %s: %w", path, storage.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

// ListLevels maps the offset window onto REST pages. Offsets that are not a
// multiple of the limit round down to the containing page.
func (c *HTTPClient) ListLevels(ctx context.Context, f storage.LevelFilter) ([]models.Level, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(f.Offset/limit+1))
	params.Set("limit", strconv.Itoa(limit))
	if f.Status != "" {
		params.Set("status", f.Status)
	}
	if f.Difficulty != "" {
		params.Set("difficulty", f.Difficulty)
	}

	body, err := c.get(ctx, "/api/levels", params)
	if err != nil {
		return nil, 0, err
	}

	var page models.LevelPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, 0, fmt.Errorf("httpclient: decode levels: %w", err)
	}
	return page.Levels, page.TotalLevels, nil
}

func (c *HTTPClient) GetLevel(ctx context.Context, levelNumber int) (models.Level, error) {
	body, err := c.get(ctx, "/api/levels/"+strconv.Itoa(levelNumber), nil)
	if err != nil {
		return models.Level{}, err
	}

	var env models.LevelEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.Level{}, fmt.Errorf("httpclient: decode level: %w", err)
	}
	if !env.Success || env.Data == nil || env.Data.Level == nil {
		return models.Level{}, fmt.Errorf("httpclient: level %d: %w", levelNumber, storage.ErrNotFound)
	}
	return *env.Data.Level, nil
}

func (c *HTTPClient) GetOrCreateUserProgress(ctx context.Context, _ uuid.UUID) (models.UserProgress, error) {
	body, err := c.get(ctx, "/api/user-progress", nil)
	if err != nil {
		return models.UserProgress{}, err
	}

	var resp models.ProgressResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.UserProgress{}, fmt.Errorf("httpclient: decode progress: %w", err)
	}
	return resp.Progress, nil
}

func (c *HTTPClient) ListCompletions(ctx context.Context, _ uuid.UUID) ([]storage.Completion, error) {
	body, err := c.get(ctx, "/api/user-progress/completions", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Completions []storage.Completion `json:"completions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("httpclient: decode completions: %w", err)
	}
	return resp.Completions, nil
}
