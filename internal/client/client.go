// Package client talks to the RepQuest level API on behalf of one user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/repquest/internal/models"
)

var (
	// ErrUnauthorized means the token was missing, expired or rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the level does not exist.
	ErrNotFound = errors.New("not found")
	// ErrServer is a server or transport failure; the call may be retried.
	ErrServer = errors.New("server error")
	// ErrMalformedLevel means the server answered with a payload that is not a
	// usable level.
	ErrMalformedLevel = errors.New("malformed level payload")
)

// Client is an authenticated REST client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client targeting baseURL with the given bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrServer, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrServer, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s %s", ErrUnauthorized, method, path)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s %s returned %d: %s", ErrServer, method, path, resp.StatusCode, bytes.TrimSpace(respBody))
	}
	return respBody, nil
}

// Level fetches one level with the user's completion and unlock flags.
func (c *Client) Level(ctx context.Context, levelNumber int) (models.Level, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/levels/"+strconv.Itoa(levelNumber), nil, nil)
	if err != nil {
		return models.Level{}, err
	}

	var env models.LevelEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.Level{}, fmt.Errorf("%w: %v", ErrMalformedLevel, err)
	}
	if !env.Success || env.Data == nil || env.Data.Level == nil {
		return models.Level{}, fmt.Errorf("%w: missing level in response", ErrMalformedLevel)
	}
	lvl := *env.Data.Level
	if err := lvl.Validate(); err != nil {
		return models.Level{}, fmt.Errorf("%w: %v", ErrMalformedLevel, err)
	}
	return lvl, nil
}

// CompleteLevel records the level as cleared. The server makes this idempotent.
func (c *Client) CompleteLevel(ctx context.Context, levelNumber int) (models.UserProgress, error) {
	path := "/api/levels/" + strconv.Itoa(levelNumber) + "/complete"
	body, err := c.do(ctx, http.MethodPost, path, nil, struct{}{})
	if err != nil {
		return models.UserProgress{}, err
	}
	var resp models.CompleteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.UserProgress{}, fmt.Errorf("%w: decode completion: %v", ErrServer, err)
	}
	return resp.Progress, nil
}

// LevelQuery filters ListLevels. Zero values are omitted.
type LevelQuery struct {
	Page       int
	Limit      int
	Status     string
	Difficulty string
}

// ListLevels fetches one page of levels.
func (c *Client) ListLevels(ctx context.Context, q LevelQuery) (models.LevelPage, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Difficulty != "" {
		params.Set("difficulty", q.Difficulty)
	}
	body, err := c.do(ctx, http.MethodGet, "/api/levels", params, nil)
	if err != nil {
		return models.LevelPage{}, err
	}
	var page models.LevelPage
	if err := json.Unmarshal(body, &page); err != nil {
		return models.LevelPage{}, fmt.Errorf("%w: decode levels: %v", ErrServer, err)
	}
	return page, nil
}

// UserProgress fetches the caller's progress.
func (c *Client) UserProgress(ctx context.Context) (models.UserProgress, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/user-progress", nil, nil)
	if err != nil {
		return models.UserProgress{}, err
	}
	var resp models.ProgressResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.UserProgress{}, fmt.Errorf("%w: decode progress: %v", ErrServer, err)
	}
	return resp.Progress, nil
}
