// Package api is the thin HTTP layer the client-side modules share: one
// base URL, one bearer token, and a Result normalization so callers never
// see a raw transport error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const defaultBaseURL = "http://localhost:8080"

// Result is the boundary type every submission and moderation action
// resolves to. Nothing is thrown past it.
type Result struct {
	Success bool
	Message string
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

func New() *Client {
	base := strings.TrimSpace(os.Getenv("BIOMATECA_API_URL"))
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func NewWithBaseURL(base string) *Client {
	c := New()
	if base = strings.TrimSpace(base); base != "" {
		c.baseURL = strings.TrimRight(base, "/")
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

func (c *Client) ClearToken() { c.SetToken("") }

func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

func (c *Client) BaseURL() string { return c.baseURL }

type apiErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Do sends the request and decodes the JSON body into dest when dest is
// non-nil. Error envelopes come back as *StatusError so callers can branch
// on the code.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, contentType string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var env apiErrorEnvelope
		msg := strings.TrimSpace(string(raw))
		code := ""
		if jsonErr := json.Unmarshal(raw, &env); jsonErr == nil && env.Error.Message != "" {
			msg = env.Error.Message
			code = env.Error.Code
		}
		return &StatusError{Status: resp.StatusCode, Code: code, Message: msg}
	}

	if dest != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, dest); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) GetJSON(ctx context.Context, path string, dest any) error {
	return c.Do(ctx, http.MethodGet, path, nil, "", dest)
}

func (c *Client) PostJSON(ctx context.Context, path string, payload any, dest any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	return c.Do(ctx, http.MethodPost, path, body, "application/json", dest)
}

type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Normalize folds any error into the Result boundary.
func Normalize(err error) Result {
	if err == nil {
		return Result{Success: true}
	}
	return Result{Success: false, Message: err.Error()}
}
