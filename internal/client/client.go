// Package client is an HTTP client for the prompt history API. Authenticated
// calls that fail with 401 or 403 are retried once after a session refresh.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

// State is the session state as observed by the client.
type State int

const (
	Anonymous State = iota
	Authenticated
	NeedsRefresh
	Revoked
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	case NeedsRefresh:
		return "needs_refresh"
	case Revoked:
		return "revoked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type User struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
}

type Message struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"createdAt"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// IsAuthFailure reports whether err is a 401 or 403 answer.
func IsAuthFailure(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

type Client struct {
	baseURL string
	hc      *http.Client

	mu    sync.Mutex
	state State
	user  *User

	// refreshMu serializes refreshes; gen counts successful ones so a caller
	// that lost the race reuses the winner's session instead of rotating again.
	refreshMu sync.Mutex
	gen       uint64
}

// New returns a Client for baseURL. A nil hc gets a 30s timeout; a cookie
// jar is attached when hc has none.
func New(baseURL string, hc *http.Client) (*Client, error) {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      hc,
	}, nil
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns the signed-in account, or nil.
func (c *Client) User() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Client) setSession(s State, u *User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
	switch {
	case u != nil:
		c.user = u
	case s == Anonymous || s == Revoked:
		c.user = nil
	}
}

type userEnvelope struct {
	User User `json:"user"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

func (c *Client) Register(ctx context.Context, email, password, name string) (*User, error) {
	var out userEnvelope
	if err := c.send(ctx, http.MethodPost, "/api/auth/register", credentials{email, password, name}, &out); err != nil {
		return nil, err
	}
	c.setSession(Authenticated, &out.User)
	return &out.User, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var out userEnvelope
	if err := c.send(ctx, http.MethodPost, "/api/auth/login", credentials{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	c.setSession(Authenticated, &out.User)
	return &out.User, nil
}

// Refresh exchanges the refresh cookie for a new session. An auth failure
// moves the client to Revoked.
func (c *Client) Refresh(ctx context.Context) (*User, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Client) refreshLocked(ctx context.Context) (*User, error) {
	var out userEnvelope
	if err := c.send(ctx, http.MethodPost, "/api/auth/refresh", nil, &out); err != nil {
		if IsAuthFailure(err) {
			c.setSession(Revoked, nil)
		}
		return nil, err
	}
	c.gen++
	c.setSession(Authenticated, &out.User)
	return &out.User, nil
}

// Logout ends the session locally whatever the server answers.
func (c *Client) Logout(ctx context.Context) error {
	err := c.send(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.setSession(Anonymous, nil)
	return err
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var out userEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) ListHistory(ctx context.Context) ([]Message, error) {
	var out []Message
	if err := c.do(ctx, http.MethodGet, "/api/prompts", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Message{}
	}
	return out, nil
}

func (c *Client) SubmitPrompt(ctx context.Context, prompt string) (Message, error) {
	var out Message
	err := c.do(ctx, http.MethodPost, "/api/prompts", map[string]string{"prompt": prompt}, &out)
	return out, err
}

func (c *Client) ClearHistory(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/prompts", nil, nil)
}

// do sends an authenticated request. On 401/403 it refreshes once and
// retries once; a failed refresh surfaces the original error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	c.refreshMu.Lock()
	gen := c.gen
	c.refreshMu.Unlock()

	err := c.send(ctx, method, path, body, out)
	if err == nil || !IsAuthFailure(err) {
		return err
	}

	c.setSession(NeedsRefresh, nil)
	c.refreshMu.Lock()
	if c.gen == gen {
		if _, rerr := c.refreshLocked(ctx); rerr != nil {
			c.refreshMu.Unlock()
			return err
		}
	} else {
		c.setSession(Authenticated, nil)
	}
	c.refreshMu.Unlock()

	return c.send(ctx, method, path, body, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
