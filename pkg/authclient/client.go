// Package authclient is a Go client for the pharmacy API. It keeps the
// session tokens, attaches the bearer token and, on a 401, performs one
// coalesced refresh and retries the request once.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var ErrSessionExpired = errors.New("session expired, login required")

const refreshTimeout = 10 * time.Second

// APIError is any non-2xx answer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type User struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.RWMutex
	access  string
	refresh string

	refreshGroup singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Tokens() (access, refresh string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.access, c.refresh
}

func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	c.access, c.refresh = access, refresh
	c.mu.Unlock()
}

func (c *Client) clear() { c.SetTokens("", "") }

func (c *Client) send(ctx context.Context, method, path, bearer string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		return &APIError{Status: resp.StatusCode, Message: msg.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var res loginResponse
	if err := c.send(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": password,
	}, &res); err != nil {
		return nil, err
	}
	c.SetTokens(res.AccessToken, res.RefreshToken)
	return &res.User, nil
}

// Logout revokes the refresh token on the server and always forgets the
// local session.
func (c *Client) Logout(ctx context.Context) error {
	_, refresh := c.Tokens()
	defer c.clear()
	if refresh == "" {
		return nil
	}
	return c.send(ctx, http.MethodPost, "/auth/logout", "", map[string]string{"token": refresh}, nil)
}

// Refresh rotates the session now. Concurrent callers share one request.
func (c *Client) Refresh(ctx context.Context) error {
	access, _ := c.Tokens()
	return c.refreshFrom(ctx, access)
}

// refreshFrom refreshes unless the access token already moved on from used,
// which means another request refreshed in the meantime. The shared request
// runs detached from any one caller's context; a caller that gives up only
// stops waiting.
func (c *Client) refreshFrom(ctx context.Context, used string) error {
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		access, refresh := c.Tokens()
		if access != used && access != "" {
			return nil, nil
		}
		if refresh == "" {
			return nil, ErrSessionExpired
		}

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		var res refreshResponse
		err := c.send(rctx, http.MethodPost, "/auth/refresh-token", "", map[string]string{"token": refresh}, &res)
		switch {
		case err == nil:
			c.SetTokens(res.AccessToken, res.RefreshToken)
			return nil, nil
		case sessionRejected(err):
			c.clear()
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		default:
			return nil, fmt.Errorf("refresh: %w", err)
		}
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-ch:
		return r.Err
	}
}

// sessionRejected reports answers after which the refresh token is useless.
func sessionRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// Do calls an authenticated endpoint. out may be nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	access, _ := c.Tokens()
	if access == "" {
		return ErrSessionExpired
	}

	err := c.send(ctx, method, path, access, body, out)
	if !isUnauthorized(err) {
		return err
	}

	if err := c.refreshFrom(ctx, access); err != nil {
		return err
	}

	access, _ = c.Tokens()
	err = c.send(ctx, method, path, access, body, out)
	if isUnauthorized(err) {
		c.clear()
		return ErrSessionExpired
	}
	return err
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
