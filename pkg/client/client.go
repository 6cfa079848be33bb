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
	"strings"
	"time"

	appErrors "github.com/nayandeep999/truefeedback/pkg/errors"
)

// Message mirrors the wire representation of an inbox message.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenPair carries the session tokens issued on sign-in and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SignupInput is the registration payload.
type SignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Client is a thin JSON client for the truefeedback API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option customises the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken seeds the bearer token used for authenticated calls.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New constructs a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken updates the bearer token after a sign-in or refresh.
func (c *Client) SetToken(token string) {
	c.token = token
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Signup registers a new account and triggers the verification email.
func (c *Client) Signup(ctx context.Context, input SignupInput) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/auth/signup", input, false)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// VerifyCode submits the emailed verification code for the username.
func (c *Client) VerifyCode(ctx context.Context, username, code string) (string, error) {
	payload := map[string]string{"username": username, "code": code}
	env, err := c.do(ctx, http.MethodPost, "/api/auth/verify-code", payload, false)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// SignIn exchanges credentials for a token pair and retains the access token.
func (c *Client) SignIn(ctx context.Context, identifier, password string) (TokenPair, error) {
	payload := map[string]string{"identifier": identifier, "password": password}
	env, err := c.do(ctx, http.MethodPost, "/api/auth/login", payload, false)
	if err != nil {
		return TokenPair{}, err
	}

	var data struct {
		Tokens TokenPair `json:"tokens"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return TokenPair{}, fmt.Errorf("client: decode login payload: %w", err)
	}

	c.token = data.Tokens.AccessToken
	return data.Tokens, nil
}

// CheckUsername reports whether a username is still available. Its signature
// matches CheckFunc so it can back an AvailabilityChecker directly.
func (c *Client) CheckUsername(ctx context.Context, username string) (Availability, error) {
	path := "/api/auth/check-username?username=" + url.QueryEscape(username)
	env, err := c.do(ctx, http.MethodGet, path, nil, false)
	if err != nil {
		var appErr *appErrors.AppError
		// Validation failures carry a usable message for the form hint.
		if errors.As(err, &appErr) && appErr.StatusCode == http.StatusBadRequest {
			return Availability{Username: username, Available: false, Message: appErr.Message}, nil
		}
		return Availability{}, err
	}

	var data struct {
		Available bool `json:"available"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Availability{}, fmt.Errorf("client: decode availability payload: %w", err)
	}

	return Availability{Username: username, Available: data.Available, Message: env.Message}, nil
}

// SubmitMessage sends an anonymous message to the named recipient.
func (c *Client) SubmitMessage(ctx context.Context, username, content string) (string, error) {
	payload := map[string]string{"content": content}
	env, err := c.do(ctx, http.MethodPost, "/api/messages/"+url.PathEscape(username), payload, false)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// Messages fetches the authenticated owner's inbox, newest first.
func (c *Client) Messages(ctx context.Context) ([]Message, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/messages", nil, true)
	if err != nil {
		return nil, err
	}

	var data struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("client: decode messages payload: %w", err)
	}
	return data.Messages, nil
}

// DeleteMessage removes one of the owner's messages, returning how many
// entries the server actually removed (zero for an already-deleted id).
func (c *Client) DeleteMessage(ctx context.Context, messageID string) (int, error) {
	env, err := c.do(ctx, http.MethodDelete, "/api/messages/"+url.PathEscape(messageID), nil, true)
	if err != nil {
		return 0, err
	}

	var data struct {
		Removed int `json:"removed"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return 0, fmt.Errorf("client: decode delete payload: %w", err)
	}
	return data.Removed, nil
}

// AcceptingMessages reads the owner's acceptance flag.
func (c *Client) AcceptingMessages(ctx context.Context) (bool, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/accept-messages", nil, true)
	if err != nil {
		return false, err
	}
	return decodeAcceptance(env.Data)
}

// SetAcceptingMessages updates the owner's acceptance flag and returns the
// value the server actually stored.
func (c *Client) SetAcceptingMessages(ctx context.Context, accept bool) (bool, error) {
	payload := map[string]bool{"accept_messages": accept}
	env, err := c.do(ctx, http.MethodPost, "/api/accept-messages", payload, true)
	if err != nil {
		return false, err
	}
	return decodeAcceptance(env.Data)
}

func decodeAcceptance(raw json.RawMessage) (bool, error) {
	var data struct {
		IsAcceptingMessages bool `json:"is_accepting_messages"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return false, fmt.Errorf("client: decode acceptance payload: %w", err)
	}
	return data.IsAcceptingMessages, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, authed bool) (*envelope, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("client: decode response (status %d): %w", resp.StatusCode, err)
	}

	if !env.Success {
		appErr := &appErrors.AppError{
			Code:       "REQUEST_FAILED",
			Message:    "request failed",
			StatusCode: resp.StatusCode,
		}
		if env.Error != nil {
			appErr.Code = env.Error.Code
			appErr.Message = env.Error.Message
		}
		return nil, appErr
	}

	return &env, nil
}
