// ABOUTME: REST client for the chat platform's HTTP API
// ABOUTME: Covers gateway discovery, channel messages, and direct messages

package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultBaseURL is the platform API root. Overridable for tests and
// self-hosted deployments.
const DefaultBaseURL = "https://chat.example.com/api/v1"

const defaultTimeout = 15 * time.Second

// ErrUnauthorized indicates the token was rejected by the API.
var ErrUnauthorized = errors.New("chat api: unauthorized")

// ErrRateLimited indicates the API asked us to slow down.
var ErrRateLimited = errors.New("chat api: rate limited")

// APIError is a non-2xx response that is not one of the sentinel cases.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: status %d: %s", e.Status, e.Message)
}

// GatewayInfo is the connection bootstrap returned by the API: the
// websocket URL and the shard count the platform recommends.
type GatewayInfo struct {
	URL    string `json:"url"`
	Shards int    `json:"shards"`
}

// Message is a posted chat message as returned by the API.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

// Client talks to the platform REST API. It implements the reply surface
// plugins use through the bot facade.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option adjusts a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a REST client authenticated with the given bot token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetGatewayBot fetches the websocket URL and recommended shard count.
func (c *Client) GetGatewayBot(ctx context.Context) (*GatewayInfo, error) {
	var info GatewayInfo
	if err := c.do(ctx, http.MethodGet, "/gateway/bot", nil, &info); err != nil {
		return nil, err
	}
	if info.URL == "" {
		return nil, errors.New("chat api: gateway response missing url")
	}
	if info.Shards < 1 {
		info.Shards = 1
	}
	return &info, nil
}

// CreateMessage posts a message to a channel.
func (c *Client) CreateMessage(ctx context.Context, channelID, content string) (*Message, error) {
	body := map[string]string{"content": content}
	var msg Message
	path := "/channels/" + channelID + "/messages"
	if err := c.do(ctx, http.MethodPost, path, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Say implements the reply surface: post to a channel, discard the result.
func (c *Client) Say(ctx context.Context, channelID, message string) error {
	_, err := c.CreateMessage(ctx, channelID, message)
	return err
}

// Whisper opens a direct message channel to the user and posts there.
func (c *Client) Whisper(ctx context.Context, userID, message string) error {
	var ch struct {
		ID string `json:"id"`
	}
	body := map[string]string{"recipient_id": userID}
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels", body, &ch); err != nil {
		return fmt.Errorf("opening dm channel: %w", err)
	}
	return c.Say(ctx, ch.ID, message)
}

// do performs one authenticated request, encoding body as JSON when present
// and decoding the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w (retry after %s)", ErrRateLimited,
			retryAfter(resp))
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, Message: string(msg)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func retryAfter(resp *http.Response) string {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return (time.Duration(secs) * time.Second).String()
		}
		return v
	}
	return "unknown"
}
