// Package rest is the client for the chat server's request/response API.
// It owns chat and message CRUD; everything realtime goes through the
// push channel instead.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the server, with the error message
// the server body carried when it had one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// Client talks to the chat REST API using a bearer credential.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.httpc.Timeout = d }
}

// NewClient creates a REST client for the given server base URL.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer credential, e.g. after a re-login.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Error
		}
		return nil, apiErr
	}
	return data, nil
}

func decode[T any](data []byte) (T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("unmarshal response: %w", err)
	}
	return result, nil
}

// ListChats returns all chats the local user participates in.
func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/chats", nil)
	if err != nil {
		return nil, err
	}
	return decode[[]Chat](data)
}

// GetChat returns a single chat by id.
func (c *Client) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/chats/"+url.PathEscape(chatID), nil)
	if err != nil {
		return nil, err
	}
	return decode[*Chat](data)
}

// CreateChat creates a direct or group chat.
func (c *Client) CreateChat(ctx context.Context, req *CreateChatRequest) (*Chat, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/chats", req)
	if err != nil {
		return nil, err
	}
	return decode[*Chat](data)
}

// UpdateChat updates chat settings.
func (c *Client) UpdateChat(ctx context.Context, chatID string, req *UpdateChatRequest) (*Chat, error) {
	data, err := c.doRequest(ctx, http.MethodPut, "/chats/"+url.PathEscape(chatID), req)
	if err != nil {
		return nil, err
	}
	return decode[*Chat](data)
}

// AddParticipants adds users to a group chat.
func (c *Client) AddParticipants(ctx context.Context, chatID string, userIDs []string) (*Chat, error) {
	body := map[string][]string{"participants": userIDs}
	data, err := c.doRequest(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/participants", body)
	if err != nil {
		return nil, err
	}
	return decode[*Chat](data)
}

// RemoveParticipant removes a user from a group chat.
func (c *Client) RemoveParticipant(ctx context.Context, chatID, userID string) (*Chat, error) {
	path := "/chats/" + url.PathEscape(chatID) + "/participants/" + url.PathEscape(userID)
	data, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return nil, err
	}
	return decode[*Chat](data)
}

// ListMessages returns the message history page for a chat.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/chats/"+url.PathEscape(chatID)+"/messages", nil)
	if err != nil {
		return nil, err
	}
	return decode[[]Message](data)
}

// CreateMessage submits a message; the response carries the canonical
// server-assigned id and timestamp.
func (c *Client) CreateMessage(ctx context.Context, chatID, text string) (*Message, error) {
	body := map[string]string{"chatId": chatID, "text": text}
	data, err := c.doRequest(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/messages", body)
	if err != nil {
		return nil, err
	}
	return decode[*Message](data)
}

// DeleteMessage removes a message server-side.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/messages/"+url.PathEscape(messageID), nil)
	return err
}

// MarkRead records the local user's read receipt for a message.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	_, err := c.doRequest(ctx, http.MethodPut, "/messages/"+url.PathEscape(messageID)+"/read", nil)
	return err
}

// SearchUsers queries the user directory.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]User, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/users/search?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	return decode[[]User](data)
}
