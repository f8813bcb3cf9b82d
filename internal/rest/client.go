// Package rest is the HTTP client for the chat server's /chat endpoints.
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

	"github.com/matheus3301/chatsync/internal/model"
)

// DefaultTimeout bounds a single request when no other timeout is configured.
const DefaultTimeout = 30 * time.Second

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	Token() string
}

// Client talks to the chat server's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithTokenSource sets where the bearer token comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConversationDetail is the response of GET /chat/conversations/:peerId.
// User is nil when the server did not embed the peer's profile.
type ConversationDetail struct {
	Messages []model.Message `json:"messages"`
	User     *model.User     `json:"user,omitempty"`
}

type sendRequest struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// ListConversations fetches the full conversation directory.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	if _, err := c.do(ctx, http.MethodGet, "/chat/conversations", nil, &out); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// GetConversation fetches the message history with peerID.
func (c *Client) GetConversation(ctx context.Context, peerID string) (*ConversationDetail, error) {
	var out ConversationDetail
	path := "/chat/conversations/" + url.PathEscape(peerID)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", peerID, err)
	}
	return &out, nil
}

// SendMessage posts content to receiverID and returns the message the server created.
// A success response that does not carry the created message is a *ResponseError.
func (c *Client) SendMessage(ctx context.Context, receiverID, content string) (*model.Message, error) {
	var out model.Message
	body := sendRequest{ReceiverID: receiverID, Content: content}
	status, err := c.do(ctx, http.MethodPost, "/chat/messages", body, &out)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	if out.ID == "" || out.SenderID == "" || out.ReceiverID == "" {
		return nil, fmt.Errorf("send message: %w", &ResponseError{Status: status, Err: errIncompleteMessage})
	}
	return &out, nil
}

// MarkRead acknowledges messageID as read.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	path := "/chat/messages/" + url.PathEscape(messageID) + "/read"
	if _, err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("mark read %s: %w", messageID, err)
	}
	return nil
}

// do sends the request and decodes a 2xx body into out. It returns the
// response status whenever a response was received.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, newStatusError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, &ResponseError{Status: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, nil
}
