package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	errs "github.com/servio/clientcore/internal/errors"
	"github.com/servio/clientcore/session"
)

const defaultRequestTimeout = 15 * time.Second

// Client calls the notifications API. Every request carries the current
// bearer credential and follows the bounded retry policy via session.Do.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Manager
}

// ClientOption modifies a Client at construction time.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client, primarily for testing.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a notifications API client.
func NewClient(baseURL string, sess *session.Manager, options ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[notify.NewClient] baseURL is required")
	}
	if sess == nil {
		return nil, errors.New("[notify.NewClient] session manager is required")
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		session:    sess,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// ListUnread fetches up to limit unread records, newest first.
func (c *Client) ListUnread(ctx context.Context, limit int) ([]Record, error) {
	var records []Record
	err := session.Do(ctx, c.session, func(ctx context.Context, credential string) error {
		body, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/notifications?limit=%d&read=false", limit), credential)
		if err != nil {
			return err
		}
		records, err = decodeRecords(body)
		return err
	})
	return records, err
}

// UnreadCount fetches the server-side unread count.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var count int
	err := session.Do(ctx, c.session, func(ctx context.Context, credential string) error {
		body, err := c.request(ctx, http.MethodGet, "/notifications/unread-count", credential)
		if err != nil {
			return err
		}
		count, err = decodeCount(body)
		return err
	})
	return count, err
}

// MarkRead flags one record as read on the backend.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.ack(ctx, http.MethodPut, "/notifications/"+id+"/read")
}

// MarkAllRead flags every record as read on the backend.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.ack(ctx, http.MethodPut, "/notifications/read-all")
}

// Delete removes one record on the backend.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.ack(ctx, http.MethodDelete, "/notifications/"+id)
}

func (c *Client) ack(ctx context.Context, method, path string) error {
	return session.Do(ctx, c.session, func(ctx context.Context, credential string) error {
		body, err := c.request(ctx, method, path, credential)
		if err != nil {
			return err
		}
		return decodeAck(body)
	})
}

func (c *Client) request(ctx context.Context, method, path, credential string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.request] building %s %s", method, path)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.request] %s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errs.Wrapf(errs.ErrUnauthorized, "%s %s returned %d", method, path, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s %s returned %d", method, path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.request] reading %s %s response", method, path)
	}
	return body, nil
}
