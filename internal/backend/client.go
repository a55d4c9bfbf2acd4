package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/platform/circuit"
)

// Client calls the provider's HTTP API. Calls are made once; a failure is
// returned to the caller, which compensates its own effects.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		if b != nil {
			cl.breaker = b
		}
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: circuit.New("service-backend"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) PayService(ctx context.Context, p Payment) error {
	return c.post(ctx, "/payments", paymentBody{
		ServiceID: p.Group.ServiceID.String(),
		GroupID:   uint64(p.Group.GroupID),
		Payment:   p,
	})
}

func (c *Client) CancelAccess(ctx context.Context, cancel Cancellation) error {
	return c.post(ctx, "/access/cancel", cancellationBody{
		ServiceID:    cancel.Group.ServiceID.String(),
		GroupID:      uint64(cancel.Group.GroupID),
		Cancellation: cancel,
	})
}

// Degraded reports whether recent calls have been failing.
func (c *Client) Degraded() bool {
	return c.breaker.IsOpen()
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode backend request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build backend request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure(ctx, path, err)
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "service backend timed out")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "service backend unreachable")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("backend %s returned %d", path, resp.StatusCode)
		c.recordFailure(ctx, path, err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "service backend rejected the request")
	}

	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "service backend recovered", "breaker", c.breaker.Name())
	}
	return nil
}

func (c *Client) recordFailure(ctx context.Context, path string, err error) {
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.WarnContext(ctx, "service backend degraded", "breaker", c.breaker.Name(), "path", path, "error", err)
		return
	}
	c.logger.DebugContext(ctx, "service backend call failed", "path", path, "error", err)
}
