// Package apiclient is the single gateway to the REST backend.  It attaches
// bearer credentials, normalises error envelopes into typed errors and turns
// each endpoint's loosely shaped JSON into one canonical Go type.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	circuit "github.com/rubyist/circuitbreaker"
	"go.uber.org/zap"

	"github.com/iliyamo/filmpass/internal/session"
)

const maxBodyBytes = 1 << 20

// Doer executes HTTP requests.  *circuit.HTTPClient and *http.Client both
// satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the booking backend.
type Client struct {
	base  string
	http  Doer
	cache *BrowseCache
	log   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDoer replaces the default circuit breaking HTTP client.
func WithDoer(d Doer) Option { return func(c *Client) { c.http = d } }

// WithLogger sets the logger used for outbound call diagnostics.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// WithBrowseCache enables caching of theater and movie listings.
func WithBrowseCache(bc *BrowseCache) Option { return func(c *Client) { c.cache = bc } }

// NewBreakerClient returns an HTTP client that trips after threshold
// consecutive transport failures.
func NewBreakerClient(timeout time.Duration, threshold int64) *circuit.HTTPClient {
	return circuit.NewHTTPClient(timeout, threshold, &http.Client{Timeout: timeout})
}

// New returns a Client for the backend rooted at baseURL, for example
// "http://localhost:8080/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		log:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = NewBreakerClient(10*time.Second, 5)
	}
	return c
}

type call struct {
	op       string
	method   string
	path     string
	identity *session.Identity
	body     any
	idemKey  string
}

// do performs the call and returns the raw 2xx body.
func (c *Client) do(ctx context.Context, in call) ([]byte, int, error) {
	var rdr io.Reader
	if in.body != nil {
		bs, err := json.Marshal(in.body)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: encode body: %w", in.op, err)
		}
		rdr = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, in.method, c.base+in.path, rdr)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: build request: %w", in.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if in.identity != nil && in.identity.Token != "" {
		req.Header.Set("Authorization", "Bearer "+in.identity.Token)
	}
	if in.idemKey != "" {
		req.Header.Set("Idempotency-Key", in.idemKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("backend call failed", zap.String("op", in.op), zap.Error(err))
		return nil, 0, networkError(in.op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, networkError(in.op, err)
	}
	c.log.Debug("backend call",
		zap.String("op", in.op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, decodeError(in.op, resp.StatusCode, body)
	}
	return body, resp.StatusCode, nil
}
