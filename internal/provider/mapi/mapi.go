// Package mapi provides the HTTP transport for the management API.
// It is the only place that knows the wire details: base URL per region,
// the Authorization header, the Total header and 429 backoff.
package mapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/contentops/storymig/internal/provider"
)

const (
	// MaxRetries is how often a 429 answer is retried before giving up.
	MaxRetries = 3

	defaultBackoff = time.Second
	defaultTimeout = 30 * time.Second
)

// Transport implements provider.Transport over net/http.
type Transport struct {
	client    *http.Client
	regions   *provider.RegionRegistry
	logger    zerolog.Logger
	backoff   time.Duration
	userAgent string
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

// WithRegions overrides the region registry.
func WithRegions(r *provider.RegionRegistry) Option {
	return func(t *Transport) { t.regions = r }
}

// WithLogger sets the transport logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithBackoff sets the wait used when a 429 carries no Retry-After header.
func WithBackoff(d time.Duration) Option {
	return func(t *Transport) { t.backoff = d }
}

// New creates a management API transport.
func New(opts ...Option) *Transport {
	t := &Transport{
		client:    &http.Client{Timeout: defaultTimeout},
		regions:   provider.NewRegionRegistry(),
		logger:    zerolog.Nop(),
		backoff:   defaultBackoff,
		userAgent: "storymig",
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Do executes req, retrying rate-limited answers.
func (t *Transport) Do(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	endpoint, err := t.endpoint(req)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if req.Body != nil {
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		resp, retryAfter, err := t.once(ctx, req, endpoint, payload)
		if err == nil {
			return resp, nil
		}
		if retryAfter < 0 || attempt >= MaxRetries {
			return nil, err
		}

		t.logger.Warn().
			Str("method", req.Method).
			Str("path", req.Path).
			Int("attempt", attempt+1).
			Dur("wait", retryAfter).
			Msg("rate limited, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryAfter):
		}
	}
}

// once performs a single round trip. retryAfter is negative unless the answer
// was a 429.
func (t *Transport) once(ctx context.Context, req *provider.Request, endpoint string, payload []byte) (*provider.Response, time.Duration, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to build request: %w", err)
	}
	hreq.Header.Set("Authorization", req.Token)
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("User-Agent", t.userAgent)
	if payload != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}

	hresp, err := t.client.Do(hreq)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to call %s %s: %w", req.Method, req.Path, err)
	}
	defer hresp.Body.Close()

	data, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to read response: %w", err)
	}

	if hresp.StatusCode < 200 || hresp.StatusCode > 299 {
		rerr := &provider.RemoteError{
			Method: req.Method,
			Path:   req.Path,
			Status: hresp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
		if hresp.StatusCode == http.StatusTooManyRequests {
			return nil, t.retryAfter(hresp.Header.Get("Retry-After")), rerr
		}
		return nil, -1, rerr
	}

	total, _ := strconv.Atoi(hresp.Header.Get("Total"))
	return &provider.Response{Data: data, Total: total, Status: hresp.StatusCode}, -1, nil
}

func (t *Transport) endpoint(req *provider.Request) (string, error) {
	base, err := t.regions.BaseURL(req.Region)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(fmt.Sprintf("%s/spaces/%s/%s", strings.TrimRight(base, "/"), url.PathEscape(req.SpaceID), strings.TrimLeft(req.Path, "/")))
	if err != nil {
		return "", fmt.Errorf("invalid endpoint for %s: %w", req.Path, err)
	}
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}
	return u.String(), nil
}

func (t *Transport) retryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return t.backoff
}
