package coreclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/sessionkit/pkg/slogx"
	"golang.org/x/sync/singleflight"
)

// Client talks to a set of core hosts. It is safe for concurrent use.
type Client struct {
	hosts      []string
	apiKey     string
	httpClient *http.Client
	retry      RetryConfig
	supported  []string
	logger     *slog.Logger

	cursor   atomic.Uint64
	liveness *livenessTable

	versionMu   sync.Mutex
	version     string
	negotiation singleflight.Group
}

// Response is a successful core reply.
type Response struct {
	Host       string
	StatusCode int
	Body       json.RawMessage
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return errors.New("coreclient: empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("coreclient: decode response: %w", err)
	}
	return nil
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	hosts := make([]string, 0, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		for _, parsed := range ParseHosts(h) {
			u, err := url.Parse(parsed)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return nil, fmt.Errorf("coreclient: invalid host %q", parsed)
			}
			hosts = append(hosts, parsed)
		}
	}
	if len(hosts) == 0 {
		return nil, ErrNoHosts
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	supported := cfg.SupportedVersions
	if len(supported) == 0 {
		supported = DefaultVersions
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		hosts:      hosts,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		retry:      cfg.Retry.normalized(),
		supported:  slices.Clone(supported),
		logger:     logger.With("component", "coreclient"),
		liveness:   newLivenessTable(),
	}, nil
}

// Hosts returns the configured hosts with their last observed liveness.
func (c *Client) Hosts() []HostStatus {
	return c.liveness.snapshot(c.hosts)
}

// ForceVersion pins the API version and skips negotiation.
func (c *Client) ForceVersion(v string) {
	c.versionMu.Lock()
	defer c.versionMu.Unlock()
	c.version = v
}

// Reset forgets the negotiated version, the liveness table and the rotating index.
func (c *Client) Reset() {
	c.versionMu.Lock()
	c.version = ""
	c.versionMu.Unlock()
	c.liveness.reset()
	c.cursor.Store(0)
}

// Get sends a GET with query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.send(ctx, http.MethodGet, path, query, nil)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.send(ctx, http.MethodPost, path, nil, body)
}

// Put sends body as JSON.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.send(ctx, http.MethodPut, path, nil, body)
}

// Delete sends a DELETE with optional query parameters and an optional JSON body.
func (c *Client) Delete(ctx context.Context, path string, query url.Values, body any) (*Response, error) {
	return c.send(ctx, http.MethodDelete, path, query, body)
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    []byte
	version string

	// nextHostOnError moves on to the next host after an error status
	// instead of returning it.
	nextHostOnError bool
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	version, err := c.NegotiatedVersion(ctx)
	if err != nil {
		return nil, err
	}

	req := request{method: method, path: path, query: query, version: version}
	if body != nil {
		req.body, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("coreclient: encode request body: %w", err)
		}
	}
	return c.do(ctx, req)
}

// do runs one logical call: it walks the hosts chosen for this ticket until one
// answers. Unreachable hosts are marked dead for the round, a host that
// answers with anything (including an error status) is marked alive.
func (c *Client) do(ctx context.Context, req request) (*Response, error) {
	hosts, round := c.pickHosts()
	log := slogx.FromContextOr(ctx, c.logger)

	var lastErr error
	for _, host := range hosts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.tryHost(ctx, host, req)
		if err == nil {
			c.markAlive(log, host, round)
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var unreachable *hostUnreachableError
		if errors.As(err, &unreachable) {
			if c.liveness.mark(host, round, false) {
				log.Warn("core host unreachable", "host", host, "round", round, "error", unreachable.err)
			}
			lastErr = err
			continue
		}

		c.markAlive(log, host, round)
		if req.nextHostOnError {
			log.Warn("core host answered with an error, trying next host", "host", host, "path", req.path, "error", err)
			lastErr = err
			continue
		}
		return nil, err
	}

	return nil, &ConnectivityError{Hosts: hosts, Err: lastErr}
}

func (c *Client) markAlive(log *slog.Logger, host string, round uint64) {
	if c.liveness.mark(host, round, true) {
		log.Info("core host recovered", "host", host, "round", round)
	}
}

// tryHost sends req to a single host, retrying 429 responses within this
// call's own budget.
func (c *Client) tryHost(ctx context.Context, host string, req request) (*Response, error) {
	log := slogx.FromContextOr(ctx, c.logger)

	for attempt := 0; ; attempt++ {
		status, body, err := c.roundTrip(ctx, host, req)
		if err != nil {
			return nil, err
		}

		switch {
		case status >= 200 && status < 300:
			return &Response{Host: host, StatusCode: status, Body: body}, nil

		case status == http.StatusTooManyRequests:
			if attempt >= c.retry.MaxRetries {
				return nil, &RateLimitedError{
					Host:     host,
					Method:   req.method,
					Path:     req.path,
					Attempts: attempt + 1,
					Body:     body,
				}
			}
			log.Debug("core rate limited, retrying",
				"host", host, "path", req.path, "attempt", attempt+1, "max_retries", c.retry.MaxRetries)

			timer := time.NewTimer(c.retry.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}

		default:
			return nil, &RequestError{
				Host:       host,
				Method:     req.method,
				Path:       req.path,
				StatusCode: status,
				Body:       body,
			}
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, host string, req request) (int, []byte, error) {
	target := host + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("coreclient: build request: %w", err)
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.version != "" {
		httpReq.Header.Set(HeaderVersion, req.version)
	}
	if c.apiKey != "" {
		httpReq.Header.Set(HeaderAPIKey, c.apiKey)
	}
	if rid, ok := RecipeIDFromContext(ctx); ok {
		httpReq.Header.Set(HeaderRecipeID, rid)
	}
	injectTraceparent(ctx, httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, &hostUnreachableError{host: host, err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &hostUnreachableError{host: host, err: fmt.Errorf("read response body: %w", err)}
	}
	return resp.StatusCode, data, nil
}
