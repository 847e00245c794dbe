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
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/finboard/internal/engine/cache"
	"github.com/rshade/finboard/internal/session"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 20 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 16 << 20

// Transport errors.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRequestFailed = errors.New("request failed")
	ErrInvalidConfig = errors.New("invalid client configuration")
)

// Endpoints holds the backend paths used by the typed helpers.
type Endpoints struct {
	Valuation  string `yaml:"valuation"`
	Evaluation string `yaml:"evaluation"`
	SessionTTL string `yaml:"session_ttl"`
	Login      string `yaml:"login"`
	Refresh    string `yaml:"refresh"`
	Version    string `yaml:"version"`
}

// DefaultEndpoints returns the paths of the current backend.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Valuation:  "/api/valuation/bulk",
		Evaluation: "/api/evaluation/grades",
		SessionTTL: "/api/auth/ttl",
		Login:      "/api/auth/login",
		Refresh:    "/api/auth/refresh",
		Version:    "/api/version",
	}
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	UserAgent string
	Endpoints Endpoints
}

// Response is the uniform result of Send. Exactly one of Data and Err is
// meaningful: Err is nil on HTTP 2xx.
type Response struct {
	Data   json.RawMessage
	Err    error
	Status int
	Cached bool
}

// Client talks to the dashboard backend.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	endpoints Endpoints
	userAgent string
	bus       *session.Bus
	cache     *cache.Store
	logger    zerolog.Logger

	mu    sync.RWMutex
	token string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBus sets the bus used to announce forced logouts.
func WithBus(bus *session.Bus) Option {
	return func(c *Client) { c.bus = bus }
}

// WithCache enables response caching for valuation lookups.
func WithCache(store *cache.Store) Option {
	return func(c *Client) { c.cache = store }
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q is not absolute", ErrInvalidConfig, cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	endpoints := cfg.Endpoints
	if endpoints == (Endpoints{}) {
		endpoints = DefaultEndpoints()
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "finboard"
	}

	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: timeout},
		endpoints: endpoints,
		userAgent: userAgent,
		logger:    zerolog.Nop(),
		token:     cfg.Token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken replaces the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Endpoints returns the configured backend paths.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Send performs one request. For GET and DELETE params become query
// parameters, otherwise they are sent as a JSON body. Slices are
// comma-joined in query strings.
func (c *Client) Send(ctx context.Context, path string, params map[string]any, method string) Response {
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	query := url.Values{}
	var body io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		for k, v := range params {
			query.Set(k, queryValue(v))
		}
	} else if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return Response{Err: fmt.Errorf("encoding request body: %w", err)}
		}
		body = bytes.NewReader(encoded)
	}

	cacheKey := ""
	if c.cacheable(method, path) {
		cacheKey = cache.GenerateKey(cache.KeyParams{
			Method: method,
			Path:   path,
			Params: flatten(query),
			Scope:  c.baseURL.Host,
		})
		if entry, err := c.cache.Get(cacheKey); err == nil {
			c.logger.Debug().Ctx(ctx).Str("path", path).Msg("cache hit")
			return Response{Data: entry.Body, Status: http.StatusOK, Cached: true}
		}
	}

	resp := c.do(ctx, method, path, query, body)

	if cacheKey != "" && resp.Err == nil {
		if err := c.cache.Put(cacheKey, method+" "+path, resp.Data); err != nil {
			c.logger.Warn().Ctx(ctx).Err(err).Msg("cache write failed (ignored)")
		}
	}
	return resp
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) Response {
	target := c.baseURL.JoinPath(path)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return Response{Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Ctx(ctx).Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return Response{Err: fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)}
	}
	defer httpResp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	c.logger.Debug().Ctx(ctx).
		Str("method", method).
		Str("path", path).
		Int("status", httpResp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request completed")

	resp := Response{Status: httpResp.StatusCode}
	switch {
	case httpResp.StatusCode == http.StatusUnauthorized:
		resp.Err = fmt.Errorf("%w: %s %s", ErrUnauthorized, method, path)
		c.announceForcedLogout(ctx, method+" "+path)
	case httpResp.StatusCode < 200 || httpResp.StatusCode > 299:
		resp.Err = fmt.Errorf("%w: %s %s: %s%s", ErrRequestFailed, method, path, httpResp.Status, errorDetail(data))
	case readErr != nil:
		resp.Err = fmt.Errorf("%w: reading body of %s %s: %w", ErrRequestFailed, method, path, readErr)
	default:
		if len(bytes.TrimSpace(data)) == 0 {
			data = []byte("null")
		}
		if !json.Valid(data) {
			resp.Err = fmt.Errorf("%w: %s %s returned invalid JSON", ErrRequestFailed, method, path)
			return resp
		}
		resp.Data = json.RawMessage(data)
	}
	return resp
}

func (c *Client) cacheable(method, path string) bool {
	return c.cache != nil && method == http.MethodGet && path == c.endpoints.Valuation
}

func (c *Client) announceForcedLogout(ctx context.Context, reason string) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(session.Event{Signal: session.SignalForcedLogout, Reason: reason}); err != nil {
		c.logger.Debug().Ctx(ctx).Err(err).Msg("forced logout not announced")
	}
}

// errorDetail extracts a backend error message for inclusion in errors.
func errorDetail(body []byte) string {
	var payload map[string]any
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	for _, key := range []string{"message", "error", "detail"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return ": " + s
		}
	}
	return ""
}

func queryValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ",")
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func flatten(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = strings.Join(values[k], ",")
	}
	return out
}
