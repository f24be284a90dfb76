// Package tanshu is the HTTP client for the precious-metals price API.
// It validates the response envelope and hands back the raw record list.
package tanshu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/metalquote/internal/domain"
	"github.com/kailas-cloud/metalquote/internal/metrics"
)

// Defaults for the upstream API.
const (
	DefaultBaseURL = "https://api.tanshuapi.com"
	DefaultTimeout = 10 * time.Second

	codeSuccess  = 1
	maxBodyBytes = 4 << 20
)

// Config holds the upstream client settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond caps outbound calls. Zero disables the limiter.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// Client calls the price API. Every successful round-trip is a billed call.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a price API client.
func NewClient(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		limiter: limiter,
		logger:  logger,
	}
}

type envelope struct {
	Code *flexInt `json:"code"`
	Msg  string   `json:"msg"`
	Data *struct {
		List json.RawMessage `json:"list"`
	} `json:"data"`
}

// Fetch performs GET {base}{endpoint}?{params}&key=... and returns data.list.
// Transport failures wrap domain.ErrNetwork, malformed responses wrap
// domain.ErrFetchFailed, and non-success codes return *domain.UpstreamError.
func (c *Client) Fetch(ctx context.Context, key domain.RequestKey) ([]byte, error) {
	endpoint := key.Endpoint()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %v: %w", err, domain.ErrNetwork)
		}
	}

	q := key.Query()
	q.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %v: %w", err, domain.ErrFetchFailed)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.observe(endpoint, "error", "network")
		// The URL carries the API key; report the endpoint only.
		return nil, fmt.Errorf("GET %s: %v: %w", endpoint, redact(err, c.apiKey), domain.ErrNetwork)
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.observe(endpoint, "error", "network")
		return nil, fmt.Errorf("read %s: %v: %w", endpoint, err, domain.ErrNetwork)
	}

	if resp.StatusCode != http.StatusOK {
		c.observe(endpoint, strconv.Itoa(resp.StatusCode), "http_status")
		return nil, fmt.Errorf("GET %s: HTTP %d: %w", endpoint, resp.StatusCode, domain.ErrFetchFailed)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.observe(endpoint, "200", "decode")
		return nil, fmt.Errorf("decode %s: %v: %w", endpoint, err, domain.ErrFetchFailed)
	}

	if env.Code != nil && int(*env.Code) != codeSuccess {
		c.observe(endpoint, "200", "api_error")
		upErr := domain.NewUpstreamError(int(*env.Code), env.Msg)
		c.logger.Warn("Price API returned error code",
			zap.String("endpoint", endpoint),
			zap.Int("code", upErr.Code),
			zap.String("msg", env.Msg),
		)
		return nil, upErr
	}

	if env.Data == nil || len(env.Data.List) == 0 || bytes.Equal(env.Data.List, []byte("null")) {
		c.observe(endpoint, "200", "empty_response")
		return nil, fmt.Errorf("%s: missing data.list: %w", endpoint, domain.ErrFetchFailed)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "200").Inc()
	return []byte(env.Data.List), nil
}

// HealthCheck verifies the API host answers. It does not send the API key,
// so it is never billed.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("price API unreachable: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("price API unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) observe(endpoint, status, errorType string) {
	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, status).Inc()
	metrics.UpstreamErrorsTotal.WithLabelValues(endpoint, errorType).Inc()
}

func redact(err error, secret string) string {
	msg := err.Error()
	if secret == "" {
		return msg
	}
	return strings.ReplaceAll(msg, secret, "***")
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return errors.New("code is not an integer: " + string(data))
	}
	*f = flexInt(n)
	return nil
}
