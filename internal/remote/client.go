package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/time/rate"
)

// Config holds the credentials and transport knobs shared by all endpoints.
type Config struct {
	TeamID int64
	Token  string

	// Timeout bounds a single request (0 = 15s).
	Timeout time.Duration
	// RatePerSec caps outgoing requests across all endpoints (0 = unlimited).
	RatePerSec float64
}

// RequestObserver is notified after every request. Endpoint is the short name
// passed to Get; err is nil on success.
type RequestObserver interface {
	ObserveRequest(endpoint string, took time.Duration, err error)
}

// Client performs enveloped GET requests.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	obs     RequestObserver
}

type Option func(*Client)

// WithHTTPClient replaces the pooled default client (tests use httptest clients).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithObserver(obs RequestObserver) Option {
	return func(c *Client) { c.obs = obs }
}

func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = timeout

	c := &Client{cfg: cfg, http: hc}
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Get calls rawURL with params plus the shared team_id/token and decodes the
// envelope's data into out. A missing or null data field yields ErrNoData.
func (c *Client) Get(ctx context.Context, endpoint, rawURL string, params url.Values, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.obs != nil {
			c.obs.ObserveRequest(endpoint, time.Since(start), err)
		}
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit: %w", endpoint, err)
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s: parse url: %w", endpoint, err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("team_id", strconv.FormatInt(c.cfg.TeamID, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", endpoint, err)
	}
	req.Header.Set("token", c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), 256)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%s: decode envelope: %w", endpoint, err)
	}
	if env.Code != 0 {
		return &APIError{Endpoint: endpoint, Code: env.Code, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%s: %w", endpoint, ErrNoData)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", endpoint, err)
	}
	return nil
}

// IsNoData reports whether err is (or wraps) ErrNoData.
func IsNoData(err error) bool { return errors.Is(err, ErrNoData) }

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
