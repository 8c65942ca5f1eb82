package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	errs  []error
}

func (o *recordingObserver) ObserveRequest(endpoint string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, endpoint)
	o.errs = append(o.errs, err)
}

func TestClientSendsSharedCredentials(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("token"); got != "secret" {
			t.Errorf("token header = %q, want secret", got)
		}
		if got := r.URL.Query().Get("team_id"); got != "42" {
			t.Errorf("team_id = %q, want 42", got)
		}
		if got := r.URL.Query().Get("job_id"); got != "7" {
			t.Errorf("job_id = %q, want 7", got)
		}
		_, _ = w.Write([]byte(`{"code":0,"message":"ok","data":{"name":"x"}}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := NewClient(Config{TeamID: 42, Token: "secret"}, WithHTTPClient(srv.Client()), WithObserver(obs))
	var out struct {
		Name string `json:"name"`
	}
	if err := c.Get(context.Background(), "job/detail", srv.URL, url.Values{"job_id": {"7"}}, &out); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if out.Name != "x" {
		t.Fatalf("decoded name = %q, want x", out.Name)
	}
	if len(obs.calls) != 1 || obs.calls[0] != "job/detail" || obs.errs[0] != nil {
		t.Fatalf("observer calls = %v errs = %v", obs.calls, obs.errs)
	}
}

func TestClientErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name: "api code", status: 200, body: `{"code":1001,"message":"bad team"}`,
			check: func(t *testing.T, err error) {
				ae, ok := IsAPIError(err)
				if !ok {
					t.Fatalf("expected APIError, got %v", err)
				}
				if ae.Code != 1001 || ae.Message != "bad team" || ae.Endpoint != "ep" {
					t.Fatalf("unexpected APIError %+v", ae)
				}
			},
		},
		{
			name: "http status", status: 502, body: "bad gateway",
			check: func(t *testing.T, err error) {
				var he *HTTPError
				if !errors.As(err, &he) || he.StatusCode != 502 {
					t.Fatalf("expected HTTPError 502, got %v", err)
				}
			},
		},
		{
			name: "null data", status: 200, body: `{"code":0,"message":"ok","data":null}`,
			check: func(t *testing.T, err error) {
				if !IsNoData(err) {
					t.Fatalf("expected ErrNoData, got %v", err)
				}
			},
		},
		{
			name: "not json", status: 200, body: `<html>`,
			check: func(t *testing.T, err error) {
				if err == nil {
					t.Fatal("expected decode error")
				}
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			c := NewClient(Config{TeamID: 1, Token: "t"}, WithHTTPClient(srv.Client()))
			var out map[string]any
			tt.check(t, c.Get(context.Background(), "ep", srv.URL, nil, &out))
		})
	}
}

func TestClientNilOutIgnoresData(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"message":"ok"}`))
	}))
	defer srv.Close()
	c := NewClient(Config{TeamID: 1, Token: "t"}, WithHTTPClient(srv.Client()))
	if err := c.Get(context.Background(), "account/status", srv.URL, nil, nil); err != nil {
		t.Fatalf("Get with nil out: %v", err)
	}
}

func TestClientRateLimitHonoursContext(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"message":"ok"}`))
	}))
	defer srv.Close()
	c := NewClient(Config{TeamID: 1, Token: "t", RatePerSec: 0.001}, WithHTTPClient(srv.Client()))
	// First request consumes the single burst token.
	if err := c.Get(context.Background(), "ep", srv.URL, nil, nil); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Get(ctx, "ep", srv.URL, nil, nil); err == nil {
		t.Fatal("expected rate limiter to give up before the deadline")
	}
}
