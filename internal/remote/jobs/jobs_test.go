package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"acctcheck/internal/remote"
	logx "acctcheck/pkg/logx"
)

func envelope(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	b, err := json.Marshal(map[string]any{"code": 0, "message": "ok", "data": data})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	_, _ = w.Write(b)
}

func TestWaitingJobsPaginatesAndFilters(t *testing.T) {
	t.Parallel()
	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("status") != StatusWaiting || q.Get("page_size") != "2" {
			t.Errorf("unexpected query %v", q)
		}
		if _, ok := q["create_by"]; !ok {
			t.Errorf("placeholder create_by missing from %v", q)
		}
		pages.Add(1)
		page, _ := strconv.Atoi(q.Get("page"))
		switch page {
		case 1:
			envelope(t, w, map[string]any{"list": []Summary{
				{ID: 1, Status: "Waiting", IsScheduled: true, ScheduledExecutionTime: "2024/05/01 10:00"},
				{ID: 2, Status: "Waiting", IsScheduled: false, ScheduledExecutionTime: "2024/05/01 10:00"},
			}})
		case 2:
			envelope(t, w, map[string]any{"list": []Summary{
				{ID: 3, Status: "Running", IsScheduled: true, ScheduledExecutionTime: "2024/05/01 10:00"},
				{ID: 4, Status: "Waiting", IsScheduled: true, ScheduledExecutionTime: ""},
			}})
		default:
			envelope(t, w, map[string]any{"list": []Summary{
				{ID: 5, Status: "Waiting", IsScheduled: true, ScheduledExecutionTime: "2024/05/02 08:00"},
			}})
		}
	}))
	defer srv.Close()

	c := remote.NewClient(remote.Config{TeamID: 9, Token: "t"}, remote.WithHTTPClient(srv.Client()))
	s := NewSource(Config{ListURL: srv.URL, DetailURL: srv.URL, PageSize: 2}, c, logx.Nop())
	got, err := s.WaitingJobs(context.Background())
	if err != nil {
		t.Fatalf("WaitingJobs error: %v", err)
	}
	if pages.Load() != 3 {
		t.Fatalf("pages fetched = %d, want 3", pages.Load())
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 5 {
		t.Fatalf("waiting jobs = %+v, want ids [1 5]", got)
	}
}

func TestWaitingJobsAbortsOnFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":500,"message":"busy"}`))
	}))
	defer srv.Close()
	c := remote.NewClient(remote.Config{TeamID: 9, Token: "t"}, remote.WithHTTPClient(srv.Client()))
	s := NewSource(Config{ListURL: srv.URL, PageSize: 2}, c, logx.Nop())
	if _, err := s.WaitingJobs(context.Background()); err == nil {
		t.Fatal("expected error from code != 0")
	} else if _, ok := remote.IsAPIError(err); !ok {
		t.Fatalf("expected wrapped APIError, got %v", err)
	}
}

func TestJobDetail(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("job_id") {
		case "101":
			envelope(t, w, Detail{Accounts: []Account{{ID: 1, AdAccountID: "AD1"}}})
		default:
			envelope(t, w, Detail{Accounts: []Account{}})
		}
	}))
	defer srv.Close()
	c := remote.NewClient(remote.Config{TeamID: 9, Token: "t"}, remote.WithHTTPClient(srv.Client()))
	s := NewSource(Config{DetailURL: srv.URL}, c, logx.Nop())

	d, err := s.JobDetail(context.Background(), 101)
	if err != nil || d == nil || len(d.Accounts) != 1 || d.Accounts[0].AdAccountID != "AD1" {
		t.Fatalf("JobDetail(101) = %+v, %v", d, err)
	}
	d, err = s.JobDetail(context.Background(), 102)
	if err != nil || d != nil {
		t.Fatalf("JobDetail(empty) = %+v, %v; want nil, nil", d, err)
	}
}
