package checker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"acctcheck/internal/remote/accounts"
	"acctcheck/internal/remote/jobs"
	"acctcheck/internal/timeutil"
)

func shanghai(t *testing.T, raw string) time.Time {
	t.Helper()
	at, ok := timeutil.ParseScheduledTime(raw)
	if !ok {
		t.Fatalf("ParseScheduledTime(%q) failed", raw)
	}
	return at
}

type fakeTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fire runs the callback even if the timer was stopped, like a time.AfterFunc
// that had already started when Stop was called.
func (t *fakeTimer) fire() { t.fn() }

type fakeTimers struct {
	mu    sync.Mutex
	armed []*fakeTimer
}

func (f *fakeTimers) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{delay: d, fn: fn}
	f.armed = append(f.armed, t)
	return t
}

func (f *fakeTimers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.armed)
}

func (f *fakeTimers) last(t *testing.T) *fakeTimer {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.armed) == 0 {
		t.Fatal("no timer armed")
	}
	return f.armed[len(f.armed)-1]
}

type fakeJobs struct {
	mu        sync.Mutex
	list      []jobs.Summary
	details   map[int64]*jobs.Detail
	listErr   error
	detailErr map[int64]error
	listCalls int
	// onList runs inside WaitingJobs after the list is captured.
	onList func()
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{details: map[int64]*jobs.Detail{}, detailErr: map[int64]error{}}
}

func (f *fakeJobs) add(id int64, when string, accountIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = append(f.list, jobs.Summary{ID: id, Status: jobs.StatusWaiting, IsScheduled: true, ScheduledExecutionTime: when})
	d := &jobs.Detail{}
	for _, a := range accountIDs {
		d.Accounts = append(d.Accounts, jobs.Account{AdAccountID: a})
	}
	f.details[id] = d
}

func (f *fakeJobs) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = nil
	f.details = map[int64]*jobs.Detail{}
}

func (f *fakeJobs) WaitingJobs(context.Context) ([]jobs.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := append([]jobs.Summary(nil), f.list...)
	if f.onList != nil {
		f.onList()
	}
	return out, nil
}

func (f *fakeJobs) JobDetail(_ context.Context, id int64) (*jobs.Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.detailErr[id]; err != nil {
		return nil, err
	}
	return f.details[id], nil
}

type fakeAccounts struct {
	mu        sync.Mutex
	record    *accounts.Record
	findErr   error
	enableErr error
	finds     []string
	enabled   []int64

	// block, when set, makes FindAccount wait for release or ctx.
	block   chan struct{}
	started chan struct{}
}

func (f *fakeAccounts) FindAccount(ctx context.Context, adAccountID string) (*accounts.Record, error) {
	f.mu.Lock()
	f.finds = append(f.finds, adAccountID)
	block, started := f.block, f.started
	f.mu.Unlock()
	if block != nil {
		if started != nil {
			close(started)
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.record == nil {
		return nil, nil
	}
	cp := *f.record
	return &cp, nil
}

func (f *fakeAccounts) EnableAccount(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enableErr != nil {
		return f.enableErr
	}
	f.enabled = append(f.enabled, id)
	return nil
}

func (f *fakeAccounts) findCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.finds)
}

func (f *fakeAccounts) enableCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enabled)
}

type resultSink struct {
	mu  sync.Mutex
	got []CheckResult
}

func (r *resultSink) ObserveCheck(res CheckResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, res)
}

func (r *resultSink) results() []CheckResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CheckResult(nil), r.got...)
}

var errBoom = errors.New("boom")

type harness struct {
	s      *Scheduler
	jobs   *fakeJobs
	accts  *fakeAccounts
	timers *fakeTimers
	sink   *resultSink
}

func newHarness(t *testing.T, set Settings) *harness {
	t.Helper()
	now := shanghai(t, "2024/05/01 09:00")
	h := &harness{jobs: newFakeJobs(), accts: &fakeAccounts{}, timers: &fakeTimers{}, sink: &resultSink{}}
	h.s = New(h.jobs, h.accts, set, nopLogger(),
		WithClock(func() time.Time { return now }),
		WithAfterFunc(h.timers.AfterFunc),
		WithObservers(h.sink),
	)
	t.Cleanup(func() { _ = h.s.Stop(context.Background()) })
	return h
}
