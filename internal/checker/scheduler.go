package checker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"acctcheck/internal/concurrency"
	"acctcheck/internal/remote/jobs"
	"acctcheck/internal/timeutil"
	logx "acctcheck/pkg/logx"
)

// ErrStopped is returned by PollAndSchedule after Stop.
var ErrStopped = errors.New("scheduler stopped")

// Scheduler owns the per-account timer map. Create it with New; the zero value is not usable.
type Scheduler struct {
	jobs     JobSource
	accounts AccountSource
	log      logx.Logger

	now       func() time.Time
	afterFunc AfterFunc
	observers []Observer

	smu      sync.RWMutex
	settings Settings

	mu      sync.Mutex
	timers  map[string]*TimerEntry
	gen     uint64
	stopped bool

	runCtx    context.Context
	cancelRun context.CancelFunc
	inflight  sync.WaitGroup
}

type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAfterFunc replaces time.AfterFunc.
func WithAfterFunc(f AfterFunc) Option {
	return func(s *Scheduler) {
		if f != nil {
			s.afterFunc = f
		}
	}
}

// WithObservers registers check result observers.
func WithObservers(obs ...Observer) Option {
	return func(s *Scheduler) {
		for _, o := range obs {
			if o != nil {
				s.observers = append(s.observers, o)
			}
		}
	}
}

func New(js JobSource, as AccountSource, set Settings, log logx.Logger, opts ...Option) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		jobs:      js,
		accounts:  as,
		log:       log,
		now:       time.Now,
		afterFunc: realAfterFunc,
		settings:  set.withDefaults(),
		timers:    make(map[string]*TimerEntry),
		runCtx:    ctx,
		cancelRun: cancel,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Settings returns the current runtime settings.
func (s *Scheduler) Settings() Settings {
	s.smu.RLock()
	defer s.smu.RUnlock()
	return s.settings
}

// UpdateSettings applies reloaded settings. Live timers keep their check time;
// a new lead time takes effect from the next poll.
func (s *Scheduler) UpdateSettings(set Settings) {
	s.smu.Lock()
	s.settings = set.withDefaults()
	s.smu.Unlock()
}

// PollAndSchedule runs one poll cycle: fetch waiting jobs, resolve their
// accounts, group per account and reconcile the timer map.
// A failure aborts the cycle and leaves the timer map untouched.
func (s *Scheduler) PollAndSchedule(ctx context.Context) (CycleReport, error) {
	rep := CycleReport{CycleID: uuid.NewString()}
	start := s.now()
	log := s.log.With(logx.String("cycle", rep.CycleID))

	if s.isStopped() {
		return rep, ErrStopped
	}
	set := s.Settings()

	waiting, err := s.jobs.WaitingJobs(ctx)
	if err != nil {
		return rep, fmt.Errorf("fetch waiting jobs: %w", err)
	}
	rep.Jobs = len(waiting)

	refs, err := s.resolveAccounts(ctx, log, waiting, set.DetailConcurrency)
	if err != nil {
		return rep, fmt.Errorf("resolve job accounts: %w", err)
	}

	// A cancelled cycle may have seen only part of the queue.
	if err := ctx.Err(); err != nil {
		return rep, fmt.Errorf("poll cancelled: %w", err)
	}

	groups := GroupByAccount(refs, set.LeadTimeMinutes)
	rep.Groups = len(groups)
	log.Info("scheduling account checks", logx.Int("jobs", rep.Jobs), logx.Int("accounts", rep.Groups))

	st := s.reconcile(log, groups)
	rep.Scheduled, rep.Kept, rep.Cleared = st.Scheduled, st.Kept, st.Cleared
	rep.Took = s.now().Sub(start)
	return rep, nil
}

func (s *Scheduler) resolveAccounts(ctx context.Context, log logx.Logger, waiting []jobs.Summary, limit int) ([]AccountRef, error) {
	perJob, err := concurrency.Map(ctx, waiting, limit, func(ctx context.Context, j jobs.Summary, _ int) ([]AccountRef, error) {
		at, ok := timeutil.ParseScheduledTime(j.ScheduledExecutionTime)
		if !ok {
			log.Warn("skipping job with invalid scheduled_execution_time",
				logx.Int64("job_id", j.ID), logx.String("raw", j.ScheduledExecutionTime))
			return nil, nil
		}
		d, err := s.jobs.JobDetail(ctx, j.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("job detail fetch failed; skipping job", logx.Int64("job_id", j.ID), logx.Err(err))
			return nil, nil
		}
		if d == nil {
			return nil, nil
		}
		wj := WaitingJob{JobID: j.ID, ScheduledExecutionTime: at}
		refs := make([]AccountRef, 0, len(d.Accounts))
		for _, a := range d.Accounts {
			if a.AdAccountID == "" {
				continue
			}
			refs = append(refs, AccountRef{AccountID: a.AdAccountID, Job: wj})
		}
		return refs, nil
	})
	if err != nil {
		return nil, err
	}
	var out []AccountRef
	for _, r := range perJob {
		out = append(out, r...)
	}
	return out, nil
}

// ReconcileStats counts what one reconciliation did.
type ReconcileStats struct {
	Scheduled int
	Kept      int
	Cleared   int
}

// Reconcile applies one poll's groups to the timer map.
func (s *Scheduler) Reconcile(groups []AccountJobGroup) ReconcileStats {
	return s.reconcile(s.log, groups)
}

func (s *Scheduler) reconcile(log logx.Logger, groups []AccountJobGroup) ReconcileStats {
	var st ReconcileStats
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return st
	}

	current := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g.AccountID == "" || len(g.Jobs) == 0 {
			log.Warn("account has no waiting jobs after grouping; skipping", logx.String("ad_account_id", g.AccountID))
			continue
		}
		current[g.AccountID] = struct{}{}

		existing, ok := s.timers[g.AccountID]
		if ok && !existing.CheckTime.After(g.CheckTime) {
			st.Kept++
			log.Debug("existing check is earlier or equal; keeping",
				logx.String("ad_account_id", g.AccountID),
				logx.String("check_time", timeutil.FormatDateTime(existing.CheckTime)),
			)
			continue
		}
		if ok {
			existing.handle.Stop()
		}

		s.gen++
		e := &TimerEntry{
			AccountID:             g.AccountID,
			CheckTime:             g.CheckTime,
			EarliestExecutionTime: g.EarliestExecutionTime,
			Jobs:                  append([]WaitingJob(nil), g.Jobs...),
			gen:                   s.gen,
		}
		acc, gen := g.AccountID, s.gen
		e.handle = s.afterFunc(timeutil.Until(g.CheckTime, now), func() { s.runCheck(s.runCtx, acc, gen) })
		s.timers[acc] = e
		st.Scheduled++

		log.Info("scheduled account check",
			logx.String("ad_account_id", acc),
			logx.String("check_time", timeutil.FormatDateTime(g.CheckTime)),
			logx.String("earliest_job", timeutil.FormatDateTime(g.EarliestExecutionTime)),
			logx.Int("jobs", len(g.Jobs)),
			logx.Bool("replaced", ok),
		)
	}

	for acc, e := range s.timers {
		if _, ok := current[acc]; ok {
			continue
		}
		e.handle.Stop()
		delete(s.timers, acc)
		st.Cleared++
		log.Info("cleared scheduled check; no waiting jobs", logx.String("ad_account_id", acc))
	}
	return st
}

// Pending returns a copy of the live entries ordered by check time.
func (s *Scheduler) Pending() []TimerEntry {
	s.mu.Lock()
	out := make([]TimerEntry, 0, len(s.timers))
	for _, e := range s.timers {
		cp := *e
		cp.Jobs = append([]WaitingJob(nil), e.Jobs...)
		cp.handle = nil
		out = append(out, cp)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CheckTime.Equal(out[j].CheckTime) {
			return out[i].CheckTime.Before(out[j].CheckTime)
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out
}

// PendingCount is the number of live timers.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stop cancels every pending timer and waits for in-flight checks until ctx
// is done, after which their context is cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for acc, e := range s.timers {
		e.handle.Stop()
		delete(s.timers, acc)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancelRun()
		return nil
	case <-ctx.Done():
		s.cancelRun()
		<-done
		return fmt.Errorf("wait for in-flight checks: %w", ctx.Err())
	}
}
