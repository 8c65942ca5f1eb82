// Package driver invokes the poll cycle on a fixed interval with robfig/cron.
//
// Cycles never overlap: the job is wrapped with cron.SkipIfStillRunning, and
// the immediate startup run and manual triggers go through the same wrapper.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"acctcheck/internal/timeutil"
	logx "acctcheck/pkg/logx"
)

// MinInterval is the shortest accepted poll interval.
const MinInterval = time.Second

// PollFunc runs one cycle. Returned errors are logged; they never stop the driver.
type PollFunc func(ctx context.Context) error

type Config struct {
	Interval time.Duration
	// Timeout bounds one cycle (0 = no bound beyond Stop).
	Timeout time.Duration
}

type Driver struct {
	cfg  Config
	poll PollFunc
	log  logx.Logger

	mu       sync.Mutex
	c        *cron.Cron
	job      cron.Job
	runCtx   context.Context
	cancel   context.CancelFunc
	running  sync.WaitGroup
	stopping bool
}

func New(cfg Config, poll PollFunc, log logx.Logger) *Driver {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Interval < MinInterval {
		cfg.Interval = MinInterval
	}
	return &Driver{cfg: cfg, poll: poll, log: log}
}

// Interval is the effective (floored) interval.
func (d *Driver) Interval() time.Duration { return d.cfg.Interval }

// Start schedules the poll every interval and runs the first cycle right away.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.c != nil || d.stopping {
		return errors.New("driver already started")
	}

	d.runCtx, d.cancel = context.WithCancel(ctx)
	cl := cronLogger{log: d.log}
	d.c = cron.New(cron.WithLocation(timeutil.Location()), cron.WithLogger(cl))
	// Wrapped once so scheduled runs and manual triggers share the
	// skip-if-running state.
	d.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(d.runOnce))
	d.c.Schedule(cron.Every(d.cfg.Interval), d.job)
	d.c.Start()

	d.log.Info("poll driver started", logx.Duration("interval", d.cfg.Interval))
	d.triggerLocked()
	return nil
}

// Trigger runs a cycle now unless one is already running.
func (d *Driver) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.triggerLocked()
}

func (d *Driver) triggerLocked() {
	if d.job == nil || d.stopping {
		return
	}
	go d.job.Run()
}

func (d *Driver) runOnce() {
	d.mu.Lock()
	ctx := d.runCtx
	if ctx == nil || d.stopping {
		d.mu.Unlock()
		return
	}
	d.running.Add(1)
	d.mu.Unlock()
	defer d.running.Done()

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	if err := d.poll(ctx); err != nil {
		d.log.Error("poll cycle failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return
	}
	d.log.Debug("poll cycle finished", logx.Duration("took", time.Since(start)))
}

// Stop halts scheduling and waits for a running cycle until ctx is done,
// then cancels it.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	c, cancel := d.c, d.cancel
	if c == nil {
		d.mu.Unlock()
		return nil
	}
	d.c = nil
	d.job = nil
	d.stopping = true
	d.mu.Unlock()

	cronDone := c.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		d.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		d.log.Info("poll driver stopped")
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		return fmt.Errorf("wait for poll cycle: %w", ctx.Err())
	}
}

// cronLogger routes cron's logr-style calls to logx. Scheduling chatter goes
// to debug; skipped runs are info.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	fields := kvFields(keysAndValues)
	if msg == "skip" {
		l.log.Info("poll cycle skipped; previous cycle still running", fields...)
		return
	}
	l.log.Debug("cron: "+msg, fields...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
