package checker

import (
	"context"
	"fmt"

	"acctcheck/internal/timeutil"
	logx "acctcheck/pkg/logx"
)

// runCheck is the timer callback. It only runs if gen is still the account's
// current entry; a replaced or cancelled timer that already fired is ignored.
func (s *Scheduler) runCheck(ctx context.Context, accountID string, gen uint64) {
	s.mu.Lock()
	e, ok := s.timers[accountID]
	if !ok || e.gen != gen || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, accountID)
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	set := s.Settings()
	ctx, cancel := context.WithTimeout(ctx, set.CheckTimeout)
	defer cancel()

	res := s.check(ctx, *e, set.Recheck)
	s.logResult(res)
	for _, o := range s.observers {
		o.ObserveCheck(res)
	}
}

func (s *Scheduler) check(ctx context.Context, e TimerEntry, recheck bool) CheckResult {
	res := CheckResult{
		AccountID:             e.AccountID,
		CheckTime:             e.CheckTime,
		EarliestExecutionTime: e.EarliestExecutionTime,
		JobIDs:                jobIDs(e.Jobs),
		StartedAt:             s.now(),
	}
	finish := func(o Outcome, err error) CheckResult {
		res.Outcome = o
		res.Err = err
		res.Took = s.now().Sub(res.StartedAt)
		return res
	}

	s.log.Info("executing account check", logx.String("ad_account_id", e.AccountID))

	if recheck {
		still, err := s.HasWaitingJobs(ctx, e.AccountID)
		if err != nil {
			return finish(OutcomeRecheckFailed, err)
		}
		if !still {
			return finish(OutcomeNoWaitingJobs, nil)
		}
	}

	rec, err := s.accounts.FindAccount(ctx, e.AccountID)
	if err != nil {
		return finish(OutcomeLookupFailed, err)
	}
	if rec == nil {
		return finish(OutcomeUnmatched, nil)
	}
	res.RecordID = rec.ID
	res.AccountName = rec.AdAccountName

	if rec.Enabled() {
		return finish(OutcomeAlreadyEnabled, nil)
	}
	if err := s.accounts.EnableAccount(ctx, rec.ID); err != nil {
		return finish(OutcomeEnableFailed, err)
	}
	return finish(OutcomeEnabled, nil)
}

// HasWaitingJobs re-scans the whole waiting job list, fetching each detail in
// turn, and reports whether any job still references accountID. Detail
// failures skip that job; a list failure is returned.
func (s *Scheduler) HasWaitingJobs(ctx context.Context, accountID string) (bool, error) {
	waiting, err := s.jobs.WaitingJobs(ctx)
	if err != nil {
		return false, fmt.Errorf("recheck waiting jobs: %w", err)
	}
	for _, j := range waiting {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		d, err := s.jobs.JobDetail(ctx, j.ID)
		if err != nil {
			s.log.Warn("recheck job detail failed; skipping job", logx.Int64("job_id", j.ID), logx.Err(err))
			continue
		}
		if d == nil {
			continue
		}
		for _, a := range d.Accounts {
			if a.AdAccountID == accountID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Scheduler) logResult(res CheckResult) {
	fields := []logx.Field{
		logx.String("ad_account_id", res.AccountID),
		logx.String("outcome", string(res.Outcome)),
		logx.String("check_time", timeutil.FormatDateTime(res.CheckTime)),
		logx.Duration("took", res.Took),
	}
	if res.RecordID != 0 {
		fields = append(fields, logx.Int64("id", res.RecordID))
	}
	switch res.Outcome {
	case OutcomeEnabled:
		s.log.Info("account enabled", fields...)
	case OutcomeAlreadyEnabled:
		s.log.Info("account already enabled", fields...)
	case OutcomeNoWaitingJobs:
		s.log.Info("account no longer has waiting jobs; skipping enable", fields...)
	case OutcomeUnmatched:
		s.log.Warn("no account record matched filters; skipping enable", fields...)
	default:
		s.log.Error("account check failed", append(fields, logx.Err(res.Err))...)
	}
}
