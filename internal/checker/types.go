package checker

import (
	"context"
	"time"

	"acctcheck/internal/remote/accounts"
	"acctcheck/internal/remote/jobs"
)

// JobSource lists waiting jobs and resolves their accounts.
type JobSource interface {
	WaitingJobs(ctx context.Context) ([]jobs.Summary, error)
	JobDetail(ctx context.Context, jobID int64) (*jobs.Detail, error)
}

// AccountSource resolves and enables account records.
type AccountSource interface {
	FindAccount(ctx context.Context, adAccountID string) (*accounts.Record, error)
	EnableAccount(ctx context.Context, id int64) error
}

// WaitingJob is a job id paired with its parsed execution instant.
type WaitingJob struct {
	JobID                  int64
	ScheduledExecutionTime time.Time
}

// AccountJobGroup is the set of waiting jobs that reference one account.
// Jobs are ordered ascending by execution time.
type AccountJobGroup struct {
	AccountID             string
	Jobs                  []WaitingJob
	EarliestExecutionTime time.Time
	CheckTime             time.Time
}

// JobIDs returns the group's job ids in schedule order.
func (g AccountJobGroup) JobIDs() []int64 {
	return jobIDs(g.Jobs)
}

// TimerEntry is a pending check for one account.
type TimerEntry struct {
	AccountID             string
	CheckTime             time.Time
	EarliestExecutionTime time.Time
	Jobs                  []WaitingJob

	gen    uint64
	handle Timer
}

// Timer is a cancellable deferred call. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// AfterFunc arms f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Settings are the runtime knobs that may change on config reload.
type Settings struct {
	// LeadTimeMinutes is how long before the earliest job the check runs.
	LeadTimeMinutes float64
	// DetailConcurrency bounds job detail fetches inside one poll.
	DetailConcurrency int
	// Recheck re-confirms the account still has waiting jobs at fire time.
	Recheck bool
	// CheckTimeout bounds one fired check (0 = 60s).
	CheckTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.LeadTimeMinutes <= 0 {
		s.LeadTimeMinutes = 3
	}
	if s.DetailConcurrency <= 0 {
		s.DetailConcurrency = 5
	}
	if s.CheckTimeout <= 0 {
		s.CheckTimeout = 60 * time.Second
	}
	return s
}

// CycleReport summarises one poll.
type CycleReport struct {
	CycleID   string
	Jobs      int
	Groups    int
	Scheduled int
	Kept      int
	Cleared   int
	Took      time.Duration
}

// Outcome classifies a fired check.
type Outcome string

const (
	OutcomeEnabled        Outcome = "enabled"
	OutcomeAlreadyEnabled Outcome = "already_enabled"
	OutcomeNoWaitingJobs  Outcome = "no_waiting_jobs"
	OutcomeUnmatched      Outcome = "unmatched"
	OutcomeLookupFailed   Outcome = "lookup_failed"
	OutcomeEnableFailed   Outcome = "enable_failed"
	OutcomeRecheckFailed  Outcome = "recheck_failed"
)

// Outcomes lists every outcome (metrics pre-registers the label values).
func Outcomes() []Outcome {
	return []Outcome{
		OutcomeEnabled, OutcomeAlreadyEnabled, OutcomeNoWaitingJobs, OutcomeUnmatched,
		OutcomeLookupFailed, OutcomeEnableFailed, OutcomeRecheckFailed,
	}
}

// Failed reports whether the outcome is an error rather than a decision.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeLookupFailed, OutcomeEnableFailed, OutcomeRecheckFailed:
		return true
	default:
		return false
	}
}

// CheckResult is what one fired check did.
type CheckResult struct {
	AccountID             string
	RecordID              int64
	AccountName           string
	Outcome               Outcome
	Err                   error
	CheckTime             time.Time
	EarliestExecutionTime time.Time
	JobIDs                []int64
	StartedAt             time.Time
	Took                  time.Duration
}

// Observer receives every check result. Implementations must not block for long;
// they run on the check's goroutine.
type Observer interface {
	ObserveCheck(res CheckResult)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(res CheckResult)

func (f ObserverFunc) ObserveCheck(res CheckResult) { f(res) }

func jobIDs(js []WaitingJob) []int64 {
	out := make([]int64, 0, len(js))
	for _, j := range js {
		out = append(out, j.JobID)
	}
	return out
}
