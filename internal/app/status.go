package app

import (
	"context"
	"time"

	"acctcheck/internal/checker"
	"acctcheck/internal/notifier"
	"acctcheck/internal/runtime/supervisor"
	"acctcheck/internal/storage"
	"acctcheck/internal/timeutil"
)

const statusRecentChecks = 20

// Status is the /status document.
type Status struct {
	StartedAt     time.Time              `json:"started_at"`
	Uptime        string                 `json:"uptime"`
	PollInterval  string                 `json:"poll_interval"`
	Settings      StatusSettings         `json:"settings"`
	Pending       []PendingCheck         `json:"pending"`
	RecentChecks  []storage.CheckRecord  `json:"recent_checks,omitempty"`
	Notifications []notifier.HistoryItem `json:"notifications,omitempty"`
	Goroutines    supervisor.Snapshot    `json:"goroutines"`
	EventsDropped uint64                 `json:"events_dropped"`
}

type StatusSettings struct {
	LeadTimeMinutes   float64 `json:"lead_time_minutes"`
	DetailConcurrency int     `json:"detail_concurrency"`
	Recheck           bool    `json:"recheck"`
	CheckTimeout      string  `json:"check_timeout"`
}

// PendingCheck is one live timer, times in the job time zone.
type PendingCheck struct {
	AccountID             string  `json:"ad_account_id"`
	CheckTime             string  `json:"check_time"`
	EarliestExecutionTime string  `json:"earliest_execution_time"`
	FiresIn               string  `json:"fires_in"`
	JobIDs                []int64 `json:"job_ids"`
}

func pendingView(entries []checker.TimerEntry, now time.Time) []PendingCheck {
	out := make([]PendingCheck, 0, len(entries))
	for _, e := range entries {
		ids := make([]int64, 0, len(e.Jobs))
		for _, j := range e.Jobs {
			ids = append(ids, j.JobID)
		}
		out = append(out, PendingCheck{
			AccountID:             e.AccountID,
			CheckTime:             timeutil.FormatDateTime(e.CheckTime),
			EarliestExecutionTime: timeutil.FormatDateTime(e.EarliestExecutionTime),
			FiresIn:               timeutil.Until(e.CheckTime, now).Round(time.Second).String(),
			JobIDs:                ids,
		})
	}
	return out
}

func (a *App) status(ctx context.Context) (any, error) {
	now := time.Now()
	set := a.sched.Settings()
	st := Status{
		StartedAt:    a.startedAt,
		Uptime:       now.Sub(a.startedAt).Round(time.Second).String(),
		PollInterval: a.driver.Interval().String(),
		Settings: StatusSettings{
			LeadTimeMinutes:   set.LeadTimeMinutes,
			DetailConcurrency: set.DetailConcurrency,
			Recheck:           set.Recheck,
			CheckTimeout:      set.CheckTimeout.String(),
		},
		Pending:       pendingView(a.sched.Pending(), now),
		Notifications: a.notif.History(),
		EventsDropped: a.bus.Dropped(),
	}
	if a.sup != nil {
		st.Goroutines = a.sup.Snapshot()
	}
	if a.store != nil {
		recent, err := a.store.RecentChecks(ctx, statusRecentChecks)
		if err != nil {
			return nil, err
		}
		st.RecentChecks = recent
	}
	return st, nil
}
