package storage

import (
	"context"
	"time"

	"acctcheck/internal/checker"
	logx "acctcheck/pkg/logx"
)

const appendTimeout = 5 * time.Second

// CheckObserver writes every check result to st.
type CheckObserver struct {
	st  Store
	log logx.Logger
}

func NewCheckObserver(st Store, log logx.Logger) *CheckObserver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &CheckObserver{st: st, log: log}
}

func (o *CheckObserver) ObserveCheck(res checker.CheckResult) {
	if o == nil || o.st == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := o.st.AppendCheck(ctx, RecordFromResult(res)); err != nil {
		o.log.Warn("audit append failed", logx.String("ad_account_id", res.AccountID), logx.Err(err))
	}
}

// RecordFromResult converts a check result to its stored form.
func RecordFromResult(res checker.CheckResult) CheckRecord {
	r := CheckRecord{
		At:                    res.StartedAt,
		AdAccountID:           res.AccountID,
		RecordID:              res.RecordID,
		AccountName:           res.AccountName,
		Outcome:               string(res.Outcome),
		CheckTime:             res.CheckTime,
		EarliestExecutionTime: res.EarliestExecutionTime,
		JobIDs:                res.JobIDs,
		TookMS:                res.Took.Milliseconds(),
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}
