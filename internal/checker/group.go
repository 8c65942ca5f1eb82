package checker

import (
	"sort"

	"acctcheck/internal/timeutil"
)

// AccountRef says that a waiting job references an account.
type AccountRef struct {
	AccountID string
	Job       WaitingJob
}

// GroupByAccount collects refs per account, orders each account's jobs by
// execution time (ties by job id) and derives the check time. The result does
// not depend on the order of refs and is sorted by account id.
func GroupByAccount(refs []AccountRef, leadMinutes float64) []AccountJobGroup {
	byAccount := make(map[string][]WaitingJob)
	for _, r := range refs {
		if r.AccountID == "" {
			continue
		}
		byAccount[r.AccountID] = append(byAccount[r.AccountID], r.Job)
	}

	out := make([]AccountJobGroup, 0, len(byAccount))
	for acc, js := range byAccount {
		sort.SliceStable(js, func(i, j int) bool {
			ti, tj := js[i].ScheduledExecutionTime, js[j].ScheduledExecutionTime
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			return js[i].JobID < js[j].JobID
		})
		earliest := js[0].ScheduledExecutionTime
		out = append(out, AccountJobGroup{
			AccountID:             acc,
			Jobs:                  js,
			EarliestExecutionTime: earliest,
			CheckTime:             timeutil.MinutesBefore(earliest, leadMinutes),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

