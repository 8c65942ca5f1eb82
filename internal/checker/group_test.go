package checker

import (
	"reflect"
	"testing"
	"time"

	logx "acctcheck/pkg/logx"
)

func nopLogger() logx.Logger { return logx.Nop() }

func TestGroupByAccountIsOrderIndependent(t *testing.T) {
	t.Parallel()
	j1 := WaitingJob{JobID: 1, ScheduledExecutionTime: shanghai(t, "2024/05/01 10:00")}
	j2 := WaitingJob{JobID: 2, ScheduledExecutionTime: shanghai(t, "2024/05/01 09:30")}
	j3 := WaitingJob{JobID: 3, ScheduledExecutionTime: shanghai(t, "2024/05/01 09:30")}
	refs := []AccountRef{
		{AccountID: "AD1", Job: j1},
		{AccountID: "AD2", Job: j1},
		{AccountID: "AD1", Job: j3},
		{AccountID: "AD1", Job: j2},
		{AccountID: "", Job: j2},
	}
	reversed := make([]AccountRef, len(refs))
	for i := range refs {
		reversed[len(refs)-1-i] = refs[i]
	}

	a := GroupByAccount(refs, 3)
	b := GroupByAccount(reversed, 3)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("grouping depends on order:\n%+v\n%+v", a, b)
	}
	if len(a) != 2 || a[0].AccountID != "AD1" || a[1].AccountID != "AD2" {
		t.Fatalf("groups = %+v, want AD1 and AD2", a)
	}
	if got := a[0].JobIDs(); !reflect.DeepEqual(got, []int64{2, 3, 1}) {
		t.Fatalf("AD1 job order = %v, want [2 3 1]", got)
	}
	if !a[0].EarliestExecutionTime.Equal(j2.ScheduledExecutionTime) {
		t.Fatalf("AD1 earliest = %v, want %v", a[0].EarliestExecutionTime, j2.ScheduledExecutionTime)
	}
}

func TestGroupByAccountCheckTime(t *testing.T) {
	t.Parallel()
	at := shanghai(t, "2024/05/01 10:00")
	tests := []struct {
		lead float64
		want time.Duration
	}{
		{lead: 3, want: 3 * time.Minute},
		{lead: 1.5, want: 90 * time.Second},
		{lead: 0.25, want: 15 * time.Second},
	}
	for _, tt := range tests {
		g := GroupByAccount([]AccountRef{{AccountID: "AD1", Job: WaitingJob{JobID: 1, ScheduledExecutionTime: at}}}, tt.lead)
		if len(g) != 1 {
			t.Fatalf("groups = %d, want 1", len(g))
		}
		if d := g[0].EarliestExecutionTime.Sub(g[0].CheckTime); d != tt.want {
			t.Fatalf("lead %v: earliest - check = %v, want %v", tt.lead, d, tt.want)
		}
	}
}
