// Package jobs reads waiting jobs and their account associations from the batch job API.
package jobs

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"acctcheck/internal/remote"
	logx "acctcheck/pkg/logx"
)

// StatusWaiting is the job list status filter and the only status kept client-side.
const StatusWaiting = "Waiting"

const defaultPageSize = 500

// Summary is one row of the job list.
type Summary struct {
	ID                     int64  `json:"id"`
	IsScheduled            bool   `json:"is_scheduled"`
	ScheduledExecutionTime string `json:"scheduled_execution_time,omitempty"`
	CreateBy               string `json:"create_by,omitempty"`
	CreateTime             string `json:"create_time,omitempty"`
	ExecutionTime          string `json:"execution_time,omitempty"`
	Status                 string `json:"status"`
	Result                 string `json:"result,omitempty"`
	FinishTime             string `json:"finish_time,omitempty"`
}

// Account is an ad account referenced by a job.
type Account struct {
	ID            int64  `json:"id"`
	AdAccountID   string `json:"ad_account_id"`
	AdAccountName string `json:"ad_account_name,omitempty"`
	Status        int    `json:"status,omitempty"`
}

// Detail is a job's account associations.
type Detail struct {
	AccountIDs []int64   `json:"account_ids,omitempty"`
	Accounts   []Account `json:"account_list"`
}

type listData struct {
	List      []Summary `json:"list"`
	Page      int       `json:"page,omitempty"`
	PageSize  int       `json:"page_size,omitempty"`
	Total     int       `json:"total,omitempty"`
	TotalPage int       `json:"total_page,omitempty"`
}

// Config points the source at the list and detail endpoints.
type Config struct {
	ListURL   string
	DetailURL string
	PageSize  int
}

// Source is the job API client.
type Source struct {
	cfg Config
	c   *remote.Client
	log logx.Logger
}

func NewSource(cfg Config, c *remote.Client, log logx.Logger) *Source {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Source{cfg: cfg, c: c, log: log}
}

// WaitingJobs pages through the Waiting job list until a short page and keeps
// scheduled jobs that carry an execution time. Any page failure aborts the scan.
func (s *Source) WaitingJobs(ctx context.Context) ([]Summary, error) {
	var out []Summary
	for page := 1; ; page++ {
		params := url.Values{}
		// Placeholder filters the list endpoint expects to be present.
		params.Set("job_id", "")
		params.Set("create_by", "")
		params.Set("start_time", "")
		params.Set("end_time", "")
		params.Set("status", StatusWaiting)
		params.Set("page", strconv.Itoa(page))
		params.Set("page_size", strconv.Itoa(s.cfg.PageSize))

		var data listData
		if err := s.c.Get(ctx, "job/list", s.cfg.ListURL, params, &data); err != nil {
			s.log.Error("job list page failed", logx.Int("page", page), logx.Err(err))
			return nil, fmt.Errorf("job list page %d: %w", page, err)
		}
		for _, j := range data.List {
			if j.Status == StatusWaiting && j.IsScheduled && j.ScheduledExecutionTime != "" {
				out = append(out, j)
			}
		}
		if len(data.List) < s.cfg.PageSize {
			break
		}
	}
	s.log.Debug("fetched waiting scheduled jobs", logx.Int("count", len(out)))
	return out, nil
}

// JobDetail returns the account associations of one job. A detail with an
// empty account list is reported as (nil, nil).
func (s *Source) JobDetail(ctx context.Context, jobID int64) (*Detail, error) {
	params := url.Values{}
	params.Set("job_id", strconv.FormatInt(jobID, 10))

	var d Detail
	if err := s.c.Get(ctx, "job/detail", s.cfg.DetailURL, params, &d); err != nil {
		return nil, fmt.Errorf("job %d detail: %w", jobID, err)
	}
	if len(d.Accounts) == 0 {
		s.log.Warn("job detail returned empty account list", logx.Int64("job_id", jobID))
		return nil, nil
	}
	return &d, nil
}
