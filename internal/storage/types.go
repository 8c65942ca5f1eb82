package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines backend
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// CheckRecord is one fired account check.
// Keep it compact and schema-stable.
type CheckRecord struct {
	At                    time.Time `json:"at"`
	AdAccountID           string    `json:"ad_account_id"`
	RecordID              int64     `json:"id,omitempty"`
	AccountName           string    `json:"account_name,omitempty"`
	Outcome               string    `json:"outcome"`
	Error                 string    `json:"error,omitempty"`
	CheckTime             time.Time `json:"check_time"`
	EarliestExecutionTime time.Time `json:"earliest_execution_time"`
	JobIDs                []int64   `json:"job_ids,omitempty"`
	TookMS                int64     `json:"took_ms"`
}
