package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Config is the full service configuration.
//
// Sources, lowest precedence first: Defaults, the optional YAML/JSON file
// (snake_case keys), then environment variables (UPPER_SNAKE_CASE of the same
// names, with .env loaded into the environment beforehand).
type Config struct {
	TeamID   int64  `json:"team_id"`
	APIToken string `json:"api_token"`

	JobListBaseURL       string `json:"job_list_base_url"`
	JobDetailBaseURL     string `json:"job_detail_base_url"`
	AccountListBaseURL   string `json:"account_list_base_url"`
	AccountStatusBaseURL string `json:"account_status_base_url"`

	JobListPageSize         int     `json:"job_list_page_size"`
	PollIntervalMS          int64   `json:"poll_interval_ms"`
	CheckLeadTimeMinutes    float64 `json:"check_lead_time_minutes"`
	JobDetailMaxConcurrency int     `json:"job_detail_max_concurrency"`
	EnableAccountRecheck    Flag    `json:"enable_account_recheck"`

	AccountFilterCreateUserName   StringList `json:"account_filter_create_user_name"`
	AccountFilterCompanyShortName string     `json:"account_filter_company_short_name"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file,omitempty"`

	HTTPTimeoutMS  int64   `json:"http_timeout_ms"`
	APIRatePerSec  float64 `json:"api_rate_per_sec"`
	CheckTimeoutMS int64   `json:"check_timeout_ms"`

	MetricsAddr string `json:"metrics_addr,omitempty"`

	// PprofEnabled mounts /debug/pprof/ on the metrics server.
	PprofEnabled Flag   `json:"pprof_enabled,omitempty"`
	PprofToken   string `json:"pprof_token,omitempty"`

	StorageDriver string `json:"storage_driver,omitempty"`
	StoragePath   string `json:"storage_path,omitempty"`

	TelegramToken    string `json:"telegram_token,omitempty"`
	TelegramChatID   int64  `json:"telegram_chat_id,omitempty"`
	TelegramThreadID int    `json:"telegram_thread_id,omitempty"`
}

// Defaults returns a config with every optional key at its default.
func Defaults() *Config {
	return &Config{
		JobListPageSize:         500,
		PollIntervalMS:          60000,
		CheckLeadTimeMinutes:    3,
		JobDetailMaxConcurrency: 5,
		LogLevel:                "info",
		HTTPTimeoutMS:           15000,
		CheckTimeoutMS:          60000,
		StorageDriver:           "none",
	}
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.CheckTimeoutMS) * time.Millisecond
}

// TelegramEnabled reports whether notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return strings.TrimSpace(c.TelegramToken) != ""
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.AccountFilterCreateUserName = append(StringList(nil), c.AccountFilterCreateUserName...)
	return &cp
}

// Flag is a boolean that also accepts 1/0, yes/no and y/n, as strings or JSON booleans.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*f = Flag(x)
		return nil
	case float64:
		return f.set(fmt.Sprint(x))
	case string:
		return f.set(x)
	default:
		return fmt.Errorf("invalid boolean %s", string(b))
	}
}

func (f *Flag) set(raw string) error {
	v, err := ParseBool(raw)
	if err != nil {
		return err
	}
	*f = Flag(v)
	return nil
}

// ParseBool accepts 1/0, true/false, yes/no and y/n in any case.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y":
		return true, nil
	case "0", "false", "no", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
}

// StringList decodes either a JSON array of strings or a comma separated string.
// Entries are trimmed and empty entries dropped.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		*l = cleanList(arr)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = SplitList(s)
	return nil
}

// SplitList splits a comma separated list.
func SplitList(s string) StringList {
	return cleanList(strings.Split(s, ","))
}

func cleanList(in []string) StringList {
	out := make(StringList, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
