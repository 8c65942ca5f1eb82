package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	logx "acctcheck/pkg/logx"
)

// maxMillis is the largest millisecond count that fits in a time.Duration.
const maxMillis = int64(math.MaxInt64 / int64(time.Millisecond))

// maxLeadMinutes is the largest lead time that fits in a time.Duration.
var maxLeadMinutes = float64(math.MaxInt64 / int64(time.Minute))

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Validate checks every field and reports all problems at once.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(key, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %s", key, fmt.Sprintf(format, args...)))
	}

	if c.TeamID <= 0 {
		add("TEAM_ID", "must be a positive integer")
	}
	if strings.TrimSpace(c.APIToken) == "" {
		add("API_TOKEN", "is required")
	}
	for _, u := range []struct{ key, val string }{
		{"JOB_LIST_BASE_URL", c.JobListBaseURL},
		{"JOB_DETAIL_BASE_URL", c.JobDetailBaseURL},
		{"ACCOUNT_LIST_BASE_URL", c.AccountListBaseURL},
		{"ACCOUNT_STATUS_BASE_URL", c.AccountStatusBaseURL},
	} {
		if err := validURL(u.val); err != nil {
			add(u.key, "%v", err)
		}
	}
	if c.JobListPageSize <= 0 {
		add("JOB_LIST_PAGE_SIZE", "must be > 0")
	}
	millis := func(key string, v int64) {
		switch {
		case v <= 0:
			add(key, "must be > 0")
		case v > maxMillis:
			add(key, "must be <= %d", maxMillis)
		}
	}
	millis("POLL_INTERVAL_MS", c.PollIntervalMS)
	switch lead := c.CheckLeadTimeMinutes; {
	case !finite(lead) || lead <= 0:
		add("CHECK_LEAD_TIME_MINUTES", "must be a finite number > 0")
	case lead > maxLeadMinutes:
		add("CHECK_LEAD_TIME_MINUTES", "must be <= %.0f", maxLeadMinutes)
	}
	if len(c.AccountFilterCreateUserName) == 0 {
		add("ACCOUNT_FILTER_CREATE_USER_NAME", "needs at least one keyword")
	}
	if strings.TrimSpace(c.AccountFilterCompanyShortName) == "" {
		add("ACCOUNT_FILTER_COMPANY_SHORT_NAME", "is required")
	}
	if c.JobDetailMaxConcurrency <= 0 {
		add("JOB_DETAIL_MAX_CONCURRENCY", "must be > 0")
	}
	if !logx.ValidLevel(c.LogLevel) {
		add("LOG_LEVEL", "must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	millis("HTTP_TIMEOUT_MS", c.HTTPTimeoutMS)
	if !finite(c.APIRatePerSec) || c.APIRatePerSec < 0 {
		add("API_RATE_PER_SEC", "must be a finite number >= 0")
	}
	millis("CHECK_TIMEOUT_MS", c.CheckTimeoutMS)

	if c.PprofEnabled && strings.TrimSpace(c.MetricsAddr) == "" {
		add("PPROF_ENABLED", "needs METRICS_ADDR")
	}

	switch d := strings.ToLower(strings.TrimSpace(c.StorageDriver)); d {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(c.StoragePath) == "" {
			add("STORAGE_PATH", "is required for driver %q", d)
		}
	default:
		add("STORAGE_DRIVER", "unknown driver %q (want none, file or sqlite)", c.StorageDriver)
	}

	if c.TelegramEnabled() && c.TelegramChatID == 0 {
		add("TELEGRAM_CHAT_ID", "is required when TELEGRAM_TOKEN is set")
	}
	return errors.Join(errs...)
}

func validURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) url (got %q)", raw)
	}
	return nil
}
