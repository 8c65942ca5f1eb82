package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

type envSetter func(c *Config, raw string) error

func envString(dst func(*Config) *string) envSetter {
	return func(c *Config, raw string) error {
		*dst(c) = strings.TrimSpace(raw)
		return nil
	}
}

func envInt64(dst func(*Config) *int64) envSetter {
	return func(c *Config, raw string) error {
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		*dst(c) = v
		return nil
	}
}

func envInt(dst func(*Config) *int) envSetter {
	return func(c *Config, raw string) error {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		*dst(c) = v
		return nil
	}
}

func envFloat(dst func(*Config) *float64) envSetter {
	return func(c *Config, raw string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", raw)
		}
		*dst(c) = v
		return nil
	}
}

// envKeys maps every environment variable to its field. Order is the order
// errors are reported in.
var envKeys = []struct {
	key string
	set envSetter
}{
	{"TEAM_ID", envInt64(func(c *Config) *int64 { return &c.TeamID })},
	{"API_TOKEN", envString(func(c *Config) *string { return &c.APIToken })},
	{"JOB_LIST_BASE_URL", envString(func(c *Config) *string { return &c.JobListBaseURL })},
	{"JOB_DETAIL_BASE_URL", envString(func(c *Config) *string { return &c.JobDetailBaseURL })},
	{"ACCOUNT_LIST_BASE_URL", envString(func(c *Config) *string { return &c.AccountListBaseURL })},
	{"ACCOUNT_STATUS_BASE_URL", envString(func(c *Config) *string { return &c.AccountStatusBaseURL })},
	{"JOB_LIST_PAGE_SIZE", envInt(func(c *Config) *int { return &c.JobListPageSize })},
	{"POLL_INTERVAL_MS", envInt64(func(c *Config) *int64 { return &c.PollIntervalMS })},
	{"CHECK_LEAD_TIME_MINUTES", envFloat(func(c *Config) *float64 { return &c.CheckLeadTimeMinutes })},
	{"ACCOUNT_FILTER_CREATE_USER_NAME", func(c *Config, raw string) error {
		c.AccountFilterCreateUserName = SplitList(raw)
		return nil
	}},
	{"ACCOUNT_FILTER_COMPANY_SHORT_NAME", envString(func(c *Config) *string { return &c.AccountFilterCompanyShortName })},
	{"JOB_DETAIL_MAX_CONCURRENCY", envInt(func(c *Config) *int { return &c.JobDetailMaxConcurrency })},
	{"ENABLE_ACCOUNT_RECHECK", func(c *Config, raw string) error { return c.EnableAccountRecheck.set(raw) }},
	{"LOG_LEVEL", envString(func(c *Config) *string { return &c.LogLevel })},
	{"LOG_FILE", envString(func(c *Config) *string { return &c.LogFile })},
	{"HTTP_TIMEOUT_MS", envInt64(func(c *Config) *int64 { return &c.HTTPTimeoutMS })},
	{"API_RATE_PER_SEC", envFloat(func(c *Config) *float64 { return &c.APIRatePerSec })},
	{"CHECK_TIMEOUT_MS", envInt64(func(c *Config) *int64 { return &c.CheckTimeoutMS })},
	{"METRICS_ADDR", envString(func(c *Config) *string { return &c.MetricsAddr })},
	{"PPROF_ENABLED", func(c *Config, raw string) error { return c.PprofEnabled.set(raw) }},
	{"PPROF_TOKEN", envString(func(c *Config) *string { return &c.PprofToken })},
	{"STORAGE_DRIVER", envString(func(c *Config) *string { return &c.StorageDriver })},
	{"STORAGE_PATH", envString(func(c *Config) *string { return &c.StoragePath })},
	{"TELEGRAM_TOKEN", envString(func(c *Config) *string { return &c.TelegramToken })},
	{"TELEGRAM_CHAT_ID", envInt64(func(c *Config) *int64 { return &c.TelegramChatID })},
	{"TELEGRAM_THREAD_ID", envInt(func(c *Config) *int { return &c.TelegramThreadID })},
}

// ApplyEnv overlays every set (non-empty) variable onto c. All parse errors are reported together.
func ApplyEnv(c *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var errs []error
	for _, k := range envKeys {
		raw, ok := lookup(k.key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if err := k.set(c, raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k.key, err))
		}
	}
	return errors.Join(errs...)
}

// MapLookup adapts a map to LookupFunc (tests).
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}
