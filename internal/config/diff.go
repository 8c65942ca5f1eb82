package config

import (
	"hash/fnv"
	"reflect"
	"strings"

	logx "acctcheck/pkg/logx"
)

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// SummarizeChange returns (1) the changed keys that apply live,
// (2) safe structured fields for logging (never the token), and
// (3) changed keys that only take effect after a restart.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var (
		live    []string
		restart []string
		attrs   []logx.Field
	)

	if !strings.EqualFold(oldCfg.LogLevel, newCfg.LogLevel) {
		live = append(live, "log_level")
		attrs = append(attrs, logx.String("log_level", newCfg.LogLevel))
	}
	if oldCfg.CheckLeadTimeMinutes != newCfg.CheckLeadTimeMinutes {
		live = append(live, "check_lead_time_minutes")
		attrs = append(attrs, logx.Float64("check_lead_time_minutes", newCfg.CheckLeadTimeMinutes))
	}
	if oldCfg.JobDetailMaxConcurrency != newCfg.JobDetailMaxConcurrency {
		live = append(live, "job_detail_max_concurrency")
		attrs = append(attrs, logx.Int("job_detail_max_concurrency", newCfg.JobDetailMaxConcurrency))
	}
	if oldCfg.EnableAccountRecheck != newCfg.EnableAccountRecheck {
		live = append(live, "enable_account_recheck")
		attrs = append(attrs, logx.Bool("enable_account_recheck", bool(newCfg.EnableAccountRecheck)))
	}
	if oldCfg.CheckTimeoutMS != newCfg.CheckTimeoutMS {
		live = append(live, "check_timeout_ms")
		attrs = append(attrs, logx.Int64("check_timeout_ms", newCfg.CheckTimeoutMS))
	}
	if !reflect.DeepEqual(oldCfg.AccountFilterCreateUserName, newCfg.AccountFilterCreateUserName) ||
		oldCfg.AccountFilterCompanyShortName != newCfg.AccountFilterCompanyShortName {
		live = append(live, "account_filter")
		attrs = append(attrs,
			logx.Strs("account_filter_create_user_name", newCfg.AccountFilterCreateUserName),
			logx.String("account_filter_company_short_name", newCfg.AccountFilterCompanyShortName),
		)
	}

	startupOnly := []struct {
		key     string
		changed bool
	}{
		{"team_id", oldCfg.TeamID != newCfg.TeamID},
		{"api_token", oldCfg.APIToken != newCfg.APIToken},
		{"job_list_base_url", oldCfg.JobListBaseURL != newCfg.JobListBaseURL},
		{"job_detail_base_url", oldCfg.JobDetailBaseURL != newCfg.JobDetailBaseURL},
		{"account_list_base_url", oldCfg.AccountListBaseURL != newCfg.AccountListBaseURL},
		{"account_status_base_url", oldCfg.AccountStatusBaseURL != newCfg.AccountStatusBaseURL},
		{"job_list_page_size", oldCfg.JobListPageSize != newCfg.JobListPageSize},
		{"poll_interval_ms", oldCfg.PollIntervalMS != newCfg.PollIntervalMS},
		{"log_file", oldCfg.LogFile != newCfg.LogFile},
		{"http_timeout_ms", oldCfg.HTTPTimeoutMS != newCfg.HTTPTimeoutMS},
		{"api_rate_per_sec", oldCfg.APIRatePerSec != newCfg.APIRatePerSec},
		{"metrics_addr", oldCfg.MetricsAddr != newCfg.MetricsAddr},
		{"pprof", oldCfg.PprofEnabled != newCfg.PprofEnabled || oldCfg.PprofToken != newCfg.PprofToken},
		{"storage", oldCfg.StorageDriver != newCfg.StorageDriver || oldCfg.StoragePath != newCfg.StoragePath},
		{"telegram", oldCfg.TelegramToken != newCfg.TelegramToken || oldCfg.TelegramChatID != newCfg.TelegramChatID || oldCfg.TelegramThreadID != newCfg.TelegramThreadID},
	}
	for _, s := range startupOnly {
		if s.changed {
			restart = append(restart, s.key)
		}
	}
	return live, attrs, restart
}
