package app

import (
	"strings"

	"acctcheck/internal/checker"
	"acctcheck/internal/config"
	"acctcheck/internal/notifier"
	"acctcheck/internal/remote"
	"acctcheck/internal/remote/accounts"
	"acctcheck/internal/remote/jobs"
	"acctcheck/internal/storage"
	logx "acctcheck/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	path := strings.TrimSpace(cfg.LogFile)
	return logx.Config{
		Level:   cfg.LogLevel,
		Console: true,
		File:    logx.FileConfig{Enabled: path != "", Path: path},
	}
}

func mapSettings(cfg *config.Config) checker.Settings {
	return checker.Settings{
		LeadTimeMinutes:   cfg.CheckLeadTimeMinutes,
		DetailConcurrency: cfg.JobDetailMaxConcurrency,
		Recheck:           bool(cfg.EnableAccountRecheck),
		CheckTimeout:      cfg.CheckTimeout(),
	}
}

func mapFilter(cfg *config.Config) accounts.Filter {
	return accounts.Filter{
		CreateUserKeywords: append([]string(nil), cfg.AccountFilterCreateUserName...),
		CompanyShortName:   cfg.AccountFilterCompanyShortName,
	}
}

func mapRemoteConfig(cfg *config.Config) remote.Config {
	return remote.Config{
		TeamID:     cfg.TeamID,
		Token:      cfg.APIToken,
		Timeout:    cfg.HTTPTimeout(),
		RatePerSec: cfg.APIRatePerSec,
	}
}

func mapJobsConfig(cfg *config.Config) jobs.Config {
	return jobs.Config{
		ListURL:   cfg.JobListBaseURL,
		DetailURL: cfg.JobDetailBaseURL,
		PageSize:  cfg.JobListPageSize,
	}
}

func mapAccountsConfig(cfg *config.Config) accounts.Config {
	return accounts.Config{
		ListURL:   cfg.AccountListBaseURL,
		StatusURL: cfg.AccountStatusBaseURL,
		Filter:    mapFilter(cfg),
	}
}

func mapStorageConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.StorageDriver)),
		Path:   strings.TrimSpace(cfg.StoragePath),
	}
}

func mapTelegramConfig(cfg *config.Config) notifier.TelegramConfig {
	return notifier.TelegramConfig{
		Token:    strings.TrimSpace(cfg.TelegramToken),
		ChatID:   cfg.TelegramChatID,
		ThreadID: cfg.TelegramThreadID,
	}
}
