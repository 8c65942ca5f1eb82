// Package accounts looks up ad account records and switches them on.
package accounts

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"acctcheck/internal/remote"
	logx "acctcheck/pkg/logx"
)

const (
	// StatusEnabled is the account status meaning "on"; it is also the value sent to enable.
	StatusEnabled = 1

	searchTypeAdAccountID = 2
	lookupPageSize        = 10
)

// Record is one row of the account list.
type Record struct {
	ID               int64  `json:"id"`
	AdAccountID      string `json:"ad_account_id"`
	AdAccountName    string `json:"ad_account_name,omitempty"`
	Status           int    `json:"status"`
	CreateUserName   string `json:"create_user_name,omitempty"`
	CompanyShortName string `json:"company_short_name,omitempty"`
}

// Enabled reports whether the record is already switched on.
func (r Record) Enabled() bool { return r.Status == StatusEnabled }

type listData struct {
	TotalCount int      `json:"total_count,omitempty"`
	TotalPage  int      `json:"total_page,omitempty"`
	List       []Record `json:"list"`
}

// Filter selects the record that belongs to us among accounts sharing an external id.
type Filter struct {
	// CreateUserKeywords: the creator name must contain at least one of these.
	CreateUserKeywords []string
	// CompanyShortName must match exactly.
	CompanyShortName string
}

// Match returns the first record passing the filter.
func (f Filter) Match(records []Record) (Record, bool) {
	for _, r := range records {
		if f.matches(r) {
			return r, true
		}
	}
	return Record{}, false
}

func (f Filter) matches(r Record) bool {
	if r.CompanyShortName != f.CompanyShortName {
		return false
	}
	for _, kw := range f.CreateUserKeywords {
		if kw != "" && strings.Contains(r.CreateUserName, kw) {
			return true
		}
	}
	return false
}

// Config points the source at the list and status endpoints.
type Config struct {
	ListURL   string
	StatusURL string
	Filter    Filter
}

// Source is the account API client.
type Source struct {
	cfg Config
	c   *remote.Client
	log logx.Logger

	fmu sync.RWMutex
}

func NewSource(cfg Config, c *remote.Client, log logx.Logger) *Source {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Source{cfg: cfg, c: c, log: log}
}

// SetFilter swaps the matching rules (config reload).
func (s *Source) SetFilter(f Filter) {
	s.fmu.Lock()
	s.cfg.Filter = f
	s.fmu.Unlock()
}

func (s *Source) filter() Filter {
	s.fmu.RLock()
	defer s.fmu.RUnlock()
	return s.cfg.Filter
}

// FindAccount searches by external ad account id and applies the filter.
// It returns (nil, nil) when nothing matches.
func (s *Source) FindAccount(ctx context.Context, adAccountID string) (*Record, error) {
	params := url.Values{}
	params.Set("search_type", strconv.Itoa(searchTypeAdAccountID))
	params.Set("search_key", adAccountID)
	params.Set("page", "1")
	params.Set("page_size", strconv.Itoa(lookupPageSize))

	var data listData
	if err := s.c.Get(ctx, "account/list", s.cfg.ListURL, params, &data); err != nil {
		return nil, fmt.Errorf("account lookup %s: %w", adAccountID, err)
	}

	f := s.filter()
	rec, ok := f.Match(data.List)
	if !ok {
		s.log.Warn("no account matches filters",
			logx.String("ad_account_id", adAccountID),
			logx.Int("candidates", len(data.List)),
			logx.Strs("create_user_keywords", f.CreateUserKeywords),
			logx.String("company_short_name", f.CompanyShortName),
		)
		return nil, nil
	}
	return &rec, nil
}

// EnableAccount sets the account with internal id to enabled. Enabling an
// enabled account is harmless on the remote side.
func (s *Source) EnableAccount(ctx context.Context, id int64) error {
	params := url.Values{}
	params.Set("id", strconv.FormatInt(id, 10))
	params.Set("status", strconv.Itoa(StatusEnabled))

	if err := s.c.Get(ctx, "account/status", s.cfg.StatusURL, params, nil); err != nil {
		return fmt.Errorf("enable account id=%d: %w", id, err)
	}
	return nil
}
