package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "acctcheck/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite storage opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendCheck(ctx context.Context, r CheckRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	var jobIDs any
	if len(r.JobIDs) > 0 {
		b, err := json.Marshal(r.JobIDs)
		if err != nil {
			return err
		}
		jobIDs = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checks(at, ad_account_id, record_id, account_name, outcome, err, check_time, earliest_execution_time, job_ids, took_ms)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.At.Format(time.RFC3339Nano), r.AdAccountID, nullInt(r.RecordID), nullStr(r.AccountName), r.Outcome, nullStr(r.Error),
		r.CheckTime.Format(time.RFC3339), r.EarliestExecutionTime.Format(time.RFC3339), jobIDs, r.TookMS,
	)
	return err
}

func (s *sqliteStore) RecentChecks(ctx context.Context, limit int) ([]CheckRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, ad_account_id, record_id, account_name, outcome, err, check_time, earliest_execution_time, job_ids, took_ms
		 FROM checks ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CheckRecord
	for rows.Next() {
		var (
			r                       CheckRecord
			at, checkAt, earliestAt string
			recordID                sql.NullInt64
			name, errText, jobIDs   sql.NullString
		)
		if err := rows.Scan(&at, &r.AdAccountID, &recordID, &name, &r.Outcome, &errText, &checkAt, &earliestAt, &jobIDs, &r.TookMS); err != nil {
			return nil, err
		}
		r.At, _ = time.Parse(time.RFC3339Nano, at)
		r.CheckTime, _ = time.Parse(time.RFC3339, checkAt)
		r.EarliestExecutionTime, _ = time.Parse(time.RFC3339, earliestAt)
		r.RecordID = recordID.Int64
		r.AccountName = name.String
		r.Error = errText.String
		if jobIDs.Valid {
			if err := json.Unmarshal([]byte(jobIDs.String), &r.JobIDs); err != nil {
				s.log.Debug("bad job_ids column", logx.String("ad_account_id", r.AdAccountID), logx.Err(err))
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
