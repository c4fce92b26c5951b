package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadflow/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS user_settings (
	user_id              TEXT PRIMARY KEY,
	blacklist_sheet_id   TEXT NOT NULL DEFAULT '',
	blacklist_sheet_name TEXT NOT NULL DEFAULT '',
	contacts_sheet_id    TEXT NOT NULL DEFAULT '',
	contacts_sheet_name  TEXT NOT NULL DEFAULT '',
	column_mappings      TEXT NOT NULL DEFAULT '{}',
	ai_config            TEXT NOT NULL DEFAULT '{}',
	email_config         TEXT NOT NULL DEFAULT '{}',
	impersonated_email   TEXT NOT NULL DEFAULT '',
	google_credentials   TEXT NOT NULL DEFAULT '',
	last_execution_at    DATETIME,
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS processing_logs (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL,
	metadata   TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS api_usage_logs (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	service     TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	details     TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS lead_history (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	email      TEXT NOT NULL,
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	company    TEXT NOT NULL DEFAULT '',
	position   TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	enrichment TEXT,
	subject    TEXT,
	error      TEXT,
	metadata   TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS email_history (
	id        TEXT PRIMARY KEY,
	user_id   TEXT NOT NULL,
	recipient TEXT NOT NULL,
	subject   TEXT NOT NULL,
	body      TEXT NOT NULL,
	status    TEXT NOT NULL,
	error     TEXT,
	sent_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dashboard_stats (
	user_id         TEXT PRIMARY KEY,
	total_leads     INTEGER NOT NULL DEFAULT 0,
	processed_leads INTEGER NOT NULL DEFAULT 0,
	success_rate    REAL NOT NULL DEFAULT 0,
	emails_sent     INTEGER NOT NULL DEFAULT 0,
	blacklist_count INTEGER NOT NULL DEFAULT 0,
	contacts_count  INTEGER NOT NULL DEFAULT 0,
	last_processed  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_processing_logs_user_created ON processing_logs(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_api_usage_logs_user_created ON api_usage_logs(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_lead_history_user_created ON lead_history(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_email_history_user_sent ON email_history(user_id, sent_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (*model.Settings, error) {
	var st model.Settings
	var mappings, ai, email string
	var lastExec sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, blacklist_sheet_id, blacklist_sheet_name, contacts_sheet_id, contacts_sheet_name,
		        column_mappings, ai_config, email_config, impersonated_email, google_credentials,
		        last_execution_at, updated_at
		 FROM user_settings WHERE user_id = ?`,
		userID,
	).Scan(&st.UserID, &st.BlacklistSheetID, &st.BlacklistSheetName, &st.ContactsSheetID, &st.ContactsSheetName,
		&mappings, &ai, &email, &st.ImpersonatedEmail, &st.GoogleCredentials,
		&lastExec, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get settings %s", userID)
	}
	if lastExec.Valid {
		t := lastExec.Time.UTC()
		st.LastExecutionAt = &t
	}
	doc := settingsDoc{mappings: []byte(mappings), ai: []byte(ai), email: []byte(email)}
	if err := decodeSettings(&st, doc); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLiteStore) UpsertSettings(ctx context.Context, st *model.Settings) error {
	doc, err := encodeSettings(st)
	if err != nil {
		return err
	}
	st.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, blacklist_sheet_id, blacklist_sheet_name, contacts_sheet_id, contacts_sheet_name,
		                            column_mappings, ai_config, email_config, impersonated_email, google_credentials, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   blacklist_sheet_id = excluded.blacklist_sheet_id,
		   blacklist_sheet_name = excluded.blacklist_sheet_name,
		   contacts_sheet_id = excluded.contacts_sheet_id,
		   contacts_sheet_name = excluded.contacts_sheet_name,
		   column_mappings = excluded.column_mappings,
		   ai_config = excluded.ai_config,
		   email_config = excluded.email_config,
		   impersonated_email = excluded.impersonated_email,
		   google_credentials = excluded.google_credentials,
		   updated_at = excluded.updated_at`,
		st.UserID, st.BlacklistSheetID, st.BlacklistSheetName, st.ContactsSheetID, st.ContactsSheetName,
		string(doc.mappings), string(doc.ai), string(doc.email), st.ImpersonatedEmail, st.GoogleCredentials, st.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert settings")
}

func (s *SQLiteStore) TouchLastExecution(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_settings SET last_execution_at = ? WHERE user_id = ?`,
		at.UTC(), userID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch last execution %s", userID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) AppendProcessingLog(ctx context.Context, e model.ProcessingLogEntry) error {
	meta, err := marshalJSON(e.Metadata)
	if err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO processing_logs (id, user_id, stage, status, message, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, string(e.Stage), string(e.Status), e.Message, nullText(meta), createdAt(e.CreatedAt),
	)
	return eris.Wrap(err, "sqlite: insert processing log")
}

func (s *SQLiteStore) AppendAPIUsage(ctx context.Context, u model.APIUsage) error {
	details, err := marshalJSON(u.Details)
	if err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO api_usage_logs (id, user_id, service, endpoint, status_code, duration_ms, details, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.UserID, u.Service, u.Endpoint, u.StatusCode, u.DurationMs, nullText(details), createdAt(u.CreatedAt),
	)
	return eris.Wrap(err, "sqlite: insert api usage")
}

func (s *SQLiteStore) ListProcessingLogs(ctx context.Context, filter model.LogFilter) ([]model.ProcessingLogEntry, error) {
	query := `SELECT id, user_id, stage, status, message, metadata, created_at FROM processing_logs WHERE user_id = ?`
	args := []any{filter.UserID}
	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(filter.Stage))
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, logLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list processing logs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ProcessingLogEntry
	for rows.Next() {
		var e model.ProcessingLogEntry
		var stage, status string
		var meta sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &stage, &status, &e.Message, &meta, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan processing log")
		}
		e.Stage = model.Stage(stage)
		e.Status = model.LogStatus(status)
		if meta.Valid {
			if e.Metadata, err = unmarshalMap([]byte(meta.String)); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate processing logs")
}

func (s *SQLiteStore) InsertLeadHistory(ctx context.Context, h model.LeadHistory) error {
	meta, err := marshalJSON(h.Metadata)
	if err != nil {
		return err
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lead_history (id, user_id, email, first_name, last_name, company, position, status, enrichment, subject, error, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Email, h.FirstName, h.LastName, h.Company, h.Position, string(h.Status),
		nullable(h.Enrichment), nullable(h.Subject), nullable(h.Error), nullText(meta), createdAt(h.CreatedAt),
	)
	return eris.Wrap(err, "sqlite: insert lead history")
}

func (s *SQLiteStore) InsertEmailHistory(ctx context.Context, h model.EmailHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_history (id, user_id, recipient, subject, body, status, error, sent_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Recipient, h.Subject, h.Body, string(h.Status), nullable(h.Error), createdAt(h.SentAt),
	)
	return eris.Wrap(err, "sqlite: insert email history")
}

func (s *SQLiteStore) UpsertDashboardStats(ctx context.Context, st model.DashboardStats) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dashboard_stats (user_id, total_leads, processed_leads, success_rate, emails_sent, blacklist_count, contacts_count, last_processed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   total_leads = excluded.total_leads,
		   processed_leads = excluded.processed_leads,
		   success_rate = excluded.success_rate,
		   emails_sent = excluded.emails_sent,
		   blacklist_count = excluded.blacklist_count,
		   contacts_count = excluded.contacts_count,
		   last_processed = excluded.last_processed`,
		st.UserID, st.TotalLeads, st.ProcessedLeads, st.SuccessRate,
		st.EmailsSent, st.BlacklistCount, st.ContactsCount, createdAt(st.LastProcessed),
	)
	return eris.Wrap(err, "sqlite: upsert dashboard stats")
}

func (s *SQLiteStore) GetDashboardStats(ctx context.Context, userID string) (*model.DashboardStats, error) {
	var st model.DashboardStats
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, total_leads, processed_leads, success_rate, emails_sent, blacklist_count, contacts_count, last_processed
		 FROM dashboard_stats WHERE user_id = ?`,
		userID,
	).Scan(&st.UserID, &st.TotalLeads, &st.ProcessedLeads, &st.SuccessRate,
		&st.EmailsSent, &st.BlacklistCount, &st.ContactsCount, &st.LastProcessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get dashboard stats %s", userID)
	}
	return &st, nil
}

// helpers

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
