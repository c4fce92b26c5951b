package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/db"
	"github.com/sells-group/leadflow/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS user_settings (
	user_id              TEXT PRIMARY KEY,
	blacklist_sheet_id   TEXT NOT NULL DEFAULT '',
	blacklist_sheet_name TEXT NOT NULL DEFAULT '',
	contacts_sheet_id    TEXT NOT NULL DEFAULT '',
	contacts_sheet_name  TEXT NOT NULL DEFAULT '',
	column_mappings      JSONB NOT NULL DEFAULT '{}'::jsonb,
	ai_config            JSONB NOT NULL DEFAULT '{}'::jsonb,
	email_config         JSONB NOT NULL DEFAULT '{}'::jsonb,
	impersonated_email   TEXT NOT NULL DEFAULT '',
	google_credentials   TEXT NOT NULL DEFAULT '',
	last_execution_at    TIMESTAMPTZ,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS processing_logs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL,
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL,
	metadata   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_processing_logs_user_created ON processing_logs(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS api_usage_logs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id     TEXT NOT NULL,
	service     TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	details     JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_api_usage_logs_user_created ON api_usage_logs(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS lead_history (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	metadata   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lead_history_user_created ON lead_history(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS email_history (
	id        TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id   TEXT NOT NULL,
	recipient TEXT NOT NULL,
	subject   TEXT NOT NULL,
	body      TEXT NOT NULL,
	status    TEXT NOT NULL,
	error     TEXT,
	sent_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_email_history_user_sent ON email_history(user_id, sent_at DESC);

CREATE TABLE IF NOT EXISTS dashboard_stats (
	user_id         TEXT PRIMARY KEY,
	total_leads     INTEGER NOT NULL DEFAULT 0,
	processed_leads INTEGER NOT NULL DEFAULT 0,
	success_rate    DOUBLE PRECISION NOT NULL DEFAULT 0,
	emails_sent     INTEGER NOT NULL DEFAULT 0,
	blacklist_count INTEGER NOT NULL DEFAULT 0,
	contacts_count  INTEGER NOT NULL DEFAULT 0,
	last_processed  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

var settingsUpsert = db.UpsertConfig{
	Table: "user_settings",
	Columns: []string{
		"user_id", "blacklist_sheet_id", "blacklist_sheet_name", "contacts_sheet_id", "contacts_sheet_name",
		"column_mappings", "ai_config", "email_config", "impersonated_email", "google_credentials", "updated_at",
	},
	ConflictKeys: []string{"user_id"},
}

var statsUpsert = db.UpsertConfig{
	Table: "dashboard_stats",
	Columns: []string{
		"user_id", "total_leads", "processed_leads", "success_rate",
		"emails_sent", "blacklist_count", "contacts_count", "last_processed",
	},
	ConflictKeys: []string{"user_id"},
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetSettings(ctx context.Context, userID string) (*model.Settings, error) {
	var st model.Settings
	var doc settingsDoc
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, blacklist_sheet_id, blacklist_sheet_name, contacts_sheet_id, contacts_sheet_name,
		        column_mappings, ai_config, email_config, impersonated_email, google_credentials,
		        last_execution_at, updated_at
		 FROM user_settings WHERE user_id = $1`,
		userID,
	).Scan(&st.UserID, &st.BlacklistSheetID, &st.BlacklistSheetName, &st.ContactsSheetID, &st.ContactsSheetName,
		&doc.mappings, &doc.ai, &doc.email, &st.ImpersonatedEmail, &st.GoogleCredentials,
		&st.LastExecutionAt, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get settings %s", userID)
	}
	if err := decodeSettings(&st, doc); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PostgresStore) UpsertSettings(ctx context.Context, st *model.Settings) error {
	doc, err := encodeSettings(st)
	if err != nil {
		return err
	}
	st.UpdatedAt = time.Now().UTC()
	err = db.Upsert(ctx, s.pool, settingsUpsert,
		st.UserID, st.BlacklistSheetID, st.BlacklistSheetName, st.ContactsSheetID, st.ContactsSheetName,
		doc.mappings, doc.ai, doc.email, st.ImpersonatedEmail, st.GoogleCredentials, st.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: upsert settings")
}

func (s *PostgresStore) TouchLastExecution(ctx context.Context, userID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE user_settings SET last_execution_at = $1 WHERE user_id = $2`,
		at.UTC(), userID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: touch last execution %s", userID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendProcessingLog(ctx context.Context, e model.ProcessingLogEntry) error {
	meta, err := marshalJSON(e.Metadata)
	if err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO processing_logs (id, user_id, stage, status, message, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.UserID, string(e.Stage), string(e.Status), e.Message, meta, createdAt(e.CreatedAt),
	)
	return eris.Wrap(err, "postgres: insert processing log")
}

func (s *PostgresStore) AppendAPIUsage(ctx context.Context, u model.APIUsage) error {
	details, err := marshalJSON(u.Details)
	if err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO api_usage_logs (id, user_id, service, endpoint, status_code, duration_ms, details, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.UserID, u.Service, u.Endpoint, u.StatusCode, u.DurationMs, details, createdAt(u.CreatedAt),
	)
	return eris.Wrap(err, "postgres: insert api usage")
}

func (s *PostgresStore) ListProcessingLogs(ctx context.Context, filter model.LogFilter) ([]model.ProcessingLogEntry, error) {
	query := `SELECT id, user_id, stage, status, message, metadata, created_at FROM processing_logs WHERE user_id = $1`
	args := []any{filter.UserID}
	argIdx := 2

	if filter.Stage != "" {
		query += fmt.Sprintf(` AND stage = $%d`, argIdx)
		args = append(args, string(filter.Stage))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, logLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list processing logs")
	}
	defer rows.Close()

	var out []model.ProcessingLogEntry
	for rows.Next() {
		var e model.ProcessingLogEntry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Stage, &e.Status, &e.Message, &meta, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan processing log")
		}
		if e.Metadata, err = unmarshalMap(meta); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate processing logs")
}

func (s *PostgresStore) InsertLeadHistory(ctx context.Context, h model.LeadHistory) error {
	meta, err := marshalJSON(h.Metadata)
	if err != nil {
		return err
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO lead_history (id, user_id, email, first_name, last_name, company, position, status, enrichment, subject, error, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		h.ID, h.UserID, h.Email, h.FirstName, h.LastName, h.Company, h.Position, string(h.Status),
		nullable(h.Enrichment), nullable(h.Subject), nullable(h.Error), meta, createdAt(h.CreatedAt),
	)
	return eris.Wrap(err, "postgres: insert lead history")
}

func (s *PostgresStore) InsertEmailHistory(ctx context.Context, h model.EmailHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO email_history (id, user_id, recipient, subject, body, status, error, sent_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		h.ID, h.UserID, h.Recipient, h.Subject, h.Body, string(h.Status), nullable(h.Error), createdAt(h.SentAt),
	)
	return eris.Wrap(err, "postgres: insert email history")
}

func (s *PostgresStore) UpsertDashboardStats(ctx context.Context, st model.DashboardStats) error {
	err := db.Upsert(ctx, s.pool, statsUpsert,
		st.UserID, st.TotalLeads, st.ProcessedLeads, st.SuccessRate,
		st.EmailsSent, st.BlacklistCount, st.ContactsCount, createdAt(st.LastProcessed),
	)
	return eris.Wrap(err, "postgres: upsert dashboard stats")
}

func (s *PostgresStore) GetDashboardStats(ctx context.Context, userID string) (*model.DashboardStats, error) {
	var st model.DashboardStats
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, total_leads, processed_leads, success_rate, emails_sent, blacklist_count, contacts_count, last_processed
		 FROM dashboard_stats WHERE user_id = $1`,
		userID,
	).Scan(&st.UserID, &st.TotalLeads, &st.ProcessedLeads, &st.SuccessRate,
		&st.EmailsSent, &st.BlacklistCount, &st.ContactsCount, &st.LastProcessed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get dashboard stats %s", userID)
	}
	return &st, nil
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
