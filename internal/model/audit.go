package model

import "time"

// Stage identifies the pipeline stage an audit entry belongs to.
type Stage string

const (
	StageBlacklist    Stage = "blacklist"
	StageEnrichment   Stage = "enrichment"
	StageVerification Stage = "verification"
	StageEmail        Stage = "email"
)

// LogStatus is the outcome recorded on an audit entry.
type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusError   LogStatus = "error"
)

// ProcessingLogEntry is one append-only audit record.
type ProcessingLogEntry struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Stage     Stage          `json:"stage"`
	Status    LogStatus      `json:"status"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// APIUsage records one call to an external service.
type APIUsage struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Service    string         `json:"service"`
	Endpoint   string         `json:"endpoint"`
	StatusCode int            `json:"status"`
	DurationMs int64          `json:"duration_ms"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// LogFilter narrows processing log queries.
type LogFilter struct {
	UserID string `json:"user_id"`
	Stage  Stage  `json:"stage,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}
