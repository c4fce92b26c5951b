// Package store persists user settings, the audit trail, per-contact
// history and dashboard aggregates.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the processing pipeline.
type Store interface {
	// Settings
	GetSettings(ctx context.Context, userID string) (*model.Settings, error)
	UpsertSettings(ctx context.Context, s *model.Settings) error
	TouchLastExecution(ctx context.Context, userID string, at time.Time) error

	// Audit
	AppendProcessingLog(ctx context.Context, entry model.ProcessingLogEntry) error
	AppendAPIUsage(ctx context.Context, usage model.APIUsage) error
	ListProcessingLogs(ctx context.Context, filter model.LogFilter) ([]model.ProcessingLogEntry, error)

	// History
	InsertLeadHistory(ctx context.Context, h model.LeadHistory) error
	InsertEmailHistory(ctx context.Context, h model.EmailHistory) error

	// Dashboard
	UpsertDashboardStats(ctx context.Context, stats model.DashboardStats) error
	GetDashboardStats(ctx context.Context, userID string) (*model.DashboardStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

const defaultLogLimit = 100

func logLimit(n int) int {
	if n <= 0 || n > 1000 {
		return defaultLogLimit
	}
	return n
}

// marshalJSON encodes v, mapping nil maps to NULL.
func marshalJSON(v any) ([]byte, error) {
	if m, ok := v.(map[string]any); ok && m == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal json")
	}
	return b, nil
}

func unmarshalMap(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal json")
	}
	return m, nil
}

type settingsDoc struct {
	mappings []byte
	ai       []byte
	email    []byte
}

func encodeSettings(s *model.Settings) (settingsDoc, error) {
	var d settingsDoc
	var err error
	if d.mappings, err = json.Marshal(s.ColumnMappings); err != nil {
		return d, eris.Wrap(err, "store: marshal column mappings")
	}
	if d.ai, err = json.Marshal(s.AI); err != nil {
		return d, eris.Wrap(err, "store: marshal ai config")
	}
	if d.email, err = json.Marshal(s.Email); err != nil {
		return d, eris.Wrap(err, "store: marshal email config")
	}
	return d, nil
}

func decodeSettings(s *model.Settings, d settingsDoc) error {
	if len(d.mappings) > 0 {
		if err := json.Unmarshal(d.mappings, &s.ColumnMappings); err != nil {
			return eris.Wrap(err, "store: unmarshal column mappings")
		}
	}
	if len(d.ai) > 0 {
		if err := json.Unmarshal(d.ai, &s.AI); err != nil {
			return eris.Wrap(err, "store: unmarshal ai config")
		}
	}
	if len(d.email) > 0 {
		if err := json.Unmarshal(d.email, &s.Email); err != nil {
			return eris.Wrap(err, "store: unmarshal email config")
		}
	}
	return nil
}
