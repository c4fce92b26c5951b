package pipeline

import (
	"context"
	"time"

	"github.com/sells-group/leadflow/internal/mailer"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/resilience"
)

// Store is the persistence surface a run reads settings from and writes
// outcomes to.
type Store interface {
	GetSettings(ctx context.Context, userID string) (*model.Settings, error)
	TouchLastExecution(ctx context.Context, userID string, at time.Time) error
	InsertLeadHistory(ctx context.Context, h model.LeadHistory) error
	InsertEmailHistory(ctx context.Context, h model.EmailHistory) error
	UpsertDashboardStats(ctx context.Context, stats model.DashboardStats) error
}

// SheetSource reads the blacklist and contacts and writes back contact state.
type SheetSource interface {
	GetBlacklist(ctx context.Context, sheetID, tab string) ([]string, error)
	GetContacts(ctx context.Context, sheetID, tab string, mappings model.ColumnMappings) ([]model.Contact, error)
	UpdateContacts(ctx context.Context, sheetID, tab string, mappings model.ColumnMappings, updates []model.ContactUpdate) error
}

// Verifier reports whether an address is safe to send to.
type Verifier interface {
	Verify(ctx context.Context, userID, address string) bool
}

// Enricher researches a contact and drafts the outbound email.
type Enricher interface {
	Enrich(ctx context.Context, userID string, c model.Contact, cfg model.AIConfig) (string, error)
	Draft(ctx context.Context, userID string, c model.Contact, enrichment string, email model.EmailConfig, ai model.AIConfig) (model.EmailDraft, error)
}

// Services are the per-user clients a run talks to.
type Services struct {
	Sheets   SheetSource
	Sender   mailer.Sender
	Enricher Enricher
}

// Connector builds Services for a user's settings.
type Connector interface {
	Connect(ctx context.Context, settings *model.Settings) (*Services, error)
}

// Clock abstracts wall time so the inter-email delay can be tested.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	return resilience.SleepContext(ctx, d)
}
