package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/leadflow/internal/model"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetSettings(ctx context.Context, userID string) (*model.Settings, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Settings), args.Error(1)
}

func (m *mockStore) TouchLastExecution(ctx context.Context, userID string, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}

func (m *mockStore) InsertLeadHistory(ctx context.Context, h model.LeadHistory) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockStore) InsertEmailHistory(ctx context.Context, h model.EmailHistory) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockStore) UpsertDashboardStats(ctx context.Context, stats model.DashboardStats) error {
	return m.Called(ctx, stats).Error(0)
}

// --- Sender Mock ---

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	args := m.Called(ctx, to, subject, htmlBody)
	return args.String(0), args.Error(1)
}

// --- Sheets Fake ---

type fakeSheets struct {
	blacklist    []string
	contacts     []model.Contact
	blacklistErr error
	contactsErr  error
	updateErr    error

	mu      sync.Mutex
	updates [][]model.ContactUpdate
}

func (f *fakeSheets) GetBlacklist(context.Context, string, string) ([]string, error) {
	return f.blacklist, f.blacklistErr
}

func (f *fakeSheets) GetContacts(context.Context, string, string, model.ColumnMappings) ([]model.Contact, error) {
	return f.contacts, f.contactsErr
}

func (f *fakeSheets) UpdateContacts(_ context.Context, _, _ string, _ model.ColumnMappings, updates []model.ContactUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updates)
	return f.updateErr
}

// --- Verifier Fake ---

type fakeVerifier struct {
	invalid map[string]bool

	mu    sync.Mutex
	calls []string
}

func (f *fakeVerifier) Verify(_ context.Context, _, address string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, address)
	return !f.invalid[address]
}

// --- Enricher Fake ---

type fakeEnricher struct {
	enrichErr map[string]error
	draftErr  map[string]error

	mu       sync.Mutex
	enriched []string
	drafted  []string
}

func (f *fakeEnricher) Enrich(_ context.Context, _ string, c model.Contact, _ model.AIConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enriched = append(f.enriched, c.Email)
	if err := f.enrichErr[c.Email]; err != nil {
		return "", err
	}
	return "notes about " + c.Company, nil
}

func (f *fakeEnricher) Draft(_ context.Context, _ string, c model.Contact, _ string, _ model.EmailConfig, _ model.AIConfig) (model.EmailDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafted = append(f.drafted, c.Email)
	if err := f.draftErr[c.Email]; err != nil {
		return model.EmailDraft{}, err
	}
	return model.EmailDraft{Subject: "Hi " + c.FirstName, Body: "<p>Hello " + c.FirstName + "</p>"}, nil
}

// --- Connector Stub ---

type stubConnector struct {
	services *Services
	err      error
	calls    int
}

func (s *stubConnector) Connect(context.Context, *model.Settings) (*Services, error) {
	s.calls++
	return s.services, s.err
}

// --- Clock Fake ---

type fakeClock struct {
	now    time.Time
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	return nil
}

// --- Audit Sink ---

type memorySink struct {
	mu   sync.Mutex
	logs []model.ProcessingLogEntry
}

func (s *memorySink) AppendProcessingLog(_ context.Context, e model.ProcessingLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, e)
	return nil
}

func (s *memorySink) AppendAPIUsage(context.Context, model.APIUsage) error { return nil }

func (s *memorySink) errors(stage model.Stage) []model.ProcessingLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ProcessingLogEntry
	for _, e := range s.logs {
		if e.Stage == stage && e.Status == model.LogStatusError {
			out = append(out, e)
		}
	}
	return out
}
