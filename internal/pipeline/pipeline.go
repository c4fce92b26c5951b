// Package pipeline runs a user's contact batch: load the blacklist and
// contacts, filter, then verify, enrich, draft and send each contact in
// order while recording outcomes.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/audit"
	"github.com/sells-group/leadflow/internal/metrics"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

// Pipeline orchestrates processing runs. It holds no per-run state and is
// safe for concurrent runs by different users.
type Pipeline struct {
	store     Store
	connector Connector
	verifier  Verifier
	audit     *audit.Recorder
	clock     Clock

	defaultDelay time.Duration
	maxDelay     time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the wall clock used for timestamps and delays.
func WithClock(c Clock) Option {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// WithAudit sets the processing log recorder.
func WithAudit(r *audit.Recorder) Option {
	return func(p *Pipeline) {
		p.audit = r
	}
}

// WithDelays sets the inter-email delay used when a run does not specify
// one and the upper bound applied to requested delays.
func WithDelays(defaultDelay, maxDelay time.Duration) Option {
	return func(p *Pipeline) {
		p.defaultDelay = defaultDelay
		p.maxDelay = maxDelay
	}
}

// New creates a Pipeline.
func New(st Store, connector Connector, verifier Verifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     st,
		connector: connector,
		verifier:  verifier,
		clock:     systemClock{},
		maxDelay:  time.Minute,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// run carries the state of one invocation.
type run struct {
	userID   string
	settings *model.Settings
	services *Services
	opts     model.RunOptions
	mappings model.ColumnMappings
	log      *zap.Logger

	success  int
	failure  int
	previews []model.Preview
	updates  []model.ContactUpdate
}

// Run processes the contacts of userID. Per-contact failures are counted
// and never returned; only precondition and load failures are.
func (p *Pipeline) Run(ctx context.Context, userID string, opts model.RunOptions) (*model.RunResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	log := zap.L().With(zap.String("user_id", userID), zap.Bool("test_mode", opts.TestMode))
	start := p.clock.Now()

	settings, err := p.store.GetSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSettingsMissing
	}
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load settings")
	}
	if !settings.SheetsConfigured() {
		return nil, ErrSheetsNotConfigured
	}

	services, err := p.connector.Connect(ctx, settings)
	if err != nil {
		metrics.RecordRun("connect_failed")
		return nil, eris.Wrap(err, "pipeline: connect workspace")
	}

	r := &run{
		userID:   userID,
		settings: settings,
		services: services,
		opts:     opts,
		mappings: settings.ColumnMappings.WithDefaults(),
		log:      log,
	}

	blacklist, err := services.Sheets.GetBlacklist(ctx, settings.BlacklistSheetID, settings.BlacklistTab())
	if err != nil {
		p.audit.Error(ctx, userID, model.StageBlacklist, "Failed to load blacklist: "+err.Error(), map[string]any{
			"sheet_id":     settings.BlacklistSheetID,
			"stage_detail": "blacklist",
		})
		metrics.RecordRun("load_failed")
		return nil, eris.Wrap(err, "pipeline: load blacklist")
	}
	set := blacklistSet(blacklist)
	p.audit.Success(ctx, userID, model.StageBlacklist, "Loaded blacklist", map[string]any{"count": len(set)})

	contacts, err := services.Sheets.GetContacts(ctx, settings.ContactsSheetID, settings.ContactsTab(), r.mappings)
	if err != nil {
		p.audit.Error(ctx, userID, model.StageBlacklist, "Failed to load contacts: "+err.Error(), map[string]any{
			"sheet_id":     settings.ContactsSheetID,
			"stage_detail": "contacts",
		})
		metrics.RecordRun("load_failed")
		return nil, eris.Wrap(err, "pipeline: load contacts")
	}

	filtered, excluded, duplicates := filterContacts(contacts, set, opts)
	p.audit.Success(ctx, userID, model.StageBlacklist, "Filtered contacts", map[string]any{
		"loaded":      len(contacts),
		"filtered":    len(filtered),
		"blacklisted": excluded,
		"duplicates":  duplicates,
	})
	log.Info("pipeline: contacts loaded",
		zap.Int("loaded", len(contacts)),
		zap.Int("blacklist", len(set)),
		zap.Int("filtered", len(filtered)),
		zap.Int("duplicates", duplicates),
	)

	delay := p.delay(opts)
	for i, c := range filtered {
		if ctx.Err() != nil {
			log.Warn("pipeline: run interrupted", zap.Int("remaining", len(filtered)-i), zap.Error(ctx.Err()))
			break
		}
		sent := p.processContact(ctx, r, c)
		if sent && delay > 0 && i < len(filtered)-1 {
			if err := p.clock.Sleep(ctx, delay); err != nil {
				log.Warn("pipeline: delay interrupted", zap.Error(err))
			}
		}
	}

	stats := model.RunStats{
		Total:     len(contacts),
		Processed: r.success + r.failure,
		Success:   r.success,
		Failure:   r.failure,
	}

	if !opts.TestMode {
		p.persist(ctx, r, stats, len(set), len(filtered))
	}

	outcome := "completed"
	if opts.TestMode {
		outcome = "test"
	}
	metrics.RecordRun(outcome)
	log.Info("pipeline: run complete",
		zap.Int("total", stats.Total),
		zap.Int("processed", stats.Processed),
		zap.Int("success", stats.Success),
		zap.Int("failure", stats.Failure),
		zap.Int64("duration_ms", p.clock.Now().Sub(start).Milliseconds()),
	)

	return &model.RunResult{Stats: stats, Previews: r.previews}, nil
}

// delay resolves the wait between sends for a run.
func (p *Pipeline) delay(opts model.RunOptions) time.Duration {
	d := p.defaultDelay
	if opts.DelayBetweenEmails != nil {
		d = time.Duration(*opts.DelayBetweenEmails) * time.Millisecond
	}
	if d < 0 {
		return 0
	}
	if p.maxDelay > 0 && d > p.maxDelay {
		return p.maxDelay
	}
	return d
}

// persist writes run-level state after the loop. Failures are logged only:
// by now emails have gone out and the caller still gets its stats.
func (p *Pipeline) persist(ctx context.Context, r *run, stats model.RunStats, blacklistCount, contactsCount int) {
	now := p.clock.Now()

	if r.opts.UpdateScheduling {
		p.writeBack(ctx, r)
	}

	err := p.store.UpsertDashboardStats(ctx, model.DashboardStats{
		UserID:         r.userID,
		TotalLeads:     stats.Total,
		ProcessedLeads: stats.Processed,
		SuccessRate:    model.SuccessRate(stats.Success, stats.Failure),
		EmailsSent:     stats.Success,
		BlacklistCount: blacklistCount,
		ContactsCount:  contactsCount,
		LastProcessed:  now,
	})
	if err != nil {
		r.log.Error("pipeline: upsert dashboard stats failed", zap.Error(err))
	}

	if err := p.store.TouchLastExecution(ctx, r.userID, now); err != nil {
		r.log.Warn("pipeline: stamp last execution failed", zap.Error(err))
	}
}

// writeBack pushes sent/failed status and send times to the Contacts sheet
// in one batch.
func (p *Pipeline) writeBack(ctx context.Context, r *run) {
	if len(r.updates) == 0 {
		return
	}
	err := r.services.Sheets.UpdateContacts(ctx, r.settings.ContactsSheetID, r.settings.ContactsTab(), r.mappings, r.updates)
	if err != nil {
		r.log.Error("pipeline: contact write-back failed", zap.Int("updates", len(r.updates)), zap.Error(err))
		p.audit.Error(ctx, r.userID, model.StageEmail, "Failed to update contact scheduling: "+err.Error(), map[string]any{
			"updates": len(r.updates),
		})
		return
	}
	p.audit.Success(ctx, r.userID, model.StageEmail, "Updated contact scheduling", map[string]any{"updates": len(r.updates)})
}
