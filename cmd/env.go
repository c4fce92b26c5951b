package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/audit"
	"github.com/sells-group/leadflow/internal/monitoring"
	"github.com/sells-group/leadflow/internal/pipeline"
	"github.com/sells-group/leadflow/internal/resilience"
	"github.com/sells-group/leadflow/internal/store"
	"github.com/sells-group/leadflow/internal/verify"
	"github.com/sells-group/leadflow/internal/workspace"
)

const defaultSQLitePath = "leadflow.db"

// pipelineEnv holds the store and pipeline needed by the serve and
// process commands.
type pipelineEnv struct {
	Store    store.Store
	Audit    *audit.Recorder
	Pipeline *pipeline.Pipeline

	// Runner is Pipeline wrapped with run alerts.
	Runner monitoring.Runner
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore validates the store section, opens the store and migrates it.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initVerifier(usage verify.UsageRecorder) *verify.Verifier {
	timeout := time.Duration(cfg.Verifier.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breaker := resilience.FromCircuitConfig(
		cfg.Verifier.FailureThreshold,
		cfg.Verifier.ResetTimeoutSecs,
	)
	return verify.New(
		verify.WithBaseURL(cfg.Verifier.BaseURL),
		verify.WithAPIKey(cfg.Verifier.Key),
		verify.WithHTTPClient(&http.Client{Timeout: timeout}),
		verify.WithUsageRecorder(usage),
		verify.WithCircuitBreaker(breaker),
	)
}

// initPipeline opens the store and wires the verifier, workspace connector
// and audit recorder into a Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string, extra ...workspace.Option) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	rec := audit.NewRecorder(st)

	wsOpts, err := workspace.Options(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	wsOpts = append(wsOpts, workspace.WithUsageRecorder(rec))
	wsOpts = append(wsOpts, extra...)

	if cfg.Anthropic.Key == "" {
		zap.L().Debug("LEADFLOW_ANTHROPIC_KEY not set, runs require a per-user api key")
	}

	p := pipeline.New(st, workspace.New(wsOpts...), initVerifier(rec),
		pipeline.WithAudit(rec),
		pipeline.WithDelays(
			time.Duration(cfg.Pipeline.DefaultDelayMs)*time.Millisecond,
			time.Duration(cfg.Pipeline.MaxDelayMs)*time.Millisecond,
		),
	)

	alerter := monitoring.NewAlerter(cfg.Monitor)
	if alerter.Enabled() {
		zap.L().Info("run alerts enabled", zap.Float64("failure_rate_threshold", cfg.Monitor.FailureRateThreshold))
	}

	return &pipelineEnv{
		Store:    st,
		Audit:    rec,
		Pipeline: p,
		Runner:   monitoring.Watch(p, alerter),
	}, nil
}
