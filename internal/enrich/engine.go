// Package enrich turns a contact into research notes and a personalized
// email draft using a generative model.
package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/placeholder"
	"github.com/sells-group/leadflow/pkg/anthropic"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 1024
	serviceName      = "anthropic"
)

// UsageRecorder receives one usage record per model call.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, usage model.APIUsage)
}

// Option configures an Engine.
type Option func(*Engine)

// WithUsageRecorder sets the usage sink.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(e *Engine) {
		e.usage = r
	}
}

// WithDefaults sets the model and token limit used when settings leave
// them empty.
func WithDefaults(modelName string, maxTokens int64) Option {
	return func(e *Engine) {
		if modelName != "" {
			e.model = modelName
		}
		if maxTokens > 0 {
			e.maxTokens = maxTokens
		}
	}
}

// Engine runs the enrichment and drafting calls.
type Engine struct {
	client    anthropic.Client
	usage     UsageRecorder
	model     string
	maxTokens int64
	now       func() time.Time
}

// New creates an Engine. A nil client makes every call fail with
// ErrMissingAPIKey.
func New(client anthropic.Client, opts ...Option) *Engine {
	e := &Engine{
		client:    client,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		now:       time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Enrich returns free-text research notes for c.
func (e *Engine) Enrich(ctx context.Context, userID string, c model.Contact, cfg model.AIConfig) (string, error) {
	req := anthropic.MessageRequest{
		Model:       firstNonEmpty(cfg.Model, e.model),
		MaxTokens:   firstPositive(cfg.MaxTokens, e.maxTokens),
		Messages:    []anthropic.Message{{Role: "user", Content: enrichmentPrompt(c, cfg.EnrichmentPrompt)}},
		Temperature: cfg.Temperature,
		TopK:        cfg.TopK,
		TopP:        cfg.TopP,
	}

	text, err := e.complete(ctx, userID, "enrich", c.Email, req)
	if err != nil {
		return "", err
	}
	return text, nil
}

// Draft generates the subject and HTML body for c from its research notes.
// Settings in email fall back to ai, then to the engine defaults.
func (e *Engine) Draft(ctx context.Context, userID string, c model.Contact, enrichment string, email model.EmailConfig, ai model.AIConfig) (model.EmailDraft, error) {
	vars := draftVars(c, enrichment, email)
	req := anthropic.MessageRequest{
		Model:       firstNonEmpty(email.Model, ai.Model, e.model),
		MaxTokens:   firstPositive(email.MaxTokens, ai.MaxTokens, e.maxTokens),
		Messages:    []anthropic.Message{{Role: "user", Content: draftPrompt(vars, email.Prompt)}},
		Temperature: pick(email.Temperature, ai.Temperature),
		TopK:        pick(email.TopK, ai.TopK),
		TopP:        pick(email.TopP, ai.TopP),
	}

	text, err := e.complete(ctx, userID, "draft", c.Email, req)
	if err != nil {
		return model.EmailDraft{}, err
	}

	draft, err := ParseDraft(text)
	if err != nil {
		return model.EmailDraft{}, err
	}

	draft.Subject = placeholder.Substitute(draft.Subject, vars)
	draft.Body = placeholder.Substitute(draft.Body, vars)
	if err := checkDraft(draft); err != nil {
		return model.EmailDraft{}, err
	}
	return draft, nil
}

func (e *Engine) complete(ctx context.Context, userID, op, email string, req anthropic.MessageRequest) (string, error) {
	if e.client == nil {
		return "", &EnrichmentError{Op: op, Err: ErrMissingAPIKey}
	}

	start := e.now()
	resp, err := e.client.CreateMessage(ctx, req)
	usage := model.APIUsage{
		UserID:     userID,
		Service:    serviceName,
		Endpoint:   "messages",
		StatusCode: anthropic.StatusCode(err),
		DurationMs: e.now().Sub(start).Milliseconds(),
		Details:    map[string]any{"phase": op, "model": req.Model, "email": email},
	}

	if err != nil {
		usage.Details["error"] = err.Error()
		e.record(ctx, usage)
		return "", &EnrichmentError{Op: op, Err: err}
	}

	resp.Usage.LogCost(req.Model, op)
	usage.Details["input_tokens"] = resp.Usage.InputTokens
	usage.Details["output_tokens"] = resp.Usage.OutputTokens
	usage.Details["estimated_cost_usd"] = resp.Usage.EstimateCost(req.Model)
	e.record(ctx, usage)

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &EnrichmentError{Op: op, Err: eris.New("enrich: model returned no text")}
	}

	zap.L().Debug("enrich: model call complete",
		zap.String("phase", op),
		zap.String("email", email),
		zap.Int("chars", len(text)),
	)
	return text, nil
}

func (e *Engine) record(ctx context.Context, u model.APIUsage) {
	if e.usage != nil {
		e.usage.RecordUsage(ctx, u)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int64) int64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func pick[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
