// Package workspace builds the per-user Google Workspace and model clients
// a processing run needs from the user's stored settings.
package workspace

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/enrich"
	"github.com/sells-group/leadflow/internal/mailer"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/pipeline"
	"github.com/sells-group/leadflow/internal/resilience"
	"github.com/sells-group/leadflow/internal/sheets"
	"github.com/sells-group/leadflow/pkg/anthropic"
	"github.com/sells-group/leadflow/pkg/google"
)

// ErrNoCredentials is returned when a transport needs Google credentials
// and neither the user nor the server has any.
var ErrNoCredentials = eris.New("workspace: google credentials are not configured")

// Connector implements pipeline.Connector.
type Connector struct {
	credentials  []byte
	anthropicKey string
	model        string
	maxTokens    int64
	usage        enrich.UsageRecorder

	sheetsOpts []sheets.Option
	googleOpts []google.Option

	values google.SheetsClient
	gmail  google.GmailSender
	newLLM func(apiKey string) anthropic.Client
}

var _ pipeline.Connector = (*Connector)(nil)

// Option configures a Connector.
type Option func(*Connector)

// WithCredentials sets the fallback service account key used when a user
// has none stored.
func WithCredentials(credentialsJSON []byte) Option {
	return func(c *Connector) {
		c.credentials = credentialsJSON
	}
}

// WithAnthropic sets the fallback API key and model defaults.
func WithAnthropic(apiKey, modelName string, maxTokens int64) Option {
	return func(c *Connector) {
		c.anthropicKey = apiKey
		c.model = modelName
		c.maxTokens = maxTokens
	}
}

// WithUsageRecorder records model usage for every run.
func WithUsageRecorder(r enrich.UsageRecorder) Option {
	return func(c *Connector) {
		c.usage = r
	}
}

// WithSheetsOptions configures every sheets.Client built by the Connector.
func WithSheetsOptions(opts ...sheets.Option) Option {
	return func(c *Connector) {
		c.sheetsOpts = append(c.sheetsOpts, opts...)
	}
}

// WithGoogleOptions passes extra options to the Google adapters.
func WithGoogleOptions(opts ...google.Option) Option {
	return func(c *Connector) {
		c.googleOpts = append(c.googleOpts, opts...)
	}
}

// WithValues replaces the Sheets API with a fixed values source such as a
// local workbook.
func WithValues(values google.SheetsClient) Option {
	return func(c *Connector) {
		c.values = values
	}
}

// WithGmail replaces the Gmail API adapter.
func WithGmail(g google.GmailSender) Option {
	return func(c *Connector) {
		c.gmail = g
	}
}

// WithLLMFactory overrides how model clients are created for an API key.
func WithLLMFactory(fn func(apiKey string) anthropic.Client) Option {
	return func(c *Connector) {
		c.newLLM = fn
	}
}

// New creates a Connector.
func New(opts ...Option) *Connector {
	c := &Connector{
		newLLM: func(apiKey string) anthropic.Client { return anthropic.NewClient(apiKey) },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Options derives Connector options from application config. The
// credentials file, when set, must be readable.
func Options(cfg *config.Config) ([]Option, error) {
	opts := []Option{
		WithAnthropic(cfg.Anthropic.Key, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens),
		WithSheetsOptions(SheetsOptions(cfg)...),
	}
	if path := cfg.Google.CredentialsFile; path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "workspace: read credentials file %s", path)
		}
		opts = append(opts, WithCredentials(b))
	}
	return opts, nil
}

// SheetsOptions maps the sheets and google config sections onto sheets.Client options.
func SheetsOptions(cfg *config.Config) []sheets.Option {
	retry := resilience.FromRetryConfig(
		cfg.Sheets.MaxAttempts,
		cfg.Sheets.InitialBackoffMs,
		cfg.Sheets.MaxBackoffMs,
		cfg.Sheets.MaxJitterMs,
	)
	retry.ShouldRetry = sheets.IsRetryable
	return []sheets.Option{
		sheets.WithRetry(retry),
		sheets.WithRateLimit(cfg.Google.SheetsRPS, cfg.Google.SheetsBurst),
		sheets.WithScheduleOffset(time.Duration(cfg.Sheets.ScheduleOffsetMinutes) * time.Minute),
	}
}

// Connect builds the Sheets, Gmail and model clients for settings.
func (c *Connector) Connect(ctx context.Context, settings *model.Settings) (*pipeline.Services, error) {
	creds := c.credentials
	if s := strings.TrimSpace(settings.GoogleCredentials); s != "" {
		creds = []byte(s)
	}
	gopts := append([]google.Option{
		google.WithCredentialsJSON(creds),
		google.WithSubject(settings.ImpersonatedEmail),
	}, c.googleOpts...)

	values := c.values
	if values == nil {
		if len(creds) == 0 {
			return nil, ErrNoCredentials
		}
		v, err := google.NewSheets(ctx, gopts...)
		if err != nil {
			return nil, eris.Wrap(err, "workspace: connect sheets")
		}
		values = v
	}

	var sender mailer.Sender
	switch {
	case c.gmail != nil:
		sender = mailer.New(c.gmail, settings.ImpersonatedEmail, settings.Email.SenderName)
	case len(creds) == 0:
		sender = unavailableSender{}
	default:
		g, err := google.NewGmail(ctx, gopts...)
		if err != nil {
			return nil, eris.Wrap(err, "workspace: connect gmail")
		}
		sender = mailer.New(g, settings.ImpersonatedEmail, settings.Email.SenderName)
	}

	var llm anthropic.Client
	if key := firstNonEmpty(settings.AI.APIKey, c.anthropicKey); key != "" {
		llm = c.newLLM(key)
	}
	engineOpts := []enrich.Option{enrich.WithDefaults(c.model, c.maxTokens)}
	if c.usage != nil {
		engineOpts = append(engineOpts, enrich.WithUsageRecorder(c.usage))
	}

	return &pipeline.Services{
		Sheets:   sheets.New(values, c.sheetsOpts...),
		Sender:   sender,
		Enricher: enrich.New(llm, engineOpts...),
	}, nil
}

// unavailableSender fails every send; it stands in when a run has Sheets
// data from a local workbook but no Google credentials.
type unavailableSender struct{}

func (unavailableSender) Send(context.Context, string, string, string) (string, error) {
	return "", ErrNoCredentials
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
