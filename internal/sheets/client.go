// Package sheets reads blacklist and contact rows from spreadsheets and
// writes per-contact status back. Every call goes through a rate limiter and
// an exponential-backoff retry policy.
package sheets

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadflow/internal/metrics"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/resilience"
	"github.com/sells-group/leadflow/pkg/google"
)

// ScheduleLayout is the timestamp format written to the scheduled-for column.
const ScheduleLayout = "2006-01-02T15:04:05.000Z07:00"

const blacklistColumn = "email"

// Client is the spreadsheet boundary of the pipeline.
type Client struct {
	values         google.SheetsClient
	retry          resilience.RetryConfig
	limiter        *rate.Limiter
	scheduleOffset time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithRetry replaces the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithRateLimit throttles calls to rps requests per second. Zero disables
// throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithScheduleOffset sets the shift applied to scheduled-for timestamps
// before they are written.
func WithScheduleOffset(d time.Duration) Option {
	return func(c *Client) {
		c.scheduleOffset = d
	}
}

// DefaultRetryConfig is the Sheets retry policy: 5 attempts, delay
// min(1s*2^attempt, 32s) plus up to 1s of jitter.
func DefaultRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     32 * time.Second,
		Multiplier:     2,
		MaxJitter:      time.Second,
		ShouldRetry:    IsRetryable,
	}
}

// New creates a Client over a values transport.
func New(values google.SheetsClient, opts ...Option) *Client {
	c := &Client{
		values:         values,
		retry:          DefaultRetryConfig(),
		limiter:        rate.NewLimiter(rate.Limit(1), 5),
		scheduleOffset: time.Hour,
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.ShouldRetry == nil {
		c.retry.ShouldRetry = IsRetryable
	}
	return c
}

// IsRetryable reports whether a Sheets error is worth another attempt:
// HTTP 429, 500 and 503, or a transport reset/timeout.
func IsRetryable(err error) bool {
	switch resilience.StatusCode(err) {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	case 0:
		return resilience.IsNetworkTransient(err)
	default:
		return false
	}
}

// GetBlacklist returns the normalized addresses in the "email" column of tab.
func (c *Client) GetBlacklist(ctx context.Context, sheetID, tab string) ([]string, error) {
	header, err := c.get(ctx, "get_blacklist_header", sheetID, qualify(tab, "1:1"))
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, &StructureError{SheetID: sheetID, Tab: tab, Reason: "sheet is empty"}
	}

	idx := headerIndex(header[0], blacklistColumn)
	if idx < 0 {
		return nil, &StructureError{SheetID: sheetID, Tab: tab, Missing: []string{blacklistColumn}}
	}

	col := columnLetter(idx)
	rows, err := c.get(ctx, "get_blacklist", sheetID, qualify(tab, col+":"+col))
	if err != nil {
		return nil, err
	}

	var emails []string
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if v := model.NormalizeEmail(row[0]); v != "" {
			emails = append(emails, v)
		}
	}

	zap.L().Info("sheets: loaded blacklist",
		zap.String("sheet_id", sheetID),
		zap.Int("count", len(emails)),
	)
	return emails, nil
}

// GetContacts reads every data row of tab into contacts. Rows without a
// name or email are dropped.
func (c *Client) GetContacts(ctx context.Context, sheetID, tab string, mappings model.ColumnMappings) ([]model.Contact, error) {
	rows, err := c.get(ctx, "get_contacts", sheetID, qualify(tab, ""))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &StructureError{SheetID: sheetID, Tab: tab, Reason: "sheet is empty"}
	}

	mappings = mappings.WithDefaults()
	cols, err := resolveColumns(rows[0], mappings, sheetID, tab)
	if err != nil {
		return nil, err
	}

	contacts := make([]model.Contact, 0, len(rows)-1)
	dropped := 0
	for i, row := range rows[1:] {
		contact, ok := parseContact(row, cols)
		if !ok {
			dropped++
			continue
		}
		contact.Row = i + 2
		contacts = append(contacts, contact)
	}

	zap.L().Info("sheets: loaded contacts",
		zap.String("sheet_id", sheetID),
		zap.Int("count", len(contacts)),
		zap.Int("dropped", dropped),
	)
	return contacts, nil
}

// UpdateContacts writes status and scheduled-for values for every row whose
// email matches an update, in a single batch call. Emails that are not in
// the sheet are skipped.
func (c *Client) UpdateContacts(ctx context.Context, sheetID, tab string, mappings model.ColumnMappings, updates []model.ContactUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	rows, err := c.get(ctx, "update_contacts_read", sheetID, qualify(tab, ""))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &StructureError{SheetID: sheetID, Tab: tab, Reason: "sheet is empty"}
	}

	cells, err := c.planUpdates(rows, mappings.WithDefaults(), updates, sheetID, tab)
	if err != nil {
		return err
	}
	if len(cells) == 0 {
		return nil
	}

	_, err = resilience.DoVal(ctx, c.policy("update_contacts"), func(ctx context.Context) (struct{}, error) {
		if err := c.wait(ctx); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, c.values.BatchUpdate(ctx, sheetID, cells)
	})
	if err != nil {
		return upstream("update_contacts", err)
	}

	zap.L().Info("sheets: updated contacts",
		zap.String("sheet_id", sheetID),
		zap.Int("updates", len(updates)),
		zap.Int("cells", len(cells)),
	)
	return nil
}

func (c *Client) planUpdates(rows [][]string, mappings model.ColumnMappings, updates []model.ContactUpdate, sheetID, tab string) ([]google.CellValue, error) {
	header := rows[0]
	emailIdx := headerIndex(header, mappings.Email)
	statusIdx := headerIndex(header, mappings.Status)
	scheduleIdx := headerIndex(header, mappings.ScheduledFor)

	var missing []string
	if emailIdx < 0 {
		missing = append(missing, mappings.Email)
	}
	for _, u := range updates {
		if u.Updates.Status != "" && statusIdx < 0 {
			missing = appendOnce(missing, mappings.Status)
		}
		if u.Updates.ScheduledFor != nil && scheduleIdx < 0 {
			missing = appendOnce(missing, mappings.ScheduledFor)
		}
	}
	if len(missing) > 0 {
		return nil, &StructureError{SheetID: sheetID, Tab: tab, Missing: missing}
	}

	rowsByEmail := make(map[string][]int)
	for i, row := range rows[1:] {
		if email := model.NormalizeEmail(cell(row, emailIdx)); email != "" {
			rowsByEmail[email] = append(rowsByEmail[email], i+2)
		}
	}

	var cells []google.CellValue
	for _, u := range updates {
		matches := rowsByEmail[model.NormalizeEmail(u.Email)]
		if len(matches) == 0 {
			zap.L().Debug("sheets: update target not found", zap.String("email", u.Email))
			continue
		}
		for _, rowNum := range matches {
			if u.Updates.ScheduledFor != nil {
				cells = append(cells, google.CellValue{
					Range: qualify(tab, columnLetter(scheduleIdx)+itoa(rowNum)),
					Value: c.formatSchedule(*u.Updates.ScheduledFor),
				})
			}
			if u.Updates.Status != "" {
				cells = append(cells, google.CellValue{
					Range: qualify(tab, columnLetter(statusIdx)+itoa(rowNum)),
					Value: string(u.Updates.Status),
				})
			}
		}
	}
	return cells, nil
}

func (c *Client) formatSchedule(t time.Time) string {
	return t.Add(c.scheduleOffset).UTC().Format(ScheduleLayout)
}

func (c *Client) get(ctx context.Context, op, sheetID, rng string) ([][]string, error) {
	rows, err := resilience.DoVal(ctx, c.policy(op), func(ctx context.Context) ([][]string, error) {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		return c.values.Get(ctx, sheetID, rng)
	})
	if err != nil {
		return nil, upstream(op, err)
	}
	return rows, nil
}

func (c *Client) policy(op string) resilience.RetryConfig {
	cfg := c.retry
	if cfg.OnRetry == nil {
		logRetry := resilience.RetryLogger("sheets", op)
		cfg.OnRetry = func(attempt int, err error) {
			metrics.RecordSheetsRetry(op)
			logRetry(attempt, err)
		}
	}
	return cfg
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, StatusCode: resilience.StatusCode(err), Err: err}
}

func appendOnce(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
