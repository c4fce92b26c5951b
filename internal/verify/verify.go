// Package verify checks recipient addresses against an email reputation
// service before any enrichment spend. Verification never blocks the
// pipeline: service outages count as valid.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/metrics"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/resilience"
)

const (
	defaultBaseURL = "https://api.usercheck.com/email"
	serviceName    = "usercheck"
)

var formatRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UsageRecorder receives one usage record per verification attempt.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, usage model.APIUsage)
}

// Result is the reputation lookup response.
type Result struct {
	Disposable bool `json:"disposable"`
	Spam       bool `json:"spam"`
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithBaseURL overrides the lookup endpoint.
func WithBaseURL(u string) Option {
	return func(v *Verifier) {
		v.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(v *Verifier) {
		v.http = hc
	}
}

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) Option {
	return func(v *Verifier) {
		v.apiKey = key
	}
}

// WithUsageRecorder sets the usage sink.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(v *Verifier) {
		v.usage = r
	}
}

// WithCircuitBreaker guards lookups with one breaker per user built from
// cfg. A nil ShouldTrip counts only service outages.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(v *Verifier) {
		if cfg.ShouldTrip == nil {
			cfg.ShouldTrip = IsOutage
		}
		v.breakerCfg = &cfg
	}
}

// IsOutage reports whether err means the service itself is unavailable:
// transport failures, timeouts, throttling or 5xx. Client errors do not count.
func IsOutage(err error) bool {
	if err == nil {
		return false
	}
	if code := resilience.StatusCode(err); code != 0 {
		return resilience.IsTransientHTTPStatus(code)
	}
	return resilience.IsNetworkTransient(err)
}

// Verifier is an address reputation checker.
type Verifier struct {
	baseURL string
	apiKey  string
	http    *http.Client
	usage   UsageRecorder
	now     func() time.Time

	breakerCfg *resilience.CircuitBreakerConfig
	mu         sync.Mutex
	breakers   map[string]*resilience.CircuitBreaker
}

// New creates a Verifier.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// breakerFor returns the user's breaker, or nil when breakers are disabled.
func (v *Verifier) breakerFor(userID string) *resilience.CircuitBreaker {
	if v.breakerCfg == nil {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.breakers == nil {
		v.breakers = make(map[string]*resilience.CircuitBreaker)
	}
	cb, ok := v.breakers[userID]
	if !ok {
		cb = resilience.NewCircuitBreaker(*v.breakerCfg)
		v.breakers[userID] = cb
	}
	return cb
}

// ValidFormat reports whether address looks like local@domain.tld.
func ValidFormat(address string) bool {
	return formatRe.MatchString(address)
}

// Verify reports whether address should receive mail. Lookup failures of
// any kind return true.
func (v *Verifier) Verify(ctx context.Context, userID, address string) bool {
	address = strings.TrimSpace(address)
	endpoint := v.baseURL + "/" + url.PathEscape(address)
	start := v.now()

	var (
		res    *Result
		status int
		err    error
	)
	if cb := v.breakerFor(userID); cb != nil {
		res, err = resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (*Result, error) {
			var lookupErr error
			res, status, lookupErr = v.lookup(ctx, endpoint)
			return res, lookupErr
		})
	} else {
		res, status, err = v.lookup(ctx, endpoint)
	}

	usage := model.APIUsage{
		UserID:     userID,
		Service:    serviceName,
		Endpoint:   endpoint,
		StatusCode: status,
		DurationMs: v.now().Sub(start).Milliseconds(),
		Details:    map[string]any{"email": address},
	}

	if err != nil {
		outcome := "fail_open"
		if errors.Is(err, resilience.ErrCircuitOpen) {
			outcome = "circuit_open"
			usage.StatusCode = 0
		}
		usage.Details["error"] = err.Error()
		usage.Details["outcome"] = outcome
		v.record(ctx, usage)
		metrics.RecordVerifierResult(outcome)
		zap.L().Warn("verify: lookup failed, treating address as valid",
			zap.String("email", address),
			zap.Int("status", status),
			zap.Error(err),
		)
		return true
	}

	valid := ValidFormat(address) && !res.Disposable && !res.Spam
	usage.Details["disposable"] = res.Disposable
	usage.Details["spam"] = res.Spam
	usage.Details["valid"] = valid
	v.record(ctx, usage)

	if valid {
		metrics.RecordVerifierResult("valid")
	} else {
		metrics.RecordVerifierResult("invalid")
	}
	return valid
}

func (v *Verifier) lookup(ctx context.Context, endpoint string) (*Result, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "verify: create request")
	}
	req.Header.Set("Accept", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "verify: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "verify: read body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, resilience.NewTransientError(
			fmt.Errorf("verify: status %d: %s", resp.StatusCode, truncate(string(body), 200)),
			resp.StatusCode,
		)
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "verify: decode response")
	}
	return &res, resp.StatusCode, nil
}

func (v *Verifier) record(ctx context.Context, u model.APIUsage) {
	if v.usage != nil {
		v.usage.RecordUsage(ctx, u)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
