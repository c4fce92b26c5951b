// Package monitoring posts webhook alerts when a processing run fails to
// load or ends with too many failed contacts.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/pipeline"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate AlertType = "run_failure_rate"
	AlertRunAborted     AlertType = "run_aborted"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	UserID    string         `json:"user_id"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates run outcomes against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	now    func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Enabled reports whether a webhook is configured.
func (a *Alerter) Enabled() bool {
	return a.cfg.WebhookURL != ""
}

// Evaluate checks a finished run's stats and returns any alerts.
func (a *Alerter) Evaluate(userID string, stats model.RunStats) []Alert {
	finished := stats.Success + stats.Failure
	if finished == 0 || finished < a.cfg.MinProcessed {
		return nil
	}
	rate := float64(stats.Failure) / float64(finished)
	if rate <= a.cfg.FailureRateThreshold {
		return nil
	}
	return []Alert{{
		Type:     AlertRunFailureRate,
		Severity: "high",
		UserID:   userID,
		Message: fmt.Sprintf(
			"Run failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d processed)",
			rate*100, a.cfg.FailureRateThreshold*100, stats.Failure, finished,
		),
		Details: map[string]any{
			"failure_rate": rate,
			"threshold":    a.cfg.FailureRateThreshold,
			"failed":       stats.Failure,
			"processed":    finished,
			"total":        stats.Total,
		},
		Timestamp: a.now().UTC(),
	}}
}

// EvaluateError returns an alert for a run that aborted. Caller errors such
// as missing settings do not alert.
func (a *Alerter) EvaluateError(userID string, err error) []Alert {
	if err == nil ||
		errors.Is(err, pipeline.ErrUnauthenticated) ||
		errors.Is(err, pipeline.ErrSettingsMissing) ||
		errors.Is(err, pipeline.ErrSheetsNotConfigured) {
		return nil
	}
	return []Alert{{
		Type:      AlertRunAborted,
		Severity:  "high",
		UserID:    userID,
		Message:   "Run aborted: " + err.Error(),
		Timestamp: a.now().UTC(),
	}}
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if !a.Enabled() || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.String("user_id", alert.UserID),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("user_id", alert.UserID),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
