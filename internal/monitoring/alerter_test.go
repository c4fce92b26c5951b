package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/pipeline"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.5, MinProcessed: 5})

	alerts := a.Evaluate("u1", model.RunStats{Total: 10, Processed: 8, Success: 6, Failure: 2})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.5, MinProcessed: 5})

	alerts := a.Evaluate("u1", model.RunStats{Total: 12, Processed: 10, Success: 4, Failure: 6})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
	assert.Equal(t, "u1", alerts[0].UserID)
	assert.Contains(t, alerts[0].Message, "60.0%")
	assert.Equal(t, 6, alerts[0].Details["failed"])
}

func TestAlerter_Evaluate_BelowMinProcessed(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.1, MinProcessed: 5})

	assert.Empty(t, a.Evaluate("u1", model.RunStats{Processed: 3, Failure: 3}))
	assert.Empty(t, a.Evaluate("u1", model.RunStats{}))
}

func TestAlerter_EvaluateError(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	assert.Empty(t, a.EvaluateError("u1", nil))
	assert.Empty(t, a.EvaluateError("u1", pipeline.ErrSettingsMissing))
	assert.Empty(t, a.EvaluateError("u1", eris.Wrap(pipeline.ErrSheetsNotConfigured, "run")))
	assert.Empty(t, a.EvaluateError("u1", pipeline.ErrUnauthenticated))

	alerts := a.EvaluateError("u1", errors.New("sheets: get_blacklist: status 503"))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunAborted, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "status 503")
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.Equal(t, AlertRunAborted, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertRunAborted, Message: "one"},
		{Type: AlertRunAborted, Message: "two"},
	})

	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertRunAborted}}))
}

func TestAlerter_SendAlerts_Disabled(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	assert.False(t, a.Enabled())
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertRunAborted}}))
}
