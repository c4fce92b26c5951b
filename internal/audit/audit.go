// Package audit writes the append-only processing log and API usage trail.
// Writes are best-effort: failures are logged and never surface to callers.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/model"
)

// Sink persists audit records.
type Sink interface {
	AppendProcessingLog(ctx context.Context, entry model.ProcessingLogEntry) error
	AppendAPIUsage(ctx context.Context, usage model.APIUsage) error
}

// Recorder stamps and forwards audit records to a Sink.
type Recorder struct {
	sink Sink
	now  func() time.Time
}

// NewRecorder creates a Recorder. A nil sink discards everything.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink, now: time.Now}
}

// Log appends a processing log entry.
func (r *Recorder) Log(ctx context.Context, userID string, stage model.Stage, status model.LogStatus, message string, metadata map[string]any) {
	if r == nil || r.sink == nil {
		return
	}
	entry := model.ProcessingLogEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Stage:     stage,
		Status:    status,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: r.now().UTC(),
	}
	if err := r.sink.AppendProcessingLog(ctx, entry); err != nil {
		zap.L().Warn("audit: processing log write failed",
			zap.String("user_id", userID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
	}
}

// Success logs a successful stage outcome.
func (r *Recorder) Success(ctx context.Context, userID string, stage model.Stage, message string, metadata map[string]any) {
	r.Log(ctx, userID, stage, model.LogStatusSuccess, message, metadata)
}

// Error logs a failed stage outcome.
func (r *Recorder) Error(ctx context.Context, userID string, stage model.Stage, message string, metadata map[string]any) {
	r.Log(ctx, userID, stage, model.LogStatusError, message, metadata)
}

// RecordUsage appends an external API usage record.
func (r *Recorder) RecordUsage(ctx context.Context, usage model.APIUsage) {
	if r == nil || r.sink == nil {
		return
	}
	if usage.ID == "" {
		usage.ID = uuid.NewString()
	}
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = r.now().UTC()
	}
	if err := r.sink.AppendAPIUsage(ctx, usage); err != nil {
		zap.L().Warn("audit: api usage write failed",
			zap.String("service", usage.Service),
			zap.Error(err),
		)
	}
}
