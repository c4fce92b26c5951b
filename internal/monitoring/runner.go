package monitoring

import (
	"context"

	"github.com/sells-group/leadflow/internal/model"
)

// Runner executes one processing run for a user.
type Runner interface {
	Run(ctx context.Context, userID string, opts model.RunOptions) (*model.RunResult, error)
}

type watchedRunner struct {
	next    Runner
	alerter *Alerter
}

// Watch wraps next so every finished or aborted run is evaluated for
// alerts. Test-mode runs are not evaluated. When the alerter is disabled
// next is returned unchanged.
func Watch(next Runner, a *Alerter) Runner {
	if a == nil || !a.Enabled() {
		return next
	}
	return &watchedRunner{next: next, alerter: a}
}

func (w *watchedRunner) Run(ctx context.Context, userID string, opts model.RunOptions) (*model.RunResult, error) {
	res, err := w.next.Run(ctx, userID, opts)
	if opts.TestMode {
		return res, err
	}

	var alerts []Alert
	if err != nil {
		alerts = w.alerter.EvaluateError(userID, err)
	} else if res != nil {
		alerts = w.alerter.Evaluate(userID, res.Stats)
	}
	w.alerter.SendAlerts(context.WithoutCancel(ctx), alerts)
	return res, err
}
