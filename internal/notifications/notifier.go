package notifications

import (
	"context"
	"log/slog"

	"tracktap/internal/capture"
	"tracktap/internal/config"
	"tracktap/internal/logging"
)

// Notifier forwards runner lifecycle hooks to a Service. Delivery failures
// are logged and never interrupt a capture.
type Notifier struct {
	service   Service
	onStart   bool
	onFinish  bool
	onFailure bool
	logger    *slog.Logger
}

var _ capture.Notifier = (*Notifier)(nil)

// NewNotifier applies the per-event toggles from cfg.
func NewNotifier(cfg *config.Config, service Service, logger *slog.Logger) *Notifier {
	n := &Notifier{
		service: service,
		logger:  logging.NewComponentLogger(logger, "notify"),
	}
	if cfg != nil {
		n.onStart = cfg.Notifications.RunStarted
		n.onFinish = cfg.Notifications.RunCompleted
		n.onFailure = cfg.Notifications.Errors
	}
	return n
}

func (n *Notifier) RunStarted(ctx context.Context, info capture.RunInfo) {
	if !n.onStart {
		return
	}
	n.publish(ctx, EventRunStarted, Payload{Title: info.Title, Total: info.Total})
}

func (n *Notifier) RunFinished(ctx context.Context, report capture.Report) {
	if !n.onFinish {
		return
	}
	counts := report.Counts()
	n.publish(ctx, EventRunCompleted, Payload{
		Title:    report.Title,
		Total:    report.Total,
		OK:       counts.OK,
		Skipped:  counts.Skipped,
		Failed:   counts.Error,
		Duration: report.Finished.Sub(report.Started),
	})
}

func (n *Notifier) RunFailed(ctx context.Context, info capture.RunInfo, err error) {
	if !n.onFailure {
		return
	}
	n.publish(ctx, EventRunFailed, Payload{Title: info.Title, Total: info.Total, Err: err})
}

func (n *Notifier) publish(ctx context.Context, event Event, payload Payload) {
	if n == nil || n.service == nil {
		return
	}
	if err := n.service.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, n.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ntfy_topic and network reachability"),
			logging.String(logging.FieldImpact, "capture continues without push notification"),
		)
	}
}
