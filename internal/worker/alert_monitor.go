package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/service"
)

// MonitorActor is the identity the alert monitor reads with.
var MonitorActor = domain.ActorContext{
	ActorID:       "alert-monitor",
	Role:          "ops",
	Type:          domain.ActorTypeSystem,
	CorrelationID: "alert-monitor",
}

// StartAlertMonitor evaluates alerts on every tick and logs the ones that fire.
// It returns when ctx is cancelled.
func StartAlertMonitor(ctx context.Context, query *service.QueryService, interval time.Duration, logger *zap.Logger) {
	if query == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			CheckAlerts(ctx, query, logger)
		}
	}
}

// CheckAlerts runs one evaluation and returns the alerts that fired.
func CheckAlerts(ctx context.Context, query *service.QueryService, logger *zap.Logger) []observability.Alert {
	resp, err := query.Alerts(ctx, MonitorActor)
	if err != nil {
		logger.Error("alert evaluation failed", zap.Error(err))
		return nil
	}
	for _, alert := range resp.Alerts {
		logger.Warn("alert firing",
			zap.String("code", alert.Code),
			zap.String("severity", string(alert.Severity)),
			zap.String("message", alert.Message),
			zap.Float64("value", alert.Value),
			zap.Float64("threshold", alert.Threshold),
		)
	}
	return resp.Alerts
}
