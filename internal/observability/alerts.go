package observability

import (
	"fmt"

	"github.com/spec-kit/dispatch-service/internal/config"
)

// AlertSeverity ranks an alert.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is one threshold breach.
type Alert struct {
	Code      string        `json:"code"`
	Severity  AlertSeverity `json:"severity"`
	Message   string        `json:"message"`
	Value     float64       `json:"value"`
	Threshold float64       `json:"threshold"`
}

// AlertSignals are inputs that do not come from the counters.
type AlertSignals struct {
	SLABreaches int
}

// EvaluateAlerts checks the snapshot and signals against thresholds. A zero threshold disables its check.
// Alerts come back in a fixed order.
func EvaluateAlerts(snap Snapshot, signals AlertSignals, cfg config.AlertsConfig) []Alert {
	alerts := []Alert{}

	requests := snap.TotalRequests()
	if cfg.ErrorRatePercent > 0 && requests > 0 && requests >= int64(cfg.MinRequests) {
		rate := float64(snap.TotalErrors()) * 100 / float64(requests)
		if rate >= float64(cfg.ErrorRatePercent) {
			alerts = append(alerts, Alert{
				Code:      "ERROR_RATE_HIGH",
				Severity:  SeverityCritical,
				Message:   fmt.Sprintf("%.1f%% of requests failed", rate),
				Value:     rate,
				Threshold: float64(cfg.ErrorRatePercent),
			})
		}
	}

	if cfg.IdempotencyConflicts > 0 && snap.IdempotencyConflictTotal >= int64(cfg.IdempotencyConflicts) {
		alerts = append(alerts, Alert{
			Code:      "IDEMPOTENCY_CONFLICTS",
			Severity:  SeverityWarning,
			Message:   "idempotency keys are being reused with different payloads",
			Value:     float64(snap.IdempotencyConflictTotal),
			Threshold: float64(cfg.IdempotencyConflicts),
		})
	}

	if cfg.DispatchWithoutSnapshotMax > 0 && snap.Dispatch.WithoutSnapshot >= int64(cfg.DispatchWithoutSnapshotMax) {
		alerts = append(alerts, Alert{
			Code:      "DISPATCH_WITHOUT_RECOMMENDATION",
			Severity:  SeverityWarning,
			Message:   "technicians were dispatched without a recommendation snapshot",
			Value:     float64(snap.Dispatch.WithoutSnapshot),
			Threshold: float64(cfg.DispatchWithoutSnapshotMax),
		})
	}

	if cfg.SLABreaches > 0 && signals.SLABreaches >= cfg.SLABreaches {
		alerts = append(alerts, Alert{
			Code:      "SLA_BREACH",
			Severity:  SeverityCritical,
			Message:   fmt.Sprintf("%d active tickets are past their SLA deadline", signals.SLABreaches),
			Value:     float64(signals.SLABreaches),
			Threshold: float64(cfg.SLABreaches),
		})
	}

	return alerts
}
