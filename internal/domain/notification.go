package domain

import "time"

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationKind categorizes an operator notification.
type NotificationKind string

const (
	NotifyCriticalAlerts NotificationKind = "CRITICAL_ALERTS"
	NotifyRetrain        NotificationKind = "RETRAIN"
)

// Notification is an operator-facing message persisted for the dashboard.
type Notification struct {
	ID         string           `json:"id"`
	Kind       NotificationKind `json:"kind"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	ScheduleID string           `json:"schedule_id,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	Shown      bool             `json:"shown"`
}

// Stats is the dashboard overview.
type Stats struct {
	Model    ModelStatus      `json:"model"`
	Accuracy *AccuracyMetrics `json:"accuracy_30d,omitempty"`
	Alerts   AlertSummary     `json:"alerts"`
	Retrain  RetrainDecision  `json:"retrain"`
}
