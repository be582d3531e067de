package domain

import "time"

// ─── Alert Types ────────────────────────────────────────────────────────────

// Severity ranks how far a schedule strays from the recommendation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (0) to critical (3); unknown values rank -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// Severities lists every level, lowest first.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// AlertStatus is the lifecycle state of an alert.
// pending → acknowledged → resolved; resolved is terminal.
type AlertStatus string

const (
	AlertPending      AlertStatus = "pending"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert flags one hour of a published schedule whose staffing diverges
// from the recommendation. Unique on (ScheduleID, Date, Hour).
type Alert struct {
	ID                   string      `json:"id"`
	ScheduleID           string      `json:"schedule_id"`
	Date                 time.Time   `json:"date"`
	Hour                 int         `json:"hour"`
	RecommendedStaff     int         `json:"recommended_staff"`
	ScheduledStaff       int         `json:"scheduled_staff"`
	Difference           int         `json:"difference"`            // scheduled - recommended
	DifferencePercentage float64     `json:"difference_percentage"` // signed, relative to recommended
	Severity             Severity    `json:"severity"`
	Status               AlertStatus `json:"status"`
	AcknowledgedBy       string      `json:"acknowledged_by,omitempty"`
	AcknowledgedAt       *time.Time  `json:"acknowledged_at,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
}

// Overstaffed reports whether the schedule commits more staff than recommended.
func (a Alert) Overstaffed() bool { return a.Difference > 0 }

// AlertFilter narrows an active-alert listing. Empty fields match everything.
type AlertFilter struct {
	ScheduleID string
	Severity   Severity
}

// AlertSummary counts pending alerts by severity.
type AlertSummary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Add counts one pending alert of the given severity.
func (s *AlertSummary) Add(sev Severity, n int) {
	switch sev {
	case SeverityCritical:
		s.Critical += n
	case SeverityHigh:
		s.High += n
	case SeverityMedium:
		s.Medium += n
	case SeverityLow:
		s.Low += n
	default:
		return
	}
	s.Total += n
}

// CheckResult is returned by a schedule check.
type CheckResult struct {
	ScheduleID    string `json:"schedule_id"`
	AlertsCreated int    `json:"alerts_created"`
}
