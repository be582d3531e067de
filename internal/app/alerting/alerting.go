// Package alerting compares published schedules with staffing
// recommendations and manages the resulting alerts.
package alerting

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/staffcast/staffcast/internal/domain"
	"github.com/staffcast/staffcast/internal/infra/cache"
	"github.com/staffcast/staffcast/internal/infra/metrics"
)

// StatusPublished is the schedule status swept by CheckPublished.
const StatusPublished = "published"

// Store is the persistence the alert engine needs.
type Store interface {
	GetSchedule(ctx context.Context, id string) (*domain.Schedule, error)
	SchedulesWithStatus(ctx context.Context, status string, from time.Time) ([]domain.Schedule, error)
	ShiftsForSchedule(ctx context.Context, scheduleID string) ([]domain.Shift, error)
	PredictionsBetween(ctx context.Context, start, end time.Time) ([]domain.Prediction, error)

	InsertAlert(ctx context.Context, a domain.Alert) (bool, error)
	GetAlert(ctx context.Context, id string) (*domain.Alert, error)
	UpdateAlertStatus(ctx context.Context, a domain.Alert, fromStatus domain.AlertStatus) (bool, error)
	PendingAlerts(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error)
	PendingAlertCounts(ctx context.Context) (map[domain.Severity]int, error)

	InsertNotification(ctx context.Context, n domain.Notification) error
}

// Publisher fans alert events out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// Config holds the alert thresholds, all in percent of the recommendation.
// With the defaults an alert is never "low": the creation floor equals the
// medium threshold.
type Config struct {
	CreationFloorPct float64
	MediumPct        float64
	HighPct          float64
	CriticalPct      float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		CreationFloorPct: 15,
		MediumPct:        15,
		HighPct:          30,
		CriticalPct:      50,
	}
}

// Severity grades an absolute difference percentage.
func (c Config) Severity(pct float64) domain.Severity {
	pct = math.Abs(pct)
	switch {
	case pct >= c.CriticalPct:
		return domain.SeverityCritical
	case pct >= c.HighPct:
		return domain.SeverityHigh
	case pct >= c.MediumPct:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// Engine raises and manages staffing alerts.
type Engine struct {
	store Store
	pub   Publisher
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time
}

// NewEngine creates an alert engine. A nil publisher disables event fan-out.
func NewEngine(store Store, pub Publisher, cfg Config, log zerolog.Logger) *Engine {
	if pub == nil {
		pub = cache.Disabled()
	}
	return &Engine{
		store: store,
		pub:   pub,
		cfg:   cfg,
		log:   log.With().Str("component", "alerts").Logger(),
		now:   time.Now,
	}
}

// ─── Detection ──────────────────────────────────────────────────────────────

// CheckSchedule compares every predicted hour of the schedule's span with
// the number of shifts covering it and raises an alert where they diverge
// by at least the creation floor. Hours nobody is scheduled for are
// skipped. Re-checking never duplicates an alert.
func (e *Engine) CheckSchedule(ctx context.Context, scheduleID string) (*domain.CheckResult, error) {
	sched, err := e.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, fmt.Errorf("schedule %s: %w", scheduleID, domain.ErrNotFound)
	}
	shifts, err := e.store.ShiftsForSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	preds, err := e.store.PredictionsBetween(ctx, sched.StartDate, sched.EndDate)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string][]domain.Shift)
	for _, sh := range shifts {
		k := domain.FormatDate(sh.ShiftDate)
		byDate[k] = append(byDate[k], sh)
	}

	res := &domain.CheckResult{ScheduleID: scheduleID}
	for _, p := range preds {
		scheduled := Coverage(byDate[domain.FormatDate(p.Date)], p.Hour)
		if scheduled == 0 {
			continue
		}
		a, ok := e.evaluate(scheduleID, p, scheduled)
		if !ok {
			continue
		}
		created, err := e.store.InsertAlert(ctx, a)
		if err != nil {
			return nil, err
		}
		if created {
			res.AlertsCreated++
			metrics.AlertsCreated.WithLabelValues(string(a.Severity)).Inc()
		}
	}

	e.log.Info().
		Str("schedule", scheduleID).
		Int("alerts_created", res.AlertsCreated).
		Msg("schedule checked")
	return res, nil
}

// CheckPublished checks every published schedule that has not ended yet.
func (e *Engine) CheckPublished(ctx context.Context) (int, error) {
	scheds, err := e.store.SchedulesWithStatus(ctx, StatusPublished, domain.Day(e.now()))
	if err != nil {
		return 0, err
	}
	total := 0
	for _, s := range scheds {
		res, err := e.CheckSchedule(ctx, s.ID)
		if err != nil {
			return total, fmt.Errorf("check schedule %s: %w", s.ID, err)
		}
		total += res.AlertsCreated
	}
	return total, nil
}

// evaluate builds the alert for one hour, or reports false when the gap is
// under the creation floor.
func (e *Engine) evaluate(scheduleID string, p domain.Prediction, scheduled int) (domain.Alert, bool) {
	recommended := p.RecommendedStaffCount
	diff := scheduled - recommended
	pct := 0.0
	if recommended > 0 {
		pct = float64(diff) / float64(recommended) * 100
	}
	if math.Abs(pct) < e.cfg.CreationFloorPct || diff == 0 {
		return domain.Alert{}, false
	}
	return domain.Alert{
		ID:                   uuid.New().String(),
		ScheduleID:           scheduleID,
		Date:                 p.Date,
		Hour:                 p.Hour,
		RecommendedStaff:     recommended,
		ScheduledStaff:       scheduled,
		Difference:           diff,
		DifferencePercentage: math.Round(pct*100) / 100,
		Severity:             e.cfg.Severity(pct),
		Status:               domain.AlertPending,
		CreatedAt:            e.now(),
	}, true
}

// Coverage counts the shifts overlapping the hour. Partial hours count at
// either end: a shift ending 12:30 covers hour 12, unlike a count over the
// whole hours from start hour up to end hour.
func Coverage(shifts []domain.Shift, hour int) int {
	n := 0
	for _, sh := range shifts {
		if sh.Covers(hour) {
			n++
		}
	}
	return n
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

func (e *Engine) get(ctx context.Context, id string) (*domain.Alert, error) {
	a, err := e.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("alert %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

// Acknowledge records who looked at an alert. Resolved alerts cannot be
// acknowledged.
func (e *Engine) Acknowledge(ctx context.Context, id, by string) (*domain.Alert, error) {
	a, err := e.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == domain.AlertResolved {
		return nil, fmt.Errorf("acknowledge %s: %w", id, domain.ErrAlertResolved)
	}

	from := a.Status
	at := e.now()
	a.Status = domain.AlertAcknowledged
	a.AcknowledgedBy = by
	a.AcknowledgedAt = &at
	ok, err := e.store.UpdateAlertStatus(ctx, *a, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Only resolution moves an alert past acknowledged.
		return nil, fmt.Errorf("acknowledge %s: %w", id, domain.ErrAlertResolved)
	}
	e.log.Info().Str("alert", id).Str("by", by).Msg("alert acknowledged")
	return a, nil
}

// Resolve closes an alert. Resolving a resolved alert returns it unchanged.
func (e *Engine) Resolve(ctx context.Context, id string) (*domain.Alert, error) {
	a, err := e.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == domain.AlertResolved {
		return a, nil
	}

	from := a.Status
	a.Status = domain.AlertResolved
	ok, err := e.store.UpdateAlertStatus(ctx, *a, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		return e.get(ctx, id)
	}
	e.log.Info().Str("alert", id).Msg("alert resolved")
	return a, nil
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Active lists pending alerts, most severe first.
func (e *Engine) Active(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error) {
	alerts, err := e.store.PendingAlerts(ctx, f)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	return alerts, nil
}

// Summary counts pending alerts by severity.
func (e *Engine) Summary(ctx context.Context) (domain.AlertSummary, error) {
	counts, err := e.store.PendingAlertCounts(ctx)
	if err != nil {
		return domain.AlertSummary{}, err
	}
	var s domain.AlertSummary
	for _, sev := range domain.Severities {
		s.Add(sev, counts[sev])
	}
	metrics.AlertsPending.Set(float64(s.Total))
	return s, nil
}

// ─── Notification ───────────────────────────────────────────────────────────

// NotifyCritical stores one notification per schedule that has pending
// critical alerts and publishes it on the alerts channel. Returns the
// number of notifications sent.
func (e *Engine) NotifyCritical(ctx context.Context) (int, error) {
	alerts, err := e.store.PendingAlerts(ctx, domain.AlertFilter{Severity: domain.SeverityCritical})
	if err != nil {
		return 0, err
	}
	if len(alerts) == 0 {
		return 0, nil
	}

	var order []string
	counts := make(map[string]int)
	for _, a := range alerts {
		if counts[a.ScheduleID] == 0 {
			order = append(order, a.ScheduleID)
		}
		counts[a.ScheduleID]++
	}

	sent := 0
	for _, id := range order {
		sched, err := e.store.GetSchedule(ctx, id)
		if err != nil {
			return sent, err
		}
		if sched == nil {
			e.log.Warn().Str("schedule", id).Msg("critical alerts reference a missing schedule")
			continue
		}
		n := domain.Notification{
			ID:         uuid.New().String(),
			Kind:       domain.NotifyCriticalAlerts,
			Title:      "Critical staffing alerts",
			Body:       fmt.Sprintf("%d critical alerts on schedule %q: forecast staffing differs significantly from scheduled staff.", counts[id], sched.Name),
			ScheduleID: id,
			CreatedAt:  e.now(),
		}
		if err := e.store.InsertNotification(ctx, n); err != nil {
			return sent, err
		}
		if err := e.pub.Publish(ctx, cache.ChannelAlerts, n); err != nil {
			e.log.Warn().Err(err).Str("schedule", id).Msg("publish critical alert notification")
		}
		sent++
	}

	e.log.Warn().
		Int("notifications", sent).
		Int("critical_alerts", len(alerts)).
		Msg("critical alerts notified")
	return sent, nil
}
