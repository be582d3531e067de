package alerting

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffcast/staffcast/internal/domain"
	"github.com/staffcast/staffcast/internal/infra/cache"
	"github.com/staffcast/staffcast/internal/infra/sqlite"
)

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	return nil
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *sqlite.DB, *recordingPublisher) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pub := &recordingPublisher{}
	e := NewEngine(db, pub, cfg, zerolog.Nop())
	e.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return e, db, pub
}

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// seedSchedule stores a one-day schedule with staff shifts covering
// 10:00-14:00 and a prediction of recommended staff at noon.
func seedSchedule(t *testing.T, db *sqlite.DB, id, date string, recommended, staff int) {
	t.Helper()
	ctx := context.Background()
	d := day(date)

	var shifts []domain.Shift
	for i := 0; i < staff; i++ {
		shifts = append(shifts, domain.Shift{
			ID:         fmt.Sprintf("%s-shift-%d", id, i),
			EmployeeID: fmt.Sprintf("emp-%d", i),
			ShiftDate:  d,
			StartTime:  10 * 60,
			EndTime:    14 * 60,
		})
	}
	require.NoError(t, db.SaveSchedule(ctx, domain.Schedule{
		ID: id, Name: "Week " + id, StartDate: d, EndDate: d, Status: StatusPublished,
	}, shifts))
	require.NoError(t, db.UpsertPredictions(ctx, []domain.Prediction{{
		Date: d, Hour: 12, PredictedSalesCount: recommended * 9,
		PredictedSalesAmount: decimal.NewFromInt(int64(recommended * 4500)),
		RecommendedStaffCount: recommended, ConfidenceScore: 0.8, ModelVersion: "v1",
	}}))
}

// ─── Severity ───────────────────────────────────────────────────────────────

func TestConfig_Severity(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		pct  float64
		want domain.Severity
	}{
		{100, domain.SeverityCritical},
		{-50, domain.SeverityCritical},
		{-40, domain.SeverityHigh},
		{30, domain.SeverityHigh},
		{15, domain.SeverityMedium},
		{-29.9, domain.SeverityMedium},
		{14.9, domain.SeverityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.Severity(tt.pct), "pct=%v", tt.pct)
	}
}

func TestCoverage_Overlap(t *testing.T) {
	shifts := []domain.Shift{
		{StartTime: 9 * 60, EndTime: 13 * 60},     // 09:00-13:00
		{StartTime: 12*60 + 30, EndTime: 17 * 60}, // 12:30-17:00
		{StartTime: 13 * 60, EndTime: 18 * 60},    // 13:00-18:00
		{StartTime: 20 * 60, EndTime: 20 * 60},    // empty
	}
	assert.Equal(t, 1, Coverage(shifts, 9))
	assert.Equal(t, 2, Coverage(shifts, 12), "partial hour counts")
	assert.Equal(t, 2, Coverage(shifts, 13), "shift ending at 13:00 does not cover 13")
	assert.Equal(t, 0, Coverage(shifts, 20))

	early := []domain.Shift{{StartTime: 8 * 60, EndTime: 12*60 + 30}} // 08:00-12:30
	assert.Equal(t, 1, Coverage(early, 12), "partial last hour counts")
	assert.Equal(t, 0, Coverage(early, 13))
}

// ─── CheckSchedule ──────────────────────────────────────────────────────────

func TestCheckSchedule_Understaffed(t *testing.T) {
	e, db, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()
	seedSchedule(t, db, "s1", "2026-03-16", 5, 3)

	res, err := e.CheckSchedule(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.AlertsCreated)

	alerts, err := e.Active(ctx, domain.AlertFilter{ScheduleID: "s1"})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, 12, a.Hour)
	assert.Equal(t, 5, a.RecommendedStaff)
	assert.Equal(t, 3, a.ScheduledStaff)
	assert.Equal(t, -2, a.Difference)
	assert.Equal(t, -40.0, a.DifferencePercentage)
	assert.Equal(t, domain.SeverityHigh, a.Severity)
	assert.Equal(t, domain.AlertPending, a.Status)
	assert.False(t, a.Overstaffed())
}

func TestCheckSchedule_WithinFloor(t *testing.T) {
	e, db, _ := newTestEngine(t, DefaultConfig())
	seedSchedule(t, db, "s1", "2026-03-16", 10, 9)

	res, err := e.CheckSchedule(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, res.AlertsCreated)
}

func TestCheckSchedule_LowOnlyBelowDefaultFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CreationFloorPct = 5
	e, db, _ := newTestEngine(t, cfg)
	ctx := context.Background()
	seedSchedule(t, db, "s1", "2026-03-16", 10, 9)

	res, err := e.CheckSchedule(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 1, res.AlertsCreated)

	alerts, err := e.Active(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityLow, alerts[0].Severity)
}

func TestCheckSchedule_RecheckIsNoop(t *testing.T) {
	e, db, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()
	seedSchedule(t, db, "s1", "2026-03-16", 5, 3)

	_, err := e.CheckSchedule(ctx, "s1")
	require.NoError(t, err)
	res, err := e.CheckSchedule(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, res.AlertsCreated)

	s, err := e.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Total)
}

func TestCheckSchedule_UnstaffedHourSkipped(t *testing.T) {
	e, db, _ := newTestEngine(t, DefaultConfig())
	seedSchedule(t, db, "s1", "2026-03-16", 5, 0)

	res, err := e.CheckSchedule(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, res.AlertsCreated)
}

func TestCheckSchedule_NotFound(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultConfig())
	_, err := e.CheckSchedule(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckPublished(t *testing.T) {
	e, db, _ := newTestEngine(t, DefaultConfig())
	seedSchedule(t, db, "s1", "2026-03-16", 5, 3)
	seedSchedule(t, db, "s2", "2026-03-17", 2, 4)

	n, err := e.CheckPublished(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	e, db, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()
	seedSchedule(t, db, "s1", "2026-03-16", 5, 3)
	_, err := e.CheckSchedule(ctx, "s1")
	require.NoError(t, err)
	alerts, err := e.Active(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	id := alerts[0].ID

	a, err := e.Acknowledge(ctx, id, "manager-7")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertAcknowledged, a.Status)
	assert.Equal(t, "manager-7", a.AcknowledgedBy)
	require.NotNil(t, a.AcknowledgedAt)

	stored, err := db.GetAlert(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertAcknowledged, stored.Status)
	assert.Equal(t, "manager-7", stored.AcknowledgedBy)

	active, err := e.Active(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, active, "acknowledged alerts are no longer pending")

	a, err = e.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertResolved, a.Status)

	_, err = e.Acknowledge(ctx, id, "manager-8")
	assert.ErrorIs(t, err, domain.ErrAlertResolved)

	a, err = e.Resolve(ctx, id)
	require.NoError(t, err, "resolve is idempotent")
	assert.Equal(t, domain.AlertResolved, a.Status)
	assert.Equal(t, "manager-7", a.AcknowledgedBy)
}

func TestResolve_FromPending(t *testing.T) {
	e, db, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()
	seedSchedule(t, db, "s1", "2026-03-16", 5, 3)
	_, err := e.CheckSchedule(ctx, "s1")
	require.NoError(t, err)
	alerts, err := e.Active(ctx, domain.AlertFilter{})
	require.NoError(t, err)

	a, err := e.Resolve(ctx, alerts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertResolved, a.Status)
}

func TestLifecycle_UnknownAlert(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	_, err := e.Acknowledge(ctx, "nope", "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.Resolve(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ─── Summary & Notification ─────────────────────────────────────────────────

func TestSummaryAndOrdering(t *testing.T) {
	e, db, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()
	seedSchedule(t, db, "s1", "2026-03-16", 5, 3) // high
	_, err := e.CheckSchedule(ctx, "s1")
	require.NoError(t, err)

	// A second date on another schedule, overstaffed by 100%.
	d := day("2026-03-17")
	require.NoError(t, db.SaveSchedule(ctx, domain.Schedule{ID: "s2", Name: "Week s2", StartDate: d, EndDate: d, Status: StatusPublished},
		[]domain.Shift{
			{ID: "a", EmployeeID: "e1", ShiftDate: d, StartTime: 8 * 60, EndTime: 16 * 60},
			{ID: "b", EmployeeID: "e2", ShiftDate: d, StartTime: 8 * 60, EndTime: 16 * 60},
		}))
	require.NoError(t, db.UpsertPredictions(ctx, []domain.Prediction{{
		Date: d, Hour: 9, PredictedSalesCount: 5, PredictedSalesAmount: decimal.NewFromInt(2500),
		RecommendedStaffCount: 1, ModelVersion: "v1",
	}}))
	_, err = e.CheckSchedule(ctx, "s2")
	require.NoError(t, err)

	s, err := e.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertSummary{Total: 2, Critical: 1, High: 1}, s)

	alerts, err := e.Active(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, domain.SeverityCritical, alerts[0].Severity)
	assert.True(t, alerts[0].Overstaffed())

	high, err := e.Active(ctx, domain.AlertFilter{Severity: domain.SeverityHigh})
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "s1", high[0].ScheduleID)
}

func TestNotifyCritical(t *testing.T) {
	e, db, pub := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	n, err := e.NotifyCritical(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	seedSchedule(t, db, "s1", "2026-03-16", 2, 4) // +100%
	seedSchedule(t, db, "s2", "2026-03-17", 5, 3) // high only
	_, err = e.CheckPublished(ctx)
	require.NoError(t, err)

	n, err = e.NotifyCritical(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	notes, err := db.ListNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyCriticalAlerts, notes[0].Kind)
	assert.Equal(t, "s1", notes[0].ScheduleID)
	assert.Contains(t, notes[0].Body, "Week s1")
	assert.Equal(t, []string{cache.ChannelAlerts}, pub.channels)
}
