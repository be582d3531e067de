package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffcast/staffcast/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func day(s string) time.Time {
	t, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "state.db")); os.IsNotExist(err) {
		t.Error("state.db should exist")
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err, "migrations must be idempotent")
	defer db.Close()
	require.NoError(t, db.Ping(context.Background()))
}

// ─── Observations ───────────────────────────────────────────────────────────

func TestUpsertObservation_Correction(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	m := domain.ObservedMetric{
		Date:                day("2026-03-02"),
		Hour:                12,
		ScheduledStaffCount: 3,
		SalesCount:          20,
		SalesAmount:         decimal.RequireFromString("10000.50"),
	}
	require.NoError(t, db.UpsertObservation(ctx, m))

	present := 2
	m.SalesCount = 25
	m.PresentStaffCount = &present
	require.NoError(t, db.UpsertObservation(ctx, m))

	got, err := db.ObservationAt(ctx, day("2026-03-02"), 12)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 25, got.SalesCount)
	assert.Equal(t, 0, got.DayOfWeek, "2026-03-02 is a Monday")
	assert.True(t, got.SalesAmount.Equal(decimal.RequireFromString("10000.50")))
	require.NotNil(t, got.PresentStaffCount)
	assert.Equal(t, 2, got.ActualStaff())

	all, err := db.ObservationsBetween(ctx, day("2026-03-01"), day("2026-03-31"))
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestObservationAt_Missing(t *testing.T) {
	db := newTestDB(t)
	got, err := db.ObservationAt(context.Background(), day("2026-03-02"), 9)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestObservationsBetween_CancelledContext(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for h := 8; h <= 20; h++ {
		require.NoError(t, db.UpsertObservation(ctx, domain.ObservedMetric{
			Date: day("2026-03-02"), Hour: h, SalesAmount: decimal.Zero,
		}))
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err := db.ObservationsBetween(cctx, day("2026-03-01"), day("2026-03-31"))
	assert.ErrorIs(t, err, context.Canceled)
}

// ─── Predictions ────────────────────────────────────────────────────────────

func TestUpsertPredictions_OverwritesInPlace(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	batch := func(version string, count int) []domain.Prediction {
		var out []domain.Prediction
		for h := 8; h <= 20; h++ {
			out = append(out, domain.Prediction{
				Date:                  day("2026-03-10"),
				Hour:                  h,
				PredictedSalesCount:   count,
				PredictedSalesAmount:  decimal.NewFromInt(int64(count * 500)),
				RecommendedStaffCount: 2,
				ConfidenceScore:       0.8,
				ModelVersion:          version,
			})
		}
		return out
	}

	require.NoError(t, db.UpsertPredictions(ctx, batch("v1", 10)))
	require.NoError(t, db.UpsertPredictions(ctx, batch("v2", 12)))

	n, err := db.CountPredictions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13, n)

	p, err := db.PredictionAt(ctx, day("2026-03-10"), 8)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "v2", p.ModelVersion)
	assert.Equal(t, 12, p.PredictedSalesCount)
	assert.True(t, p.PredictedSalesAmount.Equal(decimal.NewFromInt(6000)))
}

func TestUpsertPredictions_RollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.UpsertPredictions(ctx, []domain.Prediction{{Date: day("2026-03-10"), Hour: 8}})
	require.Error(t, err)

	n, err := db.CountPredictions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ─── Model Versions ─────────────────────────────────────────────────────────

func testVersion(name string, at time.Time) domain.ModelVersion {
	return domain.ModelVersion{
		ID:              name + "-id",
		Version:         name,
		TrainedAt:       at,
		TrainingRecords: 120,
		TrainScore:      0.9,
		TestScore:       0.7,
		Features:        []string{"hour", "day_of_week"},
		Hyperparameters: map[string]any{"n_estimators": 100},
		ArtifactDigest:  "abc",
	}
}

func TestActivateModelVersion_SingleActive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"v1", "v2", "v3"} {
		require.NoError(t, db.ActivateModelVersion(ctx, testVersion(name, base.Add(time.Duration(i)*time.Hour))))
	}

	n, err := db.CountActiveModelVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := db.ActiveModelVersion(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "v3", active.Version)
	assert.Equal(t, []string{"hour", "day_of_week"}, active.Features)
	assert.EqualValues(t, 100, active.Hyperparameters["n_estimators"])

	all, err := db.ListModelVersions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "v3", all[0].Version)
	assert.False(t, all[1].IsActive)
}

func TestActivateModelVersion_DuplicateKeepsPreviousActive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.ActivateModelVersion(ctx, testVersion("v1", now)))
	dup := testVersion("v1", now)
	dup.ID = "other-id"
	require.Error(t, db.ActivateModelVersion(ctx, dup))

	active, err := db.ActiveModelVersion(ctx)
	require.NoError(t, err)
	require.NotNil(t, active, "failed activation must roll back the deactivate")
	assert.Equal(t, "v1-id", active.ID)
}

func TestOneActiveIndex_RejectsSecondActiveRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.ActivateModelVersion(ctx, testVersion("v1", time.Now())))

	_, err := db.db.ExecContext(ctx,
		`INSERT INTO model_versions (id, version, trained_at, training_records, train_score,
			test_score, features, hyperparameters, artifact_digest, is_active)
		 VALUES ('x', 'v2', 0, 0, 0, 0, '[]', '{}', '', 1)`)
	assert.Error(t, err)
}

func TestActiveModelVersion_None(t *testing.T) {
	db := newTestDB(t)
	v, err := db.ActiveModelVersion(context.Background())
	require.NoError(t, err)
	assert.Nil(t, v)
}

// ─── Calendar ───────────────────────────────────────────────────────────────

func TestCalendarException_CRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e := domain.CalendarException{
		ID: "h1", Date: day("2026-12-25"), Name: "Navidad",
		Category: domain.HolidayNational, ImpactMultiplier: 0.3, CreatedAt: time.Now(),
	}
	require.NoError(t, db.InsertCalendarException(ctx, e))

	e.ID = "h2"
	err := db.InsertCalendarException(ctx, e)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	got, err := db.CalendarExceptionOn(ctx, day("2026-12-25"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "h1", got.ID)
	assert.Equal(t, domain.HolidayNational, got.Category)

	list, err := db.CalendarExceptionsBetween(ctx, day("2026-01-01"), day("2026-12-31"))
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, db.DeleteCalendarException(ctx, "h1"))
	assert.ErrorIs(t, db.DeleteCalendarException(ctx, "h1"), domain.ErrNotFound)
}

// ─── Alerts ─────────────────────────────────────────────────────────────────

func TestInsertAlert_ConflictIsNoOp(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := domain.Alert{
		ID: "a1", ScheduleID: "s1", Date: day("2026-03-10"), Hour: 12,
		RecommendedStaff: 5, ScheduledStaff: 3, Difference: -2, DifferencePercentage: -40,
		Severity: domain.SeverityHigh, Status: domain.AlertPending, CreatedAt: time.Now(),
	}
	ok, err := db.InsertAlert(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)

	a.ID = "a2"
	ok, err = db.InsertAlert(ctx, a)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := db.GetAlert(ctx, "a2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertAlert_ConcurrentSameKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := db.InsertAlert(ctx, domain.Alert{
				ID: string(rune('a' + i)), ScheduleID: "s1", Date: day("2026-03-10"), Hour: 9,
				Severity: domain.SeverityMedium, Status: domain.AlertPending, CreatedAt: time.Now(),
			})
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestPendingAlerts_OrderAndCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seed := []domain.Alert{
		{ID: "m", ScheduleID: "s1", Date: day("2026-03-10"), Hour: 9, Severity: domain.SeverityMedium},
		{ID: "c", ScheduleID: "s1", Date: day("2026-03-11"), Hour: 9, Severity: domain.SeverityCritical},
		{ID: "h", ScheduleID: "s2", Date: day("2026-03-10"), Hour: 10, Severity: domain.SeverityHigh},
		{ID: "r", ScheduleID: "s2", Date: day("2026-03-10"), Hour: 11, Severity: domain.SeverityHigh},
	}
	for _, a := range seed {
		a.Status = domain.AlertPending
		a.CreatedAt = time.Now()
		_, err := db.InsertAlert(ctx, a)
		require.NoError(t, err)
	}

	resolved := seed[3]
	resolved.Status = domain.AlertResolved
	ok, err := db.UpdateAlertStatus(ctx, resolved, domain.AlertPending)
	require.NoError(t, err)
	require.True(t, ok)

	all, err := db.PendingAlerts(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	var ids []string
	for _, a := range all {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"c", "h", "m"}, ids)

	s1, err := db.PendingAlerts(ctx, domain.AlertFilter{ScheduleID: "s1", Severity: domain.SeverityMedium})
	require.NoError(t, err)
	require.Len(t, s1, 1)
	assert.Equal(t, "m", s1[0].ID)

	counts, err := db.PendingAlertCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.Severity]int{
		domain.SeverityCritical: 1, domain.SeverityHigh: 1, domain.SeverityMedium: 1,
	}, counts)
}

func TestUpdateAlertStatus_StaleFromStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := domain.Alert{ID: "a", ScheduleID: "s", Date: day("2026-03-10"), Hour: 9,
		Severity: domain.SeverityHigh, Status: domain.AlertPending, CreatedAt: time.Now()}
	_, err := db.InsertAlert(ctx, a)
	require.NoError(t, err)

	a.Status = domain.AlertResolved
	ok, err := db.UpdateAlertStatus(ctx, a, domain.AlertAcknowledged)
	require.NoError(t, err)
	assert.False(t, ok)
}

// ─── Schedules ──────────────────────────────────────────────────────────────

func TestSaveSchedule_ReplacesShifts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := domain.Schedule{ID: "s1", Name: "Week 11", StartDate: day("2026-03-09"),
		EndDate: day("2026-03-15"), Status: "published"}

	require.NoError(t, db.SaveSchedule(ctx, s, []domain.Shift{
		{ID: "x1", EmployeeID: "e1", ShiftDate: day("2026-03-09"), StartTime: 480, EndTime: 960},
		{ID: "x2", EmployeeID: "e2", ShiftDate: day("2026-03-09"), StartTime: 720, EndTime: 1200},
	}))
	require.NoError(t, db.SaveSchedule(ctx, s, []domain.Shift{
		{ID: "x3", EmployeeID: "e1", ShiftDate: day("2026-03-10"), StartTime: 480, EndTime: 960},
	}))

	shifts, err := db.ShiftsForSchedule(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, "x3", shifts[0].ID)

	got, err := db.GetSchedule(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, day("2026-03-15"), got.EndDate)

	pub, err := db.SchedulesWithStatus(ctx, "published", day("2026-03-12"))
	require.NoError(t, err)
	assert.Len(t, pub, 1)
	pub, err = db.SchedulesWithStatus(ctx, "published", day("2026-03-16"))
	require.NoError(t, err)
	assert.Empty(t, pub)
}

// ─── Leases ─────────────────────────────────────────────────────────────────

func TestAcquireLease(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }

	ok, err := db.AcquireLease(ctx, "training", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.AcquireLease(ctx, "training", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "unexpired lease held by another owner")

	now = now.Add(2 * time.Minute)
	ok, err = db.AcquireLease(ctx, "training", "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease can be taken over")

	require.NoError(t, db.ReleaseLease(ctx, "training", "a"))
	ok, err = db.AcquireLease(ctx, "training", "c", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "release by a stale owner must not drop b's lease")

	require.NoError(t, db.ReleaseLease(ctx, "training", "b"))
	ok, err = db.AcquireLease(ctx, "training", "c", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireLease_RenewBySameOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ok, err := db.AcquireLease(ctx, "job:daily-alerts", "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = db.AcquireLease(ctx, "job:daily-alerts", "a", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "holder may extend its own lease")
}

func TestAcquireLease_ContendingHandles(t *testing.T) {
	dir := t.TempDir()
	handles := make([]*DB, 2)
	for i := range handles {
		db, err := Open(dir)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		handles[i] = db
	}

	const workers = 8
	var wg sync.WaitGroup
	var won atomic.Int32
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := handles[i%2].AcquireLease(context.Background(), "model_training", fmt.Sprintf("owner-%d", i), time.Minute)
			if err != nil {
				errs <- err
				return
			}
			if ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err, "contention must not surface as a storage error")
	}
	assert.Equal(t, int32(1), won.Load())
}

// ─── Notifications ──────────────────────────────────────────────────────────

func TestNotifications(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.InsertNotification(ctx, domain.Notification{
		ID: "n1", Kind: domain.NotifyCriticalAlerts, Title: "t", Body: "b",
		ScheduleID: "s1", CreatedAt: time.Now(),
	}))
	list, err := db.ListNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ScheduleID)
	assert.False(t, list[0].Shown)

	require.NoError(t, db.MarkNotificationShown(ctx, "n1"))
	err = db.MarkNotificationShown(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
