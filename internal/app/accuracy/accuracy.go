// Package accuracy compares persisted predictions with observed outcomes
// and decides when the demand model has drifted enough to retrain.
package accuracy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/staffcast/staffcast/internal/domain"
	"github.com/staffcast/staffcast/internal/infra/metrics"
)

// Store is the persistence the tracker needs.
type Store interface {
	PredictionsBetween(ctx context.Context, start, end time.Time) ([]domain.Prediction, error)
	ObservationsBetween(ctx context.Context, start, end time.Time) ([]domain.ObservedMetric, error)
	UpsertAccuracy(ctx context.Context, recs []domain.AccuracyRecord) error
	AccuracyBetween(ctx context.Context, start, end time.Time) ([]domain.AccuracyRecord, error)
}

// Config controls accuracy windows and the retrain trigger.
type Config struct {
	RecentDays            int
	HistoricalDays        int
	RetrainDegradationPct float64
	Tolerance             int // sales within ±Tolerance count as accurate
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		RecentDays:            7,
		HistoricalDays:        23,
		RetrainDegradationPct: 20,
		Tolerance:             2,
	}
}

// Tracker records prediction accuracy and aggregates it.
type Tracker struct {
	store Store
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time
}

// NewTracker creates a tracker.
func NewTracker(store Store, cfg Config, log zerolog.Logger) *Tracker {
	return &Tracker{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "accuracy").Logger(),
		now:   time.Now,
	}
}

// ─── Recording ──────────────────────────────────────────────────────────────

// UpdateForDate joins the date's predictions with its observed metrics and
// upserts one accuracy record per hour that has both. Hours without an
// observation are skipped. Returns the number of records written.
func (t *Tracker) UpdateForDate(ctx context.Context, date time.Time) (int, error) {
	date = domain.Day(date)
	preds, err := t.store.PredictionsBetween(ctx, date, date)
	if err != nil {
		return 0, fmt.Errorf("load predictions: %w", err)
	}
	if len(preds) == 0 {
		return 0, nil
	}
	obs, err := t.store.ObservationsBetween(ctx, date, date)
	if err != nil {
		return 0, fmt.Errorf("load observations: %w", err)
	}
	byHour := make(map[int]domain.ObservedMetric, len(obs))
	for _, o := range obs {
		byHour[o.Hour] = o
	}

	var recs []domain.AccuracyRecord
	for _, p := range preds {
		o, ok := byHour[p.Hour]
		if !ok {
			continue
		}
		recs = append(recs, NewRecord(p, o))
	}
	if err := t.store.UpsertAccuracy(ctx, recs); err != nil {
		return 0, fmt.Errorf("save accuracy: %w", err)
	}
	metrics.AccuracyRecords.Add(float64(len(recs)))

	t.log.Info().
		Str("date", domain.FormatDate(date)).
		Int("records", len(recs)).
		Int("predictions", len(preds)).
		Msg("accuracy updated")
	return len(recs), nil
}

// NewRecord joins a prediction with its observed outcome.
func NewRecord(p domain.Prediction, o domain.ObservedMetric) domain.AccuracyRecord {
	actualStaff := o.ActualStaff()
	return domain.AccuracyRecord{
		Date:                  p.Date,
		Hour:                  p.Hour,
		PredictedSalesCount:   p.PredictedSalesCount,
		PredictedSalesAmount:  p.PredictedSalesAmount,
		RecommendedStaffCount: p.RecommendedStaffCount,
		ActualSalesCount:      o.SalesCount,
		ActualSalesAmount:     o.SalesAmount,
		ActualStaffCount:      actualStaff,
		SalesCountError:       RelativeError(float64(o.SalesCount), float64(p.PredictedSalesCount)),
		SalesAmountError:      AmountError(o.SalesAmount, p.PredictedSalesAmount),
		StaffCountError:       RelativeError(float64(actualStaff), float64(p.RecommendedStaffCount)),
		ModelVersion:          p.ModelVersion,
	}
}

// RelativeError is |actual − predicted| / max(actual, 1).
func RelativeError(actual, predicted float64) float64 {
	return math.Abs(actual-predicted) / math.Max(actual, 1)
}

// AmountError is RelativeError over decimal amounts.
func AmountError(actual, predicted decimal.Decimal) float64 {
	den := decimal.Max(actual, decimal.NewFromInt(1))
	f, _ := actual.Sub(predicted).Abs().Div(den).Float64()
	return f
}

// ─── Aggregation ────────────────────────────────────────────────────────────

// Metrics aggregates accuracy records in [start, end]. ErrNoData when the
// range holds no records.
func (t *Tracker) Metrics(ctx context.Context, start, end time.Time) (*domain.AccuracyMetrics, error) {
	start, end = domain.Day(start), domain.Day(end)
	if end.Before(start) {
		return nil, &domain.RangeError{Reason: "end_date must be on or after start_date"}
	}
	recs, err := t.store.AccuracyBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load accuracy: %w", err)
	}
	if len(recs) == 0 {
		return nil, domain.ErrNoData
	}

	var absErr, countErr, amountErr, staffErr float64
	within := 0
	for _, r := range recs {
		diff := r.ActualSalesCount - r.PredictedSalesCount
		if diff < 0 {
			diff = -diff
		}
		absErr += float64(diff)
		if diff <= t.cfg.Tolerance {
			within++
		}
		countErr += r.SalesCountError
		amountErr += r.SalesAmountError
		staffErr += r.StaffCountError
	}
	n := float64(len(recs))
	return &domain.AccuracyMetrics{
		Start:           domain.FormatDate(start),
		End:             domain.FormatDate(end),
		TotalRecords:    len(recs),
		SalesCountMAE:   round2(absErr / n),
		SalesCountMAPE:  round2(countErr / n * 100),
		WithinTolerance: round2(float64(within) / n),
		SalesAmountMAPE: round2(amountErr / n * 100),
		StaffCountMAPE:  round2(staffErr / n * 100),
	}, nil
}

// ByHour averages sales-count error per hour of day over [start, end].
func (t *Tracker) ByHour(ctx context.Context, start, end time.Time) ([]domain.ErrorBucket, error) {
	return t.buckets(ctx, start, end, func(r domain.AccuracyRecord) int { return r.Hour })
}

// ByDayOfWeek averages sales-count error per weekday (0=Monday) over
// [start, end].
func (t *Tracker) ByDayOfWeek(ctx context.Context, start, end time.Time) ([]domain.ErrorBucket, error) {
	return t.buckets(ctx, start, end, func(r domain.AccuracyRecord) int { return domain.DayOfWeek(r.Date) })
}

func (t *Tracker) buckets(ctx context.Context, start, end time.Time, key func(domain.AccuracyRecord) int) ([]domain.ErrorBucket, error) {
	recs, err := t.store.AccuracyBetween(ctx, domain.Day(start), domain.Day(end))
	if err != nil {
		return nil, fmt.Errorf("load accuracy: %w", err)
	}
	if len(recs) == 0 {
		return nil, domain.ErrNoData
	}

	sums := map[int]float64{}
	counts := map[int]int{}
	for _, r := range recs {
		k := key(r)
		sums[k] += r.SalesCountError
		counts[k]++
	}
	out := make([]domain.ErrorBucket, 0, len(counts))
	for k, n := range counts {
		out = append(out, domain.ErrorBucket{
			Key:         k,
			AvgErrorPct: round2(sums[k] / float64(n) * 100),
			SampleSize:  n,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ─── Retrain Decision ───────────────────────────────────────────────────────

// ShouldRetrain compares the recent window's MAPE with the historical
// window just before it. Missing data in either window yields
// ShouldRetrain=false with a reason, never an error.
func (t *Tracker) ShouldRetrain(ctx context.Context) (*domain.RetrainDecision, error) {
	today := domain.Day(t.now())
	recentStart := today.AddDate(0, 0, -(t.cfg.RecentDays - 1))
	histEnd := recentStart.AddDate(0, 0, -1)
	histStart := recentStart.AddDate(0, 0, -t.cfg.HistoricalDays)

	recent, err := t.window(ctx, recentStart, today)
	if err != nil {
		return nil, err
	}
	hist, err := t.window(ctx, histStart, histEnd)
	if err != nil {
		return nil, err
	}

	d := &domain.RetrainDecision{}
	if recent != nil {
		metrics.RollingMAPE.Set(recent.SalesCountMAPE)
		d.RecentMAPE = &recent.SalesCountMAPE
	}
	if hist != nil {
		d.HistoricalMAPE = &hist.SalesCountMAPE
	}
	switch {
	case recent == nil:
		d.Reason = fmt.Sprintf("no accuracy data in the last %d days", t.cfg.RecentDays)
		return d, nil
	case hist == nil:
		d.Reason = fmt.Sprintf("no accuracy data in the %d days before the recent window", t.cfg.HistoricalDays)
		return d, nil
	}

	d.DegradationPercentage = Degradation(recent.SalesCountMAPE, hist.SalesCountMAPE)
	d.ShouldRetrain = d.DegradationPercentage > t.cfg.RetrainDegradationPct
	if d.ShouldRetrain {
		d.Reason = "model accuracy has degraded significantly, retraining recommended"
	} else {
		d.Reason = "model accuracy is stable"
	}

	t.log.Info().
		Float64("recent_mape", recent.SalesCountMAPE).
		Float64("historical_mape", hist.SalesCountMAPE).
		Float64("degradation_pct", d.DegradationPercentage).
		Bool("retrain", d.ShouldRetrain).
		Msg("retrain check")
	return d, nil
}

// window returns metrics for the range, or nil when it has no records.
func (t *Tracker) window(ctx context.Context, start, end time.Time) (*domain.AccuracyMetrics, error) {
	m, err := t.Metrics(ctx, start, end)
	if errors.Is(err, domain.ErrNoData) {
		return nil, nil
	}
	return m, err
}

// Degradation is (recent − historical) / historical × 100, rounded to two
// decimals. A zero historical MAPE yields 0.
func Degradation(recent, historical float64) float64 {
	if historical <= 0 {
		return 0
	}
	return round2((recent - historical) / historical * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
