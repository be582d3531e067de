// Package prediction scores the active demand model into per-hour staffing
// recommendations and serves them back to schedulers.
package prediction

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/staffcast/staffcast/internal/app/calendar"
	"github.com/staffcast/staffcast/internal/domain"
	"github.com/staffcast/staffcast/internal/forecast"
	"github.com/staffcast/staffcast/internal/infra/cache"
	"github.com/staffcast/staffcast/internal/infra/metrics"
)

// Store is the persistence the predictor needs.
type Store interface {
	ActiveModelVersion(ctx context.Context) (*domain.ModelVersion, error)
	ListModelVersions(ctx context.Context) ([]domain.ModelVersion, error)
	UpsertPredictions(ctx context.Context, preds []domain.Prediction) error
	PredictionsBetween(ctx context.Context, start, end time.Time) ([]domain.Prediction, error)
}

// Calendar provides holiday snapshots for feature construction.
type Calendar interface {
	Snapshot(ctx context.Context, start, end time.Time) (calendar.Snapshot, error)
}

// Cache stores recommendation reads and carries prediction events.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, prefix string) error
	Publish(ctx context.Context, channel string, message any) error
}

// Config controls prediction generation.
type Config struct {
	OpenHour      int
	CloseHour     int // inclusive
	SalesPerStaff float64
	AverageTicket decimal.Decimal
	MaxRangeDays  int
	ModelCacheTTL time.Duration
	ReadCacheTTL  time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		OpenHour:      8,
		CloseHour:     20,
		SalesPerStaff: 9,
		AverageTicket: decimal.NewFromInt(500),
		MaxRangeDays:  30,
		ModelCacheTTL: time.Hour,
		ReadCacheTTL:  5 * time.Minute,
	}
}

const recsKeyPrefix = "recs:"

// Predictor turns the active model into persisted recommendations.
type Predictor struct {
	store    Store
	calendar Calendar
	cache    Cache
	amounts  AmountEstimator
	loader   *modelLoader
	cfg      Config
	log      zerolog.Logger
}

// NewPredictor creates a predictor. A nil cache disables read caching and
// event publishing.
func NewPredictor(store Store, artifacts Artifacts, cal Calendar, c Cache, cfg Config, log zerolog.Logger) *Predictor {
	if c == nil {
		c = cache.Disabled()
	}
	return &Predictor{
		store:    store,
		calendar: cal,
		cache:    c,
		amounts:  TicketAmountEstimator{AverageTicket: cfg.AverageTicket},
		loader:   newModelLoader(artifacts, cfg.ModelCacheTTL),
		cfg:      cfg,
		log:      log.With().Str("component", "predictor").Logger(),
	}
}

// activeModel resolves and loads the active version.
func (p *Predictor) activeModel(ctx context.Context) (*domain.ModelVersion, *forecast.Model, error) {
	mv, err := p.store.ActiveModelVersion(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup active model: %w", err)
	}
	if mv == nil {
		return nil, nil, domain.ErrModelNotTrained
	}
	m, err := p.loader.load(*mv)
	if err != nil {
		return nil, nil, fmt.Errorf("load model %s: %w", mv.Version, err)
	}
	return mv, m, nil
}

// Predict scores one (date, hour) without persisting it.
func (p *Predictor) Predict(ctx context.Context, date time.Time, hour int) (*domain.Prediction, error) {
	mv, model, err := p.activeModel(ctx)
	if err != nil {
		return nil, err
	}
	date = domain.Day(date)
	snap, err := p.calendar.Snapshot(ctx, date, date)
	if err != nil {
		return nil, err
	}
	pred, err := p.score(model, snap, date, hour)
	if err != nil {
		return nil, err
	}
	pred.ModelVersion = mv.Version
	return &pred, nil
}

func (p *Predictor) score(model *forecast.Model, cal forecast.Calendar, date time.Time, hour int) (domain.Prediction, error) {
	f, err := forecast.FeaturesForDate(date, hour, cal)
	if err != nil {
		return domain.Prediction{}, err
	}
	est, err := model.Predict(f)
	if err != nil {
		return domain.Prediction{}, err
	}
	count := int(math.Round(est.SalesCount))
	return domain.Prediction{
		Date:                  date,
		Hour:                  hour,
		PredictedSalesCount:   count,
		PredictedSalesAmount:  p.amounts.Estimate(count),
		RecommendedStaffCount: StaffFor(count, p.cfg.SalesPerStaff),
		ConfidenceScore:       math.Round(est.Confidence()*100) / 100,
		ModelVersion:          model.Version,
	}, nil
}

// ValidateRange rejects end before start and spans over maxDays.
func ValidateRange(start, end time.Time, maxDays int) error {
	if end.Before(start) {
		return &domain.RangeError{Reason: "end_date must be on or after start_date"}
	}
	if maxDays > 0 && domain.DaysBetween(start, end) > maxDays {
		return &domain.RangeError{Reason: fmt.Sprintf("range exceeds %d days", maxDays)}
	}
	return nil
}

// GeneratePredictions scores every operating hour in [start, end] and
// upserts the whole batch in one transaction.
func (p *Predictor) GeneratePredictions(ctx context.Context, start, end time.Time) (*domain.GenerationResult, error) {
	start, end = domain.Day(start), domain.Day(end)
	if err := ValidateRange(start, end, p.cfg.MaxRangeDays); err != nil {
		return nil, err
	}
	mv, model, err := p.activeModel(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := p.calendar.Snapshot(ctx, start, end)
	if err != nil {
		return nil, err
	}

	var preds []domain.Prediction
	err = domain.EachDay(start, end, func(day time.Time) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for h := p.cfg.OpenHour; h <= p.cfg.CloseHour; h++ {
			pred, err := p.score(model, snap, day, h)
			if err != nil {
				return err
			}
			pred.ModelVersion = mv.Version
			preds = append(preds, pred)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("score predictions: %w", err)
	}

	if err := p.store.UpsertPredictions(ctx, preds); err != nil {
		return nil, fmt.Errorf("save predictions: %w", err)
	}
	metrics.PredictionsUpserted.Add(float64(len(preds)))

	if err := p.cache.Invalidate(ctx, recsKeyPrefix); err != nil {
		p.log.Warn().Err(err).Msg("invalidate recommendation cache")
	}
	event := map[string]any{
		"start_date":    domain.FormatDate(start),
		"end_date":      domain.FormatDate(end),
		"predictions":   len(preds),
		"model_version": mv.Version,
	}
	if err := p.cache.Publish(ctx, cache.ChannelPredictions, event); err != nil {
		p.log.Warn().Err(err).Msg("publish predictions event")
	}

	p.log.Info().
		Str("start", domain.FormatDate(start)).
		Str("end", domain.FormatDate(end)).
		Int("predictions", len(preds)).
		Str("version", mv.Version).
		Msg("predictions generated")
	return &domain.GenerationResult{PredictionsCreated: len(preds), ModelVersion: mv.Version}, nil
}

// GetRecommendations returns stored recommendations grouped by date.
func (p *Predictor) GetRecommendations(ctx context.Context, start, end time.Time) ([]domain.DailyRecommendations, error) {
	start, end = domain.Day(start), domain.Day(end)
	if err := ValidateRange(start, end, 0); err != nil {
		return nil, err
	}

	key := recsKeyPrefix + domain.FormatDate(start) + ":" + domain.FormatDate(end)
	var out []domain.DailyRecommendations
	if hit, err := p.cache.GetJSON(ctx, key, &out); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("recommendation cache read")
	} else if hit {
		return out, nil
	}

	preds, err := p.store.PredictionsBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out = groupByDate(preds)

	if err := p.cache.SetJSON(ctx, key, out, p.cfg.ReadCacheTTL); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("recommendation cache write")
	}
	return out, nil
}

func groupByDate(preds []domain.Prediction) []domain.DailyRecommendations {
	out := []domain.DailyRecommendations{}
	for _, pr := range preds {
		d := domain.FormatDate(pr.Date)
		if len(out) == 0 || out[len(out)-1].Date != d {
			out = append(out, domain.DailyRecommendations{Date: d})
		}
		last := &out[len(out)-1]
		last.Hours = append(last.Hours, pr.Recommendation())
	}
	return out
}

// Summary condenses stored recommendations per date.
func (p *Predictor) Summary(ctx context.Context, start, end time.Time) (*domain.RecommendationSummary, error) {
	start, end = domain.Day(start), domain.Day(end)
	if err := ValidateRange(start, end, 0); err != nil {
		return nil, err
	}
	preds, err := p.store.PredictionsBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(preds) == 0 {
		return &domain.RecommendationSummary{Days: []domain.DailySummary{}}, nil
	}

	versions := make([]string, 0, 1)
	for _, pr := range preds {
		versions = append(versions, pr.ModelVersion)
	}
	// Version ids sort by training time.
	slices.Sort(versions)
	versions = slices.Compact(versions)

	sum := &domain.RecommendationSummary{
		HasPredictions: true,
		ModelVersion:   versions[len(versions)-1],
		ModelVersions:  versions,
	}
	for _, day := range groupByDate(preds) {
		ds := domain.DailySummary{Date: day.Date, TotalPredictedAmount: decimal.Zero}
		staff := 0
		for _, h := range day.Hours {
			ds.TotalPredictedSales += h.PredictedSalesCount
			ds.TotalPredictedAmount = ds.TotalPredictedAmount.Add(h.PredictedSalesAmount)
			staff += h.RecommendedStaffCount
			if h.RecommendedStaffCount > ds.PeakStaffNeeded {
				ds.PeakStaffNeeded = h.RecommendedStaffCount
				ds.PeakHour = h.Hour
			}
		}
		ds.AvgStaffNeeded = math.Round(float64(staff)/float64(len(day.Hours))*10) / 10
		sum.Days = append(sum.Days, ds)
	}
	return sum, nil
}

// Status reports the active model, if any.
func (p *Predictor) Status(ctx context.Context) (domain.ModelStatus, error) {
	mv, err := p.store.ActiveModelVersion(ctx)
	if err != nil {
		return domain.ModelStatus{}, fmt.Errorf("lookup active model: %w", err)
	}
	return domain.ModelStatus{HasActiveModel: mv != nil, Active: mv}, nil
}

// Versions lists every trained version, newest first.
func (p *Predictor) Versions(ctx context.Context) ([]domain.ModelVersion, error) {
	return p.store.ListModelVersions(ctx)
}
