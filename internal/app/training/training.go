// Package training fits demand models on recent history and activates
// them as the new model version.
package training

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/staffcast/staffcast/internal/app/calendar"
	"github.com/staffcast/staffcast/internal/domain"
	"github.com/staffcast/staffcast/internal/forecast"
	"github.com/staffcast/staffcast/internal/infra/metrics"
)

// LeaseName is the job lease that serializes training across processes.
const LeaseName = "model_training"

// maxVersionAttempts bounds the suffixes tried when a version id is taken.
const maxVersionAttempts = 100

// Store is the persistence the trainer needs.
type Store interface {
	ObservationsBetween(ctx context.Context, start, end time.Time) ([]domain.ObservedMetric, error)
	ActivateModelVersion(ctx context.Context, v domain.ModelVersion) error
	ModelVersionByName(ctx context.Context, version string) (*domain.ModelVersion, error)
	AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, owner string) error
}

// Artifacts stores encoded models by version.
type Artifacts interface {
	Put(version string, data []byte) (digest string, err error)
	Remove(version string) error
}

// Calendar provides holiday snapshots for feature construction.
type Calendar interface {
	Snapshot(ctx context.Context, start, end time.Time) (calendar.Snapshot, error)
}

// Config controls a training run.
type Config struct {
	WindowWeeks  int
	MinRecords   int
	TestFraction float64
	Params       forecast.Params
	Timeout      time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		WindowWeeks:  8,
		MinRecords:   50,
		TestFraction: 0.2,
		Params:       forecast.DefaultParams(),
		Timeout:      10 * time.Minute,
	}
}

// Trainer fits and activates demand models. At most one training runs at a
// time: an in-process mutex guards this process and a lease row guards the
// shared store.
type Trainer struct {
	mu        sync.Mutex
	store     Store
	artifacts Artifacts
	calendar  Calendar
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
}

// NewTrainer creates a trainer.
func NewTrainer(store Store, artifacts Artifacts, cal Calendar, cfg Config, log zerolog.Logger) *Trainer {
	return &Trainer{
		store:     store,
		artifacts: artifacts,
		calendar:  cal,
		cfg:       cfg,
		log:       log.With().Str("component", "trainer").Logger(),
		now:       time.Now,
	}
}

// Train fits a model on the last windowWeeks of observations (the configured
// window when windowWeeks <= 0) and makes it the active version.
func (t *Trainer) Train(ctx context.Context, windowWeeks int) (*domain.TrainingResult, error) {
	if windowWeeks <= 0 {
		windowWeeks = t.cfg.WindowWeeks
	}

	if !t.mu.TryLock() {
		metrics.TrainingRuns.WithLabelValues("busy").Inc()
		return nil, domain.ErrTrainingInProgress
	}
	defer t.mu.Unlock()

	owner := uuid.NewString()
	ok, err := t.store.AcquireLease(ctx, LeaseName, owner, t.cfg.Timeout+time.Minute)
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("acquire training lease: %w", err)
	}
	if !ok {
		metrics.TrainingRuns.WithLabelValues("busy").Inc()
		return nil, domain.ErrTrainingInProgress
	}
	defer func() {
		if err := t.store.ReleaseLease(context.WithoutCancel(ctx), LeaseName, owner); err != nil {
			t.log.Warn().Err(err).Msg("release training lease")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	res, err := t.train(ctx, windowWeeks)
	switch {
	case err == nil:
		metrics.TrainingRuns.WithLabelValues("ok").Inc()
	case errors.Is(err, domain.ErrInsufficientData):
		metrics.TrainingRuns.WithLabelValues("insufficient_data").Inc()
	default:
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("training exceeded %s: %w", t.cfg.Timeout, err)
		}
	}
	return res, err
}

func (t *Trainer) train(ctx context.Context, windowWeeks int) (*domain.TrainingResult, error) {
	started := t.now()
	today := domain.Day(started)
	start := today.AddDate(0, 0, -7*windowWeeks)

	rows, err := t.store.ObservationsBetween(ctx, start, today)
	if err != nil {
		return nil, fmt.Errorf("load training data: %w", err)
	}
	if len(rows) < t.cfg.MinRecords {
		return nil, &domain.InsufficientDataError{Found: len(rows), Required: t.cfg.MinRecords}
	}

	snap, err := t.calendar.Snapshot(ctx, start, today)
	if err != nil {
		return nil, err
	}
	ds, err := buildDataset(rows, snap)
	if err != nil {
		return nil, err
	}

	t.log.Info().Int("records", ds.Len()).Int("window_weeks", windowWeeks).Msg("training started")
	model, err := forecast.Fit(ctx, ds, t.cfg.TestFraction, t.cfg.Params)
	if err != nil {
		return nil, err
	}

	version, digest, err := t.storeArtifact(ctx, model, started)
	if err != nil {
		return nil, err
	}

	mv := domain.ModelVersion{
		ID:              uuid.NewString(),
		Version:         version,
		TrainedAt:       started,
		TrainingRecords: ds.Len(),
		TrainScore:      model.Scores.TrainR2,
		TestScore:       model.Scores.TestR2,
		Features:        model.Features,
		Hyperparameters: t.cfg.Params.AsMap(),
		ArtifactDigest:  digest,
		IsActive:        true,
	}
	if err := t.store.ActivateModelVersion(ctx, mv); err != nil {
		if rmErr := t.artifacts.Remove(version); rmErr != nil {
			t.log.Warn().Err(rmErr).Str("version", version).Msg("remove orphaned artifact")
		}
		return nil, fmt.Errorf("activate model version: %w", err)
	}

	elapsed := t.now().Sub(started)
	metrics.TrainingDuration.Observe(elapsed.Seconds())
	metrics.ModelScore.WithLabelValues("train").Set(model.Scores.TrainR2)
	metrics.ModelScore.WithLabelValues("test").Set(model.Scores.TestR2)
	t.log.Info().
		Str("version", version).
		Int("records", ds.Len()).
		Float64("train_r2", model.Scores.TrainR2).
		Float64("test_r2", model.Scores.TestR2).
		Dur("elapsed", elapsed).
		Msg("model activated")

	return &domain.TrainingResult{
		Version:         version,
		TrainingRecords: ds.Len(),
		TrainScore:      model.Scores.TrainR2,
		TestScore:       model.Scores.TestR2,
		TrainedAt:       started,
		Duration:        elapsed,
	}, nil
}

// storeArtifact encodes model under the first free version id for started
// and stores it. Ids already used by a version row or an artifact are
// skipped, so an existing model's artifact is never touched.
func (t *Trainer) storeArtifact(ctx context.Context, model *forecast.Model, started time.Time) (version, digest string, err error) {
	base := domain.VersionAt(started)
	for attempt := 1; attempt <= maxVersionAttempts; attempt++ {
		version = base
		if attempt > 1 {
			version = fmt.Sprintf("%s_%d", base, attempt)
		}
		existing, err := t.store.ModelVersionByName(ctx, version)
		if err != nil {
			return "", "", fmt.Errorf("look up version %s: %w", version, err)
		}
		if existing != nil {
			continue
		}

		model.Version = version
		model.TrainedAt = started.UTC()
		data, err := model.Encode()
		if err != nil {
			return "", "", fmt.Errorf("encode model: %w", err)
		}
		digest, err = t.artifacts.Put(version, data)
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("store artifact: %w", err)
		}
		return version, digest, nil
	}
	return "", "", fmt.Errorf("no free version id after %d attempts from %s", maxVersionAttempts, base)
}

func buildDataset(rows []domain.ObservedMetric, cal forecast.Calendar) (forecast.Dataset, error) {
	x := make([][]float64, 0, len(rows))
	y := make([]float64, 0, len(rows))
	for _, r := range rows {
		f, err := forecast.Features(r.Date, r.Hour, r.DayOfWeek, cal)
		if err != nil {
			return forecast.Dataset{}, fmt.Errorf("features for %s %02d: %w", domain.FormatDate(r.Date), r.Hour, err)
		}
		x = append(x, f)
		y = append(y, float64(r.SalesCount))
	}
	return forecast.NewDataset(x, y)
}
