// Package jobs runs the periodic maintenance work: accuracy updates,
// retrain checks, prediction refreshes and alert sweeps. Jobs are invoked
// externally (cron calls `staffcast job <name>`); a lease per job keeps
// overlapping invocations from running the same job twice.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/staffcast/staffcast/internal/domain"
	"github.com/staffcast/staffcast/internal/infra/metrics"
)

// Job names.
const (
	DailyAccuracy      = "daily-accuracy"
	WeeklyRetrainCheck = "weekly-retrain-check"
	WeeklyPredictions  = "weekly-predictions"
	DailyAlerts        = "daily-alerts"
	MonthlyRetrain     = "monthly-retrain"
)

// ErrUnknownJob is returned for a name no job is registered under.
var ErrUnknownJob = errors.New("unknown job")

// ErrJobRunning is returned when another process holds the job's lease.
var ErrJobRunning = errors.New("job is already running")

// ─── Collaborators ──────────────────────────────────────────────────────────

// Trainer fits and activates a model.
type Trainer interface {
	Train(ctx context.Context, windowWeeks int) (*domain.TrainingResult, error)
}

// Predictor refreshes stored predictions.
type Predictor interface {
	GeneratePredictions(ctx context.Context, start, end time.Time) (*domain.GenerationResult, error)
}

// Tracker records and judges accuracy.
type Tracker interface {
	UpdateForDate(ctx context.Context, date time.Time) (int, error)
	ShouldRetrain(ctx context.Context) (*domain.RetrainDecision, error)
}

// Alerts sweeps schedules and notifies on critical alerts.
type Alerts interface {
	CheckPublished(ctx context.Context) (int, error)
	NotifyCritical(ctx context.Context) (int, error)
}

// Store holds job leases and operator notifications.
type Store interface {
	AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, owner string) error
	InsertNotification(ctx context.Context, n domain.Notification) error
}

// ─── Configuration ──────────────────────────────────────────────────────────

// Config controls job behavior.
type Config struct {
	AutoRetrain        bool          // retrain when the weekly check recommends it
	RetrainWindowWeeks int           // training window of the monthly retrain
	HorizonDays        int           // weekly prediction horizon
	MonthlyHorizonDays int           // prediction horizon after the monthly retrain
	LeaseTTL           time.Duration // upper bound on one job run
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		AutoRetrain:        false,
		RetrainWindowWeeks: 12,
		HorizonDays:        14,
		MonthlyHorizonDays: 28,
		LeaseTTL:           30 * time.Minute,
	}
}

// Report summarizes one job run.
type Report struct {
	Job      string         `json:"job"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration_ns"`
	Detail   map[string]any `json:"detail"`
}

// ─── Runner ─────────────────────────────────────────────────────────────────

// Runner dispatches jobs by name.
type Runner struct {
	trainer   Trainer
	predictor Predictor
	tracker   Tracker
	alerts    Alerts
	store     Store
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
	jobs      map[string]func(ctx context.Context, detail map[string]any) error
}

// NewRunner creates a runner with every job registered.
func NewRunner(trainer Trainer, predictor Predictor, tracker Tracker, alerts Alerts, store Store, cfg Config, log zerolog.Logger) *Runner {
	r := &Runner{
		trainer:   trainer,
		predictor: predictor,
		tracker:   tracker,
		alerts:    alerts,
		store:     store,
		cfg:       cfg,
		log:       log.With().Str("component", "jobs").Logger(),
		now:       time.Now,
	}
	r.jobs = map[string]func(context.Context, map[string]any) error{
		DailyAccuracy:      r.dailyAccuracy,
		WeeklyRetrainCheck: r.weeklyRetrainCheck,
		WeeklyPredictions:  r.weeklyPredictions,
		DailyAlerts:        r.dailyAlerts,
		MonthlyRetrain:     r.monthlyRetrain,
	}
	return r
}

// Names lists the registered jobs in alphabetical order.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for n := range r.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run executes the named job under its lease.
func (r *Runner) Run(ctx context.Context, name string) (*Report, error) {
	job, ok := r.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}

	lease := "job:" + name
	owner := uuid.NewString()
	acquired, err := r.store.AcquireLease(ctx, lease, owner, r.cfg.LeaseTTL)
	if err != nil {
		metrics.JobRuns.WithLabelValues(name, "error").Inc()
		return nil, fmt.Errorf("acquire %s lease: %w", name, err)
	}
	if !acquired {
		metrics.JobRuns.WithLabelValues(name, "busy").Inc()
		return nil, fmt.Errorf("%s: %w", name, ErrJobRunning)
	}
	defer func() {
		if err := r.store.ReleaseLease(context.WithoutCancel(ctx), lease, owner); err != nil {
			r.log.Warn().Err(err).Str("job", name).Msg("release job lease")
		}
	}()

	rep := &Report{Job: name, Started: r.now(), Detail: map[string]any{}}
	r.log.Info().Str("job", name).Msg("job started")
	err = job(ctx, rep.Detail)
	rep.Duration = r.now().Sub(rep.Started)
	if err != nil {
		metrics.JobRuns.WithLabelValues(name, "error").Inc()
		r.log.Error().Err(err).Str("job", name).Dur("elapsed", rep.Duration).Msg("job failed")
		return rep, err
	}
	metrics.JobRuns.WithLabelValues(name, "ok").Inc()
	r.log.Info().Str("job", name).Dur("elapsed", rep.Duration).Interface("detail", rep.Detail).Msg("job finished")
	return rep, nil
}

// ─── Jobs ───────────────────────────────────────────────────────────────────

// dailyAccuracy scores yesterday's predictions against what happened.
func (r *Runner) dailyAccuracy(ctx context.Context, detail map[string]any) error {
	yesterday := domain.Day(r.now()).AddDate(0, 0, -1)
	n, err := r.tracker.UpdateForDate(ctx, yesterday)
	if err != nil {
		return err
	}
	detail["date"] = domain.FormatDate(yesterday)
	detail["records_updated"] = n
	return nil
}

// weeklyRetrainCheck retrains when accuracy has drifted and auto-retrain is
// on; otherwise it leaves a notification for the operator.
func (r *Runner) weeklyRetrainCheck(ctx context.Context, detail map[string]any) error {
	d, err := r.tracker.ShouldRetrain(ctx)
	if err != nil {
		return err
	}
	detail["should_retrain"] = d.ShouldRetrain
	detail["degradation_percentage"] = d.DegradationPercentage
	detail["reason"] = d.Reason
	if !d.ShouldRetrain {
		return nil
	}

	r.log.Warn().
		Float64("degradation_pct", d.DegradationPercentage).
		Bool("auto_retrain", r.cfg.AutoRetrain).
		Msg("model retraining recommended")

	if !r.cfg.AutoRetrain {
		return r.store.InsertNotification(ctx, domain.Notification{
			ID:        uuid.NewString(),
			Kind:      domain.NotifyRetrain,
			Title:     "Model retraining recommended",
			Body:      fmt.Sprintf("Forecast error degraded by %.2f%% against the previous weeks.", d.DegradationPercentage),
			CreatedAt: r.now(),
		})
	}

	res, err := r.trainer.Train(ctx, 0)
	if err != nil {
		return fmt.Errorf("auto retrain: %w", err)
	}
	detail["model_version"] = res.Version
	return nil
}

// weeklyPredictions refreshes predictions for the coming horizon.
func (r *Runner) weeklyPredictions(ctx context.Context, detail map[string]any) error {
	return r.generate(ctx, r.cfg.HorizonDays, detail)
}

// dailyAlerts sweeps published schedules, then notifies on critical alerts.
func (r *Runner) dailyAlerts(ctx context.Context, detail map[string]any) error {
	created, err := r.alerts.CheckPublished(ctx)
	if err != nil {
		return err
	}
	sent, err := r.alerts.NotifyCritical(ctx)
	if err != nil {
		return err
	}
	detail["alerts_created"] = created
	detail["notifications_sent"] = sent
	return nil
}

// monthlyRetrain trains on the long window and regenerates predictions
// with the new model.
func (r *Runner) monthlyRetrain(ctx context.Context, detail map[string]any) error {
	res, err := r.trainer.Train(ctx, r.cfg.RetrainWindowWeeks)
	if err != nil {
		return err
	}
	detail["model_version"] = res.Version
	detail["training_records"] = res.TrainingRecords
	detail["train_score"] = res.TrainScore
	detail["test_score"] = res.TestScore
	return r.generate(ctx, r.cfg.MonthlyHorizonDays, detail)
}

func (r *Runner) generate(ctx context.Context, days int, detail map[string]any) error {
	start := domain.Day(r.now())
	end := start.AddDate(0, 0, days)
	res, err := r.predictor.GeneratePredictions(ctx, start, end)
	if err != nil {
		return err
	}
	detail["start_date"] = domain.FormatDate(start)
	detail["end_date"] = domain.FormatDate(end)
	detail["predictions_created"] = res.PredictionsCreated
	return nil
}
