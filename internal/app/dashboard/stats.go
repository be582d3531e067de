// Package dashboard assembles the operator overview from the forecasting
// services.
package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/staffcast/staffcast/internal/domain"
)

// AccuracyWindowDays is the span of the accuracy figure on the dashboard.
const AccuracyWindowDays = 30

// Models reports the active model.
type Models interface {
	Status(ctx context.Context) (domain.ModelStatus, error)
}

// Accuracy aggregates accuracy and judges drift.
type Accuracy interface {
	Metrics(ctx context.Context, start, end time.Time) (*domain.AccuracyMetrics, error)
	ShouldRetrain(ctx context.Context) (*domain.RetrainDecision, error)
}

// Alerts counts pending alerts.
type Alerts interface {
	Summary(ctx context.Context) (domain.AlertSummary, error)
}

// Service builds dashboard stats.
type Service struct {
	models   Models
	accuracy Accuracy
	alerts   Alerts
	now      func() time.Time
}

// NewService creates a dashboard service.
func NewService(models Models, accuracy Accuracy, alerts Alerts) *Service {
	return &Service{models: models, accuracy: accuracy, alerts: alerts, now: time.Now}
}

// Stats returns the active model, the last 30 days of accuracy (nil when
// there is none), the pending alert summary and the retrain decision.
func (s *Service) Stats(ctx context.Context) (*domain.Stats, error) {
	var out domain.Stats
	var err error

	if out.Model, err = s.models.Status(ctx); err != nil {
		return nil, err
	}

	end := domain.Day(s.now())
	m, err := s.accuracy.Metrics(ctx, end.AddDate(0, 0, -AccuracyWindowDays), end)
	switch {
	case err == nil:
		out.Accuracy = m
	case !errors.Is(err, domain.ErrNoData):
		return nil, err
	}

	if out.Alerts, err = s.alerts.Summary(ctx); err != nil {
		return nil, err
	}

	d, err := s.accuracy.ShouldRetrain(ctx)
	if err != nil {
		return nil, err
	}
	out.Retrain = *d
	return &out, nil
}
