// Package metrics provides Prometheus metrics for staffcast.
// Counters, gauges and histograms for training, prediction, accuracy,
// alerting and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Training ───────────────────────────────────────────────────────────────

// TrainingRuns counts training attempts by outcome (ok, insufficient_data,
// busy, error).
var TrainingRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "staffcast",
	Name:      "training_runs_total",
	Help:      "Total model training attempts by outcome.",
}, []string{"outcome"})

// TrainingDuration tracks wall time of successful training runs.
var TrainingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "staffcast",
	Name:      "training_duration_seconds",
	Help:      "Duration of successful training runs in seconds.",
	Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
})

// ModelScore tracks R² of the active model per split (train, test).
var ModelScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "staffcast",
	Name:      "model_r2",
	Help:      "R² of the active model per split.",
}, []string{"split"})

// ─── Predictions ────────────────────────────────────────────────────────────

// PredictionsUpserted counts prediction rows written.
var PredictionsUpserted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "staffcast",
	Name:      "predictions_upserted_total",
	Help:      "Total prediction rows written.",
})

// ArtifactLoads counts model artifact loads by result (ok, corrupted, error).
var ArtifactLoads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "staffcast",
	Name:      "artifact_loads_total",
	Help:      "Model artifact loads from the artifact store by result.",
}, []string{"result"})

// ─── Accuracy ───────────────────────────────────────────────────────────────

// AccuracyRecords counts accuracy rows written.
var AccuracyRecords = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "staffcast",
	Name:      "accuracy_records_total",
	Help:      "Total accuracy records written.",
})

// RollingMAPE tracks the most recently computed sales-count MAPE (percent).
var RollingMAPE = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "staffcast",
	Name:      "sales_count_mape_percent",
	Help:      "Most recent sales-count MAPE over the reporting window.",
})

// ─── Alerts ─────────────────────────────────────────────────────────────────

// AlertsCreated counts alerts raised by severity.
var AlertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "staffcast",
	Name:      "alerts_created_total",
	Help:      "Total staffing alerts created by severity.",
}, []string{"severity"})

// AlertsPending tracks pending alerts.
var AlertsPending = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "staffcast",
	Name:      "alerts_pending",
	Help:      "Number of pending staffing alerts.",
})

// ─── Jobs ───────────────────────────────────────────────────────────────────

// JobRuns counts periodic job executions by job and outcome.
var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "staffcast",
	Name:      "job_runs_total",
	Help:      "Total periodic job runs by job and outcome.",
}, []string{"job", "outcome"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "staffcast",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "staffcast",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
