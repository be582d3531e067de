package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestTrainingMetrics(t *testing.T) {
	TrainingRuns.WithLabelValues("ok").Inc()
	TrainingDuration.Observe(4.2)
	ModelScore.WithLabelValues("test").Set(0.71)

	names := gatheredNames(t)
	for _, name := range []string{
		"staffcast_training_runs_total",
		"staffcast_training_duration_seconds",
		"staffcast_model_r2",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestPredictionAndAccuracyMetrics(t *testing.T) {
	PredictionsUpserted.Add(13)
	ArtifactLoads.WithLabelValues("ok").Inc()
	AccuracyRecords.Add(13)
	RollingMAPE.Set(18.5)

	names := gatheredNames(t)
	for _, name := range []string{
		"staffcast_predictions_upserted_total",
		"staffcast_artifact_loads_total",
		"staffcast_accuracy_records_total",
		"staffcast_sales_count_mape_percent",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAlertAndJobMetrics(t *testing.T) {
	AlertsCreated.WithLabelValues("high").Inc()
	AlertsPending.Set(4)
	JobRuns.WithLabelValues("daily-accuracy", "ok").Inc()
	HealthCheckStatus.WithLabelValues("sqlite").Set(1)
	HealthRecoveries.WithLabelValues("sqlite").Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"staffcast_alerts_created_total",
		"staffcast_alerts_pending",
		"staffcast_job_runs_total",
		"staffcast_health_check_status",
		"staffcast_health_recoveries_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAllMetricsGatherable(t *testing.T) {
	names := gatheredNames(t)
	n := 0
	for name := range names {
		if strings.HasPrefix(name, "staffcast_") {
			n++
		}
	}
	// Unlabelled metrics are always exported.
	if n < 5 {
		t.Errorf("expected at least 5 staffcast_ metrics, got %d", n)
	}
}
