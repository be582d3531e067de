package domain

import "time"

// ─── Model Versions ─────────────────────────────────────────────────────────

// ModelVersion describes one trained demand model.
// Rows are immutable apart from IsActive; at most one is active at a time.
type ModelVersion struct {
	ID              string         `json:"id"`
	Version         string         `json:"version"` // "v20260301_143000"
	TrainedAt       time.Time      `json:"trained_at"`
	TrainingRecords int            `json:"training_records"`
	TrainScore      float64        `json:"train_score"` // R² on the training split
	TestScore       float64        `json:"test_score"`  // R² on the held-out split
	Features        []string       `json:"features"`
	Hyperparameters map[string]any `json:"hyperparameters"`
	ArtifactDigest  string         `json:"artifact_digest"` // sha256 hex of the stored artifact
	IsActive        bool           `json:"is_active"`
}

// VersionAt formats the version identifier for a training timestamp.
func VersionAt(t time.Time) string {
	return "v" + t.UTC().Format("20060102_150405")
}

// TrainingResult is returned by a successful training run.
type TrainingResult struct {
	Version         string        `json:"model_version"`
	TrainingRecords int           `json:"training_records"`
	TrainScore      float64       `json:"train_score"`
	TestScore       float64       `json:"test_score"`
	TrainedAt       time.Time     `json:"trained_at"`
	Duration        time.Duration `json:"duration_ns"`
}

// GenerationResult is returned by a prediction batch.
type GenerationResult struct {
	PredictionsCreated int    `json:"predictions_created"`
	ModelVersion       string `json:"model_version"`
}

// ModelStatus is the read model behind the model status endpoint.
type ModelStatus struct {
	HasActiveModel bool          `json:"has_active_model"`
	Active         *ModelVersion `json:"active,omitempty"`
}
