package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/staffcast/staffcast/internal/domain"
)

// ─── Model Versions ─────────────────────────────────────────────────────────

const modelVersionCols = `id, version, trained_at, training_records, train_score, test_score,
	features, hyperparameters, artifact_digest, is_active`

// ActivateModelVersion deactivates every version and inserts v as the only
// active one, in a single transaction. The partial unique index on
// is_active rejects any interleaving that would leave two active rows.
func (d *DB) ActivateModelVersion(ctx context.Context, v domain.ModelVersion) error {
	features, err := json.Marshal(v.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	params, err := json.Marshal(v.Hyperparameters)
	if err != nil {
		return fmt.Errorf("encode hyperparameters: %w", err)
	}

	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE model_versions SET is_active = 0 WHERE is_active = 1`); err != nil {
			return fmt.Errorf("deactivate versions: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO model_versions (`+modelVersionCols+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			v.ID, v.Version, v.TrainedAt.Unix(), v.TrainingRecords,
			v.TrainScore, v.TestScore, string(features), string(params), v.ArtifactDigest,
		)
		if err != nil {
			return fmt.Errorf("insert version %s: %w", v.Version, err)
		}
		return nil
	})
}

// ActiveModelVersion returns the active version, or nil when none exists.
func (d *DB) ActiveModelVersion(ctx context.Context) (*domain.ModelVersion, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+modelVersionCols+` FROM model_versions WHERE is_active = 1`)
	return scanModelVersion(row)
}

// ModelVersionByName returns the version with the given identifier, or nil.
func (d *DB) ModelVersionByName(ctx context.Context, version string) (*domain.ModelVersion, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+modelVersionCols+` FROM model_versions WHERE version = ?`, version)
	return scanModelVersion(row)
}

// ListModelVersions returns every version, newest first.
func (d *DB) ListModelVersions(ctx context.Context) ([]domain.ModelVersion, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+modelVersionCols+` FROM model_versions ORDER BY trained_at DESC, version DESC`)
	if err != nil {
		return nil, fmt.Errorf("query model versions: %w", err)
	}
	defer rows.Close()

	var out []domain.ModelVersion
	for rows.Next() {
		v, err := scanModelVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// CountActiveModelVersions returns how many rows are flagged active.
func (d *DB) CountActiveModelVersions(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM model_versions WHERE is_active = 1`).Scan(&n)
	return n, err
}

func scanModelVersion(s scanner) (*domain.ModelVersion, error) {
	var v domain.ModelVersion
	var trainedAt int64
	var features, params string

	err := s.Scan(&v.ID, &v.Version, &trainedAt, &v.TrainingRecords, &v.TrainScore,
		&v.TestScore, &features, &params, &v.ArtifactDigest, &v.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan model version: %w", err)
	}

	v.TrainedAt = time.Unix(trainedAt, 0).UTC()
	if err := json.Unmarshal([]byte(features), &v.Features); err != nil {
		return nil, fmt.Errorf("decode features of %s: %w", v.Version, err)
	}
	if err := json.Unmarshal([]byte(params), &v.Hyperparameters); err != nil {
		return nil, fmt.Errorf("decode hyperparameters of %s: %w", v.Version, err)
	}
	return &v, nil
}
