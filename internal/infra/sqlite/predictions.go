package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/staffcast/staffcast/internal/domain"
)

// ─── Predictions ────────────────────────────────────────────────────────────

const predictionCols = `date, hour, predicted_sales_count, predicted_sales_amount,
	recommended_staff_count, confidence_score, model_version, created_at, updated_at`

// UpsertPredictions writes a prediction batch in one transaction.
// Existing (date, hour) rows are overwritten in place; created_at survives.
func (d *DB) UpsertPredictions(ctx context.Context, preds []domain.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	now := d.now().Unix()
	return d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO predictions (`+predictionCols+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(date, hour) DO UPDATE SET
				predicted_sales_count=excluded.predicted_sales_count,
				predicted_sales_amount=excluded.predicted_sales_amount,
				recommended_staff_count=excluded.recommended_staff_count,
				confidence_score=excluded.confidence_score,
				model_version=excluded.model_version,
				updated_at=excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("prepare prediction upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range preds {
			_, err := stmt.ExecContext(ctx,
				domain.FormatDate(p.Date), p.Hour, p.PredictedSalesCount,
				p.PredictedSalesAmount.String(), p.RecommendedStaffCount,
				p.ConfidenceScore, p.ModelVersion, now, now,
			)
			if err != nil {
				return fmt.Errorf("upsert prediction %s %02d: %w", domain.FormatDate(p.Date), p.Hour, err)
			}
		}
		return nil
	})
}

// PredictionsBetween returns predictions with date in [start, end],
// ordered by date and hour.
func (d *DB) PredictionsBetween(ctx context.Context, start, end time.Time) ([]domain.Prediction, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+predictionCols+` FROM predictions
		 WHERE date >= ? AND date <= ? ORDER BY date, hour`,
		domain.FormatDate(start), domain.FormatDate(end),
	)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var out []domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// PredictionAt returns the prediction for one (date, hour), or nil.
func (d *DB) PredictionAt(ctx context.Context, date time.Time, hour int) (*domain.Prediction, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+predictionCols+` FROM predictions WHERE date = ? AND hour = ?`,
		domain.FormatDate(date), hour,
	)
	return scanPrediction(row)
}

// CountPredictions returns the number of stored prediction rows.
func (d *DB) CountPredictions(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n)
	return n, err
}

func scanPrediction(s scanner) (*domain.Prediction, error) {
	var p domain.Prediction
	var date string
	var createdAt, updatedAt int64

	err := s.Scan(&date, &p.Hour, &p.PredictedSalesCount, &p.PredictedSalesAmount,
		&p.RecommendedStaffCount, &p.ConfidenceScore, &p.ModelVersion, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan prediction: %w", err)
	}

	if p.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}
