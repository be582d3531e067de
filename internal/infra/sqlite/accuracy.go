package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/staffcast/staffcast/internal/domain"
)

// ─── Prediction Accuracy ────────────────────────────────────────────────────

const accuracyCols = `date, hour, predicted_sales_count, predicted_sales_amount, recommended_staff_count,
	actual_sales_count, actual_sales_amount, actual_staff_count,
	sales_count_error, sales_amount_error, staff_count_error, model_version, updated_at`

// UpsertAccuracy writes accuracy records in one transaction, keyed by (date, hour).
func (d *DB) UpsertAccuracy(ctx context.Context, recs []domain.AccuracyRecord) error {
	if len(recs) == 0 {
		return nil
	}
	now := d.now().Unix()
	return d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO prediction_accuracy (`+accuracyCols+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(date, hour) DO UPDATE SET
				predicted_sales_count=excluded.predicted_sales_count,
				predicted_sales_amount=excluded.predicted_sales_amount,
				recommended_staff_count=excluded.recommended_staff_count,
				actual_sales_count=excluded.actual_sales_count,
				actual_sales_amount=excluded.actual_sales_amount,
				actual_staff_count=excluded.actual_staff_count,
				sales_count_error=excluded.sales_count_error,
				sales_amount_error=excluded.sales_amount_error,
				staff_count_error=excluded.staff_count_error,
				model_version=excluded.model_version,
				updated_at=excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("prepare accuracy upsert: %w", err)
		}
		defer stmt.Close()

		for _, r := range recs {
			_, err := stmt.ExecContext(ctx,
				domain.FormatDate(r.Date), r.Hour,
				r.PredictedSalesCount, r.PredictedSalesAmount.String(), r.RecommendedStaffCount,
				r.ActualSalesCount, r.ActualSalesAmount.String(), r.ActualStaffCount,
				r.SalesCountError, r.SalesAmountError, r.StaffCountError,
				r.ModelVersion, now,
			)
			if err != nil {
				return fmt.Errorf("upsert accuracy %s %02d: %w", domain.FormatDate(r.Date), r.Hour, err)
			}
		}
		return nil
	})
}

// AccuracyBetween returns accuracy records with date in [start, end].
func (d *DB) AccuracyBetween(ctx context.Context, start, end time.Time) ([]domain.AccuracyRecord, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+accuracyCols+` FROM prediction_accuracy
		 WHERE date >= ? AND date <= ? ORDER BY date, hour`,
		domain.FormatDate(start), domain.FormatDate(end),
	)
	if err != nil {
		return nil, fmt.Errorf("query accuracy: %w", err)
	}
	defer rows.Close()

	var out []domain.AccuracyRecord
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := scanAccuracy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanAccuracy(s scanner) (*domain.AccuracyRecord, error) {
	var r domain.AccuracyRecord
	var date string
	var updatedAt int64

	err := s.Scan(&date, &r.Hour,
		&r.PredictedSalesCount, &r.PredictedSalesAmount, &r.RecommendedStaffCount,
		&r.ActualSalesCount, &r.ActualSalesAmount, &r.ActualStaffCount,
		&r.SalesCountError, &r.SalesAmountError, &r.StaffCountError,
		&r.ModelVersion, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan accuracy: %w", err)
	}

	if r.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	r.UpdatedAt = time.Unix(updatedAt, 0)
	return &r, nil
}
