package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/staffcast/staffcast/internal/domain"
)

// ─── Observed Metrics ───────────────────────────────────────────────────────

const observationCols = `date, hour, day_of_week, scheduled_staff_count, present_staff_count,
	sales_count, sales_amount, is_holiday, updated_at`

// UpsertObservation inserts or corrects the ground truth for one (date, hour).
func (d *DB) UpsertObservation(ctx context.Context, m domain.ObservedMetric) error {
	date := domain.Day(m.Date)
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO observed_metrics (`+observationCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date, hour) DO UPDATE SET
			day_of_week=excluded.day_of_week,
			scheduled_staff_count=excluded.scheduled_staff_count,
			present_staff_count=excluded.present_staff_count,
			sales_count=excluded.sales_count,
			sales_amount=excluded.sales_amount,
			is_holiday=excluded.is_holiday,
			updated_at=excluded.updated_at`,
		domain.FormatDate(date), m.Hour, domain.DayOfWeek(date),
		m.ScheduledStaffCount, nullInt(m.PresentStaffCount),
		m.SalesCount, m.SalesAmount.String(), m.IsHoliday, d.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert observation %s %02d: %w", domain.FormatDate(date), m.Hour, err)
	}
	return nil
}

// ObservationsBetween returns observations with date in [start, end],
// ordered by date and hour.
func (d *DB) ObservationsBetween(ctx context.Context, start, end time.Time) ([]domain.ObservedMetric, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+observationCols+` FROM observed_metrics
		 WHERE date >= ? AND date <= ? ORDER BY date, hour`,
		domain.FormatDate(start), domain.FormatDate(end),
	)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []domain.ObservedMetric
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ObservationAt returns the observation for one (date, hour), or nil.
func (d *DB) ObservationAt(ctx context.Context, date time.Time, hour int) (*domain.ObservedMetric, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+observationCols+` FROM observed_metrics WHERE date = ? AND hour = ?`,
		domain.FormatDate(date), hour,
	)
	return scanObservation(row)
}

func scanObservation(s scanner) (*domain.ObservedMetric, error) {
	var m domain.ObservedMetric
	var date string
	var present sql.NullInt64
	var updatedAt int64

	err := s.Scan(&date, &m.Hour, &m.DayOfWeek, &m.ScheduledStaffCount, &present,
		&m.SalesCount, &m.SalesAmount, &m.IsHoliday, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan observation: %w", err)
	}

	if m.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	if present.Valid {
		n := int(present.Int64)
		m.PresentStaffCount = &n
	}
	m.UpdatedAt = time.Unix(updatedAt, 0)
	return &m, nil
}
