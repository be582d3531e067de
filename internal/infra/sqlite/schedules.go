package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/staffcast/staffcast/internal/domain"
)

// ─── Schedules & Shifts ─────────────────────────────────────────────────────
// Owned by the schedule editor. SaveSchedule exists for that editor's
// import path and for fixtures; the forecasting core only reads.

// SaveSchedule replaces a schedule and its shifts in one transaction.
func (d *DB) SaveSchedule(ctx context.Context, s domain.Schedule, shifts []domain.Shift) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO schedules (id, name, start_date, end_date, status)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				name=excluded.name,
				start_date=excluded.start_date,
				end_date=excluded.end_date,
				status=excluded.status`,
			s.ID, s.Name, domain.FormatDate(s.StartDate), domain.FormatDate(s.EndDate), s.Status,
		)
		if err != nil {
			return fmt.Errorf("upsert schedule %s: %w", s.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM shifts WHERE schedule_id = ?`, s.ID); err != nil {
			return fmt.Errorf("clear shifts of %s: %w", s.ID, err)
		}
		for _, sh := range shifts {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO shifts (id, schedule_id, employee_id, shift_date, start_time, end_time)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				sh.ID, s.ID, sh.EmployeeID, domain.FormatDate(sh.ShiftDate), sh.StartTime, sh.EndTime,
			)
			if err != nil {
				return fmt.Errorf("insert shift %s: %w", sh.ID, err)
			}
		}
		return nil
	})
}

// GetSchedule returns a schedule by id, or nil.
func (d *DB) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, name, start_date, end_date, status FROM schedules WHERE id = ?`, id)
	return scanSchedule(row)
}

// SchedulesWithStatus returns schedules in the given status whose span
// ends on or after from, ordered by start date.
func (d *DB) SchedulesWithStatus(ctx context.Context, status string, from time.Time) ([]domain.Schedule, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name, start_date, end_date, status FROM schedules
		 WHERE status = ? AND end_date >= ? ORDER BY start_date`,
		status, domain.FormatDate(from),
	)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// ShiftsForSchedule returns every shift on a schedule, by date and start.
func (d *DB) ShiftsForSchedule(ctx context.Context, scheduleID string) ([]domain.Shift, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, schedule_id, employee_id, shift_date, start_time, end_time
		 FROM shifts WHERE schedule_id = ? ORDER BY shift_date, start_time`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("query shifts: %w", err)
	}
	defer rows.Close()

	var out []domain.Shift
	for rows.Next() {
		var sh domain.Shift
		var date string
		if err := rows.Scan(&sh.ID, &sh.ScheduleID, &sh.EmployeeID, &date, &sh.StartTime, &sh.EndTime); err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		if sh.ShiftDate, err = parseDate(date); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func scanSchedule(s scanner) (*domain.Schedule, error) {
	var sc domain.Schedule
	var start, end string

	err := s.Scan(&sc.ID, &sc.Name, &start, &end, &sc.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	if sc.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if sc.EndDate, err = parseDate(end); err != nil {
		return nil, err
	}
	return &sc, nil
}
