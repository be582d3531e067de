package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/staffcast/staffcast/internal/domain"
)

// ─── Calendar Exceptions ────────────────────────────────────────────────────

const calendarCols = `id, date, name, category, impact_multiplier, notes, created_at`

// InsertCalendarException adds an exception. Returns ErrAlreadyExists when
// the date already has one.
func (d *DB) InsertCalendarException(ctx context.Context, e domain.CalendarException) error {
	result, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO calendar_exceptions (`+calendarCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, domain.FormatDate(e.Date), e.Name, string(e.Category),
		e.ImpactMultiplier, nullStr(e.Notes), e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert calendar exception: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("calendar exception on %s: %w", domain.FormatDate(e.Date), domain.ErrAlreadyExists)
	}
	return nil
}

// CalendarExceptionOn returns the exception on a date, or nil.
func (d *DB) CalendarExceptionOn(ctx context.Context, date time.Time) (*domain.CalendarException, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+calendarCols+` FROM calendar_exceptions WHERE date = ?`, domain.FormatDate(date))
	return scanCalendarException(row)
}

// CalendarExceptionsBetween returns exceptions with date in [start, end], by date.
func (d *DB) CalendarExceptionsBetween(ctx context.Context, start, end time.Time) ([]domain.CalendarException, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+calendarCols+` FROM calendar_exceptions
		 WHERE date >= ? AND date <= ? ORDER BY date`,
		domain.FormatDate(start), domain.FormatDate(end),
	)
	if err != nil {
		return nil, fmt.Errorf("query calendar exceptions: %w", err)
	}
	defer rows.Close()

	var out []domain.CalendarException
	for rows.Next() {
		e, err := scanCalendarException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// DeleteCalendarException removes an exception by id.
func (d *DB) DeleteCalendarException(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM calendar_exceptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete calendar exception: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("calendar exception %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanCalendarException(s scanner) (*domain.CalendarException, error) {
	var e domain.CalendarException
	var date string
	var notes sql.NullString
	var createdAt int64

	err := s.Scan(&e.ID, &date, &e.Name, &e.Category, &e.ImpactMultiplier, &notes, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan calendar exception: %w", err)
	}

	if e.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	e.Notes = notes.String
	e.CreatedAt = time.Unix(createdAt, 0)
	return &e, nil
}
