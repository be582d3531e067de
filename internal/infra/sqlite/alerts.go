package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/staffcast/staffcast/internal/domain"
)

// ─── Staffing Alerts ────────────────────────────────────────────────────────

const alertCols = `id, schedule_id, date, hour, recommended_staff, scheduled_staff,
	difference, difference_percentage, severity, status, acknowledged_by, acknowledged_at, created_at`

// InsertAlert stores a new alert. A second alert for the same
// (schedule, date, hour) is silently dropped; the return value reports
// whether a row was written.
func (d *DB) InsertAlert(ctx context.Context, a domain.Alert) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO staffing_alerts (`+alertCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(schedule_id, date, hour) DO NOTHING`,
		a.ID, a.ScheduleID, domain.FormatDate(a.Date), a.Hour,
		a.RecommendedStaff, a.ScheduledStaff, a.Difference, a.DifferencePercentage,
		string(a.Severity), string(a.Status), nullStr(a.AcknowledgedBy),
		nullableUnix(a.AcknowledgedAt), a.CreatedAt.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// GetAlert returns an alert by id, or nil.
func (d *DB) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+alertCols+` FROM staffing_alerts WHERE id = ?`, id)
	return scanAlert(row)
}

// UpdateAlertStatus persists a lifecycle transition. The caller validates
// the transition; fromStatus guards against a concurrent change.
func (d *DB) UpdateAlertStatus(ctx context.Context, a domain.Alert, fromStatus domain.AlertStatus) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`UPDATE staffing_alerts
		 SET status = ?, acknowledged_by = ?, acknowledged_at = ?
		 WHERE id = ? AND status = ?`,
		string(a.Status), nullStr(a.AcknowledgedBy), nullableUnix(a.AcknowledgedAt),
		a.ID, string(fromStatus),
	)
	if err != nil {
		return false, fmt.Errorf("update alert %s: %w", a.ID, err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// PendingAlerts lists pending alerts matching f, most severe first, then by
// date and hour.
func (d *DB) PendingAlerts(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error) {
	where := []string{"status = ?"}
	args := []any{string(domain.AlertPending)}
	if f.ScheduleID != "" {
		where = append(where, "schedule_id = ?")
		args = append(args, f.ScheduleID)
	}
	if f.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(f.Severity))
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+alertCols+` FROM staffing_alerts
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY CASE severity
			WHEN 'critical' THEN 3 WHEN 'high' THEN 2 WHEN 'medium' THEN 1 ELSE 0 END DESC,
			date, hour`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// PendingAlertCounts returns the number of pending alerts per severity.
func (d *DB) PendingAlertCounts(ctx context.Context) (map[domain.Severity]int, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM staffing_alerts WHERE status = ? GROUP BY severity`,
		string(domain.AlertPending),
	)
	if err != nil {
		return nil, fmt.Errorf("count pending alerts: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Severity]int)
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, fmt.Errorf("scan alert count: %w", err)
		}
		counts[domain.Severity(sev)] = n
	}
	return counts, rows.Err()
}

func scanAlert(s scanner) (*domain.Alert, error) {
	var a domain.Alert
	var date string
	var ackBy sql.NullString
	var ackAt sql.NullInt64
	var createdAt int64

	err := s.Scan(&a.ID, &a.ScheduleID, &date, &a.Hour, &a.RecommendedStaff, &a.ScheduledStaff,
		&a.Difference, &a.DifferencePercentage, &a.Severity, &a.Status, &ackBy, &ackAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	if a.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	a.AcknowledgedBy = ackBy.String
	if ackAt.Valid {
		t := time.Unix(ackAt.Int64, 0)
		a.AcknowledgedAt = &t
	}
	a.CreatedAt = time.Unix(createdAt, 0)
	return &a, nil
}
