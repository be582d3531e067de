package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/staffcast/staffcast/internal/domain"
)

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification stores an operator notification.
func (d *DB) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO notifications (id, kind, title, body, schedule_id, created_at, shown)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Kind), n.Title, n.Body, nullStr(n.ScheduleID), n.CreatedAt.Unix(), n.Shown,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the newest notifications, up to limit.
func (d *DB) ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, kind, title, body, schedule_id, created_at, shown
		 FROM notifications ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var scheduleID sql.NullString
		var createdAt int64
		if err := rows.Scan(&n.ID, &n.Kind, &n.Title, &n.Body, &scheduleID, &createdAt, &n.Shown); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ScheduleID = scheduleID.String
		n.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationShown flags a notification as displayed.
func (d *DB) MarkNotificationShown(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `UPDATE notifications SET shown = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification %s: %w", id, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
