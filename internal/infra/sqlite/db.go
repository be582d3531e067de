// Package sqlite provides SQLite-based persistent storage for staffcast.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/staffcast/staffcast/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db, now: time.Now}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Ground truth, one row per operating hour
		`CREATE TABLE IF NOT EXISTS observed_metrics (
			date                  TEXT NOT NULL,
			hour                  INTEGER NOT NULL CHECK (hour BETWEEN 0 AND 23),
			day_of_week           INTEGER NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
			scheduled_staff_count INTEGER NOT NULL DEFAULT 0,
			present_staff_count   INTEGER,
			sales_count           INTEGER NOT NULL DEFAULT 0,
			sales_amount          TEXT NOT NULL DEFAULT '0',
			is_holiday            BOOLEAN NOT NULL DEFAULT 0,
			updated_at            INTEGER NOT NULL,
			PRIMARY KEY (date, hour)
		)`,

		// Predictions, overwritten in place by each batch
		`CREATE TABLE IF NOT EXISTS predictions (
			date                    TEXT NOT NULL,
			hour                    INTEGER NOT NULL,
			predicted_sales_count   INTEGER NOT NULL,
			predicted_sales_amount  TEXT NOT NULL,
			recommended_staff_count INTEGER NOT NULL,
			confidence_score        REAL NOT NULL,
			model_version           TEXT NOT NULL,
			created_at              INTEGER NOT NULL,
			updated_at              INTEGER NOT NULL,
			PRIMARY KEY (date, hour)
		)`,

		// Model versions. Rows are immutable except is_active.
		`CREATE TABLE IF NOT EXISTS model_versions (
			id               TEXT PRIMARY KEY,
			version          TEXT NOT NULL UNIQUE,
			trained_at       INTEGER NOT NULL,
			training_records INTEGER NOT NULL,
			train_score      REAL NOT NULL,
			test_score       REAL NOT NULL,
			features         TEXT NOT NULL,
			hyperparameters  TEXT NOT NULL,
			artifact_digest  TEXT NOT NULL,
			is_active        BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_model_versions_one_active
			ON model_versions(is_active) WHERE is_active = 1`,
		`CREATE INDEX IF NOT EXISTS idx_model_versions_trained ON model_versions(trained_at)`,

		// Accuracy, joined prediction vs outcome
		`CREATE TABLE IF NOT EXISTS prediction_accuracy (
			date                    TEXT NOT NULL,
			hour                    INTEGER NOT NULL,
			predicted_sales_count   INTEGER NOT NULL,
			predicted_sales_amount  TEXT NOT NULL,
			recommended_staff_count INTEGER NOT NULL,
			actual_sales_count      INTEGER NOT NULL,
			actual_sales_amount     TEXT NOT NULL,
			actual_staff_count      INTEGER NOT NULL,
			sales_count_error       REAL NOT NULL,
			sales_amount_error      REAL NOT NULL,
			staff_count_error       REAL NOT NULL,
			model_version           TEXT NOT NULL,
			updated_at              INTEGER NOT NULL,
			PRIMARY KEY (date, hour)
		)`,

		// Calendar exceptions
		`CREATE TABLE IF NOT EXISTS calendar_exceptions (
			id                TEXT PRIMARY KEY,
			date              TEXT NOT NULL UNIQUE,
			name              TEXT NOT NULL,
			category          TEXT NOT NULL,
			impact_multiplier REAL NOT NULL DEFAULT 1.0,
			notes             TEXT,
			created_at        INTEGER NOT NULL
		)`,

		// Schedules and shifts, written by the schedule editor
		`CREATE TABLE IF NOT EXISTS schedules (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date   TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'draft'
		)`,
		`CREATE TABLE IF NOT EXISTS shifts (
			id          TEXT PRIMARY KEY,
			schedule_id TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
			employee_id TEXT NOT NULL,
			shift_date  TEXT NOT NULL,
			start_time  INTEGER NOT NULL,
			end_time    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shifts_schedule ON shifts(schedule_id, shift_date)`,

		// Staffing alerts
		`CREATE TABLE IF NOT EXISTS staffing_alerts (
			id                    TEXT PRIMARY KEY,
			schedule_id           TEXT NOT NULL,
			date                  TEXT NOT NULL,
			hour                  INTEGER NOT NULL,
			recommended_staff     INTEGER NOT NULL,
			scheduled_staff       INTEGER NOT NULL,
			difference            INTEGER NOT NULL,
			difference_percentage REAL NOT NULL,
			severity              TEXT NOT NULL,
			status                TEXT NOT NULL DEFAULT 'pending',
			acknowledged_by       TEXT,
			acknowledged_at       INTEGER,
			created_at            INTEGER NOT NULL,
			UNIQUE (schedule_id, date, hour)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_status ON staffing_alerts(status, severity)`,

		// Operator notifications
		`CREATE TABLE IF NOT EXISTS notifications (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			title       TEXT NOT NULL,
			body        TEXT NOT NULL,
			schedule_id TEXT,
			created_at  INTEGER NOT NULL,
			shown       BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at)`,

		// Cross-process job leases
		`CREATE TABLE IF NOT EXISTS job_locks (
			name       TEXT PRIMARY KEY,
			owner      TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func parseDate(s string) (time.Time, error) {
	t, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored date: %w", err)
	}
	return t, nil
}
