package sqlite

import (
	"context"
	"fmt"
	"time"
)

// ─── Job Leases ─────────────────────────────────────────────────────────────
// A lease row serializes long jobs across processes sharing one state.db.
// An expired lease may be taken over by any owner.

// AcquireLease takes the named lease for owner until now+ttl. Returns false
// when another owner holds an unexpired lease. The check and the write are
// one statement, so contending processes wait on the busy timeout instead
// of failing a read-to-write upgrade.
func (d *DB) AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := d.now()
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO job_locks (name, owner, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET owner=excluded.owner, expires_at=excluded.expires_at
		 WHERE job_locks.expires_at <= ? OR job_locks.owner = excluded.owner`,
		name, owner, now.Add(ttl).Unix(), now.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	return n == 1, nil
}

// ReleaseLease drops the named lease if owner still holds it.
func (d *DB) ReleaseLease(ctx context.Context, name, owner string) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM job_locks WHERE name = ? AND owner = ?`, name, owner)
	if err != nil {
		return fmt.Errorf("release lease %s: %w", name, err)
	}
	return nil
}
