package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/staffcast/staffcast/internal/domain"
	"github.com/staffcast/staffcast/internal/infra/cache"
	"github.com/staffcast/staffcast/internal/infra/registry"
	"github.com/staffcast/staffcast/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestChecker(t *testing.T) (*Checker, *sqlite.DB, *registry.Store) {
	t.Helper()
	db := newTestDB(t)
	store := registry.NewStore(filepath.Join(t.TempDir(), "artifacts"))
	if err := store.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	return NewChecker(db, store, cache.Disabled(), zerolog.Nop()), db, store
}

func statusOf(t *testing.T, c *Checker, name string) Status {
	t.Helper()
	for _, s := range c.Statuses() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("check %q not found in statuses", name)
	return Status{}
}

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	c, _, _ := newTestChecker(t)
	if len(c.checks) != 3 {
		t.Errorf("checks = %d, want 3 (redis disabled)", len(c.checks))
	}
}

func TestChecker_FreshInstall(t *testing.T) {
	c, _, _ := newTestChecker(t)
	c.RunOnce(context.Background())

	if s := statusOf(t, c, "sqlite"); !s.Healthy {
		t.Errorf("sqlite should be healthy, got error: %s", s.Error)
	}
	if s := statusOf(t, c, "artifacts"); !s.Healthy {
		t.Errorf("artifacts should be healthy, got error: %s", s.Error)
	}
	if s := statusOf(t, c, "active_model"); s.Healthy {
		t.Error("active_model should fail before the first training")
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should ignore the non-critical active_model check")
	}
}

func TestChecker_ActiveModel(t *testing.T) {
	c, db, _ := newTestChecker(t)
	err := db.ActivateModelVersion(context.Background(), domain.ModelVersion{
		ID: "id-1", Version: "v1", TrainedAt: time.Now(), ArtifactDigest: "abc",
	})
	if err != nil {
		t.Fatalf("ActivateModelVersion() error: %v", err)
	}
	c.RunOnce(context.Background())

	if s := statusOf(t, c, "active_model"); !s.Healthy {
		t.Errorf("active_model should be healthy, got error: %s", s.Error)
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c, _, _ := newTestChecker(t)

	// Before any run, there are no statuses, so IsHealthy is vacuously true
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_ArtifactsRecovery(t *testing.T) {
	c, _, store := newTestChecker(t)
	if err := os.RemoveAll(store.Dir()); err != nil {
		t.Fatal(err)
	}

	c.RunOnce(context.Background())
	if s := statusOf(t, c, "artifacts"); s.Healthy {
		t.Error("artifacts should fail while the directory is missing")
	}
	if c.IsHealthy() {
		t.Error("IsHealthy() should be false when a critical check fails")
	}

	// Recovery recreated the directory; the next pass is clean.
	c.RunOnce(context.Background())
	if s := statusOf(t, c, "artifacts"); !s.Healthy {
		t.Errorf("artifacts should recover, got error: %s", s.Error)
	}
}

func TestChecker_SQLiteClosed(t *testing.T) {
	c, db, _ := newTestChecker(t)
	db.Close()

	c.RunOnce(context.Background())
	if s := statusOf(t, c, "sqlite"); s.Healthy {
		t.Error("sqlite should fail after close")
	}
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	c, _, _ := newTestChecker(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if len(c.Statuses()) != 3 {
		t.Errorf("Statuses() = %d, want 3 after the initial pass", len(c.Statuses()))
	}
}
