// Package health provides periodic health checks with auto-recovery.
// Checks run once at startup and then every interval.
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/staffcast/staffcast/internal/domain"
	"github.com/staffcast/staffcast/internal/infra/metrics"
)

// Check defines a single health check with optional recovery action.
// A failing non-critical check is reported but does not make the service
// unhealthy.
type Check struct {
	Name      string
	Critical  bool
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Critical  bool      `json:"critical"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// ─── Probed Components ──────────────────────────────────────────────────────

// Store is the database probe.
type Store interface {
	Ping(ctx context.Context) error
	ActiveModelVersion(ctx context.Context) (*domain.ModelVersion, error)
}

// Artifacts is the artifact directory probe.
type Artifacts interface {
	Writable() error
	Init() error
}

// Cache is the optional Redis probe.
type Cache interface {
	Available() bool
	Ping(ctx context.Context) error
}

var errNoActiveModel = errors.New("no active model version")

// ─── Checker ────────────────────────────────────────────────────────────────

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	log      zerolog.Logger
}

// NewChecker creates a health checker with the standard checks. The redis
// check is added only when c is connected.
func NewChecker(store Store, artifacts Artifacts, c Cache, log zerolog.Logger) *Checker {
	checks := []Check{
		{
			Name:     "sqlite",
			Critical: true,
			CheckFn:  store.Ping,
			RecoverFn: func(ctx context.Context) error {
				return nil // SQLite auto-recovers via WAL
			},
		},
		{
			Name:     "artifacts",
			Critical: true,
			CheckFn: func(ctx context.Context) error {
				return artifacts.Writable()
			},
			RecoverFn: func(ctx context.Context) error {
				return artifacts.Init()
			},
		},
		{
			Name: "active_model",
			CheckFn: func(ctx context.Context) error {
				mv, err := store.ActiveModelVersion(ctx)
				if err != nil {
					return err
				}
				if mv == nil {
					return errNoActiveModel
				}
				return nil
			},
		},
	}
	if c != nil && c.Available() {
		checks = append(checks, Check{Name: "redis", CheckFn: c.Ping})
	}
	return &Checker{
		interval: 60 * time.Second,
		checks:   checks,
		log:      log.With().Str("component", "health").Logger(),
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs every check and records the results.
func (c *Checker) RunOnce(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			Critical:  check.Critical,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Error = err.Error()
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
			c.log.Warn().Err(err).Str("check", check.Name).Msg("health check failed")
			// Attempt recovery
			if check.RecoverFn != nil {
				metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
				if rerr := check.RecoverFn(ctx); rerr != nil {
					c.log.Error().Err(rerr).Str("check", check.Name).Msg("recovery failed")
				}
			}
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if every critical check passes.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if s.Critical && !s.Healthy {
			return false
		}
	}
	return true
}
