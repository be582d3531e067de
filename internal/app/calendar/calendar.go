// Package calendar manages holidays and special events and exposes
// immutable snapshots of them for feature construction.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/staffcast/staffcast/internal/domain"
)

// Store is the persistence the registry needs.
type Store interface {
	InsertCalendarException(ctx context.Context, e domain.CalendarException) error
	CalendarExceptionOn(ctx context.Context, date time.Time) (*domain.CalendarException, error)
	CalendarExceptionsBetween(ctx context.Context, start, end time.Time) ([]domain.CalendarException, error)
	DeleteCalendarException(ctx context.Context, id string) error
}

// Registry manages calendar exceptions.
type Registry struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewRegistry creates a calendar registry.
func NewRegistry(store Store, log zerolog.Logger) *Registry {
	return &Registry{
		store: store,
		log:   log.With().Str("component", "calendar").Logger(),
		now:   time.Now,
	}
}

// IsHoliday reports whether date has an exception.
func (r *Registry) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	e, err := r.store.CalendarExceptionOn(ctx, domain.Day(date))
	if err != nil {
		return false, fmt.Errorf("lookup holiday: %w", err)
	}
	return e != nil, nil
}

// Get returns the exception on date, or nil.
func (r *Registry) Get(ctx context.Context, date time.Time) (*domain.CalendarException, error) {
	e, err := r.store.CalendarExceptionOn(ctx, domain.Day(date))
	if err != nil {
		return nil, fmt.Errorf("lookup holiday: %w", err)
	}
	return e, nil
}

// Add records an exception. Returns domain.ErrAlreadyExists if date is taken.
func (r *Registry) Add(ctx context.Context, date time.Time, name string, category domain.HolidayCategory, impact float64, notes string) (*domain.CalendarException, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: holiday name is required", domain.ErrInvalidInput)
	}
	if category == "" {
		category = domain.HolidaySpecial
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown holiday category %q", domain.ErrInvalidInput, category)
	}
	if impact <= 0 {
		return nil, fmt.Errorf("%w: impact multiplier must be positive, got %v", domain.ErrInvalidInput, impact)
	}

	e := domain.CalendarException{
		ID:               uuid.NewString(),
		Date:             domain.Day(date),
		Name:             name,
		Category:         category,
		ImpactMultiplier: impact,
		Notes:            notes,
		CreatedAt:        r.now(),
	}
	if err := r.store.InsertCalendarException(ctx, e); err != nil {
		return nil, err
	}
	r.log.Info().Str("date", domain.FormatDate(e.Date)).Str("name", name).
		Float64("impact", impact).Msg("calendar exception added")
	return &e, nil
}

// Delete removes an exception. Returns domain.ErrNotFound for unknown ids.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.store.DeleteCalendarException(ctx, id); err != nil {
		return err
	}
	r.log.Info().Str("id", id).Msg("calendar exception deleted")
	return nil
}

// Initialize seeds set, skipping dates that already have an exception.
// Returns how many were created.
func (r *Registry) Initialize(ctx context.Context, set []domain.HolidaySeed) (int, error) {
	created := 0
	for _, h := range set {
		date, err := domain.ParseDate(h.Date)
		if err != nil {
			return created, err
		}
		existing, err := r.store.CalendarExceptionOn(ctx, date)
		if err != nil {
			return created, fmt.Errorf("lookup holiday: %w", err)
		}
		if existing != nil {
			continue
		}
		e := domain.CalendarException{
			ID:               uuid.NewString(),
			Date:             date,
			Name:             h.Name,
			Category:         h.Category,
			ImpactMultiplier: h.Impact,
			CreatedAt:        r.now(),
		}
		err = r.store.InsertCalendarException(ctx, e)
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue // added concurrently
		}
		if err != nil {
			return created, err
		}
		created++
	}
	r.log.Info().Int("created", created).Int("seed_size", len(set)).Msg("calendar initialized")
	return created, nil
}

// ListYear returns the exceptions of one calendar year, by date.
func (r *Registry) ListYear(ctx context.Context, year int) ([]domain.CalendarException, error) {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)
	return r.store.CalendarExceptionsBetween(ctx, start, end)
}

// Snapshot loads exceptions in [start, end] into an immutable lookup.
func (r *Registry) Snapshot(ctx context.Context, start, end time.Time) (Snapshot, error) {
	list, err := r.store.CalendarExceptionsBetween(ctx, domain.Day(start), domain.Day(end))
	if err != nil {
		return Snapshot{}, fmt.Errorf("load calendar snapshot: %w", err)
	}
	impacts := make(map[string]float64, len(list))
	for _, e := range list {
		impacts[domain.FormatDate(e.Date)] = e.ImpactMultiplier
	}
	return Snapshot{impacts: impacts}, nil
}

// Snapshot is a read-only view of calendar exceptions. The zero value has
// no exceptions.
type Snapshot struct {
	impacts map[string]float64
}

// Lookup reports whether date is an exception and its demand multiplier.
func (s Snapshot) Lookup(date time.Time) (bool, float64) {
	if v, ok := s.impacts[domain.FormatDate(date)]; ok {
		return true, v
	}
	return false, domain.DefaultImpact
}

// Len returns the number of exceptions in the snapshot.
func (s Snapshot) Len() int { return len(s.impacts) }
