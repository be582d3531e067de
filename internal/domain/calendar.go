package domain

import "time"

// ─── Calendar Exceptions ────────────────────────────────────────────────────

// HolidayCategory classifies a calendar exception.
type HolidayCategory string

const (
	HolidayNational HolidayCategory = "national"
	HolidayLocal    HolidayCategory = "local"
	HolidaySpecial  HolidayCategory = "special"
)

// Valid reports whether c is a known category.
func (c HolidayCategory) Valid() bool {
	switch c {
	case HolidayNational, HolidayLocal, HolidaySpecial:
		return true
	}
	return false
}

// DefaultImpact is the demand multiplier for a date with no exception.
const DefaultImpact = 1.0

// CalendarException is a holiday or special event on one date.
// ImpactMultiplier scales expected demand: 0.3 is a quiet day, 1.8 a rush.
type CalendarException struct {
	ID               string          `json:"id"`
	Date             time.Time       `json:"date"`
	Name             string          `json:"name"`
	Category         HolidayCategory `json:"category"`
	ImpactMultiplier float64         `json:"impact_multiplier"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// HolidaySeed is one entry of a holiday set passed to the calendar initializer.
type HolidaySeed struct {
	Date     string
	Name     string
	Category HolidayCategory
	Impact   float64
}
