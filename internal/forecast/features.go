// Package forecast holds the demand model: feature construction, scaling,
// the bagged regression-tree ensemble, and the serialized artifact.
// Everything here is pure computation; storage and scheduling live elsewhere.
package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/staffcast/staffcast/internal/domain"
)

// FeatureNames lists the model inputs in vector order. The order is part of
// the artifact format; append only.
var FeatureNames = []string{
	"hour",
	"day_of_week",
	"is_weekend",
	"is_morning",
	"is_afternoon",
	"is_evening",
	"is_holiday",
	"holiday_impact",
	"hour_sin",
	"hour_cos",
	"day_sin",
	"day_cos",
}

// NumFeatures is the length of every feature vector.
const NumFeatures = 12

// Calendar answers holiday lookups for feature construction.
type Calendar interface {
	// Lookup reports whether date is an exception and its demand multiplier.
	// Dates without an exception return (false, domain.DefaultImpact).
	Lookup(date time.Time) (isHoliday bool, impact float64)
}

// NoHolidays is a Calendar with no exceptions.
type NoHolidays struct{}

// Lookup always reports a regular day.
func (NoHolidays) Lookup(time.Time) (bool, float64) { return false, domain.DefaultImpact }

// Features builds the vector for one operating hour. dayOfWeek is 0 for
// Monday; hour and dayOfWeek outside [0,23] and [0,6] are rejected.
func Features(date time.Time, hour, dayOfWeek int, cal Calendar) ([]float64, error) {
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("hour %d: %w", hour, domain.ErrInvalidFeatureSlot)
	}
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return nil, fmt.Errorf("day_of_week %d: %w", dayOfWeek, domain.ErrInvalidFeatureSlot)
	}
	if cal == nil {
		cal = NoHolidays{}
	}
	holiday, impact := cal.Lookup(domain.Day(date))

	h, d := float64(hour), float64(dayOfWeek)
	return []float64{
		h,
		d,
		flag(dayOfWeek >= 5),
		flag(hour >= 6 && hour < 12),
		flag(hour >= 12 && hour < 18),
		flag(hour >= 18),
		flag(holiday),
		impact,
		math.Sin(2 * math.Pi * h / 24),
		math.Cos(2 * math.Pi * h / 24),
		math.Sin(2 * math.Pi * d / 7),
		math.Cos(2 * math.Pi * d / 7),
	}, nil
}

// FeaturesForDate derives the day of week from date.
func FeaturesForDate(date time.Time, hour int, cal Calendar) ([]float64, error) {
	return Features(date, hour, domain.DayOfWeek(date), cal)
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
