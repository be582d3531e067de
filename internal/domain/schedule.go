package domain

import "time"

// ─── Schedules (read-only view) ─────────────────────────────────────────────
// Schedules and shifts are owned by the external schedule editor; this
// service only reads them to compare committed staffing with forecasts.

// Schedule is a published staffing plan covering [StartDate, EndDate].
type Schedule struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status"`
}

// Shift is one employee's assignment on a schedule.
// StartTime and EndTime are minutes since midnight; an EndTime at or before
// StartTime is not a valid shift and is ignored when counting coverage.
type Shift struct {
	ID         string    `json:"id"`
	ScheduleID string    `json:"schedule_id"`
	EmployeeID string    `json:"employee_id"`
	ShiftDate  time.Time `json:"shift_date"`
	StartTime  int       `json:"start_time"`
	EndTime    int       `json:"end_time"`
}

// Covers reports whether the shift overlaps the clock hour [hour:00, hour+1:00).
func (s Shift) Covers(hour int) bool {
	if s.EndTime <= s.StartTime {
		return false
	}
	from, to := hour*60, (hour+1)*60
	return s.StartTime < to && s.EndTime > from
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(m int) string {
	return time.Date(0, 1, 1, m/60, m%60, 0, 0, time.UTC).Format("15:04")
}
