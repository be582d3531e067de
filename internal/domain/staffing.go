package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Staffing ───────────────────────────────────────────────────────────────
// Observations, predictions and accuracy records. Every hourly entity is
// keyed by (date, hour); storage enforces that key.

// ObservedMetric is the ground truth for one operating hour.
// Written by the external collector once the day is known.
type ObservedMetric struct {
	Date                time.Time       `json:"date"`
	Hour                int             `json:"hour"`
	DayOfWeek           int             `json:"day_of_week"` // 0=Monday
	ScheduledStaffCount int             `json:"scheduled_staff_count"`
	PresentStaffCount   *int            `json:"present_staff_count,omitempty"`
	SalesCount          int             `json:"sales_count"`
	SalesAmount         decimal.Decimal `json:"sales_amount"`
	IsHoliday           bool            `json:"is_holiday"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ActualStaff is the staff count an hour really had: the recorded
// attendance when present, otherwise the scheduled count.
func (m ObservedMetric) ActualStaff() int {
	if m.PresentStaffCount != nil {
		return *m.PresentStaffCount
	}
	return m.ScheduledStaffCount
}

// Prediction is the persisted recommendation for one (date, hour).
type Prediction struct {
	Date                  time.Time       `json:"date"`
	Hour                  int             `json:"hour"`
	PredictedSalesCount   int             `json:"predicted_sales_count"`
	PredictedSalesAmount  decimal.Decimal `json:"predicted_sales_amount"`
	RecommendedStaffCount int             `json:"recommended_staff_count"`
	ConfidenceScore       float64         `json:"confidence_score"`
	ModelVersion          string          `json:"model_version"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// Recommendation is the per-hour view returned to schedulers.
type Recommendation struct {
	Hour                  int             `json:"hour"`
	PredictedSalesCount   int             `json:"predicted_sales_count"`
	PredictedSalesAmount  decimal.Decimal `json:"predicted_sales_amount"`
	RecommendedStaffCount int             `json:"recommended_staff_count"`
	ConfidenceScore       float64         `json:"confidence_score"`
}

// Recommendation projects a prediction onto the scheduler view.
func (p Prediction) Recommendation() Recommendation {
	return Recommendation{
		Hour:                  p.Hour,
		PredictedSalesCount:   p.PredictedSalesCount,
		PredictedSalesAmount:  p.PredictedSalesAmount,
		RecommendedStaffCount: p.RecommendedStaffCount,
		ConfidenceScore:       p.ConfidenceScore,
	}
}

// DailyRecommendations groups recommendations by date, ordered by hour.
type DailyRecommendations struct {
	Date  string           `json:"date"`
	Hours []Recommendation `json:"hours"`
}

// DailySummary condenses one date's recommendations.
type DailySummary struct {
	Date                 string          `json:"date"`
	TotalPredictedSales  int             `json:"total_predicted_sales"`
	TotalPredictedAmount decimal.Decimal `json:"total_predicted_amount"`
	PeakHour             int             `json:"peak_hour"`
	PeakStaffNeeded      int             `json:"peak_staff_needed"`
	AvgStaffNeeded       float64         `json:"avg_staff_needed"`
}

// RecommendationSummary is the per-date overview of a prediction range.
type RecommendationSummary struct {
	HasPredictions bool           `json:"has_predictions"`
	Days           []DailySummary `json:"daily_summary"`
	ModelVersion   string         `json:"model_version,omitempty"`  // newest version in the range
	ModelVersions  []string       `json:"model_versions,omitempty"` // every version that scored the range
}

// AccuracyRecord joins a prediction with what actually happened.
type AccuracyRecord struct {
	Date                  time.Time       `json:"date"`
	Hour                  int             `json:"hour"`
	PredictedSalesCount   int             `json:"predicted_sales_count"`
	PredictedSalesAmount  decimal.Decimal `json:"predicted_sales_amount"`
	RecommendedStaffCount int             `json:"recommended_staff_count"`
	ActualSalesCount      int             `json:"actual_sales_count"`
	ActualSalesAmount     decimal.Decimal `json:"actual_sales_amount"`
	ActualStaffCount      int             `json:"actual_staff_count"`
	SalesCountError       float64         `json:"sales_count_error"`
	SalesAmountError      float64         `json:"sales_amount_error"`
	StaffCountError       float64         `json:"staff_count_error"`
	ModelVersion          string          `json:"model_version"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// AccuracyMetrics aggregates accuracy records over a date range.
type AccuracyMetrics struct {
	Start           string  `json:"start_date"`
	End             string  `json:"end_date"`
	TotalRecords    int     `json:"total_records"`
	SalesCountMAE   float64 `json:"sales_count_mae"`
	SalesCountMAPE  float64 `json:"sales_count_mape"`
	WithinTolerance float64 `json:"within_tolerance"` // fraction in [0, 1]
	SalesAmountMAPE float64 `json:"sales_amount_mape"`
	StaffCountMAPE  float64 `json:"staff_count_mape"`
}

// ErrorBucket is the average error for one hour of day or day of week.
type ErrorBucket struct {
	Key         int     `json:"key"`
	AvgErrorPct float64 `json:"avg_error_percentage"`
	SampleSize  int     `json:"sample_size"`
}

// RetrainDecision reports whether accuracy has drifted enough to retrain.
type RetrainDecision struct {
	ShouldRetrain         bool     `json:"should_retrain"`
	RecentMAPE            *float64 `json:"recent_mape"`
	HistoricalMAPE        *float64 `json:"historical_mape"`
	DegradationPercentage float64  `json:"degradation_percentage"`
	Reason                string   `json:"reason"`
}
