package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/staffcast/staffcast/internal/domain"
)

// ─── Services ───────────────────────────────────────────────────────────────

// Trainer fits a new model version.
type Trainer interface {
	Train(ctx context.Context, windowWeeks int) (*domain.TrainingResult, error)
}

// Predictor generates and serves recommendations.
type Predictor interface {
	GeneratePredictions(ctx context.Context, start, end time.Time) (*domain.GenerationResult, error)
	GetRecommendations(ctx context.Context, start, end time.Time) ([]domain.DailyRecommendations, error)
	Summary(ctx context.Context, start, end time.Time) (*domain.RecommendationSummary, error)
	Status(ctx context.Context) (domain.ModelStatus, error)
	Versions(ctx context.Context) ([]domain.ModelVersion, error)
}

// Tracker records and aggregates prediction accuracy.
type Tracker interface {
	UpdateForDate(ctx context.Context, date time.Time) (int, error)
	Metrics(ctx context.Context, start, end time.Time) (*domain.AccuracyMetrics, error)
	ByHour(ctx context.Context, start, end time.Time) ([]domain.ErrorBucket, error)
	ByDayOfWeek(ctx context.Context, start, end time.Time) ([]domain.ErrorBucket, error)
	ShouldRetrain(ctx context.Context) (*domain.RetrainDecision, error)
}

// Alerts manages staffing alerts.
type Alerts interface {
	CheckSchedule(ctx context.Context, scheduleID string) (*domain.CheckResult, error)
	Acknowledge(ctx context.Context, id, by string) (*domain.Alert, error)
	Resolve(ctx context.Context, id string) (*domain.Alert, error)
	Active(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error)
	Summary(ctx context.Context) (domain.AlertSummary, error)
}

// Calendar manages holidays and special events.
type Calendar interface {
	Add(ctx context.Context, date time.Time, name string, category domain.HolidayCategory, impact float64, notes string) (*domain.CalendarException, error)
	Delete(ctx context.Context, id string) error
	Initialize(ctx context.Context, set []domain.HolidaySeed) (int, error)
	ListYear(ctx context.Context, year int) ([]domain.CalendarException, error)
}

// Observations stores ground truth from the external collector.
type Observations interface {
	UpsertObservation(ctx context.Context, m domain.ObservedMetric) error
}

// Dashboard builds the operator overview.
type Dashboard interface {
	Stats(ctx context.Context) (*domain.Stats, error)
}

// Services bundles everything the /api/ml routes call into.
type Services struct {
	Trainer      Trainer
	Predictor    Predictor
	Tracker      Tracker
	Alerts       Alerts
	Calendar     Calendar
	Observations Observations
	Dashboard    Dashboard

	// HolidaySeed is loaded by POST /holidays/initialize.
	HolidaySeed []domain.HolidaySeed
}

// defaultAccuracyDays is the look-back of the accuracy endpoints when the
// caller gives no explicit range.
const defaultAccuracyDays = 30

// ─── Training & Prediction ──────────────────────────────────────────────────

type trainRequest struct {
	WindowWeeks int `json:"window_weeks"`
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if req.WindowWeeks < 0 {
		badRequest(w, "window_weeks must not be negative")
		return
	}

	res, err := s.svc.Trainer.Train(r.Context(), req.WindowWeeks)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type rangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	res, err := s.svc.Predictor.GeneratePredictions(r.Context(), start, end)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	start, end, err := queryRange(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	days, err := s.svc.Predictor.GetRecommendations(r.Context(), start, end)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"start_date":      domain.FormatDate(start),
		"end_date":        domain.FormatDate(end),
		"recommendations": days,
	})
}

func (s *Server) handleRecommendationSummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := queryRange(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	sum, err := s.svc.Predictor.Summary(r.Context(), start, end)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Predictor.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleModelVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.svc.Predictor.Versions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if versions == nil {
		versions = []domain.ModelVersion{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}

// ─── Accuracy ───────────────────────────────────────────────────────────────

func (s *Server) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	start, end, err := s.accuracyWindow(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	m, err := s.svc.Tracker.Metrics(r.Context(), start, end)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleAccuracyByHour(w http.ResponseWriter, r *http.Request) {
	s.writeBuckets(w, r, "by_hour", s.svc.Tracker.ByHour)
}

func (s *Server) handleAccuracyByDay(w http.ResponseWriter, r *http.Request) {
	s.writeBuckets(w, r, "by_day_of_week", s.svc.Tracker.ByDayOfWeek)
}

func (s *Server) writeBuckets(w http.ResponseWriter, r *http.Request, key string,
	fn func(ctx context.Context, start, end time.Time) ([]domain.ErrorBucket, error)) {
	start, end, err := s.accuracyWindow(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	buckets, err := fn(r.Context(), start, end)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"start_date": domain.FormatDate(start),
		"end_date":   domain.FormatDate(end),
		key:          buckets,
	})
}

type dateRequest struct {
	Date string `json:"date"`
}

func (s *Server) handleAccuracyUpdate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	// Defaults to yesterday, the last complete day.
	date := domain.Day(s.now()).AddDate(0, 0, -1)
	if req.Date != "" {
		d, err := domain.ParseDate(req.Date)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		date = d
	}

	n, err := s.svc.Tracker.UpdateForDate(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":            domain.FormatDate(date),
		"records_updated": n,
	})
}

func (s *Server) handleRetrainCheck(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Tracker.ShouldRetrain(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// accuracyWindow reads start_date/end_date, or falls back to the last
// ?days (default 30) ending today.
func (s *Server) accuracyWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	if q.Get("start_date") != "" || q.Get("end_date") != "" {
		return queryRange(r)
	}
	days := defaultAccuracyDays
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("days must be a positive integer, got %q", v)
		}
		days = n
	}
	end := domain.Day(s.now())
	return end.AddDate(0, 0, -days), end, nil
}

// ─── Alerts ─────────────────────────────────────────────────────────────────

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	f := domain.AlertFilter{
		ScheduleID: r.URL.Query().Get("schedule_id"),
		Severity:   domain.Severity(r.URL.Query().Get("severity")),
	}
	if f.Severity != "" && f.Severity.Rank() < 0 {
		badRequest(w, fmt.Sprintf("unknown severity %q", f.Severity))
		return
	}
	alerts, err := s.svc.Alerts.Active(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"total":  len(alerts),
	})
}

func (s *Server) handleAlertSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Alerts.Summary(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type acknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

func (s *Server) handleAlertAcknowledge(w http.ResponseWriter, r *http.Request) {
	var req acknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.AcknowledgedBy == "" {
		badRequest(w, "acknowledged_by is required")
		return
	}
	a, err := s.svc.Alerts.Acknowledge(r.Context(), chi.URLParam(r, "id"), req.AcknowledgedBy)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAlertResolve(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Alerts.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleCheckSchedule(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Alerts.CheckSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Calendar ───────────────────────────────────────────────────────────────

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	year := s.now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			badRequest(w, fmt.Sprintf("invalid year %q", v))
			return
		}
		year = y
	}
	list, err := s.svc.Calendar.ListYear(r.Context(), year)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []domain.CalendarException{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"year":     year,
		"holidays": list,
	})
}

type holidayRequest struct {
	Date             string   `json:"date"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	ImpactMultiplier *float64 `json:"impact_multiplier"`
	Notes            string   `json:"notes"`
}

func (s *Server) handleAddHoliday(w http.ResponseWriter, r *http.Request) {
	var req holidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	impact := domain.DefaultImpact
	if req.ImpactMultiplier != nil {
		impact = *req.ImpactMultiplier
	}

	e, err := s.svc.Calendar.Add(r.Context(), date, req.Name, domain.HolidayCategory(req.Category), impact, req.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleInitializeHolidays(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Calendar.Initialize(r.Context(), s.svc.HolidaySeed)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"created": n,
		"total":   len(s.svc.HolidaySeed),
	})
}

func (s *Server) handleDeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Calendar.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Observations & Stats ───────────────────────────────────────────────────

type observationRequest struct {
	Date                string          `json:"date"`
	Hour                int             `json:"hour"`
	ScheduledStaffCount int             `json:"scheduled_staff_count"`
	PresentStaffCount   *int            `json:"present_staff_count"`
	SalesCount          int             `json:"sales_count"`
	SalesAmount         decimal.Decimal `json:"sales_amount"`
	IsHoliday           bool            `json:"is_holiday"`
}

func (req observationRequest) validate() error {
	switch {
	case req.Hour < 0 || req.Hour > 23:
		return fmt.Errorf("hour must be in [0, 23], got %d", req.Hour)
	case req.ScheduledStaffCount < 0:
		return fmt.Errorf("scheduled_staff_count must not be negative")
	case req.PresentStaffCount != nil && *req.PresentStaffCount < 0:
		return fmt.Errorf("present_staff_count must not be negative")
	case req.SalesCount < 0:
		return fmt.Errorf("sales_count must not be negative")
	case req.SalesAmount.IsNegative():
		return fmt.Errorf("sales_amount must not be negative")
	}
	return nil
}

func (s *Server) handleObservation(w http.ResponseWriter, r *http.Request) {
	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		badRequest(w, err.Error())
		return
	}

	m := domain.ObservedMetric{
		Date:                date,
		Hour:                req.Hour,
		DayOfWeek:           domain.DayOfWeek(date),
		ScheduledStaffCount: req.ScheduledStaffCount,
		PresentStaffCount:   req.PresentStaffCount,
		SalesCount:          req.SalesCount,
		SalesAmount:         req.SalesAmount,
		IsHoliday:           req.IsHoliday,
	}
	if err := s.svc.Observations.UpsertObservation(r.Context(), m); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Dashboard.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ─── Request Helpers ────────────────────────────────────────────────────────

// decodeOptional decodes a JSON body when one is present. It writes a 400
// and returns false on malformed input.
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// queryRange reads the required start_date and end_date query parameters.
func queryRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	return parseRange(q.Get("start_date"), q.Get("end_date"))
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date and end_date are required")
	}
	start, err := domain.ParseDate(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := domain.ParseDate(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
