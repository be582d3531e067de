// Package daemon manages the staffcast daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/staffcast/staffcast/internal/app/accuracy"
	"github.com/staffcast/staffcast/internal/app/alerting"
	"github.com/staffcast/staffcast/internal/app/jobs"
	"github.com/staffcast/staffcast/internal/app/prediction"
	"github.com/staffcast/staffcast/internal/app/training"
	"github.com/staffcast/staffcast/internal/forecast"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Storage   StorageConfig   `toml:"storage"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
	Forecast  ForecastConfig  `toml:"forecast"`
	Accuracy  AccuracyConfig  `toml:"accuracy"`
	Alerts    AlertsConfig    `toml:"alerts"`
	Redis     RedisConfig     `toml:"redis"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// ArtifactsConfig locates trained model artifacts.
type ArtifactsConfig struct {
	Dir string `toml:"dir"`
}

// ForecastConfig controls training and prediction.
type ForecastConfig struct {
	WindowWeeks            int     `toml:"window_weeks"`
	MinRecords             int     `toml:"min_records"`
	TestFraction           float64 `toml:"test_fraction"`
	Seed                   uint64  `toml:"seed"`
	Estimators             int     `toml:"estimators"`
	MaxDepth               int     `toml:"max_depth"`
	MinSamplesSplit        int     `toml:"min_samples_split"`
	TrainingTimeout        string  `toml:"training_timeout"`
	OpenHour               int     `toml:"open_hour"`
	CloseHour              int     `toml:"close_hour"`
	StaffProductivityRatio float64 `toml:"staff_productivity_ratio"` // sales one person handles per hour
	AverageTicket          string  `toml:"average_ticket"`
	MaxRangeDays           int     `toml:"max_range_days"`
	ModelCacheTTL          string  `toml:"model_cache_ttl"`
	RetrainWindowWeeks     int     `toml:"retrain_window_weeks"`
	PredictionHorizonDays  int     `toml:"prediction_horizon_days"`
}

// AccuracyConfig controls drift detection.
type AccuracyConfig struct {
	RecentDays            int     `toml:"recent_days"`
	HistoricalDays        int     `toml:"historical_days"`
	RetrainDegradationPct float64 `toml:"retrain_degradation_pct"`
	Tolerance             int     `toml:"tolerance"`
	AutoRetrain           bool    `toml:"auto_retrain"`
}

// AlertsConfig holds the severity thresholds, in percent.
type AlertsConfig struct {
	CreationFloorPct float64 `toml:"creation_floor_pct"`
	MediumPct        float64 `toml:"medium_pct"`
	HighPct          float64 `toml:"high_pct"`
	CriticalPct      float64 `toml:"critical_pct"`
}

// RedisConfig enables the optional read cache and event publishing.
type RedisConfig struct {
	URL          string `toml:"url"` // empty disables redis
	ReadCacheTTL string `toml:"read_cache_ttl"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	homeDir := Home()
	tc := training.DefaultConfig()
	pc := prediction.DefaultConfig()
	ac := accuracy.DefaultConfig()
	al := alerting.DefaultConfig()
	jc := jobs.DefaultConfig()
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8420,
		},
		Storage:   StorageConfig{Dir: homeDir},
		Artifacts: ArtifactsConfig{Dir: filepath.Join(homeDir, "models")},
		Forecast: ForecastConfig{
			WindowWeeks:            tc.WindowWeeks,
			MinRecords:             tc.MinRecords,
			TestFraction:           tc.TestFraction,
			Seed:                   tc.Params.Seed,
			Estimators:             tc.Params.Estimators,
			MaxDepth:               tc.Params.MaxDepth,
			MinSamplesSplit:        tc.Params.MinSamplesSplit,
			TrainingTimeout:        tc.Timeout.String(),
			OpenHour:               pc.OpenHour,
			CloseHour:              pc.CloseHour,
			StaffProductivityRatio: pc.SalesPerStaff,
			AverageTicket:          pc.AverageTicket.String(),
			MaxRangeDays:           pc.MaxRangeDays,
			ModelCacheTTL:          pc.ModelCacheTTL.String(),
			RetrainWindowWeeks:     jc.RetrainWindowWeeks,
			PredictionHorizonDays:  jc.HorizonDays,
		},
		Accuracy: AccuracyConfig{
			RecentDays:            ac.RecentDays,
			HistoricalDays:        ac.HistoricalDays,
			RetrainDegradationPct: ac.RetrainDegradationPct,
			Tolerance:             ac.Tolerance,
			AutoRetrain:           jc.AutoRetrain,
		},
		Alerts: AlertsConfig{
			CreationFloorPct: al.CreationFloorPct,
			MediumPct:        al.MediumPct,
			HighPct:          al.HighPct,
			CriticalPct:      al.CriticalPct,
		},
		Redis: RedisConfig{
			ReadCacheTTL: pc.ReadCacheTTL.String(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads config from $STAFFCAST_HOME/config.toml, falling back
// to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $STAFFCAST_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Validate rejects settings the services cannot run with.
func (c Config) Validate() error {
	f := c.Forecast
	if f.OpenHour < 0 || f.CloseHour > 23 || f.OpenHour > f.CloseHour {
		return fmt.Errorf("forecast: operating hours %d..%d must lie within 0..23", f.OpenHour, f.CloseHour)
	}
	for name, v := range map[string]int{
		"window_weeks":            f.WindowWeeks,
		"min_records":             f.MinRecords,
		"estimators":              f.Estimators,
		"max_depth":               f.MaxDepth,
		"retrain_window_weeks":    f.RetrainWindowWeeks,
		"prediction_horizon_days": f.PredictionHorizonDays,
	} {
		if v < 1 {
			return fmt.Errorf("forecast: %s must be at least 1, got %d", name, v)
		}
	}
	if f.MinSamplesSplit < 2 {
		return fmt.Errorf("forecast: min_samples_split must be at least 2, got %d", f.MinSamplesSplit)
	}
	if f.MaxRangeDays < 0 {
		return fmt.Errorf("forecast: max_range_days must not be negative (0 disables the limit)")
	}
	if f.StaffProductivityRatio <= 0 {
		return fmt.Errorf("forecast: staff_productivity_ratio must be positive")
	}
	if f.TestFraction <= 0 || f.TestFraction >= 1 {
		return fmt.Errorf("forecast: test_fraction must be in (0, 1)")
	}
	if _, err := decimal.NewFromString(f.AverageTicket); err != nil {
		return fmt.Errorf("forecast: average_ticket %q: %w", f.AverageTicket, err)
	}
	for name, v := range map[string]string{
		"forecast.training_timeout": f.TrainingTimeout,
		"forecast.model_cache_ttl":  f.ModelCacheTTL,
		"redis.read_cache_ttl":      c.Redis.ReadCacheTTL,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	ac := c.Accuracy
	if ac.RecentDays < 1 || ac.HistoricalDays < 1 {
		return fmt.Errorf("accuracy: recent_days and historical_days must be at least 1")
	}
	if ac.Tolerance < 0 {
		return fmt.Errorf("accuracy: tolerance must not be negative")
	}
	a := c.Alerts
	if a.CreationFloorPct < 0 {
		return fmt.Errorf("alerts: creation_floor_pct must not be negative")
	}
	if !(a.MediumPct <= a.HighPct && a.HighPct <= a.CriticalPct) {
		return fmt.Errorf("alerts: thresholds must satisfy medium <= high <= critical")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Logging.Format)
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// ─── Service Configs ────────────────────────────────────────────────────────

// TrainingConfig projects the [forecast] section onto the trainer.
func (c Config) TrainingConfig() training.Config {
	d := training.DefaultConfig()
	return training.Config{
		WindowWeeks:  c.Forecast.WindowWeeks,
		MinRecords:   c.Forecast.MinRecords,
		TestFraction: c.Forecast.TestFraction,
		Params: forecast.Params{
			Estimators:      c.Forecast.Estimators,
			MaxDepth:        c.Forecast.MaxDepth,
			MinSamplesSplit: c.Forecast.MinSamplesSplit,
			Seed:            c.Forecast.Seed,
		},
		Timeout: parseDuration(c.Forecast.TrainingTimeout, d.Timeout),
	}
}

// PredictionConfig projects the [forecast] and [redis] sections onto the
// predictor.
func (c Config) PredictionConfig() prediction.Config {
	d := prediction.DefaultConfig()
	ticket, err := decimal.NewFromString(c.Forecast.AverageTicket)
	if err != nil {
		ticket = d.AverageTicket
	}
	return prediction.Config{
		OpenHour:      c.Forecast.OpenHour,
		CloseHour:     c.Forecast.CloseHour,
		SalesPerStaff: c.Forecast.StaffProductivityRatio,
		AverageTicket: ticket,
		MaxRangeDays:  c.Forecast.MaxRangeDays,
		ModelCacheTTL: parseDuration(c.Forecast.ModelCacheTTL, d.ModelCacheTTL),
		ReadCacheTTL:  parseDuration(c.Redis.ReadCacheTTL, d.ReadCacheTTL),
	}
}

// AccuracyConfig projects the [accuracy] section onto the tracker.
func (c Config) AccuracyConfig() accuracy.Config {
	return accuracy.Config{
		RecentDays:            c.Accuracy.RecentDays,
		HistoricalDays:        c.Accuracy.HistoricalDays,
		RetrainDegradationPct: c.Accuracy.RetrainDegradationPct,
		Tolerance:             c.Accuracy.Tolerance,
	}
}

// AlertingConfig projects the [alerts] section onto the alert engine.
func (c Config) AlertingConfig() alerting.Config {
	return alerting.Config{
		CreationFloorPct: c.Alerts.CreationFloorPct,
		MediumPct:        c.Alerts.MediumPct,
		HighPct:          c.Alerts.HighPct,
		CriticalPct:      c.Alerts.CriticalPct,
	}
}

// JobsConfig projects the retraining and horizon settings onto the job
// runner.
func (c Config) JobsConfig() jobs.Config {
	d := jobs.DefaultConfig()
	d.AutoRetrain = c.Accuracy.AutoRetrain
	d.RetrainWindowWeeks = c.Forecast.RetrainWindowWeeks
	d.HorizonDays = c.Forecast.PredictionHorizonDays
	return d
}

// NewLogger builds the root logger described by the [logging] section.
func NewLogger(cfg LoggingConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	out := w
	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// ConfigPath returns the location of config.toml.
func ConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// Home returns the staffcast data directory.
func Home() string {
	if env := os.Getenv("STAFFCAST_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".staffcast")
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
