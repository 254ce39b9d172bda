// Package config loads and validates the engine configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"voiceauth/internal/audio"
)

// Config represents the engine configuration
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Audio        AudioConfig        `json:"audio,omitempty"`
	Extractor    ExtractorConfig    `json:"extractor,omitempty"`
	Enrollment   EnrollmentConfig   `json:"enrollment,omitempty"`
	Verification VerificationConfig `json:"verification,omitempty"`
	Audit        AuditConfig        `json:"audit,omitempty"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `json:"address,omitempty"`
	Port    int    `json:"port"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `json:"path"`
}

// AudioConfig bounds incoming captures
type AudioConfig struct {
	MinDurationSec float64 `json:"min_duration_sec,omitempty"`
	MaxDurationSec float64 `json:"max_duration_sec,omitempty"`
	MinSampleRate  int     `json:"min_sample_rate,omitempty"`
	MaxSampleRate  int     `json:"max_sample_rate,omitempty"`
}

// ExtractorConfig contains feature extractor settings
type ExtractorConfig struct {
	Dimensions       int     `json:"dimensions,omitempty"`
	SilenceThreshold float64 `json:"silence_threshold,omitempty"`
	MinVoicedSec     float64 `json:"min_voiced_sec,omitempty"`
}

// EnrollmentConfig contains enrollment policy settings
type EnrollmentConfig struct {
	MinSuccessfulSamples int     `json:"min_successful_samples,omitempty"`
	MaxCaptureAttempts   int     `json:"max_capture_attempts,omitempty"`
	ConsistencyThreshold float64 `json:"consistency_threshold,omitempty"`
	MinQuality           float64 `json:"min_quality,omitempty"`
}

// VerificationConfig contains decision and lockout policy settings
type VerificationConfig struct {
	// Threshold is the accept threshold tau. Exposed as configuration, not a
	// constant: tuning it trades false accepts against false rejects.
	Threshold              float64 `json:"threshold,omitempty"`
	MaxFailedAttempts      int     `json:"max_failed_attempts,omitempty"`
	WindowSeconds          int     `json:"window_seconds,omitempty"`
	CleanupIntervalSeconds int     `json:"cleanup_interval_seconds,omitempty"`
	// CalibrationPath optionally points at a YAML calibration profile that
	// overrides the static thresholds.
	CalibrationPath string `json:"calibration_path,omitempty"`
}

// AuditConfig contains audit log retention settings
type AuditConfig struct {
	RetentionDays int `json:"retention_days,omitempty"`
	// PruneSchedule is a cron expression (with seconds) for the retention sweep.
	PruneSchedule string `json:"prune_schedule,omitempty"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Address: "0.0.0.0", Port: 8443},
		Database: DatabaseConfig{Path: "voiceauth.db"},
		Audio: AudioConfig{
			MinDurationSec: 2.0,
			MaxDurationSec: 15.0,
			MinSampleRate:  8000,
			MaxSampleRate:  48000,
		},
		Extractor: ExtractorConfig{
			Dimensions:       64,
			SilenceThreshold: 0.01,
			MinVoicedSec:     1.0,
		},
		Enrollment: EnrollmentConfig{
			MinSuccessfulSamples: 3,
			MaxCaptureAttempts:   5,
			ConsistencyThreshold: 0.80,
			MinQuality:           0.50,
		},
		Verification: VerificationConfig{
			Threshold:              0.85,
			MaxFailedAttempts:      5,
			WindowSeconds:          300,
			CleanupIntervalSeconds: 60,
		},
		Audit: AuditConfig{
			RetentionDays: 90,
			PruneSchedule: "0 0 3 * * *",
		},
	}
}

// Load loads configuration from a file. Missing fields fall back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d outside [1, 65535]", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if err := c.Audio.Validate(); err != nil {
		return err
	}
	if err := c.Extractor.Validate(); err != nil {
		return err
	}
	if err := c.Enrollment.Validate(); err != nil {
		return err
	}
	if err := c.Verification.Validate(); err != nil {
		return err
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit retention_days must not be negative")
	}
	return nil
}

// Validate validates audio capture bounds
func (a *AudioConfig) Validate() error {
	if a.MinDurationSec <= 0 || a.MaxDurationSec <= 0 {
		return fmt.Errorf("audio durations must be positive")
	}
	if a.MinDurationSec >= a.MaxDurationSec {
		return fmt.Errorf("audio min_duration_sec %.1f must be below max_duration_sec %.1f",
			a.MinDurationSec, a.MaxDurationSec)
	}
	if a.MinSampleRate <= 0 || a.MaxSampleRate < a.MinSampleRate {
		return fmt.Errorf("audio sample rate bounds [%d, %d] invalid", a.MinSampleRate, a.MaxSampleRate)
	}
	return nil
}

// Validate validates extractor settings
func (e *ExtractorConfig) Validate() error {
	if e.Dimensions < 2 {
		return fmt.Errorf("extractor dimensions %d must be at least 2", e.Dimensions)
	}
	if e.SilenceThreshold <= 0 || e.SilenceThreshold >= 1 {
		return fmt.Errorf("extractor silence_threshold %.4f outside (0, 1)", e.SilenceThreshold)
	}
	if e.MinVoicedSec <= 0 {
		return fmt.Errorf("extractor min_voiced_sec must be positive")
	}
	return nil
}

// Validate validates enrollment policy
func (e *EnrollmentConfig) Validate() error {
	if e.MinSuccessfulSamples < 1 {
		return fmt.Errorf("enrollment min_successful_samples must be at least 1")
	}
	if e.MaxCaptureAttempts < e.MinSuccessfulSamples {
		return fmt.Errorf("enrollment max_capture_attempts %d below min_successful_samples %d",
			e.MaxCaptureAttempts, e.MinSuccessfulSamples)
	}
	if e.ConsistencyThreshold < 0 || e.ConsistencyThreshold >= 1 {
		return fmt.Errorf("enrollment consistency_threshold %.3f outside [0, 1)", e.ConsistencyThreshold)
	}
	if e.MinQuality < 0 || e.MinQuality > 1 {
		return fmt.Errorf("enrollment min_quality %.3f outside [0, 1]", e.MinQuality)
	}
	return nil
}

// Validate validates verification policy
func (v *VerificationConfig) Validate() error {
	if v.Threshold <= -1 || v.Threshold >= 1 {
		return fmt.Errorf("verification threshold %.3f outside (-1, 1)", v.Threshold)
	}
	if v.MaxFailedAttempts < 1 {
		return fmt.Errorf("verification max_failed_attempts must be at least 1")
	}
	if v.WindowSeconds < 1 {
		return fmt.Errorf("verification window_seconds must be at least 1")
	}
	if v.CleanupIntervalSeconds < 1 {
		return fmt.Errorf("verification cleanup_interval_seconds must be at least 1")
	}
	return nil
}

// Constraints returns the audio constraints carried by the config.
func (a *AudioConfig) Constraints() audio.Constraints {
	return audio.Constraints{
		MinDurationSec: a.MinDurationSec,
		MaxDurationSec: a.MaxDurationSec,
		MinSampleRate:  a.MinSampleRate,
		MaxSampleRate:  a.MaxSampleRate,
	}
}
