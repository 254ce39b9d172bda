package matching

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CalibrationProfile is a tuned threshold set produced offline from collected
// score distributions. When configured, it overrides the static thresholds in
// the main config file.
type CalibrationProfile struct {
	// Threshold is the verification accept threshold.
	Threshold float32 `yaml:"threshold"`
	// ConsistencyThreshold is the enrollment pairwise-consistency floor.
	ConsistencyThreshold float32 `yaml:"consistency_threshold"`
	// MinQuality is the enrollment quality floor.
	MinQuality float32 `yaml:"min_quality"`
	// CalibratedAt records when the profile was produced.
	CalibratedAt time.Time `yaml:"calibrated_at,omitempty"`
	// SampleCount is the number of scored trials behind the profile.
	SampleCount int `yaml:"sample_count,omitempty"`
	// Notes is free-form operator commentary.
	Notes string `yaml:"notes,omitempty"`
}

// LoadCalibration reads a calibration profile from a YAML file.
func LoadCalibration(path string) (*CalibrationProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration profile: %w", err)
	}

	var p CalibrationProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse calibration profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that the profile's thresholds are usable.
func (p *CalibrationProfile) Validate() error {
	if p.Threshold <= -1 || p.Threshold >= 1 {
		return fmt.Errorf("calibration threshold %.3f outside (-1, 1)", p.Threshold)
	}
	if p.ConsistencyThreshold < 0 || p.ConsistencyThreshold >= 1 {
		return fmt.Errorf("calibration consistency_threshold %.3f outside [0, 1)", p.ConsistencyThreshold)
	}
	if p.MinQuality < 0 || p.MinQuality > 1 {
		return fmt.Errorf("calibration min_quality %.3f outside [0, 1]", p.MinQuality)
	}
	return nil
}

// Policy returns the decision policy carried by the profile.
func (p *CalibrationProfile) Policy() Policy {
	return Policy{Threshold: p.Threshold}
}
