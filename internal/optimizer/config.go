package optimizer

import (
	"fmt"
	"math"
)

// Default solver parameters
const (
	DefaultAngleStep     = 10.0
	DefaultBeamWidth     = 10
	DefaultNumIterations = 5
	DefaultTolerance     = 1e-6
	DefaultFineAngleStep = 1.0
	DefaultWorkers       = 1
)

// Config holds the tunables of a solve. Zero fields take their defaults.
type Config struct {
	AngleStep         float64 `json:"angle_step_deg,omitempty" msgpack:"angle_step_deg"`
	BeamWidth         int     `json:"beam_width,omitempty" msgpack:"beam_width"`
	NumIterations     int     `json:"num_iterations,omitempty" msgpack:"num_iterations"`
	Tolerance         float64 `json:"tolerance_m,omitempty" msgpack:"tolerance_m"`
	FineAngleStep     float64 `json:"fine_angle_step_deg,omitempty" msgpack:"fine_angle_step_deg"`
	Workers           int     `json:"workers,omitempty" msgpack:"-"`
	FallbackToCenters bool    `json:"fallback_to_centers,omitempty" msgpack:"fallback_to_centers"`
}

// DefaultConfig returns the standard solver parameters
func DefaultConfig() Config {
	return Config{
		AngleStep:     DefaultAngleStep,
		BeamWidth:     DefaultBeamWidth,
		NumIterations: DefaultNumIterations,
		Tolerance:     DefaultTolerance,
		FineAngleStep: DefaultFineAngleStep,
		Workers:       DefaultWorkers,
	}
}

// WithDefaults fills every zero field with its default value
func (c Config) WithDefaults() Config {
	if c.AngleStep == 0 {
		c.AngleStep = DefaultAngleStep
	}
	if c.BeamWidth == 0 {
		c.BeamWidth = DefaultBeamWidth
	}
	if c.NumIterations == 0 {
		c.NumIterations = DefaultNumIterations
	}
	if c.Tolerance == 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.FineAngleStep == 0 {
		c.FineAngleStep = DefaultFineAngleStep
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	return c
}

// Validate checks the parameter ranges
func (c Config) Validate() error {
	if math.IsNaN(c.AngleStep) || c.AngleStep < 1 || c.AngleStep > 180 {
		return &ErrInvalidConfig{Field: "angle_step_deg", Reason: fmt.Sprintf("%.3f is outside [1, 180]", c.AngleStep)}
	}
	if math.IsNaN(c.FineAngleStep) || c.FineAngleStep < 0.1 || c.FineAngleStep > 180 {
		return &ErrInvalidConfig{Field: "fine_angle_step_deg", Reason: fmt.Sprintf("%.3f is outside [0.1, 180]", c.FineAngleStep)}
	}
	if c.BeamWidth < 1 {
		return &ErrInvalidConfig{Field: "beam_width", Reason: fmt.Sprintf("%d must be at least 1", c.BeamWidth)}
	}
	if c.NumIterations < 1 {
		return &ErrInvalidConfig{Field: "num_iterations", Reason: fmt.Sprintf("%d must be at least 1", c.NumIterations)}
	}
	if math.IsNaN(c.Tolerance) || math.IsInf(c.Tolerance, 0) || c.Tolerance < 0 {
		return &ErrInvalidConfig{Field: "tolerance_m", Reason: "must be a finite, non-negative number"}
	}
	if c.Workers < 1 {
		return &ErrInvalidConfig{Field: "workers", Reason: fmt.Sprintf("%d must be at least 1", c.Workers)}
	}
	return nil
}

// sampleCount is the number of azimuths k*step with k*step < 360
func sampleCount(step float64) int {
	return int(math.Ceil(360/step - 1e-9))
}
