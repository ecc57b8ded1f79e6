// Package volume owns the controlled output level and the rules for stepping it.
package volume

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/pinchvolume/internal/gesture"
)

// Default control settings, matching the values the gesture was tuned with.
const (
	DefaultProximityThreshold = 0.05
	DefaultFarMultiplier      = 2.0
	DefaultStepSize           = 0.01
	DefaultMinUpdateInterval  = 200 * time.Millisecond

	// MaxMinUpdateInterval bounds MinUpdateInterval.
	MaxMinUpdateInterval = time.Minute
)

// ErrInvalidConfig is returned when a Config violates its constraints.
var ErrInvalidConfig = errors.New("invalid control config")

// Config holds the control settings for one tracking session.
type Config struct {
	// ProximityThreshold is the fingertip distance below which the volume rises.
	ProximityThreshold float64 `json:"proximity_threshold"`

	// FarMultiplier scales ProximityThreshold to get the distance above which
	// the volume falls. Must be greater than 1 so a dead zone exists.
	FarMultiplier float64 `json:"far_multiplier"`

	// StepSize is the change applied per accepted update, in (0,1).
	StepSize float64 `json:"step_size"`

	// MinUpdateInterval is the minimum time between two accepted updates.
	MinUpdateInterval time.Duration `json:"min_update_interval"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ProximityThreshold: DefaultProximityThreshold,
		FarMultiplier:      DefaultFarMultiplier,
		StepSize:           DefaultStepSize,
		MinUpdateInterval:  DefaultMinUpdateInterval,
	}
}

// Validate checks every field and returns an error wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	if !(c.ProximityThreshold > 0) {
		return fmt.Errorf("%w: proximity threshold must be > 0, got %v", ErrInvalidConfig, c.ProximityThreshold)
	}
	if !(c.FarMultiplier > 1) {
		return fmt.Errorf("%w: far multiplier must be > 1, got %v", ErrInvalidConfig, c.FarMultiplier)
	}
	if !(c.StepSize > 0 && c.StepSize < 1) {
		return fmt.Errorf("%w: step size must be in (0,1), got %v", ErrInvalidConfig, c.StepSize)
	}
	if c.MinUpdateInterval < 0 || c.MinUpdateInterval > MaxMinUpdateInterval {
		return fmt.Errorf("%w: min update interval must be between 0 and %v, got %v",
			ErrInvalidConfig, MaxMinUpdateInterval, c.MinUpdateInterval)
	}
	return nil
}

// Thresholds returns the classifier thresholds derived from this config.
func (c Config) Thresholds() gesture.Thresholds {
	return gesture.NewThresholds(c.ProximityThreshold, c.FarMultiplier)
}
