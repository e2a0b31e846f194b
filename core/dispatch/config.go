package dispatch

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultDistanceWeight is the score lost per kilometre between courier and pickup.
	DefaultDistanceWeight = 8.0
	// DefaultReliability is used for couriers absent from the reliability table.
	DefaultReliability = 50.0
	// DefaultIndexThreshold is the fleet size from which the spatial index is used.
	DefaultIndexThreshold = 256
)

// ErrInvalidConfig is returned when dispatch settings are out of range.
var ErrInvalidConfig = errors.New("invalid dispatch config")

// Config defines the tunable policy of the assignment engine.
type Config struct {
	// DistanceWeight is subtracted from the reliability once per kilometre.
	DistanceWeight float64 `json:"distance_weight"`
	// DefaultReliability scores couriers missing from the reliability table.
	DefaultReliability float64 `json:"default_reliability"`
	// CourierCapacity caps how many orders one courier may win per run.
	// 0 means unlimited, 1 means exclusive.
	CourierCapacity int `json:"courier_capacity"`
	// IndexThreshold enables the k-d tree candidate index once the fleet has
	// at least this many couriers. 0 disables the index.
	IndexThreshold int `json:"index_threshold"`
}

// DefaultConfig returns the settings the engine uses when nothing is configured.
func DefaultConfig() Config {
	return Config{
		DistanceWeight:     DefaultDistanceWeight,
		DefaultReliability: DefaultReliability,
		IndexThreshold:     DefaultIndexThreshold,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if math.IsNaN(c.DistanceWeight) || math.IsInf(c.DistanceWeight, 0) || c.DistanceWeight < 0 {
		return fmt.Errorf("%w: distance_weight must be a finite value >= 0, got %v", ErrInvalidConfig, c.DistanceWeight)
	}
	if math.IsNaN(c.DefaultReliability) || math.IsInf(c.DefaultReliability, 0) {
		return fmt.Errorf("%w: default_reliability must be finite", ErrInvalidConfig)
	}
	if c.CourierCapacity < 0 {
		return fmt.Errorf("%w: courier_capacity must be >= 0, got %d", ErrInvalidConfig, c.CourierCapacity)
	}
	if c.IndexThreshold < 0 {
		return fmt.Errorf("%w: index_threshold must be >= 0, got %d", ErrInvalidConfig, c.IndexThreshold)
	}
	return nil
}
