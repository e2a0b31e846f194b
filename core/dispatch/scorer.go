package dispatch

import (
	"github.com/kilianp07/courier-dispatch/core/geo"
	"github.com/kilianp07/courier-dispatch/core/model"
)

// Scorer trades courier reliability against distance to the pickup site.
type Scorer struct {
	DistanceWeight     float64
	DefaultReliability float64
}

// NewScorer returns a scorer using the weights of cfg.
func NewScorer(cfg Config) Scorer {
	return Scorer{DistanceWeight: cfg.DistanceWeight, DefaultReliability: cfg.DefaultReliability}
}

// Score returns reliability minus the weighted distance between the courier
// and the pickup site. Higher is better. NaN means the courier cannot be scored.
func (s Scorer) Score(c model.Courier, p model.PickupSite, reliability float64) float64 {
	return reliability - geo.DistanceKm(c.GeoPoint, p.GeoPoint)*s.DistanceWeight
}

// Reliability looks up the courier in the table, falling back to the default.
func (s Scorer) Reliability(table model.ReliabilityTable, courierID string) float64 {
	if v, ok := table[courierID]; ok {
		return v
	}
	return s.DefaultReliability
}
