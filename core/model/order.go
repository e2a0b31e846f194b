package model

// Order is a pending order. It references its pickup site by id only.
type Order struct {
	ID           string `json:"id"`
	PickupSiteID string `json:"pickupSiteId"`
}

// ReliabilityTable maps a courier id to its historical reliability score.
// Higher is better.
type ReliabilityTable map[string]float64

// Snapshot is the input of a single assignment run.
type Snapshot struct {
	Orders      []Order
	Couriers    []Courier
	PickupSites []PickupSite
	Reliability ReliabilityTable
}
