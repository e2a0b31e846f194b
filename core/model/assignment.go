package model

// Assignment pairs an order with the courier selected for it. Score is
// diagnostic only.
type Assignment struct {
	OrderID   string  `json:"orderId"`
	CourierID string  `json:"courierId"`
	Score     float64 `json:"score"`
}

// SkipReason explains why an order received no assignment.
type SkipReason string

const (
	// SkipPickupSiteNotFound means the order's pickup site is absent from the snapshot.
	SkipPickupSiteNotFound SkipReason = "pickup_site_not_found"
	// SkipNoCourier means no courier produced a usable score.
	SkipNoCourier SkipReason = "no_courier_available"
)

// String returns the reason label used in logs and metrics.
func (r SkipReason) String() string { return string(r) }

// Skip records an order left without an assignment.
type Skip struct {
	OrderID string     `json:"orderId"`
	Reason  SkipReason `json:"reason"`
}
