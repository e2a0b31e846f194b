package model

// GeoPoint is a position in decimal degrees. Range is not validated.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Courier is a courier's identity and current position.
type Courier struct {
	ID string `json:"id"`
	GeoPoint
}

// PickupSite is the place an order is collected from, e.g. a kitchen.
type PickupSite struct {
	ID string `json:"id"`
	GeoPoint
}
