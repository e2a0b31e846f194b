package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourierJSONFlattensPosition(t *testing.T) {
	c := Courier{ID: "d1", GeoPoint: GeoPoint{Lat: 40.01, Lng: -73}}
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "d1", m["id"])
	assert.Equal(t, 40.01, m["lat"])
	assert.Equal(t, -73.0, m["lng"])
	assert.NotContains(t, m, "GeoPoint")
}

func TestSkipReasonString(t *testing.T) {
	assert.Equal(t, "pickup_site_not_found", SkipPickupSiteNotFound.String())
	assert.Equal(t, "no_courier_available", SkipNoCourier.String())
}
