package dispatch

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/courier-dispatch/core/geo"
	"github.com/kilianp07/courier-dispatch/core/model"
)

func courier(id string, lat, lng float64) model.Courier {
	return model.Courier{ID: id, GeoPoint: model.GeoPoint{Lat: lat, Lng: lng}}
}

func site(id string, lat, lng float64) model.PickupSite {
	return model.PickupSite{ID: id, GeoPoint: model.GeoPoint{Lat: lat, Lng: lng}}
}

func newTestEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return e
}

func TestAssign_EndToEndExample(t *testing.T) {
	orders := []model.Order{{ID: "o1", PickupSiteID: "c1"}}
	sites := []model.PickupSite{site("c1", 40.0, -73.0)}
	couriers := []model.Courier{courier("d1", 40.01, -73.0), courier("d2", 41.0, -73.0)}

	got := Assign(orders, couriers, sites, model.ReliabilityTable{})
	require.Len(t, got, 1)
	assert.Equal(t, "o1", got[0].OrderID)
	assert.Equal(t, "d1", got[0].CourierID)

	want := 50 - geo.DistanceKm(couriers[0].GeoPoint, sites[0].GeoPoint)*8
	assert.InDelta(t, want, got[0].Score, 1e-9)
	assert.InDelta(t, 41.104, got[0].Score, 1e-3)
}

func TestAssign_TieBreakFirstCourierWins(t *testing.T) {
	sites := []model.PickupSite{site("c1", 48.85, 2.35)}
	orders := []model.Order{{ID: "o1", PickupSiteID: "c1"}}
	couriers := []model.Courier{
		courier("far", 48.95, 2.35),
		courier("a", 48.86, 2.35),
		courier("b", 48.86, 2.35),
	}
	for _, threshold := range []int{0, 1} {
		e := newTestEngine(t, func(c *Config) { c.IndexThreshold = threshold })
		res := e.Assign(model.Snapshot{Orders: orders, Couriers: couriers, PickupSites: sites})
		require.Len(t, res.Assignments, 1)
		assert.Equal(t, "a", res.Assignments[0].CourierID, "threshold %d", threshold)
		assert.Equal(t, threshold == 1, res.Indexed)
	}
}

func TestAssign_PartialResults(t *testing.T) {
	e := newTestEngine(t, nil)
	res := e.Assign(model.Snapshot{
		Orders: []model.Order{
			{ID: "lost", PickupSiteID: "missing"},
			{ID: "ok", PickupSiteID: "c1"},
		},
		Couriers:    []model.Courier{courier("d1", 1, 1)},
		PickupSites: []model.PickupSite{site("c1", 1, 1)},
	})
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "ok", res.Assignments[0].OrderID)
	assert.Equal(t, []model.Skip{{OrderID: "lost", Reason: model.SkipPickupSiteNotFound}}, res.Skipped)
}

func TestAssign_EmptyFleet(t *testing.T) {
	e := newTestEngine(t, nil)
	res := e.Assign(model.Snapshot{
		Orders:      []model.Order{{ID: "o1", PickupSiteID: "c1"}},
		PickupSites: []model.PickupSite{site("c1", 0, 0)},
	})
	assert.NotNil(t, res.Assignments)
	assert.Empty(t, res.Assignments)
	assert.Equal(t, []model.Skip{{OrderID: "o1", Reason: model.SkipNoCourier}}, res.Skipped)
}

func TestAssign_EmptyOrders(t *testing.T) {
	got := Assign(nil, []model.Courier{courier("d1", 0, 0)}, nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAssign_DefaultReliabilityEquivalence(t *testing.T) {
	orders := []model.Order{{ID: "o1", PickupSiteID: "c1"}}
	sites := []model.PickupSite{site("c1", 10, 10)}
	couriers := []model.Courier{courier("d1", 10.02, 10)}

	implicit := Assign(orders, couriers, sites, nil)
	explicit := Assign(orders, couriers, sites, model.ReliabilityTable{"d1": 50})
	require.Len(t, implicit, 1)
	assert.Equal(t, explicit, implicit)
}

func TestAssign_ReliabilityOutweighsDistance(t *testing.T) {
	orders := []model.Order{{ID: "o1", PickupSiteID: "c1"}}
	sites := []model.PickupSite{site("c1", 40.0, -73.0)}
	couriers := []model.Courier{courier("near", 40.01, -73.0), courier("trusted", 40.02, -73.0)}

	got := Assign(orders, couriers, sites, model.ReliabilityTable{"near": 10, "trusted": 95})
	require.Len(t, got, 1)
	assert.Equal(t, "trusted", got[0].CourierID)
}

func TestAssign_SameCourierAcrossOrdersByDefault(t *testing.T) {
	e := newTestEngine(t, nil)
	res := e.Assign(model.Snapshot{
		Orders:      []model.Order{{ID: "o1", PickupSiteID: "c1"}, {ID: "o2", PickupSiteID: "c1"}},
		Couriers:    []model.Courier{courier("d1", 0, 0), courier("d2", 1, 1)},
		PickupSites: []model.PickupSite{site("c1", 0, 0)},
	})
	require.Len(t, res.Assignments, 2)
	assert.Equal(t, "d1", res.Assignments[0].CourierID)
	assert.Equal(t, "d1", res.Assignments[1].CourierID)
}

func TestAssign_CourierCapacity(t *testing.T) {
	snap := model.Snapshot{
		Orders: []model.Order{
			{ID: "o1", PickupSiteID: "c1"},
			{ID: "o2", PickupSiteID: "c1"},
			{ID: "o3", PickupSiteID: "c1"},
		},
		Couriers:    []model.Courier{courier("d1", 0, 0), courier("d2", 0.01, 0)},
		PickupSites: []model.PickupSite{site("c1", 0, 0)},
	}

	for _, threshold := range []int{0, 1} {
		t.Run(fmt.Sprintf("exclusive/threshold=%d", threshold), func(t *testing.T) {
			e := newTestEngine(t, func(c *Config) { c.CourierCapacity = 1; c.IndexThreshold = threshold })
			res := e.Assign(snap)
			require.Len(t, res.Assignments, 2)
			assert.Equal(t, "d1", res.Assignments[0].CourierID)
			assert.Equal(t, "d2", res.Assignments[1].CourierID)
			assert.Equal(t, []model.Skip{{OrderID: "o3", Reason: model.SkipNoCourier}}, res.Skipped)
		})
		t.Run(fmt.Sprintf("batch/threshold=%d", threshold), func(t *testing.T) {
			e := newTestEngine(t, func(c *Config) { c.CourierCapacity = 2; c.IndexThreshold = threshold })
			res := e.Assign(snap)
			require.Len(t, res.Assignments, 3)
			assert.Equal(t, "d1", res.Assignments[0].CourierID)
			assert.Equal(t, "d1", res.Assignments[1].CourierID)
			assert.Equal(t, "d2", res.Assignments[2].CourierID)
			assert.Empty(t, res.Skipped)
		})
	}
}

func TestAssign_NaNNeverWins(t *testing.T) {
	sites := []model.PickupSite{site("c1", 0, 0)}
	orders := []model.Order{{ID: "o1", PickupSiteID: "c1"}}

	for _, threshold := range []int{0, 1} {
		e := newTestEngine(t, func(c *Config) { c.IndexThreshold = threshold })
		res := e.Assign(model.Snapshot{
			Orders:      orders,
			Couriers:    []model.Courier{courier("broken", math.NaN(), 0), courier("ok", 0.5, 0)},
			PickupSites: sites,
		})
		require.Len(t, res.Assignments, 1)
		assert.Equal(t, "ok", res.Assignments[0].CourierID)
		assert.False(t, res.Indexed, "non-finite positions disable the index")

		res = e.Assign(model.Snapshot{
			Orders:      orders,
			Couriers:    []model.Courier{courier("broken", math.NaN(), 0)},
			PickupSites: sites,
		})
		assert.Empty(t, res.Assignments)
		assert.Equal(t, model.SkipNoCourier, res.Skipped[0].Reason)
	}
}

func TestAssign_NaNPickupSite(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.IndexThreshold = 1 })
	res := e.Assign(model.Snapshot{
		Orders:      []model.Order{{ID: "o1", PickupSiteID: "c1"}, {ID: "o2", PickupSiteID: "c2"}},
		Couriers:    []model.Courier{courier("d1", 0, 0)},
		PickupSites: []model.PickupSite{site("c1", math.NaN(), 0), site("c2", 0, 0)},
	})
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "o2", res.Assignments[0].OrderID)
	assert.Equal(t, []model.Skip{{OrderID: "o1", Reason: model.SkipNoCourier}}, res.Skipped)
}

func TestAssign_DuplicateSiteIDFirstWins(t *testing.T) {
	e := newTestEngine(t, nil)
	res := e.Assign(model.Snapshot{
		Orders:      []model.Order{{ID: "o1", PickupSiteID: "c1"}},
		Couriers:    []model.Courier{courier("north", 10, 0), courier("south", -10, 0)},
		PickupSites: []model.PickupSite{site("c1", -10, 0), site("c1", 10, 0)},
	})
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "south", res.Assignments[0].CourierID)
}

func TestAssign_ZeroWeightPicksMostReliable(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.DistanceWeight = 0; c.IndexThreshold = 1 })
	res := e.Assign(model.Snapshot{
		Orders:      []model.Order{{ID: "o1", PickupSiteID: "c1"}},
		Couriers:    []model.Courier{courier("near", 0, 0), courier("far", 60, 60)},
		PickupSites: []model.PickupSite{site("c1", 0, 0)},
		Reliability: model.ReliabilityTable{"far": 51},
	})
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "far", res.Assignments[0].CourierID)
	assert.Equal(t, 51.0, res.Assignments[0].Score)
	assert.False(t, res.Indexed)
}

func TestAssign_DoesNotMutateInput(t *testing.T) {
	couriers := []model.Courier{courier("d1", 1, 1), courier("d2", 2, 2)}
	table := model.ReliabilityTable{"d1": 70}
	snap := model.Snapshot{
		Orders:      []model.Order{{ID: "o1", PickupSiteID: "c1"}},
		Couriers:    couriers,
		PickupSites: []model.PickupSite{site("c1", 1.5, 1.5)},
		Reliability: table,
	}
	e := newTestEngine(t, func(c *Config) { c.CourierCapacity = 1; c.IndexThreshold = 1 })
	_ = e.Assign(snap)
	assert.Equal(t, []model.Courier{courier("d1", 1, 1), courier("d2", 2, 2)}, couriers)
	assert.Equal(t, model.ReliabilityTable{"d1": 70}, table)
}

// randomSnapshot scatters couriers and sites around a city centre. Couriers
// are sometimes duplicated to produce exact ties.
func randomSnapshot(r *rand.Rand, couriers, sites, orders int) model.Snapshot {
	const lat0, lng0 = 45.76, 4.84
	snap := model.Snapshot{Reliability: model.ReliabilityTable{}}
	for i := 0; i < couriers; i++ {
		id := fmt.Sprintf("d%d", i)
		if i > 0 && r.Intn(10) == 0 {
			prev := snap.Couriers[r.Intn(len(snap.Couriers))]
			snap.Couriers = append(snap.Couriers, courier(id, prev.Lat, prev.Lng))
			if rel, ok := snap.Reliability[prev.ID]; ok {
				snap.Reliability[id] = rel
			}
			continue
		}
		snap.Couriers = append(snap.Couriers, courier(id, lat0+r.Float64()*0.4-0.2, lng0+r.Float64()*0.4-0.2))
		if r.Intn(3) > 0 {
			snap.Reliability[id] = math.Round(r.Float64() * 100)
		}
	}
	for i := 0; i < sites; i++ {
		snap.PickupSites = append(snap.PickupSites, site(fmt.Sprintf("c%d", i), lat0+r.Float64()*0.3-0.15, lng0+r.Float64()*0.3-0.15))
	}
	for i := 0; i < orders; i++ {
		siteID := fmt.Sprintf("c%d", r.Intn(sites+1))
		snap.Orders = append(snap.Orders, model.Order{ID: fmt.Sprintf("o%d", i), PickupSiteID: siteID})
	}
	return snap
}

func TestAssign_IndexMatchesLinearScan(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, capacity := range []int{0, 1, 3} {
		for round := 0; round < 5; round++ {
			snap := randomSnapshot(r, 400, 20, 150)
			linear := newTestEngine(t, func(c *Config) { c.CourierCapacity = capacity; c.IndexThreshold = 0 })
			indexed := newTestEngine(t, func(c *Config) { c.CourierCapacity = capacity; c.IndexThreshold = 1 })

			want := linear.Assign(snap)
			got := indexed.Assign(snap)
			require.False(t, want.Indexed)
			require.True(t, got.Indexed)
			assert.Equal(t, want.Assignments, got.Assignments, "capacity %d round %d", capacity, round)
			assert.Equal(t, want.Skipped, got.Skipped, "capacity %d round %d", capacity, round)
		}
	}
}

func TestAssign_IndexLargeReliabilityTinyWeight(t *testing.T) {
	for _, lng := range []float64{0.13, 0.17, 0.2} {
		snap := model.Snapshot{
			Orders:      []model.Order{{ID: "o1", PickupSiteID: "c1"}},
			Couriers:    []model.Courier{courier("d1", 0, lng)},
			PickupSites: []model.PickupSite{site("c1", 0, 0)},
			Reliability: model.ReliabilityTable{"d1": 1e6},
		}
		linear := newTestEngine(t, func(c *Config) { c.DistanceWeight = 1e-9; c.IndexThreshold = 0 })
		indexed := newTestEngine(t, func(c *Config) { c.DistanceWeight = 1e-9; c.IndexThreshold = 1 })

		want := linear.Assign(snap)
		got := indexed.Assign(snap)
		require.True(t, got.Indexed)
		require.Len(t, want.Assignments, 1, "lng %v", lng)
		assert.Equal(t, want.Assignments, got.Assignments, "lng %v", lng)
		assert.Empty(t, got.Skipped, "lng %v", lng)
	}
}

// globalSnapshot spreads couriers and sites over the whole globe with
// reliability scores spanning several orders of magnitude.
func globalSnapshot(r *rand.Rand, couriers, sites, orders int) model.Snapshot {
	snap := model.Snapshot{Reliability: model.ReliabilityTable{}}
	for i := 0; i < couriers; i++ {
		id := fmt.Sprintf("d%d", i)
		snap.Couriers = append(snap.Couriers, courier(id, r.Float64()*178-89, r.Float64()*360-180))
		if r.Intn(4) > 0 {
			snap.Reliability[id] = r.Float64() * math.Pow(10, float64(r.Intn(8)))
		}
	}
	for i := 0; i < sites; i++ {
		snap.PickupSites = append(snap.PickupSites, site(fmt.Sprintf("c%d", i), r.Float64()*178-89, r.Float64()*360-180))
	}
	for i := 0; i < orders; i++ {
		snap.Orders = append(snap.Orders, model.Order{ID: fmt.Sprintf("o%d", i), PickupSiteID: fmt.Sprintf("c%d", r.Intn(sites))})
	}
	return snap
}

func TestAssign_IndexMatchesLinearScanGlobally(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for _, weight := range []float64{1e-9, 1e-3, 8, 1e4} {
		for _, capacity := range []int{0, 1, 3} {
			for round := 0; round < 8; round++ {
				snap := globalSnapshot(r, 300, 15, 40)
				linear := newTestEngine(t, func(c *Config) {
					c.DistanceWeight, c.CourierCapacity, c.IndexThreshold = weight, capacity, 0
				})
				indexed := newTestEngine(t, func(c *Config) {
					c.DistanceWeight, c.CourierCapacity, c.IndexThreshold = weight, capacity, 1
				})

				want := linear.Assign(snap)
				got := indexed.Assign(snap)
				require.True(t, got.Indexed)
				msg := fmt.Sprintf("weight %v capacity %d round %d", weight, capacity, round)
				assert.Equal(t, want.Assignments, got.Assignments, msg)
				assert.Equal(t, want.Skipped, got.Skipped, msg)
			}
		}
	}
}

func TestAssign_IndexThreshold(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	snap := randomSnapshot(r, 10, 2, 3)
	e := newTestEngine(t, func(c *Config) { c.IndexThreshold = 11 })
	assert.False(t, e.Assign(snap).Indexed)
	e = newTestEngine(t, func(c *Config) { c.IndexThreshold = 10 })
	assert.True(t, e.Assign(snap).Indexed)
}

func TestResult_SkippedByReason(t *testing.T) {
	res := Result{Skipped: []model.Skip{
		{OrderID: "a", Reason: model.SkipNoCourier},
		{OrderID: "b", Reason: model.SkipPickupSiteNotFound},
		{OrderID: "c", Reason: model.SkipNoCourier},
	}}
	assert.Equal(t, map[model.SkipReason]int{
		model.SkipNoCourier:          2,
		model.SkipPickupSiteNotFound: 1,
	}, res.SkippedByReason())
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	_, err := NewEngine(Config{DistanceWeight: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
