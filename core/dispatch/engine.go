package dispatch

import (
	"math"

	"github.com/kilianp07/courier-dispatch/core/model"
)

// Result is the outcome of one assignment run.
type Result struct {
	// Assignments holds at most one entry per order, in order input order.
	Assignments []model.Assignment
	// Skipped lists the orders that received no assignment.
	Skipped []model.Skip
	// Indexed reports whether the spatial candidate index was used.
	Indexed bool
}

// SkippedByReason counts skipped orders per reason.
func (r Result) SkippedByReason() map[model.SkipReason]int {
	out := make(map[model.SkipReason]int, 2)
	for _, s := range r.Skipped {
		out[s.Reason]++
	}
	return out
}

// Engine assigns couriers to orders with a greedy per-order scan. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	cfg    Config
	scorer Scorer
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, scorer: NewScorer(cfg)}, nil
}

// Config returns the engine settings.
func (e *Engine) Config() Config { return e.cfg }

// Assign runs the default engine over the given snapshot and returns only
// the assignments.
func Assign(orders []model.Order, couriers []model.Courier, sites []model.PickupSite, reliability model.ReliabilityTable) []model.Assignment {
	e := &Engine{cfg: DefaultConfig(), scorer: NewScorer(DefaultConfig())}
	return e.Assign(model.Snapshot{
		Orders:      orders,
		Couriers:    couriers,
		PickupSites: sites,
		Reliability: reliability,
	}).Assignments
}

// Assign selects, for every order independently, the courier with the
// highest score against the order's pickup site. Orders whose pickup site is
// unknown or for which no courier can be scored are skipped, never failed.
// Ties go to the courier listed first.
func (e *Engine) Assign(snap model.Snapshot) Result {
	res := Result{Assignments: make([]model.Assignment, 0, len(snap.Orders))}
	sites := sitesByID(snap.PickupSites)

	reliability := make([]float64, len(snap.Couriers))
	for i, c := range snap.Couriers {
		reliability[i] = e.scorer.Reliability(snap.Reliability, c.ID)
	}
	score := func(i int, site model.PickupSite) float64 {
		return e.scorer.Score(snap.Couriers[i], site, reliability[i])
	}

	pool := newCourierPool(len(snap.Couriers), e.cfg.CourierCapacity)
	var idx *courierIndex
	if e.cfg.IndexThreshold > 0 && len(snap.Couriers) >= e.cfg.IndexThreshold {
		idx = newCourierIndex(snap.Couriers, reliability, e.cfg.DistanceWeight)
		res.Indexed = idx != nil
	}

	for _, o := range snap.Orders {
		site, ok := sites[o.PickupSiteID]
		if !ok {
			res.Skipped = append(res.Skipped, model.Skip{OrderID: o.ID, Reason: model.SkipPickupSiteNotFound})
			continue
		}

		var candidates []int
		linear := true
		if idx != nil {
			candidates, ok = idx.candidates(site, func(i int) float64 { return score(i, site) }, pool)
			linear = !ok
		}

		best, bestScore := -1, math.Inf(-1)
		consider := func(i int) {
			if !pool.available(i) {
				return
			}
			// NaN never compares greater, so unscoreable couriers cannot win.
			if s := score(i, site); s > bestScore {
				best, bestScore = i, s
			}
		}
		if linear {
			for i := range snap.Couriers {
				consider(i)
			}
		} else {
			for _, i := range candidates {
				consider(i)
			}
		}

		if best < 0 {
			res.Skipped = append(res.Skipped, model.Skip{OrderID: o.ID, Reason: model.SkipNoCourier})
			continue
		}
		pool.take(best)
		res.Assignments = append(res.Assignments, model.Assignment{
			OrderID:   o.ID,
			CourierID: snap.Couriers[best].ID,
			Score:     bestScore,
		})
	}
	return res
}

// sitesByID indexes pickup sites; the first site listed for an id wins.
func sitesByID(sites []model.PickupSite) map[string]model.PickupSite {
	out := make(map[string]model.PickupSite, len(sites))
	for _, s := range sites {
		if _, ok := out[s.ID]; !ok {
			out[s.ID] = s
		}
	}
	return out
}

// courierPool tracks how many orders each courier (by snapshot position) has
// won during a run.
type courierPool struct {
	capacity int
	used     []int
}

func newCourierPool(n, capacity int) *courierPool {
	if capacity <= 0 {
		return &courierPool{}
	}
	return &courierPool{capacity: capacity, used: make([]int, n)}
}

func (p *courierPool) available(i int) bool {
	return p.capacity <= 0 || p.used[i] < p.capacity
}

func (p *courierPool) take(i int) {
	if p.capacity > 0 {
		p.used[i]++
	}
}

// firstAvailable returns the lowest position still available, or -1.
func (p *courierPool) firstAvailable(n int) int {
	for i := 0; i < n; i++ {
		if p.available(i) {
			return i
		}
	}
	return -1
}
