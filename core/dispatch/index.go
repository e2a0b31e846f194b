package dispatch

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/kilianp07/courier-dispatch/core/geo"
	"github.com/kilianp07/courier-dispatch/core/model"
)

const (
	// radiusMargin widens the pruning radius to absorb floating point error in
	// the distance and chord conversions.
	radiusMargin = 1e-6
	// chordMargin covers rounding in unit vector coordinates.
	chordMargin = 1e-9
	// maxRadiusKm bounds indexed searches away from antipodes, where chord
	// lengths stop tracking great-circle distances precisely.
	maxRadiusKm = 0.9 * math.Pi * geo.EarthRadiusKm
)

// courierIndex is a k-d tree over courier positions on the unit sphere. It
// narrows the couriers an order has to be scored against without changing
// which courier wins.
type courierIndex struct {
	tree   *kdtree.Tree
	n      int
	maxRel float64
	weight float64
}

// newCourierIndex returns nil when the index cannot guarantee the same result
// as a linear scan: no distance weight, or non-finite positions or scores.
func newCourierIndex(couriers []model.Courier, reliability []float64, weight float64) *courierIndex {
	if weight <= 0 || len(couriers) == 0 {
		return nil
	}
	pts := make(courierPoints, len(couriers))
	maxRel := math.Inf(-1)
	for i, c := range couriers {
		if !finite(c.Lat) || !finite(c.Lng) || !finite(reliability[i]) {
			return nil
		}
		pts[i] = courierPoint{pos: geo.UnitVector(c.GeoPoint), index: i}
		if reliability[i] > maxRel {
			maxRel = reliability[i]
		}
	}
	return &courierIndex{
		tree:   kdtree.New(pts, false),
		n:      len(couriers),
		maxRel: maxRel,
		weight: weight,
	}
}

// candidates returns, sorted by snapshot position, every available courier
// that could score at least as well as a reference courier for site. The
// reference is the nearest courier when available. A courier further than
// (maxRel - refScore) / weight km cannot reach refScore. ok is false when the
// caller has to fall back to a linear scan.
func (ix *courierIndex) candidates(site model.PickupSite, score func(i int) float64, pool *courierPool) ([]int, bool) {
	if !finite(site.Lat) || !finite(site.Lng) {
		return nil, false
	}
	q := courierPoint{pos: geo.UnitVector(site.GeoPoint), index: -1}
	nearest, _ := ix.tree.Nearest(q)
	if nearest == nil {
		return nil, false
	}
	ref := nearest.(courierPoint).index
	if !pool.available(ref) {
		ref = pool.firstAvailable(ix.n)
		if ref < 0 {
			return []int{}, true
		}
	}
	refScore := score(ref)
	if !finite(refScore) {
		return nil, false
	}

	radiusKm := (ix.maxRel - refScore) / ix.weight
	// scores lose absolute precision with their magnitude; widen by a few ulps
	ulps := 4 * (math.Abs(ix.maxRel) + math.Abs(refScore)) * 0x1p-52 / ix.weight
	radiusKm += radiusMargin*(1+radiusKm) + ulps
	if !finite(radiusKm) || radiusKm >= maxRadiusKm {
		return nil, false
	}
	chord := geo.ChordForDistanceKm(radiusKm) + chordMargin
	keep := kdtree.NewDistKeeper(chord * chord)
	ix.tree.NearestSet(keep, q)

	out := make([]int, 0, len(keep.Heap)+1)
	hasRef := false
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		i := cd.Comparable.(courierPoint).index
		hasRef = hasRef || i == ref
		out = append(out, i)
	}
	if !hasRef {
		out = append(out, ref)
	}
	sort.Ints(out)
	indexQueries.Inc()
	indexCandidates.Observe(float64(len(out)))
	return out, true
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// courierPoint is a courier's unit vector tagged with its snapshot position.
type courierPoint struct {
	pos   [3]float64
	index int
}

// Compare returns the signed distance of p from the plane through c
// perpendicular to dimension d.
func (p courierPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(courierPoint)
	return p.pos[d] - q.pos[d]
}

// Dims returns the number of dimensions.
func (p courierPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between p and c.
func (p courierPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(courierPoint)
	var sum float64
	for d := range p.pos {
		diff := p.pos[d] - q.pos[d]
		sum += diff * diff
	}
	return sum
}

type courierPoints []courierPoint

func (p courierPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p courierPoints) Len() int                      { return len(p) }
func (p courierPoints) Pivot(d kdtree.Dim) int {
	return courierPlane{Dim: d, courierPoints: p}.Pivot()
}
func (p courierPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// courierPlane sorts courier points along one dimension.
type courierPlane struct {
	kdtree.Dim
	courierPoints
}

func (p courierPlane) Less(i, j int) bool {
	return p.courierPoints[i].pos[p.Dim] < p.courierPoints[j].pos[p.Dim]
}
func (p courierPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p courierPlane) Slice(start, end int) kdtree.SortSlicer {
	return courierPlane{Dim: p.Dim, courierPoints: p.courierPoints[start:end]}
}
func (p courierPlane) Swap(i, j int) {
	p.courierPoints[i], p.courierPoints[j] = p.courierPoints[j], p.courierPoints[i]
}
