package dicomseries

import (
	"math"
	"sort"
	"strconv"

	"github.com/montanaflynn/stats"
)

// Positions closer than this are treated as the same location.
const zTolerance = 1e-6

// Direction summarizes the consecutive z steps of an ordered series.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionIncreasing
	DirectionDecreasing
	DirectionNotMonotonic
	DirectionColocated
)

func (d Direction) String() string {
	switch d {
	case DirectionIncreasing:
		return "increasing"
	case DirectionDecreasing:
		return "decreasing"
	case DirectionNotMonotonic:
		return "not monotonic"
	case DirectionColocated:
		return "colocated"
	}

	return "unknown"
}

// OrderReport describes how a series was ordered. It is informational.
type OrderReport struct {
	// Fallback is set when fewer than two slices carried a z position and
	// the instance number alone decided the order.
	Fallback bool

	// WithZ counts the slices that carried a z position.
	WithZ int

	// WithInstance counts the slices that carried an instance number.
	WithInstance int

	Direction Direction

	// MedianStep is the median |dz| over non-zero steps, 0 when unknown.
	MedianStep float64
}

func (r OrderReport) String() string {
	switch {
	case r.Direction == DirectionColocated:
		return "all slices at the same z"
	case r.Direction != DirectionUnknown:
		return "z " + r.Direction.String() + ", median |dz| " + strconv.FormatFloat(r.MedianStep, 'f', 4, 64)
	case r.WithInstance > 0:
		return "ordered by instance number (z positions insufficient)"
	}

	return "no z positions or instance numbers, order is unreliable"
}

// Order returns the permutation that puts records in geometric order. When
// at least two records carry a z position, those records come first sorted
// by z, with positions within zTolerance of each other tied and broken by
// instance number; records lacking z follow in instance number order.
// Otherwise the instance number alone is the key. Remaining ties keep input
// order.
func Order(records []*SliceRecord) ([]int, OrderReport) {
	var report OrderReport
	for _, rec := range records {
		if rec.HasPositionZ {
			report.WithZ++
		}
		if rec.HasInstanceNumber {
			report.WithInstance++
		}
	}
	report.Fallback = report.WithZ < 2

	ranks := zRanks(records, report.Fallback)

	perm := make([]int, len(records))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		ra, rb := ranks[perm[a]], ranks[perm[b]]
		if ra != rb {
			return ra < rb
		}
		return records[perm[a]].InstanceNumber < records[perm[b]].InstanceNumber
	})

	report.Direction, report.MedianStep = diagnose(records, perm)

	return perm, report
}

// zRanks assigns each record the rank of its z position among the distinct
// positions of the series, where a position within zTolerance of the
// previous one shares its rank. Records without z, and every record when
// ignoreZ is set, rank after all positioned records.
func zRanks(records []*SliceRecord, ignoreZ bool) []int {
	ranks := make([]int, len(records))

	var positioned []int
	for i, rec := range records {
		if !ignoreZ && rec.HasPositionZ {
			positioned = append(positioned, i)
		}
	}
	sort.SliceStable(positioned, func(a, b int) bool {
		return records[positioned[a]].PositionZ < records[positioned[b]].PositionZ
	})

	rank := 0
	for n, idx := range positioned {
		if n > 0 && records[idx].PositionZ-records[positioned[n-1]].PositionZ > zTolerance {
			rank++
		}
		ranks[idx] = rank
	}

	unpositioned := rank + 1
	for i, rec := range records {
		if ignoreZ || !rec.HasPositionZ {
			ranks[i] = unpositioned
		}
	}

	return ranks
}

// diagnose inspects the z steps between consecutive ordered records that
// carry a position.
func diagnose(records []*SliceRecord, perm []int) (Direction, float64) {
	var zs []float64
	for _, idx := range perm {
		if records[idx].HasPositionZ {
			zs = append(zs, records[idx].PositionZ)
		}
	}
	if len(zs) < 2 {
		return DirectionUnknown, 0
	}

	var steps stats.Float64Data
	increasing, decreasing := true, true
	for i := 1; i < len(zs); i++ {
		dz := zs[i] - zs[i-1]
		if math.Abs(dz) <= zTolerance {
			continue
		}
		steps = append(steps, math.Abs(dz))
		if dz < 0 {
			increasing = false
		} else {
			decreasing = false
		}
	}

	if len(steps) == 0 {
		return DirectionColocated, 0
	}

	median, err := stats.Median(steps)
	if err != nil {
		median = 0
	}

	switch {
	case increasing:
		return DirectionIncreasing, median
	case decreasing:
		return DirectionDecreasing, median
	}

	return DirectionNotMonotonic, median
}
