package display

import (
	"fmt"
	"image"
	"sort"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/volume"
	"gonum.org/v1/gonum/stat"
)

const (
	diffLowerQuantile = 0.01
	diffUpperQuantile = 0.99

	// Ranges narrower than this are considered degenerate.
	minDiffSpread = 1e-6
)

// Diff returns after - before.
func Diff(after, before *volume.Plane) (*volume.Plane, error) {
	if !after.SameShape(before) {
		return nil, fmt.Errorf("after is %dx%d, before is %dx%d: %w", after.H, after.W, before.H, before.W, cbctmar.ErrShapeMismatch)
	}

	out := volume.NewPlane(after.H, after.W)
	for idx := range out.Data {
		out.Data[idx] = after.Data[idx] - before.Data[idx]
	}

	return out, nil
}

// DiffRange picks the display range of a difference map: its 1st and 99th
// percentiles, widened to the full min..max when those coincide, and (-1, 1)
// when the map is constant.
func DiffRange(diff []float32) (dmin, dmax float64) {
	if len(diff) == 0 {
		return -1, 1
	}

	sorted := make([]float64, len(diff))
	for i, v := range diff {
		sorted[i] = float64(v)
	}
	sort.Float64s(sorted)

	dmin = percentile(diffLowerQuantile, sorted)
	dmax = percentile(diffUpperQuantile, sorted)
	if dmax-dmin >= minDiffSpread {
		return dmin, dmax
	}

	dmin, dmax = sorted[0], sorted[len(sorted)-1]
	if dmax-dmin >= minDiffSpread {
		return dmin, dmax
	}

	return -1, 1
}

// percentile interpolates linearly between the closest ranks at position
// (n-1)*p of sorted, the numpy default. stat.LinInterp places quantile p at
// the 1-based position n*p, so p is shifted to land on the same point.
func percentile(p float64, sorted []float64) float64 {
	n := float64(len(sorted))

	return stat.Quantile(((n-1)*p+1)/n, stat.LinInterp, sorted, nil)
}

// WindowDiff windows a difference map with its own DiffRange.
func WindowDiff(diff *volume.Plane) (img *image.Gray, dmin, dmax float64) {
	dmin, dmax = DiffRange(diff.Data)

	return Window(diff, dmin, dmax), dmin, dmax
}
