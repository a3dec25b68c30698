package volume

import (
	"fmt"
	"math"
	"runtime"

	"github.com/carbocation/cbctmar"
	"golang.org/x/sync/errgroup"
)

// ZoomFactors returns spacing[axis]/target for each axis, rejecting factors
// that are non-finite or not positive.
func ZoomFactors(spacing [3]float64, target float64) ([3]float64, error) {
	var zoom [3]float64
	for axis, s := range spacing {
		z := s / target
		if math.IsNaN(z) || math.IsInf(z, 0) || z <= 0 {
			return zoom, fmt.Errorf("axis %d: spacing %g / target %g gives zoom %g: %w", axis, s, target, z, cbctmar.ErrResampling)
		}
		zoom[axis] = z
	}

	return zoom, nil
}

// ZoomedShape is the output length of an axis of n samples scaled by zoom,
// rounded half to even as scipy.ndimage.zoom does.
func ZoomedShape(n int, zoom float64) int {
	return int(math.RoundToEven(float64(n) * zoom))
}

// axisTap describes, for one output coordinate, the two input samples that
// bracket it and the weight of the upper one.
type axisTap struct {
	lo, hi int
	frac   float32
}

// axisTaps maps nOut output coordinates onto nIn input samples, aligning the
// first and last sample of both grids.
func axisTaps(nIn, nOut int) []axisTap {
	taps := make([]axisTap, nOut)

	for o := range taps {
		pos := float64(o)
		if nOut > 1 {
			pos = float64(o*(nIn-1)) / float64(nOut-1)
		}
		lo := int(math.Floor(pos))
		if lo > nIn-1 {
			lo = nIn - 1
		}
		if lo < 0 {
			lo = 0
		}
		hi := lo + 1
		if hi > nIn-1 {
			hi = nIn - 1
		}
		taps[o] = axisTap{lo: lo, hi: hi, frac: float32(pos - float64(lo))}
	}

	return taps
}

// Resample returns a new volume with isotropic voxel size target, using
// order-1 (trilinear) interpolation. Each axis is scaled independently by
// spacing[axis]/target, which preserves the physical field of view up to
// rounding of the output shape. The input is not modified.
func Resample(v *Volume, target float64) (*Volume, error) {
	return ResampleWorkers(v, target, runtime.NumCPU())
}

// ResampleWorkers is Resample with at most workers output slices computed
// concurrently.
func ResampleWorkers(v *Volume, target float64, workers int) (*Volume, error) {
	if workers < 1 {
		workers = 1
	}

	zoom, err := ZoomFactors(v.Spacing, target)
	if err != nil {
		return nil, err
	}

	in := [3]int{v.H, v.W, v.S}
	var out [3]int
	for axis := range in {
		out[axis] = ZoomedShape(in[axis], zoom[axis])
		if out[axis] < 1 || in[axis] < 1 {
			return nil, fmt.Errorf("axis %d: %d samples at zoom %g leaves no output: %w", axis, in[axis], zoom[axis], cbctmar.ErrResampling)
		}
	}

	ti := axisTaps(in[0], out[0])
	tj := axisTaps(in[1], out[1])
	tk := axisTaps(in[2], out[2])

	res := New(out[0], out[1], out[2], [3]float64{target, target, target})

	// Output slices are independent of each other.
	var g errgroup.Group
	g.SetLimit(workers)
	for k := 0; k < out[2]; k++ {
		g.Go(func() error {
			resampleSlice(v, res, ti, tj, tk[k], k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return res, nil
}

func resampleSlice(v, res *Volume, ti, tj []axisTap, zk axisTap, k int) {
	for j, yj := range tj {
		for i, xi := range ti {
			c000 := v.At(xi.lo, yj.lo, zk.lo)
			c100 := v.At(xi.hi, yj.lo, zk.lo)
			c010 := v.At(xi.lo, yj.hi, zk.lo)
			c110 := v.At(xi.hi, yj.hi, zk.lo)
			c001 := v.At(xi.lo, yj.lo, zk.hi)
			c101 := v.At(xi.hi, yj.lo, zk.hi)
			c011 := v.At(xi.lo, yj.hi, zk.hi)
			c111 := v.At(xi.hi, yj.hi, zk.hi)

			c00 := lerp(c000, c100, xi.frac)
			c10 := lerp(c010, c110, xi.frac)
			c01 := lerp(c001, c101, xi.frac)
			c11 := lerp(c011, c111, xi.frac)

			c0 := lerp(c00, c10, yj.frac)
			c1 := lerp(c01, c11, yj.frac)

			res.Set(i, j, k, lerp(c0, c1, zk.frac))
		}
	}
}

func lerp(a, b, t float32) float32 {
	if t == 0 {
		return a
	}

	return a + (b-a)*t
}
