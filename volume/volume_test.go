package volume

import (
	"errors"
	"math"
	"testing"

	"github.com/carbocation/cbctmar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledPlane(h, w int, fn func(i, j int) float32) *Plane {
	p := NewPlane(h, w)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			p.Set(i, j, fn(i, j))
		}
	}

	return p
}

func TestAssembleShape(t *testing.T) {
	planes := make([]*Plane, 5)
	for k := range planes {
		planes[k] = filledPlane(8, 8, func(i, j int) float32 { return float32(100*k + 10*i + j) })
	}

	v, err := Assemble(planes, [3]float64{0.2, 0.2, 0.3})
	require.NoError(t, err)

	h, w, s := v.Shape()
	assert.Equal(t, [3]int{8, 8, 5}, [3]int{h, w, s})
	assert.Equal(t, float32(100*3+10*2+7), v.At(2, 7, 3))

	back, err := v.ReadSlice(4)
	require.NoError(t, err)
	assert.Equal(t, planes[4].Data, back.Data)
}

func TestAssembleMismatch(t *testing.T) {
	planes := []*Plane{NewPlane(8, 8), NewPlane(8, 8), NewPlane(8, 7)}

	_, err := Assemble(planes, [3]float64{1, 1, 1})
	assert.True(t, errors.Is(err, cbctmar.ErrShapeMismatch))

	_, err = Assemble(nil, [3]float64{1, 1, 1})
	assert.True(t, errors.Is(err, cbctmar.ErrNotFound))
}

func TestReadSliceOutOfRange(t *testing.T) {
	v := New(2, 2, 2, [3]float64{1, 1, 1})
	_, err := v.ReadSlice(2)
	assert.True(t, errors.Is(err, cbctmar.ErrInvalidArgument))
}

func TestRescale(t *testing.T) {
	out := Rescale([]int{0, 1000, 2000}, 1.0, -1024)
	assert.Equal(t, []float32{-1024, -24, 976}, out)

	p := filledPlane(1, 2, func(i, j int) float32 { return float32(j) })
	scaled := RescalePlane(p, 2, 0.5)
	assert.Equal(t, []float32{0.5, 2.5}, scaled.Data)
	assert.Equal(t, []float32{0, 1}, p.Data, "input must not change")
}

func TestMARRoundTrip(t *testing.T) {
	for _, x := range []float64{0, 0.192, 0.5, 1, -0.25, 3.75} {
		assert.InDelta(t, x, HUToMAR01(MAR01ToHU(x)), 1e-12)
	}
	for _, hu := range []float64{-1000, 0, 1000, 4500} {
		assert.InDelta(t, hu, MAR01ToHU(HUToMAR01(hu)), 1e-9)
	}

	assert.InDelta(t, -1000.0, MAR01ToHU(0), 1e-9)
	assert.InDelta(t, 0.0, MAR01ToHU(0.192), 1e-9)
}

func TestToHU(t *testing.T) {
	p := filledPlane(1, 2, func(i, j int) float32 { return []float32{0.192, 0.384}[j] })

	hu := ToHU(p, ProvenanceModel, 1, 0)
	assert.InDelta(t, 0, hu.Data[0], 1e-3)
	assert.InDelta(t, 1000, hu.Data[1], 1e-3)

	raw := ToHU(p, ProvenanceDICOM, 1000, -192)
	assert.InDelta(t, 0, raw.Data[0], 1e-3)
	assert.InDelta(t, 192, raw.Data[1], 1e-3)
}

func TestFloor(t *testing.T) {
	p := filledPlane(1, 3, func(i, j int) float32 { return []float32{-3000, -1000, 50}[j] })
	Floor(p, -1000)
	assert.Equal(t, []float32{-1000, -1000, 50}, p.Data)
}

func TestZoomFactors(t *testing.T) {
	zoom, err := ZoomFactors([3]float64{0.2, 0.4, 0.25}, 0.1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 4, 2.5}, zoom[:], 1e-12)

	for _, v := range []struct {
		spacing [3]float64
		target  float64
	}{
		{[3]float64{0.2, 0.2, 0}, 0.1},
		{[3]float64{0.2, 0.2, -0.2}, 0.1},
		{[3]float64{0.2, 0.2, 0.2}, 0},
		{[3]float64{0.2, math.NaN(), 0.2}, 0.1},
		{[3]float64{0.2, math.Inf(1), 0.2}, 0.1},
	} {
		_, err := ZoomFactors(v.spacing, v.target)
		assert.True(t, errors.Is(err, cbctmar.ErrResampling), "%+v", v)
	}
}

func TestResampleDoublesShape(t *testing.T) {
	v := New(10, 10, 10, [3]float64{0.2, 0.2, 0.2})
	for k := range v.Data {
		v.Data[k] = float32(k % 7)
	}

	out, err := Resample(v, 0.1)
	require.NoError(t, err)

	h, w, s := out.Shape()
	assert.Equal(t, [3]int{20, 20, 20}, [3]int{h, w, s})
	assert.Equal(t, [3]float64{0.1, 0.1, 0.1}, out.Spacing)

	// Corners are aligned with the input grid.
	assert.Equal(t, v.At(0, 0, 0), out.At(0, 0, 0))
	assert.Equal(t, v.At(9, 9, 9), out.At(19, 19, 19))
}

func TestResampleLinearRamp(t *testing.T) {
	// A ramp along i is reproduced exactly by linear interpolation.
	v := New(5, 2, 2, [3]float64{1, 1, 1})
	for k := 0; k < 2; k++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 5; i++ {
				v.Set(i, j, k, float32(i))
			}
		}
	}

	out, err := Resample(v, 0.5)
	require.NoError(t, err)
	require.Equal(t, 10, out.H)

	for i := 0; i < out.H; i++ {
		expected := float64(i) * 4.0 / 9.0
		assert.InDelta(t, expected, out.At(i, 1, 1), 1e-5)
	}
}

func TestResampleRejectsZeroSpacing(t *testing.T) {
	v := New(4, 4, 4, [3]float64{0.2, 0.2, 0})
	_, err := Resample(v, 0.1)
	assert.True(t, errors.Is(err, cbctmar.ErrResampling))
}

func TestResampleDownsample(t *testing.T) {
	v := New(10, 10, 4, [3]float64{0.2, 0.2, 0.2})
	out, err := Resample(v, 0.25)
	require.NoError(t, err)

	h, w, s := out.Shape()
	assert.Equal(t, [3]int{8, 8, 3}, [3]int{h, w, s})
}

func TestResize2D(t *testing.T) {
	p := filledPlane(2, 2, func(i, j int) float32 { return float32(10*i + j) })

	same := Resize2D(p, 2, 2)
	assert.Equal(t, p.Data, same.Data)

	up := Resize2D(p, 4, 4)
	assert.Equal(t, 4, up.H)
	assert.Equal(t, 4, up.W)
	assert.Equal(t, float32(0), up.At(0, 0))
	assert.Equal(t, float32(11), up.At(3, 3))
	assert.InDelta(t, 2.5, up.At(1, 0), 1e-6)

	constant := filledPlane(3, 5, func(i, j int) float32 { return 7 })
	down := Resize2D(constant, 2, 2)
	for _, v := range down.Data {
		assert.Equal(t, float32(7), v)
	}
}

func TestSliceRange(t *testing.T) {
	for _, v := range []struct {
		start, end, every, s int
		expected             []int
	}{
		{0, -1, 1, 3, []int{0, 1, 2}},
		{0, -1, 2, 5, []int{0, 2, 4}},
		{-4, 1, 1, 5, []int{0, 1}},
		{3, 100, 1, 5, []int{3, 4}},
		{2, 1, 1, 5, nil},
		{0, -1, 1, 0, nil},
		{1, 3, 3, 10, []int{1}},
	} {
		out, err := SliceRange(v.start, v.end, v.every, v.s)
		require.NoError(t, err)
		assert.Equal(t, v.expected, out, "%+v", v)
	}

	_, err := SliceRange(0, -1, 0, 5)
	assert.True(t, errors.Is(err, cbctmar.ErrInvalidArgument))
}

func TestCommonSlicesBoundsRange(t *testing.T) {
	before := New(2, 2, 3, [3]float64{1, 1, 1})
	after := New(2, 2, 5, [3]float64{1, 1, 1})

	idx, err := SliceRange(0, -1, 1, CommonSlices(before, after))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, idx)
}
