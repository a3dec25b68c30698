// Package volume holds the in-memory representation of CBCT slices and
// volumes, and the numeric transforms that act on them: intensity
// rescaling, stacking, isotropic resampling and slice range selection.
package volume

import (
	"fmt"

	"github.com/carbocation/cbctmar"
)

// Plane is one 2-D field of samples with H rows and W columns, stored row
// major: the sample at row i, column j is Data[i*W+j].
type Plane struct {
	H, W int
	Data []float32
}

// NewPlane allocates a zeroed h x w plane.
func NewPlane(h, w int) *Plane {
	return &Plane{H: h, W: w, Data: make([]float32, h*w)}
}

func (p *Plane) At(i, j int) float32 {
	return p.Data[i*p.W+j]
}

func (p *Plane) Set(i, j int, v float32) {
	p.Data[i*p.W+j] = v
}

// SameShape reports whether p and q have identical dimensions.
func (p *Plane) SameShape(q *Plane) bool {
	return p.H == q.H && p.W == q.W
}

// Map returns a new plane with fn applied to every sample.
func (p *Plane) Map(fn func(float32) float32) *Plane {
	out := NewPlane(p.H, p.W)
	for k, v := range p.Data {
		out.Data[k] = fn(v)
	}

	return out
}

// Volume is a dense H x W x S field of physical intensities. Voxel (i, j, k)
// lives at Data[i + H*(j + W*k)], so each axial slice k is a contiguous run
// of H*W samples, matching the on-disk order of NIfTI files. Spacing holds
// the voxel size along each axis in mm.
type Volume struct {
	H, W, S int
	Data    []float32
	Spacing [3]float64
}

// New allocates a zeroed volume.
func New(h, w, s int, spacing [3]float64) *Volume {
	return &Volume{H: h, W: w, S: s, Data: make([]float32, h*w*s), Spacing: spacing}
}

func (v *Volume) index(i, j, k int) int {
	return i + v.H*(j+v.W*k)
}

func (v *Volume) At(i, j, k int) float32 {
	return v.Data[v.index(i, j, k)]
}

func (v *Volume) Set(i, j, k int, val float32) {
	v.Data[v.index(i, j, k)] = val
}

// Shape satisfies SliceSource.
func (v *Volume) Shape() (h, w, s int) {
	return v.H, v.W, v.S
}

// ReadSlice copies axial slice k out of the volume.
func (v *Volume) ReadSlice(k int) (*Plane, error) {
	if k < 0 || k >= v.S {
		return nil, fmt.Errorf("slice %d outside [0, %d): %w", k, v.S, cbctmar.ErrInvalidArgument)
	}

	out := NewPlane(v.H, v.W)
	base := k * v.H * v.W
	for j := 0; j < v.W; j++ {
		for i := 0; i < v.H; i++ {
			out.Data[i*v.W+j] = v.Data[base+i+v.H*j]
		}
	}

	return out, nil
}

// SliceSource gives access to the axial slices of a volume without assuming
// the whole volume is resident in memory. Implementations decide whether a
// slice comes from RAM, a local file, or a remote object.
type SliceSource interface {
	Shape() (h, w, s int)
	ReadSlice(k int) (*Plane, error)
}
