package volume

import (
	"fmt"

	"github.com/carbocation/cbctmar"
)

// Assemble stacks ordered planes into an H x W x S volume with the given
// voxel spacing. All planes must share the first plane's shape.
func Assemble(planes []*Plane, spacing [3]float64) (*Volume, error) {
	if len(planes) == 0 {
		return nil, fmt.Errorf("no planes to assemble: %w", cbctmar.ErrNotFound)
	}

	h, w := planes[0].H, planes[0].W
	for k, p := range planes {
		if p.H != h || p.W != w {
			return nil, fmt.Errorf("plane %d is %dx%d, expected %dx%d: %w", k, p.H, p.W, h, w, cbctmar.ErrShapeMismatch)
		}
		if len(p.Data) != h*w {
			return nil, fmt.Errorf("plane %d holds %d samples, expected %d: %w", k, len(p.Data), h*w, cbctmar.ErrShapeMismatch)
		}
	}

	out := New(h, w, len(planes), spacing)
	for k, p := range planes {
		base := k * h * w
		for i := 0; i < h; i++ {
			for j := 0; j < w; j++ {
				out.Data[base+i+h*j] = p.Data[i*w+j]
			}
		}
	}

	return out, nil
}
