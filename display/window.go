// Package display turns physical-intensity planes into 8-bit images:
// windowing, difference maps, side-by-side composition, orientation and PNG
// output.
package display

import (
	"image"

	"github.com/carbocation/cbctmar/volume"
)

// Guards the window denominator against a zero-width range.
const windowEpsilon = 1e-8

// WindowSpec is a display range in physical units.
type WindowSpec struct {
	VMin, VMax float64
}

// Apply windows p with the spec's range.
func (w WindowSpec) Apply(p *volume.Plane) *image.Gray {
	return Window(p, w.VMin, w.VMax)
}

// Window clips p to [vmin, vmax] and maps the range linearly onto 0..255,
// truncating toward zero. Arithmetic is float32 throughout.
func Window(p *volume.Plane, vmin, vmax float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, p.W, p.H))

	lo, hi := float32(vmin), float32(vmax)
	scale := float32(vmax - vmin + windowEpsilon)

	for idx, x := range p.Data {
		img.Pix[idx] = windowValue(x, lo, hi, scale)
	}

	return img
}

func windowValue(x, lo, hi, scale float32) uint8 {
	if x < lo || x != x {
		x = lo
	} else if x > hi {
		x = hi
	}

	v := (x - lo) / scale * 255
	if v < 0 {
		return 0
	} else if v > 255 {
		return 255
	}

	return uint8(v)
}
