package display

import (
	"image"

	"github.com/carbocation/cbctmar/volume"
)

// Normalize clips p to [lo, hi] and stretches the clipped range's actual
// min..max onto 0..255. A flat plane maps to 0.
func Normalize(p *volume.Plane, lo, hi float32) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, p.W, p.H))
	if len(p.Data) == 0 {
		return img
	}

	clip := func(x float32) float32 {
		if x < lo {
			return lo
		} else if x > hi {
			return hi
		}
		return x
	}

	vmin, vmax := clip(p.Data[0]), clip(p.Data[0])
	for _, x := range p.Data {
		x = clip(x)
		if x < vmin {
			vmin = x
		}
		if x > vmax {
			vmax = x
		}
	}

	for idx, x := range p.Data {
		img.Pix[idx] = uint8((clip(x) - vmin) / (vmax - vmin + windowEpsilon) * 255)
	}

	return img
}

// Mask marks samples strictly above threshold with 255 and the rest 0.
func Mask(p *volume.Plane, threshold float32) (*image.Gray, int) {
	img := image.NewGray(image.Rect(0, 0, p.W, p.H))
	count := 0
	for idx, x := range p.Data {
		if x > threshold {
			img.Pix[idx] = 255
			count++
		}
	}

	return img, count
}

// Overlay paints the set pixels of mask white on a copy of base.
func Overlay(base, mask *image.Gray) *image.Gray {
	out := image.NewGray(base.Bounds())
	copy(out.Pix, base.Pix)
	for idx, m := range mask.Pix {
		if m != 0 && idx < len(out.Pix) {
			out.Pix[idx] = 255
		}
	}

	return out
}

// CountAbove returns how many samples of p exceed threshold.
func CountAbove(p *volume.Plane, threshold float32) int {
	count := 0
	for _, x := range p.Data {
		if x > threshold {
			count++
		}
	}

	return count
}
