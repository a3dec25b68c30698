package volume

import "math"

// Resize2D resamples p to h x w with bilinear interpolation on pixel
// centres: output pixel (i, j) samples the input at
// ((i+0.5)*H/h-0.5, (j+0.5)*W/w-0.5), clamped to the input grid.
func Resize2D(p *Plane, h, w int) *Plane {
	if p.H == h && p.W == w {
		return p.Map(func(v float32) float32 { return v })
	}

	out := NewPlane(h, w)
	if h == 0 || w == 0 || p.H == 0 || p.W == 0 {
		return out
	}

	rows := centreTaps(p.H, h)
	cols := centreTaps(p.W, w)

	for i, r := range rows {
		for j, c := range cols {
			top := lerp(p.At(r.lo, c.lo), p.At(r.lo, c.hi), c.frac)
			bottom := lerp(p.At(r.hi, c.lo), p.At(r.hi, c.hi), c.frac)
			out.Set(i, j, lerp(top, bottom, r.frac))
		}
	}

	return out
}

func centreTaps(nIn, nOut int) []axisTap {
	taps := make([]axisTap, nOut)
	scale := float64(nIn) / float64(nOut)

	for o := range taps {
		pos := (float64(o)+0.5)*scale - 0.5
		if pos < 0 {
			pos = 0
		}
		if pos > float64(nIn-1) {
			pos = float64(nIn - 1)
		}
		lo := int(math.Floor(pos))
		hi := lo + 1
		if hi > nIn-1 {
			hi = nIn - 1
		}
		taps[o] = axisTap{lo: lo, hi: hi, frac: float32(pos - float64(lo))}
	}

	return taps
}
