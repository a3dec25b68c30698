package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/carbocation/cbctmar"
	"github.com/disintegration/imaging"
)

// DefaultGap is the black spacing, in pixels, between triptych panels.
const DefaultGap = 8

// Triptych lays before, after and diff side by side on a black canvas of
// size (3W + 2*gap) x H, with panels at x = 0, W+gap and 2W+2*gap.
func Triptych(before, after, diff *image.Gray, gap int) (*image.Gray, error) {
	if gap < 0 {
		return nil, fmt.Errorf("gap %d: %w", gap, cbctmar.ErrInvalidArgument)
	}

	w, h := before.Bounds().Dx(), before.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("panel has a height or width of 0: %w", cbctmar.ErrShapeMismatch)
	}
	for name, pane := range map[string]*image.Gray{"after": after, "diff": diff} {
		if pane.Bounds().Dx() != w || pane.Bounds().Dy() != h {
			return nil, fmt.Errorf("%s panel is %dx%d, before is %dx%d: %w", name, pane.Bounds().Dx(), pane.Bounds().Dy(), w, h, cbctmar.ErrShapeMismatch)
		}
	}

	out := image.NewGray(image.Rect(0, 0, 3*w+2*gap, h))
	// Set a black background
	draw.Draw(out, out.Bounds(), &image.Uniform{color.Black}, image.Point{}, draw.Src)

	for col, pane := range []*image.Gray{before, after, diff} {
		startX := col * (w + gap)
		drawRect := image.Rect(startX, 0, startX+w, h)
		draw.Draw(out, drawRect, pane, pane.Bounds().Min, draw.Src)
	}

	return out, nil
}

// Orient rotates img counter-clockwise by rot90 quarter turns (negative
// values turn clockwise), then flips it upside down and/or left to right.
func Orient(img *image.Gray, rot90 int, flipUD, flipLR bool) *image.Gray {
	var out image.Image = img

	switch ((rot90 % 4) + 4) % 4 {
	case 1:
		out = imaging.Rotate90(out)
	case 2:
		out = imaging.Rotate180(out)
	case 3:
		out = imaging.Rotate270(out)
	}

	if flipUD {
		out = imaging.FlipV(out)
	}
	if flipLR {
		out = imaging.FlipH(out)
	}

	if out == image.Image(img) {
		return img
	}

	return toGray(out)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}

	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)

	return out
}
