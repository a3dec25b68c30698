package pipeline

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strconv"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/display"
	"github.com/carbocation/cbctmar/logger"
	"github.com/carbocation/cbctmar/nifti"
	"github.com/carbocation/cbctmar/volume"
)

const (
	// Slices are ranked by how many voxels exceed this when none is chosen.
	autoSliceThreshold = 2500

	debugDisplayMin = -1000
	debugDisplayMax = 3000
)

// DebugOptions selects the volume, slice and thresholds to visualize.
type DebugOptions struct {
	Path   string
	OutDir string

	// SliceK < 0 picks the slice with the most voxels above 2500.
	SliceK int

	Thresholds []float64
}

// DefaultDebugOptions mirrors the command line defaults.
func DefaultDebugOptions() DebugOptions {
	return DebugOptions{
		OutDir:     "threshold_debug",
		SliceK:     -1,
		Thresholds: []float64{1500, 2000, 2500, 3000, 4000},
	}
}

// DebugReport names the slice examined and the files written.
type DebugReport struct {
	SliceK int
	// Count is the number of voxels above 2500 in the chosen slice.
	Count int
	Files []string
}

// Debug writes, for one slice, a display image plus a binary mask and an
// overlay per threshold, to judge which threshold isolates metal.
func Debug(ctx context.Context, opts DebugOptions, log *logger.Logger) (DebugReport, error) {
	var report DebugReport

	v, err := nifti.OpenFull(opts.Path)
	if err != nil {
		return report, err
	}
	defer v.Close()
	slope, intercept := v.Scaling()
	_, _, s := v.Shape()

	scaled := func(k int) (*volume.Plane, error) {
		p, err := v.ReadSlice(k)
		if err != nil {
			return nil, err
		}
		return volume.RescalePlane(p, slope, intercept), nil
	}

	k := opts.SliceK
	if k >= s {
		return report, fmt.Errorf("slice %d outside [0, %d): %w", k, s, cbctmar.ErrInvalidArgument)
	}
	if k < 0 {
		best := -1
		for cand := 0; cand < s; cand++ {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			p, err := scaled(cand)
			if err != nil {
				return report, err
			}
			if n := display.CountAbove(p, autoSliceThreshold); n > best {
				k, best = cand, n
			}
		}
		log.Info("auto selected slice", "slice", k, "count", best)
	}

	p, err := scaled(k)
	if err != nil {
		return report, err
	}
	report.SliceK = k
	report.Count = display.CountAbove(p, autoSliceThreshold)

	save := func(name string, img *image.Gray) error {
		path := filepath.Join(opts.OutDir, name)
		if err := display.SavePNG(path, img); err != nil {
			return err
		}
		report.Files = append(report.Files, path)
		return nil
	}

	disp := display.Normalize(p, debugDisplayMin, debugDisplayMax)
	if err := save(fmt.Sprintf("slice%d_img.png", k), disp); err != nil {
		return report, err
	}

	for _, thr := range opts.Thresholds {
		label := strconv.FormatFloat(thr, 'f', -1, 64)
		mask, n := display.Mask(p, float32(thr))

		if err := save(fmt.Sprintf("slice%d_M_thr%s.png", k, label), mask); err != nil {
			return report, err
		}
		if err := save(fmt.Sprintf("slice%d_overlay_thr%s.png", k, label), display.Overlay(disp, mask)); err != nil {
			return report, err
		}
		log.Debug("threshold", "threshold", thr, "voxels", n)
	}

	log.Info("saved threshold debug images", "out_dir", opts.OutDir, "files", len(report.Files))

	return report, nil
}
