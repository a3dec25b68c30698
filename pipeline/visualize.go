package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/carbocation/cbctmar/display"
	"github.com/carbocation/cbctmar/logger"
	"github.com/carbocation/cbctmar/metrics"
	"github.com/carbocation/cbctmar/nifti"
	"github.com/carbocation/cbctmar/volume"
	"github.com/carbocation/pfx"
)

// VisualizeOptions selects what Visualize exports.
type VisualizeOptions struct {
	// Path is a local or gs:// NIfTI file of model output.
	Path   string
	OutDir string

	// Target is the side of the square output images; <= 0 keeps the
	// native slice size.
	Target int

	Window display.WindowSpec

	Start, End, Every int

	// NoHU windows the scaled values directly instead of mapping the
	// normalized encoding back to HU first.
	NoHU bool

	Workers int
	Client  *storage.Client
}

// DefaultVisualizeOptions mirrors the command line defaults.
func DefaultVisualizeOptions() VisualizeOptions {
	return VisualizeOptions{
		Target: 640,
		Window: display.WindowSpec{VMin: -1000, VMax: 4500},
		End:    -1,
		Every:  1,
	}
}

// VisualizeFileName is the PNG name of slice i.
func VisualizeFileName(i int) string {
	return fmt.Sprintf("slice_%04d.png", i)
}

// Visualize writes one windowed grayscale PNG per selected slice of a model
// output volume and returns the number written.
func Visualize(ctx context.Context, opts VisualizeOptions, log *logger.Logger, m *metrics.Metrics) (int, error) {
	started := time.Now()
	written, err := visualize(ctx, opts, log, m)
	m.CaseDone(CommandVisualize, err, time.Since(started))

	return written, err
}

func visualize(ctx context.Context, opts VisualizeOptions, log *logger.Logger, m *metrics.Metrics) (int, error) {
	if err := os.MkdirAll(opts.OutDir, os.ModePerm); err != nil {
		return 0, pfx.Err(err)
	}

	r, err := nifti.Open(opts.Path, opts.Client)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	h, w, s := r.Shape()
	idxs, err := volume.SliceRange(opts.Start, opts.End, opts.Every, s)
	if err != nil {
		return 0, err
	}
	slope, intercept := r.Scaling()

	log.Info("exporting slices",
		"path", opts.Path,
		"shape", fmt.Sprintf("%dx%dx%d", h, w, s),
		"slices", len(idxs),
		"target", opts.Target,
		"out_dir", opts.OutDir)

	err = forEachSlice(ctx, idxs, opts.Workers, func(n, i int) error {
		p, err := r.ReadSlice(i)
		if err != nil {
			return err
		}

		p = volume.RescalePlane(p, slope, intercept)
		if opts.Target > 0 {
			p = volume.Resize2D(p, opts.Target, opts.Target)
		}
		if !opts.NoHU {
			p = volume.PlaneMAR01ToHU(p)
		}

		name := VisualizeFileName(i)
		if err := display.SavePNG(filepath.Join(opts.OutDir, name), opts.Window.Apply(p)); err != nil {
			return err
		}
		m.SliceWritten(CommandVisualize)

		if progressDue(n, 50) {
			log.Info("saved", "file", name)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info("done", "written", len(idxs))

	return len(idxs), nil
}
