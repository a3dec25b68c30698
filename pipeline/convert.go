package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/config"
	"github.com/carbocation/cbctmar/dicomseries"
	"github.com/carbocation/cbctmar/logger"
	"github.com/carbocation/cbctmar/metrics"
	"github.com/carbocation/cbctmar/nifti"
	"github.com/carbocation/cbctmar/volume"
	"github.com/carbocation/pfx"
)

// Used when a series carries no slice thickness and no usable z positions.
const defaultSliceThickness = 0.2

// ConvertReport lists the outcome of each patient.
type ConvertReport struct {
	// Converted maps patient to the written NIfTI path.
	Converted map[string]string

	// Failed maps patient to the error that stopped it.
	Failed map[string]error
}

// OutputPath is where Convert writes the volume of patient.
func OutputPath(outputDir, patient string) string {
	return filepath.Join(outputDir, patient+"_cbct.nii.gz")
}

// Convert turns the DICOM series of every configured patient into an
// isotropic NIfTI volume. Patients are processed in order; a failing
// patient is logged and recorded and the batch moves on.
func Convert(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (ConvertReport, error) {
	report := ConvertReport{
		Converted: make(map[string]string),
		Failed:    make(map[string]error),
	}

	if err := cfg.Validate(); err != nil {
		return report, err
	}

	if err := os.MkdirAll(cfg.OutputDir, os.ModePerm); err != nil {
		return report, pfx.Err(err)
	}

	log.Info("converting", "patients", len(cfg.Patients), "target_spacing", cfg.TargetSpacing)

	for _, patient := range cfg.Patients {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		started := time.Now()
		plog := log.With("patient", patient)

		out, err := convertPatient(cfg, patient, plog)
		m.CaseDone(CommandConvert, err, time.Since(started))
		if err != nil {
			plog.Error("conversion failed, skipping", "error", err)
			report.Failed[patient] = err
			continue
		}

		plog.Info("wrote volume", "path", out, "elapsed", time.Since(started).String())
		report.Converted[patient] = out
	}

	log.Info("conversion finished", "converted", len(report.Converted), "failed", len(report.Failed), "output_dir", cfg.OutputDir)

	return report, nil
}

func convertPatient(cfg *config.Config, patient string, log *logger.Logger) (string, error) {
	src, err := dicomseries.OpenSeries(filepath.Join(cfg.BaseDir, patient, cfg.SeriesDir), cfg.Extension)
	if err != nil {
		return "", err
	}
	defer src.Close()

	v, err := loadSeries(src, log)
	if err != nil {
		return "", err
	}
	log.Info("assembled", "shape", fmt.Sprintf("%dx%dx%d", v.H, v.W, v.S), "spacing", fmt.Sprintf("%.3fx%.3fx%.3f", v.Spacing[0], v.Spacing[1], v.Spacing[2]))

	resampled, err := volume.ResampleWorkers(v, cfg.TargetSpacing, cfg.Workers)
	if err != nil {
		return "", err
	}
	log.Info("resampled", "shape", fmt.Sprintf("%dx%dx%d", resampled.H, resampled.W, resampled.S), "spacing", cfg.TargetSpacing)

	out := OutputPath(cfg.OutputDir, patient)
	if err := nifti.Write(out, resampled); err != nil {
		return "", err
	}

	return out, nil
}

// loadSeries orders the slices of src geometrically, rescales each with its
// own slope and intercept and stacks them.
func loadSeries(src dicomseries.Source, log *logger.Logger) (*volume.Volume, error) {
	headers, err := dicomseries.ReadHeaders(src)
	if err != nil {
		return nil, err
	}

	perm, order := dicomseries.Order(headers)
	if order.Fallback {
		log.Warn("fewer than two slices carry a z position, ordering by instance number", "with_z", order.WithZ, "slices", len(headers))
	}
	log.Info("ordered slices", "slices", len(headers), "order", order.String(), "location", src.Location())

	planes := make([]*volume.Plane, 0, len(perm))
	for _, idx := range perm {
		rec, err := dicomseries.ReadSliceFrom(src, headers[idx].Name)
		if err != nil {
			return nil, err
		}
		p, err := rec.Plane()
		if err != nil {
			return nil, err
		}
		planes = append(planes, p)
	}

	spacing, err := seriesSpacing(headers[perm[0]], order)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Location(), err)
	}

	return volume.Assemble(planes, spacing)
}

// seriesSpacing takes the in-plane spacing of the first ordered slice and
// the slice thickness, falling back to the median z step, then 0.2 mm.
func seriesSpacing(first *dicomseries.SliceRecord, order dicomseries.OrderReport) ([3]float64, error) {
	if !first.HasPixelSpacing {
		return [3]float64{}, fmt.Errorf("%s has no PixelSpacing: %w", first.Name, cbctmar.ErrNotFound)
	}

	z := defaultSliceThickness
	switch {
	case first.HasSliceThickness && first.SliceThickness > 0:
		z = first.SliceThickness
	case order.MedianStep > 0:
		z = order.MedianStep
	}

	return [3]float64{first.PixelSpacing[0], first.PixelSpacing[1], z}, nil
}
