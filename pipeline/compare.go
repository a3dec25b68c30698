package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/display"
	"github.com/carbocation/cbctmar/logger"
	"github.com/carbocation/cbctmar/metrics"
	"github.com/carbocation/cbctmar/nifti"
	"github.com/carbocation/cbctmar/volume"
	"github.com/carbocation/pfx"
)

// Raw volumes are floored here, in HU, before display.
const rawFloorHU = -1000

// CompareOptions selects the cases and slices Compare renders.
type CompareOptions struct {
	RawRoot string
	MARRoot string
	OutRoot string

	// CaseID restricts the run to one key; empty compares every key found
	// in both roots.
	CaseID string

	Window display.WindowSpec

	Start, End, Every int

	// Rot90 counts counter-clockwise quarter turns applied before the
	// optional flips.
	Rot90  int
	FlipUD bool
	FlipLR bool

	Gap     int
	Workers int
}

// DefaultCompareOptions mirrors the command line defaults.
func DefaultCompareOptions() CompareOptions {
	return CompareOptions{
		Window: display.WindowSpec{VMin: -1000, VMax: 4500},
		End:    -1,
		Every:  1,
		Gap:    display.DefaultGap,
	}
}

// CaseResult describes one compared case.
type CaseResult struct {
	Key     string
	RawPath string
	MARPath string
	OutDir  string
	Slices  []int
}

// CompareReport lists the rendered cases and the keys present in only one
// of the two roots.
type CompareReport struct {
	Cases   []CaseResult
	OnlyRaw []string
	OnlyMAR []string
}

// CompareFileName is the PNG name of slice i.
func CompareFileName(i int) string {
	return fmt.Sprintf("%04d.png", i)
}

// Compare renders before/after/difference triptychs for one case, or for
// every key that has a volume under both roots. The first failing case
// stops the run.
func Compare(ctx context.Context, opts CompareOptions, log *logger.Logger, m *metrics.Metrics) (CompareReport, error) {
	var report CompareReport

	for _, root := range []string{opts.RawRoot, opts.MARRoot} {
		if stat, err := os.Stat(root); err != nil || !stat.IsDir() {
			return report, fmt.Errorf("%q is not a directory: %w", root, cbctmar.ErrNotFound)
		}
	}
	if err := os.MkdirAll(opts.OutRoot, os.ModePerm); err != nil {
		return report, pfx.Err(err)
	}

	pairs, err := matchCases(opts, &report, log)
	if err != nil {
		return report, err
	}

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		started := time.Now()
		result, err := compareCase(ctx, opts, pair, log.With("case", pair.Key), m)
		m.CaseDone(CommandCompare, err, time.Since(started))
		if err != nil {
			return report, fmt.Errorf("case %s: %w", pair.Key, err)
		}
		report.Cases = append(report.Cases, result)
	}

	return report, nil
}

// matchCases resolves the (raw, mar) file pairs to compare. Keys found in
// only one root are recorded on report and logged.
func matchCases(opts CompareOptions, report *CompareReport, log *logger.Logger) ([]CaseResult, error) {
	if opts.CaseID != "" {
		rawPath, err := nifti.FindByKey(opts.RawRoot, opts.CaseID)
		if err != nil {
			return nil, err
		}
		marPath, err := nifti.FindByKey(opts.MARRoot, opts.CaseID)
		if err != nil {
			return nil, err
		}
		return []CaseResult{{Key: opts.CaseID, RawPath: rawPath, MARPath: marPath}}, nil
	}

	rawKeys, err := nifti.Keys(opts.RawRoot)
	if err != nil {
		return nil, err
	}
	marKeys, err := nifti.Keys(opts.MARRoot)
	if err != nil {
		return nil, err
	}

	var pairs []CaseResult
	for key, rawPath := range rawKeys {
		if marPath, exists := marKeys[key]; exists {
			pairs = append(pairs, CaseResult{Key: key, RawPath: rawPath, MARPath: marPath})
			continue
		}
		report.OnlyRaw = append(report.OnlyRaw, key)
	}
	for key := range marKeys {
		if _, exists := rawKeys[key]; !exists {
			report.OnlyMAR = append(report.OnlyMAR, key)
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	sort.Strings(report.OnlyRaw)
	sort.Strings(report.OnlyMAR)

	for _, key := range report.OnlyRaw {
		log.Warn("no MAR volume for raw case", "key", key)
	}
	for _, key := range report.OnlyMAR {
		log.Warn("no raw volume for MAR case", "key", key)
	}
	log.Info("matched cases", "raw", len(rawKeys), "mar", len(marKeys), "matched", len(pairs))

	if len(pairs) == 0 {
		return nil, fmt.Errorf("no case has a volume in both %s and %s: %w", opts.RawRoot, opts.MARRoot, cbctmar.ErrNotFound)
	}

	return pairs, nil
}

func compareCase(ctx context.Context, opts CompareOptions, pair CaseResult, log *logger.Logger, m *metrics.Metrics) (CaseResult, error) {
	pair.OutDir = filepath.Join(opts.OutRoot, pair.Key)
	if err := os.MkdirAll(pair.OutDir, os.ModePerm); err != nil {
		return pair, pfx.Err(err)
	}

	raw, err := nifti.Open(pair.RawPath, nil)
	if err != nil {
		return pair, err
	}
	defer raw.Close()

	mar, err := nifti.Open(pair.MARPath, nil)
	if err != nil {
		return pair, err
	}
	defer mar.Close()

	pair.Slices, err = volume.SliceRange(opts.Start, opts.End, opts.Every, volume.CommonSlices(raw, mar))
	if err != nil {
		return pair, err
	}

	hr, wr, sr := raw.Shape()
	hm, wm, sm := mar.Shape()
	log.Info("exporting case",
		"raw", filepath.Base(pair.RawPath), "raw_shape", fmt.Sprintf("%dx%dx%d", hr, wr, sr),
		"mar", filepath.Base(pair.MARPath), "mar_shape", fmt.Sprintf("%dx%dx%d", hm, wm, sm),
		"slices", len(pair.Slices), "out_dir", pair.OutDir)

	r := comparisonRenderer{opts: opts, raw: raw, mar: mar}
	r.rawSlope, r.rawIntercept = raw.Scaling()
	r.marSlope, r.marIntercept = mar.Scaling()

	err = forEachSlice(ctx, pair.Slices, opts.Workers, func(n, i int) error {
		img, err := r.render(i)
		if err != nil {
			return fmt.Errorf("slice %d: %w", i, err)
		}

		name := CompareFileName(i)
		if err := display.SavePNG(filepath.Join(pair.OutDir, name), img); err != nil {
			return err
		}
		m.SliceWritten(CommandCompare)

		if progressDue(n, 20) {
			log.Info("saved", "file", name)
		}
		return nil
	})

	return pair, err
}

type comparisonRenderer struct {
	opts     CompareOptions
	raw, mar volume.SliceSource

	rawSlope, rawIntercept float64
	marSlope, marIntercept float64
}

// render builds the triptych of slice i: raw in HU floored at -1000, model
// output mapped back to HU, and their difference windowed on its own range.
func (c comparisonRenderer) render(i int) (*image.Gray, error) {
	rawPlane, err := c.raw.ReadSlice(i)
	if err != nil {
		return nil, err
	}
	marPlane, err := c.mar.ReadSlice(i)
	if err != nil {
		return nil, err
	}

	before := volume.Floor(volume.ToHU(rawPlane, volume.ProvenanceDICOM, c.rawSlope, c.rawIntercept), rawFloorHU)
	after := volume.ToHU(marPlane, volume.ProvenanceModel, c.marSlope, c.marIntercept)

	if !before.SameShape(after) {
		before = volume.Resize2D(before, after.H, after.W)
	}

	diff, err := display.Diff(after, before)
	if err != nil {
		return nil, err
	}
	diffImg, _, _ := display.WindowDiff(diff)

	orient := func(img *image.Gray) *image.Gray {
		return display.Orient(img, c.opts.Rot90, c.opts.FlipUD, c.opts.FlipLR)
	}

	return display.Triptych(
		orient(c.opts.Window.Apply(before)),
		orient(c.opts.Window.Apply(after)),
		orient(diffImg),
		c.opts.Gap,
	)
}
