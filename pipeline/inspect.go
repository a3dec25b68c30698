package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/dicomseries"
	"github.com/carbocation/cbctmar/logger"
	"github.com/montanaflynn/stats"
)

// Fraction of sampled pixels above this is reported for reference.
const inspectHighValue = 2500.0

// InspectOptions selects which series Inspect summarizes.
type InspectOptions struct {
	// Root holds one directory per patient.
	Root string

	// Pattern is the subdirectory of each patient to scan.
	Pattern string

	// Ext filters files by extension; empty accepts every file.
	Ext string

	// PixelSample > 0 reads that many evenly spaced slices per series for
	// intensity statistics.
	PixelSample int
}

// DefaultInspectOptions mirrors the command line defaults.
func DefaultInspectOptions() InspectOptions {
	return InspectOptions{Pattern: "cbct", Ext: ".dcm"}
}

type inspectedFile struct {
	path   string
	header *dicomseries.SliceRecord
}

// Inspect prints a per-series summary of the DICOM headers found under
// every patient directory of opts.Root.
func Inspect(ctx context.Context, opts InspectOptions, w io.Writer, log *logger.Logger) error {
	if stat, err := os.Stat(opts.Root); err != nil || !stat.IsDir() {
		return fmt.Errorf("root %q is not a directory: %w", opts.Root, cbctmar.ErrNotFound)
	}

	entries, err := os.ReadDir(opts.Root)
	if err != nil {
		return err
	}
	var patients []string
	for _, entry := range entries {
		if entry.IsDir() {
			patients = append(patients, entry.Name())
		}
	}
	sort.Strings(patients)
	if len(patients) == 0 {
		return fmt.Errorf("no patient directories in %s: %w", opts.Root, cbctmar.ErrNotFound)
	}

	for _, patient := range patients {
		if err := ctx.Err(); err != nil {
			return err
		}

		seriesDir := filepath.Join(opts.Root, patient, opts.Pattern)
		if stat, err := os.Stat(seriesDir); err != nil || !stat.IsDir() {
			continue
		}

		files, err := dicomseries.FindFiles(seriesDir, opts.Ext)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintf(w, "\n[Patient] %s -> No DICOM files found in %s\n", patient, seriesDir)
			continue
		}

		var uids []string
		groups := make(map[string][]inspectedFile)
		for _, path := range files {
			rec, err := readHeaderFile(path)
			if err != nil {
				log.Warn("failed to read header", "file", path, "error", err)
				continue
			}
			uid := rec.SeriesInstanceUID
			if uid == "" {
				uid = "NO_UID"
			}
			if _, seen := groups[uid]; !seen {
				uids = append(uids, uid)
			}
			groups[uid] = append(groups[uid], inspectedFile{path: path, header: rec})
		}

		fmt.Fprintf(w, "\n[Patient] %s  (Series count=%d)\n", patient, len(uids))
		for _, uid := range uids {
			fmt.Fprintf(w, "\n [Series] UID=%s  (File count=%d)\n", uid, len(groups[uid]))
			inspectSeries(w, groups[uid], opts.PixelSample, log)
		}
	}

	return nil
}

func readHeaderFile(path string) (*dicomseries.SliceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return dicomseries.ReadHeader(f, path)
}

func inspectSeries(w io.Writer, files []inspectedFile, pixelSample int, log *logger.Logger) {
	headers := make([]*dicomseries.SliceRecord, len(files))
	for i, f := range files {
		headers[i] = f.header
	}

	field := func(keyword string, maxShow int) string {
		values := make([]string, 0, len(headers))
		for _, h := range headers {
			if v, exists := h.Attributes[keyword]; exists {
				values = append(values, v)
			}
		}
		return summarizeUnique(values, maxShow)
	}

	_, order := dicomseries.Order(headers)

	fmt.Fprintln(w, "  SeriesInstanceUID:", field("SeriesInstanceUID", 1))
	fmt.Fprintln(w, "  StudyInstanceUID :", field("StudyInstanceUID", 1))
	fmt.Fprintln(w, "  SeriesNumber     :", field("SeriesNumber", 3))
	fmt.Fprintln(w, "  SeriesDescription:", field("SeriesDescription", 3))
	fmt.Fprintln(w, "  Modality         :", field("Modality", 3))
	fmt.Fprintln(w, "  SOPClassUID      :", field("SOPClassUID", 2))
	fmt.Fprintln(w, "  Manufacturer     :", field("Manufacturer", 3))
	fmt.Fprintln(w, "  ModelName        :", field("ManufacturerModelName", 3))
	fmt.Fprintln(w, "  ConvolutionKernel:", field("ConvolutionKernel", 3))
	fmt.Fprintln(w, "  KVP              :", field("KVP", 3))
	fmt.Fprintln(w, "  Slices (file count):", len(headers))
	fmt.Fprintln(w, "  Rows x Cols      :", field("Rows", 3), "x", field("Columns", 3))
	fmt.Fprintln(w, "  PixelSpacing     :", field("PixelSpacing", 3))
	fmt.Fprintln(w, "  SliceThickness   :", field("SliceThickness", 3))
	fmt.Fprintln(w, "  SpacingBetween   :", field("SpacingBetweenSlices", 3))
	fmt.Fprintln(w, "  ImageOrientation :", field("ImageOrientationPatient", 2))
	fmt.Fprintln(w, "  BitsAllocated    :", field("BitsAllocated", 3),
		"| BitsStored:", field("BitsStored", 3),
		"| PixelRepr(0u/1s):", field("PixelRepresentation", 3))
	fmt.Fprintln(w, "  RescaleSlope     :", field("RescaleSlope", 3))
	fmt.Fprintln(w, "  RescaleIntercept :", field("RescaleIntercept", 3))
	fmt.Fprintln(w, "  Sorting check    :", order.String())

	if pixelSample > 0 {
		samplePixels(w, files, pixelSample, log)
	}
}

// sampleIndices picks k evenly spaced indices over [0, n-1], truncated.
func sampleIndices(n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	if k == 1 {
		return []int{0}
	}

	out := make([]int, k)
	for i := range out {
		out[i] = i * (n - 1) / (k - 1)
	}

	return out
}

func samplePixels(w io.Writer, files []inspectedFile, pixelSample int, log *logger.Logger) {
	sorted := make([]string, len(files))
	for i, f := range files {
		sorted[i] = f.path
	}
	sort.Strings(sorted)

	var values stats.Float64Data
	rescaled := false
	var slope0, intercept0 float64

	for _, idx := range sampleIndices(len(sorted), pixelSample) {
		rec, err := readSliceFile(sorted[idx])
		if err != nil {
			log.Warn("failed to read pixels", "file", sorted[idx], "error", err)
			continue
		}

		slope, intercept := 1.0, 0.0
		if rec.HasRescaleSlope && rec.HasRescaleIntercept {
			slope, intercept = rec.RescaleSlope, rec.RescaleIntercept
			if !rescaled {
				rescaled, slope0, intercept0 = true, slope, intercept
			}
		}
		for _, v := range rec.Pixels {
			values = append(values, float64(v)*slope+intercept)
		}
	}

	if len(values) == 0 {
		fmt.Fprintln(w, "  [WARN] Could not get any pixel data for statistics")
		return
	}

	fmt.Fprintln(w, "  --- Pixel Sampling Statistics ---")
	if rescaled {
		fmt.Fprintf(w, "  (Rescale applied: slope=%g, intercept=%g)\n", slope0, intercept0)
	} else {
		fmt.Fprintln(w, "  (No rescale found; below are raw grayscale values)")
	}

	s := summarizePixels(values)
	fmt.Fprintf(w, "  min=%.3f, p1=%.3f, median=%.3f, p99=%.3f, max=%.3f, mean=%.3f, std=%.3f\n",
		s.Min, s.P1, s.Median, s.P99, s.Max, s.Mean, s.Std)
	fmt.Fprintf(w, "  Fraction >%g (for reference): %.4f%%\n", inspectHighValue, s.FractionHigh*100)
}

func readSliceFile(path string) (*dicomseries.SliceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return dicomseries.ReadSlice(f, path)
}

type pixelSummary struct {
	Min, P1, Median, P99, Max float64
	Mean, Std                 float64
	FractionHigh              float64
}

// summarizePixels ignores library errors, which only arise on empty input.
func summarizePixels(values stats.Float64Data) pixelSummary {
	var s pixelSummary
	s.Min, _ = stats.Min(values)
	s.Max, _ = stats.Max(values)
	s.P1, _ = stats.Percentile(values, 1)
	s.Median, _ = stats.Median(values)
	s.P99, _ = stats.Percentile(values, 99)
	s.Mean, _ = stats.Mean(values)
	s.Std, _ = stats.StandardDeviationPopulation(values)

	high := 0
	for _, v := range values {
		if v > inspectHighValue {
			high++
		}
	}
	s.FractionHigh = float64(high) / float64(len(values))

	return s
}

// summarizeUnique renders the most common values, most frequent first
// (ties in order of first appearance), as "v (n=count)".
func summarizeUnique(values []string, maxShow int) string {
	if len(values) == 0 {
		return "None"
	}

	counts := make(map[string]int)
	var distinct []string
	for _, v := range values {
		if counts[v] == 0 {
			distinct = append(distinct, v)
		}
		counts[v]++
	}
	sort.SliceStable(distinct, func(i, j int) bool {
		return counts[distinct[i]] > counts[distinct[j]]
	})

	shown := distinct
	if len(shown) > maxShow {
		shown = shown[:maxShow]
	}
	parts := make([]string, len(shown))
	for i, v := range shown {
		parts[i] = fmt.Sprintf("%s (n=%d)", v, counts[v])
	}

	out := strings.Join(parts, ", ")
	if len(distinct) > maxShow {
		out += fmt.Sprintf(", ... (+%d more)", len(distinct)-maxShow)
	}

	return out
}
