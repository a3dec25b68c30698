// thresholddebug writes a slice image, binary threshold masks and overlays
// with the masked pixels painted white, so high-intensity thresholds can be
// judged by eye.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/compileinfo"
	"github.com/carbocation/cbctmar/config"
	"github.com/carbocation/cbctmar/logger"
	"github.com/carbocation/cbctmar/pipeline"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	opts := pipeline.DefaultDebugOptions()
	env := config.Default()
	env.ApplyEnv()

	var thresholds string
	defaults := make([]string, len(opts.Thresholds))
	for i, t := range opts.Thresholds {
		defaults[i] = strconv.FormatFloat(t, 'f', -1, 64)
	}

	flag.StringVar(&opts.Path, "file", "", "The .nii/.nii.gz volume to examine.")
	flag.StringVar(&opts.OutDir, "out", opts.OutDir, "Folder where the images will be emitted.")
	flag.IntVar(&opts.SliceK, "slice", opts.SliceK, "Slice to examine. -1 picks the slice with the most voxels above 2500.")
	flag.StringVar(&thresholds, "thresholds", strings.Join(defaults, ","), "Comma-separated thresholds.")
	logMode := flag.String("log", env.LogMode, "Log mode: development or production.")
	flag.Parse()

	if opts.Path == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	var err error
	if opts.Thresholds, err = parseThresholds(thresholds); err != nil {
		log.Fatalln(err)
	}
	if opts.Path, err = cbctmar.ExpandHome(opts.Path); err != nil {
		log.Fatalln(err)
	}
	if opts.OutDir, err = cbctmar.ExpandHome(opts.OutDir); err != nil {
		log.Fatalln(err)
	}

	lg, err := logger.New(*logMode)
	if err != nil {
		log.Fatalln(err)
	}
	compileinfo.Log(lg)

	err = run(opts, lg)
	lg.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(opts pipeline.DebugOptions, lg *logger.Logger) error {
	report, err := pipeline.Debug(context.Background(), opts, lg)
	if err != nil {
		lg.Error("debug failed", "file", opts.Path, "error", err)
		return err
	}
	lg.Info("finished", "slice", report.SliceK, "above", report.Count, "files", len(report.Files), "out", opts.OutDir)

	return nil
}

func parseThresholds(v string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}

	return out, nil
}
