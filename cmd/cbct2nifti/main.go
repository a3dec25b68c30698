// cbct2nifti converts each patient's CBCT DICOM series into a NIfTI volume
// resampled to isotropic voxels.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/compileinfo"
	"github.com/carbocation/cbctmar/config"
	"github.com/carbocation/cbctmar/logger"
	"github.com/carbocation/cbctmar/metrics"
	"github.com/carbocation/cbctmar/pipeline"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	var configPath, patients, baseDir, outputDir, seriesDir, ext, logMode, metricsFile string
	var target float64
	var workers int

	flag.StringVar(&configPath, "config", "", "Optional YAML configuration file. Environment variables override it, and flags override both.")
	flag.StringVar(&patients, "patients", "", "Comma-separated patient identifiers. Each is read from {base}/{patient}/{series}.")
	flag.StringVar(&baseDir, "base", "", "Directory holding one folder per patient.")
	flag.StringVar(&outputDir, "out", "", "Directory where {patient}_cbct.nii.gz files will be written.")
	flag.StringVar(&seriesDir, "series", "", "Name of the series folder (or .zip) inside each patient directory. Default: cbct")
	flag.StringVar(&ext, "ext", "", "Extension of DICOM files within the series. Default: .dcm")
	flag.Float64Var(&target, "spacing", 0, "Isotropic output voxel size in mm. Default: 0.2")
	flag.IntVar(&workers, "workers", 0, "Number of slices resampled concurrently. Default: number of CPUs")
	flag.StringVar(&logMode, "log", "", "Log mode: development or production.")
	flag.StringVar(&metricsFile, "metrics", "", "Optional path of a Prometheus textfile written at exit.")
	flag.Parse()

	configPath, err := cbctmar.ExpandHome(configPath)
	if err != nil {
		log.Fatalln(err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalln(err)
	}
	cfg.ApplyEnv()

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "patients":
			cfg.Patients = splitComma(patients)
		case "base":
			cfg.BaseDir = baseDir
		case "out":
			cfg.OutputDir = outputDir
		case "series":
			cfg.SeriesDir = seriesDir
		case "ext":
			cfg.Extension = ext
		case "spacing":
			cfg.TargetSpacing = target
		case "workers":
			cfg.Workers = workers
		case "log":
			cfg.LogMode = logMode
		case "metrics":
			cfg.MetricsFile = metricsFile
		}
	})

	for _, dir := range []*string{&cfg.BaseDir, &cfg.OutputDir, &cfg.MetricsFile} {
		if *dir, err = cbctmar.ExpandHome(*dir); err != nil {
			log.Fatalln(err)
		}
	}

	if len(cfg.Patients) == 0 || cfg.BaseDir == "" || cfg.OutputDir == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalln(err)
	}
	compileinfo.Log(lg)

	err = run(cfg, lg)
	lg.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run owns every deferred cleanup; main exits only after it returns.
func run(cfg *config.Config, lg *logger.Logger) error {
	m, err := metrics.New()
	if err != nil {
		lg.Error("registering metrics", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := pipeline.Convert(ctx, cfg, lg, m)
	if err != nil {
		lg.Error("conversion stopped", "error", err)
	}

	if cfg.MetricsFile != "" {
		if werr := m.WriteTextfile(cfg.MetricsFile); werr != nil {
			lg.Error("writing metrics", "path", cfg.MetricsFile, "error", werr)
		}
	}

	failed := make([]string, 0, len(report.Failed))
	for patient := range report.Failed {
		failed = append(failed, patient)
	}
	sort.Strings(failed)
	lg.Info("finished", "converted", len(report.Converted), "failed", strings.Join(failed, ","))

	return err
}

func splitComma(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
