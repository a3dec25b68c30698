// marcompare renders before/after/difference triptychs for raw and
// metal-artifact-reduced volumes that share a case key.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/compileinfo"
	"github.com/carbocation/cbctmar/config"
	"github.com/carbocation/cbctmar/logger"
	"github.com/carbocation/cbctmar/metrics"
	"github.com/carbocation/cbctmar/pipeline"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	opts := pipeline.DefaultCompareOptions()
	env := config.Default()
	env.ApplyEnv()

	flag.StringVar(&opts.RawRoot, "raw", "", "Folder of raw volumes stored in HU (before).")
	flag.StringVar(&opts.MARRoot, "mar", "", "Folder of model output volumes in the normalized encoding (after).")
	flag.StringVar(&opts.OutRoot, "out", "", "Folder where {case}/{slice}.png triptychs will be emitted.")
	flag.StringVar(&opts.CaseID, "case", "", "Optional single case key. Default: every key present in both folders.")
	flag.Float64Var(&opts.Window.VMin, "vmin", opts.Window.VMin, "Lower display bound in HU.")
	flag.Float64Var(&opts.Window.VMax, "vmax", opts.Window.VMax, "Upper display bound in HU.")
	flag.IntVar(&opts.Start, "start", opts.Start, "First slice to export.")
	flag.IntVar(&opts.End, "end", opts.End, "Last slice to export (inclusive). -1 means the last common slice.")
	flag.IntVar(&opts.Every, "every", opts.Every, "Export every Nth slice.")
	flag.IntVar(&opts.Rot90, "rot90", 0, "Counter-clockwise quarter turns applied to every panel.")
	flag.BoolVar(&opts.FlipUD, "flipud", false, "Flip panels vertically.")
	flag.BoolVar(&opts.FlipLR, "fliplr", false, "Flip panels horizontally.")
	flag.IntVar(&opts.Gap, "gap", opts.Gap, "Black pixels between panels.")
	flag.IntVar(&opts.Workers, "workers", env.Workers, "Number of slices rendered concurrently.")
	logMode := flag.String("log", env.LogMode, "Log mode: development or production.")
	metricsFile := flag.String("metrics", env.MetricsFile, "Optional path of a Prometheus textfile written at exit.")
	flag.Parse()

	if opts.RawRoot == "" || opts.MARRoot == "" || opts.OutRoot == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	for _, dir := range []*string{&opts.RawRoot, &opts.MARRoot, &opts.OutRoot} {
		var err error
		if *dir, err = cbctmar.ExpandHome(*dir); err != nil {
			log.Fatalln(err)
		}
	}

	lg, err := logger.New(*logMode)
	if err != nil {
		log.Fatalln(err)
	}
	compileinfo.Log(lg)

	err = run(opts, *metricsFile, lg)
	lg.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(opts pipeline.CompareOptions, metricsFile string, lg *logger.Logger) error {
	m, err := metrics.New()
	if err != nil {
		lg.Error("registering metrics", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := pipeline.Compare(ctx, opts, lg, m)
	if metricsFile != "" {
		if werr := m.WriteTextfile(metricsFile); werr != nil {
			lg.Error("writing metrics", "path", metricsFile, "error", werr)
		}
	}
	if err != nil {
		lg.Error("comparison failed", "error", err)
		return err
	}

	for _, c := range report.Cases {
		lg.Info("case done", "case", c.Key, "slices", len(c.Slices), "out", c.OutDir)
	}
	lg.Info("finished", "cases", len(report.Cases), "only_raw", len(report.OnlyRaw), "only_mar", len(report.OnlyMAR))

	return nil
}
