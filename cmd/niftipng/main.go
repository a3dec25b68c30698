// niftipng exports the axial slices of a MAR model output volume as
// windowed, square grayscale PNGs.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/compileinfo"
	"github.com/carbocation/cbctmar/config"
	"github.com/carbocation/cbctmar/logger"
	"github.com/carbocation/cbctmar/metrics"
	"github.com/carbocation/cbctmar/pipeline"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	opts := pipeline.DefaultVisualizeOptions()
	env := config.Default()
	env.ApplyEnv()

	flag.StringVar(&opts.Path, "file", "", "Local or gs:// .nii/.nii.gz volume to export.")
	flag.StringVar(&opts.OutDir, "out", "", "Folder where slice_{k}.png files will be emitted.")
	flag.IntVar(&opts.Target, "size", opts.Target, "Side of the square output images. 0 keeps the native slice size.")
	flag.Float64Var(&opts.Window.VMin, "vmin", opts.Window.VMin, "Lower display bound.")
	flag.Float64Var(&opts.Window.VMax, "vmax", opts.Window.VMax, "Upper display bound.")
	flag.IntVar(&opts.Start, "start", opts.Start, "First slice to export.")
	flag.IntVar(&opts.End, "end", opts.End, "Last slice to export (inclusive). -1 means the last slice.")
	flag.IntVar(&opts.Every, "every", opts.Every, "Export every Nth slice.")
	flag.BoolVar(&opts.NoHU, "nohu", false, "Window the stored values directly instead of converting the normalized encoding back to HU.")
	flag.IntVar(&opts.Workers, "workers", env.Workers, "Number of slices rendered concurrently.")
	logMode := flag.String("log", env.LogMode, "Log mode: development or production.")
	metricsFile := flag.String("metrics", env.MetricsFile, "Optional path of a Prometheus textfile written at exit.")
	flag.Parse()

	if opts.Path == "" || opts.OutDir == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	var err error
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

	err = run(opts, *metricsFile, lg)
	lg.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(opts pipeline.VisualizeOptions, metricsFile string, lg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if strings.HasPrefix(opts.Path, "gs://") {
		client, err := storage.NewClient(ctx)
		if err != nil {
			lg.Error("creating storage client", "error", err)
			return err
		}
		defer client.Close()
		opts.Client = client
	}

	m, err := metrics.New()
	if err != nil {
		lg.Error("registering metrics", "error", err)
		return err
	}

	written, err := pipeline.Visualize(ctx, opts, lg, m)
	if metricsFile != "" {
		if werr := m.WriteTextfile(metricsFile); werr != nil {
			lg.Error("writing metrics", "path", metricsFile, "error", werr)
		}
	}
	if err != nil {
		lg.Error("export failed", "file", opts.Path, "written", written, "error", err)
		return err
	}
	lg.Info("finished", "file", opts.Path, "written", written, "out", opts.OutDir)

	return nil
}
