// dicominspect prints a per-series summary of the DICOM headers found
// under each patient directory.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/config"
	"github.com/carbocation/cbctmar/logger"
	"github.com/carbocation/cbctmar/pipeline"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	opts := pipeline.DefaultInspectOptions()
	env := config.Default()
	env.ApplyEnv()

	flag.StringVar(&opts.Root, "root", env.BaseDir, "Directory holding one folder per patient.")
	flag.StringVar(&opts.Pattern, "pattern", env.SeriesDir, "Series folder inside each patient directory.")
	flag.StringVar(&opts.Ext, "ext", env.Extension, "Extension of DICOM files. Empty accepts every file.")
	flag.IntVar(&opts.PixelSample, "pixel-sample", 0, "If positive, read this many evenly spaced slices per series for intensity statistics.")
	logMode := flag.String("log", env.LogMode, "Log mode: development or production.")
	flag.Parse()

	if opts.Root == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	var err error
	if opts.Root, err = cbctmar.ExpandHome(opts.Root); err != nil {
		log.Fatalln(err)
	}

	lg, err := logger.New(*logMode)
	if err != nil {
		log.Fatalln(err)
	}

	err = run(opts, os.Stdout, lg)
	lg.Sync()
	if err != nil {
		log.Fatalln(err)
	}
}

func run(opts pipeline.InspectOptions, out io.Writer, lg *logger.Logger) error {
	w := bufio.NewWriter(out)
	defer w.Flush()

	return pipeline.Inspect(context.Background(), opts, w, lg)
}
