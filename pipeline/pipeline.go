// Package pipeline runs the batch workflows: DICOM series to NIfTI
// conversion, PNG export of model outputs, before/after comparison
// triptychs, metal threshold debugging and DICOM series inspection.
package pipeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Command names used for metric labels and log fields.
const (
	CommandConvert   = "convert"
	CommandVisualize = "visualize"
	CommandCompare   = "compare"
	CommandDebug     = "debug"
	CommandInspect   = "inspect"
)

func workerCount(n int) int {
	if n < 1 {
		return runtime.NumCPU()
	}

	return n
}

// forEachSlice runs fn for every selected slice index on at most workers
// goroutines. n is the position of i within idxs. Each call must write
// its own output file, named by i.
func forEachSlice(ctx context.Context, idxs []int, workers int, fn func(n, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(workers))

	for n, i := range idxs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(n, i)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}

// progressDue reports whether the n-th exported slice should be logged.
func progressDue(n, every int) bool {
	return n%every == 0
}
