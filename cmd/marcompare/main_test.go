package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/logger"
	"github.com/carbocation/cbctmar/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWritesMetricsOnError(t *testing.T) {
	root := t.TempDir()

	opts := pipeline.DefaultCompareOptions()
	opts.RawRoot = filepath.Join(root, "raw")
	opts.MARRoot = filepath.Join(root, "mar")
	opts.OutRoot = filepath.Join(root, "out")
	metricsFile := filepath.Join(root, "compare.prom")

	assert.ErrorIs(t, run(opts, metricsFile, logger.Nop()), cbctmar.ErrNotFound)

	_, err := os.Stat(metricsFile)
	require.NoError(t, err)
}
