package main

import (
	"path/filepath"
	"testing"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/logger"
	"github.com/carbocation/cbctmar/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThresholds(t *testing.T) {
	got, err := parseThresholds("1500, 2000,,4000.5")
	require.NoError(t, err)
	assert.Equal(t, []float64{1500, 2000, 4000.5}, got)

	_, err = parseThresholds("1500,high")
	assert.Error(t, err)
}

func TestRunReturnsDebugError(t *testing.T) {
	opts := pipeline.DefaultDebugOptions()
	opts.Path = filepath.Join(t.TempDir(), "absent.nii")

	assert.ErrorIs(t, run(opts, logger.Nop()), cbctmar.ErrNotFound)
}
