package main

import (
	"path/filepath"
	"testing"

	"github.com/carbocation/cbctmar"
	"github.com/carbocation/cbctmar/logger"
	"github.com/carbocation/cbctmar/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestRunReturnsExportError(t *testing.T) {
	dir := t.TempDir()

	opts := pipeline.DefaultVisualizeOptions()
	opts.Path = filepath.Join(dir, "absent.nii.gz")
	opts.OutDir = filepath.Join(dir, "png")

	assert.ErrorIs(t, run(opts, "", logger.Nop()), cbctmar.ErrNotFound)
}
