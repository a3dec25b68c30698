package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/carbocation/cbctmar/config"
	"github.com/carbocation/cbctmar/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitComma(t *testing.T) {
	assert.Equal(t, []string{"p1", "p2"}, splitComma(" p1, ,p2,"))
	assert.Empty(t, splitComma(""))
}

func TestRunWritesMetricsAfterFailures(t *testing.T) {
	root := t.TempDir()

	cfg := config.Default()
	cfg.Patients = []string{"absent"}
	cfg.BaseDir = filepath.Join(root, "in")
	cfg.OutputDir = filepath.Join(root, "out")
	cfg.MetricsFile = filepath.Join(root, "cbct.prom")

	require.NoError(t, run(cfg, logger.Nop()))

	body, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cbct_cases_total")
}
