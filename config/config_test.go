package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/carbocation/cbctmar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 0.2, cfg.TargetSpacing)
	assert.Equal(t, "cbct", cfg.SeriesDir)
	assert.Equal(t, ".dcm", cfg.Extension)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cbct.yaml")
	body := `
patients: [p1, p2]
base_dir: /data/raw
output_dir: /data/nii
target_spacing: 0.3
workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"p1", "p2"}, cfg.Patients)
	assert.Equal(t, "/data/raw", cfg.BaseDir)
	assert.Equal(t, 0.3, cfg.TargetSpacing)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "cbct", cfg.SeriesDir, "unset keys keep defaults")
	assert.NoError(t, cfg.Validate())
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cbct.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patients: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CBCT_PATIENTS", " a, b ,,c")
	t.Setenv("CBCT_TARGET_SPACING", "0.5")
	t.Setenv("CBCT_WORKERS", "not a number")
	t.Setenv("CBCT_OUTPUT_DIR", "/tmp/out")

	cfg := Default()
	cfg.Workers = 3
	cfg.ApplyEnv()

	assert.Equal(t, []string{"a", "b", "c"}, cfg.Patients)
	assert.Equal(t, 0.5, cfg.TargetSpacing)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Patients = []string{"p1"}
		cfg.BaseDir = "in"
		cfg.OutputDir = "out"
		return cfg
	}

	cases := []struct {
		Name   string
		Mutate func(*Config)
		OK     bool
	}{
		{"valid", func(*Config) {}, true},
		{"no patients", func(c *Config) { c.Patients = nil }, false},
		{"no base dir", func(c *Config) { c.BaseDir = "" }, false},
		{"zero spacing", func(c *Config) { c.TargetSpacing = 0 }, false},
		{"negative spacing", func(c *Config) { c.TargetSpacing = -0.1 }, false},
		{"no workers", func(c *Config) { c.Workers = 0 }, false},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			cfg := valid()
			c.Mutate(cfg)
			err := cfg.Validate()
			if c.OK {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, cbctmar.ErrInvalidArgument)
		})
	}
}
