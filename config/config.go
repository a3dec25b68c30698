// Package config holds the settings of the DICOM to NIfTI conversion batch.
// Values come from defaults, an optional YAML file, then CBCT_* environment
// variables, with command line flags applied last by the caller.
package config

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/carbocation/cbctmar"
	"gopkg.in/yaml.v3"
)

// Config is the conversion batch configuration.
type Config struct {
	// Patients are the case identifiers to convert, one subdirectory of
	// BaseDir each.
	Patients []string `yaml:"patients"`

	BaseDir   string `yaml:"base_dir"`
	OutputDir string `yaml:"output_dir"`

	// TargetSpacing is the isotropic voxel size, in mm, of the output.
	TargetSpacing float64 `yaml:"target_spacing"`

	// SeriesDir is the subdirectory of each patient holding the DICOMs.
	SeriesDir string `yaml:"series_dir"`
	Extension string `yaml:"extension"`

	// Workers bounds the goroutines used by resampling and slice export.
	Workers int `yaml:"workers"`

	LogMode     string `yaml:"log_mode"`
	MetricsFile string `yaml:"metrics_file"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		TargetSpacing: 0.2,
		SeriesDir:     "cbct",
		Extension:     ".dcm",
		Workers:       runtime.NumCPU(),
		LogMode:       "development",
	}
}

// Load reads the YAML file at path on top of the defaults. A missing file
// is not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from CBCT_* environment variables. Patients are
// comma separated. Unparseable numbers leave the field unchanged.
func (c *Config) ApplyEnv() {
	if v := getEnv("CBCT_PATIENTS", ""); v != "" {
		c.Patients = splitList(v)
	}
	c.BaseDir = getEnv("CBCT_BASE_DIR", c.BaseDir)
	c.OutputDir = getEnv("CBCT_OUTPUT_DIR", c.OutputDir)
	c.TargetSpacing = getEnvFloat("CBCT_TARGET_SPACING", c.TargetSpacing)
	c.SeriesDir = getEnv("CBCT_SERIES_DIR", c.SeriesDir)
	c.Extension = getEnv("CBCT_EXTENSION", c.Extension)
	c.Workers = getEnvInt("CBCT_WORKERS", c.Workers)
	c.LogMode = getEnv("CBCT_LOG_MODE", c.LogMode)
	c.MetricsFile = getEnv("CBCT_METRICS_FILE", c.MetricsFile)
}

// Validate checks the fields the conversion batch depends on.
func (c *Config) Validate() error {
	var problems []string

	if len(c.Patients) == 0 {
		problems = append(problems, "no patients given")
	}
	if c.BaseDir == "" {
		problems = append(problems, "base_dir is empty")
	}
	if c.OutputDir == "" {
		problems = append(problems, "output_dir is empty")
	}
	if c.SeriesDir == "" {
		problems = append(problems, "series_dir is empty")
	}
	if math.IsNaN(c.TargetSpacing) || math.IsInf(c.TargetSpacing, 0) || c.TargetSpacing <= 0 {
		problems = append(problems, fmt.Sprintf("target_spacing %v is not a positive number", c.TargetSpacing))
	}
	if c.Workers < 1 {
		problems = append(problems, fmt.Sprintf("workers %d is below 1", c.Workers))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s: %w", strings.Join(problems, "; "), cbctmar.ErrInvalidArgument)
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
