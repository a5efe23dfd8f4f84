// Package config holds runtime configuration: defaults, CLI flag parsing,
// optional YAML config file and environment binding, and validation.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig] and
// then mutated by [LoadEnv], [LoadFile], and [ParseFlags] (in that precedence
// order, flags winning) before being passed (by pointer) to packages that
// need it.
type Config struct {
	// Paths (set from positional args).
	InputDir  string
	OutputDir string

	// Transformation engine.
	StylesheetPath string // Required: XSLT stylesheet applied to every document.
	XSLTCommand    string // Default: "xsltproc". External processor invoked per file.

	// Report artifacts. Empty values are resolved against OutputDir by Validate.
	ReportPath   string // Default: <output>/metadata.csv.
	FailuresPath string // Default: <output>/failures.csv.

	// Scheduling.
	BatchSize  int // Default: 100. Files processed to completion per batch.
	Workers    int // Default: 0 = one worker per CPU, resolved by Validate.
	MaxRetries int // Default: 3. Extra tries after a transient failure.

	// Retry backoff and per-transform timeout.
	RetryBaseDelay   time.Duration // Default: 500ms.
	RetryMaxDelay    time.Duration // Default: 8s.
	TransformTimeout time.Duration // Default: 2m. 0 disables the deadline.

	// Output placement.
	DefaultCategory string // Default: "unknown". Used when no language is detected.

	// Behavior flags.
	DryRun       bool
	SkipExisting bool // Default: true. Cleared by --force.

	// Display and logging.
	Verbose   bool
	ColorMode ColorMode // Default: "auto".
	LogFile   string    // Optional log file path.
	CheckOnly bool      // Run --check diagnostics and exit.

	// ConfigFile is the YAML file applied before flags (from --config).
	ConfigFile string
}

// DefaultConfig returns a Config with all defaults. Used as the base before
// env, file, and CLI overrides are applied.
func DefaultConfig() Config {
	return Config{
		XSLTCommand:      "xsltproc",
		BatchSize:        100,
		Workers:          0,
		MaxRetries:       3,
		RetryBaseDelay:   500 * time.Millisecond,
		RetryMaxDelay:    8 * time.Second,
		TransformTimeout: 2 * time.Minute,
		DefaultCategory:  "unknown",
		SkipExisting:     true,
		ColorMode:        ColorAuto,
	}
}

// Validate checks field ranges and enum values, resolves Workers=0 to the
// host CPU count, and fills the report paths from OutputDir when unset.
func (c *Config) Validate() error {
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid color mode %q (auto|always|never)", c.ColorMode)
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.RetryBaseDelay < 0 || c.RetryMaxDelay < 0 {
		return errors.New("retry delays must not be negative")
	}
	if c.TransformTimeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.XSLTCommand == "" {
		return errors.New("xslt command must not be empty")
	}
	if c.DefaultCategory == "" {
		return errors.New("default category must not be empty")
	}

	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}

	if c.CheckOnly {
		return nil
	}

	if c.StylesheetPath == "" {
		return errors.New("stylesheet path is required (--stylesheet)")
	}
	if c.InputDir == "" || c.OutputDir == "" {
		return errors.New("input and output directories are required")
	}

	if c.ReportPath == "" {
		c.ReportPath = filepath.Join(c.OutputDir, "metadata.csv")
	}
	if c.FailuresPath == "" {
		c.FailuresPath = filepath.Join(c.OutputDir, "failures.csv")
	}
	return nil
}

// ValidatePaths rejects an output directory nested inside the input
// directory, which would make discovery pick up our own artifacts.
func (c *Config) ValidatePaths(inputAbs, outputAbs string) error {
	if outputAbs == inputAbs {
		return fmt.Errorf("output directory %s equals input directory", c.OutputDir)
	}
	if strings.HasPrefix(outputAbs, inputAbs+string(filepath.Separator)) {
		return fmt.Errorf("output directory %s is inside input directory", c.OutputDir)
	}
	return nil
}

// NormalizeDirArg strips trailing path separators so that path joins and
// prefix comparisons behave consistently. "/" is preserved.
func NormalizeDirArg(dir string) string {
	if dir == "" {
		return ""
	}
	trimmed := strings.TrimRight(dir, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}
