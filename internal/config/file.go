package config

// YAML config file and environment binding. Precedence (lowest first):
// defaults, environment (incl. .env), config file, CLI flags.

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML schema. Zero values mean "not set" and leave
// the existing Config value untouched.
type fileConfig struct {
	Input           string        `yaml:"input"`
	Output          string        `yaml:"output"`
	Stylesheet      string        `yaml:"stylesheet"`
	Command         string        `yaml:"command"`
	Report          string        `yaml:"report"`
	Failures        string        `yaml:"failures"`
	BatchSize       int           `yaml:"batch_size"`
	Workers         int           `yaml:"workers"`
	MaxRetries      *int          `yaml:"max_retries"`
	Timeout         time.Duration `yaml:"timeout"`
	DefaultCategory string        `yaml:"default_category"`
	LogFile         string        `yaml:"log_file"`
}

// LoadFile reads a YAML config file and overlays its set values onto cfg.
func LoadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	setString(&cfg.InputDir, NormalizeDirArg(fc.Input))
	setString(&cfg.OutputDir, NormalizeDirArg(fc.Output))
	setString(&cfg.StylesheetPath, fc.Stylesheet)
	setString(&cfg.XSLTCommand, fc.Command)
	setString(&cfg.ReportPath, fc.Report)
	setString(&cfg.FailuresPath, fc.Failures)
	setString(&cfg.DefaultCategory, fc.DefaultCategory)
	setString(&cfg.LogFile, fc.LogFile)
	if fc.BatchSize != 0 {
		cfg.BatchSize = fc.BatchSize
	}
	if fc.Workers != 0 {
		cfg.Workers = fc.Workers
	}
	if fc.MaxRetries != nil { // 0 is a meaningful value: disable retries
		cfg.MaxRetries = *fc.MaxRetries
	}
	if fc.Timeout != 0 {
		cfg.TransformTimeout = fc.Timeout
	}
	return nil
}

// LoadEnv overlays TEXTMILL_* environment variables onto cfg. A .env file in
// the working directory is read first if present; real environment variables
// win over .env entries (godotenv does not overwrite).
func LoadEnv(cfg *Config) error {
	_ = godotenv.Load() // missing .env is not an error

	setString(&cfg.InputDir, NormalizeDirArg(os.Getenv("TEXTMILL_INPUT_DIR")))
	setString(&cfg.OutputDir, NormalizeDirArg(os.Getenv("TEXTMILL_OUTPUT_DIR")))
	setString(&cfg.StylesheetPath, os.Getenv("TEXTMILL_STYLESHEET"))
	setString(&cfg.XSLTCommand, os.Getenv("TEXTMILL_COMMAND"))
	setString(&cfg.ReportPath, os.Getenv("TEXTMILL_REPORT"))
	setString(&cfg.FailuresPath, os.Getenv("TEXTMILL_FAILURES"))
	setString(&cfg.DefaultCategory, os.Getenv("TEXTMILL_DEFAULT_CATEGORY"))
	setString(&cfg.LogFile, os.Getenv("TEXTMILL_LOG_FILE"))

	if err := setInt(&cfg.BatchSize, "TEXTMILL_BATCH_SIZE"); err != nil {
		return err
	}
	if err := setInt(&cfg.Workers, "TEXTMILL_WORKERS"); err != nil {
		return err
	}
	if err := setInt(&cfg.MaxRetries, "TEXTMILL_MAX_RETRIES"); err != nil {
		return err
	}
	if raw := os.Getenv("TEXTMILL_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("TEXTMILL_TIMEOUT: %w", err)
		}
		cfg.TransformTimeout = d
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
