// Package check provides system diagnostics (--check mode) and pre-run
// dependency validation for the external XSLT processor and the stylesheet.
package check

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/backmassage/textmill/internal/config"
)

// Sentinel errors returned by CheckDeps when a required piece is missing.
var (
	ErrProcessorNotFound  = errors.New("xslt processor not found on PATH")
	ErrStylesheetNotFound = errors.New("stylesheet not found or unreadable")
)

// Logger is the minimal logging interface needed by RunCheck. Defined here
// (rather than importing the logging package) so that check remains
// dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// CheckDeps verifies the processor command and stylesheet before the run
// starts, failing fast with a sentinel error.
func CheckDeps(cfg *config.Config) error {
	if _, err := exec.LookPath(cfg.XSLTCommand); err != nil {
		return fmt.Errorf("%w: %q", ErrProcessorNotFound, cfg.XSLTCommand)
	}
	if _, err := os.Stat(cfg.StylesheetPath); err != nil {
		return fmt.Errorf("%w: %s", ErrStylesheetNotFound, cfg.StylesheetPath)
	}
	return nil
}

// RunCheck runs the interactive --check flow: prints processor availability
// and version, stylesheet status, and the parallelism that would be used.
// This is informational only, it does not stop on failure.
func RunCheck(cfg *config.Config, log Logger) {
	log.Info("=== System Check ===")

	checkProcessor(cfg, log)
	checkStylesheet(cfg, log)

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	log.Info("Parallelism: %d workers (%d CPUs), batch size %d",
		workers, runtime.NumCPU(), cfg.BatchSize)
	log.Info("Retry policy: %d retries, backoff %s base / %s cap, timeout %s",
		cfg.MaxRetries, cfg.RetryBaseDelay, cfg.RetryMaxDelay, cfg.TransformTimeout)
}

func checkProcessor(cfg *config.Config, log Logger) {
	path, err := exec.LookPath(cfg.XSLTCommand)
	if err != nil {
		log.Error("Processor: %q not found on PATH", cfg.XSLTCommand)
		return
	}
	log.Success("Processor: %s", path)

	out, err := exec.Command(cfg.XSLTCommand, "--version").CombinedOutput()
	if err != nil {
		log.Warn("Processor: --version failed: %v", err)
		return
	}
	if line := firstLine(string(out)); line != "" {
		log.Info("Version: %s", line)
	}
}

func checkStylesheet(cfg *config.Config, log Logger) {
	if cfg.StylesheetPath == "" {
		log.Warn("Stylesheet: not configured (--stylesheet)")
		return
	}
	fi, err := os.Stat(cfg.StylesheetPath)
	if err != nil {
		log.Error("Stylesheet: %s not readable: %v", cfg.StylesheetPath, err)
		return
	}
	log.Success("Stylesheet: %s (%d bytes)", cfg.StylesheetPath, fi.Size())
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
