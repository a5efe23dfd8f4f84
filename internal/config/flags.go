package config

// This file implements CLI flag parsing and help text.
// The --config file (if any) is applied before the full flag parse so that
// explicit flags always win over file values.

import (
	"flag"
	"fmt"
	"os"
)

// version is shown in --version and help; override at build time with
// -ldflags "-X ...config.version=...".
var version = "1.0.0-dev"

// Version returns the build version string.
func Version() string { return version }

// ParseFlags parses args (normally os.Args[1:]) into cfg. On --help or
// --version it prints and exits. On error it returns non-nil (e.g. unknown
// flag, missing positional args).
func ParseFlags(cfg *Config, args []string) error {
	// Pre-scan for --config so file values land under the real flag parse.
	if path := scanConfigFlag(args); path != "" {
		cfg.ConfigFile = path
		if err := LoadFile(path, cfg); err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
	}

	fs := flag.NewFlagSet("textmill", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	var (
		force       bool
		showHelp    bool
		showVersion bool
		colorMode   string
	)

	fs.String("config", "", "YAML config file (applied before other flags)")
	fs.StringVar(&cfg.StylesheetPath, "stylesheet", cfg.StylesheetPath, "XSLT stylesheet applied to every document (required)")
	fs.StringVar(&cfg.StylesheetPath, "s", cfg.StylesheetPath, "Same as --stylesheet")
	fs.StringVar(&cfg.XSLTCommand, "command", cfg.XSLTCommand, "External XSLT processor command")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Files processed to completion per batch")
	fs.IntVar(&cfg.BatchSize, "b", cfg.BatchSize, "Same as --batch-size")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent workers (0 = one per CPU)")
	fs.IntVar(&cfg.Workers, "w", cfg.Workers, "Same as --workers")
	fs.IntVar(&cfg.MaxRetries, "retries", cfg.MaxRetries, "Extra tries after a transient failure")
	fs.DurationVar(&cfg.TransformTimeout, "timeout", cfg.TransformTimeout, "Per-document transform timeout (0 = none)")
	fs.StringVar(&cfg.ReportPath, "report", cfg.ReportPath, "Metadata report path (default <output>/metadata.csv)")
	fs.StringVar(&cfg.FailuresPath, "failures", cfg.FailuresPath, "Failure ledger path (default <output>/failures.csv)")
	fs.StringVar(&cfg.DefaultCategory, "category", cfg.DefaultCategory, "Fallback category when no language is detected")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Plan and report without transforming")
	fs.BoolVar(&force, "force", false, "Reprocess files whose output already exists")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Verbose (debug) output")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Same as --verbose")
	fs.StringVar(&colorMode, "color", string(cfg.ColorMode), "Color output: auto | always | never")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also append log lines to this file")
	fs.BoolVar(&cfg.CheckOnly, "check", cfg.CheckOnly, "Run system diagnostics and exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&showHelp, "help", false, "Print help and exit")
	fs.BoolVar(&showHelp, "h", false, "Same as --help")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs)
		os.Exit(0)
	}
	if showVersion {
		fmt.Fprintln(os.Stdout, "textmill v"+version)
		os.Exit(0)
	}

	if force {
		cfg.SkipExisting = false
	}
	cfg.ColorMode = ColorMode(colorMode)

	return parsePositionalArgs(fs, cfg)
}

// parsePositionalArgs consumes <input-dir> <output-dir>. Both are required
// unless --check was given.
func parsePositionalArgs(fs *flag.FlagSet, cfg *Config) error {
	rest := fs.Args()
	if cfg.CheckOnly && len(rest) == 0 {
		return nil
	}
	switch len(rest) {
	case 2:
		cfg.InputDir = NormalizeDirArg(rest[0])
		cfg.OutputDir = NormalizeDirArg(rest[1])
		return nil
	case 0, 1:
		if cfg.InputDir != "" && cfg.OutputDir != "" {
			// Both already provided by config file or environment.
			return nil
		}
		return fmt.Errorf("expected <input-dir> <output-dir>, got %d positional args", len(rest))
	default:
		return fmt.Errorf("unexpected extra arguments: %v", rest[2:])
	}
}

// scanConfigFlag finds the --config value without a full flag parse.
func scanConfigFlag(args []string) string {
	for i, a := range args {
		switch {
		case a == "--config" || a == "-config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case len(a) > 9 && (a[:9] == "--config=" || a[:8] == "-config="):
			if a[:9] == "--config=" {
				return a[9:]
			}
			return a[8:]
		}
	}
	return ""
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `textmill v%s - parallel XML-to-text batch converter

Usage:
  textmill [options] -s stylesheet.xsl <input-dir> <output-dir>
  textmill --check

Transforms every .xml file under <input-dir> to plain text with an external
XSLT processor, files the output under <output-dir>/<language>/, and writes a
consolidated metadata report plus a failure ledger.

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment (also read from a .env file in the working directory):
  TEXTMILL_INPUT_DIR, TEXTMILL_OUTPUT_DIR, TEXTMILL_STYLESHEET,
  TEXTMILL_COMMAND, TEXTMILL_BATCH_SIZE, TEXTMILL_WORKERS,
  TEXTMILL_MAX_RETRIES, TEXTMILL_REPORT, TEXTMILL_LOG_FILE

Defaults: batch size %d, workers = CPU count, %d retries with exponential
backoff, timeout %s per document.
`, DefaultConfig().BatchSize, DefaultConfig().MaxRetries, DefaultConfig().TransformTimeout)
}
