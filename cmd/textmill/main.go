// Command textmill is the entrypoint for the TextMill batch converter CLI.
// It parses flags, validates config and paths, and either runs the system
// check (--check) or the parallel transform pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/backmassage/textmill/internal/check"
	"github.com/backmassage/textmill/internal/config"
	"github.com/backmassage/textmill/internal/display"
	"github.com/backmassage/textmill/internal/logging"
	"github.com/backmassage/textmill/internal/pipeline"
	"github.com/backmassage/textmill/internal/term"
	"github.com/backmassage/textmill/internal/transform"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Layer config: defaults, then environment, then config file and
	// CLI flags; exit on parse or validation error.
	cfg := config.DefaultConfig()
	if err := config.LoadEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "textmill: %v\n", err)
		return 1
	}
	if err := config.ParseFlags(&cfg, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "textmill: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "textmill: %v\n", err)
		return 1
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "textmill: %v\n", err)
		return 1
	}
	defer log.Close()

	display.PrintBanner()

	// 2. If the user asked for a system check, run it and exit.
	if cfg.CheckOnly {
		check.RunCheck(&cfg, log)
		return 0
	}

	// 3. Resolve and validate paths: input must exist, output is created if
	// needed and must not sit inside the input tree.
	inputAbs, err := absPath(cfg.InputDir)
	if err != nil {
		log.Error("Input not found: %s", cfg.InputDir)
		return 1
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.Error("Cannot create output directory: %s", cfg.OutputDir)
		return 1
	}
	outputAbs, err := absPath(cfg.OutputDir)
	if err != nil {
		log.Error("Cannot resolve output path: %s", cfg.OutputDir)
		return 1
	}
	if err := cfg.ValidatePaths(inputAbs, outputAbs); err != nil {
		log.Error("%v", err)
		log.Error("Choose an output path outside: %s", cfg.InputDir)
		return 1
	}

	log.Info("=== TextMill v%s ===", config.Version())
	log.Info("In:  %s", cfg.InputDir)
	log.Info("Out: %s", cfg.OutputDir)
	if cfg.DryRun {
		log.Warn("DRY RUN")
	}
	log.Info("")

	// 4. Ensure the XSLT processor and stylesheet are available before
	// spinning up workers.
	if err := check.CheckDeps(&cfg); err != nil {
		log.Error("%v", err)
		return 1
	}

	// 5. Discover the corpus and run it through the pipeline. SIGINT and
	// SIGTERM cancel the context; in-flight units finish, the rest are
	// abandoned and the partial report is still written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := pipeline.Discover(cfg.InputDir)
	if err != nil {
		log.Error("Corpus discovery failed: %v", err)
		return 1
	}
	if len(files) == 0 {
		log.Warn("No XML documents found under %s", cfg.InputDir)
		return 0
	}

	factory := func() (transform.Engine, error) {
		return transform.NewXSLTEngine(cfg.XSLTCommand, cfg.StylesheetPath)
	}

	// Live progress line on a terminal; the per-batch log lines cover
	// non-interactive use.
	var onProgress func(pipeline.Snapshot)
	if term.IsTerminal(os.Stdout) && !cfg.Verbose {
		onProgress = func(s pipeline.Snapshot) {
			fmt.Printf("\r%s", display.ProgressLine(s.Done(), s.Failed, s.Total, s.Rate(), s.Remaining()))
			if s.Done() == s.Total {
				fmt.Println()
			}
		}
	}

	stats, err := pipeline.Run(ctx, &cfg, log, files, factory, onProgress)
	if err != nil {
		if errors.Is(err, pipeline.ErrPoolInit) {
			log.Error("Fatal: %v", err)
			log.Error("Partial results for %d documents were written to %s",
				stats.Succeeded+stats.Failed, cfg.ReportPath)
		} else {
			log.Error("Run failed: %v", err)
		}
		return 1
	}
	if stats.Failed > 0 {
		return 2
	}
	return 0
}

// absPath returns the absolute path with symlinks resolved, for comparing
// the input and output hierarchies.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
