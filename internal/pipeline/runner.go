package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/textmill/internal/config"
	"github.com/backmassage/textmill/internal/display"
	"github.com/backmassage/textmill/internal/logging"
	"github.com/backmassage/textmill/internal/report"
	"github.com/backmassage/textmill/internal/transform"
)

// RunStats tracks aggregate counters for a batch run.
type RunStats struct {
	RunID     string
	Total     int
	Skipped   int
	Succeeded int
	Failed    int
	Batches   int
	Words     int64
	Bytes     int64
	Elapsed   time.Duration
}

// Run is the top-level batch entry point. files is the ordered document
// list (normally from [Discover]); factory creates one engine per worker.
// onProgress, if non-nil, receives a snapshot after every terminal outcome.
//
// Per-unit failures are contained in the failure ledger and never abort the
// run. A non-nil error means a fatal abort (pool initialization or report
// flush); whatever was aggregated before the abort has been flushed.
func Run(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	files []string,
	factory transform.EngineFactory,
	onProgress func(Snapshot),
) (RunStats, error) {
	stats := RunStats{RunID: uuid.NewString(), Total: len(files)}
	start := time.Now()

	agg := report.NewAggregator(cfg.OutputDir, cfg.ReportPath, cfg.FailuresPath, cfg.DefaultCategory)

	if cfg.SkipExisting {
		files, stats.Skipped = filterExisting(cfg, log, files)
	}

	batches := Partition(files, cfg.BatchSize)
	stats.Batches = len(batches)

	log.Info("Run %s: %d documents in %d batches of up to %d (%d workers)",
		shortID(stats.RunID), len(files), len(batches), cfg.BatchSize, cfg.Workers)
	if stats.Skipped > 0 {
		log.Info("Skipping %d documents with existing output (use --force to redo)", stats.Skipped)
	}

	if cfg.DryRun {
		for _, batch := range batches {
			for _, unit := range batch {
				log.Info("[DRY] Would transform %s", unit.Path)
			}
		}
		stats.Elapsed = time.Since(start)
		log.Success("[DRY] %d documents would be transformed", len(files))
		return stats, nil
	}

	staging := filepath.Join(cfg.OutputDir, ".textmill-"+stats.RunID)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return stats, fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	progress := NewProgress(len(files))
	observe := func(o Outcome) {
		progress.Observe(o)
		if onProgress != nil {
			onProgress(progress.Snapshot())
		}
	}

	for bi, batch := range batches {
		if ctx.Err() != nil {
			log.Warn("Interrupted, %d of %d batches not started", len(batches)-bi, len(batches))
			break
		}

		log.Debug(cfg.Verbose, "Batch %d/%d: %d documents", bi+1, len(batches), len(batch))

		pool, err := NewPool(cfg, log, factory, staging)
		if err != nil {
			// Fatal: flush what completed in earlier batches, then abort.
			finish(&stats, agg, start)
			if ferr := agg.Flush(); ferr != nil {
				log.Error("Partial report flush failed: %v", ferr)
			} else {
				log.Warn("Aborting; partial report covers %d documents", stats.Succeeded+stats.Failed)
			}
			return stats, fmt.Errorf("batch %d/%d: %w", bi+1, len(batches), err)
		}

		out := make(chan Outcome, len(batch))
		collected := make(chan []Outcome, 1)
		go func() { collected <- Collect(out, observe) }()

		pool.RunBatch(ctx, batch, out)
		close(out)
		outcomes := <-collected
		pool.Close()

		for _, o := range outcomes {
			if o.Succeeded() {
				agg.AddSuccess(o.Unit.Path, o.StagedPath, o.Result.Meta, o.Attempts, o.ProcessedAt)
			} else {
				agg.AddFailure(o.Unit.Path, o.Err.Kind, o.Err.Message, o.Attempts)
			}
		}

		snap := progress.Snapshot()
		log.Info("Batch %d/%d complete: %s", bi+1, len(batches),
			display.ProgressLine(snap.Done(), snap.Failed, snap.Total, snap.Rate(), snap.Remaining()))
	}

	finish(&stats, agg, start)
	if err := agg.Flush(); err != nil {
		log.Error("Report flush failed: %v", err)
		return stats, err
	}

	logSummary(cfg, log, &stats)
	return stats, nil
}

// finish copies aggregator totals and elapsed time into stats.
func finish(stats *RunStats, agg *report.Aggregator, start time.Time) {
	stats.Succeeded, stats.Failed = agg.Counts()
	stats.Words = agg.Words()
	stats.Bytes = agg.Bytes()
	stats.Elapsed = time.Since(start)
}

// filterExisting drops documents whose output already exists under any
// category directory, returning the remaining list and the skip count.
func filterExisting(cfg *config.Config, log *logging.Logger, files []string) ([]string, int) {
	kept := files[:0:0]
	skipped := 0
	for _, path := range files {
		pattern := filepath.Join(cfg.OutputDir, "*", report.Identifier(path)+".txt")
		matches, err := filepath.Glob(pattern)
		if err == nil && len(matches) > 0 {
			log.Debug(cfg.Verbose, "Skip (exists): %s", filepath.Base(matches[0]))
			skipped++
			continue
		}
		kept = append(kept, path)
	}
	return kept, skipped
}

func logSummary(cfg *config.Config, log *logging.Logger, stats *RunStats) {
	log.Info("==============================")
	log.Info("Run %s done in %s", shortID(stats.RunID), display.FormatDuration(stats.Elapsed))
	log.Info("  Documents: %d total, %d skipped", stats.Total, stats.Skipped)
	if stats.Failed > 0 {
		log.Warn("  Converted: %d, failed: %d (see %s)", stats.Succeeded, stats.Failed, cfg.FailuresPath)
	} else {
		log.Success("  Converted: %d, failed: 0", stats.Succeeded)
	}
	log.Info("  Words extracted: %d (%s written)", stats.Words, display.FormatBytes(stats.Bytes))
	log.Info("  Report: %s", cfg.ReportPath)
}

func shortID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
