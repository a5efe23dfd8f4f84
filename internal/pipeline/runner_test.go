package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/backmassage/textmill/internal/config"
	"github.com/backmassage/textmill/internal/logging"
	"github.com/backmassage/textmill/internal/report"
	"github.com/backmassage/textmill/internal/transform"
)

const teiTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader>
    <fileDesc>
      <titleStmt>
        <title>Document %d</title>
        <author>Testfall, Anna</author>
      </titleStmt>
      <sourceDesc>
        <biblFull>
          <publicationStmt>
            <date>1832</date>
          </publicationStmt>
        </biblFull>
      </sourceDesc>
    </fileDesc>
    <profileDesc>
      <langUsage>
        <language ident="%s"/>
      </langUsage>
    </profileDesc>
  </teiHeader>
  <text><body><p>corpus text</p></body></text>
</TEI>
`

// writeCorpus creates n well-formed TEI documents and returns their paths
// in lexicographic (= input) order.
func writeCorpus(t *testing.T, n int, lang string) []string {
	t.Helper()
	dir := t.TempDir()
	files := make([]string, n)
	for i := range files {
		path := filepath.Join(dir, fmt.Sprintf("doc-%04d.xml", i))
		body := fmt.Sprintf(teiTemplate, i, lang)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		files[i] = path
	}
	return files
}

func runConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.ReportPath = filepath.Join(cfg.OutputDir, "metadata.csv")
	cfg.FailuresPath = filepath.Join(cfg.OutputDir, "failures.csv")
	cfg.Workers = 4
	cfg.BatchSize = 100
	cfg.MaxRetries = 3
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 2 * time.Millisecond
	cfg.TransformTimeout = 0
	cfg.SkipExisting = false
	cfg.ColorMode = config.ColorNever
	return &cfg
}

func testLogger(t *testing.T, cfg *config.Config) *logging.Logger {
	t.Helper()
	log, err := logging.NewLogger(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

// scriptBook scripts per-document behavior for the fake engines a run
// creates. Engines share the book, so retry sequencing holds across
// workers. Rules are keyed by input basename.
type scriptBook struct {
	mu       sync.Mutex
	rules    map[string]scriptRule
	attempts map[string]int
	engines  int
	maxDelay time.Duration
}

type scriptRule struct {
	kind     transform.ErrorKind
	failures int // attempts to fail before succeeding; -1 fails forever
}

func newScriptBook() *scriptBook {
	return &scriptBook{
		rules:    make(map[string]scriptRule),
		attempts: make(map[string]int),
	}
}

func (b *scriptBook) fail(base string, kind transform.ErrorKind, times int) {
	b.rules[base] = scriptRule{kind: kind, failures: times}
}

func (b *scriptBook) tries(base string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts[base]
}

func (b *scriptBook) factory() transform.EngineFactory {
	return func() (transform.Engine, error) {
		b.mu.Lock()
		b.engines++
		b.mu.Unlock()
		return &scriptedEngine{book: b}, nil
	}
}

type scriptedEngine struct {
	book   *scriptBook
	closed bool
}

func (e *scriptedEngine) Transform(ctx context.Context, inputPath string) (string, error) {
	base := filepath.Base(inputPath)

	e.book.mu.Lock()
	e.book.attempts[base]++
	n := e.book.attempts[base]
	rule, scripted := e.book.rules[base]
	delay := e.book.maxDelay
	e.book.mu.Unlock()

	if delay > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(delay))))
	}
	if scripted && (rule.failures < 0 || n <= rule.failures) {
		return "", &transform.TransformError{Kind: rule.kind, Message: "scripted failure"}
	}
	return "transformed corpus text", nil
}

func (e *scriptedEngine) Close() error {
	e.closed = true
	return nil
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestRun_FullCorpus(t *testing.T) {
	files := writeCorpus(t, 250, "de")
	cfg := runConfig(t)
	log := testLogger(t, cfg)
	book := newScriptBook()

	var snapshots int
	stats, err := Run(context.Background(), cfg, log, files, book.factory(),
		func(Snapshot) { snapshots++ })
	if err != nil {
		t.Fatal(err)
	}

	if stats.Batches != 3 {
		t.Errorf("batches: got %d, want 3", stats.Batches)
	}
	if stats.Succeeded != 250 || stats.Failed != 0 {
		t.Errorf("counts: %d succeeded, %d failed", stats.Succeeded, stats.Failed)
	}
	if snapshots != 250 {
		t.Errorf("progress snapshots: got %d, want 250", snapshots)
	}
	// Engines are created per batch, one per worker.
	if book.engines != 3*cfg.Workers {
		t.Errorf("engines created: got %d, want %d", book.engines, 3*cfg.Workers)
	}

	rows := readCSV(t, cfg.ReportPath)
	if len(rows) != 251 {
		t.Fatalf("report rows: got %d, want 251", len(rows))
	}
	for i, row := range rows[1:] {
		want := report.Identifier(files[i])
		if row[0] != want {
			t.Fatalf("report row %d: identifier %s, want %s (input order lost)", i, row[0], want)
		}
		if row[4] != "de" {
			t.Errorf("row %d language: got %s, want de", i, row[4])
		}
	}

	ledger := readCSV(t, cfg.FailuresPath)
	if len(ledger) != 1 {
		t.Errorf("failure ledger should hold only the header, got %d rows", len(ledger))
	}

	// Outputs landed under the language category directory.
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "de", report.Identifier(files[0])+".txt")); err != nil {
		t.Errorf("expected categorized output: %v", err)
	}
	// Staging is cleaned up.
	matches, _ := filepath.Glob(filepath.Join(cfg.OutputDir, ".textmill-*"))
	if len(matches) != 0 {
		t.Errorf("staging directory left behind: %v", matches)
	}
}

func TestRun_OrderUnderRandomCompletion(t *testing.T) {
	files := writeCorpus(t, 60, "en")
	cfg := runConfig(t)
	cfg.Workers = 8
	cfg.BatchSize = 20
	log := testLogger(t, cfg)
	book := newScriptBook()
	book.maxDelay = 3 * time.Millisecond

	if _, err := Run(context.Background(), cfg, log, files, book.factory(), nil); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, cfg.ReportPath)
	if len(rows) != 61 {
		t.Fatalf("report rows: got %d, want 61", len(rows))
	}
	for i, row := range rows[1:] {
		if want := report.Identifier(files[i]); row[0] != want {
			t.Fatalf("row %d out of order: got %s, want %s", i, row[0], want)
		}
	}
}

func TestRun_PermanentFailuresGoToLedger(t *testing.T) {
	files := writeCorpus(t, 10, "de")
	cfg := runConfig(t)
	log := testLogger(t, cfg)
	book := newScriptBook()
	book.fail(filepath.Base(files[2]), transform.KindRuntime, -1)
	book.fail(filepath.Base(files[7]), transform.KindMalformedInput, -1)

	stats, err := Run(context.Background(), cfg, log, files, book.factory(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Succeeded != 8 || stats.Failed != 2 {
		t.Fatalf("counts: %d succeeded, %d failed", stats.Succeeded, stats.Failed)
	}

	rows := readCSV(t, cfg.ReportPath)
	if len(rows) != 9 {
		t.Errorf("report rows: got %d, want 9 (8 successes + header)", len(rows))
	}
	for _, row := range rows[1:] {
		if row[0] == report.Identifier(files[2]) || row[0] == report.Identifier(files[7]) {
			t.Errorf("failed document %s appears in the success report", row[0])
		}
	}

	ledger := readCSV(t, cfg.FailuresPath)
	if len(ledger) != 3 {
		t.Fatalf("ledger rows: got %d, want 3", len(ledger))
	}
	// Ledger preserves input order too.
	if ledger[1][0] != files[2] || ledger[2][0] != files[7] {
		t.Errorf("ledger order: %v / %v", ledger[1][0], ledger[2][0])
	}
	if ledger[1][1] != string(transform.KindRuntime) {
		t.Errorf("ledger kind: got %s, want %s", ledger[1][1], transform.KindRuntime)
	}
	// Permanent kinds get exactly one attempt.
	if ledger[1][3] != "1" || ledger[2][3] != "1" {
		t.Errorf("permanent failures should record 1 attempt, got %s and %s", ledger[1][3], ledger[2][3])
	}
}

func TestRun_TransientRetriesCountAttempts(t *testing.T) {
	files := writeCorpus(t, 3, "de")
	cfg := runConfig(t)
	cfg.Workers = 1
	log := testLogger(t, cfg)
	book := newScriptBook()
	book.fail(filepath.Base(files[1]), transform.KindResourceUnavailable, 2)

	stats, err := Run(context.Background(), cfg, log, files, book.factory(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Succeeded != 3 {
		t.Fatalf("all documents should succeed, got %d", stats.Succeeded)
	}
	if got := book.tries(filepath.Base(files[1])); got != 3 {
		t.Errorf("engine invocations: got %d, want 3 (2 failures + success)", got)
	}

	rows := readCSV(t, cfg.ReportPath)
	// attempts column sits before the trailing status column.
	attempts := rows[2][len(rows[2])-2]
	if attempts != "3" {
		t.Errorf("report attempts: got %s, want 3", attempts)
	}
	if rows[1][len(rows[1])-2] != "1" {
		t.Errorf("untouched document should record 1 attempt")
	}
}

func TestRun_RetryBudgetExhausted(t *testing.T) {
	files := writeCorpus(t, 1, "de")
	cfg := runConfig(t)
	cfg.Workers = 1
	cfg.MaxRetries = 2
	log := testLogger(t, cfg)
	book := newScriptBook()
	book.fail(filepath.Base(files[0]), transform.KindTimeout, -1)

	stats, err := Run(context.Background(), cfg, log, files, book.factory(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", stats.Failed)
	}

	ledger := readCSV(t, cfg.FailuresPath)
	if ledger[1][3] != "3" {
		t.Errorf("attempts: got %s, want 3 (1 initial + 2 retries)", ledger[1][3])
	}
}

func TestRun_PoolInitFatalMidRun(t *testing.T) {
	files := writeCorpus(t, 10, "de")
	cfg := runConfig(t)
	cfg.Workers = 2
	cfg.BatchSize = 2 // 5 batches
	log := testLogger(t, cfg)
	book := newScriptBook()

	inner := book.factory()
	var calls int
	var mu sync.Mutex
	factory := func() (transform.Engine, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls > 2*cfg.Workers { // batches 1 and 2 succeed, 3 cannot start
			return nil, errors.New("engine backend gone")
		}
		return inner()
	}

	stats, err := Run(context.Background(), cfg, log, files, factory, nil)
	if !errors.Is(err, ErrPoolInit) {
		t.Fatalf("expected ErrPoolInit, got %v", err)
	}
	if stats.Succeeded != 4 {
		t.Errorf("completed documents before abort: got %d, want 4", stats.Succeeded)
	}

	// The partial report was flushed before the abort.
	rows := readCSV(t, cfg.ReportPath)
	if len(rows) != 5 {
		t.Fatalf("partial report rows: got %d, want 5 (4 successes + header)", len(rows))
	}
	for i, row := range rows[1:] {
		if want := report.Identifier(files[i]); row[0] != want {
			t.Errorf("partial row %d: got %s, want %s", i, row[0], want)
		}
	}
}

func TestRun_SkipExisting(t *testing.T) {
	files := writeCorpus(t, 4, "de")
	cfg := runConfig(t)
	cfg.SkipExisting = true
	log := testLogger(t, cfg)

	existing := filepath.Join(cfg.OutputDir, "de", report.Identifier(files[1])+".txt")
	if err := os.MkdirAll(filepath.Dir(existing), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("old output"), 0o644); err != nil {
		t.Fatal(err)
	}

	book := newScriptBook()
	stats, err := Run(context.Background(), cfg, log, files, book.factory(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 || stats.Succeeded != 3 {
		t.Fatalf("skipped=%d succeeded=%d, want 1/3", stats.Skipped, stats.Succeeded)
	}
	if got := book.tries(filepath.Base(files[1])); got != 0 {
		t.Errorf("skipped document was transformed %d times", got)
	}

	data, err := os.ReadFile(existing)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "old output" {
		t.Error("existing output was overwritten despite skip-existing")
	}
}

func TestRun_DryRun(t *testing.T) {
	files := writeCorpus(t, 5, "de")
	cfg := runConfig(t)
	cfg.DryRun = true
	log := testLogger(t, cfg)
	book := newScriptBook()

	stats, err := Run(context.Background(), cfg, log, files, book.factory(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 5 || stats.Succeeded != 0 {
		t.Errorf("dry run stats: %+v", stats)
	}
	if book.engines != 0 {
		t.Errorf("dry run created %d engines", book.engines)
	}
	if _, err := os.Stat(cfg.ReportPath); !os.IsNotExist(err) {
		t.Errorf("dry run should not write a report")
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	files := writeCorpus(t, 6, "de")
	cfg := runConfig(t)
	log := testLogger(t, cfg)
	book := newScriptBook()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := Run(ctx, cfg, log, files, book.factory(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Succeeded != 0 || stats.Failed != 0 {
		t.Errorf("cancelled run processed documents: %+v", stats)
	}
	if book.engines != 0 {
		t.Errorf("cancelled run created %d engines", book.engines)
	}
	// The (empty) report is still flushed so partial runs leave a record.
	rows := readCSV(t, cfg.ReportPath)
	if len(rows) != 1 {
		t.Errorf("report rows after cancelled run: got %d, want 1", len(rows))
	}
}

func TestRun_EmptyInput(t *testing.T) {
	cfg := runConfig(t)
	log := testLogger(t, cfg)
	book := newScriptBook()

	stats, err := Run(context.Background(), cfg, log, nil, book.factory(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 0 || stats.Batches != 0 {
		t.Errorf("empty run stats: %+v", stats)
	}
	rows := readCSV(t, cfg.ReportPath)
	if len(rows) != 1 {
		t.Errorf("empty run report rows: got %d, want 1", len(rows))
	}
}
