package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/backmassage/textmill/internal/meta"
	"github.com/backmassage/textmill/internal/transform"
)

// Row is one success record in the metadata report.
type Row struct {
	Identifier  string
	Title       string
	Author      string
	Date        string
	Language    string // Canonical category, not the raw header value.
	OutputPath  string
	WordCount   int
	CharCount   int
	ProcessedAt time.Time
	Attempts    int
}

// FailureRow is one entry in the failure ledger.
type FailureRow struct {
	InputPath string
	Kind      transform.ErrorKind
	Message   string
	Attempts  int
}

// Aggregator accumulates outcomes in input order and owns the final
// artifacts. It is driven from a single goroutine (the batch runner hands
// over one ordered batch at a time), so it needs no locking of its own.
type Aggregator struct {
	outputDir       string
	reportPath      string
	failuresPath    string
	defaultCategory string

	resolver *collisionResolver
	rows     []Row
	failures []FailureRow
	bytes    int64
}

// NewAggregator prepares an aggregator writing under outputDir with the
// given artifact paths.
func NewAggregator(outputDir, reportPath, failuresPath, defaultCategory string) *Aggregator {
	return &Aggregator{
		outputDir:       outputDir,
		reportPath:      reportPath,
		failuresPath:    failuresPath,
		defaultCategory: defaultCategory,
		resolver:        newCollisionResolver(),
	}
}

// AddSuccess files the staged output text under its language category and
// appends the metadata row. If the output cannot be placed, the document is
// recorded in the failure ledger instead, preserving the invariant that
// every input appears in exactly one artifact.
func (a *Aggregator) AddSuccess(inputPath, stagedPath string, rec meta.Record, attempts int, at time.Time) {
	identifier := Identifier(inputPath)
	category := Categorize(rec.Language, a.defaultCategory)

	dest := a.resolver.resolve(inputPath, filepath.Join(a.outputDir, category, identifier+".txt"))
	if err := place(stagedPath, dest); err != nil {
		a.AddFailure(inputPath, transform.KindResourceUnavailable,
			fmt.Sprintf("cannot place output: %v", err), attempts)
		return
	}
	if fi, err := os.Stat(dest); err == nil {
		a.bytes += fi.Size()
	}

	a.rows = append(a.rows, Row{
		Identifier:  identifier,
		Title:       rec.Title,
		Author:      rec.Author,
		Date:        rec.Date,
		Language:    category,
		OutputPath:  dest,
		WordCount:   rec.WordCount,
		CharCount:   rec.CharCount,
		ProcessedAt: at,
		Attempts:    attempts,
	})
}

// AddFailure appends a ledger entry for a permanently failed document.
func (a *Aggregator) AddFailure(inputPath string, kind transform.ErrorKind, message string, attempts int) {
	a.failures = append(a.failures, FailureRow{
		InputPath: inputPath,
		Kind:      kind,
		Message:   message,
		Attempts:  attempts,
	})
}

// Counts returns how many successes and failures have been aggregated.
func (a *Aggregator) Counts() (successes, failures int) {
	return len(a.rows), len(a.failures)
}

// Words returns the total word count across all success rows.
func (a *Aggregator) Words() int64 {
	var total int64
	for _, r := range a.rows {
		total += int64(r.WordCount)
	}
	return total
}

// Bytes returns the total size of all placed output files.
func (a *Aggregator) Bytes() int64 { return a.bytes }

// Flush writes the metadata report and the failure ledger. It can be called
// more than once (e.g. a best-effort flush before a fatal abort followed by
// the final one); output is byte-identical for the same accumulated rows.
func (a *Aggregator) Flush() error {
	if err := a.writeReport(); err != nil {
		return fmt.Errorf("metadata report: %w", err)
	}
	if err := a.writeLedger(); err != nil {
		return fmt.Errorf("failure ledger: %w", err)
	}
	return nil
}

func (a *Aggregator) writeReport() error {
	f, err := createFile(a.reportPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"identifier", "title", "author", "date", "language",
		"output_path", "word_count", "char_count", "processed_at", "attempts", "status"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range a.rows {
		rec := []string{
			r.Identifier, r.Title, r.Author, r.Date, r.Language,
			r.OutputPath,
			strconv.Itoa(r.WordCount), strconv.Itoa(r.CharCount),
			r.ProcessedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(r.Attempts),
			"ok",
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func (a *Aggregator) writeLedger() error {
	f, err := createFile(a.failuresPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"input_path", "error_kind", "message", "attempts"}); err != nil {
		return err
	}
	for _, fr := range a.failures {
		rec := []string{fr.InputPath, string(fr.Kind), fr.Message, strconv.Itoa(fr.Attempts)}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// Identifier derives the document identifier from its input path: the
// basename without the .xml extension.
func Identifier(inputPath string) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	if strings.EqualFold(ext, ".xml") {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// place moves a staged file to its final destination, creating the category
// directory. An empty stagedPath (dry-run style callers) only reserves the
// destination.
func place(stagedPath, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if stagedPath == "" {
		return nil
	}
	return os.Rename(stagedPath, dest)
}

func createFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}
