// Package report consolidates per-document outcomes into the final
// artifacts: transformed text filed under per-language category
// directories, one ordered CSV metadata report, and a companion failure
// ledger. Rows keep original input order regardless of worker completion
// order, and every input path lands in exactly one of the two artifacts.
package report
