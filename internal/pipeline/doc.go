// Package pipeline orchestrates the conversion run: it partitions the
// discovered document list into bounded batches, drives a worker pool over
// each batch, collects outcomes back into input order, feeds the metadata
// aggregator, and tracks progress.
//
// Batches are processed strictly one at a time; all units of a batch reach
// a terminal outcome (including retries) before the next batch starts, so
// peak memory is bounded by one batch regardless of collection size. Within
// a batch, completion order is unconstrained; the collector re-sorts.
package pipeline
