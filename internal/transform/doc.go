// Package transform wraps the external XSLT transformation engine: one
// engine instance per worker, a uniform success/failure result, and the
// retry state machine for transient failures.
//
// The engine is a black box reached through [Engine]; the production
// implementation shells out to an external processor (xsltproc by default)
// and classifies its stderr into [ErrorKind] categories. Only
// [KindResourceUnavailable] and [KindTimeout] are retryable; malformed
// input and stylesheet runtime errors are attributed to the document and
// fail permanently on the first attempt.
package transform
