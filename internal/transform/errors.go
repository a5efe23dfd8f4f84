package transform

import (
	"fmt"
	"regexp"
)

// ErrorKind categorizes a transformation failure. The kind decides both the
// retry policy and the failure-ledger entry.
type ErrorKind string

const (
	// KindMalformedInput: the document itself cannot be parsed. Permanent.
	KindMalformedInput ErrorKind = "malformed-input"
	// KindRuntime: the stylesheet failed against this document. Permanent.
	KindRuntime ErrorKind = "transform-runtime"
	// KindResourceUnavailable: the engine could not start or ran out of a
	// system resource. Transient.
	KindResourceUnavailable ErrorKind = "resource-unavailable"
	// KindTimeout: the transform exceeded its deadline. Transient.
	KindTimeout ErrorKind = "timeout"
)

// Transient reports whether failures of this kind warrant a retry.
func (k ErrorKind) Transient() bool {
	return k == KindResourceUnavailable || k == KindTimeout
}

// TransformError is the uniform failure produced by the invoker.
type TransformError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error formats the failure for logs and the ledger.
func (e *TransformError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *TransformError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Pre-compiled regexes for classifying XSLT processor stderr into error
// kinds. Checked in order by [ClassifyStderr]; the first match wins.
// Patterns cover both xsltproc/libxslt and Saxon diagnostics.
var (
	reResourceIssue = regexp.MustCompile(
		`(?i)cannot (open|load|read) stylesheet|` +
			`unable to (open|load)|` +
			`out of memory|cannot allocate|` +
			`too many open files|` +
			`resource temporarily unavailable|` +
			`java\.lang\.OutOfMemoryError`)

	reMalformedInput = regexp.MustCompile(
		`(?i)parser error|not well-formed|` +
			`premature end of (file|document|data)|` +
			`opening and ending tag mismatch|` +
			`xmlParseEntityRef|document is empty|` +
			`extra content at the end of the document|` +
			`SXXP0003|invalid (character|byte)`)

	reRuntimeIssue = regexp.MustCompile(
		`(?i)runtime error|` +
			`xslt(Parse|Apply)\w* *:|` +
			`compilation (error|failed)|` +
			`XT(TE|DE|SE)\d{4}|XP(TY|DY|ST)\d{4}|FO\w{2}\d{4}|` +
			`failed to evaluate|template .* failed`)
)

// ClassifyStderr maps processor stderr to an [ErrorKind]. Resource patterns
// are checked first so a dying engine is retried rather than pinned on the
// input; anything unrecognized counts as a runtime error for this document.
func ClassifyStderr(stderr string) ErrorKind {
	switch {
	case reResourceIssue.MatchString(stderr):
		return KindResourceUnavailable
	case reMalformedInput.MatchString(stderr):
		return KindMalformedInput
	case reRuntimeIssue.MatchString(stderr):
		return KindRuntime
	default:
		return KindRuntime
	}
}
