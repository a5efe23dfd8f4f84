package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Engine transforms one input document into output text. Implementations
// are owned by exactly one worker and must not be shared across workers.
type Engine interface {
	// Transform applies the loaded stylesheet to the document at inputPath
	// and returns the resulting text. Failures should be (or wrap) a
	// *TransformError so the retry wrapper can classify them.
	Transform(ctx context.Context, inputPath string) (string, error)

	// Close releases engine resources.
	Close() error
}

// EngineFactory creates one engine per worker. A factory error during pool
// construction is how engine initialization failures surface; the pool
// treats "no worker could be created" as fatal.
type EngineFactory func() (Engine, error)

// XSLTEngine runs an external XSLT processor (xsltproc argument shape:
// <command> <stylesheet> <input>) once per document, capturing stdout as the
// transformed text and classifying stderr on failure.
type XSLTEngine struct {
	command    string
	stylesheet string
}

// NewXSLTEngine validates that the processor command and stylesheet exist
// and returns the engine. Both failure modes are *TransformError with
// [KindResourceUnavailable] so pool construction reports them as an engine
// initialization problem.
func NewXSLTEngine(command, stylesheet string) (*XSLTEngine, error) {
	if _, err := exec.LookPath(command); err != nil {
		return nil, &TransformError{
			Kind:    KindResourceUnavailable,
			Message: fmt.Sprintf("xslt processor %q not found on PATH", command),
			Err:     err,
		}
	}
	if _, err := os.Stat(stylesheet); err != nil {
		return nil, &TransformError{
			Kind:    KindResourceUnavailable,
			Message: fmt.Sprintf("stylesheet %s not readable", stylesheet),
			Err:     err,
		}
	}
	return &XSLTEngine{command: command, stylesheet: stylesheet}, nil
}

// Transform invokes the external processor. Stderr is captured for
// classification; the transformed text arrives on stdout.
func (e *XSLTEngine) Transform(ctx context.Context, inputPath string) (string, error) {
	cmd := exec.CommandContext(ctx, e.command, e.stylesheet, inputPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if ctx.Err() != nil {
		kind := KindTimeout
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// Run-level cancellation, not a per-document deadline.
			kind = KindResourceUnavailable
		}
		return "", &TransformError{
			Kind:    kind,
			Message: fmt.Sprintf("transform of %s interrupted: %v", inputPath, ctx.Err()),
			Err:     ctx.Err(),
		}
	}

	if errors.Is(err, exec.ErrNotFound) {
		return "", &TransformError{
			Kind:    KindResourceUnavailable,
			Message: fmt.Sprintf("xslt processor %q not found", e.command),
			Err:     err,
		}
	}

	return "", &TransformError{
		Kind:    ClassifyStderr(stderr.String()),
		Message: firstStderrLine(stderr.String()),
		Err:     err,
	}
}

// Close is a no-op: the external processor holds no persistent state
// between invocations.
func (e *XSLTEngine) Close() error { return nil }

// firstStderrLine trims stderr to a single ledger-friendly line.
func firstStderrLine(stderr string) string {
	for i := 0; i < len(stderr); i++ {
		if stderr[i] == '\n' {
			return stderr[:i]
		}
	}
	if stderr == "" {
		return "transform failed with no diagnostic output"
	}
	return stderr
}
