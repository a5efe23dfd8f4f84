package transform

import (
	"context"
	"errors"

	"github.com/backmassage/textmill/internal/meta"
)

// Result is the successful outcome of one transformation: the output text
// plus the metadata extracted from the source document.
type Result struct {
	Text string
	Meta meta.Record
}

// Invoker owns one engine for a worker's lifetime and normalizes every call
// into a Result or a *TransformError. It writes no files; output placement
// belongs to the caller.
type Invoker struct {
	engine Engine
}

// NewInvoker wraps an engine. The invoker takes ownership; Close releases
// the engine.
func NewInvoker(engine Engine) *Invoker {
	return &Invoker{engine: engine}
}

// Close releases the underlying engine.
func (iv *Invoker) Close() error {
	return iv.engine.Close()
}

// Invoke transforms one document and extracts its metadata. Any failure is
// returned as a *TransformError; errors the engine did not classify count
// as runtime errors.
func (iv *Invoker) Invoke(ctx context.Context, inputPath string) (*Result, *TransformError) {
	text, err := iv.engine.Transform(ctx, inputPath)
	if err != nil {
		return nil, coerce(err)
	}

	rec, err := meta.ExtractFile(inputPath)
	if err != nil {
		// The transform succeeded but the source header cannot be parsed;
		// attribute the failure to the input.
		return nil, &TransformError{
			Kind:    KindMalformedInput,
			Message: err.Error(),
			Err:     err,
		}
	}
	rec.WordCount, rec.CharCount = meta.Counts(text)

	return &Result{Text: text, Meta: rec}, nil
}

// coerce returns err as a *TransformError, wrapping unclassified errors as
// runtime failures.
func coerce(err error) *TransformError {
	var terr *TransformError
	if errors.As(err, &terr) {
		return terr
	}
	return &TransformError{Kind: KindRuntime, Message: err.Error(), Err: err}
}
