// Package ocr recognizes text in slide images. Recognition is strictly
// fail-soft: every failure mode (engine missing, unreadable image,
// timeout, cancellation) collapses to a not-found Result, never an
// error. The engine exposes an availability probe so the pipeline can
// skip recognition entirely when the engine is absent.
package ocr

import "context"

// Result is the outcome of recognizing one image. Found is true iff the
// engine produced non-empty text.
type Result struct {
	Found bool
	Text  string
}

// Engine is the recognition provider contract.
type Engine interface {
	Name() string
	// Available reports whether the engine can recognize at all. It is
	// probed once per process; an unavailable engine makes Recognize a
	// cheap no-op.
	Available() bool
	// Recognize runs OCR on one encoded image with a language hint
	// (empty means the engine default). It honors ctx cancellation and
	// never returns an error.
	Recognize(ctx context.Context, image []byte, lang string) Result
}
