// Package assemble renders the processed slide deck into an output
// document. Two renderers exist: Markdown and docx. Both receive the
// same Document model so section order stays identical across formats.
package assemble

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Formats accepted by ForFormat.
const (
	FormatMarkdown = "markdown"
	FormatDocx     = "docx"
)

// Meta is the document information block placed before the table of
// contents.
type Meta struct {
	GeneratedAt time.Time
	AIService   string
	Model       string
	OCREnabled  bool
}

// Section holds the rendered fields for one slide.
type Section struct {
	Index     int
	Title     string
	Summary   string
	Content   string
	KeyPoints []string
	Tags      []string
	// Original is the raw fused text. It is rendered only when it
	// differs from Content, which happens when AI reorganized the slide.
	Original string
}

// Document is the full model handed to a renderer.
type Document struct {
	Title    string
	Meta     Meta
	Sections []Section
}

// RenderError is returned when writing the output document fails. It is
// fatal for the conversion of that input file.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer writes a Document to a stream.
type Renderer interface {
	Render(doc *Document, w io.Writer) error
	Ext() string
}

// ForFormat returns the renderer for a format name.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case FormatMarkdown:
		return &MarkdownRenderer{}, nil
	case FormatDocx:
		return &DocxRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// WriteFile renders the document to path, creating or truncating it.
// Any failure is wrapped in *RenderError.
func WriteFile(r Renderer, doc *Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &RenderError{Path: path, Err: err}
	}
	if err := r.Render(doc, f); err != nil {
		f.Close()
		os.Remove(path)
		return &RenderError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &RenderError{Path: path, Err: err}
	}
	return nil
}

// sectionTitle falls back to a positional name when extraction produced
// no title for the slide.
func sectionTitle(s Section) string {
	if s.Title != "" {
		return s.Title
	}
	return fmt.Sprintf("Slide %d", s.Index)
}

// orNone renders an unset metadata value as "none".
func orNone(v string) string {
	if v == "" {
		return "none"
	}
	return v
}
