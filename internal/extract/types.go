// Package extract reads a presentation file and produces one ordered
// SlideRecord per slide. Modern zipped-XML decks (.pptx) are parsed
// structurally; when that fails the deck is re-read through GoPPT for a
// plain-text rendition, and OLE2 binary decks (.ppt) go through the
// legacy record parser. Extraction never touches the network.
package extract

import "fmt"

// SlideRecord is the structured extraction of one slide. Index matches
// the source slide order, is assigned once and never re-sorted; it is
// the ordering key for the rest of the pipeline. All text fields are
// empty strings (never absent) when the slide yields nothing.
type SlideRecord struct {
	Index          int
	Title          string
	BodyParagraphs []string
	Bullets        []string
	Tables         []Table
	Images         []ImageHandle
	Notes          string
}

// Table holds cell text row-major, exactly as authored. Merged or blank
// cells are empty strings, never skipped, so every row keeps the
// table's declared column count.
type Table struct {
	Rows [][]string
}

// ImageHandle is an opaque reference to one embedded image. Data holds
// the raw encoded bytes (PNG or JPEG after filtering).
type ImageHandle struct {
	Name string
	Data []byte
}

// ExtractionError is the only fatal failure of this package: every
// extraction strategy was tried and none produced slides.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
