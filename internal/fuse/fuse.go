// Package fuse merges a slide's native text with its recognized image
// text into one raw-text blob. The merge order is the single source of
// truth for how slide content is linearized: title, body paragraphs,
// bullets, table rows, notes, then OCR text in image order. Native
// content always precedes OCR-derived content, and image texts keep
// the image's position order within the slide.
package fuse

import (
	"strings"

	"pptconv/internal/extract"
	"pptconv/internal/ocr"
)

// FusedContent is the per-slide merge result. RawText is "" and
// HasOCRText false when the slide carries nothing at all.
type FusedContent struct {
	RawText    string
	HasOCRText bool
}

// Fuse combines one slide with its per-image recognition results. The
// results slice is aligned by image position; a short or nil slice is
// treated as not-found for the missing images. Fuse is pure: no state,
// no failure modes.
func Fuse(rec extract.SlideRecord, imageTexts []ocr.Result) FusedContent {
	var blocks []string

	if rec.Title != "" {
		blocks = append(blocks, rec.Title)
	}
	if len(rec.BodyParagraphs) > 0 {
		blocks = append(blocks, strings.Join(rec.BodyParagraphs, "\n"))
	}
	if len(rec.Bullets) > 0 {
		blocks = append(blocks, strings.Join(rec.Bullets, "\n"))
	}
	for _, tbl := range rec.Tables {
		if t := flattenTable(tbl); t != "" {
			blocks = append(blocks, t)
		}
	}
	if rec.Notes != "" {
		blocks = append(blocks, rec.Notes)
	}

	fused := FusedContent{}
	for i := 0; i < len(rec.Images) && i < len(imageTexts); i++ {
		if !imageTexts[i].Found {
			continue
		}
		text := strings.TrimSpace(imageTexts[i].Text)
		if text == "" {
			continue
		}
		blocks = append(blocks, text)
		fused.HasOCRText = true
	}

	fused.RawText = strings.Join(blocks, "\n\n")
	return fused
}

// flattenTable renders table rows in row-major order, cells joined
// with " | ". Empty cells keep their position so the row shape stays
// visible in the text; a table with no cell text at all flattens to "".
func flattenTable(tbl extract.Table) string {
	rows := make([]string, 0, len(tbl.Rows))
	hasText := false
	for _, row := range tbl.Rows {
		for _, cell := range row {
			if cell != "" {
				hasText = true
			}
		}
		rows = append(rows, strings.Join(row, " | "))
	}
	if !hasText {
		return ""
	}
	return strings.Join(rows, "\n")
}
