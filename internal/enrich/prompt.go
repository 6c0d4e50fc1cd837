package enrich

import (
	"fmt"
	"strings"

	"pptconv/internal/extract"
	"pptconv/internal/fuse"
)

// BuildPrompt assembles the analysis prompt for one slide. Structured
// fields come from the extraction record; the fused text is included so
// OCR results reach the model too.
func BuildPrompt(rec extract.SlideRecord, fused fuse.FusedContent) string {
	var b strings.Builder

	b.WriteString("You are a presentation content analyst. Analyze the following slide and produce structured knowledge points.\n\n")
	fmt.Fprintf(&b, "Slide title: %s\n\n", rec.Title)
	fmt.Fprintf(&b, "Slide text:\n%s\n\n", fused.RawText)

	if len(rec.Bullets) > 0 {
		b.WriteString("Bullet points:\n")
		for i, point := range rec.Bullets {
			fmt.Fprintf(&b, "%d. %s\n", i+1, point)
		}
	}

	if len(rec.Tables) > 0 {
		b.WriteString("\nTables:\n")
		for _, tbl := range rec.Tables {
			cols := 0
			if len(tbl.Rows) > 0 {
				cols = len(tbl.Rows[0])
			}
			fmt.Fprintf(&b, "Table (%dx%d):\n", len(tbl.Rows), cols)
			for _, row := range tbl.Rows {
				b.WriteString(strings.Join(row, " | "))
				b.WriteByte('\n')
			}
		}
	}

	if rec.Notes != "" {
		fmt.Fprintf(&b, "\nSpeaker notes:\n%s\n", rec.Notes)
	}

	b.WriteString(`
Return the result in the following JSON format:
{
  "content": "the full content, reorganized for clarity while preserving meaning",
  "summary": "a summary of at most 100 characters",
  "key_points": ["key point 1", "key point 2", ...],
  "tags": ["tag 1", "tag 2", ...]
}

Requirements:
1. Content must be accurate and complete
2. Summary must be concise
3. Key points must highlight the core information
4. Tags must reflect the topic and domain
5. Preserve all original information
`)

	return b.String()
}
