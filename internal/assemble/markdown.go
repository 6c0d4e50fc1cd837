package assemble

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// MarkdownRenderer writes the document as CommonMark with HTML anchors
// for the table of contents links.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Ext() string { return ".md" }

func (r *MarkdownRenderer) Render(doc *Document, w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# %s\n\n", escapeMarkdown(doc.Title))

	bw.WriteString("## Document Information\n\n")
	fmt.Fprintf(bw, "- **Generated**: %s\n", doc.Meta.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(bw, "- **Slides**: %d\n", len(doc.Sections))
	fmt.Fprintf(bw, "- **AI Service**: %s\n", orNone(doc.Meta.AIService))
	fmt.Fprintf(bw, "- **Model**: %s\n", orNone(doc.Meta.Model))
	if doc.Meta.OCREnabled {
		bw.WriteString("- **OCR**: enabled\n")
	}
	bw.WriteString("\n")

	bw.WriteString("## Table of Contents\n\n")
	for i, sec := range doc.Sections {
		fmt.Fprintf(bw, "%d. [%s](#slide-%d)\n", i+1, escapeMarkdown(sectionTitle(sec)), sec.Index)
	}
	bw.WriteString("\n")

	for _, sec := range doc.Sections {
		r.writeSection(bw, sec)
	}

	return bw.Flush()
}

func (r *MarkdownRenderer) writeSection(bw *bufio.Writer, sec Section) {
	fmt.Fprintf(bw, "## <a name=\"slide-%d\"></a>%d. %s\n\n", sec.Index, sec.Index, escapeMarkdown(sectionTitle(sec)))

	if sec.Summary != "" {
		bw.WriteString("### Summary\n\n")
		writeTextBlock(bw, sec.Summary)
	}
	if sec.Content != "" {
		bw.WriteString("### Content\n\n")
		writeTextBlock(bw, sec.Content)
	}
	if len(sec.KeyPoints) > 0 {
		bw.WriteString("### Key Points\n\n")
		for _, point := range sec.KeyPoints {
			fmt.Fprintf(bw, "- %s\n", point)
		}
		bw.WriteString("\n")
	}
	if len(sec.Tags) > 0 {
		bw.WriteString("### Tags\n\n")
		fmt.Fprintf(bw, "%s\n\n", strings.Join(sec.Tags, ", "))
	}
	if sec.Original != "" && sec.Original != sec.Content {
		bw.WriteString("### Original Text\n\n")
		writeTextBlock(bw, sec.Original)
	}

	bw.WriteString("---\n\n")
}

// writeTextBlock emits multi-line body text. A leading heading marker
// is escaped so slide content cannot open a new document section; the
// rest of the text passes through untouched.
func writeTextBlock(bw *bufio.Writer, text string) {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "#") {
			line = line[:len(line)-len(trimmed)] + "\\" + trimmed
		}
		bw.WriteString(line)
		bw.WriteByte('\n')
	}
	bw.WriteByte('\n')
}

var markdownEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"#", "\\#",
	"*", "\\*",
	"_", "\\_",
	"`", "\\`",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
)

// escapeMarkdown neutralizes markdown syntax in slide titles so a title
// like "Q3 [draft]" cannot break the table of contents links.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
