package assemble

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DocxRenderer writes the document as a minimal WordprocessingML
// package: content types, package relationships, styles, and a single
// document part. Word and LibreOffice both open the result.
type DocxRenderer struct{}

func (r *DocxRenderer) Ext() string { return ".docx" }

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const docxStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:styleId="Title">
<w:name w:val="Title"/>
<w:pPr><w:spacing w:after="240"/><w:jc w:val="center"/></w:pPr>
<w:rPr><w:b/><w:sz w:val="56"/></w:rPr>
</w:style>
<w:style w:type="paragraph" w:styleId="Heading1">
<w:name w:val="heading 1"/>
<w:pPr><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr>
<w:rPr><w:b/><w:sz w:val="32"/></w:rPr>
</w:style>
<w:style w:type="paragraph" w:styleId="Heading2">
<w:name w:val="heading 2"/>
<w:pPr><w:spacing w:before="200" w:after="100"/><w:outlineLvl w:val="1"/></w:pPr>
<w:rPr><w:b/><w:sz w:val="26"/></w:rPr>
</w:style>
</w:styles>`

func (r *DocxRenderer) Render(doc *Document, w io.Writer) error {
	zw := zip.NewWriter(w)

	parts := []struct {
		name, body string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRootRels},
		{"word/_rels/document.xml.rels", docxDocumentRels},
		{"word/styles.xml", docxStyles},
		{"word/document.xml", buildDocumentXML(doc)},
	}
	for _, part := range parts {
		fw, err := zw.Create(part.name)
		if err != nil {
			return fmt.Errorf("create part %s: %w", part.name, err)
		}
		if _, err := io.WriteString(fw, part.body); err != nil {
			return fmt.Errorf("write part %s: %w", part.name, err)
		}
	}
	return zw.Close()
}

func buildDocumentXML(doc *Document) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	writeStyledPara(&b, "Title", doc.Title)

	writeStyledPara(&b, "Heading1", "Document Information")
	writeMetaPara(&b, "Generated", doc.Meta.GeneratedAt.Format("2006-01-02 15:04:05"))
	writeMetaPara(&b, "Slides", fmt.Sprintf("%d", len(doc.Sections)))
	writeMetaPara(&b, "AI Service", orNone(doc.Meta.AIService))
	writeMetaPara(&b, "Model", orNone(doc.Meta.Model))
	if doc.Meta.OCREnabled {
		writeMetaPara(&b, "OCR", "enabled")
	}

	writeStyledPara(&b, "Heading1", "Table of Contents")
	for i, sec := range doc.Sections {
		writePara(&b, fmt.Sprintf("%d. %s", i+1, sectionTitle(sec)))
	}

	for _, sec := range doc.Sections {
		writeSectionXML(&b, sec)
	}

	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

func writeSectionXML(b *strings.Builder, sec Section) {
	writePageBreak(b)
	writeStyledPara(b, "Heading1", fmt.Sprintf("%d. %s", sec.Index, sectionTitle(sec)))

	if sec.Summary != "" {
		writeStyledPara(b, "Heading2", "Summary")
		writeMultiline(b, sec.Summary)
	}
	if sec.Content != "" {
		writeStyledPara(b, "Heading2", "Content")
		writeMultiline(b, sec.Content)
	}
	if len(sec.KeyPoints) > 0 {
		writeStyledPara(b, "Heading2", "Key Points")
		for _, point := range sec.KeyPoints {
			writePara(b, "• "+point)
		}
	}
	if len(sec.Tags) > 0 {
		writeStyledPara(b, "Heading2", "Tags")
		writePara(b, strings.Join(sec.Tags, ", "))
	}
	if sec.Original != "" && sec.Original != sec.Content {
		writeStyledPara(b, "Heading2", "Original Text")
		writeMultiline(b, sec.Original)
	}
}

// writeMultiline emits one paragraph per text line. Blank lines become
// empty paragraphs so vertical spacing survives the round trip.
func writeMultiline(b *strings.Builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		writePara(b, line)
	}
}

func writePara(b *strings.Builder, text string) {
	b.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
	xmlEscape(b, text)
	b.WriteString(`</w:t></w:r></w:p>`)
}

func writeStyledPara(b *strings.Builder, style, text string) {
	fmt.Fprintf(b, `<w:p><w:pPr><w:pStyle w:val="%s"/></w:pPr><w:r><w:t xml:space="preserve">`, style)
	xmlEscape(b, text)
	b.WriteString(`</w:t></w:r></w:p>`)
}

func writeMetaPara(b *strings.Builder, label, value string) {
	b.WriteString(`<w:p><w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">`)
	xmlEscape(b, label+": ")
	b.WriteString(`</w:t></w:r><w:r><w:t xml:space="preserve">`)
	xmlEscape(b, value)
	b.WriteString(`</w:t></w:r></w:p>`)
}

func writePageBreak(b *strings.Builder) {
	b.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
}

func xmlEscape(b *strings.Builder, s string) {
	// EscapeText only fails on a writer error; strings.Builder never errors.
	xml.EscapeText(b, []byte(s))
}
