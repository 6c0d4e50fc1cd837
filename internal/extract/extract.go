package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// relNS is the OOXML relationships namespace, needed to tell the r:id
// attribute apart from the plain id attribute on the same element.
const relNS = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

// maxPartSize caps a single ZIP part read (20MB, matching the per-image
// limit used for DOCX media extraction).
const maxPartSize = 20 << 20

var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Extractor reads presentation files into SlideRecords.
type Extractor struct{}

// ExtractFile reads the presentation at p and returns its slides in
// source order. The container format is decided by magic bytes, not by
// extension. Returns *ExtractionError when no strategy can produce
// slides; that is the only failure mode.
func (ex *Extractor) ExtractFile(p string) ([]SlideRecord, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, &ExtractionError{Path: p, Err: err}
	}
	return ex.Extract(data, p)
}

// Extract parses presentation bytes. The path is carried only for error
// reporting.
func (ex *Extractor) Extract(data []byte, p string) ([]SlideRecord, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		slides, err := parsePPTX(data)
		if err == nil {
			return slides, nil
		}
		log.Printf("[extract] structured pptx parse failed, retrying with flat text extraction: %v", err)
		slides, flatErr := parseFlat(data)
		if flatErr == nil {
			return slides, nil
		}
		return nil, &ExtractionError{Path: p, Err: fmt.Errorf("structured parse: %v; flat parse: %w", err, flatErr)}
	case bytes.HasPrefix(data, ole2Magic):
		slides, err := parseLegacy(data)
		if err != nil {
			return nil, &ExtractionError{Path: p, Err: err}
		}
		return slides, nil
	default:
		return nil, &ExtractionError{Path: p, Err: fmt.Errorf("not a presentation file (unknown magic bytes)")}
	}
}

// --- structured .pptx parsing ---

// relationships mirrors a .rels part.
type relationships struct {
	Rels []relationship `xml:"Relationship"`
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

// presentationXML carries the slide ordering from ppt/presentation.xml.
type presentationXML struct {
	SldIDs []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

type slideXML struct {
	Tree shapeTree `xml:"cSld>spTree"`
}

type shapeTree struct {
	Shapes []shapeXML   `xml:"sp"`
	Frames []graphicXML `xml:"graphicFrame"`
	Pics   []picXML     `xml:"pic"`
}

type shapeXML struct {
	Placeholder *struct {
		Type string `xml:"type,attr"`
	} `xml:"nvSpPr>nvPr>ph"`
	Paragraphs []paraXML `xml:"txBody>p"`
}

type paraXML struct {
	Props paraPropsXML `xml:"pPr"`
	Runs  []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

type paraPropsXML struct {
	Level     int       `xml:"lvl,attr"`
	BuChar    *struct{} `xml:"buChar"`
	BuAutoNum *struct{} `xml:"buAutoNum"`
	BuNone    *struct{} `xml:"buNone"`
}

type graphicXML struct {
	Table *tableXML `xml:"graphic>graphicData>tbl"`
}

type tableXML struct {
	GridCols []struct{} `xml:"tblGrid>gridCol"`
	Rows     []struct {
		Cells []struct {
			Paragraphs []paraXML `xml:"txBody>p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

type picXML struct {
	Blip struct {
		Embed string `xml:"embed,attr"`
	} `xml:"blipFill>blip"`
}

// bulletGlyphs are leading characters that mark a paragraph as a bullet
// even when the paragraph properties carry no bullet definition.
var bulletGlyphs = []string{"•", "-", "*", "→", "➢", "➤"}

func parsePPTX(data []byte) ([]SlideRecord, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pptx container: %w", err)
	}

	slideParts, err := orderedSlideParts(zr)
	if err != nil {
		return nil, err
	}
	if len(slideParts) == 0 {
		return nil, fmt.Errorf("no slide parts in container")
	}

	records := make([]SlideRecord, 0, len(slideParts))
	for i, part := range slideParts {
		rec, err := parseSlidePart(zr, part, i+1)
		if err != nil {
			return nil, fmt.Errorf("slide %d (%s): %w", i+1, part, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// orderedSlideParts returns slide part names in presentation order,
// resolved through ppt/presentation.xml and its relationships. When
// either part is missing or malformed, the slide files are ordered by
// their numeric suffix instead.
func orderedSlideParts(zr *zip.Reader) ([]string, error) {
	presData, presErr := readPart(zr, "ppt/presentation.xml")
	relData, relErr := readPart(zr, "ppt/_rels/presentation.xml.rels")
	if presErr == nil && relErr == nil {
		var pres presentationXML
		var rels relationships
		if xml.Unmarshal(presData, &pres) == nil && xml.Unmarshal(relData, &rels) == nil && len(pres.SldIDs) > 0 {
			targets := make(map[string]string, len(rels.Rels))
			for _, r := range rels.Rels {
				targets[r.ID] = resolveTarget("ppt", r.Target)
			}
			var parts []string
			for _, id := range pres.SldIDs {
				if t, ok := targets[id.RID]; ok && t != "" {
					parts = append(parts, t)
				}
			}
			if len(parts) > 0 {
				return parts, nil
			}
		}
	}

	// Fallback: slide file names carry their ordinal.
	numRe := regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	type numbered struct {
		n    int
		name string
	}
	var found []numbered
	for _, f := range zr.File {
		if m := numRe.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			found = append(found, numbered{n: n, name: f.Name})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	parts := make([]string, len(found))
	for i, f := range found {
		parts[i] = f.name
	}
	return parts, nil
}

func parseSlidePart(zr *zip.Reader, part string, index int) (SlideRecord, error) {
	rec := SlideRecord{Index: index}

	data, err := readPart(zr, part)
	if err != nil {
		return rec, err
	}
	var slide slideXML
	if err := xml.Unmarshal(data, &slide); err != nil {
		return rec, fmt.Errorf("decode slide xml: %w", err)
	}

	rels := slideRels(zr, part)

	// Title: the title placeholder wins; otherwise the first shape with
	// any text stands in, and in either case the title shape's text is
	// excluded from the body.
	titleShape := -1
	fallbackTitle := false
	for i, sp := range slide.Tree.Shapes {
		if sp.Placeholder != nil && (sp.Placeholder.Type == "title" || sp.Placeholder.Type == "ctrTitle") {
			rec.Title = shapeText(sp)
			titleShape = i
			break
		}
	}
	if titleShape < 0 {
		for i, sp := range slide.Tree.Shapes {
			if t := shapeText(sp); t != "" {
				rec.Title = firstLine(t)
				titleShape = i
				fallbackTitle = true
				break
			}
		}
	}

	for i, sp := range slide.Tree.Shapes {
		// A stand-in title shape only lends its first line to the
		// title; its remaining paragraphs stay in the body.
		skipTitleLine := fallbackTitle && i == titleShape
		if i == titleShape && !fallbackTitle {
			continue
		}
		for _, p := range sp.Paragraphs {
			text := CleanText(paraText(p))
			if text == "" {
				continue
			}
			if skipTitleLine {
				skipTitleLine = false
				continue
			}
			if isBulletPara(p, text) {
				rec.Bullets = append(rec.Bullets, text)
			} else {
				rec.BodyParagraphs = append(rec.BodyParagraphs, text)
			}
		}
	}

	for _, frame := range slide.Tree.Frames {
		if frame.Table == nil {
			continue
		}
		rec.Tables = append(rec.Tables, parseTable(frame.Table))
	}

	for _, pic := range slide.Tree.Pics {
		if pic.Blip.Embed == "" {
			continue
		}
		target, ok := rels[pic.Blip.Embed]
		if !ok {
			continue
		}
		imgData, err := readPart(zr, target)
		if err != nil || len(imgData) == 0 || !isRasterImage(imgData) {
			continue
		}
		rec.Images = append(rec.Images, ImageHandle{Name: path.Base(target), Data: imgData})
	}

	rec.Notes = parseNotes(zr, part)
	rec.Title = CleanText(rec.Title)
	return rec, nil
}

// slideRels returns the rId→part map for one slide, empty when the
// slide has no relationship part.
func slideRels(zr *zip.Reader, part string) map[string]string {
	relPart := path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
	data, err := readPart(zr, relPart)
	if err != nil {
		return nil
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil
	}
	out := make(map[string]string, len(rels.Rels))
	for _, r := range rels.Rels {
		out[r.ID] = resolveTarget(path.Dir(part), r.Target)
	}
	return out
}

// parseNotes extracts the speaker notes body for a slide via its
// notesSlide relationship. Absent notes yield "".
func parseNotes(zr *zip.Reader, part string) string {
	relPart := path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
	data, err := readPart(zr, relPart)
	if err != nil {
		return ""
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return ""
	}
	for _, r := range rels.Rels {
		if !strings.HasSuffix(r.Type, "/notesSlide") {
			continue
		}
		notesData, err := readPart(zr, resolveTarget(path.Dir(part), r.Target))
		if err != nil {
			return ""
		}
		var notes slideXML
		if err := xml.Unmarshal(notesData, &notes); err != nil {
			return ""
		}
		var lines []string
		for _, sp := range notes.Tree.Shapes {
			// Slide-number, header and date placeholders are chrome,
			// not note content.
			if sp.Placeholder != nil {
				switch sp.Placeholder.Type {
				case "sldNum", "hdr", "ftr", "dt", "sldImg":
					continue
				}
			}
			if t := shapeText(sp); t != "" {
				lines = append(lines, t)
			}
		}
		return CleanText(strings.Join(lines, "\n"))
	}
	return ""
}

// parseTable converts an a:tbl element, padding or trimming every row
// to the declared column count so cell parity always holds.
func parseTable(t *tableXML) Table {
	cols := len(t.GridCols)
	rows := make([][]string, 0, len(t.Rows))
	for _, tr := range t.Rows {
		row := make([]string, 0, len(tr.Cells))
		for _, tc := range tr.Cells {
			var parts []string
			for _, p := range tc.Paragraphs {
				if txt := CleanText(paraText(p)); txt != "" {
					parts = append(parts, txt)
				}
			}
			row = append(row, strings.Join(parts, " "))
		}
		if cols > 0 {
			for len(row) < cols {
				row = append(row, "")
			}
			row = row[:cols]
		}
		rows = append(rows, row)
	}
	return Table{Rows: rows}
}

func isBulletPara(p paraXML, text string) bool {
	if p.Props.BuNone != nil {
		return false
	}
	if p.Props.Level > 0 || p.Props.BuChar != nil || p.Props.BuAutoNum != nil {
		return true
	}
	for _, glyph := range bulletGlyphs {
		if strings.HasPrefix(text, glyph) {
			return true
		}
	}
	return false
}

func paraText(p paraXML) string {
	var sb strings.Builder
	for _, r := range p.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

func shapeText(sp shapeXML) string {
	var lines []string
	for _, p := range sp.Paragraphs {
		if t := CleanText(paraText(p)); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// resolveTarget resolves a relationship target against the part's base
// directory ("../media/image1.png" under "ppt/slides" becomes
// "ppt/media/image1.png").
func resolveTarget(baseDir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(baseDir, target)
}

func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, maxPartSize))
	}
	return nil, fmt.Errorf("part %s not found", name)
}

// isRasterImage checks for JPEG or PNG magic bytes. Vector metafiles
// (EMF/WMF) are dropped; the OCR engine cannot read them.
func isRasterImage(data []byte) bool {
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return true // JPEG
	}
	if len(data) >= 4 && string(data[:4]) == "\x89PNG" {
		return true // PNG
	}
	return false
}
