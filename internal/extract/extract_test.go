package extract

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// --- pptx fixture helpers ---

const nsHeader = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func fakePNG() []byte {
	data := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, 64)...)
	return data
}

func fixtureDeck(t *testing.T) []byte {
	slide1 := `<p:sld ` + nsHeader + `><p:cSld><p:spTree>
		<p:sp><p:nvSpPr><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>
			<p:txBody><a:p><a:r><a:t>Quarterly Review</a:t></a:r></a:p></p:txBody></p:sp>
		<p:sp><p:nvSpPr><p:nvPr><p:ph type="body"/></p:nvPr></p:nvSpPr>
			<p:txBody>
				<a:p><a:pPr><a:buNone/></a:pPr><a:r><a:t>Intro </a:t></a:r><a:r><a:t>paragraph</a:t></a:r></a:p>
				<a:p><a:pPr lvl="1"/><a:r><a:t>Nested point</a:t></a:r></a:p>
				<a:p><a:pPr><a:buChar char="•"/></a:pPr><a:r><a:t>Charted point</a:t></a:r></a:p>
			</p:txBody></p:sp>
		<p:graphicFrame><a:graphic><a:graphicData><a:tbl>
			<a:tblGrid><a:gridCol/><a:gridCol/><a:gridCol/></a:tblGrid>
			<a:tr><a:tc><a:txBody><a:p><a:r><a:t>Region</a:t></a:r></a:p></a:txBody></a:tc>
				<a:tc><a:txBody><a:p><a:r><a:t>Q1</a:t></a:r></a:p></a:txBody></a:tc>
				<a:tc><a:txBody><a:p></a:p></a:txBody></a:tc></a:tr>
			<a:tr><a:tc><a:txBody><a:p><a:r><a:t>EMEA</a:t></a:r></a:p></a:txBody></a:tc>
				<a:tc><a:txBody><a:p><a:r><a:t>12</a:t></a:r></a:p></a:txBody></a:tc></a:tr>
		</a:tbl></a:graphicData></a:graphic></p:graphicFrame>
		<p:pic><p:blipFill><a:blip r:embed="rId2"/></p:blipFill></p:pic>
	</p:spTree></p:cSld></p:sld>`

	slide2 := `<p:sld ` + nsHeader + `><p:cSld><p:spTree>
		<p:sp><p:nvSpPr><p:nvPr/></p:nvSpPr>
			<p:txBody><a:p><a:r><a:t>Untitled Topic</a:t></a:r></a:p>
				<a:p><a:r><a:t>Subtitle detail</a:t></a:r></a:p></p:txBody></p:sp>
		<p:sp><p:nvSpPr><p:nvPr/></p:nvSpPr>
			<p:txBody><a:p><a:r><a:t>Second slide text</a:t></a:r></a:p></p:txBody></p:sp>
	</p:spTree></p:cSld></p:sld>`

	notes1 := `<p:notes ` + nsHeader + `><p:cSld><p:spTree>
		<p:sp><p:nvSpPr><p:nvPr><p:ph type="sldNum"/></p:nvPr></p:nvSpPr>
			<p:txBody><a:p><a:r><a:t>1</a:t></a:r></a:p></p:txBody></p:sp>
		<p:sp><p:nvSpPr><p:nvPr><p:ph type="body"/></p:nvPr></p:nvSpPr>
			<p:txBody><a:p><a:r><a:t>Mention the churn numbers.</a:t></a:r></a:p></p:txBody></p:sp>
	</p:spTree></p:cSld></p:notes>`

	// Deliberately list slide2 first in the id list: ordering must
	// follow sldIdLst, not file names.
	presentation := `<p:presentation ` + nsHeader + `><p:sldIdLst>
		<p:sldId id="256" r:id="rId1"/>
		<p:sldId id="257" r:id="rId2"/>
	</p:sldIdLst></p:presentation>`

	presRels := `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
		<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide1.xml"/>
		<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide2.xml"/>
	</Relationships>`

	slide1Rels := `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
		<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image1.png"/>
		<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide" Target="../notesSlides/notesSlide1.xml"/>
	</Relationships>`

	return buildZip(t, map[string][]byte{
		"ppt/presentation.xml":              []byte(presentation),
		"ppt/_rels/presentation.xml.rels":   []byte(presRels),
		"ppt/slides/slide1.xml":             []byte(slide1),
		"ppt/slides/slide2.xml":             []byte(slide2),
		"ppt/slides/_rels/slide1.xml.rels":  []byte(slide1Rels),
		"ppt/notesSlides/notesSlide1.xml":   []byte(notes1),
		"ppt/media/image1.png":              fakePNG(),
	})
}

// --- structured pptx tests ---

func TestExtract_PPTXStructured(t *testing.T) {
	deck := fixtureDeck(t)
	ex := &Extractor{}
	slides, err := ex.Extract(deck, "deck.pptx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slides) != 2 {
		t.Fatalf("expected 2 slides, got %d", len(slides))
	}

	s1 := slides[0]
	if s1.Index != 1 || s1.Title != "Quarterly Review" {
		t.Errorf("slide 1 index/title wrong: %d %q", s1.Index, s1.Title)
	}
	if len(s1.BodyParagraphs) != 1 || s1.BodyParagraphs[0] != "Intro paragraph" {
		t.Errorf("unexpected body paragraphs: %v", s1.BodyParagraphs)
	}
	if len(s1.Bullets) != 2 || s1.Bullets[0] != "Nested point" || s1.Bullets[1] != "Charted point" {
		t.Errorf("unexpected bullets: %v", s1.Bullets)
	}
	if s1.Notes != "Mention the churn numbers." {
		t.Errorf("unexpected notes: %q", s1.Notes)
	}
	if len(s1.Images) != 1 || s1.Images[0].Name != "image1.png" {
		t.Fatalf("unexpected images: %v", s1.Images)
	}
	if !bytes.HasPrefix(s1.Images[0].Data, []byte("\x89PNG")) {
		t.Error("image bytes not extracted")
	}

	s2 := slides[1]
	if s2.Index != 2 {
		t.Errorf("slide 2 index wrong: %d", s2.Index)
	}
	if s2.Title != "Untitled Topic" {
		t.Errorf("expected first text shape as title fallback, got %q", s2.Title)
	}
	want2 := []string{"Subtitle detail", "Second slide text"}
	if !reflect.DeepEqual(s2.BodyParagraphs, want2) {
		t.Errorf("body = %v, want title line dropped and the rest kept: %v", s2.BodyParagraphs, want2)
	}
}

func TestExtract_TableShapeParity(t *testing.T) {
	deck := fixtureDeck(t)
	ex := &Extractor{}
	slides, err := ex.Extract(deck, "deck.pptx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slides[0].Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(slides[0].Tables))
	}
	tbl := slides[0].Tables[0]
	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tbl.Rows))
	}
	for i, row := range tbl.Rows {
		if len(row) != 3 {
			t.Errorf("row %d: expected 3 cells (declared grid), got %d: %v", i, len(row), row)
		}
	}
	if tbl.Rows[0][2] != "" {
		t.Errorf("empty cell must be empty string, got %q", tbl.Rows[0][2])
	}
	if tbl.Rows[1][2] != "" {
		t.Errorf("short row must be padded with empty string, got %q", tbl.Rows[1][2])
	}
	if tbl.Rows[0][0] != "Region" || tbl.Rows[1][1] != "12" {
		t.Errorf("cell order not preserved: %v", tbl.Rows)
	}
}

func TestExtract_UnknownMagic(t *testing.T) {
	ex := &Extractor{}
	_, err := ex.Extract([]byte("plain text, not a deck"), "notes.txt")
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	var xerr *ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected *ExtractionError, got %T", err)
	}
	if xerr.Path != "notes.txt" {
		t.Errorf("error should carry the file path, got %q", xerr.Path)
	}
}

func TestExtract_EmptyZipFallsThrough(t *testing.T) {
	ex := &Extractor{}
	deck := buildZip(t, map[string][]byte{"mimetype": []byte("nonsense")})
	_, err := ex.Extract(deck, "odd.zip")
	if err == nil {
		t.Fatal("expected error for zip without slides")
	}
	var xerr *ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected *ExtractionError, got %T", err)
	}
}

// --- legacy record walker tests ---

func atom(recType uint16, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], 0x0000)
	binary.LittleEndian.PutUint16(buf[2:4], recType)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	return buf
}

func container(recType uint16, instance uint16, children ...[]byte) []byte {
	body := bytes.Join(children, nil)
	buf := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint16(buf[0:2], 0x000F|instance<<4)
	binary.LittleEndian.PutUint16(buf[2:4], recType)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(body)))
	copy(buf[8:], body)
	return buf
}

func textHeader(textType uint32) []byte {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, textType)
	return atom(recTextHeaderAtom, payload)
}

// utf16Atom encodes text as a little-endian UTF-16 TextCharsAtom. Byte
// atoms hold single-byte characters only, so non-ASCII text like bullet
// glyphs travels in chars atoms.
func utf16Atom(text string) []byte {
	runes := []rune(text)
	payload := make([]byte, len(runes)*2)
	for i, r := range runes {
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(r))
	}
	return atom(recTextCharsAtom, payload)
}

func TestLegacyWalk_GroupsSlides(t *testing.T) {
	stream := bytes.Join([][]byte{
		container(recMainMaster, 0,
			textHeader(1),
			atom(recTextBytesAtom, []byte("Click to edit Master text styles")),
		),
		container(recSlideListWithText, 0,
			atom(recSlidePersistAtom, make([]byte, 20)),
			textHeader(textTypeTitle),
			atom(recTextBytesAtom, []byte("First Slide")),
			textHeader(1),
			atom(recTextBytesAtom, []byte("Opening line")),
			utf16Atom("• Agenda item"),
			atom(recSlidePersistAtom, make([]byte, 20)),
			textHeader(textTypeTitle),
			atom(recTextBytesAtom, []byte("Second Slide")),
			textHeader(textTypeNotes),
			atom(recTextBytesAtom, []byte("remember the demo")),
		),
	}, nil)

	st := &legacyState{}
	st.walk(stream)
	slides := st.finish()

	if len(slides) != 2 {
		t.Fatalf("expected 2 slides, got %d: %+v", len(slides), slides)
	}
	if slides[0].Title != "First Slide" || slides[0].Index != 1 {
		t.Errorf("slide 1 wrong: %+v", slides[0])
	}
	if len(slides[0].BodyParagraphs) != 1 || slides[0].BodyParagraphs[0] != "Opening line" {
		t.Errorf("slide 1 body wrong: %v", slides[0].BodyParagraphs)
	}
	if len(slides[0].Bullets) != 1 || slides[0].Bullets[0] != "• Agenda item" {
		t.Errorf("slide 1 bullets wrong: %v", slides[0].Bullets)
	}
	if slides[1].Title != "Second Slide" || slides[1].Notes != "remember the demo" {
		t.Errorf("slide 2 wrong: %+v", slides[1])
	}
	for _, s := range slides {
		if strings.Contains(s.Title, "Master") {
			t.Errorf("master noise leaked into slides: %+v", s)
		}
	}
}

func TestLegacyWalk_ByteAtomIsLatin1(t *testing.T) {
	stream := bytes.Join([][]byte{
		atom(recSlidePersistAtom, nil),
		textHeader(textTypeTitle),
		atom(recTextBytesAtom, []byte{'R', 0xE9, 's', 'u', 'm', 0xE9}),
	}, nil)

	st := &legacyState{}
	st.walk(stream)
	slides := st.finish()
	if len(slides) != 1 || slides[0].Title != "Résumé" {
		t.Fatalf("byte atom must decode one rune per byte: %+v", slides)
	}
}

func TestLegacyWalk_Utf16Text(t *testing.T) {
	stream := bytes.Join([][]byte{
		atom(recSlidePersistAtom, nil),
		textHeader(textTypeTitle),
		utf16Atom("Wide Text"),
	}, nil)

	st := &legacyState{}
	st.walk(stream)
	slides := st.finish()
	if len(slides) != 1 || slides[0].Title != "Wide Text" {
		t.Fatalf("utf16 title not decoded: %+v", slides)
	}
}

func TestParsePicturesStream(t *testing.T) {
	img := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0xAB}, 2048)...)
	payload := append(make([]byte, 17), img...) // single-UID BLIP header
	rec := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint16(rec[0:2], 0x0000)
	binary.LittleEndian.PutUint16(rec[2:4], 0xF01E)
	binary.LittleEndian.PutUint32(rec[4:8], uint32(len(payload)))
	copy(rec[8:], payload)

	// A tiny record below the size filter must be dropped.
	small := append(make([]byte, 17), []byte("\x89PNGxx")...)
	rec2 := make([]byte, 8+len(small))
	binary.LittleEndian.PutUint16(rec2[2:4], 0xF01E)
	binary.LittleEndian.PutUint32(rec2[4:8], uint32(len(small)))
	copy(rec2[8:], small)

	images := parsePicturesStream(append(rec, rec2...))
	if len(images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(images))
	}
	if !bytes.Equal(images[0].Data, img) {
		t.Error("image payload does not match")
	}
}

// --- CleanText tests ---

func TestCleanText_CollapsesWhitespace(t *testing.T) {
	got := CleanText("  hello \x00  \t world \x7F  ")
	if got != "hello world" {
		t.Errorf("expected 'hello world', got %q", got)
	}
}

func TestCleanText_CollapsesNewlines(t *testing.T) {
	got := CleanText("a\n\n\n\nb")
	if got != "a\n\nb" {
		t.Errorf("expected 'a\\n\\nb', got %q", got)
	}
}

func TestCleanText_Empty(t *testing.T) {
	if got := CleanText("   \t\n  "); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
