package extract

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

// minImageSize filters out icons and bullet glyphs from the Pictures
// stream (1KB).
const minImageSize = 1024

// Record types of the PPT binary format. Each record has an 8-byte
// header: recVer(4 bits) + recInstance(12 bits) + recType(16 bits) +
// recLen(32 bits); containers (recVer == 0xF) nest further records.
const (
	recMainMaster        = 0x03F8
	recNotes             = 0x03F0
	recSlidePersistAtom  = 0x03F3
	recTextHeaderAtom    = 0x0F9F
	recTextCharsAtom     = 0x0FA0
	recTextBytesAtom     = 0x0FA8
	recSlideListWithText = 0x0FF0
)

// Text placement codes from TextHeaderAtom.
const (
	textTypeTitle       = 0
	textTypeNotes       = 2
	textTypeCenterTitle = 6
)

// parseLegacy extracts slides from a legacy binary .ppt (OLE2). Text
// records are grouped into per-slide records at SlidePersistAtom
// boundaries; the Pictures stream yields the deck's raster images.
func parseLegacy(data []byte) (records []SlideRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("legacy ppt parse panic: %v", r)
		}
	}()

	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open ole2 container: %w", err)
	}

	var pptData, picturesData []byte
	for {
		entry, nextErr := doc.Next()
		if nextErr != nil {
			break
		}
		switch entry.Name {
		case "PowerPoint Document":
			pptData, _ = io.ReadAll(entry)
		case "Pictures":
			picturesData, _ = io.ReadAll(entry)
		}
	}
	if len(pptData) == 0 {
		return nil, fmt.Errorf("no PowerPoint Document stream")
	}

	st := &legacyState{}
	st.walk(pptData)
	records = st.finish()
	if len(records) == 0 {
		return nil, fmt.Errorf("no text records in document stream")
	}

	if len(picturesData) > 0 {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[extract] legacy picture extraction panic: %v", r)
				}
			}()
			// The Pictures stream does not record which slide used
			// each image, so the deck's images attach to the first
			// slide; recognized text still enters the document.
			records[0].Images = append(records[0].Images, parsePicturesStream(picturesData)...)
		}()
	}

	return records, nil
}

// legacyState accumulates slides while walking the record tree.
type legacyState struct {
	slides   []SlideRecord
	cur      *SlideRecord
	textType uint32
}

func (st *legacyState) walk(data []byte) {
	pos := 0
	for pos+8 <= len(data) {
		recVerInstance := binary.LittleEndian.Uint16(data[pos : pos+2])
		recType := binary.LittleEndian.Uint16(data[pos+2 : pos+4])
		recLen := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		recVer := recVerInstance & 0x0F
		recInstance := recVerInstance >> 4
		pos += 8

		if recLen > uint32(len(data)-pos) {
			return
		}
		body := data[pos : pos+int(recLen)]
		pos += int(recLen)

		if recVer == 0x0F {
			switch {
			case recType == recMainMaster || recType == recNotes:
				// Master and notes containers carry template chrome
				// and are skipped wholesale.
			case recType == recSlideListWithText && recInstance != 0:
				// Instance 1/2 are the master and notes text lists.
			default:
				st.walk(body)
			}
			continue
		}

		switch recType {
		case recSlidePersistAtom:
			st.newSlide()
		case recTextHeaderAtom:
			if recLen >= 4 {
				st.textType = binary.LittleEndian.Uint32(body[:4])
			}
		case recTextCharsAtom:
			if recLen >= 2 {
				u16s := make([]uint16, recLen/2)
				for i := range u16s {
					u16s[i] = binary.LittleEndian.Uint16(body[i*2 : i*2+2])
				}
				st.addText(decodePPTRunes(utf16.Decode(u16s)))
			}
		case recTextBytesAtom:
			runes := make([]rune, 0, recLen)
			for _, b := range body {
				runes = append(runes, rune(b))
			}
			st.addText(decodePPTRunes(runes))
		}
	}
}

func (st *legacyState) newSlide() {
	st.slides = append(st.slides, SlideRecord{})
	st.cur = &st.slides[len(st.slides)-1]
	st.textType = textTypeTitle
}

func (st *legacyState) addText(text string) {
	text = CleanText(text)
	if text == "" {
		return
	}
	if st.cur == nil {
		st.newSlide()
	}
	lines := strings.Split(text, "\n")
	switch st.textType {
	case textTypeNotes:
		for _, l := range lines {
			if l == "" || isMasterNoise(l) {
				continue
			}
			if st.cur.Notes != "" {
				st.cur.Notes += "\n"
			}
			st.cur.Notes += l
		}
	case textTypeTitle, textTypeCenterTitle:
		for _, l := range lines {
			if l == "" || isMasterNoise(l) {
				continue
			}
			if st.cur.Title == "" {
				st.cur.Title = l
			} else {
				st.cur.BodyParagraphs = append(st.cur.BodyParagraphs, l)
			}
		}
	default:
		for _, l := range lines {
			if l == "" || isMasterNoise(l) {
				continue
			}
			if hasBulletGlyph(l) {
				st.cur.Bullets = append(st.cur.Bullets, l)
			} else {
				st.cur.BodyParagraphs = append(st.cur.BodyParagraphs, l)
			}
		}
	}
}

// finish drops trailing empty slides and assigns final indexes.
func (st *legacyState) finish() []SlideRecord {
	var out []SlideRecord
	for _, s := range st.slides {
		if s.Title == "" && len(s.BodyParagraphs) == 0 && len(s.Bullets) == 0 && s.Notes == "" {
			continue
		}
		out = append(out, s)
	}
	for i := range out {
		out[i].Index = i + 1
	}
	return out
}

// decodePPTRunes converts PPT text-record runes to plain text: 0x0D and
// 0x0B break paragraphs, 0x07 is a table cell marker.
func decodePPTRunes(runes []rune) string {
	var sb strings.Builder
	for _, r := range runes {
		switch {
		case r == 0x0D || r == 0x0B:
			sb.WriteByte('\n')
		case r == 0x07:
			sb.WriteByte('\t')
		case r >= 0x20 || r == 0x09 || r == 0x0A:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// parsePicturesStream walks the BLIP records of the Pictures stream and
// returns the embedded raster images. Each record has the standard
// 8-byte header followed by a BLIP header whose size depends on the
// record type and on whether the record carries one or two UIDs.
// Only JPEG (0xF01D) and PNG (0xF01E) records are kept; metafile BLIPs
// cannot be fed to the OCR engine. Unparseable records are skipped.
func parsePicturesStream(picturesData []byte) []ImageHandle {
	var images []ImageHandle
	pos := 0
	imageIndex := 1

	for pos+8 <= len(picturesData) {
		recVerInstance := binary.LittleEndian.Uint16(picturesData[pos : pos+2])
		recType := binary.LittleEndian.Uint16(picturesData[pos+2 : pos+4])
		recLen := binary.LittleEndian.Uint32(picturesData[pos+4 : pos+8])
		recInstance := recVerInstance >> 4

		if int(recLen) > len(picturesData)-(pos+8) {
			break
		}
		recordDataStart := pos + 8
		pos += 8 + int(recLen)

		var blipHeaderSize int
		switch recType {
		case 0xF01D, 0xF01E: // JPEG, PNG
			// Single UID: 16 (UID) + 1 (tag) = 17
			// Dual UID:   32 (2×UID) + 1 (tag) = 33
			if recInstance&0x10 != 0 {
				blipHeaderSize = 33
			} else {
				blipHeaderSize = 17
			}
		default:
			continue
		}

		if int(recLen) < blipHeaderSize {
			continue
		}
		imageData := append([]byte(nil), picturesData[recordDataStart+blipHeaderSize:recordDataStart+int(recLen)]...)
		if len(imageData) < minImageSize || !isRasterImage(imageData) {
			continue
		}
		images = append(images, ImageHandle{
			Name: fmt.Sprintf("picture%d", imageIndex),
			Data: imageData,
		})
		imageIndex++
	}
	return images
}
