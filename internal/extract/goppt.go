package extract

import (
	"bytes"
	"fmt"
	"strings"

	goppt "github.com/VantageDataChat/GoPPT"
)

// parseFlat re-reads a zipped deck through GoPPT when the structured
// XML parse cannot make sense of it. The result keeps slide order but
// carries plain text only: each slide's text lines become body
// paragraphs (bullet-glyph lines become bullets), with no titles,
// tables or images.
func parseFlat(data []byte) (records []SlideRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("goppt parse panic: %v", r)
		}
	}()

	pres, err := goppt.ReadFrom(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("goppt read: %w", err)
	}
	defer pres.Close()

	slides := pres.Slides()
	if len(slides) == 0 {
		return nil, fmt.Errorf("goppt found no slides")
	}

	records = make([]SlideRecord, 0, len(slides))
	for i, slide := range slides {
		rec := SlideRecord{Index: i + 1}
		for _, line := range strings.Split(CleanText(slide.ExtractText()), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if hasBulletGlyph(line) {
				rec.Bullets = append(rec.Bullets, line)
			} else {
				rec.BodyParagraphs = append(rec.BodyParagraphs, line)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func hasBulletGlyph(line string) bool {
	for _, glyph := range bulletGlyphs {
		if strings.HasPrefix(line, glyph) {
			return true
		}
	}
	return false
}
