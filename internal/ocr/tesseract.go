package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes images through the gosseract client. A single
// probe recognition decides availability for the whole run; each
// Recognize call uses a fresh client.
type Tesseract struct {
	// TessPath is the configured tesseract install path. gosseract
	// links libtesseract directly, so the path is only checked and
	// logged, never executed.
	TessPath string

	probeOnce sync.Once
	available bool
}

// NewTesseract returns a Tesseract engine. tessPath may be empty.
func NewTesseract(tessPath string) *Tesseract {
	return &Tesseract{TessPath: tessPath}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Available probes the engine once by recognizing a tiny generated
// image. Any failure marks the engine unavailable for the run.
func (t *Tesseract) Available() bool {
	t.probeOnce.Do(func() {
		if t.TessPath != "" {
			if _, err := os.Stat(t.TessPath); err != nil {
				log.Printf("[ocr] configured tesseract path %s not found: %v", t.TessPath, err)
			}
		}
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[ocr] tesseract probe panic: %v", r)
				t.available = false
			}
		}()
		c := gosseract.NewClient()
		defer c.Close()
		if err := c.SetImageFromBytes(probeImage()); err != nil {
			log.Printf("[ocr] tesseract unavailable: %v", err)
			return
		}
		if _, err := c.Text(); err != nil {
			log.Printf("[ocr] tesseract unavailable: %v", err)
			return
		}
		t.available = true
	})
	return t.available
}

// Recognize runs one image through tesseract. The blocking cgo call is
// raced against ctx so a document-level cancel or per-call timeout is
// honored; an abandoned call finishes in the background and its client
// is closed there.
func (t *Tesseract) Recognize(ctx context.Context, img []byte, lang string) Result {
	if !t.Available() {
		return Result{}
	}
	if ctx.Err() != nil {
		return Result{}
	}

	pre, err := Preprocess(img)
	if err != nil {
		log.Printf("[ocr] preprocess failed: %v", err)
		return Result{}
	}

	done := make(chan Result, 1)
	go func() {
		done <- t.recognize(pre, lang)
	}()
	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return Result{}
	}
}

func (t *Tesseract) recognize(img []byte, lang string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ocr] recognition panic: %v", r)
			res = Result{}
		}
	}()
	c := gosseract.NewClient()
	defer c.Close()
	if err := c.SetImageFromBytes(img); err != nil {
		return Result{}
	}
	if lang != "" {
		if err := c.SetLanguage(lang); err != nil {
			return Result{}
		}
	}
	text, err := c.Text()
	if err != nil {
		return Result{}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}
	}
	return Result{Found: true, Text: text}
}

// probeImage is a generated 8x8 white PNG, enough to exercise the full
// recognition path without trained-data dependence on content.
func probeImage() []byte {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
