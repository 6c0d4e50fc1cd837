package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func smallColorImage(t *testing.T) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 12), G: 100, B: uint8(y * 20), A: 255})
		}
	}
	return encodePNG(t, img)
}

func TestPreprocess_Deterministic(t *testing.T) {
	in := smallColorImage(t)
	first, err := Preprocess(in)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	second, err := Preprocess(in)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("preprocess output differs between runs on identical input")
	}
}

func TestPreprocess_GrayscaleAndUpscale(t *testing.T) {
	out, err := Preprocess(smallColorImage(t))
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if _, ok := img.(*image.Gray); !ok {
		t.Errorf("expected grayscale output, got %T", img)
	}
	b := img.Bounds()
	if b.Dx() < minDimension || b.Dy() < minDimension {
		t.Errorf("small image not upscaled: %dx%d", b.Dx(), b.Dy())
	}
}

func TestPreprocess_ContrastStretch(t *testing.T) {
	// Narrow intensity band must stretch to the full range.
	img := image.NewGray(image.Rect(0, 0, 400, 400))
	for i := range img.Pix {
		img.Pix[i] = 100
	}
	img.SetGray(0, 0, color.Gray{Y: 90})
	img.SetGray(1, 0, color.Gray{Y: 110})

	out, err := Preprocess(encodePNG(t, img))
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	gray := decoded.(*image.Gray)
	min, max := uint8(255), uint8(0)
	for _, p := range gray.Pix {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	if min != 0 || max != 255 {
		t.Errorf("contrast not stretched to full range: min=%d max=%d", min, max)
	}
}

func TestPreprocess_InvalidImage(t *testing.T) {
	if _, err := Preprocess([]byte("not an image")); err == nil {
		t.Error("expected error for undecodable input")
	}
}

func TestTesseract_RecognizeInvalidInputNeverErrors(t *testing.T) {
	eng := NewTesseract("")
	res := eng.Recognize(t.Context(), []byte("garbage"), "eng")
	if res.Found {
		t.Error("garbage input must yield not-found")
	}
}

func TestTesseract_LiveRecognition(t *testing.T) {
	eng := NewTesseract("")
	if !eng.Available() {
		t.Skip("tesseract not installed")
	}
	res := eng.Recognize(t.Context(), smallColorImage(t), "eng")
	_ = res // any outcome is acceptable; the call must simply not hang or panic
}
