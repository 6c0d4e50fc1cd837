package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// minDimension is the smallest side length fed to the engine; smaller
// images are upscaled first, matching the 300px floor Tesseract wants
// for reliable recognition.
const minDimension = 300

// Preprocess prepares an encoded image for recognition: grayscale
// conversion, upscaling of small images, and a linear contrast stretch.
// The transform is pure and deterministic: the same input bytes always
// produce the same output bytes.
func Preprocess(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	gray := toGray(src)

	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if w < minDimension || h < minDimension {
		scale := float64(minDimension) / float64(w)
		if s := float64(minDimension) / float64(h); s > scale {
			scale = s
		}
		dst := image.NewGray(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), gray, b, xdraw.Src, nil)
		gray = dst
	}

	stretchContrast(gray)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	b := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(gray, gray.Bounds(), src, b.Min, xdraw.Src)
	return gray
}

// stretchContrast rescales pixel intensities so the darkest pixel maps
// to 0 and the brightest to 255. Flat images are left untouched.
func stretchContrast(img *image.Gray) {
	min, max := uint8(255), uint8(0)
	for _, p := range img.Pix {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	if max <= min {
		return
	}
	span := int(max) - int(min)
	for i, p := range img.Pix {
		img.Pix[i] = uint8((int(p) - int(min)) * 255 / span)
	}
}
