package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

const (
	maxWidth    = 1024
	jpegQuality = 85
)

// Processor decodes an uploaded image, caps its width at 1024px preserving
// aspect ratio, stretches contrast on black-and-white photographs and
// re-encodes to JPEG for the downstream collaborators.
type Processor struct{}

func NewProcessor() *Processor { return &Processor{} }

func (p *Processor) Prepare(ctx context.Context, raw []byte) (*domain.PreparedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image %dx%d", w, h)
	}
	if w > maxWidth {
		nh := h * maxWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		src = dst
		w, h = maxWidth, nh
	}

	gray := looksGrayscale(src)
	if gray {
		src = stretchContrast(src)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &domain.PreparedImage{JPEG: buf.Bytes(), Width: w, Height: h, Grayscale: gray}, nil
}

// looksGrayscale samples the image and reports whether the channels stay
// close enough to call the photograph black-and-white.
func looksGrayscale(img image.Image) bool {
	b := img.Bounds()
	step := b.Dx() / 64
	if step < 1 {
		step = 1
	}
	var samples, chromatic int
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, _ := img.At(x, y).RGBA()
			samples++
			if diff16(r, g) > 0x0800 || diff16(g, bl) > 0x0800 || diff16(r, bl) > 0x0800 {
				chromatic++
			}
		}
	}
	if samples == 0 {
		return false
	}
	return chromatic*20 < samples
}

// stretchContrast spreads the used luminance range over 0..255, the cheap
// stand-in for adaptive histogram equalization on faded B&W prints.
func stretchContrast(img image.Image) image.Image {
	b := img.Bounds()
	minL, maxL := 255, 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			l := luminance(img.At(x, y))
			if l < minL {
				minL = l
			}
			if l > maxL {
				maxL = l
			}
		}
	}
	if maxL <= minL {
		return img
	}

	out := image.NewGray(b)
	scale := 255.0 / float64(maxL-minL)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			l := float64(luminance(img.At(x, y))-minL) * scale
			out.SetGray(x, y, color.Gray{Y: uint8(l + 0.5)})
		}
	}
	return out
}

func luminance(c color.Color) int {
	r, g, b, _ := c.RGBA()
	return int((299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000)
}

func diff16(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
