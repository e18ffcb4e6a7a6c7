package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func colorImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: 200, B: uint8(y % 256), A: 255})
		}
	}
	return img
}

func TestPrepareKeepsSmallImageSize(t *testing.T) {
	p := NewProcessor()
	out, err := p.Prepare(context.Background(), pngBytes(t, colorImage(640, 480)))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	if out.Width != 640 || out.Height != 480 {
		t.Errorf("size = %dx%d", out.Width, out.Height)
	}
	if out.Grayscale {
		t.Error("color photograph flagged grayscale")
	}
	if _, err := jpeg.Decode(bytes.NewReader(out.JPEG)); err != nil {
		t.Errorf("output is not valid jpeg: %v", err)
	}
}

func TestPrepareCapsWidth(t *testing.T) {
	p := NewProcessor()
	out, err := p.Prepare(context.Background(), pngBytes(t, colorImage(2048, 1024)))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	if out.Width != 1024 || out.Height != 512 {
		t.Errorf("size = %dx%d, want 1024x512", out.Width, out.Height)
	}
}

func TestPrepareDetectsGrayscale(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(40 + x%150)})
		}
	}

	p := NewProcessor()
	out, err := p.Prepare(context.Background(), pngBytes(t, img))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if !out.Grayscale {
		t.Error("black-and-white photograph not flagged grayscale")
	}
}

func TestPrepareRejectsGarbage(t *testing.T) {
	p := NewProcessor()
	if _, err := p.Prepare(context.Background(), []byte("definitely not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestPrepareHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProcessor()
	if _, err := p.Prepare(ctx, pngBytes(t, colorImage(10, 10))); err == nil {
		t.Fatal("expected context error")
	}
}
