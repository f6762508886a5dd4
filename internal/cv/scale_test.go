package cv

import (
	"image"
	"testing"
)

func TestDownscaleSamplesNearestPixel(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			off := y*src.Stride + x*4
			src.Pix[off] = uint8(y*4 + x)
			src.Pix[off+3] = 255
		}
	}

	dst := Downscale(src, 2)

	if dst.Bounds().Dx() != 2 || dst.Bounds().Dy() != 2 {
		t.Fatalf("expected 2x2 result, got %v", dst.Bounds())
	}

	// Nearest-neighbor picks the top-left pixel of each 2x2 block
	want := []uint8{0, 2, 8, 10}
	for i, w := range want {
		y, x := i/2, i%2
		got := dst.Pix[y*dst.Stride+x*4]
		if got != w {
			t.Errorf("pixel (%d,%d): got %d, want %d", x, y, got, w)
		}
	}
}

func TestDownscaleFactorOneReturnsSource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if Downscale(src, 1) != src {
		t.Error("factor 1 should return the source unchanged")
	}
	if Downscale(src, 0) != src {
		t.Error("factor 0 should return the source unchanged")
	}
}

func TestDownscaleTooSmallReturnsSource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 3))
	if Downscale(src, 4) != src {
		t.Error("a factor larger than the image should return the source")
	}
}
