package conditions

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 180
	}

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image file: %v", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return path
}

func TestGetLoadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "button.png", 16, 16)

	cache := NewImageCache(dir)

	img, err := cache.Get("button.png", 16, 16)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if img.Bounds().Dx() != 16 {
		t.Errorf("wrong image size: %v", img.Bounds())
	}

	if _, err := cache.Get("button.png", 16, 16); err != nil {
		t.Fatalf("second Get failed: %v", err)
	}

	stats := cache.Stats()
	if stats.Loads != 1 {
		t.Errorf("expected 1 load, got %d", stats.Loads)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
}

func TestGetScalesToRequestedSize(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "big.png", 32, 32)

	cache := NewImageCache(dir)

	img, err := cache.Get("big.png", 8, 8)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Errorf("image not scaled: %v", img.Bounds())
	}
	// Solid color survives nearest-neighbor scaling
	if img.Pix[0] != 180 {
		t.Errorf("pixel content corrupted: %d", img.Pix[0])
	}
}

func TestGetCachesPerSize(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "icon.png", 32, 32)

	cache := NewImageCache(dir)

	if _, err := cache.Get("icon.png", 8, 8); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := cache.Get("icon.png", 16, 16); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if stats := cache.Stats(); stats.Loads != 2 {
		t.Errorf("different sizes should load separately, got %d loads", stats.Loads)
	}
}

func TestGetMissingFile(t *testing.T) {
	cache := NewImageCache(t.TempDir())
	if _, err := cache.Get("absent.png", 8, 8); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestClearDropsEntries(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "x.png", 8, 8)

	cache := NewImageCache(dir)
	if _, err := cache.Get("x.png", 8, 8); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	cache.Clear()
	if _, err := cache.Get("x.png", 8, 8); err != nil {
		t.Fatalf("Get after Clear failed: %v", err)
	}

	if stats := cache.Stats(); stats.Loads != 2 {
		t.Errorf("expected reload after Clear, got %d loads", stats.Loads)
	}
}
