// Package conditions loads condition images and scenario definition files.
// It backs the repository's image access with a size-aware cache so the
// detector never decodes the same condition image twice.
package conditions

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"
)

// ImageCache caches decoded condition images keyed by path and target size
type ImageCache struct {
	basePath string

	mu      sync.RWMutex
	entries map[string]*image.RGBA
	stats   CacheStats
}

// CacheStats tracks cache performance
type CacheStats struct {
	Hits   int64
	Misses int64
	Loads  int64
}

// NewImageCache creates an image cache rooted at basePath. Relative image
// paths are resolved against it.
func NewImageCache(basePath string) *ImageCache {
	return &ImageCache{
		basePath: basePath,
		entries:  make(map[string]*image.RGBA),
	}
}

// Get returns the condition image at path scaled to width x height, loading
// and decoding it on first use
func (c *ImageCache) Get(path string, width, height int) (*image.RGBA, error) {
	key := fmt.Sprintf("%s@%dx%d", path, width, height)

	c.mu.RLock()
	img, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.mu.Lock()
		c.stats.Hits++
		c.mu.Unlock()
		return img, nil
	}

	img, err := c.load(path, width, height)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.stats.Misses++
	c.stats.Loads++
	c.entries[key] = img
	c.mu.Unlock()

	return img, nil
}

// Clear drops all cached images
func (c *ImageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*image.RGBA)
}

// Stats returns a copy of the cache counters
func (c *ImageCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *ImageCache) load(path string, width, height int) (*image.RGBA, error) {
	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(c.basePath, path)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open condition image %s: %w", fullPath, err)
	}
	defer file.Close()

	decoded, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode condition image %s: %w", fullPath, err)
	}

	rgba := toRGBA(decoded)
	if width <= 0 || height <= 0 {
		return rgba, nil
	}
	if rgba.Bounds().Dx() == width && rgba.Bounds().Dy() == height {
		return rgba, nil
	}

	return scaleNearest(rgba, width, height), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

// scaleNearest resizes with nearest-neighbor sampling. Condition images are
// small crops; matching tolerates the sampling artifacts.
func scaleNearest(src *image.RGBA, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	srcBounds := src.Bounds()

	for y := 0; y < height; y++ {
		srcY := srcBounds.Min.Y + y*srcBounds.Dy()/height
		for x := 0; x < width; x++ {
			srcX := srcBounds.Min.X + x*srcBounds.Dx()/width
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}
