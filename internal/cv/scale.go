package cv

import "image"

// Downscale shrinks src by an integer factor using nearest-neighbor
// sampling. A factor below 2 returns src unchanged. The result is anchored
// at the origin regardless of src's bounds.
func Downscale(src *image.RGBA, factor int) *image.RGBA {
	if factor <= 1 {
		return src
	}

	bounds := src.Bounds()
	width := bounds.Dx() / factor
	height := bounds.Dy() / factor
	if width < 1 || height < 1 {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		srcY := bounds.Min.Y + y*factor
		for x := 0; x < width; x++ {
			srcX := bounds.Min.X + x*factor
			srcOff := (srcY-src.Rect.Min.Y)*src.Stride + (srcX-src.Rect.Min.X)*4
			dstOff := y*dst.Stride + x*4
			copy(dst.Pix[dstOff:dstOff+4], src.Pix[srcOff:srcOff+4])
		}
	}
	return dst
}
