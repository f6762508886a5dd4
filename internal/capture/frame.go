package capture

import (
	"image"
	"sync"
)

// FrameHandle is a scoped, single-use wrapper around one acquired frame.
// Image() is only valid until Release(); consumers that must retain pixel
// data beyond the synchronous call use Clone() first.
type FrameHandle struct {
	img     *image.RGBA
	release func()
	once    sync.Once
}

func newFrameHandle(img *image.RGBA, release func()) *FrameHandle {
	return &FrameHandle{img: img, release: release}
}

// Image returns the underlying frame. The pixels belong to the device's
// reusable buffer and must not be retained past Release.
func (h *FrameHandle) Image() *image.RGBA {
	return h.img
}

// Clone deep-copies the frame so it can outlive the handle
func (h *FrameHandle) Clone() *image.RGBA {
	src := h.img
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	dst.Stride = src.Stride
	return dst
}

// Release returns the underlying buffer to the device. Idempotent; must be
// called on every exit path, including failure.
func (h *FrameHandle) Release() {
	h.once.Do(func() {
		if h.release != nil {
			h.release()
		}
	})
}
