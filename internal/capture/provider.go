package capture

import "image"

// Size is a display size in pixels
type Size struct {
	Width  int
	Height int
}

// PermissionToken proves that capture authorization was granted externally.
// The engine never requests permission itself; it only verifies presence.
type PermissionToken interface {
	Valid() bool
}

// Device is one live frame source bound to a display size. The release func
// returned by AcquireLatest must be called before the next acquisition: the
// device reuses a bounded internal buffer and holding a frame across the
// next acquisition is undefined behavior on its side.
type Device interface {
	// AcquireLatest returns the newest frame, discarding any produced since
	// the previous acquisition. ok is false when no frame is available yet.
	AcquireLatest() (img *image.RGBA, release func(), ok bool)

	// Close releases the device. Idempotent.
	Close() error
}

// DeviceProvider opens capture devices. onStop is invoked at most once if
// the source ends outside engine control (e.g. revoked permission).
type DeviceProvider interface {
	Open(token PermissionToken, size Size, onStop func(reason string)) (Device, error)
}
