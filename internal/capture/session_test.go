package capture

import (
	"fmt"
	"image"
	"sync"
	"testing"
)

type stubToken struct{ valid bool }

func (t *stubToken) Valid() bool { return t.valid }

type stubDevice struct {
	mu       sync.Mutex
	latest   *image.RGBA
	released int
	closed   bool
}

func (d *stubDevice) push(img *image.RGBA) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latest = img
}

func (d *stubDevice) AcquireLatest() (*image.RGBA, func(), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest == nil {
		return nil, func() {}, false
	}
	img := d.latest
	d.latest = nil
	return img, func() {
		d.mu.Lock()
		d.released++
		d.mu.Unlock()
	}, true
}

func (d *stubDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type stubProvider struct {
	mu      sync.Mutex
	devices []*stubDevice
	openErr error
}

func (p *stubProvider) Open(token PermissionToken, size Size, onStop func(reason string)) (Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openErr != nil {
		return nil, p.openErr
	}
	d := &stubDevice{}
	p.devices = append(p.devices, d)
	return d, nil
}

func TestBeginPanicsOnInvalidToken(t *testing.T) {
	s := NewSession(&stubProvider{})

	for _, token := range []PermissionToken{nil, &stubToken{valid: false}} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("expected panic for token %v", token)
				}
			}()
			s.Begin(token, Size{Width: 10, Height: 10}, nil)
		}()
	}
}

func TestBeginTwiceFails(t *testing.T) {
	s := NewSession(&stubProvider{})

	if err := s.Begin(&stubToken{valid: true}, Size{Width: 10, Height: 10}, nil); err != nil {
		t.Fatalf("first Begin failed: %v", err)
	}
	if err := s.Begin(&stubToken{valid: true}, Size{Width: 10, Height: 10}, nil); err == nil {
		t.Fatal("second Begin should fail while active")
	}

	s.End()
}

func TestAcquireLatestDropsOldest(t *testing.T) {
	provider := &stubProvider{}
	s := NewSession(provider)
	if err := s.Begin(&stubToken{valid: true}, Size{Width: 10, Height: 10}, nil); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer s.End()

	device := provider.devices[0]

	old := image.NewRGBA(image.Rect(0, 0, 10, 10))
	newest := image.NewRGBA(image.Rect(0, 0, 10, 10))
	newest.Pix[0] = 7
	device.push(old)
	device.push(newest)

	handle, ok := s.AcquireLatest()
	if !ok {
		t.Fatal("expected a frame")
	}
	if handle.Image().Pix[0] != 7 {
		t.Error("acquisition should return the newest frame")
	}
	handle.Release()

	// The older frame was dropped, not queued
	if _, ok := s.AcquireLatest(); ok {
		t.Error("dropped frame should not be acquirable")
	}
}

func TestAcquireLatestWhenEmpty(t *testing.T) {
	provider := &stubProvider{}
	s := NewSession(provider)
	if err := s.Begin(&stubToken{valid: true}, Size{Width: 10, Height: 10}, nil); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer s.End()

	if _, ok := s.AcquireLatest(); ok {
		t.Error("expected no frame from an empty source")
	}
}

func TestFrameHandleReleaseIdempotent(t *testing.T) {
	provider := &stubProvider{}
	s := NewSession(provider)
	if err := s.Begin(&stubToken{valid: true}, Size{Width: 10, Height: 10}, nil); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer s.End()

	device := provider.devices[0]
	device.push(image.NewRGBA(image.Rect(0, 0, 10, 10)))

	handle, ok := s.AcquireLatest()
	if !ok {
		t.Fatal("expected a frame")
	}

	handle.Release()
	handle.Release()
	handle.Release()

	device.mu.Lock()
	released := device.released
	device.mu.Unlock()
	if released != 1 {
		t.Errorf("release should fire once, fired %d times", released)
	}
}

func TestFrameHandleCloneOutlivesRelease(t *testing.T) {
	provider := &stubProvider{}
	s := NewSession(provider)
	if err := s.Begin(&stubToken{valid: true}, Size{Width: 4, Height: 4}, nil); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer s.End()

	frame := image.NewRGBA(image.Rect(0, 0, 4, 4))
	frame.Pix[0] = 42
	provider.devices[0].push(frame)

	handle, _ := s.AcquireLatest()
	clone := handle.Clone()
	handle.Release()

	// Mutating the original must not affect the clone
	frame.Pix[0] = 0
	if clone.Pix[0] != 42 {
		t.Error("clone shares pixels with the released frame")
	}
}

func TestRestartReplacesDevice(t *testing.T) {
	provider := &stubProvider{}
	s := NewSession(provider)
	if err := s.Begin(&stubToken{valid: true}, Size{Width: 10, Height: 10}, nil); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer s.End()

	if err := s.Restart(Size{Width: 20, Height: 30}); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}

	if len(provider.devices) != 2 {
		t.Fatalf("expected 2 device opens, got %d", len(provider.devices))
	}
	if !provider.devices[0].closed {
		t.Error("old device should be closed after restart")
	}
	if got := s.Size(); got != (Size{Width: 20, Height: 30}) {
		t.Errorf("session size not updated: %v", got)
	}
}

func TestRestartFailureLeavesSessionInactive(t *testing.T) {
	provider := &stubProvider{}
	s := NewSession(provider)
	if err := s.Begin(&stubToken{valid: true}, Size{Width: 10, Height: 10}, nil); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	provider.mu.Lock()
	provider.openErr = fmt.Errorf("display gone")
	provider.mu.Unlock()

	if err := s.Restart(Size{Width: 20, Height: 30}); err == nil {
		t.Fatal("Restart should surface the reopen failure")
	}

	if _, ok := s.AcquireLatest(); ok {
		t.Error("no frames should be acquirable after a failed restart")
	}

	s.End()
}

func TestEndIsIdempotent(t *testing.T) {
	provider := &stubProvider{}
	s := NewSession(provider)
	if err := s.Begin(&stubToken{valid: true}, Size{Width: 10, Height: 10}, nil); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	s.End()
	s.End()

	if s.Active() {
		t.Error("session should be inactive after End")
	}

	// A fresh Begin works after End
	if err := s.Begin(&stubToken{valid: true}, Size{Width: 10, Height: 10}, nil); err != nil {
		t.Fatalf("Begin after End failed: %v", err)
	}
	s.End()
}
