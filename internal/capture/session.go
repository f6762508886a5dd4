package capture

import (
	"fmt"
	"sync"

	"clickweaver.com/clickweaver-go/internal/logging"
)

// Session owns exactly one capture device for its lifetime and hands out
// individual frames with drop-oldest semantics. It is not shared outside
// the engine.
type Session struct {
	provider DeviceProvider
	logger   *logging.Logger

	mu               sync.Mutex
	device           Device
	token            PermissionToken
	size             Size
	onUnexpectedStop func(reason string)
}

// NewSession creates a session over the given device provider
func NewSession(provider DeviceProvider) *Session {
	return &Session{
		provider: provider,
		logger:   logging.NewLogger("capture"),
	}
}

// Begin establishes the capture device. Panics if the permission token is
// absent or invalid: capture cannot start without prior, externally-granted
// authorization, so the call is a contract violation rather than a
// recoverable error. onUnexpectedStop fires if the source ends outside
// engine control and must route into the same teardown as an explicit stop.
func (s *Session) Begin(token PermissionToken, size Size, onUnexpectedStop func(reason string)) error {
	if token == nil || !token.Valid() {
		panic("capture: permission token absent or invalid")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		return fmt.Errorf("capture session already active")
	}

	device, err := s.provider.Open(token, size, onUnexpectedStop)
	if err != nil {
		return fmt.Errorf("failed to open capture device: %w", err)
	}

	s.device = device
	s.token = token
	s.size = size
	s.onUnexpectedStop = onUnexpectedStop

	s.logger.InfoWithContext("capture device opened", map[string]interface{}{
		"width":  size.Width,
		"height": size.Height,
	})

	return nil
}

// AcquireLatest returns the most recent frame, silently discarding any
// frames produced since the previous acquisition. ok is false when no frame
// is available; callers treat that as "skip this cycle", not an error.
func (s *Session) AcquireLatest() (*FrameHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return nil, false
	}

	img, release, ok := s.device.AcquireLatest()
	if !ok {
		return nil, false
	}

	return newFrameHandle(img, release), true
}

// Restart stops and re-establishes the device in place with a new display
// size. Atomic with respect to AcquireLatest callers: no acquisition may
// straddle the restart.
func (s *Session) Restart(newSize Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return fmt.Errorf("capture session not active")
	}

	if err := s.device.Close(); err != nil {
		s.logger.Error("failed to close device during restart", err)
	}
	s.device = nil

	device, err := s.provider.Open(s.token, newSize, s.onUnexpectedStop)
	if err != nil {
		return fmt.Errorf("failed to reopen capture device: %w", err)
	}

	s.device = device
	s.size = newSize

	s.logger.InfoWithContext("capture device restarted", map[string]interface{}{
		"width":  newSize.Width,
		"height": newSize.Height,
	})

	return nil
}

// End releases the device and the permission grant. Idempotent.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return
	}

	if err := s.device.Close(); err != nil {
		s.logger.Error("failed to close capture device", err)
	}

	s.device = nil
	s.token = nil
	s.onUnexpectedStop = nil

	s.logger.Info("capture device released")
}

// Active reports whether a device is currently established
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device != nil
}

// Size returns the display size the device is bound to
func (s *Session) Size() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}
