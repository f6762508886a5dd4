package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"os/exec"
	"strings"
	"sync"
	"time"

	"clickweaver.com/clickweaver-go/internal/logging"
)

// defaultCaptureInterval paces the screencap producer. Raw screencap over
// adb costs tens of milliseconds, so polling faster buys nothing.
const defaultCaptureInterval = 50 * time.Millisecond

// failureLimit is how many consecutive screencap failures count as a lost
// source
const failureLimit = 5

// ADBProvider opens frame sources backed by adb raw screencap. Frames are
// produced on a background goroutine into a single-slot mailbox, so the
// consumer always sees the newest frame and a slow consumer never blocks
// production.
type ADBProvider struct {
	path     string
	device   string
	interval time.Duration
	logger   *logging.Logger
}

// NewADBProvider creates a provider for the device at 127.0.0.1:port
func NewADBProvider(adbPath, port string) *ADBProvider {
	return &ADBProvider{
		path:     adbPath,
		device:   fmt.Sprintf("127.0.0.1:%s", port),
		interval: defaultCaptureInterval,
		logger:   logging.NewLogger("capture.adb"),
	}
}

// WithInterval overrides the producer pacing
func (p *ADBProvider) WithInterval(interval time.Duration) *ADBProvider {
	p.interval = interval
	return p
}

// adbToken is the permission grant for an adb-backed source: a successful
// connect is the external authorization
type adbToken struct {
	device string
}

func (t *adbToken) Valid() bool { return t != nil && t.device != "" }

// Connect establishes the adb connection and returns the permission token
// required to begin a capture session
func (p *ADBProvider) Connect() (PermissionToken, error) {
	cmd := exec.Command(p.path, "connect", p.device)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device %s: %w, output: %s", p.device, err, output)
	}
	if !strings.Contains(string(output), "connected") {
		return nil, fmt.Errorf("unexpected connect output: %s", output)
	}
	return &adbToken{device: p.device}, nil
}

// DisplaySize queries the device's current display size via wm size. Usable
// as the display watcher's size query.
func (p *ADBProvider) DisplaySize() (Size, error) {
	cmd := exec.Command(p.path, "-s", p.device, "shell", "wm", "size")
	output, err := cmd.Output()
	if err != nil {
		return Size{}, fmt.Errorf("failed to query display size: %w", err)
	}

	var w, h int
	if _, err := fmt.Sscanf(string(output), "Physical size: %dx%d", &w, &h); err != nil {
		if _, err := fmt.Sscanf(string(output), "Override size: %dx%d", &w, &h); err != nil {
			return Size{}, fmt.Errorf("failed to parse display size: %s", output)
		}
	}
	return Size{Width: w, Height: h}, nil
}

// Open starts a producer goroutine for the device. onStop fires once if
// screencap fails repeatedly, which is the adb signal for a lost source.
func (p *ADBProvider) Open(token PermissionToken, size Size, onStop func(reason string)) (Device, error) {
	if _, err := p.screencap(); err != nil {
		return nil, fmt.Errorf("device not capturable: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &adbDevice{
		provider: p,
		size:     size,
		cancel:   cancel,
		onStop:   onStop,
	}

	d.wg.Add(1)
	go d.produce(ctx)

	return d, nil
}

type adbDevice struct {
	provider *ADBProvider
	size     Size
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	onStop   func(reason string)
	stopOnce sync.Once

	mu     sync.Mutex
	latest *image.RGBA
	closed bool
}

// AcquireLatest takes the mailbox frame. The release func is a no-op here:
// the producer allocates per frame, so the consumer's copy discipline is
// enforced by the session layer, not by buffer reuse.
func (d *adbDevice) AcquireLatest() (*image.RGBA, func(), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.latest == nil {
		return nil, func() {}, false
	}

	img := d.latest
	d.latest = nil
	return img, func() {}, true
}

// Close stops the producer and drops any pending frame. Idempotent.
func (d *adbDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.latest = nil
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	return nil
}

func (d *adbDevice) produce(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.provider.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		img, err := d.provider.screencap()
		if err != nil {
			failures++
			d.provider.logger.ErrorWithContext("screencap failed", err, map[string]interface{}{
				"consecutive": failures,
			})
			if failures >= failureLimit {
				d.stopOnce.Do(func() {
					if d.onStop != nil {
						go d.onStop("screencap failed repeatedly")
					}
				})
				return
			}
			continue
		}
		failures = 0

		// Overwrite whatever the consumer has not taken yet (drop-oldest)
		d.mu.Lock()
		if !d.closed {
			d.latest = img
		}
		d.mu.Unlock()
	}
}

// screencap runs adb exec-out screencap and decodes the raw framebuffer
// format: width, height, pixel format as little-endian uint32, newer
// androids add a colorspace word, then RGBA pixels.
func (p *ADBProvider) screencap() (*image.RGBA, error) {
	cmd := exec.Command(p.path, "-s", p.device, "exec-out", "screencap")
	raw, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("screencap failed: %w", err)
	}
	return decodeRawScreencap(raw)
}

func decodeRawScreencap(raw []byte) (*image.RGBA, error) {
	if len(raw) < 12 {
		return nil, fmt.Errorf("screencap output too short: %d bytes", len(raw))
	}

	width := int(binary.LittleEndian.Uint32(raw[0:4]))
	height := int(binary.LittleEndian.Uint32(raw[4:8]))
	format := binary.LittleEndian.Uint32(raw[8:12])

	// PixelFormat RGBA_8888
	if format != 1 {
		return nil, fmt.Errorf("unsupported screencap pixel format %d", format)
	}

	pixelBytes := width * height * 4
	var header int
	switch len(raw) {
	case 12 + pixelBytes:
		header = 12
	case 16 + pixelBytes:
		header = 16
	default:
		return nil, fmt.Errorf("unexpected screencap size %d for %dx%d", len(raw), width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, raw[header:])
	return img, nil
}

var _ DeviceProvider = (*ADBProvider)(nil)
