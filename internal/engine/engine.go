// Package engine hosts the capture/detection orchestration core: session
// lifecycle, the single-flight frame processing loop, and the observable
// engine state consumed by UI and orchestration layers.
package engine

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"clickweaver.com/clickweaver-go/internal/capture"
	"clickweaver.com/clickweaver-go/internal/detector"
	"clickweaver.com/clickweaver-go/internal/display"
	"clickweaver.com/clickweaver-go/internal/events"
	"clickweaver.com/clickweaver-go/internal/gesture"
	"clickweaver.com/clickweaver-go/internal/logging"
	"clickweaver.com/clickweaver-go/internal/scenario"
)

// ProcessorFactory constructs the scenario-processor collaborator at
// detection-start time
type ProcessorFactory func(eventList []scenario.Event, loadImage detector.ImageLoader, sink gesture.Actuator, onScenarioEnd func()) Processor

// Dependencies wires the engine's external collaborators
type Dependencies struct {
	Provider   capture.DeviceProvider
	Repository scenario.Repository
	Notifier   display.Notifier
	Bus        events.Bus

	// NewProcessor overrides the default detector construction; nil uses
	// the built-in detector
	NewProcessor ProcessorFactory
}

// Snapshot is a point-in-time view of the observable engine state
type Snapshot struct {
	Capturing  bool
	Detecting  bool
	ScenarioID string
}

// Engine is the session lifecycle controller. All state transitions happen
// here; observers read the flags but never mutate them. Operations called
// with preconditions unmet log a warning and no-op. The one exception is
// StartCapture with an invalid permission token, which panics: that is a
// contract violation of the capture boundary, not a recoverable state.
type Engine struct {
	deps   Dependencies
	logger *logging.Logger

	mu         sync.Mutex
	terminated bool

	capturing atomic.Bool
	detecting atomic.Bool

	activeScenario *scenario.Scenario
	sink           gesture.Actuator

	session    *capture.Session
	executor   *serialExecutor
	task       *processingTask
	processor  Processor
	projection *eventProjection
}

// New constructs an engine handle over the given collaborators
func New(deps Dependencies) *Engine {
	e := &Engine{
		deps:   deps,
		logger: logging.NewLogger("engine"),
	}
	e.projection = newEventProjection(deps.Repository, deps.Bus)
	return e
}

// Capturing reports whether a capture session is active
func (e *Engine) Capturing() bool { return e.capturing.Load() }

// Detecting reports whether the frame processing loop is running.
// Invariant: Detecting() implies Capturing().
func (e *Engine) Detecting() bool { return e.detecting.Load() }

// ActiveScenario returns the currently selected scenario, nil when idle
func (e *Engine) ActiveScenario() *scenario.Scenario {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeScenario
}

// Events returns the latest published event list for the active scenario
func (e *Engine) Events() []scenario.Event {
	return e.projection.Events()
}

// State returns a point-in-time snapshot of the observable flags
func (e *Engine) State() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Capturing: e.capturing.Load(),
		Detecting: e.detecting.Load(),
	}
	if e.activeScenario != nil {
		s.ScenarioID = e.activeScenario.ID
	}
	return s
}

// StartCapture begins the capture session for a scenario. The gesture sink
// is retained for the session's lifetime and cleared on StopCapture. No-op
// with a warning when already capturing. Panics if the permission token is
// absent or invalid.
func (e *Engine) StartCapture(token capture.PermissionToken, size capture.Size, sc *scenario.Scenario, sink gesture.Actuator) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated {
		e.logger.Warn("start capture ignored, engine torn down")
		return nil
	}
	if e.capturing.Load() {
		e.logger.Warn("start capture ignored, already capturing")
		return nil
	}
	if sc == nil {
		return fmt.Errorf("scenario is required to start capture")
	}
	if sink == nil {
		return fmt.Errorf("gesture sink is required to start capture")
	}

	e.sink = sink

	if e.deps.Notifier != nil {
		e.deps.Notifier.Subscribe(func(newSize capture.Size) {
			e.OnDisplayChange(newSize)
		})
	}

	e.executor = newSerialExecutor()
	e.session = capture.NewSession(e.deps.Provider)

	// An externally-terminated source must reach Idle through the same path
	// as an explicit stop. Runs on its own goroutine: the callback may fire
	// from capture internals that a lifecycle operation must not block.
	onUnexpectedStop := func(reason string) {
		e.logger.WarnWithContext("capture source ended outside engine control", map[string]interface{}{
			"reason": reason,
		})
		if e.deps.Bus != nil {
			e.deps.Bus.Publish(events.NewSourceLostNotification(reason))
		}
		go e.StopCapture()
	}

	if err := e.session.Begin(token, size, onUnexpectedStop); err != nil {
		e.executor.Close()
		e.executor = nil
		e.session = nil
		e.sink = nil
		if e.deps.Notifier != nil {
			e.deps.Notifier.Unsubscribe()
		}
		return fmt.Errorf("failed to begin capture session: %w", err)
	}

	e.activeScenario = sc
	e.projection.SetScenario(sc.ID)
	e.capturing.Store(true)

	if e.deps.Bus != nil {
		e.deps.Bus.Publish(events.NewCaptureStartedNotification(sc.ID, size.Width, size.Height))
	}

	e.logger.InfoWithContext("capture started", map[string]interface{}{
		"scenario": sc.Name,
	})

	return nil
}

// CaptureOnce schedules a one-shot acquisition. On the next available frame
// it crops to area and delivers the copy to callback on a caller-facing
// goroutine, decoupled from the processing cadence. Does not affect the
// detection loop. No-op with a warning when not capturing.
func (e *Engine) CaptureOnce(area image.Rectangle, callback func(*image.RGBA)) {
	e.mu.Lock()
	if !e.capturing.Load() {
		e.mu.Unlock()
		e.logger.Warn("capture once ignored, not capturing")
		return
	}
	executor := e.executor
	session := e.session
	e.mu.Unlock()

	var job func()
	job = func() {
		handle, ok := session.AcquireLatest()
		if !ok {
			// No frame yet: retry until one is available or capture stops
			// (a closed executor rejects the resubmission).
			time.Sleep(idleFramePause)
			executor.Submit(job)
			return
		}
		defer handle.Release()

		img := cropFrame(handle.Image(), area)
		go callback(img)
	}

	executor.Submit(job)
}

// StartDetecting constructs the scenario processor bound to the current
// event set and launches the frame processing loop. No-op with a warning
// when not capturing or already detecting.
func (e *Engine) StartDetecting() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.capturing.Load() {
		e.logger.Warn("start detecting ignored, not capturing")
		return
	}
	if e.detecting.Load() {
		e.logger.Warn("start detecting ignored, already detecting")
		return
	}

	eventList := e.projection.Events()

	// End-of-scenario routes through the same path as an explicit stop. It
	// must run off the processing goroutine: the loop cannot join itself.
	onScenarioEnd := func() {
		go e.StopDetecting()
	}

	loadImage := func(path string, width, height int) (*image.RGBA, error) {
		return e.deps.Repository.GetImage(path, width, height)
	}

	if e.deps.NewProcessor != nil {
		e.processor = e.deps.NewProcessor(eventList, loadImage, e.sink, onScenarioEnd)
	} else {
		quality := 0
		if e.activeScenario != nil {
			quality = e.activeScenario.Quality
		}
		e.processor = detector.New(eventList, loadImage, e.sink, onScenarioEnd).WithQuality(quality)
	}

	e.detecting.Store(true)
	e.task = startProcessingTask(e.executor, e.session, e.processor, e.logger)

	scenarioID := ""
	if e.activeScenario != nil {
		scenarioID = e.activeScenario.ID
	}
	if e.deps.Bus != nil {
		e.deps.Bus.Publish(events.NewDetectionStartedNotification(scenarioID, len(eventList)))
	}

	e.logger.InfoWithContext("detection started", map[string]interface{}{
		"events": len(eventList),
	})
}

// StopDetecting cancels the processing loop, waits for the in-flight frame
// to complete, and releases the scenario processor. Safe to call when
// already stopped.
func (e *Engine) StopDetecting() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopDetectingLocked()
}

func (e *Engine) stopDetectingLocked() {
	if !e.detecting.Load() {
		e.logger.Warn("stop detecting ignored, not detecting")
		return
	}

	// Cancel-and-join: no frame may be mid-flight against a released
	// collaborator. The task is already gone when a failed restart led here.
	if e.task != nil {
		e.task.cancelAndJoin()
		e.task = nil
	}

	e.processor.Close()
	e.processor = nil

	e.detecting.Store(false)

	scenarioID := ""
	if e.activeScenario != nil {
		scenarioID = e.activeScenario.ID
	}
	if e.deps.Bus != nil {
		e.deps.Bus.Publish(events.NewDetectionStoppedNotification(scenarioID))
	}

	e.logger.Info("detection stopped")
}

// StopCapture stops detection if active, ends the capture session and
// clears the active scenario. No-op with a warning when not capturing.
func (e *Engine) StopCapture() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopCaptureLocked()
}

func (e *Engine) stopCaptureLocked() {
	if !e.capturing.Load() {
		e.logger.Warn("stop capture ignored, not capturing")
		return
	}

	// detecting implies capturing: detection must fall first
	if e.detecting.Load() {
		e.stopDetectingLocked()
	}

	if e.deps.Notifier != nil {
		e.deps.Notifier.Unsubscribe()
	}

	e.session.End()
	e.session = nil

	e.executor.Close()
	e.executor = nil

	scenarioID := ""
	if e.activeScenario != nil {
		scenarioID = e.activeScenario.ID
	}
	e.activeScenario = nil
	e.projection.SetScenario("")
	e.sink = nil

	e.capturing.Store(false)

	if e.deps.Bus != nil {
		e.deps.Bus.Publish(events.NewCaptureStoppedNotification(scenarioID))
	}

	e.logger.Info("capture stopped")
}

// OnDisplayChange restarts the capture device in place for a new display
// size. If detection was active it stays active: the flag never blips false
// during the transition, and exactly one processing task exists afterwards.
func (e *Engine) OnDisplayChange(newSize capture.Size) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.capturing.Load() {
		e.logger.Warn("display change ignored, not capturing")
		return
	}

	wasDetecting := e.detecting.Load()

	// Join the current cycle before touching the device: acquiring from a
	// half-restarted device is undefined behavior on its side.
	if e.task != nil {
		e.task.cancelAndJoin()
		e.task = nil
	}

	var restartErr error
	e.executor.Do(func() {
		restartErr = e.session.Restart(newSize)
	})

	if restartErr != nil {
		e.logger.Error("capture restart failed, stopping capture", restartErr)
		if e.deps.Bus != nil {
			e.deps.Bus.Publish(events.NewErrorNotification("engine", "capture", restartErr))
		}
		e.stopCaptureLocked()
		return
	}

	if wasDetecting {
		e.task = startProcessingTask(e.executor, e.session, e.processor, e.logger)
	}

	if e.deps.Bus != nil {
		e.deps.Bus.Publish(events.NewDisplayChangedNotification(newSize.Width, newSize.Height))
	}

	e.logger.InfoWithContext("capture restarted for display change", map[string]interface{}{
		"width":  newSize.Width,
		"height": newSize.Height,
	})
}

// Teardown stops capture if active, releases the gesture sink and
// invalidates the process-wide instance. The engine is unusable afterwards:
// any further operation is a warned no-op.
func (e *Engine) Teardown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated {
		return
	}

	if e.capturing.Load() {
		e.stopCaptureLocked()
	}

	e.sink = nil
	e.terminated = true

	resetIf(e)

	e.logger.Info("engine torn down")
}

// cropFrame copies the area sub-rectangle of src into a fresh image, so the
// result can outlive the frame handle
func cropFrame(src *image.RGBA, area image.Rectangle) *image.RGBA {
	bounds := area.Intersect(src.Bounds())
	if bounds.Empty() {
		return image.NewRGBA(image.Rectangle{})
	}

	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		srcOff := (bounds.Min.Y+y-src.Rect.Min.Y)*src.Stride + (bounds.Min.X-src.Rect.Min.X)*4
		dstOff := y * dst.Stride
		copy(dst.Pix[dstOff:dstOff+bounds.Dx()*4], src.Pix[srcOff:srcOff+bounds.Dx()*4])
	}
	return dst
}
