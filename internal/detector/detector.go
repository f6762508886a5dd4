// Package detector implements the per-frame scenario processor: it
// evaluates each enabled event's conditions against a frame and dispatches
// the event's gestures when they fulfil.
package detector

import (
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"clickweaver.com/clickweaver-go/internal/cv"
	"clickweaver.com/clickweaver-go/internal/gesture"
	"clickweaver.com/clickweaver-go/internal/logging"
	"clickweaver.com/clickweaver-go/internal/scenario"
)

// ImageLoader loads a condition image scaled to the given size
type ImageLoader func(path string, width, height int) (*image.RGBA, error)

// Detector evaluates one scenario's events against frames. It never retains
// a frame beyond the synchronous Process call: frames belong to the capture
// device's reusable buffer.
type Detector struct {
	events        []scenario.Event
	loadImage     ImageLoader
	actuator      gesture.Actuator
	onScenarioEnd func()
	logger        *logging.Logger
	quality       int

	endOnce sync.Once

	mu         sync.Mutex
	closed     bool
	imageCache map[string]*image.RGBA
}

// New constructs a detector bound to an event set, image loader, actuator
// and end-of-scenario callback. Events are evaluated in priority order; the
// first fulfilled event per frame dispatches and ends the cycle.
func New(events []scenario.Event, loadImage ImageLoader, actuator gesture.Actuator, onScenarioEnd func()) *Detector {
	sorted := make([]scenario.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	return &Detector{
		events:        sorted,
		loadImage:     loadImage,
		actuator:      actuator,
		onScenarioEnd: onScenarioEnd,
		logger:        logging.NewLogger("detector"),
		imageCache:    make(map[string]*image.RGBA),
	}
}

// WithQuality sets the detection quality as a downscale factor: frames and
// condition areas are divided by it before matching. Values below 2 keep
// full resolution.
func (d *Detector) WithQuality(quality int) *Detector {
	d.quality = quality
	return d
}

// Process evaluates the frame against the scenario's events. At most one
// event fulfils per frame.
func (d *Detector) Process(frame *image.RGBA) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("detector is closed")
	}
	d.mu.Unlock()

	work := frame
	if d.quality > 1 {
		work = cv.Downscale(frame, d.quality)
	}

	for i := range d.events {
		event := &d.events[i]
		if !event.Enabled {
			continue
		}

		fulfilled, err := d.evaluate(work, event)
		if err != nil {
			return fmt.Errorf("failed to evaluate event %s: %w", event.Name, err)
		}
		if !fulfilled {
			continue
		}

		d.logger.DebugWithContext("event fulfilled", map[string]interface{}{
			"event": event.Name,
		})

		d.dispatch(event)

		if event.StopAfter {
			// Signal the controller exactly once; the loop itself never
			// decides to stop from inside a cycle.
			d.endOnce.Do(d.onScenarioEnd)
		}

		return nil
	}

	return nil
}

// Close releases cached condition images. Safe to call more than once.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.imageCache = make(map[string]*image.RGBA)
}

func (d *Detector) evaluate(frame *image.RGBA, event *scenario.Event) (bool, error) {
	if len(event.Conditions) == 0 {
		return false, nil
	}

	if event.Operator == scenario.OperatorOr {
		// One failing condition must not hide a genuine match on a later
		// one; surface the error only when nothing matched.
		var condErr error
		for _, cond := range event.Conditions {
			matched, err := d.checkCondition(frame, &cond)
			if err != nil {
				if condErr == nil {
					condErr = err
				}
				continue
			}
			if matched {
				return true, nil
			}
		}
		return false, condErr
	}

	for _, cond := range event.Conditions {
		matched, err := d.checkCondition(frame, &cond)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

func (d *Detector) checkCondition(frame *image.RGBA, cond *scenario.Condition) (bool, error) {
	area := cond.Area
	if d.quality > 1 {
		area = image.Rect(
			area.Min.X/d.quality, area.Min.Y/d.quality,
			area.Max.X/d.quality, area.Max.Y/d.quality,
		)
	}

	img, err := d.conditionImage(cond, area)
	if err != nil {
		return false, err
	}

	config := &cv.MatchConfig{
		Method:    cv.MatchMethodSSD,
		Threshold: cond.Threshold,
	}

	result := cv.MatchAt(frame, img, area.Min, config)
	return result.Found == cond.ShouldAppear, nil
}

func (d *Detector) conditionImage(cond *scenario.Condition, area image.Rectangle) (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if img, ok := d.imageCache[cond.ImagePath]; ok {
		return img, nil
	}

	img, err := d.loadImage(cond.ImagePath, area.Dx(), area.Dy())
	if err != nil {
		return nil, fmt.Errorf("failed to load condition image %s: %w", cond.ImagePath, err)
	}

	d.imageCache[cond.ImagePath] = img
	return img, nil
}

func (d *Detector) dispatch(event *scenario.Event) {
	for _, action := range event.Actions {
		switch action.Type {
		case scenario.ActionTap:
			d.actuator.Execute(gesture.Tap{X: action.X, Y: action.Y})
		case scenario.ActionSwipe:
			d.actuator.Execute(gesture.Swipe{
				X1: action.X, Y1: action.Y,
				X2: action.ToX, Y2: action.ToY,
				DurationMs: action.DurationMs,
			})
		case scenario.ActionKey:
			d.actuator.Execute(gesture.KeyPress{Key: action.Key})
		case scenario.ActionPause:
			time.Sleep(time.Duration(action.DurationMs) * time.Millisecond)
		default:
			d.logger.WarnWithContext("unknown action type", map[string]interface{}{
				"type":  action.Type,
				"event": event.Name,
			})
		}
	}
}
