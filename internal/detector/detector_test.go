package detector

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"testing"

	"clickweaver.com/clickweaver-go/internal/gesture"
	"clickweaver.com/clickweaver-go/internal/scenario"
)

// recordingActuator captures dispatched gestures
type recordingActuator struct {
	mu       sync.Mutex
	gestures []gesture.Gesture
}

func (a *recordingActuator) Execute(g gesture.Gesture) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gestures = append(a.gestures, g)
}

func (a *recordingActuator) dispatched() []gesture.Gesture {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]gesture.Gesture, len(a.gestures))
	copy(out, a.gestures)
	return out
}

// solidImage fills an image with one channel value
func solidImage(w, h int, value uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

// solidLoader serves condition images of a fixed value
func solidLoader(value uint8) ImageLoader {
	return func(path string, width, height int) (*image.RGBA, error) {
		return solidImage(width, height, value), nil
	}
}

func matchingCondition(name string) scenario.Condition {
	return scenario.Condition{
		ID:           name,
		Name:         name,
		ImagePath:    name + ".png",
		Area:         image.Rect(0, 0, 10, 10),
		Threshold:    0.9,
		ShouldAppear: true,
	}
}

func TestFirstFulfilledEventDispatches(t *testing.T) {
	actuator := &recordingActuator{}

	events := []scenario.Event{
		{
			ID: "e1", Name: "first", Priority: 1, Enabled: true,
			Operator:   scenario.OperatorAnd,
			Conditions: []scenario.Condition{matchingCondition("c1")},
			Actions:    []scenario.Action{{Type: scenario.ActionTap, X: 5, Y: 6}},
		},
		{
			ID: "e2", Name: "second", Priority: 2, Enabled: true,
			Operator:   scenario.OperatorAnd,
			Conditions: []scenario.Condition{matchingCondition("c2")},
			Actions:    []scenario.Action{{Type: scenario.ActionTap, X: 50, Y: 60}},
		},
	}

	// Frame matches both events; only the higher-priority one may fire
	d := New(events, solidLoader(128), actuator, func() {})
	defer d.Close()

	frame := solidImage(100, 100, 128)
	if err := d.Process(frame); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	dispatched := actuator.dispatched()
	if len(dispatched) != 1 {
		t.Fatalf("expected 1 gesture, got %d", len(dispatched))
	}
	tap, ok := dispatched[0].(gesture.Tap)
	if !ok || tap.X != 5 || tap.Y != 6 {
		t.Errorf("wrong gesture dispatched: %#v", dispatched[0])
	}
}

func TestPriorityOrderOverridesSliceOrder(t *testing.T) {
	actuator := &recordingActuator{}

	events := []scenario.Event{
		{
			ID: "low", Name: "low", Priority: 9, Enabled: true,
			Conditions: []scenario.Condition{matchingCondition("c1")},
			Actions:    []scenario.Action{{Type: scenario.ActionTap, X: 1, Y: 1}},
		},
		{
			ID: "high", Name: "high", Priority: 1, Enabled: true,
			Conditions: []scenario.Condition{matchingCondition("c2")},
			Actions:    []scenario.Action{{Type: scenario.ActionTap, X: 2, Y: 2}},
		},
	}

	d := New(events, solidLoader(128), actuator, func() {})
	defer d.Close()

	if err := d.Process(solidImage(100, 100, 128)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	dispatched := actuator.dispatched()
	if len(dispatched) != 1 {
		t.Fatalf("expected 1 gesture, got %d", len(dispatched))
	}
	if tap := dispatched[0].(gesture.Tap); tap.X != 2 {
		t.Error("lower priority value should evaluate first")
	}
}

func TestDisabledEventsAreSkipped(t *testing.T) {
	actuator := &recordingActuator{}

	events := []scenario.Event{
		{
			ID: "e1", Name: "disabled", Priority: 1, Enabled: false,
			Conditions: []scenario.Condition{matchingCondition("c1")},
			Actions:    []scenario.Action{{Type: scenario.ActionTap}},
		},
	}

	d := New(events, solidLoader(128), actuator, func() {})
	defer d.Close()

	if err := d.Process(solidImage(100, 100, 128)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(actuator.dispatched()) != 0 {
		t.Error("disabled event must not dispatch")
	}
}

func TestOperatorAndRequiresAllConditions(t *testing.T) {
	actuator := &recordingActuator{}

	mismatch := matchingCondition("c2")
	mismatch.Area = image.Rect(20, 20, 30, 30)

	// Loader serves dark condition images; the frame region under c2 is
	// bright, so c2 fails.
	loader := func(path string, width, height int) (*image.RGBA, error) {
		if path == "c2.png" {
			return solidImage(width, height, 255), nil
		}
		return solidImage(width, height, 128), nil
	}

	events := []scenario.Event{
		{
			ID: "e1", Name: "and-event", Priority: 1, Enabled: true,
			Operator:   scenario.OperatorAnd,
			Conditions: []scenario.Condition{matchingCondition("c1"), mismatch},
			Actions:    []scenario.Action{{Type: scenario.ActionTap}},
		},
	}

	d := New(events, loader, actuator, func() {})
	defer d.Close()

	if err := d.Process(solidImage(100, 100, 128)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(actuator.dispatched()) != 0 {
		t.Error("AND event with one failing condition must not fulfil")
	}
}

func TestOperatorOrNeedsOneCondition(t *testing.T) {
	actuator := &recordingActuator{}

	failing := matchingCondition("c-fail")
	loader := func(path string, width, height int) (*image.RGBA, error) {
		if path == "c-fail.png" {
			return solidImage(width, height, 255), nil
		}
		return solidImage(width, height, 128), nil
	}

	events := []scenario.Event{
		{
			ID: "e1", Name: "or-event", Priority: 1, Enabled: true,
			Operator:   scenario.OperatorOr,
			Conditions: []scenario.Condition{failing, matchingCondition("c-ok")},
			Actions:    []scenario.Action{{Type: scenario.ActionTap, X: 3}},
		},
	}

	d := New(events, loader, actuator, func() {})
	defer d.Close()

	if err := d.Process(solidImage(100, 100, 128)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(actuator.dispatched()) != 1 {
		t.Error("OR event with one matching condition should fulfil")
	}
}

func TestOperatorOrSurvivesConditionError(t *testing.T) {
	actuator := &recordingActuator{}

	broken := matchingCondition("c-broken")
	loader := func(path string, width, height int) (*image.RGBA, error) {
		if path == "c-broken.png" {
			return nil, fmt.Errorf("missing image")
		}
		return solidImage(width, height, 128), nil
	}

	// A failing condition load must not hide a genuine match on a later
	// condition of the same OR event.
	events := []scenario.Event{
		{
			ID: "e1", Name: "or-event", Priority: 1, Enabled: true,
			Operator:   scenario.OperatorOr,
			Conditions: []scenario.Condition{broken, matchingCondition("c-ok")},
			Actions:    []scenario.Action{{Type: scenario.ActionTap, X: 7}},
		},
	}

	d := New(events, loader, actuator, func() {})
	defer d.Close()

	if err := d.Process(solidImage(100, 100, 128)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(actuator.dispatched()) != 1 {
		t.Error("OR event should fulfil on the later condition despite the earlier error")
	}
}

func TestOperatorOrErrorSurfacesWhenNothingMatches(t *testing.T) {
	broken := matchingCondition("c-broken")
	failing := matchingCondition("c-fail")
	loader := func(path string, width, height int) (*image.RGBA, error) {
		if path == "c-broken.png" {
			return nil, fmt.Errorf("missing image")
		}
		return solidImage(width, height, 255), nil
	}

	events := []scenario.Event{
		{
			ID: "e1", Name: "or-event", Priority: 1, Enabled: true,
			Operator:   scenario.OperatorOr,
			Conditions: []scenario.Condition{broken, failing},
		},
	}

	d := New(events, loader, &recordingActuator{}, func() {})
	defer d.Close()

	if err := d.Process(solidImage(100, 100, 128)); err == nil {
		t.Error("condition error should surface when no OR condition matched")
	}
}

func TestQualityDownscalesBeforeMatching(t *testing.T) {
	actuator := &recordingActuator{}

	var loadedW, loadedH atomic.Int64
	loader := func(path string, width, height int) (*image.RGBA, error) {
		loadedW.Store(int64(width))
		loadedH.Store(int64(height))
		return solidImage(width, height, 128), nil
	}

	cond := matchingCondition("c1")
	cond.Area = image.Rect(0, 0, 20, 20)

	events := []scenario.Event{
		{
			ID: "e1", Name: "scaled", Priority: 1, Enabled: true,
			Conditions: []scenario.Condition{cond},
			Actions:    []scenario.Action{{Type: scenario.ActionTap}},
		},
	}

	d := New(events, loader, actuator, func() {}).WithQuality(2)
	defer d.Close()

	if err := d.Process(solidImage(100, 100, 128)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(actuator.dispatched()) != 1 {
		t.Error("event should fulfil at reduced resolution")
	}
	if loadedW.Load() != 10 || loadedH.Load() != 10 {
		t.Errorf("condition image should load at the downscaled size, got %dx%d",
			loadedW.Load(), loadedH.Load())
	}
}

func TestShouldAppearFalseInvertsCheck(t *testing.T) {
	actuator := &recordingActuator{}

	absent := matchingCondition("c1")
	absent.ShouldAppear = false

	events := []scenario.Event{
		{
			ID: "e1", Name: "absence", Priority: 1, Enabled: true,
			Conditions: []scenario.Condition{absent},
			Actions:    []scenario.Action{{Type: scenario.ActionTap}},
		},
	}

	// Condition image is bright, frame is dark: template absent, so the
	// inverted condition holds.
	d := New(events, solidLoader(255), actuator, func() {})
	defer d.Close()

	if err := d.Process(solidImage(100, 100, 0)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(actuator.dispatched()) != 1 {
		t.Error("absence condition should fulfil when the template is missing")
	}
}

func TestStopAfterSignalsOnce(t *testing.T) {
	actuator := &recordingActuator{}

	var endCount atomic.Int64

	events := []scenario.Event{
		{
			ID: "e1", Name: "terminal", Priority: 1, Enabled: true,
			StopAfter:  true,
			Conditions: []scenario.Condition{matchingCondition("c1")},
			Actions:    []scenario.Action{{Type: scenario.ActionTap}},
		},
	}

	d := New(events, solidLoader(128), actuator, func() { endCount.Add(1) })
	defer d.Close()

	frame := solidImage(100, 100, 128)
	for i := 0; i < 3; i++ {
		if err := d.Process(frame); err != nil {
			t.Fatalf("Process failed: %v", err)
		}
	}

	if got := endCount.Load(); got != 1 {
		t.Errorf("end-of-scenario must fire exactly once, fired %d times", got)
	}
}

func TestProcessAfterCloseFails(t *testing.T) {
	d := New(nil, solidLoader(0), &recordingActuator{}, func() {})
	d.Close()

	if err := d.Process(solidImage(10, 10, 0)); err == nil {
		t.Error("Process after Close should fail")
	}
}

func TestLoaderErrorSurfaces(t *testing.T) {
	loader := func(path string, width, height int) (*image.RGBA, error) {
		return nil, fmt.Errorf("missing image")
	}

	events := []scenario.Event{
		{
			ID: "e1", Name: "broken", Priority: 1, Enabled: true,
			Conditions: []scenario.Condition{matchingCondition("c1")},
		},
	}

	d := New(events, loader, &recordingActuator{}, func() {})
	defer d.Close()

	if err := d.Process(solidImage(100, 100, 0)); err == nil {
		t.Error("loader failure should surface from Process")
	}
}
