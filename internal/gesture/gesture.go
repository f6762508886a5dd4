// Package gesture describes simulated input gestures and the actuator that
// dispatches them to a device.
package gesture

import (
	"fmt"
	"strings"
)

// Gesture is one simulated input description
type Gesture interface {
	// ShellCommand renders the gesture as an "input" shell command
	ShellCommand() (string, error)
}

// Tap presses and releases at one point
type Tap struct {
	X, Y int
}

func (t Tap) ShellCommand() (string, error) {
	if t.X < 0 || t.Y < 0 {
		return "", fmt.Errorf("tap coordinates must be non-negative, got (%d,%d)", t.X, t.Y)
	}
	return fmt.Sprintf("input tap %d %d", t.X, t.Y), nil
}

// Swipe drags from one point to another over a duration
type Swipe struct {
	X1, Y1     int
	X2, Y2     int
	DurationMs int
}

func (s Swipe) ShellCommand() (string, error) {
	if s.DurationMs <= 0 {
		return "", fmt.Errorf("swipe duration must be positive, got %d", s.DurationMs)
	}
	return fmt.Sprintf("input swipe %d %d %d %d %d", s.X1, s.Y1, s.X2, s.Y2, s.DurationMs), nil
}

// KeyPress sends a key event (e.g. "KEYCODE_BACK", "KEYCODE_HOME")
type KeyPress struct {
	Key string
}

func (k KeyPress) ShellCommand() (string, error) {
	key := strings.TrimSpace(k.Key)
	if key == "" {
		return "", fmt.Errorf("key event name cannot be empty")
	}
	return fmt.Sprintf("input keyevent %s", key), nil
}

// Actuator dispatches gestures fire-and-forget; failures are the actuator's
// own concern and never surface to the detection loop.
type Actuator interface {
	Execute(g Gesture)
}
