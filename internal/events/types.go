package events

import "time"

// NotificationType identifies the kinds of notifications the engine emits
type NotificationType string

const (
	// Capture lifecycle
	NotificationCaptureStarted NotificationType = "capture.started"
	NotificationCaptureStopped NotificationType = "capture.stopped"

	// Detection lifecycle
	NotificationDetectionStarted NotificationType = "detection.started"
	NotificationDetectionStopped NotificationType = "detection.stopped"

	// Scenario projection
	NotificationEventListUpdated NotificationType = "scenario.event_list_updated"

	// Capture source
	NotificationDisplayChanged NotificationType = "capture.display_changed"
	NotificationSourceLost     NotificationType = "capture.source_lost"

	// Errors
	NotificationError NotificationType = "error"
)

// Notification carries one engine notification with metadata
type Notification struct {
	Type      NotificationType
	Source    string // component that emitted it (e.g. "engine", "projection")
	Timestamp time.Time
	Data      map[string]interface{}
}

// Handler is a function that processes a notification
type Handler func(Notification)

// SubscriptionID uniquely identifies a subscription
type SubscriptionID int64

// Bus defines the pub/sub surface consumed by UI and orchestration layers
type Bus interface {
	Subscribe(t NotificationType, handler Handler) SubscriptionID
	Unsubscribe(id SubscriptionID)
	Publish(n Notification)
	PublishAsync(n Notification)
	Stop()
}

// NewCaptureStartedNotification reports that a capture session began
func NewCaptureStartedNotification(scenarioID string, width, height int) Notification {
	return Notification{
		Type:      NotificationCaptureStarted,
		Source:    "engine",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"scenario_id": scenarioID,
			"width":       width,
			"height":      height,
		},
	}
}

// NewCaptureStoppedNotification reports that the capture session ended
func NewCaptureStoppedNotification(scenarioID string) Notification {
	return Notification{
		Type:      NotificationCaptureStopped,
		Source:    "engine",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"scenario_id": scenarioID,
		},
	}
}

// NewDetectionStartedNotification reports that the processing loop launched
func NewDetectionStartedNotification(scenarioID string, eventCount int) Notification {
	return Notification{
		Type:      NotificationDetectionStarted,
		Source:    "engine",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"scenario_id": scenarioID,
			"event_count": eventCount,
		},
	}
}

// NewDetectionStoppedNotification reports that the processing loop was joined
func NewDetectionStoppedNotification(scenarioID string) Notification {
	return Notification{
		Type:      NotificationDetectionStopped,
		Source:    "engine",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"scenario_id": scenarioID,
		},
	}
}

// NewEventListUpdatedNotification reports a republished event projection
func NewEventListUpdatedNotification(scenarioID string, eventCount int) Notification {
	return Notification{
		Type:      NotificationEventListUpdated,
		Source:    "projection",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"scenario_id": scenarioID,
			"event_count": eventCount,
		},
	}
}

// NewDisplayChangedNotification reports an in-place capture restart
func NewDisplayChangedNotification(width, height int) Notification {
	return Notification{
		Type:      NotificationDisplayChanged,
		Source:    "engine",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"width":  width,
			"height": height,
		},
	}
}

// NewSourceLostNotification reports that the capture source ended itself
func NewSourceLostNotification(reason string) Notification {
	return Notification{
		Type:      NotificationSourceLost,
		Source:    "capture",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"reason": reason,
		},
	}
}

// NewErrorNotification reports a component error
func NewErrorNotification(source, component string, err error) Notification {
	return Notification{
		Type:      NotificationError,
		Source:    source,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"component": component,
			"error":     err.Error(),
		},
	}
}
