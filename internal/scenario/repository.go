package scenario

import "image"

// Repository abstracts persistent storage of scenarios, events and condition
// images. The engine consumes it read-only; writes belong to the importer
// and editor layers.
type Repository interface {
	// GetScenario returns one scenario by ID
	GetScenario(id string) (*Scenario, error)

	// GetEventList returns the scenario's enabled and disabled events with
	// their conditions and actions, ordered by priority
	GetEventList(scenarioID string) ([]Event, error)

	// GetImage loads a condition image scaled to the given size.
	// Width/height of 0 keep the stored dimensions.
	GetImage(path string, width, height int) (*image.RGBA, error)
}
