package scenario

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// ConditionOperator controls how an event combines its conditions
type ConditionOperator string

const (
	// OperatorAnd fulfils the event only when every condition matches
	OperatorAnd ConditionOperator = "AND"
	// OperatorOr fulfils the event when any condition matches
	OperatorOr ConditionOperator = "OR"
)

// ActionType identifies the gesture an action dispatches
type ActionType string

const (
	ActionTap   ActionType = "tap"
	ActionSwipe ActionType = "swipe"
	ActionKey   ActionType = "key"
	ActionPause ActionType = "pause"
)

// Scenario is a named collection of detectable events plus associated actions
type Scenario struct {
	ID        string
	Name      string
	// Quality downscales frames before matching; 0 means full resolution
	Quality   int
	CreatedAt time.Time
}

// Event is one condition group (plus its actions) within a scenario
type Event struct {
	ID         string
	ScenarioID string
	Name       string
	Operator   ConditionOperator
	Priority   int
	Enabled    bool
	// StopAfter marks the event as terminal: detection stops once it fulfils
	StopAfter  bool
	Conditions []Condition
	Actions    []Action
}

// Condition is a single template check against a frame region
type Condition struct {
	ID        string
	EventID   string
	Name      string
	ImagePath string
	Area      image.Rectangle
	// Threshold is the minimum match confidence, 0.0-1.0
	Threshold float64
	// ShouldAppear inverts the check when false (condition holds if absent)
	ShouldAppear bool
}

// Action describes one gesture dispatched when its event fulfils
type Action struct {
	ID         string
	EventID    string
	Type       ActionType
	X, Y       int
	ToX, ToY   int
	DurationMs int
	Key        string
}

// NewScenario creates a scenario with a fresh ID
func NewScenario(name string, quality int) *Scenario {
	return &Scenario{
		ID:        uuid.New().String(),
		Name:      name,
		Quality:   quality,
		CreatedAt: time.Now(),
	}
}

// NewEvent creates an event bound to a scenario with a fresh ID
func NewEvent(scenarioID, name string, priority int) *Event {
	return &Event{
		ID:         uuid.New().String(),
		ScenarioID: scenarioID,
		Name:       name,
		Operator:   OperatorAnd,
		Priority:   priority,
		Enabled:    true,
	}
}
