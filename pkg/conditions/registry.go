package conditions

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"clickweaver.com/clickweaver-go/internal/scenario"
)

// ScenarioDefinition is the top-level structure of a scenario YAML file
type ScenarioDefinition struct {
	Name    string            `yaml:"name"`
	Quality int               `yaml:"quality,omitempty"`
	Events  []EventDefinition `yaml:"events"`
}

// EventDefinition represents one event in the YAML file
type EventDefinition struct {
	Name       string                `yaml:"name"`
	Operator   string                `yaml:"operator,omitempty"` // AND (default) or OR
	Priority   int                   `yaml:"priority"`
	Enabled    *bool                 `yaml:"enabled,omitempty"` // default true
	StopAfter  bool                  `yaml:"stop_after,omitempty"`
	Conditions []ConditionDefinition `yaml:"conditions"`
	Actions    []ActionDefinition    `yaml:"actions"`
}

// ConditionDefinition represents one condition in the YAML file
type ConditionDefinition struct {
	Name         string    `yaml:"name"`
	Image        string    `yaml:"image"`
	Area         RegionDef `yaml:"area"`
	Threshold    float64   `yaml:"threshold,omitempty"`
	ShouldAppear *bool     `yaml:"should_appear,omitempty"` // default true
}

// ActionDefinition represents one action in the YAML file
type ActionDefinition struct {
	Type       string `yaml:"type"`
	X          int    `yaml:"x,omitempty"`
	Y          int    `yaml:"y,omitempty"`
	ToX        int    `yaml:"to_x,omitempty"`
	ToY        int    `yaml:"to_y,omitempty"`
	DurationMs int    `yaml:"duration_ms,omitempty"`
	Key        string `yaml:"key,omitempty"`
}

// RegionDef represents a frame rectangle in the YAML file
type RegionDef struct {
	X1 int `yaml:"x1"`
	Y1 int `yaml:"y1"`
	X2 int `yaml:"x2"`
	Y2 int `yaml:"y2"`
}

// defaultThreshold applies when a condition omits its threshold
const defaultThreshold = 0.85

// Registry holds scenarios parsed from YAML definition files
type Registry struct {
	mu        sync.RWMutex
	scenarios map[string]*scenario.Scenario
	events    map[string][]scenario.Event
}

// NewRegistry creates an empty scenario registry
func NewRegistry() *Registry {
	return &Registry{
		scenarios: make(map[string]*scenario.Scenario),
		events:    make(map[string][]scenario.Event),
	}
}

// LoadFromFile parses one scenario YAML file into the registry and returns
// the created scenario
func (r *Registry) LoadFromFile(filePath string) (*scenario.Scenario, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", filePath, err)
	}

	var def ScenarioDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario YAML %s: %w", filePath, err)
	}

	sc, eventList, err := buildScenario(&def)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	r.mu.Lock()
	r.scenarios[sc.ID] = sc
	r.events[sc.ID] = eventList
	r.mu.Unlock()

	return sc, nil
}

// LoadFromDirectory parses every .yaml/.yml file in dir
func (r *Registry) LoadFromDirectory(dir string) ([]*scenario.Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory %s: %w", dir, err)
	}

	var loaded []*scenario.Scenario
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		sc, err := r.LoadFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, sc)
	}
	return loaded, nil
}

// Scenarios lists the registered scenarios sorted by name
func (r *Registry) Scenarios() []*scenario.Scenario {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*scenario.Scenario, 0, len(r.scenarios))
	for _, sc := range r.scenarios {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Events returns the event list of a registered scenario
func (r *Registry) Events(scenarioID string) ([]scenario.Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eventList, ok := r.events[scenarioID]
	if !ok {
		return nil, false
	}
	out := make([]scenario.Event, len(eventList))
	copy(out, eventList)
	return out, true
}

func buildScenario(def *ScenarioDefinition) (*scenario.Scenario, []scenario.Event, error) {
	if def.Name == "" {
		return nil, nil, fmt.Errorf("scenario name cannot be empty")
	}

	sc := scenario.NewScenario(def.Name, def.Quality)

	var eventList []scenario.Event
	for i, eventDef := range def.Events {
		event, err := buildEvent(sc.ID, i, &eventDef)
		if err != nil {
			return nil, nil, err
		}
		eventList = append(eventList, *event)
	}

	return sc, eventList, nil
}

func buildEvent(scenarioID string, index int, def *EventDefinition) (*scenario.Event, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("event %d: name cannot be empty", index+1)
	}

	event := scenario.NewEvent(scenarioID, def.Name, def.Priority)
	event.StopAfter = def.StopAfter
	if def.Enabled != nil {
		event.Enabled = *def.Enabled
	}

	switch strings.ToUpper(def.Operator) {
	case "", string(scenario.OperatorAnd):
		event.Operator = scenario.OperatorAnd
	case string(scenario.OperatorOr):
		event.Operator = scenario.OperatorOr
	default:
		return nil, fmt.Errorf("event %s: unknown operator %q", def.Name, def.Operator)
	}

	for j, condDef := range def.Conditions {
		cond, err := buildCondition(event.ID, j, &condDef)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", def.Name, err)
		}
		event.Conditions = append(event.Conditions, *cond)
	}

	for _, actionDef := range def.Actions {
		action, err := buildAction(event.ID, &actionDef)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", def.Name, err)
		}
		event.Actions = append(event.Actions, *action)
	}

	return event, nil
}

func buildCondition(eventID string, index int, def *ConditionDefinition) (*scenario.Condition, error) {
	if def.Image == "" {
		return nil, fmt.Errorf("condition %d: image cannot be empty", index+1)
	}

	area := image.Rect(def.Area.X1, def.Area.Y1, def.Area.X2, def.Area.Y2)
	if area.Empty() {
		return nil, fmt.Errorf("condition %d: area is empty", index+1)
	}

	threshold := def.Threshold
	if threshold == 0 {
		threshold = defaultThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("condition %d: threshold %v out of range", index+1, threshold)
	}

	shouldAppear := true
	if def.ShouldAppear != nil {
		shouldAppear = *def.ShouldAppear
	}

	return &scenario.Condition{
		ID:           uuid.New().String(),
		EventID:      eventID,
		Name:         def.Name,
		ImagePath:    def.Image,
		Area:         area,
		Threshold:    threshold,
		ShouldAppear: shouldAppear,
	}, nil
}

func buildAction(eventID string, def *ActionDefinition) (*scenario.Action, error) {
	actionType := scenario.ActionType(strings.ToLower(def.Type))
	switch actionType {
	case scenario.ActionTap, scenario.ActionSwipe, scenario.ActionKey, scenario.ActionPause:
	default:
		return nil, fmt.Errorf("unknown action type %q", def.Type)
	}

	return &scenario.Action{
		ID:         uuid.New().String(),
		EventID:    eventID,
		Type:       actionType,
		X:          def.X,
		Y:          def.Y,
		ToX:        def.ToX,
		ToY:        def.ToY,
		DurationMs: def.DurationMs,
		Key:        def.Key,
	}, nil
}
