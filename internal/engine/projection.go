package engine

import (
	"sync"

	"clickweaver.com/clickweaver-go/internal/events"
	"clickweaver.com/clickweaver-go/internal/logging"
	"clickweaver.com/clickweaver-go/internal/scenario"
)

// eventProjection is a read-only view of the active scenario's event list.
// Whenever the active scenario changes it asynchronously re-fetches the list
// from the repository and republishes it. Superseded in-flight fetches are
// discarded (switch-latest, not queued).
type eventProjection struct {
	repo   scenario.Repository
	bus    events.Bus
	logger *logging.Logger

	mu         sync.Mutex
	generation uint64
	scenarioID string
	events     []scenario.Event
}

func newEventProjection(repo scenario.Repository, bus events.Bus) *eventProjection {
	return &eventProjection{
		repo:   repo,
		bus:    bus,
		logger: logging.NewLogger("projection"),
	}
}

// SetScenario switches the projection to a new scenario and kicks off an
// asynchronous re-fetch. An empty ID clears the projection.
func (p *eventProjection) SetScenario(id string) {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.scenarioID = id
	if id == "" {
		p.events = nil
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	go p.fetch(gen, id)
}

// Events returns the latest published event list
func (p *eventProjection) Events() []scenario.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]scenario.Event, len(p.events))
	copy(out, p.events)
	return out
}

// ScenarioID returns the scenario the projection currently tracks
func (p *eventProjection) ScenarioID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scenarioID
}

func (p *eventProjection) fetch(gen uint64, id string) {
	list, err := p.repo.GetEventList(id)

	p.mu.Lock()
	if p.generation != gen {
		// A newer scenario switch superseded this fetch
		p.mu.Unlock()
		return
	}

	if err != nil {
		p.mu.Unlock()
		p.logger.ErrorWithContext("failed to fetch event list", err, map[string]interface{}{
			"scenario_id": id,
		})
		if p.bus != nil {
			p.bus.Publish(events.NewErrorNotification("projection", "repository", err))
		}
		return
	}

	p.events = list
	p.mu.Unlock()

	if p.bus != nil {
		p.bus.Publish(events.NewEventListUpdatedNotification(id, len(list)))
	}
}
