package database

import (
	"image"

	"clickweaver.com/clickweaver-go/internal/scenario"
	"clickweaver.com/clickweaver-go/pkg/conditions"
)

// Repository adapts the SQLite store plus the condition image cache to the
// scenario repository contract consumed by the engine.
type Repository struct {
	db     *DB
	images *conditions.ImageCache
}

var _ scenario.Repository = (*Repository)(nil)

// NewRepository builds a repository over an open database. Condition image
// paths are resolved relative to imageBasePath.
func NewRepository(db *DB, imageBasePath string) *Repository {
	return &Repository{
		db:     db,
		images: conditions.NewImageCache(imageBasePath),
	}
}

// GetScenario retrieves a scenario by ID
func (r *Repository) GetScenario(id string) (*scenario.Scenario, error) {
	return r.db.GetScenario(id)
}

// GetEventList returns a scenario's events in priority order
func (r *Repository) GetEventList(scenarioID string) ([]scenario.Event, error) {
	return r.db.GetEventList(scenarioID)
}

// GetImage loads a condition image scaled to the given size
func (r *Repository) GetImage(path string, width, height int) (*image.RGBA, error) {
	return r.images.Get(path, width, height)
}
