package database

import (
	"database/sql"
	"fmt"
	"image"

	"clickweaver.com/clickweaver-go/internal/scenario"
)

// Scenario operations

// CreateScenario inserts a scenario with its events, conditions and actions
// in one transaction
func (db *DB) CreateScenario(sc *scenario.Scenario, eventList []scenario.Event) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO scenarios (id, name, quality, created_at)
			VALUES (?, ?, ?, ?)
		`, sc.ID, sc.Name, sc.Quality, sc.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert scenario: %w", err)
		}

		for i := range eventList {
			if err := insertEvent(tx, &eventList[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertEvent(tx *sql.Tx, event *scenario.Event) error {
	_, err := tx.Exec(`
		INSERT INTO events (id, scenario_id, name, operator, priority, enabled, stop_after)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.ScenarioID, event.Name, string(event.Operator),
		event.Priority, event.Enabled, event.StopAfter)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", event.Name, err)
	}

	for _, cond := range event.Conditions {
		_, err := tx.Exec(`
			INSERT INTO conditions (
				id, event_id, name, image_path,
				area_x1, area_y1, area_x2, area_y2,
				threshold, should_appear
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, cond.ID, cond.EventID, cond.Name, cond.ImagePath,
			cond.Area.Min.X, cond.Area.Min.Y, cond.Area.Max.X, cond.Area.Max.Y,
			cond.Threshold, cond.ShouldAppear)
		if err != nil {
			return fmt.Errorf("failed to insert condition %s: %w", cond.Name, err)
		}
	}

	for i, action := range event.Actions {
		_, err := tx.Exec(`
			INSERT INTO actions (
				id, event_id, type, x, y, to_x, to_y, duration_ms, key, position
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, action.ID, action.EventID, string(action.Type),
			action.X, action.Y, action.ToX, action.ToY,
			action.DurationMs, action.Key, i)
		if err != nil {
			return fmt.Errorf("failed to insert action: %w", err)
		}
	}

	return nil
}

// GetScenario retrieves a scenario by ID
func (db *DB) GetScenario(id string) (*scenario.Scenario, error) {
	sc := &scenario.Scenario{}
	err := db.conn.QueryRow(`
		SELECT id, name, quality, created_at
		FROM scenarios
		WHERE id = ?
	`, id).Scan(&sc.ID, &sc.Name, &sc.Quality, &sc.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scenario %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario: %w", err)
	}
	return sc, nil
}

// ListScenarios returns all scenarios ordered by creation time
func (db *DB) ListScenarios() ([]scenario.Scenario, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, quality, created_at
		FROM scenarios
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []scenario.Scenario
	for rows.Next() {
		var sc scenario.Scenario
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Quality, &sc.CreatedAt); err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, rows.Err()
}

// DeleteScenario removes a scenario; events, conditions and actions cascade
func (db *DB) DeleteScenario(id string) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM scenarios WHERE id = ?`, id)
		return err
	})
}

// GetEventList returns a scenario's events in priority order, with their
// conditions and actions attached
func (db *DB) GetEventList(scenarioID string) ([]scenario.Event, error) {
	rows, err := db.conn.Query(`
		SELECT id, scenario_id, name, operator, priority, enabled, stop_after
		FROM events
		WHERE scenario_id = ?
		ORDER BY priority
	`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var eventList []scenario.Event
	for rows.Next() {
		var event scenario.Event
		var operator string
		err := rows.Scan(&event.ID, &event.ScenarioID, &event.Name, &operator,
			&event.Priority, &event.Enabled, &event.StopAfter)
		if err != nil {
			return nil, err
		}
		event.Operator = scenario.ConditionOperator(operator)
		eventList = append(eventList, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range eventList {
		if eventList[i].Conditions, err = db.getConditions(eventList[i].ID); err != nil {
			return nil, err
		}
		if eventList[i].Actions, err = db.getActions(eventList[i].ID); err != nil {
			return nil, err
		}
	}

	return eventList, nil
}

// SetEventEnabled toggles a single event without touching the rest of the
// scenario
func (db *DB) SetEventEnabled(eventID string, enabled bool) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE events SET enabled = ? WHERE id = ?`, enabled, eventID)
		return err
	})
}

func (db *DB) getConditions(eventID string) ([]scenario.Condition, error) {
	rows, err := db.conn.Query(`
		SELECT id, event_id, name, image_path,
			area_x1, area_y1, area_x2, area_y2,
			threshold, should_appear
		FROM conditions
		WHERE event_id = ?
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conditions: %w", err)
	}
	defer rows.Close()

	var conditions []scenario.Condition
	for rows.Next() {
		var cond scenario.Condition
		var x1, y1, x2, y2 int
		err := rows.Scan(&cond.ID, &cond.EventID, &cond.Name, &cond.ImagePath,
			&x1, &y1, &x2, &y2, &cond.Threshold, &cond.ShouldAppear)
		if err != nil {
			return nil, err
		}
		cond.Area = image.Rect(x1, y1, x2, y2)
		conditions = append(conditions, cond)
	}
	return conditions, rows.Err()
}

func (db *DB) getActions(eventID string) ([]scenario.Action, error) {
	rows, err := db.conn.Query(`
		SELECT id, event_id, type, x, y, to_x, to_y, duration_ms, key
		FROM actions
		WHERE event_id = ?
		ORDER BY position
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []scenario.Action
	for rows.Next() {
		var action scenario.Action
		var actionType string
		err := rows.Scan(&action.ID, &action.EventID, &actionType,
			&action.X, &action.Y, &action.ToX, &action.ToY,
			&action.DurationMs, &action.Key)
		if err != nil {
			return nil, err
		}
		action.Type = scenario.ActionType(actionType)
		actions = append(actions, action)
	}
	return actions, rows.Err()
}
