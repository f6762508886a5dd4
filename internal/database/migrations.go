package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration
type Migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
	Down        func(*sql.Tx) error
}

// migrations is the ordered list of all database migrations
var migrations = []Migration{
	{
		Version:     1,
		Description: "Create schema_version table",
		Up:          migration001Up,
		Down:        migration001Down,
	},
	{
		Version:     2,
		Description: "Create scenarios table",
		Up:          migration002Up,
		Down:        migration002Down,
	},
	{
		Version:     3,
		Description: "Create events, conditions and actions tables",
		Up:          migration003Up,
		Down:        migration003Down,
	},
	{
		Version:     4,
		Description: "Create event ordering indexes",
		Up:          migration004Up,
		Down:        migration004Down,
	},
}

// RunMigrations runs all pending database migrations
func (db *DB) RunMigrations() error {
	currentVersion, err := db.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		err := db.ExecTx(func(tx *sql.Tx) error {
			if err := migration.Up(tx); err != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, err)
			}

			_, err := tx.Exec(`
				INSERT INTO schema_version (version, description, applied_at)
				VALUES (?, ?, ?)
			`, migration.Version, migration.Description, time.Now())

			return err
		})

		if err != nil {
			return err
		}
	}

	return nil
}

// getCurrentVersion returns the current schema version
func (db *DB) getCurrentVersion() (int, error) {
	var tableExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)

	if err != nil {
		return 0, err
	}

	if !tableExists {
		return 0, nil
	}

	var version int
	err = db.conn.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_version
	`).Scan(&version)

	if err != nil {
		return 0, err
	}

	return version, nil
}

// Migration 001: Schema version tracking table
func migration001Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	return err
}

func migration001Down(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS schema_version`)
	return err
}

// Migration 002: Scenarios table
func migration002Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE scenarios (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			quality INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)
	`)
	return err
}

func migration002Down(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS scenarios`)
	return err
}

// Migration 003: Events, conditions and actions
func migration003Up(tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE events (
			id TEXT PRIMARY KEY,
			scenario_id TEXT NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			operator TEXT NOT NULL DEFAULT 'AND',
			priority INTEGER NOT NULL DEFAULT 0,
			enabled INTEGER NOT NULL DEFAULT 1,
			stop_after INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE conditions (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			image_path TEXT NOT NULL,
			area_x1 INTEGER NOT NULL,
			area_y1 INTEGER NOT NULL,
			area_x2 INTEGER NOT NULL,
			area_y2 INTEGER NOT NULL,
			threshold REAL NOT NULL,
			should_appear INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE actions (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			x INTEGER NOT NULL DEFAULT 0,
			y INTEGER NOT NULL DEFAULT 0,
			to_x INTEGER NOT NULL DEFAULT 0,
			to_y INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			key TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migration003Down(tx *sql.Tx) error {
	statements := []string{
		`DROP TABLE IF EXISTS actions`,
		`DROP TABLE IF EXISTS conditions`,
		`DROP TABLE IF EXISTS events`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Migration 004: Indexes for ordered event list reads
func migration004Up(tx *sql.Tx) error {
	statements := []string{
		`CREATE INDEX idx_events_scenario_priority ON events(scenario_id, priority)`,
		`CREATE INDEX idx_conditions_event ON conditions(event_id)`,
		`CREATE INDEX idx_actions_event_position ON actions(event_id, position)`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migration004Down(tx *sql.Tx) error {
	statements := []string{
		`DROP INDEX IF EXISTS idx_actions_event_position`,
		`DROP INDEX IF EXISTS idx_conditions_event`,
		`DROP INDEX IF EXISTS idx_events_scenario_priority`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
