// Package journal persists per-vehicle mission events in SQLite.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Kind identifies a journal event.
type Kind string

const (
	KindPathSet      Kind = "path_set"
	KindPathRejected Kind = "path_rejected"
	KindGoalReached  Kind = "goal_reached"
	KindFound        Kind = "found"
)

// DefaultListLimit caps List when limit <= 0.
const DefaultListLimit = 100

// ErrClosed is returned after Close.
var ErrClosed = errors.New("journal: closed")

// Event is one journal row.
type Event struct {
	ID        int64     `json:"id"`
	VehicleID string    `json:"vehicle_id"`
	Kind      Kind      `json:"kind"`
	GoalIndex int       `json:"goal_index"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder is the write side of the journal.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Journal is a SQLite-backed event store.
type Journal struct {
	db *sql.DB
}

const schema = `
	CREATE TABLE IF NOT EXISTS events (
		event_id INTEGER PRIMARY KEY AUTOINCREMENT,
		vehicle_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		goal_index INTEGER NOT NULL DEFAULT -1,
		x DOUBLE NOT NULL DEFAULT 0,
		y DOUBLE NOT NULL DEFAULT 0,
		z DOUBLE NOT NULL DEFAULT 0,
		detail TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_vehicle ON events (vehicle_id, event_id);
`

// Open opens (creating if needed) the journal at path. Use ":memory:" for
// an ephemeral store.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record inserts ev. A zero CreatedAt is set to now.
func (j *Journal) Record(ctx context.Context, ev Event) error {
	if j.db == nil {
		return ErrClosed
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (vehicle_id, kind, goal_index, x, y, z, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.VehicleID, string(ev.Kind), ev.GoalIndex, ev.X, ev.Y, ev.Z, ev.Detail, ev.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record %s event: %w", ev.Kind, err)
	}
	return nil
}

// List returns up to limit most recent events for vehicleID, newest first.
// An empty vehicleID lists all vehicles.
func (j *Journal) List(ctx context.Context, vehicleID string, limit int) ([]Event, error) {
	if j.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT event_id, vehicle_id, kind, goal_index, x, y, z, detail, created_at FROM events`
	args := []interface{}{}
	if vehicleID != "" {
		query += ` WHERE vehicle_id = ?`
		args = append(args, vehicleID)
	}
	query += ` ORDER BY event_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		var kind string
		var createdMs int64
		if err := rows.Scan(&ev.ID, &ev.VehicleID, &kind, &ev.GoalIndex, &ev.X, &ev.Y, &ev.Z, &ev.Detail, &createdMs); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = Kind(kind)
		ev.CreatedAt = time.UnixMilli(createdMs)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Count returns the number of events of kind for vehicleID.
func (j *Journal) Count(ctx context.Context, vehicleID string, kind Kind) (int, error) {
	if j.db == nil {
		return 0, ErrClosed
	}
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE vehicle_id = ? AND kind = ?`, vehicleID, string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}
