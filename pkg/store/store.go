// Package store persists engine runs so a payload can be fetched again by
// id after the request that produced it.
//
// Backends:
//   - [FileStore]: one JSON file per run, for the CLI
//   - [SQLiteStore]: a single-file database for one server
//   - [MongoStore]: a shared document store for several servers
//
// [Open] picks a backend from a DSN.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Run is one stored engine run.
type Run struct {
	ID       string   `json:"id" bson:"_id"`
	SpecHash string   `json:"spec_hash" bson:"spec_hash"`
	Title    string   `json:"title,omitempty" bson:"title,omitempty"`
	Layers   int      `json:"layers" bson:"layers"`
	Degraded int      `json:"degraded" bson:"degraded"`
	Warnings []string `json:"warnings,omitempty" bson:"warnings,omitempty"`
	// Payload is the JSON-encoded payload.
	Payload   json.RawMessage `json:"payload" bson:"payload"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}

// Store is the interface for run storage backends.
type Store interface {
	// SaveRun stores a run, replacing any run with the same id.
	SaveRun(ctx context.Context, r *Run) error

	// GetRun returns the run with the given id, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns up to limit runs, newest first. A limit of zero
	// or less returns every run.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// DeleteRun removes a run. Deleting a missing run is not an error.
	DeleteRun(ctx context.Context, id string) error

	Close() error
}

// Open opens the backend a DSN names:
//
//	mongodb://host/db    MongoStore, database from the path (default "maidr")
//	sqlite:path/runs.db  SQLiteStore
//	path/to/dir          FileStore
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		return OpenMongo(ctx, dsn, "")
	case strings.HasPrefix(dsn, "sqlite:"):
		return OpenSQLite(strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite:"), "//"))
	}
	return NewFileStore(dsn)
}
