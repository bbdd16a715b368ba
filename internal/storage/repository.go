// Package storage defines the backend-agnostic analytical store interface
// and the multi-site schema every backend materializes.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config selects and configures a storage backend.
//
// Kind must match a registered backend kind ("sqlite", "postgres", "mssql").
// DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// ImportState is the completion marker for one (site, entity) import.
// Its presence means that import finished and must not be repeated.
type ImportState struct {
	Site        string
	Entity      string
	Imported    int64
	Skipped     int64
	CompletedAt time.Time
}

// Repository is the minimal store surface the import pipeline needs. Each
// backend implements the semantics idiomatically (Postgres ON CONFLICT,
// SQLite OR IGNORE, MSSQL parameter-limit chunking, etc).
type Repository interface {
	// Close releases backend resources. Treat as "call once".
	Close()

	// EnsureSchema creates all tables if absent. Safe against an existing
	// store: no error, no data loss.
	EnsureSchema(ctx context.Context) error

	// EnsureIndexes creates the serving-layer indexes if absent. Idempotent;
	// called after a site's data lands so bulk loads skip index maintenance.
	EnsureIndexes(ctx context.Context) error

	// InsertRows bulk-appends one batch. Atomic per call: all rows persist
	// or none do. No dedupe; the orchestrator guards idempotency.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// RowCount returns the number of rows for a site in a table.
	RowCount(ctx context.Context, table, site string) (int64, error)

	// DeleteSite removes a site's rows from one table. Used only when a
	// prior import was interrupted (rows present, no completion marker).
	DeleteSite(ctx context.Context, table, site string) error

	// ImportState returns the completion marker, or nil if none exists.
	ImportState(ctx context.Context, site, entity string) (*ImportState, error)

	// MarkComplete writes the completion marker. Overwrites an existing
	// marker for the same (site, entity).
	MarkComplete(ctx context.Context, site, entity string, imported, skipped int64) error

	// Sites lists sites with at least one completion marker.
	Sites(ctx context.Context) ([]string, error)
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Call from an init() function in
// a backend package. Registering the same kind twice panics; failing fast
// beats ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
