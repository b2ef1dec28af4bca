// Package store persists normalized weather observations and pipeline run
// bookkeeping to SQLite or Postgres.
package store

import (
	"context"

	"github.com/sells-group/weather-etl/internal/model"
)

// ObservationFilter narrows ListObservations results.
type ObservationFilter struct {
	City  string `json:"city,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Store is the persistence interface for the ETL pipeline. Observations are
// append-only; there is no update or delete path.
type Store interface {
	// Observations
	InsertObservations(ctx context.Context, observations []model.Observation) (int, error)
	ListObservations(ctx context.Context, filter ObservationFilter) ([]model.Observation, error)

	// Run bookkeeping
	CreateRun(ctx context.Context) (*model.RunRecord, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats, runErr string) error
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
