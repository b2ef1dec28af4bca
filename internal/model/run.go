package model

import "time"

// RunStatus tracks the lifecycle of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusSkipped  RunStatus = "skipped"
	RunStatusFailed   RunStatus = "failed"
)

// RunStats summarizes one Extract → Transform → Load cycle.
type RunStats struct {
	CitiesConfigured int    `json:"cities_configured"`
	Extracted        int    `json:"extracted"`
	Normalized       int    `json:"normalized"`
	RowsInserted     int    `json:"rows_inserted"`
	CSVPath          string `json:"csv_path,omitempty"`
}

// RunRecord is the persisted bookkeeping row for a pipeline run.
type RunRecord struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	Stats       *RunStats  `json:"stats,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
