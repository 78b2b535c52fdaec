package model

import "time"

// RunStatus represents the current state of a cleaning run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusCleaning RunStatus = "cleaning"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run represents one batch cleaning run over an uploaded file.
type Run struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"` // file path or "http"
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult summarizes a completed run.
type RunResult struct {
	Records      int     `json:"records"`
	Cleaned      int     `json:"cleaned"`
	Fallbacks    int     `json:"fallbacks"`
	Enriched     int     `json:"enriched"`
	MeanAccuracy float64 `json:"mean_accuracy"`
	DurationMs   int64   `json:"duration_ms"`
}

// RecordResult is the stored per-record outcome of a run.
type RecordResult struct {
	RunID    string         `json:"run_id"`
	RowIndex int            `json:"row_index"`
	Input    ProviderRecord `json:"input"`
	Result   CleaningResult `json:"result"`
	Fallback bool           `json:"fallback"`
}
