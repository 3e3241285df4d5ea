package model

import "time"

// RunStatus represents the current state of an import run.
type RunStatus string

// Run states. PAUSED is produced when a run is cancelled mid-flight;
// contacts already in progress finish and counters are preserved.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusPaused    RunStatus = "paused"
)

// Terminal reports whether the run has reached a final state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusPaused
}

// ContactError records a per-contact failure with a human-readable reference
// (phone or display name) so the caller can re-run a failed subset.
type ContactError struct {
	ContactRef string `json:"contact_ref"`
	Message    string `json:"message"`
}

// ImportRunResult aggregates the outcome of one import run. It is mutated
// only by the orchestrator while RUNNING and is immutable once the status
// reaches a terminal value.
type ImportRunResult struct {
	RunID             string         `json:"run_id" yaml:"run_id"`
	OrganizationID    string         `json:"organization_id" yaml:"organization_id"`
	Status            RunStatus      `json:"status" yaml:"status"`
	DryRun            bool           `json:"dry_run" yaml:"dry_run"`
	TotalContacts     int            `json:"total_contacts" yaml:"total_contacts"`
	Processed         int            `json:"processed" yaml:"processed"`
	Succeeded         int            `json:"succeeded" yaml:"succeeded"`
	Failed            int            `json:"failed" yaml:"failed"`
	SkippedDuplicates int            `json:"skipped_duplicates" yaml:"skipped_duplicates"`
	Errors            []ContactError `json:"errors,omitempty" yaml:"errors,omitempty"`
	StartedAt         time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt        time.Time      `json:"finished_at,omitzero" yaml:"finished_at,omitempty"`
}
