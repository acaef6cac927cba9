package models

import "time"

// RunReport summarizes one pipeline execution for a single source. It is
// assembled by the orchestrator and never mutated after the run finishes.
type RunReport struct {
	RunID            string
	SourceID         string
	RowsRead         int
	RowsFiltered     int
	RowsValid        int
	RowsRejected     int
	RowsDeduplicated int
	OutputPath       string
	RejectPath       string
	Checksum         string
	RunTimestamp     time.Time
	Duration         time.Duration
	Rejects          []RowError
}

// RowsWritten returns the number of records in the snapshot.
func (r *RunReport) RowsWritten() int {
	return r.RowsValid - r.RowsDeduplicated
}
