package model

import "time"

// RunStatus tracks the lifecycle of an enrichment run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunStats holds the per-run counters recorded in the ledger.
type RunStats struct {
	Processed int `json:"processed"`
	Matched   int `json:"matched"`
	Updated   int `json:"updated"`
	Unmatched int `json:"unmatched"`
}

// Run is one ledger entry: a single execution of a source against the
// canonical set.
type Run struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Status      RunStatus  `json:"status"`
	Stats       RunStats   `json:"stats"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ChangeRecord is one audit entry: a single canonical field overwrite.
// Records are append-only and never retroactively edited.
type ChangeRecord struct {
	Reactor   string    `json:"reactor"`
	Country   string    `json:"country"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	ChangedAt time.Time `json:"changed_at"`
}

// Candidate is a source row that matched no canonical record. Candidates
// are surfaced for human review and never auto-inserted.
type Candidate struct {
	Name        string    `json:"name"`
	Country     string    `json:"country"`
	CountryCode string    `json:"country_code,omitempty"`
	Capacity    *int      `json:"capacity,omitempty"`
	Status      Status    `json:"status,omitempty"`
	Source      string    `json:"source"`
	SeenAt      time.Time `json:"seen_at"`
}
