// Package store persists the run ledger: runs, their audited field changes,
// and the unmatched candidates surfaced for review. SQLite is the default
// backend; Postgres is available for shared deployments.
package store

import (
	"context"

	"github.com/reactormap/reactorsync/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Source string          `json:"source,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the run ledger.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, stats model.RunStats) error
	FailRun(ctx context.Context, runID string, stats model.RunStats, runErr string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Change audit
	AppendChanges(ctx context.Context, runID string, changes []model.ChangeRecord) error
	ListChanges(ctx context.Context, runID string) ([]model.ChangeRecord, error)

	// Review candidates
	AddCandidates(ctx context.Context, runID string, candidates []model.Candidate) error
	ListCandidates(ctx context.Context, runID string) ([]model.Candidate, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
