package enrich

import (
	"context"
	"time"

	"github.com/reactormap/reactorsync/internal/dataset"
	"github.com/reactormap/reactorsync/internal/model"
	"github.com/reactormap/reactorsync/internal/reconcile"
)

// Source is one upstream system the engine can run against the canonical
// collection.
type Source interface {
	// Name identifies the source in the run ledger and logs.
	Name() string
	// Run executes the source against the run context. Item-level failures
	// degrade and continue; a returned error fails the whole run.
	Run(ctx context.Context, rc *RunContext) error
}

// RunContext carries everything a source touches during one run: the
// canonical collection, the checkpointer, the review collector, and the
// accumulating change log and counters. Owned by the single pipeline
// goroutine.
type RunContext struct {
	Collection *dataset.Collection
	Checkpoint *Checkpointer
	Review     *ReviewCollector
	Changes    []model.ChangeRecord
	Stats      model.RunStats

	// Now is the run clock; defaults to time.Now.
	Now func() time.Time

	updated map[*model.Reactor]struct{}
}

func (rc *RunContext) now() time.Time {
	if rc.Now != nil {
		return rc.Now()
	}
	return time.Now()
}

// Observe matches an observation against the canonical set and merges it
// into the matched record. Unmatched observations go to the review
// collector; the canonical set is never grown here.
func (rc *RunContext) Observe(obs model.Observation) *model.Reactor {
	rc.Stats.Processed++

	r := rc.Collection.Match(obs)
	if r == nil {
		rc.Stats.Unmatched++
		rc.Review.Add(obs, rc.now())
		return nil
	}
	rc.Stats.Matched++
	rc.Merge(r, obs)
	return r
}

// Merge reconciles an observation into an already-resolved record,
// accumulating change records and re-indexing when an external ID was
// attached. A record counts toward the updated stat once per run no matter
// how many observations touch it.
func (rc *RunContext) Merge(r *model.Reactor, obs model.Observation) []model.ChangeRecord {
	hadID := r.IAEAId != 0

	changes := reconcile.Apply(r, obs, rc.now())
	if len(changes) > 0 {
		rc.Changes = append(rc.Changes, changes...)
		if rc.updated == nil {
			rc.updated = make(map[*model.Reactor]struct{})
		}
		if _, seen := rc.updated[r]; !seen {
			rc.updated[r] = struct{}{}
			rc.Stats.Updated++
		}
	}

	if !hadID && r.IAEAId != 0 {
		rc.Collection.Reindex(r)
	}
	return changes
}
