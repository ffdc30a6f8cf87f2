package enrich

import (
	"go.uber.org/zap"

	"github.com/reactormap/reactorsync/internal/dataset"
)

// DefaultCheckpointInterval is the number of processed items between
// snapshot writes.
const DefaultCheckpointInterval = 50

// Checkpointer writes whole-set snapshots of the canonical collection:
// one after every full batch of processed items, and always one at run
// completion. Writes go through the collection's atomic save, so an
// interrupted run leaves the previous snapshot intact, never a torn one.
type Checkpointer struct {
	collection *dataset.Collection
	path       string
	every      int
	count      int
	disabled   bool
}

// NewCheckpointer creates a checkpointer writing to path after every
// `every` processed items. Non-positive `every` uses the default.
func NewCheckpointer(collection *dataset.Collection, path string, every int) *Checkpointer {
	if every <= 0 {
		every = DefaultCheckpointInterval
	}
	return &Checkpointer{collection: collection, path: path, every: every}
}

// NewDisabledCheckpointer counts ticks but never writes. Used by dry runs.
func NewDisabledCheckpointer() *Checkpointer {
	return &Checkpointer{every: DefaultCheckpointInterval, disabled: true}
}

// Tick records one processed item and writes a snapshot when a full batch
// has accumulated since the last write.
func (cp *Checkpointer) Tick() error {
	cp.count++
	if cp.disabled || cp.count%cp.every != 0 {
		return nil
	}
	if err := cp.collection.Save(cp.path); err != nil {
		return err
	}
	zap.L().Debug("checkpoint written",
		zap.String("path", cp.path),
		zap.Int("processed", cp.count),
	)
	return nil
}

// Final writes the completion snapshot regardless of batch alignment.
func (cp *Checkpointer) Final() error {
	if cp.disabled {
		return nil
	}
	if err := cp.collection.Save(cp.path); err != nil {
		return err
	}
	zap.L().Info("final snapshot written",
		zap.String("path", cp.path),
		zap.Int("processed", cp.count),
	)
	return nil
}
