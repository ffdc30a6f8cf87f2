package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reactormap/reactorsync/internal/model"
	"github.com/reactormap/reactorsync/internal/store"
)

// Engine brackets source runs with ledger entries: open a run, execute the
// source, persist the change audit and review candidates, close the run
// with stats or failure.
type Engine struct {
	store     store.Store
	reportDir string
}

// NewEngine creates an engine recording runs in st and writing review
// reports under reportDir.
func NewEngine(st store.Store, reportDir string) *Engine {
	return &Engine{store: st, reportDir: reportDir}
}

// Execute runs one source to completion and returns its ledger entry.
// Partial progress — changes applied and candidates collected before a
// failure — is persisted either way.
func (e *Engine) Execute(ctx context.Context, src Source, rc *RunContext) (*model.Run, error) {
	log := zap.L().With(
		zap.String("component", "enrich.engine"),
		zap.String("source", src.Name()),
	)

	run, err := e.store.CreateRun(ctx, src.Name())
	if err != nil {
		return nil, eris.Wrapf(err, "engine: start run for %s", src.Name())
	}
	log.Info("run started", zap.String("run_id", run.ID))

	start := time.Now()
	runErr := src.Run(ctx, rc)
	elapsed := time.Since(start)

	e.persistArtifacts(ctx, run.ID, rc, log)

	if runErr != nil {
		log.Error("run failed", zap.Error(runErr), zap.Duration("elapsed", elapsed))
		if err := e.store.FailRun(ctx, run.ID, rc.Stats, runErr.Error()); err != nil {
			log.Error("failed to record run failure", zap.Error(err))
		}
		return run, eris.Wrapf(runErr, "engine: run %s", src.Name())
	}

	if err := rc.Checkpoint.Final(); err != nil {
		log.Error("final snapshot failed", zap.Error(err))
		if ferr := e.store.FailRun(ctx, run.ID, rc.Stats, err.Error()); ferr != nil {
			log.Error("failed to record run failure", zap.Error(ferr))
		}
		return run, eris.Wrapf(err, "engine: final snapshot for %s", src.Name())
	}

	if err := e.store.CompleteRun(ctx, run.ID, rc.Stats); err != nil {
		log.Error("failed to record run completion", zap.Error(err))
	}

	log.Info("run complete",
		zap.String("run_id", run.ID),
		zap.Int("processed", rc.Stats.Processed),
		zap.Int("matched", rc.Stats.Matched),
		zap.Int("updated", rc.Stats.Updated),
		zap.Int("unmatched", rc.Stats.Unmatched),
		zap.Duration("elapsed", elapsed),
	)
	return run, nil
}

// persistArtifacts writes the change audit, the ledger candidates, and the
// review report. Best-effort: ledger write failures are logged, not fatal,
// so a flaky ledger cannot undo applied enrichment.
func (e *Engine) persistArtifacts(ctx context.Context, runID string, rc *RunContext, log *zap.Logger) {
	if err := e.store.AppendChanges(ctx, runID, rc.Changes); err != nil {
		log.Error("failed to persist change audit", zap.Error(err))
	}

	candidates := rc.Review.Candidates()
	if err := e.store.AddCandidates(ctx, runID, candidates); err != nil {
		log.Error("failed to persist review candidates", zap.Error(err))
	}

	if e.reportDir != "" && len(candidates) > 0 {
		path, err := rc.Review.WriteReport(e.reportDir)
		if err != nil {
			log.Error("failed to write review report", zap.Error(err))
		} else {
			log.Info("review report written",
				zap.String("path", path),
				zap.Int("candidates", len(candidates)),
			)
		}
	}
}
