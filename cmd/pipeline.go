package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reactormap/reactorsync/internal/dataset"
	"github.com/reactormap/reactorsync/internal/enrich"
	"github.com/reactormap/reactorsync/internal/fetcher"
	"github.com/reactormap/reactorsync/internal/store"
)

// defaultInputPath is the canonical dataset file every command starts from.
const defaultInputPath = "nuclear_power_plants.json"

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "reactorsync.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func newFetcher() *fetcher.HTTPFetcher {
	opts := fetcher.HTTPOptions{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
	}
	if cfg.Fetch.MaxRetries > 0 {
		opts.Retry.MaxAttempts = cfg.Fetch.MaxRetries
	}
	return fetcher.NewHTTPFetcher(opts)
}

// pipelineOpts holds per-invocation pipeline settings resolved from
// positional args and flags.
type pipelineOpts struct {
	input           string
	output          string
	checkpointEvery int
	dryRun          bool
}

// resolvePaths applies the positional [input] [output] convention: both
// optional, with a per-command default output name.
func resolvePaths(args []string, defaultOutput string) (string, string) {
	input := defaultInputPath
	output := defaultOutput
	if len(args) > 0 {
		input = args[0]
	}
	if len(args) > 1 {
		output = args[1]
	}
	return input, output
}

// runSource loads the canonical set, runs one source through the engine,
// and prints the run summary. Dry runs reconcile in memory and record the
// run, but never write the dataset.
func runSource(ctx context.Context, src enrich.Source, opts pipelineOpts) error {
	col, err := dataset.Load(opts.input)
	if err != nil {
		return err
	}

	every := opts.checkpointEvery
	if every <= 0 {
		every = cfg.Enrich.CheckpointEvery
	}
	checkpoint := enrich.NewCheckpointer(col, opts.output, every)
	if opts.dryRun {
		checkpoint = enrich.NewDisabledCheckpointer()
	}

	rc := &enrich.RunContext{
		Collection: col,
		Checkpoint: checkpoint,
		Review:     enrich.NewReviewCollector(src.Name()),
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	engine := enrich.NewEngine(st, cfg.Enrich.ReportDir)
	run, err := engine.Execute(ctx, src, rc)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "run %s (%s): %d processed, %d matched, %d updated, %d unmatched\n",
		run.ID, src.Name(),
		rc.Stats.Processed, rc.Stats.Matched, rc.Stats.Updated, rc.Stats.Unmatched,
	)
	if opts.dryRun {
		fmt.Fprintln(os.Stdout, "dry run: dataset not written")
	} else {
		fmt.Fprintf(os.Stdout, "dataset written to %s\n", opts.output)
	}
	return nil
}
