package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reactormap/reactorsync/internal/enrich"
)

var (
	syncDetails         bool
	syncDryRun          bool
	syncCheckpointEvery int
)

var syncCmd = &cobra.Command{
	Use:   "sync [input] [output]",
	Short: "Sync the canonical dataset against the IAEA PRIS tables",
	Long:  "Fetches every country table from PRIS, matches rows against the canonical set, and applies guarded field updates with a full change audit.",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, output := resolvePaths(args, "nuclear_power_plants_updated.json")

		src := enrich.NewPRISSource(newFetcher(), enrich.PRISConfig{
			BaseURL: cfg.Sources.PRIS.BaseURL,
			Schema:  cfg.Sources.PRIS.Schema,
			Details: syncDetails,
		})

		return runSource(ctx, src, pipelineOpts{
			input:           input,
			output:          output,
			checkpointEvery: syncCheckpointEvery,
			dryRun:          syncDryRun,
		})
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDetails, "details", false, "fetch unit detail pages to fill missing coordinates")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "reconcile and record the run without writing the dataset")
	syncCmd.Flags().IntVar(&syncCheckpointEvery, "checkpoint-every", 0, "snapshot cadence in processed items (default from config)")
	rootCmd.AddCommand(syncCmd)
}
