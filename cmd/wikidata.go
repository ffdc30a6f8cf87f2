package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reactormap/reactorsync/internal/enrich"
	"github.com/reactormap/reactorsync/pkg/wikidata"
	"github.com/reactormap/reactorsync/pkg/wikipedia"
)

var (
	wikidataDryRun          bool
	wikidataCheckpointEvery int
)

var wikidataCmd = &cobra.Command{
	Use:   "wikidata [input] [output]",
	Short: "Enrich the canonical dataset with Wikidata facts",
	Long:  "Follows each record's Wikipedia page to its Wikidata entity and attaches operator, owner, architect, region, cooling system, and image.",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, output := resolvePaths(args, "nuclear_power_plants_wikidata.json")

		wp := wikipedia.NewClient(
			wikipedia.WithBaseURL(cfg.Sources.Wikipedia.BaseURL),
			wikipedia.WithUserAgent(cfg.Fetch.UserAgent),
		)
		wd := wikidata.NewClient(
			wikidata.WithBaseURL(cfg.Sources.Wikidata.BaseURL),
			wikidata.WithUserAgent(cfg.Fetch.UserAgent),
		)

		return runSource(ctx, enrich.NewWikidataSource(wp, wd), pipelineOpts{
			input:           input,
			output:          output,
			checkpointEvery: wikidataCheckpointEvery,
			dryRun:          wikidataDryRun,
		})
	},
}

func init() {
	wikidataCmd.Flags().BoolVar(&wikidataDryRun, "dry-run", false, "reconcile and record the run without writing the dataset")
	wikidataCmd.Flags().IntVar(&wikidataCheckpointEvery, "checkpoint-every", 0, "snapshot cadence in processed items (default from config)")
	rootCmd.AddCommand(wikidataCmd)
}
