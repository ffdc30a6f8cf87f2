package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reactormap/reactorsync/internal/enrich"
	"github.com/reactormap/reactorsync/pkg/wikipedia"
)

var (
	wikipediaDryRun          bool
	wikipediaCheckpointEvery int
)

var wikipediaCmd = &cobra.Command{
	Use:   "wikipedia [input] [output]",
	Short: "Enrich the canonical dataset with Wikipedia pages",
	Long:  "Resolves each plant's Wikipedia article through a query ladder and attaches the URL, title, extract, and thumbnail to every unit.",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, output := resolvePaths(args, "nuclear_power_plants_enriched.json")

		client := wikipedia.NewClient(
			wikipedia.WithBaseURL(cfg.Sources.Wikipedia.BaseURL),
			wikipedia.WithUserAgent(cfg.Fetch.UserAgent),
		)

		return runSource(ctx, enrich.NewWikipediaSource(client), pipelineOpts{
			input:           input,
			output:          output,
			checkpointEvery: wikipediaCheckpointEvery,
			dryRun:          wikipediaDryRun,
		})
	},
}

func init() {
	wikipediaCmd.Flags().BoolVar(&wikipediaDryRun, "dry-run", false, "reconcile and record the run without writing the dataset")
	wikipediaCmd.Flags().IntVar(&wikipediaCheckpointEvery, "checkpoint-every", 0, "snapshot cadence in processed items (default from config)")
	rootCmd.AddCommand(wikipediaCmd)
}
