package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/reactormap/reactorsync/internal/dataset"
	"github.com/reactormap/reactorsync/internal/export"
	"github.com/reactormap/reactorsync/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export review and mapping artifacts",
}

// -- export review --

var exportReviewRun string

var exportReviewCmd = &cobra.Command{
	Use:   "review [output.xlsx]",
	Short: "Export a run's unmatched candidates to a spreadsheet",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		output := "review.xlsx"
		if len(args) > 0 {
			output = args[0]
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runID := exportReviewRun
		if runID == "" {
			runID, err = latestRunID(ctx, st)
			if err != nil {
				return err
			}
		}

		candidates, err := st.ListCandidates(ctx, runID)
		if err != nil {
			return eris.Wrap(err, "export review: list candidates")
		}
		if len(candidates) == 0 {
			fmt.Fprintf(os.Stderr, "Run %s has no unmatched candidates.\n", runID)
			return nil
		}

		if err := export.WriteReviewXLSX(output, candidates); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d candidates from run %s written to %s\n", len(candidates), truncateID(runID), output)
		return nil
	},
}

func latestRunID(ctx context.Context, st store.Store) (string, error) {
	runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 1})
	if err != nil {
		return "", eris.Wrap(err, "ledger: find latest run")
	}
	if len(runs) == 0 {
		return "", eris.New("ledger: no runs recorded")
	}
	return runs[0].ID, nil
}

// -- export geojson --

var exportGeojsonCmd = &cobra.Command{
	Use:   "geojson [input] [output]",
	Short: "Export the canonical dataset as a GeoJSON FeatureCollection",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, output := resolvePaths(args, "nuclear_power_plants.geojson")

		col, err := dataset.Load(input)
		if err != nil {
			return err
		}

		if err := export.WriteGeoJSON(output, col.Reactors()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "geojson written to %s\n", output)
		return nil
	},
}

func init() {
	exportReviewCmd.Flags().StringVar(&exportReviewRun, "run", "", "run ID to export (default: most recent run)")
	exportCmd.AddCommand(exportReviewCmd)
	exportCmd.AddCommand(exportGeojsonCmd)
	rootCmd.AddCommand(exportCmd)
}
