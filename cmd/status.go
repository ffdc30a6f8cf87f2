package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/reactormap/reactorsync/internal/model"
	"github.com/reactormap/reactorsync/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Inspect run history",
	Long:  "Without arguments, lists recent runs. With a run ID, prints the run and its change audit as JSON.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if len(args) == 1 {
			return showRun(ctx, st, args[0])
		}

		status, _ := cmd.Flags().GetString("status")
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Source: source,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "status: list runs")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func showRun(ctx context.Context, st store.Store, runID string) error {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return eris.Wrap(err, "status: get run")
	}
	changes, err := st.ListChanges(ctx, runID)
	if err != nil {
		return eris.Wrap(err, "status: list changes")
	}

	out := struct {
		Run     *model.Run           `json:"run"`
		Changes []model.ChangeRecord `json:"changes"`
	}{Run: run, Changes: changes}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tPROCESSED\tMATCHED\tUPDATED\tUNMATCHED\tSTARTED\tDURATION")

	for _, r := range runs {
		dur := ""
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.Source,
			r.Status,
			r.Stats.Processed,
			r.Stats.Matched,
			r.Stats.Updated,
			r.Stats.Unmatched,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	statusCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	statusCmd.Flags().String("source", "", "filter by source (pris, wikipedia, wikidata)")
	statusCmd.Flags().Int("limit", 50, "max number of runs to display")
	rootCmd.AddCommand(statusCmd)
}
