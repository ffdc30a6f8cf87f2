package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reactormap/reactorsync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "reactorsync",
	Short: "Nuclear reactor dataset reconciliation pipeline",
	Long:  "Syncs a canonical reactor dataset against the IAEA PRIS tables and enriches it with Wikipedia and Wikidata, with a full change audit per run.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
