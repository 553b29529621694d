package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tablerake/tablerake/internal/storage"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs <dataset>",
	Short: "List recent scrape runs for a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		backend, err := initBackend(ctx, args[0])
		if err != nil {
			return err
		}
		defer backend.Close()

		logger, ok := backend.(storage.RunLogger)
		if !ok {
			return eris.Errorf("storage kind %q does not keep run history", cfg.Storage.Kind)
		}

		entries, err := logger.ListRuns(ctx, args[0], runsLimit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}
