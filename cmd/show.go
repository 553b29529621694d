package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/tablerake/tablerake/internal/record"
)

var showCmd = &cobra.Command{
	Use:   "show <dataset>",
	Short: "Print the persisted record set for a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		backend, err := initBackend(ctx, args[0])
		if err != nil {
			return err
		}
		defer backend.Close()

		records, err := backend.Load(ctx)
		if err != nil {
			return err
		}
		if records == nil {
			records = record.Set{}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
