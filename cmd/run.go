package main

import (
	"context"
	"encoding/json"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tablerake/tablerake/internal/runner"
)

var runAll bool

var runCmd = &cobra.Command{
	Use:   "run [dataset]",
	Short: "Scrape a dataset and merge it into storage",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}

		if runAll {
			return runAllDatasets(ctx)
		}

		if len(args) != 1 {
			return eris.New("dataset name required (or pass --all)")
		}

		result, err := runDataset(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func runDataset(ctx context.Context, name string) (*runner.Result, error) {
	ds, err := datasetConfig(name)
	if err != nil {
		return nil, err
	}

	src, err := initSource(ds)
	if err != nil {
		return nil, err
	}

	backend, err := initBackend(ctx, name)
	if err != nil {
		return nil, err
	}
	defer backend.Close()

	result, err := runner.Run(ctx, runSpec(name, ds), src, backend)
	if err != nil {
		return nil, eris.Wrapf(err, "run dataset %s", name)
	}
	return result, nil
}

func runAllDatasets(ctx context.Context) error {
	names := make([]string, 0, len(cfg.Datasets))
	for name := range cfg.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Batch.MaxConcurrent)

	results := make([]*runner.Result, len(names))
	for i, name := range names {
		g.Go(func() error {
			result, err := runDataset(gctx, name)
			if err != nil {
				zap.L().Error("dataset run failed", zap.String("dataset", name), zap.Error(err))
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func init() {
	runCmd.Flags().BoolVar(&runAll, "all", false, "run every configured dataset")
	rootCmd.AddCommand(runCmd)
}
