package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/ratiosentry/internal/logger"
	"github.com/rewired-gh/ratiosentry/internal/storage"
	"github.com/rewired-gh/ratiosentry/internal/synth"
)

func newSynthCmd() *cobra.Command {
	opts := synth.DefaultOptions()
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a reproducible synthetic dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			logger.Init(level, logFormat)

			records, err := synth.Generate(opts)
			if err != nil {
				return err
			}
			if err := storage.SaveRecords(cmd.Context(), format, output, records); err != nil {
				return err
			}
			logger.Info("Wrote %d records for %d entities to %s", len(records), opts.Entities+opts.TrendEntities, output)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "output path")
	f.StringVar(&format, "format", "csv", "output format: csv or sqlite")
	f.Int64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	f.IntVar(&opts.Entities, "entities", opts.Entities, "stationary entities")
	f.IntVar(&opts.TrendEntities, "trend-entities", opts.TrendEntities, "trending entities")
	f.IntVar(&opts.Periods, "periods", opts.Periods, "monthly periods per entity")
	f.Float64Var(&opts.Mean, "mean", opts.Mean, "mean value")
	f.Float64Var(&opts.Spread, "spread", opts.Spread, "standard deviation of values")
	f.Float64Var(&opts.Trend, "trend", opts.Trend, "per-period drift of trending entities")
	f.Float64Var(&opts.MissingRate, "missing-rate", opts.MissingRate, "probability of a missing value")
	f.IntVar(&opts.StartYear, "start-year", opts.StartYear, "year of the first period")
	f.StringSliceVar(&opts.Categories, "categories", opts.Categories, "categories assigned round-robin")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
