package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/ratiosentry/internal/config"
	"github.com/rewired-gh/ratiosentry/internal/logger"
	"github.com/rewired-gh/ratiosentry/internal/models"
	"github.com/rewired-gh/ratiosentry/internal/monitor"
	"github.com/rewired-gh/ratiosentry/internal/report"
	"github.com/rewired-gh/ratiosentry/internal/series"
	"github.com/rewired-gh/ratiosentry/internal/storage"
	"github.com/rewired-gh/ratiosentry/internal/telegram"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate a dataset and write the evaluation table and summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger.Init(cfg.Logging.Level, cfg.Logging.Format)
			if configPath != "" {
				logger.Info("Configuration loaded from %s", configPath)
			}

			rep, err := runAnalysis(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			t := rep.Totals
			fmt.Fprintf(cmd.OutOrStdout(),
				"run %s: %d observations evaluated, %d flagged (rate %.4f, expected %.4f), %d entities excluded\n",
				rep.RunID, t.EvaluatedCount, t.FlaggedCount, t.Rate, t.ExpectedRate, t.ExcludedEntities)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")
	f.StringP("input", "i", "", "input dataset path")
	f.String("input-format", "csv", "input format: csv or sqlite")
	f.String("query", "", "SQL query for sqlite input (entity_id, category, period, value[, entity_name])")
	f.Int("window-size", 12, "baseline window size in periods")
	f.Int("lag", 1, "periods skipped between the window and the evaluated period")
	f.Int("min-samples", 6, "minimum non-missing values for a usable baseline")
	f.Float64("z-threshold", 2.0, "absolute score above which a period is flagged")
	f.Float64("spread-floor", 1e-9, "spread below which a baseline is treated as degenerate")
	f.Int("min-total-periods", 0, "minimum observations per entity (0 = lag + min-samples + 1)")
	f.String("window-mode", "available", "window mode: available or calendar")
	f.Int("workers", 0, "parallel workers (0 = number of CPUs)")
	f.Int("top-entities", 5, "entities listed in the summary by flag count")
	f.StringP("output-dir", "o", "./out", "directory for output artifacts")
	f.String("summary-format", "json", "summary format: json, text, markdown or html")

	return cmd
}

// runAnalysis loads input, evaluates it and writes the artifacts.
func runAnalysis(ctx context.Context, cfg *config.Config) (*models.Report, error) {
	records, err := storage.LoadInput(ctx, cfg.Input.Format, cfg.Input.Path, cfg.Input.Query)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded %d records from %s", len(records), cfg.Input.Path)

	categories := models.NewCategorySet(cfg.Analysis.Categories)
	store, err := series.Build(records, categories)
	if err != nil {
		return nil, err
	}

	params := cfg.MonitorParams()
	mon, err := monitor.New(params)
	if err != nil {
		return nil, err
	}
	logger.Info("Evaluating %d entities from %d records (window %d, lag %d, min samples %d, z %.2f, mode %s, workers %d)",
		store.Len(), store.Rows(), params.WindowSize, params.Lag, params.MinSamples, params.ZThreshold, params.WindowMode, params.Workers)

	out, err := mon.Run(ctx, store)
	if err != nil {
		return nil, err
	}

	runID := report.RunID(report.Fingerprint{
		Params:      params.AnalysisParams(),
		Categories:  categories.Labels(),
		KnownEvents: params.KnownEvents,
		InputDigest: report.DigestRecords(records),
	})
	rep, err := report.Assemble(out, params, runID)
	if err != nil {
		return nil, err
	}

	evalPath, summaryPath, err := report.WriteArtifacts(report.Artifacts{
		Dir:            cfg.Output.Dir,
		EvaluationFile: cfg.Output.EvaluationFile,
		SummaryFile:    cfg.Output.SummaryFile,
		SummaryFormat:  cfg.Output.SummaryFormat,
	}, rep)
	if err != nil {
		return nil, err
	}
	logger.Info("Wrote %s and %s", evalPath, summaryPath)

	if cfg.Telegram.Enabled {
		notify(ctx, cfg.Telegram, rep)
	} else {
		logger.Debug("Telegram notifications disabled")
	}
	return rep, nil
}

// notify sends the run digest. Failures are logged, never returned.
func notify(ctx context.Context, tc config.TelegramConfig, rep *models.Report) {
	client, err := telegram.NewClient(tc.BotToken, tc.ChatID, tc.MaxRetries, tc.RetryDelayBase)
	if err != nil {
		logger.Warn("Failed to initialize Telegram client: %v", err)
		return
	}
	if err := client.Send(ctx, rep); err != nil {
		logger.Warn("Failed to send run digest to Telegram: %v", err)
		return
	}
	logger.Info("Run digest sent to Telegram")
}
