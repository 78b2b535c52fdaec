package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clearcare/provider-cli/internal/agent"
	"github.com/clearcare/provider-cli/internal/ingest"
	"github.com/clearcare/provider-cli/internal/model"
	"github.com/clearcare/provider-cli/internal/store"
)

var (
	csvrunFile        string
	csvrunLimit       int
	csvrunConcurrency int
	csvrunNoSearch    bool
	csvrunNoStore     bool
	csvrunOutput      string
	csvrunFormat      string
)

var csvrunCmd = &cobra.Command{
	Use:   "csvrun",
	Short: "Clean every provider record in a CSV or XLSX file",
	Long: `Reads provider records from a file, cleans them concurrently and
writes the results out as CSV or JSON. Run history and fallback records
are persisted unless --no-store is set.

Examples:
  provider-cli csvrun --file providers.csv --output cleaned.csv
  provider-cli csvrun --file providers.xlsx --concurrency 8 --format json
  provider-cli csvrun --file providers.csv --no-search --no-store`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		records, err := readRecords(csvrunFile)
		if err != nil {
			return err
		}
		if csvrunLimit > 0 && csvrunLimit < len(records) {
			records = records[:csvrunLimit]
		}
		zap.L().Info("records loaded",
			zap.String("file", csvrunFile),
			zap.Int("records", len(records)))

		if csvrunNoSearch {
			cfg.Search.Enabled = false
		}
		a, err := initAgent()
		if err != nil {
			return err
		}

		var st store.Store
		var run *model.Run
		if !csvrunNoStore {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			run, err = st.CreateRun(ctx, csvrunFile)
			if err != nil {
				return err
			}
			if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusCleaning); err != nil {
				return err
			}
		}

		start := time.Now()
		outcomes, stats, err := cleanBatch(ctx, a, records, csvrunConcurrency)
		if err != nil {
			if st != nil && run != nil {
				_ = st.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed)
			}
			return err
		}

		if st != nil && run != nil {
			persistOutcomes(ctx, st, run.ID, records, outcomes)
			stats.DurationMs = time.Since(start).Milliseconds()
			if err := st.UpdateRunResult(ctx, run.ID, stats); err != nil {
				return err
			}
		}

		cs := a.CacheStats()
		zap.L().Info("batch complete",
			zap.Int("records", stats.Records),
			zap.Int("fallbacks", stats.Fallbacks),
			zap.Int("enriched", stats.Enriched),
			zap.Float64("mean_accuracy", stats.MeanAccuracy),
			zap.Int64("cache_hits", cs.Hits),
			zap.Float64("cache_hit_rate", cs.HitRate),
			zap.Duration("elapsed", time.Since(start)))

		return writeOutput(outcomes)
	},
}

func readRecords(path string) ([]model.ProviderRecord, error) {
	if path == "" {
		return nil, eris.New("csvrun: --file is required")
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ingest.ReadXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "csvrun: open file")
	}
	defer f.Close()
	return ingest.ReadCSV(f)
}

// cleanBatch fans records out over a bounded worker group. Outcomes come
// back in input order.
func cleanBatch(ctx context.Context, a *agent.Agent, records []model.ProviderRecord, concurrency int) ([]agent.Outcome, *model.RunResult, error) {
	if concurrency <= 0 {
		concurrency = cfg.Batch.Concurrency
	}

	outcomes := make([]agent.Outcome, len(records))
	var fallbacks, enriched atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, rec := range records {
		g.Go(func() error {
			out := a.Clean(gctx, rec)
			outcomes[i] = out
			if out.Fallback {
				fallbacks.Add(1)
			}
			if len(out.Result.EnrichedFields) > 0 {
				enriched.Add(1)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrap(err, "csvrun: batch")
	}

	var scoreSum int
	for _, out := range outcomes {
		scoreSum += out.Result.AccuracyScore
	}
	stats := &model.RunResult{
		Records:   len(records),
		Cleaned:   len(records) - int(fallbacks.Load()),
		Fallbacks: int(fallbacks.Load()),
		Enriched:  int(enriched.Load()),
	}
	if len(records) > 0 {
		stats.MeanAccuracy = float64(scoreSum) / float64(len(records))
	}
	return outcomes, stats, nil
}

// persistOutcomes records per-row results and queues fallback records
// for later retry. Persistence failures are logged, not fatal; the
// cleaned output still reaches the user.
func persistOutcomes(ctx context.Context, st store.Store, runID string, records []model.ProviderRecord, outcomes []agent.Outcome) {
	now := time.Now().UTC()
	for i, out := range outcomes {
		rr := &model.RecordResult{
			RunID:    runID,
			RowIndex: i,
			Input:    records[i],
			Result:   *out.Result,
			Fallback: out.Fallback,
		}
		if err := st.SaveRecordResult(ctx, rr); err != nil {
			zap.L().Warn("save record result failed", zap.Int("row", i), zap.Error(err))
		}

		if out.Fallback {
			if err := st.EnqueueDLQ(ctx, agent.DeadLetter(records[i], out, now)); err != nil {
				zap.L().Warn("enqueue dlq failed", zap.Int("row", i), zap.Error(err))
			}
		}
	}
}

func writeOutput(outcomes []agent.Outcome) error {
	results := make([]*model.CleaningResult, len(outcomes))
	for i, out := range outcomes {
		results[i] = out.Result
	}

	w := os.Stdout
	if csvrunOutput != "" {
		f, err := os.Create(csvrunOutput)
		if err != nil {
			return eris.Wrap(err, "csvrun: create output file")
		}
		defer f.Close()
		w = f
	}

	if csvrunFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return ingest.WriteCSV(w, results)
}

func init() {
	csvrunCmd.Flags().StringVar(&csvrunFile, "file", "", "input CSV or XLSX file (required)")
	csvrunCmd.Flags().IntVar(&csvrunLimit, "limit", 0, "clean only the first N records")
	csvrunCmd.Flags().IntVar(&csvrunConcurrency, "concurrency", 0, "concurrent workers (default from config)")
	csvrunCmd.Flags().BoolVar(&csvrunNoSearch, "no-search", false, "disable online enrichment")
	csvrunCmd.Flags().BoolVar(&csvrunNoStore, "no-store", false, "skip run history persistence")
	csvrunCmd.Flags().StringVar(&csvrunOutput, "output", "", "output file (default stdout)")
	csvrunCmd.Flags().StringVar(&csvrunFormat, "format", "csv", "output format: csv or json")
	rootCmd.AddCommand(csvrunCmd)
}
