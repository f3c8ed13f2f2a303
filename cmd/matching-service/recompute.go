package main

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/eligibility"
	"jobmate/matching-service/internal/scheduler"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute one job's ranking, or every stale ranking, and print the result",
	Example: `  matching-service recompute --job 3f2c... --candidates c-1,c-2
  matching-service recompute --job 3f2c...          # pool from eligible candidates
  matching-service recompute --stale`,
	RunE: runRecompute,
}

func init() {
	rootCmd.AddCommand(recomputeCmd)

	recomputeCmd.Flags().String("job", "", "job id to recompute")
	recomputeCmd.Flags().StringSlice("candidates", nil, "candidate ids; defaults to every eligible candidate")
	recomputeCmd.Flags().Bool("stale", false, "run one scheduler cycle over stale jobs")
}

func runRecompute(cmd *cobra.Command, _ []string) error {
	jobID, _ := cmd.Flags().GetString("job")
	pool, _ := cmd.Flags().GetStringSlice("candidates")
	stale, _ := cmd.Flags().GetBool("stale")
	if stale == (strings.TrimSpace(jobID) != "") {
		return errors.New("exactly one of --job or --stale is required")
	}

	cfg, lg, err := loadConfig()
	if err != nil {
		return err
	}
	defer lg.Sync()

	ctx := cmd.Context()
	d, err := wire(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer d.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if stale {
		sum := scheduler.New(d.loader, d.jobs, d.coord, 1, cfg.RecomputeBatch, lg).RunOnce(ctx)
		return enc.Encode(sum)
	}

	if len(pool) == 0 {
		job, err := d.jobs.Job(ctx, jobID)
		if err != nil {
			return err
		}
		candidates, err := d.loader.Candidates(ctx, job.SegmentID)
		if err != nil {
			return err
		}
		pool = eligibility.Filter(job, candidates)
		lg.Info("pool built from eligible candidates", zap.Int("size", len(pool)))
	}

	r, err := d.coord.Recompute(ctx, jobID, pool)
	if err != nil {
		return err
	}
	return enc.Encode(r)
}
