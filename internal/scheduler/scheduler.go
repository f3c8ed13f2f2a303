// Package scheduler wires up the cron job that periodically recomputes the
// rankings of jobs flagged stale.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/eligibility"
	"jobmate/matching-service/internal/model"
	"jobmate/matching-service/internal/ranking"
)

// Source lists stale jobs and candidate eligibility flags.
// *eligibility.PostgresLoader satisfies it.
type Source interface {
	StaleJobs(ctx context.Context, limit int) ([]eligibility.StaleJob, error)
	Candidates(ctx context.Context, segmentID string) ([]eligibility.Candidate, error)
	MarkFresh(ctx context.Context, jobID string, since time.Time) error
}

// Recomputer is satisfied by *ranking.Coordinator.
type Recomputer interface {
	Recompute(ctx context.Context, jobID string, pool []string) (*ranking.Ranking, error)
}

// Summary counts the outcome of one cycle.
type Summary struct {
	Jobs      int
	Ranked    int
	Empty     int
	Contended int
	Failed    int
}

// Scheduler wraps robfig/cron and manages the recompute loop.
type Scheduler struct {
	cron   *cron.Cron
	source Source
	jobs   ranking.JobSource
	coord  Recomputer
	batch  int
	spec   string // cron spec, e.g. "@every 6h"
	log    *zap.Logger
}

// New creates a Scheduler that fires every intervalHours hours and handles
// at most batch jobs per cycle.
func New(source Source, jobs ranking.JobSource, coord Recomputer, intervalHours, batch int, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	cronLog := cron.PrintfLogger(zap.NewStdLog(log.Named("cron")))
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog))),
		source: source,
		jobs:   jobs,
		coord:  coord,
		batch:  batch,
		spec:   fmt.Sprintf("@every %dh", intervalHours),
		log:    log.Named("scheduler"),
	}
}

// Start registers the job and starts the scheduler. Also runs one cycle
// immediately so stale rankings are refreshed without waiting for the
// first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info("cron started", zap.String("spec", s.spec))

	go s.RunOnce(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler and waits for a running cycle.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("cron stopped")
}

// RunOnce recomputes every stale job of one batch. Per-job failures are
// logged and leave the job stale for the next cycle.
func (s *Scheduler) RunOnce(ctx context.Context) Summary {
	var sum Summary
	cycleStart := time.Now()

	stale, err := s.source.StaleJobs(ctx, s.batch)
	if err != nil {
		s.log.Error("load stale jobs", zap.Error(err))
		return sum
	}
	if len(stale) == 0 {
		s.log.Debug("no stale rankings, nothing to recompute")
		return sum
	}

	s.log.Info("recompute cycle started", zap.Int("jobs", len(stale)))
	for _, sj := range stale {
		if ctx.Err() != nil {
			break
		}
		sum.Jobs++
		s.recomputeJob(ctx, sj, cycleStart, &sum)
	}

	s.log.Info("recompute cycle complete",
		zap.Int("jobs", sum.Jobs),
		zap.Int("ranked", sum.Ranked),
		zap.Int("empty", sum.Empty),
		zap.Int("contended", sum.Contended),
		zap.Int("failed", sum.Failed),
		zap.Duration("took", time.Since(cycleStart)),
	)
	return sum
}

func (s *Scheduler) recomputeJob(ctx context.Context, sj eligibility.StaleJob, cycleStart time.Time, sum *Summary) {
	log := s.log.With(zap.String("jobId", sj.ID))

	job, err := s.jobs.Job(ctx, sj.ID)
	if err != nil {
		sum.Failed++
		log.Warn("load job", zap.Error(err))
		return
	}
	pool, err := s.pool(ctx, job)
	if err != nil {
		sum.Failed++
		log.Warn("build candidate pool", zap.Error(err))
		return
	}

	// The job stays stale: the stored ranking may list candidates who are no
	// longer eligible, and an empty pool cannot replace it.
	if len(pool) == 0 {
		sum.Empty++
		log.Warn("no eligible candidates, stored ranking left stale")
		return
	}

	_, err = s.coord.Recompute(ctx, sj.ID, pool)
	switch {
	case err == nil:
		sum.Ranked++
		s.markFresh(ctx, sj.ID, cycleStart, log)
	case errors.Is(err, ranking.ErrRecomputeInProgress):
		sum.Contended++
		log.Info("recompute already running, retrying next cycle")
	default:
		sum.Failed++
		log.Warn("recompute failed", zap.Error(err))
	}
}

func (s *Scheduler) pool(ctx context.Context, job *model.JobRequirement) ([]string, error) {
	candidates, err := s.source.Candidates(ctx, job.SegmentID)
	if err != nil {
		return nil, err
	}
	return eligibility.Filter(job, candidates), nil
}

func (s *Scheduler) markFresh(ctx context.Context, jobID string, since time.Time, log *zap.Logger) {
	if err := s.source.MarkFresh(ctx, jobID, since); err != nil {
		log.Warn("clear stale flag", zap.Error(err))
	}
}
