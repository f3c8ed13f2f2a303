package ranking

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobmate/matching-service/internal/lock"
	"jobmate/matching-service/internal/model"
	"jobmate/matching-service/internal/profile"
	"jobmate/matching-service/internal/scoring"
)

// ProfileLoader is satisfied by *profile.Aggregator.
type ProfileLoader interface {
	Aggregate(ctx context.Context, ids []string) (map[string]*model.CandidateProfile, error)
}

// Options tune a Coordinator. Zero values fall back to defaults; a negative
// PersistRetries disables retries.
type Options struct {
	Workers        int
	LockTimeout    time.Duration
	PersistRetries int
	RetryBackoff   time.Duration
	MinScore       int
}

const (
	defaultLockTimeout    = 5 * time.Second
	defaultPersistRetries = 3
	defaultRetryBackoff   = 200 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = defaultLockTimeout
	}
	if o.PersistRetries < 0 {
		o.PersistRetries = 0
	} else if o.PersistRetries == 0 {
		o.PersistRetries = defaultPersistRetries
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	if o.MinScore <= 0 {
		o.MinScore = scoring.MinimumRelevance
	}
	return o
}

// Ranking is the response of a recomputation or a ranking read.
type Ranking struct {
	JobID        string              `json:"jobId"`
	GenerationID string              `json:"generationId"`
	ComputedAt   time.Time           `json:"computedAt"`
	Matches      []model.MatchResult `json:"matches"`
	Count        int                 `json:"count"`
}

func rankingFrom(g *model.Generation) *Ranking {
	matches := g.Matches
	if matches == nil {
		matches = []model.MatchResult{}
	}
	return &Ranking{
		JobID:        g.JobID,
		GenerationID: g.ID,
		ComputedAt:   g.ComputedAt,
		Matches:      matches,
		Count:        len(matches),
	}
}

// Coordinator runs recomputations. It is transport-agnostic: used by the
// HTTP handler, the gRPC server, the scheduler and the CLI.
type Coordinator struct {
	jobs      JobSource
	profiles  ProfileLoader
	engine    *scoring.Engine
	store     Store
	locks     lock.Locker
	publisher Publisher
	log       *zap.Logger
	opts      Options

	now func() time.Time
}

// NewCoordinator returns a configured Coordinator. publisher may be nil.
func NewCoordinator(
	jobs JobSource,
	profiles ProfileLoader,
	engine *scoring.Engine,
	store Store,
	locks lock.Locker,
	publisher Publisher,
	log *zap.Logger,
	opts Options,
) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		jobs:      jobs,
		profiles:  profiles,
		engine:    engine,
		store:     store,
		locks:     locks,
		publisher: publisher,
		log:       log,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

// Ranking returns the stored generation of jobID.
func (c *Coordinator) Ranking(ctx context.Context, jobID string) (*Ranking, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, ErrJobNotFound
	}
	gen, err := c.store.Current(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return rankingFrom(gen), nil
}

// Recompute scores pool against the job and replaces the job's stored
// ranking with the relevant matches, best first.
//
// Caller cancellation is honoured until scoring ends; once persisting has
// begun the run completes. On any failure the stored ranking is unchanged.
func (c *Coordinator) Recompute(ctx context.Context, jobID string, pool []string) (*Ranking, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, ErrJobNotFound
	}
	ids := profile.Dedupe(pool)
	if len(ids) == 0 {
		return nil, ErrEmptyPool
	}

	job, err := c.jobs.Job(ctx, jobID)
	if err != nil {
		var ve *ValidationError
		if errors.Is(err, ErrJobNotFound) || errors.As(err, &ve) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrAggregationUnavailable, err)
	}
	if err := scoring.ValidateRequirement(job); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	log := c.log.With(zap.String("jobId", jobID))
	r := newRun(jobID)
	// Timestamps are kept at the microsecond precision PostgreSQL stores.
	startedAt := c.now().UTC().Truncate(time.Microsecond)

	// ── Aggregating ─────────────────────────────────────────────────────────
	c.transition(r, StateAggregating, log)
	profiles, err := c.profiles.Aggregate(ctx, ids)
	if err != nil {
		c.transition(r, StateFailed, log)
		log.Warn("aggregation failed, keeping previous ranking", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrAggregationUnavailable, err)
	}

	// ── Scoring ─────────────────────────────────────────────────────────────
	c.transition(r, StateScoring, log)
	results, skipped := c.scoreAll(ctx, job, ids, profiles, log)
	if err := ctx.Err(); err != nil {
		log.Info("recomputation cancelled before persisting", zap.Error(err))
		return nil, err
	}

	// ── Filtering and sorting ───────────────────────────────────────────────
	c.transition(r, StateFiltering, log)
	computedAt := c.now().UTC().Truncate(time.Microsecond)
	kept := make([]model.MatchResult, 0, len(results))
	for _, m := range results {
		if m.Score < c.opts.MinScore {
			continue
		}
		m.ComputedAt = computedAt
		kept = append(kept, m)
	}
	SortMatches(kept)

	gen := &model.Generation{
		ID:         uuid.NewString(),
		JobID:      jobID,
		StartedAt:  startedAt,
		ComputedAt: computedAt,
		Matches:    kept,
	}

	// ── Persisting ──────────────────────────────────────────────────────────
	c.transition(r, StatePersisting, log)
	stored, err := c.persist(context.WithoutCancel(ctx), gen, log)
	if err != nil {
		c.transition(r, StateFailed, log)
		return nil, err
	}
	c.transition(r, StateIdle, log)

	log.Info("ranking recomputed",
		zap.String("generationId", stored.ID),
		zap.Int("pool", len(ids)),
		zap.Int("scored", len(results)),
		zap.Int("skipped", skipped),
		zap.Int("kept", len(stored.Matches)),
	)
	return rankingFrom(stored), nil
}

// SortMatches orders by score descending, then candidate id ascending.
func SortMatches(m []model.MatchResult) {
	sort.Slice(m, func(i, j int) bool {
		if m[i].Score != m[j].Score {
			return m[i].Score > m[j].Score
		}
		return m[i].CandidateID < m[j].CandidateID
	})
}

// scoreAll scores every candidate on a bounded worker pool. Candidates whose
// profile cannot be scored are logged and left out.
func (c *Coordinator) scoreAll(
	ctx context.Context,
	job *model.JobRequirement,
	ids []string,
	profiles map[string]*model.CandidateProfile,
	log *zap.Logger,
) ([]model.MatchResult, int) {
	results := make([]model.MatchResult, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(c.opts.Workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return nil
			}
			results[i], errs[i] = c.scoreOne(profiles[id], job, id)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.MatchResult, 0, len(ids))
	skipped := 0
	for i, err := range errs {
		if err != nil {
			skipped++
			if ctx.Err() == nil {
				log.Warn("candidate skipped", zap.String("candidateId", ids[i]), zap.Error(err))
			}
			continue
		}
		out = append(out, results[i])
	}
	return out, skipped
}

func (c *Coordinator) scoreOne(p *model.CandidateProfile, job *model.JobRequirement, id string) (m model.MatchResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: candidate %s: panic: %v", scoring.ErrMalformedProfile, id, rec)
		}
	}()
	if p == nil {
		return m, fmt.Errorf("%w: candidate %s missing from aggregation", scoring.ErrMalformedProfile, id)
	}
	return c.engine.Score(p, job)
}

// persist takes the job lock and replaces the stored generation, retrying
// the replace from the computed set on failure.
func (c *Coordinator) persist(ctx context.Context, gen *model.Generation, log *zap.Logger) (*model.Generation, error) {
	lockCtx, cancel := context.WithTimeout(ctx, c.opts.LockTimeout)
	defer cancel()
	release, err := c.locks.Acquire(lockCtx, gen.JobID)
	if errors.Is(err, lock.ErrNotAcquired) {
		log.Info("job lock busy", zap.Error(err))
		return nil, &InProgressError{JobID: gen.JobID, RetryAfter: c.opts.LockTimeout}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}
	defer release()

	var lastErr error
	for attempt := 0; attempt <= c.opts.PersistRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * c.opts.RetryBackoff)
		}
		lastErr = c.store.Replace(ctx, gen)
		if lastErr == nil {
			c.publish(ctx, gen, log)
			return gen, nil
		}
		if errors.Is(lastErr, ErrStaleGeneration) {
			// A run that started later already stored its generation.
			log.Info("stale run, serving newer generation")
			current, err := c.store.Current(ctx, gen.JobID)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
			}
			return current, nil
		}
		log.Warn("replace ranking failed",
			zap.Int("attempt", attempt+1),
			zap.Int("maxAttempts", c.opts.PersistRetries+1),
			zap.Error(lastErr),
		)
	}
	return nil, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, lastErr)
}

func (c *Coordinator) publish(ctx context.Context, gen *model.Generation, log *zap.Logger) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishRecomputed(ctx, gen); err != nil {
		log.Warn("publish "+EventRankingRecomputed+" failed", zap.Error(err))
	}
}

func (c *Coordinator) transition(r *run, to State, log *zap.Logger) {
	from := r.state
	if err := r.advance(to); err != nil {
		log.Error("illegal run transition", zap.Error(err))
		return
	}
	log.Debug("run state", zap.String("from", string(from)), zap.String("to", string(to)))
}
