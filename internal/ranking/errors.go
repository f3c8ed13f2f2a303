package ranking

import (
	"errors"
	"fmt"
	"time"
)

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrJobNotFound is returned when the job id does not reference a job.
var ErrJobNotFound = errors.New("job not found")

// ErrEmptyPool is returned when the candidate pool has no usable id.
var ErrEmptyPool = errors.New("empty candidate pool")

// ErrAggregationUnavailable is returned when candidate data could not be
// read. The previously stored ranking is untouched.
var ErrAggregationUnavailable = errors.New("aggregation unavailable")

// ErrPersistenceUnavailable is returned when the replace step failed after
// every retry. The previously stored ranking is untouched.
var ErrPersistenceUnavailable = errors.New("ranking persistence unavailable")

// ErrRecomputeInProgress is matched by InProgressError.
var ErrRecomputeInProgress = errors.New("recomputation already in progress for this job")

// ErrNoRanking is returned by reads for a job that was never ranked.
var ErrNoRanking = errors.New("no ranking stored for this job")

// ErrStaleGeneration is returned by a Store when a newer run already
// replaced the ranking.
var ErrStaleGeneration = errors.New("a newer generation is already stored")

// InProgressError reports lock contention with a retry hint.
type InProgressError struct {
	JobID      string
	RetryAfter time.Duration
}

func (e *InProgressError) Error() string {
	return fmt.Sprintf("%s: job %s (retry after %s)", ErrRecomputeInProgress, e.JobID, e.RetryAfter)
}

func (e *InProgressError) Is(target error) bool { return target == ErrRecomputeInProgress }

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }
