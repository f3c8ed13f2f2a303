package ranking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/matching-service/internal/model"
)

// EventRankingRecomputed is the Redis channel announcing a new generation.
const EventRankingRecomputed = "EVENT_RANKING_RECOMPUTED"

// Publisher announces a freshly stored generation. Failures are non-fatal.
type Publisher interface {
	PublishRecomputed(ctx context.Context, gen *model.Generation) error
}

// RedisPublisher publishes events on Redis pub/sub for the Gateway.
type RedisPublisher struct {
	rdb redis.UniversalClient
}

// NewRedisPublisher returns a Publisher using rdb.
func NewRedisPublisher(rdb redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

type recomputedEvent struct {
	Type         string    `json:"type"`
	JobID        string    `json:"jobId"`
	GenerationID string    `json:"generationId"`
	Count        int       `json:"count"`
	ComputedAt   time.Time `json:"computedAt"`
}

func (p *RedisPublisher) PublishRecomputed(ctx context.Context, gen *model.Generation) error {
	event, err := json.Marshal(recomputedEvent{
		Type:         EventRankingRecomputed,
		JobID:        gen.JobID,
		GenerationID: gen.ID,
		Count:        len(gen.Matches),
		ComputedAt:   gen.ComputedAt,
	})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, EventRankingRecomputed, event).Err()
}
