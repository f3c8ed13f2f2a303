package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"jobmate/matching-service/internal/model"
)

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// PostgresStore keeps generations in ranking_generations / match_results
// and points each job at its current generation through job_rankings.
// The pointer swap, the insert of the new rows and the delete of the old
// generation commit in one transaction. Replacing with the generation that
// is already current is a no-op, so a retried Replace is safe.
type PostgresStore struct {
	db TxBeginner
}

// NewPostgresStore returns a Store backed by db.
func NewPostgresStore(db TxBeginner) *PostgresStore {
	return &PostgresStore{db: db}
}

var matchColumns = []string{
	"generation_id", "job_id", "candidate_id", "rank", "score",
	"skills_score", "experience_score", "education_score", "context_score",
	"details", "computed_at",
}

func (s *PostgresStore) Replace(ctx context.Context, gen *model.Generation) error {
	genID, err := uuid.Parse(gen.ID)
	if err != nil {
		return fmt.Errorf("generation id %q: %w", gen.ID, err)
	}
	jobID, err := uuid.Parse(gen.JobID)
	if err != nil {
		return fmt.Errorf("job id %q: %w", gen.JobID, err)
	}

	rows := make([][]any, 0, len(gen.Matches))
	for i, m := range gen.Matches {
		details, err := json.Marshal(m.Details)
		if err != nil {
			return fmt.Errorf("marshal details for %s: %w", m.CandidateID, err)
		}
		rows = append(rows, []any{
			genID, jobID, m.CandidateID, i + 1, m.Score,
			m.SkillsScore, m.ExperienceScore, m.EducationScore, m.ContextScore,
			string(details), m.ComputedAt,
		})
	}

	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		// Lock the pointer row so concurrent replaces of one job serialize.
		var (
			currentGen   uuid.UUID
			currentStart time.Time
		)
		err := tx.QueryRow(ctx,
			`SELECT generation_id, started_at FROM job_rankings WHERE job_id = $1 FOR UPDATE`,
			jobID,
		).Scan(&currentGen, &currentStart)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("lock job_rankings: %w", err)
		case currentGen == genID:
			// An earlier attempt committed but its result was lost.
			return nil
		case currentStart.After(gen.StartedAt):
			return ErrStaleGeneration
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO ranking_generations (id, job_id, started_at, computed_at)
			 VALUES ($1, $2, $3, $4)`,
			genID, jobID, gen.StartedAt, gen.ComputedAt,
		); err != nil {
			return fmt.Errorf("insert generation: %w", err)
		}

		if len(rows) > 0 {
			n, err := tx.CopyFrom(ctx, pgx.Identifier{"match_results"}, matchColumns, pgx.CopyFromRows(rows))
			if err != nil {
				return fmt.Errorf("copy match_results: %w", err)
			}
			if int(n) != len(rows) {
				return fmt.Errorf("copy match_results: wrote %d of %d rows", n, len(rows))
			}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO job_rankings (job_id, generation_id, started_at, updated_at)
			 VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (job_id) DO UPDATE
			 SET generation_id = EXCLUDED.generation_id,
			     started_at    = EXCLUDED.started_at,
			     updated_at    = NOW()`,
			jobID, genID, gen.StartedAt,
		); err != nil {
			return fmt.Errorf("swap job_rankings: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM match_results WHERE job_id = $1 AND generation_id <> $2`,
			jobID, genID,
		); err != nil {
			return fmt.Errorf("delete old match_results: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM ranking_generations WHERE job_id = $1 AND id <> $2`,
			jobID, genID,
		); err != nil {
			return fmt.Errorf("delete old generations: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Current(ctx context.Context, jobID string) (*model.Generation, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, ErrNoRanking
	}
	var gen *model.Generation
	// A repeatable-read snapshot keeps the pointer and its rows consistent
	// while a replace commits concurrently.
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, s.db, opts, func(tx pgx.Tx) error {
		g := &model.Generation{JobID: jobID}
		err := tx.QueryRow(ctx,
			`SELECT g.id::text, g.started_at, g.computed_at
			 FROM job_rankings jr
			 JOIN ranking_generations g ON g.id = jr.generation_id
			 WHERE jr.job_id = $1`,
			jobID,
		).Scan(&g.ID, &g.StartedAt, &g.ComputedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoRanking
		}
		if err != nil {
			return fmt.Errorf("load generation: %w", err)
		}

		rows, err := tx.Query(ctx,
			`SELECT candidate_id, score, skills_score, experience_score, education_score,
			        context_score, details, computed_at
			 FROM match_results
			 WHERE generation_id = $1::uuid
			 ORDER BY rank`,
			g.ID,
		)
		if err != nil {
			return fmt.Errorf("query match_results: %w", err)
		}
		defer rows.Close()

		g.Matches = make([]model.MatchResult, 0)
		for rows.Next() {
			m := model.MatchResult{JobID: jobID}
			var details []byte
			if err := rows.Scan(
				&m.CandidateID, &m.Score, &m.SkillsScore, &m.ExperienceScore,
				&m.EducationScore, &m.ContextScore, &details, &m.ComputedAt,
			); err != nil {
				return fmt.Errorf("scan match_results: %w", err)
			}
			if err := json.Unmarshal(details, &m.Details); err != nil {
				return fmt.Errorf("decode details for %s: %w", m.CandidateID, err)
			}
			g.Matches = append(g.Matches, m)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate match_results: %w", err)
		}
		gen = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return gen, nil
}
