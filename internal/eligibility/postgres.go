package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// StaleJob is a job whose ranking must be recomputed.
type StaleJob struct {
	ID         string
	StaleSince time.Time
}

// Querier is the subset of *pgxpool.Pool used by PostgresLoader.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresLoader reads stale jobs and candidate eligibility flags.
type PostgresLoader struct {
	db Querier
}

// NewPostgresLoader returns a loader backed by db.
func NewPostgresLoader(db Querier) *PostgresLoader {
	return &PostgresLoader{db: db}
}

// StaleJobs returns up to limit active jobs flagged stale, oldest first.
func (l *PostgresLoader) StaleJobs(ctx context.Context, limit int) ([]StaleJob, error) {
	rows, err := l.db.Query(ctx,
		`SELECT id::text, ranking_stale_since
		 FROM job_offers
		 WHERE is_active = true AND ranking_stale_since IS NOT NULL
		 ORDER BY ranking_stale_since, id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []StaleJob
	for rows.Next() {
		var j StaleJob
		if err := rows.Scan(&j.ID, &j.StaleSince); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Candidates returns the candidates of segmentID, or every candidate when
// segmentID is empty. Visibility is left to Filter.
func (l *PostgresLoader) Candidates(ctx context.Context, segmentID string) ([]Candidate, error) {
	rows, err := l.db.Query(ctx,
		`SELECT candidate_id, is_visible, is_searchable, COALESCE(segment_ids, '{}')
		 FROM candidate_profiles
		 WHERE $1 = '' OR $1 = ANY(segment_ids)`,
		segmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Visible, &c.Searchable, &c.Segments); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkFresh clears the stale flag of jobID unless it was raised again after
// since.
func (l *PostgresLoader) MarkFresh(ctx context.Context, jobID string, since time.Time) error {
	_, err := l.db.Exec(ctx,
		`UPDATE job_offers
		 SET ranking_stale_since = NULL
		 WHERE id = $1::uuid AND ranking_stale_since <= $2`,
		jobID, since,
	)
	if err != nil {
		return fmt.Errorf("mark job %s fresh: %w", jobID, err)
	}
	return nil
}
