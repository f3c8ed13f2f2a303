package ranking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"jobmate/matching-service/internal/model"
)

// JobSource reads the requirement of one job opening.
// It returns ErrJobNotFound for unknown ids.
type JobSource interface {
	Job(ctx context.Context, jobID string) (*model.JobRequirement, error)
}

// Querier is the subset of *pgxpool.Pool used by PostgresJobs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresJobs reads job_offers and job_required_skills.
type PostgresJobs struct {
	db Querier
}

// NewPostgresJobs returns a JobSource backed by db.
func NewPostgresJobs(db Querier) *PostgresJobs {
	return &PostgresJobs{db: db}
}

func (j *PostgresJobs) Job(ctx context.Context, jobID string) (*model.JobRequirement, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, ErrJobNotFound
	}
	var (
		req          = model.JobRequirement{ID: jobID}
		minEducation *int
		contract     string
	)
	err := j.db.QueryRow(ctx,
		`SELECT min_years::float8, min_education, COALESCE(contract_type, ''), location,
		        remote_allowed, COALESCE(segment_id::text, '')
		 FROM job_offers
		 WHERE id = $1`,
		jobID,
	).Scan(&req.MinYears, &minEducation, &contract, &req.Location, &req.RemoteAllowed, &req.SegmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}

	if minEducation != nil {
		lvl := model.EducationLevel(*minEducation)
		req.MinEducation = &lvl
	}
	if req.Contract, err = model.ParseContractType(contract); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	rows, err := j.db.Query(ctx,
		`SELECT skill_id, min_level
		 FROM job_required_skills
		 WHERE job_id = $1
		 ORDER BY position, skill_id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query required skills: %w", err)
	}
	defer rows.Close()

	req.Skills = make([]model.SkillRequirement, 0)
	for rows.Next() {
		var (
			s        model.SkillRequirement
			minLevel *string
		)
		if err := rows.Scan(&s.SkillID, &minLevel); err != nil {
			return nil, fmt.Errorf("scan required skill: %w", err)
		}
		if minLevel != nil {
			p, err := model.ParseProficiency(*minLevel)
			if err != nil {
				return nil, &ValidationError{Msg: fmt.Sprintf("job %s: %v", jobID, err)}
			}
			s.MinLevel = &p
		}
		req.Skills = append(req.Skills, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate required skills: %w", err)
	}
	return &req, nil
}
