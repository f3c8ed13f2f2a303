package profile

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"jobmate/matching-service/internal/model"
)

// Querier is the subset of *pgxpool.Pool used by PostgresSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads candidate sub-entities with one ANY($1) query per
// category.
type PostgresSource struct {
	db Querier
}

// NewPostgresSource returns a Source backed by db.
func NewPostgresSource(db Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

// collect runs a batch query whose first column is candidate_id and groups
// the scanned rows by it.
func collect[T any](ctx context.Context, db Querier, sql string, ids []string, scan func(pgx.Rows) (string, T, error)) (map[string][]T, error) {
	rows, err := db.Query(ctx, sql, ids)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer rows.Close()

	out := make(map[string][]T)
	for rows.Next() {
		id, v, err := scan(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		out[id] = append(out[id], v)
	}
	return out, errors.Wrap(rows.Err(), "rows")
}

func (s *PostgresSource) Attributes(ctx context.Context, ids []string) (map[string]Attributes, error) {
	grouped, err := collect(ctx, s.db,
		`SELECT candidate_id, COALESCE(location, ''), COALESCE(accepted_contracts, '{}')
		 FROM candidate_profiles
		 WHERE candidate_id = ANY($1)`,
		ids,
		func(r pgx.Rows) (string, Attributes, error) {
			var (
				id, location string
				contracts    []string
			)
			if err := r.Scan(&id, &location, &contracts); err != nil {
				return "", Attributes{}, err
			}
			at := Attributes{Location: location, Contracts: make([]model.ContractType, 0, len(contracts))}
			for _, c := range contracts {
				// Unknown labels carry no signal; they are dropped.
				if ct, err := model.ParseContractType(c); err == nil && ct != "" {
					at.Contracts = append(at.Contracts, ct)
				}
			}
			return id, at, nil
		},
	)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Attributes, len(grouped))
	for id, list := range grouped {
		out[id] = list[0]
	}
	return out, nil
}

func (s *PostgresSource) Skills(ctx context.Context, ids []string) (map[string][]model.Skill, error) {
	return collect(ctx, s.db,
		`SELECT candidate_id, skill_id, level
		 FROM candidate_skills
		 WHERE candidate_id = ANY($1)
		 ORDER BY candidate_id, skill_id`,
		ids,
		func(r pgx.Rows) (string, model.Skill, error) {
			var id, skillID, lvl string
			if err := r.Scan(&id, &skillID, &lvl); err != nil {
				return "", model.Skill{}, err
			}
			// An unknown level stays zero; scoring rejects the candidate.
			p, _ := model.ParseProficiency(lvl)
			return id, model.Skill{SkillID: skillID, Level: p}, nil
		},
	)
}

func (s *PostgresSource) Experiences(ctx context.Context, ids []string) (map[string][]model.Experience, error) {
	return collect(ctx, s.db,
		`SELECT candidate_id, COALESCE(title, ''), COALESCE(duration_months, 0), is_current
		 FROM candidate_experiences
		 WHERE candidate_id = ANY($1)
		 ORDER BY candidate_id, started_at`,
		ids,
		func(r pgx.Rows) (string, model.Experience, error) {
			var (
				id string
				x  model.Experience
			)
			err := r.Scan(&id, &x.Title, &x.DurationMonths, &x.IsCurrent)
			return id, x, err
		},
	)
}

func (s *PostgresSource) Educations(ctx context.Context, ids []string) (map[string][]model.Education, error) {
	return collect(ctx, s.db,
		`SELECT candidate_id, degree_level, COALESCE(field, '')
		 FROM candidate_educations
		 WHERE candidate_id = ANY($1)
		 ORDER BY candidate_id, degree_level DESC`,
		ids,
		func(r pgx.Rows) (string, model.Education, error) {
			var (
				id    string
				level int
				e     model.Education
			)
			if err := r.Scan(&id, &level, &e.Field); err != nil {
				return "", e, err
			}
			e.Level = model.EducationLevel(level)
			return id, e, nil
		},
	)
}

func (s *PostgresSource) Certifications(ctx context.Context, ids []string) (map[string][]model.Certification, error) {
	return collect(ctx, s.db,
		`SELECT candidate_id, name
		 FROM candidate_certifications
		 WHERE candidate_id = ANY($1)
		 ORDER BY candidate_id, name`,
		ids,
		func(r pgx.Rows) (string, model.Certification, error) {
			var (
				id string
				c  model.Certification
			)
			err := r.Scan(&id, &c.Name)
			return id, c, err
		},
	)
}

func (s *PostgresSource) Badges(ctx context.Context, ids []string) (map[string][]string, error) {
	return collect(ctx, s.db,
		`SELECT candidate_id, badge_id
		 FROM candidate_badges
		 WHERE candidate_id = ANY($1)
		 ORDER BY candidate_id, badge_id`,
		ids,
		func(r pgx.Rows) (string, string, error) {
			var id, badge string
			err := r.Scan(&id, &badge)
			return id, badge, err
		},
	)
}

func (s *PostgresSource) TestResults(ctx context.Context, ids []string) (map[string][]model.TestResult, error) {
	return collect(ctx, s.db,
		`SELECT candidate_id, test_id, score
		 FROM candidate_test_results
		 WHERE candidate_id = ANY($1)
		 ORDER BY candidate_id, test_id`,
		ids,
		func(r pgx.Rows) (string, model.TestResult, error) {
			var (
				id string
				t  model.TestResult
			)
			err := r.Scan(&id, &t.TestID, &t.Score)
			return id, t, err
		},
	)
}
