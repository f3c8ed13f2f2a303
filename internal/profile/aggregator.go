// Package profile builds one CandidateProfile per candidate from the
// sub-entity tables owned by the learning platform.
//
// The aggregator is a data-shaping step only: no scoring, no eligibility.
// A candidate with no rows in a category still gets an empty collection.
package profile

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"jobmate/matching-service/internal/model"
)

// ErrNoCandidates is returned when the id list is empty after deduplication.
var ErrNoCandidates = errors.New("no candidate ids to aggregate")

// Attributes are the scalar profile fields used for the context sub-score.
type Attributes struct {
	Location  string
	Contracts []model.ContractType
}

// Source reads candidate sub-entities in batches. Each method returns rows
// keyed by candidate id; ids without rows may be absent from the map.
type Source interface {
	Attributes(ctx context.Context, ids []string) (map[string]Attributes, error)
	Skills(ctx context.Context, ids []string) (map[string][]model.Skill, error)
	Experiences(ctx context.Context, ids []string) (map[string][]model.Experience, error)
	Educations(ctx context.Context, ids []string) (map[string][]model.Education, error)
	Certifications(ctx context.Context, ids []string) (map[string][]model.Certification, error)
	Badges(ctx context.Context, ids []string) (map[string][]string, error)
	TestResults(ctx context.Context, ids []string) (map[string][]model.TestResult, error)
}

// Aggregator assembles CandidateProfiles from a Source.
type Aggregator struct {
	src Source
}

// NewAggregator returns an Aggregator reading from src.
func NewAggregator(src Source) *Aggregator {
	return &Aggregator{src: src}
}

// Aggregate returns one profile per distinct, non-blank id. Any category
// read failure aborts the whole aggregation.
func (a *Aggregator) Aggregate(ctx context.Context, ids []string) (map[string]*model.CandidateProfile, error) {
	ids = Dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrNoCandidates
	}

	var (
		attrs  map[string]Attributes
		skills map[string][]model.Skill
		exps   map[string][]model.Experience
		edus   map[string][]model.Education
		certs  map[string][]model.Certification
		badges map[string][]string
		tests  map[string][]model.TestResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		attrs, err = a.src.Attributes(gctx, ids)
		return errors.Wrap(err, "load attributes")
	})
	g.Go(func() (err error) {
		skills, err = a.src.Skills(gctx, ids)
		return errors.Wrap(err, "load skills")
	})
	g.Go(func() (err error) {
		exps, err = a.src.Experiences(gctx, ids)
		return errors.Wrap(err, "load experiences")
	})
	g.Go(func() (err error) {
		edus, err = a.src.Educations(gctx, ids)
		return errors.Wrap(err, "load educations")
	})
	g.Go(func() (err error) {
		certs, err = a.src.Certifications(gctx, ids)
		return errors.Wrap(err, "load certifications")
	})
	g.Go(func() (err error) {
		badges, err = a.src.Badges(gctx, ids)
		return errors.Wrap(err, "load badges")
	})
	g.Go(func() (err error) {
		tests, err = a.src.TestResults(gctx, ids)
		return errors.Wrap(err, "load test results")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*model.CandidateProfile, len(ids))
	for _, id := range ids {
		p := model.NewCandidateProfile(id)
		if at, ok := attrs[id]; ok {
			p.Location = strings.TrimSpace(at.Location)
			p.Contracts = append(p.Contracts, at.Contracts...)
		}
		p.Skills = collapseSkills(skills[id])
		p.Experiences = append(p.Experiences, exps[id]...)
		p.Educations = append(p.Educations, edus[id]...)
		p.Certifications = append(p.Certifications, certs[id]...)
		p.Badges = append(p.Badges, badges[id]...)
		p.TestResults = append(p.TestResults, tests[id]...)
		out[id] = p
	}
	return out, nil
}

// Dedupe trims ids, drops blanks and repeats, and keeps first-seen order.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// collapseSkills merges entries sharing an identifier (case-insensitive),
// keeping the highest proficiency. Entries with an invalid level are kept
// as-is so the scoring engine can reject the candidate.
func collapseSkills(in []model.Skill) []model.Skill {
	out := make([]model.Skill, 0, len(in))
	index := make(map[string]int, len(in))
	for _, s := range in {
		key := strings.ToLower(strings.TrimSpace(s.SkillID))
		if !s.Level.Valid() || key == "" {
			out = append(out, s)
			continue
		}
		if i, ok := index[key]; ok {
			if s.Level > out[i].Level {
				out[i].Level = s.Level
			}
			continue
		}
		index[key] = len(out)
		out = append(out, model.Skill{SkillID: key, Level: s.Level})
	}
	return out
}
