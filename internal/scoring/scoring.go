// Package scoring implements the rule-based match scoring of one candidate
// profile against one job requirement.
//
// The Engine is a pure function: it holds no storage or network client,
// performs no I/O and returns identical output for identical input. It is
// safe for concurrent use.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"jobmate/matching-service/internal/model"
)

// ErrMalformedProfile is wrapped by Score when a candidate sub-entity cannot
// be interpreted. The candidate is skipped by the ranking run.
var ErrMalformedProfile = errors.New("malformed candidate profile")

// ErrInvalidRequirement is returned for a job requirement that cannot be scored.
var ErrInvalidRequirement = errors.New("invalid job requirement")

// Engine scores candidates with a fixed weighting policy.
type Engine struct {
	weights Weights
}

// NewEngine returns an Engine using w, which must pass Validate.
func NewEngine(w Weights) (*Engine, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Engine{weights: w}, nil
}

// Weights returns the policy the engine scores with.
func (e *Engine) Weights() Weights { return e.weights }

// ValidateRequirement checks the requirement fields the engine relies on.
func ValidateRequirement(req *model.JobRequirement) error {
	if req == nil {
		return fmt.Errorf("%w: nil requirement", ErrInvalidRequirement)
	}
	for _, s := range req.Skills {
		if normalizeSkillID(s.SkillID) == "" {
			return fmt.Errorf("%w: blank skill id", ErrInvalidRequirement)
		}
		if s.MinLevel != nil && !s.MinLevel.Valid() {
			return fmt.Errorf("%w: skill %q has invalid minimum level %d", ErrInvalidRequirement, s.SkillID, int(*s.MinLevel))
		}
	}
	if req.MinYears != nil && (math.IsNaN(*req.MinYears) || math.IsInf(*req.MinYears, 0) || *req.MinYears < 0) {
		return fmt.Errorf("%w: minimum years must be a non-negative number", ErrInvalidRequirement)
	}
	if req.MinEducation != nil && !req.MinEducation.Valid() {
		return fmt.Errorf("%w: education level %d is off the scale", ErrInvalidRequirement, int(*req.MinEducation))
	}
	return nil
}

// Score computes the MatchResult of profile against req. ComputedAt is left
// zero; the caller stamps it.
func (e *Engine) Score(profile *model.CandidateProfile, req *model.JobRequirement) (model.MatchResult, error) {
	if err := ValidateRequirement(req); err != nil {
		return model.MatchResult{}, err
	}
	if profile == nil {
		return model.MatchResult{}, fmt.Errorf("%w: nil profile", ErrMalformedProfile)
	}

	skills, skillDetails, err := scoreSkills(profile, req)
	if err != nil {
		return model.MatchResult{}, err
	}
	experience, expDetails, err := scoreExperience(profile, req)
	if err != nil {
		return model.MatchResult{}, err
	}
	education, eduDetails, err := scoreEducation(profile, req)
	if err != nil {
		return model.MatchResult{}, err
	}
	context, ctxDetails := scoreContext(profile, req)
	signals, err := collectSignals(profile)
	if err != nil {
		return model.MatchResult{}, err
	}

	// The overall score is combined from the exact sub-scores; only the
	// reported sub-scores are rounded.
	overall := e.weights.combine(skills, experience, big.NewRat(int64(education), 1), big.NewRat(int64(context), 1))
	return model.MatchResult{
		CandidateID:     profile.CandidateID,
		JobID:           req.ID,
		Score:           overall,
		SkillsScore:     roundRat(skills),
		ExperienceScore: roundRat(experience),
		EducationScore:  education,
		ContextScore:    context,
		Details: model.Details{
			Skills:     skillDetails,
			Experience: expDetails,
			Education:  eduDetails,
			Context:    ctxDetails,
			Signals:    signals,
		},
	}, nil
}

// ─── Skills ───────────────────────────────────────────────────────────────────

// scoreSkills returns the exact skills sub-score in [0, 100].
func scoreSkills(p *model.CandidateProfile, req *model.JobRequirement) (*big.Rat, []model.ElementMatch, error) {
	held := make(map[string]model.Proficiency, len(p.Skills))
	for _, s := range p.Skills {
		id := normalizeSkillID(s.SkillID)
		if id == "" {
			return nil, nil, fmt.Errorf("%w: candidate %s has a skill without id", ErrMalformedProfile, p.CandidateID)
		}
		if !s.Level.Valid() {
			return nil, nil, fmt.Errorf("%w: candidate %s skill %q has level %d", ErrMalformedProfile, p.CandidateID, s.SkillID, int(s.Level))
		}
		if s.Level > held[id] {
			held[id] = s.Level
		}
	}

	required := dedupeRequiredSkills(req.Skills)
	details := make([]model.ElementMatch, 0, len(required))
	if len(required) == 0 {
		return big.NewRat(100, 1), details, nil
	}

	// Credits are counted in halves.
	halves := 0
	for _, r := range required {
		d := model.ElementMatch{Element: "skill:" + r.id, Source: "skills"}
		if r.min != nil {
			d.Required = r.min.String()
		}
		level, ok := held[r.id]
		switch {
		case !ok:
			d.Outcome = model.OutcomeMiss
			d.Source = ""
		case r.min == nil || level >= *r.min:
			halves += 2
			d.Outcome = model.OutcomeMatch
			d.Actual = level.String()
		default:
			halves++
			d.Outcome = model.OutcomePartial
			d.Actual = level.String()
		}
		details = append(details, d)
	}

	return big.NewRat(int64(halves)*100, int64(2*len(required))), details, nil
}

type requiredSkill struct {
	id  string
	min *model.Proficiency
}

// dedupeRequiredSkills folds repeated skill ids, keeping the strictest
// minimum level and the order of first appearance.
func dedupeRequiredSkills(in []model.SkillRequirement) []requiredSkill {
	out := make([]requiredSkill, 0, len(in))
	index := make(map[string]int, len(in))
	for _, s := range in {
		id := normalizeSkillID(s.SkillID)
		if i, ok := index[id]; ok {
			if s.MinLevel != nil && (out[i].min == nil || *s.MinLevel > *out[i].min) {
				lvl := *s.MinLevel
				out[i].min = &lvl
			}
			continue
		}
		var minLevel *model.Proficiency
		if s.MinLevel != nil {
			lvl := *s.MinLevel
			minLevel = &lvl
		}
		index[id] = len(out)
		out = append(out, requiredSkill{id: id, min: minLevel})
	}
	return out
}

// ─── Experience ───────────────────────────────────────────────────────────────

// scoreExperience returns the exact experience sub-score in [0, 100].
func scoreExperience(p *model.CandidateProfile, req *model.JobRequirement) (*big.Rat, []model.ElementMatch, error) {
	months := 0
	for _, x := range p.Experiences {
		if x.DurationMonths < 0 {
			return nil, nil, fmt.Errorf("%w: candidate %s experience %q has negative duration", ErrMalformedProfile, p.CandidateID, x.Title)
		}
		months += x.DurationMonths
	}
	years := float64(months) / 12

	d := model.ElementMatch{
		Element: "experience",
		Actual:  formatYears(years),
		Source:  "experiences",
	}
	if req.MinYears == nil || *req.MinYears == 0 {
		d.Outcome = model.OutcomeMatch
		return big.NewRat(100, 1), []model.ElementMatch{d}, nil
	}

	d.Required = formatYears(*req.MinYears)
	// months / (12 × required years), capped at 1 before scaling.
	ratio := new(big.Rat).SetInt64(int64(months))
	ratio.Quo(ratio, new(big.Rat).Mul(big.NewRat(12, 1), decimalRat(*req.MinYears)))
	if ratio.Cmp(big.NewRat(1, 1)) > 0 {
		ratio.SetInt64(1)
	}
	score := ratio.Mul(ratio, big.NewRat(100, 1))
	switch {
	case score.Cmp(big.NewRat(100, 1)) == 0:
		d.Outcome = model.OutcomeMatch
	case months > 0:
		d.Outcome = model.OutcomePartial
	default:
		d.Outcome = model.OutcomeMiss
		d.Source = ""
	}
	return score, []model.ElementMatch{d}, nil
}

// decimalRat returns the decimal value v prints as, so 0.1 is exactly 1/10.
func decimalRat(v float64) *big.Rat {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(v, 'g', -1, 64))
	if !ok {
		return new(big.Rat).SetFloat64(v)
	}
	return r
}

func formatYears(y float64) string {
	return strconv.FormatFloat(y, 'f', 1, 64) + "y"
}

// ─── Education ────────────────────────────────────────────────────────────────

func scoreEducation(p *model.CandidateProfile, req *model.JobRequirement) (int, []model.ElementMatch, error) {
	var (
		best  model.EducationLevel
		field string
		found bool
	)
	for _, e := range p.Educations {
		if !e.Level.Valid() {
			return 0, nil, fmt.Errorf("%w: candidate %s education level %d is off the scale", ErrMalformedProfile, p.CandidateID, int(e.Level))
		}
		if !found || e.Level > best {
			best, field, found = e.Level, e.Field, true
		}
	}

	d := model.ElementMatch{Element: "education"}
	if found {
		d.Actual = strconv.Itoa(int(best))
		d.Source = "educations:" + field
	}
	if req.MinEducation == nil {
		d.Outcome = model.OutcomeMatch
		return 100, []model.ElementMatch{d}, nil
	}

	need := *req.MinEducation
	d.Required = strconv.Itoa(int(need))
	switch {
	case found && best >= need:
		d.Outcome = model.OutcomeMatch
		return 100, []model.ElementMatch{d}, nil
	case found && best == need-1:
		d.Outcome = model.OutcomePartial
		return 50, []model.ElementMatch{d}, nil
	}
	d.Outcome = model.OutcomeMiss
	return 0, []model.ElementMatch{d}, nil
}

// ─── Context ──────────────────────────────────────────────────────────────────

func scoreContext(p *model.CandidateProfile, req *model.JobRequirement) (int, []model.ElementMatch) {
	score := 100
	details := make([]model.ElementMatch, 0, 2)

	jobLocation := ""
	if req.Location != nil {
		jobLocation = strings.TrimSpace(*req.Location)
	}
	if jobLocation != "" && !req.RemoteAllowed {
		d := model.ElementMatch{Element: "location", Required: jobLocation, Actual: p.Location}
		if nearLocation(jobLocation, p.Location) {
			d.Outcome = model.OutcomeMatch
			d.Source = "location"
		} else {
			score -= locationPenalty
			d.Outcome = model.OutcomeMiss
		}
		details = append(details, d)
	}

	// Contract type is informational only.
	if req.Contract != "" {
		d := model.ElementMatch{Element: "contract", Required: string(req.Contract)}
		switch {
		case len(p.Contracts) == 0:
			d.Outcome = model.OutcomePartial
		case containsContract(p.Contracts, req.Contract):
			d.Outcome = model.OutcomeMatch
			d.Actual = string(req.Contract)
			d.Source = "contracts"
		default:
			d.Outcome = model.OutcomeMiss
		}
		details = append(details, d)
	}

	return clamp(score), details
}

func containsContract(list []model.ContractType, ct model.ContractType) bool {
	for _, c := range list {
		if c == ct {
			return true
		}
	}
	return false
}

// ─── Signals ──────────────────────────────────────────────────────────────────

func collectSignals(p *model.CandidateProfile) (model.Signals, error) {
	sig := model.Signals{Certifications: len(p.Certifications)}
	for _, b := range p.Badges {
		if strings.TrimSpace(b) != "" {
			sig.Badges++
		}
	}
	for _, t := range p.TestResults {
		if math.IsNaN(t.Score) || math.IsInf(t.Score, 0) {
			return model.Signals{}, fmt.Errorf("%w: candidate %s test %q has a non-finite score", ErrMalformedProfile, p.CandidateID, t.TestID)
		}
		if sig.BestTestScore == nil || t.Score > *sig.BestTestScore {
			s := t.Score
			sig.BestTestScore = &s
		}
	}
	return sig, nil
}
