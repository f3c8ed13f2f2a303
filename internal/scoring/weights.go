package scoring

import (
	"fmt"
	"math/big"
)

// Default sub-score weights, in percent of the overall score.
const (
	DefaultSkillsWeight     = 45
	DefaultExperienceWeight = 30
	DefaultEducationWeight  = 15
	DefaultContextWeight    = 10
)

// MinimumRelevance is the overall score a match needs to be kept in a ranking.
const MinimumRelevance = 50

// locationPenalty is deducted from the context sub-score when a located,
// on-site job gets no location signal from the candidate.
const locationPenalty = 50

// Weights is the weighting policy of the four sub-scores. Values are integer
// percentages and must add up to 100.
type Weights struct {
	Skills     int `mapstructure:"skills" json:"skills"`
	Experience int `mapstructure:"experience" json:"experience"`
	Education  int `mapstructure:"education" json:"education"`
	Context    int `mapstructure:"context" json:"context"`
}

// DefaultWeights returns the canonical 45/30/15/10 policy.
func DefaultWeights() Weights {
	return Weights{
		Skills:     DefaultSkillsWeight,
		Experience: DefaultExperienceWeight,
		Education:  DefaultEducationWeight,
		Context:    DefaultContextWeight,
	}
}

// Validate checks that every weight is non-negative and the sum is 100.
func (w Weights) Validate() error {
	named := []struct {
		name string
		v    int
	}{
		{"skills", w.Skills},
		{"experience", w.Experience},
		{"education", w.Education},
		{"context", w.Context},
	}
	for _, n := range named {
		if n.v < 0 {
			return fmt.Errorf("%s weight must be non-negative, got %d", n.name, n.v)
		}
	}
	if sum := w.Skills + w.Experience + w.Education + w.Context; sum != 100 {
		return fmt.Errorf("weights must add up to 100, got %d", sum)
	}
	return nil
}

// combine returns the weighted mean of the exact sub-scores, rounded once
// half up and clamped to [0, 100].
func (w Weights) combine(skills, experience, education, context *big.Rat) int {
	total := new(big.Rat)
	for _, t := range []struct {
		weight int
		score  *big.Rat
	}{
		{w.Skills, skills},
		{w.Experience, experience},
		{w.Education, education},
		{w.Context, context},
	} {
		total.Add(total, new(big.Rat).Mul(big.NewRat(int64(t.weight), 1), t.score))
	}
	return clamp(roundRat(total.Quo(total, big.NewRat(100, 1))))
}

// roundRat rounds a non-negative rational half up.
func roundRat(r *big.Rat) int {
	if r.Sign() <= 0 {
		return 0
	}
	half := new(big.Rat).Add(r, big.NewRat(1, 2))
	q := new(big.Int).Quo(half.Num(), half.Denom())
	if !q.IsInt64() || q.Int64() > 100 {
		return 100
	}
	return int(q.Int64())
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
