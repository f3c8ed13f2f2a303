// Package model defines shared data structures for the matching service.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ─── Ordinal scales ───────────────────────────────────────────────────────────

// Proficiency is the ordinal skill level. Zero means "unspecified".
type Proficiency int

const (
	ProficiencyBeginner Proficiency = iota + 1
	ProficiencyIntermediate
	ProficiencyAdvanced
	ProficiencyExpert
)

var proficiencyNames = map[Proficiency]string{
	ProficiencyBeginner:     "beginner",
	ProficiencyIntermediate: "intermediate",
	ProficiencyAdvanced:     "advanced",
	ProficiencyExpert:       "expert",
}

// ParseProficiency converts a stored level name to a Proficiency.
func ParseProficiency(s string) (Proficiency, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for p, name := range proficiencyNames {
		if name == key {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown proficiency level %q", s)
}

// Valid reports whether p is one of the four named levels.
func (p Proficiency) Valid() bool {
	_, ok := proficiencyNames[p]
	return ok
}

func (p Proficiency) String() string {
	if name, ok := proficiencyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("proficiency(%d)", int(p))
}

// EducationLevel is the ordinal degree scale.
type EducationLevel int

const (
	EducationNone EducationLevel = iota
	EducationHighSchool
	EducationAssociate
	EducationBachelor
	EducationMaster
	EducationDoctorate
)

// Valid reports whether l lies on the scale.
func (l EducationLevel) Valid() bool {
	return l >= EducationNone && l <= EducationDoctorate
}

// ContractType mirrors the contract_type enum in PostgreSQL.
type ContractType string

const (
	ContractInternship     ContractType = "internship"
	ContractApprenticeship ContractType = "apprenticeship"
	ContractPermanent      ContractType = "permanent"
	ContractFixedTerm      ContractType = "fixed_term"
	ContractFreelance      ContractType = "freelance"
)

// contractAliases maps the French labels used by the job board forms.
var contractAliases = map[string]ContractType{
	"stage":      ContractInternship,
	"alternance": ContractApprenticeship,
	"cdi":        ContractPermanent,
	"cdd":        ContractFixedTerm,
	"fixed-term": ContractFixedTerm,
}

// ParseContractType normalises a raw contract label. The empty string is
// accepted and means "no contract type stated".
func ParseContractType(s string) (ContractType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", nil
	}
	if ct, ok := contractAliases[key]; ok {
		return ct, nil
	}
	ct := ContractType(key)
	switch ct {
	case ContractInternship, ContractApprenticeship, ContractPermanent, ContractFixedTerm, ContractFreelance:
		return ct, nil
	}
	return "", fmt.Errorf("unknown contract type %q", s)
}

// ─── Job side ─────────────────────────────────────────────────────────────────

// SkillRequirement is one required skill of a job opening.
// MinLevel nil means any level is enough.
type SkillRequirement struct {
	SkillID  string       `json:"skillId"`
	MinLevel *Proficiency `json:"minLevel,omitempty"`
}

// JobRequirement is the scoring view of a job opening.
type JobRequirement struct {
	ID            string             `json:"id"`
	Skills        []SkillRequirement `json:"skills"`
	MinYears      *float64           `json:"minYears,omitempty"`
	MinEducation  *EducationLevel    `json:"minEducation,omitempty"`
	Contract      ContractType       `json:"contractType,omitempty"`
	Location      *string            `json:"location,omitempty"`
	RemoteAllowed bool               `json:"remoteAllowed"`
	SegmentID     string             `json:"segmentId,omitempty"`
}

// ─── Candidate side ───────────────────────────────────────────────────────────

type Skill struct {
	SkillID string      `json:"skillId"`
	Level   Proficiency `json:"level"`
}

type Experience struct {
	Title          string `json:"title"`
	DurationMonths int    `json:"durationMonths"`
	IsCurrent      bool   `json:"isCurrent"`
}

type Education struct {
	Level EducationLevel `json:"level"`
	Field string         `json:"field"`
}

type Certification struct {
	Name string `json:"name"`
}

type TestResult struct {
	TestID string  `json:"testId"`
	Score  float64 `json:"score"`
}

// CandidateProfile is everything the scoring engine needs about one
// candidate. Collections are never nil once built by the aggregator.
type CandidateProfile struct {
	CandidateID    string          `json:"candidateId"`
	Location       string          `json:"location,omitempty"`
	Contracts      []ContractType  `json:"contracts"`
	Skills         []Skill         `json:"skills"`
	Experiences    []Experience    `json:"experiences"`
	Educations     []Education     `json:"educations"`
	Certifications []Certification `json:"certifications"`
	Badges         []string        `json:"badges"`
	TestResults    []TestResult    `json:"testResults"`
}

// NewCandidateProfile returns a profile with every collection initialised.
func NewCandidateProfile(id string) *CandidateProfile {
	return &CandidateProfile{
		CandidateID:    id,
		Contracts:      []ContractType{},
		Skills:         []Skill{},
		Experiences:    []Experience{},
		Educations:     []Education{},
		Certifications: []Certification{},
		Badges:         []string{},
		TestResults:    []TestResult{},
	}
}

// ─── Results ──────────────────────────────────────────────────────────────────

// Outcome classifies how a requirement element was satisfied.
type Outcome string

const (
	OutcomeMatch   Outcome = "match"
	OutcomePartial Outcome = "partial"
	OutcomeMiss    Outcome = "miss"
)

// ElementMatch explains one requirement element.
type ElementMatch struct {
	Element  string  `json:"element"`
	Outcome  Outcome `json:"outcome"`
	Required string  `json:"required,omitempty"`
	Actual   string  `json:"actual,omitempty"`
	Source   string  `json:"source,omitempty"`
}

// Signals are informational trust signals; they carry no weight.
type Signals struct {
	Badges         int      `json:"badges"`
	Certifications int      `json:"certifications"`
	BestTestScore  *float64 `json:"bestTestScore,omitempty"`
}

// Details is the "why this match" payload of a MatchResult.
type Details struct {
	Skills     []ElementMatch `json:"skills"`
	Experience []ElementMatch `json:"experience"`
	Education  []ElementMatch `json:"education"`
	Context    []ElementMatch `json:"context"`
	Signals    Signals        `json:"signals"`
}

// MatchResult is the score of one candidate against one job.
type MatchResult struct {
	CandidateID     string    `json:"candidateId"`
	JobID           string    `json:"jobId"`
	Score           int       `json:"score"`
	SkillsScore     int       `json:"skillsScore"`
	ExperienceScore int       `json:"experienceScore"`
	EducationScore  int       `json:"educationScore"`
	ContextScore    int       `json:"contextScore"`
	Details         Details   `json:"details"`
	ComputedAt      time.Time `json:"computedAt"`
}

// Generation is one complete persisted ranking of a job.
type Generation struct {
	ID         string        `json:"generationId"`
	JobID      string        `json:"jobId"`
	StartedAt  time.Time     `json:"startedAt"`
	ComputedAt time.Time     `json:"computedAt"`
	Matches    []MatchResult `json:"matches"`
}
