package scoring_test

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"jobmate/matching-service/internal/model"
	"jobmate/matching-service/internal/scoring"
)

func newEngine(t *testing.T) *scoring.Engine {
	t.Helper()
	e, err := scoring.NewEngine(scoring.DefaultWeights())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func level(p model.Proficiency) *model.Proficiency     { return &p }
func years(y float64) *float64                          { return &y }
func edu(l model.EducationLevel) *model.EducationLevel { return &l }
func str(s string) *string                              { return &s }

// sqlRequirement is the requirement shared by the reference scenarios.
func sqlRequirement() *model.JobRequirement {
	return &model.JobRequirement{
		ID:            "job-1",
		Skills:        []model.SkillRequirement{{SkillID: "sql", MinLevel: level(model.ProficiencyIntermediate)}},
		MinYears:      years(2),
		Contract:      model.ContractPermanent,
		RemoteAllowed: true,
	}
}

// ── Reference scenarios ────────────────────────────────────────────────────

func TestScore_ScenarioA_FullMatch(t *testing.T) {
	p := model.NewCandidateProfile("cand-a")
	p.Skills = []model.Skill{{SkillID: "sql", Level: model.ProficiencyExpert}}
	p.Experiences = []model.Experience{{Title: "Data analyst", DurationMonths: 36}}

	got, err := newEngine(t).Score(p, sqlRequirement())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	want := [5]int{100, 100, 100, 100, 100}
	have := [5]int{got.SkillsScore, got.ExperienceScore, got.EducationScore, got.ContextScore, got.Score}
	if have != want {
		t.Fatalf("scores (skills, exp, edu, ctx, overall) = %v, want %v", have, want)
	}
}

func TestScore_ScenarioB_BelowThreshold(t *testing.T) {
	p := model.NewCandidateProfile("cand-b")
	p.Skills = []model.Skill{{SkillID: "excel", Level: model.ProficiencyExpert}}
	p.Experiences = []model.Experience{{Title: "Intern", DurationMonths: 12}}

	got, err := newEngine(t).Score(p, sqlRequirement())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	want := [5]int{0, 50, 100, 100, 40}
	have := [5]int{got.SkillsScore, got.ExperienceScore, got.EducationScore, got.ContextScore, got.Score}
	if have != want {
		t.Fatalf("scores (skills, exp, edu, ctx, overall) = %v, want %v", have, want)
	}
	if got.Score >= scoring.MinimumRelevance {
		t.Errorf("overall %d should fall below the relevance threshold", got.Score)
	}
}

// ── Unconstrained requirement ──────────────────────────────────────────────

func TestScore_EmptyRequirementMatchesEveryone(t *testing.T) {
	full := model.NewCandidateProfile("full")
	full.Skills = []model.Skill{{SkillID: "go", Level: model.ProficiencyAdvanced}}
	full.Educations = []model.Education{{Level: model.EducationMaster, Field: "CS"}}
	full.Location = "Paris"

	profiles := []*model.CandidateProfile{model.NewCandidateProfile("empty"), full}
	req := &model.JobRequirement{ID: "open-job"}

	for _, p := range profiles {
		got, err := newEngine(t).Score(p, req)
		if err != nil {
			t.Fatalf("Score(%s): %v", p.CandidateID, err)
		}
		if got.Score != 100 {
			t.Errorf("Score(%s) = %d, want 100 for an unconstrained job", p.CandidateID, got.Score)
		}
	}
}

func TestScore_EmptyProfileGetsMinimumOnConstrainedDimensions(t *testing.T) {
	req := &model.JobRequirement{
		ID:           "job",
		Skills:       []model.SkillRequirement{{SkillID: "go"}, {SkillID: "sql"}},
		MinYears:     years(3),
		MinEducation: edu(model.EducationBachelor),
		Location:     str("Lyon"),
	}

	got, err := newEngine(t).Score(model.NewCandidateProfile("nobody"), req)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got.SkillsScore != 0 || got.ExperienceScore != 0 || got.EducationScore != 0 {
		t.Errorf("constrained sub-scores = %d/%d/%d, want 0/0/0", got.SkillsScore, got.ExperienceScore, got.EducationScore)
	}
	if got.ContextScore != 50 {
		t.Errorf("context = %d, want 50 (missing location only halves it)", got.ContextScore)
	}
	if got.Score != 5 {
		t.Errorf("overall = %d, want 5", got.Score)
	}
}

// ── Sub-score rules ────────────────────────────────────────────────────────

func TestScore_SkillCredits(t *testing.T) {
	req := &model.JobRequirement{
		ID: "job",
		Skills: []model.SkillRequirement{
			{SkillID: "go", MinLevel: level(model.ProficiencyAdvanced)},
			{SkillID: "sql", MinLevel: level(model.ProficiencyAdvanced)},
			{SkillID: "k8s"},
			{SkillID: "rust"},
		},
	}
	p := model.NewCandidateProfile("c")
	p.Skills = []model.Skill{
		{SkillID: "Go", Level: model.ProficiencyExpert},         // full
		{SkillID: "sql", Level: model.ProficiencyBeginner},      // half
		{SkillID: "SQL ", Level: model.ProficiencyIntermediate}, // still half, highest wins
		{SkillID: "k8s", Level: model.ProficiencyBeginner},      // full, no minimum
	}

	got, err := newEngine(t).Score(p, req)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// (1 + 0.5 + 1 + 0) / 4 = 62.5 → 63
	if got.SkillsScore != 63 {
		t.Errorf("skills = %d, want 63", got.SkillsScore)
	}

	outcomes := make([]model.Outcome, 0, len(got.Details.Skills))
	for _, d := range got.Details.Skills {
		outcomes = append(outcomes, d.Outcome)
	}
	want := []model.Outcome{model.OutcomeMatch, model.OutcomePartial, model.OutcomeMatch, model.OutcomeMiss}
	if !reflect.DeepEqual(outcomes, want) {
		t.Errorf("skill outcomes = %v, want %v", outcomes, want)
	}
	if got.Details.Skills[1].Actual != "intermediate" {
		t.Errorf("sql actual level = %q, want the highest duplicate (intermediate)", got.Details.Skills[1].Actual)
	}
}

func TestScore_ExperienceIsCappedAt100(t *testing.T) {
	cases := []struct {
		months int
		want   int
	}{
		{0, 0},
		{6, 25},
		{12, 50},
		{24, 100},
		{120, 100},
	}
	req := &model.JobRequirement{ID: "job", MinYears: years(2)}
	for _, c := range cases {
		p := model.NewCandidateProfile("c")
		p.Experiences = []model.Experience{{Title: "dev", DurationMonths: c.months}}
		got, err := newEngine(t).Score(p, req)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if got.ExperienceScore != c.want {
			t.Errorf("months=%d: experience = %d, want %d", c.months, got.ExperienceScore, c.want)
		}
	}
}

func TestScore_EducationSteps(t *testing.T) {
	cases := []struct {
		name  string
		held  []model.EducationLevel
		want  int
		outco model.Outcome
	}{
		{"above", []model.EducationLevel{model.EducationDoctorate}, 100, model.OutcomeMatch},
		{"equal", []model.EducationLevel{model.EducationHighSchool, model.EducationBachelor}, 100, model.OutcomeMatch},
		{"one below", []model.EducationLevel{model.EducationAssociate}, 50, model.OutcomePartial},
		{"two below", []model.EducationLevel{model.EducationHighSchool}, 0, model.OutcomeMiss},
		{"none recorded", nil, 0, model.OutcomeMiss},
	}
	req := &model.JobRequirement{ID: "job", MinEducation: edu(model.EducationBachelor)}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := model.NewCandidateProfile("c")
			for _, l := range c.held {
				p.Educations = append(p.Educations, model.Education{Level: l, Field: "any"})
			}
			got, err := newEngine(t).Score(p, req)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if got.EducationScore != c.want {
				t.Errorf("education = %d, want %d", got.EducationScore, c.want)
			}
			if got.Details.Education[0].Outcome != c.outco {
				t.Errorf("outcome = %s, want %s", got.Details.Education[0].Outcome, c.outco)
			}
		})
	}
}

func TestScore_ContextLocationAndContract(t *testing.T) {
	cases := []struct {
		name      string
		remote    bool
		candLoc   string
		contracts []model.ContractType
		want      int
		contract  model.Outcome
	}{
		{"remote job ignores location", true, "", nil, 100, model.OutcomePartial},
		{"same city", false, "lyon", []model.ContractType{model.ContractPermanent}, 100, model.OutcomeMatch},
		{"other city", false, "Paris", []model.ContractType{model.ContractFreelance}, 50, model.OutcomeMiss},
		{"no location data", false, "", nil, 50, model.OutcomePartial},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := &model.JobRequirement{
				ID:            "job",
				Location:      str("Lyon, France"),
				RemoteAllowed: c.remote,
				Contract:      model.ContractPermanent,
			}
			p := model.NewCandidateProfile("c")
			p.Location = c.candLoc
			p.Contracts = append(p.Contracts, c.contracts...)

			got, err := newEngine(t).Score(p, req)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if got.ContextScore != c.want {
				t.Errorf("context = %d, want %d", got.ContextScore, c.want)
			}
			last := got.Details.Context[len(got.Details.Context)-1]
			if last.Element != "contract" || last.Outcome != c.contract {
				t.Errorf("contract detail = %+v, want outcome %s", last, c.contract)
			}
		})
	}
}

// ── Properties ─────────────────────────────────────────────────────────────

func TestScore_OverallAlwaysInRange(t *testing.T) {
	e := newEngine(t)
	reqs := []*model.JobRequirement{
		{ID: "open"},
		sqlRequirement(),
		{ID: "hard", Skills: []model.SkillRequirement{{SkillID: "a"}, {SkillID: "b"}}, MinYears: years(10),
			MinEducation: edu(model.EducationDoctorate), Location: str("Nantes")},
	}
	for months := 0; months <= 240; months += 30 {
		p := model.NewCandidateProfile("c")
		p.Experiences = []model.Experience{{DurationMonths: months}}
		p.Skills = []model.Skill{{SkillID: "a", Level: model.ProficiencyBeginner}}
		for _, r := range reqs {
			got, err := e.Score(p, r)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if got.Score < 0 || got.Score > 100 {
				t.Errorf("overall %d out of [0, 100] for job %s, months=%d", got.Score, r.ID, months)
			}
		}
	}
}

func TestScore_AddingSatisfiedSkillNeverLowersSkills(t *testing.T) {
	e := newEngine(t)
	p := model.NewCandidateProfile("c")
	p.Skills = []model.Skill{
		{SkillID: "go", Level: model.ProficiencyBeginner},
		{SkillID: "docker", Level: model.ProficiencyExpert},
	}

	base := &model.JobRequirement{ID: "job", Skills: []model.SkillRequirement{
		{SkillID: "go", MinLevel: level(model.ProficiencyExpert)},
		{SkillID: "rust"},
	}}
	extended := &model.JobRequirement{ID: "job", Skills: append(append([]model.SkillRequirement{}, base.Skills...),
		model.SkillRequirement{SkillID: "docker", MinLevel: level(model.ProficiencyAdvanced)})}

	before, err := e.Score(p, base)
	if err != nil {
		t.Fatalf("Score(base): %v", err)
	}
	after, err := e.Score(p, extended)
	if err != nil {
		t.Fatalf("Score(extended): %v", err)
	}
	if after.SkillsScore < before.SkillsScore {
		t.Errorf("skills dropped from %d to %d after adding a satisfied skill", before.SkillsScore, after.SkillsScore)
	}
}

func TestScore_Deterministic(t *testing.T) {
	e := newEngine(t)
	p := model.NewCandidateProfile("c")
	p.Skills = []model.Skill{{SkillID: "sql", Level: model.ProficiencyAdvanced}, {SkillID: "go", Level: model.ProficiencyBeginner}}
	p.Badges = []string{"top-mentor"}
	p.TestResults = []model.TestResult{{TestID: "t1", Score: 71.5}, {TestID: "t2", Score: 88}}
	req := sqlRequirement()
	req.Skills = append(req.Skills, model.SkillRequirement{SkillID: "go", MinLevel: level(model.ProficiencyAdvanced)})

	first, err := e.Score(p, req)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	second, err := e.Score(p, req)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("outputs differ:\n%s\n%s", a, b)
	}
	if first.Details.Signals.BestTestScore == nil || *first.Details.Signals.BestTestScore != 88 {
		t.Errorf("best test score = %v, want 88", first.Details.Signals.BestTestScore)
	}
}

// ── Malformed input ────────────────────────────────────────────────────────

func TestScore_MalformedProfile(t *testing.T) {
	cases := map[string]func(p *model.CandidateProfile){
		"negative duration": func(p *model.CandidateProfile) {
			p.Experiences = []model.Experience{{Title: "x", DurationMonths: -3}}
		},
		"unknown proficiency": func(p *model.CandidateProfile) {
			p.Skills = []model.Skill{{SkillID: "go", Level: 9}}
		},
		"blank skill id": func(p *model.CandidateProfile) {
			p.Skills = []model.Skill{{SkillID: "  ", Level: model.ProficiencyExpert}}
		},
		"education off scale": func(p *model.CandidateProfile) {
			p.Educations = []model.Education{{Level: 42}}
		},
		"non-finite test score": func(p *model.CandidateProfile) {
			p.TestResults = []model.TestResult{{TestID: "t", Score: math.NaN()}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := model.NewCandidateProfile("bad")
			mutate(p)
			_, err := newEngine(t).Score(p, sqlRequirement())
			if !errors.Is(err, scoring.ErrMalformedProfile) {
				t.Fatalf("Score error = %v, want ErrMalformedProfile", err)
			}
		})
	}
}

func TestValidateRequirement(t *testing.T) {
	bad := []*model.JobRequirement{
		nil,
		{ID: "j", Skills: []model.SkillRequirement{{SkillID: ""}}},
		{ID: "j", Skills: []model.SkillRequirement{{SkillID: "go", MinLevel: level(0)}}},
		{ID: "j", MinYears: years(-1)},
		{ID: "j", MinEducation: edu(7)},
	}
	for i, r := range bad {
		if err := scoring.ValidateRequirement(r); !errors.Is(err, scoring.ErrInvalidRequirement) {
			t.Errorf("case %d: error = %v, want ErrInvalidRequirement", i, err)
		}
	}
	if err := scoring.ValidateRequirement(sqlRequirement()); err != nil {
		t.Errorf("valid requirement rejected: %v", err)
	}
}

func TestWeights_Validate(t *testing.T) {
	if err := scoring.DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}
	for _, w := range []scoring.Weights{
		{Skills: 50, Experience: 30, Education: 15, Context: 10},
		{Skills: -5, Experience: 60, Education: 35, Context: 10},
	} {
		if _, err := scoring.NewEngine(w); err == nil {
			t.Errorf("NewEngine(%+v) expected error", w)
		}
	}
}

func TestWeights_CustomPolicyChangesOverall(t *testing.T) {
	e, err := scoring.NewEngine(scoring.Weights{Skills: 100})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	p := model.NewCandidateProfile("c")
	p.Experiences = []model.Experience{{DurationMonths: 12}}
	got, err := e.Score(p, sqlRequirement())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got.Score != 0 {
		t.Errorf("overall = %d, want 0 when only skills weigh", got.Score)
	}
}

func TestScore_OverallUsesExactSubScores(t *testing.T) {
	cases := []struct {
		name       string
		required   int // skills, each with an advanced minimum
		halfCredit int // of which held below the minimum
		months     int
		minYears   float64
		skills     int
		experience int
		overall    int
	}{
		// 11.25 + 13.33 + 15 + 10 = 49.58
		{"kept at threshold", 2, 1, 16, 3, 25, 44, 50},
		{"kept at threshold, four skills", 4, 2, 16, 3, 25, 44, 50},
		// 16.875 + 7.5 + 15 + 10 = 49.375
		{"dropped below threshold", 4, 3, 9, 3, 38, 25, 49},
		// 5.625 + 18.75 + 15 + 10 = 49.375
		{"dropped despite rounded-up sub-scores", 4, 1, 15, 2, 13, 63, 49},
	}
	e := newEngine(t)
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := &model.JobRequirement{ID: "job", MinYears: years(c.minYears)}
			p := model.NewCandidateProfile("c")
			for i := 0; i < c.required; i++ {
				id := string(rune('a' + i))
				req.Skills = append(req.Skills, model.SkillRequirement{SkillID: id, MinLevel: level(model.ProficiencyAdvanced)})
				if i < c.halfCredit {
					p.Skills = append(p.Skills, model.Skill{SkillID: id, Level: model.ProficiencyBeginner})
				}
			}
			p.Experiences = []model.Experience{{Title: "dev", DurationMonths: c.months}}

			got, err := e.Score(p, req)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			have := [3]int{got.SkillsScore, got.ExperienceScore, got.Score}
			want := [3]int{c.skills, c.experience, c.overall}
			if have != want {
				t.Fatalf("scores (skills, exp, overall) = %v, want %v", have, want)
			}
			if kept := got.Score >= scoring.MinimumRelevance; kept != (c.overall >= scoring.MinimumRelevance) {
				t.Errorf("threshold decision = %v for overall %d", kept, got.Score)
			}
		})
	}
}

func TestScore_TinyExperienceRequirementCapsAt100(t *testing.T) {
	e := newEngine(t)
	req := &model.JobRequirement{ID: "job", MinYears: years(1e-300)}
	for _, months := range []int{1, 12, 120} {
		p := model.NewCandidateProfile("c")
		p.Experiences = []model.Experience{{Title: "dev", DurationMonths: months}}
		got, err := e.Score(p, req)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if got.ExperienceScore != 100 {
			t.Errorf("months=%d: experience = %d, want 100", months, got.ExperienceScore)
		}
		if got.Details.Experience[0].Outcome != model.OutcomeMatch {
			t.Errorf("months=%d: outcome = %s, want match", months, got.Details.Experience[0].Outcome)
		}
	}
}
