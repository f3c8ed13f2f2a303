package model_test

import (
	"testing"

	"jobmate/matching-service/internal/model"
)

func TestParseProficiency(t *testing.T) {
	cases := map[string]model.Proficiency{
		"beginner":      model.ProficiencyBeginner,
		" Intermediate": model.ProficiencyIntermediate,
		"ADVANCED":      model.ProficiencyAdvanced,
		"expert":        model.ProficiencyExpert,
	}
	for in, want := range cases {
		got, err := model.ParseProficiency(in)
		if err != nil {
			t.Errorf("ParseProficiency(%q) unexpected error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseProficiency(%q) = %v, want %v", in, got, want)
		}
	}

	for _, in := range []string{"", "guru", "3"} {
		if _, err := model.ParseProficiency(in); err == nil {
			t.Errorf("ParseProficiency(%q) expected error, got nil", in)
		}
	}
}

func TestProficiency_Ordering(t *testing.T) {
	if !(model.ProficiencyBeginner < model.ProficiencyIntermediate &&
		model.ProficiencyIntermediate < model.ProficiencyAdvanced &&
		model.ProficiencyAdvanced < model.ProficiencyExpert) {
		t.Error("proficiency scale is not ordered")
	}
	if model.Proficiency(0).Valid() || model.Proficiency(5).Valid() {
		t.Error("levels outside the scale must be invalid")
	}
	if got := model.ProficiencyAdvanced.String(); got != "advanced" {
		t.Errorf("String() = %q", got)
	}
}

func TestEducationLevel_Valid(t *testing.T) {
	for l := model.EducationNone; l <= model.EducationDoctorate; l++ {
		if !l.Valid() {
			t.Errorf("level %d should be valid", l)
		}
	}
	for _, l := range []model.EducationLevel{-1, 6} {
		if l.Valid() {
			t.Errorf("level %d should be invalid", l)
		}
	}
}

func TestParseContractType(t *testing.T) {
	cases := map[string]model.ContractType{
		"":           "",
		"permanent":  model.ContractPermanent,
		" CDI ":      model.ContractPermanent,
		"stage":      model.ContractInternship,
		"Alternance": model.ContractApprenticeship,
		"fixed-term": model.ContractFixedTerm,
		"fixed_term": model.ContractFixedTerm,
		"freelance":  model.ContractFreelance,
		"internship": model.ContractInternship,
		"cdd":        model.ContractFixedTerm,
	}
	for in, want := range cases {
		got, err := model.ParseContractType(in)
		if err != nil {
			t.Errorf("ParseContractType(%q) unexpected error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseContractType(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := model.ParseContractType("volunteer"); err == nil {
		t.Error("ParseContractType(\"volunteer\") expected error, got nil")
	}
}

func TestNewCandidateProfile_CollectionsNotNil(t *testing.T) {
	p := model.NewCandidateProfile("c-1")
	if p.Skills == nil || p.Experiences == nil || p.Educations == nil ||
		p.Certifications == nil || p.Badges == nil || p.TestResults == nil || p.Contracts == nil {
		t.Errorf("collections must be initialised: %+v", p)
	}
}
