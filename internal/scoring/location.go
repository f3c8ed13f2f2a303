package scoring

import "strings"

// nearLocation reports whether the candidate location gives a signal of
// being in or near the job location. Matching is a case-insensitive
// containment in either direction, so "Lyon" matches "Lyon 3e, France".
func nearLocation(jobLocation, candidateLocation string) bool {
	job := strings.ToLower(strings.TrimSpace(jobLocation))
	cand := strings.ToLower(strings.TrimSpace(candidateLocation))
	if job == "" || cand == "" {
		return false
	}
	return strings.Contains(job, cand) || strings.Contains(cand, job)
}

// normalizeSkillID folds skill identifiers so "SQL " and "sql" collapse.
func normalizeSkillID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
