// Package eligibility narrows a candidate population to the pool a job may
// be ranked against: visible, searchable candidates in the job's audience
// segment.
package eligibility

import (
	"sort"
	"strings"

	"jobmate/matching-service/internal/model"
)

// Candidate carries the flags that decide eligibility.
type Candidate struct {
	ID         string
	Visible    bool
	Searchable bool
	Segments   []string
}

// InSegment reports whether the candidate belongs to segmentID.
// An empty segment is open to everyone.
func (c Candidate) InSegment(segmentID string) bool {
	if segmentID == "" {
		return true
	}
	for _, s := range c.Segments {
		if strings.EqualFold(strings.TrimSpace(s), segmentID) {
			return true
		}
	}
	return false
}

// Filter returns the ids of the eligible candidates for job, deduplicated
// and sorted.
func Filter(job *model.JobRequirement, candidates []Candidate) []string {
	segment := ""
	if job != nil {
		segment = strings.TrimSpace(job.SegmentID)
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		id := strings.TrimSpace(c.ID)
		if id == "" || !c.Visible || !c.Searchable || !c.InSegment(segment) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
