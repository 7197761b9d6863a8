package main

import (
	"strings"

	"github.com/agext/levenshtein"
)

const duplicateSimilarityThreshold = 0.7

var severityRank = map[string]int{
	"major":    3,
	"moderate": 2,
	"minor":    1,
}

// IssueDeduplicator folds near-identical findings reported by different
// critique agents into one entry each.
type IssueDeduplicator struct {
	threshold float64
}

func NewIssueDeduplicator() *IssueDeduplicator {
	return &IssueDeduplicator{threshold: duplicateSimilarityThreshold}
}

func (d *IssueDeduplicator) similarity(a, b string) float64 {
	return levenshtein.Similarity(strings.ToLower(a), strings.ToLower(b), nil)
}

// Deduplicate walks findings in order and compares each against the accepted
// uniques. A match above the threshold is folded in: if the newcomer carries
// a higher severity the accepted entry is upgraded in place, otherwise the
// newcomer is dropped. O(n²), fine for the few dozen findings a review
// produces.
func (d *IssueDeduplicator) Deduplicate(findings []Finding) []Finding {
	var unique []Finding
	for _, f := range findings {
		dupIdx := -1
		for i := range unique {
			if d.similarity(f.Text, unique[i].Text) > d.threshold {
				dupIdx = i
				break
			}
		}
		if dupIdx < 0 {
			unique = append(unique, f)
			continue
		}
		if severityRank[f.Severity] > severityRank[unique[dupIdx].Severity] {
			unique[dupIdx].Severity = f.Severity
		}
	}
	return unique
}

// Prioritize buckets findings by severity, preserving their order.
func (d *IssueDeduplicator) Prioritize(findings []Finding) map[string][]Finding {
	buckets := map[string][]Finding{
		"major":    {},
		"moderate": {},
		"minor":    {},
	}
	for _, f := range findings {
		severity := f.Severity
		if _, ok := buckets[severity]; !ok {
			severity = "minor"
		}
		buckets[severity] = append(buckets[severity], f)
	}
	return buckets
}

// collectFindings gathers findings from all critiques in fan-out order.
func collectFindings(critiques []*Critique) []Finding {
	var all []Finding
	for _, c := range critiques {
		all = append(all, c.Findings...)
	}
	return all
}
