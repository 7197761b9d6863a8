package main

import (
	"log"
	"regexp"
	"strings"
)

type GuardrailViolation struct {
	Type     string
	Severity string // "low", "medium", "high", "critical"
	Message  string
	Action   string // "warn", "block", "sanitize"
}

var ethicalKeywords = []string{
	"plagiarism",
	"fabrication",
	"falsification",
	"misconduct",
	"duplicate",
	"self-plagiarism",
	"ghost author",
	"gift author",
}

var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:patient|participant|subject)\s+(?:name|id|identifier)\b`),
	regexp.MustCompile(`(?i)\b(?:email|phone|address|ssn|social security)\b`),
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
}

var biasPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:obviously|clearly|any fool)\b`),
	regexp.MustCompile(`(?i)\b(?:always|never|all|none)\s+(?:researchers|studies|papers)\b`),
}

// toneReplacements maps unprofessional review language to neutral wording.
var toneReplacements = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)terrible`), "inadequate"},
	{regexp.MustCompile(`(?i)awful`), "problematic"},
	{regexp.MustCompile(`(?i)stupid`), "unclear"},
	{regexp.MustCompile(`(?i)ridiculous`), "questionable"},
	{regexp.MustCompile(`(?i)garbage`), "insufficient"},
}

// ValidateSubmission screens incoming manuscript text for ethical keywords,
// sensitive data, and minimum length. Violations are advisory; the review
// proceeds regardless.
func ValidateSubmission(content string) []GuardrailViolation {
	var violations []GuardrailViolation
	lower := strings.ToLower(content)

	for _, keyword := range ethicalKeywords {
		if strings.Contains(lower, keyword) {
			violations = append(violations, GuardrailViolation{
				Type:     "ethical_concern",
				Severity: "high",
				Message:  "Potential ethical issue detected: " + keyword,
				Action:   "warn",
			})
		}
	}
	for _, re := range sensitivePatterns {
		if re.MatchString(content) {
			violations = append(violations, GuardrailViolation{
				Type:     "sensitive_data",
				Severity: "critical",
				Message:  "Potential sensitive/personal data detected",
				Action:   "block",
			})
		}
	}
	if len(strings.TrimSpace(content)) < 100 {
		violations = append(violations, GuardrailViolation{
			Type:     "content_quality",
			Severity: "medium",
			Message:  "Submission too short for meaningful review",
			Action:   "warn",
		})
	}
	return violations
}

// SanitizeReview rewrites unprofessional terms in a generated review and
// logs bias-indicator matches. The text always comes back usable.
func SanitizeReview(review string) string {
	sanitized := review
	for _, r := range toneReplacements {
		if r.re.MatchString(sanitized) {
			log.Printf("guardrails tone replace term=%s", r.re.String())
			sanitized = r.re.ReplaceAllString(sanitized, r.replacement)
		}
	}
	for _, re := range biasPatterns {
		if re.MatchString(sanitized) {
			log.Printf("guardrails bias indicator pattern=%s", re.String())
		}
	}
	return sanitized
}
