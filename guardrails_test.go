package main

import (
	"strings"
	"testing"
)

func TestSanitizeReviewReplacesUnprofessionalTerms(t *testing.T) {
	in := "The methods are Terrible and the figures are garbage, but the idea is sound."
	out := SanitizeReview(in)

	if strings.Contains(strings.ToLower(out), "terrible") {
		t.Fatalf("expected 'terrible' replaced, got %q", out)
	}
	if !strings.Contains(out, "inadequate") {
		t.Fatalf("expected neutral replacement, got %q", out)
	}
	if !strings.Contains(out, "insufficient") {
		t.Fatalf("expected 'garbage' replaced with 'insufficient', got %q", out)
	}
	if !strings.Contains(out, "the idea is sound") {
		t.Fatalf("expected untouched text preserved, got %q", out)
	}
}

func TestSanitizeReviewLeavesCleanTextAlone(t *testing.T) {
	in := "A careful, professional assessment with cited line numbers."
	if out := SanitizeReview(in); out != in {
		t.Fatalf("expected clean text unchanged, got %q", out)
	}
}

func TestValidateSubmission(t *testing.T) {
	violations := ValidateSubmission("short")
	found := false
	for _, v := range violations {
		if v.Type == "content_quality" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected content_quality violation for short text, got %+v", violations)
	}

	long := strings.Repeat("This study was conducted with due care. ", 10)
	if violations := ValidateSubmission(long); len(violations) != 0 {
		t.Fatalf("expected no violations for clean text, got %+v", violations)
	}

	violations = ValidateSubmission(long + " Portions duplicate earlier work, raising plagiarism concerns. Contact author@example.com.")
	var types []string
	for _, v := range violations {
		types = append(types, v.Type)
	}
	joined := strings.Join(types, ",")
	if !strings.Contains(joined, "ethical_concern") {
		t.Fatalf("expected ethical_concern, got %v", types)
	}
	if !strings.Contains(joined, "sensitive_data") {
		t.Fatalf("expected sensitive_data for email address, got %v", types)
	}
}
