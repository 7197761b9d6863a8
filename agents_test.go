package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// fakeGen scripts Generator responses for tests. respond receives the system
// and user prompts and returns the narrative or an error.
type fakeGen struct {
	mu      sync.Mutex
	calls   int
	respond func(systemPrompt, userPrompt string) (string, error)
}

func (g *fakeGen) Generate(_ context.Context, systemPrompt, userPrompt string) (string, LLMUsage, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	out, err := g.respond(systemPrompt, userPrompt)
	return out, LLMUsage{}, err
}

func (g *fakeGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestExtractScore(t *testing.T) {
	cases := []struct {
		text string
		want float64
	}{
		{"Solid work overall.\nScore: 8/10", 8},
		{"Score: 3", 3},
		{"no score line at all", 7},
		{"Score: 15/10", 7},
		{"Score: 0/10", 7},
	}
	for _, tc := range cases {
		if got := extractScore(tc.text); got != tc.want {
			t.Fatalf("extractScore(%q) = %v, expected %v", tc.text, got, tc.want)
		}
	}
}

func TestCritiqueFailureText(t *testing.T) {
	if got := critiqueFailureText(AgentMethodology); got != "Methodology review failed due to internal error." {
		t.Fatalf("unexpected failure text: %q", got)
	}
	if got := critiqueFailureText(AgentEthics); got != "Ethics review failed due to internal error." {
		t.Fatalf("unexpected failure text: %q", got)
	}
}

func TestParseFindings(t *testing.T) {
	response := `The methods need work, see Line 3.

FINDINGS:
- [major] [methods] No control group described (Line 3) | Quote: "we compared outcomes"
- [minor] Figure captions are vague
not a finding line
Score: 6/10`

	findings := parseFindings(response)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d: %+v", len(findings), findings)
	}
	first := findings[0]
	if first.Severity != "major" || first.Section != "methods" {
		t.Fatalf("unexpected first finding: %+v", first)
	}
	if first.LineRef != "Line 3" {
		t.Fatalf("expected line ref extracted, got %q", first.LineRef)
	}
	if len(first.Highlights) != 1 || first.Highlights[0].Text != "we compared outcomes" {
		t.Fatalf("expected quote highlight, got %+v", first.Highlights)
	}
	if findings[1].Severity != "minor" || len(findings[1].Highlights) != 0 {
		t.Fatalf("unexpected second finding: %+v", findings[1])
	}
}

func TestCritiqueRunnerConvertsFailures(t *testing.T) {
	gen := &fakeGen{respond: func(string, string) (string, error) {
		return "", errors.New("provider down")
	}}
	runner := NewCritiqueRunner(gen, 0)

	state := &ReviewState{SubmissionID: "s1", Title: "T", Content: "body", Domain: "medical"}
	c := runner.Run(context.Background(), AgentClarity, state)

	if c.Content != "Clarity review failed due to internal error." {
		t.Fatalf("expected uniform failure string, got %q", c.Content)
	}
	if c.Score != defaultCritiqueScore {
		t.Fatalf("expected default score on failure, got %v", c.Score)
	}
	if c.Weight != AgentWeights("medical")[AgentClarity] {
		t.Fatalf("expected domain weight attached, got %v", c.Weight)
	}
}

func TestCritiqueRunnerParsesResponse(t *testing.T) {
	content := "Intro text.\nThe study cohort was recruited by email.\nClosing text."
	response := `Assessment: recruitment is underdescribed, see Line 2.

FINDINGS:
- [moderate] [methods] Recruitment method may bias the cohort (Line 2) | Quote: "recruited by email"

Score: 6/10`

	var gotSystem, gotUser string
	gen := &fakeGen{respond: func(systemPrompt, userPrompt string) (string, error) {
		gotSystem, gotUser = systemPrompt, userPrompt
		return response, nil
	}}
	runner := NewCritiqueRunner(gen, 0)

	state := &ReviewState{SubmissionID: "s1", Title: "Cohort Study", Content: content, Pages: 2, Domain: "medical"}
	c := runner.Run(context.Background(), AgentMethodology, state)

	if c.Score != 6 {
		t.Fatalf("expected score 6, got %v", c.Score)
	}
	if c.Weight != 0.4 {
		t.Fatalf("expected medical methodology weight 0.4, got %v", c.Weight)
	}
	if len(c.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %+v", c.Findings)
	}
	h := c.Findings[0].Highlights
	if len(h) != 1 || h[0].LineNumber != 2 {
		t.Fatalf("expected validated highlight on line 2, got %+v", h)
	}

	if gotSystem != methodologySystemPrompt {
		t.Fatalf("expected methodology system prompt")
	}
	if !strings.Contains(gotUser, "1: Intro text.") {
		t.Fatalf("expected line-numbered content in prompt, got %s", gotUser)
	}
	if !strings.Contains(gotUser, "Document Title: Cohort Study") {
		t.Fatalf("expected title in prompt")
	}
	if !strings.Contains(gotUser, "randomization") {
		t.Fatalf("expected medical methodology criteria in prompt")
	}
}

func TestCritiqueRunnerTruncatesContent(t *testing.T) {
	long := strings.Repeat("w ", 4000) // 8000 chars, above both budgets
	var gotUser string
	gen := &fakeGen{respond: func(_, userPrompt string) (string, error) {
		gotUser = userPrompt
		return "fine. Line 1. Score: 8/10", nil
	}}
	runner := NewCritiqueRunner(gen, 0)

	state := &ReviewState{SubmissionID: "s1", Content: long, Domain: "general"}
	runner.Run(context.Background(), AgentEthics, state)

	if !strings.Contains(gotUser, "[Content truncated for analysis]") {
		t.Fatalf("expected truncation marker in prompt")
	}
	if len(gotUser) > 6000 {
		t.Fatalf("expected ethics prompt bounded by 4000-char budget, got %d chars", len(gotUser))
	}
}
