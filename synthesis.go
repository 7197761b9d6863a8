package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
)

const synthesisSystemPrompt = `You are the Synthesis Agent for an academic journal review panel.
You combine four specialist critiques into one professional, balanced,
section-specific review report. Be constructive and specific; always cite
quoted text and line numbers carried in the analysis you are given.`

// Synthesizer turns four critiques into one report and decision.
type Synthesizer struct {
	gen   Generator
	dedup *IssueDeduplicator
}

func NewSynthesizer(gen Generator, dedup *IssueDeduplicator) *Synthesizer {
	return &Synthesizer{gen: gen, dedup: dedup}
}

// WeightedScore computes the weighted average of critique scores, rounded to
// one decimal. A critique missing its weight falls back to the domain's
// default weight for that analysis type.
func WeightedScore(critiques []*Critique, domain string) float64 {
	domainWeights := AgentWeights(domain)
	totalScore := 0.0
	totalWeight := 0.0
	for _, c := range critiques {
		weight := c.Weight
		if weight == 0 {
			weight = domainWeights[c.AgentType]
		}
		totalScore += c.Score * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return math.Round(totalScore/totalWeight*10) / 10
}

func DecisionFor(score float64) string {
	switch {
	case score >= 8.0:
		return "Accept"
	case score >= 6.5:
		return "Minor Revisions"
	case score >= 4.0:
		return "Major Revisions"
	default:
		return "Reject"
	}
}

// GenerateReport deduplicates findings, builds the bounded synthesis prompt,
// and asks the generator for the final narrative. The narrative passes
// through the guardrails sanitizer before being returned.
func (s *Synthesizer) GenerateReport(ctx context.Context, state *ReviewState) (string, error) {
	critiques := state.critiques()
	unique := s.dedup.Deduplicate(collectFindings(critiques))
	buckets := s.dedup.Prioritize(unique)

	score := WeightedScore(critiques, state.Domain)
	decision := DecisionFor(score)

	prompt := buildSynthesisPrompt(state, critiques, buckets, score, decision)
	narrative, usage, err := s.gen.Generate(ctx, synthesisSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("generating synthesis narrative: %w", err)
	}
	log.Printf("synthesis done submission=%s score=%.1f decision=%q size=%d tokens=%d",
		state.SubmissionID, score, decision, len(narrative), usage.TotalTokens())

	return SanitizeReview(narrative), nil
}

const moderateDetailLimit = 5
const moderateSnippetChars = 50

// buildSynthesisPrompt embeds agent scores and the prioritized issue lists.
// Major issues appear in full; moderate issues are capped at five detailed
// entries with short quote snippets; minor issues are a count only. This
// keeps the prompt bounded no matter how long the manuscript is.
func buildSynthesisPrompt(state *ReviewState, critiques []*Critique, buckets map[string][]Finding, score float64, decision string) string {
	var b strings.Builder

	b.WriteString("AGENT SCORES:\n")
	for _, c := range critiques {
		fmt.Fprintf(&b, "- %s: %.0f/10\n", critiqueStrategies[c.AgentType].displayName, c.Score)
	}

	b.WriteString("\nTOP ISSUES WITH QUOTED TEXT:\n")

	major := buckets["major"]
	if len(major) > 0 {
		b.WriteString("\nMAJOR ISSUES (require immediate attention):\n")
		for _, issue := range major {
			writeIssueLine(&b, issue, 0)
		}
	}

	moderate := buckets["moderate"]
	if len(moderate) > 0 {
		fmt.Fprintf(&b, "\nMODERATE ISSUES (top %d of %d):\n", min(moderateDetailLimit, len(moderate)), len(moderate))
		for i, issue := range moderate {
			if i >= moderateDetailLimit {
				break
			}
			writeIssueLine(&b, issue, moderateSnippetChars)
		}
		if len(moderate) > moderateDetailLimit {
			fmt.Fprintf(&b, "- Plus %d additional moderate issues across sections\n", len(moderate)-moderateDetailLimit)
		}
	}

	minor := buckets["minor"]
	if len(minor) > 0 {
		fmt.Fprintf(&b, "\nMINOR SUGGESTIONS (%d items): Enhancement opportunities across sections\n", len(minor))
	}

	weights := AgentWeights(state.Domain)
	return fmt.Sprintf(`Generate a professional, section-specific academic review report.

MANUSCRIPT: %s
DOMAIN: %s
OVERALL SCORE: %.1f/10 | DECISION: %s
ISSUE SUMMARY: %d major, %d moderate, %d minor

DEDUPLICATED ANALYSIS:
%s

CREATE STRUCTURED REPORT:

## Executive Summary
- Score: %.1f/10, Decision: %s
- Brief assessment highlighting main strengths and key improvement areas

## Critical Issues (%d items)
- List each critical issue with exact quoted text, line numbers and section references

## Important Improvements (%d items)
- Show the top issues with quoted text and concrete fixes; group the rest by section

## Minor Suggestions (%d items)
- List optional improvements with section references

## Manuscript Strengths
- Highlight specific good practices with examples

## Score Breakdown
Methodology: %.0f%% | Literature: %.0f%% | Clarity: %.0f%% | Ethics: %.0f%%

Prioritize showing exact quoted text for top issues.`,
		state.Title, state.Domain, score, decision,
		len(major), len(moderate), len(minor),
		b.String(),
		score, decision,
		len(major), len(moderate), len(minor),
		weights[AgentMethodology]*100, weights[AgentLiterature]*100, weights[AgentClarity]*100, weights[AgentEthics]*100,
	)
}

func writeIssueLine(b *strings.Builder, issue Finding, snippetChars int) {
	section := issue.Section
	if section == "" {
		section = "unknown"
	}
	quoted := ""
	if len(issue.Highlights) > 0 {
		text := issue.Highlights[0].Text
		if snippetChars > 0 && len(text) > snippetChars {
			text = text[:snippetChars] + "..."
		}
		quoted = fmt.Sprintf(" Quote: %q", text)
	}
	fmt.Fprintf(b, "- [%s, %s] %s%s\n", titleCase(section), issue.LineRef, issue.Text, quoted)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
