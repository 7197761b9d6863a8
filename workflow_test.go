package main

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
)

const goodCritique = `The manuscript is methodically sound overall. Line 2 would benefit from a
clearer justification of the sampling frame, and Line 5 overstates the effect.

FINDINGS:
- [moderate] [methods] Sampling frame justification is thin (Line 2) | Quote: "sampled whoever responded"

Score: 8/10`

const synthNarrative = `## Executive Summary
A competent study with a clear contribution; revisions needed around sampling.`

type countingEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *countingEmbedder) CreateEmbeddings(context.Context, string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return nil
}

func (e *countingEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func newTestWorkflow(t *testing.T, gen Generator, embedder Embedder) (*Workflow, *sql.DB) {
	t.Helper()
	db := newTestDB(t)
	runner := NewCritiqueRunner(gen, 0)
	synth := NewSynthesizer(gen, NewIssueDeduplicator())
	return NewWorkflow(db, NewDomainClassifier(nil), runner, synth, embedder), db
}

func testSubmission(id string) Submission {
	return Submission{
		ID:      id,
		Title:   "Sampling Effects in Survey Research",
		Content: "We sampled whoever responded to the survey.\nThe statistical regression showed significance.\nVariance and sampling distribution were analyzed.",
		Pages:   4,
	}
}

func TestExecuteReviewAlwaysProducesReport(t *testing.T) {
	gen := &fakeGen{respond: func(string, string) (string, error) {
		return "", errors.New("provider always down")
	}}
	w, db := newTestWorkflow(t, gen, nil)

	result := w.ExecuteReview(context.Background(), testSubmission("sub-fail"))

	if strings.TrimSpace(result.FinalReport) == "" {
		t.Fatalf("expected non-empty report even when generation always fails")
	}
	if result.FinalReport != degradedSynthesisReport {
		t.Fatalf("expected degraded report, got %q", result.FinalReport)
	}
	if result.Domain == "" {
		t.Fatalf("expected a detected domain")
	}

	// 4 critiques + 4 retried critiques + 1 synthesis attempt.
	if gen.callCount() != 9 {
		t.Fatalf("expected 9 generator calls, got %d", gen.callCount())
	}

	// Degraded synthesize keeps the checkpoint for a future resume.
	cp, err := LoadCheckpoint(db, "sub-fail")
	if err != nil || cp == nil {
		t.Fatalf("expected checkpoint retained on degraded run, cp=%v err=%v", cp, err)
	}
}

func TestRetryFiresExactlyOnce(t *testing.T) {
	gen := &fakeGen{respond: func(systemPrompt, _ string) (string, error) {
		if systemPrompt == synthesisSystemPrompt {
			return synthNarrative, nil
		}
		// Parses fine but fails every quality gate check.
		return "meh", nil
	}}
	w, _ := newTestWorkflow(t, gen, nil)

	result := w.ExecuteReview(context.Background(), testSubmission("sub-retry"))

	if result.FinalReport != synthNarrative {
		t.Fatalf("expected synthesis to proceed after one retry, got %q", result.FinalReport)
	}
	// Exactly one whole-stage retry: 4 + 4 critique calls, then 1 synthesis.
	if gen.callCount() != 9 {
		t.Fatalf("expected 9 generator calls (one retry only), got %d", gen.callCount())
	}
}

func TestRetrySkippedWhenCritiquesPassGate(t *testing.T) {
	gen := &fakeGen{respond: func(systemPrompt, _ string) (string, error) {
		if systemPrompt == synthesisSystemPrompt {
			return synthNarrative, nil
		}
		return goodCritique, nil
	}}
	w, _ := newTestWorkflow(t, gen, nil)

	result := w.ExecuteReview(context.Background(), testSubmission("sub-clean"))

	if result.FinalReport != synthNarrative {
		t.Fatalf("expected narrative report, got %q", result.FinalReport)
	}
	if gen.callCount() != 5 {
		t.Fatalf("expected 5 generator calls (no retry), got %d", gen.callCount())
	}
	if result.Score != 8.0 {
		t.Fatalf("expected weighted score 8.0 from uniform critiques, got %v", result.Score)
	}
	if result.Decision != "Accept" {
		t.Fatalf("expected Accept decision, got %q", result.Decision)
	}
}

func TestSingleTaskIsolation(t *testing.T) {
	gen := &fakeGen{respond: func(systemPrompt, _ string) (string, error) {
		if systemPrompt == methodologySystemPrompt {
			return "", errors.New("methodology provider down")
		}
		return goodCritique, nil
	}}
	w, _ := newTestWorkflow(t, gen, nil)

	state := &ReviewState{
		SubmissionID: "sub-iso",
		Title:        "T",
		Content:      "Line content for review.",
		Domain:       "general",
	}
	w.parallelCritique(context.Background(), state)

	if state.Methodology == nil || state.Methodology.Content != "Methodology review failed due to internal error." {
		t.Fatalf("expected methodology failure marker, got %+v", state.Methodology)
	}
	for _, agent := range []AgentType{AgentLiterature, AgentClarity, AgentEthics} {
		c := state.critique(agent)
		if c == nil || c.Content != goodCritique {
			t.Fatalf("expected %s critique unaffected, got %+v", agent, c)
		}
		if c.Score != 8 {
			t.Fatalf("expected %s score 8, got %v", agent, c.Score)
		}
	}
}

func TestCheckpointResumeSkipsEarlierStages(t *testing.T) {
	gen := &fakeGen{respond: func(systemPrompt, _ string) (string, error) {
		if systemPrompt == synthesisSystemPrompt {
			return synthNarrative, nil
		}
		return goodCritique, nil
	}}
	embedder := &countingEmbedder{}
	w, db := newTestWorkflow(t, gen, embedder)

	sub := testSubmission("sub-resume")
	saved := ReviewState{
		SubmissionID: sub.ID,
		Title:        sub.Title,
		Content:      sub.Content,
		Pages:        sub.Pages,
		Domain:       "statistics",
	}
	if err := SaveCheckpoint(db, sub.ID, stageParallelCritique, saved); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	result := w.ExecuteReview(context.Background(), sub)

	if embedder.callCount() != 0 {
		t.Fatalf("expected create_embeddings skipped on resume, calls=%d", embedder.callCount())
	}
	if result.FinalReport != synthNarrative {
		t.Fatalf("expected resumed run to complete, got %q", result.FinalReport)
	}

	// A fresh run does execute the earlier stages.
	fresh := testSubmission("sub-fresh")
	w.ExecuteReview(context.Background(), fresh)
	if embedder.callCount() != 1 {
		t.Fatalf("expected one embeddings call on fresh run, calls=%d", embedder.callCount())
	}
}

func TestCheckpointDeletedOnTerminalSuccess(t *testing.T) {
	gen := &fakeGen{respond: func(systemPrompt, _ string) (string, error) {
		if systemPrompt == synthesisSystemPrompt {
			return synthNarrative, nil
		}
		return goodCritique, nil
	}}
	w, db := newTestWorkflow(t, gen, nil)

	sub := testSubmission("sub-done")
	w.ExecuteReview(context.Background(), sub)

	cp, err := LoadCheckpoint(db, sub.ID)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if cp != nil {
		t.Fatalf("expected checkpoint deleted on success, got stage=%s", cp.Stage)
	}
}

func TestCheckpointRetainedOnDegradedSynthesis(t *testing.T) {
	gen := &fakeGen{respond: func(systemPrompt, _ string) (string, error) {
		if systemPrompt == synthesisSystemPrompt {
			return "", errors.New("synthesis down")
		}
		return goodCritique, nil
	}}
	w, db := newTestWorkflow(t, gen, nil)

	sub := testSubmission("sub-degraded")
	result := w.ExecuteReview(context.Background(), sub)

	if result.FinalReport != degradedSynthesisReport {
		t.Fatalf("expected degraded report, got %q", result.FinalReport)
	}
	cp, err := LoadCheckpoint(db, sub.ID)
	if err != nil || cp == nil {
		t.Fatalf("expected checkpoint retained on degraded synthesis, cp=%v err=%v", cp, err)
	}
	if cp.Stage != stageSynthesize {
		t.Fatalf("expected checkpoint at synthesize stage, got %s", cp.Stage)
	}
}

func TestShouldRetryCritiquesGate(t *testing.T) {
	w := &Workflow{}

	pass := func() *ReviewState {
		s := &ReviewState{}
		for _, agent := range allAgentTypes {
			s.setCritique(agent, &Critique{AgentType: agent, Content: goodCritique, Score: 8})
		}
		return s
	}

	if w.shouldRetryCritiques(pass()) {
		t.Fatalf("expected clean critiques to pass the gate")
	}

	s := pass()
	s.Ethics = nil
	if !w.shouldRetryCritiques(s) {
		t.Fatalf("expected missing slot to fail the gate")
	}

	s = pass()
	s.Clarity.Content = "Clarity review failed due to internal error."
	if !w.shouldRetryCritiques(s) {
		t.Fatalf("expected failure marker to fail the gate")
	}

	s = pass()
	s.Literature.Content = "Too short. Line 1. Score: 9/10"
	if !w.shouldRetryCritiques(s) {
		t.Fatalf("expected sub-100-char critique to fail the gate")
	}

	s = pass()
	s.Methodology.Content = strings.Repeat("no location references here. ", 10) + "Score: 8/10"
	if !w.shouldRetryCritiques(s) {
		t.Fatalf("expected critique without line token to fail the gate")
	}

	// Defaulted score 7 without a literal "Score: 7" means extraction failed.
	s = pass()
	s.Methodology.Content = strings.Repeat("Line 3 is fine and the rest reads well. ", 5)
	s.Methodology.Score = 7
	if !w.shouldRetryCritiques(s) {
		t.Fatalf("expected silent default score to fail the gate")
	}
	s.Methodology.Content += " Score: 7/10"
	if w.shouldRetryCritiques(s) {
		t.Fatalf("expected explicit Score: 7 to pass the gate")
	}
}
