package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestOrchestrator(t *testing.T, gen Generator, cfg Config) *Orchestrator {
	t.Helper()
	db := newTestDB(t)
	if cfg.ReviewTimeoutSeconds == 0 {
		cfg.ReviewTimeoutSeconds = 30
	}
	if cfg.MaxConcurrentPerClient == 0 {
		cfg.MaxConcurrentPerClient = 2
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = t.TempDir()
	}
	w := NewWorkflow(db, NewDomainClassifier(nil), NewCritiqueRunner(gen, 0), NewSynthesizer(gen, NewIssueDeduplicator()), nil)
	return NewOrchestrator(cfg, db, w, nil)
}

func happyGen() *fakeGen {
	return &fakeGen{respond: func(systemPrompt, _ string) (string, error) {
		if systemPrompt == synthesisSystemPrompt {
			return synthNarrative, nil
		}
		return goodCritique, nil
	}}
}

func TestProcessSubmissionNotFound(t *testing.T) {
	orch := newTestOrchestrator(t, happyGen(), Config{})

	err := orch.ProcessSubmission(context.Background(), "no-such-id")
	if !errors.Is(err, ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
}

func TestProcessSubmissionCompletesAndWritesReport(t *testing.T) {
	reportDir := t.TempDir()
	orch := newTestOrchestrator(t, happyGen(), Config{ReportOutputDir: reportDir})

	id := insertTestSubmission(t, orch.db, "Gut Microbiome Study", "Patients in the clinical trial cohort showed improved outcomes after treatment.", "client-1")

	if err := orch.ProcessSubmission(context.Background(), id); err != nil {
		t.Fatalf("ProcessSubmission failed: %v", err)
	}

	sub, err := GetSubmission(orch.db, id)
	if err != nil {
		t.Fatalf("GetSubmission failed: %v", err)
	}
	if sub.Status != StatusCompleted {
		t.Fatalf("expected completed status, got %s", sub.Status)
	}
	if sub.FinalReport != synthNarrative {
		t.Fatalf("expected final report persisted, got %q", sub.FinalReport)
	}
	if sub.Domain == "" {
		t.Fatalf("expected domain persisted")
	}
	if sub.CompletedAt.IsZero() {
		t.Fatalf("expected completed_at set")
	}

	want := filepath.Join(reportDir, fmt.Sprintf("gut-microbiome-study_%s.md", id[:8]))
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("expected report file at %s: %v", want, err)
	}
	if !strings.Contains(string(data), "# Review: Gut Microbiome Study") {
		t.Fatalf("report file missing header, got %q", string(data))
	}
	if !strings.Contains(string(data), synthNarrative) {
		t.Fatalf("report file missing narrative")
	}
}

func TestProcessSubmissionTimeout(t *testing.T) {
	gen := &fakeGen{respond: func(string, string) (string, error) {
		time.Sleep(3 * time.Second)
		return goodCritique, nil
	}}
	orch := newTestOrchestrator(t, gen, Config{ReviewTimeoutSeconds: 1})

	id := insertTestSubmission(t, orch.db, "Slow Paper", "Enough content to get through admission checks.", "client-1")

	start := time.Now()
	err := orch.ProcessSubmission(context.Background(), id)
	if !errors.Is(err, ErrReviewTimeout) {
		t.Fatalf("expected ErrReviewTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 3*time.Second {
		t.Fatalf("expected return at timeout, not after workflow finished (%s)", elapsed)
	}

	sub, err := GetSubmission(orch.db, id)
	if err != nil {
		t.Fatalf("GetSubmission failed: %v", err)
	}
	if sub.Status != StatusFailed {
		t.Fatalf("expected failed status after timeout, got %s", sub.Status)
	}
	if sub.ErrorMessage == "" {
		t.Fatalf("expected error message recorded")
	}
}

func TestProcessSubmissionAdmissionControl(t *testing.T) {
	orch := newTestOrchestrator(t, happyGen(), Config{MaxConcurrentPerClient: 1})

	id := insertTestSubmission(t, orch.db, "Queued Paper", "Some manuscript content for review.", "client-busy")

	// Hold the client's only slot so admission must reject.
	sem := orch.clientSemaphore("client-busy")
	if !sem.TryAcquire(1) {
		t.Fatalf("expected to acquire the test slot")
	}
	defer sem.Release(1)

	err := orch.ProcessSubmission(context.Background(), id)
	if !errors.Is(err, ErrTooManyReviews) {
		t.Fatalf("expected ErrTooManyReviews, got %v", err)
	}

	// Rejected submissions stay pending for the next poll.
	sub, gerr := GetSubmission(orch.db, id)
	if gerr != nil {
		t.Fatalf("GetSubmission failed: %v", gerr)
	}
	if sub.Status != StatusPending {
		t.Fatalf("expected pending status after rejection, got %s", sub.Status)
	}

	// A different client is unaffected.
	otherID := insertTestSubmission(t, orch.db, "Other Client Paper", "Separate manuscript content for review.", "client-free")
	if err := orch.ProcessSubmission(context.Background(), otherID); err != nil {
		t.Fatalf("expected other client to proceed, got %v", err)
	}
}

func TestTitleSlug(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Gut Microbiome Study", "gut-microbiome-study"},
		{"  Weird -- Chars!! (v2) ", "weird-chars-v2"},
		{"", "review"},
		{"!!!", "review"},
		{strings.Repeat("a", 80), strings.Repeat("a", 60)},
	}
	for _, tc := range cases {
		if got := titleSlug(tc.title); got != tc.want {
			t.Fatalf("titleSlug(%q) = %q, expected %q", tc.title, got, tc.want)
		}
	}
}
