package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var ErrReviewTimeout = errors.New("review timed out")
var ErrTooManyReviews = errors.New("too many concurrent reviews for client")

// Orchestrator owns submission lifecycle: admission, status transitions,
// the overall wall-clock timeout, result persistence, report file output,
// and completion notifications. Only "submission not found" and "timeout"
// surface to callers as errors; everything beneath degrades into a report.
type Orchestrator struct {
	cfg      Config
	db       *sql.DB
	workflow *Workflow
	notifier *Notifier

	mu    sync.Mutex
	slots map[string]*semaphore.Weighted
}

func NewOrchestrator(cfg Config, db *sql.DB, workflow *Workflow, notifier *Notifier) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		db:       db,
		workflow: workflow,
		notifier: notifier,
		slots:    make(map[string]*semaphore.Weighted),
	}
}

func (o *Orchestrator) clientSemaphore(clientID string) *semaphore.Weighted {
	o.mu.Lock()
	defer o.mu.Unlock()
	sem, ok := o.slots[clientID]
	if !ok {
		sem = semaphore.NewWeighted(int64(o.cfg.MaxConcurrentPerClient))
		o.slots[clientID] = sem
	}
	return sem
}

// ProcessSubmission runs one review end to end.
func (o *Orchestrator) ProcessSubmission(ctx context.Context, submissionID string) error {
	sub, err := GetSubmission(o.db, submissionID)
	if err != nil {
		if errors.Is(err, ErrSubmissionNotFound) {
			return fmt.Errorf("submission %s: %w", submissionID, err)
		}
		return fmt.Errorf("loading submission %s: %w", submissionID, err)
	}

	sem := o.clientSemaphore(sub.ClientID)
	if !sem.TryAcquire(1) {
		return fmt.Errorf("client %s: %w", sub.ClientID, ErrTooManyReviews)
	}
	defer sem.Release(1)

	if violations := ValidateSubmission(sub.Content); len(violations) > 0 {
		for _, v := range violations {
			log.Printf("orchestrator guardrail submission=%s type=%s severity=%s msg=%q", sub.ID, v.Type, v.Severity, v.Message)
		}
	}

	if err := UpdateSubmissionStatus(o.db, sub.ID, StatusRunning); err != nil {
		return fmt.Errorf("marking submission %s running: %w", sub.ID, err)
	}
	log.Printf("orchestrator review started submission=%s client=%s title=%q", sub.ID, sub.ClientID, sub.Title)

	timeout := time.Duration(o.cfg.ReviewTimeoutSeconds) * time.Second
	done := make(chan ReviewResult, 1)
	go func() {
		// The workflow keeps the parent context, not the deadline: on
		// timeout we abandon the run rather than cancel in-flight
		// provider calls, so a late result can still be logged.
		done <- o.workflow.ExecuteReview(ctx, sub)
	}()

	var result ReviewResult
	select {
	case result = <-done:
	case <-time.After(timeout):
		log.Printf("orchestrator review timed out submission=%s timeout=%s", sub.ID, timeout)
		if err := FailSubmission(o.db, sub.ID, "review timed out", time.Now().UTC()); err != nil {
			log.Printf("orchestrator fail update error submission=%s err=%v", sub.ID, err)
		}
		o.notifier.NotifyFailed(sub, "review timed out")
		return fmt.Errorf("submission %s after %s: %w", sub.ID, timeout, ErrReviewTimeout)
	case <-ctx.Done():
		if err := FailSubmission(o.db, sub.ID, ctx.Err().Error(), time.Now().UTC()); err != nil {
			log.Printf("orchestrator fail update error submission=%s err=%v", sub.ID, err)
		}
		return ctx.Err()
	}

	completedAt := time.Now().UTC()
	if err := CompleteSubmission(o.db, sub.ID, result.FinalReport, result.Domain, completedAt); err != nil {
		return fmt.Errorf("committing submission %s: %w", sub.ID, err)
	}
	log.Printf("orchestrator review completed submission=%s domain=%s score=%.1f decision=%q", sub.ID, result.Domain, result.Score, result.Decision)

	if path, err := WriteReportFile(o.cfg.ReportOutputDir, sub, result); err != nil {
		log.Printf("orchestrator report file error submission=%s err=%v", sub.ID, err)
	} else {
		log.Printf("orchestrator report file written submission=%s path=%s", sub.ID, path)
	}
	o.notifier.NotifyCompleted(sub, result)
	return nil
}

// WriteReportFile stores the final report as <title-slug>_<id8>.md under the
// configured output directory.
func WriteReportFile(outputDir string, sub Submission, result ReviewResult) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	id8 := sub.ID
	if len(id8) > 8 {
		id8 = id8[:8]
	}
	filename := fmt.Sprintf("%s_%s.md", titleSlug(sub.Title), id8)
	path := filepath.Join(outputDir, filename)

	var b strings.Builder
	fmt.Fprintf(&b, "# Review: %s\n\n", sub.Title)
	fmt.Fprintf(&b, "Domain: %s  \nScore: %.1f/10  \nDecision: %s\n\n", result.Domain, result.Score, result.Decision)
	b.WriteString(result.FinalReport)
	b.WriteString("\n")
	return path, os.WriteFile(path, []byte(b.String()), 0644)
}

func titleSlug(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "review"
	}
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	return slug
}
