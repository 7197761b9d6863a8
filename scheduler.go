package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const pendingBatchSize = 10

// StartReviewPoller starts a cron-based sweep that picks up pending
// submissions and runs them through the orchestrator.
// The schedule is a standard 5-field cron expression (minute hour day-of-month month day-of-week).
func StartReviewPoller(cfg Config, db *sql.DB, orch *Orchestrator) {
	schedule := strings.TrimSpace(cfg.PollSchedule)
	if schedule == "" {
		log.Println("Review poller disabled (poll_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid poll_schedule '%s': %v, review poller disabled", schedule, err)
		return
	}
	log.Printf("Review poller scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			time.Sleep(next.Sub(now))

			subs, err := GetPendingSubmissions(db, pendingBatchSize)
			if err != nil {
				log.Printf("Review poller query error: %v", err)
				continue
			}
			for _, sub := range subs {
				if err := orch.ProcessSubmission(context.Background(), sub.ID); err != nil {
					if errors.Is(err, ErrTooManyReviews) {
						// Leave it pending; the next sweep retries once a slot frees up.
						log.Printf("Review poller deferred submission=%s: %v", sub.ID, err)
						continue
					}
					log.Printf("Review poller error submission=%s: %v", sub.ID, err)
				}
			}
		}
	}()
}

// StartCleanupSweeper starts a cron-based sweep that re-queues submissions
// stuck in 'running' past the threshold and prunes orphaned checkpoints.
func StartCleanupSweeper(cfg Config, db *sql.DB) {
	schedule := strings.TrimSpace(cfg.CleanupSchedule)
	if schedule == "" {
		log.Println("Cleanup sweeper disabled (cleanup_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid cleanup_schedule '%s': %v, cleanup sweeper disabled", schedule, err)
		return
	}
	log.Printf("Cleanup sweeper scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			time.Sleep(next.Sub(now))

			RunCleanup(cfg, db, time.Now())
		}
	}()
}

// RunCleanup performs one sweep. Stuck 'running' submissions are re-queued
// as pending (their checkpoint lets the next run resume); checkpoints for
// terminal submissions or older than the stale cutoff are deleted.
func RunCleanup(cfg Config, db *sql.DB, now time.Time) {
	cutoff := now.Add(-time.Duration(cfg.StuckRunningMinutes) * time.Minute)

	stuck, err := GetStuckRunning(db, cutoff)
	if err != nil {
		log.Printf("Cleanup stuck-run query error: %v", err)
	} else {
		for _, sub := range stuck {
			if err := UpdateSubmissionStatus(db, sub.ID, StatusPending); err != nil {
				log.Printf("Cleanup requeue error submission=%s: %v", sub.ID, err)
				continue
			}
			log.Printf("Cleanup requeued stuck submission=%s title=%q", sub.ID, sub.Title)
		}
	}

	staleCutoff := now.Add(-24 * time.Hour)
	pruned, err := DeleteOrphanedCheckpoints(db, staleCutoff)
	if err != nil {
		log.Printf("Cleanup checkpoint prune error: %v", err)
	} else if pruned > 0 {
		log.Printf("Cleanup pruned %d orphaned checkpoints", pruned)
	}
}
