package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var ErrSubmissionNotFound = errors.New("submission not found")

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		content       TEXT NOT NULL,
		pages         INTEGER DEFAULT 0,
		paragraphs    INTEGER DEFAULT 0,
		status        TEXT NOT NULL DEFAULT 'pending',
		domain        TEXT DEFAULT '',
		final_report  TEXT DEFAULT '',
		error_message TEXT DEFAULT '',
		client_id     TEXT DEFAULT '',
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
		completed_at  DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
	CREATE INDEX IF NOT EXISTS idx_submissions_created_at ON submissions(created_at);

	CREATE TABLE IF NOT EXISTS workflow_checkpoints (
		submission_id TEXT PRIMARY KEY,
		stage         TEXT NOT NULL,
		state         TEXT NOT NULL,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// InsertSubmission stores a new manuscript and returns its id. A blank id
// gets a generated UUID.
func InsertSubmission(db *sql.DB, sub Submission) (string, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = StatusPending
	}
	_, err := db.Exec(
		`INSERT INTO submissions (id, title, content, pages, paragraphs, status, client_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Title, sub.Content, sub.Pages, sub.Paragraphs, string(sub.Status), sub.ClientID,
	)
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}

func GetSubmission(db *sql.DB, id string) (Submission, error) {
	var sub Submission
	var status string
	var completedAt sql.NullTime
	err := db.QueryRow(
		`SELECT id, title, content, pages, paragraphs, status, domain, final_report, error_message, client_id, created_at, completed_at
		 FROM submissions WHERE id = ?`,
		id,
	).Scan(
		&sub.ID, &sub.Title, &sub.Content, &sub.Pages, &sub.Paragraphs, &status,
		&sub.Domain, &sub.FinalReport, &sub.ErrorMessage, &sub.ClientID,
		&sub.CreatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return Submission{}, ErrSubmissionNotFound
	}
	if err != nil {
		return Submission{}, err
	}
	sub.Status = TaskStatus(status)
	if completedAt.Valid {
		sub.CompletedAt = completedAt.Time
	}
	return sub, nil
}

func UpdateSubmissionStatus(db *sql.DB, id string, status TaskStatus) error {
	res, err := db.Exec(`UPDATE submissions SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// CompleteSubmission commits the terminal result of a review in one update.
func CompleteSubmission(db *sql.DB, id, finalReport, domain string, completedAt time.Time) error {
	_, err := db.Exec(
		`UPDATE submissions SET status = ?, final_report = ?, domain = ?, error_message = '', updated_at = CURRENT_TIMESTAMP, completed_at = ?
		 WHERE id = ?`,
		string(StatusCompleted), finalReport, domain, completedAt, id,
	)
	return err
}

func FailSubmission(db *sql.DB, id, errMsg string, completedAt time.Time) error {
	_, err := db.Exec(
		`UPDATE submissions SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP, completed_at = ? WHERE id = ?`,
		string(StatusFailed), errMsg, completedAt, id,
	)
	return err
}

func GetPendingSubmissions(db *sql.DB, limit int) ([]Submission, error) {
	rows, err := db.Query(
		`SELECT id, title, content, pages, paragraphs, status, domain, final_report, error_message, client_id, created_at, completed_at
		 FROM submissions WHERE status = ? ORDER BY created_at, id LIMIT ?`,
		string(StatusPending), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// GetStuckRunning returns submissions that have sat in 'running' since before
// the cutoff, usually because a previous process died mid-review.
func GetStuckRunning(db *sql.DB, cutoff time.Time) ([]Submission, error) {
	rows, err := db.Query(
		`SELECT id, title, content, pages, paragraphs, status, domain, final_report, error_message, client_id, created_at, completed_at
		 FROM submissions WHERE status = ? AND updated_at < ? ORDER BY created_at, id`,
		string(StatusRunning), cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

func scanSubmissions(rows *sql.Rows) ([]Submission, error) {
	var subs []Submission
	for rows.Next() {
		var sub Submission
		var status string
		var completedAt sql.NullTime
		err := rows.Scan(
			&sub.ID, &sub.Title, &sub.Content, &sub.Pages, &sub.Paragraphs, &status,
			&sub.Domain, &sub.FinalReport, &sub.ErrorMessage, &sub.ClientID,
			&sub.CreatedAt, &completedAt,
		)
		if err != nil {
			return nil, err
		}
		sub.Status = TaskStatus(status)
		if completedAt.Valid {
			sub.CompletedAt = completedAt.Time
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// SaveCheckpoint upserts the single checkpoint row for a submission. Callers
// treat failures as soft: a lost checkpoint costs a resume, not the review.
func SaveCheckpoint(db *sql.DB, submissionID, stage string, state ReviewState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling checkpoint state: %w", err)
	}
	_, err = db.Exec(
		`INSERT INTO workflow_checkpoints (submission_id, stage, state, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(submission_id) DO UPDATE SET stage = excluded.stage, state = excluded.state, created_at = excluded.created_at`,
		submissionID, stage, string(blob), time.Now().UTC(),
	)
	return err
}

// LoadCheckpoint returns the stored checkpoint for a submission, or
// (nil, nil) when none exists.
func LoadCheckpoint(db *sql.DB, submissionID string) (*Checkpoint, error) {
	var cp Checkpoint
	var blob string
	err := db.QueryRow(
		`SELECT submission_id, stage, state, created_at FROM workflow_checkpoints WHERE submission_id = ?`,
		submissionID,
	).Scan(&cp.SubmissionID, &cp.Stage, &blob, &cp.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(blob), &cp.State); err != nil {
		return nil, fmt.Errorf("unmarshaling checkpoint state: %w", err)
	}
	return &cp, nil
}

func DeleteCheckpoint(db *sql.DB, submissionID string) error {
	_, err := db.Exec(`DELETE FROM workflow_checkpoints WHERE submission_id = ?`, submissionID)
	return err
}

// DeleteOrphanedCheckpoints prunes checkpoints whose submission already
// reached a terminal status, plus any older than the cutoff.
func DeleteOrphanedCheckpoints(db *sql.DB, cutoff time.Time) (int64, error) {
	res, err := db.Exec(
		`DELETE FROM workflow_checkpoints
		 WHERE created_at < ?
		    OR submission_id IN (SELECT id FROM submissions WHERE status IN (?, ?))`,
		cutoff, string(StatusCompleted), string(StatusFailed),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
