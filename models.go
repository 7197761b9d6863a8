package main

import "time"

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

type AgentType string

const (
	AgentMethodology AgentType = "methodology"
	AgentLiterature  AgentType = "literature"
	AgentClarity     AgentType = "clarity"
	AgentEthics      AgentType = "ethics"
)

// allAgentTypes is the fan-out order; results slices are indexed by it.
var allAgentTypes = []AgentType{AgentMethodology, AgentLiterature, AgentClarity, AgentEthics}

type Submission struct {
	ID           string
	Title        string
	Content      string
	Pages        int
	Paragraphs   int
	Status       TaskStatus
	Domain       string
	FinalReport  string
	ErrorMessage string
	ClientID     string // submitting client, used for the per-client concurrency cap
	CreatedAt    time.Time
	CompletedAt  time.Time // zero until the review reaches a terminal status
}

// TextHighlight is a quoted span re-located in the manuscript. Positions are
// byte offsets into the original content; Context carries surrounding text.
type TextHighlight struct {
	Text       string `json:"text"`
	StartPos   int    `json:"start_pos"`
	EndPos     int    `json:"end_pos"`
	Context    string `json:"context"`
	LineNumber int    `json:"line_number"`
}

type Finding struct {
	Text       string          `json:"text"`
	Severity   string          `json:"severity"` // "major", "moderate", or "minor"
	Section    string          `json:"section"`
	LineRef    string          `json:"line_ref"`
	Highlights []TextHighlight `json:"highlights,omitempty"`
}

type Critique struct {
	AgentType AgentType `json:"agent_type"`
	Content   string    `json:"content"`
	Score     float64   `json:"score"`
	Weight    float64   `json:"weight"`
	Findings  []Finding `json:"findings,omitempty"`
}

type StageError struct {
	Stage     string `json:"stage"`
	AgentType string `json:"agent_type,omitempty"`
	Message   string `json:"message"`
}

// SectionInfo describes one detected manuscript section.
type SectionInfo struct {
	Name      string `json:"name"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	WordCount int    `json:"word_count"`
}

// ReviewState is the single state struct threaded through the workflow
// stages and serialized into checkpoints.
type ReviewState struct {
	SubmissionID string        `json:"submission_id"`
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	Pages        int           `json:"pages"`
	Domain       string        `json:"domain"`
	Confidence   float64       `json:"confidence"`
	Sections     []SectionInfo `json:"sections,omitempty"`

	Methodology *Critique `json:"methodology,omitempty"`
	Literature  *Critique `json:"literature,omitempty"`
	Clarity     *Critique `json:"clarity,omitempty"`
	Ethics      *Critique `json:"ethics,omitempty"`

	EmbeddingsCreated bool         `json:"embeddings_created"`
	RetryCount        int          `json:"retry_count"`
	Errors            []StageError `json:"errors,omitempty"`
	FinalReport       string       `json:"final_report,omitempty"`
}

func (s *ReviewState) critique(agent AgentType) *Critique {
	switch agent {
	case AgentMethodology:
		return s.Methodology
	case AgentLiterature:
		return s.Literature
	case AgentClarity:
		return s.Clarity
	case AgentEthics:
		return s.Ethics
	}
	return nil
}

func (s *ReviewState) setCritique(agent AgentType, c *Critique) {
	switch agent {
	case AgentMethodology:
		s.Methodology = c
	case AgentLiterature:
		s.Literature = c
	case AgentClarity:
		s.Clarity = c
	case AgentEthics:
		s.Ethics = c
	}
}

// critiques returns the filled critique slots in fan-out order.
func (s *ReviewState) critiques() []*Critique {
	var out []*Critique
	for _, agent := range allAgentTypes {
		if c := s.critique(agent); c != nil {
			out = append(out, c)
		}
	}
	return out
}

type Checkpoint struct {
	SubmissionID string
	Stage        string
	State        ReviewState
	CreatedAt    time.Time
}
