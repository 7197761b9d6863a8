package main

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"sync"
)

const (
	stageInitialize       = "initialize"
	stageCreateEmbeddings = "create_embeddings"
	stageParallelCritique = "parallel_critique"
	stageSynthesize       = "synthesize"
)

var stageOrder = []string{stageInitialize, stageCreateEmbeddings, stageParallelCritique, stageSynthesize}

// Degraded terminal reports. The workflow always hands back some report text.
const degradedSynthesisReport = "Review completed with errors"
const systemErrorReport = "Review failed due to system error. Please try again or contact support."

const failureMarker = "review failed due to internal error"

type ReviewResult struct {
	FinalReport string
	Domain      string
	Score       float64
	Decision    string
}

// Embedder indexes manuscript text for retrieval-augmented prompts. The
// create_embeddings stage is best-effort: a nil or failing embedder never
// fails the run.
type Embedder interface {
	CreateEmbeddings(ctx context.Context, content string) error
}

// Workflow drives one review through
// initialize -> create_embeddings -> parallel_critique -> synthesize,
// checkpointing before each stage and retrying the critique fan-out at most
// once when the quality gate rejects it.
type Workflow struct {
	db         *sql.DB
	classifier *DomainClassifier
	runner     *CritiqueRunner
	synth      *Synthesizer
	embedder   Embedder
}

func NewWorkflow(db *sql.DB, classifier *DomainClassifier, runner *CritiqueRunner, synth *Synthesizer, embedder Embedder) *Workflow {
	return &Workflow{db: db, classifier: classifier, runner: runner, synth: synth, embedder: embedder}
}

// ExecuteReview runs the workflow for a submission and always returns a
// result: business failures degrade into placeholder reports instead of
// errors. A stored checkpoint resumes the run at its saved stage.
func (w *Workflow) ExecuteReview(ctx context.Context, sub Submission) (result ReviewResult) {
	state := &ReviewState{
		SubmissionID: sub.ID,
		Title:        sub.Title,
		Content:      sub.Content,
		Pages:        sub.Pages,
	}
	startStage := stageInitialize

	if cp, err := LoadCheckpoint(w.db, sub.ID); err != nil {
		log.Printf("workflow checkpoint load failed submission=%s err=%v", sub.ID, err)
	} else if cp != nil {
		state = &cp.State
		startStage = cp.Stage
		log.Printf("workflow resuming submission=%s stage=%s retry_count=%d", sub.ID, startStage, state.RetryCount)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("workflow panic submission=%s err=%v", sub.ID, r)
			domain := state.Domain
			if domain == "" {
				domain = generalDomain
			}
			result = ReviewResult{FinalReport: systemErrorReport, Domain: domain}
		}
	}()

	w.run(ctx, state, startStage)
	score := WeightedScore(state.critiques(), state.Domain)
	return ReviewResult{
		FinalReport: state.FinalReport,
		Domain:      state.Domain,
		Score:       score,
		Decision:    DecisionFor(score),
	}
}

func (w *Workflow) run(ctx context.Context, state *ReviewState, startStage string) {
	start := stageIndex(startStage)
	for i := start; i < len(stageOrder); i++ {
		stage := stageOrder[i]
		w.checkpoint(state, stage)
		log.Printf("workflow stage=%s submission=%s", stage, state.SubmissionID)

		switch stage {
		case stageInitialize:
			w.initialize(state)
		case stageCreateEmbeddings:
			w.createEmbeddings(ctx, state)
		case stageParallelCritique:
			w.parallelCritique(ctx, state)
			if w.shouldRetryCritiques(state) && state.RetryCount == 0 {
				state.RetryCount++
				log.Printf("workflow critique quality gate failed, retrying submission=%s", state.SubmissionID)
				w.checkpoint(state, stageParallelCritique)
				w.parallelCritique(ctx, state)
			}
		case stageSynthesize:
			degraded := w.synthesize(ctx, state)
			if !degraded {
				if err := DeleteCheckpoint(w.db, state.SubmissionID); err != nil {
					log.Printf("workflow checkpoint delete failed submission=%s err=%v", state.SubmissionID, err)
				}
			}
		}
	}
}

func stageIndex(stage string) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return 0
}

// checkpoint persists state before a stage body runs. Failures are soft: a
// lost checkpoint only costs the ability to resume.
func (w *Workflow) checkpoint(state *ReviewState, stage string) {
	if err := SaveCheckpoint(w.db, state.SubmissionID, stage, *state); err != nil {
		log.Printf("workflow checkpoint save failed submission=%s stage=%s err=%v", state.SubmissionID, stage, err)
	}
}

func (w *Workflow) initialize(state *ReviewState) {
	res := w.classifier.Classify(state.Title + " " + state.Content)
	if res.Primary == "" {
		res.Primary = generalDomain
	}
	state.Domain = res.Primary
	state.Confidence = res.Confidence
	state.EmbeddingsCreated = false
	log.Printf("workflow domain detected submission=%s domain=%s confidence=%.2f", state.SubmissionID, state.Domain, state.Confidence)
}

func (w *Workflow) createEmbeddings(ctx context.Context, state *ReviewState) {
	if w.embedder == nil {
		state.EmbeddingsCreated = false
		return
	}
	if err := w.embedder.CreateEmbeddings(ctx, state.Content); err != nil {
		log.Printf("workflow embeddings failed submission=%s err=%v", state.SubmissionID, err)
		state.Errors = append(state.Errors, StageError{Stage: stageCreateEmbeddings, Message: err.Error()})
		state.EmbeddingsCreated = false
		return
	}
	state.EmbeddingsCreated = true
}

// parallelCritique fans out the four analysis types concurrently. Section
// structure is computed once and shared; each runner reads state but never
// mutates it, so the only write-back happens after the join.
func (w *Workflow) parallelCritique(ctx context.Context, state *ReviewState) {
	state.Sections = AnalyzeStructure(state.Content)

	results := make([]Critique, len(allAgentTypes))
	var wg sync.WaitGroup
	for i, agent := range allAgentTypes {
		wg.Add(1)
		go func(idx int, agent AgentType) {
			defer wg.Done()
			results[idx] = w.runner.Run(ctx, agent, state)
		}(i, agent)
	}
	wg.Wait()

	for i, agent := range allAgentTypes {
		c := results[i]
		state.setCritique(agent, &c)
		if strings.Contains(strings.ToLower(c.Content), failureMarker) {
			state.Errors = append(state.Errors, StageError{
				Stage:     stageParallelCritique,
				AgentType: string(agent),
				Message:   c.Content,
			})
		}
	}
}

// shouldRetryCritiques is the quality gate on the conditional edge back into
// parallel_critique. The "score 7 without a literal Score: 7" check is a
// heuristic for silent extraction defaults; a genuine 7 phrased differently
// costs one redundant retry at most.
func (w *Workflow) shouldRetryCritiques(state *ReviewState) bool {
	for _, agent := range allAgentTypes {
		c := state.critique(agent)
		if c == nil {
			return true
		}
		lower := strings.ToLower(c.Content)
		if strings.Contains(lower, failureMarker) {
			return true
		}
		if len(c.Content) < 100 {
			return true
		}
		if !strings.Contains(lower, "line") {
			return true
		}
		if c.Score == defaultCritiqueScore && !strings.Contains(c.Content, "Score: 7") {
			return true
		}
	}
	return false
}

// synthesize is the terminal stage; it must always leave a report in state.
// Returns true when the report is the degraded placeholder.
func (w *Workflow) synthesize(ctx context.Context, state *ReviewState) bool {
	// Re-detect from the canonical submission text; the initialize-stage
	// result may predate a catalog overlay change or a resumed checkpoint.
	res := w.classifier.Classify(state.Title + " " + state.Content)
	if res.Primary != "" {
		state.Domain = res.Primary
	}

	for _, agent := range allAgentTypes {
		if state.critique(agent) == nil {
			state.setCritique(agent, &Critique{
				AgentType: agent,
				Content:   critiqueFailureText(agent),
				Score:     defaultCritiqueScore,
				Weight:    AgentWeights(state.Domain)[agent],
			})
		}
	}

	report, err := w.synth.GenerateReport(ctx, state)
	if err != nil {
		log.Printf("workflow synthesis failed submission=%s err=%v", state.SubmissionID, err)
		state.Errors = append(state.Errors, StageError{Stage: stageSynthesize, Message: err.Error()})
		state.FinalReport = degradedSynthesisReport
		return true
	}
	if strings.TrimSpace(report) == "" {
		state.Errors = append(state.Errors, StageError{Stage: stageSynthesize, Message: "empty synthesis narrative"})
		state.FinalReport = degradedSynthesisReport
		return true
	}
	state.FinalReport = report
	return false
}
