package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type critiqueStrategy struct {
	displayName     string
	systemPrompt    string
	maxContentChars int
}

const methodologySystemPrompt = `You are a Methodology & Statistics Expert Agent for academic journal review.
Evaluate methodology objectively, respecting diverse research traditions and contexts.

CRITICAL ANALYSIS AREAS:
- Research design appropriateness for the research question
- Statistical methods validity and assumptions
- Sample size justification and power analysis
- Data collection rigor and transparency
- Control variables and confounding factors
- Reproducibility and replicability potential

BIAS MITIGATION:
- Avoid preference for specific methodological schools
- Consider cultural and contextual appropriateness
- Evaluate methods based on scientific rigor, not familiarity
- Acknowledge legitimate methodological diversity

Highlight specific text segments with issues and provide evidence-based recommendations.`

const literatureSystemPrompt = `You are a Literature & Novelty Expert Agent for academic journal review.
Evaluate literature coverage and contribution objectively across diverse scholarly traditions.

CRITICAL ANALYSIS AREAS:
- Literature review scope and depth for the research domain
- Citation diversity (geographic, temporal, methodological)
- Research gap articulation and justification
- Contribution novelty and significance
- Theoretical framework coherence
- Integration of relevant interdisciplinary work

BIAS MITIGATION:
- Value diverse scholarly traditions and languages
- Avoid Western-centric literature expectations
- Consider field-specific citation norms
- Evaluate contribution within appropriate context
- Recognize incremental vs. breakthrough contributions fairly

Highlight specific text segments and provide balanced, constructive feedback.`

const claritySystemPrompt = `You are a Clarity & Presentation Expert Agent for academic journal review.
Evaluate communication effectiveness while respecting diverse writing traditions.
Analyze the manuscript step-by-step using chain-of-thought reasoning: work through
structure, argument flow, and presentation in order before concluding.

CRITICAL ANALYSIS AREAS:
- Logical structure and argument flow
- Technical accuracy and precision
- Figure/table clarity and necessity
- Abstract completeness and accuracy
- Conclusion support by evidence
- Accessibility to target audience

BIAS MITIGATION:
- Focus on clarity, not stylistic preferences
- Respect non-native English writing patterns
- Evaluate content over cosmetic language issues
- Consider disciplinary writing conventions
- Distinguish between clarity and complexity

Highlight specific unclear passages and suggest concrete improvements.`

const ethicsSystemPrompt = `You are an Integrity & Ethics Expert Agent for academic journal review.
Evaluate ethical compliance objectively across diverse research contexts.
Weigh the manuscript from multiple reviewer perspectives (institutional review,
participant advocacy, data stewardship) and report the consensus view, noting
any disagreement between perspectives.

CRITICAL ANALYSIS AREAS:
- Ethical approval appropriateness for study type
- Informed consent adequacy and documentation
- Data protection and participant privacy
- Conflict of interest transparency
- Research integrity indicators
- Compliance with relevant guidelines

BIAS MITIGATION:
- Consider varying institutional ethics frameworks
- Respect cultural differences in consent processes
- Evaluate proportionality of ethical requirements
- Avoid over-interpretation of minor omissions
- Focus on substantive ethical concerns

Highlight specific ethical concerns with evidence and provide practical guidance.`

// Methodology and literature reviews get the larger budget; the full-document
// strategies degrade less when truncated than the close-reading ones.
var critiqueStrategies = map[AgentType]critiqueStrategy{
	AgentMethodology: {"Methodology", methodologySystemPrompt, 6000},
	AgentLiterature:  {"Literature", literatureSystemPrompt, 6000},
	AgentClarity:     {"Clarity", claritySystemPrompt, 4000},
	AgentEthics:      {"Ethics", ethicsSystemPrompt, 4000},
}

const critiqueOutputInstructions = `Structure your review as follows:
1. A prose assessment citing exact line numbers (e.g. "Line 12") from the numbered content.
2. A FINDINGS section listing each issue on its own line as:
   - [major|moderate|minor] [section] description (Line N) | Quote: "exact text from the manuscript"
3. A final line "Score: N/10" where N is an integer from 1 to 10.`

const defaultCritiqueScore = 7

var scoreRe = regexp.MustCompile(`Score:\s*(\d+)`)

// extractScore pulls the integer score from critique text, defaulting to 7
// when the model omitted or mangled the score line.
func extractScore(text string) float64 {
	m := scoreRe.FindStringSubmatch(text)
	if m == nil {
		return defaultCritiqueScore
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 10 {
		return defaultCritiqueScore
	}
	return float64(n)
}

func critiqueFailureText(agent AgentType) string {
	return critiqueStrategies[agent].displayName + " review failed due to internal error."
}

// CritiqueRunner executes one analysis type against the generator. Failures
// never escape: they become a uniform failure-string critique.
type CritiqueRunner struct {
	gen    Generator
	jitter float64
	rng    *rand.Rand
}

func NewCritiqueRunner(gen Generator, jitter float64) *CritiqueRunner {
	return &CritiqueRunner{
		gen:    gen,
		jitter: jitter,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CritiqueRunner) Run(ctx context.Context, agent AgentType, state *ReviewState) Critique {
	strategy := critiqueStrategies[agent]
	weight := AgentWeights(state.Domain)[agent]

	content := state.Content
	truncated := false
	if len(content) > strategy.maxContentChars {
		content = content[:strategy.maxContentChars]
		truncated = true
	}
	numbered := numberLines(content)
	if truncated {
		numbered += "\n[Content truncated for analysis]\n"
	}

	userPrompt := r.buildUserPrompt(agent, state, numbered)
	response, usage, err := r.gen.Generate(ctx, strategy.systemPrompt, userPrompt)
	if err != nil {
		log.Printf("critique failed agent=%s submission=%s err=%v", agent, state.SubmissionID, err)
		return Critique{
			AgentType: agent,
			Content:   critiqueFailureText(agent),
			Score:     defaultCritiqueScore,
			Weight:    weight,
		}
	}
	response = stripMarkdownFences(response)
	log.Printf("critique done agent=%s submission=%s size=%d tokens=%d", agent, state.SubmissionID, len(response), usage.TotalTokens())

	score := extractScore(response)
	if r.jitter > 0 {
		score += (r.rng.Float64()*2 - 1) * r.jitter
		if score < 1 {
			score = 1
		}
		if score > 10 {
			score = 10
		}
	}

	findings := parseFindings(response)
	for i := range findings {
		findings[i].Highlights = ValidateHighlights(state.Content, findings[i].Highlights)
		if findings[i].Section == "" && len(findings[i].Highlights) > 0 {
			findings[i].Section = sectionAt(state.Sections, findings[i].Highlights[0].LineNumber)
		}
	}

	return Critique{
		AgentType: agent,
		Content:   response,
		Score:     score,
		Weight:    weight,
		Findings:  findings,
	}
}

func (r *CritiqueRunner) buildUserPrompt(agent AgentType, state *ReviewState, numberedContent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Perform a %s review of this %s manuscript.\n\n", strings.ToLower(critiqueStrategies[agent].displayName), state.Domain)
	fmt.Fprintf(&b, "Document Title: %s\n", state.Title)
	fmt.Fprintf(&b, "Domain: %s\n", state.Domain)
	fmt.Fprintf(&b, "Pages: %d\n", state.Pages)
	fmt.Fprintf(&b, "Structure: %s\n", sectionSummary(state.Sections))
	if criteria := DomainCriteria(state.Domain, agent); len(criteria) > 0 {
		fmt.Fprintf(&b, "Domain evaluation criteria: %s\n", strings.Join(criteria, ", "))
	}
	b.WriteString("\n")
	b.WriteString(critiqueOutputInstructions)
	b.WriteString("\n\nContent (line-numbered):\n")
	b.WriteString(numberedContent)
	return b.String()
}

var findingLineRe = regexp.MustCompile(`(?i)^\s*[-*]\s*\[(major|moderate|minor)\]\s*(?:\[([^\]]*)\]\s*)?(.+)$`)
var lineRefRe = regexp.MustCompile(`(?i)\blines?\s+\d+(?:\s*-\s*\d+)?`)

// parseFindings extracts structured findings from a critique. Models that
// skip the FINDINGS format simply yield a critique without findings; that is
// tolerated everywhere downstream.
func parseFindings(response string) []Finding {
	var findings []Finding
	for _, line := range strings.Split(response, "\n") {
		m := findingLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		body := strings.TrimSpace(m[3])
		var highlights []TextHighlight
		if idx := strings.Index(body, "| Quote:"); idx >= 0 {
			quote := strings.Trim(strings.TrimSpace(body[idx+len("| Quote:"):]), `"`)
			body = strings.TrimSpace(body[:idx])
			if quote != "" {
				highlights = append(highlights, TextHighlight{Text: quote})
			}
		}
		findings = append(findings, Finding{
			Text:       body,
			Severity:   strings.ToLower(m[1]),
			Section:    strings.ToLower(strings.TrimSpace(m[2])),
			LineRef:    lineRefRe.FindString(body),
			Highlights: highlights,
		})
	}
	return findings
}
