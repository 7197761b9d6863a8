package main

import (
	"strings"
	"unicode"
)

type domainEntry struct {
	Name     string
	Keywords []string
	Weight   float64
}

// domainCatalog is the built-in subject-matter catalog. Keywords may be
// multi-word phrases; ordering fixes arg-max tie-breaking.
var domainCatalog = []domainEntry{
	{"medical", []string{"patient", "clinical", "medical", "diagnosis", "treatment", "therapy", "disease", "symptom", "healthcare", "pharmaceutical"}, 0.35},
	{"psychology", []string{"behavior", "cognitive", "psychological", "mental", "therapy", "intervention", "participant", "survey", "questionnaire"}, 0.25},
	{"computer_science", []string{"algorithm", "software", "programming", "data", "machine learning", "artificial intelligence", "network", "system"}, 0.3},
	{"biology", []string{"species", "gene", "protein", "cell", "organism", "evolution", "molecular", "biological", "ecosystem"}, 0.3},
	{"physics", []string{"quantum", "particle", "energy", "force", "wave", "electromagnetic", "thermodynamic", "mechanical"}, 0.25},
	{"chemistry", []string{"molecule", "compound", "reaction", "catalyst", "chemical", "synthesis", "analysis", "spectroscopy"}, 0.25},
	{"social_science", []string{"society", "social", "community", "culture", "demographic", "survey", "interview", "ethnographic"}, 0.25},
	{"engineering", []string{"design", "system", "optimization", "performance", "efficiency", "manufacturing", "prototype", "testing"}, 0.3},
	{"economics", []string{"market", "economic", "financial", "price", "demand", "supply", "inflation", "gdp", "investment", "trade"}, 0.3},
	{"mathematics", []string{"theorem", "proof", "equation", "function", "matrix", "calculus", "statistics", "probability", "algebra", "geometry"}, 0.35},
	{"environmental", []string{"climate", "environment", "pollution", "sustainability", "ecosystem", "carbon", "renewable", "conservation", "biodiversity"}, 0.3},
	{"education", []string{"learning", "teaching", "curriculum", "pedagogy", "student", "assessment", "educational", "instruction", "classroom"}, 0.25},
	{"linguistics", []string{"language", "grammar", "syntax", "phonetics", "semantics", "discourse", "linguistic", "morphology", "pragmatics"}, 0.25},
	{"anthropology", []string{"culture", "ethnography", "anthropological", "ritual", "kinship", "fieldwork", "indigenous", "cultural", "society"}, 0.25},
	{"political_science", []string{"government", "policy", "political", "democracy", "election", "governance", "institution", "power", "state"}, 0.25},
	{"law", []string{"legal", "court", "judge", "statute", "constitutional", "jurisdiction", "precedent", "litigation", "contract"}, 0.3},
	{"business", []string{"management", "marketing", "strategy", "organization", "leadership", "entrepreneurship", "corporate", "business", "finance"}, 0.25},
	{"philosophy", []string{"ethics", "metaphysics", "epistemology", "moral", "philosophical", "logic", "ontology", "phenomenology", "virtue"}, 0.2},
	{"statistics", []string{"statistical", "regression", "hypothesis", "significance", "confidence", "variance", "distribution", "sampling", "bayesian", "inference"}, 0.4},
	{"bioinformatics", []string{"genomic", "sequencing", "bioinformatics", "computational biology", "phylogenetic", "alignment", "annotation", "database", "pipeline", "omics"}, 0.35},
	{"biomedicine", []string{"biomedical", "translational", "therapeutic", "biomarker", "pathogenesis", "molecular medicine", "precision medicine", "drug discovery", "clinical trial"}, 0.35},
}

const generalDomain = "general"

type DomainResult struct {
	Primary    string
	Confidence float64
	Scores     map[string]float64
}

type compiledDomain struct {
	name         string
	words        map[string]struct{}
	phrases      map[int]map[string]struct{} // phrase word-length -> phrase set
	keywordCount int
	weight       float64
}

// DomainClassifier scores text against the catalog. Pure lookup, no state
// beyond the precomputed keyword sets; safe for concurrent use.
type DomainClassifier struct {
	domains      []compiledDomain
	maxPhraseLen int
}

func NewDomainClassifier(overlay *DomainOverlay) *DomainClassifier {
	entries := applyDomainOverlay(domainCatalog, overlay)

	c := &DomainClassifier{}
	for _, e := range entries {
		d := compiledDomain{
			name:         e.Name,
			words:        make(map[string]struct{}),
			phrases:      make(map[int]map[string]struct{}),
			keywordCount: len(e.Keywords),
			weight:       e.Weight,
		}
		for _, kw := range e.Keywords {
			parts := tokenize(kw)
			if len(parts) == 0 {
				d.keywordCount--
				continue
			}
			if len(parts) == 1 {
				d.words[parts[0]] = struct{}{}
				continue
			}
			n := len(parts)
			if d.phrases[n] == nil {
				d.phrases[n] = make(map[string]struct{})
			}
			d.phrases[n][strings.Join(parts, " ")] = struct{}{}
			if n > c.maxPhraseLen {
				c.maxPhraseLen = n
			}
		}
		c.domains = append(c.domains, d)
	}
	return c
}

// Classify scores title+content and returns the arg-max domain. Zero hits
// across the whole catalog yields "general" with confidence 0.
func (c *DomainClassifier) Classify(text string) DomainResult {
	tokens := tokenize(text)
	result := DomainResult{Primary: generalDomain, Scores: make(map[string]float64)}
	if len(tokens) == 0 {
		return result
	}

	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}
	ngrams := make(map[int]map[string]struct{})
	for n := 2; n <= c.maxPhraseLen; n++ {
		ngrams[n] = ngramSet(tokens, n)
	}

	best := -1.0
	bestCount := 0
	for _, d := range c.domains {
		hits := 0
		for w := range d.words {
			if _, ok := tokenSet[w]; ok {
				hits++
			}
		}
		for n, phraseSet := range d.phrases {
			for p := range phraseSet {
				if _, ok := ngrams[n][p]; ok {
					hits++
				}
			}
		}
		score := float64(hits) * d.weight
		result.Scores[d.name] = score
		if score > best {
			best = score
			result.Primary = d.name
			bestCount = d.keywordCount
		}
	}

	if best <= 0 {
		result.Primary = generalDomain
		return result
	}
	confidence := best / float64(bestCount)
	if confidence > 1 {
		confidence = 1
	}
	result.Confidence = confidence
	return result
}

func ngramSet(tokens []string, n int) map[string]struct{} {
	set := make(map[string]struct{})
	for i := 0; i+n <= len(tokens); i++ {
		set[strings.Join(tokens[i:i+n], " ")] = struct{}{}
	}
	return set
}

func tokenize(s string) []string {
	s = strings.ToLower(s)
	var tokens []string
	var cur strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// agentWeightsByDomain gives each analysis type its share of the overall
// score for manuscripts in that domain.
var agentWeightsByDomain = map[string]map[AgentType]float64{
	"medical":           {AgentMethodology: 0.4, AgentEthics: 0.3, AgentLiterature: 0.2, AgentClarity: 0.1},
	"psychology":        {AgentMethodology: 0.35, AgentEthics: 0.25, AgentLiterature: 0.25, AgentClarity: 0.15},
	"computer_science":  {AgentMethodology: 0.4, AgentClarity: 0.3, AgentLiterature: 0.2, AgentEthics: 0.1},
	"biology":           {AgentMethodology: 0.35, AgentLiterature: 0.3, AgentEthics: 0.2, AgentClarity: 0.15},
	"physics":           {AgentMethodology: 0.4, AgentLiterature: 0.25, AgentClarity: 0.25, AgentEthics: 0.1},
	"chemistry":         {AgentMethodology: 0.4, AgentLiterature: 0.25, AgentClarity: 0.25, AgentEthics: 0.1},
	"social_science":    {AgentMethodology: 0.3, AgentEthics: 0.3, AgentLiterature: 0.25, AgentClarity: 0.15},
	"engineering":       {AgentMethodology: 0.4, AgentClarity: 0.3, AgentLiterature: 0.2, AgentEthics: 0.1},
	"economics":         {AgentMethodology: 0.35, AgentLiterature: 0.3, AgentClarity: 0.25, AgentEthics: 0.1},
	"mathematics":       {AgentMethodology: 0.5, AgentClarity: 0.3, AgentLiterature: 0.15, AgentEthics: 0.05},
	"environmental":     {AgentMethodology: 0.35, AgentEthics: 0.25, AgentLiterature: 0.25, AgentClarity: 0.15},
	"education":         {AgentMethodology: 0.3, AgentEthics: 0.25, AgentLiterature: 0.25, AgentClarity: 0.2},
	"linguistics":       {AgentMethodology: 0.35, AgentLiterature: 0.3, AgentClarity: 0.25, AgentEthics: 0.1},
	"anthropology":      {AgentMethodology: 0.3, AgentEthics: 0.3, AgentLiterature: 0.25, AgentClarity: 0.15},
	"political_science": {AgentMethodology: 0.3, AgentLiterature: 0.3, AgentEthics: 0.2, AgentClarity: 0.2},
	"law":               {AgentMethodology: 0.25, AgentLiterature: 0.4, AgentClarity: 0.25, AgentEthics: 0.1},
	"business":          {AgentMethodology: 0.3, AgentClarity: 0.3, AgentLiterature: 0.25, AgentEthics: 0.15},
	"philosophy":        {AgentLiterature: 0.4, AgentClarity: 0.3, AgentMethodology: 0.2, AgentEthics: 0.1},
	"statistics":        {AgentMethodology: 0.45, AgentClarity: 0.3, AgentLiterature: 0.2, AgentEthics: 0.05},
	"bioinformatics":    {AgentMethodology: 0.4, AgentClarity: 0.25, AgentLiterature: 0.2, AgentEthics: 0.15},
	"biomedicine":       {AgentMethodology: 0.35, AgentEthics: 0.3, AgentLiterature: 0.25, AgentClarity: 0.1},
}

var defaultAgentWeights = map[AgentType]float64{
	AgentMethodology: 0.3,
	AgentLiterature:  0.25,
	AgentClarity:     0.25,
	AgentEthics:      0.2,
}

func AgentWeights(domain string) map[AgentType]float64 {
	if w, ok := agentWeightsByDomain[domain]; ok {
		return w
	}
	return defaultAgentWeights
}

// domainCriteria feeds prompt text only; scoring never reads it.
var domainCriteria = map[string]map[AgentType][]string{
	"medical": {
		AgentMethodology: {"randomization", "blinding", "sample size calculation", "statistical power"},
		AgentEthics:      {"informed consent", "IRB approval", "patient safety", "data privacy"},
		AgentLiterature:  {"systematic review", "meta-analysis", "clinical guidelines"},
		AgentClarity:     {"medical terminology", "clinical significance"},
	},
	"psychology": {
		AgentMethodology: {"validated instruments", "reliability", "validity", "control groups"},
		AgentEthics:      {"participant consent", "psychological harm", "debriefing"},
		AgentLiterature:  {"theoretical framework", "psychological constructs"},
		AgentClarity:     {"operational definitions", "statistical reporting"},
	},
	"computer_science": {
		AgentMethodology: {"algorithm complexity", "benchmarking", "reproducibility"},
		AgentEthics:      {"data privacy", "algorithmic bias", "transparency"},
		AgentLiterature:  {"state-of-the-art comparison", "technical novelty"},
		AgentClarity:     {"code availability", "implementation details"},
	},
	"economics": {
		AgentMethodology: {"econometric models", "causal inference", "robustness checks"},
		AgentLiterature:  {"economic theory", "empirical evidence", "policy implications"},
		AgentClarity:     {"model specification", "variable definitions"},
		AgentEthics:      {"data sources", "conflicts of interest"},
	},
	"mathematics": {
		AgentMethodology: {"proof rigor", "logical structure", "mathematical notation"},
		AgentLiterature:  {"theorem citations", "mathematical context"},
		AgentClarity:     {"proof clarity", "notation consistency"},
		AgentEthics:      {"attribution", "originality"},
	},
	"law": {
		AgentMethodology: {"legal analysis", "case law review", "statutory interpretation"},
		AgentLiterature:  {"precedent analysis", "legal scholarship", "comparative law"},
		AgentClarity:     {"legal reasoning", "argument structure"},
		AgentEthics:      {"bias disclosure", "conflict of interest"},
	},
	"philosophy": {
		AgentMethodology: {"logical argumentation", "conceptual analysis"},
		AgentLiterature:  {"philosophical tradition", "primary sources", "scholarly debate"},
		AgentClarity:     {"argument structure", "conceptual precision"},
		AgentEthics:      {"intellectual honesty", "fair representation"},
	},
	"statistics": {
		AgentMethodology: {"statistical assumptions", "model validation", "power analysis", "effect size"},
		AgentLiterature:  {"statistical methods", "comparative studies"},
		AgentClarity:     {"statistical notation", "result interpretation", "visualization"},
		AgentEthics:      {"data integrity", "multiple testing"},
	},
	"bioinformatics": {
		AgentMethodology: {"algorithm validation", "computational pipeline", "database curation", "benchmarking"},
		AgentLiterature:  {"tool comparison", "method evaluation"},
		AgentClarity:     {"code availability", "workflow documentation", "parameter settings"},
		AgentEthics:      {"data sharing", "privacy protection", "open source"},
	},
	"biomedicine": {
		AgentMethodology: {"experimental design", "biomarker validation", "clinical correlation"},
		AgentEthics:      {"patient consent", "data protection", "clinical ethics", "translational ethics"},
		AgentLiterature:  {"clinical evidence", "translational research", "therapeutic targets"},
		AgentClarity:     {"clinical relevance", "therapeutic implications"},
	},
}

var defaultCriteria = map[AgentType][]string{
	AgentMethodology: {"research design", "data collection", "analysis methods"},
	AgentEthics:      {"ethical approval", "participant rights"},
	AgentLiterature:  {"literature review", "theoretical basis"},
	AgentClarity:     {"writing quality", "presentation"},
}

func DomainCriteria(domain string, agent AgentType) []string {
	if byAgent, ok := domainCriteria[domain]; ok {
		if list, ok := byAgent[agent]; ok {
			return list
		}
	}
	return defaultCriteria[agent]
}
