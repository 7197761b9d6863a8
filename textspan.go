package main

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// numberLines prefixes every line with its 1-based number so critiques can
// cite exact locations.
func numberLines(content string) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%d: %s\n", i+1, line)
	}
	return b.String()
}

func lineNumberAt(content string, pos int) int {
	if pos < 0 {
		return 0
	}
	if pos > len(content) {
		pos = len(content)
	}
	return strings.Count(content[:pos], "\n") + 1
}

const highlightContextChars = 100

func extractContext(content string, start, end int) string {
	from := start - highlightContextChars
	prefix := ""
	if from < 0 {
		from = 0
	} else if from > 0 {
		prefix = "..."
	}
	to := end + highlightContextChars
	suffix := ""
	if to > len(content) {
		to = len(content)
	} else if to < len(content) {
		suffix = "..."
	}
	return prefix + content[from:to] + suffix
}

// findTextPosition locates target inside content. Exact match first; if that
// fails, both sides are lowercased and whitespace-collapsed and the match is
// mapped back to original byte offsets. Returns ok=false when the span cannot
// be placed at all.
func findTextPosition(content, target string) (int, int, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return 0, 0, false
	}
	if idx := strings.Index(content, target); idx >= 0 {
		return idx, idx + len(target), true
	}

	normContent, offsets := normalizeWithOffsets(content)
	normTarget, _ := normalizeWithOffsets(target)
	if normTarget == "" {
		return 0, 0, false
	}
	idx := strings.Index(normContent, normTarget)
	if idx < 0 {
		return 0, 0, false
	}
	start := offsets[idx]
	last := idx + len(normTarget) - 1
	end := offsets[last] + 1
	return start, end, true
}

// normalizeWithOffsets lowercases and collapses whitespace runs to a single
// space, returning for each normalized byte the offset of the original byte
// it came from.
func normalizeWithOffsets(s string) (string, []int) {
	var b strings.Builder
	var offsets []int
	pendingSpace := false
	started := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			pendingSpace = started
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			offsets = append(offsets, i)
			pendingSpace = false
		}
		started = true
		lowered := unicode.ToLower(r)
		n := b.Len()
		b.WriteRune(lowered)
		for ; n < b.Len(); n++ {
			offsets = append(offsets, i)
		}
	}
	return b.String(), offsets
}

// ValidateHighlights re-locates each quoted span in the manuscript and fills
// in positions, line number, and context. Spans that cannot be placed are
// dropped rather than reported with wrong coordinates.
func ValidateHighlights(content string, highlights []TextHighlight) []TextHighlight {
	var valid []TextHighlight
	for _, h := range highlights {
		start, end, ok := findTextPosition(content, h.Text)
		if !ok {
			continue
		}
		h.StartPos = start
		h.EndPos = end
		h.LineNumber = lineNumberAt(content, start)
		h.Context = extractContext(content, start, end)
		valid = append(valid, h)
	}
	return valid
}

var sectionHeaderPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"abstract", regexp.MustCompile(`(?i)^\s*(?:\d+\.?\s*)?abstract\b`)},
	{"introduction", regexp.MustCompile(`(?i)^\s*(?:\d+\.?\s*)?(?:introduction|background)\b`)},
	{"methods", regexp.MustCompile(`(?i)^\s*(?:\d+\.?\s*)?(?:methods?|methodology|materials and methods)\b`)},
	{"results", regexp.MustCompile(`(?i)^\s*(?:\d+\.?\s*)?(?:results?|findings)\b`)},
	{"discussion", regexp.MustCompile(`(?i)^\s*(?:\d+\.?\s*)?(?:discussion|conclusions?)\b`)},
	{"references", regexp.MustCompile(`(?i)^\s*(?:\d+\.?\s*)?(?:references|bibliography)\b`)},
}

// AnalyzeStructure detects standard manuscript sections by header lines and
// returns them with line ranges and word counts, in document order.
func AnalyzeStructure(content string) []SectionInfo {
	lines := strings.Split(content, "\n")

	var sections []SectionInfo
	for i, line := range lines {
		// Header lines are short; a paragraph mentioning "results" is not one.
		if len(strings.TrimSpace(line)) > 60 {
			continue
		}
		for _, p := range sectionHeaderPatterns {
			if p.re.MatchString(line) {
				sections = append(sections, SectionInfo{Name: p.name, StartLine: i + 1})
				break
			}
		}
	}

	for i := range sections {
		endLine := len(lines)
		if i+1 < len(sections) {
			endLine = sections[i+1].StartLine - 1
		}
		sections[i].EndLine = endLine
		words := 0
		for _, line := range lines[sections[i].StartLine-1 : endLine] {
			words += len(strings.Fields(line))
		}
		sections[i].WordCount = words
	}
	return sections
}

// sectionSummary renders detected structure for inclusion in prompts.
func sectionSummary(sections []SectionInfo) string {
	if len(sections) == 0 {
		return "no standard sections detected"
	}
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, fmt.Sprintf("%s (lines %d-%d, %d words)", s.Name, s.StartLine, s.EndLine, s.WordCount))
	}
	return strings.Join(parts, "; ")
}

// sectionAt names the section containing a line, for finding attribution.
func sectionAt(sections []SectionInfo, line int) string {
	for _, s := range sections {
		if line >= s.StartLine && line <= s.EndLine {
			return s.Name
		}
	}
	return "general"
}
