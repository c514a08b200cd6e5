package attribution

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Annotator extracts entity and keyword candidates from free text. The
// pipeline only depends on this interface, so the regex heuristics below can
// be swapped for a real tokenizer or NER model without touching callers.
type Annotator interface {
	Entities(text string) []string
	Keywords(text string) []string
}

// RegexAnnotator is the heuristic annotator: entities are runs of
// capitalized words, keywords are longer lowercase content words minus a
// configured stop-word list.
type RegexAnnotator struct {
	stopwords map[string]bool
}

func NewRegexAnnotator(stopwords []string) *RegexAnnotator {
	set := make(map[string]bool, len(stopwords))
	for _, w := range stopwords {
		set[strings.ToLower(w)] = true
	}
	return &RegexAnnotator{stopwords: set}
}

// A run of one or more capitalized-initial words. Unicode letter classes so
// Æ/Ø/Å initials count.
var entityPattern = regexp.MustCompile(`[\p{Lu}][\p{Ll}]+(?:\s+[\p{Lu}][\p{Ll}]+)*`)

// Entities returns the capitalized multi-word spans of the text, deduplicated
// in order of first appearance.
func (a *RegexAnnotator) Entities(text string) []string {
	matches := entityPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Keywords returns lowercase content words longer than three runes that are
// not stop words, deduplicated in order of first appearance.
func (a *RegexAnnotator) Keywords(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, field := range strings.Fields(text) {
		word := strings.ToLower(strings.Trim(field, `.,!?;:"'()[]*`))
		if utf8.RuneCountInString(word) <= 3 {
			continue
		}
		if a.stopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
	}
	return out
}

// queryTokens is the looser tokenizer used for header content validation and
// the fallback search: every token longer than two runes, stop words included.
func queryTokens(text string) []string {
	var out []string
	for _, field := range strings.Fields(text) {
		word := strings.ToLower(strings.Trim(field, `.,!?;:"'()[]*`))
		if utf8.RuneCountInString(word) > 2 {
			out = append(out, word)
		}
	}
	return out
}

// mergeTerms concatenates term lists preserving first-appearance order.
func mergeTerms(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, t := range list {
			if seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func capTerms(terms []string, n int) []string {
	if len(terms) > n {
		return terms[:n]
	}
	return terms
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
