package attribution

import (
	"log"
	"strings"

	"github.com/kildespor/kildespor/models"
)

// RelevanceFilter is the last gate before sources are shown: it suppresses
// citations on greetings and small talk, and drops sources that do not share
// enough content with the generated answer.
type RelevanceFilter struct {
	Annotator Annotator
	Logger    *log.Logger

	// Greetings are bare salutations; an answer containing one, replying to
	// a question of at most two words or to a bare greeting, gets no sources.
	Greetings []string
	// GenericPhrases mark boilerplate assistant replies ("hvordan kan jeg
	// hjelpe"); a short answer containing one gets no sources either.
	GenericPhrases []string

	EntityWeight int
	QueryBonus   int
	MinScore     int
}

// Filter scores each source against the answer and question and keeps those
// scoring at least MinScore. Greeting exchanges short-circuit to an empty
// set, and so does an exchange yielding no entities or keywords at all: an
// unsupported-looking citation hurts trust more than a missing one, so when
// there is nothing to judge by, nothing is shown.
func (f *RelevanceFilter) Filter(sources []models.Source, answer, query string) []models.Source {
	if len(sources) == 0 {
		return sources
	}
	if f.isGreetingExchange(answer, query) {
		f.logf("suppressing %d source(s): greeting exchange", len(sources))
		return nil
	}
	if f.isGenericAnswer(answer) {
		f.logf("suppressing %d source(s): answer is generic small talk", len(sources))
		return nil
	}

	entities := mergeTerms(f.Annotator.Entities(answer), f.Annotator.Entities(query))
	keywords := mergeTerms(f.Annotator.Keywords(answer), f.Annotator.Keywords(query))
	if len(entities) == 0 && len(keywords) == 0 {
		f.logf("suppressing %d source(s): no terms to score against", len(sources))
		return nil
	}

	queryWords := strings.Fields(query)
	queryTerms := queryTokensLong(query)

	kept := make([]models.Source, 0, len(sources))
	for _, src := range sources {
		score := 0
		for _, e := range entities {
			if containsFold(src.Text, e) {
				score += f.EntityWeight
			}
		}
		keywordHits := 0
		for _, k := range keywords {
			if containsFold(src.Text, k) {
				keywordHits++
			}
		}
		if keywordHits >= 2 {
			score += keywordHits
		}
		if len(queryWords) > 3 {
			queryHits := 0
			for _, t := range queryTerms {
				if containsFold(src.Text, t) {
					queryHits++
				}
			}
			if queryHits >= 2 {
				score += f.QueryBonus
			}
		}
		if score >= f.MinScore {
			kept = append(kept, src)
		}
	}
	if dropped := len(sources) - len(kept); dropped > 0 {
		f.logf("relevance filter dropped %d of %d source(s)", dropped, len(sources))
	}
	return kept
}

// isGreetingExchange reports a pure salutation turn: the answer contains a
// greeting phrase and the question is at most two words or is itself a bare
// greeting. A greeting inside a long substantive question does not count.
func (f *RelevanceFilter) isGreetingExchange(answer, query string) bool {
	trimmed := strings.Trim(strings.ToLower(query), "!?., \t\n")
	if len(strings.Fields(trimmed)) > 2 && !f.isBareGreeting(trimmed) {
		return false
	}
	lower := strings.ToLower(answer)
	for _, g := range f.Greetings {
		if strings.Contains(lower, strings.ToLower(g)) {
			return true
		}
	}
	return false
}

func (f *RelevanceFilter) isBareGreeting(trimmedLower string) bool {
	for _, g := range f.Greetings {
		if trimmedLower == strings.ToLower(g) {
			return true
		}
	}
	return false
}

func (f *RelevanceFilter) isGenericAnswer(answer string) bool {
	if len(strings.Fields(answer)) > 5 {
		return false
	}
	lower := strings.ToLower(answer)
	for _, p := range f.GenericPhrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// queryTokensLong keeps question words longer than three runes for the query
// bonus, matching the keyword length cutoff.
func queryTokensLong(text string) []string {
	var out []string
	for _, t := range queryTokens(text) {
		if len([]rune(t)) > 3 {
			out = append(out, t)
		}
	}
	return out
}

func (f *RelevanceFilter) logf(format string, args ...interface{}) {
	if f.Logger != nil {
		f.Logger.Printf(format, args...)
	}
}
