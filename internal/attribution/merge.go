package attribution

import "github.com/kildespor/kildespor/models"

// MergeSources combines the two attribution paths, answer-grounded sources
// first. A header-based source is appended only when no answer-based source
// already cites the same video second.
func MergeSources(answerBased, headerBased []models.Source) []models.Source {
	out := make([]models.Source, 0, len(answerBased)+len(headerBased))
	seen := make(map[string]bool, len(answerBased))
	for _, s := range answerBased {
		if seen[s.Key()] {
			continue
		}
		seen[s.Key()] = true
		out = append(out, s)
	}
	for _, s := range headerBased {
		if seen[s.Key()] {
			continue
		}
		seen[s.Key()] = true
		out = append(out, s)
	}
	return out
}

// RelevantCount reports how many sources mention at least one of the given
// entities or at least two of the keywords. The turn orchestrator uses it to
// decide whether header-based sources actually support the generated answer.
func RelevantCount(sources []models.Source, entities, keywords []string) int {
	n := 0
	for _, src := range sources {
		if sourceRelevant(src, entities, keywords) {
			n++
		}
	}
	return n
}

func sourceRelevant(src models.Source, entities, keywords []string) bool {
	for _, e := range entities {
		if containsFold(src.Text, e) {
			return true
		}
	}
	hits := 0
	for _, k := range keywords {
		if containsFold(src.Text, k) {
			hits++
			if hits >= 2 {
				return true
			}
		}
	}
	return false
}
