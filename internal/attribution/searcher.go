package attribution

import (
	"context"
	"log"
	"math"
	"sort"
	"strconv"

	"github.com/kildespor/kildespor/models"
)

// Searcher finds citations by searching stored segments for the entities and
// keywords of the generated answer. This is the primary attribution path: it
// grounds citations in what the assistant actually said rather than in what
// the engine happened to retrieve.
type Searcher struct {
	Store     SegmentStore
	Access    AccessFilter
	Annotator Annotator
	Logger    *log.Logger

	// Limit is the target number of sources per turn. Candidate fetch and
	// result caps are derived from it.
	Limit         int
	EntityWeight  int
	KeywordWeight int
}

func (s *Searcher) limit() int {
	if s.Limit > 0 {
		return s.Limit
	}
	return 5
}

// FromAnswer scores segments of the user's organization against the answer
// and question. Each distinct entity appearing in a segment is worth
// EntityWeight, each keyword KeywordWeight. Zero-scoring segments drop out,
// the rest are ranked by score with ties keeping retrieval order, deduplicated
// per (video, whole second) and access-filtered.
func (s *Searcher) FromAnswer(ctx context.Context, answer, query string, user models.User) ([]models.Source, error) {
	entities := mergeTerms(s.Annotator.Entities(answer), s.Annotator.Entities(query))
	keywords := capTerms(mergeTerms(s.Annotator.Keywords(answer), s.Annotator.Keywords(query)), 10)
	if len(entities) == 0 && len(keywords) == 0 {
		return nil, nil
	}

	terms := append(capTerms(entities, 5), capTerms(keywords, 5)...)
	limit := s.limit()
	segs, err := s.Store.SearchSegments(ctx, user.OrganizationID, terms, limit*5)
	if err != nil {
		return nil, err
	}

	type scored struct {
		seg   models.Segment
		score int
	}
	ranked := make([]scored, 0, len(segs))
	for _, seg := range segs {
		score := 0
		for _, e := range entities {
			if containsFold(seg.Text, e) {
				score += s.EntityWeight
			}
		}
		for _, k := range keywords {
			if containsFold(seg.Text, k) {
				score += s.KeywordWeight
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{seg, score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	seen := make(map[string]bool)
	videos := make(map[string]*models.Video)
	out := make([]models.Source, 0, limit)
	for _, c := range ranked {
		if len(out) >= limit*3 {
			break
		}
		key := c.seg.VideoID + "@" + strconv.Itoa(int(math.Floor(c.seg.StartTime)))
		if seen[key] {
			continue
		}
		seen[key] = true

		video, err := s.viewableVideo(ctx, user, c.seg.VideoID, videos)
		if err != nil {
			return nil, err
		}
		if video == nil {
			continue
		}
		out = append(out, models.NewSource(*video, c.seg))
	}
	return out, nil
}

// Fallback is the last-resort path when neither headers nor the answer
// yielded anything: a plain token search on the question, at most one source
// per video.
func (s *Searcher) Fallback(ctx context.Context, query string, user models.User) ([]models.Source, error) {
	terms := capTerms(queryTokens(query), 3)
	if len(terms) == 0 {
		return nil, nil
	}
	limit := s.limit()
	segs, err := s.Store.SearchSegments(ctx, user.OrganizationID, terms, limit*3)
	if err != nil {
		return nil, err
	}

	seenVideo := make(map[string]bool)
	videos := make(map[string]*models.Video)
	out := make([]models.Source, 0, limit)
	for _, seg := range segs {
		if len(out) >= limit {
			break
		}
		if seenVideo[seg.VideoID] {
			continue
		}
		seenVideo[seg.VideoID] = true

		video, err := s.viewableVideo(ctx, user, seg.VideoID, videos)
		if err != nil {
			return nil, err
		}
		if video == nil {
			continue
		}
		out = append(out, models.NewSource(*video, seg))
	}
	if len(out) > 0 {
		s.logf("fallback search produced %d source(s) for query %q", len(out), query)
	}
	return out, nil
}

// viewableVideo loads and caches the video, returning nil when it is missing
// or invisible to the user. A nil cache entry remembers the denial.
func (s *Searcher) viewableVideo(ctx context.Context, user models.User, videoID string, cache map[string]*models.Video) (*models.Video, error) {
	if v, ok := cache[videoID]; ok {
		return v, nil
	}
	v, found, err := s.Store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !found {
		cache[videoID] = nil
		return nil, nil
	}
	allowed, err := s.Access.CanView(ctx, user, v)
	if err != nil {
		return nil, err
	}
	if !allowed {
		cache[videoID] = nil
		return nil, nil
	}
	cache[videoID] = &v
	return &v, nil
}

func (s *Searcher) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
