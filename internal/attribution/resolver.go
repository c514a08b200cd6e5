package attribution

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/kildespor/kildespor/internal/retrieval"
	"github.com/kildespor/kildespor/models"
)

// startTolerance is how far a stored segment's start may drift from the
// header's start time and still count as the same segment.
const startTolerance = 0.1

// Resolver verifies parsed metadata headers against the segment store and
// turns the survivors into citations.
type Resolver struct {
	Store  SegmentStore
	Access AccessFilter
	Logger *log.Logger

	// CandidateCap bounds how many headers are resolved per turn.
	CandidateCap int
}

// Resolve maps headers onto stored segments. A header survives only if its
// video exists and is visible to the user, a segment can be located, and the
// located segment (or the header's own context span) shares at least one
// query token with the user's question. Resolution falls back in three steps:
// start time within tolerance, then segment ordinal, then the video's first
// segment.
func (r *Resolver) Resolve(ctx context.Context, headers []retrieval.Header, query string, user models.User) ([]models.Source, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	cap := r.CandidateCap
	if cap <= 0 {
		cap = 20
	}
	tokens := queryTokens(query)

	out := make([]models.Source, 0, len(headers))
	videos := make(map[string]*models.Video)

	for _, h := range headers {
		if len(out) >= cap {
			break
		}

		video, ok := videos[h.VideoID]
		if !ok {
			v, found, err := r.Store.GetVideo(ctx, h.VideoID)
			if err != nil {
				return nil, err
			}
			if !found {
				r.logf("header video %s not found, skipping", h.VideoID)
				videos[h.VideoID] = nil
				continue
			}
			allowed, err := r.Access.CanView(ctx, user, v)
			if err != nil {
				return nil, err
			}
			if !allowed {
				videos[h.VideoID] = nil
				continue
			}
			videos[h.VideoID] = &v
			video = &v
		}
		if video == nil {
			continue
		}

		seg, found, err := r.locate(ctx, h)
		if err != nil {
			return nil, err
		}
		if !found {
			r.logf("no segment for video %s at %.2fs", h.VideoID, h.Start)
			continue
		}

		if !matchesQuery(tokens, seg.Text, h.Context) {
			continue
		}
		out = append(out, models.NewSource(*video, seg))
	}
	return out, nil
}

func (r *Resolver) locate(ctx context.Context, h retrieval.Header) (models.Segment, bool, error) {
	seg, found, err := r.Store.SegmentNearStart(ctx, h.VideoID, h.Start, startTolerance)
	if err != nil || found {
		return seg, found, err
	}

	if ord, convErr := strconv.Atoi(h.SegmentID); convErr == nil {
		seg, found, err = r.Store.SegmentByOrdinal(ctx, h.VideoID, ord)
		if err != nil || found {
			return seg, found, err
		}
	}

	seg, found, err = r.Store.FirstSegment(ctx, h.VideoID)
	if found {
		r.logf("video %s: no segment near %.2fs or ordinal %q, using first segment", h.VideoID, h.Start, h.SegmentID)
	}
	return seg, found, err
}

// matchesQuery requires at least one query token to appear in the segment
// text or the header's retrieved context span. With no usable tokens the
// header passes unchecked.
func matchesQuery(tokens []string, segmentText, headerContext string) bool {
	if len(tokens) == 0 {
		return true
	}
	haystack := strings.ToLower(segmentText + " " + headerContext)
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

func (r *Resolver) logf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}
