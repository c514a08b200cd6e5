// Package attribution turns raw retrieval output into verified, enriched
// citations. It resolves metadata headers against stored segments, searches
// segments grounded on the generated answer, filters the merged set for
// relevance to the exchange, attaches surrounding transcript context, and
// optionally rewrites the answer against that context.
package attribution

import (
	"context"

	"github.com/kildespor/kildespor/models"
)

// SegmentStore is the slice of the persistence layer the pipeline reads from.
// *store.Store satisfies it.
type SegmentStore interface {
	GetVideo(ctx context.Context, id string) (models.Video, bool, error)
	SegmentNearStart(ctx context.Context, videoID string, start, tol float64) (models.Segment, bool, error)
	SegmentByOrdinal(ctx context.Context, videoID string, ordinal int) (models.Segment, bool, error)
	FirstSegment(ctx context.Context, videoID string) (models.Segment, bool, error)
	NearestSegment(ctx context.Context, videoID string, ts float64) (models.Segment, bool, error)
	SegmentsBefore(ctx context.Context, videoID string, start float64, n int) ([]models.Segment, error)
	SegmentsAfter(ctx context.Context, videoID string, start float64, n int) ([]models.Segment, error)
	SearchSegments(ctx context.Context, orgID string, terms []string, limit int) ([]models.Segment, error)
}

// AccessFilter decides per-video visibility. *access.Filter satisfies it.
type AccessFilter interface {
	CanView(ctx context.Context, user models.User, video models.Video) (bool, error)
}
