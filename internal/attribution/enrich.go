package attribution

import (
	"context"
	"log"
	"strings"

	"github.com/kildespor/kildespor/models"
)

// enrichTolerance is the start-time window for relocating a source's segment
// during enrichment. Wider than resolution tolerance because the timestamp
// has already been rounded through the citation.
const enrichTolerance = 0.5

// Enricher attaches surrounding transcript to each source. The enriched
// context feeds the correction model; the user-facing excerpt is untouched.
type Enricher struct {
	Store  SegmentStore
	Logger *log.Logger

	// Neighbors is how many segments to include on each side.
	Neighbors int
}

// Enrich fills in Context for every source it can. Failures degrade to the
// plain excerpt and are logged, never returned: enrichment is best-effort.
func (e *Enricher) Enrich(ctx context.Context, sources []models.Source) []models.Source {
	n := e.Neighbors
	if n <= 0 {
		n = 2
	}
	for i := range sources {
		blob, err := e.contextFor(ctx, sources[i], n)
		if err != nil {
			e.logf("enrich %s at %.0fs: %v", sources[i].VideoID, sources[i].Timestamp, err)
			continue
		}
		if blob != "" {
			sources[i].Context = blob
		}
	}
	return sources
}

func (e *Enricher) contextFor(ctx context.Context, src models.Source, n int) (string, error) {
	seg, found, err := e.Store.SegmentNearStart(ctx, src.VideoID, src.Timestamp, enrichTolerance)
	if err != nil {
		return "", err
	}
	if !found {
		seg, found, err = e.Store.NearestSegment(ctx, src.VideoID, src.Timestamp)
		if err != nil || !found {
			return "", err
		}
	}

	before, err := e.Store.SegmentsBefore(ctx, src.VideoID, seg.StartTime, n)
	if err != nil {
		return "", err
	}
	after, err := e.Store.SegmentsAfter(ctx, src.VideoID, seg.StartTime, n)
	if err != nil {
		return "", err
	}

	// SegmentsBefore returns newest-first; flip to chronological order.
	parts := make([]string, 0, len(before)+len(after)+1)
	for i := len(before) - 1; i >= 0; i-- {
		parts = append(parts, before[i].Text)
	}
	parts = append(parts, "[MAIN SEGMENT: "+seg.Text+"]")
	for _, s := range after {
		parts = append(parts, s.Text)
	}
	return "... " + strings.Join(parts, " ") + " ...", nil
}

func (e *Enricher) logf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}
