package attribution

import (
	"context"

	"github.com/kildespor/kildespor/internal/retrieval"
	"github.com/kildespor/kildespor/models"
)

// DebugReport exposes the raw material of source extraction for one query so
// operators can see why a citation did or did not appear.
type DebugReport struct {
	Query         string             `json:"query"`
	VectorContext string             `json:"vector_context"`
	MixContext    string             `json:"mix_context"`
	VectorHeaders []retrieval.Header `json:"vector_headers"`
	MixHeaders    []retrieval.Header `json:"mix_headers"`
	Validations   []HeaderValidation `json:"validations"`
	Sources       []models.Source    `json:"sources"`
}

// HeaderValidation records whether a parsed header's segment exists in the
// store at the claimed time.
type HeaderValidation struct {
	VideoID      string  `json:"video_id"`
	Start        float64 `json:"start"`
	SegmentFound bool    `json:"segment_found"`
	MatchedStart float64 `json:"matched_start,omitempty"`
	MatchedText  string  `json:"matched_text,omitempty"`
}

// Debug runs both context retrievals for the query and reports parsed
// headers, per-header store validation and the sources full resolution would
// produce. No filtering, enrichment or persistence happens.
func (p *Pipeline) Debug(ctx context.Context, user models.User, query string) (DebugReport, error) {
	instance, err := p.Registry.Instance(user.OrganizationID)
	if err != nil {
		return DebugReport{}, err
	}

	vectorCtx, err := instance.Query(ctx, retrieval.QueryRequest{
		Query:       query,
		Mode:        retrieval.ModeVector,
		TopK:        p.Engine.ContextTopK,
		ContextOnly: true,
	})
	if err != nil {
		return DebugReport{}, err
	}
	mixCtx, err := instance.Query(ctx, retrieval.QueryRequest{
		Query:       query,
		Mode:        retrieval.ModeMix,
		TopK:        p.Engine.ContextTopK,
		ContextOnly: true,
	})
	if err != nil {
		return DebugReport{}, err
	}

	report := DebugReport{
		Query:         query,
		VectorContext: vectorCtx,
		MixContext:    mixCtx,
		VectorHeaders: retrieval.ParseHeaders(vectorCtx, p.Logger),
		MixHeaders:    retrieval.ParseHeaders(mixCtx, p.Logger),
	}

	combined := retrieval.ParseHeaders(vectorCtx+"\n"+mixCtx, p.Logger)
	for _, h := range combined {
		v := HeaderValidation{VideoID: h.VideoID, Start: h.Start}
		seg, found, err := p.Resolver.Store.SegmentNearStart(ctx, h.VideoID, h.Start, startTolerance)
		if err != nil {
			return DebugReport{}, err
		}
		if found {
			v.SegmentFound = true
			v.MatchedStart = seg.StartTime
			v.MatchedText = models.Excerpt(seg.Text)
		}
		report.Validations = append(report.Validations, v)
	}

	sources, err := p.Resolver.Resolve(ctx, combined, query, user)
	if err != nil {
		return DebugReport{}, err
	}
	report.Sources = sources
	return report, nil
}
