package attribution

import (
	"context"
	"testing"

	"github.com/kildespor/kildespor/internal/retrieval"
	"github.com/kildespor/kildespor/models"
)

const (
	testOrg   = "org-1"
	testVidID = "11111111-2222-3333-4444-555555555555"
)

func testUser() models.User {
	return models.User{ID: "u-1", OrganizationID: testOrg, Role: models.RoleUser}
}

func resolverFixture() (*Resolver, *fakeStore) {
	st := newFakeStore()
	st.addVideo(
		models.Video{ID: testVidID, Title: "Strategimøte Q3", OrganizationID: testOrg, SecurityLevel: models.SecurityInternal},
		models.Segment{ID: "s-0", Ordinal: 0, StartTime: 0.0, EndTime: 10.0, Text: "Velkommen til strategimøtet."},
		models.Segment{ID: "s-1", Ordinal: 1, StartTime: 10.0, EndTime: 20.0, Text: "John Smith la frem budsjettet for Acme Corp."},
		models.Segment{ID: "s-2", Ordinal: 2, StartTime: 20.0, EndTime: 30.0, Text: "Diskusjon om salgsmål."},
	)
	return &Resolver{Store: st, Access: allowAll(), CandidateCap: 20}, st
}

func TestResolveByStartTime(t *testing.T) {
	r, _ := resolverFixture()
	headers := []retrieval.Header{{VideoID: testVidID, Start: 10.05, End: 20, SegmentID: "1"}}
	sources, err := r.Resolve(context.Background(), headers, "hva sa John om budsjettet", testUser())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(sources))
	}
	if sources[0].Timestamp != 10.0 {
		t.Fatalf("expected segment at 10.0, got %f", sources[0].Timestamp)
	}
	if sources[0].VideoTitle != "Strategimøte Q3" {
		t.Fatalf("expected video title attached, got %q", sources[0].VideoTitle)
	}
}

func TestResolveFallsBackToOrdinal(t *testing.T) {
	r, _ := resolverFixture()
	// Start far off any segment, but segment_id names ordinal 1.
	headers := []retrieval.Header{{VideoID: testVidID, Start: 99.0, SegmentID: "1"}}
	sources, err := r.Resolve(context.Background(), headers, "budsjettet", testUser())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(sources) != 1 || sources[0].Timestamp != 10.0 {
		t.Fatalf("expected ordinal fallback to segment 1, got %+v", sources)
	}
}

func TestResolveFallsBackToFirstSegment(t *testing.T) {
	r, _ := resolverFixture()
	headers := []retrieval.Header{{VideoID: testVidID, Start: 99.0, SegmentID: "not-a-number", Context: "strategimøtet"}}
	sources, err := r.Resolve(context.Background(), headers, "strategimøtet", testUser())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(sources) != 1 || sources[0].Timestamp != 0.0 {
		t.Fatalf("expected first-segment fallback, got %+v", sources)
	}
}

func TestResolveSkipsUnknownVideo(t *testing.T) {
	r, _ := resolverFixture()
	headers := []retrieval.Header{{VideoID: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", Start: 1.0, SegmentID: "0"}}
	sources, err := r.Resolve(context.Background(), headers, "budsjett", testUser())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("expected no sources for unknown video, got %d", len(sources))
	}
}

func TestResolveExcludesDeniedVideo(t *testing.T) {
	r, _ := resolverFixture()
	r.Access = denyVideos(testVidID)
	headers := []retrieval.Header{{VideoID: testVidID, Start: 10.0, SegmentID: "1"}}
	sources, err := r.Resolve(context.Background(), headers, "budsjettet", testUser())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("access-denied video must not surface, got %d sources", len(sources))
	}
}

func TestResolveRequiresQueryOverlap(t *testing.T) {
	r, _ := resolverFixture()
	headers := []retrieval.Header{{VideoID: testVidID, Start: 20.0, SegmentID: "2"}}
	// Query shares nothing with segment text or header context.
	sources, err := r.Resolve(context.Background(), headers, "kantinemeny fredag", testUser())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("expected content check to drop the header, got %d", len(sources))
	}
}

func TestResolveCapsCandidates(t *testing.T) {
	r, _ := resolverFixture()
	r.CandidateCap = 2
	var headers []retrieval.Header
	for i := 0; i < 5; i++ {
		headers = append(headers, retrieval.Header{VideoID: testVidID, Start: float64(i * 10), SegmentID: "0"})
	}
	sources, err := r.Resolve(context.Background(), headers, "strategimøtet budsjettet salgsmål velkommen diskusjon", testUser())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(sources) > 2 {
		t.Fatalf("candidate cap not enforced: %d", len(sources))
	}
}
