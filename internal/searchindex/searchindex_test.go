package searchindex

import (
	"testing"

	"github.com/kildespor/kildespor/models"
)

func seedManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(nil)
	err := m.IndexSegments("org-1", []models.Segment{
		{ID: "s-1", VideoID: "vid-1", StartTime: 10, Text: "budsjettet for neste kvartal ble lagt frem"},
		{ID: "s-2", VideoID: "vid-1", StartTime: 20, Text: "salgsmål og strategi for regionen"},
		{ID: "s-3", VideoID: "vid-2", StartTime: 5, Text: "budsjettet ble diskutert i styret"},
	})
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	return m
}

func TestSearchFindsIndexedSegments(t *testing.T) {
	m := seedManager(t)
	hits, err := m.Search("org-1", "budsjettet", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	for _, h := range hits {
		if h.VideoID == "" || h.Snippet == "" {
			t.Fatalf("hit missing metadata: %+v", h)
		}
	}
}

func TestSearchIsolatesOrganizations(t *testing.T) {
	m := seedManager(t)
	hits, err := m.Search("org-2", "budsjettet", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("unindexed organization must yield nothing, got %d hits", len(hits))
	}
}

func TestSearchHonorsLimit(t *testing.T) {
	m := seedManager(t)
	hits, err := m.Search("org-1", "budsjettet", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected limit of 1 enforced, got %d", len(hits))
	}
}

func TestRemoveVideo(t *testing.T) {
	m := seedManager(t)
	if err := m.RemoveVideo("org-1", "vid-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	hits, err := m.Search("org-1", "budsjettet", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].VideoID != "vid-2" {
		t.Fatalf("expected only vid-2 left, got %+v", hits)
	}
}

func TestRebuildReplacesIndex(t *testing.T) {
	m := seedManager(t)
	err := m.Rebuild("org-1", []models.Segment{
		{ID: "n-1", VideoID: "vid-9", StartTime: 0, Text: "helt nytt innhold om regnskapet"},
	})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	hits, err := m.Search("org-1", "budsjettet", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("old documents survived rebuild: %+v", hits)
	}
	hits, err = m.Search("org-1", "regnskapet", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].VideoID != "vid-9" {
		t.Fatalf("new document not searchable: %+v", hits)
	}
}
