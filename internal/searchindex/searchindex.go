// Package searchindex keeps one in-memory BM25 index of transcript segments
// per organization, backing the transcript search API. The Postgres store
// stays the source of truth; indexes are rebuilt from it on ingest and on a
// schedule.
package searchindex

import (
	"log"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/kildespor/kildespor/models"
)

// segmentDoc is the indexed shape of one segment.
type segmentDoc struct {
	VideoID   string  `json:"video_id"`
	StartTime float64 `json:"start_time"`
	Text      string  `json:"text"`
}

// Hit is one search result with the owning video attached for display and
// access checks.
type Hit struct {
	SegmentID string  `json:"segment_id"`
	VideoID   string  `json:"video_id"`
	StartTime float64 `json:"start_time"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
}

// Manager owns the per-organization indexes.
type Manager struct {
	logger *log.Logger

	mu      sync.RWMutex
	indexes map[string]*orgIndex
}

type orgIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	meta  map[string]segmentDoc
}

func NewManager(logger *log.Logger) *Manager {
	return &Manager{logger: logger, indexes: make(map[string]*orgIndex)}
}

func (m *Manager) org(orgID string) (*orgIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.indexes[orgID]; ok {
		return idx, nil
	}
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	idx := &orgIndex{index: index, meta: make(map[string]segmentDoc)}
	m.indexes[orgID] = idx
	return idx, nil
}

// IndexSegments adds or replaces the given segments in the organization's
// index.
func (m *Manager) IndexSegments(orgID string, segs []models.Segment) error {
	idx, err := m.org(orgID)
	if err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, seg := range segs {
		doc := segmentDoc{VideoID: seg.VideoID, StartTime: seg.StartTime, Text: seg.Text}
		if err := idx.index.Index(seg.ID, doc); err != nil {
			return err
		}
		idx.meta[seg.ID] = doc
	}
	return nil
}

// RemoveVideo drops every indexed segment of the video.
func (m *Manager) RemoveVideo(orgID, videoID string) error {
	m.mu.RLock()
	idx, ok := m.indexes[orgID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for id, doc := range idx.meta {
		if doc.VideoID != videoID {
			continue
		}
		if err := idx.index.Delete(id); err != nil {
			return err
		}
		delete(idx.meta, id)
	}
	return nil
}

// Rebuild replaces the organization's index wholesale with the given
// segments.
func (m *Manager) Rebuild(orgID string, segs []models.Segment) error {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return err
	}
	meta := make(map[string]segmentDoc, len(segs))
	for _, seg := range segs {
		doc := segmentDoc{VideoID: seg.VideoID, StartTime: seg.StartTime, Text: seg.Text}
		if err := index.Index(seg.ID, doc); err != nil {
			return err
		}
		meta[seg.ID] = doc
	}

	m.mu.Lock()
	old, had := m.indexes[orgID]
	m.indexes[orgID] = &orgIndex{index: index, meta: meta}
	m.mu.Unlock()
	if had {
		old.mu.Lock()
		_ = old.index.Close()
		old.mu.Unlock()
	}
	if m.logger != nil {
		m.logger.Printf("rebuilt index for organization %s: %d segment(s)", orgID, len(segs))
	}
	return nil
}

// Search runs a BM25 query over the organization's segments.
func (m *Manager) Search(orgID, q string, k int) ([]Hit, error) {
	m.mu.RLock()
	idx, ok := m.indexes[orgID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	res, err := idx.index.Search(searchReq)
	if err != nil {
		return nil, err
	}

	var out []Hit
	for _, hit := range res.Hits {
		doc := idx.meta[hit.ID]
		out = append(out, Hit{
			SegmentID: hit.ID,
			VideoID:   doc.VideoID,
			StartTime: doc.StartTime,
			Snippet:   snippet(doc.Text),
			Score:     hit.Score,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func snippet(s string) string {
	if len(s) <= 300 {
		return s
	}
	return s[:300] + "..."
}
