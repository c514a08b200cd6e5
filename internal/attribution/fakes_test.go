package attribution

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/kildespor/kildespor/models"
)

// fakeStore is an in-memory SegmentStore for pipeline tests.
type fakeStore struct {
	videos   map[string]models.Video
	segments map[string][]models.Segment // by video id, sorted by start
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		videos:   make(map[string]models.Video),
		segments: make(map[string][]models.Segment),
	}
}

func (f *fakeStore) addVideo(v models.Video, segs ...models.Segment) {
	f.videos[v.ID] = v
	for i := range segs {
		segs[i].VideoID = v.ID
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].StartTime < segs[j].StartTime })
	f.segments[v.ID] = segs
}

func (f *fakeStore) GetVideo(_ context.Context, id string) (models.Video, bool, error) {
	v, ok := f.videos[id]
	return v, ok, nil
}

func (f *fakeStore) SegmentNearStart(_ context.Context, videoID string, start, tol float64) (models.Segment, bool, error) {
	for _, s := range f.segments[videoID] {
		if math.Abs(s.StartTime-start) <= tol {
			return s, true, nil
		}
	}
	return models.Segment{}, false, nil
}

func (f *fakeStore) SegmentByOrdinal(_ context.Context, videoID string, ordinal int) (models.Segment, bool, error) {
	for _, s := range f.segments[videoID] {
		if s.Ordinal == ordinal {
			return s, true, nil
		}
	}
	return models.Segment{}, false, nil
}

func (f *fakeStore) FirstSegment(_ context.Context, videoID string) (models.Segment, bool, error) {
	segs := f.segments[videoID]
	if len(segs) == 0 {
		return models.Segment{}, false, nil
	}
	return segs[0], true, nil
}

func (f *fakeStore) NearestSegment(_ context.Context, videoID string, ts float64) (models.Segment, bool, error) {
	segs := f.segments[videoID]
	if len(segs) == 0 {
		return models.Segment{}, false, nil
	}
	best := segs[0]
	for _, s := range segs[1:] {
		if math.Abs(s.StartTime-ts) < math.Abs(best.StartTime-ts) {
			best = s
		}
	}
	return best, true, nil
}

func (f *fakeStore) SegmentsBefore(_ context.Context, videoID string, start float64, n int) ([]models.Segment, error) {
	var out []models.Segment
	segs := f.segments[videoID]
	for i := len(segs) - 1; i >= 0 && len(out) < n; i-- {
		if segs[i].StartTime < start {
			out = append(out, segs[i])
		}
	}
	return out, nil
}

func (f *fakeStore) SegmentsAfter(_ context.Context, videoID string, start float64, n int) ([]models.Segment, error) {
	var out []models.Segment
	for _, s := range f.segments[videoID] {
		if s.StartTime > start {
			out = append(out, s)
			if len(out) >= n {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) SearchSegments(_ context.Context, orgID string, terms []string, limit int) ([]models.Segment, error) {
	var out []models.Segment
	var videoIDs []string
	for id := range f.videos {
		videoIDs = append(videoIDs, id)
	}
	sort.Strings(videoIDs)
	for _, vid := range videoIDs {
		if f.videos[vid].OrganizationID != orgID {
			continue
		}
		for _, s := range f.segments[vid] {
			for _, term := range terms {
				if strings.Contains(strings.ToLower(s.Text), strings.ToLower(term)) {
					out = append(out, s)
					break
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// allowAll admits every video; denyVideos blocks the listed ids.
type fakeAccess struct {
	denied map[string]bool
}

func (f *fakeAccess) CanView(_ context.Context, _ models.User, video models.Video) (bool, error) {
	return !f.denied[video.ID], nil
}

func allowAll() *fakeAccess { return &fakeAccess{denied: map[string]bool{}} }

func denyVideos(ids ...string) *fakeAccess {
	d := make(map[string]bool, len(ids))
	for _, id := range ids {
		d[id] = true
	}
	return &fakeAccess{denied: d}
}

// fakeLLM returns a canned response or error.
type fakeLLM struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}
