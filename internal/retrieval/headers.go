package retrieval

import (
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Header is one parsed metadata marker from retrieval context. Context holds
// the verbatim text span that followed the marker, used later for relevance
// scoring of the segment it points at.
type Header struct {
	VideoID   string
	Start     float64
	End       float64
	SegmentID string
	Context   string
}

// Markers look like [video_id=<uuid>;start=<number>;end=<number>;segment_id=<token>].
// The video id must be a full 8-4-4-4-12 hex UUID; anything looser is noise
// from the engine's own formatting and gets skipped.
var headerPattern = regexp.MustCompile(
	`(?i)\[video_id=([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12});start=([^;\]]+);end=([^;\]]+);segment_id=([^\]]+)\]`)

const contextSpanLimit = 500

// ParseHeaders extracts metadata headers from a retrieval context string.
// Headers with a malformed video id or an unparseable start time are skipped
// and logged, never raised. Duplicate (video, start) pairs collapse to the
// first occurrence, so callers that concatenate contexts decide priority by
// concatenation order.
func ParseHeaders(text string, logger *log.Logger) []Header {
	matches := headerPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	type key struct {
		videoID string
		start   float64
	}
	seen := make(map[key]bool)
	out := make([]Header, 0, len(matches))

	for i, m := range matches {
		videoID := strings.ToLower(strings.TrimSpace(text[m[2]:m[3]]))
		startStr := strings.TrimSpace(text[m[4]:m[5]])
		endStr := strings.TrimSpace(text[m[6]:m[7]])
		segmentID := strings.TrimSpace(text[m[8]:m[9]])

		start, err := strconv.ParseFloat(startStr, 64)
		if err != nil || math.IsNaN(start) || math.IsInf(start, 0) {
			if logger != nil {
				logger.Printf("skipping header with invalid start %q (video %s)", startStr, videoID)
			}
			continue
		}
		end, err := strconv.ParseFloat(endStr, 64)
		if err != nil || math.IsNaN(end) || math.IsInf(end, 0) {
			if logger != nil {
				logger.Printf("header for video %s has invalid end %q, keeping start only", videoID, endStr)
			}
			end = 0
		}

		k := key{videoID, start}
		if seen[k] {
			continue
		}
		seen[k] = true

		// The span between this header and the next is what the engine
		// retrieved for this segment.
		spanEnd := len(text)
		if i+1 < len(matches) {
			spanEnd = matches[i+1][0]
		}
		span := strings.TrimSpace(text[m[1]:spanEnd])
		if len(span) > contextSpanLimit {
			span = span[:contextSpanLimit]
		}

		out = append(out, Header{
			VideoID:   videoID,
			Start:     start,
			End:       end,
			SegmentID: segmentID,
			Context:   span,
		})
	}
	return out
}
