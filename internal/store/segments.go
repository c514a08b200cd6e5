package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kildespor/kildespor/models"
)

const segmentColumns = `id, video_id, ordinal, start_time, end_time, text`

func scanSegment(row interface{ Scan(...interface{}) error }) (models.Segment, error) {
	var seg models.Segment
	err := row.Scan(&seg.ID, &seg.VideoID, &seg.Ordinal, &seg.StartTime, &seg.EndTime, &seg.Text)
	return seg, err
}

func (s *Store) scanSegments(rows *sql.Rows) ([]models.Segment, error) {
	defer rows.Close()
	var out []models.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// InsertSegments writes a video's transcript segments in one transaction.
// Existing segments for the video are replaced; ingest is all-or-nothing.
func (s *Store) InsertSegments(ctx context.Context, videoID string, segs []models.Segment) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM video_segments WHERE video_id=$1`, videoID); err != nil {
		return err
	}
	for _, seg := range segs {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO video_segments (video_id, ordinal, start_time, end_time, text)
VALUES ($1,$2,$3,$4,$5)`, videoID, seg.Ordinal, seg.StartTime, seg.EndTime, seg.Text); err != nil {
			return fmt.Errorf("insert segment %d: %w", seg.Ordinal, err)
		}
	}
	return tx.Commit()
}

func (s *Store) DeleteSegments(ctx context.Context, videoID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM video_segments WHERE video_id=$1`, videoID)
	return err
}

func (s *Store) SegmentsByVideo(ctx context.Context, videoID string) ([]models.Segment, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+segmentColumns+` FROM video_segments WHERE video_id=$1 ORDER BY start_time`, videoID)
	if err != nil {
		return nil, err
	}
	return s.scanSegments(rows)
}

// SegmentNearStart finds a segment of the video whose start time is within
// tol seconds of start.
func (s *Store) SegmentNearStart(ctx context.Context, videoID string, start, tol float64) (models.Segment, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT `+segmentColumns+` FROM video_segments
WHERE video_id=$1 AND start_time >= $2 AND start_time <= $3
ORDER BY start_time LIMIT 1`, videoID, start-tol, start+tol)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Segment{}, false, nil
	}
	if err != nil {
		return models.Segment{}, false, err
	}
	return seg, true, nil
}

// SegmentByOrdinal looks up the segment with the given transcript ordinal.
func (s *Store) SegmentByOrdinal(ctx context.Context, videoID string, ordinal int) (models.Segment, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT `+segmentColumns+` FROM video_segments WHERE video_id=$1 AND ordinal=$2`, videoID, ordinal)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Segment{}, false, nil
	}
	if err != nil {
		return models.Segment{}, false, err
	}
	return seg, true, nil
}

// FirstSegment returns any segment of the video, earliest first. Used as the
// last-resort match when a header's position cannot be trusted.
func (s *Store) FirstSegment(ctx context.Context, videoID string) (models.Segment, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT `+segmentColumns+` FROM video_segments WHERE video_id=$1 ORDER BY start_time LIMIT 1`, videoID)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Segment{}, false, nil
	}
	if err != nil {
		return models.Segment{}, false, err
	}
	return seg, true, nil
}

// NearestSegment returns the segment whose start time is closest to ts.
func (s *Store) NearestSegment(ctx context.Context, videoID string, ts float64) (models.Segment, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT `+segmentColumns+` FROM video_segments
WHERE video_id=$1 ORDER BY ABS(start_time - $2) LIMIT 1`, videoID, ts)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Segment{}, false, nil
	}
	if err != nil {
		return models.Segment{}, false, err
	}
	return seg, true, nil
}

// SegmentsBefore returns up to n segments of the video preceding start,
// nearest first.
func (s *Store) SegmentsBefore(ctx context.Context, videoID string, start float64, n int) ([]models.Segment, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+segmentColumns+` FROM video_segments
WHERE video_id=$1 AND start_time < $2 ORDER BY start_time DESC LIMIT $3`, videoID, start, n)
	if err != nil {
		return nil, err
	}
	return s.scanSegments(rows)
}

// SegmentsAfter returns up to n segments of the video following start, in
// chronological order.
func (s *Store) SegmentsAfter(ctx context.Context, videoID string, start float64, n int) ([]models.Segment, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+segmentColumns+` FROM video_segments
WHERE video_id=$1 AND start_time > $2 ORDER BY start_time ASC LIMIT $3`, videoID, start, n)
	if err != nil {
		return nil, err
	}
	return s.scanSegments(rows)
}

// SegmentsByOrg returns every segment of the organization's videos, used for
// full index rebuilds.
func (s *Store) SegmentsByOrg(ctx context.Context, orgID string) ([]models.Segment, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT s.id, s.video_id, s.ordinal, s.start_time, s.end_time, s.text
FROM video_segments s
JOIN videos v ON v.id = s.video_id
WHERE v.organization_id = $1
ORDER BY s.video_id, s.start_time`, orgID)
	if err != nil {
		return nil, err
	}
	return s.scanSegments(rows)
}

// SearchSegments finds segments in the organization whose text contains any
// of the given terms (case-insensitive substring), ordered by start time.
func (s *Store) SearchSegments(ctx context.Context, orgID string, terms []string, limit int) ([]models.Segment, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	conds := make([]string, 0, len(terms))
	args := []interface{}{orgID}
	for _, term := range terms {
		args = append(args, "%"+term+"%")
		conds = append(conds, fmt.Sprintf("s.text ILIKE $%d", len(args)))
	}
	args = append(args, limit)
	query := fmt.Sprintf(`
SELECT s.id, s.video_id, s.ordinal, s.start_time, s.end_time, s.text
FROM video_segments s
JOIN videos v ON v.id = s.video_id
WHERE v.organization_id = $1 AND (%s)
ORDER BY s.start_time
LIMIT $%d`, strings.Join(conds, " OR "), len(args))
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return s.scanSegments(rows)
}
