// Package worker runs transcript ingest off a Redis stream and the scheduled
// rebuild of the full-text index. Ingest is asynchronous so the upload API
// can return immediately while segment storage, engine insertion and indexing
// happen here.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kildespor/kildespor/models"
)

// IngestJob is one transcript waiting to be ingested. JobID is stamped at
// enqueue time and correlates API and worker log lines.
type IngestJob struct {
	JobID          string           `json:"job_id"`
	VideoID        string           `json:"video_id"`
	OrganizationID string           `json:"organization_id"`
	Segments       []models.Segment `json:"segments"`
}

// Queue publishes ingest jobs onto the Redis stream.
type Queue struct {
	Rdb    *redis.Client
	Stream string
}

// Enqueue appends the job to the stream. The stream is capped approximately
// so a stalled worker cannot grow it without bound.
func (q *Queue) Enqueue(ctx context.Context, job IngestJob) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal ingest job: %w", err)
	}
	err = q.Rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.Stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{"job": raw},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}
