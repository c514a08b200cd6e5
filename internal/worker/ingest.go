package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kildespor/kildespor/config"
	"github.com/kildespor/kildespor/internal/retrieval"
	"github.com/kildespor/kildespor/internal/searchindex"
	"github.com/kildespor/kildespor/internal/store"
	"github.com/kildespor/kildespor/models"
)

// Ingester consumes transcript jobs from the stream: it stores segments,
// pushes the header-tagged document into the retrieval engine and indexes the
// segments for full-text search.
type Ingester struct {
	Rdb      *redis.Client
	Store    *store.Store
	Registry *retrieval.Registry
	Index    *searchindex.Manager
	Logger   *log.Logger
	Cfg      config.WorkerConfig
}

// EnsureGroup creates the consumer group if it does not exist. Starting at
// "0" replays jobs enqueued before the first worker came up.
func (w *Ingester) EnsureGroup(ctx context.Context) error {
	err := w.Rdb.XGroupCreateMkStream(ctx, w.Cfg.Stream, w.Cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("xgroup create: %w", err)
	}
	return nil
}

// Run consumes jobs until the context is cancelled. A failed job marks its
// video failed and is acknowledged; redelivery would fail the same way.
func (w *Ingester) Run(ctx context.Context) error {
	if err := w.EnsureGroup(ctx); err != nil {
		return err
	}
	block := w.Cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		streams, err := w.Rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.Cfg.Group,
			Consumer: w.Cfg.Consumer,
			Streams:  []string{w.Cfg.Stream, ">"},
			Count:    1,
			Block:    block,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Logger.Printf("xreadgroup: %v", err)
			time.Sleep(time.Second)
			continue
		}
		for _, st := range streams {
			for _, msg := range st.Messages {
				w.handle(ctx, msg)
			}
		}
	}
}

func (w *Ingester) handle(ctx context.Context, msg redis.XMessage) {
	defer func() {
		if err := w.Rdb.XAck(ctx, w.Cfg.Stream, w.Cfg.Group, msg.ID).Err(); err != nil {
			w.Logger.Printf("xack %s: %v", msg.ID, err)
		}
	}()

	raw, ok := msg.Values["job"].(string)
	if !ok {
		w.Logger.Printf("message %s has no job payload, dropping", msg.ID)
		return
	}
	var job IngestJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.Logger.Printf("message %s: bad job payload: %v", msg.ID, err)
		return
	}

	if err := w.process(ctx, job); err != nil {
		w.Logger.Printf("ingest job %s video %s failed: %v", job.JobID, job.VideoID, err)
		if err := w.Store.SetVideoStatus(ctx, job.VideoID, models.VideoFailed); err != nil {
			w.Logger.Printf("mark video %s failed: %v", job.VideoID, err)
		}
		return
	}
	w.Logger.Printf("job %s: ingested video %s, %d segment(s)", job.JobID, job.VideoID, len(job.Segments))
}

func (w *Ingester) process(ctx context.Context, job IngestJob) error {
	if err := w.Store.InsertSegments(ctx, job.VideoID, job.Segments); err != nil {
		return fmt.Errorf("store segments: %w", err)
	}
	// Re-read for the generated segment ids; the index keys on them.
	segs, err := w.Store.SegmentsByVideo(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("reload segments: %w", err)
	}

	ins, err := w.Registry.Instance(job.OrganizationID)
	if err != nil {
		return err
	}
	if err := ins.Insert(ctx, job.VideoID, TagTranscript(job.VideoID, segs)); err != nil {
		return fmt.Errorf("engine insert: %w", err)
	}

	if err := w.Index.IndexSegments(job.OrganizationID, segs); err != nil {
		return fmt.Errorf("index segments: %w", err)
	}
	return w.Store.SetVideoStatus(ctx, job.VideoID, models.VideoCompleted)
}

// TagTranscript renders segments as the header-tagged document the retrieval
// engine ingests. The header format is what ParseHeaders later recognizes in
// retrieval contexts.
func TagTranscript(videoID string, segs []models.Segment) string {
	var b strings.Builder
	for _, seg := range segs {
		fmt.Fprintf(&b, "[video_id=%s;start=%.2f;end=%.2f;segment_id=%d] %s\n",
			videoID, seg.StartTime, seg.EndTime, seg.Ordinal, seg.Text)
	}
	return b.String()
}
