package worker

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/kildespor/kildespor/internal/searchindex"
	"github.com/kildespor/kildespor/internal/store"
)

// Reindexer rebuilds every organization's full-text index on a cron
// schedule. The in-memory index drifts from Postgres only if a worker dies
// mid-ingest; the rebuild bounds that drift.
type Reindexer struct {
	Store  *store.Store
	Index  *searchindex.Manager
	Rdb    *redis.Client
	Logger *log.Logger
	Cron   string
}

// Run sleeps until each cron fire and rebuilds. An unparseable expression
// falls back to daily.
func (r *Reindexer) Run(ctx context.Context) error {
	expr, err := cronexpr.Parse(r.Cron)
	if err != nil {
		r.Logger.Printf("invalid reindex cron %q, falling back to daily: %v", r.Cron, err)
		expr = cronexpr.MustParse("0 3 * * *")
	}
	for {
		next := expr.Next(time.Now())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}
		r.rebuildAll(ctx)
	}
}

// RebuildAll rebuilds every organization's index immediately. Used at
// startup so search works before the first cron fire.
func (r *Reindexer) RebuildAll(ctx context.Context) {
	r.rebuildAll(ctx)
}

func (r *Reindexer) rebuildAll(ctx context.Context) {
	// Distributed lock so multiple replicas do not rebuild at once.
	if r.Rdb != nil {
		ok, err := r.Rdb.SetNX(ctx, "reindex:lock", "1", 10*time.Minute).Result()
		if err != nil || !ok {
			return
		}
		defer r.Rdb.Del(ctx, "reindex:lock")
	}

	orgs, err := r.Store.ListOrganizationIDs(ctx)
	if err != nil {
		r.Logger.Printf("list organizations: %v", err)
		return
	}
	for _, orgID := range orgs {
		segs, err := r.Store.SegmentsByOrg(ctx, orgID)
		if err != nil {
			r.Logger.Printf("load segments for organization %s: %v", orgID, err)
			continue
		}
		if err := r.Index.Rebuild(orgID, segs); err != nil {
			r.Logger.Printf("rebuild index for organization %s: %v", orgID, err)
		}
	}
}
