package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/kildespor/kildespor/config"
	"github.com/kildespor/kildespor/internal/access"
	"github.com/kildespor/kildespor/internal/attribution"
	"github.com/kildespor/kildespor/internal/retrieval"
	"github.com/kildespor/kildespor/internal/runtime"
	"github.com/kildespor/kildespor/internal/searchindex"
	"github.com/kildespor/kildespor/internal/store"
	"github.com/kildespor/kildespor/internal/worker"
	"github.com/kildespor/kildespor/provider"
)

// Run wires the whole service and blocks serving HTTP. The ingest consumer
// and the index rebuild scheduler run as goroutines in this process so the
// in-memory search index stays current.
func Run(cfgPath, addr string) error {
	cfg := config.LoadConfig(cfgPath)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	registerDocs(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		baseLogger.Printf("migrate: %v", err)
	}

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}
	if err := cfg.Engine.Validate(); err != nil {
		return err
	}
	if err := cfg.Storage.Redis.Validate(); err != nil {
		return err
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr(),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
	}

	engineLogger := log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)
	registry := retrieval.NewRegistry(cfg.Engine, engineLogger)
	defer registry.Shutdown()

	var llm attribution.LLM
	if p, err := provider.NewProvider(provider.OpenAI, cfg.Providers); err != nil {
		baseLogger.Printf("correction model disabled: %v", err)
	} else {
		llm = p
	}

	attrLogger := log.New(log.Writer(), "[ATTR] ", log.LstdFlags)
	annotator := attribution.NewRegexAnnotator(cfg.Language.Stopwords)
	filter := access.NewFilter(st)
	pipeline := &attribution.Pipeline{
		Registry:      registry,
		Conversations: st,
		Resolver: &attribution.Resolver{
			Store:        st,
			Access:       filter,
			Logger:       attrLogger,
			CandidateCap: cfg.Attribution.HeaderCandidateCap,
		},
		Searcher: &attribution.Searcher{
			Store:         st,
			Access:        filter,
			Annotator:     annotator,
			Logger:        attrLogger,
			Limit:         cfg.Attribution.SourceLimit,
			EntityWeight:  cfg.Attribution.EntityWeight,
			KeywordWeight: cfg.Attribution.KeywordWeight,
		},
		Filter: &attribution.RelevanceFilter{
			Annotator:      annotator,
			Logger:         attrLogger,
			Greetings:      cfg.Language.Greetings,
			GenericPhrases: cfg.Language.GenericPhrases,
			EntityWeight:   cfg.Attribution.EntityWeight,
			QueryBonus:     cfg.Attribution.QueryBonus,
			MinScore:       cfg.Attribution.MinRelevanceScore,
		},
		Enricher: &attribution.Enricher{
			Store:     st,
			Logger:    attrLogger,
			Neighbors: cfg.Attribution.ContextSegments,
		},
		Corrector: &attribution.Corrector{
			LLM:        llm,
			Logger:     attrLogger,
			MaxSources: cfg.Attribution.CorrectionSources,
		},
		Annotator: annotator,
		Engine:    cfg.Engine,
		Logger:    attrLogger,
	}

	indexLogger := log.New(log.Writer(), "[INDEX] ", log.LstdFlags)
	index := searchindex.NewManager(indexLogger)
	queue := &worker.Queue{Rdb: rdb, Stream: cfg.Worker.Stream}

	api := e.Group("/api")
	(&AuthHandler{Store: st, Secret: secret}).Register(api.Group("/auth"))

	authed := runtime.EchoAuthMiddleware(secret)
	api.GET("/me", func(c echo.Context) error {
		user, err := currentUser(c, st)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, user)
	}, authed)

	(&ChatHandler{Store: st, Pipeline: pipeline}).Register(api.Group("/chat", authed))
	(&ConversationsHandler{Store: st}).Register(api.Group("/conversations", authed))
	(&VideosHandler{Store: st, Access: filter, Registry: registry, Index: index, Queue: queue}).
		Register(api.Group("/videos", authed))
	(&SearchHandler{Store: st, Access: filter, Index: index, Registry: registry, TopK: cfg.Engine.AnswerTopK}).
		Register(api.Group("/search", authed))

	workerLogger := log.New(log.Writer(), "[WORKER] ", log.LstdFlags)
	ingester := &worker.Ingester{
		Rdb: rdb, Store: st, Registry: registry, Index: index,
		Logger: workerLogger, Cfg: cfg.Worker,
	}
	go func() {
		if err := ingester.Run(ctx); err != nil && ctx.Err() == nil {
			workerLogger.Printf("ingester stopped: %v", err)
		}
	}()

	reindexer := &worker.Reindexer{
		Store: st, Index: index, Rdb: rdb,
		Logger: indexLogger, Cron: cfg.Index.RebuildCron,
	}
	go reindexer.RebuildAll(ctx)
	go func() {
		if err := reindexer.Run(ctx); err != nil && ctx.Err() == nil {
			indexLogger.Printf("reindexer stopped: %v", err)
		}
	}()

	if addr == "" {
		addr = normalizeAddr(cfg.General.Listen)
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// normalizeAddr turns a bare port from config into a listen address and
// leaves host:port values untouched.
func normalizeAddr(listen string) string {
	if listen == "" {
		return ":8000"
	}
	if !strings.Contains(listen, ":") {
		return ":" + listen
	}
	return listen
}
