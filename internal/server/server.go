package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/inkpress/inkpress/config"
	"github.com/inkpress/inkpress/internal/history"
	"github.com/inkpress/inkpress/internal/llm"
	"github.com/inkpress/inkpress/internal/narrate"
	"github.com/inkpress/inkpress/internal/notify"
	"github.com/inkpress/inkpress/internal/pipeline"
	"github.com/inkpress/inkpress/internal/publish"
	"github.com/inkpress/inkpress/internal/store"
)

// Run wires all dependencies and serves the HTTP API plus the scheduler
// until the listener stops.
func Run(cfg *config.Config, addr string) error {
	e := newEcho()

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return fmt.Errorf("postgres connection failed: %w", err)
	}

	var rdb *redis.Client
	if raddr := cfg.Storage.Redis.Addr(); raddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     raddr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", raddr, err)
		}
	}

	pipe := buildPipeline(cfg, st, rdb)

	api := e.Group("/api")
	if cfg.General.JWTSecret != "" {
		api.Use(echoAuthMiddleware([]byte(cfg.General.JWTSecret)))
	}
	(&RunsHandler{Pipeline: pipe}).Register(api)
	(&HistoryHandler{Stats: st}).Register(api.Group("/history"))

	sched := &Scheduler{
		Pipeline: pipe,
		Runs:     st,
		Rdb:      rdb,
		Cron:     cfg.Schedule.Cron,
		Stop:     make(chan struct{}),
	}
	sched.Start()

	if addr == "" {
		addr = cfg.General.Listen
		if addr == "" {
			addr = ":10080"
		}
	}
	if addr[0] != ':' && !hasHost(addr) {
		addr = ":" + addr
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// BuildPipeline assembles the publication pipeline from config and shared
// stores. Exposed for the one-shot run command.
func BuildPipeline(cfg *config.Config, st *store.Store, rdb *redis.Client) *pipeline.Pipeline {
	return buildPipeline(cfg, st, rdb)
}

func buildPipeline(cfg *config.Config, st *store.Store, rdb *redis.Client) *pipeline.Pipeline {
	llmLogger := log.New(log.Writer(), "[LLM] ", log.LstdFlags)
	client := llm.New(cfg.LLM, llmLogger)

	var pub pipeline.Publisher
	if cfg.Publisher.Enabled {
		pub = publish.New(cfg.Publisher, log.New(log.Writer(), "[PUBLISH] ", log.LstdFlags))
	}
	mailer := notify.New(cfg.SMTP, log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags))
	narrator := narrate.New(cfg.Narration, client, log.New(log.Writer(), "[NARRATE] ", log.LstdFlags))

	var cache *history.SnapshotCache
	if rdb != nil {
		cache = history.NewSnapshotCache(rdb, cfg.History.SnapshotTTL)
	}

	opts := pipeline.Options{
		PublisherEnabled:  cfg.Publisher.Enabled,
		PublisherCritical: cfg.Publisher.Critical,
		RecentWindowDays:  cfg.History.RecentWindowDays,
		GenerateAttempts:  cfg.LLM.MaxRetries,
		ReadBaseURL:       cfg.SMTP.ReadBaseURL,
	}
	return pipeline.New(opts, client, st, st, st, pub, mailer, narrator, cache,
		log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags))
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

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
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))
	return e
}

func hasHost(addr string) bool {
	for _, r := range addr {
		if r == ':' {
			return true
		}
	}
	return false
}
