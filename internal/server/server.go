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

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/provider"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/runner"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

// Run boots the HTTP API: migrations, store, redis, model provider,
// runner, route groups, and the topic scheduler.
func Run(cfg *config.Config, addr string) error {
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
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		log.Printf("migrate: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s:%d): %w", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, err)
	}

	llm, err := provider.NewOpenAIProvider(cfg.LLM)
	if err != nil {
		return err
	}
	tele := telemetry.New()
	rn := runner.New(cfg, llm, st, rdb, tele)

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}
	auth := &AuthHandler{Store: st, Secret: []byte(secret)}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	(&ScenariosHandler{}).Register(api.Group("/scenarios"))

	api.GET("/stats", func(c echo.Context) error {
		return c.JSON(http.StatusOK, tele.GetSnapshot())
	})

	rh := &RunsHandler{Store: st, Runner: rn}
	rh.Register(api.Group("/runs"), auth.Secret)

	th := &TopicsHandler{Store: st, Runner: rn}
	th.Register(api.Group("/topics"), auth.Secret)

	sched := &Scheduler{Store: st, Runner: rn, Rdb: rdb, Stop: make(chan struct{})}
	sched.Start()

	if addr == "" {
		addr = cfg.Server.Addr
		if addr == "" {
			addr = ":10001"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
