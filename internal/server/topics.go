package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/deepresearch/internal/runner"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

type CreateTopicRequest struct {
	Name         string `json:"name"`
	Query        string `json:"query"`
	Mode         string `json:"mode"`
	ScheduleCron string `json:"schedule_cron"`
}

type TopicsHandler struct {
	Store  *store.Store
	Runner *runner.Runner
}

func (h *TopicsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.POST("", h.create)
	g.GET("", h.list)
	g.POST("/:id/run", h.run)
}

func (h *TopicsHandler) create(c echo.Context) error {
	var req CreateTopicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and query are required")
	}
	mode, err := normalizeMode(req.Mode)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ScheduleCron != "" && req.ScheduleCron != "@daily" && req.ScheduleCron != "@hourly" {
		if _, err := cronexpr.Parse(req.ScheduleCron); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cron expression: "+req.ScheduleCron)
		}
	}
	id, err := h.Store.CreateTopic(c.Request().Context(), userID(c), req.Name, req.Query, mode, req.ScheduleCron)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *TopicsHandler) list(c echo.Context) error {
	topics, err := h.Store.ListTopics(c.Request().Context(), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if topics == nil {
		topics = []store.Topic{}
	}
	return c.JSON(http.StatusOK, topics)
}

// run fires a one-off run of a saved topic
func (h *TopicsHandler) run(c echo.Context) error {
	uid := userID(c)
	topics, err := h.Store.ListTopics(c.Request().Context(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	var topic *store.Topic
	for i := range topics {
		if topics[i].ID == c.Param("id") {
			topic = &topics[i]
			break
		}
	}
	if topic == nil {
		return echo.NewHTTPError(http.StatusNotFound, "topic not found")
	}
	runID, err := h.Store.CreateRun(c.Request().Context(), uid, &topic.ID, topic.Query, topic.Mode)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	query, mode := topic.Query, topic.Mode
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		_, _ = h.Runner.Execute(ctx, runID, query, mode)
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"run_id": runID, "status": store.RunStatusPending})
}
