package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/deepresearch/internal/runner"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

type CreateRunRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

type RunsHandler struct {
	Store  *store.Store
	Runner *runner.Runner
}

func (h *RunsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/report", h.report)
	g.GET("/:id/evidence", h.evidence)
	g.GET("/:id/claims", h.claims)
	g.GET("/:id/events", h.events)
	g.GET("/:id/todo", h.todo)
	g.GET("/:id/status", h.status)
}

func (h *RunsHandler) create(c echo.Context) error {
	var req CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	mode, err := normalizeMode(req.Mode)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	uid := userID(c)
	runID, err := h.Store.CreateRun(c.Request().Context(), uid, nil, req.Query, mode)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Research runs take minutes; execute in the background and let the
	// client poll status or subscribe to progress.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		_, _ = h.Runner.Execute(ctx, runID, req.Query, mode)
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"run_id": runID, "status": store.RunStatusPending})
}

func (h *RunsHandler) list(c echo.Context) error {
	runs, err := h.Store.ListRuns(c.Request().Context(), userID(c), 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *RunsHandler) get(c echo.Context) error {
	run, err := h.Store.GetRun(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, run)
}

func (h *RunsHandler) report(c echo.Context) error {
	run, err := h.Store.GetRun(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if run.Report == "" {
		return echo.NewHTTPError(http.StatusNotFound, "report not available")
	}
	return c.JSON(http.StatusOK, map[string]string{"run_id": run.ID, "report": run.Report})
}

func (h *RunsHandler) evidence(c echo.Context) error {
	if err := h.checkOwnership(c); err != nil {
		return err
	}
	entries, err := h.Store.ListEvidence(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []store.Evidence{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *RunsHandler) claims(c echo.Context) error {
	if err := h.checkOwnership(c); err != nil {
		return err
	}
	claims, err := h.Store.ListClaims(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if claims == nil {
		claims = []store.Claim{}
	}
	return c.JSON(http.StatusOK, claims)
}

func (h *RunsHandler) events(c echo.Context) error {
	if err := h.checkOwnership(c); err != nil {
		return err
	}
	events, err := h.Store.ListRunEvents(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if events == nil {
		events = []store.RunEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

// todo serves the task list from the latest progress snapshot; it only
// exists while the run's toolset is alive, so absence is a 404
func (h *RunsHandler) todo(c echo.Context) error {
	if err := h.checkOwnership(c); err != nil {
		return err
	}
	p, err := h.Runner.CachedStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if p == nil || p.Todo == nil {
		return echo.NewHTTPError(http.StatusNotFound, "todo state not available")
	}
	return c.JSON(http.StatusOK, p.Todo)
}

// status prefers the redis progress snapshot (fresher during a run) and
// falls back to the database row
func (h *RunsHandler) status(c echo.Context) error {
	run, err := h.Store.GetRun(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if p, err := h.Runner.CachedStatus(c.Request().Context(), run.ID); err == nil && p != nil {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"run_id": run.ID,
			"status": run.Status,
			"live":   p,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id": run.ID,
		"status": run.Status,
		"phase":  run.Phase,
		"step":   run.StepCount,
		"tokens": run.TotalTokens,
	})
}

func (h *RunsHandler) checkOwnership(c echo.Context) error {
	if _, err := h.Store.GetRun(c.Request().Context(), c.Param("id"), userID(c)); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return nil
}

func normalizeMode(mode string) (string, error) {
	switch mode {
	case "", runner.ModeDeepResearch:
		return runner.ModeDeepResearch, nil
	case runner.ModeBaseline:
		return runner.ModeBaseline, nil
	default:
		return "", fmt.Errorf("unknown mode: %s", mode)
	}
}
