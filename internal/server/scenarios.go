package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/deepresearch/config"
)

type ScenariosHandler struct{}

func (h *ScenariosHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

func (h *ScenariosHandler) list(c echo.Context) error {
	return c.JSON(http.StatusOK, config.Scenarios())
}

func (h *ScenariosHandler) get(c echo.Context) error {
	s, ok := config.ScenarioByID(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "scenario not found")
	}
	return c.JSON(http.StatusOK, s)
}
