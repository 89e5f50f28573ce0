package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/inkpress/inkpress/internal/pipeline"
	"github.com/inkpress/inkpress/internal/store"
)

// Runner triggers a publication run. Implemented by pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, trigger string) pipeline.Result
}

// StatsSource serves aggregated history. Implemented by store.Store.
type StatsSource interface {
	HistoryStats(ctx context.Context) (store.Stats, error)
}

// RunsHandler exposes on-demand pipeline runs.
type RunsHandler struct {
	Pipeline Runner
}

func (h *RunsHandler) Register(g *echo.Group) {
	g.POST("/generate", h.generate)
}

// generate triggers a full publication run and reports its result. Degraded
// runs still return 200; only a fully failed run is an error.
func (h *RunsHandler) generate(c echo.Context) error {
	res := h.Pipeline.Run(c.Request().Context(), "api")
	if res.Status == pipeline.StatusFailed {
		return c.JSON(http.StatusInternalServerError, res)
	}
	return c.JSON(http.StatusOK, res)
}

// HistoryHandler exposes publication history aggregates.
type HistoryHandler struct {
	Stats StatsSource
}

func (h *HistoryHandler) Register(g *echo.Group) {
	g.GET("/stats", h.stats)
}

func (h *HistoryHandler) stats(c echo.Context) error {
	stats, err := h.Stats.HistoryStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
