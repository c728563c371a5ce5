package jobs

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler lets operators list jobs and run one on demand. Mount it on an
// admin-only group.
type Handler struct {
	scheduler *Scheduler
}

func NewHandler(s *Scheduler) *Handler {
	return &Handler{scheduler: s}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/jobs", h.List)
	g.POST("/jobs/:name/run", h.Run)
}

func (h *Handler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"jobs": h.scheduler.Names()})
}

func (h *Handler) Run(c echo.Context) error {
	name := c.Param("name")
	start := time.Now()
	err := h.scheduler.Trigger(c.Request().Context(), name)
	switch {
	case errors.Is(err, ErrNotRegistered):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "job failed").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"job":      name,
		"duration": time.Since(start).String(),
	})
}
