package webhook

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medbliss/medbliss/pkg/pagination"
)

// Handler exposes endpoint management and the delivery log. Mount it on an
// admin-only group.
type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/webhooks", h.RegisterEndpoint)
	g.GET("/webhooks", h.ListEndpoints)
	g.GET("/webhooks/:id", h.GetEndpoint)
	g.DELETE("/webhooks/:id", h.DeleteEndpoint)
	g.POST("/webhooks/:id/pause", h.PauseEndpoint)
	g.POST("/webhooks/:id/resume", h.ResumeEndpoint)
	g.POST("/webhooks/:id/test", h.TestEndpoint)
	g.GET("/webhooks/:id/deliveries", h.ListDeliveries)
	g.POST("/webhooks/deliveries/:id/retry", h.RetryDelivery)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrEndpointNotFound), errors.Is(err, ErrDeliveryNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

type registerRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

func (h *Handler) RegisterEndpoint(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ep, err := h.manager.RegisterEndpoint(c.Request().Context(), req.URL, req.Secret, req.Events)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ep)
}

func (h *Handler) ListEndpoints(c echo.Context) error {
	eps, err := h.manager.Endpoints(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	pg := pagination.FromContext(c)
	lo, hi := pg.Bounds(len(eps))
	for _, ep := range eps[lo:hi] {
		ep.Secret = ""
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(eps[lo:hi], len(eps), pg.Limit, pg.Offset))
}

func (h *Handler) GetEndpoint(c echo.Context) error {
	ep, err := h.manager.Endpoint(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	ep.Secret = ""
	return c.JSON(http.StatusOK, ep)
}

func (h *Handler) DeleteEndpoint(c echo.Context) error {
	if err := h.manager.DeleteEndpoint(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) PauseEndpoint(c echo.Context) error {
	if err := h.manager.PauseEndpoint(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": StatusPaused})
}

func (h *Handler) ResumeEndpoint(c echo.Context) error {
	if err := h.manager.ResumeEndpoint(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": StatusActive})
}

func (h *Handler) TestEndpoint(c echo.Context) error {
	d, err := h.manager.TestEndpoint(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDeliveries(c echo.Context) error {
	ds, err := h.manager.Deliveries(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	pg := pagination.FromContext(c)
	lo, hi := pg.Bounds(len(ds))
	return c.JSON(http.StatusOK, pagination.NewResponse(ds[lo:hi], len(ds), pg.Limit, pg.Offset))
}

func (h *Handler) RetryDelivery(c echo.Context) error {
	d, err := h.manager.Retry(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}
