package booking

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medbliss/medbliss/internal/platform/auth"
	"github.com/medbliss/medbliss/internal/platform/validation"
	"github.com/medbliss/medbliss/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	draft := api.Group("/booking")
	draft.GET("/draft", h.GetDraft)
	draft.PUT("/draft", h.UpdateDraft)
	draft.DELETE("/draft", h.ResetDraft)
	draft.POST("/draft/submit", h.Submit)
	draft.POST("/draft/back", h.Back)
	draft.POST("/draft/confirm", h.Confirm)
	draft.GET("/slots", h.TimeSlots)

	api.GET("/bookings", h.ListBookings)
	api.GET("/bookings/summary", h.Summary)
	api.GET("/bookings/:id", h.GetBooking)
}

func httpError(err error) error {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, verr)
	case errors.Is(err, ErrCartEmpty):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrBookingNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidDate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func (h *Handler) GetDraft(c echo.Context) error {
	d, err := h.svc.GetDraft(c.Request().Context(), auth.SessionFromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDraft(c echo.Context) error {
	var details Details
	if err := c.Bind(&details); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.UpdateDraft(c.Request().Context(), auth.SessionFromContext(c), details)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ResetDraft(c echo.Context) error {
	if err := h.svc.Reset(c.Request().Context(), auth.SessionFromContext(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Submit(c echo.Context) error {
	d, err := h.svc.Submit(c.Request().Context(), auth.SessionFromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Back(c echo.Context) error {
	d, err := h.svc.Back(c.Request().Context(), auth.SessionFromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Confirm(c echo.Context) error {
	rec, err := h.svc.Confirm(c.Request().Context(), auth.SessionFromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) TimeSlots(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		date = h.svc.MinDate()
	}
	slots, err := h.svc.TimeSlots(date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"date":    date,
		"minDate": h.svc.MinDate(),
		"slots":   slots,
	})
}

func (h *Handler) ListBookings(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBookings(c.Request().Context(), auth.SessionFromContext(c),
		Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Record{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithNext(c.Request().URL))
}

func (h *Handler) Summary(c echo.Context) error {
	sum, err := h.svc.Summary(c.Request().Context(), auth.SessionFromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) GetBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetBooking(c.Request().Context(), auth.SessionFromContext(c), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}
