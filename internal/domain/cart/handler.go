package cart

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medbliss/medbliss/internal/domain/catalog"
	"github.com/medbliss/medbliss/internal/platform/auth"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/cart")
	g.GET("", h.Get)
	g.DELETE("", h.Clear)
	g.POST("/items", h.AddItem)
	g.DELETE("/items", h.RemoveItem)
	g.PATCH("/entries/:entryId", h.Reassign)
	g.GET("/totals", h.Totals)
	g.GET("/groups", h.Groups)
	g.GET("/quote", h.Quote)
	g.POST("/promo", h.ApplyPromo)
	g.DELETE("/promo", h.ClearPromo)
}

// View is the cart as returned over HTTP.
type View struct {
	Entries []Entry `json:"entries"`
	Count   int     `json:"count"`
	Totals
}

func viewOf(c *Cart) View {
	entries := c.Entries
	if entries == nil {
		entries = []Entry{}
	}
	return View{Entries: entries, Count: len(entries), Totals: c.Totals()}
}

// ItemRequest addresses a cart entry by its catalog triple. DELETE requests
// carry it in the query string.
type ItemRequest struct {
	ID        int    `json:"id" query:"id"`
	Type      string `json:"type" query:"type"`
	PatientID string `json:"patientId" query:"patientId"`
}

func (r ItemRequest) kind() (catalog.Kind, error) {
	k, err := catalog.ParseKind(r.Type)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if r.ID <= 0 {
		return "", echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}
	return k, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateEntry):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidPromo), errors.Is(err, ErrEmpty):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func (h *Handler) Get(c echo.Context) error {
	cart, err := h.store.Get(c.Request().Context(), auth.SessionFromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, viewOf(cart))
}

// AddItem answers 201 when the entry was created and 200 when it was
// already in the cart.
func (h *Handler) AddItem(c echo.Context) error {
	var req ItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	kind, err := req.kind()
	if err != nil {
		return err
	}
	cart, added, err := h.store.Add(c.Request().Context(), auth.SessionFromContext(c), kind, req.ID, req.PatientID)
	if err != nil {
		return httpError(err)
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	return c.JSON(status, viewOf(cart))
}

func (h *Handler) RemoveItem(c echo.Context) error {
	var req ItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	kind, err := req.kind()
	if err != nil {
		return err
	}
	cart, err := h.store.Remove(c.Request().Context(), auth.SessionFromContext(c), kind, req.ID, req.PatientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, viewOf(cart))
}

type reassignRequest struct {
	PatientID string `json:"patientId"`
}

func (h *Handler) Reassign(c echo.Context) error {
	var req reassignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cart, err := h.store.Reassign(c.Request().Context(), auth.SessionFromContext(c), c.Param("entryId"), req.PatientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, viewOf(cart))
}

func (h *Handler) Clear(c echo.Context) error {
	if err := h.store.Clear(c.Request().Context(), auth.SessionFromContext(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Totals(c echo.Context) error {
	cart, err := h.store.Get(c.Request().Context(), auth.SessionFromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cart.Totals())
}

func (h *Handler) Groups(c echo.Context) error {
	groups, err := h.store.Groups(c.Request().Context(), auth.SessionFromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, groups)
}

func (h *Handler) Quote(c echo.Context) error {
	q, err := h.store.Quote(c.Request().Context(), auth.SessionFromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, q)
}

type promoRequest struct {
	Code string `json:"code"`
}

func (h *Handler) ApplyPromo(c echo.Context) error {
	var req promoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	q, err := h.store.ApplyPromo(c.Request().Context(), auth.SessionFromContext(c), req.Code)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) ClearPromo(c echo.Context) error {
	q, err := h.store.ClearPromo(c.Request().Context(), auth.SessionFromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, q)
}
