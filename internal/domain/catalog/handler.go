package catalog

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	catalog *Catalog
}

func NewHandler(c *Catalog) *Handler {
	return &Handler{catalog: c}
}

// RegisterRoutes mounts the public catalog endpoints. :kind is "tests" or
// "packages".
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/catalog")
	g.GET("/:kind", h.List)
	g.GET("/:kind/categories", h.Categories)
	g.GET("/:kind/:id", h.Get)
}

func kindParam(c echo.Context) (Kind, error) {
	k, err := ParseKind(c.Param("kind"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return k, nil
}

func (h *Handler) List(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	featured, _ := strconv.ParseBool(c.QueryParam("featured"))
	items := h.catalog.List(kind, Query{
		Category:     c.QueryParam("category"),
		Search:       c.QueryParam("search"),
		FeaturedOnly: featured,
	})
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  items,
		"total": len(items),
	})
}

func (h *Handler) Get(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	item, ok := h.catalog.ByID(kind, id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) Categories(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.catalog.Categories(kind))
}
