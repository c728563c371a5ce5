package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass session authentication: health, catalog browsing, API
// docs, and the endpoint that mints a session.
var publicPaths = map[string]bool{
	"/health":                          true,
	"/api/v1/sessions":                 true,
	"/api/v1/openapi.json":             true,
	"/api/v1/docs":                     true,
	"/api/v1/catalog/:kind":            true,
	"/api/v1/catalog/:kind/:id":        true,
	"/api/v1/catalog/:kind/categories": true,
}

// AuthSkipper matches on the registered route path, so parameterised routes
// are listed with their placeholders.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route path bypasses auth.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
