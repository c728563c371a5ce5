// Package openapi describes the HTTP API as an OpenAPI 3.0 document built
// from the live Echo route table.
package openapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medbliss/medbliss/pkg/pagination"
)

// Generator builds an OpenAPI 3.0 spec from registered routes.
type Generator struct {
	routes    func() []*echo.Route
	version   string
	baseURL   string
	public    func(path string) bool
	paginated map[string]bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithPublic marks routes for which public returns true as not requiring a
// session.
func WithPublic(public func(path string) bool) Option {
	return func(g *Generator) { g.public = public }
}

// WithPaginated adds limit, offset and page to the GET operations of paths.
func WithPaginated(paths ...string) Option {
	return func(g *Generator) {
		for _, p := range paths {
			g.paginated[p] = true
		}
	}
}

// NewGenerator reads routes lazily so it can be created before every
// handler is registered.
func NewGenerator(routes func() []*echo.Route, version, baseURL string, opts ...Option) *Generator {
	g := &Generator{
		routes:    routes,
		version:   version,
		baseURL:   baseURL,
		public:    func(string) bool { return false },
		paginated: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var documentedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// GenerateSpec produces the OpenAPI 3.0 spec as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	paths := make(map[string]interface{})
	for _, r := range g.routes() {
		if !documentedMethods[r.Method] || strings.Contains(r.Path, "*") {
			continue
		}
		oasPath, params := convertPath(r.Path)
		item, ok := paths[oasPath].(map[string]interface{})
		if !ok {
			item = make(map[string]interface{})
			paths[oasPath] = item
		}
		item[strings.ToLower(r.Method)] = g.buildOperation(r, params)
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "MedBliss Lab Booking API",
			"version":     g.version,
			"description": "Catalog, cart, patients and home-collection bookings",
		},
		"servers": []map[string]string{
			{"url": g.baseURL},
		},
		"paths": paths,
		"components": map[string]interface{}{
			"schemas":         buildComponentSchemas(),
			"securitySchemes": buildSecuritySchemes(),
		},
	}
}

// convertPath turns /bookings/:id into /bookings/{id} and returns the
// parameter names in order.
func convertPath(path string) (string, []string) {
	segments := strings.Split(path, "/")
	var params []string
	for i, s := range segments {
		if strings.HasPrefix(s, ":") {
			name := s[1:]
			params = append(params, name)
			segments[i] = "{" + name + "}"
		}
	}
	return strings.Join(segments, "/"), params
}

// tagFor groups operations by the first segment after the version prefix.
func tagFor(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/v1")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "system"
	}
	if parts[0] == "admin" && len(parts) > 1 {
		return "admin/" + parts[1]
	}
	return parts[0]
}

// operationID uses the handler method name, e.g. "ListBookings" from
// ".../booking.(*Handler).ListBookings-fm".
func operationID(r *echo.Route) string {
	name := r.Name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	if name == "" || strings.HasPrefix(name, "func") {
		return strings.ToLower(r.Method) + strings.NewReplacer("/", "_", ":", "").Replace(r.Path)
	}
	return name
}

func (g *Generator) buildOperation(r *echo.Route, pathParams []string) map[string]interface{} {
	params := make([]map[string]interface{}, 0, len(pathParams)+2)
	for _, p := range pathParams {
		params = append(params, map[string]interface{}{
			"name":     p,
			"in":       "path",
			"required": true,
			"schema":   map[string]string{"type": "string"},
		})
	}
	if r.Method == http.MethodGet && g.paginated[r.Path] {
		params = append(params,
			map[string]interface{}{
				"name":        "limit",
				"in":          "query",
				"schema":      map[string]interface{}{"type": "integer", "minimum": 1, "maximum": pagination.MaxLimit},
				"description": "Number of results per page",
			},
			map[string]interface{}{
				"name":        "offset",
				"in":          "query",
				"schema":      map[string]interface{}{"type": "integer", "minimum": 0},
				"description": "Starting index for results",
			},
			map[string]interface{}{
				"name":        "page",
				"in":          "query",
				"schema":      map[string]interface{}{"type": "integer", "minimum": 1},
				"description": "1-based page number, used when offset is absent",
			},
		)
	}

	op := map[string]interface{}{
		"operationId": operationID(r),
		"tags":        []string{tagFor(r.Path)},
		"parameters":  params,
		"responses":   buildResponses(r.Method),
	}
	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		op["requestBody"] = map[string]interface{}{
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": map[string]string{"type": "object"},
				},
			},
		}
	}
	if g.public(r.Path) {
		op["security"] = []map[string][]string{}
	} else {
		op["security"] = []map[string][]string{{"bearerAuth": {}}, {"sessionHeader": {}}}
	}
	return op
}

func buildResponses(method string) map[string]interface{} {
	errorRef := map[string]interface{}{
		"application/json": map[string]interface{}{
			"schema": map[string]string{"$ref": "#/components/schemas/Error"},
		},
	}
	ok := "200"
	switch method {
	case http.MethodPost:
		ok = "201"
	case http.MethodDelete:
		ok = "204"
	}
	return map[string]interface{}{
		ok:        map[string]interface{}{"description": "Success"},
		"400":     map[string]interface{}{"description": "Malformed request", "content": errorRef},
		"401":     map[string]interface{}{"description": "Missing or invalid session", "content": errorRef},
		"default": map[string]interface{}{"description": "Error", "content": errorRef},
	}
}

func buildComponentSchemas() map[string]interface{} {
	return map[string]interface{}{
		"Error": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"message": map[string]string{"type": "string"},
			},
		},
		"Page": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"data":    map[string]string{"type": "array"},
				"total":   map[string]string{"type": "integer"},
				"limit":   map[string]string{"type": "integer"},
				"offset":  map[string]string{"type": "integer"},
				"hasMore": map[string]string{"type": "boolean"},
				"next":    map[string]string{"type": "string"},
			},
		},
	}
}

func buildSecuritySchemes() map[string]interface{} {
	return map[string]interface{}{
		"bearerAuth": map[string]string{
			"type":         "http",
			"scheme":       "bearer",
			"bearerFormat": "JWT",
		},
		"sessionHeader": map[string]string{
			"type": "apiKey",
			"in":   "header",
			"name": "X-Session-ID",
		},
	}
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>MedBliss API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
  <style>
    html { box-sizing: border-box; overflow-y: scroll; }
    *, *:before, *:after { box-sizing: inherit; }
    body { margin: 0; background: #fafafa; }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api/v1/openapi.json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [
        SwaggerUIBundle.presets.apis,
        SwaggerUIBundle.SwaggerUIStandalonePreset
      ],
      layout: "BaseLayout"
    })
  </script>
</body>
</html>`

// RegisterRoutes registers the OpenAPI endpoints.
func (g *Generator) RegisterRoutes(apiGroup *echo.Group) {
	apiGroup.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
	apiGroup.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}
