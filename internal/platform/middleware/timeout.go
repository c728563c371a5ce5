package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout bounds each request's context by d. When the handler
// returns after the deadline and nothing has been written yet, the client
// gets a 504 with the handler's error kept as the internal cause.
// Websocket upgrades are exempt.
func RequestTimeout(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipWebsocket(c) {
				return next(c)
			}
			req := c.Request()
			ctx, cancel := context.WithTimeout(req.Context(), d)
			defer cancel()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err == nil || c.Response().Committed || ctx.Err() != context.DeadlineExceeded {
				return err
			}
			return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out").SetInternal(err)
		}
	}
}
