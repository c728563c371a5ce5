package auth

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	SessionIDKey contextKey = "session_id"
	RolesKey     contextKey = "roles"
)

// GuestSession is used in development when no X-Session-ID header is sent.
const GuestSession = "guest"

// SessionHeader carries the session id in development mode.
const SessionHeader = "X-Session-ID"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Claims is the session token payload. Subject is the session id.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

type JWTConfig struct {
	Issuer     string
	SigningKey []byte
	// Skipper lets public paths through without a token.
	Skipper func(c echo.Context) bool
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter used by websocket clients that cannot set headers.
func bearerToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if q := c.QueryParam("token"); q != "" {
			return q, true
		}
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

// ParseToken validates an HS256 session token.
func ParseToken(tokenStr string, cfg JWTConfig) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			tokenStr, ok := bearerToken(c)
			if !ok {
				if c.Request().Header.Get("Authorization") == "" {
					return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := ParseToken(tokenStr, cfg)
			if err != nil || !sessionIDPattern.MatchString(claims.Subject) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			setIdentity(c, claims.Subject, claims.Roles)
			return next(c)
		}
	}
}

// DevAuthMiddleware takes the session from the X-Session-ID header, the
// session query parameter used by websocket upgrades, or "guest". It grants
// admin so operator routes are reachable locally.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sid := c.Request().Header.Get(SessionHeader)
			if sid == "" {
				sid = c.QueryParam("session")
			}
			if sid == "" {
				sid = GuestSession
			}
			if !sessionIDPattern.MatchString(sid) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid session identifier")
			}
			setIdentity(c, sid, []string{"customer", "admin"})
			return next(c)
		}
	}
}

func setIdentity(c echo.Context, sessionID string, roles []string) {
	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, SessionIDKey, sessionID)
	ctx = context.WithValue(ctx, RolesKey, roles)
	c.SetRequest(c.Request().WithContext(ctx))
	c.Set("session_id", sessionID)
}

func SessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(SessionIDKey).(string)
	return sid
}

// SessionFromContext returns the session of the current request.
func SessionFromContext(c echo.Context) string {
	return SessionIDFromContext(c.Request().Context())
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(RolesKey).([]string)
	return roles
}

// WithSession is used by tests and background jobs that act on behalf of a
// session outside a request.
func WithSession(ctx context.Context, sessionID string, roles ...string) context.Context {
	ctx = context.WithValue(ctx, SessionIDKey, sessionID)
	return context.WithValue(ctx, RolesKey, roles)
}
