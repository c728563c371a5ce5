package auth

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Session is returned to a browser starting a visit.
type Session struct {
	SessionID string    `json:"sessionId"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionIssuer mints guest sessions. In development mode no token is
// signed and clients send the id in X-Session-ID instead.
type SessionIssuer struct {
	cfg JWTConfig
	ttl time.Duration
	now func() time.Time
}

func NewSessionIssuer(cfg JWTConfig, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{cfg: cfg, ttl: ttl, now: time.Now}
}

// Issue creates a session with a fresh random id.
func (s *SessionIssuer) Issue(roles ...string) (*Session, error) {
	now := s.now()
	sess := &Session{
		SessionID: uuid.New().String(),
		ExpiresAt: now.Add(s.ttl),
	}
	if len(s.cfg.SigningKey) == 0 {
		return sess, nil
	}
	if len(roles) == 0 {
		roles = []string{"customer"}
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.SessionID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
		Roles: roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
	if err != nil {
		return nil, err
	}
	sess.Token = signed
	return sess, nil
}

type SessionHandler struct {
	issuer *SessionIssuer
}

func NewSessionHandler(issuer *SessionIssuer) *SessionHandler {
	return &SessionHandler{issuer: issuer}
}

func (h *SessionHandler) RegisterRoutes(api *echo.Group) {
	api.POST("/sessions", h.Create)
	api.GET("/sessions/me", h.Me)
}

func (h *SessionHandler) Create(c echo.Context) error {
	sess, err := h.issuer.Issue()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue session")
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *SessionHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessionId": SessionFromContext(c),
		"roles":     RolesFromContext(c.Request().Context()),
	})
}
