package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestSessionIssuer_SignsToken(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "medbliss"}
	iss := NewSessionIssuer(cfg, time.Hour)

	sess, err := iss.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if sess.Token == "" || sess.SessionID == "" {
		t.Fatalf("expected token and id, got %+v", sess)
	}

	claims, err := ParseToken(sess.Token, cfg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != sess.SessionID {
		t.Errorf("expected subject %s, got %s", sess.SessionID, claims.Subject)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "customer" {
		t.Errorf("expected customer role, got %v", claims.Roles)
	}
}

func TestSessionIssuer_UniqueIDs(t *testing.T) {
	iss := NewSessionIssuer(JWTConfig{}, time.Hour)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s, _ := iss.Issue()
		if seen[s.SessionID] {
			t.Fatalf("duplicate session id %s", s.SessionID)
		}
		seen[s.SessionID] = true
		if s.Token != "" {
			t.Error("no token expected without a signing key")
		}
	}
}

func TestSessionHandler_Create(t *testing.T) {
	h := NewSessionHandler(NewSessionIssuer(JWTConfig{SigningKey: testSigningKey}, time.Hour))
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil), rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var sess Session
	json.Unmarshal(rec.Body.Bytes(), &sess)
	if sess.Token == "" {
		t.Error("expected token in response")
	}
}
