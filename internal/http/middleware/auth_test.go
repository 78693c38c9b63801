// README: Tests for bearer auth, role gates and panic recovery.
package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"truckmatch/internal/http/middleware"
	"truckmatch/internal/infra"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	token *infra.Token
	err   error
}

func (s *stubVerifier) VerifyToken(_ context.Context, _ string) (*infra.Token, error) {
	return s.token, s.err
}

func newTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(verifier))
	r.GET("/test", func(c *gin.Context) {
		uid := middleware.CallerUID(c)
		role := middleware.CallerRole(c)
		c.JSON(http.StatusOK, gin.H{"uid": uid, "role": role})
	})
	r.POST("/dispatch", middleware.RequireRole("admin", "dispatcher"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func serve(r http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.Token{UID: "user1"}})
	if w := serve(r, http.MethodGet, "/test", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.Token{UID: "user1"}})
	if w := serve(r, http.MethodGet, "/test", "Token sometoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_VerifierError(t *testing.T) {
	r := newTestRouter(&stubVerifier{err: errors.New("bad token")})
	if w := serve(r, http.MethodGet, "/test", "Bearer invalidtoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_QueryTokenOnlyForUpgrade(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.Token{UID: "watcher"}})
	if w := serve(r, http.MethodGet, "/test?token=abc", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("plain request with query token: expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/test?token=abc", nil)
	req.Header.Set("Upgrade", "websocket")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "watcher") {
		t.Errorf("upgrade request with query token: got %d %s", w.Code, w.Body.String())
	}
}

func TestAuth_ValidToken_UIDAndRolePopulated(t *testing.T) {
	token := &infra.Token{
		UID:    "driver123",
		Claims: map[string]interface{}{"role": "driver"},
	}
	r := newTestRouter(&stubVerifier{token: token})
	w := serve(r, http.MethodGet, "/test", "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"uid":"driver123"`) {
		t.Errorf("expected uid driver123 in body, got %s", body)
	}
	if !strings.Contains(body, `"role":"driver"`) {
		t.Errorf("expected role driver in body, got %s", body)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{"dispatcher", http.StatusNoContent},
		{"admin", http.StatusNoContent},
		{"driver", http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tc := range cases {
		claims := map[string]interface{}{}
		if tc.role != "" {
			claims["role"] = tc.role
		}
		r := newTestRouter(&stubVerifier{token: &infra.Token{UID: "u", Claims: claims}})
		if w := serve(r, http.MethodPost, "/dispatch", "Bearer t"); w.Code != tc.want {
			t.Errorf("role %q: expected %d, got %d", tc.role, tc.want, w.Code)
		}
	}
}

func TestAuth_RealJWT(t *testing.T) {
	verifier, err := infra.NewJWTVerifier("test-secret")
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	raw, err := verifier.Issue("ops-1", "dispatcher", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	r := newTestRouter(verifier)
	if w := serve(r, http.MethodPost, "/dispatch", "Bearer "+raw); w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery(slog.New(slog.NewTextHandler(io.Discard, nil))))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, http.MethodGet, "/boom", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "internal error") {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}
