package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nayandeep999/truefeedback/internal/app"
	iauth "github.com/nayandeep999/truefeedback/internal/auth"
	testutil "github.com/nayandeep999/truefeedback/internal/database/testutil"
	"github.com/nayandeep999/truefeedback/internal/middleware"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "router-test-secret",
		Issuer:         "test",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("jwt service: %v", err)
	}

	cfg := &app.Config{}
	cfg.Auth.JWT.Secret = "router-test-secret"
	cfg.Auth.JWT.Issuer = "test"

	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, cfg.Auth.SessionServiceConfig(nil))
	if err != nil {
		t.Fatalf("session service: %v", err)
	}

	router, err := NewRouter(db, jwtSvc, cfg, sessionSvc, nil, middleware.NewMemoryRateStore())
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return router
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	router := newTestRouter(t)

	// Health should be public
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for /health, got %d", w.Code)
	}

	// Protected endpoints without auth should be 401
	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/messages"},
		{http.MethodDelete, "/api/messages/some-id"},
		{http.MethodGet, "/api/accept-messages"},
	} {
		w = httptest.NewRecorder()
		req, _ = http.NewRequest(route.method, route.path, nil)
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s %s without token, got %d", route.method, route.path, w.Code)
		}
	}

	// Unknown routes fall through to the JSON 404 handler
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/does-not-exist", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "NOT_FOUND") {
		t.Fatalf("expected JSON error envelope, got %s", w.Body.String())
	}
}

func TestRouter_RequiresDependencies(t *testing.T) {
	if _, err := NewRouter(nil, nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error when dependencies are missing")
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	// Trigger a request to generate metrics
	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for /health, got %d", rec.Code)
	}

	metricsRec := httptest.NewRecorder()
	metricsReq, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(metricsRec, metricsReq)
	if metricsRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for /metrics, got %d", metricsRec.Code)
	}

	body := metricsRec.Body.String()
	if !strings.Contains(body, `truefeedback_api_latency_seconds_count{method="GET",path="/health",status="200"}`) {
		t.Fatalf("metrics output missing latency series: %s", body)
	}
}
