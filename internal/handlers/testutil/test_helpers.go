package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nayandeep999/truefeedback/internal/api"
	"github.com/nayandeep999/truefeedback/internal/app"
	iauth "github.com/nayandeep999/truefeedback/internal/auth"
	sharedtestutil "github.com/nayandeep999/truefeedback/internal/database/testutil"
	"github.com/nayandeep999/truefeedback/internal/middleware"
	"github.com/nayandeep999/truefeedback/internal/models"
	"github.com/nayandeep999/truefeedback/pkg/crypto"
	"github.com/nayandeep999/truefeedback/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Mailer *RecordingMailer
}

// Option adjusts the test environment before the router is built.
type Option func(*envSettings)

type envSettings struct {
	rateLimit app.RateLimitConfig
}

// WithRateLimit enables the request throttle with the given budget.
func WithRateLimit(maxRequests int, window time.Duration) Option {
	return func(s *envSettings) {
		s.rateLimit = app.RateLimitConfig{
			Enabled:     true,
			MaxRequests: maxRequests,
			Window:      window,
		}
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	settings := envSettings{}
	for _, opt := range opts {
		opt(&settings)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSecret := "test-suite-super-secret-key-32-bytes!!"
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         jwtSecret,
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	cfg := &app.Config{
		Server: app.ServerConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			RateLimit:      settings.rateLimit,
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: jwtSecret,
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			Session: app.SessionSettings{
				RefreshTTL:    24 * time.Hour,
				RefreshLength: 48,
			},
			Verify: app.VerifySettings{CodeTTL: time.Hour},
		},
	}

	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, cfg.Auth.SessionServiceConfig(nil))
	require.NoError(t, err)

	mailer := &RecordingMailer{}
	router, err := api.NewRouter(db, jwtSvc, cfg, sessionSvc, mailer, middleware.NewMemoryRateStore())
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Mailer: mailer,
	}
}

// CreateVerifiedUser inserts an active verified user and returns the record.
func (e *Env) CreateVerifiedUser(username, password string) *models.User {
	e.T.Helper()

	if username == "" {
		username = "user-" + uuid.NewString()[:8]
	}
	hashed, err := crypto.HashPassword(password)
	require.NoError(e.T, err)

	user := &models.User{
		Username:            username,
		Email:               username + "@example.com",
		Password:            hashed,
		IsVerified:          true,
		IsAcceptingMessages: true,
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// TokenPair mirrors the handler login response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UserPayload captures the subset of user fields returned from auth endpoints.
type UserPayload struct {
	ID                  string `json:"id"`
	Username            string `json:"username"`
	Email               string `json:"email"`
	IsVerified          bool   `json:"is_verified"`
	IsAcceptingMessages bool   `json:"is_accepting_messages"`
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	Tokens TokenPair   `json:"tokens"`
	User   UserPayload `json:"user"`
}

// Login authenticates with the given credentials and returns the issued token pair.
func (e *Env) Login(identifier, password string) LoginResult {
	e.T.Helper()

	payload := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Tokens.AccessToken)
	require.NotEmpty(e.T, result.Tokens.RefreshToken)

	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
