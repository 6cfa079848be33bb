package handlers_test

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nayandeep999/truefeedback/internal/handlers/testutil"
)

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

func TestAuthHandler_SignupVerifyLoginFlow(t *testing.T) {
	env := testutil.NewEnv(t)

	signup := env.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "nayan",
		"email":    "nayan@example.com",
		"password": "SecurePass1!",
	}, "")
	require.Equal(t, http.StatusCreated, signup.Code, signup.Body.String())
	signupResp := testutil.DecodeResponse(t, signup)
	require.True(t, signupResp.Success)
	require.Equal(t, "User registered successfully. Please verify your email.", signupResp.Message)

	// Signing in before verification is rejected.
	preVerify := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"identifier": "nayan",
		"password":   "SecurePass1!",
	}, "")
	require.Equal(t, http.StatusUnauthorized, preVerify.Code)
	require.Equal(t, "ACCOUNT_NOT_VERIFIED", testutil.DecodeResponse(t, preVerify).Error.Code)

	// The verification code travels by email only.
	sent, ok := env.Mailer.Last()
	require.True(t, ok)
	require.Equal(t, "nayan@example.com", sent.To)
	code := codePattern.FindString(sent.Body)
	require.Len(t, code, 6)

	wrong := env.Request(http.MethodPost, "/api/auth/verify-code", map[string]string{
		"username": "nayan",
		"code":     "000000",
	}, "")
	if code == "000000" {
		t.Skip("generated code collided with the deliberately wrong one")
	}
	require.Equal(t, http.StatusBadRequest, wrong.Code)

	verify := env.Request(http.MethodPost, "/api/auth/verify-code", map[string]string{
		"username": "nayan",
		"code":     code,
	}, "")
	require.Equal(t, http.StatusOK, verify.Code, verify.Body.String())
	require.Equal(t, "Account verified successfully", testutil.DecodeResponse(t, verify).Message)

	login := env.Login("nayan", "SecurePass1!")
	require.Equal(t, "nayan", login.User.Username)
	require.True(t, login.User.IsVerified)
	require.True(t, login.User.IsAcceptingMessages)

	me := env.Request(http.MethodGet, "/api/auth/me", nil, login.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, me.Code)
	var meData testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, me).Data, &meData)
	require.Equal(t, login.User.ID, meData.ID)
	require.Equal(t, "nayan@example.com", meData.Email)
}

func TestAuthHandler_RefreshAndLogout(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateVerifiedUser("casey", "AuthPassw0rd!")

	login := env.Login("casey", "AuthPassw0rd!")

	refresh := env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": login.Tokens.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, refresh.Code, refresh.Body.String())
	var refreshed struct {
		Tokens testutil.TokenPair `json:"tokens"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, refresh).Data, &refreshed)
	require.NotEmpty(t, refreshed.Tokens.AccessToken)
	require.NotEmpty(t, refreshed.Tokens.RefreshToken)
	require.NotEqual(t, login.Tokens.RefreshToken, refreshed.Tokens.RefreshToken)

	// The old refresh token is dead after rotation.
	replay := env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": login.Tokens.RefreshToken,
	}, "")
	require.Equal(t, http.StatusUnauthorized, replay.Code)

	logout := env.Request(http.MethodPost, "/api/auth/logout", nil, login.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, logout.Code, logout.Body.String())

	revoked := env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": refreshed.Tokens.RefreshToken,
	}, "")
	require.Equal(t, http.StatusUnauthorized, revoked.Code)
}

func TestAuthHandler_LoginWithEmailIdentifier(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateVerifiedUser("jordan", "AuthPassw0rd!")

	login := env.Login(user.Email, "AuthPassw0rd!")
	require.Equal(t, "jordan", login.User.Username)

	bad := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"identifier": user.Email,
		"password":   "wrong-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, bad.Code)
	require.Equal(t, "INVALID_CREDENTIALS", testutil.DecodeResponse(t, bad).Error.Code)
}

func TestAuthHandler_SignupValidation(t *testing.T) {
	env := testutil.NewEnv(t)

	cases := []struct {
		name    string
		payload map[string]string
	}{
		{"missing email", map[string]string{"username": "sam", "password": "SecurePass1!"}},
		{"short password", map[string]string{"username": "sam", "email": "sam@example.com", "password": "abc"}},
		{"special characters", map[string]string{"username": "sam!!", "email": "sam@example.com", "password": "SecurePass1!"}},
		{"too short username", map[string]string{"username": "s", "email": "sam@example.com", "password": "SecurePass1!"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.Request(http.MethodPost, "/api/auth/signup", tc.payload, "")
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
			decoded := testutil.DecodeResponse(t, resp)
			require.False(t, decoded.Success)
			require.NotNil(t, decoded.Error)
			require.Equal(t, "BAD_REQUEST", decoded.Error.Code)
		})
	}

	resp := env.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "sam!!",
		"email":    "sam@example.com",
		"password": "SecurePass1!",
	}, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, testutil.DecodeResponse(t, resp).Error.Message, "special characters")
}

func TestAuthHandler_SignupDuplicateVerifiedUsername(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateVerifiedUser("taken", "AuthPassw0rd!")

	resp := env.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "Taken",
		"email":    "other@example.com",
		"password": "SecurePass1!",
	}, "")
	require.Equal(t, http.StatusConflict, resp.Code, resp.Body.String())
	require.Equal(t, "Username is already taken", testutil.DecodeResponse(t, resp).Error.Message)
}

func TestAuthHandler_CheckUsername(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateVerifiedUser("alex", "AuthPassw0rd!")

	taken := env.Request(http.MethodGet, "/api/auth/check-username?username=Alex", nil, "")
	require.Equal(t, http.StatusOK, taken.Code)
	takenResp := testutil.DecodeResponse(t, taken)
	require.Equal(t, "Username is already taken", takenResp.Message)
	var takenData struct {
		Available bool `json:"available"`
	}
	testutil.DecodeInto(t, takenResp.Data, &takenData)
	require.False(t, takenData.Available)

	free := env.Request(http.MethodGet, "/api/auth/check-username?username=someone_new", nil, "")
	require.Equal(t, http.StatusOK, free.Code)
	freeResp := testutil.DecodeResponse(t, free)
	require.Equal(t, "Username is available", freeResp.Message)

	invalid := env.Request(http.MethodGet, "/api/auth/check-username?username=bad+name", nil, "")
	require.Equal(t, http.StatusBadRequest, invalid.Code)
	require.Contains(t, testutil.DecodeResponse(t, invalid).Error.Message, "special characters")

	missing := env.Request(http.MethodGet, "/api/auth/check-username", nil, "")
	require.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestAuthHandler_ProtectedRoutesRequireToken(t *testing.T) {
	env := testutil.NewEnv(t)

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodPost, "/api/auth/logout"},
		{http.MethodGet, "/api/messages"},
		{http.MethodGet, "/api/accept-messages"},
	} {
		resp := env.Request(route.method, route.path, nil, "")
		require.Equal(t, http.StatusUnauthorized, resp.Code, "%s %s", route.method, route.path)
	}
}
