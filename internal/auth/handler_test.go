package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMux(t *testing.T) (*http.ServeMux, *capturingMailer, *Service) {
	t.Helper()

	service, _, mail := newTestService(t)
	handler := NewHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", handler.Register)
	mux.HandleFunc("POST /login", handler.Login)
	mux.HandleFunc("POST /forgot-password", handler.ForgotPassword)
	mux.HandleFunc("POST /reset-password", handler.ResetPassword)
	mux.Handle("GET /me", SessionMiddleware(service.tokens, http.HandlerFunc(handler.Me)))

	return mux, mail, service
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	decoded := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}

	return rec, decoded
}

func TestEndToEndPasswordReset(t *testing.T) {
	t.Parallel()

	mux, mail, _ := newTestMux(t)

	rec, _ := doJSON(t, mux, http.MethodPost, "/register",
		`{"email":"alice@x.com","password":"password-one"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doJSON(t, mux, http.MethodPost, "/login",
		`{"email":"alice@x.com","password":"password-one"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, body["token"])

	rec, _ = doJSON(t, mux, http.MethodPost, "/forgot-password",
		`{"email":"alice@x.com"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	token := mail.lastResetToken(t)
	rec, _ = doJSON(t, mux, http.MethodPost, "/reset-password",
		`{"token":"`+token+`","newPassword":"password-two"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = doJSON(t, mux, http.MethodPost, "/login",
		`{"email":"alice@x.com","password":"password-one"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", body["error"])

	rec, _ = doJSON(t, mux, http.MethodPost, "/login",
		`{"email":"alice@x.com","password":"password-two"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	mux, _, _ := newTestMux(t)

	rec, _ := doJSON(t, mux, http.MethodPost, "/register", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := doJSON(t, mux, http.MethodPost, "/register",
		`{"email":"not-an-email","password":"password-one"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_email", body["error"])

	rec, body = doJSON(t, mux, http.MethodPost, "/register",
		`{"email":"alice@x.com","password":"short"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_password", body["error"])
}

func TestRegister_Duplicate(t *testing.T) {
	t.Parallel()

	mux, _, _ := newTestMux(t)

	rec, _ := doJSON(t, mux, http.MethodPost, "/register",
		`{"email":"alice@x.com","password":"password-one"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doJSON(t, mux, http.MethodPost, "/register",
		`{"email":"ALICE@x.com","password":"password-two"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "account_exists", body["error"])
}

func TestForgotPassword_UnknownEmail404(t *testing.T) {
	t.Parallel()

	mux, _, _ := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodPost, "/forgot-password",
		`{"email":"nobody@x.com"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "account_not_found", body["error"])
}

func TestResetPassword_GarbageToken400(t *testing.T) {
	t.Parallel()

	mux, _, _ := newTestMux(t)

	// Syntactically well-formed but unsigned token.
	rec, body := doJSON(t, mux, http.MethodPost, "/reset-password",
		`{"token":"aaaa.bbbb.cccc","newPassword":"password-two"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_or_expired_token", body["error"])
}

func TestMe(t *testing.T) {
	t.Parallel()

	mux, _, service := newTestMux(t)

	rec, _ := doJSON(t, mux, http.MethodPost, "/register",
		`{"email":"alice@x.com","password":"password-one"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doJSON(t, mux, http.MethodPost, "/login",
		`{"email":"alice@x.com","password":"password-one"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessionToken, _ := body["token"].(string)
	require.NotEmpty(t, sessionToken)

	// No credentials.
	rec, _ = doJSON(t, mux, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A reset token must not pass the session guard.
	resetToken, err := service.tokens.Issue("acct-1", PurposePasswordReset)
	require.NoError(t, err)
	rec, body = doJSON(t, mux, http.MethodGet, "/me", "",
		http.Header{"Authorization": []string{"Bearer " + resetToken}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_or_expired_token", body["error"])

	rec, body = doJSON(t, mux, http.MethodGet, "/me", "",
		http.Header{"Authorization": []string{"Bearer " + sessionToken}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@x.com", body["email"])
}
