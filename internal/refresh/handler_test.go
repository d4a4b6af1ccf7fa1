package refresh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"embedauth/pkg/logger"
	"embedauth/pkg/middleware"
	"embedauth/pkg/tokens"
)

func newRouter(f *fixture) http.Handler {
	log := logger.Nop()
	r := chi.NewRouter()
	r.Use(middleware.WithSession(f.store, "sid", log))
	RegisterRoutes(r, f.svc, log)
	return r
}

func post(t *testing.T, h http.Handler, sid, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestHandler_StatusMapping(t *testing.T) {
	idp := &fakeIdP{t: t, status: http.StatusOK}
	f := newFixture(t, idp)
	f.session(t, "s1", "rt-1")
	f.session(t, "s-empty", "")
	h := newRouter(f)

	tests := []struct {
		name   string
		sid    string
		body   string
		status int
		errMsg string
	}{
		{"no session", "", `{"pluginId":"demo"}`, http.StatusUnauthorized, "not authenticated"},
		{"unknown session id", "ghost", `{"pluginId":"demo"}`, http.StatusUnauthorized, "not authenticated"},
		{"empty body", "s1", `{}`, http.StatusBadRequest, "missing plugin id"},
		{"malformed body", "s1", `{"pluginId":`, http.StatusBadRequest, "missing plugin id"},
		{"not configured", "s1", `{"pluginId":"plain"}`, http.StatusBadRequest, "refresh not configured for plugin"},
		{"no refresh token", "s-empty", `{"pluginId":"demo"}`, http.StatusUnauthorized, "no refresh token"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, out := post(t, h, tc.sid, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.errMsg, out["error"])
		})
	}
	assert.Zero(t, idp.calls.Load())
}

func TestHandler_Success(t *testing.T) {
	const T = int64(1_900_000_000)
	idp := &fakeIdP{t: t, status: http.StatusOK}
	f := newFixture(t, idp)
	idp.response = map[string]any{"access_token": accessToken(t, T), "token_type": "Bearer", "refresh_token": "rt-2"}
	f.session(t, "s1", "rt-1")

	rec, out := post(t, newRouter(f), "s1", `{"pluginId":"demo"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	at, _ := out["accessToken"].(string)
	exp, err := tokens.Expiry(at)
	require.NoError(t, err)
	assert.Equal(t, float64(exp), out["expiresAt"])
	assert.Equal(t, float64(T), out["expiresAt"])
	payload, _ := out["payload"].(map[string]any)
	assert.Equal(t, "user-1", payload["sub"])
	assert.NotContains(t, rec.Body.String(), "rt-2")

	stored, _ := f.store.Get(context.Background(), "s1")
	assert.Equal(t, "rt-2", stored.RefreshToken)
}

func TestHandler_UpstreamBodyNotEchoed(t *testing.T) {
	idp := &fakeIdP{t: t, status: http.StatusUnauthorized, response: map[string]any{
		"error": "invalid_grant", "error_description": "secret provider detail",
	}}
	f := newFixture(t, idp)
	f.session(t, "s1", "rt-1")

	rec, out := post(t, newRouter(f), "s1", `{"pluginId":"demo"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token refresh failed", out["error"])
	assert.NotContains(t, rec.Body.String(), "secret provider detail")
	assert.NotContains(t, rec.Body.String(), "invalid_grant")
}

func TestHandler_InternalErrorWithheld(t *testing.T) {
	idp := &fakeIdP{t: t, status: http.StatusOK, response: map[string]any{"access_token": "opaque", "token_type": "Bearer"}}
	f := newFixture(t, idp)
	f.session(t, "s1", "rt-1")

	rec, out := post(t, newRouter(f), "s1", `{"pluginId":"demo"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", out["error"])
}

func TestHandler_SessionFromContext(t *testing.T) {
	idp := &fakeIdP{t: t, status: http.StatusOK}
	f := newFixture(t, idp)
	idp.response = map[string]any{"access_token": accessToken(t, 1_900_000_000), "token_type": "Bearer", "refresh_token": "rt-2"}
	sess := f.session(t, "s1", "rt-1")

	r := chi.NewRouter()
	RegisterRoutes(r, f.svc, logger.Nop())
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(`{"pluginId":"demo"}`))
	req = req.WithContext(middleware.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "rt-2", sess.RefreshToken)
}
