package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(GetUser(r).Username))
}

func TestRequireGroup(t *testing.T) {
	m := NewMockAuth("officers")

	rec := httptest.NewRecorder()
	RequireGroup(m, "officers", ok)(rec, httptest.NewRequest(http.MethodPost, "/api/dispatch", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "devofficer", rec.Body.String())

	rec = httptest.NewRecorder()
	RequireGroup(m, "quartermasters", ok)(rec, httptest.NewRequest(http.MethodPost, "/api/dispatch", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	m.AutoLogin = false
	rec = httptest.NewRecorder()
	RequireGroup(m, "officers", ok)(rec, httptest.NewRequest(http.MethodPost, "/api/dispatch", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMockLoginLogout(t *testing.T) {
	m := NewMockAuth("officers")
	m.AutoLogin = false

	rec := httptest.NewRecorder()
	m.LoginHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	user, found := m.UserFromRequest(req)
	require.True(t, found)
	assert.True(t, user.InGroup("officers"))

	m.LogoutHandler(httptest.NewRecorder(), req)
	_, found = m.UserFromRequest(req)
	assert.False(t, found, "logout drops the session")
}

func TestMiddlewareRedirectsAnonymous(t *testing.T) {
	m := NewMockAuth("officers")
	m.AutoLogin = false

	rec := httptest.NewRecorder()
	m.Middleware(ok)(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
}

func fakeAuthentik(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/application/o/token/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/application/o/userinfo/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sub":                "u-1",
			"preferred_username": "warlord",
			"groups":             []string{"officers"},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthentikFlow(t *testing.T) {
	srv := fakeAuthentik(t)
	a := NewAuthentikAuth(&AuthentikConfig{
		BaseURL:      srv.URL,
		ClientID:     "roster",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:3000/auth/callback",
	})

	rec := httptest.NewRecorder()
	a.LoginHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(location.Path, "/application/o/authorize/"))
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: state})
	rec = httptest.NewRecorder()
	a.CallbackHandler(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)

	req = httptest.NewRequest(http.MethodPost, "/api/save", nil)
	req.AddCookie(session)
	user, found := a.UserFromRequest(req)
	require.True(t, found)
	assert.Equal(t, "warlord", user.Username)
	assert.True(t, user.InGroup("officers"))
}

func TestAuthentikCallbackRejectsBadState(t *testing.T) {
	a := NewAuthentikAuth(&AuthentikConfig{BaseURL: "http://auth.invalid"})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?state=forged", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "expected"})
	rec := httptest.NewRecorder()
	a.CallbackHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	a.CallbackHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
