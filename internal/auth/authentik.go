package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/Billy-Davies-2/warband-roster/internal/logger"
)

const (
	sessionCookie = "session_id"
	stateCookie   = "oauth_state"
)

type contextKey struct{}

// AuthentikConfig holds the configuration for Authentik OAuth2/OIDC
type AuthentikConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// AppSlug is the Authentik application slug used for the end-session URL
	AppSlug string
}

// User represents an authenticated user
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Groups   []string `json:"groups"`
}

// InGroup reports whether the user belongs to group
func (u *User) InGroup(group string) bool {
	return u != nil && slices.Contains(u.Groups, group)
}

// Session represents a user session
type Session struct {
	ID        string
	User      *User
	Token     *oauth2.Token
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AuthProvider is a common interface for authentication providers
type AuthProvider interface {
	LoginHandler(w http.ResponseWriter, r *http.Request)
	CallbackHandler(w http.ResponseWriter, r *http.Request)
	LogoutHandler(w http.ResponseWriter, r *http.Request)
	Middleware(next http.HandlerFunc) http.HandlerFunc
	// UserFromRequest resolves the session of r without redirecting
	UserFromRequest(r *http.Request) (*User, bool)
}

// sessions is the in-memory session table shared by both providers
type sessions struct {
	mu   sync.RWMutex
	byID map[string]*Session
}

func newSessions() *sessions {
	return &sessions{byID: make(map[string]*Session)}
}

func (s *sessions) add(session *Session) {
	s.mu.Lock()
	s.byID[session.ID] = session
	s.mu.Unlock()
}

func (s *sessions) drop(r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.byID, cookie.Value)
	s.mu.Unlock()
}

func (s *sessions) lookup(r *http.Request) (*User, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	s.mu.RLock()
	session, exists := s.byID[cookie.Value]
	s.mu.RUnlock()

	if !exists || time.Now().After(session.ExpiresAt) {
		return nil, false
	}
	return session.User, true
}

// AuthentikAuth manages authentication with Authentik
type AuthentikAuth struct {
	config       *AuthentikConfig
	oauth2Config *oauth2.Config
	sessions     *sessions
	httpClient   *http.Client
}

// NewAuthentikAuth creates a new Authentik authentication handler
func NewAuthentikAuth(config *AuthentikConfig) *AuthentikAuth {
	if len(config.Scopes) == 0 {
		config.Scopes = []string{"openid", "profile", "email"}
	}
	if config.AppSlug == "" {
		config.AppSlug = "warband-roster"
	}

	oauth2Config := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       config.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("%s/application/o/authorize/", config.BaseURL),
			TokenURL: fmt.Sprintf("%s/application/o/token/", config.BaseURL),
		},
	}

	return &AuthentikAuth{
		config:       config,
		oauth2Config: oauth2Config,
		sessions:     newSessions(),
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// LoginHandler initiates the OAuth2 login flow
func (a *AuthentikAuth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	state := randomToken()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes
	})

	authURL := a.oauth2Config.AuthCodeURL(state)
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// CallbackHandler handles the OAuth2 callback from Authentik
func (a *AuthentikAuth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}

	state := r.URL.Query().Get("state")
	if state != cookie.Value {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, a.httpClient)
	token, err := a.oauth2Config.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		logger.Error("Failed to exchange OAuth2 code", "error", err)
		http.Error(w, "Failed to exchange token: "+err.Error(), http.StatusInternalServerError)
		return
	}

	user, err := a.getUserInfo(r.Context(), token)
	if err != nil {
		logger.Error("Failed to get user info", "error", err)
		http.Error(w, "Failed to get user info: "+err.Error(), http.StatusInternalServerError)
		return
	}

	session := &Session{
		ID:        randomToken(),
		User:      user,
		Token:     token,
		CreatedAt: time.Now(),
		ExpiresAt: token.Expiry,
	}
	a.sessions.add(session)
	logger.Info("User logged in", "username", user.Username)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Expires:  token.Expiry,
	})
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutHandler handles user logout
func (a *AuthentikAuth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	a.sessions.drop(r)
	clearSession(w)

	logoutURL := fmt.Sprintf("%s/application/o/%s/end-session/", a.config.BaseURL, a.config.AppSlug)
	http.Redirect(w, r, logoutURL, http.StatusSeeOther)
}

// Middleware protects browser routes: anonymous requests are sent to login
func (a *AuthentikAuth) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return redirectMiddleware(a, next)
}

// UserFromRequest returns the user of a live session
func (a *AuthentikAuth) UserFromRequest(r *http.Request) (*User, bool) {
	return a.sessions.lookup(r)
}

// getUserInfo fetches user information from Authentik
func (a *AuthentikAuth) getUserInfo(ctx context.Context, token *oauth2.Token) (*User, error) {
	userInfoURL := fmt.Sprintf("%s/application/o/userinfo/", a.config.BaseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to get user info: %s - %s", resp.Status, string(body))
	}

	var userInfo struct {
		Sub               string   `json:"sub"`
		Email             string   `json:"email"`
		Name              string   `json:"name"`
		PreferredUsername string   `json:"preferred_username"`
		Groups            []string `json:"groups"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, err
	}

	return &User{
		ID:       userInfo.Sub,
		Email:    userInfo.Email,
		Name:     userInfo.Name,
		Username: userInfo.PreferredUsername,
		Groups:   userInfo.Groups,
	}, nil
}

// MockAuth provides a mock authentication for local development
type MockAuth struct {
	sessions *sessions
	user     User
	// AutoLogin treats requests without a session as the dev user
	AutoLogin bool
}

// NewMockAuth creates a mock provider whose dev user is an officer
func NewMockAuth(officerGroup string) *MockAuth {
	return &MockAuth{
		sessions: newSessions(),
		user: User{
			ID:       "dev-user-123",
			Email:    "dev@warband.local",
			Name:     "Dev Officer",
			Username: "devofficer",
			Groups:   []string{"users", officerGroup},
		},
		AutoLogin: true,
	}
}

// LoginHandler for mock auth - auto-creates a session
func (m *MockAuth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	user := m.user
	session := &Session{
		ID:        randomToken(),
		User:      &user,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	m.sessions.add(session)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Expires:  session.ExpiresAt,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// CallbackHandler is not needed for mock auth
func (m *MockAuth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutHandler for mock auth
func (m *MockAuth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	m.sessions.drop(r)
	clearSession(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Middleware for mock auth
func (m *MockAuth) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return redirectMiddleware(m, next)
}

// UserFromRequest returns the session user, or the dev user when AutoLogin is set
func (m *MockAuth) UserFromRequest(r *http.Request) (*User, bool) {
	if user, ok := m.sessions.lookup(r); ok {
		return user, true
	}
	if m.AutoLogin {
		user := m.user
		return &user, true
	}
	return nil, false
}

func redirectMiddleware(p AuthProvider, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := p.UserFromRequest(r)
		if !ok {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// RequireGroup guards API routes: 401 without a session, 403 outside group
func RequireGroup(p AuthProvider, group string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := p.UserFromRequest(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !user.InGroup(group) {
			logger.Warn("Rejected mutation outside officer group", "username", user.Username, "path", r.URL.Path)
			http.Error(w, "Forbidden: officer access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// WithUser stores user in ctx
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// GetUser retrieves the authenticated user from the request context
func GetUser(r *http.Request) *User {
	user, _ := r.Context().Value(contextKey{}).(*User)
	return user
}

func clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// randomToken generates a random value for states and session ids
func randomToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
