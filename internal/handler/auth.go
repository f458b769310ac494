package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/skillswap/internal/apperror"
	"github.com/sakif/skillswap/internal/auth"
	"github.com/sakif/skillswap/internal/model"
	"github.com/sakif/skillswap/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler manages sign-in, sign-out and session introspection.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignIn         → the sign-in page
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, exchange it for a user, issue the session
//   - HandleDevLogin       → issue a session for a fresh development identity
//   - HandleLogout         → drop the caller's cache and clear the session cookie
//   - HandleMe             → JSON view of the signed-in caller
//
// DEPENDENCY CHAIN:
//   - github  *auth.GitHubProvider → performs the OAuth code exchange (nil when not configured)
//   - auth    *service.AuthService → issues sessions, drops caches
//   - queries *service.Queries     → profile and role for HandleMe
type AuthHandler struct {
	github  *auth.GitHubProvider
	auth    *service.AuthService
	queries *service.Queries
	render  *Renderer
	options SignInOptions
	secure  bool
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secure marks cookies HTTPS-only.
func NewAuthHandler(
	github *auth.GitHubProvider,
	authService *service.AuthService,
	queries *service.Queries,
	render *Renderer,
	devLogin bool,
	secure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		github:  github,
		auth:    authService,
		queries: queries,
		render:  render,
		options: SignInOptions{GitHub: github != nil, DevLogin: devLogin},
		secure:  secure,
		logger:  logger,
	}
}

// Options reports which sign-in methods are available.
func (h *AuthHandler) Options() SignInOptions {
	return h.options
}

type signInPage struct {
	Options SignInOptions
	Error   string
}

// HandleSignIn renders the sign-in page. Signed-in visitors go home.
//
// HTTP: GET /auth/login
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	page := signInPage{Options: h.options}
	switch r.URL.Query().Get("auth") {
	case "denied":
		page.Error = "Sign-in was cancelled."
	case "failed":
		page.Error = "Sign-in failed. Please try again."
	}
	h.render.Render(w, http.StatusOK, pageSignIn, view{Title: "Sign in", Frame: &frame{}, Data: page})
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived cookie and into the authorization
// URL. HandleGitHubCallback only accepts a callback carrying the same value.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth sign-in.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user
//  3. Issue the session cookie
//  4. Redirect to the lesson list, where the shell asks for a profile if needed
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("expected", cookie.Value),
			slog.String("got", r.URL.Query().Get("state")),
		)
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/auth/login?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for a GitHub user ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}
	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/auth/login?auth=failed", http.StatusSeeOther)
		return
	}

	// --- Step 3: Issue the session ---
	result, err := h.auth.SignInGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: issuing session failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/auth/login?auth=failed", http.StatusSeeOther)
		return
	}
	auth.SetSessionCookie(w, result.Token, h.auth.SessionTTL(), h.secure)

	// --- Step 4: Redirect to the app ---
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleDevLogin signs in as a brand-new identity, for local development
// without GitHub credentials.
//
// HTTP: POST /auth/dev
func (h *AuthHandler) HandleDevLogin(w http.ResponseWriter, r *http.Request) {
	if !h.options.DevLogin {
		http.NotFound(w, r)
		return
	}

	result, err := h.auth.SignInDev(r.Context())
	if err != nil {
		h.logger.Error("development sign-in failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/auth/login?auth=failed", http.StatusSeeOther)
		return
	}
	auth.SetSessionCookie(w, result.Token, h.auth.SessionTTL(), h.secure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout signs the caller out.
//
// HTTP: POST /auth/logout
//
// Sessions are stateless JWTs, so signing out means deleting the cookie and
// forgetting every cached read of the identity. A copied token stays valid
// until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	h.auth.SignOut(id)
	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

// meResponse is the JSON body of HandleMe.
type meResponse struct {
	Identity model.Identity     `json:"identity"`
	Role     model.UserRole     `json:"role"`
	Profile  *model.UserProfile `json:"profile"`
}

// HandleMe returns the signed-in caller with their profile and role.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets the identity in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("Please sign in first"))
		return
	}

	profile := h.queries.CallerProfile(r.Context())
	if profile.IsDisabled() {
		writeError(w, apperror.Unavailable("The service is still starting. Please try again in a moment."))
		return
	}
	if profile.IsError() {
		writeError(w, profile.Err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		Identity: id,
		Role:     h.queries.CallerRole(r.Context()).Data,
		Profile:  profile.Data,
	})
}
