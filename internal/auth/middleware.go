package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/sakif/skillswap/internal/model"
)

// SessionCookie is the name of the HttpOnly cookie carrying the session token.
const SessionCookie = "session"

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of type contextKey, so only this package
// can read or write identity values in the context.
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
//
// The backend client reads it back with IdentityFromContext to decide which
// caller token to attach, so every remote call made while handling a request
// acts on behalf of that request's identity.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the signed-in identity from ctx.
//
// Returns (Anonymous, false) if the request is anonymous.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok && !id.IsAnonymous()
}

// Session reads the session cookie, if any, and stores the identity in the
// request context. It never blocks a request: the shell decides what an
// anonymous visitor sees.
func Session(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := extractIdentity(r, tokens); err == nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth is Session plus a 401 for anonymous requests.
// Used for routes that have no meaningful anonymous rendering, like /media.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractIdentity(r, tokens)
			if err != nil {
				http.Error(w, "sign in required", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// SetSessionCookie stores a session token in the browser.
// HttpOnly keeps it away from scripts; SameSite=Lax keeps it off cross-site POSTs.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to drop the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func extractIdentity(r *http.Request, tokens *TokenService) (model.Identity, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return model.Anonymous, err
	}
	return tokens.Validate(cookie.Value)
}
