package handler

import (
	"context"
	"net/http"

	"github.com/sakif/skillswap/internal/auth"
	"github.com/sakif/skillswap/internal/model"
	"github.com/sakif/skillswap/internal/shell"
)

// frame is the part of every page the layout draws: who is signed in, the
// credit badge, which nav item is active, and the setup modal.
type frame struct {
	Identity model.Identity
	State    shell.State
	Profile  *model.UserProfile
	Ready    bool
	Path     string

	// Refresh asks the browser to reload shortly, used while the backend is
	// still connecting and reads are disabled.
	Refresh bool

	// Setup form values and error when a setup submission is re-rendered.
	SetupName  string
	SetupGmail string
	SetupError string
}

func (f *frame) SignedIn() bool      { return f.State != shell.Unauthenticated }
func (f *frame) SetupRequired() bool { return f.State == shell.ProfileSetupRequired }

// Balance is the caller's credit balance, 0 without a profile.
func (f *frame) Balance() uint64 {
	if f.Profile == nil {
		return 0
	}
	return f.Profile.RemainingLearningCredits
}

// Active reports whether the nav item for path is the current page.
// Only exact matches light up; a lesson detail page highlights nothing.
func (f *frame) Active(path string) bool {
	return f.Path == path
}

type frameKey struct{}

func withFrame(ctx context.Context, f *frame) context.Context {
	return context.WithValue(ctx, frameKey{}, f)
}

// Shell resolves the caller's shell state once per request.
//
// Anonymous visitors get the sign-in page whatever they asked for. Signed-in
// callers continue to the page; when they have no profile yet the layout
// draws the setup modal over it.
func (h *PageHandler) Shell(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := h.resolveFrame(r)
		if f.State == shell.Unauthenticated {
			status := http.StatusOK
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				status = http.StatusUnauthorized
			}
			h.render.Render(w, status, pageSignIn, view{
				Title: "Sign in",
				Frame: f,
				Data:  signInPage{Options: h.signIn},
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(withFrame(r.Context(), f)))
	})
}

// frame returns the request's frame, resolving it when Shell did not run.
func (h *PageHandler) frame(r *http.Request) *frame {
	if f, ok := r.Context().Value(frameKey{}).(*frame); ok {
		return f
	}
	return h.resolveFrame(r)
}

func (h *PageHandler) resolveFrame(r *http.Request) *frame {
	id, _ := auth.IdentityFromContext(r.Context())
	profile := h.queries.CallerProfile(r.Context())
	return &frame{
		Identity: id,
		State:    shell.Resolve(id, profile),
		Profile:  profile.Data,
		Ready:    !profile.IsDisabled(),
		Path:     r.URL.Path,
	}
}
