package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/skillswap/internal/apperror"
	"github.com/sakif/skillswap/internal/model"
	"github.com/sakif/skillswap/internal/service"
)

type profilePage struct {
	Editing bool
	Name    string
	Gmail   string
	Error   string

	Role      model.UserRole
	MyLessons []model.Lesson
}

// HandleProfile renders the caller's profile, or its edit form with ?edit=1.
//
// HTTP: GET /profile
func (h *PageHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	f := h.frame(r)
	page := profilePage{Editing: r.URL.Query().Get("edit") == "1"}
	if f.Profile != nil {
		page.Name = f.Profile.Name
		page.Gmail = f.Profile.ContactAddress()
	}
	h.showProfile(w, r, http.StatusOK, page)
}

// HandleProfileSave writes the edit form over the stored profile. The
// balance and creation time are carried over from what the backend sent.
//
// HTTP: POST /profile
func (h *PageHandler) HandleProfileSave(w http.ResponseWriter, r *http.Request) {
	f := h.frame(r)
	page := profilePage{
		Editing: true,
		Name:    r.FormValue("name"),
		Gmail:   r.FormValue("gmail"),
	}

	if f.Profile == nil {
		page.Error = "Profile not found"
		h.showProfile(w, r, http.StatusNotFound, page)
		return
	}

	in := service.ProfileInput{Name: page.Name, Gmail: page.Gmail}
	if err := h.queries.UpdateProfile(r.Context(), *f.Profile, in); err != nil {
		status, _ := statusFor(err)
		page.Error = apperror.Message(err, "Failed to update profile")
		h.showProfile(w, r, status, page)
		return
	}

	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// showProfile loads the caller's lessons and role side by side. Both reads
// degrade on failure, so the group never returns an error.
func (h *PageHandler) showProfile(w http.ResponseWriter, r *http.Request, status int, page profilePage) {
	f := h.frame(r)

	var g errgroup.Group
	g.Go(func() error {
		page.MyLessons = h.queries.LessonsByCreator(r.Context(), f.Identity).Data
		return nil
	})
	g.Go(func() error {
		page.Role = h.queries.CallerRole(r.Context()).Data
		return nil
	})
	_ = g.Wait()

	h.render.Render(w, status, pageProfile, view{Title: "Your Profile", Frame: f, Data: page})
}

// HandleSetup saves the first profile from the setup modal and sends the
// browser back to the page it was on.
//
// HTTP: POST /profile/setup
//
// Only callers in the setup state may post here. Anyone else already has a
// profile, and a second setup would reset their balance to the starting
// credits.
func (h *PageHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	f := h.frame(r)
	next := safeNext(r.FormValue("next"))

	if !f.SetupRequired() {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	in := service.ProfileInput{Name: r.FormValue("name"), Gmail: r.FormValue("gmail")}
	if err := h.queries.SetupProfile(r.Context(), in); err != nil {
		status, _ := statusFor(err)
		f.SetupName = in.Name
		f.SetupGmail = in.Gmail
		f.SetupError = apperror.Message(err, "Failed to save profile")
		f.Path = next
		h.render.Render(w, status, pageBlank, view{Title: "Welcome", Frame: f})
		return
	}

	h.logger.Info("profile created", slog.String("identity", f.Identity.String()))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// safeNext keeps redirects on this site: only absolute paths, never
// "//host" or "/\host", which browsers treat as another origin.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
