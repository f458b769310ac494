package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/skillswap/internal/apperror"
	"github.com/sakif/skillswap/internal/media"
	"github.com/sakif/skillswap/internal/model"
	"github.com/sakif/skillswap/internal/service"
)

// SignInOptions says which sign-in buttons the sign-in page offers.
type SignInOptions struct {
	GitHub   bool
	DevLogin bool
}

// PageHandler serves the app pages: lessons, lesson detail, upload, profile.
//
// DEPENDENCIES (injected via NewPageHandler):
//   - queries *service.Queries → cached reads and invalidating writes
//   - media   *media.Registry  → playback URLs for lesson videos
//   - render  *Renderer        → parsed page templates
type PageHandler struct {
	queries *service.Queries
	media   *media.Registry
	render  *Renderer
	signIn  SignInOptions
	logger  *slog.Logger
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(
	queries *service.Queries,
	registry *media.Registry,
	render *Renderer,
	signIn SignInOptions,
	logger *slog.Logger,
) *PageHandler {
	return &PageHandler{
		queries: queries,
		media:   registry,
		render:  render,
		signIn:  signIn,
		logger:  logger,
	}
}

// =============================================================================
// LESSON LIST
// =============================================================================

type lessonsPage struct {
	Loading bool
	Failed  bool
	Lessons []model.Lesson
}

// HandleLessons renders the lesson list.
//
// HTTP: GET /
func (h *PageHandler) HandleLessons(w http.ResponseWriter, r *http.Request) {
	f := h.frame(r)
	res := h.queries.AllLessons(r.Context())
	f.Refresh = res.IsDisabled()

	h.render.Render(w, http.StatusOK, pageLessons, view{
		Title: "Explore Lessons",
		Frame: f,
		Data: lessonsPage{
			Loading: res.IsDisabled(),
			Failed:  res.IsError(),
			Lessons: res.Data,
		},
	})
}

// =============================================================================
// LESSON DETAIL
// =============================================================================

type lessonPage struct {
	Loading  bool
	NotFound bool

	Lesson           *model.Lesson
	VideoURL         string
	HasEnoughCredits bool
	Balance          uint64
	Completed        bool
	Error            string
}

// CanComplete reports whether the completion button is enabled.
func (p lessonPage) CanComplete() bool {
	return p.HasEnoughCredits && !p.Completed
}

// HandleLesson renders one lesson with its player and completion panel.
//
// HTTP: GET /lesson/{id}
// A ?completed=1 query shows the "Lesson completed!" banner instead of the
// button; HandleComplete redirects there.
func (h *PageHandler) HandleLesson(w http.ResponseWriter, r *http.Request) {
	id, ok := lessonID(r)
	if !ok {
		h.showLesson(w, r, 0, http.StatusNotFound, "")
		return
	}
	h.showLesson(w, r, id, http.StatusOK, "")
}

// HandleComplete spends the caller's credits on a lesson.
//
// HTTP: POST /lesson/{id}/complete
//
// The balance check is repeated here so a stale or hand-made form never
// reaches the backend without enough credits. The backend still has the
// final say.
func (h *PageHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := lessonID(r)
	if !ok {
		h.showLesson(w, r, 0, http.StatusNotFound, "")
		return
	}

	f := h.frame(r)
	lesson := h.queries.Lesson(r.Context(), id)
	if lesson.Data == nil {
		h.showLesson(w, r, id, http.StatusNotFound, "")
		return
	}

	cost := lesson.Data.CreditCost
	if !f.Profile.HasEnoughCredits(cost) {
		h.logger.Info("completion refused: not enough credits",
			slog.Uint64("lessonID", id),
			slog.Uint64("cost", cost),
			slog.Uint64("balance", f.Balance()),
		)
		h.showLesson(w, r, id, http.StatusConflict, "")
		return
	}

	if err := h.queries.CompleteLesson(r.Context(), id); err != nil {
		status, _ := statusFor(err)
		h.showLesson(w, r, id, status, apperror.Message(err, "Failed to complete lesson"))
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/lesson/%d?completed=1", id), http.StatusSeeOther)
}

func (h *PageHandler) showLesson(w http.ResponseWriter, r *http.Request, id uint64, status int, errMsg string) {
	f := h.frame(r)
	res := h.queries.Lesson(r.Context(), id)

	page := lessonPage{Error: errMsg}
	switch {
	case id != 0 && res.IsDisabled():
		page.Loading = true
		f.Refresh = true
	case res.Data == nil:
		page.NotFound = true
		if status == http.StatusOK {
			status = http.StatusNotFound
		}
	default:
		lesson := res.Data
		page.Lesson = lesson
		page.VideoURL = h.media.Create(media.Owner{
			Viewer: f.Identity,
			Name:   "lesson:" + strconv.FormatUint(lesson.ID, 10),
		}, lesson.Video)
		page.HasEnoughCredits = f.Profile.HasEnoughCredits(lesson.CreditCost)
		page.Balance = f.Balance()
		page.Completed = r.URL.Query().Get("completed") == "1"
	}

	title := "Lesson"
	if page.Lesson != nil {
		title = page.Lesson.Title
	}
	h.render.Render(w, status, pageLesson, view{Title: title, Frame: f, Data: page})
}

// lessonID parses the {id} URL parameter. Zero is never a valid lesson id.
func lessonID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// =============================================================================
// ERRORS
// =============================================================================

type errorPage struct {
	Status  int
	Message string
}

// renderError shows err as a full page, with the status statusFor picks.
func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("page failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	h.render.Render(w, status, pageError, view{
		Title: http.StatusText(status),
		Frame: h.frame(r),
		Data:  errorPage{Status: status, Message: publicMessage(err)},
	})
}

// HandleNotFound renders the 404 page for unknown paths.
func (h *PageHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, &apperror.AppError{Err: apperror.ErrNotFound, Message: "Page not found"})
}
