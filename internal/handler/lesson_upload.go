package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/sakif/skillswap/internal/apperror"
	"github.com/sakif/skillswap/internal/service"
	"github.com/sakif/skillswap/internal/upload"
)

const (
	// maxUploadBody leaves room for the text fields around the video.
	maxUploadBody = upload.MaxVideoBytes + 1<<20
	// multipartMemory is how much of a form is kept in memory before
	// file parts spill to disk.
	multipartMemory = 32 << 20
)

type uploadPage struct {
	Title       string
	Description string
	CreditCost  string
	Error       string
	Field       string
}

// HandleUploadForm renders an empty upload form.
//
// HTTP: GET /upload
func (h *PageHandler) HandleUploadForm(w http.ResponseWriter, r *http.Request) {
	h.showUpload(w, r, http.StatusOK, uploadPage{CreditCost: strconv.Itoa(service.DefaultCreditCost)})
}

// HandleUpload creates a lesson from the multipart upload form.
//
// HTTP: POST /upload
//
// CHECK ORDER:
//  1. a video part is present ("Please select a video file")
//  2. its declared type and size (upload.ValidateVideo)
//  3. the credit cost is an integer 1-10
//  4. title and description
//  5. the video is read into memory
//
// Everything is checked before the backend is called. On success the
// browser is sent to the new lesson.
func (h *PageHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	form := uploadPage{CreditCost: strconv.Itoa(service.DefaultCreditCost)}
	fail := func(err error, fallback string) {
		status, _ := statusFor(err)
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			form.Field = appErr.Field
		}
		form.Error = apperror.Message(err, fallback)
		h.showUpload(w, r, status, form)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(apperror.ValidationFailed("video",
				fmt.Sprintf("Video file must be under %s", humanize.Bytes(uint64(upload.MaxVideoBytes)))), "")
			return
		}
		fail(apperror.ValidationFailed("", "The form could not be read. Please try again."), "")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form.Title = r.FormValue("title")
	form.Description = r.FormValue("description")
	form.CreditCost = r.FormValue("creditCost")

	file, header, err := r.FormFile("video")
	if err != nil {
		fail(apperror.ValidationFailed("video", "Please select a video file"), "")
		return
	}
	_ = file.Close()

	video := upload.FromMultipart(header)
	if err := upload.ValidateVideo(video); err != nil {
		fail(err, "Invalid file")
		return
	}

	cost, err := strconv.ParseUint(form.CreditCost, 10, 64)
	if err != nil {
		fail(apperror.ValidationFailed("creditCost", "Credit cost must be between 1 and 10"), "")
		return
	}

	in := service.LessonInput{
		Title:       form.Title,
		Description: form.Description,
		CreditCost:  cost,
	}
	if err := h.queries.CheckLesson(in); err != nil {
		fail(err, "")
		return
	}

	in.Video, err = upload.ReadAll(r.Context(), video, upload.MaxVideoBytes)
	if err != nil {
		fail(err, "Failed to read file")
		return
	}

	id, err := h.queries.CreateLesson(r.Context(), in)
	if err != nil {
		fail(err, "Failed to upload lesson")
		return
	}

	h.logger.Info("lesson uploaded",
		slog.Uint64("lessonID", id),
		slog.String("size", humanize.Bytes(uint64(len(in.Video)))),
	)
	http.Redirect(w, r, fmt.Sprintf("/lesson/%d", id), http.StatusSeeOther)
}

func (h *PageHandler) showUpload(w http.ResponseWriter, r *http.Request, status int, form uploadPage) {
	h.render.Render(w, status, pageUpload, view{
		Title: "Upload a Lesson",
		Frame: h.frame(r),
		Data:  form,
	})
}
