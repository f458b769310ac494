// Package handler contains the HTTP handlers of the SkillSwap web app.
//
// Pages are rendered on the server from the embedded templates/ directory:
//
//	templates/base.html      header, bottom navigation, setup modal
//	templates/partials.html  lesson card and other shared blocks
//	templates/<page>.html    {{define "content"}} for one page
//
// Each page is parsed once at startup together with base and partials, the
// same "base + content" composition html/template has always used.
//
// Handlers only translate HTTP to service calls and back. Caching, validation
// and invalidation live in the service package.
package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/sakif/skillswap/internal/format"
	"github.com/sakif/skillswap/internal/model"
	"github.com/sakif/skillswap/internal/upload"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names. Each has a templates/<name>.html file.
const (
	pageLessons = "lessons"
	pageLesson  = "lesson"
	pageUpload  = "upload"
	pageProfile = "profile"
	pageSignIn  = "signin"
	pageError   = "error"
	pageBlank   = "blank"
)

var pageNames = []string{pageLessons, pageLesson, pageUpload, pageProfile, pageSignIn, pageError, pageBlank}

// view is what every template receives. Data is the page's own struct.
type view struct {
	Title string
	Frame *frame
	Data  any
}

// Renderer holds the parsed page templates.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses every page. A template error fails startup, not a request.
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	r := &Renderer{
		pages:  make(map[string]*template.Template, len(pageNames)),
		logger: logger,
	}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/base.html",
			"templates/partials.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes page with status. The page is rendered into a buffer first,
// so a template failure still produces a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, v view) {
	t, ok := r.pages[page]
	if !ok {
		r.logger.Error("unknown page", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", v); err != nil {
		r.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

var funcs = template.FuncMap{
	"credits":  format.Credits,
	"date":     format.Date,
	"dateTime": format.DateTime,
	"ago":      format.Ago,
	"shortID":  shortID,
	"maxVideo": func() string {
		return humanize.Bytes(uint64(upload.MaxVideoBytes))
	},
	"acceptVideo": func() string {
		return strings.Join(upload.AcceptedVideoTypes, ",")
	},
}

// shortID abbreviates an identity for display: the first n characters and
// an ellipsis.
func shortID(id model.Identity, n int) string {
	s := id.String()
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
