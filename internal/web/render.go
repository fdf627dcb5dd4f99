// AngelaMos | 2026
// render.go

package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/homeser/internal/middleware"
	"github.com/carterperez-dev/homeser/internal/policy"
	"github.com/carterperez-dev/homeser/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"home",
	"services",
	"service_detail",
	"cart",
	"orders",
	"profile",
	"edit_profile",
	"register",
	"login",
	"error",
}

type page struct {
	Title   string
	Actor   policy.Actor
	Flashes []session.Flash
	Data    any
	Form    url.Values
	Errors  []string
}

type pages struct {
	byName map[string]*template.Template
}

type mediaURLer interface {
	URL(key string) string
}

// loadPages parses each page together with the shared layout.
func loadPages(media mediaURLer) (*pages, error) {
	funcs := template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"media": func(key string) string {
			if media == nil {
				return ""
			}
			return media.URL(key)
		},
	}

	p := &pages{byName: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/base.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		p.byName[name] = t
	}
	return p, nil
}

// render executes into a buffer first so a template error still yields a
// clean 500 instead of half a page.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, status int, p page) {
	ctx := r.Context()
	p.Actor = middleware.ActorFrom(ctx)
	if p.Form == nil {
		p.Form = url.Values{}
	}

	if s, err := h.sessions.Load(ctx, r); err == nil {
		if p.Flashes = s.PopFlashes(); len(p.Flashes) > 0 {
			if err := h.sessions.Save(ctx, w, s); err != nil {
				slog.WarnContext(ctx, "save session", "error", err)
			}
		}
	}

	t, ok := h.pages.byName[name]
	if !ok {
		slog.ErrorContext(ctx, "unknown page", "page", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", p); err != nil {
		slog.ErrorContext(ctx, "render page", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// flash queues a message for the next rendered page. Call before any
// redirect so the session cookie goes out with it.
func (h *Handler) flash(w http.ResponseWriter, r *http.Request, level session.Level, message string) {
	ctx := r.Context()
	s, err := h.sessions.Load(ctx, r)
	if err != nil {
		slog.WarnContext(ctx, "load session", "error", err)
		return
	}

	s.AddFlash(level, message)
	if err := h.sessions.Save(ctx, w, s); err != nil {
		slog.WarnContext(ctx, "save session", "error", err)
	}
}
