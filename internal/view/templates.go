package view

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"golang.org/x/text/message"

	"github.com/odyssey-erp/odyssey-starter/internal/i18n"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
	"github.com/odyssey-erp/odyssey-starter/internal/users"
	"github.com/odyssey-erp/odyssey-starter/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Lang        string
	User        *users.User
	Data        any

	printer *message.Printer
}

// NewTemplateData fills the request-scoped fields: language, current user,
// pending flash and path. The caller supplies title, CSRF token and data.
func NewTemplateData(r *http.Request, title string) TemplateData {
	ctx := r.Context()
	return TemplateData{
		Title:       title,
		Flash:       shared.PopFlashFromContext(ctx),
		CurrentPath: r.URL.Path,
		Lang:        i18n.Lang(ctx),
		User:        users.FromContext(ctx),
		printer:     i18n.Printer(ctx),
	}
}

// T translates key in the request language.
func (d TemplateData) T(key string, args ...any) string {
	if d.printer == nil {
		return i18n.T(context.Background(), key, args...)
	}
	return d.printer.Sprintf(key, args...)
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t *time.Time) string {
			if t == nil || t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}
