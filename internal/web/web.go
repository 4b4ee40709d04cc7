// Package web holds the dashboard's HTML templates and static assets, embedded
// into the binary, and the gin renderer that serves them. Every page is parsed
// together with the shared layout and partials so each can define its own
// "content" block.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	ginrender "github.com/gin-gonic/gin/render"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/guard"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/pagination"
)

//go:embed templates static
var content embed.FS

const layoutName = "layout"

// Renderer renders pages by name. It implements gin's render.HTMLRender so it
// can be installed with (*gin.Engine).HTMLRender.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page under templates/pages.
func NewRenderer() (*Renderer, error) {
	base, err := template.New(layoutName).Funcs(FuncMap()).ParseFS(content, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	files, err := fs.Glob(content, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for _, f := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(content, f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f, err)
		}
		r.pages[strings.TrimSuffix(path.Base(f), ".html")] = t
	}
	return r, nil
}

// Has reports whether a page named name exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Instance implements render.HTMLRender.
func (r *Renderer) Instance(name string, data any) ginrender.Render {
	t, ok := r.pages[name]
	if !ok {
		return missingPage(name)
	}
	return ginrender.HTML{Template: t, Name: layoutName, Data: data}
}

// Render writes page name to w.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return t.ExecuteTemplate(w, layoutName, data)
}

type missingPage string

func (m missingPage) Render(http.ResponseWriter) error {
	return fmt.Errorf("unknown page %q", string(m))
}

func (missingPage) WriteContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
}

// Static returns the embedded static assets, rooted at static/.
func Static() http.FileSystem {
	sub, err := fs.Sub(content, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// FuncMap returns the template helpers: the guard predicates plus formatting.
func FuncMap() template.FuncMap {
	fm := guard.FuncMap()
	fm["denied"] = guard.DeniedNotice
	fm["pager"] = func(p *pagination.Page, q url.Values) Pager { return NewPager(*p, q) }
	fm["fecha"] = formatDate
	fm["monto"] = func(v float64) string { return fmt.Sprintf("%.2f", v) }
	fm["join"] = strings.Join
	fm["moduleLabel"] = func(m auth.Module) string { return m.Label() }
	fm["fieldError"] = func(errs map[string]string, field string) string { return errs[field] }
	fm["toastClass"] = toastClass
	fm["hasID"] = func(ids []int64, id int64) bool {
		for _, v := range ids {
			if v == id {
				return true
			}
		}
		return false
	}
	return fm
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("02/01/2006 15:04")
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Local().Format("02/01/2006 15:04")
	}
	return ""
}

func toastClass(l notify.Level) string {
	switch l {
	case notify.LevelSuccess:
		return "toast toast-success"
	case notify.LevelWarning:
		return "toast toast-warning"
	case notify.LevelError:
		return "toast toast-error"
	default:
		return "toast toast-info"
	}
}
