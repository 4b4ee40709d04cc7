package guard

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/session"
)

// Decision is the outcome of evaluating a Component.
type Decision int

const (
	// Render shows the guarded children.
	Render Decision = iota
	// Fallback shows the component's fallback.
	Fallback
	// Denied shows the access-denied notice.
	Denied
	// Redirect sends an unauthenticated user to the login form.
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Fallback:
		return "fallback"
	case Denied:
		return "denied"
	case Redirect:
		return "redirect"
	default:
		return "render"
	}
}

// Component guards a fragment of a page behind an optional permission and an
// optional role. Both must hold when both are set.
type Component struct {
	RequiredPermission auth.Permission
	RequiredRole       auth.Role
	Fallback           template.HTML
}

// Evaluate decides what to render for s. missing names the first unmet
// requirement when the decision is Fallback or Denied.
func (g Component) Evaluate(s *auth.Session) (d Decision, missing string) {
	if !s.Authenticated() {
		return Redirect, ""
	}
	switch {
	case g.RequiredPermission != "" && !auth.HasPermission(s, g.RequiredPermission):
		missing = string(g.RequiredPermission)
	case g.RequiredRole != "" && !auth.HasRole(s, g.RequiredRole):
		missing = string(g.RequiredRole)
	default:
		return Render, ""
	}
	if g.Fallback != "" {
		return Fallback, missing
	}
	return Denied, missing
}

// Render returns the HTML for children under g. An unauthenticated session
// renders nothing; the caller is expected to redirect.
func (g Component) Render(s *auth.Session, children template.HTML) (template.HTML, Decision) {
	d, missing := g.Evaluate(s)
	switch d {
	case Render:
		return children, d
	case Fallback:
		return g.Fallback, d
	case Denied:
		return DeniedNotice(missing), d
	default:
		return "", d
	}
}

// DeniedNotice is the generic access-denied fragment naming the missing requirement.
func DeniedNotice(missing string) template.HTML {
	var b strings.Builder
	b.WriteString(`<div class="access-denied" role="alert"><h2>Acceso denegado</h2>`)
	if missing != "" {
		fmt.Fprintf(&b, `<p>No tiene el permiso requerido: <code>%s</code>.</p>`, template.HTMLEscapeString(missing))
	} else {
		b.WriteString(`<p>No tiene permisos para ver este contenido.</p>`)
	}
	b.WriteString(`</div>`)
	return template.HTML(b.String())
}

// FuncMap exposes the predicates and the component guard to page templates:
//
//	{{if can .Session "roles.editar"}}...{{end}}
//	{{guard .Session "usuarios.eliminar" "" $button}}
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"can": func(s *auth.Session, perms ...string) bool {
			ps := make([]auth.Permission, len(perms))
			for i, p := range perms {
				ps[i] = auth.Permission(p)
			}
			return auth.HasPermission(s, ps...)
		},
		"hasRole": func(s *auth.Session, roles ...string) bool {
			rs := make([]auth.Role, len(roles))
			for i, r := range roles {
				rs[i] = auth.Role(r)
			}
			return auth.HasRole(s, rs...)
		},
		"guard": func(s *auth.Session, perm, role string, children template.HTML) template.HTML {
			out, _ := Component{RequiredPermission: auth.Permission(perm), RequiredRole: auth.Role(role)}.Render(s, children)
			return out
		},
		"guardOr": func(s *auth.Session, perm, role string, children, fallback template.HTML) template.HTML {
			out, _ := Component{RequiredPermission: auth.Permission(perm), RequiredRole: auth.Role(role), Fallback: fallback}.Render(s, children)
			return out
		},
	}
}

// RequirePermission allows the request when the session holds any of perms.
func RequirePermission(perms ...auth.Permission) gin.HandlerFunc {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return requirePerm(strings.Join(names, ", "), func(s *auth.Session) bool {
		return auth.HasPermission(s, perms...)
	})
}

// RequireRole allows the request when the session holds any of roles.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return requirePerm(strings.Join(names, ", "), func(s *auth.Session) bool {
		return auth.HasRole(s, roles...)
	})
}

// requirePerm denies with JSON on API paths and with a redirect to the
// unauthorized page elsewhere.
func requirePerm(missing string, ok func(*auth.Session) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := session.Current(c)
		api := DefaultClassifier().Classify(c.Request.URL.Path) == ClassAPI

		switch {
		case s == nil && api:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.KindSessionExpired.Code()})
		case s == nil:
			c.Redirect(http.StatusFound, LoginURL(c.Request.URL.RequestURI(), session.WasExpired(c)))
			c.Abort()
		case ok(s):
			c.Next()
		case api:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":    auth.KindForbidden.Code(),
				"required": missing,
			})
		default:
			c.Redirect(http.StatusFound, UnauthorizedPath+"?"+url.Values{"requerido": {missing}}.Encode())
			c.Abort()
		}
	}
}
