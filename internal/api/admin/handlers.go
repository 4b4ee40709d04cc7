// Package admin implements the dashboard's page handlers: the credential
// screens, the administration screens and the catalog lists. Each handler
// talks to the backend REST API as the signed-in user through the request's
// session holder and renders a page from the web package.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/credentials"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/guard"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/session"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/web"
)

// Deps are the collaborators shared by every handler group.
type Deps struct {
	// Client is the unauthenticated backend client; handlers scope it to the
	// request's session.
	Client    *backend.Client
	Sessions  *session.Manager
	Refresher session.Refresher
	Cookie    *session.Cookie
	Exchanger *credentials.Exchanger
}

// Notice is an alert rendered above a form.
type Notice struct {
	Title   string
	Message string
}

// base carries what every page handler needs.
type base struct {
	client *backend.Client
	cookie *session.Cookie
}

func newBase(d Deps) base {
	return base{client: d.Client, cookie: d.Cookie}
}

// api returns the backend API authenticated as the request's session. Bearer
// tokens, silent refresh and toasts all go through the session holder.
func (b base) api(c *gin.Context) *backend.API {
	h, ok := session.HolderFrom(c)
	if !ok {
		return backend.NewAPI(b.client)
	}
	return backend.NewAPI(b.client.WithAuth(h).WithNotifier(h))
}

// view starts the page data for the request. Pending toasts are consumed.
func (b base) view(c *gin.Context, title, active string) web.Page {
	s := session.Current(c)
	p := web.Page{
		Title:   title,
		Active:  active,
		Session: s,
		Nav:     web.Navigation(s, active),
		Query:   c.Request.URL.Query(),
	}
	if h, ok := session.HolderFrom(c); ok && s != nil {
		p.Toasts = h.TakeToasts()
	}
	return p
}

// flash queues a toast for the page rendered after a redirect.
func flash(c *gin.Context, t notify.Toast) {
	if h, ok := session.HolderFrom(c); ok {
		h.Notify(t)
	}
}

// fail renders the outcome of a backend call that prevented the page from
// loading.
func (b base) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		c.Abort()
	case errors.Is(err, backend.ErrSessionExpired) || session.WasExpired(c):
		b.expire(c)
	case errors.Is(err, backend.ErrForbidden):
		p := b.view(c, "Acceso denegado", "")
		p.Data = unauthorizedView{}
		c.HTML(http.StatusForbidden, "unauthorized", p)
	case backend.KindOf(err) == auth.KindNotFound:
		b.notFound(c)
	default:
		slog.Warn("backend call failed", "path", c.Request.URL.Path, "error", err)
		kind := backend.KindOf(err)
		p := b.view(c, kind.Title(), "")
		p.Data = Notice{Title: "No se pudo cargar la página", Message: kind.Message()}
		c.HTML(upstreamStatus(err), "error", p)
	}
}

// expire ends a session the backend no longer accepts and sends the browser
// to the login form with the expired marker.
func (b base) expire(c *gin.Context) {
	if b.cookie != nil {
		b.cookie.Clear(c)
	}
	callback := ""
	if c.Request.Method == http.MethodGet {
		callback = c.Request.URL.RequestURI()
	}
	c.Redirect(http.StatusFound, guard.LoginURL(callback, true))
	c.Abort()
}

func (b base) notFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "not_found", b.view(c, "Página no encontrada", ""))
}

// upstreamStatus is the status a page answers with after err.
func upstreamStatus(err error) int {
	apiErr, ok := backend.AsAPIError(err)
	switch {
	case !ok, apiErr.Status == 0, apiErr.Status >= 500:
		return http.StatusBadGateway
	default:
		return apiErr.Status
	}
}

// formFailure turns a rejected form submission into inline errors and a
// notice. ok is false when err ends the request instead.
func (b base) formFailure(c *gin.Context, err error) (status int, fields map[string]string, notice *Notice, ok bool) {
	if errors.Is(err, backend.ErrSessionExpired) || session.WasExpired(c) {
		b.expire(c)
		return 0, nil, nil, false
	}
	if errors.Is(err, context.Canceled) {
		c.Abort()
		return 0, nil, nil, false
	}
	apiErr, isAPI := backend.AsAPIError(err)
	if !isAPI {
		kind := auth.KindUnknown
		return http.StatusInternalServerError, nil, &Notice{Title: kind.Title(), Message: kind.Message()}, true
	}
	if len(apiErr.Fields) > 0 {
		fields = make(map[string]string, len(apiErr.Fields))
		for name := range apiErr.Fields {
			fields[name] = apiErr.FieldError(name)
		}
	}
	return upstreamStatus(err), fields, &Notice{Title: apiErr.Kind.Title(), Message: apiErr.UserMessage()}, true
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

var tagMessages = map[string]string{
	"required": "Este campo es obligatorio.",
	"email":    "Ingrese un correo electrónico válido.",
	"min":      "El valor es demasiado corto.",
	"max":      "El valor es demasiado largo.",
	"alphanum": "Solo se permiten letras y números.",
}

// bindErrors converts a binding failure into inline messages keyed by the
// lower-cased field name, which matches the form field names.
func bindErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"__all__": "Los datos enviados no son válidos."}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		if _, seen := out[name]; seen {
			continue
		}
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "Valor inválido."
		}
		out[name] = msg
	}
	return out
}

// wantsActive reads the activo field of a toggle form.
func wantsActive(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.PostForm("activo"))
	return v
}

// actionFailed reports a failed action that answers with a redirect. The
// error is attached to the context so the audit trail records the failure.
// It returns true when the request already ended.
func (b base) actionFailed(c *gin.Context, err error, message string) bool {
	_ = c.Error(err)
	switch {
	case errors.Is(err, backend.ErrSessionExpired) || session.WasExpired(c):
		b.expire(c)
		return true
	case errors.Is(err, backend.ErrForbidden):
		kind := auth.KindForbidden
		flash(c, notify.Error(kind.Title(), kind.Message()))
	case message != "":
		flash(c, notify.Error("No se pudo completar la acción", message))
	}
	// Other backend failures were already toasted by the client.
	return false
}
