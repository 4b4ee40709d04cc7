// dashboard.go implements the home page and the shared error pages.
package admin

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/session"
)

// DashboardHandlers serves the home page and the error pages.
type DashboardHandlers struct {
	base
}

// NewDashboardHandlers creates a new DashboardHandlers instance
func NewDashboardHandlers(d Deps) *DashboardHandlers {
	return &DashboardHandlers{base: newBase(d)}
}

// Card is one counter on the home page.
type Card struct {
	Label string
	Path  string
	Value string
}

type dashboardView struct {
	Cards       []Card
	Roles       []string
	Unavailable bool
}

type unauthorizedView struct {
	Required string
}

type counter struct {
	label string
	path  string
	perm  auth.Permission
	total func(context.Context, *backend.API) (int, error)
}

func totalOf[T any](r func(*backend.API) *backend.Resource[T]) func(context.Context, *backend.API) (int, error) {
	return func(ctx context.Context, api *backend.API) (int, error) {
		l, err := r(api).List(ctx, backend.ListParams{Page: 1, Limit: 1})
		if err != nil {
			return 0, err
		}
		return l.Total, nil
	}
}

var counters = []counter{
	{"Ventas", "/ventas", auth.PermVentasVer, totalOf(func(a *backend.API) *backend.Resource[backend.Sale] { return a.Sales })},
	{"Clientes", "/clientes", auth.PermClientesVer, totalOf(func(a *backend.API) *backend.Resource[backend.Customer] { return a.Clients })},
	{"Productos", "/productos", auth.PermProductosVer, totalOf(func(a *backend.API) *backend.Resource[backend.Product] { return a.Products })},
	{"Usuarios", "/administracion/usuarios", auth.PermUsuariosVer, totalOf(func(a *backend.API) *backend.Resource[backend.User] { return a.Users.Resource })},
	{"Roles", "/administracion/roles", auth.PermRolesVer, totalOf(func(a *backend.API) *backend.Resource[backend.Role] { return a.Roles.Resource })},
}

// HomeHandler renders the dashboard with one counter per module the user may
// view. Counters load concurrently; a failed counter is left out without
// failing the page.
// GET /
func (h *DashboardHandlers) HomeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := session.Current(c)
		if s == nil {
			h.expire(c)
			return
		}
		// Counter failures are summarized on the page instead of toasted.
		client := h.client
		if holder, ok := session.HolderFrom(c); ok {
			client = client.WithAuth(holder)
		}
		api := backend.NewAPI(client)

		var visible []counter
		for _, ct := range counters {
			if auth.HasPermission(s, ct.perm) {
				visible = append(visible, ct)
			}
		}
		values := make([]string, len(visible))
		var g errgroup.Group
		for i, ct := range visible {
			i, ct := i, ct
			g.Go(func() error {
				n, err := ct.total(c.Request.Context(), api)
				if err == nil {
					values[i] = strconv.Itoa(n)
				}
				return err
			})
		}
		err := g.Wait()
		if session.WasExpired(c) {
			h.expire(c)
			return
		}

		data := dashboardView{Unavailable: err != nil}
		for i, ct := range visible {
			if values[i] == "" {
				continue
			}
			data.Cards = append(data.Cards, Card{Label: ct.label, Path: ct.path, Value: values[i]})
		}
		for _, r := range s.Roles {
			data.Roles = append(data.Roles, roleLabel(r))
		}

		p := h.view(c, "Inicio", "inicio")
		p.Data = data
		c.HTML(http.StatusOK, "dashboard", p)
	}
}

func roleLabel(r auth.Role) string {
	v := string(r)
	first, size := utf8.DecodeRuneInString(v)
	if first == utf8.RuneError {
		return v
	}
	return string(unicode.ToUpper(first)) + v[size:]
}

// UnauthorizedHandler renders the access denied page naming the missing
// requirement.
// GET /unauthorized?requerido=roles.editar
func (h *DashboardHandlers) UnauthorizedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := h.view(c, "Acceso denegado", "")
		p.Data = unauthorizedView{Required: c.Query("requerido")}
		c.HTML(http.StatusForbidden, "unauthorized", p)
	}
}

// NotFoundHandler answers unknown routes: JSON under /api, a page elsewhere.
func (h *DashboardHandlers) NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": auth.KindNotFound.Code()})
			return
		}
		h.notFound(c)
	}
}
