package web

import (
	"net/url"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/guard"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/pagination"
)

// Page is the data every template receives.
type Page struct {
	Title   string
	Active  string
	Session *auth.Session
	Toasts  []notify.Toast
	Nav     []NavItem

	// Errors holds inline validation messages keyed by form field.
	Errors map[string]string
	// Form echoes submitted values back into the form.
	Form any
	// Data is the page-specific payload.
	Data any

	Query      url.Values
	Pagination *pagination.Page
}

// NavItem is one entry of the side navigation.
type NavItem struct {
	Key    string
	Label  string
	Path   string
	Active bool
}

type navEntry struct {
	key   string
	label string
	path  string
	perm  auth.Permission
}

var navigation = []navEntry{
	{"inicio", "Inicio", "/", ""},
	{"ventas", "Ventas", "/ventas", auth.PermVentasVer},
	{"clientes", "Clientes", "/clientes", auth.PermClientesVer},
	{"productos", "Productos", "/productos", auth.PermProductosVer},
	{"usuarios", "Usuarios", "/administracion/usuarios", auth.PermUsuariosVer},
	{"roles", "Roles y permisos", "/administracion/roles", auth.PermRolesVer},
	{"auditoria", "Auditoría", "/administracion/auditoria", auth.PermAuditoriaVer},
	{"configuracion", "Configuración", "/administracion/configuracion", auth.PermConfiguracionVer},
}

// Navigation returns the entries s may open. Entries are filtered through the
// component guard, so a hidden link and a denied route never disagree.
func Navigation(s *auth.Session, active string) []NavItem {
	if !s.Authenticated() {
		return nil
	}
	var out []NavItem
	for _, e := range navigation {
		g := guard.Component{RequiredPermission: e.perm}
		if d, _ := g.Evaluate(s); d != guard.Render {
			continue
		}
		out = append(out, NavItem{Key: e.key, Label: e.label, Path: e.path, Active: e.key == active})
	}
	return out
}

// PageLink is one pagination control.
type PageLink struct {
	Number  int
	URL     string
	Current bool
}

// Pager is the rendered pagination block.
type Pager struct {
	Summary string
	Prev    *PageLink
	Next    *PageLink
	Links   []PageLink
}

// NewPager builds the pagination block for p, keeping the filters in q.
func NewPager(p pagination.Page, q url.Values) Pager {
	out := Pager{Summary: p.Summary()}
	link := func(n int) string { return "?" + p.Query(q, n) }
	if p.Pages() <= 1 {
		return out
	}
	for _, c := range p.Controls() {
		out.Links = append(out.Links, PageLink{Number: c.Number, URL: link(c.Number), Current: c.Current})
	}
	if p.HasPrev() {
		out.Prev = &PageLink{Number: p.Page - 1, URL: link(p.Page - 1)}
	}
	if p.HasNext() {
		out.Next = &PageLink{Number: p.Page + 1, URL: link(p.Page + 1)}
	}
	return out
}
