// Package auth - catalog.go defines the closed permission catalog (module x action)
// and the role identifiers used by route and component guards.
package auth

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Module is a functional area of the dashboard that permissions are scoped to.
type Module string

const (
	ModuleUsuarios      Module = "usuarios"
	ModuleRoles         Module = "roles"
	ModulePermisos      Module = "permisos"
	ModuleAuditoria     Module = "auditoria"
	ModuleConfiguracion Module = "configuracion"
	ModuleClientes      Module = "clientes"
	ModuleProductos     Module = "productos"
	ModuleVentas        Module = "ventas"
	ModuleDashboard     Module = "dashboard"
)

// AllModules returns every module in display order.
func AllModules() []Module {
	return []Module{
		ModuleDashboard,
		ModuleUsuarios,
		ModuleRoles,
		ModulePermisos,
		ModuleAuditoria,
		ModuleConfiguracion,
		ModuleClientes,
		ModuleProductos,
		ModuleVentas,
	}
}

// Label returns the human-readable module name.
func (m Module) Label() string {
	switch m {
	case ModuleUsuarios:
		return "Usuarios"
	case ModuleRoles:
		return "Roles"
	case ModulePermisos:
		return "Permisos"
	case ModuleAuditoria:
		return "Auditoría"
	case ModuleConfiguracion:
		return "Configuración"
	case ModuleClientes:
		return "Clientes"
	case ModuleProductos:
		return "Productos"
	case ModuleVentas:
		return "Ventas"
	case ModuleDashboard:
		return "Dashboard"
	}
	return string(m)
}

// Action is an operation a permission grants within a module.
type Action string

const (
	ActionVer      Action = "ver"
	ActionCrear    Action = "crear"
	ActionEditar   Action = "editar"
	ActionEliminar Action = "eliminar"
	ActionAprobar  Action = "aprobar"
	ActionExportar Action = "exportar"
	ActionImportar Action = "importar"
)

// AllActions returns every action in display order.
func AllActions() []Action {
	return []Action{
		ActionVer,
		ActionCrear,
		ActionEditar,
		ActionEliminar,
		ActionAprobar,
		ActionExportar,
		ActionImportar,
	}
}

// Permission is an atomic capability formatted as "<module>.<action>".
// Values outside the catalog can only be produced by a conversion, never by ParsePermission.
type Permission string

// Permissions referenced by routes and templates.
const (
	PermDashboardVer Permission = "dashboard.ver"

	PermUsuariosVer      Permission = "usuarios.ver"
	PermUsuariosCrear    Permission = "usuarios.crear"
	PermUsuariosEditar   Permission = "usuarios.editar"
	PermUsuariosEliminar Permission = "usuarios.eliminar"

	PermRolesVer      Permission = "roles.ver"
	PermRolesCrear    Permission = "roles.crear"
	PermRolesEditar   Permission = "roles.editar"
	PermRolesEliminar Permission = "roles.eliminar"

	PermPermisosVer Permission = "permisos.ver"

	PermAuditoriaVer      Permission = "auditoria.ver"
	PermAuditoriaExportar Permission = "auditoria.exportar"

	PermConfiguracionVer    Permission = "configuracion.ver"
	PermConfiguracionEditar Permission = "configuracion.editar"

	PermClientesVer      Permission = "clientes.ver"
	PermClientesCrear    Permission = "clientes.crear"
	PermClientesEditar   Permission = "clientes.editar"
	PermClientesEliminar Permission = "clientes.eliminar"

	PermProductosVer      Permission = "productos.ver"
	PermProductosCrear    Permission = "productos.crear"
	PermProductosEditar   Permission = "productos.editar"
	PermProductosEliminar Permission = "productos.eliminar"

	PermVentasVer      Permission = "ventas.ver"
	PermVentasCrear    Permission = "ventas.crear"
	PermVentasEditar   Permission = "ventas.editar"
	PermVentasEliminar Permission = "ventas.eliminar"
	PermVentasAprobar  Permission = "ventas.aprobar"
	PermVentasExportar Permission = "ventas.exportar"
)

var validModules, validActions = func() (map[Module]bool, map[Action]bool) {
	mods := make(map[Module]bool)
	for _, m := range AllModules() {
		mods[m] = true
	}
	acts := make(map[Action]bool)
	for _, a := range AllActions() {
		acts[a] = true
	}
	return mods, acts
}()

// NewPermission builds the permission for a module/action pair.
func NewPermission(m Module, a Action) Permission {
	return Permission(string(m) + "." + string(a))
}

// ParsePermission validates s against the closed catalog.
func ParsePermission(s string) (Permission, error) {
	mod, act, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return "", fmt.Errorf("invalid permission %q: expected <module>.<action>", s)
	}
	if !validModules[Module(mod)] {
		return "", fmt.Errorf("invalid permission %q: unknown module %q", s, mod)
	}
	if !validActions[Action(act)] {
		return "", fmt.Errorf("invalid permission %q: unknown action %q", s, act)
	}
	return NewPermission(Module(mod), Action(act)), nil
}

// ParsePermissions converts raw identifiers, returning the valid ones and the rejected ones.
func ParsePermissions(raw []string) (valid []Permission, unknown []string) {
	seen := make(map[Permission]bool, len(raw))
	for _, s := range raw {
		p, err := ParsePermission(s)
		if err != nil {
			unknown = append(unknown, s)
			continue
		}
		if !seen[p] {
			seen[p] = true
			valid = append(valid, p)
		}
	}
	return valid, unknown
}

// Module returns the module part of the permission.
func (p Permission) Module() Module {
	m, _, _ := strings.Cut(string(p), ".")
	return Module(m)
}

// Action returns the action part of the permission.
func (p Permission) Action() Action {
	_, a, _ := strings.Cut(string(p), ".")
	return Action(a)
}

// AllPermissions returns every module x action pair in catalog order.
func AllPermissions() []Permission {
	perms := make([]Permission, 0, len(AllModules())*len(AllActions()))
	for _, m := range AllModules() {
		for _, a := range AllActions() {
			perms = append(perms, NewPermission(m, a))
		}
	}
	return perms
}

// Role is a named bundle of permissions. Custom role names are server-defined,
// so only the predefined ones are constants.
type Role string

const (
	RoleAdministrador Role = "administrador"
	RoleSupervisor    Role = "supervisor"
	RoleVendedor      Role = "vendedor"
)

// IsPredefinedRole reports whether name is one of the built-in immutable roles.
func IsPredefinedRole(name string) bool {
	switch Role(strings.ToLower(strings.TrimSpace(name))) {
	case RoleAdministrador, RoleSupervisor, RoleVendedor:
		return true
	}
	return false
}

// CatalogEntry is a server-defined permission as listed by GET /permisos.
type CatalogEntry struct {
	ID          int64
	Permission  Permission
	Name        string
	Description string
}

// ModuleGroup is the set of catalog entries for one module, used by the permission manager.
type ModuleGroup struct {
	Module  Module
	Entries []CatalogEntry
}

// Catalog is the validated server permission listing.
type Catalog struct {
	entries []CatalogEntry
	byPerm  map[Permission]CatalogEntry
}

// NewCatalog validates entries against the closed catalog. Permissions this
// build does not know are skipped with a warning so the rest stay editable.
// Duplicates are an error.
func NewCatalog(entries []CatalogEntry) (*Catalog, error) {
	c := &Catalog{byPerm: make(map[Permission]CatalogEntry, len(entries))}
	for _, e := range entries {
		p, err := ParsePermission(string(e.Permission))
		if err != nil {
			slog.Warn("skipping unknown permission in server catalog", "permission", e.Permission, "id", e.ID)
			continue
		}
		e.Permission = p
		if _, dup := c.byPerm[p]; dup {
			return nil, fmt.Errorf("duplicate permission %q in catalog", p)
		}
		c.byPerm[p] = e
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Contains reports whether p is listed by the server.
func (c *Catalog) Contains(p Permission) bool {
	_, ok := c.byPerm[p]
	return ok
}

// Lookup returns the entry for p.
func (c *Catalog) Lookup(p Permission) (CatalogEntry, bool) {
	e, ok := c.byPerm[p]
	return e, ok
}

// Validate converts raw identifiers, failing on the first one not in the catalog.
func (c *Catalog) Validate(raw []string) ([]Permission, error) {
	out := make([]Permission, 0, len(raw))
	for _, s := range raw {
		p, err := ParsePermission(s)
		if err != nil {
			return nil, err
		}
		if !c.Contains(p) {
			return nil, fmt.Errorf("permission %q is not offered by the server", p)
		}
		out = append(out, p)
	}
	return out, nil
}

// Grouped returns entries grouped by module in AllModules order, actions in AllActions order.
func (c *Catalog) Grouped() []ModuleGroup {
	modOrder := make(map[Module]int)
	for i, m := range AllModules() {
		modOrder[m] = i
	}
	actOrder := make(map[Action]int)
	for i, a := range AllActions() {
		actOrder[a] = i
	}

	sorted := make([]CatalogEntry, len(c.entries))
	copy(sorted, c.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Permission, sorted[j].Permission
		if a.Module() != b.Module() {
			return modOrder[a.Module()] < modOrder[b.Module()]
		}
		return actOrder[a.Action()] < actOrder[b.Action()]
	})

	var groups []ModuleGroup
	for _, e := range sorted {
		m := e.Permission.Module()
		if len(groups) == 0 || groups[len(groups)-1].Module != m {
			groups = append(groups, ModuleGroup{Module: m})
		}
		groups[len(groups)-1].Entries = append(groups[len(groups)-1].Entries, e)
	}
	return groups
}
