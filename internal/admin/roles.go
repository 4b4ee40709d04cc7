// Package admin implements the behaviour behind the administration screens
// that goes beyond a plain backend call: the role permission manager, audit
// log filters and per-parameter configuration edits.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
)

var (
	// ErrPredefinedRole is returned when editing the name or permissions of a built-in role.
	ErrPredefinedRole = errors.New("predefined roles cannot be modified")
	// ErrInactiveRole is returned when editing the permissions of a deactivated role.
	ErrInactiveRole = errors.New("inactive roles cannot be modified")
)

// Roles runs role screens against the backend.
type Roles struct {
	api *backend.API
}

// NewRoles returns the role service for one caller's API.
func NewRoles(api *backend.API) *Roles {
	return &Roles{api: api}
}

// List returns one page of roles.
func (r *Roles) List(ctx context.Context, p backend.ListParams) (*backend.List[backend.Role], error) {
	return r.api.Roles.List(ctx, p)
}

// Create adds a custom role. Names of predefined roles are reserved.
func (r *Roles) Create(ctx context.Context, in backend.RoleInput) (*backend.Role, error) {
	in.Nombre = strings.TrimSpace(in.Nombre)
	in.Descripcion = strings.TrimSpace(in.Descripcion)
	if auth.IsPredefinedRole(in.Nombre) {
		return nil, fmt.Errorf("role %q: %w", in.Nombre, ErrPredefinedRole)
	}
	return r.api.Roles.Create(ctx, in)
}

// Update edits a custom role's name and description.
func (r *Roles) Update(ctx context.Context, id int64, in backend.RoleInput) (*backend.Role, error) {
	role, err := r.api.Roles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if isPredefined(role) {
		return nil, fmt.Errorf("role %q: %w", role.Nombre, ErrPredefinedRole)
	}
	in.Nombre = strings.TrimSpace(in.Nombre)
	in.Descripcion = strings.TrimSpace(in.Descripcion)
	if auth.IsPredefinedRole(in.Nombre) {
		return nil, fmt.Errorf("role %q: %w", in.Nombre, ErrPredefinedRole)
	}
	return r.api.Roles.Update(ctx, id, in)
}

// SetActive activates or deactivates a role. Roles are never deleted.
func (r *Roles) SetActive(ctx context.Context, id int64, active bool) error {
	role, err := r.api.Roles.Get(ctx, id)
	if err != nil {
		return err
	}
	if isPredefined(role) && !active {
		return fmt.Errorf("role %q: %w", role.Nombre, ErrPredefinedRole)
	}
	return r.api.Roles.SetActive(ctx, id, active)
}

func isPredefined(role *backend.Role) bool {
	return role.EsPredefinido || auth.IsPredefinedRole(role.Nombre)
}

// Matrix is the state of the permission manager for one role: the server
// catalog grouped by module and the permissions currently selected.
type Matrix struct {
	Role     backend.Role
	Catalog  *auth.Catalog
	original map[auth.Permission]bool
	selected map[auth.Permission]bool
}

// LoadMatrix reads the role and the permission catalog. Role permissions the
// catalog no longer lists are dropped from the selection.
func (r *Roles) LoadMatrix(ctx context.Context, id int64) (*Matrix, error) {
	role, err := r.api.Roles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	refs, err := r.api.Permissions.All(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := CatalogFrom(refs)
	if err != nil {
		return nil, err
	}

	m := &Matrix{
		Role:     *role,
		Catalog:  catalog,
		original: make(map[auth.Permission]bool),
		selected: make(map[auth.Permission]bool),
	}
	for _, raw := range role.PermissionIdentifiers() {
		p, err := auth.ParsePermission(raw)
		if err != nil || !catalog.Contains(p) {
			continue
		}
		m.original[p] = true
		m.selected[p] = true
	}
	return m, nil
}

// CatalogFrom validates the backend's permission listing.
func CatalogFrom(refs []backend.PermissionRef) (*auth.Catalog, error) {
	entries := make([]auth.CatalogEntry, 0, len(refs))
	for _, ref := range refs {
		entries = append(entries, auth.CatalogEntry{
			ID:          ref.ID,
			Permission:  auth.Permission(ref.Identifier()),
			Name:        ref.Nombre,
			Description: ref.Descripcion,
		})
	}
	return auth.NewCatalog(entries)
}

// Editable reports whether the role's permission set may change.
func (m *Matrix) Editable() bool {
	return !isPredefined(&m.Role) && m.Role.Activo
}

// Has reports whether p is selected.
func (m *Matrix) Has(p auth.Permission) bool { return m.selected[p] }

// Toggle flips p. Permissions outside the catalog are ignored.
func (m *Matrix) Toggle(p auth.Permission) {
	if !m.Catalog.Contains(p) {
		return
	}
	if m.selected[p] {
		delete(m.selected, p)
	} else {
		m.selected[p] = true
	}
}

// SetModule selects or clears every catalog permission of module.
func (m *Matrix) SetModule(module auth.Module, on bool) {
	for _, g := range m.Catalog.Grouped() {
		if g.Module != module {
			continue
		}
		for _, e := range g.Entries {
			if on {
				m.selected[e.Permission] = true
			} else {
				delete(m.selected, e.Permission)
			}
		}
	}
}

// Replace sets the selection to exactly raw, as submitted by the checkbox form.
func (m *Matrix) Replace(raw []string) error {
	perms, err := m.Catalog.Validate(raw)
	if err != nil {
		return err
	}
	m.selected = make(map[auth.Permission]bool, len(perms))
	for _, p := range perms {
		m.selected[p] = true
	}
	return nil
}

// Selected returns the selection in catalog order.
func (m *Matrix) Selected() []auth.Permission {
	var out []auth.Permission
	for _, g := range m.Catalog.Grouped() {
		for _, e := range g.Entries {
			if m.selected[e.Permission] {
				out = append(out, e.Permission)
			}
		}
	}
	return out
}

// Changed reports whether the selection differs from the loaded role.
func (m *Matrix) Changed() bool {
	if len(m.selected) != len(m.original) {
		return true
	}
	for p := range m.selected {
		if !m.original[p] {
			return true
		}
	}
	return false
}

// SavePermissions writes the matrix's full selection with a single PUT. The
// request always carries the resulting set, never a delta.
func (r *Roles) SavePermissions(ctx context.Context, m *Matrix) error {
	if isPredefined(&m.Role) {
		return fmt.Errorf("role %q: %w", m.Role.Nombre, ErrPredefinedRole)
	}
	if !m.Role.Activo {
		return fmt.Errorf("role %q: %w", m.Role.Nombre, ErrInactiveRole)
	}
	selected := m.Selected()
	ids := make([]string, len(selected))
	for i, p := range selected {
		ids[i] = string(p)
	}
	if err := r.api.Roles.SetPermissions(ctx, m.Role.ID, ids); err != nil {
		return err
	}
	m.original = make(map[auth.Permission]bool, len(selected))
	for _, p := range selected {
		m.original[p] = true
	}
	return nil
}
