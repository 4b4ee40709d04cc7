// roles.go implements the role screens and the role permission manager.
package admin

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	adminsvc "github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/admin"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/pagination"
)

const rolesPath = "/administracion/roles"

const (
	msgPredefinedRole = "Los roles predefinidos no pueden modificarse."
	msgInactiveRole   = "El rol está inactivo y no puede modificarse."
)

// RoleHandlers handles role management screens
type RoleHandlers struct {
	base
}

// NewRoleHandlers creates a new RoleHandlers instance
func NewRoleHandlers(d Deps) *RoleHandlers {
	return &RoleHandlers{base: newBase(d)}
}

type roleFormView struct {
	ID     int64
	Notice *Notice
}

func rolePath(id int64, suffix string) string {
	return rolesPath + "/" + strconv.FormatInt(id, 10) + suffix
}

// ListRolesHandler lists roles
// GET /administracion/roles?busqueda=&pagina=1
func (h *RoleHandlers) ListRolesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pg := pagination.FromQuery(c.Request.URL.Query())
		list, err := adminsvc.NewRoles(h.api(c)).List(c.Request.Context(), backend.ListParams{
			Page:   pg.Page,
			Limit:  pg.Limit,
			Search: strings.TrimSpace(c.Query("busqueda")),
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		pg = pg.WithTotal(list.Total)

		p := h.view(c, "Roles y permisos", "roles")
		p.Data = list
		p.Pagination = &pg
		c.HTML(http.StatusOK, "roles", p)
	}
}

func (h *RoleHandlers) renderForm(c *gin.Context, status int, id int64, in backend.RoleInput, errs map[string]string, notice *Notice) {
	title := "Nuevo rol"
	if id != 0 {
		title = "Editar rol"
	}
	p := h.view(c, title, "roles")
	p.Form = in
	p.Errors = errs
	p.Data = roleFormView{ID: id, Notice: notice}
	c.HTML(status, "role_form", p)
}

// NewRoleHandler renders the empty role form
// GET /administracion/roles/nuevo
func (h *RoleHandlers) NewRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.renderForm(c, http.StatusOK, 0, backend.RoleInput{}, nil, nil)
	}
}

// CreateRoleHandler creates a custom role and continues to its permission
// manager.
// POST /administracion/roles
func (h *RoleHandlers) CreateRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in backend.RoleInput
		if err := c.ShouldBind(&in); err != nil {
			h.renderForm(c, http.StatusUnprocessableEntity, 0, in, bindErrors(err), nil)
			return
		}
		role, err := adminsvc.NewRoles(h.api(c)).Create(c.Request.Context(), in)
		if errors.Is(err, adminsvc.ErrPredefinedRole) {
			h.renderForm(c, http.StatusUnprocessableEntity, 0, in, map[string]string{
				"nombre": "El nombre está reservado para un rol predefinido.",
			}, nil)
			return
		}
		if err != nil {
			if status, fields, notice, ok := h.formFailure(c, err); ok {
				h.renderForm(c, status, 0, in, fields, notice)
			}
			return
		}
		flash(c, notify.Success("Rol creado. Asigne sus permisos."))
		c.Redirect(http.StatusSeeOther, rolePath(role.ID, "/permisos"))
	}
}

// EditRoleHandler renders the form for a custom role
// GET /administracion/roles/:id/editar
func (h *RoleHandlers) EditRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			h.notFound(c)
			return
		}
		role, err := h.api(c).Roles.Get(c.Request.Context(), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		if role.EsPredefinido || auth.IsPredefinedRole(role.Nombre) {
			flash(c, notify.Error("No se pudo completar la acción", msgPredefinedRole))
			c.Redirect(http.StatusFound, rolesPath)
			return
		}
		h.renderForm(c, http.StatusOK, id, backend.RoleInput{Nombre: role.Nombre, Descripcion: role.Descripcion}, nil, nil)
	}
}

// UpdateRoleHandler edits a custom role's name and description
// POST /administracion/roles/:id
func (h *RoleHandlers) UpdateRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			h.notFound(c)
			return
		}
		var in backend.RoleInput
		if err := c.ShouldBind(&in); err != nil {
			h.renderForm(c, http.StatusUnprocessableEntity, id, in, bindErrors(err), nil)
			return
		}
		_, err := adminsvc.NewRoles(h.api(c)).Update(c.Request.Context(), id, in)
		if errors.Is(err, adminsvc.ErrPredefinedRole) {
			h.renderForm(c, http.StatusConflict, id, in, nil, &Notice{Title: "Rol predefinido", Message: msgPredefinedRole})
			return
		}
		if err != nil {
			if status, fields, notice, ok := h.formFailure(c, err); ok {
				h.renderForm(c, status, id, in, fields, notice)
			}
			return
		}
		flash(c, notify.Success("Rol actualizado correctamente."))
		c.Redirect(http.StatusSeeOther, rolesPath)
	}
}

// SetRoleActiveHandler activates or deactivates a role. Roles are never deleted.
// POST /administracion/roles/:id/estado
func (h *RoleHandlers) SetRoleActiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			h.notFound(c)
			return
		}
		active := wantsActive(c)
		err := adminsvc.NewRoles(h.api(c)).SetActive(c.Request.Context(), id, active)
		switch {
		case errors.Is(err, adminsvc.ErrPredefinedRole):
			h.actionFailed(c, err, msgPredefinedRole)
		case err != nil:
			if h.actionFailed(c, err, "") {
				return
			}
		case active:
			flash(c, notify.Success("Rol activado."))
		default:
			flash(c, notify.Success("Rol desactivado."))
		}
		c.Redirect(http.StatusSeeOther, rolesPath)
	}
}

func (h *RoleHandlers) renderMatrix(c *gin.Context, status int, m *adminsvc.Matrix, errs map[string]string) {
	p := h.view(c, "Permisos del rol "+m.Role.Nombre, "roles")
	p.Data = m
	p.Errors = errs
	c.HTML(status, "role_permissions", p)
}

// RolePermissionsHandler renders the permission manager: the catalog grouped
// by module with the role's current permissions selected.
// GET /administracion/roles/:id/permisos
func (h *RoleHandlers) RolePermissionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			h.notFound(c)
			return
		}
		m, err := adminsvc.NewRoles(h.api(c)).LoadMatrix(c.Request.Context(), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		h.renderMatrix(c, http.StatusOK, m, nil)
	}
}

// SaveRolePermissionsHandler replaces the role's permissions with the checked
// set. The backend receives the full resulting set in one request.
// POST /administracion/roles/:id/permisos
func (h *RoleHandlers) SaveRolePermissionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			h.notFound(c)
			return
		}
		svc := adminsvc.NewRoles(h.api(c))
		m, err := svc.LoadMatrix(c.Request.Context(), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		if err := m.Replace(c.PostFormArray("permisos")); err != nil {
			h.renderMatrix(c, http.StatusUnprocessableEntity, m, map[string]string{
				"permisos": "La selección contiene permisos desconocidos.",
			})
			return
		}
		if !m.Changed() {
			flash(c, notify.Toast{Level: notify.LevelInfo, Message: "No hay cambios que guardar."})
			c.Redirect(http.StatusSeeOther, rolePath(id, "/permisos"))
			return
		}

		err = svc.SavePermissions(c.Request.Context(), m)
		switch {
		case errors.Is(err, adminsvc.ErrPredefinedRole):
			h.renderMatrix(c, http.StatusConflict, m, map[string]string{"permisos": msgPredefinedRole})
			return
		case errors.Is(err, adminsvc.ErrInactiveRole):
			h.renderMatrix(c, http.StatusConflict, m, map[string]string{"permisos": msgInactiveRole})
			return
		case err != nil:
			if status, fields, notice, ok := h.formFailure(c, err); ok {
				msg := notice.Message
				if f := fields["permisos"]; f != "" {
					msg = f
				}
				h.renderMatrix(c, status, m, map[string]string{"permisos": msg})
			}
			return
		}
		flash(c, notify.Success("Permisos actualizados."))
		c.Redirect(http.StatusSeeOther, rolePath(id, "/permisos"))
	}
}
