// users.go implements the user administration screens: list, detail, create,
// edit and activation.
package admin

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/pagination"
)

const usersPath = "/administracion/usuarios"

// UserHandlers handles user management screens
type UserHandlers struct {
	base
}

// NewUserHandlers creates a new UserHandlers instance
func NewUserHandlers(d Deps) *UserHandlers {
	return &UserHandlers{base: newBase(d)}
}

type userFormView struct {
	ID     int64
	Roles  []backend.Role
	Notice *Notice
}

// ListUsersHandler lists users with search and pagination
// GET /administracion/usuarios?busqueda=ana&pagina=2
func (h *UserHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pg := pagination.FromQuery(c.Request.URL.Query())
		list, err := h.api(c).Users.List(c.Request.Context(), backend.ListParams{
			Page:   pg.Page,
			Limit:  pg.Limit,
			Search: strings.TrimSpace(c.Query("busqueda")),
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		pg = pg.WithTotal(list.Total)

		p := h.view(c, "Usuarios", "usuarios")
		p.Data = list
		p.Pagination = &pg
		c.HTML(http.StatusOK, "users", p)
	}
}

// GetUserHandler shows one user
// GET /administracion/usuarios/:id
func (h *UserHandlers) GetUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			h.notFound(c)
			return
		}
		user, err := h.api(c).Users.Get(c.Request.Context(), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		p := h.view(c, user.Nombre, "usuarios")
		p.Data = user
		c.HTML(http.StatusOK, "user_detail", p)
	}
}

// activeRoles lists the roles a user can be assigned.
func (h *UserHandlers) activeRoles(c *gin.Context) ([]backend.Role, error) {
	list, err := h.api(c).Roles.List(c.Request.Context(), backend.ListParams{
		Page:    1,
		Limit:   pagination.MaxLimit,
		Filters: map[string]string{"activo": "true"},
	})
	if err != nil {
		return nil, err
	}
	out := make([]backend.Role, 0, len(list.Data))
	for _, r := range list.Data {
		if r.Activo {
			out = append(out, r)
		}
	}
	return out, nil
}

// renderForm renders the user form. A failure to list roles leaves the role
// picker empty rather than failing the form.
func (h *UserHandlers) renderForm(c *gin.Context, status int, id int64, in backend.UserInput, errs map[string]string, notice *Notice) {
	roles, _ := h.activeRoles(c)
	title := "Nuevo usuario"
	if id != 0 {
		title = "Editar usuario"
	}
	p := h.view(c, title, "usuarios")
	p.Form = in
	p.Errors = errs
	p.Data = userFormView{ID: id, Roles: roles, Notice: notice}
	c.HTML(status, "user_form", p)
}

// NewUserHandler renders the empty user form
// GET /administracion/usuarios/nuevo
func (h *UserHandlers) NewUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.renderForm(c, http.StatusOK, 0, backend.UserInput{Activo: true}, nil, nil)
	}
}

// EditUserHandler renders the form for an existing user
// GET /administracion/usuarios/:id/editar
func (h *UserHandlers) EditUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			h.notFound(c)
			return
		}
		user, err := h.api(c).Users.Get(c.Request.Context(), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		in := backend.UserInput{
			Nombre:   user.Nombre,
			Username: user.Username,
			Email:    user.Email,
			Activo:   user.Activo,
		}
		for _, r := range user.Roles {
			in.RoleIDs = append(in.RoleIDs, r.ID)
		}
		h.renderForm(c, http.StatusOK, id, in, nil, nil)
	}
}

// bindUser reads the submitted form. Passwords are mandatory for new users only.
func bindUser(c *gin.Context, creating bool) (backend.UserInput, map[string]string) {
	var in backend.UserInput
	err := c.ShouldBind(&in)
	in.Nombre = strings.TrimSpace(in.Nombre)
	in.Email = strings.TrimSpace(in.Email)
	var errs map[string]string
	if err != nil {
		errs = bindErrors(err)
	}
	if creating && in.Password == "" {
		if errs == nil {
			errs = make(map[string]string)
		}
		if _, ok := errs["password"]; !ok {
			errs["password"] = tagMessages["required"]
		}
	}
	return in, errs
}

// CreateUserHandler creates a user
// POST /administracion/usuarios
func (h *UserHandlers) CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		in, errs := bindUser(c, true)
		if errs != nil {
			in.Password = ""
			h.renderForm(c, http.StatusUnprocessableEntity, 0, in, errs, nil)
			return
		}
		if _, err := h.api(c).Users.Create(c.Request.Context(), in); err != nil {
			status, fields, notice, ok := h.formFailure(c, err)
			if ok {
				in.Password = ""
				h.renderForm(c, status, 0, in, fields, notice)
			}
			return
		}
		flash(c, notify.Success("Usuario creado correctamente."))
		c.Redirect(http.StatusSeeOther, usersPath)
	}
}

// UpdateUserHandler updates a user
// POST /administracion/usuarios/:id
func (h *UserHandlers) UpdateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			h.notFound(c)
			return
		}
		in, errs := bindUser(c, false)
		if errs != nil {
			in.Password = ""
			h.renderForm(c, http.StatusUnprocessableEntity, id, in, errs, nil)
			return
		}
		if _, err := h.api(c).Users.Update(c.Request.Context(), id, in); err != nil {
			status, fields, notice, ok := h.formFailure(c, err)
			if ok {
				in.Password = ""
				h.renderForm(c, status, id, in, fields, notice)
			}
			return
		}
		flash(c, notify.Success("Usuario actualizado correctamente."))
		c.Redirect(http.StatusSeeOther, usersPath+"/"+strconv.FormatInt(id, 10))
	}
}

// SetUserActiveHandler activates or deactivates a user
// POST /administracion/usuarios/:id/estado
func (h *UserHandlers) SetUserActiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			h.notFound(c)
			return
		}
		active := wantsActive(c)
		if err := h.api(c).Users.SetActive(c.Request.Context(), id, active); err != nil {
			if h.actionFailed(c, err, "") {
				return
			}
		} else if active {
			flash(c, notify.Success("Usuario activado."))
		} else {
			flash(c, notify.Success("Usuario desactivado."))
		}
		c.Redirect(http.StatusSeeOther, usersPath)
	}
}
