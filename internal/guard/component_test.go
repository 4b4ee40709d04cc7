package guard

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/session"
)

func authed(roles []auth.Role, perms []auth.Permission) *auth.Session {
	return &auth.Session{ID: "sid", Token: "tok", Roles: roles, Permissions: perms}
}

func TestComponent_Evaluate(t *testing.T) {
	editor := authed([]auth.Role{auth.RoleSupervisor}, []auth.Permission{auth.PermRolesVer, auth.PermRolesEditar})

	tests := []struct {
		name        string
		g           Component
		s           *auth.Session
		want        Decision
		wantMissing string
	}{
		{"nil session", Component{}, nil, Redirect, ""},
		{"expired session", Component{}, &auth.Session{ID: "sid", Token: "tok", Error: "SessionExpired"}, Redirect, ""},
		{"no requirements", Component{}, editor, Render, ""},
		{"permission held", Component{RequiredPermission: auth.PermRolesEditar}, editor, Render, ""},
		{"role held", Component{RequiredRole: auth.RoleSupervisor}, editor, Render, ""},
		{"both held", Component{RequiredPermission: auth.PermRolesVer, RequiredRole: auth.RoleSupervisor}, editor, Render, ""},
		{"permission missing", Component{RequiredPermission: auth.PermUsuariosEliminar}, editor, Denied, "usuarios.eliminar"},
		{"role missing", Component{RequiredRole: auth.RoleAdministrador}, editor, Denied, "administrador"},
		{"role missing with permission held", Component{RequiredPermission: auth.PermRolesVer, RequiredRole: auth.RoleAdministrador}, editor, Denied, "administrador"},
		{"fallback", Component{RequiredPermission: auth.PermVentasAprobar, Fallback: "<span>-</span>"}, editor, Fallback, "ventas.aprobar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, missing := tt.g.Evaluate(tt.s)
			assert.Equal(t, tt.want, d)
			assert.Equal(t, tt.wantMissing, missing)
		})
	}
}

func TestComponent_RenderDeniedNamesPermission(t *testing.T) {
	s := authed(nil, []auth.Permission{auth.PermRolesVer})
	out, d := Component{RequiredPermission: auth.PermRolesEditar}.Render(s, "<button>Guardar</button>")

	assert.Equal(t, Denied, d)
	assert.Contains(t, string(out), "Acceso denegado")
	assert.Contains(t, string(out), "roles.editar")
	assert.NotContains(t, string(out), "Guardar")
}

func TestComponent_RenderChildrenAndFallback(t *testing.T) {
	s := authed(nil, []auth.Permission{auth.PermRolesEditar})

	out, d := Component{RequiredPermission: auth.PermRolesEditar}.Render(s, "<button>Guardar</button>")
	assert.Equal(t, Render, d)
	assert.Equal(t, template.HTML("<button>Guardar</button>"), out)

	out, d = Component{RequiredPermission: auth.PermRolesEliminar, Fallback: "<em>solo lectura</em>"}.Render(s, "<button>Eliminar</button>")
	assert.Equal(t, Fallback, d)
	assert.Equal(t, template.HTML("<em>solo lectura</em>"), out)

	out, d = Component{}.Render(nil, "<button>Guardar</button>")
	assert.Equal(t, Redirect, d)
	assert.Empty(t, out)
}

func TestDeniedNotice_EscapesRequirement(t *testing.T) {
	out := string(DeniedNotice("<script>"))
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, string(DeniedNotice("")), "No tiene permisos")
}

func TestFuncMap_Templates(t *testing.T) {
	tmpl := template.Must(template.New("t").Funcs(FuncMap()).Parse(
		`{{if can .S "roles.editar"}}edit{{end}}|{{if hasRole .S "vendedor" "supervisor"}}role{{end}}|{{guard .S "usuarios.eliminar" "" .B}}|{{guardOr .S "usuarios.eliminar" "" .B .F}}`))

	var b strings.Builder
	s := authed([]auth.Role{auth.RoleVendedor}, []auth.Permission{auth.PermRolesEditar})
	require.NoError(t, tmpl.Execute(&b, map[string]any{
		"S": s,
		"B": template.HTML("<b>x</b>"),
		"F": template.HTML("<i>f</i>"),
	}))
	out := b.String()
	assert.True(t, strings.HasPrefix(out, "edit|role|"))
	assert.Contains(t, out, "Acceso denegado")
	assert.Contains(t, out, "usuarios.eliminar")
	assert.True(t, strings.HasSuffix(out, "|<i>f</i>"))
}

func newRequireRouter(h *session.Holder, mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if h != nil {
			session.Attach(c, h)
		}
		c.Next()
	})
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/administracion/roles", mw, ok)
	r.GET("/api/roles", mw, ok)
	return r
}

func TestRequirePermission(t *testing.T) {
	mw := RequirePermission(auth.PermRolesVer, auth.PermRolesEditar)

	// Any one of the listed permissions is enough.
	allowed := newRequireRouter(newHolder(t, nil, []auth.Permission{auth.PermRolesEditar}), mw)
	assert.Equal(t, http.StatusOK, get(allowed, "/administracion/roles").Code)
	assert.Equal(t, http.StatusOK, get(allowed, "/api/roles").Code)

	denied := newRequireRouter(newHolder(t, nil, []auth.Permission{auth.PermVentasVer}), mw)
	w := get(denied, "/administracion/roles")
	require.Equal(t, http.StatusFound, w.Code)
	loc, _ := url.Parse(w.Header().Get("Location"))
	assert.Equal(t, UnauthorizedPath, loc.Path)
	assert.Equal(t, "roles.ver, roles.editar", loc.Query().Get("requerido"))

	w = get(denied, "/api/roles")
	require.Equal(t, http.StatusForbidden, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "forbidden", body["error"])
}

func TestRequirePermission_NoSession(t *testing.T) {
	r := newRequireRouter(nil, RequirePermission(auth.PermRolesVer))

	w := get(r, "/administracion/roles")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), LoginPath+"?"))

	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/roles").Code)
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole(auth.RoleAdministrador)
	assert.Equal(t, http.StatusOK, get(newRequireRouter(newHolder(t, []auth.Role{auth.RoleAdministrador}, nil), mw), "/administracion/roles").Code)
	assert.Equal(t, http.StatusFound, get(newRequireRouter(newHolder(t, []auth.Role{auth.RoleVendedor}, nil), mw), "/administracion/roles").Code)
}
