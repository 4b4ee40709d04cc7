package backend

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"time"
)

// List is the envelope of paginated list endpoints.
type List[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// ListParams are the common list query parameters.
type ListParams struct {
	Page    int
	Limit   int
	Search  string
	Filters map[string]string
}

// Values encodes p as pagina/limite/busqueda plus filters. Empty filters are omitted.
func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("pagina", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limite", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		v.Set("busqueda", p.Search)
	}
	for k, val := range p.Filters {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// FlexID decodes identifiers sent either as JSON numbers or strings.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = FlexID(n.String())
	return nil
}

// Names decodes a list of names sent either as strings or as objects with a
// nombre (or name) field.
type Names []string

// UnmarshalJSON implements json.Unmarshaler.
func (n *Names) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Names, 0, len(raw))
	for _, item := range raw {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Nombre string `json:"nombre"`
			Name   string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		if obj.Nombre != "" {
			out = append(out, obj.Nombre)
		} else if obj.Name != "" {
			out = append(out, obj.Name)
		}
	}
	*n = out
	return nil
}

// UserRef is the user object embedded in auth responses.
type UserRef struct {
	ID     FlexID `json:"id"`
	Nombre string `json:"nombre"`
	Email  string `json:"email"`
}

// TokenResponse is returned by /auth/login and /auth/refresh.
type TokenResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   int     `json:"expires_in"`
	User        UserRef `json:"user"`
	Roles       Names   `json:"roles"`
	Permissions Names   `json:"permissions"`
}

// MeResponse is returned by /auth/me.
type MeResponse struct {
	UserRef
	Roles       Names `json:"roles"`
	Permissions Names `json:"permissions"`
}

// RoleRef is a role embedded in a user.
type RoleRef struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
}

// User is a dashboard account.
type User struct {
	ID            int64      `json:"id"`
	Nombre        string     `json:"nombre"`
	Username      string     `json:"username,omitempty"`
	Email         string     `json:"email"`
	Activo        bool       `json:"activo"`
	Roles         []RoleRef  `json:"roles"`
	FechaCreacion *time.Time `json:"fecha_creacion,omitempty"`
	UltimoAcceso  *time.Time `json:"ultimo_acceso,omitempty"`
}

// UserInput creates or updates a user. Password is only sent when set.
type UserInput struct {
	Nombre   string  `json:"nombre" form:"nombre" binding:"required,max=120"`
	Username string  `json:"username,omitempty" form:"username" binding:"omitempty,alphanum,max=60"`
	Email    string  `json:"email" form:"email" binding:"required,email"`
	Password string  `json:"password,omitempty" form:"password" binding:"omitempty,min=8"`
	RoleIDs  []int64 `json:"roles" form:"roles"`
	Activo   bool    `json:"activo" form:"activo"`
}

// PermissionRef is a permission as embedded in a role or listed by /permisos.
type PermissionRef struct {
	ID          int64  `json:"id"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
	Modulo      string `json:"modulo"`
	Accion      string `json:"accion"`
}

// Identifier returns the "<modulo>.<accion>" form of the permission.
func (p PermissionRef) Identifier() string {
	if p.Modulo != "" && p.Accion != "" {
		return p.Modulo + "." + p.Accion
	}
	return p.Nombre
}

// Role is a named permission bundle.
type Role struct {
	ID            int64           `json:"id"`
	Nombre        string          `json:"nombre"`
	Descripcion   string          `json:"descripcion"`
	EsPredefinido bool            `json:"es_predefinido"`
	Activo        bool            `json:"activo"`
	Permisos      []PermissionRef `json:"permisos"`
}

// PermissionIdentifiers returns the role's permissions as "<modulo>.<accion>" strings.
func (r Role) PermissionIdentifiers() []string {
	out := make([]string, 0, len(r.Permisos))
	for _, p := range r.Permisos {
		out = append(out, p.Identifier())
	}
	return out
}

// RoleInput creates or updates a role.
type RoleInput struct {
	Nombre      string `json:"nombre" form:"nombre" binding:"required,min=3,max=60"`
	Descripcion string `json:"descripcion" form:"descripcion" binding:"max=255"`
}

// AuditEntry is one append-only audit record.
type AuditEntry struct {
	ID            int64     `json:"id"`
	Fecha         time.Time `json:"fecha"`
	UsuarioID     FlexID    `json:"usuario_id"`
	UsuarioNombre string    `json:"usuario_nombre"`
	Accion        string    `json:"accion"`
	Modulo        string    `json:"modulo"`
	Detalles      string    `json:"detalles"`
	IP            string    `json:"ip"`
	Resultado     string    `json:"resultado"`
}

// AuditRecord is the body of POST /auditoria.
type AuditRecord struct {
	Accion    string `json:"accion"`
	Modulo    string `json:"modulo"`
	Detalles  string `json:"detalles,omitempty"`
	IP        string `json:"ip,omitempty"`
	Resultado string `json:"resultado"`
}

// Parameter data types.
const (
	TipoTexto    = "texto"
	TipoNumero   = "numero"
	TipoBooleano = "booleano"
)

// Parameter is a system configuration parameter.
type Parameter struct {
	ID                int64      `json:"id"`
	Nombre            string     `json:"nombre"`
	Valor             string     `json:"valor"`
	TipoDato          string     `json:"tipo_dato"`
	Descripcion       string     `json:"descripcion"`
	Categoria         string     `json:"categoria"`
	RequiereReinicio  bool       `json:"requiere_reinicio"`
	ModificadoPor     string     `json:"modificado_por"`
	FechaModificacion *time.Time `json:"fecha_modificacion,omitempty"`
}

// Customer is a client of the tourism business.
type Customer struct {
	ID        int64  `json:"id"`
	Nombre    string `json:"nombre"`
	Documento string `json:"documento"`
	Email     string `json:"email"`
	Telefono  string `json:"telefono"`
	Activo    bool   `json:"activo"`
}

// Product is a sellable tourism package.
type Product struct {
	ID          int64   `json:"id"`
	Codigo      string  `json:"codigo"`
	Nombre      string  `json:"nombre"`
	Descripcion string  `json:"descripcion"`
	Destino     string  `json:"destino"`
	Precio      float64 `json:"precio"`
	Cupo        int     `json:"cupo"`
	Activo      bool    `json:"activo"`
}

// Sale is a recorded sale of a product to a client.
type Sale struct {
	ID             int64     `json:"id"`
	Codigo         string    `json:"codigo"`
	Fecha          time.Time `json:"fecha"`
	ClienteID      int64     `json:"cliente_id"`
	ClienteNombre  string    `json:"cliente_nombre"`
	ProductoID     int64     `json:"producto_id"`
	ProductoNombre string    `json:"producto_nombre"`
	Cantidad       int       `json:"cantidad"`
	Total          float64   `json:"total"`
	Estado         string    `json:"estado"`
}
