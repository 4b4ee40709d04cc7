package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Resource is the uniform CRUD surface of a REST collection.
type Resource[T any] struct {
	c    *Client
	path string
}

// NewResource binds the collection at path.
func NewResource[T any](c *Client, path string) *Resource[T] {
	return &Resource[T]{c: c, path: path}
}

func (r *Resource[T]) item(id int64) string {
	return r.path + "/" + strconv.FormatInt(id, 10)
}

// List returns one page of the collection.
func (r *Resource[T]) List(ctx context.Context, p ListParams) (*List[T], error) {
	var out List[T]
	if err := r.c.Get(ctx, r.path, p.Values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get returns one item.
func (r *Resource[T]) Get(ctx context.Context, id int64) (*T, error) {
	var out T
	if err := r.c.Get(ctx, r.item(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create posts body and returns the created item.
func (r *Resource[T]) Create(ctx context.Context, body any) (*T, error) {
	var out T
	if err := r.c.Post(ctx, r.path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces item id with body.
func (r *Resource[T]) Update(ctx context.Context, id int64, body any) (*T, error) {
	var out T
	if err := r.c.Put(ctx, r.item(id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes item id.
func (r *Resource[T]) Delete(ctx context.Context, id int64) error {
	return r.c.Delete(ctx, r.item(id))
}

// SetActive toggles the soft-delete flag of item id through PATCH <path>/:id/estado.
func (r *Resource[T]) SetActive(ctx context.Context, id int64, active bool) error {
	return r.c.Patch(ctx, r.item(id)+"/estado", map[string]bool{"activo": active}, nil)
}

// UsersAPI is /usuarios.
type UsersAPI struct{ *Resource[User] }

// RolesAPI is /roles.
type RolesAPI struct{ *Resource[Role] }

// SetPermissions replaces the full permission set of role id in one call.
func (r RolesAPI) SetPermissions(ctx context.Context, id int64, permissions []string) error {
	if permissions == nil {
		permissions = []string{}
	}
	return r.c.Put(ctx, r.item(id), map[string][]string{"permisos": permissions}, nil)
}

// PermissionsAPI is /permisos.
type PermissionsAPI struct{ c *Client }

// All returns the server permission catalog.
func (p PermissionsAPI) All(ctx context.Context) ([]PermissionRef, error) {
	var out List[PermissionRef]
	if err := p.c.Get(ctx, "/permisos", url.Values{"limite": {"1000"}}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// AuditAPI is /auditoria.
type AuditAPI struct{ c *Client }

// List returns one filtered page of the audit log.
func (a AuditAPI) List(ctx context.Context, p ListParams) (*List[AuditEntry], error) {
	var out List[AuditEntry]
	if err := a.c.Get(ctx, "/auditoria", p.Values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Record appends an entry.
func (a AuditAPI) Record(ctx context.Context, rec AuditRecord) error {
	return a.c.Post(ctx, "/auditoria", rec, nil)
}

// RecordAs appends an entry authenticated with an explicit bearer token. It is
// used outside a request, where no session holder is available.
func (a AuditAPI) RecordAs(ctx context.Context, accessToken string, rec AuditRecord) error {
	return a.c.do(ctx, request{method: http.MethodPost, path: "/auditoria", body: rec, bearer: accessToken})
}

// ConfigAPI is /configuracion.
type ConfigAPI struct{ c *Client }

// All returns every system parameter.
func (a ConfigAPI) All(ctx context.Context) ([]Parameter, error) {
	var out List[Parameter]
	if err := a.c.Get(ctx, "/configuracion", url.Values{"limite": {"1000"}}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Update writes the value of one parameter.
func (a ConfigAPI) Update(ctx context.Context, id int64, value string) (*Parameter, error) {
	var out Parameter
	if err := a.c.Put(ctx, fmt.Sprintf("/configuracion/%d", id), map[string]string{"valor": value}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// API groups every resource of the backend for one caller.
type API struct {
	Users       UsersAPI
	Roles       RolesAPI
	Permissions PermissionsAPI
	Audit       AuditAPI
	Config      ConfigAPI
	Clients     *Resource[Customer]
	Products    *Resource[Product]
	Sales       *Resource[Sale]
}

// NewAPI binds every resource to c.
func NewAPI(c *Client) *API {
	return &API{
		Users:       UsersAPI{NewResource[User](c, "/usuarios")},
		Roles:       RolesAPI{NewResource[Role](c, "/roles")},
		Permissions: PermissionsAPI{c: c},
		Audit:       AuditAPI{c: c},
		Config:      ConfigAPI{c: c},
		Clients:     NewResource[Customer](c, "/clientes"),
		Products:    NewResource[Product](c, "/productos"),
		Sales:       NewResource[Sale](c, "/ventas"),
	}
}
