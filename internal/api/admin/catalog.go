// catalog.go implements the clients, products and sales lists, which share one
// generic table screen.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/pagination"
)

// Row is one line of a catalog table.
type Row struct {
	ID     int64
	Cells  []string
	Active bool
	Status string
}

// tableView is the page data of resource_list.
type tableView struct {
	Path             string
	Columns          []string
	Rows             []Row
	Toggle           bool
	EditPermission   string
	DeletePermission string
}

type lister func(ctx context.Context, api *backend.API, p backend.ListParams) (total int, rows []Row, err error)

// Screen describes one catalog list.
type Screen struct {
	Key     string
	Title   string
	Path    string
	View    auth.Permission
	Edit    auth.Permission
	Delete  auth.Permission
	Columns []string
	// Toggle enables the activate/deactivate action.
	Toggle bool

	list      lister
	setActive func(ctx context.Context, api *backend.API, id int64, active bool) error
	remove    func(ctx context.Context, api *backend.API, id int64) error
}

func rowsOf[T any](res func(*backend.API) *backend.Resource[T], row func(T) Row) lister {
	return func(ctx context.Context, api *backend.API, p backend.ListParams) (int, []Row, error) {
		list, err := res(api).List(ctx, p)
		if err != nil {
			return 0, nil, err
		}
		rows := make([]Row, 0, len(list.Data))
		for _, item := range list.Data {
			rows = append(rows, row(item))
		}
		return list.Total, rows, nil
	}
}

func activeStatus(active bool) string {
	if active {
		return "Activo"
	}
	return "Inactivo"
}

func money(v float64) string { return fmt.Sprintf("%.2f", v) }

func clients(api *backend.API) *backend.Resource[backend.Customer] { return api.Clients }
func products(api *backend.API) *backend.Resource[backend.Product] { return api.Products }
func sales(api *backend.API) *backend.Resource[backend.Sale]       { return api.Sales }

// Screens returns the clients, products and sales lists.
func Screens() []Screen {
	return []Screen{
		{
			Key: "clientes", Title: "Clientes", Path: "/clientes",
			View: auth.PermClientesVer, Edit: auth.PermClientesEditar, Delete: auth.PermClientesEliminar,
			Columns: []string{"Nombre", "Documento", "Correo", "Teléfono"},
			Toggle:  true,
			list: rowsOf(clients, func(v backend.Customer) Row {
				return Row{ID: v.ID, Cells: []string{v.Nombre, v.Documento, v.Email, v.Telefono}, Active: v.Activo, Status: activeStatus(v.Activo)}
			}),
			setActive: func(ctx context.Context, api *backend.API, id int64, on bool) error { return api.Clients.SetActive(ctx, id, on) },
			remove:    func(ctx context.Context, api *backend.API, id int64) error { return api.Clients.Delete(ctx, id) },
		},
		{
			Key: "productos", Title: "Productos", Path: "/productos",
			View: auth.PermProductosVer, Edit: auth.PermProductosEditar, Delete: auth.PermProductosEliminar,
			Columns: []string{"Código", "Nombre", "Destino", "Precio", "Cupo"},
			Toggle:  true,
			list: rowsOf(products, func(v backend.Product) Row {
				return Row{ID: v.ID, Cells: []string{v.Codigo, v.Nombre, v.Destino, money(v.Precio), strconv.Itoa(v.Cupo)}, Active: v.Activo, Status: activeStatus(v.Activo)}
			}),
			setActive: func(ctx context.Context, api *backend.API, id int64, on bool) error { return api.Products.SetActive(ctx, id, on) },
			remove:    func(ctx context.Context, api *backend.API, id int64) error { return api.Products.Delete(ctx, id) },
		},
		{
			Key: "ventas", Title: "Ventas", Path: "/ventas",
			View: auth.PermVentasVer, Edit: auth.PermVentasEditar, Delete: auth.PermVentasEliminar,
			Columns: []string{"Código", "Fecha", "Cliente", "Producto", "Cantidad", "Total"},
			list: rowsOf(sales, func(v backend.Sale) Row {
				estado := strings.ToLower(v.Estado)
				return Row{
					ID:     v.ID,
					Cells:  []string{v.Codigo, v.Fecha.Local().Format("02/01/2006"), v.ClienteNombre, v.ProductoNombre, strconv.Itoa(v.Cantidad), money(v.Total)},
					Active: estado != "anulada" && estado != "cancelada",
					Status: v.Estado,
				}
			}),
			remove: func(ctx context.Context, api *backend.API, id int64) error { return api.Sales.Delete(ctx, id) },
		},
	}
}

// CatalogHandlers serves one catalog list
type CatalogHandlers struct {
	base
	screen Screen
}

// NewCatalogHandlers creates a new CatalogHandlers instance for screen
func NewCatalogHandlers(d Deps, screen Screen) *CatalogHandlers {
	return &CatalogHandlers{base: newBase(d), screen: screen}
}

// Screen returns the list served by h.
func (h *CatalogHandlers) Screen() Screen { return h.screen }

// ListHandler renders one page of the list
// GET /clientes?busqueda=&pagina=1
func (h *CatalogHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pg := pagination.FromQuery(c.Request.URL.Query())
		total, rows, err := h.screen.list(c.Request.Context(), h.api(c), backend.ListParams{
			Page:   pg.Page,
			Limit:  pg.Limit,
			Search: strings.TrimSpace(c.Query("busqueda")),
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		pg = pg.WithTotal(total)

		p := h.view(c, h.screen.Title, h.screen.Key)
		p.Pagination = &pg
		p.Data = tableView{
			Path:             h.screen.Path,
			Columns:          h.screen.Columns,
			Rows:             rows,
			Toggle:           h.screen.Toggle && h.screen.setActive != nil,
			EditPermission:   string(h.screen.Edit),
			DeletePermission: string(h.screen.Delete),
		}
		c.HTML(http.StatusOK, "resource_list", p)
	}
}

// SetActiveHandler activates or deactivates one element
// POST /clientes/:id/estado
func (h *CatalogHandlers) SetActiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok || h.screen.setActive == nil {
			h.notFound(c)
			return
		}
		if err := h.screen.setActive(c.Request.Context(), h.api(c), id, wantsActive(c)); err != nil {
			if h.actionFailed(c, err, "") {
				return
			}
		} else {
			flash(c, notify.Success("Estado actualizado."))
		}
		c.Redirect(http.StatusSeeOther, h.screen.Path)
	}
}

// DeleteHandler removes one element
// POST /clientes/:id/eliminar
func (h *CatalogHandlers) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok || h.screen.remove == nil {
			h.notFound(c)
			return
		}
		if err := h.screen.remove(c.Request.Context(), h.api(c), id); err != nil {
			if h.actionFailed(c, err, "") {
				return
			}
		} else {
			flash(c, notify.Success("Registro eliminado."))
		}
		c.Redirect(http.StatusSeeOther, h.screen.Path)
	}
}
