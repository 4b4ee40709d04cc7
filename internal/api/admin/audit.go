// audit.go implements the audit log viewer and its CSV export.
package admin

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	adminsvc "github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/admin"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/pagination"
)

// maxExportPages bounds a CSV export to maxExportPages * pagination.MaxLimit rows.
const maxExportPages = 50

// AuditHandlers serves the audit log viewer
type AuditHandlers struct {
	base
}

// NewAuditHandlers creates a new AuditHandlers instance
func NewAuditHandlers(d Deps) *AuditHandlers {
	return &AuditHandlers{base: newBase(d)}
}

type auditView struct {
	Entries []backend.AuditEntry
	Modules []auth.Module
}

// ListAuditLogsHandler lists audit entries matching the filter form. Invalid
// filter fields are reported inline and left out of the query.
// GET /administracion/auditoria?fecha_desde=2024-01-01&modulo=roles&resultado=error
func (h *AuditHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		f, errs := adminsvc.ParseAuditFilter(c.Request.URL.Query())
		list, err := h.api(c).Audit.List(c.Request.Context(), f.Params())
		if err != nil {
			h.fail(c, err)
			return
		}
		pg := f.Page.WithTotal(list.Total)

		p := h.view(c, "Auditoría", "auditoria")
		p.Query = f.Values()
		p.Errors = errs
		p.Pagination = &pg
		p.Data = auditView{Entries: list.Data, Modules: auth.AllModules()}
		c.HTML(http.StatusOK, "audit", p)
	}
}

// ExportAuditLogsHandler streams every entry matching the filter as CSV.
// GET /administracion/auditoria/exportar?modulo=roles
func (h *AuditHandlers) ExportAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		f, _ := adminsvc.ParseAuditFilter(c.Request.URL.Query())
		f.Page = pagination.New(1, pagination.MaxLimit, 0)
		api := h.api(c)

		var entries []backend.AuditEntry
		for page := 1; page <= maxExportPages; page++ {
			f.Page.Page = page
			list, err := api.Audit.List(c.Request.Context(), f.Params())
			if err != nil {
				h.fail(c, err)
				return
			}
			entries = append(entries, list.Data...)
			if len(list.Data) < f.Page.Limit || len(entries) >= list.Total {
				break
			}
		}

		filename := "auditoria-" + time.Now().Format("20060102-150405") + ".csv"
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)

		w := csv.NewWriter(c.Writer)
		_ = w.Write([]string{"id", "fecha", "usuario_id", "usuario", "accion", "modulo", "detalles", "ip", "resultado"})
		for _, e := range entries {
			_ = w.Write([]string{
				strconv.FormatInt(e.ID, 10),
				e.Fecha.Format(time.RFC3339),
				string(e.UsuarioID),
				e.UsuarioNombre,
				e.Accion,
				e.Modulo,
				e.Detalles,
				e.IP,
				e.Resultado,
			})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			slog.Warn("audit export interrupted", "error", err)
		}
	}
}
