package admin

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/pagination"
)

const dateLayout = "2006-01-02"

// Audit results accepted by the filter.
const (
	ResultadoExito = "success"
	ResultadoError = "error"
)

// AuditFilter is the audit log viewer's filter form.
type AuditFilter struct {
	From    time.Time
	To      time.Time
	Module  string
	Action  string
	Result  string
	Search  string
	Page    pagination.Page
	rawFrom string
	rawTo   string
}

// ParseAuditFilter reads the filter from the query string. Errors are keyed by
// form field for inline display; the filter is still usable without the
// offending fields.
func ParseAuditFilter(q url.Values) (AuditFilter, map[string]string) {
	f := AuditFilter{
		Module:  strings.TrimSpace(q.Get("modulo")),
		Action:  strings.TrimSpace(q.Get("accion")),
		Result:  strings.TrimSpace(q.Get("resultado")),
		Search:  strings.TrimSpace(q.Get("busqueda")),
		Page:    pagination.FromQuery(q),
		rawFrom: strings.TrimSpace(q.Get("fecha_desde")),
		rawTo:   strings.TrimSpace(q.Get("fecha_hasta")),
	}
	errs := make(map[string]string)

	if f.rawFrom != "" {
		t, err := time.Parse(dateLayout, f.rawFrom)
		if err != nil {
			errs["fecha_desde"] = "Fecha inválida (AAAA-MM-DD)."
		} else {
			f.From = t
		}
	}
	if f.rawTo != "" {
		t, err := time.Parse(dateLayout, f.rawTo)
		if err != nil {
			errs["fecha_hasta"] = "Fecha inválida (AAAA-MM-DD)."
		} else {
			f.To = t
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		errs["fecha_hasta"] = "La fecha final debe ser posterior a la inicial."
		f.To = time.Time{}
	}

	if f.Module != "" && !knownModule(f.Module) && f.Module != "auth" {
		errs["modulo"] = fmt.Sprintf("Módulo desconocido: %s.", f.Module)
		f.Module = ""
	}
	switch f.Result {
	case "", ResultadoExito, ResultadoError:
	default:
		errs["resultado"] = "Resultado inválido."
		f.Result = ""
	}

	if len(errs) == 0 {
		return f, nil
	}
	return f, errs
}

func knownModule(m string) bool {
	for _, mod := range auth.AllModules() {
		if string(mod) == m {
			return true
		}
	}
	return false
}

// Params converts the filter into list parameters for GET /auditoria. The
// "to" date is inclusive.
func (f AuditFilter) Params() backend.ListParams {
	filters := map[string]string{
		"modulo":    f.Module,
		"accion":    f.Action,
		"resultado": f.Result,
	}
	if !f.From.IsZero() {
		filters["fecha_desde"] = f.From.Format(dateLayout)
	}
	if !f.To.IsZero() {
		filters["fecha_hasta"] = f.To.Format(dateLayout)
	}
	return backend.ListParams{
		Page:    f.Page.Page,
		Limit:   f.Page.Limit,
		Search:  f.Search,
		Filters: filters,
	}
}

// Values returns the filter as a query string, for page links.
func (f AuditFilter) Values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("fecha_desde", f.rawFrom)
	set("fecha_hasta", f.rawTo)
	set("modulo", f.Module)
	set("accion", f.Action)
	set("resultado", f.Result)
	set("busqueda", f.Search)
	return v
}
