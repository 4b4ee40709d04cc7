// audit.go provides Gin middleware that records write operations on the administration
// screens to the dashboard audit shippers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/audit"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/session"
)

// AdminPrefix is the path prefix of every administration screen.
const AdminPrefix = "/administracion"

// AuditMiddleware records every write submitted to an administration screen once the
// handler has finished. Reads are never recorded. A response status of 400 or above,
// or an error attached to the context by a handler that redirects after a failed
// action, records the entry with an error result.
//
// Entries are shipped in the background by recorder; shipping failures never affect the
// response.
func AuditMiddleware(recorder *audit.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if recorder == nil {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		module, action, ok := auditAction(c.Request.Method, route)
		if !ok {
			return
		}

		status := c.Writer.Status()
		entry := &audit.LogEntry{
			Action:     action,
			Module:     module,
			IPAddress:  c.ClientIP(),
			RequestID:  GetRequestID(c),
			StatusCode: status,
			Result:     audit.ResultSuccess,
			Metadata: map[string]any{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			},
		}
		if status >= http.StatusBadRequest || len(c.Errors) > 0 {
			entry.Result = audit.ResultError
		}
		if last := c.Errors.Last(); last != nil {
			entry.Metadata["error"] = last.Error()
		}
		if id := c.Param("id"); id != "" {
			entry.Metadata["resource_id"] = id
		}
		if s := session.Current(c); s != nil {
			entry.UserID = s.SubjectID
			entry.Email = s.Email
			entry.SessionID = s.ID
			entry.Token = s.Token
		}

		recorder.Record(entry)
	}
}

// auditAction derives the module and action from an administration route template:
//
//	POST /administracion/roles               -> roles, roles.crear
//	POST /administracion/roles/:id           -> roles, roles.editar
//	POST /administracion/roles/:id/permisos  -> roles, roles.permisos
//	DELETE /administracion/usuarios/:id      -> usuarios, usuarios.eliminar
func auditAction(method, route string) (module, action string, ok bool) {
	rest, found := strings.CutPrefix(route, AdminPrefix+"/")
	if !found {
		return "", "", false
	}
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	module = segments[0]
	if module == "" {
		return "", "", false
	}

	last := segments[len(segments)-1]
	switch {
	case method == http.MethodDelete:
		action = "eliminar"
	case len(segments) == 1:
		action = "crear"
	case strings.HasPrefix(last, ":"):
		action = "editar"
	default:
		action = last
	}
	return module, module + "." + action, true
}
