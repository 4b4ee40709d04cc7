// recovery.go provides Gin middleware that turns a handler panic into an error page
// instead of a dropped connection.
package middleware

import (
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
)

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="es">
<head><meta charset="utf-8"><title>Error - Sistema de Ventas</title></head>
<body>
<main class="error-page">
<h1>Ocurrió un error inesperado</h1>
<p>No pudimos completar la solicitud. Intenta nuevamente en unos minutos.</p>
{{if .RequestID}}<p class="request-id">Referencia: <code>{{.RequestID}}</code></p>{{end}}
{{if .Detail}}<details>
<summary>Detalles técnicos</summary>
<pre>{{.Detail}}</pre>
<pre>{{.Stack}}</pre>
</details>{{end}}
<p><a href="/">Volver al inicio</a></p>
</main>
</body>
</html>
`))

type errorPageData struct {
	RequestID string
	Detail    string
	Stack     string
}

// RecoveryMiddleware recovers from panics in later handlers, logs the panic with its stack
// and renders a 500 page. Outside production the panic value and stack are included in a
// collapsible <details> block; in production they only reach the log. Requests under /api
// get a JSON body instead.
//
// Register it first so that every other middleware runs inside it.
func RecoveryMiddleware(production bool) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		stack := string(debug.Stack())
		requestID := GetRequestID(c)
		slog.Error("panic recovered",
			"error", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", requestID,
			"stack", stack,
		)

		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			body := gin.H{"error": "internal server error", "request_id": requestID}
			if !production {
				body["detail"] = fmt.Sprint(recovered)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, body)
			return
		}

		data := errorPageData{RequestID: requestID}
		if !production {
			data.Detail = fmt.Sprint(recovered)
			data.Stack = stack
		}
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusInternalServerError)
		if err := errorPage.Execute(c.Writer, data); err != nil {
			slog.Error("failed to render error page", "error", err)
		}
		c.Abort()
	})
}
