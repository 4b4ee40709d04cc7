package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
)

const (
	// RequestIDHeader is the canonical HTTP header used to propagate the request identifier.
	RequestIDHeader = backend.RequestIDHeader

	// RequestIDKey is the gin.Context key under which the request ID string is stored.
	RequestIDKey = "request_id"

	maxRequestIDLen = 128
)

// RequestIDMiddleware assigns every request an identifier and echoes it in the
// X-Request-ID response header.
//
// An inbound X-Request-ID from a reverse proxy is reused when it is short and made
// of printable token characters; anything else is replaced by a fresh UUID so a
// client cannot smuggle newlines or control bytes into the logs.
//
// The id is stored under RequestIDKey and in the request context, where the
// backend client picks it up and forwards it to the REST API. Calls made for one
// page load can therefore be correlated on both sides.
//
//	router.Use(RecoveryMiddleware(production))
//	router.Use(RequestIDMiddleware())
//	router.Use(MetricsMiddleware())
//	router.Use(LoggerMiddleware(cfg))
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Request = c.Request.WithContext(backend.WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		ch := id[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.', ch == ':':
		default:
			return false
		}
	}
	return true
}

// GetRequestID returns the identifier assigned by RequestIDMiddleware, or "" when the
// middleware did not run.
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
