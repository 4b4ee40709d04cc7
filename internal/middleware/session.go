// session.go provides Gin middleware that resolves the signed session cookie into a
// server-side session and binds a session.Holder to the request.
package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/session"
)

// SessionMiddleware loads the session named by the request cookie and attaches a Holder
// for it, so that the route guard, handlers and the backend client all see the same
// snapshot for the lifetime of the request.
//
// Behaviour:
//   - No cookie: the request continues anonymously.
//   - Cookie that fails verification, or names a session that no longer exists: the cookie
//     is cleared and the request is marked expired so the login redirect can say so.
//   - Session whose upstream token has already expired: one refresh is attempted before
//     the handler runs; if it fails the session is force-logged-out.
//
// After the handler returns, pending changes on the holder (queued toasts, a refreshed
// token) are persisted.
func SessionMiddleware(mgr *session.Manager, cookie *session.Cookie, refresher session.Refresher) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		id, err := cookie.Read(c)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				cookie.Clear(c)
				session.MarkExpired(c)
			}
			c.Next()
			return
		}

		s, err := mgr.Get(ctx, id)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				slog.Warn("failed to load session", "session_id", id, "error", err)
			}
			cookie.Clear(c)
			session.MarkExpired(c)
			c.Next()
			return
		}

		h := session.NewHolder(mgr, refresher, s)
		if s.Expired(time.Now()) {
			if err := h.Refresh(ctx, s.Token); err != nil {
				slog.Info("expired session could not be refreshed", "session_id", id, "error", err)
				h.ForceLogout(ctx)
				cookie.Clear(c)
			}
		}
		session.Attach(c, h)

		c.Next()

		if err := h.Flush(ctx); err != nil {
			slog.Warn("failed to persist session changes", "session_id", id, "error", err)
		}
	}
}
