package session

import (
	"github.com/gin-gonic/gin"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
)

const holderKey = "session.holder"

// Attach binds h to the request.
func Attach(c *gin.Context, h *Holder) {
	c.Set(holderKey, h)
}

// HolderFrom returns the holder bound to the request, if any.
func HolderFrom(c *gin.Context) (*Holder, bool) {
	v, ok := c.Get(holderKey)
	if !ok {
		return nil, false
	}
	h, ok := v.(*Holder)
	return h, ok && h != nil
}

// Current returns a snapshot of the request's authenticated session, or nil.
func Current(c *gin.Context) *auth.Session {
	h, ok := HolderFrom(c)
	if !ok {
		return nil
	}
	s := h.Session()
	if !s.Authenticated() {
		return nil
	}
	return s
}

const expiredKey = "session.expired"

// MarkExpired records that the request carried a session that no longer exists.
func MarkExpired(c *gin.Context) {
	c.Set(expiredKey, true)
}

// WasExpired reports whether the request's session expired, either before the
// request or through a forced logout while serving it.
func WasExpired(c *gin.Context) bool {
	if h, ok := HolderFrom(c); ok && h.Expired() {
		return true
	}
	return c.GetBool(expiredKey)
}
