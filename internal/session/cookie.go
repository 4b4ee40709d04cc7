package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
)

// Cookie issues and reads the signed session cookie.
type Cookie struct {
	Name   string
	Secure bool
	signer *auth.CookieSigner
}

// NewCookie returns a codec for the cookie name.
func NewCookie(name string, secure bool, signer *auth.CookieSigner) *Cookie {
	return &Cookie{Name: name, Secure: secure, signer: signer}
}

// Write sets the cookie for s, valid for ttl.
func (ck *Cookie) Write(c *gin.Context, s *auth.Session, ttl time.Duration) error {
	value, err := ck.signer.Sign(s.ID, s.SubjectID, time.Now().Add(ttl))
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ck.Name, value, int(ttl.Seconds()), "/", "", ck.Secure, true)
	return nil
}

// Read returns the session id carried by the request cookie.
func (ck *Cookie) Read(c *gin.Context) (string, error) {
	value, err := c.Cookie(ck.Name)
	if err != nil || value == "" {
		return "", ErrNotFound
	}
	claims, err := ck.signer.Verify(value)
	if err != nil {
		return "", err
	}
	return claims.SessionID, nil
}

// Clear expires the cookie.
func (ck *Cookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ck.Name, "", -1, "/", "", ck.Secure, true)
}
