// Package guard decides, per navigation and per rendered fragment, whether the
// current session may proceed. RouteGuard runs once per request before any
// page handler; Component decides what a page renders for guarded fragments.
package guard

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/session"
)

// Well-known dashboard paths.
const (
	LoginPath        = "/login"
	HomePath         = "/"
	UnauthorizedPath = "/unauthorized"

	// CallbackParam carries the original destination through the login form.
	CallbackParam = "callbackUrl"
	// ExpiredParam marks a login redirect caused by an expired session.
	ExpiredParam = "expired"
)

// PathClass is the category of a request path.
type PathClass int

const (
	ClassProtected PathClass = iota
	ClassAuthOnly
	ClassAPI
	ClassStatic
	ClassPublic
)

func (c PathClass) String() string {
	switch c {
	case ClassAuthOnly:
		return "auth_only"
	case ClassAPI:
		return "api"
	case ClassStatic:
		return "static"
	case ClassPublic:
		return "public"
	default:
		return "protected"
	}
}

// Classifier sorts paths by prefix. A prefix matches the path itself and
// anything below it ("/login" matches "/login" and "/login/x", not "/loginx").
type Classifier struct {
	AuthOnly []string
	API      []string
	Static   []string
	Public   []string
}

// DefaultClassifier returns the dashboard's path layout.
func DefaultClassifier() *Classifier {
	return &Classifier{
		AuthOnly: []string{"/login", "/register", "/forgot-password", "/reset-password"},
		API:      []string{"/api"},
		Static:   []string{"/static", "/favicon.ico", "/robots.txt"},
		Public:   []string{"/health", "/ready", "/version", UnauthorizedPath},
	}
}

// Classify returns the class of path. Unmatched paths are protected.
func (cl *Classifier) Classify(path string) PathClass {
	switch {
	case matchAny(path, cl.Static):
		return ClassStatic
	case matchAny(path, cl.API):
		return ClassAPI
	case matchAny(path, cl.AuthOnly):
		return ClassAuthOnly
	case matchAny(path, cl.Public):
		return ClassPublic
	}
	return ClassProtected
}

func matchAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

// Action is what the route guard does with a request.
type Action int

const (
	Allow Action = iota
	RedirectToLogin
	RedirectToHome
)

// Decide is the route guard's state machine: unauthenticated requests for
// protected paths go to the login form, authenticated requests for auth-only
// paths go to the dashboard, everything else passes.
func Decide(class PathClass, authenticated bool) Action {
	switch {
	case class == ClassProtected && !authenticated:
		return RedirectToLogin
	case class == ClassAuthOnly && authenticated:
		return RedirectToHome
	default:
		return Allow
	}
}

// LoginURL returns the login form URL preserving callback.
func LoginURL(callback string, expired bool) string {
	q := url.Values{}
	if cb := SafeCallback(callback); cb != HomePath {
		q.Set(CallbackParam, cb)
	}
	if expired {
		q.Set(ExpiredParam, "1")
	}
	if len(q) == 0 {
		return LoginPath
	}
	return LoginPath + "?" + q.Encode()
}

// SafeCallback returns raw if it is a local absolute path outside the auth-only
// screens, else "/". It keeps the login callback from becoming an open redirect.
func SafeCallback(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.ContainsAny(raw, "\\\r\n") {
		return HomePath
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return HomePath
	}
	if DefaultClassifier().Classify(u.Path) == ClassAuthOnly {
		return HomePath
	}
	return raw
}

// RouteGuard enforces Decide for every request. It must run after the
// session loader.
func RouteGuard(cl *Classifier) gin.HandlerFunc {
	if cl == nil {
		cl = DefaultClassifier()
	}
	return func(c *gin.Context) {
		class := cl.Classify(c.Request.URL.Path)
		s := session.Current(c)

		switch Decide(class, s != nil) {
		case RedirectToLogin:
			c.Redirect(http.StatusFound, LoginURL(c.Request.URL.RequestURI(), session.WasExpired(c)))
			c.Abort()
		case RedirectToHome:
			c.Redirect(http.StatusFound, HomePath)
			c.Abort()
		default:
			c.Next()
		}
	}
}
