// security.go sets protective response headers. Pages and the /api JSON endpoints
// get different policies, and anything rendered from session data is marked no-store.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersConfig holds configuration for security headers
type SecurityHeadersConfig struct {
	// EnableHSTS enables HTTP Strict Transport Security
	EnableHSTS bool
	// HSTSMaxAge is the max-age value for HSTS in seconds
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	// FrameOptionsValue is the X-Frame-Options value; empty disables the header
	FrameOptionsValue     string
	ContentSecurityPolicy string
	ReferrerPolicy        string
	PermissionsPolicy     string
	// NoStore sends Cache-Control: no-store so shared caches and the back button
	// never replay another user's page.
	NoStore bool
}

// DashboardSecurityHeadersConfig returns the headers for the HTML dashboard. HSTS is only
// sent when the dashboard is served over TLS, otherwise browsers would pin a plain-HTTP
// development host.
func DashboardSecurityHeadersConfig(tls bool) SecurityHeadersConfig {
	return SecurityHeadersConfig{
		EnableHSTS:            tls,
		HSTSMaxAge:            31536000, // 1 year
		HSTSIncludeSubdomains: true,
		FrameOptionsValue:     "DENY",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'; connect-src 'self'; form-action 'self'; frame-ancestors 'none'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=()",
		NoStore:               true,
	}
}

// APISecurityHeadersConfig returns security headers suitable for the /api JSON endpoints
func APISecurityHeadersConfig(tls bool) SecurityHeadersConfig {
	return SecurityHeadersConfig{
		EnableHSTS:            tls,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		FrameOptionsValue:     "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
		NoStore:               true,
	}
}

// headers renders cfg once into the header set written on every response.
func (cfg SecurityHeadersConfig) headers() http.Header {
	h := http.Header{}
	if cfg.EnableHSTS {
		v := "max-age=" + strconv.Itoa(cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubdomains {
			v += "; includeSubDomains"
		}
		h.Set("Strict-Transport-Security", v)
	}
	set := func(k, v string) {
		if v != "" {
			h.Set(k, v)
		}
	}
	set("X-Frame-Options", cfg.FrameOptionsValue)
	set("Content-Security-Policy", cfg.ContentSecurityPolicy)
	set("Referrer-Policy", cfg.ReferrerPolicy)
	set("Permissions-Policy", cfg.PermissionsPolicy)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Permitted-Cross-Domain-Policies", "none")
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("Cross-Origin-Resource-Policy", "same-origin")
	return h
}

// SecurityHeadersMiddleware applies api under /api and pages everywhere else.
// Static assets keep their cache headers; NoStore never applies to them.
func SecurityHeadersMiddleware(pages, api SecurityHeadersConfig) gin.HandlerFunc {
	pageHeaders, apiHeaders := pages.headers(), api.headers()
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		cfg, hdr := pages, pageHeaders
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			cfg, hdr = api, apiHeaders
		}

		out := c.Writer.Header()
		for k, v := range hdr {
			out[k] = append([]string(nil), v...)
		}
		if cfg.NoStore && !strings.HasPrefix(path, "/static/") {
			out.Set("Cache-Control", "no-store")
		}

		c.Next()
	}
}
