package middleware

import (
	"fmt"
	"net/http"
	"strings"
)

// SecureHeaders provides configurable security headers
type SecureHeaders struct {
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	ContentSecurityPolicy string
	XFrameOptions         string
	XContentTypeOptions   string
	ReferrerPolicy        string
	PermissionsPolicy     string

	// DevMode relaxes the CSP
	DevMode bool
}

// DefaultSecureHeaders returns secure headers with default settings
func DefaultSecureHeaders() *SecureHeaders {
	return &SecureHeaders{
		HSTSMaxAge:            63072000, // 2 years
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}
}

// Handler returns the middleware handler
func (sh *SecureHeaders) Handler(next http.Handler) http.Handler {
	csp := sh.ContentSecurityPolicy
	if csp == "" {
		csp = sh.defaultCSP()
	}
	permissions := sh.PermissionsPolicy
	if permissions == "" {
		permissions = defaultPermissionsPolicy()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip security headers for WebSocket upgrades
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		if sh.HSTSMaxAge > 0 && r.TLS != nil {
			hsts := fmt.Sprintf("max-age=%d", sh.HSTSMaxAge)
			if sh.HSTSIncludeSubdomains {
				hsts += "; includeSubDomains"
			}
			h.Set("Strict-Transport-Security", hsts)
		}
		h.Set("Content-Security-Policy", csp)
		h.Set("Permissions-Policy", permissions)
		if sh.XFrameOptions != "" {
			h.Set("X-Frame-Options", sh.XFrameOptions)
		}
		if sh.XContentTypeOptions != "" {
			h.Set("X-Content-Type-Options", sh.XContentTypeOptions)
		}
		if sh.ReferrerPolicy != "" {
			h.Set("Referrer-Policy", sh.ReferrerPolicy)
		}

		next.ServeHTTP(w, r)
	})
}

// The API serves JSON and file downloads only.
func (sh *SecureHeaders) defaultCSP() string {
	if sh.DevMode {
		return "default-src 'self'; connect-src *"
	}
	return strings.Join([]string{
		"default-src 'none'",
		"connect-src 'self' ws: wss:",
		"frame-ancestors 'none'",
		"base-uri 'none'",
		"form-action 'none'",
	}, "; ")
}

func defaultPermissionsPolicy() string {
	return strings.Join([]string{
		"accelerometer=()",
		"camera=()",
		"geolocation=()",
		"microphone=()",
		"payment=()",
		"usb=()",
	}, ", ")
}
