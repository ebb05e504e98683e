package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// stripeCheckoutOrigin hosts the Stripe Checkout pages.
const stripeCheckoutOrigin = "https://checkout.stripe.com"

// Responses under these prefixes are per-user: remaining quota, PIX codes,
// download redirects that consume a unit. Shared caches must never keep them.
var privatePrefixes = []string{
	"/api/",
	"/admin/",
	"/checkout/",
	"/check-download-limit",
	"/history",
	"/posts/",
	"/login",
	"/logout",
}

// SecurityConfig configures SecurityHeadersMiddleware.
type SecurityConfig struct {
	// IsSecure enables HSTS. True in production.
	IsSecure bool
	// ImageOrigins are extra img-src origins, such as the R2 public bucket URL.
	ImageOrigins []string
}

// SecurityHeadersMiddleware adds HTTP security headers to all responses.
type SecurityHeadersMiddleware struct {
	isSecure bool
	csp      string
}

func NewSecurityHeadersMiddleware(cfg SecurityConfig) *SecurityHeadersMiddleware {
	return &SecurityHeadersMiddleware{
		isSecure: cfg.IsSecure,
		csp:      buildCSP(cfg.ImageOrigins),
	}
}

// Handler sets the security headers before calling next.
func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", m.csp)
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
		if m.isSecure {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		if isPrivatePath(r.URL.Path) {
			h.Set("Cache-Control", "no-store")
		}

		next.ServeHTTP(w, r)
	})
}

func isPrivatePath(path string) bool {
	for _, p := range privatePrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// buildCSP constructs the Content-Security-Policy header value.
//
// Form posts to /checkout/stripe answer with a redirect to Stripe Checkout,
// and browsers check form-action against the redirect target, so Stripe is
// listed there. Download links redirect to R2 or external mirrors and are
// navigations, which CSP does not restrict.
func buildCSP(imageOrigins []string) string {
	img := []string{"'self'", "data:"}
	for _, o := range imageOrigins {
		if origin := originOf(o); origin != "" {
			img = append(img, origin)
		}
	}

	directives := []string{
		"default-src 'self'",
		"script-src 'self'",
		"style-src 'self' 'unsafe-inline'",
		"img-src " + strings.Join(img, " "),
		"font-src 'self'",
		"connect-src 'self'",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self' " + stripeCheckoutOrigin,
	}
	return strings.Join(directives, "; ")
}

// originOf reduces a configured URL to scheme://host. Anything that is not
// an absolute http(s) URL is ignored.
func originOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
