package session

import (
	"net/http"
	"strings"
	"time"
)

// SetCookie sets the session cookie. maxAge should match the session's idle
// lifetime; the server slides the expiry forward on every request, so the
// browser copy is refreshed by the same middleware.
func SetCookie(w http.ResponseWriter, token string, maxAge time.Duration, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     CookiePath,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie tells the browser to delete the session cookie.
func ClearCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest returns the session token from the cookie or, failing
// that, a bearer Authorization header. fromCookie reports which one.
func TokenFromRequest(r *http.Request) (token string, fromCookie bool) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	h := r.Header.Get(HeaderName)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:]), false
	}
	return "", false
}
