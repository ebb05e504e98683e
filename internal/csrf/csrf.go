// Package csrf provides CSRF protection using the double-submit cookie pattern.
//
// A random token is kept in a cookie readable by the portal's pages, which
// echo it back in the csrf_token form field or the X-CSRF-Token header.
// A cross-site attacker can make the browser send the cookie but cannot
// read it, so it cannot supply the matching value.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
)

const (
	// CookieName is the name of the CSRF token cookie.
	CookieName = "mundo_csrf"

	// FormFieldName is the form field carrying the token on form posts.
	FormFieldName = "csrf_token"

	// HeaderName carries the token on fetch/XHR requests.
	HeaderName = "X-CSRF-Token"

	// TokenLength is the number of random bytes for the token (32 bytes = 256 bits).
	TokenLength = 32

	// CookieMaxAge is the lifetime of the CSRF cookie (12 hours).
	CookieMaxAge = 12 * 60 * 60
)

// GenerateToken generates a cryptographically secure random token,
// base64 URL-encoded (43 characters).
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateToken compares the cookie token with the submitted token in
// constant time. Empty tokens never match.
func ValidateToken(cookieToken, submitted string) bool {
	if cookieToken == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(submitted)) == 1
}

// ValidateRequest reports whether the request carries a submitted token
// matching its cookie. The header wins over the form field.
func ValidateRequest(r *http.Request) bool {
	submitted := r.Header.Get(HeaderName)
	if submitted == "" {
		submitted = r.FormValue(FormFieldName)
	}
	return ValidateToken(TokenFromRequest(r), submitted)
}

// TokenFromRequest returns the token cookie, or "" when absent.
func TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetCookie sets the CSRF token cookie. It is not HttpOnly so the portal's
// scripts can copy it into the request header.
func SetCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: false,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// EnsureToken returns the request's token, issuing a new cookie when there
// is none.
func EnsureToken(w http.ResponseWriter, r *http.Request, isSecure bool) (string, error) {
	if token := TokenFromRequest(r); token != "" {
		return token, nil
	}

	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	SetCookie(w, token, isSecure)
	return token, nil
}
