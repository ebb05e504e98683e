// Package session provides shared session constants used by both
// the handler and middleware packages.
package session

const (
	// CookieName is the name of the cookie that stores the session token.
	CookieName = "mundo_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// HeaderName carries the session token for API clients that do not
	// keep cookies. The value is "Bearer <token>".
	HeaderName = "Authorization"
)
