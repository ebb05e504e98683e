// Package middleware contains HTTP middleware for the portal.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/DukeRupert/mundo/internal/auth"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/handler"
	"github.com/DukeRupert/mundo/internal/service"
	"github.com/DukeRupert/mundo/internal/session"
)

// =============================================================================
// Auth Middleware Configuration
// =============================================================================

// AuthMiddleware provides authentication middleware functionality.
//
// Create one instance and use its methods as middleware.
type AuthMiddleware struct {
	userService         service.UserService
	subscriptionService service.SubscriptionService
	logger              *slog.Logger
	isSecure            bool // Whether to set Secure flag on cookies (true in production)
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
//
// subscriptionService may be nil, in which case lapsed plans are only
// downgraded by the background sweep.
func NewAuthMiddleware(userService service.UserService, subscriptionService service.SubscriptionService, logger *slog.Logger, isSecure bool) *AuthMiddleware {
	return &AuthMiddleware{
		userService:         userService,
		subscriptionService: subscriptionService,
		logger:              logger,
		isSecure:            isSecure,
	}
}

// =============================================================================
// WithUser Middleware
// =============================================================================

// WithUser loads the user from the session cookie or bearer token and
// continues whether or not one was found.
//
// Resolving the session slides its expiry forward. A paid plan whose end
// date has passed is downgraded before the handler runs, so handlers always
// see the effective plan.
//
// Flow:
//
//	Request -> WithUser -> Handler
//	           |
//	           +-> Read cookie / Authorization header
//	           +-> Validate session (if token exists)
//	           +-> Enforce subscription expiry
//	           +-> Set user in context (if valid)
//	           +-> Call next handler (always)
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := session.TokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.userService.GetBySessionToken(r.Context(), token)
		if err != nil {
			if domain.ErrorCode(err) != domain.EUNAUTHORIZED {
				m.logger.Error("failed to resolve session", "error", err)
			}
			if fromCookie {
				session.ClearCookie(w, m.isSecure)
			}
			next.ServeHTTP(w, r)
			return
		}

		if m.subscriptionService != nil {
			if _, err := m.subscriptionService.EnforceExpiry(r.Context(), user); err != nil {
				// The sweep retries later; serve with the stored plan.
				m.logger.Error("failed to enforce subscription expiry", "error", err, "user_id", user.ID)
			}
		}

		ctx := auth.SetUser(r.Context(), user)
		ctx = auth.SetSessionToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// =============================================================================
// RequireUser Middleware
// =============================================================================

// RequireUser is middleware that requires an authenticated user.
//
// IMPORTANT: This middleware must be used AFTER WithUser in the middleware chain.
//
// Unauthenticated API requests get 401; browsers are redirected to /login
// with a return_to parameter.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			m.unauthenticated(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// RequireAdmin Middleware
// =============================================================================

// RequireAdmin is middleware that requires the admin role. Editors are
// staff for entitlements but cannot manage other users.
//
// IMPORTANT: Use this AFTER WithUser in the middleware chain.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUser(r.Context())
		if user == nil {
			m.unauthenticated(w, r)
			return
		}

		if !user.IsAdmin() {
			m.logger.Warn("admin route denied",
				"user_id", user.ID,
				"role", user.Role,
				"path", r.URL.Path,
			)
			handler.ForbiddenResponse(w, r, m.logger)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		handler.UnauthorizedResponse(w, r, m.logger)
		return
	}

	returnTo := r.URL.Path
	if r.URL.RawQuery != "" {
		returnTo += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, "/login?return_to="+url.QueryEscape(returnTo), http.StatusSeeOther)
}

// =============================================================================
// Request Helpers
// =============================================================================

// isAPIRequest determines if the request expects a JSON response.
//
// Checks:
// 1. Accept header contains application/json
// 2. Content-Type is application/json
// 3. URL path starts with /api/
// 4. X-Requested-With is XMLHttpRequest
func isAPIRequest(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(loggingMw, authMw.WithUser, authMw.RequireUser)
//	mux.Handle("GET /history", stack(historyHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// =============================================================================
// Compile-time checks
// =============================================================================

var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireAdmin
)
