package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/mundo/internal/csrf"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/handler"
	"github.com/DukeRupert/mundo/internal/session"
)

// CSRFMiddleware enforces double-submit tokens on cookie-authenticated
// state-changing requests.
//
// Requests without the session cookie pass through: gateway webhooks and
// bearer-token API clients carry none, and anonymous login or registration
// has no session to abuse.
type CSRFMiddleware struct {
	isSecure bool
	logger   *slog.Logger
}

// NewCSRFMiddleware creates a new CSRF middleware.
func NewCSRFMiddleware(isSecure bool, logger *slog.Logger) *CSRFMiddleware {
	return &CSRFMiddleware{
		isSecure: isSecure,
		logger:   logger,
	}
}

// Handler issues a token cookie on safe requests and checks it on unsafe
// ones.
func (m *CSRFMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			if _, err := csrf.EnsureToken(w, r, m.isSecure); err != nil {
				m.logger.Error("failed to issue csrf token", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		if _, fromCookie := session.TokenFromRequest(r); !fromCookie {
			next.ServeHTTP(w, r)
			return
		}

		if !csrf.ValidateRequest(r) {
			m.logger.Warn("csrf token mismatch",
				"path", r.URL.Path,
				"method", r.Method,
				"ip", getClientIP(r),
			)
			handler.ErrorResponse(w, r, m.logger,
				domain.Forbidden("csrf.validate", "Sessão expirada. Recarregue a página e tente novamente."))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
