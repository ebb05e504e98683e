package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// MetricsCredentials protect the /metrics endpoint. Username and Password
// enable basic auth for operators; Token enables "Authorization: Bearer" for
// the Prometheus scraper. Either form is accepted when configured.
type MetricsCredentials struct {
	Username string
	Password string
	Token    string
}

// MetricsAuthMiddleware guards the metrics endpoint.
type MetricsAuthMiddleware struct {
	creds  MetricsCredentials
	basic  bool
	bearer bool
	logger *slog.Logger
}

// NewMetricsAuthMiddleware creates a new metrics auth middleware. With no
// credentials configured every request passes.
func NewMetricsAuthMiddleware(creds MetricsCredentials, logger *slog.Logger) *MetricsAuthMiddleware {
	return &MetricsAuthMiddleware{
		creds:  creds,
		basic:  creds.Username != "" || creds.Password != "",
		bearer: creds.Token != "",
		logger: logger,
	}
}

// Enabled reports whether any credential is configured.
func (m *MetricsAuthMiddleware) Enabled() bool {
	return m.basic || m.bearer
}

// Handler returns middleware that requires one of the configured credentials.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() || m.authorized(r) {
			next.ServeHTTP(w, r)
			return
		}

		m.logger.Warn("Metrics scrape rejected", "ip", getClientIP(r))
		if m.basic {
			w.Header().Set("WWW-Authenticate", `Basic realm="mundo-metrics"`)
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func (m *MetricsAuthMiddleware) authorized(r *http.Request) bool {
	if m.bearer {
		h := r.Header.Get("Authorization")
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return secureEqual(strings.TrimSpace(h[7:]), m.creds.Token)
		}
	}

	if m.basic {
		user, pass, ok := r.BasicAuth()
		if !ok {
			return false
		}
		// Both comparisons always run.
		userMatch := secureEqual(user, m.creds.Username)
		passMatch := secureEqual(pass, m.creds.Password)
		return userMatch && passMatch
	}

	return false
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
