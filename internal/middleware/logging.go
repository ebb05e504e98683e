package middleware

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/mundo/internal/session"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// An inbound request id is kept only when it looks like one.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// Query parameters whose values never reach the logs. AbacatePay sends its
// webhook secret as "webhookSecret".
var sensitiveParams = map[string]struct{}{
	"token":         {},
	"code":          {},
	"key":           {},
	"secret":        {},
	"password":      {},
	"api_key":       {},
	"apikey":        {},
	"access_token":  {},
	"refresh_token": {},
	"webhooksecret": {},
}

// Local file downloads are already counted by the download endpoint.
var quietPrefixes = []string{"/health", "/metrics", "/files/"}

// RequestLoggingMiddleware writes one log line per request.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
}

func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{logger: logger}
}

// Handler tags the request with an id, echoes it in the response and logs
// the outcome. 5xx responses log at error level.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !requestIDPattern.MatchString(requestID) {
			requestID = uuid.NewString()
			r.Header.Set(RequestIDHeader, requestID)
		}
		w.Header().Set(RequestIDHeader, requestID)

		if isQuietPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", sanitizePath(r.URL.Path, r.URL.RawQuery),
			"status", rec.status,
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", getClientIP(r),
			"auth", authKind(r),
			"user_agent", r.UserAgent(),
		}

		if rec.status >= 500 {
			m.logger.Error("request", attrs...)
			return
		}
		m.logger.Info("request", attrs...)
	})
}

func isQuietPath(path string) bool {
	for _, p := range quietPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// authKind names how the caller presented a session, without the token.
func authKind(r *http.Request) string {
	token, fromCookie := session.TokenFromRequest(r)
	switch {
	case token == "":
		return "anonymous"
	case fromCookie:
		return "cookie"
	default:
		return "bearer"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// sanitizePath rebuilds path?query with sensitive values redacted. Bare keys
// without "=" are dropped.
func sanitizePath(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	var kept []string
	for _, part := range strings.Split(rawQuery, "&") {
		key, _, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if _, secret := sensitiveParams[strings.ToLower(key)]; secret {
			part = key + "=[REDACTED]"
		}
		kept = append(kept, part)
	}

	if len(kept) == 0 {
		return path
	}
	return path + "?" + strings.Join(kept, "&")
}
