package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// uuidPattern matches UUIDs anywhere in a path segment. PIX billing ids
// ("vip_<uuid>_<unix>") contain one too, so the whole segment is replaced.
var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

const (
	filesRoute     = "/files/*"
	unmatchedRoute = "unmatched"
)

// responseWriter wraps http.ResponseWriter to capture status code and bytes written
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// routeLabel turns a request path into a bounded label: id segments become
// {id}, everything under /files/ collapses to one label and 404s share a
// single bucket so scanners cannot grow the series count.
func routeLabel(path string, status int) string {
	if status == http.StatusNotFound {
		return unmatchedRoute
	}
	if strings.HasPrefix(path, "/files/") {
		return filesRoute
	}
	return normalizePath(path)
}

func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if uuidPattern.MatchString(s) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

// Middleware records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		rw := newResponseWriter(w)

		next.ServeHTTP(rw, r)

		route := routeLabel(r.URL.Path, rw.statusCode)
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		HTTPResponseBytes.WithLabelValues(route).Observe(float64(rw.bytesWritten))
	})
}
