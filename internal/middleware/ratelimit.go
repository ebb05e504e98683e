package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/handler"
)

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimiter tracks request counts per key with a fixed window that starts
// at the key's first request.
type RateLimiter struct {
	maxAttempts int
	window      time.Duration
	clock       clock.Clock
	logger      *slog.Logger

	mu      sync.RWMutex
	entries map[string]*rateLimitEntry

	stop     chan struct{}
	stopOnce sync.Once
}

type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a new rate limiter and starts its cleanup loop.
// Call Close to stop the loop.
func NewRateLimiter(maxAttempts int, window time.Duration, c clock.Clock, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		clock:       c,
		logger:      logger,
		entries:     make(map[string]*rateLimitEntry),
		stop:        make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow counts a request from key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	entry, exists := rl.entries[key]

	if !exists || now.Sub(entry.windowStart) > rl.window {
		rl.entries[key] = &rateLimitEntry{count: 1, windowStart: now}
		return true
	}

	if entry.count < rl.maxAttempts {
		entry.count++
		return true
	}

	return false
}

// RecordFailure records a failed attempt without checking the limit.
func (rl *RateLimiter) RecordFailure(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	entry, exists := rl.entries[key]

	if !exists || now.Sub(entry.windowStart) > rl.window {
		rl.entries[key] = &rateLimitEntry{count: 1, windowStart: now}
		return
	}

	entry.count++
}

// Reset clears the rate limit for a key (e.g., after successful login).
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, key)
}

// TimeUntilReset returns how long until the rate limit resets for a key.
func (rl *RateLimiter) TimeUntilReset(key string) time.Duration {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, exists := rl.entries[key]
	if !exists {
		return 0
	}

	elapsed := rl.clock.Now().Sub(entry.windowStart)
	if elapsed >= rl.window {
		return 0
	}

	return rl.window - elapsed
}

// Close stops the cleanup loop. Safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes expired entries.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for key, entry := range rl.entries {
		if now.Sub(entry.windowStart) > rl.window {
			delete(rl.entries, key)
		}
	}
}

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// RateLimitMiddleware wraps a rate limiter for use as HTTP middleware.
type RateLimitMiddleware struct {
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware.
func NewRateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// Limit returns middleware that rate limits requests per client IP.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)

		if !m.limiter.Allow(clientIP) {
			m.logger.Warn("rate limit exceeded",
				"ip", clientIP,
				"path", r.URL.Path,
				"method", r.Method,
			)

			retryAfter := int(m.limiter.TimeUntilReset(clientIP).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			handler.ErrorResponse(w, r, m.logger, domain.RateLimit("ratelimit.limit"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Auth Rate Limiter (combined limiter for auth endpoints)
// =============================================================================

// AuthRateLimiter limits login and registration attempts per client IP.
// It also implements handler.LoginAttempts so failed logins count twice
// and a successful login clears the IP.
type AuthRateLimiter struct {
	loginLimiter    *RateLimiter
	registerLimiter *RateLimiter
	logger          *slog.Logger
}

// NewAuthRateLimiter creates the auth limiters. Registration is fixed at 3
// attempts per hour.
func NewAuthRateLimiter(loginAttempts int, loginWindow time.Duration, c clock.Clock, logger *slog.Logger) *AuthRateLimiter {
	return &AuthRateLimiter{
		loginLimiter:    NewRateLimiter(loginAttempts, loginWindow, c, logger),
		registerLimiter: NewRateLimiter(3, time.Hour, c, logger),
		logger:          logger,
	}
}

// LimitLogin returns middleware for rate limiting login attempts.
func (a *AuthRateLimiter) LimitLogin(next http.Handler) http.Handler {
	return NewRateLimitMiddleware(a.loginLimiter, a.logger).Limit(next)
}

// LimitRegister returns middleware for rate limiting registration attempts.
func (a *AuthRateLimiter) LimitRegister(next http.Handler) http.Handler {
	return NewRateLimitMiddleware(a.registerLimiter, a.logger).Limit(next)
}

// RecordFailedLogin counts a failed login against the request's IP.
func (a *AuthRateLimiter) RecordFailedLogin(r *http.Request) {
	a.loginLimiter.RecordFailure(getClientIP(r))
}

// ResetLogin clears the login limit of the request's IP.
func (a *AuthRateLimiter) ResetLogin(r *http.Request) {
	a.loginLimiter.Reset(getClientIP(r))
}

// Close stops the limiters' cleanup loops.
func (a *AuthRateLimiter) Close() {
	a.loginLimiter.Close()
	a.registerLimiter.Close()
}

var _ handler.LoginAttempts = (*AuthRateLimiter)(nil)

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP the same way the auth handlers
// record it, so limits and failed-login accounting share keys.
func getClientIP(r *http.Request) string {
	return handler.ClientIP(r)
}
