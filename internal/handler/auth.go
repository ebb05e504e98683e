// Package handler contains HTTP handlers for the portal.
//
// This file implements registration, login and logout. Each login opens a
// device session; the raw token is returned once, both as the session
// cookie and in the JSON body for API clients using bearer auth.
package handler

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/mundo/internal/auth"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/service"
	"github.com/DukeRupert/mundo/internal/session"
)

// LoginAttempts tracks failed logins per client. The rate limiter
// middleware implements it; a successful login clears the client.
type LoginAttempts interface {
	RecordFailedLogin(r *http.Request)
	ResetLogin(r *http.Request)
}

// minPasswordLength is the shortest accepted password.
const minPasswordLength = 8

// AuthHandler handles authentication-related HTTP requests.
//
// Routes handled:
//   - POST /register -> Register
//   - POST /login    -> Login
//   - POST /logout   -> Logout
//   - POST /logout/all -> LogoutAll
type AuthHandler struct {
	userService     service.UserService
	attempts        LoginAttempts
	sessionDuration time.Duration
	logger          *slog.Logger
	isSecure        bool
}

// NewAuthHandler creates a new AuthHandler. attempts may be nil to disable
// failed-login accounting.
func NewAuthHandler(
	userService service.UserService,
	attempts LoginAttempts,
	sessionDuration time.Duration,
	logger *slog.Logger,
	isSecure bool,
) *AuthHandler {
	return &AuthHandler{
		userService:     userService,
		attempts:        attempts,
		sessionDuration: sessionDuration,
		logger:          logger,
		isSecure:        isSecure,
	}
}

// RegisterRoutes registers the auth routes. limitLogin and limitRegister
// wrap the matching endpoints with per-IP rate limits; /logout/all sits
// behind requireUser.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, limitLogin, limitRegister, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /register", limitRegister(http.HandlerFunc(h.Register)))
	mux.Handle("POST /login", limitLogin(http.HandlerFunc(h.Login)))
	mux.HandleFunc("POST /logout", h.Logout)
	mux.Handle("POST /logout/all", requireUser(http.HandlerFunc(h.LogoutAll)))
}

// credentials is the body of /register and /login, sent as JSON or as a
// form.
type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	ReturnTo string `json:"return_to"`
}

func (h *AuthHandler) readCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var c credentials
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &c); err != nil {
			return c, err
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return c, domain.Invalid("auth.read_credentials", "Formulário inválido")
		}
		c = credentials{
			Name:     r.FormValue("name"),
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
			ReturnTo: r.FormValue("return_to"),
		}
	}

	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return c, nil
}

// =============================================================================
// POST /register
// =============================================================================

// Register creates a free account and logs the new user in on the
// requesting device.
//
// Success: 201 with the user and session token (JSON clients), or a 303
// redirect to return_to or / (forms).
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "auth.register"

	c, err := h.readCredentials(w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	fields := make(map[string]string)
	if c.Name == "" {
		fields["name"] = "Informe o nome"
	}
	if c.Email == "" {
		fields["email"] = "Informe o e-mail"
	} else if !isValidEmail(c.Email) {
		fields["email"] = "Informe um e-mail válido"
	}
	if len(c.Password) < minPasswordLength {
		fields["password"] = "A senha deve ter pelo menos 8 caracteres"
	}
	if len(fields) > 0 {
		ValidationErrorResponse(w, r, h.logger, &domain.ValidationError{Op: op, Fields: fields})
		return
	}

	if _, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:    c.Email,
		Password: c.Password,
		Name:     c.Name,
	}); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.Login(r.Context(), domain.LoginParams{
		Email:    c.Email,
		Password: c.Password,
		Device:   deviceMeta(r),
	})
	if err != nil {
		// The account exists; the client can still log in explicitly.
		h.logger.Error("auto-login after registration failed", "error", err, "email", c.Email)
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("user registered", "user_id", result.User.ID)
	h.completeLogin(w, r, result, c.ReturnTo, http.StatusCreated)
}

// =============================================================================
// POST /login
// =============================================================================

// Login authenticates the user and opens a session for the device.
//
// Invalid credentials count against the client's login rate limit. A full
// device allowance is reported as 403 with the plan's device message.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	c, err := h.readCredentials(w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if c.Email == "" || c.Password == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("auth.login", "Informe e-mail e senha"))
		return
	}

	result, err := h.userService.Login(r.Context(), domain.LoginParams{
		Email:    c.Email,
		Password: c.Password,
		Device:   deviceMeta(r),
	})
	if err != nil {
		if domain.ErrorCode(err) == domain.EUNAUTHORIZED && h.attempts != nil {
			h.attempts.RecordFailedLogin(r)
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if h.attempts != nil {
		h.attempts.ResetLogin(r)
	}

	h.logger.Info("user logged in", "user_id", result.User.ID)
	h.completeLogin(w, r, result, c.ReturnTo, http.StatusOK)
}

func (h *AuthHandler) completeLogin(w http.ResponseWriter, r *http.Request, result *domain.LoginResult, returnTo string, status int) {
	session.SetCookie(w, result.Token, h.sessionDuration, h.isSecure)

	if acceptsJSON(r) {
		writeJSON(w, status, map[string]any{
			"user":       newUserResponse(result.User),
			"token":      result.Token,
			"expires_in": int(h.sessionDuration.Seconds()),
		})
		return
	}

	redirectURL := "/"
	if returnTo != "" && isSafeRedirectURL(returnTo) {
		redirectURL = returnTo
	}
	http.Redirect(w, r, redirectURL, http.StatusSeeOther)
}

// =============================================================================
// POST /logout
// =============================================================================

// Logout closes the current device session and clears the cookie. It
// succeeds even without a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.GetSessionToken(r.Context())
	if token == "" {
		token, _ = session.TokenFromRequest(r)
	}

	if token != "" {
		if err := h.userService.Logout(r.Context(), token); err != nil {
			// The cookie is cleared regardless; the session will expire.
			h.logger.Error("failed to close session", "error", err)
		}
	}

	session.ClearCookie(w, h.isSecure)

	if acceptsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// =============================================================================
// POST /logout/all
// =============================================================================

// LogoutAll closes every session of the authenticated user, so a user who
// hit the device limit can free their slots from any logged-in device.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		ErrorResponse(w, r, h.logger, domain.Unauthorized("auth.logout_all", "Faça login para continuar"))
		return
	}

	if err := h.userService.LogoutAll(r.Context(), user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("user logged out of all devices", "user_id", user.ID)
	session.ClearCookie(w, h.isSecure)

	if acceptsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// =============================================================================
// Helpers
// =============================================================================

// deviceMeta describes the requesting device for the session registry.
func deviceMeta(r *http.Request) domain.SessionMeta {
	return domain.SessionMeta{
		UserAgent: r.UserAgent(),
		IPAddress: ClientIP(r),
	}
}

// ClientIP extracts the client IP from the request, considering proxy
// headers.
func ClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if clientIP := strings.TrimSpace(ips[0]); clientIP != "" {
			return clientIP
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}

	return ip
}

// isValidEmail performs basic email format validation.
func isValidEmail(email string) bool {
	atIndex := strings.Index(email, "@")
	if atIndex < 1 || atIndex >= len(email)-1 {
		return false
	}
	return strings.Contains(email[atIndex+1:], ".")
}
