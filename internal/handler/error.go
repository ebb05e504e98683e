package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/mundo/internal/auth"
	"github.com/DukeRupert/mundo/internal/domain"
)

const validationMessage = "Dados inválidos. Verifique os campos e tente novamente."

// JSONError is the body of every JSON error response.
type JSONError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

// ErrorResponse writes err to the client. Domain codes pick the status;
// API and XHR clients get a JSONError body, browsers plain text. Only the
// domain message is ever shown, never the op or the wrapped error.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)

	logError(logger, r, err, code, domain.ErrorOp(err), status)

	message := domain.ErrorMessage(err)
	if acceptsJSON(r) {
		writeJSONError(w, status, code, message)
		return
	}
	http.Error(w, message, status)
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests
	case domain.ENOTIMPL:
		return http.StatusNotImplemented
	case domain.EUNAVAILABLE:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ValidationErrorResponse writes field-level validation errors. Anything
// that is not a *domain.ValidationError goes through ErrorResponse.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		ErrorResponse(w, r, logger, err)
		return
	}

	logger.Info("validation error",
		"op", ve.Op,
		"field_count", len(ve.Fields),
		"path", r.URL.Path,
	)

	if acceptsJSON(r) {
		var body JSONError
		body.Error.Code = domain.EINVALID
		body.Error.Message = validationMessage
		body.Error.Fields = ve.Fields
		writeJSON(w, http.StatusBadRequest, body)
		return
	}

	http.Error(w, validationMessage, http.StatusBadRequest)
}

// UnauthorizedResponse answers a request that needs a signed-in user.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, domain.Errorf(domain.EUNAUTHORIZED, "", "Faça login para continuar."))
}

// ForbiddenResponse answers a signed-in user without the required role.
func ForbiddenResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, domain.Errorf(domain.EFORBIDDEN, "", "Você não tem permissão para acessar esta página."))
}

func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if op != "" {
		attrs = append(attrs, "op", op)
	}
	if u := auth.GetUser(r.Context()); u != nil {
		attrs = append(attrs, "user_id", u.ID)
	}

	switch {
	case status >= 500:
		logger.Error("server error", attrs...)
	case status >= 400:
		logger.Info("client error", attrs...)
	}
}

// acceptsJSON reports whether the client should get JSON rather than text
// or a redirect: explicit Accept, a JSON body, fetch/XHR from the portal's
// own pages, or an /api/ path.
func acceptsJSON(r *http.Request) bool {
	switch {
	case strings.Contains(r.Header.Get("Accept"), "application/json"),
		strings.Contains(r.Header.Get("Content-Type"), "application/json"),
		r.Header.Get("X-Requested-With") == "XMLHttpRequest",
		strings.HasPrefix(r.URL.Path, "/api/"):
		return true
	}
	return strings.HasSuffix(r.URL.Path, ".json")
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	var body JSONError
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}
