package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/domain"
)

// maxBodyBytes caps JSON and form request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into dst. Unknown fields are
// rejected so typos surface as 400s instead of silently ignored input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	const op = "handler.decode_json"

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid(op, "O corpo da requisição está vazio")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.Errorf(domain.ETOOLARGE, op, "O corpo da requisição é grande demais")
		}
		return domain.Invalid(op, "O corpo da requisição não é um JSON válido")
	}
	return nil
}

// isJSONBody reports whether the request body is JSON rather than a form.
func isJSONBody(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// pathUUID parses a UUID path value.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.Invalid("handler.path_uuid", fmt.Sprintf("Identificador inválido: %s", name))
	}
	return id, nil
}

// isSafeRedirectURL checks if a URL is safe to redirect to.
//
// Only same-origin relative paths are allowed: the URL must start with a
// single slash and carry neither a scheme nor a host.
func isSafeRedirectURL(rawURL string) bool {
	if !strings.HasPrefix(rawURL, "/") || strings.HasPrefix(rawURL, "//") {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return parsed.Scheme == "" && parsed.Host == ""
}

// =============================================================================
// Decision rendering
// =============================================================================

// resetTimeLayout is the pt-BR date format shown next to a quota reset.
const resetTimeLayout = "02/01/2006 15:04"

// decisionResponse is the JSON form of a domain.Decision. limit and
// remaining are the string "unlimited" for unlimited decisions.
type decisionResponse struct {
	Action             string  `json:"action"`
	Allowed            bool    `json:"allowed"`
	Unlimited          bool    `json:"unlimited"`
	Limit              any     `json:"limit"`
	Used               int     `json:"used"`
	Remaining          any     `json:"remaining"`
	Period             string  `json:"period,omitempty"`
	ResetTime          *string `json:"reset_time"`
	ResetTimeFormatted string  `json:"reset_time_formatted,omitempty"`
	Reason             string  `json:"reason"`
	Message            string  `json:"message,omitempty"`
}

func newDecisionResponse(d domain.Decision) decisionResponse {
	resp := decisionResponse{
		Action:    string(d.Action),
		Allowed:   d.Allowed,
		Unlimited: d.Unlimited,
		Limit:     quotaValue(d.Unlimited, d.Limit),
		Used:      d.Used,
		Remaining: quotaValue(d.Unlimited, d.Remaining),
		Period:    string(d.Window),
		Reason:    string(d.Reason),
		Message:   d.Message,
	}
	if d.ResetAt != nil {
		resp.ResetTime = formatTime(d.ResetAt)
		resp.ResetTimeFormatted = clock.ToLocal(*d.ResetAt).Format(resetTimeLayout)
	}
	return resp
}

// quotaValue renders a limit or remaining count.
func quotaValue(unlimited bool, n int) any {
	if unlimited || n == domain.Unlimited {
		return "unlimited"
	}
	return n
}

// formatTime renders an optional timestamp as RFC 3339 in the portal's
// time zone.
func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := clock.ToLocal(*t).Format(time.RFC3339)
	return &s
}

// denialResponse writes a policy denial. Denials are never errors: they are
// rendered as 403 with the decision so the client can show the remaining
// quota and the reset time.
func denialResponse(w http.ResponseWriter, d domain.Decision) {
	writeJSON(w, http.StatusForbidden, map[string]any{
		"error": map[string]string{
			"code":    domain.EFORBIDDEN,
			"message": d.Message,
		},
		"decision": newDecisionResponse(d),
	})
}

// =============================================================================
// User rendering
// =============================================================================

type userResponse struct {
	ID                  uuid.UUID `json:"id"`
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	Role                string    `json:"role"`
	Plan                string    `json:"plan"`
	SubscriptionEndDate *string   `json:"subscription_end_date"`
}

func newUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:                  u.ID,
		Email:               u.Email,
		Name:                u.Name,
		Role:                string(u.Role),
		Plan:                string(u.Plan),
		SubscriptionEndDate: formatTime(u.SubscriptionEndDate),
	}
}
