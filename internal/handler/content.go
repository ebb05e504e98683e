// Package handler contains HTTP handlers for the portal.
//
// This file implements the quota-governed content actions: downloads,
// comments and favorites, plus the read-only quota views.
//
// Routes (all require an authenticated user):
//   - GET  /posts/{id}/download       -> Download
//   - POST /posts/{id}/comments       -> Comment
//   - POST /posts/{id}/favorite       -> ToggleFavorite
//   - GET  /check-download-limit      -> CheckDownloadLimit
//   - GET  /api/user/permissions      -> Permissions
//   - GET  /history                   -> History
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/mundo/internal/auth"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/service"
	"github.com/DukeRupert/mundo/internal/storage"
)

// ContentHandler serves the entitlement-checked content endpoints.
type ContentHandler struct {
	entitlements service.EntitlementService
	storage      storage.Storage
	linkTTL      time.Duration
	logger       *slog.Logger
}

// NewContentHandler creates a ContentHandler. Download links that are
// storage keys are resolved through store with URLs valid for linkTTL.
func NewContentHandler(entitlements service.EntitlementService, store storage.Storage, linkTTL time.Duration, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{
		entitlements: entitlements,
		storage:      store,
		linkTTL:      linkTTL,
		logger:       logger,
	}
}

// RegisterRoutes registers the content routes behind requireUser.
func (h *ContentHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /posts/{id}/download", requireUser(http.HandlerFunc(h.Download)))
	mux.Handle("POST /posts/{id}/comments", requireUser(http.HandlerFunc(h.Comment)))
	mux.Handle("POST /posts/{id}/favorite", requireUser(http.HandlerFunc(h.ToggleFavorite)))
	mux.Handle("GET /check-download-limit", requireUser(http.HandlerFunc(h.CheckDownloadLimit)))
	mux.Handle("GET /api/user/permissions", requireUser(http.HandlerFunc(h.Permissions)))
	mux.Handle("GET /history", requireUser(http.HandlerFunc(h.History)))
}

// =============================================================================
// GET /posts/{id}/download
// =============================================================================

// Download consumes one download and redirects to the file.
//
// Denials are 403 JSON for API and XHR clients; browsers are sent back to
// the post with the decision message as a notice.
func (h *ContentHandler) Download(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	postID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.entitlements.Download(r.Context(), user.ID, postID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if !result.Decision.Allowed {
		h.deny(w, r, postID, result.Decision)
		return
	}

	link, err := h.resolveLink(r.Context(), result.Post)
	if err != nil {
		h.logger.Error("download granted but link could not be resolved",
			"error", err,
			"user_id", user.ID,
			"post_id", postID,
		)
		ErrorResponse(w, r, h.logger, err)
		return
	}

	http.Redirect(w, r, link, http.StatusFound)
}

// resolveLink returns an absolute URL for a post's download link.
func (h *ContentHandler) resolveLink(ctx context.Context, post *domain.Post) (string, error) {
	const op = "content.resolve_link"

	if post.HasExternalLink() {
		return post.DownloadLink, nil
	}
	if post.DownloadLink == "" {
		return "", domain.NotFound(op, "download link", post.ID.String())
	}
	if h.storage == nil {
		return "", domain.Errorf(domain.ENOTIMPL, op, "O armazenamento de arquivos não está configurado")
	}

	link, err := h.storage.URL(ctx, post.DownloadLink, h.linkTTL)
	if err != nil {
		return "", storage.DomainError(op, post.DownloadLink, err)
	}
	return link, nil
}

// =============================================================================
// POST /posts/{id}/comments
// =============================================================================

type commentRequest struct {
	Body string `json:"body"`
}

// Comment posts a comment if the daily comment quota allows it.
func (h *ContentHandler) Comment(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	postID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req commentRequest
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		req.Body = r.FormValue("body")
	}

	result, err := h.entitlements.Comment(r.Context(), user.ID, postID, req.Body)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if !result.Decision.Allowed {
		h.deny(w, r, postID, result.Decision)
		return
	}

	if !acceptsJSON(r) {
		http.Redirect(w, r, postPath(postID), http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"comment": map[string]any{
			"id":         result.Comment.ID,
			"post_id":    result.Comment.PostID,
			"body":       result.Comment.Body,
			"created_at": formatTime(&result.Comment.CreatedAt),
		},
		"decision": newDecisionResponse(result.Decision),
	})
}

// =============================================================================
// POST /posts/{id}/favorite
// =============================================================================

// ToggleFavorite removes an existing favorite or adds one within the plan's
// favorite cap.
func (h *ContentHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	postID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.entitlements.ToggleFavorite(r.Context(), user.ID, postID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if !result.Decision.Allowed {
		h.deny(w, r, postID, result.Decision)
		return
	}

	if !acceptsJSON(r) {
		http.Redirect(w, r, postPath(postID), http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"favorited": result.Favorited,
		"decision":  newDecisionResponse(result.Decision),
	})
}

// =============================================================================
// Quota views
// =============================================================================

// CheckDownloadLimit reports the user's download quota without consuming.
func (h *ContentHandler) CheckDownloadLimit(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	d, err := h.entitlements.Check(r.Context(), user.ID, domain.ActionDownload)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := newDecisionResponse(d)
	writeJSON(w, http.StatusOK, map[string]any{
		"can_download":         d.Allowed,
		"remaining":            resp.Remaining,
		"limit":                resp.Limit,
		"used":                 d.Used,
		"reset_time":           resp.ResetTime,
		"reset_time_formatted": resp.ResetTimeFormatted,
		"plan":                 string(user.Plan),
		"period":               resp.Period,
		"message":              d.Message,
	})
}

// Permissions returns everything the user's plan entitles them to.
func (h *ContentHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	p, err := h.entitlements.Permissions(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"plan":                string(p.Plan),
		"plan_name":           p.PlanName,
		"role":                string(p.Role),
		"downloads":           newDecisionResponse(p.Download),
		"comments_per_day":    quotaValue(false, p.CommentsPerDay),
		"favorites":           quotaValue(false, p.FavoriteLimit),
		"favorites_used":      p.FavoritesUsed,
		"history":             quotaValue(false, p.HistoryDepth),
		"devices":             quotaValue(false, p.DeviceLimit),
		"devices_used":        p.DevicesUsed,
		"support":             p.Support,
		"can_request_content": p.CanRequestContent,
		"vip_area":            p.VIPArea,
		"subscription_ends":   formatTime(p.SubscriptionEnds),
	})
}

type historyEntryResponse struct {
	PostID       uuid.UUID `json:"post_id"`
	PostTitle    string    `json:"post_title"`
	PostSlug     string    `json:"post_slug"`
	DownloadedAt *string   `json:"downloaded_at"`
}

// History lists the user's latest download per post, newest first.
// Plans without history access get 403 with an upgrade message.
func (h *ContentHandler) History(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	history, err := h.entitlements.History(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if !history.Allowed {
		writeJSONError(w, http.StatusForbidden, domain.EFORBIDDEN, history.Message)
		return
	}

	entries := make([]historyEntryResponse, 0, len(history.Entries))
	for _, e := range history.Entries {
		entries = append(entries, historyEntryResponse{
			PostID:       e.PostID,
			PostTitle:    e.PostTitle,
			PostSlug:     e.PostSlug,
			DownloadedAt: formatTime(&e.DownloadedAt),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"depth":   quotaValue(false, history.Depth),
		"entries": entries,
	})
}

// =============================================================================
// Helpers
// =============================================================================

// deny renders a policy denial for the post's page.
func (h *ContentHandler) deny(w http.ResponseWriter, r *http.Request, postID uuid.UUID, d domain.Decision) {
	if acceptsJSON(r) {
		denialResponse(w, d)
		return
	}
	http.Redirect(w, r, postPath(postID)+"?notice="+url.QueryEscape(d.Message), http.StatusSeeOther)
}

func postPath(postID uuid.UUID) string {
	return "/posts/" + postID.String()
}
