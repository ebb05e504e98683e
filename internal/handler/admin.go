package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/DukeRupert/mundo/internal/auth"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/service"
)

// AdminHandler handles staff tools for user download limits.
type AdminHandler struct {
	admin  service.AdminService
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		logger: logger,
	}
}

// RegisterRoutes registers admin routes with the provided middleware.
func (h *AdminHandler) RegisterRoutes(
	mux *http.ServeMux,
	requireAdmin func(http.Handler) http.Handler,
) {
	mux.Handle("GET /admin/users/{id}/download-limits", requireAdmin(http.HandlerFunc(h.GetDownloadLimits)))
	mux.Handle("POST /admin/users/{id}/download-limits", requireAdmin(http.HandlerFunc(h.AdjustDownloadLimits)))
}

// GetDownloadLimits returns a user's counters, overrides and effective
// download decision.
func (h *AdminHandler) GetDownloadLimits(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	limits, err := h.admin.GetDownloadLimits(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newDownloadLimitsResponse(limits))
}

type adjustRequest struct {
	Action            string `json:"action"`
	Period            string `json:"period"`
	Amount            int    `json:"amount"`
	CanDownload       *bool  `json:"can_download"`
	CustomDailyLimit  *int   `json:"custom_daily_limit"`
	CustomWeeklyLimit *int   `json:"custom_weekly_limit"`
}

// AdjustDownloadLimits applies one admin action to a user's counters.
//
// Actions: reset (period daily, weekly or all), set, increase and decrease
// (period daily or weekly; decrease floors at zero) and permissions
// (can_download plus optional custom limits, where 0 clears a limit).
func (h *AdminHandler) AdjustDownloadLimits(w http.ResponseWriter, r *http.Request) {
	const op = "admin.adjust_download_limits"

	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req adjustRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	adj := domain.DownloadAdjustment{
		Action:            domain.AdminAction(strings.ToLower(req.Action)),
		Period:            domain.AdminPeriod(strings.ToLower(req.Period)),
		Amount:            req.Amount,
		CustomDailyLimit:  req.CustomDailyLimit,
		CustomWeeklyLimit: req.CustomWeeklyLimit,
	}
	if adj.Action == domain.AdminPermissions {
		if req.CanDownload == nil {
			ErrorResponse(w, r, h.logger, domain.Invalid(op, "can_download is required"))
			return
		}
		adj.CanDownload = *req.CanDownload
	}
	if err := adj.Validate(); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	limits, err := h.admin.AdjustDownloads(r.Context(), id, adj)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var adminID uuid.UUID
	if admin := auth.GetUser(r.Context()); admin != nil {
		adminID = admin.ID
	}
	h.logger.Info("download limits adjusted",
		"admin_id", adminID,
		"user_id", id,
		"action", adj.Action,
		"period", adj.Period,
		"amount", adj.Amount,
	)

	writeJSON(w, http.StatusOK, newDownloadLimitsResponse(limits))
}

type downloadLimitsResponse struct {
	UserID            uuid.UUID        `json:"user_id"`
	Plan              string           `json:"plan"`
	CanDownload       bool             `json:"can_download"`
	CustomDailyLimit  *int             `json:"custom_daily_limit"`
	CustomWeeklyLimit *int             `json:"custom_weekly_limit"`
	DailyDownloads    int              `json:"daily_downloads"`
	DownloadResetDate *string          `json:"download_reset_date"`
	WeeklyDownloads   int              `json:"weekly_downloads"`
	WeekResetDate     *string          `json:"week_reset_date"`
	Effective         decisionResponse `json:"effective"`
}

func newDownloadLimitsResponse(l *domain.DownloadLimits) downloadLimitsResponse {
	return downloadLimitsResponse{
		UserID:            l.UserID,
		Plan:              string(l.Plan),
		CanDownload:       l.CanDownload,
		CustomDailyLimit:  l.CustomDailyLimit,
		CustomWeeklyLimit: l.CustomWeeklyLimit,
		DailyDownloads:    l.DailyDownloads,
		DownloadResetDate: formatTime(l.DownloadResetDate),
		WeeklyDownloads:   l.WeeklyDownloads,
		WeekResetDate:     formatTime(l.WeekResetDate),
		Effective:         newDecisionResponse(l.Effective),
	}
}
