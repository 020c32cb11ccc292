package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vipclub/vipclub-backend/internal/api/httpx"
	"github.com/vipclub/vipclub-backend/internal/middleware"
	"github.com/vipclub/vipclub-backend/internal/models"
	"github.com/vipclub/vipclub-backend/internal/services"
)

type AdminHandler struct {
	Admin *services.AdminService
}

func NewAdminHandler(as *services.AdminService) *AdminHandler { return &AdminHandler{Admin: as} }

func adminID(r *http.Request) string {
	u, _ := middleware.FromCtx(r.Context())
	return u.UserID
}

func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	wd, err := h.Admin.Approve(r.Context(), adminID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, wd)
}

func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	wd, err := h.Admin.Reject(r.Context(), adminID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, wd)
}

func (h *AdminHandler) Retry(w http.ResponseWriter, r *http.Request) {
	wd, err := h.Admin.Retry(r.Context(), adminID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, wd)
}

func (h *AdminHandler) MassPayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WithdrawalIDs []string `json:"withdrawal_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.WithdrawalIDs) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "withdrawal_ids required", nil)
		return
	}
	res, err := h.Admin.MassPayout(r.Context(), adminID(r), req.WithdrawalIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, res)
}

func (h *AdminHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	status := models.WithdrawalStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.WithdrawalPending
	}
	limit, offset := pageParams(r, 50)
	list, err := h.Admin.ListWithdrawals(r.Context(), status, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, list)
}

func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.Admin.Settings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, st)
}

func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	if err := h.Admin.UpdateSettings(r.Context(), adminID(r), req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	httpx.WriteOK(w, http.StatusOK, map[string]string{"status": "updated"})
}
