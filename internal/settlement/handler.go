package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/bareeqalyusr/bnpl-backend/internal/auth"
	"github.com/bareeqalyusr/bnpl-backend/internal/merchant"
	"github.com/bareeqalyusr/bnpl-backend/internal/transport"
	"github.com/bareeqalyusr/bnpl-backend/pkg/logger"
)

type MerchantDirectory interface {
	GetByUserID(ctx context.Context, userID int64) (*merchant.Merchant, error)
}

type Handler struct {
	*transport.BaseHandler
	Service   *Service
	Merchants MerchantDirectory
}

func NewHandler(service *Service, merchants MerchantDirectory) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.L()),
		Service:     service,
		Merchants:   merchants,
	}
}

func (h *Handler) merchantProfile(w http.ResponseWriter, r *http.Request) (*merchant.Merchant, bool) {
	principal, ok := auth.UserFromContext(r.Context())
	if !ok || principal == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	m, err := h.Merchants.GetByUserID(r.Context(), principal.UserID)
	if err != nil {
		h.HandleServiceError(w, err)
		return nil, false
	}
	return m, true
}

// RequestWithdrawal draws down the merchant balance. Merchant only.
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchantProfile(w, r)
	if !ok {
		return
	}

	var dto WithdrawalDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("RequestWithdrawal: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.Service.RequestWithdrawal(r.Context(), m.ID, dto)
	if err != nil {
		h.Logger.Error("RequestWithdrawal: service error", "error", err, "merchant_id", m.ID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, view)
}

// GetSettlement returns one settlement for the owning merchant.
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchantProfile(w, r)
	if !ok {
		return
	}

	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid settlement ID")
		return
	}

	view, err := h.Service.GetForMerchant(r.Context(), m.ID, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchantProfile(w, r)
	if !ok {
		return
	}

	limit, offset := transport.Pagination(r)
	views, err := h.Service.ListForMerchant(r.Context(), m.ID,
		r.URL.Query().Get("type"), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, views)
}

// ListPendingWithdrawals is the admin processing queue.
func (h *Handler) ListPendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	limit, _ := transport.Pagination(r)
	views, err := h.Service.ListPending(r.Context(), limit)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, views)
}

// ProcessWithdrawal finalizes a pending withdrawal. Admin only.
func (h *Handler) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid settlement ID")
		return
	}

	var dto ProcessDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.Service.ProcessWithdrawal(r.Context(), id, dto)
	if err != nil {
		h.Logger.Error("ProcessWithdrawal: service error", "error", err, "settlement_id", id)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

// PlatformRevenue reports total commission earned. Admin only.
func (h *Handler) PlatformRevenue(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.PlatformRevenue(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}
