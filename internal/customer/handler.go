package customer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/bareeqalyusr/bnpl-backend/internal/auth"
	"github.com/bareeqalyusr/bnpl-backend/internal/transport"
	"github.com/bareeqalyusr/bnpl-backend/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.L()),
		Service:     service,
	}
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) (*Customer, bool) {
	principal, ok := auth.UserFromContext(r.Context())
	if !ok || principal == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	c, err := h.Service.GetByUserID(r.Context(), principal.UserID)
	if err != nil {
		h.HandleServiceError(w, err)
		return nil, false
	}
	return c, true
}

// GetBalance returns the caller's credit position.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	c, ok := h.profile(w, r)
	if !ok {
		return
	}
	h.WriteJSON(w, http.StatusOK, c.BalanceView())
}

func (h *Handler) RequestLimitIncrease(w http.ResponseWriter, r *http.Request) {
	c, ok := h.profile(w, r)
	if !ok {
		return
	}

	var dto LimitIncreaseDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("RequestLimitIncrease: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	history, err := h.Service.RequestLimitIncrease(r.Context(), c.ID, dto.NewLimit, dto.Reason)
	if err != nil {
		h.Logger.Error("RequestLimitIncrease: service error", "error", err, "customer_id", c.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, history)
}

func (h *Handler) GetLimitHistory(w http.ResponseWriter, r *http.Request) {
	c, ok := h.profile(w, r)
	if !ok {
		return
	}

	history, err := h.Service.GetLimitHistory(r.Context(), c.ID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, history)
}

// ListPendingLimitRequests is the admin queue of limit requests above the
// auto-approve ceiling.
func (h *Handler) ListPendingLimitRequests(w http.ResponseWriter, r *http.Request) {
	limit, offset := transport.Pagination(r)
	pending, err := h.Service.ListPendingLimitRequests(r.Context(), limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, pending)
}

// DecideLimitRequest resolves a pending limit request. Admin only.
func (h *Handler) DecideLimitRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.UserFromContext(r.Context())
	if !ok || principal == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid limit request ID")
		return
	}

	var dto LimitDecisionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	history, err := h.Service.DecideLimitIncrease(r.Context(), id, dto.Approve, fmt.Sprintf("admin:%d", principal.UserID))
	if err != nil {
		h.Logger.Error("DecideLimitRequest: service error", "error", err, "history_id", id)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, history)
}
