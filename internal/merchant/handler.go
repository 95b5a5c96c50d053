package merchant

import (
	"net/http"

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

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) (*Merchant, bool) {
	principal, ok := auth.UserFromContext(r.Context())
	if !ok || principal == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	m, err := h.Service.GetByUserID(r.Context(), principal.UserID)
	if err != nil {
		h.HandleServiceError(w, err)
		return nil, false
	}
	return m, true
}

// GetProfile returns the caller's merchant account.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	m, ok := h.profile(w, r)
	if !ok {
		return
	}
	h.WriteJSON(w, http.StatusOK, m)
}

// GetStats returns the merchant dashboard numbers, cached when redis is
// configured.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	m, ok := h.profile(w, r)
	if !ok {
		return
	}

	stats, err := h.Service.GetStats(r.Context(), m.ID)
	if err != nil {
		h.Logger.Error("GetStats: service error", "error", err, "merchant_id", m.ID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, stats)
}
