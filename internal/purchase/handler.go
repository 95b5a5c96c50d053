package purchase

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/bareeqalyusr/bnpl-backend/internal/auth"
	"github.com/bareeqalyusr/bnpl-backend/internal/customer"
	"github.com/bareeqalyusr/bnpl-backend/internal/merchant"
	"github.com/bareeqalyusr/bnpl-backend/internal/transport"
	"github.com/bareeqalyusr/bnpl-backend/pkg/logger"
)

// profile lookups so the handler can map the authenticated user to their
// customer or merchant identity
type CustomerDirectory interface {
	GetByUserID(ctx context.Context, userID int64) (*customer.Customer, error)
}

type MerchantDirectory interface {
	GetByUserID(ctx context.Context, userID int64) (*merchant.Merchant, error)
}

type Handler struct {
	*transport.BaseHandler
	Service   *Service
	Customers CustomerDirectory
	Merchants MerchantDirectory
}

func NewHandler(service *Service, customers CustomerDirectory, merchants MerchantDirectory) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.L()),
		Service:     service,
		Customers:   customers,
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

func (h *Handler) customerProfile(w http.ResponseWriter, r *http.Request) (*customer.Customer, bool) {
	principal, ok := auth.UserFromContext(r.Context())
	if !ok || principal == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	c, err := h.Customers.GetByUserID(r.Context(), principal.UserID)
	if err != nil {
		h.HandleServiceError(w, err)
		return nil, false
	}
	return c, true
}

func requestID(w http.ResponseWriter, r *http.Request, h *Handler) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid purchase request ID")
		return 0, false
	}
	return id, true
}

// SendRequest creates a pending offer. Merchant only.
func (h *Handler) SendRequest(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchantProfile(w, r)
	if !ok {
		return
	}

	var dto CreateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("SendRequest: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.Service.SendRequest(r.Context(), m.ID, dto)
	if err != nil {
		h.Logger.Error("SendRequest: service error", "error", err, "merchant_id", m.ID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, view)
}

// AcceptRequest accepts a pending offer and creates the debt. The body is
// optional; it may carry the customer's plan choice. Customer only.
func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	c, ok := h.customerProfile(w, r)
	if !ok {
		return
	}
	id, ok := requestID(w, r, h)
	if !ok {
		return
	}

	var dto AcceptRequestDTO
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.Service.AcceptRequest(r.Context(), c.ID, id, dto)
	if err != nil {
		h.Logger.Error("AcceptRequest: service error", "error", err, "request_id", id, "customer_id", c.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("AcceptRequest: purchase accepted",
		"request_id", id,
		"customer_id", c.ID,
		"transaction_number", result.TransactionNumber)
	h.WriteJSON(w, http.StatusOK, result)
}

// RejectRequest declines a pending offer. Customer only.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	c, ok := h.customerProfile(w, r)
	if !ok {
		return
	}
	id, ok := requestID(w, r, h)
	if !ok {
		return
	}

	var dto RejectRequestDTO
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	view, err := h.Service.RejectRequest(r.Context(), c.ID, id, dto)
	if err != nil {
		h.Logger.Error("RejectRequest: service error", "error", err, "request_id", id, "customer_id", c.ID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

// CancelRequest withdraws a pending offer. Merchant only.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchantProfile(w, r)
	if !ok {
		return
	}
	id, ok := requestID(w, r, h)
	if !ok {
		return
	}

	view, err := h.Service.CancelRequest(r.Context(), m.ID, id)
	if err != nil {
		h.Logger.Error("CancelRequest: service error", "error", err, "request_id", id, "merchant_id", m.ID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

// GetRequestForCustomer returns one request for the owning customer.
func (h *Handler) GetRequestForCustomer(w http.ResponseWriter, r *http.Request) {
	c, ok := h.customerProfile(w, r)
	if !ok {
		return
	}
	id, ok := requestID(w, r, h)
	if !ok {
		return
	}

	view, err := h.Service.GetForCustomer(r.Context(), c.ID, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

// GetRequestForMerchant returns one request for the owning merchant.
func (h *Handler) GetRequestForMerchant(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchantProfile(w, r)
	if !ok {
		return
	}
	id, ok := requestID(w, r, h)
	if !ok {
		return
	}

	view, err := h.Service.GetForMerchant(r.Context(), m.ID, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) ListForCustomer(w http.ResponseWriter, r *http.Request) {
	c, ok := h.customerProfile(w, r)
	if !ok {
		return
	}

	limit, offset := transport.Pagination(r)
	views, err := h.Service.ListForCustomer(r.Context(), c.ID, r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) ListForMerchant(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchantProfile(w, r)
	if !ok {
		return
	}

	limit, offset := transport.Pagination(r)
	views, err := h.Service.ListForMerchant(r.Context(), m.ID, r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, views)
}
