package payment

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

func pathID(w http.ResponseWriter, r *http.Request, h *Handler, what string) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid "+what+" ID")
		return 0, false
	}
	return id, true
}

// MakePayment applies a payment to a transaction. Customer only.
func (h *Handler) MakePayment(w http.ResponseWriter, r *http.Request) {
	c, ok := h.customerProfile(w, r)
	if !ok {
		return
	}

	var dto MakePaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("MakePayment: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.MakePayment(r.Context(), c.ID, dto)
	if err != nil {
		h.Logger.Error("MakePayment: service error", "error", err, "transaction_id", dto.TransactionID, "customer_id", c.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("MakePayment: payment applied",
		"payment_reference", result.PaymentReference,
		"transaction_id", dto.TransactionID,
		"customer_id", c.ID)
	h.WriteJSON(w, http.StatusCreated, result)
}

// GetTransaction returns the transaction detail for the owning customer.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	c, ok := h.customerProfile(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h, "transaction")
	if !ok {
		return
	}

	detail, err := h.Service.GetTransactionForCustomer(r.Context(), c.ID, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, detail)
}

// GetMerchantTransaction is the merchant-side read of one transaction.
func (h *Handler) GetMerchantTransaction(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchantProfile(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, h, "transaction")
	if !ok {
		return
	}

	detail, err := h.Service.GetTransactionForMerchant(r.Context(), m.ID, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	c, ok := h.customerProfile(w, r)
	if !ok {
		return
	}

	limit, offset := transport.Pagination(r)
	views, err := h.Service.ListTransactionsForCustomer(r.Context(), c.ID, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) ListMerchantTransactions(w http.ResponseWriter, r *http.Request) {
	m, ok := h.merchantProfile(w, r)
	if !ok {
		return
	}

	limit, offset := transport.Pagination(r)
	views, err := h.Service.ListTransactionsForMerchant(r.Context(), m.ID, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	c, ok := h.customerProfile(w, r)
	if !ok {
		return
	}

	limit, offset := transport.Pagination(r)
	views, err := h.Service.ListPaymentsForCustomer(r.Context(), c.ID, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, views)
}

// UpcomingPayments lists open installments due within the window (default 30
// days).
func (h *Handler) UpcomingPayments(w http.ResponseWriter, r *http.Request) {
	c, ok := h.customerProfile(w, r)
	if !ok {
		return
	}

	days := 30
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 && d <= 365 {
			days = d
		}
	}

	views, err := h.Service.UpcomingPayments(r.Context(), c.ID, days)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, views)
}
