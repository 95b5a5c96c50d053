package purchase

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/money"
	"github.com/bareeqalyusr/bnpl-backend/internal/repayment"
)

// CreateRequestDTO is the merchant-facing payload for sending an offer. The
// customer is addressed by customer_code so merchants never learn internal
// IDs.
type CreateRequestDTO struct {
	CustomerCode       string  `json:"customer_code"`
	ProductName        string  `json:"product_name"`
	ProductDescription *string `json:"product_description,omitempty"`
	Quantity           int     `json:"quantity"`
	UnitPrice          string  `json:"unit_price"`
	PlanType           int     `json:"plan_type"`
}

func (d *CreateRequestDTO) Validate() error {
	d.CustomerCode = strings.ToUpper(strings.TrimSpace(d.CustomerCode))
	d.ProductName = strings.TrimSpace(d.ProductName)
	if d.CustomerCode == "" {
		return internal.NewValidationError("customer_code is required", internal.ErrCodeValidationFailed)
	}
	if d.ProductName == "" {
		return internal.NewValidationError("product_name is required", internal.ErrCodeValidationFailed)
	}
	if _, err := d.Price(); err != nil {
		return err
	}
	return nil
}

func (d *CreateRequestDTO) Price() (decimal.Decimal, error) {
	price, err := money.FromString(strings.TrimSpace(d.UnitPrice))
	if err != nil {
		return decimal.Zero, internal.NewValidationError("unit_price must be a valid decimal amount", internal.ErrCodeInvalidAmount)
	}
	return price, nil
}

// AcceptRequestDTO lets the customer choose the installment plan at
// acceptance. A zero plan_type keeps the plan the merchant suggested on the
// request.
type AcceptRequestDTO struct {
	PlanType int `json:"plan_type,omitempty"`
}

func (d *AcceptRequestDTO) Validate() error {
	if d.PlanType != 0 && !repayment.IsValidPlanType(d.PlanType) {
		return internal.NewValidationError("invalid plan type, choose 1, 3, 6, 12, 18 or 24 months", internal.ErrCodeInvalidPlanType)
	}
	return nil
}

// RejectRequestDTO carries the optional customer-provided reason.
type RejectRequestDTO struct {
	Reason string `json:"reason,omitempty"`
}

// RequestView is the read shape for both sides of a request. Status already
// reflects lazy expiry.
type RequestView struct {
	ID                 int64      `json:"id"`
	RequestReference   string     `json:"request_reference"`
	MerchantID         int64      `json:"merchant_id"`
	CustomerID         int64      `json:"customer_id"`
	ProductName        string     `json:"product_name"`
	ProductDescription *string    `json:"product_description,omitempty"`
	Quantity           int        `json:"quantity"`
	UnitPrice          string     `json:"unit_price"`
	TotalAmount        string     `json:"total_amount"`
	PlanType           int        `json:"plan_type"`
	Status             Status     `json:"status"`
	RejectionReason    *string    `json:"rejection_reason,omitempty"`
	ExpiresAt          time.Time  `json:"expires_at"`
	RespondedAt        *time.Time `json:"responded_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func NewRequestView(r *Request, now time.Time) RequestView {
	return RequestView{
		ID:                 r.ID,
		RequestReference:   r.RequestReference,
		MerchantID:         r.MerchantID,
		CustomerID:         r.CustomerID,
		ProductName:        r.ProductName,
		ProductDescription: r.ProductDescription,
		Quantity:           r.Quantity,
		UnitPrice:          r.UnitPrice.StringFixed(2),
		TotalAmount:        r.TotalAmount.StringFixed(2),
		PlanType:           r.PlanType,
		Status:             r.EffectiveStatus(now),
		RejectionReason:    r.RejectionReason,
		ExpiresAt:          r.ExpiresAt,
		RespondedAt:        r.RespondedAt,
		CreatedAt:          r.CreatedAt,
	}
}

// AcceptResult is returned to the customer after a successful acceptance so
// the client can render the new debt and schedule without a second call.
type AcceptResult struct {
	Request           RequestView `json:"request"`
	TransactionID     int64       `json:"transaction_id"`
	TransactionNumber string      `json:"transaction_number"`
	PlanReference     string      `json:"plan_reference"`
	TotalAmount       string      `json:"total_amount"`
	InstallmentAmount string      `json:"installment_amount"`
	Installments      int         `json:"installments"`
	FirstDueDate      time.Time   `json:"first_due_date"`
	FinalDueDate      time.Time   `json:"final_due_date"`
	AvailableCredit   string      `json:"available_credit"`
}
