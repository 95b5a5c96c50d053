package purchase

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/refnum"
	"github.com/bareeqalyusr/bnpl-backend/internal/money"
	"github.com/bareeqalyusr/bnpl-backend/internal/repayment"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the request can no longer change state.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// Request is a merchant's offer to sell to a customer on installments. It
// stays pending until the customer responds or the expiry window passes;
// expiry is lazy, so a stale pending row is surfaced and persisted as expired
// the next time anything touches it.
type Request struct {
	ID                 int64           `json:"id" gorm:"primaryKey"`
	RequestReference   string          `json:"request_reference" gorm:"column:request_reference;size:50;uniqueIndex;not null"`
	MerchantID         int64           `json:"merchant_id" gorm:"column:merchant_id;index;not null"`
	CustomerID         int64           `json:"customer_id" gorm:"column:customer_id;index;not null"`
	ProductName        string          `json:"product_name" gorm:"column:product_name;size:255;not null"`
	ProductDescription *string         `json:"product_description,omitempty" gorm:"column:product_description;size:1000"`
	Quantity           int             `json:"quantity" gorm:"column:quantity;not null"`
	UnitPrice          decimal.Decimal `json:"unit_price" gorm:"column:unit_price;type:numeric(12,2);not null"`
	TotalAmount        decimal.Decimal `json:"total_amount" gorm:"column:total_amount;type:numeric(12,2);not null"`
	PlanType           int             `json:"plan_type" gorm:"column:plan_type;not null"`
	Status             Status          `json:"status" gorm:"column:status;size:20;index;default:pending"`
	RejectionReason    *string         `json:"rejection_reason,omitempty" gorm:"column:rejection_reason;size:500"`
	ExpiresAt          time.Time       `json:"expires_at" gorm:"column:expires_at;index;not null"`
	RespondedAt        *time.Time      `json:"responded_at,omitempty" gorm:"column:responded_at"`
	CreatedAt          time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Request) TableName() string {
	return "purchase_requests"
}

// NewRequest builds a pending request. TotalAmount is derived here and never
// accepted from the caller.
func NewRequest(merchantID, customerID int64, productName string, description *string, quantity int, unitPrice decimal.Decimal, planType int, expiry time.Duration) (*Request, error) {
	if productName == "" {
		return nil, internal.NewValidationError("product_name is required", internal.ErrCodeValidationFailed)
	}
	if quantity <= 0 {
		return nil, internal.NewValidationError("quantity must be a positive integer", internal.ErrCodeInvalidQuantity)
	}
	if !money.IsPositive(unitPrice) {
		return nil, internal.NewValidationError("unit_price must be positive", internal.ErrCodeInvalidAmount)
	}
	if !repayment.IsValidPlanType(planType) {
		return nil, internal.NewValidationError("invalid plan type, choose 1, 3, 6, 12, 18 or 24 months", internal.ErrCodeInvalidPlanType)
	}

	return &Request{
		RequestReference:   refnum.New(refnum.PurchaseRequest),
		MerchantID:         merchantID,
		CustomerID:         customerID,
		ProductName:        productName,
		ProductDescription: description,
		Quantity:           quantity,
		UnitPrice:          unitPrice,
		TotalAmount:        unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		PlanType:           planType,
		Status:             StatusPending,
		ExpiresAt:          time.Now().UTC().Add(expiry),
	}, nil
}

// IsExpired reports whether a pending request has outlived its window.
// Terminal requests never expire retroactively.
func (r *Request) IsExpired(now time.Time) bool {
	return r.Status == StatusPending && now.After(r.ExpiresAt)
}

// EffectiveStatus is the status a reader should see: pending rows past their
// window read as expired even before the lazy write lands.
func (r *Request) EffectiveStatus(now time.Time) Status {
	if r.IsExpired(now) {
		return StatusExpired
	}
	return r.Status
}

func (r *Request) respond(now time.Time) error {
	if r.Status.IsTerminal() {
		return internal.NewBusinessError("purchase request is already "+string(r.Status), internal.ErrCodeInvalidState)
	}
	r.RespondedAt = &now
	return nil
}

func (r *Request) Accept(now time.Time) error {
	if err := r.respond(now); err != nil {
		return err
	}
	r.Status = StatusAccepted
	return nil
}

func (r *Request) Reject(reason string, now time.Time) error {
	if err := r.respond(now); err != nil {
		return err
	}
	r.Status = StatusRejected
	if reason != "" {
		r.RejectionReason = &reason
	}
	return nil
}

// Cancel is the merchant-side withdrawal of a still-pending offer.
func (r *Request) Cancel(now time.Time) error {
	if err := r.respond(now); err != nil {
		return err
	}
	r.Status = StatusCancelled
	return nil
}

// MarkExpired flips a stale pending request to expired. Callers check
// IsExpired first; a terminal request is left untouched.
func (r *Request) MarkExpired() error {
	if r.Status.IsTerminal() {
		return internal.NewBusinessError("purchase request is already "+string(r.Status), internal.ErrCodeInvalidState)
	}
	r.Status = StatusExpired
	return nil
}
