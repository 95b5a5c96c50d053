package transaction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/refnum"
	"github.com/bareeqalyusr/bnpl-backend/internal/money"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
	StatusDefaulted Status = "defaulted"
	StatusCancelled Status = "cancelled"
)

// CanAcceptPayment reports whether a transaction in this status may still
// receive payments. Overdue transactions stay payable; terminal ones do not.
func (s Status) CanAcceptPayment() bool {
	switch s {
	case StatusActive, StatusOverdue:
		return true
	case StatusCompleted, StatusDefaulted, StatusCancelled:
		return false
	}
	return false
}

// Transaction is the debt created when a purchase request is accepted.
// Commission is locked in at creation and never recomputed, so
// CommissionAmount + NetAmount always recompose TotalAmount.
type Transaction struct {
	ID                int64           `json:"id" gorm:"primaryKey"`
	TransactionNumber string          `json:"transaction_number" gorm:"column:transaction_number;size:50;uniqueIndex;not null"`
	MerchantID        int64           `json:"merchant_id" gorm:"column:merchant_id;index;not null"`
	CustomerID        int64           `json:"customer_id" gorm:"column:customer_id;index;not null"`
	PurchaseRequestID int64           `json:"purchase_request_id" gorm:"column:purchase_request_id;uniqueIndex;not null"`
	TotalAmount       decimal.Decimal `json:"total_amount" gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaidAmount        decimal.Decimal `json:"paid_amount" gorm:"column:paid_amount;type:numeric(12,2);not null"`
	RemainingBalance  decimal.Decimal `json:"remaining_balance" gorm:"column:remaining_balance;type:numeric(12,2);not null"`
	CommissionRate    decimal.Decimal `json:"commission_rate" gorm:"column:commission_rate;type:numeric(6,4);not null"`
	CommissionAmount  decimal.Decimal `json:"commission_amount" gorm:"column:commission_amount;type:numeric(12,2);not null"`
	NetAmount         decimal.Decimal `json:"net_amount" gorm:"column:net_amount;type:numeric(12,2);not null"`
	Status            Status          `json:"status" gorm:"column:status;size:20;index;default:active"`
	DueDate           time.Time       `json:"due_date" gorm:"column:due_date;not null"`
	CreatedAt         time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty" gorm:"column:completed_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// New creates an active transaction for an accepted purchase request. DueDate
// is set by the caller once the repayment schedule exists (final installment
// due date).
func New(merchantID, customerID, requestID int64, totalAmount, commissionRate decimal.Decimal) *Transaction {
	commission, net := money.Commission(totalAmount, commissionRate)
	return &Transaction{
		TransactionNumber: refnum.New(refnum.Transaction),
		MerchantID:        merchantID,
		CustomerID:        customerID,
		PurchaseRequestID: requestID,
		TotalAmount:       totalAmount,
		PaidAmount:        decimal.Zero,
		RemainingBalance:  totalAmount,
		CommissionRate:    commissionRate,
		CommissionAmount:  commission,
		NetAmount:         net,
		Status:            StatusActive,
	}
}

// RecordPayment applies amount to the paid/remaining counters. The payment
// engine validates the amount first; a breach here means the engine itself is
// broken and is reported as an invariant violation.
func (t *Transaction) RecordPayment(amount decimal.Decimal) error {
	if amount.GreaterThan(t.RemainingBalance) {
		return internal.NewInvariantError("payment exceeds remaining transaction balance", internal.ErrCodeLedgerInvariant)
	}
	t.PaidAmount = t.PaidAmount.Add(amount)
	t.RemainingBalance = t.RemainingBalance.Sub(amount)
	if t.RemainingBalance.IsZero() {
		now := time.Now().UTC()
		t.Status = StatusCompleted
		t.CompletedAt = &now
	}
	return nil
}

// IsOverdue reports whether unpaid debt remains past the due date.
func (t *Transaction) IsOverdue(now time.Time) bool {
	return now.After(t.DueDate) && money.IsPositive(t.RemainingBalance) && t.Status.CanAcceptPayment()
}
