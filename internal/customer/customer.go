package customer

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusBlocked   Status = "blocked"
)

// Customer carries the credit ledger for one borrower. The reservation model
// invariant holds at all times: AvailableBalance + OutstandingBalance ==
// CreditLimit. Accepting a purchase moves money from available to
// outstanding; repayment moves it back.
type Customer struct {
	ID                 int64           `json:"id" gorm:"primaryKey"`
	UserID             int64           `json:"user_id" gorm:"column:user_id;uniqueIndex;not null"`
	CustomerCode       string          `json:"customer_code" gorm:"column:customer_code;size:8;uniqueIndex;not null"`
	CreditLimit        decimal.Decimal `json:"credit_limit" gorm:"column:credit_limit;type:numeric(12,2);not null"`
	AvailableBalance   decimal.Decimal `json:"available_balance" gorm:"column:available_balance;type:numeric(12,2);not null"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance" gorm:"column:outstanding_balance;type:numeric(12,2);not null"`
	Status             Status          `json:"status" gorm:"column:status;size:20;default:active"`
	CreatedAt          time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Customer) TableName() string {
	return "customers"
}

// code alphabet excludes ambiguous characters (0, O, I, L, 1)
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func GenerateCustomerCode() (string, error) {
	code := make([]byte, 8)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", internal.NewInternalError("could not generate customer code", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// NewCustomer creates an active customer with the full default limit available.
func NewCustomer(userID int64, creditLimit decimal.Decimal) (*Customer, error) {
	code, err := GenerateCustomerCode()
	if err != nil {
		return nil, err
	}
	return &Customer{
		UserID:             userID,
		CustomerCode:       code,
		CreditLimit:        creditLimit,
		AvailableBalance:   creditLimit,
		OutstandingBalance: decimal.Zero,
		Status:             StatusActive,
	}, nil
}

func (c *Customer) IsActive() bool {
	return c.Status == StatusActive
}

// CanAfford reports whether amount fits in the available balance.
func (c *Customer) CanAfford(amount decimal.Decimal) bool {
	return c.IsActive() && c.AvailableBalance.GreaterThanOrEqual(amount)
}

// Reserve moves amount from available to outstanding. Fails with
// INSUFFICIENT_CREDIT when the available balance does not cover it.
func (c *Customer) Reserve(amount decimal.Decimal) error {
	if !c.IsActive() {
		return internal.NewBusinessError("customer account is not active", internal.ErrCodeCustomerInactive)
	}
	if amount.GreaterThan(c.AvailableBalance) {
		return internal.NewBusinessError("insufficient available credit", internal.ErrCodeInsufficientCredit)
	}
	c.AvailableBalance = c.AvailableBalance.Sub(amount)
	c.OutstandingBalance = c.OutstandingBalance.Add(amount)
	return c.CheckInvariant()
}

// Release moves amount back from outstanding to available. A release that
// would push the outstanding balance negative is a caller bug, surfaced as an
// invariant violation rather than silently clamped.
func (c *Customer) Release(amount decimal.Decimal) error {
	if amount.GreaterThan(c.OutstandingBalance) {
		return internal.NewInvariantError("credit release exceeds outstanding balance", internal.ErrCodeLedgerInvariant)
	}
	c.AvailableBalance = c.AvailableBalance.Add(amount)
	c.OutstandingBalance = c.OutstandingBalance.Sub(amount)
	return c.CheckInvariant()
}

// ApplyLimit raises the credit limit and frees the delta into the available
// balance. Callers validate the new limit against business rules first.
func (c *Customer) ApplyLimit(newLimit decimal.Decimal) error {
	delta := newLimit.Sub(c.CreditLimit)
	c.CreditLimit = newLimit
	c.AvailableBalance = c.AvailableBalance.Add(delta)
	return c.CheckInvariant()
}

// CheckInvariant verifies available + outstanding == credit limit.
func (c *Customer) CheckInvariant() error {
	if !c.AvailableBalance.Add(c.OutstandingBalance).Equal(c.CreditLimit) {
		return internal.NewInvariantError("customer balances do not sum to credit limit", internal.ErrCodeLedgerInvariant)
	}
	if c.AvailableBalance.IsNegative() || c.OutstandingBalance.IsNegative() {
		return internal.NewInvariantError("customer balance is negative", internal.ErrCodeLedgerInvariant)
	}
	return nil
}

type LimitStatus string

const (
	LimitStatusPending  LimitStatus = "pending"
	LimitStatusApproved LimitStatus = "approved"
	LimitStatusRejected LimitStatus = "rejected"
)

const ApprovedByAuto = "auto"

// LimitHistory records one credit limit change request for audit.
type LimitHistory struct {
	ID             int64           `json:"id" gorm:"primaryKey"`
	CustomerID     int64           `json:"customer_id" gorm:"column:customer_id;index;not null"`
	PreviousLimit  decimal.Decimal `json:"previous_limit" gorm:"column:previous_limit;type:numeric(12,2);not null"`
	RequestedLimit decimal.Decimal `json:"requested_limit" gorm:"column:requested_limit;type:numeric(12,2);not null"`
	NewLimit       decimal.Decimal `json:"new_limit" gorm:"column:new_limit;type:numeric(12,2);not null"`
	Status         LimitStatus     `json:"status" gorm:"column:status;size:20;default:pending"`
	Reason         *string         `json:"reason,omitempty" gorm:"column:reason;size:255"`
	ApprovedBy     string          `json:"approved_by" gorm:"column:approved_by;size:50"`
	CreatedAt      time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	DecidedAt      *time.Time      `json:"decided_at,omitempty" gorm:"column:decided_at"`
}

func (LimitHistory) TableName() string {
	return "customer_limit_history"
}

func (h *LimitHistory) IsPending() bool {
	return h.Status == LimitStatusPending
}
