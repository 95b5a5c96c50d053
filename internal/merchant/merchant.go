package merchant

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
)

type Status string

const (
	StatusActive          Status = "active"
	StatusSuspended       Status = "suspended"
	StatusPendingApproval Status = "pending_approval"
)

// Merchant is a seller on the platform. Balance is the withdrawable amount
// accrued from settled transactions net of commission; it is only mutated
// inside row-locked transactions.
type Merchant struct {
	ID                  int64           `json:"id" gorm:"primaryKey"`
	UserID              int64           `json:"user_id" gorm:"column:user_id;uniqueIndex;not null"`
	ShopName            string          `json:"shop_name" gorm:"column:shop_name;size:255;not null"`
	BankName            *string         `json:"bank_name,omitempty" gorm:"column:bank_name;size:100"`
	BankAccount         *string         `json:"bank_account,omitempty" gorm:"column:bank_account;size:50"`
	IBAN                *string         `json:"iban,omitempty" gorm:"column:iban;size:34"`
	Status              Status          `json:"status" gorm:"column:status;size:20;default:active"`
	IsVerified          bool            `json:"is_verified" gorm:"column:is_verified;default:false"`
	TotalTransactions   int64           `json:"total_transactions" gorm:"column:total_transactions;default:0"`
	TotalVolume         decimal.Decimal `json:"total_volume" gorm:"column:total_volume;type:numeric(14,2);not null"`
	Balance             decimal.Decimal `json:"balance" gorm:"column:balance;type:numeric(14,2);not null"`
	TotalCommissionPaid decimal.Decimal `json:"total_commission_paid" gorm:"column:total_commission_paid;type:numeric(14,2);not null"`
	CreatedAt           time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Merchant) TableName() string {
	return "merchants"
}

func NewMerchant(userID int64, shopName string) *Merchant {
	return &Merchant{
		UserID:              userID,
		ShopName:            shopName,
		Status:              StatusActive,
		TotalVolume:         decimal.Zero,
		Balance:             decimal.Zero,
		TotalCommissionPaid: decimal.Zero,
	}
}

func (m *Merchant) IsActive() bool {
	return m.Status == StatusActive
}

// RecordSale updates volume counters when a purchase is accepted.
func (m *Merchant) RecordSale(amount decimal.Decimal) {
	m.TotalTransactions++
	m.TotalVolume = m.TotalVolume.Add(amount)
}

// Credit adds a settled net amount to the withdrawable balance and tracks the
// commission retained by the platform.
func (m *Merchant) Credit(netAmount, commissionAmount decimal.Decimal) {
	m.Balance = m.Balance.Add(netAmount)
	m.TotalCommissionPaid = m.TotalCommissionPaid.Add(commissionAmount)
}

// Debit removes amount from the withdrawable balance. Fails with
// INSUFFICIENT_BALANCE when the balance does not cover it.
func (m *Merchant) Debit(amount decimal.Decimal) error {
	if amount.GreaterThan(m.Balance) {
		return internal.NewBusinessError("insufficient merchant balance", internal.ErrCodeInsufficientBalance)
	}
	m.Balance = m.Balance.Sub(amount)
	return nil
}

// Refund returns a previously debited amount, used when a withdrawal fails
// after the optimistic decrement.
func (m *Merchant) Refund(amount decimal.Decimal) {
	m.Balance = m.Balance.Add(amount)
}

// BankDetails is the payout destination snapshot stored on settlements.
type BankDetails struct {
	BankName    string `json:"bank_name"`
	BankAccount string `json:"bank_account"`
	IBAN        string `json:"iban"`
}

func (d BankDetails) Validate() error {
	if d.BankName == "" || d.IBAN == "" {
		return internal.NewValidationError("bank_name and iban are required", internal.ErrCodeValidationFailed)
	}
	return nil
}
