package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/refnum"
	"github.com/bareeqalyusr/bnpl-backend/internal/merchant"
	"github.com/bareeqalyusr/bnpl-backend/internal/money"
)

type Type string

const (
	TypeIncome     Type = "income"
	TypeWithdrawal Type = "withdrawal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Settlement is a merchant payout record: income settlements accrue the net
// amount of accepted transactions, withdrawal settlements draw against the
// merchant balance.
type Settlement struct {
	ID                  int64           `json:"id" gorm:"primaryKey"`
	SettlementReference string          `json:"settlement_reference" gorm:"column:settlement_reference;size:50;uniqueIndex;not null"`
	MerchantID          int64           `json:"merchant_id" gorm:"column:merchant_id;index;not null"`
	TransactionID       *int64          `json:"transaction_id,omitempty" gorm:"column:transaction_id;uniqueIndex"`
	SettlementType      Type            `json:"settlement_type" gorm:"column:settlement_type;size:20;index;default:income"`
	GrossAmount         decimal.Decimal `json:"gross_amount" gorm:"column:gross_amount;type:numeric(12,2);not null"`
	CommissionRate      decimal.Decimal `json:"commission_rate" gorm:"column:commission_rate;type:numeric(6,4);not null"`
	CommissionAmount    decimal.Decimal `json:"commission_amount" gorm:"column:commission_amount;type:numeric(12,2);not null"`
	NetAmount           decimal.Decimal `json:"net_amount" gorm:"column:net_amount;type:numeric(12,2);not null"`
	Status              Status          `json:"status" gorm:"column:status;size:20;index;default:pending"`
	BankName            *string         `json:"bank_name,omitempty" gorm:"column:bank_name;size:100"`
	BankAccount         *string         `json:"bank_account,omitempty" gorm:"column:bank_account;size:50"`
	IBAN                *string         `json:"iban,omitempty" gorm:"column:iban;size:34"`
	BankReference       *string         `json:"bank_reference,omitempty" gorm:"column:bank_reference;size:100"`
	FailureReason       *string         `json:"failure_reason,omitempty" gorm:"column:failure_reason;size:255"`
	CreatedAt           time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	ProcessedAt         *time.Time      `json:"processed_at,omitempty" gorm:"column:processed_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty" gorm:"column:completed_at"`
}

func (Settlement) TableName() string {
	return "settlements"
}

// NewIncome builds the settlement that accrues a transaction's net amount to
// the merchant. Commission and net are taken from the transaction so the
// rate locked at creation is never recomputed. Income settlements complete
// immediately: the merchant balance is credited when the purchase is
// accepted, independent of repayment timing.
func NewIncome(m *merchant.Merchant, transactionID int64, gross, rate, commission, net decimal.Decimal) *Settlement {
	now := time.Now().UTC()
	return &Settlement{
		SettlementReference: refnum.New(refnum.Settlement),
		MerchantID:          m.ID,
		TransactionID:       &transactionID,
		SettlementType:      TypeIncome,
		GrossAmount:         gross,
		CommissionRate:      rate,
		CommissionAmount:    commission,
		NetAmount:           net,
		Status:              StatusCompleted,
		BankName:            m.BankName,
		BankAccount:         m.BankAccount,
		IBAN:                m.IBAN,
		CompletedAt:         &now,
	}
}

// NewWithdrawal builds a pending withdrawal draw. No commission applies; the
// merchant balance is decremented optimistically by the caller and restored
// if the settlement later fails.
func NewWithdrawal(merchantID int64, amount decimal.Decimal, bank merchant.BankDetails) *Settlement {
	return &Settlement{
		SettlementReference: refnum.New(refnum.Settlement),
		MerchantID:          merchantID,
		SettlementType:      TypeWithdrawal,
		GrossAmount:         amount,
		CommissionRate:      decimal.Zero,
		CommissionAmount:    decimal.Zero,
		NetAmount:           amount,
		Status:              StatusPending,
		BankName:            &bank.BankName,
		BankAccount:         &bank.BankAccount,
		IBAN:                &bank.IBAN,
	}
}

func (s *Settlement) MarkProcessing() error {
	if s.Status != StatusPending {
		return internal.NewBusinessError("settlement is not pending", internal.ErrCodeInvalidState)
	}
	now := time.Now().UTC()
	s.Status = StatusProcessing
	s.ProcessedAt = &now
	return nil
}

func (s *Settlement) MarkCompleted(bankReference string) error {
	if s.Status != StatusPending && s.Status != StatusProcessing {
		return internal.NewBusinessError("settlement cannot be completed from its current status", internal.ErrCodeInvalidState)
	}
	now := time.Now().UTC()
	s.Status = StatusCompleted
	s.CompletedAt = &now
	if bankReference != "" {
		s.BankReference = &bankReference
	}
	return nil
}

func (s *Settlement) MarkFailed(reason string) error {
	if s.Status == StatusCompleted || s.Status == StatusFailed {
		return internal.NewBusinessError("settlement is already finalized", internal.ErrCodeInvalidState)
	}
	s.Status = StatusFailed
	s.FailureReason = &reason
	return nil
}

// IsWithdrawal reports whether failing this settlement must refund the
// merchant balance.
func (s *Settlement) IsWithdrawal() bool {
	return s.SettlementType == TypeWithdrawal
}

// ComputeNet is the commission split used for income settlements:
// commission rounds half-up to two decimals and net is the exact remainder.
func ComputeNet(gross, rate decimal.Decimal) (commission, net decimal.Decimal) {
	return money.Commission(gross, rate)
}
