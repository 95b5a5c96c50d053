package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal/core/refnum"
)

// Method is how the customer funded the payment. Only the in-app wallet is
// supported today.
type Method string

const MethodWallet Method = "wallet"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Payment is the immutable record of a single repayment. Amounts here always
// reconcile with the transaction counters: a payment is only written in the
// same database transaction that moves them.
type Payment struct {
	ID               int64           `json:"id" gorm:"primaryKey"`
	PaymentReference string          `json:"payment_reference" gorm:"column:payment_reference;size:50;uniqueIndex;not null"`
	TransactionID    int64           `json:"transaction_id" gorm:"column:transaction_id;index;not null"`
	CustomerID       int64           `json:"customer_id" gorm:"column:customer_id;index;not null"`
	Amount           decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(12,2);not null"`
	Method           Method          `json:"payment_method" gorm:"column:payment_method;size:20;not null;default:wallet"`
	Status           Status          `json:"status" gorm:"column:status;size:20;index;not null;default:completed"`
	RowsCompleted    int             `json:"rows_completed" gorm:"column:rows_completed;not null"`
	BalanceAfter     decimal.Decimal `json:"balance_after" gorm:"column:balance_after;type:numeric(12,2);not null"`
	CreatedAt        time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Payment) TableName() string {
	return "payments"
}

// New records a payment that has already been applied. BalanceAfter is the
// transaction's remaining balance once amount is absorbed. Wallet payments
// settle synchronously, so the record is born completed.
func New(transactionID, customerID int64, amount, balanceAfter decimal.Decimal, rowsCompleted int) *Payment {
	return &Payment{
		PaymentReference: refnum.New(refnum.Payment),
		TransactionID:    transactionID,
		CustomerID:       customerID,
		Amount:           amount,
		Method:           MethodWallet,
		Status:           StatusCompleted,
		RowsCompleted:    rowsCompleted,
		BalanceAfter:     balanceAfter,
	}
}
