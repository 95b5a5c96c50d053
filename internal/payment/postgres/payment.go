package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/bareeqalyusr/bnpl-backend/internal/core/database"
	customerpg "github.com/bareeqalyusr/bnpl-backend/internal/customer/postgres"
	"github.com/bareeqalyusr/bnpl-backend/internal/payment"
	repaymentpg "github.com/bareeqalyusr/bnpl-backend/internal/repayment/postgres"
	transactionpg "github.com/bareeqalyusr/bnpl-backend/internal/transaction/postgres"
)

// PaymentRepository implements payment.Repository using GORM.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) ListByTransaction(ctx context.Context, transactionID int64) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&payments).Error
	return payments, err
}

// TxManager runs payment write flows atomically with bounded retries.
type TxManager struct {
	db       *gorm.DB
	attempts int
}

func NewTxManager(db *gorm.DB, attempts int) *TxManager {
	return &TxManager{db: db, attempts: attempts}
}

func (m *TxManager) RunInTx(ctx context.Context, fn func(repos payment.TxRepos) error) error {
	return database.InTx(ctx, m.db, m.attempts, func(tx *gorm.DB) error {
		return fn(payment.TxRepos{
			Payments:     NewPaymentRepository(tx),
			Transactions: transactionpg.NewTransactionRepository(tx),
			Plans:        repaymentpg.NewRepaymentRepository(tx),
			Customers:    customerpg.NewCustomerRepository(tx),
		})
	})
}
