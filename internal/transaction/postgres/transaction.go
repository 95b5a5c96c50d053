package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/transaction"
)

var errTransactionNotFound = internal.NewNotFoundError("Transaction not found", internal.ErrCodeTransactionNotFound)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*transaction.Transaction, error) {
	var t transaction.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) GetForUpdate(ctx context.Context, id int64) (*transaction.Transaction, error) {
	var t transaction.Transaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) Update(ctx context.Context, t *transaction.Transaction) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *TransactionRepository) ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]*transaction.Transaction, error) {
	var txns []*transaction.Transaction
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txns).Error
	return txns, err
}

func (r *TransactionRepository) ListByMerchant(ctx context.Context, merchantID int64, limit, offset int) ([]*transaction.Transaction, error) {
	var txns []*transaction.Transaction
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txns).Error
	return txns, err
}

// ListOverdue returns transactions that still owe money past their due date,
// used by the sweep worker to persist the overdue status.
func (r *TransactionRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*transaction.Transaction, error) {
	var txns []*transaction.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ? AND remaining_balance > 0", transaction.StatusActive, now).
		Limit(limit).
		Find(&txns).Error
	return txns, err
}
