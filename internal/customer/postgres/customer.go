package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/database"
	"github.com/bareeqalyusr/bnpl-backend/internal/customer"
)

var errCustomerNotFound = internal.NewNotFoundError("Customer not found", internal.ErrCodeCustomerNotFound)

// CustomerRepository implements customer.Repository using GORM.
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*customer.Customer, error) {
	var c customer.Customer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) GetByUserID(ctx context.Context, userID int64) (*customer.Customer, error) {
	var c customer.Customer
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) GetByCode(ctx context.Context, code string) (*customer.Customer, error) {
	var c customer.Customer
	err := r.db.WithContext(ctx).Where("customer_code = ?", code).First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetForUpdate locks the customer row for the remainder of the transaction.
func (r *CustomerRepository) GetForUpdate(ctx context.Context, id int64) (*customer.Customer, error) {
	var c customer.Customer
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *CustomerRepository) CreateLimitHistory(ctx context.Context, h *customer.LimitHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *CustomerRepository) GetLimitHistoryForUpdate(ctx context.Context, id int64) (*customer.LimitHistory, error) {
	var h customer.LimitHistory
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&h).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.NewNotFoundError("Limit request not found", internal.ErrCodeCustomerNotFound)
		}
		return nil, err
	}
	return &h, nil
}

func (r *CustomerRepository) UpdateLimitHistory(ctx context.Context, h *customer.LimitHistory) error {
	return r.db.WithContext(ctx).Save(h).Error
}

func (r *CustomerRepository) ListLimitHistory(ctx context.Context, customerID int64) ([]*customer.LimitHistory, error) {
	var history []*customer.LimitHistory
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&history).Error
	return history, err
}

func (r *CustomerRepository) ListPendingLimitRequests(ctx context.Context, limit, offset int) ([]*customer.LimitHistory, error) {
	var history []*customer.LimitHistory
	err := r.db.WithContext(ctx).
		Where("status = ?", customer.LimitStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&history).Error
	return history, err
}

// TxManager runs customer write flows atomically with bounded retries.
type TxManager struct {
	db       *gorm.DB
	attempts int
}

func NewTxManager(db *gorm.DB, attempts int) *TxManager {
	return &TxManager{db: db, attempts: attempts}
}

func (m *TxManager) RunInTx(ctx context.Context, fn func(repo customer.Repository) error) error {
	return database.InTx(ctx, m.db, m.attempts, func(tx *gorm.DB) error {
		return fn(NewCustomerRepository(tx))
	})
}
