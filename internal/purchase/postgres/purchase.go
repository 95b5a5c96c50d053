package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/database"
	customerpg "github.com/bareeqalyusr/bnpl-backend/internal/customer/postgres"
	merchantpg "github.com/bareeqalyusr/bnpl-backend/internal/merchant/postgres"
	"github.com/bareeqalyusr/bnpl-backend/internal/purchase"
	repaymentpg "github.com/bareeqalyusr/bnpl-backend/internal/repayment/postgres"
	settlementpg "github.com/bareeqalyusr/bnpl-backend/internal/settlement/postgres"
	transactionpg "github.com/bareeqalyusr/bnpl-backend/internal/transaction/postgres"
)

var errRequestNotFound = internal.NewNotFoundError("Purchase request not found", internal.ErrCodeRequestNotFound)

// RequestRepository implements purchase.Repository using GORM.
type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) Create(ctx context.Context, req *purchase.Request) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*purchase.Request, error) {
	var req purchase.Request
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

// GetForUpdate locks the request row so concurrent responses serialize.
func (r *RequestRepository) GetForUpdate(ctx context.Context, id int64) (*purchase.Request, error) {
	var req purchase.Request
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *RequestRepository) Update(ctx context.Context, req *purchase.Request) error {
	return r.db.WithContext(ctx).Save(req).Error
}

func (r *RequestRepository) ListByCustomer(ctx context.Context, customerID int64, status string, limit, offset int) ([]*purchase.Request, error) {
	return r.list(ctx, "customer_id", customerID, status, limit, offset)
}

func (r *RequestRepository) ListByMerchant(ctx context.Context, merchantID int64, status string, limit, offset int) ([]*purchase.Request, error) {
	return r.list(ctx, "merchant_id", merchantID, status, limit, offset)
}

func (r *RequestRepository) list(ctx context.Context, column string, id int64, status string, limit, offset int) ([]*purchase.Request, error) {
	q := r.db.WithContext(ctx).Where(column+" = ?", id)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var reqs []*purchase.Request
	err := q.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&reqs).Error
	return reqs, err
}

// ListExpiredPending returns pending requests whose window has passed,
// candidates for the expiry sweep.
func (r *RequestRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*purchase.Request, error) {
	var reqs []*purchase.Request
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", purchase.StatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&reqs).Error
	return reqs, err
}

// TxManager runs purchase write flows atomically with bounded retries. The
// accept flow spans six tables, so the bundle hands out every sibling
// repository bound to the same transaction.
type TxManager struct {
	db       *gorm.DB
	attempts int
}

func NewTxManager(db *gorm.DB, attempts int) *TxManager {
	return &TxManager{db: db, attempts: attempts}
}

func (m *TxManager) RunInTx(ctx context.Context, fn func(repos purchase.TxRepos) error) error {
	return database.InTx(ctx, m.db, m.attempts, func(tx *gorm.DB) error {
		return fn(purchase.TxRepos{
			Requests:     NewRequestRepository(tx),
			Customers:    customerpg.NewCustomerRepository(tx),
			Merchants:    merchantpg.NewMerchantRepository(tx),
			Transactions: transactionpg.NewTransactionRepository(tx),
			Plans:        repaymentpg.NewRepaymentRepository(tx),
			Settlements:  settlementpg.NewSettlementRepository(tx),
		})
	})
}
