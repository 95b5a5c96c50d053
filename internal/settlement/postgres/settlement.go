package postgres

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/database"
	merchantpg "github.com/bareeqalyusr/bnpl-backend/internal/merchant/postgres"
	"github.com/bareeqalyusr/bnpl-backend/internal/settlement"
)

var errSettlementNotFound = internal.NewNotFoundError("Settlement not found", internal.ErrCodeSettlementNotFound)

// SettlementRepository implements settlement.Repository using GORM.
type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) Create(ctx context.Context, s *settlement.Settlement) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SettlementRepository) GetByID(ctx context.Context, id int64) (*settlement.Settlement, error) {
	var s settlement.Settlement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errSettlementNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetForUpdate locks the settlement row for the remainder of the transaction.
func (r *SettlementRepository) GetForUpdate(ctx context.Context, id int64) (*settlement.Settlement, error) {
	var s settlement.Settlement
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errSettlementNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SettlementRepository) Update(ctx context.Context, s *settlement.Settlement) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *SettlementRepository) ListByMerchant(ctx context.Context, merchantID int64, settlementType, status string, limit, offset int) ([]*settlement.Settlement, error) {
	q := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID)
	if settlementType != "" {
		q = q.Where("settlement_type = ?", settlementType)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var settlements []*settlement.Settlement
	err := q.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&settlements).Error
	return settlements, err
}

func (r *SettlementRepository) ListPending(ctx context.Context, limit int) ([]*settlement.Settlement, error) {
	var settlements []*settlement.Settlement
	err := r.db.WithContext(ctx).
		Where("status = ?", settlement.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&settlements).Error
	return settlements, err
}

// TotalCommission sums the commission retained across completed income
// settlements, the platform's revenue figure.
func (r *SettlementRepository) TotalCommission(ctx context.Context) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&settlement.Settlement{}).
		Select("COALESCE(SUM(commission_amount), 0) AS total").
		Where("settlement_type = ? AND status = ?", settlement.TypeIncome, settlement.StatusCompleted).
		Scan(&row).Error
	return row.Total, err
}

// TxManager runs settlement write flows atomically with bounded retries.
type TxManager struct {
	db       *gorm.DB
	attempts int
}

func NewTxManager(db *gorm.DB, attempts int) *TxManager {
	return &TxManager{db: db, attempts: attempts}
}

func (m *TxManager) RunInTx(ctx context.Context, fn func(repos settlement.TxRepos) error) error {
	return database.InTx(ctx, m.db, m.attempts, func(tx *gorm.DB) error {
		return fn(settlement.TxRepos{
			Settlements: NewSettlementRepository(tx),
			Merchants:   merchantpg.NewMerchantRepository(tx),
		})
	})
}
