package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/merchant"
)

var errMerchantNotFound = internal.NewNotFoundError("Merchant not found", internal.ErrCodeMerchantNotFound)

type MerchantRepository struct {
	db *gorm.DB
}

func NewMerchantRepository(db *gorm.DB) *MerchantRepository {
	return &MerchantRepository{db: db}
}

func (r *MerchantRepository) Create(ctx context.Context, m *merchant.Merchant) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MerchantRepository) GetByID(ctx context.Context, id int64) (*merchant.Merchant, error) {
	var m merchant.Merchant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errMerchantNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MerchantRepository) GetByUserID(ctx context.Context, userID int64) (*merchant.Merchant, error) {
	var m merchant.Merchant
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errMerchantNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MerchantRepository) GetForUpdate(ctx context.Context, id int64) (*merchant.Merchant, error) {
	var m merchant.Merchant
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errMerchantNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MerchantRepository) Update(ctx context.Context, m *merchant.Merchant) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *MerchantRepository) CountRequestsByStatus(ctx context.Context, merchantID int64, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("purchase_requests").
		Where("merchant_id = ? AND status = ?", merchantID, status).
		Count(&count).Error
	return count, err
}

func (r *MerchantRepository) CountTransactionsByStatus(ctx context.Context, merchantID int64, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("transactions").
		Where("merchant_id = ? AND status = ?", merchantID, status).
		Count(&count).Error
	return count, err
}
