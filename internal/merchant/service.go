package merchant

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/cache"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/events"
)

type Repository interface {
	Create(ctx context.Context, m *Merchant) error
	GetByID(ctx context.Context, id int64) (*Merchant, error)
	GetByUserID(ctx context.Context, userID int64) (*Merchant, error)
	GetForUpdate(ctx context.Context, id int64) (*Merchant, error)
	Update(ctx context.Context, m *Merchant) error
	CountRequestsByStatus(ctx context.Context, merchantID int64, status string) (int64, error)
	CountTransactionsByStatus(ctx context.Context, merchantID int64, status string) (int64, error)
}

// Stats is the merchant dashboard read model.
type Stats struct {
	MerchantID            int64           `json:"merchant_id"`
	ShopName              string          `json:"shop_name"`
	Balance               decimal.Decimal `json:"balance"`
	TotalTransactions     int64           `json:"total_transactions"`
	TotalVolume           decimal.Decimal `json:"total_volume"`
	TotalCommissionPaid   decimal.Decimal `json:"total_commission_paid"`
	PendingRequests       int64           `json:"pending_requests"`
	ActiveTransactions    int64           `json:"active_transactions"`
	CompletedTransactions int64           `json:"completed_transactions"`
}

type Service struct {
	repo   Repository
	cache  *cache.Cache
	logger *slog.Logger
}

func NewService(repo Repository, statsCache *cache.Cache, bus *events.EventBus, logger *slog.Logger) *Service {
	s := &Service{repo: repo, cache: statsCache, logger: logger}

	// stats are cached per merchant; any ledger write that moves merchant
	// money or counters drops the cached view
	invalidate := func(ctx context.Context, event events.Event) error {
		data, ok := event.Payload().(map[string]interface{})
		if !ok {
			return nil
		}
		if id, ok := data["merchant_id"].(int64); ok {
			s.cache.Delete(ctx, cache.MerchantStatsKey(id))
		}
		return nil
	}
	bus.Subscribe(events.EventPurchaseAccepted, invalidate)
	bus.Subscribe(events.EventTransactionCompleted, invalidate)
	bus.Subscribe(events.EventSettlementCreated, invalidate)

	return s
}

// Register creates the merchant profile for a newly registered user.
func (s *Service) Register(ctx context.Context, userID int64, shopName string) (*Merchant, error) {
	m := NewMerchant(userID, shopName)
	if err := s.repo.Create(ctx, m); err != nil {
		s.logger.Error("failed to create merchant", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("could not create merchant", err)
	}
	return m, nil
}

func (s *Service) GetMerchant(ctx context.Context, id int64) (*Merchant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Merchant, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// GetStats returns the dashboard stats, served from cache when fresh.
func (s *Service) GetStats(ctx context.Context, merchantID int64) (*Stats, error) {
	key := cache.MerchantStatsKey(merchantID)

	var cached Stats
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("merchant stats cache read failed", "merchant_id", merchantID, "error", err)
	}

	m, err := s.repo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		MerchantID:          m.ID,
		ShopName:            m.ShopName,
		Balance:             m.Balance,
		TotalTransactions:   m.TotalTransactions,
		TotalVolume:         m.TotalVolume,
		TotalCommissionPaid: m.TotalCommissionPaid,
	}
	if stats.PendingRequests, err = s.repo.CountRequestsByStatus(ctx, merchantID, "pending"); err != nil {
		return nil, err
	}
	if stats.ActiveTransactions, err = s.repo.CountTransactionsByStatus(ctx, merchantID, "active"); err != nil {
		return nil, err
	}
	if stats.CompletedTransactions, err = s.repo.CountTransactionsByStatus(ctx, merchantID, "completed"); err != nil {
		return nil, err
	}

	s.cache.SetJSON(ctx, key, stats)
	return stats, nil
}
