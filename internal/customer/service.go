package customer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/events"
)

// Repository defines the data access methods for customers and their limit
// history. Write-path lookups use GetForUpdate so per-customer operations
// serialize on the customer row.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id int64) (*Customer, error)
	GetByUserID(ctx context.Context, userID int64) (*Customer, error)
	GetByCode(ctx context.Context, code string) (*Customer, error)
	GetForUpdate(ctx context.Context, id int64) (*Customer, error)
	Update(ctx context.Context, c *Customer) error

	CreateLimitHistory(ctx context.Context, h *LimitHistory) error
	GetLimitHistoryForUpdate(ctx context.Context, id int64) (*LimitHistory, error)
	UpdateLimitHistory(ctx context.Context, h *LimitHistory) error
	ListLimitHistory(ctx context.Context, customerID int64) ([]*LimitHistory, error)
	ListPendingLimitRequests(ctx context.Context, limit, offset int) ([]*LimitHistory, error)
}

// TxRunner executes fn atomically against a repository bound to one database
// transaction, retrying bounded times on serialization conflicts.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(repo Repository) error) error
}

type Service struct {
	repo   Repository
	tx     TxRunner
	rules  internal.BusinessRules
	bus    *events.EventBus
	logger *slog.Logger
}

func NewService(repo Repository, tx TxRunner, rules internal.BusinessRules, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		rules:  rules,
		bus:    bus,
		logger: logger,
	}
}

// Register creates the ledger account for a new customer user with the
// platform default credit limit.
func (s *Service) Register(ctx context.Context, userID int64) (*Customer, error) {
	c, err := NewCustomer(userID, s.rules.DefaultCreditLimit)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		s.logger.Error("failed to create customer", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("could not create customer", err)
	}
	return c, nil
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Customer, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// LookupByCode resolves a customer from the short code merchants type in.
func (s *Service) LookupByCode(ctx context.Context, code string) (*Customer, error) {
	return s.repo.GetByCode(ctx, code)
}

func (s *Service) GetLimitHistory(ctx context.Context, customerID int64) ([]*LimitHistory, error) {
	return s.repo.ListLimitHistory(ctx, customerID)
}

func (s *Service) ListPendingLimitRequests(ctx context.Context, limit, offset int) ([]*LimitHistory, error) {
	return s.repo.ListPendingLimitRequests(ctx, limit, offset)
}

// RequestLimitIncrease validates and records a limit increase. Requests at or
// below the auto-approve ceiling are applied immediately; larger requests are
// parked as pending for an admin decision.
func (s *Service) RequestLimitIncrease(ctx context.Context, customerID int64, newLimit decimal.Decimal, reason *string) (*LimitHistory, error) {
	if !newLimit.GreaterThan(decimal.Zero) {
		return nil, internal.NewValidationError("credit limit must be positive", internal.ErrCodeInvalidAmount)
	}
	if newLimit.GreaterThan(s.rules.MaxCreditLimit) {
		return nil, internal.NewBusinessError(
			fmt.Sprintf("maximum credit limit is %s", s.rules.MaxCreditLimit.StringFixed(2)),
			internal.ErrCodeLimitExceedsMax)
	}

	var history *LimitHistory
	err := s.tx.RunInTx(ctx, func(repo Repository) error {
		c, err := repo.GetForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		if !newLimit.GreaterThan(c.CreditLimit) {
			return internal.NewBusinessError("new limit must be greater than the current limit", internal.ErrCodeInvalidState)
		}

		history = &LimitHistory{
			CustomerID:     customerID,
			PreviousLimit:  c.CreditLimit,
			RequestedLimit: newLimit,
			NewLimit:       c.CreditLimit,
			Status:         LimitStatusPending,
			Reason:         reason,
		}

		if newLimit.LessThanOrEqual(s.rules.AutoApproveLimit) {
			if err := c.ApplyLimit(newLimit); err != nil {
				return err
			}
			now := time.Now().UTC()
			history.Status = LimitStatusApproved
			history.NewLimit = newLimit
			history.ApprovedBy = ApprovedByAuto
			history.DecidedAt = &now
			if err := repo.Update(ctx, c); err != nil {
				return err
			}
		}

		return repo.CreateLimitHistory(ctx, history)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("limit increase requested",
		"customer_id", customerID,
		"requested_limit", newLimit.StringFixed(2),
		"status", history.Status)
	s.bus.Publish(ctx, events.NewLimitIncreased(customerID, newLimit.StringFixed(2), string(history.Status)))

	return history, nil
}

// DecideLimitIncrease resolves a pending request. Approval applies the
// requested limit to the customer; rejection only closes the history entry.
func (s *Service) DecideLimitIncrease(ctx context.Context, historyID int64, approve bool, adminID string) (*LimitHistory, error) {
	var history *LimitHistory
	err := s.tx.RunInTx(ctx, func(repo Repository) error {
		h, err := repo.GetLimitHistoryForUpdate(ctx, historyID)
		if err != nil {
			return err
		}
		if !h.IsPending() {
			return internal.NewBusinessError(
				fmt.Sprintf("limit request is already %s", h.Status),
				internal.ErrCodeInvalidState)
		}

		now := time.Now().UTC()
		h.ApprovedBy = adminID
		h.DecidedAt = &now

		if !approve {
			h.Status = LimitStatusRejected
			history = h
			return repo.UpdateLimitHistory(ctx, h)
		}

		c, err := repo.GetForUpdate(ctx, h.CustomerID)
		if err != nil {
			return err
		}
		// The customer's limit may have moved since the request was filed;
		// approving a now-stale request must never lower the limit.
		if !h.RequestedLimit.GreaterThan(c.CreditLimit) {
			return internal.NewBusinessError("requested limit no longer exceeds the current limit", internal.ErrCodeInvalidState)
		}
		if err := c.ApplyLimit(h.RequestedLimit); err != nil {
			return err
		}
		h.Status = LimitStatusApproved
		h.NewLimit = h.RequestedLimit
		if err := repo.Update(ctx, c); err != nil {
			return err
		}
		history = h
		return repo.UpdateLimitHistory(ctx, h)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("limit increase decided",
		"history_id", historyID,
		"status", history.Status,
		"decided_by", adminID)

	return history, nil
}
