package settlement

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/events"
	"github.com/bareeqalyusr/bnpl-backend/internal/merchant"
	"github.com/bareeqalyusr/bnpl-backend/internal/money"
)

type Repository interface {
	Create(ctx context.Context, s *Settlement) error
	GetByID(ctx context.Context, id int64) (*Settlement, error)
	GetForUpdate(ctx context.Context, id int64) (*Settlement, error)
	Update(ctx context.Context, s *Settlement) error
	ListByMerchant(ctx context.Context, merchantID int64, settlementType, status string, limit, offset int) ([]*Settlement, error)
	ListPending(ctx context.Context, limit int) ([]*Settlement, error)
	TotalCommission(ctx context.Context) (decimal.Decimal, error)
}

type MerchantStore interface {
	GetByID(ctx context.Context, id int64) (*merchant.Merchant, error)
	GetForUpdate(ctx context.Context, id int64) (*merchant.Merchant, error)
	Update(ctx context.Context, m *merchant.Merchant) error
}

// TxRepos bundles the repositories a withdrawal flow touches under one
// database transaction.
type TxRepos struct {
	Settlements Repository
	Merchants   MerchantStore
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(repos TxRepos) error) error
}

type Service struct {
	repo   Repository
	tx     TxRunner
	bus    *events.EventBus
	logger *slog.Logger
}

func NewService(repo Repository, tx TxRunner, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{repo: repo, tx: tx, bus: bus, logger: logger}
}

// RequestWithdrawal debits the merchant balance up front and records a
// pending withdrawal. The debit is optimistic: a later ProcessWithdrawal
// failure refunds it.
func (s *Service) RequestWithdrawal(ctx context.Context, merchantID int64, dto WithdrawalDTO) (SettlementView, error) {
	amount, bank, err := dto.Parse()
	if err != nil {
		return SettlementView{}, err
	}

	var created *Settlement
	err = s.tx.RunInTx(ctx, func(repos TxRepos) error {
		m, err := repos.Merchants.GetForUpdate(ctx, merchantID)
		if err != nil {
			return err
		}
		if !m.IsActive() {
			return internal.NewBusinessError("merchant account is not active", internal.ErrCodeInvalidState)
		}
		if err := m.Debit(amount); err != nil {
			return err
		}
		if err := repos.Merchants.Update(ctx, m); err != nil {
			return err
		}
		created = NewWithdrawal(m.ID, amount, bank)
		return repos.Settlements.Create(ctx, created)
	})
	if err != nil {
		return SettlementView{}, err
	}

	s.bus.Publish(ctx, events.NewSettlementCreated(created.ID, merchantID, string(TypeWithdrawal), created.NetAmount.StringFixed(2)))
	s.logger.Info("withdrawal requested",
		"settlement_id", created.ID,
		"reference", created.SettlementReference,
		"merchant_id", merchantID,
		"amount", amount.StringFixed(2),
	)
	return NewSettlementView(created), nil
}

// ProcessWithdrawal finalizes a pending withdrawal: success records the bank
// reference, failure refunds the merchant balance that was debited when the
// withdrawal was requested.
func (s *Service) ProcessWithdrawal(ctx context.Context, settlementID int64, dto ProcessDTO) (SettlementView, error) {
	if err := dto.Validate(); err != nil {
		return SettlementView{}, err
	}

	var view SettlementView
	err := s.tx.RunInTx(ctx, func(repos TxRepos) error {
		stl, err := repos.Settlements.GetForUpdate(ctx, settlementID)
		if err != nil {
			return err
		}
		if !stl.IsWithdrawal() {
			return internal.NewBusinessError("only withdrawal settlements are processed manually", internal.ErrCodeInvalidState)
		}

		if dto.Succeeded() {
			if err := stl.MarkCompleted(dto.BankReference); err != nil {
				return err
			}
		} else {
			if err := stl.MarkFailed(dto.FailureReason); err != nil {
				return err
			}
			m, err := repos.Merchants.GetForUpdate(ctx, stl.MerchantID)
			if err != nil {
				return err
			}
			m.Refund(stl.GrossAmount)
			if err := repos.Merchants.Update(ctx, m); err != nil {
				return err
			}
		}

		if err := repos.Settlements.Update(ctx, stl); err != nil {
			return err
		}
		view = NewSettlementView(stl)
		return nil
	})
	if err != nil {
		return SettlementView{}, err
	}

	s.logger.Info("withdrawal processed",
		"settlement_id", settlementID,
		"status", view.Status,
	)
	return view, nil
}

// GetForMerchant returns one settlement scoped to its merchant.
func (s *Service) GetForMerchant(ctx context.Context, merchantID, settlementID int64) (SettlementView, error) {
	stl, err := s.repo.GetByID(ctx, settlementID)
	if err != nil {
		return SettlementView{}, err
	}
	if stl.MerchantID != merchantID {
		return SettlementView{}, internal.NewForbiddenError("settlement does not belong to this merchant", internal.ErrCodeUnauthorizedAccess)
	}
	return NewSettlementView(stl), nil
}

func (s *Service) ListForMerchant(ctx context.Context, merchantID int64, settlementType, status string, limit, offset int) ([]SettlementView, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	settlements, err := s.repo.ListByMerchant(ctx, merchantID, settlementType, status, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]SettlementView, len(settlements))
	for i, stl := range settlements {
		views[i] = NewSettlementView(stl)
	}
	return views, nil
}

// ListPending returns withdrawals awaiting processing, oldest first. Admin
// only.
func (s *Service) ListPending(ctx context.Context, limit int) ([]SettlementView, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	settlements, err := s.repo.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	views := make([]SettlementView, len(settlements))
	for i, stl := range settlements {
		views[i] = NewSettlementView(stl)
	}
	return views, nil
}

// PlatformRevenue reports the commission retained across all settled income.
func (s *Service) PlatformRevenue(ctx context.Context) (RevenueView, error) {
	total, err := s.repo.TotalCommission(ctx)
	if err != nil {
		return RevenueView{}, err
	}
	return RevenueView{TotalCommission: total.StringFixed(2), AsOf: time.Now().UTC()}, nil
}

// WithdrawalDTO is the merchant-facing payload for drawing down the balance.
// Bank fields override the merchant's stored details for this withdrawal
// only.
type WithdrawalDTO struct {
	Amount      string `json:"amount"`
	BankName    string `json:"bank_name"`
	BankAccount string `json:"bank_account"`
	IBAN        string `json:"iban"`
}

func (d *WithdrawalDTO) Parse() (decimal.Decimal, merchant.BankDetails, error) {
	amount, err := money.FromString(strings.TrimSpace(d.Amount))
	if err != nil {
		return decimal.Zero, merchant.BankDetails{}, internal.NewValidationError("amount must be a valid decimal amount", internal.ErrCodeInvalidAmount)
	}
	if !money.IsPositive(amount) {
		return decimal.Zero, merchant.BankDetails{}, internal.NewValidationError("amount must be positive", internal.ErrCodeInvalidAmount)
	}
	bank := merchant.BankDetails{
		BankName:    strings.TrimSpace(d.BankName),
		BankAccount: strings.TrimSpace(d.BankAccount),
		IBAN:        strings.TrimSpace(d.IBAN),
	}
	if err := bank.Validate(); err != nil {
		return decimal.Zero, merchant.BankDetails{}, err
	}
	return amount, bank, nil
}

// ProcessDTO records the outcome of a withdrawal attempt.
type ProcessDTO struct {
	Outcome       string `json:"outcome"`
	BankReference string `json:"bank_reference,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (d *ProcessDTO) Validate() error {
	switch d.Outcome {
	case "completed":
		return nil
	case "failed":
		if strings.TrimSpace(d.FailureReason) == "" {
			return internal.NewValidationError("failure_reason is required when outcome is failed", internal.ErrCodeValidationFailed)
		}
		return nil
	default:
		return internal.NewValidationError("outcome must be completed or failed", internal.ErrCodeValidationFailed)
	}
}

func (d *ProcessDTO) Succeeded() bool {
	return d.Outcome == "completed"
}

// SettlementView is the read shape for settlements.
type SettlementView struct {
	ID                  int64      `json:"id"`
	SettlementReference string     `json:"settlement_reference"`
	MerchantID          int64      `json:"merchant_id"`
	TransactionID       *int64     `json:"transaction_id,omitempty"`
	SettlementType      Type       `json:"settlement_type"`
	GrossAmount         string     `json:"gross_amount"`
	CommissionRate      string     `json:"commission_rate"`
	CommissionAmount    string     `json:"commission_amount"`
	NetAmount           string     `json:"net_amount"`
	Status              Status     `json:"status"`
	BankName            *string    `json:"bank_name,omitempty"`
	BankReference       *string    `json:"bank_reference,omitempty"`
	FailureReason       *string    `json:"failure_reason,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

func NewSettlementView(s *Settlement) SettlementView {
	return SettlementView{
		ID:                  s.ID,
		SettlementReference: s.SettlementReference,
		MerchantID:          s.MerchantID,
		TransactionID:       s.TransactionID,
		SettlementType:      s.SettlementType,
		GrossAmount:         s.GrossAmount.StringFixed(2),
		CommissionRate:      s.CommissionRate.String(),
		CommissionAmount:    s.CommissionAmount.StringFixed(2),
		NetAmount:           s.NetAmount.StringFixed(2),
		Status:              s.Status,
		BankName:            s.BankName,
		BankReference:       s.BankReference,
		FailureReason:       s.FailureReason,
		CreatedAt:           s.CreatedAt,
		CompletedAt:         s.CompletedAt,
	}
}

// RevenueView is the admin revenue summary.
type RevenueView struct {
	TotalCommission string    `json:"total_commission"`
	AsOf            time.Time `json:"as_of"`
}
