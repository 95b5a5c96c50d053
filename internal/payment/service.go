package payment

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/events"
	"github.com/bareeqalyusr/bnpl-backend/internal/customer"
	"github.com/bareeqalyusr/bnpl-backend/internal/money"
	"github.com/bareeqalyusr/bnpl-backend/internal/repayment"
	"github.com/bareeqalyusr/bnpl-backend/internal/transaction"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	ListByTransaction(ctx context.Context, transactionID int64) ([]*Payment, error)
	ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]*Payment, error)
}

type TransactionStore interface {
	GetByID(ctx context.Context, id int64) (*transaction.Transaction, error)
	GetForUpdate(ctx context.Context, id int64) (*transaction.Transaction, error)
	Update(ctx context.Context, t *transaction.Transaction) error
	ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]*transaction.Transaction, error)
	ListByMerchant(ctx context.Context, merchantID int64, limit, offset int) ([]*transaction.Transaction, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*transaction.Transaction, error)
}

type PlanStore interface {
	GetPlanByTransaction(ctx context.Context, transactionID int64) (*repayment.Plan, error)
	GetPlanForUpdate(ctx context.Context, transactionID int64) (*repayment.Plan, error)
	UpdatePlan(ctx context.Context, p *repayment.Plan) error
	ListSchedules(ctx context.Context, planID int64) ([]*repayment.Schedule, error)
	ListSchedulesForUpdate(ctx context.Context, planID int64) ([]*repayment.Schedule, error)
	UpdateSchedule(ctx context.Context, s *repayment.Schedule) error
	ListUpcoming(ctx context.Context, customerID int64, until time.Time) ([]*repayment.Schedule, error)
	ListOverduePending(ctx context.Context, now time.Time, limit int) ([]*repayment.Schedule, error)
}

type CustomerStore interface {
	GetForUpdate(ctx context.Context, id int64) (*customer.Customer, error)
	Update(ctx context.Context, c *customer.Customer) error
}

// TxRepos bundles the repositories a payment flow touches under one database
// transaction.
type TxRepos struct {
	Payments     Repository
	Transactions TransactionStore
	Plans        PlanStore
	Customers    CustomerStore
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(repos TxRepos) error) error
}

type Service struct {
	repo         Repository
	transactions TransactionStore
	plans        PlanStore
	tx           TxRunner
	bus          *events.EventBus
	logger       *slog.Logger
}

func NewService(repo Repository, transactions TransactionStore, plans PlanStore, tx TxRunner, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		transactions: transactions,
		plans:        plans,
		tx:           tx,
		bus:          bus,
		logger:       logger,
	}
}

// MakePayment applies an amount against a transaction. The amount is
// distributed across schedule rows oldest first, partially filling the last
// row it reaches; the same amount is released back to the customer's
// available credit. A payment covering the full remaining balance completes
// the transaction and its plan in the same stroke.
func (s *Service) MakePayment(ctx context.Context, customerID int64, dto MakePaymentDTO) (*PaymentResult, error) {
	amount, err := dto.ParseAmount()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var (
		result      *PaymentResult
		recordedEv  events.BaseEvent
		completedEv *events.BaseEvent
	)

	err = s.tx.RunInTx(ctx, func(repos TxRepos) error {
		txn, err := repos.Transactions.GetForUpdate(ctx, dto.TransactionID)
		if err != nil {
			return err
		}
		if txn.CustomerID != customerID {
			return internal.NewForbiddenError("transaction does not belong to this customer", internal.ErrCodeUnauthorizedAccess)
		}
		if !txn.Status.CanAcceptPayment() {
			return internal.NewBusinessError("transaction is not accepting payments", internal.ErrCodeTransactionInactive)
		}
		if amount.GreaterThan(txn.RemainingBalance) {
			return internal.NewBusinessError("payment exceeds the remaining balance", internal.ErrCodeInvalidAmount)
		}

		plan, err := repos.Plans.GetPlanForUpdate(ctx, txn.ID)
		if err != nil {
			return err
		}
		schedules, err := repos.Plans.ListSchedulesForUpdate(ctx, plan.ID)
		if err != nil {
			return err
		}

		remaining := amount
		rowsCompleted := 0
		for _, row := range schedules {
			if !row.IsOpen() {
				continue
			}
			applied := row.ApplyPayment(remaining, now)
			if !money.IsPositive(applied) {
				continue
			}
			if err := repos.Plans.UpdateSchedule(ctx, row); err != nil {
				return err
			}
			if row.Status == repayment.ScheduleStatusPaid {
				rowsCompleted++
			}
			remaining = remaining.Sub(applied)
			if remaining.IsZero() {
				break
			}
		}
		if !remaining.IsZero() {
			return internal.NewInvariantError("schedule rows could not absorb the full payment", internal.ErrCodeScheduleInvariant)
		}

		if err := txn.RecordPayment(amount); err != nil {
			return err
		}
		if err := plan.RecordPayment(amount, rowsCompleted, schedules); err != nil {
			return err
		}

		cust, err := repos.Customers.GetForUpdate(ctx, txn.CustomerID)
		if err != nil {
			return err
		}
		if err := cust.Release(amount); err != nil {
			return err
		}
		if err := repos.Customers.Update(ctx, cust); err != nil {
			return err
		}

		pmt := New(txn.ID, cust.ID, amount, txn.RemainingBalance, rowsCompleted)
		if err := repos.Payments.Create(ctx, pmt); err != nil {
			return err
		}
		if err := repos.Transactions.Update(ctx, txn); err != nil {
			return err
		}
		if err := repos.Plans.UpdatePlan(ctx, plan); err != nil {
			return err
		}

		recordedEv = events.NewPaymentRecorded(pmt.ID, txn.ID, cust.ID, amount.StringFixed(2))
		if txn.Status == transaction.StatusCompleted {
			ev := events.NewTransactionCompleted(txn.ID, cust.ID, txn.MerchantID)
			completedEv = &ev
		}
		result = newPaymentResult(pmt, txn, plan, cust)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, recordedEv)
	if completedEv != nil {
		s.bus.Publish(ctx, *completedEv)
	}
	s.logger.Info("payment recorded",
		"transaction_id", dto.TransactionID,
		"customer_id", customerID,
		"amount", amount.StringFixed(2),
		"remaining_balance", result.RemainingBalance,
	)
	return result, nil
}

// GetTransactionForCustomer returns a transaction with its plan and schedule,
// scoped to the owning customer.
func (s *Service) GetTransactionForCustomer(ctx context.Context, customerID, transactionID int64) (*TransactionDetail, error) {
	txn, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.CustomerID != customerID {
		return nil, internal.NewForbiddenError("transaction does not belong to this customer", internal.ErrCodeUnauthorizedAccess)
	}
	return s.buildDetail(ctx, txn)
}

// GetTransactionForMerchant is the merchant-side read of the same detail.
func (s *Service) GetTransactionForMerchant(ctx context.Context, merchantID, transactionID int64) (*TransactionDetail, error) {
	txn, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.MerchantID != merchantID {
		return nil, internal.NewForbiddenError("transaction does not belong to this merchant", internal.ErrCodeUnauthorizedAccess)
	}
	return s.buildDetail(ctx, txn)
}

func (s *Service) buildDetail(ctx context.Context, txn *transaction.Transaction) (*TransactionDetail, error) {
	plan, err := s.plans.GetPlanByTransaction(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	schedules, err := s.plans.ListSchedules(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListByTransaction(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	return newTransactionDetail(txn, plan, schedules, payments), nil
}

func (s *Service) ListTransactionsForCustomer(ctx context.Context, customerID int64, limit, offset int) ([]TransactionView, error) {
	txns, err := s.transactions.ListByCustomer(ctx, customerID, normalizeLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	return toTransactionViews(txns), nil
}

func (s *Service) ListTransactionsForMerchant(ctx context.Context, merchantID int64, limit, offset int) ([]TransactionView, error) {
	txns, err := s.transactions.ListByMerchant(ctx, merchantID, normalizeLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	return toTransactionViews(txns), nil
}

func (s *Service) ListPaymentsForCustomer(ctx context.Context, customerID int64, limit, offset int) ([]PaymentView, error) {
	payments, err := s.repo.ListByCustomer(ctx, customerID, normalizeLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	views := make([]PaymentView, len(payments))
	for i, p := range payments {
		views[i] = newPaymentView(p)
	}
	return views, nil
}

// UpcomingPayments lists the customer's open schedule rows due within the
// window, oldest first.
func (s *Service) UpcomingPayments(ctx context.Context, customerID int64, days int) ([]ScheduleView, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	until := time.Now().UTC().AddDate(0, 0, days)
	schedules, err := s.plans.ListUpcoming(ctx, customerID, until)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	views := make([]ScheduleView, len(schedules))
	for i, row := range schedules {
		views[i] = newScheduleView(row, now)
	}
	return views, nil
}

// SweepOverdue flips transactions past their due date to overdue and stamps
// the schedule rows that carry the missed installments. Each transaction is
// handled in its own small database transaction.
func (s *Service) SweepOverdue(ctx context.Context, batchSize int) (int, error) {
	now := time.Now().UTC()
	candidates, err := s.transactions.ListOverdue(ctx, now, normalizeLimit(batchSize))
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, candidate := range candidates {
		id := candidate.ID
		err := s.tx.RunInTx(ctx, func(repos TxRepos) error {
			txn, err := repos.Transactions.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if !txn.IsOverdue(now) || txn.Status == transaction.StatusOverdue {
				return nil
			}
			txn.Status = transaction.StatusOverdue
			if err := repos.Transactions.Update(ctx, txn); err != nil {
				return err
			}

			plan, err := repos.Plans.GetPlanForUpdate(ctx, txn.ID)
			if err != nil {
				return err
			}
			schedules, err := repos.Plans.ListSchedulesForUpdate(ctx, plan.ID)
			if err != nil {
				return err
			}
			for _, row := range schedules {
				if row.Status == repayment.ScheduleStatusPending && row.IsOverdue(now) {
					row.Status = repayment.ScheduleStatusOverdue
					if err := repos.Plans.UpdateSchedule(ctx, row); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			s.logger.Warn("failed to mark transaction overdue", "transaction_id", id, "error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		s.logger.Info("marked overdue transactions", "count", swept)
	}
	return swept, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

// MakePaymentDTO is the customer-facing payload for paying down a
// transaction.
type MakePaymentDTO struct {
	TransactionID int64  `json:"transaction_id"`
	Amount        string `json:"amount"`
}

func (d *MakePaymentDTO) ParseAmount() (decimal.Decimal, error) {
	if d.TransactionID <= 0 {
		return decimal.Zero, internal.NewValidationError("transaction_id is required", internal.ErrCodeValidationFailed)
	}
	amount, err := money.FromString(strings.TrimSpace(d.Amount))
	if err != nil {
		return decimal.Zero, internal.NewValidationError("amount must be a valid decimal amount", internal.ErrCodeInvalidAmount)
	}
	if !money.IsPositive(amount) {
		return decimal.Zero, internal.NewValidationError("amount must be positive", internal.ErrCodeInvalidAmount)
	}
	return amount, nil
}
