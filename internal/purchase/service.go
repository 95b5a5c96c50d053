package purchase

import (
	"context"
	"log/slog"
	"time"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/events"
	"github.com/bareeqalyusr/bnpl-backend/internal/customer"
	"github.com/bareeqalyusr/bnpl-backend/internal/merchant"
	"github.com/bareeqalyusr/bnpl-backend/internal/repayment"
	"github.com/bareeqalyusr/bnpl-backend/internal/settlement"
	"github.com/bareeqalyusr/bnpl-backend/internal/transaction"
)

type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id int64) (*Request, error)
	GetForUpdate(ctx context.Context, id int64) (*Request, error)
	Update(ctx context.Context, r *Request) error
	ListByCustomer(ctx context.Context, customerID int64, status string, limit, offset int) ([]*Request, error)
	ListByMerchant(ctx context.Context, merchantID int64, status string, limit, offset int) ([]*Request, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Request, error)
}

// The stores below are the slices of the other domains the accept flow
// touches under one database transaction.

type CustomerStore interface {
	GetByID(ctx context.Context, id int64) (*customer.Customer, error)
	GetByCode(ctx context.Context, code string) (*customer.Customer, error)
	GetForUpdate(ctx context.Context, id int64) (*customer.Customer, error)
	Update(ctx context.Context, c *customer.Customer) error
}

type MerchantStore interface {
	GetByID(ctx context.Context, id int64) (*merchant.Merchant, error)
	GetForUpdate(ctx context.Context, id int64) (*merchant.Merchant, error)
	Update(ctx context.Context, m *merchant.Merchant) error
}

type TransactionStore interface {
	Create(ctx context.Context, t *transaction.Transaction) error
	Update(ctx context.Context, t *transaction.Transaction) error
}

type PlanStore interface {
	CreatePlan(ctx context.Context, p *repayment.Plan) error
	CreateSchedules(ctx context.Context, schedules []*repayment.Schedule) error
}

type SettlementStore interface {
	Create(ctx context.Context, s *settlement.Settlement) error
}

// TxRepos bundles every repository the accept orchestration needs, all bound
// to the same transaction handle.
type TxRepos struct {
	Requests     Repository
	Customers    CustomerStore
	Merchants    MerchantStore
	Transactions TransactionStore
	Plans        PlanStore
	Settlements  SettlementStore
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(repos TxRepos) error) error
}

type Service struct {
	repo      Repository
	customers CustomerStore
	merchants MerchantStore
	tx        TxRunner
	bus       *events.EventBus
	rules     internal.BusinessRules
	logger    *slog.Logger
}

func NewService(repo Repository, customers CustomerStore, merchants MerchantStore, tx TxRunner, bus *events.EventBus, rules internal.BusinessRules, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		customers: customers,
		merchants: merchants,
		tx:        tx,
		bus:       bus,
		rules:     rules,
		logger:    logger,
	}
}

// SendRequest creates a pending offer from a merchant to a customer. The
// credit check here is advisory (the customer may have less credit by the
// time they accept); the binding reservation happens inside AcceptRequest.
func (s *Service) SendRequest(ctx context.Context, merchantID int64, dto CreateRequestDTO) (RequestView, error) {
	if err := dto.Validate(); err != nil {
		return RequestView{}, err
	}

	m, err := s.merchants.GetByID(ctx, merchantID)
	if err != nil {
		return RequestView{}, err
	}
	if !m.IsActive() {
		return RequestView{}, internal.NewBusinessError("merchant account is not active", internal.ErrCodeInvalidState)
	}

	cust, err := s.customers.GetByCode(ctx, dto.CustomerCode)
	if err != nil {
		return RequestView{}, err
	}
	if !cust.IsActive() {
		return RequestView{}, internal.NewBusinessError("customer account is not active", internal.ErrCodeCustomerInactive)
	}

	price, err := dto.Price()
	if err != nil {
		return RequestView{}, err
	}

	req, err := NewRequest(m.ID, cust.ID, dto.ProductName, dto.ProductDescription, dto.Quantity, price, dto.PlanType, s.rules.RequestExpiry)
	if err != nil {
		return RequestView{}, err
	}
	if req.TotalAmount.GreaterThan(cust.AvailableBalance) {
		return RequestView{}, internal.NewBusinessError("customer does not have enough available credit for this purchase", internal.ErrCodeInsufficientCredit)
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return RequestView{}, err
	}

	s.logger.Info("purchase request sent",
		"request_id", req.ID,
		"reference", req.RequestReference,
		"merchant_id", m.ID,
		"customer_id", cust.ID,
		"total_amount", req.TotalAmount.StringFixed(2),
		"plan_type", req.PlanType,
	)
	return NewRequestView(req, time.Now().UTC()), nil
}

// AcceptRequest converts a pending request into debt: it reserves the
// customer's credit, creates the transaction with the commission locked in,
// generates the repayment schedule, accrues the merchant's net amount via an
// income settlement, and marks the request accepted. The customer picks the
// installment plan here; the request's plan_type is only the merchant's
// suggestion. Everything happens in one database transaction with the
// request, customer and merchant rows locked in that order.
func (s *Service) AcceptRequest(ctx context.Context, customerID, requestID int64, dto AcceptRequestDTO) (*AcceptResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var (
		result     *AcceptResult
		expired    bool
		acceptedEv events.BaseEvent
		settledEv  events.BaseEvent
	)

	err := s.tx.RunInTx(ctx, func(repos TxRepos) error {
		req, err := repos.Requests.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.CustomerID != customerID {
			return internal.NewForbiddenError("purchase request does not belong to this customer", internal.ErrCodeUnauthorizedAccess)
		}
		if req.IsExpired(now) {
			if err := req.MarkExpired(); err != nil {
				return err
			}
			expired = true
			return repos.Requests.Update(ctx, req)
		}

		planType := req.PlanType
		if dto.PlanType != 0 {
			planType = dto.PlanType
		}
		req.PlanType = planType

		cust, err := repos.Customers.GetForUpdate(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		if err := cust.Reserve(req.TotalAmount); err != nil {
			return err
		}

		m, err := repos.Merchants.GetForUpdate(ctx, req.MerchantID)
		if err != nil {
			return err
		}

		firstDue := repayment.AddMonths(now, 1)
		if planType == 1 {
			firstDue = now.AddDate(0, 0, s.rules.SinglePaymentDays)
		}

		txn := transaction.New(m.ID, cust.ID, req.ID, req.TotalAmount, s.rules.CommissionRate)
		txn.DueDate = repayment.AddMonths(firstDue, planType-1)
		if err := repos.Transactions.Create(ctx, txn); err != nil {
			return err
		}

		plan, schedules, err := repayment.NewPlan(txn.ID, cust.ID, req.TotalAmount, planType, firstDue)
		if err != nil {
			return err
		}
		if err := repos.Plans.CreatePlan(ctx, plan); err != nil {
			return err
		}
		for _, row := range schedules {
			row.PlanID = plan.ID
		}
		if err := repos.Plans.CreateSchedules(ctx, schedules); err != nil {
			return err
		}

		// the schedule is authoritative for the final due date
		txn.DueDate = schedules[len(schedules)-1].DueDate
		if err := repos.Transactions.Update(ctx, txn); err != nil {
			return err
		}

		m.RecordSale(txn.TotalAmount)
		m.Credit(txn.NetAmount, txn.CommissionAmount)
		if err := repos.Merchants.Update(ctx, m); err != nil {
			return err
		}

		stl := settlement.NewIncome(m, txn.ID, txn.TotalAmount, txn.CommissionRate, txn.CommissionAmount, txn.NetAmount)
		if err := repos.Settlements.Create(ctx, stl); err != nil {
			return err
		}

		if err := req.Accept(now); err != nil {
			return err
		}
		if err := repos.Requests.Update(ctx, req); err != nil {
			return err
		}
		if err := repos.Customers.Update(ctx, cust); err != nil {
			return err
		}

		acceptedEv = events.NewPurchaseAccepted(req.ID, txn.ID, cust.ID, m.ID, txn.TotalAmount.StringFixed(2))
		settledEv = events.NewSettlementCreated(stl.ID, m.ID, string(stl.SettlementType), stl.NetAmount.StringFixed(2))
		result = &AcceptResult{
			Request:           NewRequestView(req, now),
			TransactionID:     txn.ID,
			TransactionNumber: txn.TransactionNumber,
			PlanReference:     plan.PlanReference,
			TotalAmount:       txn.TotalAmount.StringFixed(2),
			InstallmentAmount: plan.InstallmentAmount.StringFixed(2),
			Installments:      plan.NumberOfInstallments,
			FirstDueDate:      schedules[0].DueDate,
			FinalDueDate:      schedules[len(schedules)-1].DueDate,
			AvailableCredit:   cust.AvailableBalance.StringFixed(2),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, internal.NewBusinessError("purchase request has expired", internal.ErrCodeRequestExpired)
	}

	s.bus.Publish(ctx, acceptedEv)
	s.bus.Publish(ctx, settledEv)
	s.logger.Info("purchase request accepted",
		"request_id", requestID,
		"customer_id", customerID,
		"transaction_number", result.TransactionNumber,
		"installments", result.Installments,
	)
	return result, nil
}

// RejectRequest declines a pending offer with an optional reason. No money
// moves.
func (s *Service) RejectRequest(ctx context.Context, customerID, requestID int64, dto RejectRequestDTO) (RequestView, error) {
	return s.respond(ctx, requestID, func(req *Request, now time.Time) error {
		if req.CustomerID != customerID {
			return internal.NewForbiddenError("purchase request does not belong to this customer", internal.ErrCodeUnauthorizedAccess)
		}
		return req.Reject(dto.Reason, now)
	})
}

// CancelRequest withdraws a still-pending offer from the merchant side.
func (s *Service) CancelRequest(ctx context.Context, merchantID, requestID int64) (RequestView, error) {
	return s.respond(ctx, requestID, func(req *Request, now time.Time) error {
		if req.MerchantID != merchantID {
			return internal.NewForbiddenError("purchase request does not belong to this merchant", internal.ErrCodeUnauthorizedAccess)
		}
		return req.Cancel(now)
	})
}

// respond runs the shared lock-check-mutate cycle for reject and cancel,
// persisting lazy expiry when the window has passed.
func (s *Service) respond(ctx context.Context, requestID int64, mutate func(req *Request, now time.Time) error) (RequestView, error) {
	now := time.Now().UTC()
	var (
		view    RequestView
		expired bool
	)
	err := s.tx.RunInTx(ctx, func(repos TxRepos) error {
		req, err := repos.Requests.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.IsExpired(now) {
			if err := req.MarkExpired(); err != nil {
				return err
			}
			expired = true
			return repos.Requests.Update(ctx, req)
		}
		if err := mutate(req, now); err != nil {
			return err
		}
		if err := repos.Requests.Update(ctx, req); err != nil {
			return err
		}
		view = NewRequestView(req, now)
		return nil
	})
	if err != nil {
		return RequestView{}, err
	}
	if expired {
		return RequestView{}, internal.NewBusinessError("purchase request has expired", internal.ErrCodeRequestExpired)
	}
	return view, nil
}

// GetForCustomer returns one request scoped to its customer.
func (s *Service) GetForCustomer(ctx context.Context, customerID, requestID int64) (RequestView, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return RequestView{}, err
	}
	if req.CustomerID != customerID {
		return RequestView{}, internal.NewForbiddenError("purchase request does not belong to this customer", internal.ErrCodeUnauthorizedAccess)
	}
	return NewRequestView(req, time.Now().UTC()), nil
}

// GetForMerchant returns one request scoped to its merchant.
func (s *Service) GetForMerchant(ctx context.Context, merchantID, requestID int64) (RequestView, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return RequestView{}, err
	}
	if req.MerchantID != merchantID {
		return RequestView{}, internal.NewForbiddenError("purchase request does not belong to this merchant", internal.ErrCodeUnauthorizedAccess)
	}
	return NewRequestView(req, time.Now().UTC()), nil
}

func (s *Service) ListForCustomer(ctx context.Context, customerID int64, status string, limit, offset int) ([]RequestView, error) {
	reqs, err := s.repo.ListByCustomer(ctx, customerID, status, normalizeLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	return toViews(reqs), nil
}

func (s *Service) ListForMerchant(ctx context.Context, merchantID int64, status string, limit, offset int) ([]RequestView, error) {
	reqs, err := s.repo.ListByMerchant(ctx, merchantID, status, normalizeLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	return toViews(reqs), nil
}

// ExpireStale persists the expired status for pending requests past their
// window. The sweep worker calls this periodically; each request is expired
// in its own small transaction so one conflict does not abort the batch.
func (s *Service) ExpireStale(ctx context.Context, batchSize int) (int, error) {
	now := time.Now().UTC()
	stale, err := s.repo.ListExpiredPending(ctx, now, normalizeLimit(batchSize))
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, candidate := range stale {
		id := candidate.ID
		err := s.tx.RunInTx(ctx, func(repos TxRepos) error {
			req, err := repos.Requests.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if !req.IsExpired(now) {
				return nil
			}
			if err := req.MarkExpired(); err != nil {
				return err
			}
			return repos.Requests.Update(ctx, req)
		})
		if err != nil {
			s.logger.Warn("failed to expire purchase request", "request_id", id, "error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		s.logger.Info("expired stale purchase requests", "count", swept)
	}
	return swept, nil
}

func toViews(reqs []*Request) []RequestView {
	now := time.Now().UTC()
	views := make([]RequestView, len(reqs))
	for i, r := range reqs {
		views[i] = NewRequestView(r, now)
	}
	return views
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
