package purchase_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/events"
	"github.com/bareeqalyusr/bnpl-backend/internal/customer"
	"github.com/bareeqalyusr/bnpl-backend/internal/merchant"
	"github.com/bareeqalyusr/bnpl-backend/internal/purchase"
	"github.com/bareeqalyusr/bnpl-backend/internal/repayment"
	"github.com/bareeqalyusr/bnpl-backend/internal/settlement"
	"github.com/bareeqalyusr/bnpl-backend/internal/transaction"
)

func TestPurchase(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Purchase Suite")
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	Expect(err).NotTo(HaveOccurred())
	return d
}

// ledger holds every table the accept orchestration touches, acting as both
// the standalone stores and the transactional repos.
type ledger struct {
	requests     map[int64]*purchase.Request
	customers    map[int64]*customer.Customer
	merchants    map[int64]*merchant.Merchant
	transactions map[int64]*transaction.Transaction
	plans        map[int64]*repayment.Plan
	schedules    []*repayment.Schedule
	settlements  map[int64]*settlement.Settlement
	nextID       int64
}

func newLedger() *ledger {
	return &ledger{
		requests:     make(map[int64]*purchase.Request),
		customers:    make(map[int64]*customer.Customer),
		merchants:    make(map[int64]*merchant.Merchant),
		transactions: make(map[int64]*transaction.Transaction),
		plans:        make(map[int64]*repayment.Plan),
		settlements:  make(map[int64]*settlement.Settlement),
		nextID:       1,
	}
}

func (l *ledger) id() int64 {
	id := l.nextID
	l.nextID++
	return id
}

func (l *ledger) Create(ctx context.Context, r *purchase.Request) error {
	r.ID = l.id()
	l.requests[r.ID] = r
	return nil
}

func (l *ledger) GetByID(ctx context.Context, id int64) (*purchase.Request, error) {
	r, ok := l.requests[id]
	if !ok {
		return nil, internal.NewNotFoundError("purchase request not found", internal.ErrCodeNotFound)
	}
	cp := *r
	return &cp, nil
}

func (l *ledger) GetForUpdate(ctx context.Context, id int64) (*purchase.Request, error) {
	return l.GetByID(ctx, id)
}

func (l *ledger) Update(ctx context.Context, r *purchase.Request) error {
	l.requests[r.ID] = r
	return nil
}

func (l *ledger) ListByCustomer(ctx context.Context, customerID int64, status string, limit, offset int) ([]*purchase.Request, error) {
	var out []*purchase.Request
	for _, r := range l.requests {
		if r.CustomerID == customerID && (status == "" || string(r.Status) == status) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *ledger) ListByMerchant(ctx context.Context, merchantID int64, status string, limit, offset int) ([]*purchase.Request, error) {
	var out []*purchase.Request
	for _, r := range l.requests {
		if r.MerchantID == merchantID && (status == "" || string(r.Status) == status) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *ledger) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*purchase.Request, error) {
	var out []*purchase.Request
	for _, r := range l.requests {
		if r.IsExpired(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

// customerStore view

type customerStore struct{ l *ledger }

func (s customerStore) GetByID(ctx context.Context, id int64) (*customer.Customer, error) {
	c, ok := s.l.customers[id]
	if !ok {
		return nil, internal.NewNotFoundError("customer not found", internal.ErrCodeNotFound)
	}
	return c, nil
}

func (s customerStore) GetByCode(ctx context.Context, code string) (*customer.Customer, error) {
	for _, c := range s.l.customers {
		if c.CustomerCode == code {
			return c, nil
		}
	}
	return nil, internal.NewNotFoundError("customer not found", internal.ErrCodeNotFound)
}

func (s customerStore) GetForUpdate(ctx context.Context, id int64) (*customer.Customer, error) {
	return s.GetByID(ctx, id)
}

func (s customerStore) Update(ctx context.Context, c *customer.Customer) error {
	s.l.customers[c.ID] = c
	return nil
}

// merchantStore view

type merchantStore struct{ l *ledger }

func (s merchantStore) GetByID(ctx context.Context, id int64) (*merchant.Merchant, error) {
	m, ok := s.l.merchants[id]
	if !ok {
		return nil, internal.NewNotFoundError("merchant not found", internal.ErrCodeNotFound)
	}
	return m, nil
}

func (s merchantStore) GetForUpdate(ctx context.Context, id int64) (*merchant.Merchant, error) {
	return s.GetByID(ctx, id)
}

func (s merchantStore) Update(ctx context.Context, m *merchant.Merchant) error {
	s.l.merchants[m.ID] = m
	return nil
}

// transactionStore view

type transactionStore struct{ l *ledger }

func (s transactionStore) Create(ctx context.Context, t *transaction.Transaction) error {
	t.ID = s.l.id()
	s.l.transactions[t.ID] = t
	return nil
}

func (s transactionStore) Update(ctx context.Context, t *transaction.Transaction) error {
	s.l.transactions[t.ID] = t
	return nil
}

// planStore view

type planStore struct{ l *ledger }

func (s planStore) CreatePlan(ctx context.Context, p *repayment.Plan) error {
	p.ID = s.l.id()
	s.l.plans[p.ID] = p
	return nil
}

func (s planStore) CreateSchedules(ctx context.Context, schedules []*repayment.Schedule) error {
	for _, row := range schedules {
		row.ID = s.l.id()
		s.l.schedules = append(s.l.schedules, row)
	}
	return nil
}

// settlementStore view

type settlementStore struct{ l *ledger }

func (s settlementStore) Create(ctx context.Context, stl *settlement.Settlement) error {
	stl.ID = s.l.id()
	s.l.settlements[stl.ID] = stl
	return nil
}

type ledgerTxRunner struct{ l *ledger }

func (r ledgerTxRunner) RunInTx(ctx context.Context, fn func(repos purchase.TxRepos) error) error {
	return fn(purchase.TxRepos{
		Requests:     r.l,
		Customers:    customerStore{r.l},
		Merchants:    merchantStore{r.l},
		Transactions: transactionStore{r.l},
		Plans:        planStore{r.l},
		Settlements:  settlementStore{r.l},
	})
}

func testRules() internal.BusinessRules {
	return internal.BusinessRules{
		DefaultCreditLimit: dec("2000"),
		MaxCreditLimit:     dec("50000"),
		AutoApproveLimit:   dec("5000"),
		CommissionRate:     dec("0.005"),
		RequestExpiry:      24 * time.Hour,
		SinglePaymentDays:  30,
		WriteRetryAttempts: 3,
	}
}

var _ = Describe("Purchase service", func() {
	var (
		l       *ledger
		service *purchase.Service
		cust    *customer.Customer
		m       *merchant.Merchant
		ctx     context.Context
	)

	send := func(amount string, planType int) purchase.RequestView {
		view, err := service.SendRequest(ctx, m.ID, purchase.CreateRequestDTO{
			CustomerCode: cust.CustomerCode,
			ProductName:  "Laptop",
			Quantity:     1,
			UnitPrice:    amount,
			PlanType:     planType,
		})
		Expect(err).NotTo(HaveOccurred())
		return view
	}

	BeforeEach(func() {
		l = newLedger()
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		bus := events.NewEventBus(logger)
		service = purchase.NewService(l, customerStore{l}, merchantStore{l},
			ledgerTxRunner{l}, bus, testRules(), logger)
		ctx = context.Background()

		var err error
		cust, err = customer.NewCustomer(10, dec("2000"))
		Expect(err).NotTo(HaveOccurred())
		cust.ID = l.id()
		l.customers[cust.ID] = cust

		m = merchant.NewMerchant(20, "Omar Electronics")
		m.ID = l.id()
		l.merchants[m.ID] = m
	})

	Describe("SendRequest", func() {
		It("creates a pending request with a 24 hour window", func() {
			view := send("1200.00", 3)
			Expect(view.Status).To(Equal(purchase.StatusPending))
			Expect(view.TotalAmount).To(Equal("1200.00"))
			Expect(view.RequestReference).NotTo(BeEmpty())

			stored := l.requests[view.ID]
			Expect(stored.ExpiresAt.Sub(time.Now().UTC())).To(BeNumerically("~", 24*time.Hour, time.Minute))
		})

		It("multiplies quantity by unit price", func() {
			view, err := service.SendRequest(ctx, m.ID, purchase.CreateRequestDTO{
				CustomerCode: cust.CustomerCode,
				ProductName:  "Headphones",
				Quantity:     3,
				UnitPrice:    "99.99",
				PlanType:     3,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.TotalAmount).To(Equal("299.97"))
		})

		It("rounds sub-cent unit prices before they enter the ledger", func() {
			view, err := service.SendRequest(ctx, m.ID, purchase.CreateRequestDTO{
				CustomerCode: cust.CustomerCode,
				ProductName:  "Cable",
				Quantity:     2,
				UnitPrice:    "9.999",
				PlanType:     3,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.UnitPrice).To(Equal("10.00"))
			Expect(view.TotalAmount).To(Equal("20.00"))
		})

		It("rejects totals above the customer's available credit", func() {
			_, err := service.SendRequest(ctx, m.ID, purchase.CreateRequestDTO{
				CustomerCode: cust.CustomerCode,
				ProductName:  "TV",
				Quantity:     1,
				UnitPrice:    "2000.01",
				PlanType:     3,
			})
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInsufficientCredit))
		})

		It("rejects unknown customer codes", func() {
			_, err := service.SendRequest(ctx, m.ID, purchase.CreateRequestDTO{
				CustomerCode: "NOPE1234",
				ProductName:  "TV",
				Quantity:     1,
				UnitPrice:    "100.00",
				PlanType:     3,
			})
			Expect(err).To(HaveOccurred())
		})

		It("rejects suspended customers", func() {
			cust.Status = customer.StatusSuspended
			_, err := service.SendRequest(ctx, m.ID, purchase.CreateRequestDTO{
				CustomerCode: cust.CustomerCode,
				ProductName:  "TV",
				Quantity:     1,
				UnitPrice:    "100.00",
				PlanType:     3,
			})
			Expect(err).To(HaveOccurred())
		})

		It("rejects invalid plan types", func() {
			_, err := service.SendRequest(ctx, m.ID, purchase.CreateRequestDTO{
				CustomerCode: cust.CustomerCode,
				ProductName:  "TV",
				Quantity:     1,
				UnitPrice:    "100.00",
				PlanType:     5,
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("AcceptRequest", func() {
		It("reserves credit, books the transaction and settles the merchant", func() {
			view := send("1200.00", 3)

			result, err := service.AcceptRequest(ctx, cust.ID, view.ID, purchase.AcceptRequestDTO{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Installments).To(Equal(3))
			Expect(result.TotalAmount).To(Equal("1200.00"))
			Expect(result.InstallmentAmount).To(Equal("400.00"))
			Expect(result.AvailableCredit).To(Equal("800.00"))

			Expect(l.requests[view.ID].Status).To(Equal(purchase.StatusAccepted))
			Expect(cust.AvailableBalance.Equal(dec("800.00"))).To(BeTrue())
			Expect(cust.OutstandingBalance.Equal(dec("1200.00"))).To(BeTrue())

			txn := l.transactions[result.TransactionID]
			Expect(txn.CommissionAmount.Equal(dec("6.00"))).To(BeTrue())
			Expect(txn.NetAmount.Equal(dec("1194.00"))).To(BeTrue())
			Expect(txn.RemainingBalance.Equal(dec("1200.00"))).To(BeTrue())

			Expect(m.Balance.Equal(dec("1194.00"))).To(BeTrue())
			Expect(m.TotalCommissionPaid.Equal(dec("6.00"))).To(BeTrue())
			Expect(m.TotalTransactions).To(Equal(int64(1)))

			Expect(l.schedules).To(HaveLen(3))
			Expect(l.settlements).To(HaveLen(1))
			for _, stl := range l.settlements {
				Expect(stl.SettlementType).To(Equal(settlement.TypeIncome))
				Expect(stl.Status).To(Equal(settlement.StatusCompleted))
				Expect(stl.NetAmount.Equal(dec("1194.00"))).To(BeTrue())
			}
		})

		It("takes the final schedule due date for the transaction", func() {
			view := send("600.00", 6)
			result, err := service.AcceptRequest(ctx, cust.ID, view.ID, purchase.AcceptRequestDTO{})
			Expect(err).NotTo(HaveOccurred())

			txn := l.transactions[result.TransactionID]
			last := l.schedules[len(l.schedules)-1]
			Expect(txn.DueDate).To(Equal(last.DueDate))
			Expect(result.FinalDueDate).To(Equal(last.DueDate))
		})

		It("lets the customer pick a different plan than the merchant suggested", func() {
			view := send("1200.00", 3)

			result, err := service.AcceptRequest(ctx, cust.ID, view.ID, purchase.AcceptRequestDTO{PlanType: 6})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Installments).To(Equal(6))
			Expect(result.InstallmentAmount).To(Equal("200.00"))
			Expect(l.schedules).To(HaveLen(6))
			Expect(l.requests[view.ID].PlanType).To(Equal(6))
		})

		It("refuses an unsupported plan choice without touching the request", func() {
			view := send("1200.00", 3)

			_, err := service.AcceptRequest(ctx, cust.ID, view.ID, purchase.AcceptRequestDTO{PlanType: 5})
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidPlanType))
			Expect(l.requests[view.ID].Status).To(Equal(purchase.StatusPending))
			Expect(cust.AvailableBalance.Equal(dec("2000"))).To(BeTrue())
		})

		It("refuses another customer's request", func() {
			view := send("100.00", 3)
			_, err := service.AcceptRequest(ctx, cust.ID+999, view.ID, purchase.AcceptRequestDTO{})
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(403))
			Expect(appErr.Code).To(Equal(internal.ErrCodeUnauthorizedAccess))
		})

		It("persists expiry and reports it when the window has passed", func() {
			view := send("100.00", 3)
			l.requests[view.ID].ExpiresAt = time.Now().UTC().Add(-time.Minute)

			_, err := service.AcceptRequest(ctx, cust.ID, view.ID, purchase.AcceptRequestDTO{})
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeRequestExpired))

			// the expiry survives even though the accept failed
			Expect(l.requests[view.ID].Status).To(Equal(purchase.StatusExpired))
		})

		It("refuses an already accepted request", func() {
			view := send("100.00", 3)
			_, err := service.AcceptRequest(ctx, cust.ID, view.ID, purchase.AcceptRequestDTO{})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.AcceptRequest(ctx, cust.ID, view.ID, purchase.AcceptRequestDTO{})
			Expect(err).To(HaveOccurred())
		})

		It("fails when the customer's credit shrank since the offer", func() {
			view := send("1500.00", 3)
			Expect(cust.Reserve(dec("600.00"))).To(Succeed())

			_, err := service.AcceptRequest(ctx, cust.ID, view.ID, purchase.AcceptRequestDTO{})
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInsufficientCredit))
		})
	})

	Describe("RejectRequest", func() {
		It("closes the request with the given reason", func() {
			view := send("100.00", 3)
			rejected, err := service.RejectRequest(ctx, cust.ID, view.ID, purchase.RejectRequestDTO{Reason: "changed my mind"})
			Expect(err).NotTo(HaveOccurred())
			Expect(rejected.Status).To(Equal(purchase.StatusRejected))
			Expect(*rejected.RejectionReason).To(Equal("changed my mind"))
		})

		It("does not move any credit", func() {
			view := send("100.00", 3)
			_, err := service.RejectRequest(ctx, cust.ID, view.ID, purchase.RejectRequestDTO{})
			Expect(err).NotTo(HaveOccurred())
			Expect(cust.AvailableBalance.Equal(dec("2000"))).To(BeTrue())
		})
	})

	Describe("CancelRequest", func() {
		It("lets the merchant withdraw a pending offer", func() {
			view := send("100.00", 3)
			cancelled, err := service.CancelRequest(ctx, m.ID, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(cancelled.Status).To(Equal(purchase.StatusCancelled))
		})

		It("refuses another merchant's request", func() {
			view := send("100.00", 3)
			_, err := service.CancelRequest(ctx, m.ID+999, view.ID)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ExpireStale", func() {
		It("sweeps pending requests past their window", func() {
			a := send("100.00", 3)
			b := send("200.00", 3)
			send("300.00", 3)
			l.requests[a.ID].ExpiresAt = time.Now().UTC().Add(-time.Hour)
			l.requests[b.ID].ExpiresAt = time.Now().UTC().Add(-time.Hour)

			swept, err := service.ExpireStale(ctx, 50)
			Expect(err).NotTo(HaveOccurred())
			Expect(swept).To(Equal(2))
			Expect(l.requests[a.ID].Status).To(Equal(purchase.StatusExpired))
			Expect(l.requests[b.ID].Status).To(Equal(purchase.StatusExpired))
		})

		It("leaves fresh requests alone", func() {
			send("100.00", 3)
			swept, err := service.ExpireStale(ctx, 50)
			Expect(err).NotTo(HaveOccurred())
			Expect(swept).To(BeZero())
		})
	})
})
