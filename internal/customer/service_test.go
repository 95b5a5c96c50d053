package customer_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/events"
	"github.com/bareeqalyusr/bnpl-backend/internal/customer"
)

func TestCustomer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Customer Suite")
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	Expect(err).NotTo(HaveOccurred())
	return d
}

// Mock repository for testing
type mockCustomerRepository struct {
	customers   map[int64]*customer.Customer
	history     map[int64]*customer.LimitHistory
	nextID      int64
	nextHistID  int64
	createError error
	getError    error
	updateError error
}

func newMockCustomerRepository() *mockCustomerRepository {
	return &mockCustomerRepository{
		customers:  make(map[int64]*customer.Customer),
		history:    make(map[int64]*customer.LimitHistory),
		nextID:     1,
		nextHistID: 1,
	}
}

func (m *mockCustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	if m.createError != nil {
		return m.createError
	}
	c.ID = m.nextID
	m.nextID++
	m.customers[c.ID] = c
	return nil
}

func (m *mockCustomerRepository) GetByID(ctx context.Context, id int64) (*customer.Customer, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	c, ok := m.customers[id]
	if !ok {
		return nil, internal.NewNotFoundError("customer not found", internal.ErrCodeNotFound)
	}
	return c, nil
}

func (m *mockCustomerRepository) GetByUserID(ctx context.Context, userID int64) (*customer.Customer, error) {
	for _, c := range m.customers {
		if c.UserID == userID {
			return c, nil
		}
	}
	return nil, internal.NewNotFoundError("customer not found", internal.ErrCodeNotFound)
}

func (m *mockCustomerRepository) GetByCode(ctx context.Context, code string) (*customer.Customer, error) {
	for _, c := range m.customers {
		if c.CustomerCode == code {
			return c, nil
		}
	}
	return nil, internal.NewNotFoundError("customer not found", internal.ErrCodeNotFound)
}

func (m *mockCustomerRepository) GetForUpdate(ctx context.Context, id int64) (*customer.Customer, error) {
	return m.GetByID(ctx, id)
}

func (m *mockCustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	if m.updateError != nil {
		return m.updateError
	}
	m.customers[c.ID] = c
	return nil
}

func (m *mockCustomerRepository) CreateLimitHistory(ctx context.Context, h *customer.LimitHistory) error {
	h.ID = m.nextHistID
	m.nextHistID++
	m.history[h.ID] = h
	return nil
}

func (m *mockCustomerRepository) GetLimitHistoryForUpdate(ctx context.Context, id int64) (*customer.LimitHistory, error) {
	h, ok := m.history[id]
	if !ok {
		return nil, internal.NewNotFoundError("limit request not found", internal.ErrCodeNotFound)
	}
	return h, nil
}

func (m *mockCustomerRepository) UpdateLimitHistory(ctx context.Context, h *customer.LimitHistory) error {
	m.history[h.ID] = h
	return nil
}

func (m *mockCustomerRepository) ListLimitHistory(ctx context.Context, customerID int64) ([]*customer.LimitHistory, error) {
	var out []*customer.LimitHistory
	for _, h := range m.history {
		if h.CustomerID == customerID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *mockCustomerRepository) ListPendingLimitRequests(ctx context.Context, limit, offset int) ([]*customer.LimitHistory, error) {
	var out []*customer.LimitHistory
	for _, h := range m.history {
		if h.IsPending() {
			out = append(out, h)
		}
	}
	return out, nil
}

// mockTxRunner runs the function directly against the mock repository.
type mockTxRunner struct {
	repo customer.Repository
}

func (m mockTxRunner) RunInTx(ctx context.Context, fn func(repo customer.Repository) error) error {
	return fn(m.repo)
}

func testRules() internal.BusinessRules {
	return internal.BusinessRules{
		DefaultCreditLimit: dec("2000"),
		MaxCreditLimit:     dec("50000"),
		AutoApproveLimit:   dec("5000"),
		CommissionRate:     dec("0.005"),
		WriteRetryAttempts: 3,
	}
}

var _ = Describe("Customer entity", func() {
	var c *customer.Customer

	BeforeEach(func() {
		var err error
		c, err = customer.NewCustomer(1, dec("2000"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("starts with the full limit available", func() {
		Expect(c.AvailableBalance.Equal(dec("2000"))).To(BeTrue())
		Expect(c.OutstandingBalance.IsZero()).To(BeTrue())
		Expect(c.CustomerCode).To(HaveLen(8))
		Expect(c.CheckInvariant()).To(Succeed())
	})

	It("generates codes from the unambiguous alphabet", func() {
		code, err := customer.GenerateCustomerCode()
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(MatchRegexp("^[ABCDEFGHJKMNPQRSTUVWXYZ23456789]{8}$"))
	})

	Describe("Reserve", func() {
		It("moves credit from available to outstanding", func() {
			Expect(c.Reserve(dec("500"))).To(Succeed())
			Expect(c.AvailableBalance.Equal(dec("1500"))).To(BeTrue())
			Expect(c.OutstandingBalance.Equal(dec("500"))).To(BeTrue())
		})

		It("rejects amounts above the available balance", func() {
			err := c.Reserve(dec("2000.01"))
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInsufficientCredit))
		})

		It("rejects reservations on a suspended account", func() {
			c.Status = customer.StatusSuspended
			Expect(c.Reserve(dec("100"))).NotTo(Succeed())
		})
	})

	Describe("Release", func() {
		It("returns credit to the available balance", func() {
			Expect(c.Reserve(dec("800"))).To(Succeed())
			Expect(c.Release(dec("300"))).To(Succeed())
			Expect(c.AvailableBalance.Equal(dec("1500"))).To(BeTrue())
			Expect(c.OutstandingBalance.Equal(dec("500"))).To(BeTrue())
		})

		It("refuses to release more than is outstanding", func() {
			Expect(c.Reserve(dec("100"))).To(Succeed())
			Expect(c.Release(dec("100.01"))).NotTo(Succeed())
		})
	})

	Describe("ApplyLimit", func() {
		It("frees the limit delta into the available balance", func() {
			Expect(c.Reserve(dec("1500"))).To(Succeed())
			Expect(c.ApplyLimit(dec("3000"))).To(Succeed())
			Expect(c.CreditLimit.Equal(dec("3000"))).To(BeTrue())
			Expect(c.AvailableBalance.Equal(dec("1500"))).To(BeTrue())
			Expect(c.OutstandingBalance.Equal(dec("1500"))).To(BeTrue())
		})
	})
})

var _ = Describe("Customer service", func() {
	var (
		repo    *mockCustomerRepository
		service *customer.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		repo = newMockCustomerRepository()
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		bus := events.NewEventBus(logger)
		service = customer.NewService(repo, mockTxRunner{repo: repo}, testRules(), bus, logger)
		ctx = context.Background()
	})

	Describe("Register", func() {
		It("creates an account with the default limit", func() {
			c, err := service.Register(ctx, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.UserID).To(Equal(int64(42)))
			Expect(c.CreditLimit.Equal(dec("2000"))).To(BeTrue())
			Expect(c.AvailableBalance.Equal(dec("2000"))).To(BeTrue())
		})
	})

	Describe("RequestLimitIncrease", func() {
		var c *customer.Customer

		BeforeEach(func() {
			var err error
			c, err = service.Register(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
		})

		It("auto-approves requests at or below the threshold", func() {
			h, err := service.RequestLimitIncrease(ctx, c.ID, dec("5000"), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Status).To(Equal(customer.LimitStatusApproved))
			Expect(h.ApprovedBy).To(Equal(customer.ApprovedByAuto))
			Expect(h.NewLimit.Equal(dec("5000"))).To(BeTrue())

			updated, _ := repo.GetByID(ctx, c.ID)
			Expect(updated.CreditLimit.Equal(dec("5000"))).To(BeTrue())
			Expect(updated.AvailableBalance.Equal(dec("5000"))).To(BeTrue())
		})

		It("parks larger requests as pending without touching the limit", func() {
			h, err := service.RequestLimitIncrease(ctx, c.ID, dec("10000"), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Status).To(Equal(customer.LimitStatusPending))

			updated, _ := repo.GetByID(ctx, c.ID)
			Expect(updated.CreditLimit.Equal(dec("2000"))).To(BeTrue())
		})

		It("rejects limits above the platform maximum", func() {
			_, err := service.RequestLimitIncrease(ctx, c.ID, dec("50000.01"), nil)
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeLimitExceedsMax))
		})

		It("rejects limits not above the current one", func() {
			_, err := service.RequestLimitIncrease(ctx, c.ID, dec("2000"), nil)
			Expect(err).To(HaveOccurred())
		})

		It("rejects non-positive limits", func() {
			_, err := service.RequestLimitIncrease(ctx, c.ID, dec("0"), nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("DecideLimitIncrease", func() {
		var (
			c *customer.Customer
			h *customer.LimitHistory
		)

		BeforeEach(func() {
			var err error
			c, err = service.Register(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			h, err = service.RequestLimitIncrease(ctx, c.ID, dec("10000"), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Status).To(Equal(customer.LimitStatusPending))
		})

		It("applies the requested limit on approval", func() {
			decided, err := service.DecideLimitIncrease(ctx, h.ID, true, "admin:7")
			Expect(err).NotTo(HaveOccurred())
			Expect(decided.Status).To(Equal(customer.LimitStatusApproved))
			Expect(decided.ApprovedBy).To(Equal("admin:7"))

			updated, _ := repo.GetByID(ctx, c.ID)
			Expect(updated.CreditLimit.Equal(dec("10000"))).To(BeTrue())
		})

		It("leaves the customer untouched on rejection", func() {
			decided, err := service.DecideLimitIncrease(ctx, h.ID, false, "admin:7")
			Expect(err).NotTo(HaveOccurred())
			Expect(decided.Status).To(Equal(customer.LimitStatusRejected))

			updated, _ := repo.GetByID(ctx, c.ID)
			Expect(updated.CreditLimit.Equal(dec("2000"))).To(BeTrue())
		})

		It("refuses to decide the same request twice", func() {
			_, err := service.DecideLimitIncrease(ctx, h.ID, true, "admin:7")
			Expect(err).NotTo(HaveOccurred())
			_, err = service.DecideLimitIncrease(ctx, h.ID, false, "admin:7")
			Expect(err).To(HaveOccurred())
		})

		It("refuses approval when the limit already moved past the request", func() {
			_, err := service.RequestLimitIncrease(ctx, c.ID, dec("4000"), nil)
			Expect(err).NotTo(HaveOccurred())
			stale := &customer.LimitHistory{
				CustomerID:     c.ID,
				PreviousLimit:  dec("2000"),
				RequestedLimit: dec("3000"),
				NewLimit:       dec("2000"),
				Status:         customer.LimitStatusPending,
			}
			Expect(repo.CreateLimitHistory(ctx, stale)).To(Succeed())

			_, err = service.DecideLimitIncrease(ctx, stale.ID, true, "admin:7")
			Expect(err).To(HaveOccurred())
		})
	})
})
