package settlement_test

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/events"
	"github.com/bareeqalyusr/bnpl-backend/internal/merchant"
	"github.com/bareeqalyusr/bnpl-backend/internal/settlement"
)

func TestSettlement(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Settlement Suite")
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	Expect(err).NotTo(HaveOccurred())
	return d
}

// Mock repository for testing
type mockSettlementRepository struct {
	settlements map[int64]*settlement.Settlement
	nextID      int64
}

func newMockSettlementRepository() *mockSettlementRepository {
	return &mockSettlementRepository{
		settlements: make(map[int64]*settlement.Settlement),
		nextID:      1,
	}
}

func (m *mockSettlementRepository) Create(ctx context.Context, s *settlement.Settlement) error {
	s.ID = m.nextID
	m.nextID++
	m.settlements[s.ID] = s
	return nil
}

func (m *mockSettlementRepository) GetByID(ctx context.Context, id int64) (*settlement.Settlement, error) {
	s, ok := m.settlements[id]
	if !ok {
		return nil, internal.NewNotFoundError("settlement not found", internal.ErrCodeNotFound)
	}
	return s, nil
}

func (m *mockSettlementRepository) GetForUpdate(ctx context.Context, id int64) (*settlement.Settlement, error) {
	return m.GetByID(ctx, id)
}

func (m *mockSettlementRepository) Update(ctx context.Context, s *settlement.Settlement) error {
	m.settlements[s.ID] = s
	return nil
}

func (m *mockSettlementRepository) ListByMerchant(ctx context.Context, merchantID int64, settlementType, status string, limit, offset int) ([]*settlement.Settlement, error) {
	var out []*settlement.Settlement
	for _, s := range m.settlements {
		if s.MerchantID != merchantID {
			continue
		}
		if settlementType != "" && string(s.SettlementType) != settlementType {
			continue
		}
		if status != "" && string(s.Status) != status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockSettlementRepository) ListPending(ctx context.Context, limit int) ([]*settlement.Settlement, error) {
	var out []*settlement.Settlement
	for _, s := range m.settlements {
		if s.SettlementType == settlement.TypeWithdrawal && s.Status == settlement.StatusPending {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockSettlementRepository) TotalCommission(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, s := range m.settlements {
		if s.SettlementType == settlement.TypeIncome && s.Status == settlement.StatusCompleted {
			total = total.Add(s.CommissionAmount)
		}
	}
	return total, nil
}

type mockMerchantStore struct {
	merchants map[int64]*merchant.Merchant
}

func (m *mockMerchantStore) GetByID(ctx context.Context, id int64) (*merchant.Merchant, error) {
	mm, ok := m.merchants[id]
	if !ok {
		return nil, internal.NewNotFoundError("merchant not found", internal.ErrCodeNotFound)
	}
	return mm, nil
}

func (m *mockMerchantStore) GetForUpdate(ctx context.Context, id int64) (*merchant.Merchant, error) {
	return m.GetByID(ctx, id)
}

func (m *mockMerchantStore) Update(ctx context.Context, mm *merchant.Merchant) error {
	m.merchants[mm.ID] = mm
	return nil
}

type mockTxRunner struct {
	repos settlement.TxRepos
}

func (m mockTxRunner) RunInTx(ctx context.Context, fn func(repos settlement.TxRepos) error) error {
	return fn(m.repos)
}

var _ = Describe("Settlement service", func() {
	var (
		repo    *mockSettlementRepository
		store   *mockMerchantStore
		service *settlement.Service
		m       *merchant.Merchant
		ctx     context.Context
	)

	withdraw := func(amount string) (settlement.SettlementView, error) {
		return service.RequestWithdrawal(ctx, m.ID, settlement.WithdrawalDTO{
			Amount:      amount,
			BankName:    "Riyad Bank",
			BankAccount: "3456789012",
			IBAN:        "SA4420000001234567891234",
		})
	}

	BeforeEach(func() {
		repo = newMockSettlementRepository()
		store = &mockMerchantStore{merchants: make(map[int64]*merchant.Merchant)}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		bus := events.NewEventBus(logger)
		service = settlement.NewService(repo, mockTxRunner{
			repos: settlement.TxRepos{Settlements: repo, Merchants: store},
		}, bus, logger)
		ctx = context.Background()

		m = merchant.NewMerchant(20, "Omar Electronics")
		m.ID = 1
		m.Credit(dec("995.00"), dec("5.00"))
		store.merchants[m.ID] = m
	})

	Describe("RequestWithdrawal", func() {
		It("debits the balance and parks the withdrawal as pending", func() {
			view, err := withdraw("500.00")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.SettlementType).To(Equal(settlement.TypeWithdrawal))
			Expect(view.Status).To(Equal(settlement.StatusPending))
			Expect(view.GrossAmount).To(Equal("500.00"))
			Expect(view.NetAmount).To(Equal("500.00"))
			Expect(view.CommissionAmount).To(Equal("0.00"))

			Expect(m.Balance.Equal(dec("495.00"))).To(BeTrue())
		})

		It("rounds sub-cent amounts before debiting", func() {
			view, err := withdraw("10.005")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.GrossAmount).To(Equal("10.01"))
			Expect(m.Balance.Equal(dec("984.99"))).To(BeTrue())
		})

		It("rejects amounts above the balance", func() {
			_, err := withdraw("995.01")
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInsufficientBalance))
			Expect(m.Balance.Equal(dec("995.00"))).To(BeTrue())
		})

		It("rejects withdrawals from a suspended merchant", func() {
			m.Status = merchant.StatusSuspended
			_, err := withdraw("100.00")
			Expect(err).To(HaveOccurred())
		})

		It("requires complete bank details", func() {
			_, err := service.RequestWithdrawal(ctx, m.ID, settlement.WithdrawalDTO{
				Amount:   "100.00",
				BankName: "Riyad Bank",
			})
			Expect(err).To(HaveOccurred())
		})

		It("rejects non-positive amounts", func() {
			_, err := withdraw("0")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ProcessWithdrawal", func() {
		var pending settlement.SettlementView

		BeforeEach(func() {
			var err error
			pending, err = withdraw("500.00")
			Expect(err).NotTo(HaveOccurred())
		})

		It("records the bank reference on success", func() {
			view, err := service.ProcessWithdrawal(ctx, pending.ID, settlement.ProcessDTO{
				Outcome:       "completed",
				BankReference: "TRF-123",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Status).To(Equal(settlement.StatusCompleted))
			Expect(*view.BankReference).To(Equal("TRF-123"))
			Expect(view.CompletedAt).NotTo(BeNil())

			// the debit stands
			Expect(m.Balance.Equal(dec("495.00"))).To(BeTrue())
		})

		It("refunds the debit on failure", func() {
			view, err := service.ProcessWithdrawal(ctx, pending.ID, settlement.ProcessDTO{
				Outcome:       "failed",
				FailureReason: "account closed",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Status).To(Equal(settlement.StatusFailed))
			Expect(*view.FailureReason).To(Equal("account closed"))

			Expect(m.Balance.Equal(dec("995.00"))).To(BeTrue())
		})

		It("requires a reason for failures", func() {
			_, err := service.ProcessWithdrawal(ctx, pending.ID, settlement.ProcessDTO{Outcome: "failed"})
			Expect(err).To(HaveOccurred())
		})

		It("refuses to process the same withdrawal twice", func() {
			_, err := service.ProcessWithdrawal(ctx, pending.ID, settlement.ProcessDTO{
				Outcome:       "completed",
				BankReference: "TRF-123",
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.ProcessWithdrawal(ctx, pending.ID, settlement.ProcessDTO{
				Outcome:       "failed",
				FailureReason: "too late",
			})
			Expect(err).To(HaveOccurred())
		})

		It("never processes income settlements", func() {
			income := settlement.NewIncome(m, 55, dec("1000.00"), dec("0.005"), dec("5.00"), dec("995.00"))
			Expect(repo.Create(ctx, income)).To(Succeed())

			_, err := service.ProcessWithdrawal(ctx, income.ID, settlement.ProcessDTO{
				Outcome:       "completed",
				BankReference: "TRF-999",
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ListForMerchant", func() {
		It("filters by type and status", func() {
			_, err := withdraw("100.00")
			Expect(err).NotTo(HaveOccurred())
			income := settlement.NewIncome(m, 55, dec("1000.00"), dec("0.005"), dec("5.00"), dec("995.00"))
			Expect(repo.Create(ctx, income)).To(Succeed())

			all, err := service.ListForMerchant(ctx, m.ID, "", "", 20, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))

			withdrawals, err := service.ListForMerchant(ctx, m.ID, "withdrawal", "", 20, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(withdrawals).To(HaveLen(1))
			Expect(withdrawals[0].SettlementType).To(Equal(settlement.TypeWithdrawal))

			completed, err := service.ListForMerchant(ctx, m.ID, "", "completed", 20, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(completed).To(HaveLen(1))
			Expect(completed[0].SettlementType).To(Equal(settlement.TypeIncome))
		})

		It("hides other merchants' settlements", func() {
			_, err := withdraw("100.00")
			Expect(err).NotTo(HaveOccurred())

			other, err := service.ListForMerchant(ctx, m.ID+999, "", "", 20, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(other).To(BeEmpty())
		})
	})

	Describe("GetForMerchant", func() {
		It("refuses another merchant's settlement", func() {
			view, err := withdraw("100.00")
			Expect(err).NotTo(HaveOccurred())

			_, err = service.GetForMerchant(ctx, m.ID+999, view.ID)
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(403))
			Expect(appErr.Code).To(Equal(internal.ErrCodeUnauthorizedAccess))
		})
	})

	Describe("PlatformRevenue", func() {
		It("sums commission across completed income settlements", func() {
			a := settlement.NewIncome(m, 55, dec("1000.00"), dec("0.005"), dec("5.00"), dec("995.00"))
			b := settlement.NewIncome(m, 56, dec("400.00"), dec("0.005"), dec("2.00"), dec("398.00"))
			Expect(repo.Create(ctx, a)).To(Succeed())
			Expect(repo.Create(ctx, b)).To(Succeed())

			revenue, err := service.PlatformRevenue(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(revenue.TotalCommission).To(Equal("7.00"))
		})
	})
})
