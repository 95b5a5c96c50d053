package merchant_test

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
	"github.com/bareeqalyusr/bnpl-backend/internal/merchant"
)

func TestMerchant(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Merchant Suite")
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	Expect(err).NotTo(HaveOccurred())
	return d
}

// Mock repository for testing
type mockMerchantRepository struct {
	merchants       map[int64]*merchant.Merchant
	pendingRequests int64
	activeTxns      int64
	completedTxns   int64
	nextID          int64
}

func newMockMerchantRepository() *mockMerchantRepository {
	return &mockMerchantRepository{
		merchants: make(map[int64]*merchant.Merchant),
		nextID:    1,
	}
}

func (m *mockMerchantRepository) Create(ctx context.Context, mm *merchant.Merchant) error {
	mm.ID = m.nextID
	m.nextID++
	m.merchants[mm.ID] = mm
	return nil
}

func (m *mockMerchantRepository) GetByID(ctx context.Context, id int64) (*merchant.Merchant, error) {
	mm, ok := m.merchants[id]
	if !ok {
		return nil, internal.NewNotFoundError("merchant not found", internal.ErrCodeNotFound)
	}
	return mm, nil
}

func (m *mockMerchantRepository) GetByUserID(ctx context.Context, userID int64) (*merchant.Merchant, error) {
	for _, mm := range m.merchants {
		if mm.UserID == userID {
			return mm, nil
		}
	}
	return nil, internal.NewNotFoundError("merchant not found", internal.ErrCodeNotFound)
}

func (m *mockMerchantRepository) GetForUpdate(ctx context.Context, id int64) (*merchant.Merchant, error) {
	return m.GetByID(ctx, id)
}

func (m *mockMerchantRepository) Update(ctx context.Context, mm *merchant.Merchant) error {
	m.merchants[mm.ID] = mm
	return nil
}

func (m *mockMerchantRepository) CountRequestsByStatus(ctx context.Context, merchantID int64, status string) (int64, error) {
	return m.pendingRequests, nil
}

func (m *mockMerchantRepository) CountTransactionsByStatus(ctx context.Context, merchantID int64, status string) (int64, error) {
	if status == "active" {
		return m.activeTxns, nil
	}
	return m.completedTxns, nil
}

var _ = Describe("Merchant entity", func() {
	var m *merchant.Merchant

	BeforeEach(func() {
		m = merchant.NewMerchant(20, "Omar Electronics")
	})

	It("starts active with zero balances", func() {
		Expect(m.IsActive()).To(BeTrue())
		Expect(m.Balance.IsZero()).To(BeTrue())
		Expect(m.TotalTransactions).To(BeZero())
	})

	It("accrues balance and commission on credit", func() {
		m.RecordSale(dec("1000.00"))
		m.Credit(dec("995.00"), dec("5.00"))

		Expect(m.Balance.Equal(dec("995.00"))).To(BeTrue())
		Expect(m.TotalCommissionPaid.Equal(dec("5.00"))).To(BeTrue())
		Expect(m.TotalVolume.Equal(dec("1000.00"))).To(BeTrue())
		Expect(m.TotalTransactions).To(Equal(int64(1)))
	})

	Describe("Debit", func() {
		BeforeEach(func() {
			m.Credit(dec("500.00"), dec("2.51"))
		})

		It("removes from the balance", func() {
			Expect(m.Debit(dec("200.00"))).To(Succeed())
			Expect(m.Balance.Equal(dec("300.00"))).To(BeTrue())
		})

		It("rejects amounts above the balance", func() {
			err := m.Debit(dec("500.01"))
			Expect(err).To(HaveOccurred())
			Expect(m.Balance.Equal(dec("500.00"))).To(BeTrue())
		})

		It("is reversed by Refund", func() {
			Expect(m.Debit(dec("200.00"))).To(Succeed())
			m.Refund(dec("200.00"))
			Expect(m.Balance.Equal(dec("500.00"))).To(BeTrue())
		})
	})
})

var _ = Describe("BankDetails", func() {
	It("requires a bank name and IBAN", func() {
		Expect(merchant.BankDetails{BankName: "Riyad Bank", IBAN: "SA442000"}.Validate()).To(Succeed())
		Expect(merchant.BankDetails{BankName: "Riyad Bank"}.Validate()).NotTo(Succeed())
		Expect(merchant.BankDetails{IBAN: "SA442000"}.Validate()).NotTo(Succeed())
	})
})

var _ = Describe("Merchant service", func() {
	var (
		repo    *mockMerchantRepository
		service *merchant.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		repo = newMockMerchantRepository()
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		bus := events.NewEventBus(logger)
		service = merchant.NewService(repo, nil, bus, logger)
		ctx = context.Background()
	})

	Describe("Register", func() {
		It("creates an active unverified profile", func() {
			m, err := service.Register(ctx, 42, "Omar Electronics")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.UserID).To(Equal(int64(42)))
			Expect(m.ShopName).To(Equal("Omar Electronics"))
			Expect(m.IsActive()).To(BeTrue())
			Expect(m.IsVerified).To(BeFalse())
		})
	})

	Describe("GetStats", func() {
		It("combines the profile counters with live counts", func() {
			m, err := service.Register(ctx, 42, "Omar Electronics")
			Expect(err).NotTo(HaveOccurred())
			m.RecordSale(dec("1000.00"))
			m.Credit(dec("995.00"), dec("5.00"))
			repo.pendingRequests = 2
			repo.activeTxns = 3
			repo.completedTxns = 4

			stats, err := service.GetStats(ctx, m.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.ShopName).To(Equal("Omar Electronics"))
			Expect(stats.Balance.Equal(dec("995.00"))).To(BeTrue())
			Expect(stats.PendingRequests).To(Equal(int64(2)))
			Expect(stats.ActiveTransactions).To(Equal(int64(3)))
			Expect(stats.CompletedTransactions).To(Equal(int64(4)))
		})

		It("fails for an unknown merchant", func() {
			_, err := service.GetStats(ctx, 999)
			Expect(err).To(HaveOccurred())
		})
	})
})
