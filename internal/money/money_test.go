package money_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal/money"
)

func TestMoney(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Money Suite")
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	Expect(err).NotTo(HaveOccurred())
	return d
}

var _ = Describe("SplitEven", func() {
	It("splits an amount that divides cleanly", func() {
		parts := money.SplitEven(dec("300.00"), 3)
		Expect(parts).To(HaveLen(3))
		for _, p := range parts {
			Expect(p.Equal(dec("100.00"))).To(BeTrue())
		}
	})

	It("puts the remainder on the last installment", func() {
		parts := money.SplitEven(dec("100.00"), 3)
		Expect(parts).To(HaveLen(3))
		Expect(parts[0].Equal(dec("33.33"))).To(BeTrue())
		Expect(parts[1].Equal(dec("33.33"))).To(BeTrue())
		Expect(parts[2].Equal(dec("33.34"))).To(BeTrue())
	})

	It("always sums back to the total", func() {
		totals := []string{"100.00", "999.99", "0.01", "1234.56", "7000.03"}
		for _, t := range totals {
			for n := 1; n <= 12; n++ {
				parts := money.SplitEven(dec(t), n)
				Expect(money.Sum(parts).Equal(dec(t))).To(BeTrue(),
					"splitting %s into %d parts", t, n)
			}
		}
	})

	It("returns the total untouched for a single installment", func() {
		parts := money.SplitEven(dec("499.99"), 1)
		Expect(parts).To(HaveLen(1))
		Expect(parts[0].Equal(dec("499.99"))).To(BeTrue())
	})

	It("returns nil for a non-positive count", func() {
		Expect(money.SplitEven(dec("100.00"), 0)).To(BeNil())
		Expect(money.SplitEven(dec("100.00"), -1)).To(BeNil())
	})
})

var _ = Describe("Commission", func() {
	It("computes commission and net at the standard rate", func() {
		commission, net := money.Commission(dec("1000.00"), dec("0.005"))
		Expect(commission.Equal(dec("5.00"))).To(BeTrue())
		Expect(net.Equal(dec("995.00"))).To(BeTrue())
	})

	It("rounds the commission half-up", func() {
		commission, net := money.Commission(dec("101.00"), dec("0.005"))
		Expect(commission.Equal(dec("0.51"))).To(BeTrue())
		Expect(net.Equal(dec("100.49"))).To(BeTrue())
	})

	It("recomposes to the gross amount exactly", func() {
		grosses := []string{"0.01", "33.33", "999.99", "12345.67"}
		for _, g := range grosses {
			commission, net := money.Commission(dec(g), dec("0.005"))
			Expect(commission.Add(net).Equal(dec(g))).To(BeTrue())
		}
	})
})

var _ = Describe("FromString", func() {
	It("parses and rounds to two decimals", func() {
		d, err := money.FromString("10.999")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Equal(dec("11.00"))).To(BeTrue())
	})

	It("rejects malformed input", func() {
		_, err := money.FromString("ten")
		Expect(err).To(HaveOccurred())
	})
})
