package customer

import (
	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
)

// LimitIncreaseDTO is the request payload for a credit limit increase.
type LimitIncreaseDTO struct {
	NewLimit decimal.Decimal `json:"new_limit"`
	Reason   *string         `json:"reason,omitempty"`
}

func (dto LimitIncreaseDTO) Validate() error {
	if !dto.NewLimit.GreaterThan(decimal.Zero) {
		return internal.NewValidationError("new_limit must be greater than 0", internal.ErrCodeInvalidAmount)
	}
	return nil
}

// LimitDecisionDTO is the admin payload resolving a pending limit request.
type LimitDecisionDTO struct {
	Approve bool `json:"approve"`
}

// BalanceView is the read model for a customer's credit position.
type BalanceView struct {
	CustomerCode       string          `json:"customer_code"`
	CreditLimit        decimal.Decimal `json:"credit_limit"`
	AvailableBalance   decimal.Decimal `json:"available_balance"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	Status             Status          `json:"status"`
}

func (c *Customer) BalanceView() BalanceView {
	return BalanceView{
		CustomerCode:       c.CustomerCode,
		CreditLimit:        c.CreditLimit,
		AvailableBalance:   c.AvailableBalance,
		OutstandingBalance: c.OutstandingBalance,
		Status:             c.Status,
	}
}
