package repayment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/refnum"
	"github.com/bareeqalyusr/bnpl-backend/internal/money"
)

// ValidPlanTypes are the offered installment counts, in months.
var ValidPlanTypes = []int{1, 3, 6, 12, 18, 24}

func IsValidPlanType(planType int) bool {
	for _, t := range ValidPlanTypes {
		if t == planType {
			return true
		}
	}
	return false
}

type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusDefaulted PlanStatus = "defaulted"
)

// Plan is the interest-free installment schedule attached 1:1 to a
// transaction. InstallmentAmount is the nominal per-installment value; the
// last schedule row absorbs the rounding remainder.
type Plan struct {
	ID                   int64            `json:"id" gorm:"primaryKey"`
	PlanReference        string           `json:"plan_reference" gorm:"column:plan_reference;size:50;uniqueIndex;not null"`
	TransactionID        int64            `json:"transaction_id" gorm:"column:transaction_id;uniqueIndex;not null"`
	CustomerID           int64            `json:"customer_id" gorm:"column:customer_id;index;not null"`
	PlanType             int              `json:"plan_type" gorm:"column:plan_type;not null"`
	TotalAmount          decimal.Decimal  `json:"total_amount" gorm:"column:total_amount;type:numeric(12,2);not null"`
	InstallmentAmount    decimal.Decimal  `json:"installment_amount" gorm:"column:installment_amount;type:numeric(12,2);not null"`
	NumberOfInstallments int              `json:"number_of_installments" gorm:"column:number_of_installments;not null"`
	InstallmentsPaid     int              `json:"installments_paid" gorm:"column:installments_paid;default:0"`
	AmountPaid           decimal.Decimal  `json:"amount_paid" gorm:"column:amount_paid;type:numeric(12,2);not null"`
	RemainingAmount      decimal.Decimal  `json:"remaining_amount" gorm:"column:remaining_amount;type:numeric(12,2);not null"`
	Status               PlanStatus       `json:"status" gorm:"column:status;size:20;index;default:active"`
	NextPaymentDate      *time.Time       `json:"next_payment_date,omitempty" gorm:"column:next_payment_date"`
	NextPaymentAmount    *decimal.Decimal `json:"next_payment_amount,omitempty" gorm:"column:next_payment_amount;type:numeric(12,2)"`
	CreatedAt            time.Time        `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time        `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	CompletedAt          *time.Time       `json:"completed_at,omitempty" gorm:"column:completed_at"`
}

func (Plan) TableName() string {
	return "repayment_plans"
}

type ScheduleStatus string

const (
	ScheduleStatusPending ScheduleStatus = "pending"
	ScheduleStatusPaid    ScheduleStatus = "paid"
	ScheduleStatusOverdue ScheduleStatus = "overdue"
	ScheduleStatusSkipped ScheduleStatus = "skipped"
)

// Schedule is one dated installment of a plan.
type Schedule struct {
	ID                int64           `json:"id" gorm:"primaryKey"`
	PlanID            int64           `json:"plan_id" gorm:"column:plan_id;index;not null"`
	InstallmentNumber int             `json:"installment_number" gorm:"column:installment_number;not null"`
	Amount            decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(12,2);not null"`
	DueDate           time.Time       `json:"due_date" gorm:"column:due_date;not null"`
	Status            ScheduleStatus  `json:"status" gorm:"column:status;size:20;index;default:pending"`
	PaidAmount        decimal.Decimal `json:"paid_amount" gorm:"column:paid_amount;type:numeric(12,2);not null"`
	PaidAt            *time.Time      `json:"paid_at,omitempty" gorm:"column:paid_at"`
	CreatedAt         time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Schedule) TableName() string {
	return "repayment_schedules"
}

// Remaining is the unpaid slice of this installment.
func (s *Schedule) Remaining() decimal.Decimal {
	return s.Amount.Sub(s.PaidAmount)
}

func (s *Schedule) IsOpen() bool {
	return s.Status == ScheduleStatusPending || s.Status == ScheduleStatusOverdue
}

func (s *Schedule) IsOverdue(now time.Time) bool {
	return s.IsOpen() && now.After(s.DueDate)
}

// ApplyPayment fills the row with up to amount and returns how much it
// absorbed. The row flips to paid only when fully covered; a partial payment
// leaves it open with the paid amount tracked.
func (s *Schedule) ApplyPayment(amount decimal.Decimal, now time.Time) decimal.Decimal {
	applied := money.Min(amount, s.Remaining())
	if !money.IsPositive(applied) {
		return decimal.Zero
	}
	s.PaidAmount = s.PaidAmount.Add(applied)
	if s.PaidAmount.Equal(s.Amount) {
		s.Status = ScheduleStatusPaid
		s.PaidAt = &now
	}
	return applied
}

// NewPlan builds a plan and its full schedule. The schedule rows carry the
// floor-split amounts with the remainder on the last row, so they always sum
// back to total exactly; a mismatch aborts with an invariant error.
func NewPlan(transactionID, customerID int64, total decimal.Decimal, planType int, firstDueDate time.Time) (*Plan, []*Schedule, error) {
	if !IsValidPlanType(planType) {
		return nil, nil, internal.NewValidationError("invalid plan type, choose 1, 3, 6, 12, 18 or 24 months", internal.ErrCodeInvalidPlanType)
	}

	amounts := money.SplitEven(total, planType)
	if !money.Sum(amounts).Equal(total) {
		return nil, nil, internal.NewInvariantError("schedule amounts do not sum to plan total", internal.ErrCodeScheduleInvariant)
	}

	schedules := make([]*Schedule, planType)
	prepaid := 0
	for i, amount := range amounts {
		row := &Schedule{
			InstallmentNumber: i + 1,
			Amount:            amount,
			DueDate:           AddMonths(firstDueDate, i),
			Status:            ScheduleStatusPending,
			PaidAmount:        decimal.Zero,
		}
		// sub-cent totals floor some rows to 0.00; those have nothing to
		// collect and are born paid
		if amount.IsZero() {
			row.Status = ScheduleStatusPaid
			prepaid++
		}
		schedules[i] = row
	}

	plan := &Plan{
		PlanReference:        refnum.New(refnum.Plan),
		TransactionID:        transactionID,
		CustomerID:           customerID,
		PlanType:             planType,
		TotalAmount:          total,
		InstallmentAmount:    amounts[0],
		NumberOfInstallments: planType,
		InstallmentsPaid:     prepaid,
		AmountPaid:           decimal.Zero,
		RemainingAmount:      total,
		Status:               PlanStatusActive,
	}
	for _, row := range schedules {
		if row.IsOpen() {
			due := row.DueDate
			amount := row.Amount
			plan.NextPaymentDate = &due
			plan.NextPaymentAmount = &amount
			break
		}
	}
	return plan, schedules, nil
}

// RecordPayment moves the plan's progress counters in lockstep with the
// schedule rows the payment engine just updated.
func (p *Plan) RecordPayment(amount decimal.Decimal, rowsCompleted int, schedules []*Schedule) error {
	if amount.GreaterThan(p.RemainingAmount) {
		return internal.NewInvariantError("payment exceeds remaining plan amount", internal.ErrCodeScheduleInvariant)
	}
	p.InstallmentsPaid += rowsCompleted
	p.AmountPaid = p.AmountPaid.Add(amount)
	p.RemainingAmount = p.RemainingAmount.Sub(amount)

	if p.RemainingAmount.IsZero() {
		now := time.Now().UTC()
		p.Status = PlanStatusCompleted
		p.CompletedAt = &now
		p.NextPaymentDate = nil
		p.NextPaymentAmount = nil
		return nil
	}

	// the next payment points at the oldest row that still owes money
	for _, s := range schedules {
		if s.IsOpen() {
			due := s.DueDate
			remaining := s.Remaining()
			p.NextPaymentDate = &due
			p.NextPaymentAmount = &remaining
			break
		}
	}
	return nil
}

// AddMonths advances t by the given number of calendar months, clamping to
// the last day when the target month is shorter (Jan 31 + 1 month = Feb 28).
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
