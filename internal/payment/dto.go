package payment

import (
	"time"

	"github.com/bareeqalyusr/bnpl-backend/internal/customer"
	"github.com/bareeqalyusr/bnpl-backend/internal/repayment"
	"github.com/bareeqalyusr/bnpl-backend/internal/transaction"
)

// PaymentResult is returned after a successful payment so the client can
// render the updated debt without a second call.
type PaymentResult struct {
	PaymentReference  string     `json:"payment_reference"`
	TransactionID     int64      `json:"transaction_id"`
	Amount            string     `json:"amount"`
	RowsCompleted     int        `json:"installments_completed"`
	RemainingBalance  string     `json:"remaining_balance"`
	TransactionStatus string     `json:"transaction_status"`
	InstallmentsPaid  int        `json:"installments_paid"`
	NextPaymentDate   *time.Time `json:"next_payment_date,omitempty"`
	NextPaymentAmount *string    `json:"next_payment_amount,omitempty"`
	AvailableCredit   string     `json:"available_credit"`
}

func newPaymentResult(p *Payment, txn *transaction.Transaction, plan *repayment.Plan, cust *customer.Customer) *PaymentResult {
	result := &PaymentResult{
		PaymentReference:  p.PaymentReference,
		TransactionID:     txn.ID,
		Amount:            p.Amount.StringFixed(2),
		RowsCompleted:     p.RowsCompleted,
		RemainingBalance:  txn.RemainingBalance.StringFixed(2),
		TransactionStatus: string(txn.Status),
		InstallmentsPaid:  plan.InstallmentsPaid,
		NextPaymentDate:   plan.NextPaymentDate,
		AvailableCredit:   cust.AvailableBalance.StringFixed(2),
	}
	if plan.NextPaymentAmount != nil {
		amount := plan.NextPaymentAmount.StringFixed(2)
		result.NextPaymentAmount = &amount
	}
	return result
}

// PaymentView is the read shape for past payments.
type PaymentView struct {
	ID               int64     `json:"id"`
	PaymentReference string    `json:"payment_reference"`
	TransactionID    int64     `json:"transaction_id"`
	Amount           string    `json:"amount"`
	Method           string    `json:"payment_method"`
	Status           string    `json:"status"`
	RowsCompleted    int       `json:"installments_completed"`
	BalanceAfter     string    `json:"balance_after"`
	CreatedAt        time.Time `json:"created_at"`
}

func newPaymentView(p *Payment) PaymentView {
	return PaymentView{
		ID:               p.ID,
		PaymentReference: p.PaymentReference,
		TransactionID:    p.TransactionID,
		Amount:           p.Amount.StringFixed(2),
		Method:           string(p.Method),
		Status:           string(p.Status),
		RowsCompleted:    p.RowsCompleted,
		BalanceAfter:     p.BalanceAfter.StringFixed(2),
		CreatedAt:        p.CreatedAt,
	}
}

// TransactionView is the list shape for transactions.
type TransactionView struct {
	ID                int64      `json:"id"`
	TransactionNumber string     `json:"transaction_number"`
	MerchantID        int64      `json:"merchant_id"`
	CustomerID        int64      `json:"customer_id"`
	TotalAmount       string     `json:"total_amount"`
	PaidAmount        string     `json:"paid_amount"`
	RemainingBalance  string     `json:"remaining_balance"`
	Status            string     `json:"status"`
	DueDate           time.Time  `json:"due_date"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

func newTransactionView(t *transaction.Transaction) TransactionView {
	return TransactionView{
		ID:                t.ID,
		TransactionNumber: t.TransactionNumber,
		MerchantID:        t.MerchantID,
		CustomerID:        t.CustomerID,
		TotalAmount:       t.TotalAmount.StringFixed(2),
		PaidAmount:        t.PaidAmount.StringFixed(2),
		RemainingBalance:  t.RemainingBalance.StringFixed(2),
		Status:            string(t.Status),
		DueDate:           t.DueDate,
		CreatedAt:         t.CreatedAt,
		CompletedAt:       t.CompletedAt,
	}
}

func toTransactionViews(txns []*transaction.Transaction) []TransactionView {
	views := make([]TransactionView, len(txns))
	for i, t := range txns {
		views[i] = newTransactionView(t)
	}
	return views
}

// ScheduleView is one installment row. Status reads as overdue for pending
// rows past their due date even before the sweep stamps them.
type ScheduleView struct {
	ID                int64      `json:"id"`
	PlanID            int64      `json:"plan_id"`
	InstallmentNumber int        `json:"installment_number"`
	Amount            string     `json:"amount"`
	PaidAmount        string     `json:"paid_amount"`
	Remaining         string     `json:"remaining"`
	DueDate           time.Time  `json:"due_date"`
	Status            string     `json:"status"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
}

func newScheduleView(s *repayment.Schedule, now time.Time) ScheduleView {
	status := s.Status
	if status == repayment.ScheduleStatusPending && s.IsOverdue(now) {
		status = repayment.ScheduleStatusOverdue
	}
	return ScheduleView{
		ID:                s.ID,
		PlanID:            s.PlanID,
		InstallmentNumber: s.InstallmentNumber,
		Amount:            s.Amount.StringFixed(2),
		PaidAmount:        s.PaidAmount.StringFixed(2),
		Remaining:         s.Remaining().StringFixed(2),
		DueDate:           s.DueDate,
		Status:            string(status),
		PaidAt:            s.PaidAt,
	}
}

// PlanView summarizes a repayment plan inside the transaction detail.
type PlanView struct {
	PlanReference     string     `json:"plan_reference"`
	PlanType          int        `json:"plan_type"`
	InstallmentAmount string     `json:"installment_amount"`
	InstallmentsPaid  int        `json:"installments_paid"`
	TotalInstallments int        `json:"total_installments"`
	AmountPaid        string     `json:"amount_paid"`
	RemainingAmount   string     `json:"remaining_amount"`
	Status            string     `json:"status"`
	NextPaymentDate   *time.Time `json:"next_payment_date,omitempty"`
	NextPaymentAmount *string    `json:"next_payment_amount,omitempty"`
}

// TransactionDetail is the full read of a transaction with its plan,
// schedule and payment history.
type TransactionDetail struct {
	Transaction TransactionView `json:"transaction"`
	Plan        PlanView        `json:"plan"`
	Schedule    []ScheduleView  `json:"schedule"`
	Payments    []PaymentView   `json:"payments"`
}

func newTransactionDetail(txn *transaction.Transaction, plan *repayment.Plan, schedules []*repayment.Schedule, payments []*Payment) *TransactionDetail {
	now := time.Now().UTC()
	planView := PlanView{
		PlanReference:     plan.PlanReference,
		PlanType:          plan.PlanType,
		InstallmentAmount: plan.InstallmentAmount.StringFixed(2),
		InstallmentsPaid:  plan.InstallmentsPaid,
		TotalInstallments: plan.NumberOfInstallments,
		AmountPaid:        plan.AmountPaid.StringFixed(2),
		RemainingAmount:   plan.RemainingAmount.StringFixed(2),
		Status:            string(plan.Status),
		NextPaymentDate:   plan.NextPaymentDate,
	}
	if plan.NextPaymentAmount != nil {
		amount := plan.NextPaymentAmount.StringFixed(2)
		planView.NextPaymentAmount = &amount
	}

	scheduleViews := make([]ScheduleView, len(schedules))
	for i, row := range schedules {
		scheduleViews[i] = newScheduleView(row, now)
	}
	paymentViews := make([]PaymentView, len(payments))
	for i, p := range payments {
		paymentViews[i] = newPaymentView(p)
	}
	return &TransactionDetail{
		Transaction: newTransactionView(txn),
		Plan:        planView,
		Schedule:    scheduleViews,
		Payments:    paymentViews,
	}
}
