package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/repayment"
)

var errPlanNotFound = internal.NewNotFoundError("Repayment plan not found", internal.ErrCodePlanNotFound)

type RepaymentRepository struct {
	db *gorm.DB
}

func NewRepaymentRepository(db *gorm.DB) *RepaymentRepository {
	return &RepaymentRepository{db: db}
}

func (r *RepaymentRepository) CreatePlan(ctx context.Context, p *repayment.Plan) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *RepaymentRepository) CreateSchedules(ctx context.Context, schedules []*repayment.Schedule) error {
	return r.db.WithContext(ctx).Create(schedules).Error
}

func (r *RepaymentRepository) GetPlanByID(ctx context.Context, id int64) (*repayment.Plan, error) {
	var p repayment.Plan
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *RepaymentRepository) GetPlanByTransaction(ctx context.Context, transactionID int64) (*repayment.Plan, error) {
	var p repayment.Plan
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *RepaymentRepository) GetPlanForUpdate(ctx context.Context, transactionID int64) (*repayment.Plan, error) {
	var p repayment.Plan
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_id = ?", transactionID).
		First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *RepaymentRepository) UpdatePlan(ctx context.Context, p *repayment.Plan) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// ListSchedules returns a plan's rows in installment order; payment
// application depends on this ordering.
func (r *RepaymentRepository) ListSchedules(ctx context.Context, planID int64) ([]*repayment.Schedule, error) {
	var schedules []*repayment.Schedule
	err := r.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("installment_number ASC").
		Find(&schedules).Error
	return schedules, err
}

func (r *RepaymentRepository) ListSchedulesForUpdate(ctx context.Context, planID int64) ([]*repayment.Schedule, error) {
	var schedules []*repayment.Schedule
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("plan_id = ?", planID).
		Order("installment_number ASC").
		Find(&schedules).Error
	return schedules, err
}

func (r *RepaymentRepository) UpdateSchedule(ctx context.Context, s *repayment.Schedule) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *RepaymentRepository) ListPlansByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]*repayment.Plan, error) {
	var plans []*repayment.Plan
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&plans).Error
	return plans, err
}

// ListUpcoming returns open installments for a customer due inside the window.
func (r *RepaymentRepository) ListUpcoming(ctx context.Context, customerID int64, until time.Time) ([]*repayment.Schedule, error) {
	var schedules []*repayment.Schedule
	err := r.db.WithContext(ctx).
		Joins("JOIN repayment_plans ON repayment_plans.id = repayment_schedules.plan_id").
		Where("repayment_plans.customer_id = ?", customerID).
		Where("repayment_schedules.status IN ?", []repayment.ScheduleStatus{repayment.ScheduleStatusPending, repayment.ScheduleStatusOverdue}).
		Where("repayment_schedules.due_date <= ?", until).
		Order("repayment_schedules.due_date ASC").
		Find(&schedules).Error
	return schedules, err
}

// ListOverduePending returns rows past due that still read pending, for the
// sweep worker to persist what lazy reads already surface.
func (r *RepaymentRepository) ListOverduePending(ctx context.Context, now time.Time, limit int) ([]*repayment.Schedule, error) {
	var schedules []*repayment.Schedule
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", repayment.ScheduleStatusPending, now).
		Limit(limit).
		Find(&schedules).Error
	return schedules, err
}
