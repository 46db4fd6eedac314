package entity

import (
	"time"
)

// 请假类别常量
const (
	LeaveTypeLeave     = "leave"
	LeaveTypeHalfOff   = "half_off"
	LeaveTypeEducation = "education"
	LeaveTypeTraining  = "training"
	LeaveTypeOther     = "other"
)

// 请假子类别常量
const (
	LeaveDetailAnnual      = "annual"
	LeaveDetailFamilyEvent = "family_event"
	LeaveDetailMenstrual   = "menstrual"
	LeaveDetailPaid        = "paid"
	LeaveDetailUnpaid      = "unpaid"
	LeaveDetailAM          = "am"
	LeaveDetailPM          = "pm"
)

// allowedLeaveDetails 类别 → 允许的子类别集合。
// education/training/other 不带子类别（空集合，要求子类别为空）。
var allowedLeaveDetails = map[string]map[string]bool{
	LeaveTypeLeave: {
		LeaveDetailAnnual:      true,
		LeaveDetailFamilyEvent: true,
		LeaveDetailMenstrual:   true,
		LeaveDetailPaid:        true,
		LeaveDetailUnpaid:      true,
	},
	LeaveTypeHalfOff: {
		LeaveDetailAM: true,
		LeaveDetailPM: true,
	},
	LeaveTypeEducation: {},
	LeaveTypeTraining:  {},
	LeaveTypeOther:     {},
}

// LeaveDetailAllowed 校验请假类别与子类别的配对是否合法
func LeaveDetailAllowed(leaveType, leaveDetail string) bool {
	allowed, ok := allowedLeaveDetails[leaveType]
	if !ok {
		return false
	}
	if len(allowed) == 0 {
		return leaveDetail == ""
	}
	return allowed[leaveDetail]
}

// LeaveDetail 请假单明细
type LeaveDetail struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	ApprovalID  string    `json:"approval_id" gorm:"size:36;not null;uniqueIndex"`
	LeaveType   string    `json:"leave_type" gorm:"size:32;not null"`
	LeaveDetail string    `json:"leave_detail" gorm:"size:32"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
}

func (LeaveDetail) TableName() string {
	return "approval_leave_details"
}

// CarFuelDetail 车辆油费明细
type CarFuelDetail struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	ApprovalID string    `json:"approval_id" gorm:"size:36;not null;uniqueIndex"`
	Vehicle    string    `json:"vehicle" gorm:"size:64;not null"`
	DistanceKM float64   `json:"distance_km" gorm:"not null"`
	Amount     int64     `json:"amount" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

func (CarFuelDetail) TableName() string {
	return "approval_car_fuel_details"
}

// ExpenseDetail 支出决议明细。
// 福利费（welfare_expense）复用同一结构：Welfare 置位并带 WelfareTarget，
// 是 expense_draft 的特化而不是独立分支。
type ExpenseDetail struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	ApprovalID    string    `json:"approval_id" gorm:"size:36;not null;uniqueIndex"`
	TotalAmount   int64     `json:"total_amount" gorm:"not null"`
	Welfare       bool      `json:"welfare" gorm:"not null;default:false"`
	WelfareTarget string    `json:"welfare_target" gorm:"size:128"`
	CreatedAt     time.Time `json:"created_at"`

	// 关联
	Lines []ExpenseLine `json:"lines,omitempty" gorm:"foreignKey:DetailID"`
}

func (ExpenseDetail) TableName() string {
	return "approval_expense_details"
}

// ExpenseLine 支出明细行，Seq 保持输入顺序
type ExpenseLine struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	DetailID   string    `json:"detail_id" gorm:"size:36;not null;index"`
	Seq        int       `json:"seq" gorm:"not null"`
	OccurredOn time.Time `json:"occurred_on" gorm:"not null"`
	Purpose    string    `json:"purpose" gorm:"size:200;not null"`
	Amount     int64     `json:"amount" gorm:"not null"`
}

func (ExpenseLine) TableName() string {
	return "approval_expense_lines"
}

// OverseasTripDetail 海外出差明细
type OverseasTripDetail struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	ApprovalID string    `json:"approval_id" gorm:"size:36;not null;uniqueIndex"`
	Country    string    `json:"country" gorm:"size:64;not null"`
	StartDate  time.Time `json:"start_date" gorm:"not null"`
	EndDate    time.Time `json:"end_date" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`

	// 关联
	Lines []TripExpenseLine `json:"lines,omitempty" gorm:"foreignKey:DetailID"`
}

func (OverseasTripDetail) TableName() string {
	return "approval_overseas_trip_details"
}

// TripExpenseLine 出差费用明细行
type TripExpenseLine struct {
	ID       string `json:"id" gorm:"primaryKey;size:36"`
	DetailID string `json:"detail_id" gorm:"size:36;not null;index"`
	Seq      int    `json:"seq" gorm:"not null"`
	Category string `json:"category" gorm:"size:64;not null"`
	Purpose  string `json:"purpose" gorm:"size:200"`
	Amount   int64  `json:"amount" gorm:"not null"`
	Currency string `json:"currency" gorm:"size:8;not null;default:'CNY'"`
}

func (TripExpenseLine) TableName() string {
	return "approval_trip_expense_lines"
}
