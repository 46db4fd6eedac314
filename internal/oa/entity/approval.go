package entity

import (
	"fmt"
	"time"
)

// 审批单状态常量
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
	ApprovalStatusCanceled = "canceled"
)

// DocumentType 审批文书类型判别符
type DocumentType string

const (
	DocTypeBasic          DocumentType = "basic"
	DocTypeLeave          DocumentType = "leave"
	DocTypeCarFuel        DocumentType = "car_fuel"
	DocTypeExpenseDraft   DocumentType = "expense_draft"
	DocTypeOverseasTrip   DocumentType = "overseas_trip"
	DocTypeWelfareExpense DocumentType = "welfare_expense"
)

// AllDocumentTypes 全部文书类型（注册表校验用）
var AllDocumentTypes = []DocumentType{
	DocTypeBasic,
	DocTypeLeave,
	DocTypeCarFuel,
	DocTypeExpenseDraft,
	DocTypeOverseasTrip,
	DocTypeWelfareExpense,
}

// 保存期限分类常量
const (
	Retention1Year  = "1_year"
	Retention3Years = "3_years"
	Retention5Years = "5_years"
)

// RetentionByDocumentType 文书类型 → 保存期限的固定映射。
// 保存期限在创建时拷贝到审批单上，之后不再重新推导。
var RetentionByDocumentType = map[DocumentType]string{
	DocTypeBasic:          Retention3Years,
	DocTypeLeave:          Retention3Years,
	DocTypeCarFuel:        Retention5Years,
	DocTypeExpenseDraft:   Retention5Years,
	DocTypeOverseasTrip:   Retention5Years,
	DocTypeWelfareExpense: Retention5Years,
}

// ValidateDocumentTypeRegistry 启动时校验类型注册表是否完整，缺失立即失败
func ValidateDocumentTypeRegistry() error {
	for _, dt := range AllDocumentTypes {
		if _, ok := RetentionByDocumentType[dt]; !ok {
			return fmt.Errorf("document type %q has no retention mapping", dt)
		}
	}
	return nil
}

// Approval 审批单。公共字段放一张表，变体明细各自一张表，按审批单ID关联。
// 起草部门是创建时的快照字段，不随通讯录变化。
type Approval struct {
	ID              string       `json:"id" gorm:"primaryKey;size:36"`
	Title           string       `json:"title" gorm:"size:200;not null"`
	Content         string       `json:"content" gorm:"type:text"`
	DocumentType    DocumentType `json:"document_type" gorm:"size:32;not null;index"`
	Status          string       `json:"status" gorm:"size:20;not null;default:'pending';index"`
	RetentionPeriod string       `json:"retention_period" gorm:"size:20;not null"`
	DrafterID       string       `json:"drafter_id" gorm:"size:32;not null;index"`
	DrafterName     string       `json:"drafter_name" gorm:"size:64;not null"`
	DraftDeptID     string       `json:"draft_dept_id" gorm:"size:32"`
	DraftDeptName   string       `json:"draft_dept_name" gorm:"size:128"`
	LockVersion     int          `json:"-" gorm:"not null;default:0"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`

	// 关联
	Steps        []ApprovalStep        `json:"steps,omitempty" gorm:"foreignKey:ApprovalID"`
	Participants []ApprovalParticipant `json:"participants,omitempty" gorm:"foreignKey:ApprovalID"`
	Attachments  []ApprovalAttachment  `json:"attachments,omitempty" gorm:"foreignKey:ApprovalID"`
	Drafter      *User                 `json:"drafter,omitempty" gorm:"foreignKey:DrafterID"`

	// 变体明细（至多一个非空，由 DocumentType 决定）
	LeaveDetail        *LeaveDetail        `json:"leave_detail,omitempty" gorm:"foreignKey:ApprovalID"`
	CarFuelDetail      *CarFuelDetail      `json:"car_fuel_detail,omitempty" gorm:"foreignKey:ApprovalID"`
	ExpenseDetail      *ExpenseDetail      `json:"expense_detail,omitempty" gorm:"foreignKey:ApprovalID"`
	OverseasTripDetail *OverseasTripDetail `json:"overseas_trip_detail,omitempty" gorm:"foreignKey:ApprovalID"`
}

func (Approval) TableName() string {
	return "approvals"
}

// IsTerminal 审批单是否已到终态
func (a *Approval) IsTerminal() bool {
	return a.Status == ApprovalStatusApproved ||
		a.Status == ApprovalStatusRejected ||
		a.Status == ApprovalStatusCanceled
}

// CurrentStep 当前待审批的步骤。约定同一审批单最多只有一个 pending 步骤。
func (a *Approval) CurrentStep() *ApprovalStep {
	for i := range a.Steps {
		if a.Steps[i].Status == StepStatusPending {
			return &a.Steps[i]
		}
	}
	return nil
}

// StepByApprover 按审批人查找步骤；每个审批人在一个审批单里最多出现一次
func (a *Approval) StepByApprover(userID string) *ApprovalStep {
	for i := range a.Steps {
		if a.Steps[i].ApproverID == userID {
			return &a.Steps[i]
		}
	}
	return nil
}
