package entity

import (
	"time"
)

// 审批步骤状态常量
// waiting → pending → {approved, rejected}，离开 waiting 后不会回退
const (
	StepStatusWaiting  = "waiting"
	StepStatusPending  = "pending"
	StepStatusApproved = "approved"
	StepStatusRejected = "rejected"
)

// ApprovalStep 顺序审批链中的一个步骤。
// Seq 在创建时分配为 1..N 连续无重复，之后不再重排。
type ApprovalStep struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	ApprovalID   string     `json:"approval_id" gorm:"size:36;not null;index;uniqueIndex:uniq_step_seq,priority:1"`
	ApproverID   string     `json:"approver_id" gorm:"size:32;not null;index"`
	ApproverName string     `json:"approver_name" gorm:"size:64;not null"`
	Seq          int        `json:"seq" gorm:"not null;uniqueIndex:uniq_step_seq,priority:2"`
	Status       string     `json:"status" gorm:"size:20;not null;default:'waiting'"`
	Comment      string     `json:"comment" gorm:"type:text"`
	DecidedAt    *time.Time `json:"decided_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// 关联
	Approver *User `json:"approver,omitempty" gorm:"foreignKey:ApproverID"`
}

func (ApprovalStep) TableName() string {
	return "approval_steps"
}

// IsTerminal 步骤是否已到终态，终态不再变化
func (s *ApprovalStep) IsTerminal() bool {
	return s.Status == StepStatusApproved || s.Status == StepStatusRejected
}
