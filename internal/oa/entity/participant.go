package entity

import (
	"time"
)

// 参与人类型常量
// referrer 提交后立即可见；viewer 只在审批单最终通过后可见
const (
	ParticipantReferrer = "referrer"
	ParticipantViewer   = "viewer"
)

// ApprovalParticipant 审批单的非审批干系人。
// 同一审批单中 (用户, 类型) 组合唯一。
type ApprovalParticipant struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	ApprovalID string    `json:"approval_id" gorm:"size:36;not null;index;uniqueIndex:uniq_participant,priority:1"`
	UserID     string    `json:"user_id" gorm:"size:32;not null;uniqueIndex:uniq_participant,priority:2"`
	Type       string    `json:"type" gorm:"size:16;not null;uniqueIndex:uniq_participant,priority:3"`
	CreatedAt  time.Time `json:"created_at"`

	// 关联
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (ApprovalParticipant) TableName() string {
	return "approval_participants"
}
