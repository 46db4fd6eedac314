package entity

import (
	"time"
)

// ApprovalAttachment 审批附件。文件本体在创建审批单之前就已上传到对象存储，
// 这里只记录存储键；创建审批单时把已有附件记录挂到审批单上。
type ApprovalAttachment struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	ApprovalID string    `json:"approval_id" gorm:"size:36;index"`
	FileName   string    `json:"file_name" gorm:"size:256;not null"`
	ObjectKey  string    `json:"object_key" gorm:"size:512;not null"`
	Size       int64     `json:"size" gorm:"not null"`
	MimeType   string    `json:"mime_type" gorm:"size:128"`
	UploadedBy string    `json:"uploaded_by" gorm:"size:32;not null"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ApprovalAttachment) TableName() string {
	return "approval_attachments"
}
