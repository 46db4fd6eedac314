package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound        = errors.New("record not found")
	ErrInvalidCategory = errors.New("invalid listing category")
)

// Repositories 仓库集合
type Repositories struct {
	User          *UserRepository
	Attachment    *AttachmentRepository
	Approval      *ApprovalRepository
	ApprovalQuery *ApprovalQueryRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:          NewUserRepository(db),
		Attachment:    NewAttachmentRepository(db),
		Approval:      NewApprovalRepository(db),
		ApprovalQuery: NewApprovalQueryRepository(db),
	}
}
