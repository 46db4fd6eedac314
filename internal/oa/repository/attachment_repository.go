package repository

import (
	"context"

	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"gorm.io/gorm"
)

// AttachmentRepository 附件仓库
type AttachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository 创建附件仓库
func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create 创建附件记录（上传后、挂接前）
func (r *AttachmentRepository) Create(ctx context.Context, att *entity.ApprovalAttachment) error {
	return r.db.WithContext(ctx).Create(att).Error
}

// FindByIDs 批量查找附件，返回 id → attachment 映射
func (r *AttachmentRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*entity.ApprovalAttachment, error) {
	if len(ids) == 0 {
		return map[string]*entity.ApprovalAttachment{}, nil
	}
	var atts []entity.ApprovalAttachment
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&atts).Error; err != nil {
		return nil, err
	}
	result := make(map[string]*entity.ApprovalAttachment, len(atts))
	for i := range atts {
		result[atts[i].ID] = &atts[i]
	}
	return result, nil
}
