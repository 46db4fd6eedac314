package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"gorm.io/gorm"
)

// ApprovalRepository 审批单仓库
type ApprovalRepository struct {
	db *gorm.DB
}

// NewApprovalRepository 创建审批单仓库
func NewApprovalRepository(db *gorm.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// DB 暴露底层连接，供服务层组织事务
func (r *ApprovalRepository) DB() *gorm.DB {
	return r.db
}

// FindByID 查找审批单，带全部关联（步骤按序号排列）
func (r *ApprovalRepository) FindByID(ctx context.Context, id string) (*entity.Approval, error) {
	var approval entity.Approval
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("Steps.Approver").
		Preload("Participants").
		Preload("Participants.User").
		Preload("Attachments").
		Preload("Drafter").
		Preload("LeaveDetail").
		Preload("CarFuelDetail").
		Preload("ExpenseDetail").
		Preload("ExpenseDetail.Lines", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("OverseasTripDetail").
		Preload("OverseasTripDetail.Lines", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("id = ?", id).
		First(&approval).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &approval, nil
}
