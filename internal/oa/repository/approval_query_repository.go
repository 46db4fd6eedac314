package repository

import (
	"context"

	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"gorm.io/gorm"
)

// 列表查询类别常量
const (
	CategoryAll        = "all"
	CategoryInProgress = "in_progress"
	CategoryReference  = "reference"
	CategoryDraft      = "draft"
)

// ApprovalQuery 列表查询条件。Category 决定可见性规则，
// Status/ParticipantType/DocumentType 是各类别下的子过滤。
type ApprovalQuery struct {
	RequesterID     string
	RequesterRole   string
	Category        string
	Status          string
	ParticipantType string
	DocumentType    entity.DocumentType
	Page            int
	PageSize        int
}

// ApprovalQueryRepository 审批单可见性查询仓库。只读，不修改任何状态。
// 每个类别一个显式的谓词构造函数，翻译成 gorm 条件在这一层完成。
type ApprovalQueryRepository struct {
	db *gorm.DB
}

// NewApprovalQueryRepository 创建查询仓库
func NewApprovalQueryRepository(db *gorm.DB) *ApprovalQueryRepository {
	return &ApprovalQueryRepository{db: db}
}

// List 执行类别查询，按创建时间倒序分页。
// 空结果返回零长度切片和 0，不作为错误。
func (r *ApprovalQueryRepository) List(ctx context.Context, q ApprovalQuery) ([]entity.Approval, int64, error) {
	scope, err := r.categoryScope(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	if q.DocumentType != "" {
		scope = scope.Where("document_type = ?", q.DocumentType)
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []entity.Approval{}, 0, nil
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var items []entity.Approval
	err = scope.
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("Participants").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// PendingCount 当前轮到某用户处理的步骤数（待办角标）。
// 必须限定整单仍在 pending：撤回/终止后遗留的 pending 步骤不算待办。
func (r *ApprovalQueryRepository) PendingCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ApprovalStep{}).
		Joins("JOIN approvals ON approvals.id = approval_steps.approval_id").
		Where("approval_steps.approver_id = ? AND approval_steps.status = ? AND approvals.status = ?",
			userID, entity.StepStatusPending, entity.ApprovalStatusPending).
		Count(&count).Error
	return count, err
}

// categoryScope 每个类别的可见性谓词
func (r *ApprovalQueryRepository) categoryScope(ctx context.Context, q ApprovalQuery) (*gorm.DB, error) {
	db := r.db.WithContext(ctx).Model(&entity.Approval{})
	uid := q.RequesterID

	switch q.Category {
	case CategoryAll:
		// 管理员看全部；普通用户看 起草 ∪ 任一步骤审批人 ∪ 任一参与人
		if q.RequesterRole == entity.RoleAdmin {
			return db, nil
		}
		return db.Where(
			"drafter_id = ? OR id IN (?) OR id IN (?)",
			uid, r.stepSub(uid), r.participantSub(uid),
		), nil

	case CategoryInProgress:
		// 用户作为步骤审批人的审批单
		switch q.Status {
		case entity.StepStatusWaiting, entity.StepStatusPending, "in_progress":
			// 轮到我处理。整单必须还在 pending，撤回的单归到 驳回/撤回 侧
			return db.Where("id IN (?) AND status = ?",
				r.stepSub(uid, entity.StepStatusPending), entity.ApprovalStatusPending), nil
		case entity.StepStatusApproved:
			// 我已同意
			return db.Where("id IN (?)", r.stepSub(uid, entity.StepStatusApproved)), nil
		case entity.StepStatusRejected, entity.ApprovalStatusCanceled:
			// 我驳回过，或整单以 驳回/撤回 终止
			return db.Where(
				"id IN (?) OR (id IN (?) AND status IN ?)",
				r.stepSub(uid, entity.StepStatusRejected),
				r.stepSub(uid),
				[]string{entity.ApprovalStatusRejected, entity.ApprovalStatusCanceled},
			), nil
		default:
			return db.Where("id IN (?)", r.stepSub(uid)), nil
		}

	case CategoryReference:
		// referrer 提交即可见；viewer 只见最终通过的审批单
		referrerCond := r.db.Where("id IN (?)", r.participantSub(uid, entity.ParticipantReferrer))
		viewerCond := r.db.Where("id IN (?) AND status = ?",
			r.participantSub(uid, entity.ParticipantViewer), entity.ApprovalStatusApproved)

		switch q.ParticipantType {
		case entity.ParticipantReferrer:
			db = db.Where(referrerCond)
		case entity.ParticipantViewer:
			db = db.Where(viewerCond)
		default:
			db = db.Where(referrerCond.Or(viewerCond))
		}
		if statuses := documentStatusSet(q.Status); len(statuses) > 0 {
			db = db.Where("status IN ?", statuses)
		}
		return db, nil

	case CategoryDraft:
		// 我起草的
		db = db.Where("drafter_id = ?", uid)
		if statuses := documentStatusSet(q.Status); len(statuses) > 0 {
			db = db.Where("status IN ?", statuses)
		}
		return db, nil

	default:
		return nil, ErrInvalidCategory
	}
}

// stepSub 子查询：用户作为审批人（可选限定步骤状态）的审批单ID
func (r *ApprovalQueryRepository) stepSub(userID string, statuses ...string) *gorm.DB {
	sub := r.db.Model(&entity.ApprovalStep{}).
		Select("approval_id").
		Where("approver_id = ?", userID)
	if len(statuses) > 0 {
		sub = sub.Where("status IN ?", statuses)
	}
	return sub
}

// participantSub 子查询：用户作为参与人（可选限定参与类型）的审批单ID
func (r *ApprovalQueryRepository) participantSub(userID string, types ...string) *gorm.DB {
	sub := r.db.Model(&entity.ApprovalParticipant{}).
		Select("approval_id").
		Where("user_id = ?", userID)
	if len(types) > 0 {
		sub = sub.Where("type IN ?", types)
	}
	return sub
}

// documentStatusSet 状态子过滤 → 审批单状态集合的映射
func documentStatusSet(status string) []string {
	switch status {
	case entity.StepStatusWaiting, entity.StepStatusPending, "in_progress":
		return []string{entity.ApprovalStatusPending}
	case entity.ApprovalStatusApproved:
		return []string{entity.ApprovalStatusApproved}
	case entity.ApprovalStatusRejected, entity.ApprovalStatusCanceled:
		return []string{entity.ApprovalStatusRejected, entity.ApprovalStatusCanceled}
	default:
		return nil
	}
}
