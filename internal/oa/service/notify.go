package service

import (
	"context"

	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"github.com/bitfantasy/nimo-oa/internal/oa/repository"
	"github.com/bitfantasy/nimo-oa/internal/shared/feishu"
	"go.uber.org/zap"
)

// Notifier 审批通知出口。实现必须自己吞掉错误（通知失败不影响审批流转）。
type Notifier interface {
	// NotifyStepPending 某一步骤变为待审，通知该步骤的审批人
	NotifyStepPending(ctx context.Context, approval *entity.Approval, step *entity.ApprovalStep)
	// NotifyResult 整单到达终态，通知起草人
	NotifyResult(ctx context.Context, approval *entity.Approval, decided *entity.ApprovalStep)
}

// FeishuNotifier 飞书卡片通知
type FeishuNotifier struct {
	client *feishu.FeishuClient
	users  *repository.UserRepository
	logger *zap.Logger
}

// NewFeishuNotifier 创建飞书通知器
func NewFeishuNotifier(client *feishu.FeishuClient, users *repository.UserRepository, logger *zap.Logger) *FeishuNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeishuNotifier{client: client, users: users, logger: logger}
}

// NotifyStepPending 给审批人发待审卡片
func (n *FeishuNotifier) NotifyStepPending(ctx context.Context, approval *entity.Approval, step *entity.ApprovalStep) {
	user, err := n.users.FindByID(ctx, step.ApproverID)
	if err != nil {
		n.logger.Warn("查找审批人失败，跳过通知",
			zap.String("approver_id", step.ApproverID), zap.Error(err))
		return
	}
	if user.FeishuOpenID == "" {
		n.logger.Debug("审批人没有飞书 open_id，跳过通知", zap.String("approver", user.Name))
		return
	}

	card := feishu.NewApprovalPendingCard(approval.Title, approval.DrafterName,
		feishu.DocumentTypeLabel(string(approval.DocumentType)), approval.Content)
	if err := n.client.SendUserCard(ctx, user.FeishuOpenID, card); err != nil {
		n.logger.Warn("发送待审通知失败", zap.String("approver", user.Name), zap.Error(err))
		return
	}
	n.logger.Info("已通知审批人", zap.String("approver", user.Name), zap.String("approval_id", approval.ID))
}

// NotifyResult 给起草人发结果卡片
func (n *FeishuNotifier) NotifyResult(ctx context.Context, approval *entity.Approval, decided *entity.ApprovalStep) {
	drafter, err := n.users.FindByID(ctx, approval.DrafterID)
	if err != nil {
		n.logger.Warn("查找起草人失败，跳过通知",
			zap.String("drafter_id", approval.DrafterID), zap.Error(err))
		return
	}
	if drafter.FeishuOpenID == "" {
		n.logger.Debug("起草人没有飞书 open_id，跳过通知", zap.String("drafter", drafter.Name))
		return
	}

	resultText := "通过"
	if approval.Status == entity.ApprovalStatusRejected {
		resultText = "驳回"
	}
	comment := ""
	if decided != nil {
		comment = decided.Comment
	}

	card := feishu.NewApprovalResultCard(approval.Title, resultText, comment)
	if err := n.client.SendUserCard(ctx, drafter.FeishuOpenID, card); err != nil {
		n.logger.Warn("发送审批结果通知失败", zap.String("drafter", drafter.Name), zap.Error(err))
		return
	}
	n.logger.Info("已通知起草人审批结果",
		zap.String("drafter", drafter.Name), zap.String("result", resultText))
}
