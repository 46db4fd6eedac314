package service

import (
	"errors"
)

// 领域错误定义。调用方用 errors.Is 判断后翻译成自己的响应码：
// 找不到类 → 404，输入校验类 → 400，权限类 → 403，
// 冲突类 → 409（可刷新后重试判断是否仍轮到自己）。
var (
	// 找不到类
	ErrDrafterNotFound     = errors.New("起草人不存在")
	ErrApproverNotFound    = errors.New("审批人不存在")
	ErrParticipantNotFound = errors.New("参与人不存在")
	ErrAttachmentNotFound  = errors.New("附件不存在")
	ErrDocumentNotFound    = errors.New("审批单不存在")

	// 输入校验类
	ErrUnsupportedDocumentType = errors.New("不支持的文书类型")
	ErrMissingVariantDetail    = errors.New("缺少文书类型对应的明细")
	ErrInvalidLeaveDetail      = errors.New("请假类别与子类别不匹配")
	ErrInvalidParticipantType  = errors.New("未知的参与人类型")
	ErrEmptyApprovalChain      = errors.New("审批链不能为空")
	ErrDuplicateApprover       = errors.New("审批链中存在重复的审批人")
	ErrDuplicateParticipant    = errors.New("重复的参与人")
	ErrRejectionReasonRequired = errors.New("驳回时必须填写原因")

	// 权限类
	ErrNotYourTurn      = errors.New("还没有轮到你审批")
	ErrNotDrafter       = errors.New("只有起草人可以撤回")
	ErrPermissionDenied = errors.New("无权查看该审批单")

	// 冲突类
	ErrAlreadyProcessed        = errors.New("该审批步骤已处理")
	ErrDecisionConflict        = errors.New("审批单已被并发修改，请刷新后重试")
	ErrCancelNotAllowed        = errors.New("当前状态不允许撤回")
	ErrAttachmentAlreadyLinked = errors.New("附件已挂接到其他审批单")
)
