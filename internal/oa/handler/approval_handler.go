package handler

import (
	"errors"

	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"github.com/bitfantasy/nimo-oa/internal/oa/repository"
	"github.com/bitfantasy/nimo-oa/internal/oa/service"
	"github.com/gin-gonic/gin"
)

// ApprovalHandler 审批单处理器
type ApprovalHandler struct {
	svc   *service.ApprovalService
	query *service.ApprovalQueryService
}

// NewApprovalHandler 创建审批单处理器
func NewApprovalHandler(svc *service.ApprovalService, query *service.ApprovalQueryService) *ApprovalHandler {
	return &ApprovalHandler{svc: svc, query: query}
}

// respondServiceError 领域错误 → 响应码
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, service.ErrDrafterNotFound),
		errors.Is(err, service.ErrApproverNotFound),
		errors.Is(err, service.ErrParticipantNotFound),
		errors.Is(err, service.ErrAttachmentNotFound):
		NotFound(c, err.Error())

	case errors.Is(err, service.ErrUnsupportedDocumentType),
		errors.Is(err, service.ErrMissingVariantDetail),
		errors.Is(err, service.ErrInvalidLeaveDetail),
		errors.Is(err, service.ErrInvalidParticipantType),
		errors.Is(err, service.ErrEmptyApprovalChain),
		errors.Is(err, service.ErrDuplicateApprover),
		errors.Is(err, service.ErrDuplicateParticipant),
		errors.Is(err, service.ErrRejectionReasonRequired),
		errors.Is(err, repository.ErrInvalidCategory):
		BadRequest(c, err.Error())

	case errors.Is(err, service.ErrNotYourTurn),
		errors.Is(err, service.ErrNotDrafter),
		errors.Is(err, service.ErrPermissionDenied):
		Forbidden(c, err.Error())

	case errors.Is(err, service.ErrAlreadyProcessed),
		errors.Is(err, service.ErrDecisionConflict),
		errors.Is(err, service.ErrCancelNotAllowed),
		errors.Is(err, service.ErrAttachmentAlreadyLinked):
		Conflict(c, err.Error())

	default:
		InternalError(c, err.Error())
	}
}

// Create 创建审批单
// POST /api/v1/approvals
func (h *ApprovalHandler) Create(c *gin.Context) {
	var req service.CreateApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	approval, err := h.svc.CreateApproval(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	Created(c, approval)
}

// List 审批单列表
// GET /api/v1/approvals?category=all&status=&participant_type=&document_type=&page=1&page_size=20
func (h *ApprovalHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	q := repository.ApprovalQuery{
		RequesterID:     GetUserID(c),
		RequesterRole:   GetUserRole(c),
		Category:        c.DefaultQuery("category", repository.CategoryAll),
		Status:          c.Query("status"),
		ParticipantType: c.Query("participant_type"),
		DocumentType:    entity.DocumentType(c.Query("document_type")),
		Page:            page,
		PageSize:        pageSize,
	}

	result, err := h.query.List(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	Success(c, result)
}

// Get 审批单详情
// GET /api/v1/approvals/:id
func (h *ApprovalHandler) Get(c *gin.Context) {
	approval, err := h.svc.Get(c.Request.Context(), c.Param("id"), GetUserID(c), GetUserRole(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	Success(c, approval)
}

type decideRequest struct {
	Comment string `json:"comment"`
}

// Approve 同意当前步骤
// POST /api/v1/approvals/:id/approve
func (h *ApprovalHandler) Approve(c *gin.Context) {
	var req decideRequest
	// 同意时意见可省略，body 可以为空
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.svc.Decide(c.Request.Context(), c.Param("id"), GetUserID(c), service.DecisionApprove, req.Comment); err != nil {
		respondServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "已同意"})
}

// Reject 驳回当前步骤（必须带原因）
// POST /api/v1/approvals/:id/reject
func (h *ApprovalHandler) Reject(c *gin.Context) {
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.svc.Decide(c.Request.Context(), c.Param("id"), GetUserID(c), service.DecisionReject, req.Comment); err != nil {
		respondServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "已驳回"})
}

// Cancel 起草人撤回
// POST /api/v1/approvals/:id/cancel
func (h *ApprovalHandler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "已撤回"})
}

// PendingCount 待办角标
// GET /api/v1/approvals/pending-count
func (h *ApprovalHandler) PendingCount(c *gin.Context) {
	count, err := h.query.PendingCount(c.Request.Context(), GetUserID(c))
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, gin.H{"count": count})
}
