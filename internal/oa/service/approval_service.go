package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"github.com/bitfantasy/nimo-oa/internal/oa/repository"
	"github.com/bitfantasy/nimo-oa/internal/oa/sse"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Decision 审批动作
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ApprovalService 审批服务：创建流水线 + 审批决定流水线
type ApprovalService struct {
	db          *gorm.DB
	users       *repository.UserRepository
	attachments *repository.AttachmentRepository
	approvals   *repository.ApprovalRepository
	rdb         *redis.Client
	notifier    Notifier
	logger      *zap.Logger
}

// NewApprovalService 创建审批服务
func NewApprovalService(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, notifier Notifier, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		db:          db,
		users:       repos.User,
		attachments: repos.Attachment,
		approvals:   repos.Approval,
		rdb:         rdb,
		notifier:    notifier,
		logger:      logger,
	}
}

// StepInput 审批链步骤输入
type StepInput struct {
	ApproverID string `json:"approver_id" binding:"required"`
	Seq        int    `json:"seq"`
}

// ParticipantInput 参与人输入
type ParticipantInput struct {
	UserID string `json:"user_id" binding:"required"`
	Type   string `json:"type" binding:"required"`
}

// LeaveInput 请假明细输入
type LeaveInput struct {
	LeaveType   string    `json:"leave_type" binding:"required"`
	LeaveDetail string    `json:"leave_detail"`
	StartDate   time.Time `json:"start_date" binding:"required"`
	EndDate     time.Time `json:"end_date" binding:"required"`
}

// CarFuelInput 车辆油费明细输入
type CarFuelInput struct {
	Vehicle    string  `json:"vehicle" binding:"required"`
	DistanceKM float64 `json:"distance_km"`
	Amount     int64   `json:"amount"`
}

// ExpenseLineInput 支出明细行输入
type ExpenseLineInput struct {
	OccurredOn time.Time `json:"occurred_on" binding:"required"`
	Purpose    string    `json:"purpose" binding:"required"`
	Amount     int64     `json:"amount"`
}

// ExpenseInput 支出决议明细输入（expense_draft 与 welfare_expense 共用）
type ExpenseInput struct {
	TotalAmount   int64             `json:"total_amount"`
	WelfareTarget string            `json:"welfare_target"`
	Lines         []ExpenseLineInput `json:"lines"`
}

// TripLineInput 出差费用行输入
type TripLineInput struct {
	Category string `json:"category" binding:"required"`
	Purpose  string `json:"purpose"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// TripInput 海外出差明细输入
type TripInput struct {
	Country   string          `json:"country" binding:"required"`
	StartDate time.Time       `json:"start_date" binding:"required"`
	EndDate   time.Time       `json:"end_date" binding:"required"`
	Lines     []TripLineInput `json:"lines"`
}

// CreateApprovalRequest 创建审批单请求。DocumentType 决定读取哪个明细负载。
type CreateApprovalRequest struct {
	Title         string              `json:"title" binding:"required"`
	Content       string              `json:"content"`
	DocumentType  entity.DocumentType `json:"document_type" binding:"required"`
	Steps         []StepInput         `json:"steps"`
	Participants  []ParticipantInput  `json:"participants"`
	AttachmentIDs []string            `json:"attachment_ids"`

	Leave        *LeaveInput   `json:"leave,omitempty"`
	CarFuel      *CarFuelInput `json:"car_fuel,omitempty"`
	Expense      *ExpenseInput `json:"expense,omitempty"`
	OverseasTrip *TripInput    `json:"overseas_trip,omitempty"`
}

// detailBuilders 判别符 → 变体明细构造函数的显式映射。
// 启动时用 ValidateDocumentRegistry 校验覆盖全部类型，避免运行期落到未注册分支。
var detailBuilders = map[entity.DocumentType]func(a *entity.Approval, req *CreateApprovalRequest) error{
	entity.DocTypeBasic:          func(a *entity.Approval, req *CreateApprovalRequest) error { return nil },
	entity.DocTypeLeave:          buildLeaveDetail,
	entity.DocTypeCarFuel:        buildCarFuelDetail,
	entity.DocTypeExpenseDraft:   func(a *entity.Approval, req *CreateApprovalRequest) error { return buildExpenseDetail(a, req, false) },
	entity.DocTypeWelfareExpense: func(a *entity.Approval, req *CreateApprovalRequest) error { return buildExpenseDetail(a, req, true) },
	entity.DocTypeOverseasTrip:   buildOverseasTripDetail,
}

// ValidateDocumentRegistry 启动时校验文书类型注册表完整性
func ValidateDocumentRegistry() error {
	if err := entity.ValidateDocumentTypeRegistry(); err != nil {
		return err
	}
	for _, dt := range entity.AllDocumentTypes {
		if _, ok := detailBuilders[dt]; !ok {
			return fmt.Errorf("document type %q has no detail builder", dt)
		}
	}
	return nil
}

func buildLeaveDetail(a *entity.Approval, req *CreateApprovalRequest) error {
	if req.Leave == nil {
		return ErrInvalidLeaveDetail
	}
	if !entity.LeaveDetailAllowed(req.Leave.LeaveType, req.Leave.LeaveDetail) {
		return ErrInvalidLeaveDetail
	}
	a.LeaveDetail = &entity.LeaveDetail{
		ID:          uuid.New().String(),
		ApprovalID:  a.ID,
		LeaveType:   req.Leave.LeaveType,
		LeaveDetail: req.Leave.LeaveDetail,
		StartDate:   req.Leave.StartDate,
		EndDate:     req.Leave.EndDate,
	}
	return nil
}

func buildCarFuelDetail(a *entity.Approval, req *CreateApprovalRequest) error {
	if req.CarFuel == nil {
		return ErrMissingVariantDetail
	}
	a.CarFuelDetail = &entity.CarFuelDetail{
		ID:         uuid.New().String(),
		ApprovalID: a.ID,
		Vehicle:    req.CarFuel.Vehicle,
		DistanceKM: req.CarFuel.DistanceKM,
		Amount:     req.CarFuel.Amount,
	}
	return nil
}

func buildExpenseDetail(a *entity.Approval, req *CreateApprovalRequest, welfare bool) error {
	if req.Expense == nil {
		return ErrMissingVariantDetail
	}
	detail := &entity.ExpenseDetail{
		ID:            uuid.New().String(),
		ApprovalID:    a.ID,
		TotalAmount:   req.Expense.TotalAmount,
		Welfare:       welfare,
		WelfareTarget: req.Expense.WelfareTarget,
	}
	for i, line := range req.Expense.Lines {
		detail.Lines = append(detail.Lines, entity.ExpenseLine{
			ID:         uuid.New().String(),
			DetailID:   detail.ID,
			Seq:        i + 1,
			OccurredOn: line.OccurredOn,
			Purpose:    line.Purpose,
			Amount:     line.Amount,
		})
	}
	a.ExpenseDetail = detail
	return nil
}

func buildOverseasTripDetail(a *entity.Approval, req *CreateApprovalRequest) error {
	if req.OverseasTrip == nil {
		return ErrMissingVariantDetail
	}
	detail := &entity.OverseasTripDetail{
		ID:         uuid.New().String(),
		ApprovalID: a.ID,
		Country:    req.OverseasTrip.Country,
		StartDate:  req.OverseasTrip.StartDate,
		EndDate:    req.OverseasTrip.EndDate,
	}
	for i, line := range req.OverseasTrip.Lines {
		currency := line.Currency
		if currency == "" {
			currency = "CNY"
		}
		detail.Lines = append(detail.Lines, entity.TripExpenseLine{
			ID:       uuid.New().String(),
			DetailID: detail.ID,
			Seq:      i + 1,
			Category: line.Category,
			Purpose:  line.Purpose,
			Amount:   line.Amount,
			Currency: currency,
		})
	}
	a.OverseasTripDetail = detail
	return nil
}

// CreateApproval 创建审批单。
// 校验逐项失败返回对应领域错误；审批单 + 步骤 + 参与人 + 附件挂接在一个事务里落库，
// 任何一步失败整体回滚，不留半成品。
func (s *ApprovalService) CreateApproval(ctx context.Context, drafterID string, req *CreateApprovalRequest) (*entity.Approval, error) {
	drafter, err := s.users.FindByID(ctx, drafterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDrafterNotFound
		}
		return nil, fmt.Errorf("查找起草人失败: %w", err)
	}

	builder, ok := detailBuilders[req.DocumentType]
	if !ok {
		return nil, ErrUnsupportedDocumentType
	}

	now := time.Now()
	approval := &entity.Approval{
		ID:              uuid.New().String(),
		Title:           req.Title,
		Content:         req.Content,
		DocumentType:    req.DocumentType,
		Status:          entity.ApprovalStatusPending,
		RetentionPeriod: entity.RetentionByDocumentType[req.DocumentType],
		DrafterID:       drafter.ID,
		DrafterName:     drafter.Name,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	// 起草部门快照：拷贝当时的部门，之后部门调整不影响已提交的审批单
	if drafter.Department != nil {
		approval.DraftDeptID = drafter.Department.ID
		approval.DraftDeptName = drafter.Department.Name
	}

	if err := builder(approval, req); err != nil {
		return nil, err
	}

	steps, err := s.buildSteps(ctx, approval.ID, req.Steps)
	if err != nil {
		return nil, err
	}
	approval.Steps = steps

	participants, err := s.buildParticipants(ctx, approval.ID, req.Participants)
	if err != nil {
		return nil, err
	}
	approval.Participants = participants

	// 附件必须已存在（上传先行）
	if len(req.AttachmentIDs) > 0 {
		atts, err := s.attachments.FindByIDs(ctx, req.AttachmentIDs)
		if err != nil {
			return nil, fmt.Errorf("查找附件失败: %w", err)
		}
		for _, id := range req.AttachmentIDs {
			if _, ok := atts[id]; !ok {
				return nil, ErrAttachmentNotFound
			}
		}
	}

	// 事务：审批单 + 步骤 + 参与人 + 变体明细 + 附件挂接
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(approval).Error; err != nil {
			return fmt.Errorf("创建审批单失败: %w", err)
		}
		if len(req.AttachmentIDs) > 0 {
			res := tx.Model(&entity.ApprovalAttachment{}).
				Where("id IN ? AND (approval_id IS NULL OR approval_id = '')", req.AttachmentIDs).
				Update("approval_id", approval.ID)
			if res.Error != nil {
				return fmt.Errorf("挂接附件失败: %w", res.Error)
			}
			// 事务外已确认附件存在，这里少更新说明有附件已被别的单抢走
			if res.RowsAffected != int64(len(req.AttachmentIDs)) {
				return ErrAttachmentAlreadyLinked
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 提交成功后：通知第一个审批人，失效其待办角标
	if first := approval.CurrentStep(); first != nil {
		s.invalidateBadge(ctx, first.ApproverID)
		if s.notifier != nil {
			go s.notifier.NotifyStepPending(context.Background(), approval, first)
		}
	}
	sse.PublishApprovalUpdate(approval.ID, "created", involvedUserIDs(approval)...)

	s.logger.Info("approval created",
		zap.String("approval_id", approval.ID),
		zap.String("document_type", string(approval.DocumentType)),
		zap.String("drafter_id", approval.DrafterID),
		zap.Int("steps", len(approval.Steps)),
	)
	return approval, nil
}

// buildSteps 组装审批链。按输入序号排序后重新编号为 1..N，
// 第一步没有前置等待，落库即为 pending，其余 waiting。
func (s *ApprovalService) buildSteps(ctx context.Context, approvalID string, inputs []StepInput) ([]entity.ApprovalStep, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyApprovalChain
	}

	sorted := make([]StepInput, len(inputs))
	copy(sorted, inputs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	seen := make(map[string]bool, len(sorted))
	ids := make([]string, 0, len(sorted))
	for _, in := range sorted {
		if seen[in.ApproverID] {
			return nil, ErrDuplicateApprover
		}
		seen[in.ApproverID] = true
		ids = append(ids, in.ApproverID)
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("查找审批人失败: %w", err)
	}

	now := time.Now()
	steps := make([]entity.ApprovalStep, 0, len(sorted))
	for i, in := range sorted {
		u, ok := users[in.ApproverID]
		if !ok {
			return nil, ErrApproverNotFound
		}
		status := entity.StepStatusWaiting
		if i == 0 {
			status = entity.StepStatusPending
		}
		steps = append(steps, entity.ApprovalStep{
			ID:           uuid.New().String(),
			ApprovalID:   approvalID,
			ApproverID:   u.ID,
			ApproverName: u.Name,
			Seq:          i + 1,
			Status:       status,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return steps, nil
}

// buildParticipants 组装参与人，(用户, 类型) 去重
func (s *ApprovalService) buildParticipants(ctx context.Context, approvalID string, inputs []ParticipantInput) ([]entity.ApprovalParticipant, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(inputs))
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if in.Type != entity.ParticipantReferrer && in.Type != entity.ParticipantViewer {
			return nil, ErrInvalidParticipantType
		}
		key := in.UserID + "|" + in.Type
		if seen[key] {
			return nil, ErrDuplicateParticipant
		}
		seen[key] = true
		ids = append(ids, in.UserID)
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("查找参与人失败: %w", err)
	}

	now := time.Now()
	participants := make([]entity.ApprovalParticipant, 0, len(inputs))
	for _, in := range inputs {
		if _, ok := users[in.UserID]; !ok {
			return nil, ErrParticipantNotFound
		}
		participants = append(participants, entity.ApprovalParticipant{
			ID:         uuid.New().String(),
			ApprovalID: approvalID,
			UserID:     in.UserID,
			Type:       in.Type,
			CreatedAt:  now,
		})
	}
	return participants, nil
}

// Decide 对当前待审步骤执行 同意/驳回。
// 整个读-改-写在一个事务内，审批单上的 lock_version CAS 保证同一单的并发决定只有一个成功，
// 另一个拿到 ErrDecisionConflict（冲突类，调用方刷新后重新判断是否轮到自己）。
func (s *ApprovalService) Decide(ctx context.Context, approvalID, actorID string, decision Decision, comment string) error {
	if decision != DecisionApprove && decision != DecisionReject {
		return fmt.Errorf("未知的审批动作: %s", decision)
	}
	if decision == DecisionReject && strings.TrimSpace(comment) == "" {
		return ErrRejectionReasonRequired
	}

	var approval entity.Approval
	var decided, next *entity.ApprovalStep

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
			Preload("Participants").
			Where("id = ?", approvalID).
			First(&approval).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}

		step := approval.StepByApprover(actorID)
		if step == nil {
			return ErrNotYourTurn
		}
		if step.IsTerminal() {
			return ErrAlreadyProcessed
		}
		if approval.IsTerminal() {
			// 撤回/终止后留下的 waiting 步骤永远不会被访问
			return ErrAlreadyProcessed
		}
		if step.Status != entity.StepStatusPending {
			return ErrNotYourTurn
		}

		now := time.Now()
		newStepStatus := entity.StepStatusApproved
		if decision == DecisionReject {
			newStepStatus = entity.StepStatusRejected
		}

		// 步骤落终态，状态守卫防止同一步骤被写两次
		res := tx.Model(&entity.ApprovalStep{}).
			Where("id = ? AND status = ?", step.ID, entity.StepStatusPending).
			Updates(map[string]interface{}{
				"status":     newStepStatus,
				"comment":    comment,
				"decided_at": now,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("更新审批步骤失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDecisionConflict
		}

		docStatus := approval.Status
		if decision == DecisionReject {
			// 驳回短路：整单立即终止，后续步骤停留在 waiting
			docStatus = entity.ApprovalStatusRejected
		} else {
			var nextStep *entity.ApprovalStep
			for i := range approval.Steps {
				if approval.Steps[i].Seq == step.Seq+1 {
					nextStep = &approval.Steps[i]
					break
				}
			}
			if nextStep == nil {
				// 最后一步通过，整单通过
				docStatus = entity.ApprovalStatusApproved
			} else {
				res := tx.Model(&entity.ApprovalStep{}).
					Where("id = ? AND status = ?", nextStep.ID, entity.StepStatusWaiting).
					Updates(map[string]interface{}{
						"status":     entity.StepStatusPending,
						"updated_at": now,
					})
				if res.Error != nil {
					return fmt.Errorf("激活下一审批步骤失败: %w", res.Error)
				}
				if res.RowsAffected == 0 {
					return ErrDecisionConflict
				}
				next = nextStep
			}
		}

		// 审批单乐观锁 CAS：状态不变时也推进版本号，串行化同一单上的并发决定
		res = tx.Model(&entity.Approval{}).
			Where("id = ? AND lock_version = ?", approval.ID, approval.LockVersion).
			Updates(map[string]interface{}{
				"status":       docStatus,
				"lock_version": approval.LockVersion + 1,
				"updated_at":   now,
			})
		if res.Error != nil {
			return fmt.Errorf("更新审批单状态失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDecisionConflict
		}

		approval.Status = docStatus
		step.Status = newStepStatus
		step.Comment = comment
		step.DecidedAt = &now
		decided = step
		return nil
	})
	if err != nil {
		return err
	}

	// 提交成功后：角标失效 + 通知 + SSE
	s.invalidateBadge(ctx, actorID)
	if next != nil {
		s.invalidateBadge(ctx, next.ApproverID)
		if s.notifier != nil {
			go s.notifier.NotifyStepPending(context.Background(), &approval, next)
		}
	} else if s.notifier != nil {
		go s.notifier.NotifyResult(context.Background(), &approval, decided)
	}
	sse.PublishApprovalUpdate(approval.ID, "decided", involvedUserIDs(&approval)...)

	s.logger.Info("approval decided",
		zap.String("approval_id", approval.ID),
		zap.String("actor_id", actorID),
		zap.String("decision", string(decision)),
		zap.String("status", approval.Status),
	)
	return nil
}

// Cancel 起草人撤回。只允许整单还在 pending 且没有任何步骤被处理过时撤回，
// 撤回后为终态，剩余步骤不再被访问。
func (s *ApprovalService) Cancel(ctx context.Context, approvalID, actorID string) error {
	var approval entity.Approval
	var frozen *entity.ApprovalStep

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
			Where("id = ?", approvalID).
			First(&approval).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}
		if approval.DrafterID != actorID {
			return ErrNotDrafter
		}
		if approval.Status != entity.ApprovalStatusPending {
			return ErrCancelNotAllowed
		}
		for i := range approval.Steps {
			if approval.Steps[i].IsTerminal() {
				return ErrCancelNotAllowed
			}
		}

		now := time.Now()
		res := tx.Model(&entity.Approval{}).
			Where("id = ? AND lock_version = ?", approval.ID, approval.LockVersion).
			Updates(map[string]interface{}{
				"status":       entity.ApprovalStatusCanceled,
				"lock_version": approval.LockVersion + 1,
				"updated_at":   now,
			})
		if res.Error != nil {
			return fmt.Errorf("撤回审批单失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDecisionConflict
		}

		approval.Status = entity.ApprovalStatusCanceled
		frozen = approval.CurrentStep()
		return nil
	})
	if err != nil {
		return err
	}

	if frozen != nil {
		s.invalidateBadge(ctx, frozen.ApproverID)
	}
	sse.PublishApprovalUpdate(approval.ID, "canceled", involvedUserIDs(&approval)...)

	s.logger.Info("approval canceled",
		zap.String("approval_id", approval.ID),
		zap.String("drafter_id", actorID),
	)
	return nil
}

// Get 审批单详情。只有起草人、链上审批人、参与人或管理员可见。
func (s *ApprovalService) Get(ctx context.Context, approvalID, requesterID, requesterRole string) (*entity.Approval, error) {
	approval, err := s.approvals.FindByID(ctx, approvalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	if requesterRole == entity.RoleAdmin || approval.DrafterID == requesterID {
		return approval, nil
	}
	if approval.StepByApprover(requesterID) != nil {
		return approval, nil
	}
	for i := range approval.Participants {
		if approval.Participants[i].UserID == requesterID {
			return approval, nil
		}
	}
	return nil, ErrPermissionDenied
}

// invalidateBadge 失效待办角标缓存，下次查询回源重算
func (s *ApprovalService) invalidateBadge(ctx context.Context, userID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, pendingBadgeKey(userID)).Err(); err != nil {
		s.logger.Warn("failed to invalidate pending badge", zap.String("user_id", userID), zap.Error(err))
	}
}

// involvedUserIDs 审批单相关的全部用户（SSE 定向推送用）
func involvedUserIDs(a *entity.Approval) []string {
	seen := map[string]bool{a.DrafterID: true}
	ids := []string{a.DrafterID}
	for i := range a.Steps {
		if !seen[a.Steps[i].ApproverID] {
			seen[a.Steps[i].ApproverID] = true
			ids = append(ids, a.Steps[i].ApproverID)
		}
	}
	for i := range a.Participants {
		if !seen[a.Participants[i].UserID] {
			seen[a.Participants[i].UserID] = true
			ids = append(ids, a.Participants[i].UserID)
		}
	}
	return ids
}
