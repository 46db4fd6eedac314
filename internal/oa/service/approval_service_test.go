package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"github.com/bitfantasy/nimo-oa/internal/oa/repository"
	"github.com/bitfantasy/nimo-oa/internal/oa/testutil"
	"gorm.io/gorm"
)

func setupApprovalService(t *testing.T) (*gorm.DB, *ApprovalService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewApprovalService(db, repos, nil, nil, nil)
	return db, svc
}

func seedChainUsers(t *testing.T, db *gorm.DB) {
	t.Helper()
	testutil.SeedTestDepartment(t, db, "dept-hr", "人事部")
	drafter := testutil.SeedTestUser(t, db, "u-drafter", "起草人", entity.RoleEmployee)
	drafter.DepartmentID = "dept-hr"
	db.Save(drafter)
	testutil.SeedTestUser(t, db, "u-boss1", "一级审批", entity.RoleEmployee)
	testutil.SeedTestUser(t, db, "u-boss2", "二级审批", entity.RoleEmployee)
	testutil.SeedTestUser(t, db, "u-viewer", "旁观者", entity.RoleEmployee)
}

func leaveRequest(steps ...StepInput) *CreateApprovalRequest {
	return &CreateApprovalRequest{
		Title:        "年假申请",
		Content:      "休年假三天",
		DocumentType: entity.DocTypeLeave,
		Steps:        steps,
		Leave: &LeaveInput{
			LeaveType:   entity.LeaveTypeLeave,
			LeaveDetail: entity.LeaveDetailAnnual,
			StartDate:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			EndDate:     time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestCreateApprovalLeave(t *testing.T) {
	db, svc := setupApprovalService(t)
	seedChainUsers(t, db)
	ctx := context.Background()

	// Seq given out of order on purpose; must be renumbered to 1..N
	req := leaveRequest(
		StepInput{ApproverID: "u-boss2", Seq: 5},
		StepInput{ApproverID: "u-boss1", Seq: 2},
	)
	req.Participants = []ParticipantInput{
		{UserID: "u-viewer", Type: entity.ParticipantViewer},
	}

	approval, err := svc.CreateApproval(ctx, "u-drafter", req)
	if err != nil {
		t.Fatalf("CreateApproval failed: %v", err)
	}

	if approval.Status != entity.ApprovalStatusPending {
		t.Errorf("expected pending, got %s", approval.Status)
	}
	if approval.RetentionPeriod != entity.Retention3Years {
		t.Errorf("leave should keep 3 years, got %s", approval.RetentionPeriod)
	}
	if approval.DraftDeptID != "dept-hr" || approval.DraftDeptName != "人事部" {
		t.Errorf("department snapshot missing: %s/%s", approval.DraftDeptID, approval.DraftDeptName)
	}

	if len(approval.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(approval.Steps))
	}
	// u-boss1 had the smaller seq input, so it becomes step 1
	if approval.Steps[0].ApproverID != "u-boss1" || approval.Steps[0].Seq != 1 {
		t.Errorf("step 1 wrong: %+v", approval.Steps[0])
	}
	if approval.Steps[0].Status != entity.StepStatusPending {
		t.Errorf("first step should be pending, got %s", approval.Steps[0].Status)
	}
	if approval.Steps[1].ApproverID != "u-boss2" || approval.Steps[1].Seq != 2 {
		t.Errorf("step 2 wrong: %+v", approval.Steps[1])
	}
	if approval.Steps[1].Status != entity.StepStatusWaiting {
		t.Errorf("second step should be waiting, got %s", approval.Steps[1].Status)
	}

	// Detail row persisted
	var detail entity.LeaveDetail
	if err := db.Where("approval_id = ?", approval.ID).First(&detail).Error; err != nil {
		t.Fatalf("leave detail not persisted: %v", err)
	}
	if detail.LeaveType != entity.LeaveTypeLeave || detail.LeaveDetail != entity.LeaveDetailAnnual {
		t.Errorf("leave detail wrong: %+v", detail)
	}
}

func TestCreateApprovalValidation(t *testing.T) {
	db, svc := setupApprovalService(t)
	seedChainUsers(t, db)
	ctx := context.Background()

	// Unknown drafter
	if _, err := svc.CreateApproval(ctx, "u-nobody", leaveRequest(StepInput{ApproverID: "u-boss1"})); !errors.Is(err, ErrDrafterNotFound) {
		t.Errorf("expected ErrDrafterNotFound, got %v", err)
	}

	// Empty chain
	if _, err := svc.CreateApproval(ctx, "u-drafter", leaveRequest()); !errors.Is(err, ErrEmptyApprovalChain) {
		t.Errorf("expected ErrEmptyApprovalChain, got %v", err)
	}

	// Duplicate approver
	req := leaveRequest(
		StepInput{ApproverID: "u-boss1", Seq: 1},
		StepInput{ApproverID: "u-boss1", Seq: 2},
	)
	if _, err := svc.CreateApproval(ctx, "u-drafter", req); !errors.Is(err, ErrDuplicateApprover) {
		t.Errorf("expected ErrDuplicateApprover, got %v", err)
	}

	// Unknown approver
	req = leaveRequest(StepInput{ApproverID: "u-ghost"})
	if _, err := svc.CreateApproval(ctx, "u-drafter", req); !errors.Is(err, ErrApproverNotFound) {
		t.Errorf("expected ErrApproverNotFound, got %v", err)
	}

	// education must not carry a sub-category
	req = leaveRequest(StepInput{ApproverID: "u-boss1"})
	req.Leave.LeaveType = entity.LeaveTypeEducation
	req.Leave.LeaveDetail = entity.LeaveDetailAnnual
	if _, err := svc.CreateApproval(ctx, "u-drafter", req); !errors.Is(err, ErrInvalidLeaveDetail) {
		t.Errorf("expected ErrInvalidLeaveDetail, got %v", err)
	}

	// Variant payload missing
	carReq := &CreateApprovalRequest{
		Title:        "油费报销",
		DocumentType: entity.DocTypeCarFuel,
		Steps:        []StepInput{{ApproverID: "u-boss1"}},
	}
	if _, err := svc.CreateApproval(ctx, "u-drafter", carReq); !errors.Is(err, ErrMissingVariantDetail) {
		t.Errorf("expected ErrMissingVariantDetail, got %v", err)
	}

	// Unknown document type
	badReq := &CreateApprovalRequest{
		Title:        "???",
		DocumentType: "memo",
		Steps:        []StepInput{{ApproverID: "u-boss1"}},
	}
	if _, err := svc.CreateApproval(ctx, "u-drafter", badReq); !errors.Is(err, ErrUnsupportedDocumentType) {
		t.Errorf("expected ErrUnsupportedDocumentType, got %v", err)
	}

	// Unknown participant type
	req = leaveRequest(StepInput{ApproverID: "u-boss1"})
	req.Participants = []ParticipantInput{{UserID: "u-viewer", Type: "spectator"}}
	if _, err := svc.CreateApproval(ctx, "u-drafter", req); !errors.Is(err, ErrInvalidParticipantType) {
		t.Errorf("expected ErrInvalidParticipantType, got %v", err)
	}
}

func TestDecideFullApproval(t *testing.T) {
	db, svc := setupApprovalService(t)
	seedChainUsers(t, db)
	ctx := context.Background()

	approval, err := svc.CreateApproval(ctx, "u-drafter", leaveRequest(
		StepInput{ApproverID: "u-boss1", Seq: 1},
		StepInput{ApproverID: "u-boss2", Seq: 2},
	))
	if err != nil {
		t.Fatalf("CreateApproval failed: %v", err)
	}

	// Step 1 approves: document stays pending, step 2 becomes pending
	if err := svc.Decide(ctx, approval.ID, "u-boss1", DecisionApprove, "同意"); err != nil {
		t.Fatalf("first approve failed: %v", err)
	}
	got := mustLoadApproval(t, db, approval.ID)
	if got.Status != entity.ApprovalStatusPending {
		t.Errorf("document should still be pending, got %s", got.Status)
	}
	if got.Steps[0].Status != entity.StepStatusApproved || got.Steps[0].DecidedAt == nil {
		t.Errorf("step 1 should be approved with decided_at: %+v", got.Steps[0])
	}
	if got.Steps[1].Status != entity.StepStatusPending {
		t.Errorf("step 2 should be activated, got %s", got.Steps[1].Status)
	}

	// Step 2 approves: document reaches approved
	if err := svc.Decide(ctx, approval.ID, "u-boss2", DecisionApprove, ""); err != nil {
		t.Fatalf("final approve failed: %v", err)
	}
	got = mustLoadApproval(t, db, approval.ID)
	if got.Status != entity.ApprovalStatusApproved {
		t.Errorf("document should be approved, got %s", got.Status)
	}
	if got.LockVersion != 2 {
		t.Errorf("lock_version should advance on every decision, got %d", got.LockVersion)
	}
}

func TestDecideRejectShortCircuits(t *testing.T) {
	db, svc := setupApprovalService(t)
	seedChainUsers(t, db)
	ctx := context.Background()

	approval, err := svc.CreateApproval(ctx, "u-drafter", leaveRequest(
		StepInput{ApproverID: "u-boss1", Seq: 1},
		StepInput{ApproverID: "u-boss2", Seq: 2},
	))
	if err != nil {
		t.Fatalf("CreateApproval failed: %v", err)
	}

	// Rejection requires a reason
	if err := svc.Decide(ctx, approval.ID, "u-boss1", DecisionReject, "  "); !errors.Is(err, ErrRejectionReasonRequired) {
		t.Errorf("expected ErrRejectionReasonRequired, got %v", err)
	}

	if err := svc.Decide(ctx, approval.ID, "u-boss1", DecisionReject, "材料不全"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	got := mustLoadApproval(t, db, approval.ID)
	if got.Status != entity.ApprovalStatusRejected {
		t.Errorf("document should be rejected, got %s", got.Status)
	}
	if got.Steps[0].Status != entity.StepStatusRejected || got.Steps[0].Comment != "材料不全" {
		t.Errorf("step 1 wrong after reject: %+v", got.Steps[0])
	}
	// Later steps stay waiting forever
	if got.Steps[1].Status != entity.StepStatusWaiting {
		t.Errorf("step 2 should remain waiting, got %s", got.Steps[1].Status)
	}

	// Second approver can no longer act on a terminated document
	if err := svc.Decide(ctx, approval.ID, "u-boss2", DecisionApprove, ""); !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestDecideOrderingAndReplay(t *testing.T) {
	db, svc := setupApprovalService(t)
	seedChainUsers(t, db)
	ctx := context.Background()

	approval, err := svc.CreateApproval(ctx, "u-drafter", leaveRequest(
		StepInput{ApproverID: "u-boss1", Seq: 1},
		StepInput{ApproverID: "u-boss2", Seq: 2},
	))
	if err != nil {
		t.Fatalf("CreateApproval failed: %v", err)
	}

	// Step 2 cannot act before step 1
	if err := svc.Decide(ctx, approval.ID, "u-boss2", DecisionApprove, ""); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("expected ErrNotYourTurn for waiting step, got %v", err)
	}

	// Someone outside the chain cannot act at all
	if err := svc.Decide(ctx, approval.ID, "u-viewer", DecisionApprove, ""); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("expected ErrNotYourTurn for outsider, got %v", err)
	}

	if err := svc.Decide(ctx, approval.ID, "u-boss1", DecisionApprove, ""); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	// Replaying the same decision fails
	if err := svc.Decide(ctx, approval.ID, "u-boss1", DecisionApprove, ""); !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("expected ErrAlreadyProcessed on replay, got %v", err)
	}

	// Unknown document
	if err := svc.Decide(ctx, "no-such-id", "u-boss1", DecisionApprove, ""); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	db, svc := setupApprovalService(t)
	seedChainUsers(t, db)
	ctx := context.Background()

	approval, err := svc.CreateApproval(ctx, "u-drafter", leaveRequest(
		StepInput{ApproverID: "u-boss1", Seq: 1},
		StepInput{ApproverID: "u-boss2", Seq: 2},
	))
	if err != nil {
		t.Fatalf("CreateApproval failed: %v", err)
	}

	// Only the drafter may cancel
	if err := svc.Cancel(ctx, approval.ID, "u-boss1"); !errors.Is(err, ErrNotDrafter) {
		t.Errorf("expected ErrNotDrafter, got %v", err)
	}

	if err := svc.Cancel(ctx, approval.ID, "u-drafter"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	got := mustLoadApproval(t, db, approval.ID)
	if got.Status != entity.ApprovalStatusCanceled {
		t.Errorf("document should be canceled, got %s", got.Status)
	}

	// Once any step is decided, cancel is off the table
	approval2, err := svc.CreateApproval(ctx, "u-drafter", leaveRequest(
		StepInput{ApproverID: "u-boss1", Seq: 1},
		StepInput{ApproverID: "u-boss2", Seq: 2},
	))
	if err != nil {
		t.Fatalf("CreateApproval failed: %v", err)
	}
	if err := svc.Decide(ctx, approval2.ID, "u-boss1", DecisionApprove, ""); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := svc.Cancel(ctx, approval2.ID, "u-drafter"); !errors.Is(err, ErrCancelNotAllowed) {
		t.Errorf("expected ErrCancelNotAllowed, got %v", err)
	}
}

func TestCancelClearsApproverTodo(t *testing.T) {
	db, svc := setupApprovalService(t)
	seedChainUsers(t, db)
	ctx := context.Background()

	approval, err := svc.CreateApproval(ctx, "u-drafter", leaveRequest(
		StepInput{ApproverID: "u-boss1", Seq: 1},
		StepInput{ApproverID: "u-boss2", Seq: 2},
	))
	if err != nil {
		t.Fatalf("CreateApproval failed: %v", err)
	}
	if err := svc.Cancel(ctx, approval.ID, "u-drafter"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// The frozen step stays pending on the row, but it is no longer a to-do
	queries := repository.NewApprovalQueryRepository(db)
	count, err := queries.PendingCount(ctx, "u-boss1")
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("badge must drop to 0 after withdrawal, got %d", count)
	}

	items, _, err := queries.List(ctx, repository.ApprovalQuery{
		RequesterID:   "u-boss1",
		RequesterRole: entity.RoleEmployee,
		Category:      repository.CategoryInProgress,
		Status:        "in_progress",
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, it := range items {
		if it.ID == approval.ID {
			t.Errorf("canceled document must not appear under my-turn listing")
		}
	}

	// And the approver can no longer act on it
	if err := svc.Decide(ctx, approval.ID, "u-boss1", DecisionApprove, ""); !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestCreateApprovalAttachmentLinking(t *testing.T) {
	db, svc := setupApprovalService(t)
	seedChainUsers(t, db)
	ctx := context.Background()

	free := &entity.ApprovalAttachment{
		ID:         "att-free",
		FileName:   "报销单.pdf",
		ObjectKey:  "approvals/2025/07/att-free.pdf",
		Size:       1024,
		UploadedBy: "u-drafter",
	}
	claimed := &entity.ApprovalAttachment{
		ID:         "att-claimed",
		ApprovalID: "some-other-approval",
		FileName:   "发票.pdf",
		ObjectKey:  "approvals/2025/07/att-claimed.pdf",
		Size:       2048,
		UploadedBy: "u-drafter",
	}
	if err := db.Create(free).Error; err != nil {
		t.Fatalf("failed to seed attachment: %v", err)
	}
	if err := db.Create(claimed).Error; err != nil {
		t.Fatalf("failed to seed attachment: %v", err)
	}

	// Unknown attachment id
	req := leaveRequest(StepInput{ApproverID: "u-boss1"})
	req.AttachmentIDs = []string{"att-ghost"}
	if _, err := svc.CreateApproval(ctx, "u-drafter", req); !errors.Is(err, ErrAttachmentNotFound) {
		t.Errorf("expected ErrAttachmentNotFound, got %v", err)
	}

	// Attachment already owned by another document
	req = leaveRequest(StepInput{ApproverID: "u-boss1"})
	req.AttachmentIDs = []string{"att-claimed"}
	if _, err := svc.CreateApproval(ctx, "u-drafter", req); !errors.Is(err, ErrAttachmentAlreadyLinked) {
		t.Errorf("expected ErrAttachmentAlreadyLinked, got %v", err)
	}

	// Unclaimed attachment links up
	req = leaveRequest(StepInput{ApproverID: "u-boss1"})
	req.AttachmentIDs = []string{"att-free"}
	approval, err := svc.CreateApproval(ctx, "u-drafter", req)
	if err != nil {
		t.Fatalf("CreateApproval failed: %v", err)
	}
	var got entity.ApprovalAttachment
	if err := db.Where("id = ?", "att-free").First(&got).Error; err != nil {
		t.Fatalf("failed to reload attachment: %v", err)
	}
	if got.ApprovalID != approval.ID {
		t.Errorf("attachment not linked: approval_id=%q", got.ApprovalID)
	}
}

func TestGetVisibility(t *testing.T) {
	db, svc := setupApprovalService(t)
	seedChainUsers(t, db)
	testutil.SeedTestUser(t, db, "u-admin", "管理员", entity.RoleAdmin)
	testutil.SeedTestUser(t, db, "u-outsider", "路人", entity.RoleEmployee)
	ctx := context.Background()

	req := leaveRequest(StepInput{ApproverID: "u-boss1"})
	req.Participants = []ParticipantInput{{UserID: "u-viewer", Type: entity.ParticipantReferrer}}
	approval, err := svc.CreateApproval(ctx, "u-drafter", req)
	if err != nil {
		t.Fatalf("CreateApproval failed: %v", err)
	}

	for _, uid := range []string{"u-drafter", "u-boss1", "u-viewer"} {
		if _, err := svc.Get(ctx, approval.ID, uid, entity.RoleEmployee); err != nil {
			t.Errorf("%s should see the approval: %v", uid, err)
		}
	}
	if _, err := svc.Get(ctx, approval.ID, "u-admin", entity.RoleAdmin); err != nil {
		t.Errorf("admin should see the approval: %v", err)
	}
	if _, err := svc.Get(ctx, approval.ID, "u-outsider", entity.RoleEmployee); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
	if _, err := svc.Get(ctx, "no-such-id", "u-drafter", entity.RoleEmployee); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func mustLoadApproval(t *testing.T, db *gorm.DB, id string) *entity.Approval {
	t.Helper()
	var approval entity.Approval
	err := db.
		Preload("Steps", func(d *gorm.DB) *gorm.DB { return d.Order("seq ASC") }).
		Where("id = ?", id).
		First(&approval).Error
	if err != nil {
		t.Fatalf("failed to load approval %s: %v", id, err)
	}
	return &approval
}
