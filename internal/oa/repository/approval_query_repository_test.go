package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-oa/internal/oa/entity"
	"github.com/bitfantasy/nimo-oa/internal/oa/testutil"
	"gorm.io/gorm"
)

func seedApproval(t *testing.T, db *gorm.DB, id, drafterID, status string, docType entity.DocumentType, age time.Duration) *entity.Approval {
	t.Helper()
	now := time.Now().Add(-age)
	a := &entity.Approval{
		ID:              id,
		Title:           "单据 " + id,
		DocumentType:    docType,
		Status:          status,
		RetentionPeriod: entity.RetentionByDocumentType[docType],
		DrafterID:       drafterID,
		DrafterName:     drafterID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("failed to seed approval %s: %v", id, err)
	}
	return a
}

func seedStep(t *testing.T, db *gorm.DB, approvalID, approverID string, seq int, status string) {
	t.Helper()
	step := &entity.ApprovalStep{
		ID:           fmt.Sprintf("%s-step-%d", approvalID, seq),
		ApprovalID:   approvalID,
		ApproverID:   approverID,
		ApproverName: approverID,
		Seq:          seq,
		Status:       status,
	}
	if err := db.Create(step).Error; err != nil {
		t.Fatalf("failed to seed step: %v", err)
	}
}

func seedParticipant(t *testing.T, db *gorm.DB, approvalID, userID, ptype string) {
	t.Helper()
	p := &entity.ApprovalParticipant{
		ID:         fmt.Sprintf("%s-part-%s", approvalID, userID),
		ApprovalID: approvalID,
		UserID:     userID,
		Type:       ptype,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to seed participant: %v", err)
	}
}

// seedVisibilityFixture builds a cross-section of approvals around user "u-me":
//
//	a1  drafted by u-me, pending
//	a2  u-me is the active approver
//	a3  u-me already approved, document approved
//	a4  u-me rejected, document rejected
//	a5  u-me is referrer, document pending
//	a6  u-me is viewer, document pending (hidden in reference)
//	a7  u-me is viewer, document approved (visible in reference)
//	a8  unrelated to u-me entirely
func seedVisibilityFixture(t *testing.T, db *gorm.DB) {
	t.Helper()
	seedApproval(t, db, "a1", "u-me", entity.ApprovalStatusPending, entity.DocTypeLeave, 8*time.Minute)
	seedStep(t, db, "a1", "u-other", 1, entity.StepStatusPending)

	seedApproval(t, db, "a2", "u-other", entity.ApprovalStatusPending, entity.DocTypeBasic, 7*time.Minute)
	seedStep(t, db, "a2", "u-me", 1, entity.StepStatusPending)
	seedStep(t, db, "a2", "u-other", 2, entity.StepStatusWaiting)

	seedApproval(t, db, "a3", "u-other", entity.ApprovalStatusApproved, entity.DocTypeBasic, 6*time.Minute)
	seedStep(t, db, "a3", "u-me", 1, entity.StepStatusApproved)

	seedApproval(t, db, "a4", "u-other", entity.ApprovalStatusRejected, entity.DocTypeBasic, 5*time.Minute)
	seedStep(t, db, "a4", "u-me", 1, entity.StepStatusRejected)

	seedApproval(t, db, "a5", "u-other", entity.ApprovalStatusPending, entity.DocTypeBasic, 4*time.Minute)
	seedStep(t, db, "a5", "u-other", 1, entity.StepStatusPending)
	seedParticipant(t, db, "a5", "u-me", entity.ParticipantReferrer)

	seedApproval(t, db, "a6", "u-other", entity.ApprovalStatusPending, entity.DocTypeBasic, 3*time.Minute)
	seedStep(t, db, "a6", "u-other", 1, entity.StepStatusPending)
	seedParticipant(t, db, "a6", "u-me", entity.ParticipantViewer)

	seedApproval(t, db, "a7", "u-other", entity.ApprovalStatusApproved, entity.DocTypeBasic, 2*time.Minute)
	seedStep(t, db, "a7", "u-other", 1, entity.StepStatusApproved)
	seedParticipant(t, db, "a7", "u-me", entity.ParticipantViewer)

	seedApproval(t, db, "a8", "u-other", entity.ApprovalStatusPending, entity.DocTypeBasic, time.Minute)
	seedStep(t, db, "a8", "u-other", 1, entity.StepStatusPending)
}

func listIDs(t *testing.T, repo *ApprovalQueryRepository, q ApprovalQuery) []string {
	t.Helper()
	items, _, err := repo.List(context.Background(), q)
	if err != nil {
		t.Fatalf("List(%+v) failed: %v", q, err)
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

func assertIDSet(t *testing.T, got []string, want ...string) {
	t.Helper()
	wantSet := make(map[string]bool, len(want))
	for _, id := range want {
		wantSet[id] = true
	}
	if len(got) != len(want) {
		t.Errorf("got %v, want %v", got, want)
		return
	}
	for _, id := range got {
		if !wantSet[id] {
			t.Errorf("unexpected id %s in %v, want %v", id, got, want)
		}
	}
}

func TestListCategoryAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedVisibilityFixture(t, db)
	repo := NewApprovalQueryRepository(db)

	// Regular user: drafted ∪ any-step approver ∪ any participant
	got := listIDs(t, repo, ApprovalQuery{
		RequesterID:   "u-me",
		RequesterRole: entity.RoleEmployee,
		Category:      CategoryAll,
	})
	assertIDSet(t, got, "a1", "a2", "a3", "a4", "a5", "a6", "a7")

	// Admin sees everything
	got = listIDs(t, repo, ApprovalQuery{
		RequesterID:   "u-admin",
		RequesterRole: entity.RoleAdmin,
		Category:      CategoryAll,
	})
	assertIDSet(t, got, "a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8")

	// Newest first
	got = listIDs(t, repo, ApprovalQuery{
		RequesterID:   "u-admin",
		RequesterRole: entity.RoleAdmin,
		Category:      CategoryAll,
	})
	if got[0] != "a8" || got[len(got)-1] != "a1" {
		t.Errorf("expected created_at DESC ordering, got %v", got)
	}
}

func TestListCategoryInProgress(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedVisibilityFixture(t, db)
	repo := NewApprovalQueryRepository(db)
	base := ApprovalQuery{RequesterID: "u-me", RequesterRole: entity.RoleEmployee, Category: CategoryInProgress}

	// No sub-filter: everything I am an approver on
	assertIDSet(t, listIDs(t, repo, base), "a2", "a3", "a4")

	q := base
	q.Status = "in_progress"
	assertIDSet(t, listIDs(t, repo, q), "a2")

	q.Status = entity.StepStatusApproved
	assertIDSet(t, listIDs(t, repo, q), "a3")

	q.Status = entity.StepStatusRejected
	assertIDSet(t, listIDs(t, repo, q), "a4")
}

func TestListCategoryReference(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedVisibilityFixture(t, db)
	repo := NewApprovalQueryRepository(db)
	base := ApprovalQuery{RequesterID: "u-me", RequesterRole: entity.RoleEmployee, Category: CategoryReference}

	// referrer sees immediately, viewer only after the document is approved
	assertIDSet(t, listIDs(t, repo, base), "a5", "a7")

	q := base
	q.ParticipantType = entity.ParticipantReferrer
	assertIDSet(t, listIDs(t, repo, q), "a5")

	q.ParticipantType = entity.ParticipantViewer
	assertIDSet(t, listIDs(t, repo, q), "a7")

	// Status sub-filter on top of the union
	q = base
	q.Status = entity.ApprovalStatusApproved
	assertIDSet(t, listIDs(t, repo, q), "a7")
}

func TestListCategoryDraft(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedVisibilityFixture(t, db)
	repo := NewApprovalQueryRepository(db)

	q := ApprovalQuery{RequesterID: "u-me", RequesterRole: entity.RoleEmployee, Category: CategoryDraft}
	assertIDSet(t, listIDs(t, repo, q), "a1")

	q.Status = entity.ApprovalStatusApproved
	assertIDSet(t, listIDs(t, repo, q))

	q.Status = "in_progress"
	assertIDSet(t, listIDs(t, repo, q), "a1")
}

func TestListDocumentTypeFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedVisibilityFixture(t, db)
	repo := NewApprovalQueryRepository(db)

	q := ApprovalQuery{
		RequesterID:   "u-me",
		RequesterRole: entity.RoleEmployee,
		Category:      CategoryAll,
		DocumentType:  entity.DocTypeLeave,
	}
	assertIDSet(t, listIDs(t, repo, q), "a1")
}

func TestListUnknownCategory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewApprovalQueryRepository(db)

	_, _, err := repo.List(context.Background(), ApprovalQuery{
		RequesterID: "u-me",
		Category:    "archive",
	})
	if !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestListPagination(t *testing.T) {
	db := testutil.SetupTestDB(t)
	for i := 0; i < 5; i++ {
		seedApproval(t, db, fmt.Sprintf("p%d", i), "u-me", entity.ApprovalStatusPending,
			entity.DocTypeBasic, time.Duration(i)*time.Minute)
	}
	repo := NewApprovalQueryRepository(db)

	q := ApprovalQuery{
		RequesterID:   "u-me",
		RequesterRole: entity.RoleEmployee,
		Category:      CategoryDraft,
		Page:          2,
		PageSize:      2,
	}
	items, total, err := repo.List(context.Background(), q)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items on page 2, got %d", len(items))
	}
	// p0 is the newest; page 2 with size 2 holds p2, p3
	if items[0].ID != "p2" || items[1].ID != "p3" {
		t.Errorf("unexpected page content: %s, %s", items[0].ID, items[1].ID)
	}
}

func TestCanceledDocumentLeavesMyTurn(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewApprovalQueryRepository(db)

	// Withdrawal terminates the document but the step row keeps its
	// frozen pending status; it must not surface as a to-do anywhere.
	seedApproval(t, db, "c1", "u-other", entity.ApprovalStatusCanceled, entity.DocTypeBasic, 2*time.Minute)
	seedStep(t, db, "c1", "u-me", 1, entity.StepStatusPending)

	seedApproval(t, db, "c2", "u-other", entity.ApprovalStatusPending, entity.DocTypeBasic, time.Minute)
	seedStep(t, db, "c2", "u-me", 1, entity.StepStatusPending)

	count, err := repo.PendingCount(context.Background(), "u-me")
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("canceled document must not count toward the badge, got %d", count)
	}

	base := ApprovalQuery{RequesterID: "u-me", RequesterRole: entity.RoleEmployee, Category: CategoryInProgress}
	q := base
	q.Status = "in_progress"
	assertIDSet(t, listIDs(t, repo, q), "c2")

	// The canceled one shows up on the rejected/canceled side instead
	q.Status = entity.StepStatusRejected
	assertIDSet(t, listIDs(t, repo, q), "c1")
}

func TestPendingCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedVisibilityFixture(t, db)
	repo := NewApprovalQueryRepository(db)

	count, err := repo.PendingCount(context.Background(), "u-me")
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 pending step for u-me, got %d", count)
	}

	count, err = repo.PendingCount(context.Background(), "u-nobody")
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 pending steps, got %d", count)
	}
}
