package entity

import (
	"testing"
)

func TestLeaveDetailAllowed(t *testing.T) {
	cases := []struct {
		leaveType   string
		leaveDetail string
		want        bool
	}{
		// leave accepts its five sub-categories
		{LeaveTypeLeave, LeaveDetailAnnual, true},
		{LeaveTypeLeave, LeaveDetailFamilyEvent, true},
		{LeaveTypeLeave, LeaveDetailMenstrual, true},
		{LeaveTypeLeave, LeaveDetailPaid, true},
		{LeaveTypeLeave, LeaveDetailUnpaid, true},
		// half_off only accepts am/pm
		{LeaveTypeHalfOff, LeaveDetailAM, true},
		{LeaveTypeHalfOff, LeaveDetailPM, true},
		{LeaveTypeHalfOff, LeaveDetailAnnual, false},
		// cross-pairing is rejected
		{LeaveTypeLeave, LeaveDetailAM, false},
		{LeaveTypeLeave, "unknown", false},
		// education/training/other must not carry a sub-category
		{LeaveTypeEducation, "", true},
		{LeaveTypeEducation, LeaveDetailAnnual, false},
		{LeaveTypeTraining, "", true},
		{LeaveTypeTraining, LeaveDetailPM, false},
		{LeaveTypeOther, "", true},
		// unknown type always rejected
		{"vacation", LeaveDetailAnnual, false},
		{"", "", false},
	}

	for _, c := range cases {
		got := LeaveDetailAllowed(c.leaveType, c.leaveDetail)
		if got != c.want {
			t.Errorf("LeaveDetailAllowed(%q, %q) = %v, want %v", c.leaveType, c.leaveDetail, got, c.want)
		}
	}
}

func TestValidateDocumentTypeRegistry(t *testing.T) {
	if err := ValidateDocumentTypeRegistry(); err != nil {
		t.Fatalf("registry should be complete: %v", err)
	}

	// Every type must map to a known retention period
	for _, dt := range AllDocumentTypes {
		period, ok := RetentionByDocumentType[dt]
		if !ok {
			t.Errorf("document type %q has no retention mapping", dt)
			continue
		}
		switch period {
		case Retention1Year, Retention3Years, Retention5Years:
		default:
			t.Errorf("document type %q maps to unknown retention %q", dt, period)
		}
	}
}

func TestRetentionMapping(t *testing.T) {
	if RetentionByDocumentType[DocTypeBasic] != Retention3Years {
		t.Errorf("basic should keep 3 years")
	}
	if RetentionByDocumentType[DocTypeLeave] != Retention3Years {
		t.Errorf("leave should keep 3 years")
	}
	for _, dt := range []DocumentType{DocTypeCarFuel, DocTypeExpenseDraft, DocTypeOverseasTrip, DocTypeWelfareExpense} {
		if RetentionByDocumentType[dt] != Retention5Years {
			t.Errorf("%s should keep 5 years", dt)
		}
	}
}

func TestApprovalCurrentStep(t *testing.T) {
	a := &Approval{
		Status: ApprovalStatusPending,
		Steps: []ApprovalStep{
			{Seq: 1, ApproverID: "u1", Status: StepStatusApproved},
			{Seq: 2, ApproverID: "u2", Status: StepStatusPending},
			{Seq: 3, ApproverID: "u3", Status: StepStatusWaiting},
		},
	}

	step := a.CurrentStep()
	if step == nil || step.ApproverID != "u2" {
		t.Fatalf("expected current step to be u2, got %+v", step)
	}

	if a.StepByApprover("u3") == nil {
		t.Errorf("expected to find step for u3")
	}
	if a.StepByApprover("u9") != nil {
		t.Errorf("expected no step for u9")
	}

	if a.IsTerminal() {
		t.Errorf("pending approval should not be terminal")
	}
	a.Status = ApprovalStatusRejected
	if !a.IsTerminal() {
		t.Errorf("rejected approval should be terminal")
	}
}
