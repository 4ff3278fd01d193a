/*
approval.go - One-shot approval lifecycle shared by every approvable entity

PURPOSE:
  Time records, daily reports and weekly reports all follow the same
  workflow. It is implemented once here and embedded in each entity.

STATE MACHINE:
  ┌─────────┐  approve  ┌──────────┐
  │ pending │ ────────▶ │ approved │
  │         │  reject   ├──────────┤
  │         │ ────────▶ │ rejected │
  └─────────┘           └──────────┘

  - Transitions happen exactly once. There is no approved → pending.
  - Content is mutable only while pending.
  - Deciding never notifies anyone; callers own notification.

SEE ALSO:
  - timesheet/ledger.go: TimeRecord decisions
  - timesheet/reports.go: Daily/weekly report decisions
*/
package generic

import (
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, true
	}
	return "", false
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Approval is the decision state embedded in every approvable entity.
type Approval struct {
	Status     Status
	ApproverID *UserID
	ApprovedAt *time.Time
	Comment    string
}

func NewApproval() Approval {
	return Approval{Status: StatusPending}
}

func (a Approval) IsPending() bool  { return a.Status == StatusPending }
func (a Approval) IsApproved() bool { return a.Status == StatusApproved }

// Decide performs the one-shot transition.
func (a *Approval) Decide(approver UserID, action Action, comment string, at time.Time) error {
	if !a.IsPending() {
		return Errorf(ErrAlreadyDecided, "already %s", a.Status)
	}
	var next Status
	switch action {
	case ActionApprove:
		next = StatusApproved
	case ActionReject:
		next = StatusRejected
	default:
		return Errorf(ErrInvalidAction, "invalid action %q (use approve or reject)", action)
	}
	a.Status = next
	a.ApproverID = &approver
	a.ApprovedAt = &at
	a.Comment = comment
	return nil
}

// =============================================================================
// APPROVABLE - Entities carrying an Approval and an owner
// =============================================================================

type Approvable interface {
	Owner() UserID
	ApprovalState() *Approval
}

// GuardMutation enforces the owner-only, pending-only rule for update/delete.
func GuardMutation(actor Actor, e Approvable) error {
	if e.Owner() != actor.ID {
		return Errorf(ErrNotOwner, "only the owner may modify this record")
	}
	if st := e.ApprovalState(); !st.IsPending() {
		return Errorf(ErrImmutable, "record is %s and can no longer be modified", st.Status)
	}
	return nil
}

// DecideOn applies a decision to any approvable entity.
func DecideOn[E Approvable](e E, approver Actor, action Action, comment string, at time.Time) error {
	return e.ApprovalState().Decide(approver.ID, action, comment, at)
}
