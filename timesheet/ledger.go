/*
ledger.go - Time ledger with approval workflow and (user, project, day) uniqueness

PURPOSE:
  Owns TimeRecords: creation by project members, owner edits while
  pending, one-shot approval decisions, and read-only statistics over
  approved time.

INVARIANT:
  No two TimeRecords for the same (UserID, ProjectID, WorkDate).

  The check is NOT done by reading first. The store's unique index
  decides, so concurrent creates resolve to one winner and the loser
  receives generic.ErrDuplicateEntry.

LIFECYCLE:
  Create ──▶ pending ──Decide(approve)──▶ approved
                     └─Decide(reject)───▶ rejected

  Update/Delete: owner only, pending only, plus time_record_update /
  time_record_delete. Reads need time_record_read.
  Hours are recomputed whenever start or end changes.

EXAMPLE:
  ledger := timesheet.NewTimeLedger(store, directory, authz)
  rec, err := ledger.Create(ctx, actor, timesheet.CreateRecordInput{...})
  rec, err = ledger.Decide(ctx, manager, rec.ID, generic.ActionApprove, "ok")

SEE ALSO:
  - reports.go: Daily/weekly reports summarizing approved hours
  - worktypes.go: Work type catalog
  - costing/engine.go: Prices approved records
*/
package timesheet

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/cost-ledger/generic"
)

// =============================================================================
// TIME LEDGER
// =============================================================================

type TimeLedger struct {
	store    Store
	projects generic.ProjectDirectory
	authz    generic.Authorizer

	Logger *zap.Logger
	Now    generic.NowFunc
}

func NewTimeLedger(store Store, projects generic.ProjectDirectory, authz generic.Authorizer) *TimeLedger {
	return &TimeLedger{
		store:    store,
		projects: projects,
		authz:    authz,
		Logger:   zap.NewNop(),
	}
}

type CreateRecordInput struct {
	ProjectID   generic.ProjectID
	WorkDate    generic.Date
	StartTime   generic.Clock
	EndTime     generic.Clock
	WorkContent string
	WorkType    string
}

func (in CreateRecordInput) validate() error {
	switch {
	case in.ProjectID == "":
		return generic.Errorf(generic.ErrMissingField, "project_id is required")
	case in.WorkDate.IsZero():
		return generic.Errorf(generic.ErrMissingField, "work_date is required")
	case in.StartTime.IsZero():
		return generic.Errorf(generic.ErrMissingField, "start_time is required")
	case in.EndTime.IsZero():
		return generic.Errorf(generic.ErrMissingField, "end_time is required")
	case strings.TrimSpace(in.WorkContent) == "":
		return generic.Errorf(generic.ErrMissingField, "work_content is required")
	}
	return nil
}

// UpdateRecordInput carries the editable fields. Nil means "unchanged".
type UpdateRecordInput struct {
	StartTime   *generic.Clock
	EndTime     *generic.Clock
	WorkContent *string
	WorkType    *string
}

func checkRange(start, end generic.Clock) error {
	if !start.Before(end) {
		return generic.Errorf(generic.ErrInvalidRange, "start_time %s must be before end_time %s", start, end)
	}
	return nil
}

// Create records a pending time entry for the actor.
func (l *TimeLedger) Create(ctx context.Context, actor generic.Actor, in CreateRecordInput) (*TimeRecord, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermTimeRecordCreate); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := l.projects.GetProject(ctx, in.ProjectID); err != nil {
		return nil, err
	}
	member, err := l.projects.IsMember(ctx, in.ProjectID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, generic.Errorf(generic.ErrNotAMember, "user %s is not an active member of project %s", actor.ID, in.ProjectID)
	}
	if err := checkRange(in.StartTime, in.EndTime); err != nil {
		return nil, err
	}

	workType := in.WorkType
	if workType == "" {
		workType = DefaultWorkType
	}
	now := l.Now.Now()
	rec := TimeRecord{
		ID:          generic.NewID("tr"),
		UserID:      actor.ID,
		ProjectID:   in.ProjectID,
		WorkDate:    in.WorkDate,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Hours:       generic.HoursBetween(in.StartTime, in.EndTime),
		WorkContent: in.WorkContent,
		WorkType:    workType,
		Approval:    generic.NewApproval(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = l.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertTimeRecord(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	l.Logger.Info("time record created",
		zap.String("record_id", rec.ID),
		zap.String("user_id", string(rec.UserID)),
		zap.String("project_id", string(rec.ProjectID)),
		zap.String("work_date", rec.WorkDate.String()),
		zap.String("hours", rec.Hours.StringFixed(generic.Scale)),
	)
	return &rec, nil
}

// Update edits a pending record owned by the actor.
func (l *TimeLedger) Update(ctx context.Context, actor generic.Actor, id string, in UpdateRecordInput) (*TimeRecord, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermTimeRecordUpdate); err != nil {
		return nil, err
	}
	if in.WorkContent != nil && strings.TrimSpace(*in.WorkContent) == "" {
		return nil, generic.Errorf(generic.ErrMissingField, "work_content must not be empty")
	}

	var updated TimeRecord
	err := l.store.WithTx(ctx, func(tx Tx) error {
		rec, err := tx.GetTimeRecord(ctx, id)
		if err != nil {
			return err
		}
		if err := generic.GuardMutation(actor, rec); err != nil {
			return err
		}

		if in.StartTime != nil {
			rec.StartTime = *in.StartTime
		}
		if in.EndTime != nil {
			rec.EndTime = *in.EndTime
		}
		if in.WorkContent != nil {
			rec.WorkContent = *in.WorkContent
		}
		if in.WorkType != nil {
			rec.WorkType = *in.WorkType
			if rec.WorkType == "" {
				rec.WorkType = DefaultWorkType
			}
		}
		if err := checkRange(rec.StartTime, rec.EndTime); err != nil {
			return err
		}
		rec.Hours = generic.HoursBetween(rec.StartTime, rec.EndTime)
		rec.UpdatedAt = l.Now.Now()

		updated = *rec
		return tx.UpdateTimeRecord(ctx, *rec)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a pending record owned by the actor.
func (l *TimeLedger) Delete(ctx context.Context, actor generic.Actor, id string) error {
	if err := generic.Require(ctx, l.authz, actor, generic.PermTimeRecordDelete); err != nil {
		return err
	}
	return l.store.WithTx(ctx, func(tx Tx) error {
		rec, err := tx.GetTimeRecord(ctx, id)
		if err != nil {
			return err
		}
		if err := generic.GuardMutation(actor, rec); err != nil {
			return err
		}
		return tx.DeleteTimeRecord(ctx, id)
	})
}

// Decide approves or rejects a pending record. No notification is sent.
func (l *TimeLedger) Decide(ctx context.Context, actor generic.Actor, id string, action generic.Action, comment string) (*TimeRecord, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermTimeRecordApprove); err != nil {
		return nil, err
	}

	var decided TimeRecord
	err := l.store.WithTx(ctx, func(tx Tx) error {
		rec, err := tx.GetTimeRecord(ctx, id)
		if err != nil {
			return err
		}
		now := l.Now.Now()
		if err := generic.DecideOn(rec, actor, action, comment, now); err != nil {
			return err
		}
		rec.UpdatedAt = now
		decided = *rec
		return tx.UpdateTimeRecord(ctx, *rec)
	})
	if err != nil {
		return nil, err
	}

	l.Logger.Info("time record decided",
		zap.String("record_id", decided.ID),
		zap.String("status", string(decided.Status)),
		zap.String("approver_id", string(actor.ID)),
	)
	return &decided, nil
}

func (l *TimeLedger) Get(ctx context.Context, actor generic.Actor, id string) (*TimeRecord, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermTimeRecordRead); err != nil {
		return nil, err
	}
	return l.store.GetTimeRecord(ctx, id)
}

// List returns records newest work_date first.
func (l *TimeLedger) List(ctx context.Context, actor generic.Actor, filter RecordFilter, page generic.PageRequest) (generic.Page[TimeRecord], error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermTimeRecordRead); err != nil {
		return generic.Page[TimeRecord]{}, err
	}
	records, err := l.store.ListTimeRecords(ctx, filter)
	if err != nil {
		return generic.Page[TimeRecord]{}, err
	}
	return generic.Paginate(records, page), nil
}

// =============================================================================
// STATISTICS - Read-only aggregation over approved records
// =============================================================================

type ProjectHours struct {
	ProjectID generic.ProjectID
	Hours     decimal.Decimal
	Days      int
}

type Statistics struct {
	TotalHours decimal.Decimal
	TotalDays  int
	Projects   []ProjectHours
}

// Statistics aggregates approved records matching filter. The status in
// filter is ignored.
func (l *TimeLedger) Statistics(ctx context.Context, actor generic.Actor, filter RecordFilter) (*Statistics, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermTimeRecordRead); err != nil {
		return nil, err
	}
	filter.Status = generic.StatusApproved
	records, err := l.store.ListTimeRecords(ctx, filter)
	if err != nil {
		return nil, err
	}
	return summarize(records), nil
}

func summarize(records []TimeRecord) *Statistics {
	days := make(map[generic.Date]bool)
	byProject := make(map[generic.ProjectID]*ProjectHours)
	projectDays := make(map[generic.ProjectID]map[generic.Date]bool)
	total := decimal.Zero

	for _, r := range records {
		total = total.Add(r.Hours)
		days[r.WorkDate] = true

		ph, ok := byProject[r.ProjectID]
		if !ok {
			ph = &ProjectHours{ProjectID: r.ProjectID, Hours: decimal.Zero}
			byProject[r.ProjectID] = ph
			projectDays[r.ProjectID] = make(map[generic.Date]bool)
		}
		ph.Hours = ph.Hours.Add(r.Hours)
		projectDays[r.ProjectID][r.WorkDate] = true
	}

	stats := &Statistics{TotalHours: generic.Round(total), TotalDays: len(days)}
	for id, ph := range byProject {
		ph.Days = len(projectDays[id])
		ph.Hours = generic.Round(ph.Hours)
		stats.Projects = append(stats.Projects, *ph)
	}
	sort.Slice(stats.Projects, func(i, j int) bool {
		return stats.Projects[i].ProjectID < stats.Projects[j].ProjectID
	})
	return stats
}
