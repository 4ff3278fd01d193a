/*
reports.go - Daily and weekly work reports

PURPOSE:
  Reports are narrative summaries with a derived hours figure. They share
  the TimeRecord approval lifecycle (generic.Approval) and the same
  owner-only, pending-only edit rule.

DERIVED HOURS:
  DailyReport.WorkHours   Sum of the user's approved TimeRecords on
                          report_date, taken ONCE at creation. Approvals
                          landing later do not change it.
  WeeklyReport.TotalHours Sum of approved TimeRecords in [week_start,
                          week_end] at creation, refreshed only by an
                          explicit RecalculateTotalHours call.

UNIQUENESS:
  (user, report_date) for daily, (user, week_start) for weekly. Enforced
  by the store; duplicates surface as generic.ErrDuplicateEntry.

SEE ALSO:
  - ledger.go: TimeRecords are the source of hours
*/
package timesheet

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/cost-ledger/generic"
)

// =============================================================================
// REPORT LEDGER
// =============================================================================

type ReportLedger struct {
	store Store
	authz generic.Authorizer

	Logger *zap.Logger
	Now    generic.NowFunc
}

func NewReportLedger(store Store, authz generic.Authorizer) *ReportLedger {
	return &ReportLedger{store: store, authz: authz, Logger: zap.NewNop()}
}

// =============================================================================
// DAILY REPORTS
// =============================================================================

type CreateDailyInput struct {
	ReportDate  generic.Date // defaults to today
	WorkContent string
	Progress    string
	Issues      string
	Plans       string
}

type UpdateDailyInput struct {
	WorkContent *string
	Progress    *string
	Issues      *string
	Plans       *string
}

func (l *ReportLedger) CreateDaily(ctx context.Context, actor generic.Actor, in CreateDailyInput) (*DailyReport, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermReportCreate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.WorkContent) == "" {
		return nil, generic.Errorf(generic.ErrMissingField, "work_content is required")
	}
	date := in.ReportDate
	if date.IsZero() {
		date = l.Now.Today()
	}

	now := l.Now.Now()
	report := DailyReport{
		ID:          generic.NewID("dr"),
		UserID:      actor.ID,
		ReportDate:  date,
		WorkContent: in.WorkContent,
		Progress:    in.Progress,
		Issues:      in.Issues,
		Plans:       in.Plans,
		Approval:    generic.NewApproval(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := l.store.WithTx(ctx, func(tx Tx) error {
		records, err := tx.ListTimeRecords(ctx, RecordFilter{
			UserID: actor.ID,
			Status: generic.StatusApproved,
			Period: generic.Period{Start: date, End: date},
		})
		if err != nil {
			return err
		}
		report.WorkHours = approvedHours(records)
		return tx.InsertDailyReport(ctx, report)
	})
	if err != nil {
		return nil, err
	}

	l.Logger.Info("daily report created",
		zap.String("report_id", report.ID),
		zap.String("user_id", string(report.UserID)),
		zap.String("report_date", report.ReportDate.String()),
	)
	return &report, nil
}

func (l *ReportLedger) UpdateDaily(ctx context.Context, actor generic.Actor, id string, in UpdateDailyInput) (*DailyReport, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermReportUpdate); err != nil {
		return nil, err
	}
	var updated DailyReport
	err := l.store.WithTx(ctx, func(tx Tx) error {
		report, err := tx.GetDailyReport(ctx, id)
		if err != nil {
			return err
		}
		if err := generic.GuardMutation(actor, report); err != nil {
			return err
		}
		if in.WorkContent != nil {
			if strings.TrimSpace(*in.WorkContent) == "" {
				return generic.Errorf(generic.ErrMissingField, "work_content cannot be empty")
			}
			report.WorkContent = *in.WorkContent
		}
		if in.Progress != nil {
			report.Progress = *in.Progress
		}
		if in.Issues != nil {
			report.Issues = *in.Issues
		}
		if in.Plans != nil {
			report.Plans = *in.Plans
		}
		report.UpdatedAt = l.Now.Now()
		updated = *report
		return tx.UpdateDailyReport(ctx, *report)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (l *ReportLedger) DeleteDaily(ctx context.Context, actor generic.Actor, id string) error {
	if err := generic.Require(ctx, l.authz, actor, generic.PermReportDelete); err != nil {
		return err
	}
	return l.store.WithTx(ctx, func(tx Tx) error {
		report, err := tx.GetDailyReport(ctx, id)
		if err != nil {
			return err
		}
		if err := generic.GuardMutation(actor, report); err != nil {
			return err
		}
		return tx.DeleteDailyReport(ctx, id)
	})
}

func (l *ReportLedger) DecideDaily(ctx context.Context, actor generic.Actor, id string, action generic.Action, comment string) (*DailyReport, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermReportApprove); err != nil {
		return nil, err
	}
	var decided DailyReport
	err := l.store.WithTx(ctx, func(tx Tx) error {
		report, err := tx.GetDailyReport(ctx, id)
		if err != nil {
			return err
		}
		now := l.Now.Now()
		if err := generic.DecideOn(report, actor, action, comment, now); err != nil {
			return err
		}
		report.UpdatedAt = now
		decided = *report
		return tx.UpdateDailyReport(ctx, *report)
	})
	if err != nil {
		return nil, err
	}
	l.Logger.Info("daily report decided",
		zap.String("report_id", decided.ID),
		zap.String("status", string(decided.Status)),
	)
	return &decided, nil
}

func (l *ReportLedger) GetDaily(ctx context.Context, actor generic.Actor, id string) (*DailyReport, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermReportRead); err != nil {
		return nil, err
	}
	return l.store.GetDailyReport(ctx, id)
}

func (l *ReportLedger) ListDaily(ctx context.Context, actor generic.Actor, filter ReportFilter, page generic.PageRequest) (generic.Page[DailyReport], error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermReportRead); err != nil {
		return generic.Page[DailyReport]{}, err
	}
	reports, err := l.store.ListDailyReports(ctx, filter)
	if err != nil {
		return generic.Page[DailyReport]{}, err
	}
	return generic.Paginate(reports, page), nil
}

// =============================================================================
// WEEKLY REPORTS
// =============================================================================

type CreateWeeklyInput struct {
	WeekStart      generic.Date // defaults to Monday of the current week
	WeekEnd        generic.Date // defaults to WeekStart + 6 days
	WeekSummary    string
	CompletedTasks string
	OngoingTasks   string
	NextWeekPlans  string
	Challenges     string
	Suggestions    string
}

type UpdateWeeklyInput struct {
	WeekSummary    *string
	CompletedTasks *string
	OngoingTasks   *string
	NextWeekPlans  *string
	Challenges     *string
	Suggestions    *string
}

func (l *ReportLedger) CreateWeekly(ctx context.Context, actor generic.Actor, in CreateWeeklyInput) (*WeeklyReport, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermReportCreate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.WeekSummary) == "" {
		return nil, generic.Errorf(generic.ErrMissingField, "week_summary is required")
	}

	start := in.WeekStart
	if start.IsZero() {
		start = l.Now.Today().StartOfWeek()
	}
	end := in.WeekEnd
	if end.IsZero() {
		end = generic.WeekOf(start).End
	}
	window := generic.Period{Start: start, End: end}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	now := l.Now.Now()
	report := WeeklyReport{
		ID:             generic.NewID("wr"),
		UserID:         actor.ID,
		WeekStart:      start,
		WeekEnd:        end,
		WeekSummary:    in.WeekSummary,
		CompletedTasks: in.CompletedTasks,
		OngoingTasks:   in.OngoingTasks,
		NextWeekPlans:  in.NextWeekPlans,
		Challenges:     in.Challenges,
		Suggestions:    in.Suggestions,
		Approval:       generic.NewApproval(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := l.store.WithTx(ctx, func(tx Tx) error {
		records, err := tx.ListTimeRecords(ctx, RecordFilter{
			UserID: actor.ID,
			Status: generic.StatusApproved,
			Period: window,
		})
		if err != nil {
			return err
		}
		report.TotalHours = approvedHours(records)
		return tx.InsertWeeklyReport(ctx, report)
	})
	if err != nil {
		return nil, err
	}

	l.Logger.Info("weekly report created",
		zap.String("report_id", report.ID),
		zap.String("user_id", string(report.UserID)),
		zap.String("week", window.String()),
	)
	return &report, nil
}

func (l *ReportLedger) UpdateWeekly(ctx context.Context, actor generic.Actor, id string, in UpdateWeeklyInput) (*WeeklyReport, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermReportUpdate); err != nil {
		return nil, err
	}
	var updated WeeklyReport
	err := l.store.WithTx(ctx, func(tx Tx) error {
		report, err := tx.GetWeeklyReport(ctx, id)
		if err != nil {
			return err
		}
		if err := generic.GuardMutation(actor, report); err != nil {
			return err
		}
		if in.WeekSummary != nil {
			if strings.TrimSpace(*in.WeekSummary) == "" {
				return generic.Errorf(generic.ErrMissingField, "week_summary cannot be empty")
			}
			report.WeekSummary = *in.WeekSummary
		}
		setIf(&report.CompletedTasks, in.CompletedTasks)
		setIf(&report.OngoingTasks, in.OngoingTasks)
		setIf(&report.NextWeekPlans, in.NextWeekPlans)
		setIf(&report.Challenges, in.Challenges)
		setIf(&report.Suggestions, in.Suggestions)
		report.UpdatedAt = l.Now.Now()
		updated = *report
		return tx.UpdateWeeklyReport(ctx, *report)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func (l *ReportLedger) DeleteWeekly(ctx context.Context, actor generic.Actor, id string) error {
	if err := generic.Require(ctx, l.authz, actor, generic.PermReportDelete); err != nil {
		return err
	}
	return l.store.WithTx(ctx, func(tx Tx) error {
		report, err := tx.GetWeeklyReport(ctx, id)
		if err != nil {
			return err
		}
		if err := generic.GuardMutation(actor, report); err != nil {
			return err
		}
		return tx.DeleteWeeklyReport(ctx, id)
	})
}

func (l *ReportLedger) DecideWeekly(ctx context.Context, actor generic.Actor, id string, action generic.Action, comment string) (*WeeklyReport, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermReportApprove); err != nil {
		return nil, err
	}
	var decided WeeklyReport
	err := l.store.WithTx(ctx, func(tx Tx) error {
		report, err := tx.GetWeeklyReport(ctx, id)
		if err != nil {
			return err
		}
		now := l.Now.Now()
		if err := generic.DecideOn(report, actor, action, comment, now); err != nil {
			return err
		}
		report.UpdatedAt = now
		decided = *report
		return tx.UpdateWeeklyReport(ctx, *report)
	})
	if err != nil {
		return nil, err
	}
	l.Logger.Info("weekly report decided",
		zap.String("report_id", decided.ID),
		zap.String("status", string(decided.Status)),
	)
	return &decided, nil
}

// RecalculateTotalHours refreshes TotalHours from the approved TimeRecords
// currently in [week_start, week_end]. It is allowed in any status: the
// total is a derived figure, not report content.
func (l *ReportLedger) RecalculateTotalHours(ctx context.Context, actor generic.Actor, id string) (*WeeklyReport, error) {
	// The owner never changes, so the permission check runs before the
	// transaction opens.
	current, err := l.store.GetWeeklyReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != actor.ID {
		if err := generic.Require(ctx, l.authz, actor, generic.PermReportUpdate); err != nil {
			return nil, err
		}
	}

	var refreshed WeeklyReport
	err = l.store.WithTx(ctx, func(tx Tx) error {
		report, err := tx.GetWeeklyReport(ctx, id)
		if err != nil {
			return err
		}
		records, err := tx.ListTimeRecords(ctx, RecordFilter{
			UserID: report.UserID,
			Status: generic.StatusApproved,
			Period: report.Period(),
		})
		if err != nil {
			return err
		}
		report.TotalHours = approvedHours(records)
		report.UpdatedAt = l.Now.Now()
		refreshed = *report
		return tx.UpdateWeeklyReport(ctx, *report)
	})
	if err != nil {
		return nil, err
	}
	return &refreshed, nil
}

func (l *ReportLedger) GetWeekly(ctx context.Context, actor generic.Actor, id string) (*WeeklyReport, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermReportRead); err != nil {
		return nil, err
	}
	return l.store.GetWeeklyReport(ctx, id)
}

func (l *ReportLedger) ListWeekly(ctx context.Context, actor generic.Actor, filter ReportFilter, page generic.PageRequest) (generic.Page[WeeklyReport], error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermReportRead); err != nil {
		return generic.Page[WeeklyReport]{}, err
	}
	reports, err := l.store.ListWeeklyReports(ctx, filter)
	if err != nil {
		return generic.Page[WeeklyReport]{}, err
	}
	return generic.Paginate(reports, page), nil
}

// =============================================================================
// REPORT STATISTICS
// =============================================================================

type StatusCounts struct {
	Total    int
	Approved int
	Pending  int
	Rejected int
}

func (c *StatusCounts) add(s generic.Status) {
	c.Total++
	switch s {
	case generic.StatusApproved:
		c.Approved++
	case generic.StatusPending:
		c.Pending++
	case generic.StatusRejected:
		c.Rejected++
	}
}

type ReportStatistics struct {
	Daily  StatusCounts
	Weekly StatusCounts
}

// Statistics counts reports by status. filter.Status is ignored.
func (l *ReportLedger) Statistics(ctx context.Context, actor generic.Actor, filter ReportFilter) (*ReportStatistics, error) {
	if err := generic.Require(ctx, l.authz, actor, generic.PermReportRead); err != nil {
		return nil, err
	}
	filter.Status = ""
	daily, err := l.store.ListDailyReports(ctx, filter)
	if err != nil {
		return nil, err
	}
	weekly, err := l.store.ListWeeklyReports(ctx, filter)
	if err != nil {
		return nil, err
	}
	var stats ReportStatistics
	for _, r := range daily {
		stats.Daily.add(r.Status)
	}
	for _, r := range weekly {
		stats.Weekly.add(r.Status)
	}
	return &stats, nil
}
