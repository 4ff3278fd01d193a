/*
Package timesheet owns time records and periodic work reports.

PURPOSE:
  TimeRecords are the single source of truth for hours worked. Daily and
  weekly reports summarize them; the cost engine prices them. Neither
  reports nor costing ever mutate a TimeRecord.

INVARIANTS:
  1. One TimeRecord per (user, project, work_date)
  2. hours = round((end - start) minutes / 60, 2), start < end
  3. One DailyReport per (user, report_date)
  4. One WeeklyReport per (user, week_start); week_end = week_start + 6 by default
  5. Approval is one-shot; content is mutable only while pending

SEE ALSO:
  - ledger.go: TimeLedger
  - reports.go: ReportLedger
  - generic/approval.go: Shared approval lifecycle
*/
package timesheet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/cost-ledger/generic"
)

// =============================================================================
// TIME RECORD
// =============================================================================

const DefaultWorkType = "development"

type TimeRecord struct {
	ID          string
	UserID      generic.UserID
	ProjectID   generic.ProjectID
	WorkDate    generic.Date
	StartTime   generic.Clock
	EndTime     generic.Clock
	Hours       decimal.Decimal
	WorkContent string
	WorkType    string
	generic.Approval
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *TimeRecord) Owner() generic.UserID              { return r.UserID }
func (r *TimeRecord) ApprovalState() *generic.Approval { return &r.Approval }

// WorkType is a catalog entry. Records are not checked against the catalog.
type WorkType struct {
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
}

// =============================================================================
// REPORTS
// =============================================================================

type DailyReport struct {
	ID          string
	UserID      generic.UserID
	ReportDate  generic.Date
	WorkContent string
	Progress    string
	Issues      string
	Plans       string
	// WorkHours is snapshotted at creation and never re-derived.
	WorkHours decimal.Decimal
	generic.Approval
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *DailyReport) Owner() generic.UserID              { return r.UserID }
func (r *DailyReport) ApprovalState() *generic.Approval { return &r.Approval }

type WeeklyReport struct {
	ID             string
	UserID         generic.UserID
	WeekStart      generic.Date
	WeekEnd        generic.Date
	WeekSummary    string
	CompletedTasks string
	OngoingTasks   string
	NextWeekPlans  string
	Challenges     string
	Suggestions    string
	// TotalHours changes after creation only through RecalculateTotalHours.
	TotalHours decimal.Decimal
	generic.Approval
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *WeeklyReport) Owner() generic.UserID              { return r.UserID }
func (r *WeeklyReport) ApprovalState() *generic.Approval { return &r.Approval }

func (r *WeeklyReport) Period() generic.Period {
	return generic.Period{Start: r.WeekStart, End: r.WeekEnd}
}

// =============================================================================
// FILTERS
// =============================================================================

// RecordFilter selects time records. Zero values mean "any".
type RecordFilter struct {
	UserID    generic.UserID
	ProjectID generic.ProjectID
	Status    generic.Status
	Period    generic.Period
}

// ReportFilter selects reports. For weekly reports the period bounds apply
// to week_start (lower) and week_end (upper).
type ReportFilter struct {
	UserID generic.UserID
	Status generic.Status
	Period generic.Period
}

// =============================================================================
// STORE
// =============================================================================

// Reader is the read side, usable inside and outside a transaction.
type Reader interface {
	GetTimeRecord(ctx context.Context, id string) (*TimeRecord, error)
	ListTimeRecords(ctx context.Context, filter RecordFilter) ([]TimeRecord, error)

	GetDailyReport(ctx context.Context, id string) (*DailyReport, error)
	ListDailyReports(ctx context.Context, filter ReportFilter) ([]DailyReport, error)

	GetWeeklyReport(ctx context.Context, id string) (*WeeklyReport, error)
	ListWeeklyReports(ctx context.Context, filter ReportFilter) ([]WeeklyReport, error)

	ListWorkTypes(ctx context.Context, activeOnly bool) ([]WorkType, error)
}

// Tx is what a timesheet transaction can do. Inserts return
// generic.ErrDuplicateEntry when the uniqueness key already exists.
type Tx interface {
	Reader

	InsertTimeRecord(ctx context.Context, r TimeRecord) error
	UpdateTimeRecord(ctx context.Context, r TimeRecord) error
	DeleteTimeRecord(ctx context.Context, id string) error

	InsertDailyReport(ctx context.Context, r DailyReport) error
	UpdateDailyReport(ctx context.Context, r DailyReport) error
	DeleteDailyReport(ctx context.Context, id string) error

	InsertWeeklyReport(ctx context.Context, r WeeklyReport) error
	UpdateWeeklyReport(ctx context.Context, r WeeklyReport) error
	DeleteWeeklyReport(ctx context.Context, id string) error

	InsertWorkType(ctx context.Context, wt WorkType) error
}

type Store interface {
	Reader
	generic.TxRunner[Tx]
}

// approvedHours sums hours of approved records.
func approvedHours(records []TimeRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.IsApproved() {
			total = total.Add(r.Hours)
		}
	}
	return generic.Round(total)
}
