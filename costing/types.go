/*
Package costing prices approved time and freezes cost reports.

PURPOSE:
  The cost engine turns approved TimeRecords into CostCalculation rows
  (one per user/project/day) and ProjectCost roll-ups (one per
  project/granularity/period). The report aggregator snapshots those rows
  into immutable CostReports.

INVARIANTS:
  1. A CostCalculation requires an approved TimeRecord for the same key
  2. At most one CostCalculation per (user, project, date)
  3. At most one ProjectCost per (project, granularity, start, end)
  4. total_cost = work_hours × hourly_rate, rate snapshotted at calculation
  5. Ratios come from summed totals and are 0 when hours are 0
  6. CostReports never change after creation

APPEND-ONLY:
  Calculations, project costs and reports are derived facts. The store
  exposes no update or delete for them.

SEE ALSO:
  - engine.go: CostEngine
  - aggregator.go: ReportAggregator
  - timesheet/ledger.go: Source of approved hours
*/
package costing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/cost-ledger/generic"
	"github.com/warp/cost-ledger/timesheet"
)

// =============================================================================
// DERIVED ENTITIES
// =============================================================================

type CostCalculation struct {
	ID              string
	UserID          generic.UserID
	ProjectID       generic.ProjectID
	CalculationDate generic.Date
	WorkHours       decimal.Decimal
	HourlyRate      decimal.Decimal
	TotalCost       decimal.Decimal
	Method          generic.CostMethod
	Notes           string
	CreatedAt       time.Time
}

type ProjectCost struct {
	ID          string
	ProjectID   generic.ProjectID
	Granularity generic.Granularity
	Period      generic.Period
	TotalHours  decimal.Decimal
	TotalCost   decimal.Decimal
	MemberCount int
	CostPerHour decimal.Decimal
	CreatedAt   time.Time
}

type ReportType string

const (
	ReportPersonal   ReportType = "personal"
	ReportProject    ReportType = "project"
	ReportDepartment ReportType = "department"
	ReportCompany    ReportType = "company"
)

// CostReport is a point-in-time snapshot, not a live view.
type CostReport struct {
	ID                 string
	Name               string
	Type               ReportType
	PeriodLabel        string // daily, weekly, monthly, yearly
	Period             generic.Period
	TotalCost          decimal.Decimal
	TotalHours         decimal.Decimal
	AverageCostPerHour decimal.Decimal
	// Snapshot is the serialized set of contributing rows, stored verbatim.
	Snapshot    json.RawMessage
	GeneratedBy generic.UserID
	CreatedAt   time.Time
}

// =============================================================================
// FILTERS
// =============================================================================

// CalculationFilter selects CostCalculation rows. A nil UserIDs matches any
// user; a non-nil empty slice matches none.
type CalculationFilter struct {
	UserIDs   []generic.UserID
	ProjectID generic.ProjectID
	Period    generic.Period
}

// ProjectCostFilter selects ProjectCost rows whose whole period lies in Period.
type ProjectCostFilter struct {
	ProjectID   generic.ProjectID
	Granularity generic.Granularity
	Period      generic.Period
}

type CostReportFilter struct {
	Type ReportType
}

// =============================================================================
// STORE
// =============================================================================

type Reader interface {
	// ListTimeRecords reads the time ledger. Costing never writes it.
	ListTimeRecords(ctx context.Context, filter timesheet.RecordFilter) ([]timesheet.TimeRecord, error)

	ListCalculations(ctx context.Context, filter CalculationFilter) ([]CostCalculation, error)
	ListProjectCosts(ctx context.Context, filter ProjectCostFilter) ([]ProjectCost, error)

	GetCostReport(ctx context.Context, id string) (*CostReport, error)
	ListCostReports(ctx context.Context, filter CostReportFilter) ([]CostReport, error)
}

// Tx inserts derived facts. InsertCalculation and InsertProjectCost return
// generic.ErrDuplicateCalculation when the period key already exists.
type Tx interface {
	Reader

	InsertCalculation(ctx context.Context, c CostCalculation) error
	InsertProjectCost(ctx context.Context, c ProjectCost) error
	InsertCostReport(ctx context.Context, r CostReport) error
}

type Store interface {
	Reader
	generic.TxRunner[Tx]
}

// =============================================================================
// TOTALS
// =============================================================================

// Totals is a cost/hours pair with its derived average.
type Totals struct {
	TotalCost          decimal.Decimal
	TotalHours         decimal.Decimal
	AverageCostPerHour decimal.Decimal
}

func newTotals(cost, hours decimal.Decimal) Totals {
	cost, hours = generic.Round(cost), generic.Round(hours)
	return Totals{
		TotalCost:          cost,
		TotalHours:         hours,
		AverageCostPerHour: generic.Ratio(cost, hours),
	}
}

func calculationTotals(rows []CostCalculation) Totals {
	cost, hours := decimal.Zero, decimal.Zero
	for _, c := range rows {
		cost = cost.Add(c.TotalCost)
		hours = hours.Add(c.WorkHours)
	}
	return newTotals(cost, hours)
}

func projectCostTotals(rows []ProjectCost) Totals {
	cost, hours := decimal.Zero, decimal.Zero
	for _, c := range rows {
		cost = cost.Add(c.TotalCost)
		hours = hours.Add(c.TotalHours)
	}
	return newTotals(cost, hours)
}
