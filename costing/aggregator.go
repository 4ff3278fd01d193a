/*
aggregator.go - Frozen cost reports over calculations and project costs

PURPOSE:
  Generate collects the cost rows in scope for a report type, sums them,
  and stores the totals together with a serialized copy of the rows.
  Reports are never recomputed: later calculations do not change them.

SCOPES:
  personal   → CostCalculations of one user (default: the actor)
  project    → ProjectCosts of one project whose period lies in the window
  department → CostCalculations of every user in the department
  company    → every CostCalculation in the window

  An empty department yields a report with all totals at 0.00.
*/
package costing

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/cost-ledger/generic"
)

type ReportAggregator struct {
	store Store
	users generic.UserDirectory
	authz generic.Authorizer

	Logger *zap.Logger
	Now    generic.NowFunc
}

func NewReportAggregator(store Store, users generic.UserDirectory, authz generic.Authorizer) *ReportAggregator {
	return &ReportAggregator{
		store:  store,
		users:  users,
		authz:  authz,
		Logger: zap.NewNop(),
	}
}

type GenerateInput struct {
	Name        string
	Type        ReportType
	PeriodLabel string
	Period      generic.Period

	// Scope parameters; which one applies depends on Type.
	UserID     generic.UserID
	ProjectID  generic.ProjectID
	Department string
}

func (in GenerateInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return generic.Errorf(generic.ErrMissingField, "report_name is required")
	case in.Type == "":
		return generic.Errorf(generic.ErrMissingField, "report_type is required")
	case strings.TrimSpace(in.PeriodLabel) == "":
		return generic.Errorf(generic.ErrMissingField, "report_period is required")
	}
	return in.Period.Validate()
}

// Generate builds and stores a CostReport.
func (a *ReportAggregator) Generate(ctx context.Context, actor generic.Actor, in GenerateInput) (*CostReport, error) {
	if err := generic.Require(ctx, a.authz, actor, generic.PermReportGenerate); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	// Directory lookups stay outside the transaction.
	var members []generic.UserID
	if in.Type == ReportDepartment && in.Department != "" {
		users, err := a.users.FindUsers(ctx, generic.UserFilter{Department: in.Department})
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			members = append(members, u.ID)
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	}

	var report CostReport
	err := a.store.WithTx(ctx, func(tx Tx) error {
		totals, snapshot, err := a.collect(ctx, tx, actor, in, members)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(snapshot)
		if err != nil {
			return err
		}
		report = CostReport{
			ID:                 generic.NewID("cr"),
			Name:               in.Name,
			Type:               in.Type,
			PeriodLabel:        in.PeriodLabel,
			Period:             in.Period,
			TotalCost:          totals.TotalCost,
			TotalHours:         totals.TotalHours,
			AverageCostPerHour: totals.AverageCostPerHour,
			Snapshot:           raw,
			GeneratedBy:        actor.ID,
			CreatedAt:          a.Now.Now(),
		}
		return tx.InsertCostReport(ctx, report)
	})
	if err != nil {
		return nil, err
	}

	a.Logger.Info("cost report generated",
		zap.String("report_id", report.ID),
		zap.String("report_type", string(report.Type)),
		zap.Stringer("period", report.Period),
		zap.String("total_cost", report.TotalCost.StringFixed(generic.Scale)),
	)
	return &report, nil
}

// collect resolves the scope of in and returns its totals and snapshot body.
// members lists the department's users for department reports.
func (a *ReportAggregator) collect(ctx context.Context, tx Tx, actor generic.Actor, in GenerateInput, members []generic.UserID) (Totals, map[string]any, error) {
	switch in.Type {
	case ReportPersonal:
		userID := in.UserID
		if userID == "" {
			userID = actor.ID
		}
		rows, err := tx.ListCalculations(ctx, CalculationFilter{UserIDs: []generic.UserID{userID}, Period: in.Period})
		if err != nil {
			return Totals{}, nil, err
		}
		return calculationTotals(rows), map[string]any{
			"user_id":      userID,
			"calculations": calculationRows(rows),
		}, nil

	case ReportProject:
		if in.ProjectID == "" {
			return Totals{}, nil, generic.Errorf(generic.ErrMissingScope, "project_id is required for a project report")
		}
		rows, err := tx.ListProjectCosts(ctx, ProjectCostFilter{ProjectID: in.ProjectID, Period: in.Period})
		if err != nil {
			return Totals{}, nil, err
		}
		return projectCostTotals(rows), map[string]any{
			"project_id":    in.ProjectID,
			"project_costs": projectCostRows(rows),
		}, nil

	case ReportDepartment:
		if in.Department == "" {
			return Totals{}, nil, generic.Errorf(generic.ErrMissingScope, "department is required for a department report")
		}
		ids := members
		if ids == nil {
			ids = []generic.UserID{}
		}

		var rows []CostCalculation
		if len(ids) > 0 {
			var err error
			rows, err = tx.ListCalculations(ctx, CalculationFilter{UserIDs: ids, Period: in.Period})
			if err != nil {
				return Totals{}, nil, err
			}
		}
		return calculationTotals(rows), map[string]any{
			"department":   in.Department,
			"user_ids":     ids,
			"calculations": calculationRows(rows),
		}, nil

	case ReportCompany:
		rows, err := tx.ListCalculations(ctx, CalculationFilter{Period: in.Period})
		if err != nil {
			return Totals{}, nil, err
		}
		return calculationTotals(rows), map[string]any{
			"calculations": calculationRows(rows),
		}, nil

	default:
		return Totals{}, nil, generic.Errorf(generic.ErrUnknownReportType, "unknown report type %q", in.Type)
	}
}

// Get returns a report to its generator or to holders of report_read.
func (a *ReportAggregator) Get(ctx context.Context, actor generic.Actor, id string) (*CostReport, error) {
	if actor.IsZero() {
		return nil, generic.Errorf(generic.ErrPermissionDenied, "no authenticated actor")
	}
	report, err := a.store.GetCostReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.GeneratedBy != actor.ID {
		if err := generic.Require(ctx, a.authz, actor, generic.PermReportRead); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// List requires report_generate.

func (a *ReportAggregator) List(ctx context.Context, actor generic.Actor, filter CostReportFilter, page generic.PageRequest) (generic.Page[CostReport], error) {
	if err := generic.Require(ctx, a.authz, actor, generic.PermReportGenerate); err != nil {
		return generic.Page[CostReport]{}, err
	}
	rows, err := a.store.ListCostReports(ctx, filter)
	if err != nil {
		return generic.Page[CostReport]{}, err
	}
	return generic.Paginate(rows, page), nil
}

// =============================================================================
// SNAPSHOT ROWS - Serialized form of the rows a report was built from
// =============================================================================

type calculationRow struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	ProjectID       string      `json:"project_id"`
	CalculationDate string      `json:"calculation_date"`
	WorkHours       json.Number `json:"work_hours"`
	HourlyRate      json.Number `json:"hourly_rate"`
	TotalCost       json.Number `json:"total_cost"`
	Method          string      `json:"calculation_method"`
}

type projectCostRow struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"project_id"`
	Granularity string      `json:"cost_type"`
	PeriodStart string      `json:"period_start"`
	PeriodEnd   string      `json:"period_end"`
	TotalHours  json.Number `json:"total_hours"`
	TotalCost   json.Number `json:"total_cost"`
	MemberCount int         `json:"member_count"`
	CostPerHour json.Number `json:"cost_per_hour"`
}

func calculationRows(rows []CostCalculation) []calculationRow {
	out := make([]calculationRow, 0, len(rows))
	for _, c := range rows {
		out = append(out, calculationRow{
			ID:              c.ID,
			UserID:          string(c.UserID),
			ProjectID:       string(c.ProjectID),
			CalculationDate: c.CalculationDate.String(),
			WorkHours:       generic.Fixed(c.WorkHours),
			HourlyRate:      generic.Fixed(c.HourlyRate),
			TotalCost:       generic.Fixed(c.TotalCost),
			Method:          string(c.Method),
		})
	}
	return out
}

func projectCostRows(rows []ProjectCost) []projectCostRow {
	out := make([]projectCostRow, 0, len(rows))
	for _, c := range rows {
		out = append(out, projectCostRow{
			ID:          c.ID,
			ProjectID:   string(c.ProjectID),
			Granularity: string(c.Granularity),
			PeriodStart: c.Period.Start.String(),
			PeriodEnd:   c.Period.End.String(),
			TotalHours:  generic.Fixed(c.TotalHours),
			TotalCost:   generic.Fixed(c.TotalCost),
			MemberCount: c.MemberCount,
			CostPerHour: generic.Fixed(c.CostPerHour),
		})
	}
	return out
}
