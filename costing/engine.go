/*
engine.go - Cost engine pricing approved time per person and per project

PURPOSE:
  CalculatePersonalCost prices one user's approved day on one project.
  CalculateProjectCost rolls up a project's approved time over a window.
  Both write append-only rows keyed by their period, so recalculating the
  same key is a conflict, not an update.

RATE SNAPSHOT:
  The user's hourly rate is copied into the CostCalculation at calculation
  time. Changing a rate later never touches existing rows.

PROJECT ROLL-UP:
  total_hours   = Σ approved hours in window
  total_cost    = Σ hours × (current rate of that record's user)
  member_count  = distinct users among those records
  cost_per_hour = total_cost / total_hours  (0 when hours = 0)

  A user with no rate contributes hours but no cost.

DEFAULT WINDOWS (when start or end is missing, ending today):
  daily   → [today, today]
  weekly  → [today-6, today]
  monthly → [today-29, today]

SEE ALSO:
  - aggregator.go: Snapshots these rows into CostReports
  - timesheet/ledger.go: Approval of the records priced here
*/
package costing

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/cost-ledger/generic"
	"github.com/warp/cost-ledger/timesheet"
)

type CostEngine struct {
	store    Store
	users    generic.UserDirectory
	projects generic.ProjectDirectory
	authz    generic.Authorizer

	Logger *zap.Logger
	Now    generic.NowFunc
}

func NewCostEngine(store Store, users generic.UserDirectory, projects generic.ProjectDirectory, authz generic.Authorizer) *CostEngine {
	return &CostEngine{
		store:    store,
		users:    users,
		projects: projects,
		authz:    authz,
		Logger:   zap.NewNop(),
	}
}

// =============================================================================
// PERSONAL COST
// =============================================================================

type PersonalCostInput struct {
	// UserID defaults to the actor.
	UserID    generic.UserID
	ProjectID generic.ProjectID
	Date      generic.Date
	Notes     string
}

func (e *CostEngine) CalculatePersonalCost(ctx context.Context, actor generic.Actor, in PersonalCostInput) (*CostCalculation, error) {
	if err := generic.Require(ctx, e.authz, actor, generic.PermCostCalculate); err != nil {
		return nil, err
	}
	switch {
	case in.ProjectID == "":
		return nil, generic.Errorf(generic.ErrMissingField, "project_id is required")
	case in.Date.IsZero():
		return nil, generic.Errorf(generic.ErrMissingField, "calculation_date is required")
	}
	if in.UserID == "" {
		in.UserID = actor.ID
	}

	if _, err := e.projects.GetProject(ctx, in.ProjectID); err != nil {
		return nil, err
	}
	user, err := e.users.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	var calc CostCalculation
	err = e.store.WithTx(ctx, func(tx Tx) error {
		records, err := tx.ListTimeRecords(ctx, timesheet.RecordFilter{
			UserID:    in.UserID,
			ProjectID: in.ProjectID,
			Status:    generic.StatusApproved,
			Period:    generic.Period{Start: in.Date, End: in.Date},
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return generic.Errorf(generic.ErrNoApprovedTime,
				"no approved time for user %s on project %s at %s", in.UserID, in.ProjectID, in.Date)
		}

		rate := user.Rate()
		hours := records[0].Hours
		calc = CostCalculation{
			ID:              generic.NewID("cc"),
			UserID:          in.UserID,
			ProjectID:       in.ProjectID,
			CalculationDate: in.Date,
			WorkHours:       hours,
			HourlyRate:      rate,
			TotalCost:       generic.Cost(hours, rate),
			Method:          user.Method(),
			Notes:           in.Notes,
			CreatedAt:       e.Now.Now(),
		}
		return tx.InsertCalculation(ctx, calc)
	})
	if err != nil {
		return nil, err
	}

	e.Logger.Info("personal cost calculated",
		zap.String("calculation_id", calc.ID),
		zap.String("user_id", string(calc.UserID)),
		zap.String("project_id", string(calc.ProjectID)),
		zap.String("date", calc.CalculationDate.String()),
		zap.String("total_cost", calc.TotalCost.StringFixed(generic.Scale)),
	)
	return &calc, nil
}

// =============================================================================
// PROJECT COST
// =============================================================================

type ProjectCostInput struct {
	ProjectID   generic.ProjectID
	Granularity generic.Granularity
	// Period is used only when both bounds are set.
	Period generic.Period
}

// window resolves the aggregation window for in.
func (in ProjectCostInput) window(today generic.Date) (generic.Period, error) {
	if in.Period.Start.IsZero() || in.Period.End.IsZero() {
		return in.Granularity.TrailingWindow(today), nil
	}
	if err := in.Period.Validate(); err != nil {
		return generic.Period{}, err
	}
	return in.Period, nil
}

func (e *CostEngine) CalculateProjectCost(ctx context.Context, actor generic.Actor, in ProjectCostInput) (*ProjectCost, error) {
	if err := generic.Require(ctx, e.authz, actor, generic.PermCostCalculate); err != nil {
		return nil, err
	}
	if in.ProjectID == "" {
		return nil, generic.Errorf(generic.ErrMissingField, "project_id is required")
	}
	granularity, err := generic.ParseGranularity(string(in.Granularity))
	if err != nil {
		return nil, err
	}
	in.Granularity = granularity

	if _, err := e.projects.GetProject(ctx, in.ProjectID); err != nil {
		return nil, err
	}
	window, err := in.window(e.Now.Today())
	if err != nil {
		return nil, err
	}

	// Approved records are immutable, so pricing them before the
	// transaction reads the same rows it would read inside it.
	records, err := e.store.ListTimeRecords(ctx, timesheet.RecordFilter{
		ProjectID: in.ProjectID,
		Status:    generic.StatusApproved,
		Period:    window,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, generic.Errorf(generic.ErrNoData,
			"no approved time for project %s in %s", in.ProjectID, window)
	}
	hours, cost, members, err := e.rollUp(ctx, records)
	if err != nil {
		return nil, err
	}

	pc := ProjectCost{
		ID:          generic.NewID("pc"),
		ProjectID:   in.ProjectID,
		Granularity: in.Granularity,
		Period:      window,
		TotalHours:  hours,
		TotalCost:   cost,
		MemberCount: members,
		CostPerHour: generic.Ratio(cost, hours),
		CreatedAt:   e.Now.Now(),
	}
	err = e.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertProjectCost(ctx, pc)
	})
	if err != nil {
		return nil, err
	}

	e.Logger.Info("project cost calculated",
		zap.String("project_cost_id", pc.ID),
		zap.String("project_id", string(pc.ProjectID)),
		zap.String("granularity", string(pc.Granularity)),
		zap.Stringer("period", pc.Period),
		zap.Int("member_count", pc.MemberCount),
		zap.String("total_cost", pc.TotalCost.StringFixed(generic.Scale)),
	)
	return &pc, nil
}

// rollUp sums hours and cost across records, pricing each at its user's
// current rate. Users missing from the directory price at zero.
func (e *CostEngine) rollUp(ctx context.Context, records []timesheet.TimeRecord) (hours, cost decimal.Decimal, members int, err error) {
	rates := make(map[generic.UserID]decimal.Decimal)
	hours, cost = decimal.Zero, decimal.Zero

	for _, r := range records {
		rate, seen := rates[r.UserID]
		if !seen {
			user, err := e.users.GetUser(ctx, r.UserID)
			switch {
			case err == nil:
				rate = user.Rate()
			case generic.IsNotFound(err):
				rate = decimal.Zero
			default:
				return decimal.Zero, decimal.Zero, 0, err
			}
			rates[r.UserID] = rate
		}
		hours = hours.Add(r.Hours)
		cost = cost.Add(r.Hours.Mul(rate))
	}
	return generic.Round(hours), generic.Round(cost), len(rates), nil
}

// =============================================================================
// READS
// =============================================================================

// Reads require cost_read: calculations expose hourly rates.

func (e *CostEngine) ListCalculations(ctx context.Context, actor generic.Actor, filter CalculationFilter, page generic.PageRequest) (generic.Page[CostCalculation], error) {
	if err := generic.Require(ctx, e.authz, actor, generic.PermCostRead); err != nil {
		return generic.Page[CostCalculation]{}, err
	}
	rows, err := e.store.ListCalculations(ctx, filter)
	if err != nil {
		return generic.Page[CostCalculation]{}, err
	}
	return generic.Paginate(rows, page), nil
}

func (e *CostEngine) ListProjectCosts(ctx context.Context, actor generic.Actor, filter ProjectCostFilter, page generic.PageRequest) (generic.Page[ProjectCost], error) {
	if err := generic.Require(ctx, e.authz, actor, generic.PermCostRead); err != nil {
		return generic.Page[ProjectCost]{}, err
	}
	rows, err := e.store.ListProjectCosts(ctx, filter)
	if err != nil {
		return generic.Page[ProjectCost]{}, err
	}
	return generic.Paginate(rows, page), nil
}

// StatisticsFilter narrows cost statistics. Zero values mean "any".
type StatisticsFilter struct {
	UserID    generic.UserID
	ProjectID generic.ProjectID
	Period    generic.Period
}

type Statistics struct {
	Personal Totals
	Project  Totals
	// ByUser breaks personal cost down per user, ordered by user ID.
	ByUser []UserTotals
}

type UserTotals struct {
	UserID generic.UserID
	Totals
}

// Statistics sums personal calculations and project costs matching filter.
// Project costs are included when their whole period lies in filter.Period.
func (e *CostEngine) Statistics(ctx context.Context, actor generic.Actor, filter StatisticsFilter) (*Statistics, error) {
	if err := generic.Require(ctx, e.authz, actor, generic.PermCostRead); err != nil {
		return nil, err
	}
	calcFilter := CalculationFilter{ProjectID: filter.ProjectID, Period: filter.Period}
	if filter.UserID != "" {
		calcFilter.UserIDs = []generic.UserID{filter.UserID}
	}
	calcs, err := e.store.ListCalculations(ctx, calcFilter)
	if err != nil {
		return nil, err
	}
	costs, err := e.store.ListProjectCosts(ctx, ProjectCostFilter{ProjectID: filter.ProjectID, Period: filter.Period})
	if err != nil {
		return nil, err
	}

	return &Statistics{
		Personal: calculationTotals(calcs),
		Project:  projectCostTotals(costs),
		ByUser:   totalsByUser(calcs),
	}, nil
}

func totalsByUser(calcs []CostCalculation) []UserTotals {
	grouped := make(map[generic.UserID][]CostCalculation)
	for _, c := range calcs {
		grouped[c.UserID] = append(grouped[c.UserID], c)
	}
	out := make([]UserTotals, 0, len(grouped))
	for id, rows := range grouped {
		out = append(out, UserTotals{UserID: id, Totals: calculationTotals(rows)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
