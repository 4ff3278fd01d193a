package sqlite

import (
	"context"
	"strings"

	"github.com/warp/cost-ledger/costing"
	"github.com/warp/cost-ledger/generic"
	"github.com/warp/cost-ledger/timesheet"
)

// =============================================================================
// COSTING VIEW (costing.Store interface)
// =============================================================================
//
// APPEND-ONLY ENFORCEMENT:
//   No UPDATE or DELETE statements exist for cost_calculations,
//   project_costs or cost_reports.

// CostStore is the costing.Store view of a Store.
type CostStore struct {
	s *Store
}

func (s *Store) Costs() *CostStore {
	return &CostStore{s: s}
}

func (c *CostStore) WithTx(ctx context.Context, fn func(tx costing.Tx) error) error {
	return c.s.withTx(ctx, func(q queries) error { return fn(q) })
}

func (c *CostStore) ListTimeRecords(ctx context.Context, f timesheet.RecordFilter) ([]timesheet.TimeRecord, error) {
	return read(c.s, func(q queries) ([]timesheet.TimeRecord, error) { return q.ListTimeRecords(ctx, f) })
}

func (c *CostStore) ListCalculations(ctx context.Context, f costing.CalculationFilter) ([]costing.CostCalculation, error) {
	return read(c.s, func(q queries) ([]costing.CostCalculation, error) { return q.ListCalculations(ctx, f) })
}

func (c *CostStore) ListProjectCosts(ctx context.Context, f costing.ProjectCostFilter) ([]costing.ProjectCost, error) {
	return read(c.s, func(q queries) ([]costing.ProjectCost, error) { return q.ListProjectCosts(ctx, f) })
}

func (c *CostStore) GetCostReport(ctx context.Context, id string) (*costing.CostReport, error) {
	return read(c.s, func(q queries) (*costing.CostReport, error) { return q.GetCostReport(ctx, id) })
}

func (c *CostStore) ListCostReports(ctx context.Context, f costing.CostReportFilter) ([]costing.CostReport, error) {
	return read(c.s, func(q queries) ([]costing.CostReport, error) { return q.ListCostReports(ctx, f) })
}

// =============================================================================
// COST CALCULATIONS
// =============================================================================

const calculationColumns = `id, user_id, project_id, calculation_date, work_hours, hourly_rate,
	total_cost, calculation_method, notes, created_at`

func (q queries) InsertCalculation(ctx context.Context, c costing.CostCalculation) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO cost_calculations (`+calculationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.ProjectID, c.CalculationDate.String(),
		formatDecimal(c.WorkHours), formatDecimal(c.HourlyRate), formatDecimal(c.TotalCost),
		c.Method, c.Notes, formatTime(c.CreatedAt),
	)
	return insertError(err, generic.ErrDuplicateCalculation,
		"cost for user %s on project %s at %s is already calculated", c.UserID, c.ProjectID, c.CalculationDate)
}

// ListCalculations returns matching rows, newest calculation_date first.
func (q queries) ListCalculations(ctx context.Context, f costing.CalculationFilter) ([]costing.CostCalculation, error) {
	if f.UserIDs != nil && len(f.UserIDs) == 0 {
		return nil, nil
	}

	var w where
	if len(f.UserIDs) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(f.UserIDs)), ", ")
		args := make([]any, len(f.UserIDs))
		for i, id := range f.UserIDs {
			args[i] = string(id)
		}
		w.add("user_id IN ("+marks+")", args...)
	}
	w.addIf(f.ProjectID != "", "project_id = ?", f.ProjectID)
	w.addIf(!f.Period.Start.IsZero(), "calculation_date >= ?", f.Period.Start.String())
	w.addIf(!f.Period.End.IsZero(), "calculation_date <= ?", f.Period.End.String())

	rows, err := q.db.QueryContext(ctx,
		"SELECT "+calculationColumns+" FROM cost_calculations"+w.String()+" ORDER BY calculation_date DESC, user_id",
		w.args...)
	if err != nil {
		return nil, generic.StorageError("list cost calculations", err)
	}
	defer rows.Close()

	var out []costing.CostCalculation
	for rows.Next() {
		var c costing.CostCalculation
		var date, hours, rate, total, method, createdAt string
		err := rows.Scan(&c.ID, &c.UserID, &c.ProjectID, &date, &hours, &rate, &total, &method, &c.Notes, &createdAt)
		if err != nil {
			return nil, generic.StorageError("scan cost calculation", err)
		}
		c.CalculationDate = parseDate(date)
		c.WorkHours = generic.MustParseDecimal(hours)
		c.HourlyRate = generic.MustParseDecimal(rate)
		c.TotalCost = generic.MustParseDecimal(total)
		c.Method = generic.CostMethod(method)
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// PROJECT COSTS
// =============================================================================

const projectCostColumns = `id, project_id, cost_type, period_start, period_end, total_hours,
	total_cost, member_count, cost_per_hour, created_at`

func (q queries) InsertProjectCost(ctx context.Context, c costing.ProjectCost) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO project_costs (`+projectCostColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.Granularity, c.Period.Start.String(), c.Period.End.String(),
		formatDecimal(c.TotalHours), formatDecimal(c.TotalCost), c.MemberCount, formatDecimal(c.CostPerHour),
		formatTime(c.CreatedAt),
	)
	return insertError(err, generic.ErrDuplicateCalculation,
		"%s cost for project %s over %s is already calculated", c.Granularity, c.ProjectID, c.Period)
}

// ListProjectCosts returns rows whose whole period lies in f.Period,
// newest period_start first.
func (q queries) ListProjectCosts(ctx context.Context, f costing.ProjectCostFilter) ([]costing.ProjectCost, error) {
	var w where
	w.addIf(f.ProjectID != "", "project_id = ?", f.ProjectID)
	w.addIf(f.Granularity != "", "cost_type = ?", f.Granularity)
	w.addIf(!f.Period.Start.IsZero(), "period_start >= ?", f.Period.Start.String())
	w.addIf(!f.Period.End.IsZero(), "period_end <= ?", f.Period.End.String())

	rows, err := q.db.QueryContext(ctx,
		"SELECT "+projectCostColumns+" FROM project_costs"+w.String()+" ORDER BY period_start DESC, cost_type",
		w.args...)
	if err != nil {
		return nil, generic.StorageError("list project costs", err)
	}
	defer rows.Close()

	var out []costing.ProjectCost
	for rows.Next() {
		var c costing.ProjectCost
		var granularity, start, end, hours, total, perHour, createdAt string
		err := rows.Scan(&c.ID, &c.ProjectID, &granularity, &start, &end, &hours, &total, &c.MemberCount, &perHour, &createdAt)
		if err != nil {
			return nil, generic.StorageError("scan project cost", err)
		}
		c.Granularity = generic.Granularity(granularity)
		c.Period = generic.Period{Start: parseDate(start), End: parseDate(end)}
		c.TotalHours = generic.MustParseDecimal(hours)
		c.TotalCost = generic.MustParseDecimal(total)
		c.CostPerHour = generic.MustParseDecimal(perHour)
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// COST REPORTS
// =============================================================================

const costReportColumns = `id, report_name, report_type, report_period, start_date, end_date,
	total_cost, total_hours, average_cost_per_hour, report_data, generated_by, created_at`

func (q queries) InsertCostReport(ctx context.Context, r costing.CostReport) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO cost_reports (`+costReportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Type, r.PeriodLabel, r.Period.Start.String(), r.Period.End.String(),
		formatDecimal(r.TotalCost), formatDecimal(r.TotalHours), formatDecimal(r.AverageCostPerHour),
		string(r.Snapshot), r.GeneratedBy, formatTime(r.CreatedAt),
	)
	return insertError(err, generic.ErrDuplicateEntry, "cost report %s already exists", r.ID)
}

func (q queries) GetCostReport(ctx context.Context, id string) (*costing.CostReport, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+costReportColumns+" FROM cost_reports WHERE id = ?", id)
	r, err := scanCostReport(row)
	if err != nil {
		return nil, notFound(err, generic.ErrRecordNotFound, "cost report %s not found", id)
	}
	return &r, nil
}

// ListCostReports returns reports newest first.
func (q queries) ListCostReports(ctx context.Context, f costing.CostReportFilter) ([]costing.CostReport, error) {
	var w where
	w.addIf(f.Type != "", "report_type = ?", f.Type)

	rows, err := q.db.QueryContext(ctx,
		"SELECT "+costReportColumns+" FROM cost_reports"+w.String()+" ORDER BY created_at DESC",
		w.args...)
	if err != nil {
		return nil, generic.StorageError("list cost reports", err)
	}
	defer rows.Close()

	var out []costing.CostReport
	for rows.Next() {
		r, err := scanCostReport(rows)
		if err != nil {
			return nil, generic.StorageError("scan cost report", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanCostReport(row scanner) (costing.CostReport, error) {
	var r costing.CostReport
	var reportType, start, end, total, hours, avg, data, createdAt string
	err := row.Scan(&r.ID, &r.Name, &reportType, &r.PeriodLabel, &start, &end,
		&total, &hours, &avg, &data, &r.GeneratedBy, &createdAt)
	if err != nil {
		return r, err
	}
	r.Type = costing.ReportType(reportType)
	r.Period = generic.Period{Start: parseDate(start), End: parseDate(end)}
	r.TotalCost = generic.MustParseDecimal(total)
	r.TotalHours = generic.MustParseDecimal(hours)
	r.AverageCostPerHour = generic.MustParseDecimal(avg)
	r.Snapshot = []byte(data)
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}
