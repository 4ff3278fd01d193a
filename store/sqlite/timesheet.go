package sqlite

import (
	"context"
	"database/sql"

	"github.com/warp/cost-ledger/generic"
	"github.com/warp/cost-ledger/timesheet"
)

// =============================================================================
// TIMESHEET VIEW (timesheet.Store interface)
// =============================================================================

// TimesheetStore is the timesheet.Store view of a Store.
type TimesheetStore struct {
	s *Store
}

func (s *Store) Timesheets() *TimesheetStore {
	return &TimesheetStore{s: s}
}

func (t *TimesheetStore) WithTx(ctx context.Context, fn func(tx timesheet.Tx) error) error {
	return t.s.withTx(ctx, func(q queries) error { return fn(q) })
}

func (t *TimesheetStore) GetTimeRecord(ctx context.Context, id string) (*timesheet.TimeRecord, error) {
	return read(t.s, func(q queries) (*timesheet.TimeRecord, error) { return q.GetTimeRecord(ctx, id) })
}

func (t *TimesheetStore) ListTimeRecords(ctx context.Context, f timesheet.RecordFilter) ([]timesheet.TimeRecord, error) {
	return read(t.s, func(q queries) ([]timesheet.TimeRecord, error) { return q.ListTimeRecords(ctx, f) })
}

func (t *TimesheetStore) GetDailyReport(ctx context.Context, id string) (*timesheet.DailyReport, error) {
	return read(t.s, func(q queries) (*timesheet.DailyReport, error) { return q.GetDailyReport(ctx, id) })
}

func (t *TimesheetStore) ListDailyReports(ctx context.Context, f timesheet.ReportFilter) ([]timesheet.DailyReport, error) {
	return read(t.s, func(q queries) ([]timesheet.DailyReport, error) { return q.ListDailyReports(ctx, f) })
}

func (t *TimesheetStore) GetWeeklyReport(ctx context.Context, id string) (*timesheet.WeeklyReport, error) {
	return read(t.s, func(q queries) (*timesheet.WeeklyReport, error) { return q.GetWeeklyReport(ctx, id) })
}

func (t *TimesheetStore) ListWeeklyReports(ctx context.Context, f timesheet.ReportFilter) ([]timesheet.WeeklyReport, error) {
	return read(t.s, func(q queries) ([]timesheet.WeeklyReport, error) { return q.ListWeeklyReports(ctx, f) })
}

func (t *TimesheetStore) ListWorkTypes(ctx context.Context, activeOnly bool) ([]timesheet.WorkType, error) {
	return read(t.s, func(q queries) ([]timesheet.WorkType, error) { return q.ListWorkTypes(ctx, activeOnly) })
}

// =============================================================================
// TIME RECORDS
// =============================================================================

const timeRecordColumns = `id, user_id, project_id, work_date, start_time, end_time, hours,
	work_content, work_type, status, approver_id, approved_at, approval_note, created_at, updated_at`

func (q queries) InsertTimeRecord(ctx context.Context, r timesheet.TimeRecord) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO time_records (`+timeRecordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.ProjectID, r.WorkDate.String(), r.StartTime.String(), r.EndTime.String(),
		formatDecimal(r.Hours), r.WorkContent, r.WorkType,
		r.Status, approverArg(r.Approval), nullTime(r.ApprovedAt), r.Comment,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	return insertError(err, generic.ErrDuplicateEntry,
		"time record for user %s on project %s at %s already exists", r.UserID, r.ProjectID, r.WorkDate)
}

func (q queries) UpdateTimeRecord(ctx context.Context, r timesheet.TimeRecord) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE time_records SET
			start_time = ?, end_time = ?, hours = ?, work_content = ?, work_type = ?,
			status = ?, approver_id = ?, approved_at = ?, approval_note = ?, updated_at = ?
		WHERE id = ?`,
		r.StartTime.String(), r.EndTime.String(), formatDecimal(r.Hours), r.WorkContent, r.WorkType,
		r.Status, approverArg(r.Approval), nullTime(r.ApprovedAt), r.Comment, formatTime(r.UpdatedAt),
		r.ID,
	)
	if err != nil {
		return generic.StorageError("update time record", err)
	}
	return requireAffected(res, generic.ErrRecordNotFound, "time record %s not found", r.ID)
}

func (q queries) DeleteTimeRecord(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM time_records WHERE id = ?", id)
	if err != nil {
		return generic.StorageError("delete time record", err)
	}
	return requireAffected(res, generic.ErrRecordNotFound, "time record %s not found", id)
}

func (q queries) GetTimeRecord(ctx context.Context, id string) (*timesheet.TimeRecord, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+timeRecordColumns+" FROM time_records WHERE id = ?", id)
	r, err := scanTimeRecord(row)
	if err != nil {
		return nil, notFound(err, generic.ErrRecordNotFound, "time record %s not found", id)
	}
	return &r, nil
}

// ListTimeRecords returns matching records, newest work_date first.
func (q queries) ListTimeRecords(ctx context.Context, f timesheet.RecordFilter) ([]timesheet.TimeRecord, error) {
	var w where
	w.addIf(f.UserID != "", "user_id = ?", f.UserID)
	w.addIf(f.ProjectID != "", "project_id = ?", f.ProjectID)
	w.addIf(f.Status != "", "status = ?", f.Status)
	w.addIf(!f.Period.Start.IsZero(), "work_date >= ?", f.Period.Start.String())
	w.addIf(!f.Period.End.IsZero(), "work_date <= ?", f.Period.End.String())

	rows, err := q.db.QueryContext(ctx,
		"SELECT "+timeRecordColumns+" FROM time_records"+w.String()+" ORDER BY work_date DESC, created_at DESC",
		w.args...)
	if err != nil {
		return nil, generic.StorageError("list time records", err)
	}
	defer rows.Close()

	var out []timesheet.TimeRecord
	for rows.Next() {
		r, err := scanTimeRecord(rows)
		if err != nil {
			return nil, generic.StorageError("scan time record", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTimeRecord(row scanner) (timesheet.TimeRecord, error) {
	var r timesheet.TimeRecord
	var workDate, start, end, hours, status, createdAt, updatedAt string
	var approver, approvedAt sql.NullString
	err := row.Scan(&r.ID, &r.UserID, &r.ProjectID, &workDate, &start, &end, &hours,
		&r.WorkContent, &r.WorkType, &status, &approver, &approvedAt, &r.Comment, &createdAt, &updatedAt)
	if err != nil {
		return r, err
	}
	r.WorkDate = parseDate(workDate)
	r.StartTime = parseClock(start)
	r.EndTime = parseClock(end)
	r.Hours = generic.MustParseDecimal(hours)
	fillApproval(&r.Approval, status, approver, approvedAt)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// DAILY REPORTS
// =============================================================================

const dailyReportColumns = `id, user_id, report_date, work_content, progress, issues, plans, work_hours,
	status, approver_id, approved_at, approval_note, created_at, updated_at`

func (q queries) InsertDailyReport(ctx context.Context, r timesheet.DailyReport) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO daily_reports (`+dailyReportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.ReportDate.String(), r.WorkContent, r.Progress, r.Issues, r.Plans,
		formatDecimal(r.WorkHours),
		r.Status, approverArg(r.Approval), nullTime(r.ApprovedAt), r.Comment,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	return insertError(err, generic.ErrDuplicateEntry,
		"daily report for user %s at %s already exists", r.UserID, r.ReportDate)
}

func (q queries) UpdateDailyReport(ctx context.Context, r timesheet.DailyReport) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE daily_reports SET
			work_content = ?, progress = ?, issues = ?, plans = ?,
			status = ?, approver_id = ?, approved_at = ?, approval_note = ?, updated_at = ?
		WHERE id = ?`,
		r.WorkContent, r.Progress, r.Issues, r.Plans,
		r.Status, approverArg(r.Approval), nullTime(r.ApprovedAt), r.Comment, formatTime(r.UpdatedAt),
		r.ID,
	)
	if err != nil {
		return generic.StorageError("update daily report", err)
	}
	return requireAffected(res, generic.ErrRecordNotFound, "daily report %s not found", r.ID)
}

func (q queries) DeleteDailyReport(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM daily_reports WHERE id = ?", id)
	if err != nil {
		return generic.StorageError("delete daily report", err)
	}
	return requireAffected(res, generic.ErrRecordNotFound, "daily report %s not found", id)
}

func (q queries) GetDailyReport(ctx context.Context, id string) (*timesheet.DailyReport, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+dailyReportColumns+" FROM daily_reports WHERE id = ?", id)
	r, err := scanDailyReport(row)
	if err != nil {
		return nil, notFound(err, generic.ErrRecordNotFound, "daily report %s not found", id)
	}
	return &r, nil
}

func (q queries) ListDailyReports(ctx context.Context, f timesheet.ReportFilter) ([]timesheet.DailyReport, error) {
	var w where
	w.addIf(f.UserID != "", "user_id = ?", f.UserID)
	w.addIf(f.Status != "", "status = ?", f.Status)
	w.addIf(!f.Period.Start.IsZero(), "report_date >= ?", f.Period.Start.String())
	w.addIf(!f.Period.End.IsZero(), "report_date <= ?", f.Period.End.String())

	rows, err := q.db.QueryContext(ctx,
		"SELECT "+dailyReportColumns+" FROM daily_reports"+w.String()+" ORDER BY report_date DESC",
		w.args...)
	if err != nil {
		return nil, generic.StorageError("list daily reports", err)
	}
	defer rows.Close()

	var out []timesheet.DailyReport
	for rows.Next() {
		r, err := scanDailyReport(rows)
		if err != nil {
			return nil, generic.StorageError("scan daily report", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanDailyReport(row scanner) (timesheet.DailyReport, error) {
	var r timesheet.DailyReport
	var reportDate, hours, status, createdAt, updatedAt string
	var approver, approvedAt sql.NullString
	err := row.Scan(&r.ID, &r.UserID, &reportDate, &r.WorkContent, &r.Progress, &r.Issues, &r.Plans, &hours,
		&status, &approver, &approvedAt, &r.Comment, &createdAt, &updatedAt)
	if err != nil {
		return r, err
	}
	r.ReportDate = parseDate(reportDate)
	r.WorkHours = generic.MustParseDecimal(hours)
	fillApproval(&r.Approval, status, approver, approvedAt)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// WEEKLY REPORTS
// =============================================================================

const weeklyReportColumns = `id, user_id, week_start, week_end, week_summary, completed_tasks, ongoing_tasks,
	next_week_plans, challenges, suggestions, total_hours,
	status, approver_id, approved_at, approval_note, created_at, updated_at`

func (q queries) InsertWeeklyReport(ctx context.Context, r timesheet.WeeklyReport) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO weekly_reports (`+weeklyReportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.WeekStart.String(), r.WeekEnd.String(), r.WeekSummary,
		r.CompletedTasks, r.OngoingTasks, r.NextWeekPlans, r.Challenges, r.Suggestions,
		formatDecimal(r.TotalHours),
		r.Status, approverArg(r.Approval), nullTime(r.ApprovedAt), r.Comment,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	return insertError(err, generic.ErrDuplicateEntry,
		"weekly report for user %s starting %s already exists", r.UserID, r.WeekStart)
}

func (q queries) UpdateWeeklyReport(ctx context.Context, r timesheet.WeeklyReport) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE weekly_reports SET
			week_summary = ?, completed_tasks = ?, ongoing_tasks = ?, next_week_plans = ?,
			challenges = ?, suggestions = ?, total_hours = ?,
			status = ?, approver_id = ?, approved_at = ?, approval_note = ?, updated_at = ?
		WHERE id = ?`,
		r.WeekSummary, r.CompletedTasks, r.OngoingTasks, r.NextWeekPlans,
		r.Challenges, r.Suggestions, formatDecimal(r.TotalHours),
		r.Status, approverArg(r.Approval), nullTime(r.ApprovedAt), r.Comment, formatTime(r.UpdatedAt),
		r.ID,
	)
	if err != nil {
		return generic.StorageError("update weekly report", err)
	}
	return requireAffected(res, generic.ErrRecordNotFound, "weekly report %s not found", r.ID)
}

func (q queries) DeleteWeeklyReport(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM weekly_reports WHERE id = ?", id)
	if err != nil {
		return generic.StorageError("delete weekly report", err)
	}
	return requireAffected(res, generic.ErrRecordNotFound, "weekly report %s not found", id)
}

func (q queries) GetWeeklyReport(ctx context.Context, id string) (*timesheet.WeeklyReport, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+weeklyReportColumns+" FROM weekly_reports WHERE id = ?", id)
	r, err := scanWeeklyReport(row)
	if err != nil {
		return nil, notFound(err, generic.ErrRecordNotFound, "weekly report %s not found", id)
	}
	return &r, nil
}

// ListWeeklyReports filters on week_start >= Period.Start and
// week_end <= Period.End.
func (q queries) ListWeeklyReports(ctx context.Context, f timesheet.ReportFilter) ([]timesheet.WeeklyReport, error) {
	var w where
	w.addIf(f.UserID != "", "user_id = ?", f.UserID)
	w.addIf(f.Status != "", "status = ?", f.Status)
	w.addIf(!f.Period.Start.IsZero(), "week_start >= ?", f.Period.Start.String())
	w.addIf(!f.Period.End.IsZero(), "week_end <= ?", f.Period.End.String())

	rows, err := q.db.QueryContext(ctx,
		"SELECT "+weeklyReportColumns+" FROM weekly_reports"+w.String()+" ORDER BY week_start DESC",
		w.args...)
	if err != nil {
		return nil, generic.StorageError("list weekly reports", err)
	}
	defer rows.Close()

	var out []timesheet.WeeklyReport
	for rows.Next() {
		r, err := scanWeeklyReport(rows)
		if err != nil {
			return nil, generic.StorageError("scan weekly report", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanWeeklyReport(row scanner) (timesheet.WeeklyReport, error) {
	var r timesheet.WeeklyReport
	var weekStart, weekEnd, hours, status, createdAt, updatedAt string
	var approver, approvedAt sql.NullString
	err := row.Scan(&r.ID, &r.UserID, &weekStart, &weekEnd, &r.WeekSummary,
		&r.CompletedTasks, &r.OngoingTasks, &r.NextWeekPlans, &r.Challenges, &r.Suggestions, &hours,
		&status, &approver, &approvedAt, &r.Comment, &createdAt, &updatedAt)
	if err != nil {
		return r, err
	}
	r.WeekStart = parseDate(weekStart)
	r.WeekEnd = parseDate(weekEnd)
	r.TotalHours = generic.MustParseDecimal(hours)
	fillApproval(&r.Approval, status, approver, approvedAt)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// APPROVAL COLUMNS
// =============================================================================

func approverArg(a generic.Approval) sql.NullString {
	if a.ApproverID == nil {
		return sql.NullString{}
	}
	return nullString(string(*a.ApproverID))
}

func fillApproval(a *generic.Approval, status string, approver, approvedAt sql.NullString) {
	a.Status = generic.Status(status)
	if approver.Valid && approver.String != "" {
		id := generic.UserID(approver.String)
		a.ApproverID = &id
	}
	a.ApprovedAt = parseNullTime(approvedAt)
}

// =============================================================================
// WORK TYPES
// =============================================================================

func (q queries) InsertWorkType(ctx context.Context, wt timesheet.WorkType) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO work_types (name, description, is_active, created_at) VALUES (?, ?, ?, ?)",
		wt.Name, wt.Description, wt.IsActive, formatTime(wt.CreatedAt),
	)
	return insertError(err, generic.ErrDuplicateEntry, "work type %q already exists", wt.Name)
}

// ListWorkTypes returns the catalog ordered by name.
func (q queries) ListWorkTypes(ctx context.Context, activeOnly bool) ([]timesheet.WorkType, error) {
	var w where
	w.addIf(activeOnly, "is_active = 1")

	rows, err := q.db.QueryContext(ctx,
		"SELECT name, description, is_active, created_at FROM work_types"+w.String()+" ORDER BY name",
		w.args...)
	if err != nil {
		return nil, generic.StorageError("list work types", err)
	}
	defer rows.Close()

	var out []timesheet.WorkType
	for rows.Next() {
		var wt timesheet.WorkType
		var createdAt string
		if err := rows.Scan(&wt.Name, &wt.Description, &wt.IsActive, &createdAt); err != nil {
			return nil, generic.StorageError("scan work type", err)
		}
		wt.CreatedAt = parseTime(createdAt)
		out = append(out, wt)
	}
	return out, rows.Err()
}
