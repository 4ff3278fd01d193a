/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger and costing models from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - PageDTO: List envelope {items, total, pages, current_page, per_page}

NUMBERS:
  Hours and money are rendered as JSON numbers with exactly two fractional
  digits (8.00, 1250.50) via generic.Fixed. Dates are YYYY-MM-DD, clock
  times HH:MM, instants RFC 3339.

VALIDATION:
  Validation is done by the ledgers and engines, not in DTOs. DTOs are
  pure data carriers; malformed dates and times fail at decode.

SEE ALSO:
  - handlers.go: Uses these types
  - generic/types.go: Fixed
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/cost-ledger/costing"
	"github.com/warp/cost-ledger/generic"
	"github.com/warp/cost-ledger/timesheet"
)

// =============================================================================
// ENVELOPES
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type PageDTO[T any] struct {
	Items       []T `json:"items"`
	Total       int `json:"total"`
	Pages       int `json:"pages"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
}

func toPageDTO[T, U any](p generic.Page[T], fn func(T) U) PageDTO[U] {
	m := generic.MapPage(p, fn)
	return PageDTO[U]{
		Items:       m.Items,
		Total:       m.Total,
		Pages:       m.Pages,
		CurrentPage: m.CurrentPage,
		PerPage:     m.PerPage,
	}
}

// ApprovalDTO is embedded in every approvable response.
type ApprovalDTO struct {
	Status     generic.Status `json:"status"`
	ApproverID *string        `json:"approver_id"`
	ApprovedAt *string        `json:"approved_at"`
	Comment    string         `json:"comment,omitempty"`
}

func toApprovalDTO(a generic.Approval) ApprovalDTO {
	dto := ApprovalDTO{Status: a.Status, Comment: a.Comment}
	if a.ApproverID != nil {
		id := string(*a.ApproverID)
		dto.ApproverID = &id
	}
	if a.ApprovedAt != nil {
		dto.ApprovedAt = strPtr(formatInstant(*a.ApprovedAt))
	}
	return dto
}

// DecisionRequest approves or rejects a pending entity.
type DecisionRequest struct {
	Action  generic.Action `json:"action"`
	Comment string         `json:"comment"`
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func strPtr(s string) *string {
	return &s
}

// =============================================================================
// TIME RECORDS
// =============================================================================

type TimeRecordDTO struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	ProjectID   string        `json:"project_id"`
	WorkDate    generic.Date  `json:"work_date"`
	StartTime   generic.Clock `json:"start_time"`
	EndTime     generic.Clock `json:"end_time"`
	Hours       json.Number   `json:"hours"`
	WorkContent string        `json:"work_content"`
	WorkType    string        `json:"work_type"`
	ApprovalDTO
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toTimeRecordDTO(r timesheet.TimeRecord) TimeRecordDTO {
	return TimeRecordDTO{
		ID:          r.ID,
		UserID:      string(r.UserID),
		ProjectID:   string(r.ProjectID),
		WorkDate:    r.WorkDate,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Hours:       generic.Fixed(r.Hours),
		WorkContent: r.WorkContent,
		WorkType:    r.WorkType,
		ApprovalDTO: toApprovalDTO(r.Approval),
		CreatedAt:   formatInstant(r.CreatedAt),
		UpdatedAt:   formatInstant(r.UpdatedAt),
	}
}

type CreateTimeRecordRequest struct {
	ProjectID   string        `json:"project_id"`
	WorkDate    generic.Date  `json:"work_date"`
	StartTime   generic.Clock `json:"start_time"`
	EndTime     generic.Clock `json:"end_time"`
	WorkContent string        `json:"work_content"`
	WorkType    string        `json:"work_type"`
}

type UpdateTimeRecordRequest struct {
	StartTime   *generic.Clock `json:"start_time"`
	EndTime     *generic.Clock `json:"end_time"`
	WorkContent *string        `json:"work_content"`
	WorkType    *string        `json:"work_type"`
}

type WorkTypeDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
}

func toWorkTypeDTO(wt timesheet.WorkType) WorkTypeDTO {
	return WorkTypeDTO{
		Name:        wt.Name,
		Description: wt.Description,
		IsActive:    wt.IsActive,
		CreatedAt:   formatInstant(wt.CreatedAt),
	}
}

type CreateWorkTypeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ProjectHoursDTO struct {
	ProjectID string      `json:"project_id"`
	Hours     json.Number `json:"hours"`
	Days      int         `json:"days"`
}

type TimeStatisticsDTO struct {
	TotalHours json.Number       `json:"total_hours"`
	TotalDays  int               `json:"total_days"`
	Projects   []ProjectHoursDTO `json:"projects"`
}

func toTimeStatisticsDTO(s *timesheet.Statistics) TimeStatisticsDTO {
	dto := TimeStatisticsDTO{
		TotalHours: generic.Fixed(s.TotalHours),
		TotalDays:  s.TotalDays,
		Projects:   make([]ProjectHoursDTO, len(s.Projects)),
	}
	for i, p := range s.Projects {
		dto.Projects[i] = ProjectHoursDTO{ProjectID: string(p.ProjectID), Hours: generic.Fixed(p.Hours), Days: p.Days}
	}
	return dto
}

// =============================================================================
// DAILY AND WEEKLY REPORTS
// =============================================================================

type DailyReportDTO struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	ReportDate  generic.Date `json:"report_date"`
	WorkContent string       `json:"work_content"`
	Progress    string       `json:"progress"`
	Issues      string       `json:"issues"`
	Plans       string       `json:"plans"`
	WorkHours   json.Number  `json:"work_hours"`
	ApprovalDTO
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toDailyReportDTO(r timesheet.DailyReport) DailyReportDTO {
	return DailyReportDTO{
		ID:          r.ID,
		UserID:      string(r.UserID),
		ReportDate:  r.ReportDate,
		WorkContent: r.WorkContent,
		Progress:    r.Progress,
		Issues:      r.Issues,
		Plans:       r.Plans,
		WorkHours:   generic.Fixed(r.WorkHours),
		ApprovalDTO: toApprovalDTO(r.Approval),
		CreatedAt:   formatInstant(r.CreatedAt),
		UpdatedAt:   formatInstant(r.UpdatedAt),
	}
}

type CreateDailyReportRequest struct {
	ReportDate  generic.Date `json:"report_date"`
	WorkContent string       `json:"work_content"`
	Progress    string       `json:"progress"`
	Issues      string       `json:"issues"`
	Plans       string       `json:"plans"`
}

type UpdateDailyReportRequest struct {
	WorkContent *string `json:"work_content"`
	Progress    *string `json:"progress"`
	Issues      *string `json:"issues"`
	Plans       *string `json:"plans"`
}

type WeeklyReportDTO struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	WeekStart      generic.Date `json:"week_start"`
	WeekEnd        generic.Date `json:"week_end"`
	WeekSummary    string       `json:"week_summary"`
	CompletedTasks string       `json:"completed_tasks"`
	OngoingTasks   string       `json:"ongoing_tasks"`
	NextWeekPlans  string       `json:"next_week_plans"`
	Challenges     string       `json:"challenges"`
	Suggestions    string       `json:"suggestions"`
	TotalHours     json.Number  `json:"total_hours"`
	ApprovalDTO
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toWeeklyReportDTO(r timesheet.WeeklyReport) WeeklyReportDTO {
	return WeeklyReportDTO{
		ID:             r.ID,
		UserID:         string(r.UserID),
		WeekStart:      r.WeekStart,
		WeekEnd:        r.WeekEnd,
		WeekSummary:    r.WeekSummary,
		CompletedTasks: r.CompletedTasks,
		OngoingTasks:   r.OngoingTasks,
		NextWeekPlans:  r.NextWeekPlans,
		Challenges:     r.Challenges,
		Suggestions:    r.Suggestions,
		TotalHours:     generic.Fixed(r.TotalHours),
		ApprovalDTO:    toApprovalDTO(r.Approval),
		CreatedAt:      formatInstant(r.CreatedAt),
		UpdatedAt:      formatInstant(r.UpdatedAt),
	}
}

type CreateWeeklyReportRequest struct {
	WeekStart      generic.Date `json:"week_start"`
	WeekEnd        generic.Date `json:"week_end"`
	WeekSummary    string       `json:"week_summary"`
	CompletedTasks string       `json:"completed_tasks"`
	OngoingTasks   string       `json:"ongoing_tasks"`
	NextWeekPlans  string       `json:"next_week_plans"`
	Challenges     string       `json:"challenges"`
	Suggestions    string       `json:"suggestions"`
}

type UpdateWeeklyReportRequest struct {
	WeekSummary    *string `json:"week_summary"`
	CompletedTasks *string `json:"completed_tasks"`
	OngoingTasks   *string `json:"ongoing_tasks"`
	NextWeekPlans  *string `json:"next_week_plans"`
	Challenges     *string `json:"challenges"`
	Suggestions    *string `json:"suggestions"`
}

type StatusCountsDTO struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
}

type ReportStatisticsDTO struct {
	Daily  StatusCountsDTO `json:"daily"`
	Weekly StatusCountsDTO `json:"weekly"`
}

func toStatusCountsDTO(c timesheet.StatusCounts) StatusCountsDTO {
	return StatusCountsDTO{Total: c.Total, Approved: c.Approved, Pending: c.Pending, Rejected: c.Rejected}
}

// =============================================================================
// COSTS
// =============================================================================

type CostCalculationDTO struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	ProjectID       string       `json:"project_id"`
	CalculationDate generic.Date `json:"calculation_date"`
	WorkHours       json.Number  `json:"work_hours"`
	HourlyRate      json.Number  `json:"hourly_rate"`
	TotalCost       json.Number  `json:"total_cost"`
	Method          string       `json:"calculation_method"`
	Notes           string       `json:"notes,omitempty"`
	CreatedAt       string       `json:"created_at"`
}

func toCostCalculationDTO(c costing.CostCalculation) CostCalculationDTO {
	return CostCalculationDTO{
		ID:              c.ID,
		UserID:          string(c.UserID),
		ProjectID:       string(c.ProjectID),
		CalculationDate: c.CalculationDate,
		WorkHours:       generic.Fixed(c.WorkHours),
		HourlyRate:      generic.Fixed(c.HourlyRate),
		TotalCost:       generic.Fixed(c.TotalCost),
		Method:          string(c.Method),
		Notes:           c.Notes,
		CreatedAt:       formatInstant(c.CreatedAt),
	}
}

type PersonalCostRequest struct {
	UserID    string       `json:"user_id"`
	ProjectID string       `json:"project_id"`
	Date      generic.Date `json:"date"`
	Notes     string       `json:"notes"`
}

type ProjectCostDTO struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	Granularity string       `json:"cost_type"`
	PeriodStart generic.Date `json:"period_start"`
	PeriodEnd   generic.Date `json:"period_end"`
	TotalHours  json.Number  `json:"total_hours"`
	TotalCost   json.Number  `json:"total_cost"`
	MemberCount int          `json:"member_count"`
	CostPerHour json.Number  `json:"cost_per_hour"`
	CreatedAt   string       `json:"created_at"`
}

func toProjectCostDTO(c costing.ProjectCost) ProjectCostDTO {
	return ProjectCostDTO{
		ID:          c.ID,
		ProjectID:   string(c.ProjectID),
		Granularity: string(c.Granularity),
		PeriodStart: c.Period.Start,
		PeriodEnd:   c.Period.End,
		TotalHours:  generic.Fixed(c.TotalHours),
		TotalCost:   generic.Fixed(c.TotalCost),
		MemberCount: c.MemberCount,
		CostPerHour: generic.Fixed(c.CostPerHour),
		CreatedAt:   formatInstant(c.CreatedAt),
	}
}

type ProjectCostRequest struct {
	ProjectID   string       `json:"project_id"`
	Granularity string       `json:"cost_type"`
	StartDate   generic.Date `json:"start_date"`
	EndDate     generic.Date `json:"end_date"`
}

type TotalsDTO struct {
	TotalCost          json.Number `json:"total_cost"`
	TotalHours         json.Number `json:"total_hours"`
	AverageCostPerHour json.Number `json:"average_cost_per_hour"`
}

func toTotalsDTO(t costing.Totals) TotalsDTO {
	return TotalsDTO{
		TotalCost:          generic.Fixed(t.TotalCost),
		TotalHours:         generic.Fixed(t.TotalHours),
		AverageCostPerHour: generic.Fixed(t.AverageCostPerHour),
	}
}

type UserTotalsDTO struct {
	UserID string `json:"user_id"`
	TotalsDTO
}

type CostStatisticsDTO struct {
	Personal TotalsDTO       `json:"personal"`
	Project  TotalsDTO       `json:"project"`
	ByUser   []UserTotalsDTO `json:"by_user"`
}

func toCostStatisticsDTO(s *costing.Statistics) CostStatisticsDTO {
	dto := CostStatisticsDTO{
		Personal: toTotalsDTO(s.Personal),
		Project:  toTotalsDTO(s.Project),
		ByUser:   make([]UserTotalsDTO, len(s.ByUser)),
	}
	for i, u := range s.ByUser {
		dto.ByUser[i] = UserTotalsDTO{UserID: string(u.UserID), TotalsDTO: toTotalsDTO(u.Totals)}
	}
	return dto
}

// =============================================================================
// COST REPORTS
// =============================================================================

type CostReportDTO struct {
	ID                 string          `json:"id"`
	Name               string          `json:"report_name"`
	Type               string          `json:"report_type"`
	PeriodLabel        string          `json:"report_period"`
	StartDate          generic.Date    `json:"start_date"`
	EndDate            generic.Date    `json:"end_date"`
	TotalCost          json.Number     `json:"total_cost"`
	TotalHours         json.Number     `json:"total_hours"`
	AverageCostPerHour json.Number     `json:"average_cost_per_hour"`
	Data               json.RawMessage `json:"report_data,omitempty"`
	GeneratedBy        string          `json:"generated_by"`
	CreatedAt          string          `json:"created_at"`
}

func toCostReportDTO(r costing.CostReport) CostReportDTO {
	return CostReportDTO{
		ID:                 r.ID,
		Name:               r.Name,
		Type:               string(r.Type),
		PeriodLabel:        r.PeriodLabel,
		StartDate:          r.Period.Start,
		EndDate:            r.Period.End,
		TotalCost:          generic.Fixed(r.TotalCost),
		TotalHours:         generic.Fixed(r.TotalHours),
		AverageCostPerHour: generic.Fixed(r.AverageCostPerHour),
		Data:               r.Snapshot,
		GeneratedBy:        string(r.GeneratedBy),
		CreatedAt:          formatInstant(r.CreatedAt),
	}
}

// toCostReportSummaryDTO omits the snapshot for list views.
func toCostReportSummaryDTO(r costing.CostReport) CostReportDTO {
	dto := toCostReportDTO(r)
	dto.Data = nil
	return dto
}

type GenerateReportRequest struct {
	Name        string       `json:"report_name"`
	Type        string       `json:"report_type"`
	PeriodLabel string       `json:"report_period"`
	StartDate   generic.Date `json:"start_date"`
	EndDate     generic.Date `json:"end_date"`
	UserID      string       `json:"user_id"`
	ProjectID   string       `json:"project_id"`
	Department  string       `json:"department"`
}
