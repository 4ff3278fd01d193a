/*
handlers.go - HTTP API handlers for the time and cost ledger

PURPOSE:
  Exposes the ledgers and the cost engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.
  Every handler runs as the actor resolved by Authenticate.

ENDPOINTS:
  Time records:
    GET    /api/time-records                 List (user_id, project_id, status, start_date, end_date, page, per_page)
    POST   /api/time-records                 Log time (pending)
    GET    /api/time-records/statistics      Approved hours, days, per project
    GET    /api/time-records/work-types      Active work type catalog
    POST   /api/time-records/work-types      Add a work type (admin)
    GET    /api/time-records/{id}            Get
    PUT    /api/time-records/{id}            Edit a pending record (owner)
    DELETE /api/time-records/{id}            Delete a pending record (owner)
    POST   /api/time-records/{id}/approve    Approve or reject

  Reports:
    GET    /api/reports/statistics           Counts by status
    GET    /api/reports/daily                List
    POST   /api/reports/daily                Create (work hours snapshotted)
    GET    /api/reports/daily/{id}           Get
    PUT    /api/reports/daily/{id}           Edit (owner, pending)
    DELETE /api/reports/daily/{id}           Delete (owner, pending)
    POST   /api/reports/daily/{id}/approve   Approve or reject
    ...    /api/reports/weekly/...           Same as daily, plus
    POST   /api/reports/weekly/{id}/recalculate  Re-derive total hours

  Costs:
    GET    /api/costs/personal               List calculations
    POST   /api/costs/personal               Calculate one user-day-project
    GET    /api/costs/projects               List project costs
    POST   /api/costs/projects               Calculate a project window
    GET    /api/costs/statistics             Personal and project totals

  Cost reports:
    GET    /api/cost-reports                 List (report_type)
    POST   /api/cost-reports                 Generate a frozen snapshot
    GET    /api/cost-reports/{id}            Get with snapshot

ERROR HANDLING:
  Domain errors carry a kind and a stable code (generic/errors.go). The
  kind picks the HTTP status:
  - 400: Validation
  - 403: Forbidden (permission, ownership, membership)
  - 404: Not found
  - 409: Conflict (duplicate entry, already decided, immutable)
  - 412: Precondition failed (no approved time, no data)
  - 503: Storage failure (retryable)
  - 500: Anything unclassified

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Actor resolution, request logging
  - server.go: Router setup
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/cost-ledger/costing"
	"github.com/warp/cost-ledger/generic"
	"github.com/warp/cost-ledger/timesheet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Times      *timesheet.TimeLedger
	Reports    *timesheet.ReportLedger
	Costs      *costing.CostEngine
	Aggregator *costing.ReportAggregator
	Health     Pinger
	// Directory backs the demo scenarios; nil disables them.
	Directory DirectoryWriter

	Logger *zap.Logger
}

func NewHandler(times *timesheet.TimeLedger, reports *timesheet.ReportLedger, costs *costing.CostEngine, aggregator *costing.ReportAggregator) *Handler {
	return &Handler{
		Times:      times,
		Reports:    reports,
		Costs:      costs,
		Aggregator: aggregator,
		Logger:     zap.NewNop(),
	}
}

// Healthz reports whether storage is reachable.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.writeDomainError(w, generic.StorageError("ping", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// TIME RECORD HANDLERS
// =============================================================================

func (h *Handler) ListTimeRecords(w http.ResponseWriter, r *http.Request) {
	page, err := h.Times.List(r.Context(), actor(r), recordFilter(r), pageRequest(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(page, toTimeRecordDTO))
}

func (h *Handler) CreateTimeRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateTimeRecordRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Times.Create(r.Context(), actor(r), timesheet.CreateRecordInput{
		ProjectID:   generic.ProjectID(req.ProjectID),
		WorkDate:    req.WorkDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		WorkContent: req.WorkContent,
		WorkType:    req.WorkType,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimeRecordDTO(*rec))
}

func (h *Handler) GetTimeRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Times.Get(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeRecordDTO(*rec))
}

func (h *Handler) UpdateTimeRecord(w http.ResponseWriter, r *http.Request) {
	var req UpdateTimeRecordRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Times.Update(r.Context(), actor(r), chi.URLParam(r, "id"), timesheet.UpdateRecordInput{
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		WorkContent: req.WorkContent,
		WorkType:    req.WorkType,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeRecordDTO(*rec))
}

func (h *Handler) DeleteTimeRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.Times.Delete(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DecideTimeRecord(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Times.Decide(r.Context(), actor(r), chi.URLParam(r, "id"), req.Action, req.Comment)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeRecordDTO(*rec))
}

func (h *Handler) TimeStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Times.Statistics(r.Context(), actor(r), recordFilter(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeStatisticsDTO(stats))
}

func (h *Handler) ListWorkTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Times.WorkTypes(r.Context(), actor(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]WorkTypeDTO, len(types))
	for i, wt := range types {
		out[i] = toWorkTypeDTO(wt)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateWorkType(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkTypeRequest
	if !h.decode(w, r, &req) {
		return
	}

	wt, err := h.Times.CreateWorkType(r.Context(), actor(r), timesheet.CreateWorkTypeInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkTypeDTO(*wt))
}

// =============================================================================
// DAILY REPORT HANDLERS
// =============================================================================

func (h *Handler) ListDailyReports(w http.ResponseWriter, r *http.Request) {
	page, err := h.Reports.ListDaily(r.Context(), actor(r), reportFilter(r), pageRequest(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(page, toDailyReportDTO))
}

func (h *Handler) CreateDailyReport(w http.ResponseWriter, r *http.Request) {
	var req CreateDailyReportRequest
	if !h.decode(w, r, &req) {
		return
	}

	rep, err := h.Reports.CreateDaily(r.Context(), actor(r), timesheet.CreateDailyInput{
		ReportDate:  req.ReportDate,
		WorkContent: req.WorkContent,
		Progress:    req.Progress,
		Issues:      req.Issues,
		Plans:       req.Plans,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDailyReportDTO(*rep))
}

func (h *Handler) GetDailyReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reports.GetDaily(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyReportDTO(*rep))
}

func (h *Handler) UpdateDailyReport(w http.ResponseWriter, r *http.Request) {
	var req UpdateDailyReportRequest
	if !h.decode(w, r, &req) {
		return
	}

	rep, err := h.Reports.UpdateDaily(r.Context(), actor(r), chi.URLParam(r, "id"), timesheet.UpdateDailyInput{
		WorkContent: req.WorkContent,
		Progress:    req.Progress,
		Issues:      req.Issues,
		Plans:       req.Plans,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyReportDTO(*rep))
}

func (h *Handler) DeleteDailyReport(w http.ResponseWriter, r *http.Request) {
	if err := h.Reports.DeleteDaily(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DecideDailyReport(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !h.decode(w, r, &req) {
		return
	}

	rep, err := h.Reports.DecideDaily(r.Context(), actor(r), chi.URLParam(r, "id"), req.Action, req.Comment)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyReportDTO(*rep))
}

// =============================================================================
// WEEKLY REPORT HANDLERS
// =============================================================================

func (h *Handler) ListWeeklyReports(w http.ResponseWriter, r *http.Request) {
	page, err := h.Reports.ListWeekly(r.Context(), actor(r), reportFilter(r), pageRequest(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(page, toWeeklyReportDTO))
}

func (h *Handler) CreateWeeklyReport(w http.ResponseWriter, r *http.Request) {
	var req CreateWeeklyReportRequest
	if !h.decode(w, r, &req) {
		return
	}

	rep, err := h.Reports.CreateWeekly(r.Context(), actor(r), timesheet.CreateWeeklyInput{
		WeekStart:      req.WeekStart,
		WeekEnd:        req.WeekEnd,
		WeekSummary:    req.WeekSummary,
		CompletedTasks: req.CompletedTasks,
		OngoingTasks:   req.OngoingTasks,
		NextWeekPlans:  req.NextWeekPlans,
		Challenges:     req.Challenges,
		Suggestions:    req.Suggestions,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWeeklyReportDTO(*rep))
}

func (h *Handler) GetWeeklyReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reports.GetWeekly(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeeklyReportDTO(*rep))
}

func (h *Handler) UpdateWeeklyReport(w http.ResponseWriter, r *http.Request) {
	var req UpdateWeeklyReportRequest
	if !h.decode(w, r, &req) {
		return
	}

	rep, err := h.Reports.UpdateWeekly(r.Context(), actor(r), chi.URLParam(r, "id"), timesheet.UpdateWeeklyInput{
		WeekSummary:    req.WeekSummary,
		CompletedTasks: req.CompletedTasks,
		OngoingTasks:   req.OngoingTasks,
		NextWeekPlans:  req.NextWeekPlans,
		Challenges:     req.Challenges,
		Suggestions:    req.Suggestions,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeeklyReportDTO(*rep))
}

func (h *Handler) DeleteWeeklyReport(w http.ResponseWriter, r *http.Request) {
	if err := h.Reports.DeleteWeekly(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DecideWeeklyReport(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !h.decode(w, r, &req) {
		return
	}

	rep, err := h.Reports.DecideWeekly(r.Context(), actor(r), chi.URLParam(r, "id"), req.Action, req.Comment)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeeklyReportDTO(*rep))
}

func (h *Handler) RecalculateWeeklyReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reports.RecalculateTotalHours(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeeklyReportDTO(*rep))
}

func (h *Handler) ReportStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Reports.Statistics(r.Context(), actor(r), reportFilter(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReportStatisticsDTO{
		Daily:  toStatusCountsDTO(stats.Daily),
		Weekly: toStatusCountsDTO(stats.Weekly),
	})
}

// =============================================================================
// COST HANDLERS
// =============================================================================

func (h *Handler) CalculatePersonalCost(w http.ResponseWriter, r *http.Request) {
	var req PersonalCostRequest
	if !h.decode(w, r, &req) {
		return
	}

	calc, err := h.Costs.CalculatePersonalCost(r.Context(), actor(r), costing.PersonalCostInput{
		UserID:    generic.UserID(req.UserID),
		ProjectID: generic.ProjectID(req.ProjectID),
		Date:      req.Date,
		Notes:     req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCostCalculationDTO(*calc))
}

func (h *Handler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := costing.CalculationFilter{
		ProjectID: generic.ProjectID(q.Get("project_id")),
		Period:    queryPeriod(r),
	}
	if id := q.Get("user_id"); id != "" {
		filter.UserIDs = []generic.UserID{generic.UserID(id)}
	}

	page, err := h.Costs.ListCalculations(r.Context(), actor(r), filter, pageRequest(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(page, toCostCalculationDTO))
}

func (h *Handler) CalculateProjectCost(w http.ResponseWriter, r *http.Request) {
	var req ProjectCostRequest
	if !h.decode(w, r, &req) {
		return
	}

	pc, err := h.Costs.CalculateProjectCost(r.Context(), actor(r), costing.ProjectCostInput{
		ProjectID:   generic.ProjectID(req.ProjectID),
		Granularity: generic.Granularity(req.Granularity),
		Period:      generic.Period{Start: req.StartDate, End: req.EndDate},
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectCostDTO(*pc))
}

func (h *Handler) ListProjectCosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := costing.ProjectCostFilter{
		ProjectID: generic.ProjectID(q.Get("project_id")),
		Period:    queryPeriod(r),
	}
	if g := q.Get("cost_type"); g != "" {
		granularity, err := generic.ParseGranularity(g)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		filter.Granularity = granularity
	}

	page, err := h.Costs.ListProjectCosts(r.Context(), actor(r), filter, pageRequest(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(page, toProjectCostDTO))
}

func (h *Handler) CostStatistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stats, err := h.Costs.Statistics(r.Context(), actor(r), costing.StatisticsFilter{
		UserID:    generic.UserID(q.Get("user_id")),
		ProjectID: generic.ProjectID(q.Get("project_id")),
		Period:    queryPeriod(r),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCostStatisticsDTO(stats))
}

// =============================================================================
// COST REPORT HANDLERS
// =============================================================================

func (h *Handler) GenerateCostReport(w http.ResponseWriter, r *http.Request) {
	var req GenerateReportRequest
	if !h.decode(w, r, &req) {
		return
	}

	report, err := h.Aggregator.Generate(r.Context(), actor(r), costing.GenerateInput{
		Name:        req.Name,
		Type:        costing.ReportType(req.Type),
		PeriodLabel: req.PeriodLabel,
		Period:      generic.Period{Start: req.StartDate, End: req.EndDate},
		UserID:      generic.UserID(req.UserID),
		ProjectID:   generic.ProjectID(req.ProjectID),
		Department:  req.Department,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCostReportDTO(*report))
}

func (h *Handler) GetCostReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Aggregator.Get(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCostReportDTO(*report))
}

func (h *Handler) ListCostReports(w http.ResponseWriter, r *http.Request) {
	filter := costing.CostReportFilter{Type: costing.ReportType(r.URL.Query().Get("report_type"))}
	page, err := h.Aggregator.List(r.Context(), actor(r), filter, pageRequest(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(page, toCostReportSummaryDTO))
}

// =============================================================================
// HELPERS
// =============================================================================

func actor(r *http.Request) generic.Actor {
	a, _ := ActorFrom(r.Context())
	return a
}

// decode reads a JSON body into dst, writing a 400 and returning false on
// failure. Date and clock fields fail here when malformed.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var domainErr *generic.Error
		if !errors.As(err, &domainErr) {
			err = &generic.Error{Reason: generic.ErrMalformedBody, Message: "invalid request body", Err: err}
		}
		h.writeDomainError(w, err)
		return false
	}
	return true
}

// queryPeriod reads start_date/end_date. Malformed bounds are ignored.
func queryPeriod(r *http.Request) generic.Period {
	q := r.URL.Query()
	return generic.Period{
		Start: generic.ParseOptionalDate(q.Get("start_date")),
		End:   generic.ParseOptionalDate(q.Get("end_date")),
	}
}

func recordFilter(r *http.Request) timesheet.RecordFilter {
	q := r.URL.Query()
	status, _ := generic.ParseStatus(q.Get("status"))
	return timesheet.RecordFilter{
		UserID:    generic.UserID(q.Get("user_id")),
		ProjectID: generic.ProjectID(q.Get("project_id")),
		Status:    status,
		Period:    queryPeriod(r),
	}
}

func reportFilter(r *http.Request) timesheet.ReportFilter {
	q := r.URL.Query()
	status, _ := generic.ParseStatus(q.Get("status"))
	return timesheet.ReportFilter{
		UserID: generic.UserID(q.Get("user_id")),
		Status: status,
		Period: queryPeriod(r),
	}
}

func pageRequest(r *http.Request) generic.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return generic.PageRequest{Page: page, PerPage: perPage}.Normalize()
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch generic.KindOf(err) {
	case generic.ErrValidation:
		return http.StatusBadRequest
	case generic.ErrNotFound:
		return http.StatusNotFound
	case generic.ErrForbidden:
		return http.StatusForbidden
	case generic.ErrConflict:
		return http.StatusConflict
	case generic.ErrPreconditionFailed:
		return http.StatusPreconditionFailed
	case generic.ErrStorageFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: http.StatusText(status), Code: generic.CodeOf(err), Details: err.Error()}
	if status >= 500 {
		h.Logger.Error("request error", zap.Error(err), zap.String("code", resp.Code))
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
