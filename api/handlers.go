/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes reference data upkeep (employees, regulations, contracts, work
  intervals), the three recompute operations and the computed records via
  REST. Handlers parse and validate, delegate to attendance.Engine or the
  store, and serialize DTOs.

ENDPOINTS:
  Employees:
    GET    /api/employees                        List employees
    POST   /api/employees                        Create or update employee
    GET    /api/employees/{id}                   Get employee
    GET    /api/employees/{id}/contracts         List contracts
    POST   /api/employees/{id}/contracts         Create or update contract
    GET    /api/employees/{id}/intervals         List work intervals (?from&to)
    POST   /api/employees/{id}/intervals         Record a work interval
    GET    /api/employees/{id}/daily             Daily records (?from&to)
    GET    /api/employees/{id}/monthly/{month}   Monthly record

  Regulations:
    GET    /api/regulations                      List regulations
    POST   /api/regulations                      Create from factory JSON
    GET    /api/regulations/{id}                 Get regulation

  Attendance:
    POST   /api/attendance/daily/recompute       Rebuild daily records
    POST   /api/attendance/weekly/reallocate     Settle holiday overtime
    POST   /api/attendance/monthly/recompute     Rebuild monthly records
    POST   /api/attendance/recompute             All three in order
    GET    /api/attendance/runs                  Batch report history

ERROR HANDLING:
  - 400: attendance.ErrInvalidArgument (bad dates, months, clock times)
  - 404: unknown employee, regulation or record
  - 500: store failures
  Per-employee failures inside a batch are not HTTP errors; they are listed
  in the 200 batch report.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Engine  *attendance.Engine
	Factory *factory.RegulationFactory
	Logger  *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

func NewHandler(store *sqlite.Store, engine *attendance.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:   store,
		Engine:  engine,
		Factory: factory.NewRegulationFactory(),
		Logger:  logger,
	}
}

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	emp := sqlite.Employee{ID: req.ID, Name: req.Name, Email: req.Email}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// REGULATION HANDLERS
// =============================================================================

func (h *Handler) ListRegulations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.Store.ListRegulations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list regulations", err)
		return
	}

	dtos := make([]factory.RegulationJSON, len(regs))
	for i, reg := range regs {
		dtos[i] = h.Factory.ToJSON(reg)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetRegulation(w http.ResponseWriter, r *http.Request) {
	reg, err := h.Store.GetRegulation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get regulation", err)
		return
	}
	if reg == nil {
		writeError(w, http.StatusNotFound, "Regulation not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.ToJSON(*reg))
}

// CreateRegulation accepts the factory JSON schema.
func (h *Handler) CreateRegulation(w http.ResponseWriter, r *http.Request) {
	var rj factory.RegulationJSON
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	reg, err := h.Factory.FromJSON(rj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid regulation", err)
		return
	}
	if err := h.Store.SaveRegulation(r.Context(), reg); err != nil {
		writeStoreError(w, "Failed to save regulation", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Factory.ToJSON(reg))
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// CreateContractRequest either embeds a regulation or names a stored one.
type CreateContractRequest struct {
	ID           string                  `json:"id"`
	StartDate    string                  `json:"start_date"`
	ExpiredDate  string                  `json:"expired_date,omitempty"`
	RegulationID string                  `json:"regulation_id,omitempty"`
	Regulation   *factory.RegulationJSON `json:"regulation,omitempty"`
}

func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.Store.ListContracts(r.Context(), attendance.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
		return
	}

	dtos := make([]ContractDTO, len(contracts))
	for i, c := range contracts {
		dtos[i] = h.Factory.ContractToJSON(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	employeeID := chi.URLParam(r, "id")

	var req CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cj := factory.ContractJSON{
		ID:          req.ID,
		EmployeeID:  employeeID,
		StartDate:   req.StartDate,
		ExpiredDate: req.ExpiredDate,
	}
	switch {
	case req.Regulation != nil:
		cj.Regulation = *req.Regulation
	case req.RegulationID != "":
		reg, err := h.Store.GetRegulation(ctx, req.RegulationID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get regulation", err)
			return
		}
		if reg == nil {
			writeError(w, http.StatusNotFound, "Regulation not found", nil)
			return
		}
		cj.Regulation = h.Factory.ToJSON(*reg)
	default:
		writeError(w, http.StatusBadRequest, "regulation or regulation_id is required", nil)
		return
	}

	contract, err := h.Factory.ContractFromJSON(cj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid contract", err)
		return
	}
	if err := h.Store.SaveContract(ctx, contract); err != nil {
		writeStoreError(w, "Failed to save contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Factory.ContractToJSON(contract))
}

// =============================================================================
// WORK INTERVAL HANDLERS
// =============================================================================

func (h *Handler) ListWorkIntervals(w http.ResponseWriter, r *http.Request) {
	rng, err := rangeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return
	}

	intervals, err := h.Store.ResolveWorkIntervals(r.Context(), attendance.EmployeeID(chi.URLParam(r, "id")), rng.From, rng.To)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list work intervals", err)
		return
	}

	dtos := make([]WorkIntervalDTO, len(intervals))
	for i, iv := range intervals {
		dtos[i] = toWorkIntervalDTO(iv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateWorkInterval(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkIntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	iv, err := req.toWorkInterval(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid work interval", err)
		return
	}
	if err := h.Store.SaveWorkInterval(r.Context(), iv); err != nil {
		writeStoreError(w, "Failed to save work interval", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkIntervalDTO(iv))
}

func (h *Handler) DeleteWorkInterval(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteWorkInterval(r.Context(), chi.URLParam(r, "intervalID")); err != nil {
		writeStoreError(w, "Failed to delete work interval", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESULT HANDLERS
// =============================================================================

func (h *Handler) GetDailyRecords(w http.ResponseWriter, r *http.Request) {
	rng, err := rangeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return
	}

	records, err := h.Engine.DailyRecords(r.Context(), attendance.EmployeeID(chi.URLParam(r, "id")), rng)
	if err != nil {
		writeStoreError(w, "Failed to load daily records", err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyRecordDTOs(records))
}

func (h *Handler) GetMonthlyRecord(w http.ResponseWriter, r *http.Request) {
	month, err := attendance.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	rec, err := h.Engine.MonthlyRecord(r.Context(), attendance.EmployeeID(chi.URLParam(r, "id")), month)
	if err != nil {
		writeStoreError(w, "Failed to load monthly record", err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyRecordDTO(*rec))
}

// =============================================================================
// RECOMPUTE HANDLERS
// =============================================================================

func (h *Handler) RecomputeDaily(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRangeRequest(w, r)
	if !ok {
		return
	}
	report, err := h.Engine.RecomputeDailyAttendance(r.Context(), req)
	h.writeBatchReport(w, report, err)
}

func (h *Handler) ReallocateWeekly(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRangeRequest(w, r)
	if !ok {
		return
	}
	report, err := h.Engine.ReallocateWeeklyOvertime(r.Context(), req)
	h.writeBatchReport(w, report, err)
}

func (h *Handler) RecomputeMonthly(w http.ResponseWriter, r *http.Request) {
	var body RecomputeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := attendance.NewMonthRequest(body.Month, body.EmployeeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	report, err := h.Engine.RecomputeMonthlyAttendance(r.Context(), req)
	h.writeBatchReport(w, report, err)
}

// Recompute runs daily, weekly and monthly over the range widened to full
// weeks.
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRangeRequest(w, r)
	if !ok {
		return
	}
	report, err := h.Engine.Recompute(r.Context(), req)
	if err != nil {
		writeStoreError(w, "Recompute failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toPipelineReportDTO(report))
}

// ListRuns returns batch report history, newest first. ?limit defaults to 50.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]BatchReportDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toBatchReportDTO(run)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

func (h *Handler) decodeRangeRequest(w http.ResponseWriter, r *http.Request) (attendance.RangeRequest, bool) {
	var body RecomputeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return attendance.RangeRequest{}, false
	}
	req, err := attendance.NewRangeRequest(body.From, body.To, body.EmployeeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return attendance.RangeRequest{}, false
	}
	return req, true
}

func (h *Handler) writeBatchReport(w http.ResponseWriter, report *attendance.BatchReport, err error) {
	if err != nil {
		h.Logger.Error("batch aborted", zap.Error(err))
		writeStoreError(w, "Batch failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchReportDTO(report))
}

// =============================================================================
// HELPERS
// =============================================================================

// rangeFromQuery reads ?from&to; both default to the current month.
func rangeFromQuery(r *http.Request) (attendance.DateRange, error) {
	q := r.URL.Query()
	month := attendance.DateOf(time.Now()).CalendarMonth()
	rng := month.Range()

	if s := q.Get("from"); s != "" {
		d, err := attendance.ParseDate(s)
		if err != nil {
			return rng, &attendance.InvalidArgumentError{Field: "from", Value: s, Reason: "expected YYYY-MM-DD"}
		}
		rng.From = d
	}
	if s := q.Get("to"); s != "" {
		d, err := attendance.ParseDate(s)
		if err != nil {
			return rng, &attendance.InvalidArgumentError{Field: "to", Value: s, Reason: "expected YYYY-MM-DD"}
		}
		rng.To = d
	}
	return rng, rng.Validate()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError picks the status from the error chain.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case attendance.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, attendance.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
