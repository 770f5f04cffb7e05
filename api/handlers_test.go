package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	handler *Handler
	router  *chi.Mux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := attendance.NewEngine(store, nil)
	engine.Now = func() time.Time { return time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC) }

	h := NewHandler(store, engine, nil)
	return &testServer{handler: h, router: NewRouter(h, []string{"*"})}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) loadScenario(t *testing.T, id string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (ts *testServer) dailyOn(t *testing.T, emp, date string) DailyRecordDTO {
	t.Helper()
	rec := ts.do(t, http.MethodGet, "/api/employees/"+emp+"/daily?from="+date+"&to="+date, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	days := decode[[]DailyRecordDTO](t, rec)
	require.Len(t, days, 1)
	return days[0]
}

// =============================================================================
// HEALTH & EMPLOYEES
// =============================================================================

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEmployees_CreateListGet(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/employees", CreateEmployeeRequest{ID: "emp-1", Name: "Aiko", Email: "aiko@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	list := decode[[]EmployeeDTO](t, ts.do(t, http.MethodGet, "/api/employees", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "aiko@example.com", list[0].Email)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/employees/emp-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/employees/ghost", nil).Code)
}

func TestEmployees_CreateRequiresName(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/employees", CreateEmployeeRequest{ID: "emp-1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REGULATIONS & CONTRACTS
// =============================================================================

func TestRegulations(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/regulations", factory.PartTimeJSON("reg-pt", "Part time"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[factory.RegulationJSON](t, ts.do(t, http.MethodGet, "/api/regulations/reg-pt", nil))
	assert.Equal(t, []string{"mon", "wed", "fri"}, got.ScheduledWorkDays)

	list := decode[[]factory.RegulationJSON](t, ts.do(t, http.MethodGet, "/api/regulations", nil))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/regulations/nope", nil).Code)
}

func TestRegulations_Invalid(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/regulations",
		`{"id":"r","scheduled_work_days":["sun"],"legal_holiday":"sun","start_time":"09:00","end_time":"18:00"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContracts_ByRegulationID(t *testing.T) {
	// GIVEN: a stored regulation
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated,
		ts.do(t, http.MethodPost, "/api/regulations", factory.StandardWeekJSON("reg-std", "Standard")).Code)

	// WHEN: a contract references it by ID
	rec := ts.do(t, http.MethodPost, "/api/employees/emp-1/contracts", CreateContractRequest{
		ID: "c1", StartDate: "2025-01-01", RegulationID: "reg-std",
	})

	// THEN: the contract carries the full regulation
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	list := decode[[]ContractDTO](t, ts.do(t, http.MethodGet, "/api/employees/emp-1/contracts", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "emp-1", list[0].EmployeeID)
	assert.Equal(t, "18:00", list[0].Regulation.EndTime)
	assert.Empty(t, list[0].ExpiredDate)
}

func TestContracts_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body CreateContractRequest
		code int
	}{
		{"no regulation", CreateContractRequest{ID: "c1", StartDate: "2025-01-01"}, http.StatusBadRequest},
		{"unknown regulation", CreateContractRequest{ID: "c1", StartDate: "2025-01-01", RegulationID: "ghost"}, http.StatusNotFound},
		{"expired before start", CreateContractRequest{
			ID: "c1", StartDate: "2025-02-01", ExpiredDate: "2025-01-01",
			Regulation: &factory.RegulationJSON{ID: "r", ScheduledWorkDays: []string{"mon"}, StartTime: "09:00", EndTime: "17:00"},
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/employees/emp-1/contracts", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

// =============================================================================
// WORK INTERVALS
// =============================================================================

func TestWorkIntervals_CreateListDelete(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/employees/emp-1/intervals", CreateWorkIntervalRequest{
		ID: "wi-1", Date: "2025-01-11", StartTime: "20:00", EndTime: "02:00", EndAtNextDay: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	list := decode[[]WorkIntervalDTO](t, ts.do(t, http.MethodGet, "/api/employees/emp-1/intervals?from=2025-01-01&to=2025-01-31", nil))
	require.Len(t, list, 1)
	assert.True(t, list[0].EndAtNextDay)
	assert.Equal(t, "02:00", list[0].EndTime)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/intervals/wi-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/intervals/wi-1", nil).Code)
}

func TestWorkIntervals_Invalid(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body CreateWorkIntervalRequest
	}{
		{"bad date", CreateWorkIntervalRequest{ID: "wi", Date: "11/01/2025", StartTime: "09:00", EndTime: "18:00"}},
		{"bad clock", CreateWorkIntervalRequest{ID: "wi", Date: "2025-01-11", StartTime: "9", EndTime: "18:00"}},
		{"end before start same day", CreateWorkIntervalRequest{ID: "wi", Date: "2025-01-11", StartTime: "20:00", EndTime: "02:00"}},
		{"negative break", CreateWorkIntervalRequest{ID: "wi", Date: "2025-01-11", StartTime: "09:00", EndTime: "18:00", BreakMinutes: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/employees/emp-1/intervals", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

// =============================================================================
// RECOMPUTE
// =============================================================================

func TestRecompute_InvalidArguments(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		path string
		body RecomputeRequest
	}{
		{"daily reversed range", "/api/attendance/daily/recompute", RecomputeRequest{From: "2025-01-31", To: "2025-01-01"}},
		{"daily missing to", "/api/attendance/daily/recompute", RecomputeRequest{From: "2025-01-01"}},
		{"weekly bad date", "/api/attendance/weekly/reallocate", RecomputeRequest{From: "2025-13-01", To: "2025-01-01"}},
		{"monthly bad month", "/api/attendance/monthly/recompute", RecomputeRequest{Month: "2025/01"}},
		{"pipeline empty", "/api/attendance/recompute", RecomputeRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRecompute_StepByStep(t *testing.T) {
	// GIVEN: the holiday-headroom data
	ts := newTestServer(t)
	ts.loadScenario(t, "holiday-headroom")

	// WHEN: the steps run one at a time through the API
	daily := decode[BatchReportDTO](t, ts.do(t, http.MethodPost, "/api/attendance/daily/recompute",
		RecomputeRequest{From: "2025-01-06", To: "2025-01-12", EmployeeID: "emp-headroom"}))
	require.True(t, daily.Succeeded)
	assert.Equal(t, 0, ts.dailyOn(t, "emp-headroom", "2025-01-11").StatutoryOvertimeMinutes,
		"daily step leaves holiday overtime non-statutory")

	weekly := decode[BatchReportDTO](t, ts.do(t, http.MethodPost, "/api/attendance/weekly/reallocate",
		RecomputeRequest{From: "2025-01-06", To: "2025-01-12", EmployeeID: "emp-headroom"}))
	require.True(t, weekly.Succeeded)

	monthly := decode[BatchReportDTO](t, ts.do(t, http.MethodPost, "/api/attendance/monthly/recompute",
		RecomputeRequest{Month: "2025-01", EmployeeID: "emp-headroom"}))
	require.True(t, monthly.Succeeded)
	assert.Equal(t, "2025-01", monthly.Month)

	// THEN: Saturday is statutory overtime again
	sat := ts.dailyOn(t, "emp-headroom", "2025-01-11")
	assert.Equal(t, 300, sat.StatutoryOvertimeMinutes)
	assert.Equal(t, 0, sat.NonStatutoryOvertimeMinutes)
	assert.Equal(t, "non-statutory-holiday", sat.DayType)
}

func TestRecompute_Pipeline(t *testing.T) {
	ts := newTestServer(t)
	ts.loadScenario(t, "scheduled-day")

	rec := ts.do(t, http.MethodPost, "/api/attendance/recompute",
		RecomputeRequest{From: "2025-01-06", To: "2025-01-07"})

	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[PipelineReportDTO](t, rec)
	assert.True(t, report.Succeeded)
	require.NotNil(t, report.Daily)
	assert.Equal(t, "2025-01-06", report.Daily.From)
	assert.Equal(t, "2025-01-12", report.Daily.To)
	assert.Equal(t, []attendance.EmployeeID{"emp-scheduled"}, report.Daily.Processed)
	assert.Len(t, report.Monthly, 1)
}

// =============================================================================
// SCENARIOS (spot checks of each rule through the API)
// =============================================================================

func TestScenario_ScheduledDay(t *testing.T) {
	ts := newTestServer(t)
	ts.loadScenario(t, "scheduled-day")

	mon := ts.dailyOn(t, "emp-scheduled", "2025-01-06")
	assert.Equal(t, 480, mon.TotalWorkingMinutes)
	assert.Equal(t, 480, mon.ScheduledWorkingMinutes)
	assert.Equal(t, 0, mon.NonStatutoryOvertimeMinutes)
	assert.True(t, decimal.NewFromInt(8).Equal(mon.Hours.TotalWorking))

	tue := ts.dailyOn(t, "emp-scheduled", "2025-01-07")
	assert.Equal(t, 600, tue.TotalWorkingMinutes)
	assert.Equal(t, 120, tue.NonScheduledWorkingMinutes)
	assert.Equal(t, 0, tue.StatutoryOvertimeMinutes)
	assert.Equal(t, 120, tue.NonStatutoryOvertimeMinutes)
	assert.Equal(t, []string{"wi-emp-scheduled-2"}, tue.IntervalIDs)
}

func TestScenario_HolidayHeadroomMonthly(t *testing.T) {
	ts := newTestServer(t)
	ts.loadScenario(t, "holiday-headroom")

	rec := ts.do(t, http.MethodGet, "/api/employees/emp-headroom/monthly/2025-01", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m := decode[MonthlyRecordDTO](t, rec)
	assert.Equal(t, 2300, m.TotalWorkingMinutes)
	assert.Equal(t, 300, m.StatutoryOvertimeMinutes)
	assert.Equal(t, 6, m.TotalWorkingDays)
	assert.Equal(t, 1, m.TotalNonScheduledWorkingDays)
	assert.Equal(t, "38.33", m.Hours.TotalWorking.StringFixed(2))
	assert.Len(t, m.Records, 31)
	assert.Len(t, m.Prev, 2) // Dec 30, 31
	assert.Len(t, m.Next, 2) // Feb 1, 2
}

func TestScenario_OvernightIntoLegalHoliday(t *testing.T) {
	ts := newTestServer(t)
	ts.loadScenario(t, "overnight-holiday")

	sat := ts.dailyOn(t, "emp-overnight", "2025-01-11")

	assert.True(t, sat.IsNextDayLegalHoliday)
	assert.Equal(t, 360, sat.TotalWorkingMinutes)
	assert.Equal(t, 240, sat.CurrentDayWorkingMinutes)
	assert.Equal(t, 120, sat.NextDayWorkingMinutes)
	assert.Equal(t, 120, sat.HolidayWorkingMinutes)
	assert.Equal(t, 240, sat.NighttimeWorkingMinutes)
}

func TestScenario_NoContract(t *testing.T) {
	ts := newTestServer(t)
	ts.loadScenario(t, "no-contract")

	mon := ts.dailyOn(t, "emp-no-contract", "2025-01-06")
	assert.Equal(t, "undefined", mon.DayType)
	assert.Equal(t, 480, mon.TotalWorkingMinutes)
	assert.Equal(t, 0, mon.ScheduledWorkMinutes)
	assert.Equal(t, 0, mon.ScheduledWorkingMinutes)
	assert.Equal(t, 0, mon.NonStatutoryOvertimeMinutes)
	assert.Empty(t, mon.ContractIDs)

	wed := ts.dailyOn(t, "emp-no-contract", "2025-01-08")
	assert.Equal(t, "scheduled", wed.DayType)
	assert.Equal(t, 480, wed.ScheduledWorkingMinutes)
}

func TestScenario_LoadAllAndCurrent(t *testing.T) {
	ts := newTestServer(t)
	ts.loadScenario(t, "all")

	current := decode[ScenarioDTO](t, ts.do(t, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "all", current.ID)

	employees := decode[[]EmployeeDTO](t, ts.do(t, http.MethodGet, "/api/employees", nil))
	assert.Len(t, employees, 4)
}

func TestScenario_Unknown(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_ResetClearsRecords(t *testing.T) {
	ts := newTestServer(t)
	ts.loadScenario(t, "scheduled-day")

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/scenarios/reset", nil).Code)

	rec := ts.do(t, http.MethodGet, "/api/employees/emp-scheduled/monthly/2025-01", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "null\n", ts.do(t, http.MethodGet, "/api/scenarios/current", nil).Body.String())
}

// =============================================================================
// READS & RUNS
// =============================================================================

func TestMonthly_NotComputed(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/employees/emp-1/monthly/2025-01", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/employees/emp-1/monthly/January", nil).Code)
}

func TestDaily_InvalidRange(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/employees/emp-1/daily?from=2025-02-01&to=2025-01-01", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuns(t *testing.T) {
	// GIVEN: a scenario load, which runs the pipeline over Dec 30 - Feb 2
	ts := newTestServer(t)
	ts.loadScenario(t, "scheduled-day")

	// WHEN
	rec := ts.do(t, http.MethodGet, "/api/attendance/runs?limit=10", nil)

	// THEN: daily, weekly and three monthly runs, newest first
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Runs []BatchReportDTO `json:"runs"`
	}](t, rec)
	require.Len(t, body.Runs, 5)
	assert.Equal(t, "monthly", body.Runs[0].Step)
	assert.Equal(t, "daily", body.Runs[4].Step)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/attendance/runs?limit=-1", nil).Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/employees", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	ts.router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandler_LoadScenarioDirect(t *testing.T) {
	ts := newTestServer(t)

	report, err := ts.handler.loadScenario(context.Background(), "overnight-holiday")

	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.NotEmpty(t, report.Daily.Warnings, "Dec 30-31 precede the contract")
}
