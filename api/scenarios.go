/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Populates the database with small, hand-checkable data sets and runs the
  full recompute over them, so every rule of the engine can be inspected
  through the read endpoints.

AVAILABLE SCENARIOS (all in January 2025, standard Mon-Fri 09:00-18:00
week with a one hour break and Sunday as legal holiday):

  scheduled-day:      Monday exactly on schedule, Tuesday two hours over
  holiday-headroom:   2000 scheduled minutes plus 300 on Saturday; the
                      Saturday becomes statutory overtime
  overnight-holiday:  Saturday 20:00-02:00 shift running into the legal
                      holiday
  no-contract:        Work logged before the contract starts
  all:                Every scenario above, one employee each

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create regulation via factory preset
 3. Create employee and contract
 4. Record work intervals
 5. Recompute January 2025

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "holiday-headroom"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const scenarioMonth = "2025-01"

const standardRegulationID = "reg-standard"

var scenarios = []ScenarioDTO{
	{
		ID:          "scheduled-day",
		Name:        "Scheduled Day",
		Description: "On-schedule Monday (480) and a Tuesday with 120 minutes of non-statutory overtime",
		Month:       scenarioMonth,
	},
	{
		ID:          "holiday-headroom",
		Name:        "Holiday With Weekly Headroom",
		Description: "2000 scheduled minutes leave 400 of weekly headroom; 300 Saturday minutes become statutory overtime",
		Month:       scenarioMonth,
	},
	{
		ID:          "overnight-holiday",
		Name:        "Overnight Into Legal Holiday",
		Description: "Saturday 20:00-02:00 shift; the 120 minutes after midnight count as legal holiday work",
		Month:       scenarioMonth,
	},
	{
		ID:          "no-contract",
		Name:        "No Applicable Contract",
		Description: "Work logged before the contract starts yields undefined days with zero entitlements",
		Month:       scenarioMonth,
	},
	{
		ID:          "all",
		Name:        "All Scenarios",
		Description: "Every scenario above, one employee each",
		Month:       scenarioMonth,
	},
}

// scenarioLoaders are keyed by scenario ID; "all" runs every entry.
var scenarioLoaders = map[string]func(*Handler, context.Context) error{
	"scheduled-day":     (*Handler).loadScheduledDayScenario,
	"holiday-headroom":  (*Handler).loadHolidayHeadroomScenario,
	"overnight-holiday": (*Handler).loadOvernightHolidayScenario,
	"no-contract":       (*Handler).loadNoContractScenario,
}

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database, loads the scenario and recomputes its
// month. The response carries the recompute report.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	report, err := h.loadScenario(r.Context(), req.ScenarioID)
	if err != nil {
		writeStoreError(w, fmt.Sprintf("Failed to load scenario %q", req.ScenarioID), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"report":   toPipelineReportDTO(report),
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) loadScenario(ctx context.Context, id string) (*attendance.PipelineReport, error) {
	var loaders []func(*Handler, context.Context) error
	if id == "all" {
		for _, s := range scenarios {
			if l, ok := scenarioLoaders[s.ID]; ok {
				loaders = append(loaders, l)
			}
		}
	} else if l, ok := scenarioLoaders[id]; ok {
		loaders = append(loaders, l)
	} else {
		return nil, &attendance.InvalidArgumentError{Field: "scenario_id", Value: id, Reason: "unknown scenario"}
	}

	if err := h.Store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	h.setCurrentScenario("")

	reg, err := h.Factory.ParseRegulation(factory.StandardWeekJSON(standardRegulationID, "Standard office week"))
	if err != nil {
		return nil, err
	}
	if err := h.Store.SaveRegulation(ctx, reg); err != nil {
		return nil, err
	}

	for _, load := range loaders {
		if err := load(h, ctx); err != nil {
			return nil, err
		}
	}

	month := attendance.MustParseMonth(scenarioMonth)
	report, err := h.Engine.Recompute(ctx, attendance.RangeRequest{Range: month.Range()})
	if err != nil {
		return report, err
	}

	h.setCurrentScenario(id)
	h.Logger.Info("scenario loaded", zap.String("scenario", id), zap.Bool("succeeded", report.Succeeded()))
	return report, nil
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadScheduledDayScenario(ctx context.Context) error {
	const emp = "emp-scheduled"
	if err := h.createScenarioEmployee(ctx, emp, "Aiko Sato", "2025-01-01"); err != nil {
		return err
	}
	return h.recordIntervals(ctx, emp, []scenarioInterval{
		{"2025-01-06", "09:00", "18:00", false, 60},
		{"2025-01-07", "09:00", "20:00", false, 60},
	})
}

func (h *Handler) loadHolidayHeadroomScenario(ctx context.Context) error {
	const emp = "emp-headroom"
	if err := h.createScenarioEmployee(ctx, emp, "Kenji Ito", "2025-01-01"); err != nil {
		return err
	}
	// 4 x 480 + 80 = 2000 scheduled minutes, then 300 on Saturday.
	return h.recordIntervals(ctx, emp, []scenarioInterval{
		{"2025-01-06", "09:00", "18:00", false, 60},
		{"2025-01-07", "09:00", "18:00", false, 60},
		{"2025-01-08", "09:00", "18:00", false, 60},
		{"2025-01-09", "09:00", "18:00", false, 60},
		{"2025-01-10", "09:00", "10:20", false, 0},
		{"2025-01-11", "09:00", "14:00", false, 0},
	})
}

func (h *Handler) loadOvernightHolidayScenario(ctx context.Context) error {
	const emp = "emp-overnight"
	if err := h.createScenarioEmployee(ctx, emp, "Yuki Tanaka", "2025-01-01"); err != nil {
		return err
	}
	return h.recordIntervals(ctx, emp, []scenarioInterval{
		{"2025-01-11", "20:00", "02:00", true, 0},
	})
}

func (h *Handler) loadNoContractScenario(ctx context.Context) error {
	const emp = "emp-no-contract"
	// Contract starts on Wednesday; Monday's work has no contract.
	if err := h.createScenarioEmployee(ctx, emp, "Hana Suzuki", "2025-01-08"); err != nil {
		return err
	}
	return h.recordIntervals(ctx, emp, []scenarioInterval{
		{"2025-01-06", "09:00", "18:00", false, 60},
		{"2025-01-08", "09:00", "18:00", false, 60},
	})
}

// =============================================================================
// HELPERS
// =============================================================================

type scenarioInterval struct {
	date, start, end string
	nextDay          bool
	breakMinutes     int
}

// createScenarioEmployee stores the employee with an open-ended contract on
// the standard regulation.
func (h *Handler) createScenarioEmployee(ctx context.Context, id, name, startDate string) error {
	if err := h.Store.SaveEmployee(ctx, sqlite.Employee{ID: id, Name: name}); err != nil {
		return fmt.Errorf("employee %s: %w", id, err)
	}

	reg, err := h.Store.GetRegulation(ctx, standardRegulationID)
	if err != nil {
		return err
	}
	if reg == nil {
		return fmt.Errorf("regulation %s: %w", standardRegulationID, attendance.ErrRecordNotFound)
	}

	contract, err := h.Factory.ContractFromJSON(factory.ContractJSON{
		ID:         "c-" + id,
		EmployeeID: id,
		StartDate:  startDate,
		Regulation: h.Factory.ToJSON(*reg),
	})
	if err != nil {
		return err
	}
	return h.Store.SaveContract(ctx, contract)
}

func (h *Handler) recordIntervals(ctx context.Context, employeeID string, intervals []scenarioInterval) error {
	for i, si := range intervals {
		iv, err := CreateWorkIntervalRequest{
			ID:           fmt.Sprintf("wi-%s-%d", employeeID, i+1),
			Date:         si.date,
			StartTime:    si.start,
			EndTime:      si.end,
			EndAtNextDay: si.nextDay,
			BreakMinutes: si.breakMinutes,
		}.toWorkInterval(employeeID)
		if err != nil {
			return err
		}
		if err := h.Store.SaveWorkInterval(ctx, iv); err != nil {
			return err
		}
	}
	return nil
}
