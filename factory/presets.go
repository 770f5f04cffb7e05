package factory

import (
	"encoding/json"
)

// Preset regulations. They build JSON rather than structs so the same
// strings can be stored, shown in the admin UI or posted to the API.

// StandardWeekJSON: Mon-Fri 09:00-18:00 with a one hour break, Sunday legal
// holiday, Saturday non-statutory.
func StandardWeekJSON(id, name string) string {
	return presetJSON(RegulationJSON{
		ID:                id,
		Name:              name,
		ScheduledWorkDays: []string{"mon", "tue", "wed", "thu", "fri"},
		LegalHoliday:      "sun",
		StartTime:         "09:00",
		EndTime:           "18:00",
		BreakMinutes:      60,
	})
}

// LateShiftJSON: Tue-Sat 14:00-23:00 with a one hour break, Monday legal
// holiday. Used for shifts that run into the night window.
func LateShiftJSON(id, name string) string {
	return presetJSON(RegulationJSON{
		ID:                id,
		Name:              name,
		ScheduledWorkDays: []string{"tue", "wed", "thu", "fri", "sat"},
		LegalHoliday:      "mon",
		StartTime:         "14:00",
		EndTime:           "23:00",
		BreakMinutes:      60,
	})
}

// PartTimeJSON: Mon, Wed, Fri 10:00-15:00, no break (300 minutes), Sunday
// legal holiday.
func PartTimeJSON(id, name string) string {
	return presetJSON(RegulationJSON{
		ID:                id,
		Name:              name,
		ScheduledWorkDays: []string{"mon", "wed", "fri"},
		LegalHoliday:      "sun",
		StartTime:         "10:00",
		EndTime:           "15:00",
	})
}

func presetJSON(rj RegulationJSON) string {
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}
