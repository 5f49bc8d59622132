package executor

import "time"

// fill populates the standard variables every strategy can rely on:
// current_date and a resolved [start_date, end_date] window implied by
// time_window. Runs once, between scope and research.
func (e *Executor) fill(state *ExecutionState) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	today := now().UTC()

	state.Variables["current_date"] = today.Format("2006-01-02")
	state.Variables["end_date"] = today.Format("2006-01-02")
	state.Variables["start_date"] = windowStart(today, state.TimeWindow).Format("2006-01-02")
	state.Variables["time_window"] = state.TimeWindow
	state.Variables["category"] = state.Category
	state.Variables["depth"] = state.Depth

	if _, ok := state.Variables["topic"]; !ok && len(state.Tasks) > 0 {
		state.Variables["topic"] = state.Tasks[0]
	}
}

// windowStart derives the start of the lookback window implied by a
// time_window value, relative to today. Unrecognized values default to a
// single day, the most conservative (narrowest) window.
func windowStart(today time.Time, timeWindow string) time.Time {
	switch timeWindow {
	case "week":
		return today.AddDate(0, 0, -7)
	case "month":
		return today.AddDate(0, -1, 0)
	case "year":
		return today.AddDate(-1, 0, 0)
	default:
		return today.AddDate(0, 0, -1)
	}
}
