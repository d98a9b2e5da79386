package trace

import "github.com/roach88/clocksync/internal/engine"

// ReportValue converts a tick report to its canonical object form.
//
// Flags that are usually false (forced_start, started_this_tick, waiting)
// and an empty transition are omitted. start_clock_time is omitted when
// the start gate reads the master clock.
func ReportValue(r engine.TickReport) map[string]any {
	obj := reportBody(r)
	obj["seq"] = r.Seq
	return obj
}

// ReportsValue converts an ordered report sequence to a canonical array.
// When withSeq is false the logical sequence numbers are dropped so that
// sessions recorded with different clock offsets compare equal.
func ReportsValue(reports []engine.TickReport, withSeq bool) []any {
	out := make([]any, 0, len(reports))
	for _, r := range reports {
		if withSeq {
			out = append(out, ReportValue(r))
		} else {
			out = append(out, reportBody(r))
		}
	}
	return out
}

func reportBody(r engine.TickReport) map[string]any {
	decisions := make([]any, 0, len(r.Decisions))
	for _, d := range r.Decisions {
		decisions = append(decisions, DecisionValue(d))
	}

	obj := map[string]any{
		"master_time":    r.MasterTime,
		"started":        r.Started,
		"ready":          r.ReadyCount,
		"master_running": r.MasterRunning,
		"decisions":      decisions,
	}
	if r.StartClockTime != r.MasterTime {
		obj["start_clock_time"] = r.StartClockTime
	}
	if r.StartedThisTick {
		obj["started_this_tick"] = true
	}
	if r.ForcedStart {
		obj["forced_start"] = true
	}
	return obj
}

// DecisionValue converts one player decision to its canonical object form.
func DecisionValue(d engine.Decision) map[string]any {
	obj := map[string]any{
		"player":      d.PlayerID,
		"action":      string(d.Action),
		"delta":       d.TimeDelta,
		"running":     d.Running,
		"catching_up": d.CatchingUp,
	}
	if d.Transition != engine.TransitionNone {
		obj["transition"] = string(d.Transition)
	}
	if d.WaitingOnFrames {
		obj["waiting"] = true
	}
	return obj
}

// MarshalReports renders a report sequence, sequence numbers included, as
// canonical JSON.
func MarshalReports(reports []engine.TickReport) ([]byte, error) {
	return MarshalCanonical(ReportsValue(reports, true))
}
