package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/clocksync/internal/engine"
	"github.com/roach88/clocksync/internal/store"
	"github.com/roach88/clocksync/internal/trace"
)

// SessionInfo is the JSON view of a recorded session.
type SessionInfo struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	SyncTarget        float64 `json:"sync_target_ms"`
	MaxSyncOffset     float64 `json:"max_sync_offset_ms"`
	MaximumStartDelay float64 `json:"maximum_start_delay_ms"`
	TickCount         int64   `json:"tick_count"`
	Digest            string  `json:"digest"`
}

func newSessionInfo(s store.Session) SessionInfo {
	return SessionInfo{
		ID:                s.ID,
		Name:              s.Name,
		SyncTarget:        s.Thresholds.SyncTarget,
		MaxSyncOffset:     s.Thresholds.MaxSyncOffset,
		MaximumStartDelay: s.Thresholds.MaximumStartDelay,
		TickCount:         s.TickCount,
		Digest:            s.Digest,
	}
}

// canonicalTicks renders reports in the trace package's canonical layout
// so that JSON output is byte-stable across runs.
func canonicalTicks(reports []engine.TickReport) (json.RawMessage, error) {
	data, err := trace.MarshalReports(reports)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// writeReport prints one tick report as a header line followed by one line
// per decision.
func writeReport(w io.Writer, r engine.TickReport) {
	var flags string
	if r.StartedThisTick {
		flags += " start"
	}
	if r.ForcedStart {
		flags += " forced"
	}
	fmt.Fprintf(w, "#%d master=%.3f started=%t ready=%d/%d master_running=%t%s\n",
		r.Seq, r.MasterTime, r.Started, r.ReadyCount, len(r.Decisions), r.MasterRunning, flags)
	for _, d := range r.Decisions {
		writeDecision(w, "  ", d)
	}
}

func writeDecision(w io.Writer, indent string, d engine.Decision) {
	var extra string
	if d.Transition != engine.TransitionNone {
		extra = " catch-up " + string(d.Transition)
	}
	if d.WaitingOnFrames {
		extra += " waiting"
	}
	fmt.Fprintf(w, "%s%-12s %-11s delta=%+.3f running=%t catching_up=%t%s\n",
		indent, d.PlayerID, d.Action, d.TimeDelta, d.Running, d.CatchingUp, extra)
}
