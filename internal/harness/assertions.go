package harness

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/clocksync/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes the decision trace to help debug the failure.
type AssertionError struct {
	Type     string              // Assertion type for categorization
	Expected string              // Human-readable expected outcome
	Actual   string              // Human-readable actual outcome
	Reports  []engine.TickReport // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Reports) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, r := range e.Reports {
			fmt.Fprintf(&buf, "  [%d] master=%v started=%v", i+1, r.MasterTime, r.Started)
			for _, d := range r.Decisions {
				fmt.Fprintf(&buf, " %s:%s", d.PlayerID, d.Action)
				if d.Transition != engine.TransitionNone {
					fmt.Fprintf(&buf, "(%s)", d.Transition)
				}
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// matchDecision reports whether d satisfies the assertion's filters.
func matchDecision(d engine.Decision, a Assertion) bool {
	if a.Player != "" && d.PlayerID != a.Player {
		return false
	}
	if a.Action != "" && string(d.Action) != a.Action {
		return false
	}
	if a.Transition != "" && !transitionMatches(d.Transition, a.Transition) {
		return false
	}
	return true
}

func describeFilter(a Assertion) string {
	parts := []string{}
	if a.Player != "" {
		parts = append(parts, "player "+a.Player)
	}
	if a.Action != "" {
		parts = append(parts, "action "+a.Action)
	}
	if a.Transition != "" {
		parts = append(parts, "transition "+a.Transition)
	}
	if len(parts) == 0 {
		return "any decision"
	}
	return strings.Join(parts, ", ")
}

// assertDecisionContains checks that some tick, or tick a.Tick when set,
// has a decision matching the filters.
func assertDecisionContains(reports []engine.TickReport, a Assertion) error {
	for i, r := range reports {
		if a.Tick != 0 && i+1 != a.Tick {
			continue
		}
		for _, d := range r.Decisions {
			if matchDecision(d, a) {
				return nil
			}
		}
	}

	where := "in trace"
	if a.Tick != 0 {
		where = fmt.Sprintf("at tick %d", a.Tick)
	}
	return &AssertionError{
		Type:     AssertDecisionContains,
		Expected: fmt.Sprintf("%s %s", describeFilter(a), where),
		Actual:   "not found",
		Reports:  reports,
	}
}

// assertDecisionCount checks the exact number of matching decisions.
func assertDecisionCount(reports []engine.TickReport, a Assertion) error {
	count := 0
	for _, r := range reports {
		for _, d := range r.Decisions {
			if matchDecision(d, a) {
				count++
			}
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertDecisionCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describeFilter(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Reports:  reports,
		}
	}
	return nil
}

// assertDecisionOrder checks that the player's decisions contain each entry
// of a.Sequence, as an action or a transition, in order. Intervening
// decisions are allowed; each entry must occur on a later tick than the
// previous one.
func assertDecisionOrder(reports []engine.TickReport, a Assertion) error {
	next := 0
	lastTick := 0
	for i, r := range reports {
		if next == len(a.Sequence) {
			break
		}
		d, ok := r.Decision(a.Player)
		if !ok {
			continue
		}
		want := a.Sequence[next]
		if string(d.Action) == want || string(d.Transition) == want {
			next++
			lastTick = i + 1
		}
	}

	if next < len(a.Sequence) {
		actual := fmt.Sprintf("missing %q", a.Sequence[next])
		if next > 0 {
			actual += fmt.Sprintf(" after %q (tick %d)", a.Sequence[next-1], lastTick)
		}
		return &AssertionError{
			Type:     AssertDecisionOrder,
			Expected: fmt.Sprintf("player %s sequence %v", a.Player, a.Sequence),
			Actual:   actual,
			Reports:  reports,
		}
	}
	return nil
}

// assertStartedAt checks on which tick the gate opened. Tick 0 requires
// that playback never started.
func assertStartedAt(reports []engine.TickReport, a Assertion) error {
	startedAt := 0
	forced := false
	for i, r := range reports {
		if r.StartedThisTick {
			startedAt = i + 1
			forced = r.ForcedStart
			break
		}
	}

	if startedAt != a.Tick {
		expected := fmt.Sprintf("start at tick %d", a.Tick)
		if a.Tick == 0 {
			expected = "no start"
		}
		actual := fmt.Sprintf("started at tick %d", startedAt)
		if startedAt == 0 {
			actual = "never started"
		}
		return &AssertionError{Type: AssertStartedAt, Expected: expected, Actual: actual, Reports: reports}
	}
	if a.Forced != nil && startedAt != 0 && forced != *a.Forced {
		return &AssertionError{
			Type:     AssertStartedAt,
			Expected: fmt.Sprintf("forced = %v", *a.Forced),
			Actual:   fmt.Sprintf("forced = %v", forced),
			Reports:  reports,
		}
	}
	return nil
}

// assertFinalState checks the captured clock state using subset semantics.
func assertFinalState(final FinalState, a Assertion) error {
	var mismatches []string
	if a.Started != nil && final.Started != *a.Started {
		mismatches = append(mismatches, fmt.Sprintf("started = %v, expected %v", final.Started, *a.Started))
	}
	if a.MasterRunning != nil && final.MasterRunning != *a.MasterRunning {
		mismatches = append(mismatches, fmt.Sprintf("master_running = %v, expected %v", final.MasterRunning, *a.MasterRunning))
	}
	if a.MasterTime != nil && math.Abs(final.MasterTime-*a.MasterTime) > 1e-9 {
		mismatches = append(mismatches, fmt.Sprintf("master_time = %v, expected %v", final.MasterTime, *a.MasterTime))
	}
	for _, id := range mapKeys(a.Players) {
		want := a.Players[id]
		got := final.Players[id]
		if want.Time != nil && math.Abs(got.Time-*want.Time) > 1e-9 {
			mismatches = append(mismatches, fmt.Sprintf("%s.time = %v, expected %v", id, got.Time, *want.Time))
		}
		if want.Waiting != nil && got.Waiting != *want.Waiting {
			mismatches = append(mismatches, fmt.Sprintf("%s.waiting = %v, expected %v", id, got.Waiting, *want.Waiting))
		}
		if want.Running != nil && got.Running != *want.Running {
			mismatches = append(mismatches, fmt.Sprintf("%s.running = %v, expected %v", id, got.Running, *want.Running))
		}
		if want.CatchingUp != nil && got.CatchingUp != *want.CatchingUp {
			mismatches = append(mismatches, fmt.Sprintf("%s.catching_up = %v, expected %v", id, got.CatchingUp, *want.CatchingUp))
		}
	}

	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "final state to match",
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertDecisionContains:
			err = assertDecisionContains(result.Reports, a)
		case AssertDecisionCount:
			err = assertDecisionCount(result.Reports, a)
		case AssertDecisionOrder:
			err = assertDecisionOrder(result.Reports, a)
		case AssertStartedAt:
			err = assertStartedAt(result.Reports, a)
		case AssertFinalState:
			err = assertFinalState(result.Final, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	return errors
}
