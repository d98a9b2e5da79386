package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/clocksync/internal/engine"
	"github.com/roach88/clocksync/internal/harness"
	"github.com/roach88/clocksync/internal/store"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Database string // optional - record the run as a session
}

// SimulateResult is the outcome of one scenario run.
type SimulateResult struct {
	Scenario  string          `json:"scenario"`
	Pass      bool            `json:"pass"`
	Errors    []string        `json:"errors,omitempty"`
	Digest    string          `json:"digest,omitempty"`
	Ticks     json.RawMessage `json:"ticks"`
	reports   []engine.TickReport
	sessionID string
}

// WriteText prints the pass/fail line, the trace when verbose, and any
// errors.
func (r SimulateResult) WriteText(w io.Writer, verbose bool) {
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (%d ticks)\n", mark, r.Scenario, len(r.reports))
	if verbose || !r.Pass {
		for _, rep := range r.reports {
			writeReport(w, rep)
		}
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if r.sessionID != "" {
		fmt.Fprintf(w, "Session: %s\n", r.sessionID)
		fmt.Fprintf(w, "Digest:  %s\n", r.Digest)
	}
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run one scenario and print its decision trace",
		Long: `Run a YAML scenario against the sync manager using manual clocks.

Every tick's decisions are printed with --verbose, or always when the
scenario fails. With --db the run is recorded as a session that can be
inspected with trace and verified with replay.

Exit codes:
  0 - Scenario passed
  1 - An expectation or assertion failed
  2 - Command error (scenario not found, invalid scenario, etc.)

Examples:
  clocksync simulate ./scenarios/catch_up.yaml
  clocksync simulate ./scenarios/catch_up.yaml --db ./clocksync.db
  clocksync simulate ./scenarios/catch_up.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run to this SQLite database")

	return cmd
}

func runSimulate(opts *SimulateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeScenario, "failed to load scenario", err)
	}
	formatter.VerboseLog("Loaded scenario %s (%d steps)", scenario.Name, len(scenario.Steps))

	runOpts := []harness.RunOption{
		harness.WithLogger(newLogger(opts.RootOptions, formatter.GetErrWriter())),
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer st.Close()
		runOpts = append(runOpts, harness.WithStore(st))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeScenario, "failed to run scenario", err)
	}

	ticks, err := canonicalTicks(result.Reports)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeScenario, "failed to encode trace", err)
	}

	formatter.SessionID = result.SessionID
	out := SimulateResult{
		Scenario:  scenario.Name,
		Pass:      result.Pass,
		Errors:    result.Errors,
		Digest:    result.Digest,
		Ticks:     ticks,
		reports:   result.Reports,
		sessionID: result.SessionID,
	}
	if err := formatter.Success(out); err != nil {
		return err
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}
