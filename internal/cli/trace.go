package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/clocksync/internal/engine"
	"github.com/roach88/clocksync/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // optional - defaults to the latest session
	Player   string // optional - show one player's decisions only
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session SessionInfo     `json:"session"`
	Ticks   json.RawMessage `json:"ticks,omitempty"`

	Player    string            `json:"player,omitempty"`
	Decisions []engine.Decision `json:"decisions,omitempty"`

	reports []engine.TickReport
}

// WriteText prints the session header followed by the tick timeline, or the
// per-player decision list.
func (r TraceResult) WriteText(w io.Writer, _ bool) {
	s := r.Session
	fmt.Fprintf(w, "Session %s (%s)\n", s.ID, s.Name)
	fmt.Fprintf(w, "  thresholds: sync_target=%g max_sync_offset=%g maximum_start_delay=%g\n",
		s.SyncTarget, s.MaxSyncOffset, s.MaximumStartDelay)
	fmt.Fprintf(w, "  ticks: %d  digest: %s\n\n", s.TickCount, s.Digest)

	if r.Player != "" {
		fmt.Fprintf(w, "Decisions for %s: %d\n", r.Player, len(r.Decisions))
		for _, d := range r.Decisions {
			writeDecision(w, "  ", d)
		}
		return
	}
	for _, rep := range r.reports {
		writeReport(w, rep)
	}
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded decisions of a session",
		Long: `Print the tick-by-tick decision trace of a recorded session.

Each tick shows the master time, the start gate state and one line per
player: the action taken, the offset from the master and the catch-up
flag. JSON output uses the canonical trace encoding.

Examples:
  clocksync trace --db ./clocksync.db
  clocksync trace --db ./clocksync.db --session 0190a5c4-...
  clocksync trace --db ./clocksync.db --player p2
  clocksync trace --db ./clocksync.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (default: latest)")
	cmd.Flags().StringVar(&opts.Player, "player", "", "show decisions for one player only")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	session, err := resolveSession(ctx, st, opts.Session)
	if errors.Is(err, store.ErrSessionNotFound) && opts.Session == "" {
		return formatter.Success("No sessions found in database.")
	}
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeSession, "failed to read session", err)
	}
	formatter.SessionID = session.ID

	result := TraceResult{Session: newSessionInfo(session)}

	if opts.Player != "" {
		decisions, err := st.ReadPlayerDecisions(ctx, session.ID, opts.Player)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, "failed to read decisions", err)
		}
		result.Player = opts.Player
		result.Decisions = decisions
		return formatter.Success(result)
	}

	reports, err := st.ReadTicks(ctx, session.ID)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to read ticks", err)
	}
	result.reports = reports
	result.Ticks, err = canonicalTicks(reports)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to encode trace", err)
	}
	return formatter.Success(result)
}

// resolveSession reads the named session, or the latest one when id is
// empty.
func resolveSession(ctx context.Context, st *store.Store, id string) (store.Session, error) {
	if id == "" {
		return st.LatestSession(ctx)
	}
	return st.ReadSession(ctx, id)
}
