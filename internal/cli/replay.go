package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/clocksync/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	SessionID      string   `json:"session_id"`
	Name           string   `json:"name"`
	Ticks          int      `json:"ticks"`
	RecordedDigest string   `json:"recorded_digest"`
	ReplayedDigest string   `json:"replayed_digest"`
	DigestMatch    bool     `json:"digest_match"`
	Deterministic  bool     `json:"deterministic"`
	Mismatches     []string `json:"mismatches,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// WriteText prints one line per session, mismatches indented below it.
func (r ReplayResult) WriteText(w io.Writer, verbose bool) {
	if r.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return
	}
	for _, s := range r.Sessions {
		mark := "✓"
		if !s.Deterministic {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (%s) %d ticks\n", mark, s.SessionID, s.Name, s.Ticks)
		if verbose {
			fmt.Fprintf(w, "  recorded digest: %s\n", s.RecordedDigest)
			fmt.Fprintf(w, "  replayed digest: %s\n", s.ReplayedDigest)
		}
		for _, m := range s.Mismatches {
			fmt.Fprintf(w, "  %s\n", m)
		}
	}
	if r.AllDeterministic {
		fmt.Fprintf(w, "\nAll %d session(s) replayed deterministically.\n", r.TotalSessions)
	} else {
		fmt.Fprintln(w, "\nDeterminism verification FAILED.")
	}
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded sessions and verify determinism",
		Long: `Replay recorded sessions through a fresh sync manager and verify that
every decision reproduces.

The recorded clock observations (master time, frame availability, player
times) are fed back tick by tick and each replayed decision is compared
with the recorded one.

Exit codes:
  0 - All sessions are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  clocksync replay --db ./clocksync.db
  clocksync replay --db ./clocksync.db --session 0190a5c4-...
  clocksync replay --db ./clocksync.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	var sessions []store.Session
	if opts.Session != "" {
		session, err := st.ReadSession(ctx, opts.Session)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeSession, "failed to read session", err)
		}
		sessions = []store.Session{session}
	} else {
		sessions, err = st.ListSessions(ctx)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, "failed to list sessions", err)
		}
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions:    len(sessions),
		AllDeterministic: true,
	}

	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())
	for _, session := range sessions {
		formatter.VerboseLog("Replaying session %s", session.ID)

		replay, err := st.ReplaySession(ctx, session.ID, logger)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeSession, fmt.Sprintf("failed to replay session %s", session.ID), err)
		}

		sr := ReplaySessionResult{
			SessionID:      session.ID,
			Name:           session.Name,
			Ticks:          replay.Ticks,
			RecordedDigest: replay.RecordedDigest,
			ReplayedDigest: replay.ReplayedDigest,
			DigestMatch:    replay.RecordedDigest == replay.ReplayedDigest,
			Deterministic:  replay.Deterministic(),
		}
		for _, m := range replay.Mismatches {
			sr.Mismatches = append(sr.Mismatches, m.String())
		}

		result.Sessions = append(result.Sessions, sr)
		if !sr.Deterministic {
			result.AllDeterministic = false
		}
	}

	if err := formatter.Success(result); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}
