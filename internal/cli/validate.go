package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/clocksync/internal/config"
)

// ValidateResult is the effective configuration of a valid file.
type ValidateResult struct {
	Path   string        `json:"path"`
	Config config.Config `json:"config"`
}

// WriteText prints the effective settings one per line.
func (r ValidateResult) WriteText(w io.Writer, _ bool) {
	fmt.Fprintf(w, "✓ %s is valid\n", r.Path)
	fmt.Fprintf(w, "  sync_target_ms:         %g\n", r.Config.SyncTargetMs)
	fmt.Fprintf(w, "  max_sync_offset_ms:     %g\n", r.Config.MaxSyncOffsetMs)
	fmt.Fprintf(w, "  maximum_start_delay_ms: %g\n", r.Config.MaximumStartDelayMs)
	fmt.Fprintf(w, "  tick_interval_ms:       %d\n", r.Config.TickIntervalMs)
	fmt.Fprintf(w, "  catch_up_rate:          %g\n", r.Config.CatchUpRate)
	fmt.Fprintf(w, "  start_clock:            %s\n", r.Config.StartClock)
}

// ValidateErrorDetails locates a configuration error.
type ValidateErrorDetails struct {
	Code   string `json:"code"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Validate a clocksync configuration file",
		Long: `Validate a CUE configuration file against the clocksync schema and
print the effective settings, defaults included.

Exit codes:
  0 - Configuration is valid
  1 - Configuration has syntax or constraint errors
  2 - File could not be read

Examples:
  clocksync validate ./clocksync.cue
  clocksync validate ./clocksync.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	formatter.VerboseLog("Loading %s", path)

	cfg, err := config.Load(path)
	if err != nil {
		var le *config.LoadError
		if !errors.As(err, &le) {
			return formatter.fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err)
		}

		details := ValidateErrorDetails{Code: le.Code}
		if le.Pos.IsValid() {
			details.File = le.Pos.Filename()
			details.Line = le.Pos.Line()
			details.Column = le.Pos.Column()
		}
		if outErr := formatter.Error(ErrCodeConfig, le.Error(), details); outErr != nil {
			return outErr
		}

		exitCode := ExitFailure
		if le.Code == config.ErrCodeNotFound {
			exitCode = ExitCommandError
		}
		return WrapExitError(exitCode, "invalid configuration", err)
	}

	return formatter.Success(ValidateResult{Path: path, Config: cfg})
}
