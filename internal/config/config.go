package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/jonboulle/clockwork"

	"github.com/roach88/clocksync/internal/clock"
	"github.com/roach88/clocksync/internal/engine"
)

//go:embed schema.cue
var schemaCUE string

// Start clock choices.
const (
	StartClockAuto   = "auto"
	StartClockMaster = "master"
	StartClockWall   = "wall"
)

// Error codes for LoadError.
const (
	ErrCodeNotFound = "CONFIG_NOT_FOUND"
	ErrCodeSyntax   = "CONFIG_SYNTAX"
	ErrCodeInvalid  = "CONFIG_INVALID"
)

// Config is a validated clocksync configuration.
type Config struct {
	SyncTargetMs        float64 `json:"sync_target_ms"`
	MaxSyncOffsetMs     float64 `json:"max_sync_offset_ms"`
	MaximumStartDelayMs float64 `json:"maximum_start_delay_ms"`
	TickIntervalMs      int     `json:"tick_interval_ms"`
	CatchUpRate         float64 `json:"catch_up_rate"`
	StartClock          string  `json:"start_clock"`
}

// LoadError represents an error that occurred while loading a config file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError reports whether err wraps a LoadError with the given code.
func IsLoadError(err error, code string) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Code == code
}

// Default returns the configuration an empty file produces.
func Default() Config {
	cfg, err := Parse("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

// Load reads and validates a CUE configuration file.
func Load(path string) (Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading config: %v", err)}
	}
	return Parse(path, src)
}

// Parse validates CUE source against #Config. name is used in error
// positions.
func Parse(name string, src []byte) (Config, error) {
	cctx := cuecontext.New()

	schema := cctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compiling schema: %w", err)
	}

	value := cctx.CompileBytes(src, cue.Filename(name))
	if err := value.Err(); err != nil {
		return Config{}, newLoadError(ErrCodeSyntax, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, newLoadError(ErrCodeInvalid, err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, newLoadError(ErrCodeInvalid, err)
	}

	if err := cfg.Thresholds().Validate(); err != nil {
		return Config{}, &LoadError{Code: ErrCodeInvalid, Message: err.Error()}
	}

	return cfg, nil
}

func newLoadError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: cueerrors.Details(err, nil)}
	for _, pos := range cueerrors.Positions(err) {
		if pos.IsValid() && pos.Filename() != "schema.cue" {
			le.Pos = pos
			break
		}
	}
	return le
}

// Thresholds returns the engine thresholds.
func (c Config) Thresholds() engine.Thresholds {
	return engine.Thresholds{
		SyncTarget:        c.SyncTargetMs,
		MaxSyncOffset:     c.MaxSyncOffsetMs,
		MaximumStartDelay: c.MaximumStartDelayMs,
	}
}

// TickInterval returns the driver frame interval.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// EngineOptions converts the configuration to SyncManager options.
//
// wall is the host's wall clock, nil for hosts without one. The start delay
// is measured on wall for start_clock "wall" (a real clock when wall is nil)
// and for "auto" when wall is set. A stopped wall master reads a frozen time
// until the gate opens, so measuring on it could never force a start.
func (c Config) EngineOptions(wall clockwork.Clock) []engine.Option {
	opts := []engine.Option{engine.WithThresholds(c.Thresholds())}
	switch {
	case c.StartClock == StartClockWall,
		c.StartClock == StartClockAuto && wall != nil:
		opts = append(opts, engine.WithStartTimeSource(clock.NewWallTimeSource(wall)))
	}
	return opts
}

// StreamOptions returns the options for player clocks built from this
// configuration.
func (c Config) StreamOptions() []clock.StreamOption {
	return []clock.StreamOption{clock.WithCatchUpRate(c.CatchUpRate)}
}
