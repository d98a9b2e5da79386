package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/clocksync/internal/clock"
	"github.com/roach88/clocksync/internal/config"
	"github.com/roach88/clocksync/internal/driver"
	"github.com/roach88/clocksync/internal/engine"
	"github.com/roach88/clocksync/internal/metrics"
	"github.com/roach88/clocksync/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config      string
	Database    string
	Players     int
	Duration    time.Duration
	Seed        uint64
	MetricsAddr string

	// Clock allows overriding the wall clock (for testing).
	// If nil, defaults to clockwork.NewRealClock().
	Clock clockwork.Clock

	// SessionGenerator allows overriding the session ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionGenerator store.SessionIDGenerator
}

// RunSummary describes the state of a live run when it stops.
type RunSummary struct {
	SessionID   string          `json:"session_id,omitempty"`
	Digest      string          `json:"digest,omitempty"`
	Ticks       int64           `json:"ticks"`
	Started     bool            `json:"started"`
	ForcedStart bool            `json:"forced_start"`
	MasterTime  float64         `json:"master_time"`
	Players     []PlayerSummary `json:"players"`
}

// PlayerSummary is one player clock's final state.
type PlayerSummary struct {
	ID         string  `json:"id"`
	Time       float64 `json:"time"`
	Running    bool    `json:"running"`
	CatchingUp bool    `json:"catching_up"`
	Waiting    bool    `json:"waiting"`
}

// WriteText prints the summary as a short table.
func (s RunSummary) WriteText(w io.Writer, _ bool) {
	fmt.Fprintf(w, "Ticks: %d  started: %t  forced: %t  master: %.3f\n", s.Ticks, s.Started, s.ForcedStart, s.MasterTime)
	for _, p := range s.Players {
		fmt.Fprintf(w, "  %-12s time=%.3f running=%t catching_up=%t waiting=%t\n",
			p.ID, p.Time, p.Running, p.CatchingUp, p.Waiting)
	}
	if s.SessionID != "" {
		fmt.Fprintf(w, "Session: %s\n", s.SessionID)
		fmt.Fprintf(w, "Digest:  %s\n", s.Digest)
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive a live sync manager against synthetic streams",
		Long: `Run the sync manager in real time.

A wall-clock master and N player streams are driven at the configured
tick interval. Each stream's frame availability comes from a seeded
synthetic feed that buffers at start and stalls at random. With --db the
run is recorded as a session; with --metrics-addr Prometheus metrics are
served at /metrics.

The run stops after --duration, or on Ctrl-C when no duration is given.

Examples:
  clocksync run --players 4 --duration 30s
  clocksync run --config ./clocksync.cue --db ./clocksync.db --seed 7
  clocksync run --metrics-addr :9090 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to CUE configuration file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run to this SQLite database")
	cmd.Flags().IntVar(&opts.Players, "players", 2, "number of player streams")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "synthetic feed seed")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runLive(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())

	if opts.Players < 1 {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "--players must be at least 1", nil)
	}

	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err)
		}
		cfg = loaded
	}

	wall := opts.Clock
	if wall == nil {
		wall = clockwork.NewRealClock()
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	// Recording
	var recorder *store.Recorder
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		// Recording outlives the run context so the final tick is kept.
		recorder, err = store.NewRecorder(parentCtx, st, store.Session{
			Name:       "run",
			Thresholds: cfg.Thresholds(),
		}, opts.SessionGenerator)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, "failed to create session", err)
		}
		formatter.SessionID = recorder.SessionID()
		logger.Info("recording session", "session_id", recorder.SessionID(), "db", opts.Database)
	}

	// Metrics
	var sessionID string
	if recorder != nil {
		sessionID = recorder.SessionID()
	}
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg, sessionID)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeRun, "failed to register metrics", err)
	}
	if opts.MetricsAddr != "" {
		_, shutdown, err := serveMetrics(opts.MetricsAddr, reg, logger)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeRun, "failed to start metrics server", err)
		}
		defer shutdown()
	}

	// Manager
	var last engine.TickReport
	var ticks int64
	var forced bool
	summary := engine.ObserverFunc(func(r engine.TickReport) {
		last = r
		ticks++
		forced = forced || r.ForcedStart
	})

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithObserver(collector),
		engine.WithObserver(summary),
	}
	if recorder != nil {
		engineOpts = append(engineOpts, engine.WithObserver(recorder))
	}
	mgr, err := newLiveManager(cfg, wall, engineOpts...)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "failed to create sync manager", err)
	}

	feed := driver.NewSyntheticFeed(opts.Seed)
	drv := driver.New(mgr,
		driver.WithClock(wall),
		driver.WithInterval(cfg.TickInterval()),
		driver.WithBeforeTick(feed.Hook()),
		driver.WithLogger(logger),
	)
	for i := range opts.Players {
		s := clock.NewStream(fmt.Sprintf("player-%d", i+1), cfg.StreamOptions()...)
		feed.Add(s)
		drv.AddStream(s)
	}

	if opts.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, opts.Duration)
		defer stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("run starting",
		"players", opts.Players,
		"interval", cfg.TickInterval(),
		"seed", opts.Seed,
	)
	if err := drv.Run(ctx); err != nil {
		return formatter.fail(ExitFailure, ErrCodeRun, "driver error", err)
	}

	result := RunSummary{
		Ticks:       ticks,
		Started:     mgr.HasStarted(),
		ForcedStart: forced,
		MasterTime:  last.MasterTime,
		Players:     summarizePlayers(drv.Streams()),
	}

	if recorder != nil {
		// The run context is done; finish on a fresh one.
		session, err := recorder.Finish(context.Background())
		if err != nil {
			return formatter.fail(ExitFailure, ErrCodeStore, "failed to finish recording", err)
		}
		result.SessionID = session.ID
		result.Digest = session.Digest
	}

	logger.Info("run stopped", "ticks", ticks, "started", result.Started)
	return formatter.Success(result)
}

// newLiveManager builds a manager on a wall-clock master. Unless the
// configuration pins start_clock to "master", the start delay runs on wall
// so a forced start can fire while the master is still stopped.
func newLiveManager(cfg config.Config, wall clockwork.Clock, opts ...engine.Option) (*engine.SyncManager, error) {
	master := clock.NewWall(wall)
	return engine.New(master, append(cfg.EngineOptions(wall), opts...)...)
}

func summarizePlayers(streams []*clock.Stream) []PlayerSummary {
	out := make([]PlayerSummary, 0, len(streams))
	for _, s := range streams {
		out = append(out, PlayerSummary{
			ID:         s.ID(),
			Time:       s.CurrentTime(),
			Running:    s.IsRunning(),
			CatchingUp: s.IsCatchingUp(),
			Waiting:    s.WaitingOnFrames(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// serveMetrics starts an HTTP server exposing reg at /metrics. It returns
// the bound address and a function that shuts the server down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
