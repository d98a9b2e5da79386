// Package metrics exports SyncManager tick reports as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/clocksync/internal/engine"
)

const (
	namespace = "clocksync"
	subsystem = "manager"
)

// Collector is an engine.Observer that keeps gauges and counters current.
//
// Gauges describe the state after the latest tick; counters accumulate
// over the manager's lifetime.
type Collector struct {
	players    prometheus.Gauge
	ready      prometheus.Gauge
	catchingUp prometheus.Gauge
	master     prometheus.Gauge
	started    prometheus.Gauge
	maxLag     prometheus.Gauge

	ticks       prometheus.Counter
	forced      prometheus.Counter
	actions     *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

// NewCollector creates a collector and registers it with reg.
// sessionID is attached as a constant label when non-empty.
func NewCollector(reg prometheus.Registerer, sessionID string) (*Collector, error) {
	var labels prometheus.Labels
	if sessionID != "" {
		labels = prometheus.Labels{"session_id": sessionID}
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	c := &Collector{
		players:    gauge("players", "Registered player clocks."),
		ready:      gauge("ready_players", "Player clocks not waiting on frames."),
		catchingUp: gauge("catching_up_players", "Player clocks flagged as catching up."),
		master:     gauge("master_running", "1 if the master clock is running."),
		started:    gauge("started", "1 once the start gate has opened."),
		maxLag:     gauge("max_lag_ms", "Largest master minus player time in the latest tick."),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "ticks_total",
			Help:        "Ticks evaluated.",
			ConstLabels: labels,
		}),
		forced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "forced_starts_total",
			Help:        "Starts forced by the maximum start delay.",
			ConstLabels: labels,
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "player_actions_total",
			Help:        "Per-player decisions by action.",
			ConstLabels: labels,
		}, []string{"action"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "catchup_transitions_total",
			Help:        "Catch-up flag changes by direction.",
			ConstLabels: labels,
		}, []string{"direction"}),
	}

	for _, col := range []prometheus.Collector{
		c.players, c.ready, c.catchingUp, c.master, c.started, c.maxLag,
		c.ticks, c.forced, c.actions, c.transitions,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveTick implements engine.Observer.
func (c *Collector) ObserveTick(r engine.TickReport) {
	c.ticks.Inc()
	if r.ForcedStart {
		c.forced.Inc()
	}

	c.players.Set(float64(len(r.Decisions)))
	c.ready.Set(float64(r.ReadyCount))
	c.catchingUp.Set(float64(r.CatchingUpCount()))
	c.master.Set(boolToFloat(r.MasterRunning))
	c.started.Set(boolToFloat(r.Started))

	maxLag := 0.0
	for _, d := range r.Decisions {
		c.actions.WithLabelValues(string(d.Action)).Inc()
		if d.Transition != engine.TransitionNone {
			c.transitions.WithLabelValues(string(d.Transition)).Inc()
		}
		if d.TimeDelta > maxLag {
			maxLag = d.TimeDelta
		}
	}
	c.maxLag.Set(maxLag)
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
