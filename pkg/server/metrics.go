package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the realm. It subscribes
// to the event bus globally and counts module events as they pass.
type Metrics struct {
	game      *Game
	startTime time.Time
	registry  *prometheus.Registry

	playersConnected *prometheus.GaugeVec
	adoptionsTotal   *prometheus.CounterVec
	trackedOpsTotal  *prometheus.CounterVec
	commandsTotal    prometheus.Counter
	catalogSize      prometheus.Gauge
	uptimeSeconds    prometheus.Gauge
	goroutines       prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the game and
// subscribes them to its event bus.
func NewMetrics(game *Game) *Metrics {
	m := &Metrics{
		game:      game,
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		playersConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "beastmaster_players_connected",
			Help: "Number of currently connected characters by transport.",
		}, []string{"transport"}),
		adoptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beastmaster_adoptions_total",
			Help: "Pets adopted from the Beastmaster by catalog category.",
		}, []string{"category"}),
		trackedOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beastmaster_tracked_ops_total",
			Help: "Tracked pet operations by kind.",
		}, []string{"op"}),
		commandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beastmaster_commands_processed_total",
			Help: "Total commands processed since server start.",
		}),
		catalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "beastmaster_catalog_pets",
			Help: "Pets in the adoption catalog after the last reload.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "beastmaster_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "beastmaster_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.registry.MustRegister(
		m.playersConnected,
		m.adoptionsTotal,
		m.trackedOpsTotal,
		m.commandsTotal,
		m.catalogSize,
		m.uptimeSeconds,
		m.goroutines,
	)

	if game.Module != nil {
		m.catalogSize.Set(float64(game.Module.CatalogSize()))
	}
	game.Metrics = m
	game.Bus.SubscribeGlobal(m, events.EvAdopt, events.EvSummon, events.EvRename, events.EvDelete, events.EvReload)
	return m
}

// Receive implements events.Subscriber.
func (m *Metrics) Receive(ev events.Event) {
	switch ev.Type {
	case events.EvAdopt:
		category, _ := ev.Data["category"].(string)
		if category == "" {
			category = "unknown"
		}
		m.adoptionsTotal.WithLabelValues(category).Inc()
	case events.EvSummon, events.EvRename, events.EvDelete:
		m.trackedOpsTotal.WithLabelValues(ev.Type.String()).Inc()
	case events.EvReload:
		if n, ok := ev.Data["pets"].(int); ok {
			m.catalogSize.Set(float64(n))
		}
	}
}

// Closed implements events.Subscriber.
func (m *Metrics) Closed() bool { return false }

// CommandProcessed counts one dispatched command.
func (m *Metrics) CommandProcessed() {
	m.commandsTotal.Inc()
}

// Update refreshes all gauge metrics from current game state.
func (m *Metrics) Update() {
	for transport, n := range m.game.Conns.Tally().PlayingBy {
		m.playersConnected.WithLabelValues(transport.String()).Set(float64(n))
	}
	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		h.ServeHTTP(w, r)
	})
}
