package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sides label message counters.
const (
	SideServer = "server"
	SideClient = "client"
)

// Collector bundles the Prometheus metrics of both ends of the game protocol.
// Its ServerObserver and ClientObserver views plug into the server world and
// the client session.
type Collector struct {
	gatherer prometheus.Gatherer

	MessagesReceived *prometheus.CounterVec
	MessagesSent     *prometheus.CounterVec
	Desyncs          *prometheus.CounterVec
	SessionsClosed   *prometheus.CounterVec

	SessionsOpened prometheus.Counter
	Sessions       prometheus.Gauge
	Circuits       prometheus.Gauge
	QueueDepth     prometheus.Gauge

	TickDuration prometheus.Histogram
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	received, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ore_messages_received_total",
		Help: "Protocol messages received, labeled by side and message kind.",
	}, []string{"side", "kind"}), "ore_messages_received_total")
	if err != nil {
		return nil, err
	}
	sent, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ore_messages_sent_total",
		Help: "Protocol messages sent, labeled by side and message kind.",
	}, []string{"side", "kind"}), "ore_messages_sent_total")
	if err != nil {
		return nil, err
	}
	desyncs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ore_client_desyncs_total",
		Help: "Identity desyncs detected by the client, labeled by operation.",
	}, []string{"op"}), "ore_client_desyncs_total")
	if err != nil {
		return nil, err
	}
	closed, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ore_sessions_closed_total",
		Help: "Server sessions closed, labeled by disconnect reason.",
	}, []string{"reason"}), "ore_sessions_closed_total")
	if err != nil {
		return nil, err
	}

	opened, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ore_sessions_opened_total",
		Help: "Server sessions that completed the handshake.",
	}), "ore_sessions_opened_total")
	if err != nil {
		return nil, err
	}
	sessions, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ore_sessions",
		Help: "Current number of server sessions.",
	}), "ore_sessions")
	if err != nil {
		return nil, err
	}
	circuits, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ore_circuits",
		Help: "Current number of power circuits.",
	}), "ore_circuits")
	if err != nil {
		return nil, err
	}
	depth, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ore_inbound_queue_depth",
		Help: "Inbound queue depth at the end of the last server tick.",
	}), "ore_inbound_queue_depth")
	if err != nil {
		return nil, err
	}

	tick := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ore_tick_duration_seconds",
		Help:    "Server tick duration in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	})
	if err := reg.Register(tick); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(prometheus.Histogram)
		if !ok {
			return nil, fmt.Errorf("collector ore_tick_duration_seconds already registered with incompatible type")
		}
		tick = existing
	}

	return &Collector{
		gatherer:         gatherer,
		MessagesReceived: received,
		MessagesSent:     sent,
		Desyncs:          desyncs,
		SessionsClosed:   closed,
		SessionsOpened:   opened,
		Sessions:         sessions,
		Circuits:         circuits,
		QueueDepth:       depth,
		TickDuration:     tick,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) ServerObserver() *ServerObserver { return &ServerObserver{c: c} }
func (c *Collector) ClientObserver() *ClientObserver { return &ClientObserver{c: c} }

// ServerObserver feeds the world loop's signals into the collector.
type ServerObserver struct{ c *Collector }

func (o *ServerObserver) Received(kind string) {
	o.c.MessagesReceived.WithLabelValues(SideServer, kind).Inc()
}

func (o *ServerObserver) Sent(kind string) {
	o.c.MessagesSent.WithLabelValues(SideServer, kind).Inc()
}

func (o *ServerObserver) SessionOpened() { o.c.SessionsOpened.Inc() }

func (o *ServerObserver) SessionClosed(reason string) {
	o.c.SessionsClosed.WithLabelValues(reason).Inc()
}

func (o *ServerObserver) Tick(d time.Duration, sessions, circuits, queueDepth int) {
	o.c.TickDuration.Observe(d.Seconds())
	o.c.Sessions.Set(float64(sessions))
	o.c.Circuits.Set(float64(circuits))
	o.c.QueueDepth.Set(float64(queueDepth))
}

type ClientObserver struct{ c *Collector }

func (o *ClientObserver) Received(kind string) {
	o.c.MessagesReceived.WithLabelValues(SideClient, kind).Inc()
}

func (o *ClientObserver) Sent(kind string) {
	o.c.MessagesSent.WithLabelValues(SideClient, kind).Inc()
}

func (o *ClientObserver) Desync(op string) { o.c.Desyncs.WithLabelValues(op).Inc() }

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
