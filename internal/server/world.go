// Package server is the authoritative world: it owns every session, the
// entity store, the terrain and the circuit graph, and mutates them only from
// the tick goroutine.
package server

import (
	"context"
	"log"
	"time"

	"oreinfinium.net/internal/config"
	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/catalogs"
	"oreinfinium.net/internal/sim/entity"
	"oreinfinium.net/internal/sim/power"
	"oreinfinium.net/internal/sim/terrain"
	"oreinfinium.net/internal/transport/queue"
)

type World struct {
	cfg  config.Config
	cats *catalogs.Catalogs
	log  *log.Logger

	inbound queue.Queue[Inbound]

	tick uint64

	store   *entity.Store
	netOf   map[entity.ID]protocol.NetworkID
	byNet   map[protocol.NetworkID]entity.ID
	nextNet protocol.NetworkID

	grid       *terrain.Grid
	power      *power.Engine
	lastStatus map[protocol.NetworkID]power.Status

	sessions    map[uint64]*session
	nextSession uint64
	dropping    []*session

	obs   Observer
	trace TraceLogger
	index SessionIndex

	// Per-tick trace accumulators.
	received map[string]int
	joins    []uint64
	leaves   []uint64
	kicks    []KickTrace
	updated  int
}

func New(cfg config.Config, cats *catalogs.Catalogs, logger *log.Logger) *World {
	if logger == nil {
		logger = log.New(log.Writer(), "[world] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &World{
		cfg:        cfg,
		cats:       cats,
		log:        logger,
		store:      entity.NewStore(),
		netOf:      map[entity.ID]protocol.NetworkID{},
		byNet:      map[protocol.NetworkID]entity.ID{},
		grid:       terrain.NewFlat(cfg.World.Width, cfg.World.Height, cfg.World.SeaLevel),
		power:      power.NewEngine(cfg.Power.WireThickness),
		lastStatus: map[protocol.NetworkID]power.Status{},
		sessions:   map[uint64]*session{},
		received:   map[string]int{},
	}
}

func (w *World) SetObserver(o Observer)         { w.obs = o }
func (w *World) SetTraceLogger(l TraceLogger)   { w.trace = l }
func (w *World) SetSessionIndex(i SessionIndex) { w.index = i }

func (w *World) OutboundQueue() int { return w.cfg.Network.OutboundQueue }

func (w *World) HandshakeTimeout() time.Duration { return w.cfg.Network.HandshakeTimeout() }

// Join, Submit and Leave are safe to call from transport goroutines.

func (w *World) Join(req JoinRequest) { w.inbound.Push(Inbound{Join: &req}) }

func (w *World) Submit(sessionID uint64, m protocol.Message, err error) {
	w.inbound.Push(Inbound{Session: sessionID, Msg: m, Err: err})
}

func (w *World) Leave(sessionID uint64) { w.inbound.Push(Inbound{Session: sessionID, Leave: true}) }

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Shutdown()
			return ctx.Err()
		case <-ticker.C:
			w.Step()
		}
	}
}

// Step runs one tick: drain the inbound queue in arrival order, advance the
// power simulation, publish circuit changes.
func (w *World) Step() {
	start := time.Now()
	w.tick++

	for _, in := range w.inbound.Drain() {
		w.apply(in)
		w.flushDrops()
	}

	w.stepPower()
	w.flushDrops()

	elapsed := time.Since(start)
	if w.trace != nil {
		_ = w.trace.WriteTick(TickTrace{
			Tick:       w.tick,
			Sessions:   len(w.sessions),
			Circuits:   w.power.CircuitCount(),
			Received:   w.received,
			Joins:      w.joins,
			Leaves:     w.leaves,
			Kicks:      w.kicks,
			Updated:    w.updated,
			DurationUS: elapsed.Microseconds(),
		})
	}
	if w.obs != nil {
		w.obs.Tick(elapsed, len(w.sessions), w.power.CircuitCount(), w.inbound.Len())
	}
	if w.cfg.Network.DebugPacketStats && len(w.received) > 0 {
		w.log.Printf("tick=%d received=%v", w.tick, w.received)
	}
	w.received = map[string]int{}
	w.joins, w.leaves, w.kicks, w.updated = nil, nil, nil, 0
}

// Shutdown disconnects every session with SERVER_SHUTDOWN.
func (w *World) Shutdown() {
	for _, s := range w.sortedSessions() {
		w.kick(s, protocol.ReasonServerShutdown, "")
	}
	w.flushDrops()
}

func (w *World) Tick() uint64 { return w.tick }

func (w *World) SessionCount() int { return len(w.sessions) }

func (w *World) Power() *power.Engine { return w.power }

func (w *World) Grid() *terrain.Grid { return w.grid }

func (w *World) apply(in Inbound) {
	if in.Join != nil {
		w.handleJoin(*in.Join)
		return
	}
	s := w.sessions[in.Session]
	if s == nil || s.closed {
		return
	}
	if in.Leave {
		w.leaves = append(w.leaves, s.id)
		w.drop(s, protocol.ReasonClientQuit, "")
		return
	}
	if in.Msg != nil {
		w.received[in.Msg.Kind()]++
		if w.obs != nil {
			w.obs.Received(in.Msg.Kind())
		}
	}
	if in.Err != nil {
		w.kick(s, protocol.ReasonProtocolError, in.Err.Error())
		return
	}
	if in.Msg == nil || protocol.IsIgnorable(in.Msg.Kind()) {
		return
	}
	if err := w.handle(s, in.Msg); err != nil {
		w.log.Printf("session %d (%s): %v", s.id, s.name, err)
		w.kick(s, protocol.ReasonProtocolError, err.Error())
	}
}
