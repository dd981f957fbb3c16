// Package client is the non-authoritative side of the game: it mirrors the
// server's entities through the identity map and turns local gestures into
// requests. Everything here runs on the tick goroutine.
package client

import (
	"errors"
	"log"
	"time"

	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/catalogs"
	"oreinfinium.net/internal/sim/entity"
	"oreinfinium.net/internal/sim/identity"
	"oreinfinium.net/internal/sim/terrain"
)

// Sender is the outbound half of the message channel. Send must not block.
type Sender interface {
	Send(m protocol.Message) error
}

// Listener is told when the main player appears and when the server ends the
// session.
type Listener interface {
	Connected(player entity.ID)
	Disconnected(reason protocol.DisconnectReason)
}

type Observer interface {
	Received(kind string)
	Sent(kind string)
	Desync(op string)
}

// DispatchTrace summarizes one drain of the inbound queue.
type DispatchTrace struct {
	Tick     uint64         `json:"tick"`
	Received map[string]int `json:"received,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type TraceLogger interface {
	WriteDispatch(DispatchTrace) error
}

type Options struct {
	Catalogs *catalogs.Catalogs
	Out      Sender
	Logger   *log.Logger

	WorldWidth  int
	WorldHeight int

	ChatLines        int
	DebugPacketStats bool
	PingInterval     time.Duration
}

type Session struct {
	log   *log.Logger
	cats  *catalogs.Catalogs
	out   Sender
	debug bool

	store *entity.Store
	ids   *identity.Map
	grid  *terrain.Grid

	main      entity.ID
	connected bool
	ended     *protocol.DisconnectReason
	hotbar    [protocol.HotbarSlots]entity.ID
	equipped  int
	chat      *Chat
	drag      WireDrag

	listeners []Listener
	obs       Observer
	trace     TraceLogger

	tick     uint64
	stats    map[string]int
	pingLast time.Time
	pingEach time.Duration
}

func NewSession(opts Options) *Session {
	if opts.ChatLines <= 0 {
		opts.ChatLines = 100
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = time.Second
	}
	s := &Session{
		log:      opts.Logger,
		cats:     opts.Catalogs,
		out:      opts.Out,
		debug:    opts.DebugPacketStats,
		store:    entity.NewStore(),
		ids:      identity.New(),
		grid:     terrain.NewGrid(opts.WorldWidth, opts.WorldHeight),
		main:     entity.Invalid,
		chat:     NewChat(opts.ChatLines),
		stats:    map[string]int{},
		pingEach: opts.PingInterval,
	}
	for i := range s.hotbar {
		s.hotbar[i] = entity.Invalid
	}
	s.drag.source = entity.Invalid
	s.store.OnRemoved(s.entityRemoved)
	return s
}

func (s *Session) AddListener(l Listener) {
	if l != nil {
		s.listeners = append(s.listeners, l)
	}
}

func (s *Session) SetObserver(o Observer)       { s.obs = o }
func (s *Session) SetTraceLogger(l TraceLogger) { s.trace = l }

func (s *Session) Store() *entity.Store     { return s.store }
func (s *Session) Identity() *identity.Map  { return s.ids }
func (s *Session) Grid() *terrain.Grid      { return s.grid }
func (s *Session) Chat() *Chat              { return s.chat }
func (s *Session) MainPlayer() entity.ID    { return s.main }
func (s *Session) Connected() bool          { return s.connected }
func (s *Session) TickCount() uint64        { return s.tick }
func (s *Session) EquippedIndex() int       { return s.equipped }
func (s *Session) Drag() DragState          { return s.drag.state }

// Ended is the reason the server gave for closing the session, if any.
func (s *Session) Ended() *protocol.DisconnectReason { return s.ended }

// Hotbar returns the entity in slot i, or entity.Invalid.
func (s *Session) Hotbar(i int) entity.ID {
	if i < 0 || i >= len(s.hotbar) {
		return entity.Invalid
	}
	return s.hotbar[i]
}

// Stats returns the cumulative number of messages received per kind.
func (s *Session) Stats() map[string]int {
	out := make(map[string]int, len(s.stats))
	for k, v := range s.stats {
		out[k] = v
	}
	return out
}

// entityRemoved keeps the identity map and the session's references in step
// with the entity store, whoever removed the entity.
func (s *Session) entityRemoved(id entity.ID) {
	if err := s.ids.ForgetLocal(id); err != nil && s.log != nil {
		s.log.Printf("forget local %d: %v", id, err)
	}
	for i, h := range s.hotbar {
		if h == id {
			s.hotbar[i] = entity.Invalid
		}
	}
	if s.main == id {
		s.main = entity.Invalid
	}
	if s.drag.state == Dragging && s.drag.source == id {
		s.drag.reset()
	}
}

// DisconnectReasonFor maps a fatal Tick error to the reason the client reports
// before closing.
func DisconnectReasonFor(err error) protocol.DisconnectReason {
	if errors.Is(err, identity.ErrDesync) {
		return protocol.DisconnectReason{Reason: protocol.ReasonDesync, Message: err.Error()}
	}
	return protocol.DisconnectReason{Reason: protocol.ReasonProtocolError, Message: err.Error()}
}
