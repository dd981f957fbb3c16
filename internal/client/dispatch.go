package client

import (
	"fmt"
	"sort"
	"strings"

	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/transport/queue"
)

// Tick drains q completely in arrival order. The first fatal error ends
// application: later messages of the same drain are discarded, since the
// session is over once client and server disagree.
func (s *Session) Tick(q *queue.Queue[protocol.Message]) error {
	s.tick++
	var counts map[string]int
	if s.debug || s.trace != nil {
		counts = map[string]int{}
	}

	var fatal error
	for {
		m, ok := q.Poll()
		if !ok {
			break
		}
		if m == nil || fatal != nil {
			continue
		}
		kind := m.Kind()
		s.stats[kind]++
		if counts != nil {
			counts[kind]++
		}
		if s.obs != nil {
			s.obs.Received(kind)
		}
		if err := s.dispatch(m); err != nil {
			fatal = err
		}
	}

	if s.debug && len(counts) > 0 && s.log != nil {
		s.log.Printf("tick %d packets: %s", s.tick, formatCounts(counts))
	}
	if s.trace != nil && (len(counts) > 0 || fatal != nil) {
		tr := DispatchTrace{Tick: s.tick, Received: counts}
		if fatal != nil {
			tr.Error = fatal.Error()
		}
		if err := s.trace.WriteDispatch(tr); err != nil && s.log != nil {
			s.log.Printf("dispatch trace: %v", err)
		}
	}
	return fatal
}

// dispatch routes one message to its handler. Client-to-server kinds and
// anything outside the taxonomy fall through to the protocol error.
func (s *Session) dispatch(m protocol.Message) error {
	switch m := m.(type) {
	case *protocol.Ping, *protocol.KeepAlive:
		return nil
	case *protocol.DisconnectReason:
		s.handleDisconnect(m)
		return nil
	case *protocol.BlockRegion:
		return s.handleBlockRegion(m)
	case *protocol.SparseBlockUpdate:
		return s.handleSparseBlockUpdate(m)
	case *protocol.LoadedViewportMoved:
		s.handleViewportMoved(m)
		return nil
	case *protocol.PlayerSpawned:
		return s.handlePlayerSpawned(m)
	case *protocol.PlayerSpawnHotbarInventoryItem:
		return s.handleHotbarItem(m)
	case *protocol.EntitySpawnMultiple:
		return s.handleSpawnMultiple(m)
	case *protocol.EntityDestroyMultiple:
		return s.handleDestroyMultiple(m)
	case *protocol.EntityKilled:
		return s.handleKilled(m)
	case *protocol.EntityMoved:
		return s.handleMoved(m)
	case *protocol.ChatMessage:
		s.chat.Add(*m)
		return nil
	case *protocol.CircuitUpdated:
		return s.handleCircuitUpdated(m)
	default:
		if protocol.IsIgnorable(m.Kind()) {
			return nil
		}
		return &protocol.ProtocolError{Kind: m.Kind(), Reason: "not accepted from the server", Err: protocol.ErrUnknownKind}
	}
}

func (s *Session) handleDisconnect(m *protocol.DisconnectReason) {
	r := *m
	s.ended = &r
	if s.log != nil {
		s.log.Printf("server closed session: %s %s", m.Reason, m.Message)
	}
	for _, l := range s.listeners {
		l.Disconnected(r)
	}
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}
