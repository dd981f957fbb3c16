package server

import (
	"fmt"
	"sort"
	"time"

	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/component"
	"oreinfinium.net/internal/sim/entity"
)

type session struct {
	id   uint64
	name string
	uuid string

	out  chan []byte
	done chan struct{}

	closed bool
	reason string
	detail string

	player   entity.ID
	hotbar   [protocol.HotbarSlots]entity.ID
	viewport component.Rect
	dig      *[2]int
}

func (w *World) sortedSessions() []*session {
	out := make([]*session, 0, len(w.sessions))
	for _, s := range w.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// send never blocks the tick. A session whose outbound queue is full is
// disconnected rather than silently losing a message.
func (w *World) send(s *session, m protocol.Message) {
	if s == nil || s.closed {
		return
	}
	b, err := protocol.Encode(m)
	if err != nil {
		w.log.Printf("encode %s: %v", m.Kind(), err)
		return
	}
	select {
	case s.out <- b:
		if w.obs != nil {
			w.obs.Sent(m.Kind())
		}
	default:
		w.kick(s, protocol.ReasonSlowConsumer, fmt.Sprintf("outbound queue full at %s", m.Kind()))
	}
}

func (w *World) broadcast(m protocol.Message) {
	for _, s := range w.sortedSessions() {
		w.send(s, m)
	}
}

func (w *World) broadcastExcept(skip *session, m protocol.Message) {
	for _, s := range w.sortedSessions() {
		if s != skip {
			w.send(s, m)
		}
	}
}

// kick tells the client why and schedules the session for removal.
func (w *World) kick(s *session, reason, detail string) {
	if s.closed {
		return
	}
	if reason != protocol.ReasonSlowConsumer {
		if b, err := protocol.Encode(&protocol.DisconnectReason{Reason: reason, Message: detail}); err == nil {
			select {
			case s.out <- b:
			default:
			}
		}
	}
	w.kicks = append(w.kicks, KickTrace{Session: s.id, Reason: reason, Detail: detail})
	w.drop(s, reason, detail)
}

func (w *World) drop(s *session, reason, detail string) {
	if s.closed {
		return
	}
	s.closed = true
	s.reason = reason
	s.detail = detail
	w.dropping = append(w.dropping, s)
}

// flushDrops removes closed sessions from the world. Broadcasts issued here
// may close further sessions, which are handled in the same pass.
func (w *World) flushDrops() {
	for len(w.dropping) > 0 {
		s := w.dropping[0]
		w.dropping = w.dropping[1:]
		w.finalize(s)
	}
}

func (w *World) finalize(s *session) {
	close(s.done)
	delete(w.sessions, s.id)

	var gone []protocol.NetworkID
	if nid, ok := w.netOf[s.player]; ok {
		gone = append(gone, nid)
	}
	w.despawn(s.player)
	for i, id := range s.hotbar {
		if id != entity.Invalid {
			w.despawn(id)
			s.hotbar[i] = entity.Invalid
		}
	}

	if len(gone) > 0 {
		w.broadcast(&protocol.EntityDestroyMultiple{Entities: gone})
	}
	w.broadcast(&protocol.ChatMessage{
		Timestamp:  time.Now().Format("15:04:05"),
		PlayerName: s.name,
		Message:    s.name + " disconnected.",
		Sender:     protocol.ChatSenderServer,
	})

	w.log.Printf("session %d (%s) closed: %s %s", s.id, s.name, s.reason, s.detail)
	if w.index != nil {
		w.index.RecordDisconnect(DisconnectRecord{
			Session: s.id,
			Reason:  s.reason,
			Detail:  s.detail,
			Tick:    w.tick,
			At:      time.Now().UTC(),
		})
	}
	if w.obs != nil {
		w.obs.SessionClosed(s.reason)
	}
}
