package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/component"
	"oreinfinium.net/internal/sim/entity"
)

var ErrNoOutbound = errors.New("client: no outbound channel")

func (s *Session) send(m protocol.Message) error {
	if s.out == nil {
		return ErrNoOutbound
	}
	if err := s.out.Send(m); err != nil {
		return fmt.Errorf("send %s: %w", m.Kind(), err)
	}
	if s.obs != nil {
		s.obs.Sent(m.Kind())
	}
	return nil
}

// Move sets the main player's position locally and reports it.
func (s *Session) Move(pos component.Position) error {
	if s.main != entity.Invalid {
		p := pos
		_ = s.store.Attach(s.main, &p)
	}
	return s.send(&protocol.PlayerMove{Position: pos})
}

func (s *Session) Say(msg string) error {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return nil
	}
	return s.send(&protocol.ChatSend{Message: msg})
}

func (s *Session) Equip(index int) error {
	if index < 0 || index >= protocol.HotbarSlots {
		return fmt.Errorf("hotbar index %d out of range", index)
	}
	s.equipped = index
	return s.send(&protocol.PlayerEquipHotbarIndex{Index: index})
}

func (s *Session) MoveHotbarItem(from, to int) error {
	return s.send(&protocol.PlayerMoveInventoryItem{
		SourceType:  protocol.InventoryHotbar,
		SourceIndex: from,
		DestType:    protocol.InventoryHotbar,
		DestIndex:   to,
	})
}

// Attack targets a local entity; it must be network-backed.
func (s *Session) Attack(target entity.ID) error {
	nid, err := s.ids.ResolveNetwork(target)
	if err != nil {
		s.desync("attack")
		return err
	}
	return s.send(&protocol.EntityAttack{NetworkID: nid})
}

func (s *Session) DigBegin(x, y int) error   { return s.send(&protocol.BlockDigBegin{X: x, Y: y}) }
func (s *Session) DigFinish(x, y int) error  { return s.send(&protocol.BlockDigFinish{X: x, Y: y}) }
func (s *Session) PlaceBlock(x, y int) error { return s.send(&protocol.BlockPlace{X: x, Y: y}) }

func (s *Session) PlaceItem(pt component.Point) error {
	return s.send(&protocol.ItemPlace{X: pt.X, Y: pt.Y})
}

func (s *Session) ToggleDevice(device entity.ID, running bool) error {
	nid, err := s.ids.ResolveNetwork(device)
	if err != nil {
		s.desync("toggle")
		return err
	}
	return s.send(&protocol.PowerDeviceToggle{NetworkID: nid, Running: running})
}

// Quit tells the server the client is leaving.
func (s *Session) Quit(reason protocol.DisconnectReason) error {
	return s.send(&reason)
}

// Heartbeat sends a PING when the interval has elapsed since the last one.
func (s *Session) Heartbeat(now time.Time) error {
	if !s.pingLast.IsZero() && now.Sub(s.pingLast) < s.pingEach {
		return nil
	}
	s.pingLast = now
	return s.send(&protocol.Ping{SentUnixMilli: now.UnixMilli()})
}
