package server

import (
	"math"
	"strings"
	"time"

	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/catalogs"
	"oreinfinium.net/internal/sim/component"
	"oreinfinium.net/internal/sim/entity"
	"oreinfinium.net/internal/sim/power"
	"oreinfinium.net/internal/sim/terrain"
)

const (
	maxChatLen = 256
	reach      = 8.0
)

// handle applies one client message. Stale or invalid requests are dropped;
// only protocol violations are returned.
func (w *World) handle(s *session, m protocol.Message) error {
	switch m := m.(type) {
	case *protocol.PlayerMove:
		w.handlePlayerMove(s, m)
	case *protocol.ChatSend:
		w.handleChat(s, m)
	case *protocol.PlayerEquipHotbarIndex:
		w.handleEquip(s, m)
	case *protocol.PlayerMoveInventoryItem:
		w.handleMoveInventoryItem(s, m)
	case *protocol.BlockDigBegin:
		w.handleDigBegin(s, m)
	case *protocol.BlockDigFinish:
		w.handleDigFinish(s, m)
	case *protocol.BlockPlace:
		w.handleBlockPlace(s, m)
	case *protocol.ItemPlace:
		w.handleItemPlace(s, m)
	case *protocol.EntityAttack:
		w.handleAttack(s, m)
	case *protocol.PowerWireConnect:
		w.handleWireConnect(m)
	case *protocol.PowerWireDisconnect:
		w.power.DisconnectAt(component.Point{X: m.X, Y: m.Y})
	case *protocol.PowerDeviceToggle:
		w.handleDeviceToggle(m)
	case *protocol.DisconnectReason:
		reason := m.Reason
		if !protocol.IsKnownReason(reason) {
			reason = protocol.ReasonClientQuit
		}
		w.leaves = append(w.leaves, s.id)
		w.drop(s, reason, m.Message)
	default:
		return &protocol.ProtocolError{Kind: m.Kind(), Reason: "not accepted from clients"}
	}
	return nil
}

func (w *World) playerPos(s *session) (*component.Position, bool) {
	return entity.Get[*component.Position](w.store, s.player)
}

func (w *World) withinReach(s *session, x, y float32) bool {
	pos, ok := w.playerPos(s)
	if !ok {
		return false
	}
	return math.Hypot(float64(x-pos.X), float64(y-pos.Y)) <= reach
}

func (w *World) handlePlayerMove(s *session, m *protocol.PlayerMove) {
	if m.Position.X < 0 || m.Position.Y < 0 || m.Position.X >= float32(w.grid.W) || m.Position.Y >= float32(w.grid.H) {
		return
	}
	pos, ok := w.playerPos(s)
	if !ok {
		return
	}
	*pos = m.Position
	w.broadcastExcept(s, &protocol.EntityMoved{NetworkID: w.netOf[s.player], Position: m.Position})
	if w.needsViewport(s, m.Position) {
		w.moveViewport(s, m.Position)
	}
}

func (w *World) handleChat(s *session, m *protocol.ChatSend) {
	msg := strings.TrimSpace(m.Message)
	if msg == "" {
		return
	}
	if len(msg) > maxChatLen {
		msg = msg[:maxChatLen]
	}
	w.broadcast(&protocol.ChatMessage{
		Timestamp:  time.Now().Format("15:04:05"),
		PlayerName: s.name,
		Message:    msg,
		Sender:     protocol.ChatSenderPlayer,
	})
}

func (w *World) handleEquip(s *session, m *protocol.PlayerEquipHotbarIndex) {
	if m.Index < 0 || m.Index >= protocol.HotbarSlots {
		return
	}
	if p, ok := entity.Get[*component.Player](w.store, s.player); ok {
		p.EquippedIndex = m.Index
	}
}

// equipped returns the hotbar entity the player holds and its definition.
func (w *World) equipped(s *session) (int, entity.ID, catalogs.ItemDef, bool) {
	p, ok := entity.Get[*component.Player](w.store, s.player)
	if !ok {
		return 0, entity.Invalid, catalogs.ItemDef{}, false
	}
	slot := p.EquippedIndex
	id := s.hotbar[slot]
	if id == entity.Invalid {
		return slot, id, catalogs.ItemDef{}, false
	}
	it, ok := entity.Get[*component.Item](w.store, id)
	if !ok {
		return slot, id, catalogs.ItemDef{}, false
	}
	def, ok := w.cats.Item(it.ID)
	return slot, id, def, ok
}

// consume takes one unit from a hotbar slot and tells the owner about it.
func (w *World) consume(s *session, slot int) {
	id := s.hotbar[slot]
	it, ok := entity.Get[*component.Item](w.store, id)
	if !ok {
		return
	}
	it.StackSize--
	if it.StackSize > 0 {
		w.send(s, w.hotbarSpawn(id, slot))
		return
	}
	nid := w.netOf[id]
	w.despawn(id)
	s.hotbar[slot] = entity.Invalid
	w.send(s, &protocol.EntityDestroyMultiple{Entities: []protocol.NetworkID{nid}})
}

func (w *World) handleMoveInventoryItem(s *session, m *protocol.PlayerMoveInventoryItem) {
	if m.SourceType != protocol.InventoryHotbar || m.DestType != protocol.InventoryHotbar {
		return
	}
	src, dst := m.SourceIndex, m.DestIndex
	if src < 0 || src >= protocol.HotbarSlots || dst < 0 || dst >= protocol.HotbarSlots || src == dst {
		return
	}
	if s.hotbar[src] == entity.Invalid {
		return
	}
	s.hotbar[src], s.hotbar[dst] = s.hotbar[dst], s.hotbar[src]

	var moved []protocol.NetworkID
	for _, slot := range []int{src, dst} {
		if id := s.hotbar[slot]; id != entity.Invalid {
			moved = append(moved, w.netOf[id])
			if it, ok := entity.Get[*component.Item](w.store, id); ok {
				it.InventoryIndex = slot
			}
		}
	}
	// The client drops both slots and respawns them at their new indices.
	w.send(s, &protocol.EntityDestroyMultiple{Entities: moved})
	for _, slot := range []int{src, dst} {
		if id := s.hotbar[slot]; id != entity.Invalid {
			w.send(s, w.hotbarSpawn(id, slot))
		}
	}
}

func (w *World) handleDigBegin(s *session, m *protocol.BlockDigBegin) {
	s.dig = nil
	if _, _, def, ok := w.equipped(s); !ok || def.Kind != catalogs.KindTool {
		return
	}
	if !w.withinReach(s, float32(m.X), float32(m.Y)) || w.grid.Get(m.X, m.Y).Type == terrain.Air {
		return
	}
	s.dig = &[2]int{m.X, m.Y}
}

func (w *World) handleDigFinish(s *session, m *protocol.BlockDigFinish) {
	if s.dig == nil || s.dig[0] != m.X || s.dig[1] != m.Y {
		return
	}
	s.dig = nil
	c := w.grid.Get(m.X, m.Y)
	if c.Type == terrain.Air {
		return
	}
	c.Type = terrain.Air
	c.Flags &^= terrain.FlagSolid | terrain.FlagGrass
	w.setCell(m.X, m.Y, c)
}

func (w *World) handleBlockPlace(s *session, m *protocol.BlockPlace) {
	slot, _, def, ok := w.equipped(s)
	if !ok || def.Kind != catalogs.KindBlock {
		return
	}
	if !w.grid.InBounds(m.X, m.Y) || !w.withinReach(s, float32(m.X), float32(m.Y)) {
		return
	}
	c := w.grid.Get(m.X, m.Y)
	if c.Type != terrain.Air {
		return
	}
	c.Type = def.PlaceAs
	c.Flags |= terrain.FlagSolid
	w.setCell(m.X, m.Y, c)
	w.consume(s, slot)
}

func (w *World) setCell(x, y int, c terrain.Cell) {
	if err := w.grid.Set(x, y, c); err != nil {
		return
	}
	w.broadcast(&protocol.SparseBlockUpdate{Blocks: []protocol.SparseBlock{{
		X: x, Y: y,
		Block: protocol.CellFields{Type: c.Type, WallType: c.WallType, LightLevel: c.LightLevel, Flags: c.Flags},
	}}})
}

func (w *World) handleItemPlace(s *session, m *protocol.ItemPlace) {
	slot, _, def, ok := w.equipped(s)
	if !ok || !w.withinReach(s, m.X, m.Y) {
		return
	}
	pt := component.Point{X: m.X, Y: m.Y}

	// Fuel goes into the generator under the cursor.
	if def.Burnable() {
		if node, ok := w.power.DeviceAt(pt); ok && w.power.AddFuel(node, def.ID, 1) {
			w.consume(s, slot)
		}
		return
	}
	if def.Kind != catalogs.KindDevice {
		return
	}
	if _, occupied := w.power.DeviceAt(pt); occupied {
		return
	}
	if !w.grid.InBounds(int(m.X), int(m.Y)) {
		return
	}

	cs, dev := placedDevice(def, component.Position{X: m.X, Y: m.Y})
	id, nid := w.spawn(cs...)
	dev.ID = power.NodeID(nid)
	w.power.AddDevice(dev)

	if es, ok := w.entitySpawn(id); ok {
		w.broadcast(&protocol.EntitySpawnMultiple{Entities: []protocol.EntitySpawn{es}})
	}
	w.consume(s, slot)
}

func (w *World) handleAttack(s *session, m *protocol.EntityAttack) {
	id, ok := w.resolve(m.NetworkID)
	if !ok {
		return
	}
	it, ok := entity.Get[*component.Item](w.store, id)
	if !ok || it.State != component.ItemPlaced {
		return
	}
	pos, ok := entity.Get[*component.Position](w.store, id)
	if !ok || !w.withinReach(s, pos.X, pos.Y) {
		return
	}
	w.broadcast(&protocol.EntityKilled{NetworkID: m.NetworkID})
	w.despawn(id)
	w.broadcast(&protocol.EntityDestroyMultiple{Entities: []protocol.NetworkID{m.NetworkID}})
}

func (w *World) handleWireConnect(m *protocol.PowerWireConnect) {
	w.power.Connect(power.NodeID(m.Source), power.NodeID(m.Target))
}

func (w *World) handleDeviceToggle(m *protocol.PowerDeviceToggle) {
	id, ok := w.resolve(m.NetworkID)
	if !ok {
		return
	}
	pd, ok := entity.Get[*component.PowerDevice](w.store, id)
	if !ok {
		return
	}
	pd.Running = m.Running
	w.power.SetRunning(power.NodeID(m.NetworkID), m.Running)
}
