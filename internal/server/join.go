package server

import (
	"math"
	"strings"
	"time"

	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/component"
	"oreinfinium.net/internal/sim/entity"
)

func (w *World) handleJoin(req JoinRequest) {
	if reject := ValidateHandshake(req.Hello); reject != nil {
		w.log.Printf("handshake refused (%s): %s", reject.Reason, reject.Message)
		req.Resp <- JoinResponse{Reject: reject}
		return
	}

	w.nextSession++
	s := &session{
		id:   w.nextSession,
		name: strings.TrimSpace(req.Hello.PlayerName),
		uuid: req.Hello.ClientUUID,
		out:  req.Out,
		done: make(chan struct{}),
	}
	for i := range s.hotbar {
		s.hotbar[i] = entity.Invalid
	}

	spawnPos := component.Position{
		X: float32(w.cfg.World.Width) / 2,
		Y: float32(w.cfg.World.SeaLevel) + 1,
	}
	s.player, _ = w.spawn(
		&spawnPos,
		&component.Size{W: 1, H: 2},
		&component.Sprite{TextureName: "player"},
		&component.Player{Name: s.name, ConnectionID: s.id},
	)
	w.sessions[s.id] = s
	w.joins = append(w.joins, s.id)
	req.Resp <- JoinResponse{SessionID: s.id, Done: s.done}

	for i, itemID := range w.cfg.StarterHotbar {
		if i >= protocol.HotbarSlots {
			break
		}
		def, ok := w.cats.Item(itemID)
		if !ok {
			w.log.Printf("starter hotbar: unknown item %q", itemID)
			continue
		}
		id, _ := w.spawn(itemComponents(def, def.MaxStack, component.ItemInInventory, i)...)
		s.hotbar[i] = id
		w.send(s, w.hotbarSpawn(id, i))
	}

	// The newcomer learns about itself before anyone else.
	w.broadcast(w.playerSpawned(s))
	for _, other := range w.sortedSessions() {
		if other != s {
			w.send(s, w.playerSpawned(other))
		}
	}

	w.moveViewport(s, spawnPos)

	var world []protocol.EntitySpawn
	w.store.Each(component.KindItem, func(id entity.ID, c component.Component) {
		if it := c.(*component.Item); it.State == component.ItemPlaced {
			if es, ok := w.entitySpawn(id); ok {
				world = append(world, es)
			}
		}
	})
	if len(world) > 0 {
		w.send(s, &protocol.EntitySpawnMultiple{Entities: world})
	}

	w.log.Printf("session %d joined as %q", s.id, s.name)
	if w.index != nil {
		w.index.RecordSession(SessionRecord{
			Session:    s.id,
			PlayerName: s.name,
			ClientUUID: s.uuid,
			Version:    protocol.Version,
			Tick:       w.tick,
			At:         time.Now().UTC(),
		})
	}
	if w.obs != nil {
		w.obs.SessionOpened()
	}
}

func (w *World) playerSpawned(s *session) *protocol.PlayerSpawned {
	m := &protocol.PlayerSpawned{
		NetworkID:    w.netOf[s.player],
		ConnectionID: s.id,
		PlayerName:   s.name,
	}
	if pos, ok := entity.Get[*component.Position](w.store, s.player); ok {
		m.Position = *pos
	}
	return m
}

// moveViewport recentres the session's loaded region on pos and streams the
// terrain under it.
func (w *World) moveViewport(s *session, pos component.Position) {
	hw, hh := w.cfg.Viewport.HalfWidth, w.cfg.Viewport.HalfHeight
	cx, cy := int(math.Floor(float64(pos.X))), int(math.Floor(float64(pos.Y)))
	x, y := clamp(cx-hw, 0, w.grid.W-1), clamp(cy-hh, 0, w.grid.H-1)
	x2, y2 := clamp(cx+hw, 0, w.grid.W-1), clamp(cy+hh, 0, w.grid.H-1)

	s.viewport = component.Rect{X: float32(x), Y: float32(y), W: float32(x2 - x), H: float32(y2 - y)}
	if p, ok := entity.Get[*component.Player](w.store, s.player); ok {
		p.LoadedViewport = s.viewport
	}
	w.send(s, &protocol.LoadedViewportMoved{Rect: s.viewport})

	enc, data, err := w.grid.EncodeRegion(x, y, x2, y2)
	if err != nil {
		w.log.Printf("session %d: viewport region: %v", s.id, err)
		return
	}
	w.send(s, &protocol.BlockRegion{X: x, Y: y, X2: x2, Y2: y2, Encoding: enc, Cells: data})
}

// needsViewport reports whether pos has drifted past half the viewport from
// the loaded region's centre.
func (w *World) needsViewport(s *session, pos component.Position) bool {
	c := s.viewport.Center()
	return math.Abs(float64(pos.X-c.X)) > float64(w.cfg.Viewport.HalfWidth)/2 ||
		math.Abs(float64(pos.Y-c.Y)) > float64(w.cfg.Viewport.HalfHeight)/2
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
