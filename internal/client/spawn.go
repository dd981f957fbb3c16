package client

import (
	"errors"
	"fmt"

	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/component"
	"oreinfinium.net/internal/sim/entity"
	"oreinfinium.net/internal/sim/identity"
)

const playerTexture = "player"

var playerSize = component.Size{W: 1, H: 2}

type spawnSpec struct {
	nid        protocol.NetworkID
	components component.List
	texture    string
	size       component.Size
	position   *component.Position
}

// spawnOne creates a local entity for one spawn payload. Nothing is left
// behind when it fails.
func (s *Session) spawnOne(sp spawnSpec) (entity.ID, error) {
	tex, err := s.cats.Texture(sp.texture)
	if err != nil {
		return entity.Invalid, fmt.Errorf("spawn network=%d: %w", sp.nid, err)
	}
	if sp.nid != 0 {
		if local, err := s.ids.ResolveLocal(sp.nid); err == nil {
			s.desync("spawn")
			return entity.Invalid, &identity.DesyncError{Op: "spawn", NetworkID: sp.nid, LocalID: local, Reason: "network id already mapped"}
		}
	}

	id := s.store.Create()
	for _, c := range sp.components {
		_ = s.store.Attach(id, c)
	}
	size := sp.size
	_ = s.store.Attach(id,
		&size,
		&component.Sprite{TextureName: tex.Name, Atlas: tex.Atlas, Region: tex.Region},
	)
	if sp.position != nil {
		pos := *sp.position
		_ = s.store.Attach(id, &pos)
	}

	if sp.nid != 0 {
		if err := s.ids.RecordSpawn(sp.nid, id); err != nil {
			_ = s.store.Destroy(id)
			s.desync("spawn")
			return entity.Invalid, err
		}
	}
	return id, nil
}

func (s *Session) handlePlayerSpawned(m *protocol.PlayerSpawned) error {
	pos := m.Position
	id, err := s.spawnOne(spawnSpec{
		nid: m.NetworkID,
		components: component.List{
			&component.Player{Name: m.PlayerName, ConnectionID: m.ConnectionID},
		},
		texture:  playerTexture,
		size:     playerSize,
		position: &pos,
	})
	if err != nil {
		return err
	}
	// The server always introduces a client to itself first.
	if !s.connected {
		s.connected = true
		s.main = id
		for _, l := range s.listeners {
			l.Connected(id)
		}
	}
	return nil
}

// handleHotbarItem overwrites one hotbar slot. The previous occupant is
// destroyed first so a re-sent item can reuse its network id.
func (s *Session) handleHotbarItem(m *protocol.PlayerSpawnHotbarInventoryItem) error {
	if m.InventoryIndex < 0 || m.InventoryIndex >= protocol.HotbarSlots {
		return &protocol.ProtocolError{Kind: m.Kind(), Reason: fmt.Sprintf("hotbar index %d out of range", m.InventoryIndex)}
	}
	if old := s.hotbar[m.InventoryIndex]; old != entity.Invalid {
		_ = s.store.Destroy(old)
	}
	id, err := s.spawnOne(spawnSpec{
		nid:        m.NetworkID,
		components: m.Components,
		texture:    m.TextureName,
		size:       m.Size,
	})
	if err != nil {
		return err
	}
	s.hotbar[m.InventoryIndex] = id
	return nil
}

// handleSpawnMultiple applies every item in order. A failing item does not
// stop the rest; all failures are reported together. World entities always
// carry a network id.
func (s *Session) handleSpawnMultiple(m *protocol.EntitySpawnMultiple) error {
	var errs []error
	for _, e := range m.Entities {
		if e.NetworkID == 0 {
			s.desync("spawn")
			errs = append(errs, &identity.DesyncError{Op: "spawn", LocalID: entity.Invalid, Reason: "world entity without network id"})
			continue
		}
		pos := e.Position
		if _, err := s.spawnOne(spawnSpec{
			nid:        e.NetworkID,
			components: e.Components,
			texture:    e.TextureName,
			size:       e.Size,
			position:   &pos,
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// handleDestroyMultiple validates the whole batch before touching anything.
func (s *Session) handleDestroyMultiple(m *protocol.EntityDestroyMultiple) error {
	seen := make(map[protocol.NetworkID]struct{}, len(m.Entities))
	for _, nid := range m.Entities {
		if _, dup := seen[nid]; dup {
			s.desync("destroy")
			return &identity.DesyncError{Op: "destroy", NetworkID: nid, LocalID: entity.Invalid, Reason: "repeated in batch"}
		}
		seen[nid] = struct{}{}
		if _, err := s.ids.ResolveLocal(nid); err != nil {
			s.desync("destroy")
			return err
		}
	}

	for _, nid := range m.Entities {
		local, err := s.ids.RecordDestroy(nid)
		if err != nil {
			s.desync("destroy")
			return err
		}
		_ = s.store.Destroy(local)
	}
	if err := s.ids.Verify(); err != nil {
		s.desync("destroy")
		return err
	}
	return nil
}

func (s *Session) desync(op string) {
	if s.obs != nil {
		s.obs.Desync(op)
	}
}
