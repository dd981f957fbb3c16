package client

import (
	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/component"
	"oreinfinium.net/internal/sim/entity"
	"oreinfinium.net/internal/sim/terrain"
)

func (s *Session) handleBlockRegion(m *protocol.BlockRegion) error {
	if err := s.grid.DecodeRegion(m.X, m.Y, m.X2, m.Y2, m.Encoding, m.Cells); err != nil {
		return &protocol.ProtocolError{Kind: m.Kind(), Reason: "bad region", Err: err}
	}
	return nil
}

// handleSparseBlockUpdate skips cells outside the local grid, the same way a
// block region does.
func (s *Session) handleSparseBlockUpdate(m *protocol.SparseBlockUpdate) error {
	for _, b := range m.Blocks {
		if !s.grid.InBounds(b.X, b.Y) {
			continue
		}
		_ = s.grid.Set(b.X, b.Y, terrain.Cell{
			Type:       b.Block.Type,
			WallType:   b.Block.WallType,
			LightLevel: b.Block.LightLevel,
			Flags:      b.Block.Flags,
		})
	}
	return nil
}

func (s *Session) handleViewportMoved(m *protocol.LoadedViewportMoved) {
	if p, ok := entity.Get[*component.Player](s.store, s.main); ok {
		p.LoadedViewport = m.Rect
	}
}

func (s *Session) resolve(op string, nid protocol.NetworkID) (entity.ID, error) {
	id, err := s.ids.ResolveLocal(nid)
	if err != nil {
		s.desync(op)
		return entity.Invalid, err
	}
	return id, nil
}

func (s *Session) handleKilled(m *protocol.EntityKilled) error {
	id, err := s.resolve("killed", m.NetworkID)
	if err != nil {
		return err
	}
	return s.store.Attach(id, &component.Killed{})
}

func (s *Session) handleMoved(m *protocol.EntityMoved) error {
	id, err := s.resolve("moved", m.NetworkID)
	if err != nil {
		return err
	}
	pos := m.Position
	return s.store.Attach(id, &pos)
}

func (s *Session) handleCircuitUpdated(m *protocol.CircuitUpdated) error {
	for _, d := range m.Devices {
		id, err := s.resolve("circuit", d.NetworkID)
		if err != nil {
			return err
		}
		pd, ok := entity.Get[*component.PowerDevice](s.store, id)
		if !ok {
			pd = &component.PowerDevice{Running: true}
			_ = s.store.Attach(id, pd)
		}
		pd.Circuit = d.Circuit
		pd.TotalSupply = d.TotalSupply
		pd.TotalDemand = d.TotalDemand
		pd.Powered = d.Powered
	}
	return nil
}

// CircuitStatsAt reports the last known circuit status of the device under
// pt, for the wire tooltip.
func (s *Session) CircuitStatsAt(pt component.Point) (component.PowerDevice, bool) {
	id, ok := s.deviceAt(pt)
	if !ok {
		return component.PowerDevice{}, false
	}
	pd, _ := entity.Get[*component.PowerDevice](s.store, id)
	return *pd, true
}

func (s *Session) deviceAt(pt component.Point) (entity.ID, bool) {
	return s.store.FindAt(pt, func(id entity.ID) bool {
		return s.store.Has(id, component.KindPowerDevice)
	})
}
