package server

import (
	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/catalogs"
	"oreinfinium.net/internal/sim/component"
	"oreinfinium.net/internal/sim/entity"
	"oreinfinium.net/internal/sim/power"
)

// spawn creates a networked entity. Network ids are never reused.
func (w *World) spawn(cs ...component.Component) (entity.ID, protocol.NetworkID) {
	id := w.store.Create()
	_ = w.store.Attach(id, cs...)
	w.nextNet++
	nid := w.nextNet
	w.netOf[id] = nid
	w.byNet[nid] = id
	return id, nid
}

func (w *World) despawn(id entity.ID) {
	nid, ok := w.netOf[id]
	if !ok {
		return
	}
	delete(w.netOf, id)
	delete(w.byNet, nid)
	delete(w.lastStatus, nid)
	w.power.RemoveDevice(power.NodeID(nid))
	_ = w.store.Destroy(id)
}

func (w *World) resolve(nid protocol.NetworkID) (entity.ID, bool) {
	id, ok := w.byNet[nid]
	return id, ok
}

// wireComponents is the verbatim component payload of a spawn message.
// Position and size travel as their own fields.
func (w *World) wireComponents(id entity.ID) component.List {
	var out component.List
	for _, c := range w.store.Components(id) {
		switch c.Kind() {
		case component.KindPosition, component.KindSize:
			continue
		}
		if component.IsWireKind(c.Kind()) {
			out = append(out, c)
		}
	}
	return out
}

func (w *World) entitySpawn(id entity.ID) (protocol.EntitySpawn, bool) {
	nid, ok := w.netOf[id]
	if !ok {
		return protocol.EntitySpawn{}, false
	}
	es := protocol.EntitySpawn{NetworkID: nid, Components: w.wireComponents(id)}
	if sp, ok := entity.Get[*component.Sprite](w.store, id); ok {
		es.TextureName = sp.TextureName
	}
	if sz, ok := entity.Get[*component.Size](w.store, id); ok {
		es.Size = *sz
	}
	if pos, ok := entity.Get[*component.Position](w.store, id); ok {
		es.Position = *pos
	}
	return es, true
}

func (w *World) hotbarSpawn(id entity.ID, slot int) *protocol.PlayerSpawnHotbarInventoryItem {
	es, ok := w.entitySpawn(id)
	if !ok {
		return nil
	}
	return &protocol.PlayerSpawnHotbarInventoryItem{
		NetworkID:      es.NetworkID,
		Components:     es.Components,
		TextureName:    es.TextureName,
		Size:           es.Size,
		InventoryIndex: slot,
	}
}

// itemComponents builds the components of an item of def.
func itemComponents(def catalogs.ItemDef, stack int, state string, slot int) []component.Component {
	cs := []component.Component{
		&component.Sprite{TextureName: def.Texture},
		&component.Size{W: def.Size[0], H: def.Size[1]},
		&component.Item{
			ID:             def.ID,
			StackSize:      stack,
			MaxStackSize:   def.MaxStack,
			InventoryIndex: slot,
			State:          state,
		},
	}
	switch def.Kind {
	case catalogs.KindTool:
		cs = append(cs, &component.Tool{Type: def.ToolType})
	case catalogs.KindBlock:
		cs = append(cs, &component.Block{BlockType: def.PlaceAs})
	}
	return cs
}

// placedDevice builds the world entity for a placed device item and its
// graph node.
func placedDevice(def catalogs.ItemDef, pos component.Position) ([]component.Component, power.Device) {
	size := component.Size{W: def.Size[0], H: def.Size[1]}
	cs := []component.Component{
		&pos,
		&size,
		&component.Sprite{TextureName: def.Texture},
		&component.Item{ID: def.ID, StackSize: 1, MaxStackSize: def.MaxStack, State: component.ItemPlaced},
		&component.PowerDevice{Running: true},
	}
	dev := power.Device{
		Running:   true,
		Footprint: component.Footprint(pos, size),
	}
	d := def.Device
	if d.Generator != "" {
		gen := &component.PowerGenerator{Type: d.Generator, SupplyRate: d.SupplyRate}
		if d.FuelSlots > 0 {
			gen.FuelSlots = make([]component.FuelStack, d.FuelSlots)
			dev.Burner = &power.Burner{Slots: gen.FuelSlots}
		}
		cs = append(cs, gen)
		dev.Supply = d.SupplyRate
	}
	if d.DemandRate > 0 {
		cs = append(cs, &component.PowerConsumer{DemandRate: d.DemandRate})
		dev.Demand = d.DemandRate
	}
	return cs, dev
}
