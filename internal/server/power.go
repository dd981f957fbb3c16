package server

import (
	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/component"
	"oreinfinium.net/internal/sim/entity"
	"oreinfinium.net/internal/sim/power"
)

func (w *World) burnTicks(item string) (int, bool) {
	def, ok := w.cats.Item(item)
	if !ok || !def.Burnable() {
		return 0, false
	}
	if def.BurnTicks > 0 {
		return def.BurnTicks, true
	}
	return w.cfg.Power.FuelBurnTicks, true
}

// stepPower burns fuel, recomputes circuits and sends CircuitUpdated for the
// devices whose status changed since the previous tick.
func (w *World) stepPower() {
	w.power.StepFuel(w.burnTicks)
	w.power.Recompute()

	var changed []protocol.DeviceCircuit
	for _, node := range w.power.DeviceIDs() {
		st, _ := w.power.Status(node)
		nid := protocol.NetworkID(node)
		if id, ok := w.resolve(nid); ok {
			if pd, ok := entity.Get[*component.PowerDevice](w.store, id); ok {
				pd.Circuit = uint64(st.Circuit)
				pd.TotalSupply = st.TotalSupply
				pd.TotalDemand = st.TotalDemand
				pd.Powered = st.Powered
			}
		}
		if prev, ok := w.lastStatus[nid]; ok && prev == st {
			continue
		}
		w.lastStatus[nid] = st
		changed = append(changed, deviceCircuit(nid, st))
	}
	if len(changed) == 0 {
		return
	}
	w.updated = len(changed)
	w.broadcast(&protocol.CircuitUpdated{Devices: changed})
}

func deviceCircuit(nid protocol.NetworkID, st power.Status) protocol.DeviceCircuit {
	return protocol.DeviceCircuit{
		NetworkID:   nid,
		Circuit:     uint64(st.Circuit),
		TotalSupply: st.TotalSupply,
		TotalDemand: st.TotalDemand,
		Powered:     st.Powered,
	}
}
