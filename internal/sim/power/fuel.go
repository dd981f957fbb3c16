package power

// FuelFunc reports how many ticks one unit of item burns for; ok is false for
// items that do not burn.
type FuelFunc func(item string) (ticks int, ok bool)

// StepFuel advances every running burner by one tick. A burner whose burn has
// ended takes one unit from the lowest-index slot holding a burnable item. It
// returns the devices whose burn state changed.
func (e *Engine) StepFuel(fuel FuelFunc) []NodeID {
	var changed []NodeID
	for _, id := range e.DeviceIDs() {
		d := e.devices[id]
		b := d.Burner
		if b == nil || !d.Running {
			continue
		}
		wasBurning := b.Remaining > 0
		if b.Remaining > 0 {
			b.Remaining--
		}
		if b.Remaining == 0 {
			b.Remaining = refuel(b, fuel)
		}
		if wasBurning != (b.Remaining > 0) {
			changed = append(changed, id)
		}
	}
	return changed
}

func refuel(b *Burner, fuel FuelFunc) int {
	if fuel == nil {
		return 0
	}
	for i := range b.Slots {
		s := &b.Slots[i]
		if s.Count <= 0 || s.Item == "" {
			continue
		}
		ticks, ok := fuel(s.Item)
		if !ok || ticks <= 0 {
			continue
		}
		s.Count--
		if s.Count == 0 {
			s.Item = ""
		}
		return ticks
	}
	return 0
}

// AddFuel puts count units of item into the first slot that already holds
// item or is empty. It reports false when every slot is taken.
func (e *Engine) AddFuel(id NodeID, item string, count int) bool {
	d, ok := e.devices[id]
	if !ok || d.Burner == nil || count <= 0 {
		return false
	}
	for i := range d.Burner.Slots {
		s := &d.Burner.Slots[i]
		if s.Item == item {
			s.Count += count
			return true
		}
	}
	for i := range d.Burner.Slots {
		s := &d.Burner.Slots[i]
		if s.Item == "" {
			s.Item, s.Count = item, count
			return true
		}
	}
	return false
}
