// Package power maintains per-circuit supply and demand over the wire graph
// of power devices.
//
// A circuit is a connected component of the graph. Membership is maintained
// incrementally on every topology edit: connect merges the smaller circuit
// into the larger, disconnect and device removal re-flood the affected side.
// Totals are recomputed from membership once per tick by Recompute.
package power

import (
	"sort"

	"oreinfinium.net/internal/sim/component"
)

type NodeID uint64

type CircuitID uint64

type Device struct {
	ID      NodeID
	Supply  int
	Demand  int
	Running bool

	Footprint component.Rect
	// Overlay devices take part in the graph but are invisible to DeviceAt.
	Overlay bool

	// Burner is set for combustion generators. Supply only counts while a
	// burn is in progress.
	Burner *Burner
}

type Burner struct {
	Slots     []component.FuelStack
	Remaining int
}

func (d *Device) effectiveSupply() int {
	if !d.Running {
		return 0
	}
	if d.Burner != nil && d.Burner.Remaining <= 0 {
		return 0
	}
	return d.Supply
}

func (d *Device) effectiveDemand() int {
	if !d.Running {
		return 0
	}
	return d.Demand
}

type Totals struct {
	Supply  int
	Demand  int
	Members int
}

// Powered is the admission policy: all consumers of a circuit run when supply
// covers demand, none do otherwise.
func (t Totals) Powered() bool { return t.Supply >= t.Demand }

// Status is a device's view of its circuit after the last Recompute.
type Status struct {
	Circuit     CircuitID
	TotalSupply int
	TotalDemand int
	Powered     bool
}

type Edge struct{ A, B NodeID }

func makeEdge(a, b NodeID) Edge {
	if b < a {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

type Engine struct {
	devices map[NodeID]*Device
	adj     map[NodeID]map[NodeID]struct{}
	edges   int

	circuitOf map[NodeID]CircuitID
	members   map[CircuitID]map[NodeID]struct{}
	next      CircuitID

	totals map[CircuitID]Totals

	wireThickness float32
}

func NewEngine(wireThickness float32) *Engine {
	return &Engine{
		devices:       map[NodeID]*Device{},
		adj:           map[NodeID]map[NodeID]struct{}{},
		circuitOf:     map[NodeID]CircuitID{},
		members:       map[CircuitID]map[NodeID]struct{}{},
		totals:        map[CircuitID]Totals{},
		wireThickness: wireThickness,
	}
}

func (e *Engine) newCircuit() CircuitID {
	e.next++
	e.members[e.next] = map[NodeID]struct{}{}
	return e.next
}

// AddDevice registers d in its own circuit. An existing device with the same
// id is replaced in place and keeps its wires.
func (e *Engine) AddDevice(d Device) {
	if cur, ok := e.devices[d.ID]; ok {
		*cur = d
		return
	}
	dev := d
	e.devices[d.ID] = &dev
	e.adj[d.ID] = map[NodeID]struct{}{}
	c := e.newCircuit()
	e.circuitOf[d.ID] = c
	e.members[c][d.ID] = struct{}{}
}

// RemoveDevice drops the device and every wire touching it.
func (e *Engine) RemoveDevice(id NodeID) {
	if _, ok := e.devices[id]; !ok {
		return
	}
	neighbors := e.sortedNeighbors(id)
	for _, n := range neighbors {
		delete(e.adj[n], id)
		e.edges--
	}
	c := e.circuitOf[id]
	delete(e.members[c], id)
	if len(e.members[c]) == 0 {
		delete(e.members, c)
	}
	delete(e.circuitOf, id)
	delete(e.adj, id)
	delete(e.devices, id)

	// The first neighbour keeps the old circuit; any part no longer reachable
	// from it is split off.
	if len(neighbors) > 0 {
		kept := e.flood(neighbors[0])
		for _, n := range neighbors[1:] {
			if _, ok := kept[n]; ok || e.circuitOf[n] != c {
				continue
			}
			e.assign(e.flood(n), e.newCircuit())
		}
	}
}

func (e *Engine) Device(id NodeID) (*Device, bool) {
	d, ok := e.devices[id]
	return d, ok
}

func (e *Engine) SetRunning(id NodeID, running bool) {
	if d, ok := e.devices[id]; ok {
		d.Running = running
	}
}

// Connect adds the wire a-b. Self loops, unknown devices and existing wires
// are ignored. It reports whether an edge was added.
func (e *Engine) Connect(a, b NodeID) bool {
	if a == b {
		return false
	}
	if _, ok := e.devices[a]; !ok {
		return false
	}
	if _, ok := e.devices[b]; !ok {
		return false
	}
	if _, ok := e.adj[a][b]; ok {
		return false
	}
	e.adj[a][b] = struct{}{}
	e.adj[b][a] = struct{}{}
	e.edges++

	ca, cb := e.circuitOf[a], e.circuitOf[b]
	if ca == cb {
		return true
	}
	// Merge the smaller membership into the larger.
	if len(e.members[ca]) < len(e.members[cb]) {
		ca, cb = cb, ca
	}
	for n := range e.members[cb] {
		e.circuitOf[n] = ca
		e.members[ca][n] = struct{}{}
	}
	delete(e.members, cb)
	delete(e.totals, cb)
	return true
}

// Disconnect removes the wire a-b, splitting the circuit when b is no longer
// reachable from a.
func (e *Engine) Disconnect(a, b NodeID) bool {
	if _, ok := e.adj[a][b]; !ok {
		return false
	}
	delete(e.adj[a], b)
	delete(e.adj[b], a)
	e.edges--

	side := e.flood(a)
	if _, ok := side[b]; ok {
		return true
	}
	e.assign(e.flood(b), e.newCircuit())
	return true
}

// DisconnectAt removes the first wire, in ascending edge order, whose segment
// between device centres passes within half the wire thickness of pt.
func (e *Engine) DisconnectAt(pt component.Point) (Edge, bool) {
	half := e.wireThickness * 0.5
	for _, ed := range e.Edges() {
		a := e.devices[ed.A].Footprint.Center()
		b := e.devices[ed.B].Footprint.Center()
		if segmentDist2(pt, a, b) <= half*half {
			e.Disconnect(ed.A, ed.B)
			return ed, true
		}
	}
	return Edge{}, false
}

// DeviceAt returns the lowest-id non-overlay device whose footprint contains pt.
func (e *Engine) DeviceAt(pt component.Point) (NodeID, bool) {
	for _, id := range e.DeviceIDs() {
		d := e.devices[id]
		if d.Overlay {
			continue
		}
		if d.Footprint.Contains(pt) {
			return id, true
		}
	}
	return 0, false
}

func (e *Engine) Connected(a, b NodeID) bool {
	_, ok := e.adj[a][b]
	return ok
}

func (e *Engine) EdgeCount() int { return e.edges }

func (e *Engine) CircuitCount() int { return len(e.members) }

func (e *Engine) CircuitOf(id NodeID) (CircuitID, bool) {
	c, ok := e.circuitOf[id]
	return c, ok
}

// Members lists a circuit's devices in ascending order.
func (e *Engine) Members(c CircuitID) []NodeID {
	out := make([]NodeID, 0, len(e.members[c]))
	for n := range e.members[c] {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (e *Engine) DeviceIDs() []NodeID {
	out := make([]NodeID, 0, len(e.devices))
	for id := range e.devices {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Edges lists every wire ordered by (A, B) with A < B.
func (e *Engine) Edges() []Edge {
	out := make([]Edge, 0, e.edges)
	for a, ns := range e.adj {
		for b := range ns {
			if a < b {
				out = append(out, makeEdge(a, b))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// Recompute rebuilds per-circuit totals from current membership and
// operational state.
func (e *Engine) Recompute() map[CircuitID]Totals {
	out := make(map[CircuitID]Totals, len(e.members))
	for c := range e.members {
		out[c] = Totals{}
	}
	for id, d := range e.devices {
		c := e.circuitOf[id]
		t := out[c]
		t.Supply += d.effectiveSupply()
		t.Demand += d.effectiveDemand()
		t.Members++
		out[c] = t
	}
	e.totals = out
	return out
}

// Status reflects the last Recompute.
func (e *Engine) Status(id NodeID) (Status, bool) {
	d, ok := e.devices[id]
	if !ok {
		return Status{}, false
	}
	c := e.circuitOf[id]
	t := e.totals[c]
	return Status{
		Circuit:     c,
		TotalSupply: t.Supply,
		TotalDemand: t.Demand,
		Powered:     d.Running && t.Powered(),
	}, true
}

func (e *Engine) sortedNeighbors(id NodeID) []NodeID {
	out := make([]NodeID, 0, len(e.adj[id]))
	for n := range e.adj[id] {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (e *Engine) flood(start NodeID) map[NodeID]struct{} {
	visited := map[NodeID]struct{}{start: {}}
	q := []NodeID{start}
	for len(q) > 0 {
		n := q[0]
		q = q[1:]
		for m := range e.adj[n] {
			if _, ok := visited[m]; ok {
				continue
			}
			visited[m] = struct{}{}
			q = append(q, m)
		}
	}
	return visited
}

func (e *Engine) assign(nodes map[NodeID]struct{}, c CircuitID) {
	for n := range nodes {
		old := e.circuitOf[n]
		delete(e.members[old], n)
		if len(e.members[old]) == 0 {
			delete(e.members, old)
			delete(e.totals, old)
		}
		e.circuitOf[n] = c
		e.members[c][n] = struct{}{}
	}
}

func segmentDist2(p, a, b component.Point) float32 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	t := float32(0)
	if l2 > 0 {
		t = ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}
	cx, cy := a.X+t*dx-p.X, a.Y+t*dy-p.Y
	return cx*cx + cy*cy
}
