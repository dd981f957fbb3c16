package client

import (
	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/component"
	"oreinfinium.net/internal/sim/entity"
)

type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (d DragState) String() string {
	if d == Dragging {
		return "DRAGGING"
	}
	return "IDLE"
}

// WireDrag is the wire authoring gesture. Only the source survives between
// ticks; the outcome belongs to the server.
type WireDrag struct {
	state  DragState
	source entity.ID
}

func (d *WireDrag) reset() {
	d.state = Idle
	d.source = entity.Invalid
}

// PressAt starts a drag when pt is over a device.
func (s *Session) PressAt(pt component.Point) {
	id, ok := s.deviceAt(pt)
	if !ok {
		s.drag.reset()
		return
	}
	s.drag.state = Dragging
	s.drag.source = id
}

// ReleaseAt ends the drag. Releasing over a different device asks the server
// to connect the two; anything else is a no-op. It reports whether a request
// was sent.
func (s *Session) ReleaseAt(pt component.Point) (bool, error) {
	if s.drag.state != Dragging {
		return false, nil
	}
	src := s.drag.source
	s.drag.reset()

	dst, ok := s.deviceAt(pt)
	if !ok || dst == src {
		return false, nil
	}
	srcNet, err := s.ids.ResolveNetwork(src)
	if err != nil {
		s.desync("wire")
		return false, err
	}
	dstNet, err := s.ids.ResolveNetwork(dst)
	if err != nil {
		s.desync("wire")
		return false, err
	}
	return true, s.send(&protocol.PowerWireConnect{Source: srcNet, Target: dstNet})
}

// CancelDrag abandons a drag without a request.
func (s *Session) CancelDrag() { s.drag.reset() }

// CutWireAt asks the server to remove the wire under pt.
func (s *Session) CutWireAt(pt component.Point) error {
	return s.send(&protocol.PowerWireDisconnect{X: pt.X, Y: pt.Y})
}
