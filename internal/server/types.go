package server

import (
	"time"

	"oreinfinium.net/internal/protocol"
)

// JoinRequest is submitted by the transport once the first frame of a
// connection has been decoded. Out is owned by the transport's writer.
type JoinRequest struct {
	Hello protocol.InitialClientData
	Out   chan []byte
	Resp  chan JoinResponse
}

// JoinResponse either carries a session or the reason the handshake was
// refused. Done is closed when the world drops the session.
type JoinResponse struct {
	SessionID uint64
	Done      <-chan struct{}
	Reject    *protocol.DisconnectReason
}

// Inbound is one entry of the world's inbound queue. Exactly one of Join,
// Leave or Msg is set.
type Inbound struct {
	Session uint64
	Join    *JoinRequest
	Leave   bool
	Msg     protocol.Message
	Err     error
}

// Observer receives runtime signals from the world loop.
type Observer interface {
	Received(kind string)
	Sent(kind string)
	SessionOpened()
	SessionClosed(reason string)
	Tick(d time.Duration, sessions, circuits, queueDepth int)
}

type TraceLogger interface {
	WriteTick(TickTrace) error
}

type TickTrace struct {
	Tick       uint64         `json:"tick"`
	Sessions   int            `json:"sessions"`
	Circuits   int            `json:"circuits"`
	Received   map[string]int `json:"received,omitempty"`
	Joins      []uint64       `json:"joins,omitempty"`
	Leaves     []uint64       `json:"leaves,omitempty"`
	Kicks      []KickTrace    `json:"kicks,omitempty"`
	Updated    int            `json:"circuit_updates,omitempty"`
	DurationUS int64          `json:"duration_us"`
}

type KickTrace struct {
	Session uint64 `json:"session"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

// SessionIndex records session lifecycles for later inspection.
type SessionIndex interface {
	RecordSession(SessionRecord)
	RecordDisconnect(DisconnectRecord)
}

type SessionRecord struct {
	Session    uint64
	PlayerName string
	ClientUUID string
	Version    string
	Tick       uint64
	At         time.Time
}

type DisconnectRecord struct {
	Session uint64
	Reason  string
	Detail  string
	Tick    uint64
	At      time.Time
}
