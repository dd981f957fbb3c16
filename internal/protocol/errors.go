package protocol

import (
	"errors"
	"fmt"
)

// Disconnect reasons carried in DisconnectReason.
const (
	ReasonVersionMismatch = "VERSION_MISMATCH"
	ReasonBadHandshake    = "BAD_HANDSHAKE"
	ReasonDesync          = "DESYNC"
	ReasonProtocolError   = "PROTOCOL_ERROR"
	ReasonSlowConsumer    = "SLOW_CONSUMER"
	ReasonServerShutdown  = "SERVER_SHUTDOWN"
	ReasonKicked          = "KICKED"
	ReasonClientQuit      = "CLIENT_QUIT"
)

var knownReasons = map[string]struct{}{
	ReasonVersionMismatch: {},
	ReasonBadHandshake:    {},
	ReasonDesync:          {},
	ReasonProtocolError:   {},
	ReasonSlowConsumer:    {},
	ReasonServerShutdown:  {},
	ReasonKicked:          {},
	ReasonClientQuit:      {},
}

func IsKnownReason(reason string) bool {
	_, ok := knownReasons[reason]
	return ok
}

var ErrUnknownKind = errors.New("unknown message kind")

// ProtocolError means the peers disagree about the wire protocol. It is never
// recoverable by retrying.
type ProtocolError struct {
	Kind   string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := "protocol error"
	if e.Kind != "" {
		msg += fmt.Sprintf(" (kind %q)", e.Kind)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }
