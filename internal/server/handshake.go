package server

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"oreinfinium.net/internal/protocol"
)

// ValidateHandshake returns nil when hello may join, otherwise the
// DisconnectReason to send before closing.
func ValidateHandshake(hello protocol.InitialClientData) *protocol.DisconnectReason {
	if hello.VersionMajor != protocol.VersionMajor ||
		hello.VersionMinor != protocol.VersionMinor ||
		hello.VersionRevision != protocol.VersionRevision {
		return &protocol.DisconnectReason{
			Reason: protocol.ReasonVersionMismatch,
			Message: fmt.Sprintf("client %d.%d.%d, server %s",
				hello.VersionMajor, hello.VersionMinor, hello.VersionRevision, protocol.Version),
		}
	}
	if strings.TrimSpace(hello.PlayerName) == "" {
		return &protocol.DisconnectReason{Reason: protocol.ReasonBadHandshake, Message: "empty player name"}
	}
	if _, err := uuid.Parse(hello.ClientUUID); err != nil {
		return &protocol.DisconnectReason{Reason: protocol.ReasonBadHandshake, Message: "bad client uuid"}
	}
	return nil
}
