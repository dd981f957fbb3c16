package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	VersionMajor    = 0
	VersionMinor    = 1
	VersionRevision = 0
)

// Version is the dotted form of the protocol version, used in logs and schemas.
var Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionRevision)

// NetworkID is assigned by the server when an entity is created and is stable
// for the entity's networked lifetime.
type NetworkID uint64

// Message kinds.
const (
	// Shared.
	KindDisconnectReason  = "DISCONNECT_REASON"
	KindBlockRegion       = "BLOCK_REGION"
	KindSparseBlockUpdate = "SPARSE_BLOCK_UPDATE"
	KindPing              = "PING"
	KindKeepAlive         = "KEEP_ALIVE"

	// Server -> client.
	KindLoadedViewportMoved            = "LOADED_VIEWPORT_MOVED"
	KindPlayerSpawned                  = "PLAYER_SPAWNED"
	KindPlayerSpawnHotbarInventoryItem = "PLAYER_SPAWN_HOTBAR_INVENTORY_ITEM"
	KindEntitySpawnMultiple            = "ENTITY_SPAWN_MULTIPLE"
	KindEntityDestroyMultiple          = "ENTITY_DESTROY_MULTIPLE"
	KindEntityKilled                   = "ENTITY_KILLED"
	KindEntityMoved                    = "ENTITY_MOVED"
	KindChatMessage                    = "CHAT_MESSAGE"
	KindCircuitUpdated                 = "CIRCUIT_UPDATED"

	// Client -> server.
	KindInitialClientData       = "INITIAL_CLIENT_DATA"
	KindPlayerMoveInventoryItem = "PLAYER_MOVE_INVENTORY_ITEM"
	KindEntityAttack            = "ENTITY_ATTACK"
	KindPlayerMove              = "PLAYER_MOVE"
	KindChatSend                = "CHAT_SEND"
	KindPlayerEquipHotbarIndex  = "PLAYER_EQUIP_HOTBAR_INDEX"
	KindBlockDigBegin           = "BLOCK_DIG_BEGIN"
	KindBlockDigFinish          = "BLOCK_DIG_FINISH"
	KindBlockPlace              = "BLOCK_PLACE"
	KindItemPlace               = "ITEM_PLACE"
	KindPowerWireConnect        = "POWER_WIRE_CONNECT"
	KindPowerWireDisconnect     = "POWER_WIRE_DISCONNECT"
	KindPowerDeviceToggle       = "POWER_DEVICE_TOGGLE"
)

// Message is implemented only by the types in this package.
type Message interface {
	Kind() string
	isMessage()
}

var kinds = map[string]func() Message{
	KindDisconnectReason:               func() Message { return &DisconnectReason{} },
	KindBlockRegion:                    func() Message { return &BlockRegion{} },
	KindSparseBlockUpdate:              func() Message { return &SparseBlockUpdate{} },
	KindPing:                           func() Message { return &Ping{} },
	KindKeepAlive:                      func() Message { return &KeepAlive{} },
	KindLoadedViewportMoved:            func() Message { return &LoadedViewportMoved{} },
	KindPlayerSpawned:                  func() Message { return &PlayerSpawned{} },
	KindPlayerSpawnHotbarInventoryItem: func() Message { return &PlayerSpawnHotbarInventoryItem{} },
	KindEntitySpawnMultiple:            func() Message { return &EntitySpawnMultiple{} },
	KindEntityDestroyMultiple:          func() Message { return &EntityDestroyMultiple{} },
	KindEntityKilled:                   func() Message { return &EntityKilled{} },
	KindEntityMoved:                    func() Message { return &EntityMoved{} },
	KindChatMessage:                    func() Message { return &ChatMessage{} },
	KindCircuitUpdated:                 func() Message { return &CircuitUpdated{} },
	KindInitialClientData:              func() Message { return &InitialClientData{} },
	KindPlayerMoveInventoryItem:        func() Message { return &PlayerMoveInventoryItem{} },
	KindEntityAttack:                   func() Message { return &EntityAttack{} },
	KindPlayerMove:                     func() Message { return &PlayerMove{} },
	KindChatSend:                       func() Message { return &ChatSend{} },
	KindPlayerEquipHotbarIndex:         func() Message { return &PlayerEquipHotbarIndex{} },
	KindBlockDigBegin:                  func() Message { return &BlockDigBegin{} },
	KindBlockDigFinish:                 func() Message { return &BlockDigFinish{} },
	KindBlockPlace:                     func() Message { return &BlockPlace{} },
	KindItemPlace:                      func() Message { return &ItemPlace{} },
	KindPowerWireConnect:               func() Message { return &PowerWireConnect{} },
	KindPowerWireDisconnect:            func() Message { return &PowerWireDisconnect{} },
	KindPowerDeviceToggle:              func() Message { return &PowerDeviceToggle{} },
}

// IsIgnorable reports framework keep-alive traffic that handlers skip.
func IsIgnorable(kind string) bool {
	return kind == KindPing || kind == KindKeepAlive
}

// IsKnownKind reports whether kind belongs to the closed taxonomy.
func IsKnownKind(kind string) bool {
	_, ok := kinds[kind]
	return ok
}

// Envelope is the wire frame: the kind routes the payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeBase reads only the routing tag.
func DecodeBase(b []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(b, &env)
	return env, err
}

func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, errors.New("encode: nil message")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return json.Marshal(Envelope{Type: m.Kind(), Data: data})
}

// Decode parses one frame. A frame whose type is outside the taxonomy yields
// an *Unknown message and an error wrapping ErrUnknownKind, so callers can
// still queue it and let the dispatch loop fail in arrival order.
func Decode(b []byte) (Message, error) {
	env, err := DecodeBase(b)
	if err != nil {
		return &Unknown{}, &ProtocolError{Reason: "malformed frame", Err: err}
	}
	mk, ok := kinds[env.Type]
	if !ok {
		return &Unknown{Type: env.Type}, &ProtocolError{Kind: env.Type, Err: ErrUnknownKind}
	}
	m := mk()
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, m); err != nil {
			return &Unknown{Type: env.Type}, &ProtocolError{Kind: env.Type, Reason: "bad payload", Err: err}
		}
	}
	return m, nil
}
