package protocol

import "oreinfinium.net/internal/sim/component"

// Shared.

type DisconnectReason struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// BlockRegion covers the inclusive rectangle [X..X2] x [Y..Y2], row-major from
// Y upward. Cells is the packed cell stream produced by terrain.EncodeCells.
type BlockRegion struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	X2       int    `json:"x2"`
	Y2       int    `json:"y2"`
	Encoding string `json:"encoding"` // "RLE" or "RLE_ZSTD"
	Cells    string `json:"cells"`
}

type CellFields struct {
	Type       uint8 `json:"type"`
	WallType   uint8 `json:"wall_type"`
	LightLevel uint8 `json:"light_level"`
	Flags      uint8 `json:"flags"`
}

type SparseBlock struct {
	X     int        `json:"x"`
	Y     int        `json:"y"`
	Block CellFields `json:"block"`
}

type SparseBlockUpdate struct {
	Blocks []SparseBlock `json:"blocks"`
}

type Ping struct {
	SentUnixMilli int64 `json:"sent_unix_milli,omitempty"`
}

type KeepAlive struct{}

// Unknown stands in for a frame the decoder could not place in the taxonomy.
type Unknown struct {
	Type string `json:"-"`
}

// Server -> client.

type LoadedViewportMoved struct {
	Rect component.Rect `json:"rect"`
}

type PlayerSpawned struct {
	NetworkID    NetworkID          `json:"network_id,omitempty"`
	ConnectionID uint64             `json:"connection_id"`
	PlayerName   string             `json:"player_name"`
	Position     component.Position `json:"position"`
}

type PlayerSpawnHotbarInventoryItem struct {
	NetworkID            NetworkID      `json:"network_id,omitempty"`
	Components           component.List `json:"components"`
	TextureName          string         `json:"texture_name"`
	Size                 component.Size `json:"size"`
	InventoryIndex       int            `json:"inventory_index"`
	CausedByPickedUpItem bool           `json:"caused_by_picked_up_item,omitempty"`
}

type EntitySpawn struct {
	NetworkID   NetworkID          `json:"network_id"`
	Components  component.List     `json:"components"`
	TextureName string             `json:"texture_name"`
	Size        component.Size     `json:"size"`
	Position    component.Position `json:"position"`
}

type EntitySpawnMultiple struct {
	Entities []EntitySpawn `json:"entities"`
}

type EntityDestroyMultiple struct {
	Entities []NetworkID `json:"entities"`
}

type EntityKilled struct {
	NetworkID NetworkID `json:"network_id"`
}

type EntityMoved struct {
	NetworkID NetworkID          `json:"network_id"`
	Position  component.Position `json:"position"`
}

// Chat senders.
const (
	ChatSenderPlayer = "PLAYER"
	ChatSenderServer = "SERVER"
)

type ChatMessage struct {
	Timestamp  string `json:"timestamp"`
	PlayerName string `json:"player_name"`
	Message    string `json:"message"`
	Sender     string `json:"sender"`
}

type DeviceCircuit struct {
	NetworkID   NetworkID `json:"network_id"`
	Circuit     uint64    `json:"circuit_id"`
	TotalSupply int       `json:"total_supply"`
	TotalDemand int       `json:"total_demand"`
	Powered     bool      `json:"powered"`
}

type CircuitUpdated struct {
	Devices []DeviceCircuit `json:"devices"`
}

// Client -> server.

type InitialClientData struct {
	PlayerName      string `json:"player_name"`
	ClientUUID      string `json:"client_uuid"`
	VersionMajor    int    `json:"version_major"`
	VersionMinor    int    `json:"version_minor"`
	VersionRevision int    `json:"version_revision"`
}

// Inventory types.
const (
	InventoryHotbar = "HOTBAR"
	InventoryMain   = "MAIN"
)

const HotbarSlots = 9

type PlayerMoveInventoryItem struct {
	SourceType  string `json:"source_type"`
	SourceIndex int    `json:"source_index"`
	DestType    string `json:"dest_type"`
	DestIndex   int    `json:"dest_index"`
}

type EntityAttack struct {
	NetworkID NetworkID `json:"network_id"`
}

type PlayerMove struct {
	Position component.Position `json:"position"`
}

type ChatSend struct {
	Message string `json:"message"`
}

type PlayerEquipHotbarIndex struct {
	Index int `json:"index"`
}

type BlockDigBegin struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type BlockDigFinish struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type BlockPlace struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type ItemPlace struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

type PowerWireConnect struct {
	Source NetworkID `json:"source_network_id"`
	Target NetworkID `json:"target_network_id"`
}

type PowerWireDisconnect struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

type PowerDeviceToggle struct {
	NetworkID NetworkID `json:"network_id"`
	Running   bool      `json:"running"`
}

func (*DisconnectReason) Kind() string               { return KindDisconnectReason }
func (*BlockRegion) Kind() string                    { return KindBlockRegion }
func (*SparseBlockUpdate) Kind() string              { return KindSparseBlockUpdate }
func (*Ping) Kind() string                           { return KindPing }
func (*KeepAlive) Kind() string                      { return KindKeepAlive }
func (u *Unknown) Kind() string                      { return u.Type }
func (*LoadedViewportMoved) Kind() string            { return KindLoadedViewportMoved }
func (*PlayerSpawned) Kind() string                  { return KindPlayerSpawned }
func (*PlayerSpawnHotbarInventoryItem) Kind() string { return KindPlayerSpawnHotbarInventoryItem }
func (*EntitySpawnMultiple) Kind() string            { return KindEntitySpawnMultiple }
func (*EntityDestroyMultiple) Kind() string          { return KindEntityDestroyMultiple }
func (*EntityKilled) Kind() string                   { return KindEntityKilled }
func (*EntityMoved) Kind() string                    { return KindEntityMoved }
func (*ChatMessage) Kind() string                    { return KindChatMessage }
func (*CircuitUpdated) Kind() string                 { return KindCircuitUpdated }
func (*InitialClientData) Kind() string              { return KindInitialClientData }
func (*PlayerMoveInventoryItem) Kind() string        { return KindPlayerMoveInventoryItem }
func (*EntityAttack) Kind() string                   { return KindEntityAttack }
func (*PlayerMove) Kind() string                     { return KindPlayerMove }
func (*ChatSend) Kind() string                       { return KindChatSend }
func (*PlayerEquipHotbarIndex) Kind() string         { return KindPlayerEquipHotbarIndex }
func (*BlockDigBegin) Kind() string                  { return KindBlockDigBegin }
func (*BlockDigFinish) Kind() string                 { return KindBlockDigFinish }
func (*BlockPlace) Kind() string                     { return KindBlockPlace }
func (*ItemPlace) Kind() string                      { return KindItemPlace }
func (*PowerWireConnect) Kind() string               { return KindPowerWireConnect }
func (*PowerWireDisconnect) Kind() string            { return KindPowerWireDisconnect }
func (*PowerDeviceToggle) Kind() string              { return KindPowerDeviceToggle }

func (*DisconnectReason) isMessage()               {}
func (*BlockRegion) isMessage()                    {}
func (*SparseBlockUpdate) isMessage()              {}
func (*Ping) isMessage()                           {}
func (*KeepAlive) isMessage()                      {}
func (*Unknown) isMessage()                        {}
func (*LoadedViewportMoved) isMessage()            {}
func (*PlayerSpawned) isMessage()                  {}
func (*PlayerSpawnHotbarInventoryItem) isMessage() {}
func (*EntitySpawnMultiple) isMessage()            {}
func (*EntityDestroyMultiple) isMessage()          {}
func (*EntityKilled) isMessage()                   {}
func (*EntityMoved) isMessage()                    {}
func (*ChatMessage) isMessage()                    {}
func (*CircuitUpdated) isMessage()                 {}
func (*InitialClientData) isMessage()              {}
func (*PlayerMoveInventoryItem) isMessage()        {}
func (*EntityAttack) isMessage()                   {}
func (*PlayerMove) isMessage()                     {}
func (*ChatSend) isMessage()                       {}
func (*PlayerEquipHotbarIndex) isMessage()         {}
func (*BlockDigBegin) isMessage()                  {}
func (*BlockDigFinish) isMessage()                 {}
func (*BlockPlace) isMessage()                     {}
func (*ItemPlace) isMessage()                      {}
func (*PowerWireConnect) isMessage()               {}
func (*PowerWireDisconnect) isMessage()            {}
func (*PowerDeviceToggle) isMessage()              {}
