package component

// Component kinds. The set is closed: only kinds registered in wireKinds may
// travel inside spawn messages.
const (
	KindPosition       = "POSITION"
	KindSize           = "SIZE"
	KindSprite         = "SPRITE"
	KindItem           = "ITEM"
	KindTool           = "TOOL"
	KindBlock          = "BLOCK"
	KindPlayer         = "PLAYER"
	KindPowerDevice    = "POWER_DEVICE"
	KindPowerGenerator = "POWER_GENERATOR"
	KindPowerConsumer  = "POWER_CONSUMER"
	KindOverlay        = "OVERLAY"
	KindKilled         = "KILLED"
)

// Component is a typed record attached to an entity. Implementations use
// pointer receivers so a nil pointer still reports its kind.
type Component interface {
	Kind() string
}

type Position struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (*Position) Kind() string { return KindPosition }

func (p *Position) Point() Point { return Point{X: p.X, Y: p.Y} }

type Size struct {
	W float32 `json:"w"`
	H float32 `json:"h"`
}

func (*Size) Kind() string { return KindSize }

// Sprite is client-only. TextureName comes from the wire; Atlas and Region
// are derived from the texture registry when the entity is spawned.
type Sprite struct {
	TextureName string `json:"texture_name"`
	Atlas       string `json:"-"`
	Region      [4]int `json:"-"`
}

func (*Sprite) Kind() string { return KindSprite }

// Item states.
const (
	ItemInInventory = "IN_INVENTORY"
	ItemDropped     = "DROPPED"
	ItemPlaced      = "PLACED"
)

type Item struct {
	ID             string `json:"id"`
	StackSize      int    `json:"stack_size"`
	MaxStackSize   int    `json:"max_stack_size"`
	InventoryIndex int    `json:"inventory_index"`
	State          string `json:"state"`
}

func (*Item) Kind() string { return KindItem }

type Tool struct {
	Type string `json:"type"` // "PICKAXE","AXE","BUCKET"
}

func (*Tool) Kind() string { return KindTool }

// Block marks an item that places a terrain cell of BlockType.
type Block struct {
	BlockType uint8 `json:"block_type"`
}

func (*Block) Kind() string { return KindBlock }

type Player struct {
	Name           string `json:"name"`
	ConnectionID   uint64 `json:"connection_id"`
	LoadedViewport Rect   `json:"loaded_viewport"`
	EquippedIndex  int    `json:"equipped_index"`
}

func (*Player) Kind() string { return KindPlayer }

// PowerDevice is present on every entity that participates in the wire graph.
// The circuit fields are a client-side mirror of the server's last report.
type PowerDevice struct {
	Running bool `json:"running"`

	Circuit     uint64 `json:"circuit,omitempty"`
	TotalSupply int    `json:"total_supply,omitempty"`
	TotalDemand int    `json:"total_demand,omitempty"`
	Powered     bool   `json:"powered,omitempty"`
}

func (*PowerDevice) Kind() string { return KindPowerDevice }

// Generator types.
const (
	GeneratorCombustion = "COMBUSTION"
	GeneratorSolar      = "SOLAR"
)

type FuelStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type PowerGenerator struct {
	Type       string      `json:"type"`
	SupplyRate int         `json:"supply_rate"`
	FuelSlots  []FuelStack `json:"fuel_slots,omitempty"`
}

func (*PowerGenerator) Kind() string { return KindPowerGenerator }

type PowerConsumer struct {
	DemandRate int `json:"demand_rate"`
}

func (*PowerConsumer) Kind() string { return KindPowerConsumer }

// Overlay marks local-only placement/cursor entities. They never take part in
// footprint queries and never enter the identity map.
type Overlay struct{}

func (*Overlay) Kind() string { return KindOverlay }

type Killed struct{}

func (*Killed) Kind() string { return KindKilled }
