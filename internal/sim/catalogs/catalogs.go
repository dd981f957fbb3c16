// Package catalogs holds the read-only registries every simulation instance
// is built with: texture assets and item definitions.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type Catalogs struct {
	Textures TextureCatalog
	Items    ItemCatalog
}

type TextureCatalog struct {
	ByName map[string]TextureDef
	Digest string
}

type TextureDef struct {
	Name   string `yaml:"name"`
	Atlas  string `yaml:"atlas"`
	Region [4]int `yaml:"region"` // x, y, w, h in atlas pixels
}

type ItemCatalog struct {
	Palette []string
	Index   map[string]uint16
	Defs    map[string]ItemDef
	Digest  string
}

// Item kinds.
const (
	KindBlock    = "BLOCK"
	KindTool     = "TOOL"
	KindDevice   = "DEVICE"
	KindMaterial = "MATERIAL"
)

type ItemDef struct {
	ID        string     `yaml:"id"`
	Kind      string     `yaml:"kind"`
	Texture   string     `yaml:"texture"`
	Size      [2]float32 `yaml:"size"`
	MaxStack  int        `yaml:"max_stack"`
	PlaceAs   uint8      `yaml:"place_as,omitempty"`  // block type for BLOCK items
	ToolType  string     `yaml:"tool_type,omitempty"` // for TOOL items
	Fuel      bool       `yaml:"fuel,omitempty"`
	BurnTicks int        `yaml:"burn_ticks,omitempty"` // 0 means the tuning default
	Device    *DeviceDef `yaml:"device,omitempty"`
}

type DeviceDef struct {
	Generator  string `yaml:"generator,omitempty"` // "COMBUSTION", "SOLAR"
	SupplyRate int    `yaml:"supply_rate,omitempty"`
	DemandRate int    `yaml:"demand_rate,omitempty"`
	FuelSlots  int    `yaml:"fuel_slots,omitempty"`
}

func (d ItemDef) Burnable() bool { return d.Fuel }

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadTextures(filepath.Join(configDir, "textures.yaml"), &c.Textures); err != nil {
		return nil, err
	}
	if err := loadItems(filepath.Join(configDir, "items.yaml"), &c.Items); err != nil {
		return nil, err
	}
	for _, id := range c.Items.Palette {
		d := c.Items.Defs[id]
		if _, ok := c.Textures.ByName[d.Texture]; !ok {
			return nil, fmt.Errorf("items.yaml: %s: unknown texture %q", id, d.Texture)
		}
	}
	return &c, nil
}

// Texture is the asset-name lookup every spawn goes through. A miss is an
// error rather than a fallback sprite.
func (c *Catalogs) Texture(name string) (TextureDef, error) {
	t, ok := c.Textures.ByName[name]
	if !ok {
		return TextureDef{}, fmt.Errorf("texture %q not found", name)
	}
	return t, nil
}

func (c *Catalogs) Item(id string) (ItemDef, bool) {
	d, ok := c.Items.Defs[id]
	return d, ok
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadTextures(path string, out *TextureCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []TextureDef
	if err := yaml.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("textures.yaml: %w", err)
	}
	out.ByName = map[string]TextureDef{}
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("textures.yaml: empty name")
		}
		if _, dup := out.ByName[d.Name]; dup {
			return fmt.Errorf("textures.yaml: duplicate name %q", d.Name)
		}
		out.ByName[d.Name] = d
	}
	return nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ItemDef
	if err := yaml.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.yaml: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.yaml: empty id")
		}
		switch d.Kind {
		case KindBlock, KindTool, KindMaterial:
		case KindDevice:
			if d.Device == nil {
				return fmt.Errorf("items.yaml: %s: device item without device block", d.ID)
			}
		default:
			return fmt.Errorf("items.yaml: %s: unknown kind %q", d.ID, d.Kind)
		}
		if d.MaxStack <= 0 {
			d.MaxStack = 1
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	return nil
}
