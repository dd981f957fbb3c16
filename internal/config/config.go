// Package config loads tuning.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ProtocolVersion Version `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`

	World    World    `yaml:"world"`
	Network  Network  `yaml:"network"`
	Power    Power    `yaml:"power"`
	Viewport Viewport `yaml:"viewport"`

	StarterHotbar []string `yaml:"starter_hotbar"`
}

type Version struct {
	Major    int `yaml:"major"`
	Minor    int `yaml:"minor"`
	Revision int `yaml:"revision"`
}

type World struct {
	Width    int `yaml:"width"`
	Height   int `yaml:"height"`
	SeaLevel int `yaml:"sea_level"`
}

type Network struct {
	LagMinMs           int  `yaml:"lag_min_ms"`
	LagMaxMs           int  `yaml:"lag_max_ms"`
	DebugPacketStats   bool `yaml:"debug_packet_stats"`
	OutboundQueue      int  `yaml:"outbound_queue"`
	HandshakeTimeoutMs int  `yaml:"handshake_timeout_ms"`
}

type Power struct {
	WireThickness float32 `yaml:"wire_thickness"`
	FuelBurnTicks int     `yaml:"fuel_burn_ticks"`
}

type Viewport struct {
	HalfWidth  int `yaml:"half_width"`
	HalfHeight int `yaml:"half_height"`
}

func Defaults() Config {
	return Config{
		ProtocolVersion: Version{Major: 0, Minor: 1, Revision: 0},
		TickRateHz:      20,
		World:           World{Width: 256, Height: 128, SeaLevel: 64},
		Network: Network{
			OutboundQueue:      1024,
			HandshakeTimeoutMs: 5000,
		},
		Power:         Power{WireThickness: 0.5, FuelBurnTicks: 100},
		Viewport:      Viewport{HalfWidth: 24, HalfHeight: 16},
		StarterHotbar: []string{"pickaxe", "dirt", "combustion_generator", "lamp", "coal"},
	}
}

// Load reads path over Defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("tuning.yaml: %w", err)
	}
	return c, nil
}

func (c Config) Validate() error {
	switch {
	case c.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be > 0")
	case c.World.Width <= 0 || c.World.Height <= 0:
		return fmt.Errorf("world size must be > 0")
	case c.Network.LagMinMs < 0 || c.Network.LagMaxMs < c.Network.LagMinMs:
		return fmt.Errorf("network lag bounds invalid: [%d, %d]", c.Network.LagMinMs, c.Network.LagMaxMs)
	case c.Network.OutboundQueue <= 0:
		return fmt.Errorf("network.outbound_queue must be > 0")
	case c.Power.WireThickness <= 0:
		return fmt.Errorf("power.wire_thickness must be > 0")
	case c.Power.FuelBurnTicks <= 0:
		return fmt.Errorf("power.fuel_burn_ticks must be > 0")
	}
	return nil
}

func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRateHz)
}

func (n Network) LagBounds() (time.Duration, time.Duration) {
	return time.Duration(n.LagMinMs) * time.Millisecond, time.Duration(n.LagMaxMs) * time.Millisecond
}

func (n Network) HandshakeTimeout() time.Duration {
	return time.Duration(n.HandshakeTimeoutMs) * time.Millisecond
}
