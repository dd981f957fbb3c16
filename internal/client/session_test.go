package client

import (
	"bytes"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/catalogs"
	"oreinfinium.net/internal/sim/component"
	"oreinfinium.net/internal/sim/entity"
	"oreinfinium.net/internal/sim/identity"
	"oreinfinium.net/internal/transport/queue"
)

type recorder struct {
	msgs []protocol.Message
}

func (r *recorder) Send(m protocol.Message) error {
	r.msgs = append(r.msgs, m)
	return nil
}

type listener struct {
	connected    []entity.ID
	disconnected []protocol.DisconnectReason
}

func (l *listener) Connected(id entity.ID)                   { l.connected = append(l.connected, id) }
func (l *listener) Disconnected(r protocol.DisconnectReason) { l.disconnected = append(l.disconnected, r) }

func newTestSession(t *testing.T) (*Session, *recorder) {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	out := &recorder{}
	s := NewSession(Options{Catalogs: cats, Out: out, WorldWidth: 64, WorldHeight: 64})
	return s, out
}

func tick(t *testing.T, s *Session, ms ...protocol.Message) error {
	t.Helper()
	q := &queue.Queue[protocol.Message]{}
	for _, m := range ms {
		q.Push(m)
	}
	err := s.Tick(q)
	if q.Len() != 0 {
		t.Fatalf("queue not drained: %d left", q.Len())
	}
	return err
}

func coal(nid protocol.NetworkID) protocol.EntitySpawn {
	return protocol.EntitySpawn{
		NetworkID:   nid,
		Components:  component.List{&component.Item{ID: "coal", StackSize: 1, MaxStackSize: 64, State: component.ItemDropped}},
		TextureName: "coal",
		Size:        component.Size{W: 0.5, H: 0.5},
		Position:    component.Position{X: float32(nid), Y: 1},
	}
}

func spawnMany(nids ...protocol.NetworkID) *protocol.EntitySpawnMultiple {
	m := &protocol.EntitySpawnMultiple{}
	for _, n := range nids {
		m.Entities = append(m.Entities, coal(n))
	}
	return m
}

func networkIDs(m *identity.Map) []protocol.NetworkID {
	var out []protocol.NetworkID
	for _, e := range m.Entries() {
		out = append(out, e.NetworkID)
	}
	return out
}

func TestReconnectStorm(t *testing.T) {
	s, _ := newTestSession(t)

	if err := tick(t, s, spawnMany(101, 102, 103)); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := tick(t, s, &protocol.EntityDestroyMultiple{Entities: []protocol.NetworkID{102}}); err != nil {
		t.Fatalf("first destroy: %v", err)
	}
	err := tick(t, s, &protocol.EntityDestroyMultiple{Entities: []protocol.NetworkID{102}})
	if !errors.Is(err, identity.ErrDesync) {
		t.Fatalf("second destroy: want desync, got %v", err)
	}

	for _, nid := range []protocol.NetworkID{101, 103} {
		id, err := s.Identity().ResolveLocal(nid)
		if err != nil {
			t.Fatalf("resolve %d: %v", nid, err)
		}
		if !s.Store().Exists(id) {
			t.Fatalf("entity for %d missing", nid)
		}
	}
	if s.Store().Len() != 2 || s.Identity().Len() != 2 {
		t.Fatalf("store=%d map=%d, want 2/2", s.Store().Len(), s.Identity().Len())
	}
	if err := s.Identity().Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSpawnMultiple_MappingFollowsItemOrder(t *testing.T) {
	s, _ := newTestSession(t)
	if err := tick(t, s, spawnMany(7, 3, 9, 1)); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if diff := cmp.Diff([]protocol.NetworkID{7, 3, 9, 1}, networkIDs(s.Identity())); diff != "" {
		t.Fatalf("insert order (-want +got):\n%s", diff)
	}

	id, _ := s.Identity().ResolveLocal(9)
	pos, ok := entity.Get[*component.Position](s.Store(), id)
	if !ok || pos.X != 9 {
		t.Fatalf("position of 9: %+v", pos)
	}
	sp, ok := entity.Get[*component.Sprite](s.Store(), id)
	if !ok || sp.Atlas != "items" {
		t.Fatalf("sprite: %+v", sp)
	}
	item, ok := entity.Get[*component.Item](s.Store(), id)
	if !ok || item.ID != "coal" {
		t.Fatalf("item payload not attached verbatim: %+v", item)
	}
}

func TestSpawnMultiple_DuplicateSurfacedRestApplied(t *testing.T) {
	s, _ := newTestSession(t)
	err := tick(t, s, spawnMany(1, 1, 2))
	if !errors.Is(err, identity.ErrDesync) {
		t.Fatalf("want desync, got %v", err)
	}
	if s.Store().Len() != 2 {
		t.Fatalf("store: got %d entities, want 2", s.Store().Len())
	}
	if diff := cmp.Diff([]protocol.NetworkID{1, 2}, networkIDs(s.Identity())); diff != "" {
		t.Fatalf("mapping (-want +got):\n%s", diff)
	}
}

func TestSpawnMultiple_ZeroNetworkIDRejected(t *testing.T) {
	s, _ := newTestSession(t)
	err := tick(t, s, spawnMany(3, 0, 4))
	if !errors.Is(err, identity.ErrDesync) {
		t.Fatalf("want desync, got %v", err)
	}
	if s.Store().Len() != 2 {
		t.Fatalf("store: got %d entities, want 2", s.Store().Len())
	}
	if diff := cmp.Diff([]protocol.NetworkID{3, 4}, networkIDs(s.Identity())); diff != "" {
		t.Fatalf("mapping (-want +got):\n%s", diff)
	}
}

func TestSpawn_MissingTexture(t *testing.T) {
	s, _ := newTestSession(t)
	sp := coal(5)
	sp.TextureName = "no_such_texture"
	err := tick(t, s, &protocol.EntitySpawnMultiple{Entities: []protocol.EntitySpawn{sp}})
	if err == nil {
		t.Fatalf("expected texture error")
	}
	if s.Store().Len() != 0 || s.Identity().Len() != 0 {
		t.Fatalf("partial spawn left behind: store=%d map=%d", s.Store().Len(), s.Identity().Len())
	}
}

func TestDestroy_RejectedWithoutMutation(t *testing.T) {
	cases := []struct {
		name  string
		batch []protocol.NetworkID
	}{
		{"unknown id", []protocol.NetworkID{2, 99}},
		{"repeated id", []protocol.NetworkID{1, 2, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestSession(t)
			if err := tick(t, s, spawnMany(1, 2, 3)); err != nil {
				t.Fatalf("spawn: %v", err)
			}
			err := tick(t, s, &protocol.EntityDestroyMultiple{Entities: tc.batch})
			if !errors.Is(err, identity.ErrDesync) {
				t.Fatalf("want desync, got %v", err)
			}
			if s.Store().Len() != 3 || s.Identity().Len() != 3 {
				t.Fatalf("mutated: store=%d map=%d", s.Store().Len(), s.Identity().Len())
			}
		})
	}
}

func TestResolveNetwork_LocalOnlyRejected(t *testing.T) {
	s, _ := newTestSession(t)
	local := s.Store().Create()
	_ = s.Store().Attach(local, &component.Overlay{})
	if err := s.Attack(local); !errors.Is(err, identity.ErrDesync) {
		t.Fatalf("attack on local-only entity: want desync, got %v", err)
	}
}

func TestLocalRemoval_PurgesIdentity(t *testing.T) {
	s, _ := newTestSession(t)
	if err := tick(t, s, spawnMany(10, 11)); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	id, _ := s.Identity().ResolveLocal(10)
	if err := s.Store().Destroy(id); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if _, err := s.Identity().ResolveLocal(10); err == nil {
		t.Fatalf("10 still mapped after local removal")
	}

	// Purely local entities pass through the same path without complaint.
	local := s.Store().Create()
	if err := s.Store().Destroy(local); err != nil {
		t.Fatalf("destroy local: %v", err)
	}
	if err := s.Identity().Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestTick_UnknownKindIsFatal(t *testing.T) {
	cases := []struct {
		name string
		msg  protocol.Message
	}{
		{"outside taxonomy", &protocol.Unknown{Type: "BOGUS"}},
		{"client to server kind", &protocol.PlayerMove{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestSession(t)
			chat := &protocol.ChatMessage{Message: "after"}
			err := tick(t, s, &protocol.Ping{}, &protocol.KeepAlive{}, tc.msg, chat)
			var pe *protocol.ProtocolError
			if !errors.As(err, &pe) || !errors.Is(err, protocol.ErrUnknownKind) {
				t.Fatalf("want protocol error, got %v", err)
			}
			if s.Chat().Len() != 0 {
				t.Fatalf("message after fatal error was applied")
			}
			if got := DisconnectReasonFor(err).Reason; got != protocol.ReasonProtocolError {
				t.Fatalf("reason: got %q", got)
			}
		})
	}
}

func TestTick_FIFOWithinDrain(t *testing.T) {
	s, _ := newTestSession(t)
	sp := spawnMany(40)
	moved := &protocol.EntityMoved{NetworkID: 40, Position: component.Position{X: 3, Y: 4}}
	destroy := &protocol.EntityDestroyMultiple{Entities: []protocol.NetworkID{40}}
	if err := tick(t, s, sp, moved, destroy, spawnMany(40)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	id, err := s.Identity().ResolveLocal(40)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	pos, _ := entity.Get[*component.Position](s.Store(), id)
	if pos.X != 40 {
		t.Fatalf("respawn should carry its own position, got %+v", pos)
	}
	if s.Stats()[protocol.KindEntitySpawnMultiple] != 2 {
		t.Fatalf("stats: %v", s.Stats())
	}
}

func TestStateUpdates_UnresolvedIsDesync(t *testing.T) {
	msgs := []protocol.Message{
		&protocol.EntityMoved{NetworkID: 77},
		&protocol.EntityKilled{NetworkID: 77},
		&protocol.CircuitUpdated{Devices: []protocol.DeviceCircuit{{NetworkID: 77}}},
	}
	for _, m := range msgs {
		s, _ := newTestSession(t)
		err := tick(t, s, m)
		if !errors.Is(err, identity.ErrDesync) {
			t.Fatalf("%s: want desync, got %v", m.Kind(), err)
		}
		if got := DisconnectReasonFor(err).Reason; got != protocol.ReasonDesync {
			t.Fatalf("%s: reason %q", m.Kind(), got)
		}
	}
}

func TestPlayerSpawned_FirstIsMainPlayer(t *testing.T) {
	s, _ := newTestSession(t)
	l := &listener{}
	s.AddListener(l)

	me := &protocol.PlayerSpawned{NetworkID: 1, ConnectionID: 1, PlayerName: "me", Position: component.Position{X: 5, Y: 6}}
	other := &protocol.PlayerSpawned{NetworkID: 2, ConnectionID: 2, PlayerName: "other"}
	view := &protocol.LoadedViewportMoved{Rect: component.Rect{X: 0, Y: 0, W: 48, H: 32}}
	if err := tick(t, s, me, other, view); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(l.connected) != 1 || l.connected[0] != s.MainPlayer() {
		t.Fatalf("connected callbacks: %v main=%d", l.connected, s.MainPlayer())
	}
	p, ok := entity.Get[*component.Player](s.Store(), s.MainPlayer())
	if !ok || p.Name != "me" {
		t.Fatalf("main player: %+v", p)
	}
	if p.LoadedViewport.W != 48 {
		t.Fatalf("viewport not recorded: %+v", p.LoadedViewport)
	}

	dr := &protocol.DisconnectReason{Reason: protocol.ReasonServerShutdown}
	if err := tick(t, s, dr); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if len(l.disconnected) != 1 || s.Ended() == nil || s.Ended().Reason != protocol.ReasonServerShutdown {
		t.Fatalf("disconnect not reported: %+v", l.disconnected)
	}
}

func TestHotbar_SlotOverwrite(t *testing.T) {
	s, _ := newTestSession(t)
	item := func(stack int) *protocol.PlayerSpawnHotbarInventoryItem {
		return &protocol.PlayerSpawnHotbarInventoryItem{
			NetworkID:      30,
			Components:     component.List{&component.Item{ID: "dirt", StackSize: stack, MaxStackSize: 64, State: component.ItemInInventory, InventoryIndex: 1}},
			TextureName:    "dirt",
			Size:           component.Size{W: 1, H: 1},
			InventoryIndex: 1,
		}
	}
	if err := tick(t, s, item(10), item(9)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if s.Store().Len() != 1 || s.Identity().Len() != 1 {
		t.Fatalf("store=%d map=%d, want 1/1", s.Store().Len(), s.Identity().Len())
	}
	got, ok := entity.Get[*component.Item](s.Store(), s.Hotbar(1))
	if !ok || got.StackSize != 9 {
		t.Fatalf("slot 1: %+v", got)
	}

	// Moving the item away clears the slot through the removal hook.
	if err := tick(t, s, &protocol.EntityDestroyMultiple{Entities: []protocol.NetworkID{30}}); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if s.Hotbar(1) != entity.Invalid {
		t.Fatalf("slot 1 still set")
	}

	bad := item(1)
	bad.InventoryIndex = protocol.HotbarSlots
	var pe *protocol.ProtocolError
	if err := tick(t, s, bad); !errors.As(err, &pe) {
		t.Fatalf("out of range slot: got %v", err)
	}
}

func TestBlockUpdates(t *testing.T) {
	s, _ := newTestSession(t)
	sparse := &protocol.SparseBlockUpdate{Blocks: []protocol.SparseBlock{
		{X: 2, Y: 3, Block: protocol.CellFields{Type: 2, WallType: 1, LightLevel: 7, Flags: 1}},
		{X: 1000, Y: 3, Block: protocol.CellFields{Type: 2}},
	}}
	if err := tick(t, s, sparse); err != nil {
		t.Fatalf("sparse: %v", err)
	}
	c := s.Grid().Get(2, 3)
	if c.Type != 2 || c.WallType != 1 || c.LightLevel != 7 || c.Flags != 1 {
		t.Fatalf("cell: %+v", c)
	}

	bad := &protocol.BlockRegion{X: 0, Y: 0, X2: 1, Y2: 1, Encoding: "RLE", Cells: "!!"}
	var pe *protocol.ProtocolError
	if err := tick(t, s, bad); !errors.As(err, &pe) {
		t.Fatalf("bad region: got %v", err)
	}
}

func TestCircuitUpdated_Tooltip(t *testing.T) {
	s, _ := newTestSession(t)
	if err := tick(t, s, devices(t)); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	upd := &protocol.CircuitUpdated{Devices: []protocol.DeviceCircuit{
		{NetworkID: 200, Circuit: 4, TotalSupply: 10, TotalDemand: 4, Powered: true},
	}}
	if err := tick(t, s, upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok := s.CircuitStatsAt(component.Point{X: 10, Y: 10})
	if !ok {
		t.Fatalf("no device under point")
	}
	want := component.PowerDevice{Running: true, Circuit: 4, TotalSupply: 10, TotalDemand: 4, Powered: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tooltip (-want +got):\n%s", diff)
	}
	if _, ok := s.CircuitStatsAt(component.Point{X: 40, Y: 40}); ok {
		t.Fatalf("tooltip over empty space")
	}
}

func TestKilledMarksEntity(t *testing.T) {
	s, _ := newTestSession(t)
	if err := tick(t, s, spawnMany(5), &protocol.EntityKilled{NetworkID: 5}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	id, _ := s.Identity().ResolveLocal(5)
	if !s.Store().Has(id, component.KindKilled) {
		t.Fatalf("killed component missing")
	}
}

func TestDebugPacketStatsLogged(t *testing.T) {
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	var buf bytes.Buffer
	s := NewSession(Options{Catalogs: cats, Logger: log.New(&buf, "", 0), WorldWidth: 8, WorldHeight: 8, DebugPacketStats: true})
	if err := tick(t, s, &protocol.Ping{}, &protocol.Ping{}, &protocol.KeepAlive{}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !strings.Contains(buf.String(), "KEEP_ALIVE=1 PING=2") {
		t.Fatalf("log: %q", buf.String())
	}
}

func TestHeartbeat(t *testing.T) {
	s, out := newTestSession(t)
	now := time.Unix(100, 0)
	for _, dt := range []time.Duration{0, 200 * time.Millisecond, time.Second, 1500 * time.Millisecond} {
		if err := s.Heartbeat(now.Add(dt)); err != nil {
			t.Fatalf("heartbeat: %v", err)
		}
	}
	if len(out.msgs) != 2 {
		t.Fatalf("pings: got %d, want 2", len(out.msgs))
	}
}

func TestChatRing(t *testing.T) {
	c := NewChat(2)
	for _, m := range []string{"a", "b", "c"} {
		c.Add(protocol.ChatMessage{Message: m})
	}
	var got []string
	for _, l := range c.Lines() {
		got = append(got, l.Message)
	}
	if diff := cmp.Diff([]string{"b", "c"}, got); diff != "" {
		t.Fatalf("lines (-want +got):\n%s", diff)
	}
}
