package protocol

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"oreinfinium.net/internal/sim/component"
)

func TestEncodeDecode_SpawnMultiple(t *testing.T) {
	in := &EntitySpawnMultiple{Entities: []EntitySpawn{
		{
			NetworkID:   101,
			Components:  component.List{&component.Item{ID: "copper_wire", StackSize: 3, MaxStackSize: 64}},
			TextureName: "copper_wire",
			Size:        component.Size{W: 16, H: 16},
			Position:    component.Position{X: 4, Y: 8},
		},
		{
			NetworkID:   102,
			Components:  component.List{&component.PowerConsumer{DemandRate: 4}},
			TextureName: "lamp",
			Size:        component.Size{W: 32, H: 32},
		},
	}}
	b, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(Message(in), out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	m, err := Decode([]byte(`{"type":"TELEPORT","data":{}}`))
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	u, ok := m.(*Unknown)
	if !ok || u.Kind() != "TELEPORT" {
		t.Fatalf("expected Unknown TELEPORT, got %#v", m)
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestDecode_BadPayload(t *testing.T) {
	_, err := Decode([]byte(`{"type":"ENTITY_KILLED","data":{"network_id":"x"}}`))
	var pe *ProtocolError
	if !errors.As(err, &pe) || pe.Kind != KindEntityKilled {
		t.Fatalf("expected ProtocolError for ENTITY_KILLED, got %v", err)
	}
}

func TestDecode_EmptyData(t *testing.T) {
	m, err := Decode([]byte(`{"type":"KEEP_ALIVE"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !IsIgnorable(m.Kind()) {
		t.Fatalf("expected ignorable, got %s", m.Kind())
	}
}

func TestRegistryCoversEveryKind(t *testing.T) {
	for kind, mk := range kinds {
		if got := mk().Kind(); got != kind {
			t.Fatalf("factory for %s builds %s", kind, got)
		}
	}
}
