package component

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestList_PreservesOrderAndKinds(t *testing.T) {
	in := List{
		&Item{ID: "COAL", StackSize: 3, MaxStackSize: 64, InventoryIndex: 2, State: ItemInInventory},
		&PowerDevice{Running: true},
		&PowerGenerator{Type: GeneratorCombustion, SupplyRate: 10, FuelSlots: []FuelStack{{Item: "COAL", Count: 2}}},
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out List
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
}

func TestList_RejectsLocalOnlyKinds(t *testing.T) {
	if _, err := json.Marshal(List{&Overlay{}}); err == nil {
		t.Fatalf("expected overlay to be rejected")
	}
	if _, err := json.Marshal(List{&Sprite{TextureName: "x"}}); err == nil {
		t.Fatalf("expected sprite to be rejected")
	}
}

func TestList_RejectsUnknownKind(t *testing.T) {
	var out List
	err := json.Unmarshal([]byte(`[{"kind":"TELEPORTER","data":{}}]`), &out)
	if err == nil || !strings.Contains(err.Error(), "TELEPORTER") {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}

func TestFootprint_CentredOnPosition(t *testing.T) {
	r := Footprint(Position{X: 10, Y: 10}, Size{W: 2, H: 4})
	if !r.Contains(Point{X: 9, Y: 8}) || !r.Contains(Point{X: 11, Y: 12}) {
		t.Fatalf("corners should be inside: %+v", r)
	}
	if r.Contains(Point{X: 11.5, Y: 10}) {
		t.Fatalf("point outside width should not be contained")
	}
	if c := r.Center(); c.X != 10 || c.Y != 10 {
		t.Fatalf("center=%+v", c)
	}
}
