package entity

import (
	"errors"
	"testing"

	"oreinfinium.net/internal/sim/component"
)

func TestStore_CreateDestroyRecycles(t *testing.T) {
	s := NewStore()
	a := s.Create()
	b := s.Create()
	if a == b {
		t.Fatalf("expected distinct ids")
	}
	if err := s.Destroy(a); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if s.Exists(a) {
		t.Fatalf("destroyed entity still exists")
	}
	if got := s.Create(); got != a {
		t.Fatalf("expected recycled id %d, got %d", a, got)
	}
	if err := s.Destroy(ID(99)); !errors.Is(err, ErrNoEntity) {
		t.Fatalf("expected ErrNoEntity, got %v", err)
	}
}

func TestStore_AttachAndGet(t *testing.T) {
	s := NewStore()
	id := s.Create()
	if err := s.Attach(id, &component.Position{X: 1, Y: 2}, &component.Size{W: 3, H: 4}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	_ = s.Attach(id, &component.Position{X: 5, Y: 6})

	pos, ok := Get[*component.Position](s, id)
	if !ok || pos.X != 5 || pos.Y != 6 {
		t.Fatalf("position: %+v ok=%v", pos, ok)
	}
	if _, ok := Get[*component.Item](s, id); ok {
		t.Fatalf("unexpected item component")
	}
	if len(s.Components(id)) != 2 {
		t.Fatalf("components: %d", len(s.Components(id)))
	}
	if err := s.Attach(ID(42), &component.Killed{}); !errors.Is(err, ErrNoEntity) {
		t.Fatalf("attach to missing entity: %v", err)
	}
}

func TestStore_OnRemovedFiresAfterDelete(t *testing.T) {
	s := NewStore()
	id := s.Create()
	var seen []ID
	s.OnRemoved(func(r ID) {
		if s.Exists(r) {
			t.Fatalf("entity %d still present during removal callback", r)
		}
		seen = append(seen, r)
	})
	_ = s.Destroy(id)
	if len(seen) != 1 || seen[0] != id {
		t.Fatalf("removed callbacks: %v", seen)
	}
}

func TestStore_FindAtSkipsOverlay(t *testing.T) {
	s := NewStore()
	overlay := s.Create()
	_ = s.Attach(overlay, &component.Position{X: 10, Y: 10}, &component.Size{W: 20, H: 20}, &component.Overlay{})
	device := s.Create()
	_ = s.Attach(device, &component.Position{X: 12, Y: 12}, &component.Size{W: 8, H: 8})

	got, ok := s.FindAt(component.Point{X: 11, Y: 11}, nil)
	if !ok || got != device {
		t.Fatalf("expected device %d, got %d ok=%v", device, got, ok)
	}
	if _, ok := s.FindAt(component.Point{X: 1, Y: 1}, nil); ok {
		t.Fatalf("expected no entity outside footprints")
	}
	if _, ok := s.FindAt(component.Point{X: 11, Y: 11}, func(ID) bool { return false }); ok {
		t.Fatalf("match filter ignored")
	}
}
