// Package entity is a plain keyed store: local entity id to a set of typed
// component records.
package entity

import (
	"errors"
	"sort"

	"oreinfinium.net/internal/sim/component"
)

// ID is a process-local handle. Ids are recycled after Destroy and mean
// nothing outside the owning Store.
type ID int32

const Invalid ID = -1

var ErrNoEntity = errors.New("entity does not exist")

type Store struct {
	entities map[ID]map[string]component.Component
	free     []ID
	next     ID

	removed []func(ID)
}

func NewStore() *Store {
	return &Store{entities: map[ID]map[string]component.Component{}}
}

// Create allocates an entity, reusing the most recently freed id first.
func (s *Store) Create() ID {
	var id ID
	if n := len(s.free); n > 0 {
		id = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		id = s.next
		s.next++
	}
	s.entities[id] = map[string]component.Component{}
	return id
}

// Destroy removes the entity and notifies OnRemoved subscribers after the
// entity is gone.
func (s *Store) Destroy(id ID) error {
	if _, ok := s.entities[id]; !ok {
		return ErrNoEntity
	}
	delete(s.entities, id)
	s.free = append(s.free, id)
	for _, fn := range s.removed {
		fn(id)
	}
	return nil
}

// OnRemoved subscribes to entity removal.
func (s *Store) OnRemoved(fn func(ID)) {
	if fn != nil {
		s.removed = append(s.removed, fn)
	}
}

func (s *Store) Exists(id ID) bool {
	_, ok := s.entities[id]
	return ok
}

func (s *Store) Len() int { return len(s.entities) }

// Attach replaces any component of the same kind.
func (s *Store) Attach(id ID, cs ...component.Component) error {
	m, ok := s.entities[id]
	if !ok {
		return ErrNoEntity
	}
	for _, c := range cs {
		if c == nil {
			continue
		}
		m[c.Kind()] = c
	}
	return nil
}

func (s *Store) Detach(id ID, kind string) {
	if m, ok := s.entities[id]; ok {
		delete(m, kind)
	}
}

func (s *Store) Has(id ID, kind string) bool {
	_, ok := s.entities[id][kind]
	return ok
}

func (s *Store) Component(id ID, kind string) (component.Component, bool) {
	c, ok := s.entities[id][kind]
	return c, ok
}

// Components returns the entity's components ordered by kind.
func (s *Store) Components(id ID) []component.Component {
	m := s.entities[id]
	kinds := make([]string, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	out := make([]component.Component, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, m[k])
	}
	return out
}

// Get returns the entity's component of type T.
func Get[T component.Component](s *Store, id ID) (T, bool) {
	var zero T
	for _, c := range s.entities[id] {
		if v, ok := c.(T); ok {
			return v, true
		}
	}
	return zero, false
}

// IDs returns every live entity in ascending order.
func (s *Store) IDs() []ID {
	out := make([]ID, 0, len(s.entities))
	for id := range s.entities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Each visits entities carrying kind in ascending id order. fn may not create
// or destroy entities.
func (s *Store) Each(kind string, fn func(ID, component.Component)) {
	for _, id := range s.IDs() {
		if c, ok := s.entities[id][kind]; ok {
			fn(id, c)
		}
	}
}

// FindAt returns the lowest entity id whose footprint contains pt and which
// satisfies match. Overlay entities never match.
func (s *Store) FindAt(pt component.Point, match func(ID) bool) (ID, bool) {
	for _, id := range s.IDs() {
		m := s.entities[id]
		if _, overlay := m[component.KindOverlay]; overlay {
			continue
		}
		pos, ok := m[component.KindPosition].(*component.Position)
		if !ok {
			continue
		}
		size, ok := m[component.KindSize].(*component.Size)
		if !ok {
			continue
		}
		if !component.Footprint(*pos, *size).Contains(pt) {
			continue
		}
		if match != nil && !match(id) {
			continue
		}
		return id, true
	}
	return Invalid, false
}
