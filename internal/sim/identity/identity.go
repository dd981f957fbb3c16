// Package identity maps server-issued network ids to client-local entity ids.
//
// The two directions are always exact inverses. Every mutation either applies
// to both directions or to neither, and is followed by a cardinality check.
package identity

import (
	"errors"
	"fmt"
	"sort"

	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/entity"
)

// ErrDesync is matched by every *DesyncError.
var ErrDesync = errors.New("desync")

// DesyncError means client and server disagree about entity identity. The
// session cannot continue.
type DesyncError struct {
	Op        string
	NetworkID protocol.NetworkID
	LocalID   entity.ID
	Reason    string
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("desync: %s network=%d local=%d: %s", e.Op, e.NetworkID, e.LocalID, e.Reason)
}

func (e *DesyncError) Is(target error) bool { return target == ErrDesync }

type entry struct {
	local entity.ID
	seq   uint64
}

type Map struct {
	byNetwork map[protocol.NetworkID]entry
	byLocal   map[entity.ID]protocol.NetworkID
	seq       uint64
}

func New() *Map {
	return &Map{
		byNetwork: map[protocol.NetworkID]entry{},
		byLocal:   map[entity.ID]protocol.NetworkID{},
	}
}

func (m *Map) Len() int { return len(m.byNetwork) }

// RecordSpawn fails when either id is already mapped in either direction.
func (m *Map) RecordSpawn(nid protocol.NetworkID, local entity.ID) error {
	if prev, ok := m.byNetwork[nid]; ok {
		return &DesyncError{Op: "spawn", NetworkID: nid, LocalID: prev.local, Reason: "network id already mapped"}
	}
	if prev, ok := m.byLocal[local]; ok {
		return &DesyncError{Op: "spawn", NetworkID: prev, LocalID: local, Reason: "local id already mapped"}
	}
	m.seq++
	m.byNetwork[nid] = entry{local: local, seq: m.seq}
	m.byLocal[local] = nid
	return m.check("spawn", nid, local)
}

// RecordDestroy removes nid and returns the local id it was mapped to.
func (m *Map) RecordDestroy(nid protocol.NetworkID) (entity.ID, error) {
	e, ok := m.byNetwork[nid]
	if !ok {
		return entity.Invalid, &DesyncError{Op: "destroy", NetworkID: nid, LocalID: entity.Invalid, Reason: "network id not mapped"}
	}
	delete(m.byNetwork, nid)
	delete(m.byLocal, e.local)
	return e.local, m.check("destroy", nid, e.local)
}

// ForgetLocal purges the mapping for an entity removed locally. Entities that
// were never network-backed are ignored.
func (m *Map) ForgetLocal(local entity.ID) error {
	nid, ok := m.byLocal[local]
	if !ok {
		return nil
	}
	delete(m.byLocal, local)
	delete(m.byNetwork, nid)
	return m.check("forget", nid, local)
}

func (m *Map) ResolveLocal(nid protocol.NetworkID) (entity.ID, error) {
	e, ok := m.byNetwork[nid]
	if !ok {
		return entity.Invalid, &DesyncError{Op: "resolve", NetworkID: nid, LocalID: entity.Invalid, Reason: "network id not mapped"}
	}
	return e.local, nil
}

func (m *Map) ResolveNetwork(local entity.ID) (protocol.NetworkID, error) {
	nid, ok := m.byLocal[local]
	if !ok {
		return 0, &DesyncError{Op: "resolve", LocalID: local, Reason: "local id not mapped"}
	}
	return nid, nil
}

// Lookup is the non-failing form of ResolveNetwork, for callers probing
// whether a local entity is network-backed at all.
func (m *Map) Lookup(local entity.ID) (protocol.NetworkID, bool) {
	nid, ok := m.byLocal[local]
	return nid, ok
}

type Entry struct {
	NetworkID protocol.NetworkID
	LocalID   entity.ID
}

// Entries lists mappings in insertion order.
func (m *Map) Entries() []Entry {
	type ranked struct {
		Entry
		seq uint64
	}
	rs := make([]ranked, 0, len(m.byNetwork))
	for nid, e := range m.byNetwork {
		rs = append(rs, ranked{Entry{NetworkID: nid, LocalID: e.local}, e.seq})
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].seq < rs[j].seq })
	out := make([]Entry, len(rs))
	for i, r := range rs {
		out[i] = r.Entry
	}
	return out
}

func (m *Map) check(op string, nid protocol.NetworkID, local entity.ID) error {
	if len(m.byNetwork) != len(m.byLocal) {
		return &DesyncError{
			Op: op, NetworkID: nid, LocalID: local,
			Reason: fmt.Sprintf("cardinality mismatch %d != %d", len(m.byNetwork), len(m.byLocal)),
		}
	}
	return nil
}

// Verify checks that both directions are exact inverses.
func (m *Map) Verify() error {
	if err := m.check("verify", 0, entity.Invalid); err != nil {
		return err
	}
	for nid, e := range m.byNetwork {
		if back, ok := m.byLocal[e.local]; !ok || back != nid {
			return &DesyncError{Op: "verify", NetworkID: nid, LocalID: e.local, Reason: "directions disagree"}
		}
	}
	return nil
}
