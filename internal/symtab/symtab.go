// Package symtab implements the fixed-capacity, double-buffered symbol
// table: an 8-byte key to dense-index hash map with linear probing, where
// bulk loads land in a shadow map and become visible only on an atomic
// commit.
package symtab

import (
	"fmt"
	"sync/atomic"

	"tickengine/pkg/types"
)

const maxProbes = 8

type slot struct {
	key    types.SymbolKey
	index  uint16
	filled bool
}

// table is one generation's backing array. Capacity must be a power of two
// so the hash mask is cheap.
type table struct {
	slots    []slot
	capacity uint32
	mask     uint32
}

func newTable(capacity int) *table {
	return &table{
		slots:    make([]slot, capacity),
		capacity: uint32(capacity),
		mask:     uint32(capacity - 1),
	}
}

func hash(key types.SymbolKey) uint32 {
	lo := uint32(key[0]) | uint32(key[1])<<8 | uint32(key[2])<<16 | uint32(key[3])<<24
	hi := uint32(key[4]) | uint32(key[5])<<8 | uint32(key[6])<<16 | uint32(key[7])<<24
	h := lo ^ hi
	h ^= h >> 16
	h ^= h >> 8
	return h
}

func (t *table) lookup(key types.SymbolKey) (uint16, bool) {
	start := hash(key) & t.mask
	for i := uint32(0); i < maxProbes; i++ {
		s := &t.slots[(start+i)&t.mask]
		if !s.filled {
			return 0, false
		}
		if s.key == key {
			return s.index, true
		}
	}
	return 0, false
}

// insert reports false ("table full") if no empty slot was found within
// maxProbes of the key's home slot.
func (t *table) insert(key types.SymbolKey, index uint16) bool {
	start := hash(key) & t.mask
	for i := uint32(0); i < maxProbes; i++ {
		s := &t.slots[(start+i)&t.mask]
		if !s.filled {
			s.key = key
			s.index = index
			s.filled = true
			return true
		}
		if s.key == key {
			s.index = index
			return true
		}
	}
	return false
}

func (t *table) clear() {
	for i := range t.slots {
		t.slots[i] = slot{}
	}
}

// Table is the double-buffered symbol table. The data path calls Lookup
// without synchronization beyond the atomic load the commit's release pairs
// with. Loads and commits are expected to be serialized by the caller
// (the configuration side-channel), per spec: "exactly one commit may be in
// flight."
type Table struct {
	active atomic.Pointer[table]
	shadow *table
}

// New builds a Table with the given power-of-two capacity (recommended
// types.MaxSymbols).
func New(capacity int) (*Table, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("symtab: capacity %d is not a power of two", capacity)
	}
	t := &Table{shadow: newTable(capacity)}
	t.active.Store(newTable(capacity))
	return t, nil
}

// Lookup resolves key against the active map. Called from the data path.
func (t *Table) Lookup(key types.SymbolKey) (uint16, bool) {
	return t.active.Load().lookup(key)
}

// LoadSymbol writes (key, index) into the shadow map. It does not affect
// lookups until Commit is called. Returns an error if the shadow table is
// full for this key's probe sequence.
func (t *Table) LoadSymbol(key types.SymbolKey, index uint16) error {
	if !t.shadow.insert(key, index) {
		return fmt.Errorf("symtab: table full inserting %q", key.String())
	}
	return nil
}

// Commit atomically swaps the shadow map in as active (a single pointer
// store with release ordering) and clears a fresh shadow for future loads.
func (t *Table) Commit() {
	committed := t.shadow
	t.active.Store(committed)
	t.shadow = newTable(int(committed.capacity))
}

// Capacity returns the table's fixed capacity.
func (t *Table) Capacity() int {
	return int(t.active.Load().capacity)
}
