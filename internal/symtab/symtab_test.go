package symtab

import (
	"testing"

	"tickengine/pkg/types"
)

func key(s string) types.SymbolKey {
	k, err := types.NewSymbolKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

func TestLookupMissBeforeLoad(t *testing.T) {
	t.Parallel()

	tbl, err := New(64)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := tbl.Lookup(key("MSFT")); ok {
		t.Error("expected miss before any load")
	}
}

func TestLoadNotVisibleUntilCommit(t *testing.T) {
	t.Parallel()

	tbl, _ := New(64)
	if err := tbl.LoadSymbol(key("MSFT"), 3); err != nil {
		t.Fatalf("LoadSymbol: %v", err)
	}
	if _, ok := tbl.Lookup(key("MSFT")); ok {
		t.Fatal("load should not be visible before commit")
	}

	tbl.Commit()

	idx, ok := tbl.Lookup(key("MSFT"))
	if !ok || idx != 3 {
		t.Fatalf("Lookup after commit = (%d, %v), want (3, true)", idx, ok)
	}
}

func TestCommitAtomicityNoPartialState(t *testing.T) {
	t.Parallel()

	tbl, _ := New(64)
	tbl.LoadSymbol(key("AAPL"), 1)
	tbl.LoadSymbol(key("MSFT"), 2)
	tbl.Commit()

	if idx, ok := tbl.Lookup(key("AAPL")); !ok || idx != 1 {
		t.Errorf("AAPL lookup = (%d, %v)", idx, ok)
	}
	if idx, ok := tbl.Lookup(key("MSFT")); !ok || idx != 2 {
		t.Errorf("MSFT lookup = (%d, %v)", idx, ok)
	}
}

func TestTableFullReportsError(t *testing.T) {
	t.Parallel()

	tbl, _ := New(8)
	h := hash(key("AAAAAAAA"))
	base := h & 7

	// Fill every slot in this key's 8-slot probe window directly via the
	// public API using keys that hash to the same bucket is impractical to
	// construct; instead fill all 8 slots in the table, which guarantees
	// no slot remains in any probe window of size 8 on an 8-slot table.
	filled := 0
	for i := 0; filled < 8 && i < 100000; i++ {
		var k types.SymbolKey
		k[0] = byte(i)
		k[1] = byte(i >> 8)
		if err := tbl.LoadSymbol(k, uint16(i)); err == nil {
			filled++
		}
	}
	if filled != 8 {
		t.Fatalf("failed to fill table, only inserted %d/8", filled)
	}

	_ = base
	var extra types.SymbolKey
	extra[2] = 0xFF
	if err := tbl.LoadSymbol(extra, 99); err == nil {
		t.Error("expected table-full error on a fully occupied 8-slot table")
	}
}
