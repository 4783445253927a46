package refprice

import "testing"

func TestSetAndGet(t *testing.T) {
	t.Parallel()

	tbl := New(4)
	tbl.Set(2, 150000)

	if got := tbl.Get(2); got != 150000 {
		t.Errorf("Get(2) = %d, want 150000", got)
	}
	if got := tbl.Get(0); got != 0 {
		t.Errorf("Get(0) = %d, want 0 (never set)", got)
	}
}

func TestOutOfRangeIsNoOp(t *testing.T) {
	t.Parallel()

	tbl := New(2)
	tbl.Set(99, 1) // must not panic

	if got := tbl.Get(99); got != 0 {
		t.Errorf("Get(99) = %d, want 0 for an out-of-range index", got)
	}
}
