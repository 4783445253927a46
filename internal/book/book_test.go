package book

import (
	"testing"

	"tickengine/pkg/types"
)

func addMsg(seq uint32, idx uint16, side types.Side, price, qty uint32) types.DecodedMessage {
	return types.DecodedMessage{
		Seq: seq, MsgType: 'A', SymbolIndex: idx, SymbolValid: true, HasSymbolKey: true,
		Side: side, HasSide: true, Price: price, Qty: qty, IsBookAffecting: true,
	}
}

func TestApplyAddImprovesBid(t *testing.T) {
	t.Parallel()

	b := New(8)
	ev, ok := b.Apply(addMsg(1, 0, types.SideBid, 1000000, 100))
	if !ok {
		t.Fatal("expected ok")
	}
	if ev.TOB.BidPx != 1000000 || ev.TOB.BidQty != 100 {
		t.Fatalf("got %+v", ev.TOB)
	}

	// Worse bid does not replace top of book.
	ev, _ = b.Apply(addMsg(2, 0, types.SideBid, 900000, 50))
	if ev.TOB.BidPx != 1000000 {
		t.Errorf("worse bid should not improve TOB, got %d", ev.TOB.BidPx)
	}

	// Better bid replaces it.
	ev, _ = b.Apply(addMsg(3, 0, types.SideBid, 1100000, 25))
	if ev.TOB.BidPx != 1100000 || ev.TOB.BidQty != 25 {
		t.Errorf("better bid should replace TOB, got %+v", ev.TOB)
	}
}

func TestApplyExecutedReducesLastTouchedSide(t *testing.T) {
	t.Parallel()

	b := New(8)
	b.Apply(addMsg(1, 5, types.SideAsk, 2000000, 100))

	ev, ok := b.Apply(types.DecodedMessage{
		Seq: 2, MsgType: 'E', Qty: 40, IsBookAffecting: true,
	})
	if !ok {
		t.Fatal("expected aggregate resolution via last-touched side")
	}
	if ev.TOB.AskQty != 60 {
		t.Errorf("AskQty = %d, want 60", ev.TOB.AskQty)
	}
}

func TestApplyExecutedSaturatesAtZero(t *testing.T) {
	t.Parallel()

	b := New(8)
	b.Apply(addMsg(1, 0, types.SideBid, 1000000, 10))
	ev, _ := b.Apply(types.DecodedMessage{Seq: 2, MsgType: 'E', Qty: 999, IsBookAffecting: true})
	if ev.TOB.BidQty != 0 {
		t.Errorf("BidQty = %d, want 0 (saturating)", ev.TOB.BidQty)
	}
}

func TestApplyReportsResolvedSideOnTwoSidedBook(t *testing.T) {
	t.Parallel()

	b := New(8)
	b.Apply(addMsg(1, 0, types.SideBid, 1000000, 100))
	ev, ok := b.Apply(addMsg(2, 0, types.SideAsk, 1005000, 40))
	if !ok {
		t.Fatal("expected ok")
	}
	if ev.Side != types.SideAsk {
		t.Errorf("Side = %v, want ask for an ask-side add on a two-sided book", ev.Side)
	}

	ev, ok = b.Apply(types.DecodedMessage{Seq: 3, MsgType: 'X', Qty: 10, IsBookAffecting: true})
	if !ok {
		t.Fatal("expected aggregate resolution via last-touched side")
	}
	if ev.Side != types.SideAsk {
		t.Errorf("Side = %v, want ask (last-touched side carried through a bare cancel)", ev.Side)
	}
}

func TestApplyUnknownSymbolNoUpdate(t *testing.T) {
	t.Parallel()

	b := New(8)
	_, ok := b.Apply(types.DecodedMessage{
		Seq: 1, MsgType: 'A', HasSymbolKey: true, SymbolValid: false, IsBookAffecting: true,
	})
	if ok {
		t.Error("expected no book update for an unresolved symbol")
	}
}

func TestApplyTradeDoesNotAlterTOB(t *testing.T) {
	t.Parallel()

	b := New(8)
	b.Apply(addMsg(1, 0, types.SideBid, 1000000, 10))
	ev, _ := b.Apply(types.DecodedMessage{
		Seq: 2, MsgType: 'P', SymbolIndex: 0, SymbolValid: true, HasSymbolKey: true,
		Price: 999000, Qty: 5, IsBookAffecting: true,
	})
	if ev.TOB.BidPx != 1000000 || ev.TOB.BidQty != 10 {
		t.Errorf("trade should not change TOB, got %+v", ev.TOB)
	}
	if ev.TOB.LastTradePx != 999000 || ev.TOB.LastTradeQty != 5 {
		t.Errorf("trade should update last trade fields, got %+v", ev.TOB)
	}
}
