package engine

import (
	"encoding/binary"
	"io"
	"log/slog"
	"testing"
	"time"

	"tickengine/internal/config"
	"tickengine/pkg/types"
	"tickengine/pkg/wire"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Feed:    config.FeedConfig{MulticastAddr: "239.1.1.1:12345"},
		Symbols: config.SymbolsConfig{MaxSymbols: 8},
		Risk: config.RiskConfig{
			PriceBandBps:    500,
			TokenRatePerMs:  100,
			TokenBucketMax:  100,
			PositionLimit:   1000,
			StaleThreshold:  time.Second,
			SeqGapThreshold: 10,
			SeqCheckEnabled: true,
		},
		Ring:  config.RingConfig{Length: 16},
		Store: config.StoreConfig{DataDir: t.TempDir()},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := New(testConfig(t), logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// addPayload builds a raw UDP payload containing a single 36-byte 'A' (Add
// Order) ITCH message, matching internal/decode's real field layout.
func addPayload(seq uint32, side byte, qty uint32, symbol string, price uint32) []byte {
	body := make([]byte, 36)
	body[0] = 'A'
	binary.BigEndian.PutUint32(body[1:5], seq)
	rest := body[11:]
	binary.BigEndian.PutUint64(rest[0:8], 1)
	rest[8] = side
	binary.BigEndian.PutUint32(rest[9:13], qty)
	copy(rest[13:21], symbol)
	binary.BigEndian.PutUint32(rest[21:25], price)
	return body
}

func symbolKey(t *testing.T, s string) types.SymbolKey {
	t.Helper()
	k, err := types.NewSymbolKey(s)
	if err != nil {
		t.Fatalf("NewSymbolKey(%q): %v", s, err)
	}
	return k
}

func TestOnPayloadPublishesAcceptForKnownSymbol(t *testing.T) {
	e := newTestEngine(t)

	if err := e.LoadSymbol(symbolKey(t, "AAPL"), 0); err != nil {
		t.Fatalf("LoadSymbol: %v", err)
	}
	e.CommitSymbols()

	e.OnPayload(addPayload(1, 'B', 100, "AAPL    ", 1000000), 1)

	rec, ok := e.Ring().TryNext()
	if !ok {
		t.Fatal("expected a published decision record")
	}
	if rec.Flags&wire.FlagAccept == 0 {
		t.Errorf("Flags = %#x, expected FlagAccept set for a within-band fresh order", rec.Flags)
	}
	e.Ring().Commit(1)

	stats := e.SnapshotStats()
	if stats.RiskAccepts != 1 {
		t.Errorf("RiskAccepts = %d, want 1", stats.RiskAccepts)
	}
	if stats.BookUpdates != 1 {
		t.Errorf("BookUpdates = %d, want 1", stats.BookUpdates)
	}
}

func TestOnPayloadUnknownSymbolEmitsZeroFlagReject(t *testing.T) {
	e := newTestEngine(t)

	e.OnPayload(addPayload(1, 'B', 100, "ZZZZ    ", 1000000), 1)

	rec, ok := e.Ring().TryNext()
	if !ok {
		t.Fatal("expected a published reject record")
	}
	if rec.Flags != 0 {
		t.Errorf("Flags = %#x, want 0 (unknown-symbol convention)", rec.Flags)
	}
	e.Ring().Commit(1)

	stats := e.SnapshotStats()
	if stats.UnknownSymbol != 1 {
		t.Errorf("UnknownSymbol = %d, want 1", stats.UnknownSymbol)
	}
}

func TestSetKillRejectsSubsequentMessages(t *testing.T) {
	e := newTestEngine(t)

	if err := e.LoadSymbol(symbolKey(t, "AAPL"), 0); err != nil {
		t.Fatalf("LoadSymbol: %v", err)
	}
	e.CommitSymbols()

	e.SetKill(true)
	if !e.KillActive() {
		t.Fatal("expected KillActive() = true after SetKill(true)")
	}

	e.OnPayload(addPayload(1, 'B', 100, "AAPL    ", 1000000), 1)

	rec, ok := e.Ring().TryNext()
	if !ok {
		t.Fatal("expected a published reject record")
	}
	if rec.Flags&wire.FlagKillActive == 0 {
		t.Errorf("Flags = %#x, expected FlagKillActive set while kill is asserted", rec.Flags)
	}
	e.Ring().Commit(1)
}

func TestOnPayloadReportsAskSideOnTwoSidedBook(t *testing.T) {
	e := newTestEngine(t)

	if err := e.LoadSymbol(symbolKey(t, "AAPL"), 0); err != nil {
		t.Fatalf("LoadSymbol: %v", err)
	}
	e.CommitSymbols()

	e.OnPayload(addPayload(1, 'B', 100, "AAPL    ", 1000000), 1)
	if _, ok := e.Ring().TryNext(); !ok {
		t.Fatal("expected a published record for the bid add")
	}
	e.Ring().Commit(1)

	e.OnPayload(addPayload(2, 'S', 50, "AAPL    ", 1005000), 2)
	rec, ok := e.Ring().TryNext()
	if !ok {
		t.Fatal("expected a published record for the ask add")
	}
	if rec.Side != uint8(types.SideAsk) {
		t.Errorf("Side = %d, want ask on a two-sided book", rec.Side)
	}
	if rec.Price != 1005000 || rec.Qty != 50 {
		t.Errorf("Price/Qty = %d/%d, want the ask's own 1005000/50", rec.Price, rec.Qty)
	}
	e.Ring().Commit(1)
}

func TestSetReferencePriceFeedsBandCheck(t *testing.T) {
	e := newTestEngine(t)

	if err := e.LoadSymbol(symbolKey(t, "AAPL"), 0); err != nil {
		t.Fatalf("LoadSymbol: %v", err)
	}
	e.CommitSymbols()
	e.SetReferencePrice(0, 1000000)

	// Price far outside the 500bps band around the reference.
	e.OnPayload(addPayload(1, 'B', 100, "AAPL    ", 5000000), 1)

	rec, ok := e.Ring().TryNext()
	if !ok {
		t.Fatal("expected a published reject record")
	}
	if rec.Flags&wire.FlagPriceBandFail == 0 {
		t.Errorf("Flags = %#x, expected FlagPriceBandFail for an out-of-band price", rec.Flags)
	}
	e.Ring().Commit(1)
}
