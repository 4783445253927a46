// Package book maintains per-symbol top-of-book (TOB) state: aggregate best
// bid/ask and last trade, updated from decoded ITCH messages and exposed to
// the risk gate and the monitoring dashboard.
package book

import (
	"sync"

	"tickengine/pkg/types"
)

// Banks is the number of partitions the backing array is split into. In
// this single-threaded implementation banks carry no synchronization
// benefit; they exist so a per-bank touch counter can be produced now for
// a future multi-threaded book, per spec.md's "design hint" note.
const Banks = 4

// Book holds MAX_SYMBOLS top-of-book entries. The data path owns it
// exclusively and needs no lock for its own operation; the RWMutex exists
// solely so the monitoring dashboard can take a consistent read-only
// snapshot from a different goroutine, mirroring the teacher's
// RWMutex-guarded book idiom.
type Book struct {
	mu      sync.RWMutex
	entries []types.BookEntry

	// lastSymbol/lastSide/lastValid resolve the order-reference-only
	// messages (E, C, X, D, U), which per spec.md §4.3/§4.6 carry neither
	// symbol nor side: they are attributed to whichever side was most
	// recently touched by an Add or Replace. See DESIGN.md.
	lastSymbol uint16
	lastSide   types.Side
	lastValid  bool

	bankTouches [Banks]uint64
}

// New builds a Book sized for capacity symbols, all initially zero/invalid.
func New(capacity int) *Book {
	return &Book{entries: make([]types.BookEntry, capacity)}
}

func bankOf(index uint16) int { return int(index) % Banks }

// Apply updates book state for a decoded, symbol-resolved message and
// returns the resulting book event. ok is false if the message does not
// resolve to a known symbol and therefore cannot update the book (for a
// symbol-bearing message the caller then publishes an "unknown symbol"
// record directly, without a risk-gate evaluation).
func (b *Book) Apply(msg types.DecodedMessage) (types.BookEvent, bool) {
	if !msg.IsBookAffecting {
		return types.BookEvent{}, false
	}

	symbolIndex := msg.SymbolIndex
	symbolValid := msg.SymbolValid
	side := msg.Side
	hasSide := msg.HasSide

	if !msg.HasSymbolKey {
		// E, C, X, D, U: resolve via the last touched (symbol, side).
		if !b.lastValid {
			return types.BookEvent{}, false
		}
		symbolIndex = b.lastSymbol
		symbolValid = true
		side = b.lastSide
		hasSide = true
	}

	if !symbolValid {
		return types.BookEvent{}, false
	}
	if int(symbolIndex) >= len(b.entries) {
		return types.BookEvent{}, false
	}

	b.mu.Lock()
	e := &b.entries[symbolIndex]

	switch msg.MsgType {
	case 'A', 'F':
		improves := false
		if hasSide && side == types.SideBid {
			improves = e.BidQty == 0 || msg.Price > e.BidPx
			if improves {
				e.BidPx, e.BidQty = msg.Price, msg.Qty
			}
		} else if hasSide {
			improves = e.AskQty == 0 || msg.Price < e.AskPx
			if improves {
				e.AskPx, e.AskQty = msg.Price, msg.Qty
			}
		}
		b.lastSymbol, b.lastSide, b.lastValid = symbolIndex, side, true
	case 'E':
		if side == types.SideBid {
			e.BidQty = satSub(e.BidQty, msg.Qty)
		} else {
			e.AskQty = satSub(e.AskQty, msg.Qty)
		}
	case 'C':
		if side == types.SideBid {
			e.BidQty = satSub(e.BidQty, msg.Qty)
		} else {
			e.AskQty = satSub(e.AskQty, msg.Qty)
		}
		e.LastTradePx = msg.Price
		e.LastTradeQty = msg.Qty
	case 'X':
		if side == types.SideBid {
			e.BidQty = satSub(e.BidQty, msg.Qty)
		} else {
			e.AskQty = satSub(e.AskQty, msg.Qty)
		}
	case 'D':
		if side == types.SideBid {
			e.BidQty = 0
		} else {
			e.AskQty = 0
		}
	case 'U':
		if side == types.SideBid {
			e.BidPx, e.BidQty = msg.Price, msg.Qty
		} else {
			e.AskPx, e.AskQty = msg.Price, msg.Qty
		}
		b.lastSymbol, b.lastSide, b.lastValid = symbolIndex, side, true
	case 'P':
		e.LastTradePx = msg.Price
		e.LastTradeQty = msg.Qty
	}

	e.LastUpdateTs = msg.IngressTs
	e.Valid = true
	snapshot := *e
	b.bankTouches[bankOf(symbolIndex)]++
	b.mu.Unlock()

	return types.BookEvent{
		IngressTs:      msg.IngressTs,
		BookTs:         msg.DecodeTs,
		SymbolIndex:    symbolIndex,
		SymbolValid:    true,
		Side:           side,
		TOB:            snapshot,
		Stale:          msg.Stale,
		TriggeringType: msg.MsgType,
		Seq:            msg.Seq,
	}, true
}

// Snapshot returns a copy of the entry at index for monitoring use.
func (b *Book) Snapshot(index uint16) types.BookEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if int(index) >= len(b.entries) {
		return types.BookEntry{}
	}
	return b.entries[index]
}

// BankTouches returns the per-bank update counters.
func (b *Book) BankTouches() [Banks]uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bankTouches
}

func satSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}
