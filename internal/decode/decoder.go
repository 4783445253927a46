// Package decode parses framed ITCH messages (internal/feed.Frame) into
// normalized types.DecodedMessage values, issuing symbol-key lookups for
// messages that carry a symbol.
//
// Field layout follows real NASDAQ ITCH 5.0 message bodies: the splitter's
// 11-byte common header (type, seq, wire timestamp) occupies the same byte
// span as ITCH's own StockLocate+TrackingNumber+Timestamp fields, so every
// type-specific body below begins at offset 11 exactly as it would in the
// unmodified protocol. See DESIGN.md for the reconciliation.
package decode

import (
	"encoding/binary"

	"tickengine/internal/feed"
	"tickengine/pkg/types"
)

// SymbolResolver looks up a symbol key against the active symbol table.
type SymbolResolver interface {
	Lookup(key types.SymbolKey) (index uint16, ok bool)
}

// Decoder turns frames into decoded messages.
type Decoder struct {
	symbols SymbolResolver
	nowFn   func() uint64
}

// NewDecoder builds a Decoder resolving symbol keys against symbols. nowFn
// supplies the decode timestamp (injectable for deterministic tests).
func NewDecoder(symbols SymbolResolver, nowFn func() uint64) *Decoder {
	return &Decoder{symbols: symbols, nowFn: nowFn}
}

// Decode parses one frame. ok is false only when the frame's body is
// shorter than its type requires, which should not happen for frames that
// passed through Splitter but is checked defensively.
func (d *Decoder) Decode(f feed.Frame) (types.DecodedMessage, bool) {
	msg := types.DecodedMessage{
		IngressTs:       f.IngressTs,
		DecodeTs:        d.nowFn(),
		Seq:             f.Seq,
		MsgType:         f.Type,
		Stale:           f.Stale,
		IsBookAffecting: f.Book,
	}

	body := f.Body
	if len(body) < feed.MinHeaderLen {
		return msg, false
	}
	rest := body[feed.MinHeaderLen:]

	switch f.Type {
	case 'A':
		if len(rest) < 25 {
			return msg, false
		}
		msg.OrderRef = be64(rest[0:8])
		msg.Side = sideOf(rest[8])
		msg.HasSide = true
		msg.Qty = be32(rest[9:13])
		msg.SymbolKey = keyOf(rest[13:21])
		msg.HasSymbolKey = true
		msg.Price = be32(rest[21:25])
	case 'F':
		if len(rest) < 29 {
			return msg, false
		}
		msg.OrderRef = be64(rest[0:8])
		msg.Side = sideOf(rest[8])
		msg.HasSide = true
		msg.Qty = be32(rest[9:13])
		msg.SymbolKey = keyOf(rest[13:21])
		msg.HasSymbolKey = true
		msg.Price = be32(rest[21:25])
	case 'E':
		if len(rest) < 20 {
			return msg, false
		}
		msg.OrderRef = be64(rest[0:8])
		msg.Qty = be32(rest[8:12])
	case 'C':
		if len(rest) < 25 {
			return msg, false
		}
		msg.OrderRef = be64(rest[0:8])
		msg.Qty = be32(rest[8:12])
		msg.Price = be32(rest[21:25])
	case 'X':
		if len(rest) < 12 {
			return msg, false
		}
		msg.OrderRef = be64(rest[0:8])
		msg.Qty = be32(rest[8:12])
	case 'D':
		if len(rest) < 8 {
			return msg, false
		}
		msg.OrderRef = be64(rest[0:8])
	case 'U':
		if len(rest) < 24 {
			return msg, false
		}
		msg.OrderRef = be64(rest[0:8])  // orig order ref
		_ = be64(rest[8:16])            // new order ref, not tracked (aggregate model)
		msg.Qty = be32(rest[16:20])
		msg.Price = be32(rest[20:24])
	case 'P':
		if len(rest) < 33 {
			return msg, false
		}
		msg.OrderRef = be64(rest[0:8])
		msg.Side = sideOf(rest[8])
		msg.HasSide = true
		msg.Qty = be32(rest[9:13])
		msg.SymbolKey = keyOf(rest[13:21])
		msg.HasSymbolKey = true
		msg.Price = be32(rest[21:25])
	case 'R':
		if len(rest) < 8 {
			return msg, false
		}
		msg.SymbolKey = keyOf(rest[0:8])
		msg.HasSymbolKey = true
	case 'Q', 'H', 'S':
		// Known, non-book-affecting for this pipeline's purposes; no
		// symbol/side/price extraction needed beyond the common header.
	}

	if msg.HasSymbolKey {
		if idx, ok := d.symbols.Lookup(msg.SymbolKey); ok {
			msg.SymbolIndex = idx
			msg.SymbolValid = true
		} else {
			msg.SymbolValid = false
		}
	}

	return msg, true
}

func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func be64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func keyOf(b []byte) types.SymbolKey {
	var k types.SymbolKey
	copy(k[:], b)
	return k
}

func sideOf(b byte) types.Side {
	if b == 'B' {
		return types.SideBid
	}
	return types.SideAsk
}
