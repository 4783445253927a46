// Package risk implements the pre-trade risk gate: five independent checks
// evaluated on every book event, in the fixed priority order spec.md §4.7
// specifies (kill, stale, price-band, token-bucket, position-limit — see
// DESIGN.md for the duplicated "stale" slot in the spec's own priority
// list). The gate is deterministic, allocates nothing, blocks on nothing,
// and does no I/O.
package risk

import (
	"log/slog"
	"sync/atomic"

	"tickengine/pkg/types"
	"tickengine/pkg/wire"
)

// ReferencePrices is the read interface the gate needs from
// internal/refprice.Table.
type ReferencePrices interface {
	Get(index uint16) uint32
}

// Gate applies the six-check (five distinct checks, see above) pre-trade
// risk evaluation. It owns the process-global token bucket and reads risk
// parameters and the kill flag via acquire loads set by the configuration
// side-channel.
type Gate struct {
	logger *slog.Logger
	refs   ReferencePrices

	params atomic.Pointer[types.RiskParams]
	kill   atomic.Bool

	bucket tokenBucket

	accepts      uint64
	rejectKill   uint64
	rejectStale  uint64
	rejectBand   uint64
	rejectToken  uint64
	rejectPos    uint64
}

// NewGate builds a Gate with the given initial parameters.
func NewGate(logger *slog.Logger, refs ReferencePrices, initial types.RiskParams) *Gate {
	g := &Gate{logger: logger, refs: refs}
	g.params.Store(&initial)
	g.kill.Store(initial.Kill)
	return g
}

// SetRiskParams installs new scalar risk parameters, visible to the next
// evaluation onward (a single release-ordered pointer store).
func (g *Gate) SetRiskParams(p types.RiskParams) {
	g.params.Store(&p)
}

// Params returns the currently active risk parameters, for monitoring and
// checkpointing use. Kill reflects the independently-tracked kill flag, not
// whatever value SetRiskParams last carried.
func (g *Gate) Params() types.RiskParams {
	p := *g.params.Load()
	p.Kill = g.kill.Load()
	return p
}

// KillActive reports whether the kill flag is currently asserted.
func (g *Gate) KillActive() bool {
	return g.kill.Load()
}

// SetKill sets the kill flag. A kill assertion is observed by the gate on
// its very next evaluation.
func (g *Gate) SetKill(v bool) {
	wasKill := g.kill.Swap(v)
	if v && !wasKill {
		g.logger.Warn("risk gate kill switch asserted")
	} else if !v && wasKill {
		g.logger.Info("risk gate kill switch cleared")
	}
}

// Evaluate runs the five checks against ev in priority order, stopping at the
// first failing check, and returns the flags byte for the resulting decision
// record (spec.md §3's flag bits: the accept bit, or the one bit of the
// failing check) plus whether the event was accepted.
func (g *Gate) Evaluate(ev types.BookEvent, now uint64) (flags uint8, accept bool) {
	params := g.params.Load()

	if g.kill.Load() {
		g.rejectKill++
		return wire.FlagKillActive, false
	}

	if ev.Stale || (now > ev.BookTs && now-ev.BookTs > uint64(params.StaleThresholdNs)) {
		g.rejectStale++
		return wire.FlagStale, false
	}

	refPrice := g.refs.Get(ev.SymbolIndex)
	if refPrice != 0 && params.PriceBandBps != 0 {
		mid := midPrice(ev.TOB)
		diff := absDiff(uint64(mid), uint64(refPrice))
		if diff*10000 > uint64(refPrice)*uint64(params.PriceBandBps) {
			g.rejectBand++
			return wire.FlagPriceBandFail, false
		}
	}

	if !g.bucket.check(now, params.TokenRatePerMs, params.TokenBucketMax) {
		g.rejectToken++
		return wire.FlagTokenFail, false
	}

	if !withinPositionLimit(ev.TOB, params.PositionLimit) {
		g.rejectPos++
		return wire.FlagPositionFail, false
	}

	g.bucket.consume()
	g.accepts++
	return wire.FlagAccept, true
}

// midPrice implements the fixed convention from SPEC_FULL.md §5: the
// average of whichever side(s) currently carry a nonzero price.
func midPrice(tob types.BookEntry) uint32 {
	switch {
	case tob.BidPx != 0 && tob.AskPx != 0:
		return uint32((uint64(tob.BidPx) + uint64(tob.AskPx)) / 2)
	case tob.BidPx != 0:
		return tob.BidPx
	case tob.AskPx != 0:
		return tob.AskPx
	default:
		return 0
	}
}

func withinPositionLimit(tob types.BookEntry, limit int32) bool {
	if limit < 0 {
		return true
	}
	l := uint32(limit)
	return tob.BidQty <= l && tob.AskQty <= l
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// RejectCounts exposes the per-reason reject counters for telemetry.
type RejectCounts struct {
	Kill, Stale, Band, Token, Position, Accepts uint64
}

// Snapshot returns the gate's accept/reject counters.
func (g *Gate) Snapshot() RejectCounts {
	return RejectCounts{
		Kill:     g.rejectKill,
		Stale:    g.rejectStale,
		Band:     g.rejectBand,
		Token:    g.rejectToken,
		Position: g.rejectPos,
		Accepts:  g.accepts,
	}
}
