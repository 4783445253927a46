package api

import (
	"time"

	"tickengine/pkg/wire"
)

// DashboardEvent is the wrapper for everything pushed to connected WebSocket
// clients.
type DashboardEvent struct {
	Type      string      `json:"type"` // "snapshot", "decision", "kill"
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// KillEvent is emitted when the kill switch transitions.
type KillEvent struct {
	Active bool      `json:"active"`
	At     time.Time `json:"at"`
}

// NewKillEvent builds a KillEvent.
func NewKillEvent(active bool) KillEvent {
	return KillEvent{Active: active, At: time.Now()}
}

// reasonOf maps a decision record's flags byte to the human-readable reject
// reason the priority order in spec.md §4.7 assigns it.
func reasonOf(flags uint8) (accept bool, reason string) {
	switch {
	case flags&wire.FlagKillActive != 0:
		return false, "kill"
	case flags&wire.FlagStale != 0:
		return false, "stale"
	case flags&wire.FlagPriceBandFail != 0:
		return false, "price_band"
	case flags&wire.FlagTokenFail != 0:
		return false, "token_bucket"
	case flags&wire.FlagPositionFail != 0:
		return false, "position_limit"
	case flags&wire.FlagAccept != 0:
		return true, ""
	default:
		return false, "unknown_symbol"
	}
}

// NewDecisionView renders a published decision record for the dashboard.
func NewDecisionView(rec *wire.DecisionRecord) DecisionView {
	accept, reason := reasonOf(rec.Flags)
	return DecisionView{
		Seq:          rec.Seq,
		TsIngressNs:  rec.TsIngress,
		TsDecisionNs: rec.TsDecision,
		LatencyNs:    rec.TsDecision - rec.TsIngress,
		SymbolIndex:  rec.SymbolIndex,
		Side:         sideString(rec.Side),
		Accept:       accept,
		Reason:       reason,
		Qty:          rec.Qty,
		Price:        rec.Price,
		RefPrice:     rec.RefPrice,
		Spread:       rec.Feature0,
		QtyImbalance: rec.Feature1,
		LastTradePx:  rec.Feature2,
	}
}

func sideString(side uint8) string {
	if side == 0 {
		return "bid"
	}
	return "ask"
}
