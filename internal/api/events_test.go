package api

import (
	"testing"

	"tickengine/pkg/wire"
)

func TestReasonOfPriorityOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		flags  uint8
		accept bool
		reason string
	}{
		{"accept", wire.FlagAccept, true, ""},
		{"kill", wire.FlagKillActive, false, "kill"},
		{"stale", wire.FlagStale, false, "stale"},
		{"band", wire.FlagPriceBandFail, false, "price_band"},
		{"token", wire.FlagTokenFail, false, "token_bucket"},
		{"position", wire.FlagPositionFail, false, "position_limit"},
		{"unknown symbol", 0, false, "unknown_symbol"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			accept, reason := reasonOf(tc.flags)
			if accept != tc.accept || reason != tc.reason {
				t.Errorf("reasonOf(%#x) = (%v, %q), want (%v, %q)", tc.flags, accept, reason, tc.accept, tc.reason)
			}
		})
	}
}

func TestNewDecisionViewComputesLatencyAndSide(t *testing.T) {
	t.Parallel()

	rec := &wire.DecisionRecord{
		Seq: 7, TsIngress: 100, TsDecision: 150,
		SymbolIndex: 3, Side: 1, Flags: wire.FlagAccept,
		Qty: 10, Price: 1000, RefPrice: 990,
		Feature0: 20, Feature1: -5, Feature2: 995,
	}
	view := NewDecisionView(rec)

	if view.LatencyNs != 50 {
		t.Errorf("LatencyNs = %d, want 50", view.LatencyNs)
	}
	if view.Side != "ask" {
		t.Errorf("Side = %q, want ask", view.Side)
	}
	if !view.Accept || view.Reason != "" {
		t.Errorf("Accept/Reason = %v/%q, want true/\"\"", view.Accept, view.Reason)
	}
	if view.Spread != 20 || view.QtyImbalance != -5 || view.LastTradePx != 995 {
		t.Errorf("feature fields not carried through: %+v", view)
	}
}

func TestNewKillEventCapturesActiveState(t *testing.T) {
	t.Parallel()

	evt := NewKillEvent(true)
	if !evt.Active {
		t.Error("expected Active = true")
	}
	if evt.At.IsZero() {
		t.Error("expected a non-zero timestamp")
	}
}
