// Package api implements the monitoring dashboard: an HTTP snapshot
// endpoint, a Prometheus /metrics endpoint, and a WebSocket broadcast hub
// streaming recently-published decision records. This is an observability
// convenience, not the decision-consumer interface of spec.md §6 — that
// interface is internal/publisher's lock-free TryNext/Commit, consumed
// directly by whatever downstream process the driver program hands the
// ring to.
package api

import (
	"time"

	"tickengine/internal/config"
)

// DashboardSnapshot represents the complete dashboard state at one instant.
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Stats StatsView `json:"stats"`
	Risk  RiskView  `json:"risk"`

	Config ConfigSummary `json:"config"`
}

// StatsView renders types.Stats for JSON, adding a computed mean latency
// the raw counters don't carry directly.
type StatsView struct {
	RxPackets       uint64 `json:"rx_packets"`
	RxBytes         uint64 `json:"rx_bytes"`
	IntakeDrops     uint64 `json:"intake_drops"`
	SeqGaps         uint64 `json:"seq_gaps"`
	SeqDupes        uint64 `json:"seq_dupes"`
	ParsedMessages  uint64 `json:"parsed_messages"`
	BookUpdates     uint64 `json:"book_updates"`
	RiskAccepts     uint64 `json:"risk_accepts"`
	RiskRejectKill  uint64 `json:"risk_reject_kill"`
	RiskRejectStale uint64 `json:"risk_reject_stale"`
	RiskRejectBand  uint64 `json:"risk_reject_band"`
	RiskRejectToken uint64 `json:"risk_reject_token"`
	RiskRejectPos   uint64 `json:"risk_reject_position"`
	UnknownSymbol   uint64 `json:"unknown_symbol"`
	DMARecords      uint64 `json:"dma_records"`
	DMADrops        uint64 `json:"dma_drops"`
	BankContention  [4]uint64 `json:"bank_contention"`
	RingOccupancy   uint32 `json:"ring_occupancy"`
	RingAlmostFull  bool   `json:"ring_almost_full"`
	LatencyMinNs    uint64 `json:"latency_min_ns"`
	LatencyMaxNs    uint64 `json:"latency_max_ns"`
	LatencyMeanNs   float64 `json:"latency_mean_ns"`
}

// RiskView renders the active risk parameters and kill state.
type RiskView struct {
	PriceBandBps     uint16 `json:"price_band_bps"`
	TokenRatePerMs   uint16 `json:"token_rate_per_ms"`
	TokenBucketMax   uint16 `json:"token_bucket_max"`
	PositionLimit    int32  `json:"position_limit"`
	StaleThresholdNs uint32 `json:"stale_threshold_ns"`
	SeqGapThreshold  uint16 `json:"seq_gap_threshold"`
	KillActive       bool   `json:"kill_active"`
}

// DecisionView renders one published wire.DecisionRecord for human
// consumption: fixed-point prices are left as integers (10^-4 scale) so the
// dashboard's own formatting code decides how to render them.
type DecisionView struct {
	Seq          uint32 `json:"seq"`
	TsIngressNs  uint64 `json:"ts_ingress_ns"`
	TsDecisionNs uint64 `json:"ts_decision_ns"`
	LatencyNs    uint64 `json:"latency_ns"`
	SymbolIndex  uint16 `json:"symbol_index"`
	Side         string `json:"side"`
	Accept       bool   `json:"accept"`
	Reason       string `json:"reason"`
	Qty          uint32 `json:"qty"`
	Price        uint32 `json:"price"`
	RefPrice     uint32 `json:"ref_price"`
	Spread       uint32 `json:"spread"`
	QtyImbalance int32  `json:"qty_imbalance"`
	LastTradePx  uint32 `json:"last_trade_px"`
}

// ConfigSummary is a JSON-friendly rendering of the pipeline configuration
// relevant to the dashboard operator.
type ConfigSummary struct {
	MulticastAddr       string `json:"multicast_addr"`
	MaxSymbols          int    `json:"max_symbols"`
	RingLength          int    `json:"ring_length"`
	AlmostFullThreshold int    `json:"almost_full_threshold"`
	SeqCheckEnabled     bool   `json:"seq_check_enabled"`
}

// NewConfigSummary renders cfg for dashboard display.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		MulticastAddr:       cfg.Feed.MulticastAddr,
		MaxSymbols:          cfg.Symbols.MaxSymbols,
		RingLength:          cfg.Ring.Length,
		AlmostFullThreshold: cfg.Ring.AlmostFullThreshold,
		SeqCheckEnabled:     cfg.Risk.SeqCheckEnabled,
	}
}
