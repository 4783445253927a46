// Package telemetry implements the hot-path counters and latency histogram
// (spec.md §4.9): lock-free atomic counters and a fixed-width-bin histogram
// over decision latency, plus a periodic, off-hot-path export to
// Prometheus.
package telemetry

import (
	"sync/atomic"

	"tickengine/pkg/types"
)

// HistogramBins is the fixed number of latency histogram buckets.
const HistogramBins = 256

// BinWidthNs is the compile-time width of each histogram bucket. 100ns is
// the software-target recommendation from spec.md §4.9 (13ns is the
// FPGA-parity alternative, not applicable to a software pipeline without a
// hardware clock domain to match).
const BinWidthNs = 100

// Counters holds the monotonic pipeline counters, each an independent
// atomic so unrelated counters never contend.
type Counters struct {
	RxPackets      atomic.Uint64
	RxBytes        atomic.Uint64
	CRCErrors      atomic.Uint64
	IntakeDrops    atomic.Uint64
	SeqGaps        atomic.Uint64
	SeqDupes       atomic.Uint64
	ParsedMessages atomic.Uint64
	BookUpdates    atomic.Uint64
	RiskAccepts    atomic.Uint64
	RejectKill     atomic.Uint64
	RejectStale    atomic.Uint64
	RejectBand     atomic.Uint64
	RejectToken    atomic.Uint64
	RejectPosition atomic.Uint64
	UnknownSymbol  atomic.Uint64
	DMARecords     atomic.Uint64
	DMADrops       atomic.Uint64
}

// Histogram accumulates decision latency (ts_decision - ts_ingress) into
// HistogramBins fixed-width buckets, saturating into the top bin.
type Histogram struct {
	bins [HistogramBins]atomic.Uint64
	min  atomic.Uint64
	max  atomic.Uint64
	sum  atomic.Uint64
	n    atomic.Uint64
}

// NewHistogram builds an empty Histogram.
func NewHistogram() *Histogram {
	h := &Histogram{}
	h.min.Store(^uint64(0))
	return h
}

// Observe records one latency sample in nanoseconds. Called on every
// decision record successfully published.
func (h *Histogram) Observe(latencyNs uint64) {
	bin := latencyNs / BinWidthNs
	if bin >= HistogramBins {
		bin = HistogramBins - 1
	}
	h.bins[bin].Add(1)
	h.sum.Add(latencyNs)
	h.n.Add(1)

	for {
		cur := h.min.Load()
		if latencyNs >= cur {
			break
		}
		if h.min.CompareAndSwap(cur, latencyNs) {
			break
		}
	}
	for {
		cur := h.max.Load()
		if latencyNs <= cur {
			break
		}
		if h.max.CompareAndSwap(cur, latencyNs) {
			break
		}
	}
}

// Snapshot is a point-in-time copy of the histogram's bins and summary
// statistics, suitable for off-line percentile computation.
type Snapshot struct {
	Bins  [HistogramBins]uint64
	Min   uint64
	Max   uint64
	Sum   uint64
	Count uint64
}

// Snapshot copies the current histogram state.
func (h *Histogram) Snapshot() Snapshot {
	var s Snapshot
	for i := range h.bins {
		s.Bins[i] = h.bins[i].Load()
	}
	s.Min = h.min.Load()
	if s.Min == ^uint64(0) {
		s.Min = 0
	}
	s.Max = h.max.Load()
	s.Sum = h.sum.Load()
	s.Count = h.n.Load()
	return s
}

// Mean returns the arithmetic mean latency, or 0 if no samples were
// observed.
func (s Snapshot) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Sum) / float64(s.Count)
}

// Telemetry bundles the counters and histogram and renders the external
// Stats aggregate for snapshot_stats().
type Telemetry struct {
	Counters  Counters
	Histogram *Histogram
}

// New builds an empty Telemetry.
func New() *Telemetry {
	return &Telemetry{Histogram: NewHistogram()}
}

// Snapshot renders the current counters and latency summary as a
// types.Stats value.
func (t *Telemetry) Snapshot(ringOccupancy uint32, ringAlmostFull bool, bankTouches [4]uint64) types.Stats {
	h := t.Histogram.Snapshot()
	c := &t.Counters
	return types.Stats{
		RxPackets:       c.RxPackets.Load(),
		RxBytes:         c.RxBytes.Load(),
		CRCErrors:       c.CRCErrors.Load(),
		IntakeDrops:     c.IntakeDrops.Load(),
		SeqGaps:         c.SeqGaps.Load(),
		SeqDupes:        c.SeqDupes.Load(),
		ParsedMessages:  c.ParsedMessages.Load(),
		BookUpdates:     c.BookUpdates.Load(),
		RiskAccepts:     c.RiskAccepts.Load(),
		RiskRejectKill:  c.RejectKill.Load(),
		RiskRejectStale: c.RejectStale.Load(),
		RiskRejectBand:  c.RejectBand.Load(),
		RiskRejectToken: c.RejectToken.Load(),
		RiskRejectPos:   c.RejectPosition.Load(),
		UnknownSymbol:   c.UnknownSymbol.Load(),
		DMARecords:      c.DMARecords.Load(),
		DMADrops:        c.DMADrops.Load(),
		BankContention:  bankTouches,
		RingOccupancy:   ringOccupancy,
		RingAlmostFull:  ringAlmostFull,
		LatencyMinNs:    h.Min,
		LatencyMaxNs:    h.Max,
		LatencySumNs:    h.Sum,
		LatencyCount:    h.Count,
	}
}
