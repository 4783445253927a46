package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RingState is the live, non-atomic-counter state the exporter cannot read
// off Telemetry directly: ring occupancy/back-pressure and per-bank
// contention counts. Engine supplies this on each tick the same way it
// supplies it to SnapshotStats.
type RingState func() (occupancy uint32, almostFull bool, bankTouches [4]uint64)

// Exporter periodically copies a Telemetry snapshot into Prometheus gauges.
// It never touches the hot path directly: it polls atomics on a timer from
// its own goroutine, the same separation the teacher's observability
// provider uses between request-path instrumentation and exposition.
type Exporter struct {
	telemetry *Telemetry
	ringState RingState
	interval  time.Duration

	rxPackets      prometheus.Gauge
	rxBytes        prometheus.Gauge
	parsedMessages prometheus.Gauge
	bookUpdates    prometheus.Gauge
	riskAccepts    prometheus.Gauge
	riskRejects    *prometheus.GaugeVec
	dmaRecords     prometheus.Gauge
	dmaDrops       prometheus.Gauge
	ringOccupancy  prometheus.Gauge
	ringAlmostFull prometheus.Gauge
	bankTouches    *prometheus.GaugeVec
	latencyMeanNs  prometheus.Gauge
	latencyMaxNs   prometheus.Gauge
}

// NewExporter registers the pipeline's gauges on reg and wires them to t.
// ringState supplies the live ring/bank state Telemetry does not itself
// track; pass nil to report zeros for those gauges only.
func NewExporter(reg prometheus.Registerer, t *Telemetry, ringState RingState, interval time.Duration) *Exporter {
	e := &Exporter{
		telemetry: t,
		ringState: ringState,
		interval:  interval,
		rxPackets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_rx_packets_total", Help: "UDP payloads received.",
		}),
		rxBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_rx_bytes_total", Help: "Bytes received.",
		}),
		parsedMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_parsed_messages_total", Help: "ITCH messages successfully framed and decoded.",
		}),
		bookUpdates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_book_updates_total", Help: "Book-affecting messages applied.",
		}),
		riskAccepts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_risk_accepts_total", Help: "Risk gate accepts.",
		}),
		riskRejects: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tickengine_risk_rejects_total", Help: "Risk gate rejects by reason.",
		}, []string{"reason"}),
		dmaRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_dma_records_total", Help: "Decision records published to the ring.",
		}),
		dmaDrops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_dma_drops_total", Help: "Decision records dropped for a full ring.",
		}),
		latencyMeanNs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_decision_latency_mean_ns", Help: "Mean ingress-to-decision latency.",
		}),
		latencyMaxNs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_decision_latency_max_ns", Help: "Max observed ingress-to-decision latency.",
		}),
		ringOccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_ring_occupancy", Help: "Decision ring slots currently occupied.",
		}),
		ringAlmostFull: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickengine_ring_almost_full", Help: "1 if the decision ring is at or above its almost-full watermark.",
		}),
		bankTouches: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tickengine_bank_touches_total", Help: "Book bank touches, by bank.",
		}, []string{"bank"}),
	}
	reg.MustRegister(e.rxPackets, e.rxBytes, e.parsedMessages, e.bookUpdates,
		e.riskAccepts, e.riskRejects, e.dmaRecords, e.dmaDrops,
		e.ringOccupancy, e.ringAlmostFull, e.bankTouches,
		e.latencyMeanNs, e.latencyMaxNs)
	return e
}

// Run polls the telemetry snapshot every interval until ctx is canceled.
func (e *Exporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Exporter) tick() {
	var occupancy uint32
	var almostFull bool
	var bankTouches [4]uint64
	if e.ringState != nil {
		occupancy, almostFull, bankTouches = e.ringState()
	}

	s := e.telemetry.Snapshot(occupancy, almostFull, bankTouches)
	e.rxPackets.Set(float64(s.RxPackets))
	e.rxBytes.Set(float64(s.RxBytes))
	e.parsedMessages.Set(float64(s.ParsedMessages))
	e.bookUpdates.Set(float64(s.BookUpdates))
	e.riskAccepts.Set(float64(s.RiskAccepts))
	e.riskRejects.WithLabelValues("kill").Set(float64(s.RiskRejectKill))
	e.riskRejects.WithLabelValues("stale").Set(float64(s.RiskRejectStale))
	e.riskRejects.WithLabelValues("price_band").Set(float64(s.RiskRejectBand))
	e.riskRejects.WithLabelValues("token").Set(float64(s.RiskRejectToken))
	e.riskRejects.WithLabelValues("position").Set(float64(s.RiskRejectPos))
	e.dmaRecords.Set(float64(s.DMARecords))
	e.dmaDrops.Set(float64(s.DMADrops))
	e.ringOccupancy.Set(float64(s.RingOccupancy))
	if s.RingAlmostFull {
		e.ringAlmostFull.Set(1)
	} else {
		e.ringAlmostFull.Set(0)
	}
	for i, touches := range s.BankContention {
		e.bankTouches.WithLabelValues(bankLabel(i)).Set(float64(touches))
	}

	h := e.telemetry.Histogram.Snapshot()
	e.latencyMeanNs.Set(h.Mean())
	e.latencyMaxNs.Set(float64(h.Max))
}

func bankLabel(i int) string {
	return string(rune('0' + i))
}
