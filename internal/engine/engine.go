// Package engine is the central orchestrator of the tick-to-trade pipeline.
//
// It wires together every stage of the data path on a single goroutine:
//
//  1. Intake receives a raw UDP payload and an ingress timestamp.
//  2. Splitter frames it into one or more ITCH messages, tracking sequence
//     gaps and the stale latch.
//  3. Decoder resolves each message into a normalized, symbol-indexed form.
//  4. Book applies book-affecting messages to top-of-book state and emits a
//     book event.
//  5. Gate evaluates the six-check risk verdict and Engine assembles the
//     64-byte decision record.
//  6. Ring publishes the record for the external consumer.
//
// Everything above runs synchronously inside OnPayload, on whatever
// goroutine the caller (the UDP adapter) drives it from, per spec.md §5's
// single-threaded data-path model. Engine additionally owns the lifecycle
// of background goroutines that are not on the data path: the monitoring
// dashboard, the periodic Prometheus export, and checkpoint persistence.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tickengine/internal/api"
	"tickengine/internal/book"
	"tickengine/internal/config"
	"tickengine/internal/decode"
	"tickengine/internal/feed"
	"tickengine/internal/loader"
	"tickengine/internal/publisher"
	"tickengine/internal/refprice"
	"tickengine/internal/risk"
	"tickengine/internal/store"
	"tickengine/internal/symtab"
	"tickengine/internal/telemetry"
	"tickengine/pkg/types"
	"tickengine/pkg/wire"

	"github.com/prometheus/client_golang/prometheus"
)

// NowFunc returns the current time as nanoseconds since an arbitrary but
// monotonic epoch. Production wiring uses time.Now().UnixNano(); tests
// inject a deterministic clock.
type NowFunc func() uint64

// Engine owns every pipeline stage and the configuration side-channel
// described in spec.md §6.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger
	now    NowFunc

	intake   *feed.Intake
	splitter *feed.Splitter
	decoder  *decode.Decoder
	book     *book.Book
	symbols  *symtab.Table
	refs     *refprice.Table
	gate     *risk.Gate
	ring     *publisher.Ring
	telemetry *telemetry.Telemetry
	store    *store.Store

	seenDrops uint64 // last observed ring.Drops(), for delta-based DMARecords/DMADrops accounting

	dashboardEvents chan api.DashboardEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires all pipeline stages from cfg. It does not start any background
// goroutine; call Start for that.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	symbols, err := symtab.New(cfg.Symbols.MaxSymbols)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	refs := refprice.New(cfg.Symbols.MaxSymbols)
	bk := book.New(cfg.Symbols.MaxSymbols)

	ring, err := publisher.NewRing(cfg.Ring.Length)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if cfg.Ring.AlmostFullThreshold > 0 {
		ring.SetAlmostFullThreshold(uint32(cfg.Ring.AlmostFullThreshold))
	}

	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	initialParams := types.RiskParams{
		PriceBandBps:     uint16(cfg.Risk.PriceBandBps),
		TokenRatePerMs:   uint16(cfg.Risk.TokenRatePerMs),
		TokenBucketMax:   uint16(cfg.Risk.TokenBucketMax),
		PositionLimit:    int32(cfg.Risk.PositionLimit),
		StaleThresholdNs: uint32(cfg.Risk.StaleThreshold.Nanoseconds()),
		SeqGapThreshold:  uint16(cfg.Risk.SeqGapThreshold),
		Kill:             cfg.Risk.Kill,
	}
	if cp, err := st.Load(); err == nil && cp != nil {
		initialParams = cp.Params
		initialParams.Kill = cp.Kill
		logger.Info("restored checkpoint", "kill", cp.Kill)
	}

	gate := risk.NewGate(logger.With("component", "risk"), refs, initialParams)

	e := &Engine{
		cfg:       cfg,
		logger:    logger.With("component", "engine"),
		now:       func() uint64 { return uint64(time.Now().UnixNano()) },
		book:      bk,
		symbols:   symbols,
		refs:      refs,
		gate:      gate,
		ring:      ring,
		telemetry: telemetry.New(),
		store:     st,
	}

	e.splitter = feed.NewSplitter(e)
	e.splitter.SetSeqCheckEnabled(cfg.Risk.SeqCheckEnabled)
	e.splitter.SetSeqGapThreshold(uint16(cfg.Risk.SeqGapThreshold))
	e.intake = feed.NewIntake(e.splitter)
	e.decoder = decode.NewDecoder(symbols, e.now)

	if cfg.Dashboard.Enabled {
		e.dashboardEvents = make(chan api.DashboardEvent, 256)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.ctx, e.cancel = ctx, cancel

	return e, nil
}

// LoadInitialData loads the configured symbol and reference-price files (if
// any) and commits the symbol table, so the pipeline starts with a warm
// universe instead of rejecting every message as unknown-symbol.
func (e *Engine) LoadInitialData() error {
	if path := e.cfg.Symbols.SymbolFile; path != "" {
		entries, err := loader.LoadSymbolFile(path)
		if err != nil {
			return fmt.Errorf("engine: load symbol file: %w", err)
		}
		for _, ent := range entries {
			if err := e.symbols.LoadSymbol(ent.Key, ent.Index); err != nil {
				return fmt.Errorf("engine: %w", err)
			}
		}
		e.symbols.Commit()
		e.logger.Info("loaded symbol universe", "count", len(entries))
	}
	if path := e.cfg.Symbols.ReferencePriceFile; path != "" {
		entries, err := loader.LoadReferencePriceFile(path)
		if err != nil {
			return fmt.Errorf("engine: load reference price file: %w", err)
		}
		for _, ent := range entries {
			e.refs.Set(ent.Index, ent.Price)
		}
		e.logger.Info("loaded reference prices", "count", len(entries))
	}
	return nil
}

// OnPayload is the input adapter contract of spec.md §6: consume one UDP
// payload captured at ingressTsNs. It never returns an error; framing
// failures become counter increments.
func (e *Engine) OnPayload(payload []byte, ingressTsNs uint64) {
	drops, gaps, dupes := e.intake.Drops(), e.splitter.SeqGaps(), e.splitter.SeqDupes()
	e.intake.OnPayload(payload, ingressTsNs)

	c := &e.telemetry.Counters
	c.RxPackets.Add(1)
	c.RxBytes.Add(uint64(len(payload)))
	c.IntakeDrops.Add(e.intake.Drops() - drops)
	c.SeqGaps.Add(e.splitter.SeqGaps() - gaps)
	c.SeqDupes.Add(e.splitter.SeqDupes() - dupes)
}

// HandleFrame implements feed.FrameSink. It is the single point where a
// framed ITCH message flows through decode, book, and risk.
func (e *Engine) HandleFrame(f feed.Frame) {
	msg, ok := e.decoder.Decode(f)
	if !ok {
		return
	}
	e.telemetry.Counters.ParsedMessages.Add(1)

	if !msg.IsBookAffecting {
		return
	}

	ev, ok := e.book.Apply(msg)
	if !ok {
		if msg.HasSymbolKey && !msg.SymbolValid {
			e.telemetry.Counters.UnknownSymbol.Add(1)
			e.publishUnknownSymbol(msg)
		}
		return
	}
	e.telemetry.Counters.BookUpdates.Add(1)
	e.publishDecision(ev)
}

// publishDecision runs the risk gate against a resolved book event and
// publishes the resulting decision record.
func (e *Engine) publishDecision(ev types.BookEvent) {
	now := e.now()
	flags, _ := e.gate.Evaluate(ev, now)
	rec := e.buildRecord(ev, flags, now)
	e.publish(&rec, ev.IngressTs, now)
}

// publishUnknownSymbol emits a reject record for a book-affecting message
// whose symbol key did not resolve, per the Open Question decision recorded
// in SPEC_FULL.md §5.
func (e *Engine) publishUnknownSymbol(msg types.DecodedMessage) {
	now := e.now()
	// Flags is left at zero: none of the six named bits describes "unknown
	// symbol" (see SPEC_FULL.md §5's Open Question decision), so an
	// all-zero flags byte is this pipeline's signal for that reject reason.
	rec := wire.DecisionRecord{
		Seq:        msg.Seq,
		TsIngress:  msg.IngressTs,
		TsDecision: now,
		Side:       uint8(msg.Side),
		Qty:        msg.Qty,
		Price:      msg.Price,
	}
	e.publish(&rec, msg.IngressTs, now)
}

func (e *Engine) buildRecord(ev types.BookEvent, flags uint8, now uint64) wire.DecisionRecord {
	tob := ev.TOB
	return wire.DecisionRecord{
		Seq:         ev.Seq,
		TsIngress:   ev.IngressTs,
		TsDecision:  now,
		SymbolIndex: ev.SymbolIndex,
		Side:        uint8(ev.Side),
		Flags:       flags,
		Qty:         sideQty(ev.Side, tob),
		Price:       sidePrice(ev.Side, tob),
		RefPrice:    e.refs.Get(ev.SymbolIndex),
		Feature0:    tob.AskPx - tob.BidPx, // unsigned wraparound on a crossed book, preserved per spec.md §9
		Feature1:    int32(tob.BidQty) - int32(tob.AskQty),
		Feature2:    tob.LastTradePx,
	}
}

// sidePrice and sideQty report the triggering side's own TOB price/qty.
func sidePrice(side types.Side, tob types.BookEntry) uint32 {
	if side == types.SideAsk {
		return tob.AskPx
	}
	return tob.BidPx
}

func sideQty(side types.Side, tob types.BookEntry) uint32 {
	if side == types.SideAsk {
		return tob.AskQty
	}
	return tob.BidQty
}

// publish writes rec to the ring, accounts for drop-vs-published in
// telemetry, observes pipeline latency, and forwards a view to the
// dashboard if one is attached.
func (e *Engine) publish(rec *wire.DecisionRecord, ingressTs, decisionTs uint64) {
	e.ring.Publish(rec)

	drops := e.ring.Drops()
	if drops > e.seenDrops {
		e.telemetry.Counters.DMADrops.Add(drops - e.seenDrops)
		e.seenDrops = drops
		return
	}
	e.telemetry.Counters.DMARecords.Add(1)
	e.telemetry.Histogram.Observe(decisionTs - ingressTs)
	e.tallyVerdict(rec.Flags)

	e.emitDashboardDecision(rec)
}

// tallyVerdict increments the one telemetry counter matching rec.Flags. The
// gate itself keeps its own independent reject counters (risk.Gate.Snapshot)
// for its internal bookkeeping; these mirror them into the general
// telemetry surface exposed by snapshot_stats().
func (e *Engine) tallyVerdict(flags uint8) {
	switch {
	case flags&wire.FlagAccept != 0:
		e.telemetry.Counters.RiskAccepts.Add(1)
	case flags&wire.FlagKillActive != 0:
		e.telemetry.Counters.RejectKill.Add(1)
	case flags&wire.FlagStale != 0:
		e.telemetry.Counters.RejectStale.Add(1)
	case flags&wire.FlagPriceBandFail != 0:
		e.telemetry.Counters.RejectBand.Add(1)
	case flags&wire.FlagTokenFail != 0:
		e.telemetry.Counters.RejectToken.Add(1)
	case flags&wire.FlagPositionFail != 0:
		e.telemetry.Counters.RejectPosition.Add(1)
	}
}

func (e *Engine) emitDashboardDecision(rec *wire.DecisionRecord) {
	if e.dashboardEvents == nil {
		return
	}
	evt := api.DashboardEvent{
		Type:      "decision",
		Timestamp: time.Now(),
		Data:      api.NewDecisionView(rec),
	}
	select {
	case e.dashboardEvents <- evt:
	default:
	}
}

// --- Configuration side-channel (spec.md §6) ---

// SetRiskParams installs new scalar risk thresholds, effective from the next
// message evaluated onward.
func (e *Engine) SetRiskParams(p types.RiskParams) {
	e.gate.SetRiskParams(p)
}

// SetKill asserts or clears the kill flag.
func (e *Engine) SetKill(v bool) {
	e.gate.SetKill(v)
	if v {
		e.checkpoint()
	}
}

// LoadSymbol stages (key, index) into the symbol table's shadow map. The
// caller must call CommitSymbols to make it visible to the data path.
func (e *Engine) LoadSymbol(key types.SymbolKey, index uint16) error {
	return e.symbols.LoadSymbol(key, index)
}

// CommitSymbols atomically swaps the shadow symbol map in as active.
func (e *Engine) CommitSymbols() {
	e.symbols.Commit()
}

// SetReferencePrice stores the reference price for a symbol index.
func (e *Engine) SetReferencePrice(index uint16, price uint32) {
	e.refs.Set(index, price)
}

// SnapshotStats returns the read-only aggregate of pipeline counters and
// latency statistics.
func (e *Engine) SnapshotStats() types.Stats {
	return e.telemetry.Snapshot(e.ring.Occupancy(), e.ring.AlmostFull(), e.book.BankTouches())
}

// RiskParams returns the active risk parameters, for dashboard display.
func (e *Engine) RiskParams() types.RiskParams {
	return e.gate.Params()
}

// KillActive reports whether the kill flag is currently set.
func (e *Engine) KillActive() bool {
	return e.gate.KillActive()
}

// DashboardEvents returns the dashboard event channel (nil if the dashboard
// is disabled), matching the provider contract internal/api expects.
func (e *Engine) DashboardEvents() <-chan api.DashboardEvent {
	return e.dashboardEvents
}

// Ring exposes the publisher ring's external, lock-free consumer interface
// (spec.md §6's decision-consumer contract): TryNext/Commit. The driver
// program hands this to whatever downstream process consumes decisions; the
// dashboard's own consumption (if enabled) happens over the
// DashboardEvents channel instead, not by taking ownership of the ring.
func (e *Engine) Ring() *publisher.Ring {
	return e.ring
}

// --- Lifecycle ---

// Start launches the engine's non-data-path background goroutines:
// periodic checkpointing, the Prometheus exporter, and (if configured) the
// monitoring dashboard. The data path itself is driven by repeated calls to
// OnPayload from the caller's own goroutine and is not started here.
func (e *Engine) Start(registry *prometheus.Registry) (*api.Server, error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runCheckpointLoop()
	}()

	ringState := func() (uint32, bool, [4]uint64) {
		return e.ring.Occupancy(), e.ring.AlmostFull(), e.book.BankTouches()
	}
	exporter := telemetry.NewExporter(registry, e.telemetry, ringState, 5*time.Second)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		exporter.Run(e.ctx)
	}()

	var srv *api.Server
	if e.cfg.Dashboard.Enabled {
		srv = api.NewServer(e.cfg.Dashboard, e, e.cfg, registry, e.logger)
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := srv.Start(); err != nil {
				e.logger.Error("dashboard server stopped", "error", err)
			}
		}()
	}

	return srv, nil
}

// Stop cancels background goroutines, persists a final checkpoint, and
// waits for clean shutdown.
func (e *Engine) Stop(srv *api.Server) {
	e.logger.Info("shutting down")
	e.cancel()

	if srv != nil {
		if err := srv.Stop(); err != nil {
			e.logger.Error("dashboard shutdown error", "error", err)
		}
	}

	e.checkpoint()
	e.wg.Wait()

	if e.dashboardEvents != nil {
		close(e.dashboardEvents)
	}
	e.store.Close()
	e.logger.Info("shutdown complete")
}

func (e *Engine) runCheckpointLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.checkpoint()
		}
	}
}

func (e *Engine) checkpoint() {
	cp := store.Checkpoint{
		Kill:   e.gate.KillActive(),
		Params: e.gate.Params(),
		Stats:  e.SnapshotStats(),
	}
	if err := e.store.Save(cp); err != nil {
		e.logger.Error("checkpoint save failed", "error", err)
	}
}
