// Tickengine is a market-data tick-to-trade pipeline: it consumes a UDP
// multicast feed carrying NASDAQ ITCH 5.0 messages, maintains top-of-book
// state for a bounded symbol universe, applies pre-trade risk gating on
// every book-affecting event, and publishes per-event decision records to a
// downstream consumer over a lock-free ring buffer.
//
// Architecture:
//
//	main.go                — entry point: loads config, opens the UDP multicast
//	                         socket, feeds packets into the engine, waits for
//	                         SIGINT/SIGTERM
//	engine/engine.go       — orchestrator: wires intake → splitter → decoder →
//	                         book → risk → publisher on the caller's goroutine
//	feed/{intake,splitter} — frame intake and ITCH message framing
//	decode/decoder.go      — per-type ITCH message decoding
//	symtab/symtab.go       — double-buffered symbol key → index table
//	book/book.go           — per-symbol top-of-book state
//	risk/{gate,tokenbucket}— the six-check pre-trade risk gate
//	publisher/ring.go      — the SPSC decision-record ring
//	telemetry/             — counters, latency histogram, Prometheus export
//	api/                   — monitoring dashboard (HTTP/WS/metrics)
//	store/store.go         — crash-safe risk/kill-state checkpointing
//
// Exit status: 0 normal termination, 1 adapter failure, 2 configuration
// rejected (e.g. symbol table full on initial load).
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tickengine/internal/config"
	"tickengine/internal/engine"
)

const defaultReadBufferLen = 64 * 1024

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("TICKENGINE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if err := eng.LoadInitialData(); err != nil {
		logger.Error("configuration rejected", "error", err)
		os.Exit(2)
	}

	conn, err := openMulticastSocket(cfg.Feed)
	if err != nil {
		logger.Error("failed to open multicast feed", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	srv, err := eng.Start(registry)
	if err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}
	if cfg.Dashboard.Enabled {
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	logger.Info("tickengine started",
		"multicast_addr", cfg.Feed.MulticastAddr,
		"max_symbols", cfg.Symbols.MaxSymbols,
		"ring_length", cfg.Ring.Length,
	)

	bufLen := cfg.Feed.ReadBufferLen
	if bufLen <= 0 {
		bufLen = defaultReadBufferLen
	}

	done := make(chan struct{})
	go runFeedLoop(conn, eng, logger, bufLen, done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-done:
		logger.Error("feed loop exited unexpectedly")
	}

	conn.Close()
	eng.Stop(srv)
}

// openMulticastSocket joins the configured multicast group. This is the one
// piece of "packet capture from the wire" spec.md declares out of scope for
// the core itself; the core only ever sees already-extracted UDP payloads.
func openMulticastSocket(cfg config.FeedConfig) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.MulticastAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve multicast addr %q: %w", cfg.MulticastAddr, err)
	}

	var iface *net.Interface
	if cfg.Interface != "" {
		iface, err = net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("resolve interface %q: %w", cfg.Interface, err)
		}
	}

	conn, err := net.ListenMulticastUDP("udp", iface, addr)
	if err != nil {
		return nil, fmt.Errorf("listen multicast %s: %w", addr, err)
	}
	return conn, nil
}

// runFeedLoop repeatedly reads UDP payloads and feeds them to the engine,
// stamping each with an ingress timestamp captured at the earliest
// observable point, per spec.md §4.1. It returns (closing done) only when
// the socket is closed, which happens on shutdown.
func runFeedLoop(conn *net.UDPConn, eng *engine.Engine, logger *slog.Logger, bufLen int, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, bufLen)

	for {
		n, _, err := conn.ReadFromUDP(buf)
		ingressTs := uint64(time.Now().UnixNano())
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warn("udp read error", "error", err)
			continue
		}
		eng.OnPayload(buf[:n], ingressTs)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
