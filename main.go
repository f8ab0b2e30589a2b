// Package main wires the novarelay gateway together: configuration,
// identity, dedup store, relay pool, event router, fanout bus, and the
// HTTP control surface, then waits for a shutdown signal and tears
// everything down in reverse dependency order. Grounded on the teacher
// relay's main.go (config.New -> log level -> storage -> server ->
// interrupt handler -> server.Start shape).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"novarelay.dev/app/config"
	"novarelay.dev/internal/chk"
	"novarelay.dev/internal/context"
	"novarelay.dev/internal/dedup"
	"novarelay.dev/internal/fanout"
	"novarelay.dev/internal/httpapi"
	"novarelay.dev/internal/identity"
	"novarelay.dev/internal/log"
	"novarelay.dev/internal/metrics"
	"novarelay.dev/internal/registry"
	"novarelay.dev/internal/relaypool"
	"novarelay.dev/internal/router"
	"novarelay.dev/internal/settlement"
	"novarelay.dev/version"
)

func main() {
	cfg, err := config.New()
	if chk.T(err) {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n\n", err)
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(1)
	}
	if config.HelpRequested() {
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}

	log.SetLogLevel(cfg.Monitoring.LogLevel)
	log.I.F("starting %s %s", cfg.AppName, version.V)

	ctx, cancel := signal.NotifyContext(context.Bg(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	id, err := identity.Load(cfg.Nostr.SecretKey, func(secretHex string) error {
		cfg.Nostr.SecretKey = secretHex
		return config.WriteDefault(cfg)
	})
	if chk.E(err) {
		os.Exit(1)
	}
	log.I.F("relay identity pubkey: %x", id.Signer.Pub())

	store, err := dedup.Open(dedup.Config{
		DataDir:        cfg.Deduplication.BadgerPath,
		HotsetSize:     cfg.Deduplication.HotsetSize,
		BloomCapacity:  cfg.Deduplication.BloomCapacity,
		LRUSize:        cfg.Deduplication.LRUSize,
		RetentionHours: cfg.Deduplication.RetentionHours,
	})
	if chk.E(err) {
		os.Exit(1)
	}
	if loaded, werr := store.Warmup(); chk.E(werr) {
		os.Exit(1)
	} else {
		log.I.F("dedup store warmed up with %d entries", loaded)
	}
	pruneDone := make(chan struct{})
	go store.PruneLoop(pruneDone, time.Hour)

	pool := relaypool.New(ctx, relaypool.Config{
		HealthCheckInterval: time.Duration(cfg.Relay.HealthCheckInterval) * time.Second,
		MaxConnections:      cfg.Relay.MaxConnections,
		BootstrapRelays:     cfg.Relay.BootstrapRelays,
	})

	bus := fanout.New()

	allowedKinds := make([]uint16, len(cfg.Filters.AllowedKinds))
	for i, k := range cfg.Filters.AllowedKinds {
		allowedKinds[i] = uint16(k)
	}
	rt := router.New(store, router.Config{
		BatchSize:    cfg.Output.BatchSize,
		MaxLatency:   time.Duration(cfg.Output.MaxLatencyMs) * time.Millisecond,
		AllowedKinds: allowedKinds,
	}, func(b router.Batch) {
		metrics.RecordBatch(len(b.Events), time.Since(b.SealedAt))
		bus.Publish(b)
	})
	go rt.Run(ctx, pool.Output)
	go pollMetrics(ctx, pool, bus)

	server := httpapi.New(ctx, httpapi.Deps{
		Store:           store,
		Pool:            pool,
		Router:          rt,
		Bus:             bus,
		Registry:        registry.NewInMemory(),
		Settlement:      settlement.NoOp{},
		SettlementToken: cfg.Settlement.Token,
	})

	go func() {
		<-ctx.Done()
		log.I.Ln("shutting down")
		server.Shutdown()
		pool.Close()
		close(pruneDone)
		if err := store.Close(); chk.E(err) {
		}
	}()

	if !cfg.Output.WebsocketEnabled {
		log.W.Ln("output.websocket_enabled is false, control surface still starts (status/metrics/admin)")
	}
	if err := server.Start("0.0.0.0", cfg.Output.WebsocketPort); chk.E(err) {
		log.F.F("httpapi server terminated: %v", err)
	}
}

// pollMetrics periodically samples the relay pool and fanout bus into the
// Prometheus gauges, since neither emits its own state changes as events.
func pollMetrics(ctx context.T, pool *relaypool.Pool, bus *fanout.Bus) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshots := pool.List()
			relaySnapshots := make([]metrics.RelaySnapshot, len(snapshots))
			for i, s := range snapshots {
				relaySnapshots[i] = metrics.RelaySnapshot{URL: s.URL, Status: s.Status}
			}
			metrics.RecordRelayPool(relaySnapshots)
			metrics.RecordInvalidSignatures(pool.InvalidSignatures())

			lag := bus.LagStats()
			sinkStats := make(map[string]metrics.FanoutSinkStats, len(lag))
			for id, s := range lag {
				sinkStats[id] = metrics.FanoutSinkStats{QueueDepth: s.QueueDepth, Dropped: s.Dropped}
			}
			metrics.RecordFanoutBus(sinkStats)
		}
	}
}
