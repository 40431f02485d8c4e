package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/app"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/infra"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/service"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/strategy"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to YAML configuration")
	seed := flag.Int64("seed", 42, "random walk seed for the paper price feed")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config
	now := float64(time.Now().UnixNano()) / 1e9

	if err := bootstrap.RestoreSlots(cfg.Sim.StartPrice, now); err != nil {
		slog.Error("Slot restore failed", slog.Any("error", err))
		os.Exit(1)
	}

	seq := bootstrap.Sequencer

	// Start Sequencer in its own goroutine (The Hotpath Loop)
	go seq.Run(ctx)
	slog.InfoContext(ctx, "Sequencer (Hotpath) started", slog.Int("slots", cfg.App.Slots))

	// 4. Regime signal: SMA cross over the observed price stream.
	regimeSignal := strategy.NewSMACrossSignal(20, 60, 0.05)

	// 5. Paper feed: deterministic random walk driving the simulated
	// exchange. Fills come back as events before the tick that caused
	// them is observed, matching live exchange ordering.
	nextSeq := uint64(1)
	send := func(slot int, ev event.Event) {
		env := event.AcquireEnvelope()
		env.Seq = nextSeq
		env.Slot = slot
		env.Ev = ev
		nextSeq++
		select {
		case seq.Inbox() <- env:
		case <-ctx.Done():
			event.ReleaseEnvelope(env)
		}
	}

	rng := rand.New(rand.NewSource(*seed))
	price := cfg.Sim.StartPrice

	priceTicker := time.NewTicker(time.Duration(cfg.Sim.PriceTickMS) * time.Millisecond)
	defer priceTicker.Stop()
	timerTicker := time.NewTicker(time.Duration(cfg.Sim.TimerTickSec) * time.Second)
	defer timerTicker.Stop()
	statsTicker := time.NewTicker(60 * time.Second)
	defer statsTicker.Stop()

	slog.InfoContext(ctx, "Paper trading loop operational. Press Ctrl+C to exit.",
		slog.String("pair", cfg.App.Pair),
		slog.Float64("start_price", price))

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Shutting down gracefully...")
			return

		case t := <-priceTicker.C:
			ts := float64(t.UnixNano()) / 1e9
			price *= 1 + (rng.Float64()-0.5)*0.004
			seq.SetRegime(regimeSignal.OnPrice(price))

			for _, fill := range bootstrap.Execution.UpdatePrice(price, ts) {
				slot, ok := routeFill(seq, fill)
				if !ok {
					slog.Warn("fill for unknown txid dropped before dispatch")
					continue
				}
				send(slot, fill)
			}
			for slot := 0; slot < cfg.App.Slots; slot++ {
				send(slot, event.PriceTick{Price: price, Timestamp: ts})
			}

		case t := <-timerTicker.C:
			ts := float64(t.UnixNano()) / 1e9
			for slot := 0; slot < cfg.App.Slots; slot++ {
				send(slot, event.TimerTick{Timestamp: ts})
			}

		case <-statsTicker.C:
			snap := infra.GlobalMetrics.Snapshot()
			freeBase, freeQuote, lockedBase, lockedQuote := bootstrap.Ledger.Totals()
			slog.Info("stats",
				slog.Uint64("transitions", snap.Transitions),
				slog.Uint64("cycles", snap.CyclesBooked),
				slog.Uint64("orphans", snap.Orphans),
				slog.Uint64("evictions", snap.Evictions),
				slog.Uint64("diagnostics", snap.Diagnostics),
				slog.Float64("price", price),
				slog.Float64("free_base", freeBase),
				slog.Float64("free_quote", freeQuote),
				slog.Float64("locked_base", lockedBase),
				slog.Float64("locked_quote", lockedQuote))
		}
	}
}

// routeFill maps an exchange fill back to the slot that owns the order.
func routeFill(seq *service.Sequencer, ev event.Event) (int, bool) {
	switch e := ev.(type) {
	case event.FillEvent:
		return seq.SlotForTxid(e.Txid)
	case event.RecoveryFillEvent:
		return seq.SlotForTxid(e.Txid)
	default:
		return 0, false
	}
}
