package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/core"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/engine"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/execution"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/infra"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/infra/storage"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/service"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/sizing"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Storage   *storage.Storage
	Backend   core.Backend
	Ledger    *service.Ledger
	Execution *execution.PaperExecution
	Sequencer *service.Sequencer
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB,
// decision backend, sequencer).
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("Bootstrapping grid core host...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("Database initialized", slog.String("path", cfg.Storage.Path))

	// 4. Build the decision backend chain
	backend, err := b.buildBackend()
	if err != nil {
		return err
	}
	b.Backend = backend
	slog.Info("Decision backend ready", slog.String("backend", backend.Name()))

	// 5. Simulated balances and exchange
	b.Ledger = service.NewLedger(cfg.Sim.InitialBaseBalance, cfg.Sim.InitialQuoteBalance)
	b.Execution = execution.NewPaperExecution(cfg.Sim.FeePct)
	event.Warmup()

	// 6. Sequencer
	b.Sequencer = service.NewSequencer(
		1024,
		b.Backend,
		cfg.Engine,
		service.CapitalParams{
			TargetLayers: cfg.Capital.TargetLayers,
			BaseOrderUSD: cfg.Capital.BaseOrderUSD,
			PerLayerUSD:  cfg.Capital.PerLayerUSD,
			BasePerOrder: cfg.Capital.BasePerOrder,
			Buffer:       cfg.Capital.Buffer,
		},
		b.Ledger,
		b.Execution,
		b.Storage,
		cfg.Backend.Shadow, // shadow deployments also check invariants per event
		nil,
	)

	return nil
}

// buildBackend assembles the Backend chain from configuration. Local mode
// calls the reducer in-process. Subprocess mode shells out to an external
// core binary and falls back to the local reducer when the transport
// fails; shadow mode additionally cross-checks every result against the
// local reducer.
func (b *Bootstrap) buildBackend() (core.Backend, error) {
	cfg := b.Config
	local := core.NewLocalBackend()

	switch cfg.Backend.Mode {
	case "local":
		return local, nil

	case "subprocess":
		timeout := time.Duration(cfg.Backend.TimeoutSec * float64(time.Second))
		remote := core.NewSubprocessBackend(cfg.Backend.ExePath, timeout, cfg.Backend.Persistent)

		var backend core.Backend = core.NewFallbackBackend(remote, local, infra.GlobalMetrics)
		if cfg.Backend.Shadow {
			backend = core.NewShadowBackend(backend, local, infra.GlobalMetrics)
		}
		return backend, nil

	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Backend.Mode)
	}
}

// RestoreSlots loads persisted slot state or bootstraps fresh slots at the
// given start price. Fresh slots place their opening entry pair
// immediately.
func (b *Bootstrap) RestoreSlots(startPrice, now float64) error {
	for slotID := 0; slotID < b.Config.App.Slots; slotID++ {
		state, ok, err := b.Storage.LoadSnapshot(slotID)
		if err != nil {
			return fmt.Errorf("load slot %d: %w", slotID, err)
		}
		if ok {
			slog.Info("Restored slot from snapshot",
				slog.Int("slot", slotID),
				slog.String("phase", string(domain.DerivePhase(state))))
			b.Sequencer.SeedSlot(slotID, state)
			continue
		}

		fresh := domain.NewPairState(startPrice, now)
		seeded, actions := engine.BootstrapOrders(fresh, b.tickEngineConfig(startPrice))
		for _, act := range actions {
			if place, isPlace := act.(domain.PlaceOrderAction); isPlace {
				if b.Ledger != nil && !b.Ledger.LockForOrder(place.Side, place.Price, place.Volume) {
					slog.Warn("bootstrap order reservation failed",
						slog.Int("slot", slotID),
						slog.String("side", string(place.Side)))
				}
				txid := b.Execution.Place(place)
				seeded = domain.BindOrderTxid(seeded, place.LocalID, txid)
			}
		}
		slog.Info("Bootstrapped fresh slot",
			slog.Int("slot", slotID),
			slog.Int("orders", len(seeded.Orders)))
		b.Sequencer.SeedSlot(slotID, seeded)

		if err := b.Storage.SaveSnapshot(slotID, seeded, 0, ""); err != nil {
			return fmt.Errorf("persist slot %d: %w", slotID, err)
		}
	}
	return nil
}

// tickEngineConfig mirrors the sequencer's per-tick sizing for use before
// the loop starts.
func (b *Bootstrap) tickEngineConfig(price float64) domain.EngineConfig {
	cfg := b.Config.Engine
	sells, buys := b.Execution.OpenCounts()
	layers := sizing.EffectiveLayers(b.Ledger.Snapshot(), sizing.LayerInput{
		TargetLayers: b.Config.Capital.TargetLayers,
		BasePerOrder: b.Config.Capital.BasePerOrder,
		Price:        price,
		Buffer:       b.Config.Capital.Buffer,
		SellCount:    sells,
		BuyCount:     buys,
	})
	cfg.OrderSizeUSD = sizing.OrderSizeUSD(b.Config.Capital.BaseOrderUSD, b.Config.Capital.PerLayerUSD, layers)
	return cfg
}

// Close releases held resources. Safe to call on a partially initialized
// bootstrap.
func (b *Bootstrap) Close() {
	if b.Backend != nil {
		if err := b.Backend.Close(); err != nil {
			slog.Warn("backend close failed", slog.String("error", err.Error()))
		}
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("storage close failed", slog.String("error", err.Error()))
		}
	}
}
