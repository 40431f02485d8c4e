package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/core"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/execution"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/infra"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/infra/storage"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/sizing"
)

// CapitalParams are the host-side sizing knobs. The sizer turns them plus a
// balance snapshot into the per-tick order notional.
type CapitalParams struct {
	TargetLayers int
	BaseOrderUSD float64
	PerLayerUSD  float64
	BasePerOrder float64
	Buffer       float64
}

// Sequencer is the single-threaded host loop. It owns every slot's state:
// events come in through the inbox with host-assigned sequence numbers, each
// one runs through the decision core, the new state is persisted, and the
// resulting actions execute against the exchange. A sequence gap means
// events were lost between ingestion and processing, which poisons replay,
// so the loop halts rather than continue on a broken stream.
type Sequencer struct {
	inbox   chan *event.Envelope
	slots   map[int]domain.PairState
	nextSeq uint64

	backend   core.Backend
	engineCfg domain.EngineConfig
	capital   CapitalParams

	ledger  *Ledger
	exec    *execution.PaperExecution
	store   *storage.Storage
	metrics *infra.Metrics

	// checkEveryTransition runs the invariant checker after each event.
	checkEveryTransition bool

	// Boundary: used to notify UI or other observers of state changes.
	onStateUpdate func(slotID int, state domain.PairState)

	// pendingRegime hands a regime label from the signal goroutine to the
	// loop goroutine, which stamps it on slot state before each event.
	pendingRegime atomic.Value // domain.Regime

	mu sync.RWMutex // Used only for external reads (e.g. UI)
}

// NewSequencer wires a host loop. store may be nil (no persistence, used
// in tests); onUpdate may be nil.
func NewSequencer(
	inboxSize int,
	backend core.Backend,
	engineCfg domain.EngineConfig,
	capital CapitalParams,
	ledger *Ledger,
	exec *execution.PaperExecution,
	store *storage.Storage,
	checkEveryTransition bool,
	onUpdate func(int, domain.PairState),
) *Sequencer {
	return &Sequencer{
		inbox:                make(chan *event.Envelope, inboxSize),
		slots:                make(map[int]domain.PairState),
		nextSeq:              1,
		backend:              backend,
		engineCfg:            engineCfg,
		capital:              capital,
		ledger:               ledger,
		exec:                 exec,
		store:                store,
		metrics:              infra.GlobalMetrics,
		checkEveryTransition: checkEveryTransition,
		onStateUpdate:        onUpdate,
	}
}

// Inbox returns the envelope channel. External workers send events here.
func (s *Sequencer) Inbox() chan<- *event.Envelope {
	return s.inbox
}

// SeedSlot installs a restored or freshly bootstrapped slot state.
func (s *Sequencer) SeedSlot(slotID int, state domain.PairState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slotID] = state
	s.metrics.SetActiveSlots(int32(len(s.slots)))
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	slog.Info("Sequencer started (Single-Thread Hotpath)")

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState("panic_dump.json")
			// Halt after dump: a broken stream must not keep trading.
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sequencer stopping...")
			return
		case env := <-s.inbox:
			s.processEnvelope(ctx, env)
			event.ReleaseEnvelope(env)
		}
	}
}

func (s *Sequencer) processEnvelope(ctx context.Context, env *event.Envelope) {
	// 1. Sequence Gap Check (Halt Policy)
	if env.Seq != s.nextSeq {
		panic(fmt.Sprintf("SEQUENCE_GAP_DETECTED: expected %d, got %d", s.nextSeq, env.Seq))
	}

	s.dispatch(ctx, env.Slot, env.Ev, true)

	// 2. Increment Sequence
	s.nextSeq++
}

// ReplayEnvelope processes an envelope synchronously without persistence or
// action execution. This is used exclusively to rebuild state from an event
// log.
func (s *Sequencer) ReplayEnvelope(ctx context.Context, env *event.Envelope) {
	if env.Seq != s.nextSeq {
		panic(fmt.Sprintf("REPLAY_GAP_DETECTED: expected %d, got %d", s.nextSeq, env.Seq))
	}
	s.dispatch(ctx, env.Slot, env.Ev, false)
	s.nextSeq++
}

func (s *Sequencer) dispatch(ctx context.Context, slotID int, ev event.Event, live bool) {
	state, ok := s.slots[slotID]
	if !ok {
		state = domain.NewPairState(0, ev.Time())
	}

	if v := s.pendingRegime.Load(); v != nil {
		state = domain.ApplyRegime(state, v.(domain.Regime))
	}

	// Settle exchange fills into the ledger before sizing so the snapshot
	// the sizer sees already includes this fill's balance movement.
	if live {
		s.settleFill(ev)
	}

	tickCfg := s.tickConfig(state)

	start := time.Now()
	res, err := s.backend.Transition(ctx, state, ev, tickCfg)
	if err != nil {
		// Only reachable without a fallback wrapper; keep the old state.
		slog.Error("transition failed",
			slog.Int("slot", slotID),
			slog.String("event", string(ev.Type())),
			slog.String("error", err.Error()))
		return
	}
	s.metrics.RecordTransition(time.Since(start).Nanoseconds(), len(res.Actions), len(res.Diagnostics))

	for _, d := range res.Diagnostics {
		slog.Warn("event absorbed",
			slog.Int("slot", slotID),
			slog.String("code", d.Code),
			slog.String("detail", d.Detail))
	}

	var violationNote string
	if s.checkEveryTransition {
		violations, cerr := s.backend.CheckInvariants(ctx, res.State, tickCfg)
		if cerr != nil {
			slog.Error("invariant check failed", slog.String("error", cerr.Error()))
		} else if len(violations) > 0 {
			s.metrics.RecordInvariantViolations(len(violations))
			notes := make([]string, 0, len(violations))
			for _, v := range violations {
				notes = append(notes, string(v))
			}
			violationNote = strings.Join(notes, "; ")
			slog.Error("invariant violations after transition",
				slog.Int("slot", slotID),
				slog.String("violations", violationNote))
		}
	}

	if live {
		res.State = s.executeActions(slotID, state, res.State, res.Actions)
	}

	if live && s.store != nil {
		if err := s.store.SaveSnapshot(slotID, res.State, s.nextSeq, violationNote); err != nil {
			panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", err))
		}
	}

	s.mu.Lock()
	s.slots[slotID] = res.State
	s.metrics.SetActiveSlots(int32(len(s.slots)))
	s.metrics.SetRecoveryOrders(s.totalRecoveriesLocked())
	s.mu.Unlock()

	if s.onStateUpdate != nil {
		s.onStateUpdate(slotID, res.State)
	}
}

// tickConfig stamps the balance-constrained order notional into this
// tick's engine config. Open order counts and free balances are sampled
// once here; the reducer never reads them live.
func (s *Sequencer) tickConfig(state domain.PairState) domain.EngineConfig {
	cfg := s.engineCfg
	if s.ledger == nil {
		return cfg
	}

	var sells, buys int
	if s.exec != nil {
		sells, buys = s.exec.OpenCounts()
	}
	layers := sizing.EffectiveLayers(s.ledger.Snapshot(), sizing.LayerInput{
		TargetLayers: s.capital.TargetLayers,
		BasePerOrder: s.capital.BasePerOrder,
		Price:        state.MarketPrice,
		Buffer:       s.capital.Buffer,
		SellCount:    sells,
		BuyCount:     buys,
	})
	cfg.OrderSizeUSD = sizing.OrderSizeUSD(s.capital.BaseOrderUSD, s.capital.PerLayerUSD, layers)
	return cfg
}

func (s *Sequencer) settleFill(ev event.Event) {
	if s.ledger == nil {
		return
	}
	switch e := ev.(type) {
	case event.FillEvent:
		s.ledger.SettleFill(e.Side, e.Price, e.Volume, e.Fee)
	case event.RecoveryFillEvent:
		s.ledger.SettleFill(e.Side, e.Price, e.Volume, e.Fee)
	}
}

// executeActions runs the reducer's decisions against the exchange and
// binds acknowledgments back into the new state.
func (s *Sequencer) executeActions(slotID int, prev, next domain.PairState, actions []domain.Action) domain.PairState {
	for _, act := range actions {
		switch a := act.(type) {
		case domain.PlaceOrderAction:
			if s.ledger != nil && !s.ledger.LockForOrder(a.Side, a.Price, a.Volume) {
				slog.Warn("order reservation failed, placing unfunded",
					slog.Int("slot", slotID),
					slog.Int64("local_id", a.LocalID),
					slog.String("side", string(a.Side)))
			}
			if s.exec != nil {
				txid := s.exec.Place(a)
				next = domain.BindOrderTxid(next, a.LocalID, txid)
			}

		case domain.CancelOrderAction:
			// A recovery-id cancel is a cap eviction of a standing
			// recovery order; it was never funded by a reservation.
			if a.RecoveryID != 0 {
				s.metrics.RecordEviction()
				if s.exec != nil {
					s.exec.CancelRecovery(a.RecoveryID)
				}
				continue
			}
			if s.exec != nil {
				s.exec.Cancel(a.LocalID)
			}
			if s.ledger != nil {
				if o := prev.FindOrder(a.LocalID); o != nil {
					s.ledger.ReleaseOrder(o.Side, o.Price, o.Volume)
				}
			}

		case domain.OrphanOrderAction:
			s.metrics.RecordOrphan()
			if s.exec != nil {
				s.exec.Cancel(a.LocalID)
				if rec := next.FindRecovery(a.RecoveryID); rec != nil {
					txid := s.exec.PlaceRecovery(*rec)
					next = domain.BindRecoveryTxid(next, a.RecoveryID, txid)
				}
			}

		case domain.BookCycleAction:
			s.metrics.RecordCycleBooked()
			if s.store != nil && len(next.CompletedCycles) > 0 {
				rec := next.CompletedCycles[len(next.CompletedCycles)-1]
				if err := s.store.AppendCycle(slotID, rec); err != nil {
					slog.Error("failed to append cycle record",
						slog.Int("slot", slotID),
						slog.String("error", err.Error()))
				}
			}
		}
	}
	return next
}

// SlotForTxid finds the slot holding the order or recovery bound to the
// given exchange txid. Local ids restart per slot, so fills route by txid.
func (s *Sequencer) SlotForTxid(txid string) (int, bool) {
	if txid == "" {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, st := range s.slots {
		for i := range st.Orders {
			if st.Orders[i].Txid == txid {
				return id, true
			}
		}
		for i := range st.RecoveryOrders {
			if st.RecoveryOrders[i].Txid == txid {
				return id, true
			}
		}
	}
	return 0, false
}

// SetRegime publishes a regime label. The loop stamps it on slot state
// before processing the next event; safe to call from any goroutine.
func (s *Sequencer) SetRegime(regime domain.Regime) {
	s.pendingRegime.Store(domain.ParseRegime(string(regime)))
}

// GetSlotState returns a snapshot of one slot's state (external read).
func (s *Sequencer) GetSlotState(slotID int) (domain.PairState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.slots[slotID]
	if !ok {
		return domain.PairState{}, false
	}
	return state.Clone(), true
}

// SlotIDs returns the ids of every tracked slot.
func (s *Sequencer) SlotIDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int, 0, len(s.slots))
	for id := range s.slots {
		ids = append(ids, id)
	}
	return ids
}

func (s *Sequencer) totalRecoveriesLocked() int32 {
	var n int32
	for _, st := range s.slots {
		n += int32(len(st.RecoveryOrders))
	}
	return n
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		NextSeq uint64                   `json:"next_seq"`
		Slots   map[int]domain.PairState `json:"slots"`
	}{
		NextSeq: s.nextSeq,
		Slots:   s.slots,
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	err = os.WriteFile(filename, b, 0644)
	if err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
