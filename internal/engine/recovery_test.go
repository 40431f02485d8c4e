package engine_test

import (
	"testing"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/engine"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/event"
)

// orphanSetup builds a slot whose single sell exit is past the S1 window
// with the market below the limit, so the next timer tick orphans it.
func orphanSetup(recs []domain.RecoveryOrder) (domain.PairState, domain.EngineConfig) {
	cfg := testConfig()
	cfg.S1OrphanAfterSec = 10
	cfg.RecoveryOffsetPct = 0.5
	cfg.MaxRecoveryOrders = 2
	cfg.PriceDecimals = 3

	st := domain.NewPairState(101.0, 1000)
	st.Orders = []domain.OrderState{{
		LocalID: 9, Side: domain.SideSell, Role: domain.RoleExit,
		Price: 103.0, Volume: 20, TradeID: domain.TradeB, Cycle: 2,
		EntryPrice: 102.0, EntryFee: 0.01, EntryFilledAt: 1, Txid: "TX9",
	}}
	st.NextOrderID = 10
	st.RecoveryOrders = recs
	st.NextRecoveryID = int64(len(recs)) + 1
	return st, cfg
}

func TestOrphanCreatesRepricedRecovery(t *testing.T) {
	st, cfg := orphanSetup(nil)

	next, actions, _ := engine.Transition(st, event.TimerTick{Timestamp: 1000}, cfg)

	var orphan *domain.OrphanOrderAction
	for _, a := range actions {
		if o, ok := a.(domain.OrphanOrderAction); ok {
			orphan = &o
		}
	}
	if orphan == nil {
		t.Fatalf("no orphan action in %v", actions)
	}
	if orphan.LocalID != 9 || orphan.Reason != "s1_timeout" {
		t.Errorf("orphan = %+v", orphan)
	}

	if len(next.RecoveryOrders) != 1 {
		t.Fatalf("recovery orders = %d", len(next.RecoveryOrders))
	}
	rec := next.RecoveryOrders[0]
	// Sell exit repriced 0.5% wider: 103 * 1.005 = 103.515.
	if !approx(rec.Price, 103.515) {
		t.Errorf("recovery price = %v, want 103.515", rec.Price)
	}
	if rec.EntryPrice != 102.0 || rec.EntryFee != 0.01 || rec.Txid != "TX9" {
		t.Errorf("provenance not carried: %+v", rec)
	}
	if rec.OrphanedAt != 1000 {
		t.Errorf("orphaned_at = %v", rec.OrphanedAt)
	}
	if next.FindOrder(9) != nil {
		t.Errorf("orphaned order still tracked")
	}
	if next.CycleB != 2 {
		t.Errorf("cycle_b = %d, want advanced to 2", next.CycleB)
	}
}

func TestRecoveryCapEvictsFurthestFromMarket(t *testing.T) {
	st, cfg := orphanSetup([]domain.RecoveryOrder{
		{RecoveryID: 1, Side: domain.SideSell, Price: 101.0, Volume: 10, TradeID: domain.TradeB, Cycle: 1,
			EntryPrice: 100.0, OrphanedAt: 500, Txid: "R1"},
		{RecoveryID: 2, Side: domain.SideSell, Price: 102.0, Volume: 10, TradeID: domain.TradeB, Cycle: 1,
			EntryPrice: 100.0, OrphanedAt: 600, Txid: "R2"},
	})
	st.NextRecoveryID = 3

	next, actions, _ := engine.Transition(st, event.TimerTick{Timestamp: 1000}, cfg)

	// Market is 101: id 2 at 102 is further away and goes first.
	var cancel *domain.CancelOrderAction
	for _, a := range actions {
		if c, ok := a.(domain.CancelOrderAction); ok {
			cancel = &c
			break
		}
	}
	if cancel == nil {
		t.Fatalf("no eviction cancel in %v", actions)
	}
	if cancel.RecoveryID != 2 || cancel.Txid != "R2" {
		t.Errorf("evicted recovery %d (%s), want 2", cancel.RecoveryID, cancel.Txid)
	}
	if cancel.LocalID != 0 {
		t.Errorf("eviction cancel carries local id %d", cancel.LocalID)
	}
	if cancel.Reason != "recovery_cap_evict_priority" {
		t.Errorf("reason = %q", cancel.Reason)
	}

	// The eviction books a forced close at the mark with no fill fee,
	// then the new recovery is admitted under the cap.
	var booked *domain.BookCycleAction
	for _, a := range actions {
		if b, ok := a.(domain.BookCycleAction); ok {
			booked = &b
			break
		}
	}
	if booked == nil {
		t.Fatalf("eviction did not book a cycle")
	}
	if booked.Lineage != domain.LineageRecovery {
		t.Errorf("lineage = %s", booked.Lineage)
	}
	if !approx(booked.GrossProfit, (101.0-100.0)*10) {
		t.Errorf("forced close gross = %v", booked.GrossProfit)
	}

	if len(next.RecoveryOrders) != 2 {
		t.Fatalf("recovery count = %d, want cap of 2", len(next.RecoveryOrders))
	}
	ids := map[int64]bool{}
	for _, r := range next.RecoveryOrders {
		ids[r.RecoveryID] = true
	}
	if !ids[1] || !ids[3] {
		t.Errorf("surviving recoveries = %v, want {1, 3}", ids)
	}
}

func TestRecoveryTieBreaksOnOrphanAge(t *testing.T) {
	st, cfg := orphanSetup([]domain.RecoveryOrder{
		{RecoveryID: 1, Side: domain.SideSell, Price: 102.0, Volume: 10, TradeID: domain.TradeB, Cycle: 1,
			EntryPrice: 100.0, OrphanedAt: 600},
		{RecoveryID: 2, Side: domain.SideSell, Price: 102.0, Volume: 10, TradeID: domain.TradeB, Cycle: 1,
			EntryPrice: 100.0, OrphanedAt: 500},
	})
	st.NextRecoveryID = 3

	_, actions, _ := engine.Transition(st, event.TimerTick{Timestamp: 1000}, cfg)

	for _, a := range actions {
		if c, ok := a.(domain.CancelOrderAction); ok {
			// Equal distance: the older orphan (id 2) goes first.
			if c.RecoveryID != 2 {
				t.Errorf("evicted %d, want older orphan 2", c.RecoveryID)
			}
			return
		}
	}
	t.Fatalf("no eviction cancel in %v", actions)
}

func TestRecoveryFullTieEvictsLowestID(t *testing.T) {
	st, cfg := orphanSetup([]domain.RecoveryOrder{
		{RecoveryID: 2, Side: domain.SideSell, Price: 102.0, Volume: 10, TradeID: domain.TradeB, Cycle: 1,
			EntryPrice: 100.0, OrphanedAt: 500},
		{RecoveryID: 1, Side: domain.SideSell, Price: 102.0, Volume: 10, TradeID: domain.TradeB, Cycle: 1,
			EntryPrice: 100.0, OrphanedAt: 500},
	})
	st.NextRecoveryID = 3

	_, actions, _ := engine.Transition(st, event.TimerTick{Timestamp: 1000}, cfg)

	for _, a := range actions {
		if c, ok := a.(domain.CancelOrderAction); ok {
			// Same distance, same orphan time: the lowest id goes first.
			if c.RecoveryID != 1 {
				t.Errorf("evicted %d, want lowest id 1", c.RecoveryID)
			}
			return
		}
	}
	t.Fatalf("no eviction cancel in %v", actions)
}

func TestRecoveryFillBooksWithRecoveryLineage(t *testing.T) {
	cfg := testConfig()
	st := domain.NewPairState(0.1010, 100)
	st.RecoveryOrders = []domain.RecoveryOrder{{
		RecoveryID: 3, Side: domain.SideSell, Price: 0.1015, Volume: 20,
		TradeID: domain.TradeB, Cycle: 2, EntryPrice: 0.1000, EntryFee: 0.002,
		EntryFilledAt: 50, OrphanedAt: 80, RegimeAtEntry: domain.RegimeBullish,
	}}
	st.NextRecoveryID = 4

	fill := event.RecoveryFillEvent{RecoveryID: 3, Side: domain.SideSell, Price: 0.1015, Volume: 20, Fee: 0.003, Timestamp: 200}
	next, actions, diags := engine.Transition(st, fill, cfg)

	if len(diags) != 0 {
		t.Fatalf("diagnostics: %v", diags)
	}
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want book only", len(actions))
	}
	book, ok := actions[0].(domain.BookCycleAction)
	if !ok {
		t.Fatalf("action is %T", actions[0])
	}
	if book.Lineage != domain.LineageRecovery {
		t.Errorf("lineage = %s", book.Lineage)
	}
	if len(next.RecoveryOrders) != 0 {
		t.Errorf("recovery not cleared")
	}
	if next.CompletedCycles[0].RegimeAtEntry != domain.RegimeBullish {
		t.Errorf("regime not carried to record")
	}
}

func TestRecoveryCancelRemovesWithoutBooking(t *testing.T) {
	cfg := testConfig()
	st := domain.NewPairState(0.1010, 100)
	st.RecoveryOrders = []domain.RecoveryOrder{{RecoveryID: 3, Side: domain.SideSell, Price: 0.1015, Volume: 20, TradeID: domain.TradeB, Cycle: 2, EntryPrice: 0.1}}
	st.NextRecoveryID = 4

	next, actions, diags := engine.Transition(st, event.RecoveryCancelEvent{RecoveryID: 3, Timestamp: 200}, cfg)

	if len(actions) != 0 || len(diags) != 0 {
		t.Fatalf("actions=%v diags=%v", actions, diags)
	}
	if len(next.RecoveryOrders) != 0 {
		t.Errorf("recovery not removed")
	}
	if len(next.CompletedCycles) != 0 {
		t.Errorf("cancel booked a cycle")
	}
}
